package mongo

import "go.mongodb.org/mongo-driver/v2/bson"

// byID matches the note document with the given id.
func byID(id string) bson.M {
	return bson.M{"_id": id}
}

// newestFirst is the snapshot order shared by every backend.
var newestFirst = bson.D{
	{Key: "updatedAt", Value: -1},
	{Key: "_id", Value: -1},
}
