// Package ctxkeys names the fiber.Ctx locals shared between middlewares and handlers.
package ctxkeys

const (
	// SubjectKey holds the "sub" claim of a verified token.
	SubjectKey = "subject"
	// ParentCtxKey holds the request context handed to the WebSocket stream.
	ParentCtxKey = "parentCtx"
	// FavoritesKey holds whether a stream is restricted to favorite notes.
	FavoritesKey = "favorites"
)
