package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"viterbi-notes/internal/services/notes"

	"gopkg.in/yaml.v3"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"

	timeLayout = "2006-01-02 15:04:05"
)

func checkFormat(f string) error {
	switch f {
	case formatTable, formatJSON, formatYAML:
		return nil
	}
	return fmt.Errorf("unknown output format %q (want table, json or yaml)", f)
}

// noteView is the yaml shape of a note, with the same field names as JSON.
type noteView struct {
	ID         string `yaml:"id"`
	Title      string `yaml:"title"`
	Content    string `yaml:"content"`
	CreatedAt  string `yaml:"createdAt"`
	UpdatedAt  string `yaml:"updatedAt"`
	IsFavorite bool   `yaml:"isFavorite"`
}

func viewOf(n notes.Note) noteView {
	return noteView{
		ID:         n.ID,
		Title:      n.Title,
		Content:    n.Content,
		CreatedAt:  n.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:  n.UpdatedAt.UTC().Format(time.RFC3339Nano),
		IsFavorite: n.IsFavorite,
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func printNotes(w io.Writer, format string, list []notes.Note) error {
	if list == nil {
		list = []notes.Note{}
	}
	switch format {
	case formatJSON:
		return writeJSON(w, list)
	case formatYAML:
		views := make([]noteView, 0, len(list))
		for _, n := range list {
			views = append(views, viewOf(n))
		}
		return writeYAML(w, views)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFAV\tUPDATED\tTITLE")
	for _, n := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", n.ID, star(n.IsFavorite), n.UpdatedAt.UTC().Format(timeLayout), oneLine(n.Title))
	}
	return tw.Flush()
}

func printNote(w io.Writer, format string, n notes.Note) error {
	switch format {
	case formatJSON:
		return writeJSON(w, n)
	case formatYAML:
		return writeYAML(w, viewOf(n))
	}

	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%s\n", n.ID)
	fmt.Fprintf(tw, "Title:\t%s\n", n.Title)
	fmt.Fprintf(tw, "Favorite:\t%t\n", n.IsFavorite)
	fmt.Fprintf(tw, "Created:\t%s\n", n.CreatedAt.UTC().Format(timeLayout))
	fmt.Fprintf(tw, "Updated:\t%s\n", n.UpdatedAt.UTC().Format(timeLayout))
	if err := tw.Flush(); err != nil {
		return err
	}
	if n.Content != "" {
		_, err := fmt.Fprintf(w, "\n%s\n", n.Content)
		return err
	}
	return nil
}

func star(fav bool) string {
	if fav {
		return "*"
	}
	return ""
}

func oneLine(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if r := []rune(s); len(r) > 60 {
		return string(r[:57]) + "..."
	}
	return s
}
