package main

import (
	"viterbi-notes/internal/services/notes"

	"github.com/spf13/cobra"
)

func (a *cli) listCmd() *cobra.Command {
	var favorites bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List notes, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list := a.coord.Notes.Value()
			if favorites {
				list = notes.Filter(list, notes.IsFavorite)
			}
			return printNotes(cmd.OutOrStdout(), a.output, list)
		},
	}

	cmd.Flags().BoolVar(&favorites, "favorites", false, "Only favorite notes")
	return cmd
}
