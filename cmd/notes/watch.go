package main

import (
	"fmt"

	"viterbi-notes/internal/services/notes"

	"github.com/spf13/cobra"
)

func (a *cli) watchCmd() *cobra.Command {
	var favorites bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print every change to the notes until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			updates, stop := a.coord.Notes.Watch()
			defer stop()

			out := cmd.OutOrStdout()
			for {
				select {
				case <-cmd.Context().Done():
					return nil
				case list, ok := <-updates:
					if !ok {
						return nil
					}
					if favorites {
						list = notes.Filter(list, notes.IsFavorite)
					}
					if a.output == formatTable {
						if _, err := fmt.Fprintf(out, "-- %d notes\n", len(list)); err != nil {
							return err
						}
					}
					if err := printNotes(out, a.output, list); err != nil {
						return err
					}
				}
			}
		},
	}

	cmd.Flags().BoolVar(&favorites, "favorites", false, "Only favorite notes")
	return cmd
}
