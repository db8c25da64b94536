package main

import (
	"github.com/spf13/cobra"
)

func (a *cli) searchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search QUERY",
		Short: "Find notes whose title or content contains QUERY, ignoring case",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a.coord.SearchNotes(args[0])
			if err := a.settle(); err != nil {
				return err
			}
			return printNotes(cmd.OutOrStdout(), a.output, a.coord.Notes.Value())
		},
	}
}
