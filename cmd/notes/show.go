package main

import (
	"github.com/spf13/cobra"
)

func (a *cli) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Print one note in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := a.lookup(args[0])
			if err != nil {
				return err
			}
			a.coord.SelectNote(&n)
			return printNote(cmd.OutOrStdout(), a.output, *a.coord.SelectedNote.Value())
		},
	}
}
