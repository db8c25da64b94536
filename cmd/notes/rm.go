package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *cli) rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm ID",
		Aliases: []string{"delete"},
		Short:   "Delete a note",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.lookup(args[0]); err != nil {
				return err
			}

			a.coord.DeleteNote(args[0])
			if err := a.settle(); err != nil {
				return err
			}

			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return err
		},
	}
}
