package main

import (
	"github.com/spf13/cobra"
)

func (a *cli) favCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fav ID",
		Short: "Toggle a note's favorite flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.lookup(args[0]); err != nil {
				return err
			}

			a.coord.ToggleFavorite(args[0])
			if err := a.settle(); err != nil {
				return err
			}

			n, err := a.lookup(args[0])
			if err != nil {
				return err
			}
			return printNote(cmd.OutOrStdout(), a.output, n)
		},
	}
}
