package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *cli) countCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print how many notes are stored",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := a.repo.Count(cmd.Context())
			if err != nil {
				return err
			}
			switch a.output {
			case formatJSON:
				return writeJSON(cmd.OutOrStdout(), map[string]int{"count": n})
			case formatYAML:
				return writeYAML(cmd.OutOrStdout(), map[string]int{"count": n})
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), n)
			return err
		},
	}
}
