package main

import (
	"errors"

	"github.com/spf13/cobra"
)

func (a *cli) editCmd() *cobra.Command {
	var title, content string

	cmd := &cobra.Command{
		Use:   "edit ID",
		Short: "Change a note's title or content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			titleSet, contentSet := cmd.Flags().Changed("title"), cmd.Flags().Changed("content")
			if !titleSet && !contentSet {
				return errors.New("nothing to change: pass --title and/or --content")
			}

			n, err := a.lookup(args[0])
			if err != nil {
				return err
			}
			if titleSet {
				n.Title = title
			}
			if contentSet {
				n.Content = content
			}

			a.coord.UpdateNote(n)
			if err := a.settle(); err != nil {
				return err
			}

			updated, err := a.lookup(n.ID)
			if err != nil {
				return err
			}
			return printNote(cmd.OutOrStdout(), a.output, updated)
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVar(&content, "content", "", "New content")
	return cmd
}
