package main

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"
)

var errEmptyNote = errors.New("nothing to save: title and content are both empty")

func (a *cli) addCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add TITLE [CONTENT]",
		Short: "Create a note",
		Long:  `Create a note. A blank title is saved as "Untitled".`,
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			title, content := args[0], ""
			if len(args) == 2 {
				content = args[1]
			}
			if strings.TrimSpace(title) == "" && strings.TrimSpace(content) == "" {
				return errEmptyNote
			}

			before := make(map[string]struct{})
			for _, n := range a.coord.Notes.Value() {
				before[n.ID] = struct{}{}
			}

			a.coord.CreateNote(title, content)
			if err := a.settle(); err != nil {
				return err
			}

			for _, n := range a.coord.Notes.Value() {
				if _, ok := before[n.ID]; !ok {
					return printNote(cmd.OutOrStdout(), a.output, n)
				}
			}
			return nil
		},
	}
}
