package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"viterbi-notes/internal/backend"
	"viterbi-notes/internal/config"
	"viterbi-notes/internal/logger"
	"viterbi-notes/internal/services/coordinator"
	"viterbi-notes/internal/services/notes"

	"github.com/spf13/cobra"
)

type (
	configLoader func() (config.Config, error)
	repoOpener   func(ctx context.Context, cfg config.Config, log *slog.Logger) (notes.Repository, backend.Cleanup, error)
)

// cli carries the state shared by every subcommand of one invocation.
type cli struct {
	loadConfig configLoader
	open       repoOpener

	verbose     bool
	backendName string
	output      string

	log     *slog.Logger
	repo    notes.Repository
	coord   *coordinator.Coordinator
	cleanup backend.Cleanup
}

func newCLI(load configLoader, open repoOpener) *cli {
	return &cli{loadConfig: load, open: open}
}

// execute runs one command line and always releases the backend, even when
// the command failed.
func (a *cli) execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	return errors.Join(err, a.close(context.WithoutCancel(ctx)))
}

func (a *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "notes",
		Short: "Read and edit notes from the terminal",
		Long: `notes works on the same store as the server: pick it with NOTES_BACKEND
(memory, sqlite, kv, mongo) or --backend. Logs go to stderr.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.start(cmd)
		},
	}

	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&a.backendName, "backend", "", "Override NOTES_BACKEND")
	root.PersistentFlags().StringVarP(&a.output, "output", "o", formatTable, "Output format: table, json or yaml")

	root.AddCommand(
		a.listCmd(),
		a.addCmd(),
		a.editCmd(),
		a.rmCmd(),
		a.favCmd(),
		a.searchCmd(),
		a.showCmd(),
		a.watchCmd(),
		a.countCmd(),
	)
	return root
}

// start opens the configured backend and waits for the first load.
func (a *cli) start(cmd *cobra.Command) error {
	if err := checkFormat(a.output); err != nil {
		return err
	}

	cfg, err := a.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if a.backendName != "" {
		cfg.NotesBackend = a.backendName
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	if a.verbose {
		cfg.LogLevel = "debug"
	}

	a.log, err = logger.InitWriter(cfg, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	a.repo, a.cleanup, err = a.open(cmd.Context(), cfg, a.log)
	if err != nil {
		return fmt.Errorf("open %s backend: %w", cfg.NotesBackend, err)
	}

	a.coord = coordinator.New(cmd.Context(), a.repo, a.log)
	return a.settle()
}

func (a *cli) close(ctx context.Context) error {
	if a.coord != nil {
		a.coord.Close()
		a.coord = nil
	}
	if a.cleanup == nil {
		return nil
	}
	cleanup := a.cleanup
	a.cleanup = nil
	return cleanup(ctx)
}

// settle waits for the commands issued so far and reports the error they
// left behind, if any.
func (a *cli) settle() error {
	a.coord.Wait()
	if msg := a.coord.Error.Value(); msg != "" {
		a.coord.ClearError()
		return errors.New(msg)
	}
	return nil
}

// lookup finds id in the live collection
func (a *cli) lookup(id string) (notes.Note, error) {
	for _, n := range a.coord.Notes.Value() {
		if n.ID == id {
			return n, nil
		}
	}
	return notes.Note{}, fmt.Errorf("note %q not found", id)
}
