// Package commands implements pantryctl, which edits the pantry through the
// same store and reminder backend as the server.
package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/benvon/smart-pantry/internal/app"
	"github.com/benvon/smart-pantry/internal/calendar"
	"github.com/benvon/smart-pantry/internal/cascade"
	"github.com/benvon/smart-pantry/internal/config"
	"github.com/benvon/smart-pantry/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Session is an opened pantry. Close persists state and releases the backend.
type Session struct {
	Core  *cascade.Coordinator
	Clock calendar.Clock
	Close func(ctx context.Context) error
}

// OpenFunc opens a pantry session
type OpenFunc func(ctx context.Context, verbose bool) (*Session, error)

// OpenConfigured opens the pantry described by the environment
func OpenConfigured(ctx context.Context, verbose bool) (*Session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := zap.NewNop()
	if verbose {
		if log, err = logger.NewDevelopmentLogger(true); err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
	}

	backend, err := app.OpenBackend(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	clock := calendar.SystemClock{Location: cfg.Location()}
	core := cascade.Open(ctx, backend.Store, backend.Reminders, clock, log)
	return &Session{
		Core:  core,
		Clock: clock,
		Close: func(ctx context.Context) error {
			err := errors.Join(core.Terminate(ctx), core.Close(ctx), backend.Close())
			_ = logger.Sync(log)
			return err
		},
	}, nil
}

type runFunc func(cmd *cobra.Command, s *Session, args []string) error

// NewRootCmd creates the pantryctl command tree
func NewRootCmd(open OpenFunc) *cobra.Command {
	var verbose bool
	root := &cobra.Command{
		Use:           "pantryctl",
		Short:         "Manage the Smart Pantry inventory",
		Long:          "CLI tool for listing and editing pantry items, reminder settings and saved recipes",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log backend activity to stderr")

	// with wraps run so it receives an opened session that is closed afterwards
	with := func(run runFunc) func(cmd *cobra.Command, args []string) error {
		return func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			s, err := open(ctx, verbose)
			if err != nil {
				return err
			}
			runErr := run(cmd, s, args)
			if err := s.Close(ctx); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: failed to persist pantry: %v\n", err)
			}
			return runErr
		}
	}

	root.AddCommand(newItemsCmd(with))
	root.AddCommand(newSettingsCmd(with))
	root.AddCommand(newBulkCmd(with))
	root.AddCommand(newRecipesCmd(with))
	return root
}
