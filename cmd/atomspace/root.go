package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cogpy/atomspace/core/atomspace"
	"github.com/cogpy/atomspace/core/matcher"
	"github.com/cogpy/atomspace/core/rules"
	"github.com/cogpy/atomspace/core/storage"
)

// logger follows the teacher's own logging style: a package-level
// *log.Logger over stderr rather than a structured-logging library
// (SPEC_FULL.md EXPANSION-AMBIENT note — no zap/zerolog call site exists
// anywhere in the teacher corpus despite zap riding along transitively).
var logger = log.New(os.Stderr, "atomspace: ", log.LstdFlags)

// app bundles one CLI invocation's store, matcher, and file-backed
// persistence; every mutating subcommand loads the store on open and
// flushes it back out on close, since a CLI process has no long-lived
// AtomSpace of its own between invocations.
type app struct {
	as      *atomspace.AtomSpace
	matcher *matcher.Matcher
	backend *storage.FileBackend
	runID   uuid.UUID
}

func openApp(ctx context.Context, storePath string) (*app, error) {
	as := atomspace.New(nil)
	backend := storage.NewFileBackend(storePath)

	if _, err := os.Stat(storePath); err == nil {
		if err := backend.Open(ctx); err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		if err := backend.LoadGraph(ctx, as); err != nil {
			return nil, fmt.Errorf("load store: %w", err)
		}
	} else if err := backend.Open(ctx); err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	return &app{
		as:      as,
		matcher: matcher.New(as, 256),
		backend: backend,
		runID:   uuid.New(),
	}, nil
}

func (a *app) close(ctx context.Context) error {
	if err := a.backend.StoreGraph(ctx, a.as); err != nil {
		return fmt.Errorf("flush store: %w", err)
	}
	return a.backend.Close(ctx)
}

func (a *app) engine(ctx context.Context) (*rules.Engine, error) {
	defaultRules, err := rules.DefaultRules(ctx, a.as)
	if err != nil {
		return nil, fmt.Errorf("build default rules: %w", err)
	}
	return rules.NewEngine(ctx, a.as, a.matcher, defaultRules, rules.DefaultBackwardConfig())
}

// newRootCmd builds the atomspace command tree, mirroring the teacher's
// own cobra.Command/AddCommand shape (o9nn-echo.go cmd/echo.go's
// AddEchoCommands).
func newRootCmd() *cobra.Command {
	var storePath string

	root := &cobra.Command{
		Use:   "atomspace",
		Short: "Inspect and query a hypergraph knowledge store",
		Long:  "atomspace is a small CLI over the C1-C6 hypergraph knowledge store and inference core.",
	}
	root.PersistentFlags().StringVar(&storePath, "store", "atomspace.store", "path to the file-backed atom store")

	root.AddCommand(
		newAddNodeCmd(&storePath),
		newAddLinkCmd(&storePath),
		newGetCmd(&storePath),
		newQueryCmd(&storePath),
		newInferCmd(&storePath),
	)
	return root
}
