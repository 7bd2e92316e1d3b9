package cmd

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"anon-sync/feature/generator"
	"anon-sync/feature/syncer"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// inline runs the sync engine in the same process as the generator.
var inline bool

// generateCmd inserts synthetic customers into the source collection.
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Insert random customers into the source collection",
	Long: `Inserts between generator.min and generator.max random customers every
generator.interval until interrupted. Every insert is published on the change
feed, so a running sync engine mirrors them.

Examples:
  # Produce into the configured feed
  anon-sync generate

  # Produce and sync in one process (works with FEED_DRIVER=memory)
  anon-sync generate --inline`,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().BoolVar(&inline, "inline", false, "Also run the incremental sync engine in this process")
	RootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap(ctx)
	if err != nil {
		return err
	}

	if err := rt.source.Migrate(ctx); err != nil {
		return errors.Join(err, rt.shutdown(true))
	}

	gen := generator.New(rt.cfg.Generator, rt.source, rt.log, rt.metrics)
	if !inline {
		runErr := gen.Run(ctx)
		return errors.Join(runErr, rt.shutdown(true))
	}

	srv := rt.statusServer()
	if err := srv.Start(); err != nil {
		return errors.Join(err, rt.shutdown(true))
	}

	orch := syncer.New(rt.cfg.Sync, rt.source, rt.mirror, rt.feed, rt.log, rt.metrics)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return orch.Run(gctx, syncer.ModeIncremental) })
	g.Go(func() error { return gen.Run(gctx) })
	runErr := g.Wait()

	closeErr := orch.Close()
	_ = srv.Shutdown()
	return errors.Join(runErr, closeErr, rt.shutdown(false))
}
