package cmd

import (
	"github.com/spf13/cobra"

	"github.com/quarrylabs/quarry/internal/syncer"
)

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync [collection]",
		Short: "Reconcile registered directories with the index",
		Long: `Reconcile registered directories with the index.

New and modified files are ingested, files removed from disk are
removed from the index, unchanged files are skipped. With a
collection argument only that directory is synced.

Examples:
  quarry sync
  quarry sync research`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newEnv()
			if err != nil {
				return err
			}
			defer env.Close()

			eng, err := env.openEngine()
			if err != nil {
				return err
			}
			out := env.printer(cmd.OutOrStdout())

			if len(args) == 1 {
				res, err := eng.Sync(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out.SyncSummary(map[string]syncer.Result{args[0]: res})
				return nil
			}

			results, err := eng.SyncAll(cmd.Context())
			if err != nil {
				return err
			}
			out.SyncSummary(results)
			return nil
		},
	}

	return cmd
}

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch registered directories and sync on change",
		Long: `Watch registered directories for filesystem changes and run a
sync after each burst of events settles. Runs until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := newEnv()
			if err != nil {
				return err
			}
			defer env.Close()

			eng, err := env.openEngine()
			if err != nil {
				return err
			}
			out := env.printer(cmd.OutOrStdout())

			// Bring the index current before watching.
			results, err := eng.SyncAll(cmd.Context())
			if err != nil {
				return err
			}
			out.SyncSummary(results)
			out.Printf("watching for changes (Ctrl-C to stop)\n")

			w := &syncer.Watcher{
				Engine:   eng,
				Debounce: env.cfg.Watch.Debounce,
				Logger:   env.logger,
				OnSync: func(results map[string]syncer.Result) {
					out.SyncSummary(results)
				},
			}
			return w.Watch(cmd.Context())
		},
	}

	return cmd
}
