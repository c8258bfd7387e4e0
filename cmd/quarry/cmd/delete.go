package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quarrylabs/quarry/internal/store"
)

func newDeleteCmd() *cobra.Command {
	var doc string
	var coll string

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete indexed chunks by document or collection",
		Long: `Delete indexed chunks matching a document name, a collection, or
both. At least one filter is required.

Examples:
  quarry delete --document notes.md
  quarry delete --collection scratch
  quarry delete --document draft.txt --collection papers`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if doc == "" && coll == "" {
				return fmt.Errorf("at least one of --document or --collection is required")
			}

			env, err := newEnv()
			if err != nil {
				return err
			}
			defer env.Close()

			st, err := env.openStore()
			if err != nil {
				return err
			}
			deleted, err := st.Delete(cmd.Context(), store.Filters{
				DocumentName: doc,
				Collection:   coll,
			})
			if err != nil {
				return err
			}
			env.printer(cmd.OutOrStdout()).Success("deleted %d chunks", deleted)
			return nil
		},
	}

	cmd.Flags().StringVarP(&doc, "document", "d", "", "Document name to delete")
	cmd.Flags().StringVarP(&coll, "collection", "c", "", "Collection to delete")

	return cmd
}

func newOptimizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "optimize",
		Short: "Compact the store and rebuild the collection index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := newEnv()
			if err != nil {
				return err
			}
			defer env.Close()

			st, err := env.openStore()
			if err != nil {
				return err
			}
			if err := st.CreateCollectionIndex(cmd.Context()); err != nil {
				return err
			}
			if err := st.Optimize(cmd.Context()); err != nil {
				return err
			}
			env.printer(cmd.OutOrStdout()).Success("store optimized")
			return nil
		},
	}
}
