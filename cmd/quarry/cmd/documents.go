package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newDocumentsCmd() *cobra.Command {
	var coll string

	cmd := &cobra.Command{
		Use:   "documents",
		Short: "List indexed documents",
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
			docs, err := st.ListDocuments(cmd.Context(), coll)
			if err != nil {
				return err
			}
			env.printer(cmd.OutOrStdout()).Documents(docs)
			return nil
		},
	}

	cmd.Flags().StringVarP(&coll, "collection", "c", "", "Restrict the listing to a collection")

	return cmd
}

func newCollectionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "collections",
		Short: "List collections present in the index",
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
			infos, err := st.ListCollections(cmd.Context())
			if err != nil {
				return err
			}
			env.printer(cmd.OutOrStdout()).Collections(infos)
			return nil
		},
	}
}

func newPageCmd() *cobra.Command {
	var coll string

	cmd := &cobra.Command{
		Use:   "page <document> <page-number>",
		Short: "Print the raw text of an indexed page",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pageNumber, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("page number must be an integer, got %q", args[1])
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
			text, err := st.GetPageText(cmd.Context(), args[0], pageNumber, coll)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}

	cmd.Flags().StringVarP(&coll, "collection", "c", "", "Restrict the lookup to a collection")

	return cmd
}
