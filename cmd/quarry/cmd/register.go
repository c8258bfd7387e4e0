package cmd

import (
	"github.com/spf13/cobra"
)

func newRegisterCmd() *cobra.Command {
	var coll string

	cmd := &cobra.Command{
		Use:   "register <directory>",
		Short: "Register a directory for sync",
		Long: `Register a directory so 'quarry sync' keeps its documents
indexed. Each directory maps to exactly one collection.

Without --collection, a unique name is derived from the directory
path.

Examples:
  quarry register ~/notes
  quarry register ~/papers --collection research`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newEnv()
			if err != nil {
				return err
			}
			defer env.Close()

			reg, err := env.openRegistry()
			if err != nil {
				return err
			}

			name := coll
			if name == "" {
				name, err = reg.DeriveUniqueCollection(cmd.Context(), args[0])
				if err != nil {
					return err
				}
			}

			registration, err := reg.Register(cmd.Context(), args[0], name)
			if err != nil {
				return err
			}

			out := env.printer(cmd.OutOrStdout())
			out.Success("registered %s as collection %q", registration.Directory, registration.Collection)
			out.Printf("run 'quarry sync' to index it\n")
			return nil
		},
	}

	cmd.Flags().StringVarP(&coll, "collection", "c", "", "Collection name (derived from the path if omitted)")

	return cmd
}

func newDeregisterCmd() *cobra.Command {
	var keep bool

	cmd := &cobra.Command{
		Use:   "deregister <collection>",
		Short: "Deregister a synced directory",
		Long: `Remove a directory registration by its collection name.

Indexed documents from the collection are removed from the store as
well, unless --keep-documents is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newEnv()
			if err != nil {
				return err
			}
			defer env.Close()

			reg, err := env.openRegistry()
			if err != nil {
				return err
			}

			docs, err := reg.Deregister(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := env.printer(cmd.OutOrStdout())
			out.Success("deregistered collection %q (%d tracked documents)", args[0], len(docs))

			if keep || len(docs) == 0 {
				return nil
			}
			st, err := env.openStore()
			if err != nil {
				return err
			}
			deleted, err := st.DeleteCollection(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out.Success("removed %d chunks from the index", deleted)
			return nil
		},
	}

	cmd.Flags().BoolVar(&keep, "keep-documents", false, "Leave indexed documents in the store")

	return cmd
}

func newRegistrationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "registrations",
		Short: "List registered directories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := newEnv()
			if err != nil {
				return err
			}
			defer env.Close()

			reg, err := env.openRegistry()
			if err != nil {
				return err
			}
			regs, err := reg.ListRegistrations(cmd.Context())
			if err != nil {
				return err
			}
			env.printer(cmd.OutOrStdout()).Registrations(regs)
			return nil
		},
	}
}
