package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/quarrylabs/quarry/internal/mcp"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdio",
		Long: `Run the Model Context Protocol server on stdio.

Exposes search, ingest_content, get_page, list_documents,
list_collections, and sync as MCP tools. Stdout carries the protocol
stream; diagnostics go to the log file.`,
		Args: cobra.NoArgs,
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
			p, err := env.openPipeline()
			if err != nil {
				return err
			}
			eng, err := env.openEngine()
			if err != nil {
				return err
			}
			embedder, err := env.openEmbedder()
			if err != nil {
				return err
			}

			env.logger.Info("starting MCP server",
				slog.String("backend", embedder.ModelName()),
				slog.Int("dimension", st.Dimension()))

			server := mcp.NewServer(st, p, eng, embedder, env.logger)
			return server.Run(cmd.Context())
		},
	}
}
