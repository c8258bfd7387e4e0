package cmd

import (
	"github.com/spf13/cobra"

	"github.com/quarrylabs/quarry/internal/pipeline"
)

func newIngestCmd() *cobra.Command {
	var coll string
	var name string
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Index one or more document files",
		Long: `Index document files into the vector store.

Supported formats: plain text (.txt), Markdown (.md, .markdown),
and LaTeX (.tex). Each file is split into pages, chunked, embedded,
and stored.

Examples:
  quarry ingest notes.md
  quarry ingest paper.tex --collection papers
  quarry ingest README.md --name project-readme --overwrite`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newEnv()
			if err != nil {
				return err
			}
			defer env.Close()

			p, err := env.openPipeline()
			if err != nil {
				return err
			}
			out := env.printer(cmd.OutOrStdout())

			if name != "" && len(args) > 1 {
				out.Warning("--name applies to a single file; ignoring it")
				name = ""
			}

			for _, path := range args {
				res, err := p.IngestFile(cmd.Context(), path, pipeline.Options{
					Collection:   coll,
					DocumentName: name,
					Overwrite:    overwrite,
				})
				if err != nil {
					return err
				}
				out.Success("indexed %s into %q (%d pages, %d chunks)",
					res.DocumentName, res.Collection, res.Pages, res.Chunks)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&coll, "collection", "c", "", "Collection to file the documents into")
	cmd.Flags().StringVar(&name, "name", "", "Document name override (single file only)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace existing chunks for the same document")

	return cmd
}
