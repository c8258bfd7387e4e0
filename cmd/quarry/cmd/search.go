package cmd

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quarrylabs/quarry/internal/store"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	limit      int
	collection string
	document   string
	format     string // "text", "json"
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed documents",
		Long: `Search indexed documents by semantic similarity.

The query is embedded with the configured backend and matched
against stored chunks by cosine similarity.

Examples:
  quarry search "tidal locking"
  quarry search "error handling" --collection notes --limit 5
  quarry search "migration steps" --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().StringVarP(&opts.collection, "collection", "c", "", "Restrict results to a collection")
	cmd.Flags().StringVarP(&opts.document, "document", "d", "", "Restrict results to a document name")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

// searchResult is the JSON shape of one search hit.
type searchResult struct {
	Text         string  `json:"text"`
	DocumentName string  `json:"document_name"`
	Collection   string  `json:"collection"`
	PageNumber   int     `json:"page_number"`
	TotalPages   int     `json:"total_pages"`
	Similarity   float64 `json:"similarity"`
}

func runSearch(cmd *cobra.Command, query string, opts searchOptions) error {
	env, err := newEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	st, err := env.openStore()
	if err != nil {
		return err
	}
	embedder, err := env.openEmbedder()
	if err != nil {
		return err
	}

	vector, err := embedder.Embed(cmd.Context(), query)
	if err != nil {
		return err
	}
	rows, err := st.Search(cmd.Context(), vector, opts.limit, store.Filters{
		Collection:   opts.collection,
		DocumentName: opts.document,
	})
	if err != nil {
		return err
	}

	if opts.format == "json" {
		results := make([]searchResult, 0, len(rows))
		for _, row := range rows {
			results = append(results, searchResult{
				Text:         row.Text,
				DocumentName: row.DocumentName,
				Collection:   row.Collection,
				PageNumber:   row.PageNumber,
				TotalPages:   row.TotalPages,
				Similarity:   row.Similarity(),
			})
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	env.printer(cmd.OutOrStdout()).SearchResults(rows)
	return nil
}
