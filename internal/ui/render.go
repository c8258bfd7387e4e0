package ui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/quarrylabs/quarry/internal/registry"
	"github.com/quarrylabs/quarry/internal/store"
	"github.com/quarrylabs/quarry/internal/syncer"
)

const snippetLimit = 240

// SearchResults writes ranked search hits with scores and source
// locations.
func (p *Printer) SearchResults(rows []store.Row) {
	if len(rows) == 0 {
		p.Printf("no results\n")
		return
	}
	for i, row := range rows {
		score := p.styles.Score.Render(fmt.Sprintf("%.3f", row.Similarity()))
		source := p.styles.Dim.Render(fmt.Sprintf("%s · %s · page %d/%d",
			row.Collection, row.DocumentName, row.PageNumber, row.TotalPages))
		fmt.Fprintf(p.out, "%s %s  %s\n", p.styles.Title.Render(fmt.Sprintf("%d.", i+1)), score, source)
		fmt.Fprintf(p.out, "   %s\n", snippet(row.Text))
	}
}

// Documents writes a document listing with per-document rollups.
func (p *Printer) Documents(docs []store.DocumentInfo) {
	if len(docs) == 0 {
		p.Printf("no documents indexed\n")
		return
	}
	for _, d := range docs {
		fmt.Fprintf(p.out, "%s %s\n",
			p.styles.Title.Render(d.DocumentName),
			p.styles.Dim.Render("("+d.Collection+")"))
		p.Field("pages", fmt.Sprintf("%d/%d", d.PagesIndexed, d.TotalPages))
		p.Field("chunks", fmt.Sprintf("%d", d.ChunkCount))
		p.Field("last ingested", d.LastIngestedAt.Local().Format(time.RFC3339))
	}
}

// Collections writes the per-collection rollup listing.
func (p *Printer) Collections(colls []store.CollectionInfo) {
	if len(colls) == 0 {
		p.Printf("no collections\n")
		return
	}
	for _, c := range colls {
		fmt.Fprintf(p.out, "%s  %s\n",
			p.styles.Title.Render(c.Collection),
			p.styles.Dim.Render(fmt.Sprintf("%d documents, %d chunks", c.DocumentCount, c.ChunkCount)))
	}
}

// Registrations writes the registered directory listing.
func (p *Printer) Registrations(regs []registry.Registration) {
	if len(regs) == 0 {
		p.Printf("no directories registered\n")
		return
	}
	for _, r := range regs {
		fmt.Fprintf(p.out, "%s  %s\n",
			p.styles.Title.Render(r.Collection),
			p.styles.Value.Render(r.Directory))
	}
}

// SyncSummary writes one line per synced collection plus any per-file
// failures.
func (p *Printer) SyncSummary(results map[string]syncer.Result) {
	if len(results) == 0 {
		p.Printf("no directories registered\n")
		return
	}

	colls := make([]string, 0, len(results))
	for coll := range results {
		colls = append(colls, coll)
	}
	sort.Strings(colls)

	for _, coll := range colls {
		res := results[coll]
		line := fmt.Sprintf("%s: %d ingested, %d deleted, %d unchanged",
			coll, res.Ingested, res.Deleted, res.Skipped)
		if res.Failed > 0 {
			p.Warning("%s, %d failed", line, res.Failed)
			for _, fe := range res.Errors {
				p.Error("  %s: %s", fe.Path, fe.Message)
			}
			continue
		}
		p.Success("%s", line)
	}
}

func snippet(text string) string {
	s := strings.Join(strings.Fields(text), " ")
	if len(s) <= snippetLimit {
		return s
	}
	cut := snippetLimit
	if idx := strings.LastIndex(s[:cut], " "); idx > 0 {
		cut = idx
	}
	return s[:cut] + "..."
}
