package mcp

import "github.com/quarrylabs/quarry/internal/extract"

// extractFormat maps the tool's format string onto the extractor's
// format type. Unknown values pass through and fail the extractor's
// own validation.
func extractFormat(s string) extract.Format {
	switch s {
	case "plain":
		return extract.FormatPlain
	case "markdown":
		return extract.FormatMarkdown
	case "latex":
		return extract.FormatLatex
	case "auto":
		return extract.FormatAuto
	default:
		return extract.Format(s)
	}
}
