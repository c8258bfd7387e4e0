package store

import "strings"

// Filters restricts a search or delete to rows matching every set
// field. Zero-value fields are ignored. Values are matched by exact
// equality; user-supplied strings are escaped before they reach SQL.
type Filters struct {
	DocumentName string
	Collection   string
}

func (f Filters) empty() bool {
	return f.DocumentName == "" && f.Collection == ""
}

// wherePredicate renders the filters as a SQL WHERE fragment without
// the WHERE keyword, or "" when no filters are set.
func (f Filters) wherePredicate() string {
	var parts []string
	if f.DocumentName != "" {
		parts = append(parts, textEq("document_name", f.DocumentName))
	}
	if f.Collection != "" {
		parts = append(parts, textEq("collection", f.Collection))
	}
	return strings.Join(parts, " AND ")
}

// escapeLiteral doubles single quotes so a value can be embedded in a
// SQL string literal. Names like O'Reilly survive intact.
func escapeLiteral(value string) string {
	return strings.ReplaceAll(value, "'", "''")
}

func textEq(column, value string) string {
	return column + " = '" + escapeLiteral(value) + "'"
}
