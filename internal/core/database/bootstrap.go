package db

import (
	"fmt"
	"strings"

	"github.com/markdave123-py/docpipe/internal/core"
)

// schemaStatements returns the DDL that replaces table with a fresh copy of columns.
// Dropping first keeps repeated runs from failing on an existing table and lets the
// schema follow configuration changes.
func schemaStatements(table string, columns []core.Column) ([]string, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s: no columns configured", table)
	}
	qt, err := quoteIdent(table)
	if err != nil {
		return nil, err
	}

	defs := make([]string, 0, len(columns))
	seen := make(map[string]bool, len(columns))
	for _, c := range columns {
		qc, err := quoteIdent(c.Name)
		if err != nil {
			return nil, err
		}
		if seen[strings.ToLower(c.Name)] {
			return nil, fmt.Errorf("duplicate column %q", c.Name)
		}
		seen[strings.ToLower(c.Name)] = true
		if err := validateType(c.Type); err != nil {
			return nil, err
		}
		defs = append(defs, fmt.Sprintf("%s %s", qc, strings.TrimSpace(c.Type)))
	}

	return []string{
		fmt.Sprintf("DROP TABLE IF EXISTS %s", qt),
		fmt.Sprintf("CREATE TABLE %s (\n\t%s\n)", qt, strings.Join(defs, ",\n\t")),
	}, nil
}
