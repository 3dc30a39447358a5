package db

import (
	"fmt"
	"strings"
	"unicode"
)

// SearchExports finds entries whose subject, sender or file name match query.
// An empty query lists recent entries.
func (db *DB) SearchExports(query string, limit int) ([]*Export, error) {
	fuzzyQuery := ftsQuery(query)
	if fuzzyQuery == "" {
		return db.ListExports(limit, 0)
	}

	rows, err := db.Query(`
		SELECT
			e.id, e.session_id, e.kind, e.subject, e.sender, e.filename, e.folder,
			e.success, e.error, e.size, e.created_at
		FROM exports e
		JOIN exports_fts ON e.rowid = exports_fts.rowid
		WHERE exports_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, fuzzyQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search exports: %w", err)
	}
	return collectExports(rows)
}

// ftsQuery turns free text into an FTS5 prefix query: "john doe" -> "john"* "doe"*
func ftsQuery(query string) string {
	var terms []string
	for _, term := range strings.Fields(query) {
		// Terms without a word character tokenize to nothing
		if strings.IndexFunc(term, isWordRune) < 0 {
			continue
		}
		// Quoting keeps FTS5 operators in user input literal
		terms = append(terms, `"`+strings.ReplaceAll(term, `"`, `""`)+`"*`)
	}
	return strings.Join(terms, " ")
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
