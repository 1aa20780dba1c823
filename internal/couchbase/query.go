package couchbase

import (
	"fmt"
	"strings"

	"stealthcompany.com/dentalapp/internal/patient"
)

// listStatement builds the N1QL page query and its named parameters. The
// search term is matched with CONTAINS, so it is never interpreted as a
// pattern.
func listStatement(ks string, q patient.Query) (string, map[string]any) {
	var b strings.Builder
	params := map[string]any{
		"claimPrefix": claimPrefix + "%",
		"skip":        q.Skip,
		"limit":       q.Limit,
	}

	fmt.Fprintf(&b, "SELECT META(p).id AS id, p AS doc FROM %s AS p WHERE META(p).id NOT LIKE $claimPrefix", ks)
	if q.Search != "" {
		params["search"] = strings.ToLower(q.Search)
		clauses := make([]string, 0, len(patient.SearchFields))
		for _, field := range patient.SearchFields {
			clauses = append(clauses, fmt.Sprintf("CONTAINS(LOWER(p.`%s`), $search)", field))
		}
		fmt.Fprintf(&b, " AND (%s)", strings.Join(clauses, " OR "))
	}
	b.WriteString(" ORDER BY META(p).id OFFSET $skip LIMIT $limit")

	return b.String(), params
}

// indexStatements returns idempotent DDL for indexes. Uniqueness is not
// expressible in N1QL; email claims enforce it instead.
func indexStatements(ks string, indexes []patient.Index) []string {
	stmts := []string{fmt.Sprintf("CREATE PRIMARY INDEX IF NOT EXISTS ON %s", ks)}
	for _, idx := range indexes {
		keys := make([]string, 0, len(idx.Keys))
		for _, k := range idx.Keys {
			keys = append(keys, fmt.Sprintf("`%s`", k))
		}
		stmts = append(stmts, fmt.Sprintf("CREATE INDEX `%s` IF NOT EXISTS ON %s(%s)", idx.Name, ks, strings.Join(keys, ", ")))
	}
	return stmts
}
