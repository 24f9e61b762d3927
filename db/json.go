package db

import "fmt"

// JSONValueLike returns a predicate that holds when some scalar value nested
// anywhere in the JSON document stored in col, lowercased, matches the LIKE
// pattern. Object keys never match. The pattern uses \ as its escape.
func JSONValueLike(dialect, col, pattern string) (string, []any) {
	if dialect == DriverPostgres {
		return fmt.Sprintf(`EXISTS (SELECT 1 FROM jsonb_path_query(%s, 'strict $.**') AS v `+
			`WHERE jsonb_typeof(v) IN ('string', 'number') AND LOWER(v #>> '{}') LIKE ? ESCAPE '\')`, col),
			[]any{pattern}
	}
	return fmt.Sprintf(`EXISTS (SELECT 1 FROM json_tree(%s) AS j `+
		`WHERE j.type IN ('text', 'integer', 'real') AND LOWER(CAST(j.atom AS TEXT)) LIKE ? ESCAPE '\')`, col),
		[]any{pattern}
}
