package session

import "strings"

// ExtractTableName returns the token following the last FROM keyword of a SELECT statement.
// It is a whitespace-token heuristic, quoted identifiers, joins and subqueries are not handled.
func ExtractTableName(sql string) (string, bool) {
	upper := strings.ToUpper(strings.TrimSpace(sql))
	if !strings.HasPrefix(upper, "SELECT") || !strings.Contains(upper, "FROM") {
		return "", false
	}

	name, found := "", false
	tokens := strings.Fields(sql)
	for i, tok := range tokens {
		if !strings.EqualFold(tok, "FROM") {
			continue
		}
		if i+1 == len(tokens) {
			name, found = "", false
			continue
		}
		name, found = tokens[i+1], true
	}
	return name, found
}
