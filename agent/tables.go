package agent

import "strings"

// tablesInQuery extracts the table names a query references, by
// scanning identifiers that follow FROM and JOIN keywords. Quoted
// ("Order Details") and bracketed ([Order Details]) names are
// supported; subqueries contribute their inner references when the
// scan reaches their own FROM/JOIN keywords. Order of first reference
// is preserved, duplicates removed.
//
// This static analysis drives structured citations: only tables the
// executed query actually names are cited.
func tablesInQuery(query string) []string {
	var tables []string
	seen := make(map[string]bool)

	fields := splitSQL(query)
	for i := 0; i < len(fields)-1; i++ {
		kw := strings.ToUpper(fields[i])
		if kw != "FROM" && kw != "JOIN" {
			continue
		}
		name := fields[i+1]
		if name == "" || name == "(" || strings.HasPrefix(name, "(") {
			continue
		}
		key := strings.ToLower(name)
		if !seen[key] {
			seen[key] = true
			tables = append(tables, name)
		}
	}

	return tables
}

// splitSQL tokenizes a query into whitespace/comma-separated fields,
// keeping quoted and bracketed identifiers intact and stripping the
// quoting characters.
func splitSQL(query string) []string {
	var fields []string
	var cur strings.Builder

	flush := func() {
		if cur.Len() > 0 {
			fields = append(fields, strings.TrimSuffix(cur.String(), ";"))
			cur.Reset()
		}
	}

	i := 0
	for i < len(query) {
		c := query[i]
		switch {
		case c == '"' || c == '`' || c == '\'':
			flush()
			end := strings.IndexByte(query[i+1:], c)
			if end < 0 {
				fields = append(fields, query[i+1:])
				return fields
			}
			fields = append(fields, query[i+1:i+1+end])
			i += end + 2
		case c == '[':
			flush()
			end := strings.IndexByte(query[i+1:], ']')
			if end < 0 {
				fields = append(fields, query[i+1:])
				return fields
			}
			fields = append(fields, query[i+1:i+1+end])
			i += end + 2
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == ',':
			flush()
			i++
		case c == '(':
			flush()
			fields = append(fields, "(")
			i++
		case c == ')':
			flush()
			i++
		default:
			cur.WriteByte(c)
			i++
		}
	}
	flush()

	return fields
}
