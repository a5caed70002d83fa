package query

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

type Query struct {
	VariableDefinitions []string
	Query               string
}

func (q Query) ToExplainQuery() string {
	eq := ""
	if len(q.VariableDefinitions) > 0 {
		eq += strings.Join(q.VariableDefinitions, ";\n") + ";\n"
	}

	eq += "EXPLAIN " + q.Query
	if !strings.HasSuffix(eq, ";") {
		eq += ";"
	}

	return eq
}

// ToMultiStatement returns the query preceded by its variable definitions, ready to be sent as a single
// multi-statement request.
func (q Query) ToMultiStatement() string {
	if len(q.VariableDefinitions) == 0 {
		return q.Query
	}

	return strings.Join(q.VariableDefinitions, ";\n") + ";\n" + q.Query
}

func (q Query) String() string {
	return q.Query
}

// Join merges the given statements into a single query, in order. Warehouses that accept multiple statements
// per request run them on the same connection, which keeps transactions intact.
func Join(statements []string) *Query {
	cleaned := make([]string, 0, len(statements))
	for _, s := range statements {
		s = strings.TrimSuffix(strings.TrimSpace(s), ";")
		if s == "" {
			continue
		}
		cleaned = append(cleaned, s)
	}

	if len(cleaned) == 0 {
		return &Query{}
	}

	return &Query{Query: strings.Join(cleaned, ";\n") + ";"}
}

var queryCommentRegex = regexp.MustCompile(`(?m)(?s)\/\*.*?\*\/|(^|\s)--.*?\n`)

type renderer interface {
	Render(string) (string, error)
}

// Extractor renders a templated SQL string and splits it into separate queries. `SET` and `DECLARE` statements are
// attached to the queries that follow them instead of being returned on their own.
type Extractor struct {
	Renderer renderer
}

func (e Extractor) ExtractQueriesFromString(content string) ([]*Query, error) {
	cleanedUpQueries := queryCommentRegex.ReplaceAllLiteralString(content+"\n", "\n")

	if e.Renderer != nil {
		rendered, err := e.Renderer.Render(cleanedUpQueries)
		if err != nil {
			return nil, errors.Wrap(err, "failed to render query")
		}
		cleanedUpQueries = rendered
	}

	return splitQueries(cleanedUpQueries), nil
}

func splitQueries(fileContent string) []*Query {
	queries := make([]*Query, 0)
	var sqlVariablesSeenSoFar []string

	for _, query := range strings.Split(fileContent, ";") {
		query = strings.TrimSpace(query)
		if len(query) == 0 {
			continue
		}

		queryLines := strings.Split(query, "\n")
		cleanQueryRows := make([]string, 0, len(queryLines))
		for _, line := range queryLines {
			if len(strings.TrimSpace(line)) == 0 {
				continue
			}

			cleanQueryRows = append(cleanQueryRows, line)
		}

		cleanQuery := strings.TrimSpace(strings.Join(cleanQueryRows, "\n"))
		lowerCaseVersion := strings.ToLower(cleanQuery)
		if strings.HasPrefix(lowerCaseVersion, "set") || strings.HasPrefix(lowerCaseVersion, "declare") {
			sqlVariablesSeenSoFar = append(sqlVariablesSeenSoFar, cleanQuery)
			continue
		}

		if strings.HasPrefix(lowerCaseVersion, "use") {
			continue
		}

		queries = append(queries, &Query{
			VariableDefinitions: sqlVariablesSeenSoFar,
			Query:               cleanQuery,
		})
	}

	return queries
}
