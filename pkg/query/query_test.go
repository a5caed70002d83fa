package query

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRenderer struct {
	mock.Mock
}

func (m *mockRenderer) Render(template string) (string, error) {
	args := m.Called(template)
	if args.Get(0) == "default" {
		return template, nil
	}

	return args.String(0), args.Error(1)
}

func TestExtractor_ExtractQueriesFromString(t *testing.T) {
	t.Parallel()

	noOpRenderer := func(mr *mockRenderer) {
		mr.On("Render", mock.Anything).Return("default", nil)
	}

	tests := []struct {
		name          string
		setupRenderer func(mr *mockRenderer)
		content       string
		want          []*Query
		wantErr       bool
	}{
		{
			name:          "only variables, no query",
			content:       "set variable1 = asd; set variable2 = 123;",
			setupRenderer: noOpRenderer,
			want:          make([]*Query, 0),
		},
		{
			name:          "single query",
			content:       "select count(*) from task_runs;",
			setupRenderer: noOpRenderer,
			want: []*Query{
				{Query: "select count(*) from task_runs"},
			},
		},
		{
			name:    "single query, rendered properly",
			content: "select count(*) from runs where day = '{{ start_date }}';",
			setupRenderer: func(mr *mockRenderer) {
				mr.On("Render", mock.Anything).
					Return("select count(*) from runs where day = '2024-01-01';", nil)
			},
			want: []*Query{
				{Query: "select count(*) from runs where day = '2024-01-01'"},
			},
		},
		{
			name: "multiple queries with comments and variables",
			content: `-- check the upstream
set day = '2024-01-01';
/* the run table
   is partitioned */
select count(*) from runs where day = $day;;
use schema ops;
select 1;`,
			setupRenderer: noOpRenderer,
			want: []*Query{
				{
					VariableDefinitions: []string{"set day = '2024-01-01'"},
					Query:               "select count(*) from runs where day = $day",
				},
				{
					VariableDefinitions: []string{"set day = '2024-01-01'"},
					Query:               "select 1",
				},
			},
		},
		{
			name:    "render errors are propagated",
			content: "select {{ missing }}",
			setupRenderer: func(mr *mockRenderer) {
				mr.On("Render", mock.Anything).Return("", errors.New("missing variable 'missing'"))
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mr := new(mockRenderer)
			tt.setupRenderer(mr)

			got, err := Extractor{Renderer: mr}.ExtractQueriesFromString(tt.content)
			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tt.want, got)
			mr.AssertExpectations(t)
		})
	}
}

func TestJoin(t *testing.T) {
	t.Parallel()

	q := Join([]string{"BEGIN TRANSACTION", "  DROP TABLE IF EXISTS a;", "", "CREATE TABLE a (id INT)", "COMMIT"})
	require.Equal(t, "BEGIN TRANSACTION;\nDROP TABLE IF EXISTS a;\nCREATE TABLE a (id INT);\nCOMMIT;", q.String())

	require.Equal(t, "", Join(nil).String())
}

func TestQuery_ToMultiStatement(t *testing.T) {
	t.Parallel()

	q := Query{VariableDefinitions: []string{"set a = 1", "set b = 2"}, Query: "select $a + $b"}
	require.Equal(t, "set a = 1;\nset b = 2;\nselect $a + $b", q.ToMultiStatement())
	require.Equal(t, "set a = 1;\nset b = 2;\nEXPLAIN select $a + $b;", q.ToExplainQuery())
	require.Equal(t, "select 1", Query{Query: "select 1"}.ToMultiStatement())
}
