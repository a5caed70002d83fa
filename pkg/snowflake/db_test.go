package snowflake

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/bruin-data/session-summary/pkg/query"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const compilationError = "SQL compilation error"

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	return &DB{conn: sqlx.NewDb(mockDB, "sqlmock")}, mock
}

func TestDB_Select(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		mockConnection func(mock sqlmock.Sqlmock)
		query          query.Query
		want           [][]interface{}
		wantErr        bool
		errorMessage   string
	}{
		{
			name: "simple select query is handled",
			mockConnection: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT 1, 2, 3`).
					WillReturnRows(sqlmock.NewRows([]string{"one", "two", "three"}).AddRow(1, 2, 3))
			},
			query: query.Query{
				Query: "SELECT 1, 2, 3",
			},
			want: [][]interface{}{{int64(1), int64(2), int64(3)}},
		},
		{
			name: "multi-row select query is handled",
			mockConnection: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT userId, sessionId, channel FROM DEV.RAW_DATA.user_session_channel`).
					WillReturnRows(sqlmock.NewRows([]string{"userId", "sessionId", "channel"}).
						AddRow("u1", "s1", "facebook").
						AddRow("u2", "s2", "google"),
					)
			},
			query: query.Query{
				Query: "SELECT userId, sessionId, channel FROM DEV.RAW_DATA.user_session_channel",
			},
			want: [][]interface{}{
				{"u1", "s1", "facebook"},
				{"u2", "s2", "google"},
			},
		},
		{
			name: "variable definitions are sent with the query",
			mockConnection: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SET day = '2024-03-01';\nSELECT $day").
					WillReturnRows(sqlmock.NewRows([]string{"day"}).AddRow("2024-03-01"))
			},
			query: query.Query{
				VariableDefinitions: []string{"SET day = '2024-03-01'"},
				Query:               "SELECT $day",
			},
			want: [][]interface{}{{"2024-03-01"}},
		},
		{
			name: "multi-line errors are flattened",
			mockConnection: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`some broken query`).
					WillReturnError(fmt.Errorf("%s\nsome actual error", compilationError))
			},
			query: query.Query{
				Query: "some broken query",
			},
			wantErr:      true,
			errorMessage: compilationError + "  -  some actual error",
		},
		{
			name: "generic errors are just propagated",
			mockConnection: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`some broken query`).
					WillReturnError(errors.New("something went wrong"))
			},
			query: query.Query{
				Query: "some broken query",
			},
			wantErr:      true,
			errorMessage: "something went wrong",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			db, mock := newMockDB(t)
			tt.mockConnection(mock)

			got, err := db.Select(context.Background(), &tt.query)
			if tt.wantErr {
				require.Error(t, err)
				require.Equal(t, tt.errorMessage, err.Error())
			} else {
				require.NoError(t, err)
			}

			require.Equal(t, tt.want, got)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestDB_RunQueryWithoutResult(t *testing.T) {
	t.Parallel()

	t.Run("multi-statement query is sent at once", func(t *testing.T) {
		t.Parallel()

		db, mock := newMockDB(t)
		q := query.Join([]string{
			"CREATE OR REPLACE TABLE DEV.ANALYTICS.session_summary AS SELECT 1 AS sessionId",
			"ALTER TABLE DEV.ANALYTICS.session_summary ADD PRIMARY KEY (sessionId)",
		})
		mock.ExpectExec(q.Query).WillReturnResult(sqlmock.NewResult(0, 0))

		require.NoError(t, db.RunQueryWithoutResult(context.Background(), q))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("cancellation is not rewritten", func(t *testing.T) {
		t.Parallel()

		db, mock := newMockDB(t)
		mock.ExpectExec("SELECT 1").WillReturnError(context.Canceled)

		err := db.RunQueryWithoutResult(context.Background(), &query.Query{Query: "SELECT 1"})
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestDB_Ping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		mockConnection func(mock sqlmock.Sqlmock)
		wantErr        bool
		errorMessage   string
	}{
		{
			name: "valid connection test",
			mockConnection: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT 1`).
					WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
			},
		},
		{
			name: "failed connection test",
			mockConnection: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT 1`).
					WillReturnError(errors.New("connection error"))
			},
			wantErr:      true,
			errorMessage: "failed to run test query on Snowflake connection: connection error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			db, mock := newMockDB(t)
			tt.mockConnection(mock)

			err := db.Ping(context.Background())
			if tt.wantErr {
				require.Error(t, err)
				require.Contains(t, err.Error(), tt.errorMessage)
			} else {
				require.NoError(t, err)
			}

			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestDB_Dialect(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "snowflake", (&DB{}).Dialect().Name())
}
