//go:build !no_duckdb

package duck

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/bruin-data/session-summary/pkg/query"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockClient(t *testing.T) (*Client, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual), sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	return &Client{connection: sqlx.NewDb(mockDB, "sqlmock"), config: Config{Path: t.Name() + ".db"}}, mock
}

func TestClient_Select(t *testing.T) {
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
			name: "empty result is not nil",
			mockConnection: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT sessionId, occurrence_count FROM ANALYTICS.session_duplicates ORDER BY sessionId`).
					WillReturnRows(sqlmock.NewRows([]string{"sessionId", "occurrence_count"}))
			},
			query: query.Query{
				Query: "SELECT sessionId, occurrence_count FROM ANALYTICS.session_duplicates ORDER BY sessionId",
			},
			want: [][]interface{}{},
		},
		{
			name: "invalid query is properly handled",
			mockConnection: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`some broken query`).
					WillReturnError(errors.New("some actual error"))
			},
			query: query.Query{
				Query: "some broken query",
			},
			wantErr:      true,
			errorMessage: "some actual error",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client, mock := newMockClient(t)
			tt.mockConnection(mock)

			got, err := client.Select(context.Background(), &tt.query)
			if tt.wantErr {
				require.Error(t, err)
				require.Equal(t, tt.errorMessage, err.Error())
			} else {
				require.NoError(t, err)
				require.Equal(t, tt.want, got)
			}

			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestClient_RunQueryWithoutResult(t *testing.T) {
	t.Parallel()

	q := query.Join([]string{"DROP TABLE IF EXISTS ANALYTICS.session_summary", "CREATE TABLE ANALYTICS.session_summary (sessionId VARCHAR)"})

	tests := []struct {
		name           string
		mockConnection func(mock sqlmock.Sqlmock)
		wantErr        string
	}{
		{
			name: "statements are committed together",
			mockConnection: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(q.Query).WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectCommit()
			},
		},
		{
			name: "a failing statement rolls the transaction back",
			mockConnection: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(q.Query).WillReturnError(errors.New("Catalog Error: Schema with name ANALYTICS does not exist"))
				mock.ExpectRollback()
			},
			wantErr: "Catalog Error: Schema with name ANALYTICS does not exist",
		},
		{
			name: "begin errors are wrapped",
			mockConnection: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin().WillReturnError(errors.New("database is locked"))
			},
			wantErr: "failed to start a transaction: database is locked",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client, mock := newMockClient(t)
			tt.mockConnection(mock)

			err := client.RunQueryWithoutResult(context.Background(), q)
			if tt.wantErr == "" {
				require.NoError(t, err)
			} else {
				require.EqualError(t, err, tt.wantErr)
			}

			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestClient_Ping(t *testing.T) {
	t.Parallel()

	client, mock := newMockClient(t)
	mock.ExpectPing().WillReturnError(errors.New("database is locked"))

	err := client.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is locked")
}

func TestClient_Dialect(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "duckdb", (&Client{}).Dialect().Name())
}
