package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresStoreSaveTurn(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	s := &PostgresStore{pool: mock}

	mock.ExpectExec("INSERT INTO game_turns").
		WithArgs(pgxmock.AnyArg(), "s1", 2, "user", "is it alive?", false, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = s.SaveTurn(context.Background(), TurnRecord{SessionID: "s1", Position: 2, Role: "user", Content: "is it alive?"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreSessionTurnsChronological(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	s := &PostgresStore{pool: mock}

	now := time.Now().UTC()
	rows := pgxmock.NewRows([]string{"id", "session_id", "position", "role", "content", "pii_redacted", "created_at"}).
		AddRow("t4", "s1", 4, "assistant", "Yes", false, now).
		AddRow("t3", "s1", 3, "user", "is it alive?", false, now.Add(-time.Second))
	mock.ExpectQuery("SELECT id, session_id, position").WithArgs("s1", 2).WillReturnRows(rows)

	got, err := s.SessionTurns(context.Background(), "s1", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 3, got[0].Position)
	assert.Equal(t, 4, got[1].Position)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreSessionTurnsWithoutLimitReturnsAll(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	s := &PostgresStore{pool: mock}

	now := time.Now().UTC()
	rows := pgxmock.NewRows([]string{"id", "session_id", "position", "role", "content", "pii_redacted", "created_at"})
	for i := 1500; i >= 1; i-- {
		rows.AddRow("t", "s1", i, "user", "q", false, now.Add(time.Duration(i)*time.Millisecond))
	}
	mock.ExpectQuery(`position DESC$`).WithArgs("s1").WillReturnRows(rows)

	got, err := s.SessionTurns(context.Background(), "s1", 0)
	require.NoError(t, err)
	require.Len(t, got, 1500)
	assert.Equal(t, 1, got[0].Position)
	assert.Equal(t, 1500, got[1499].Position)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInitSchemaFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS game_turns").WillReturnError(errors.New("permission denied"))
	err = initSchema(context.Background(), mock)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
}
