package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/promo-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_GetEntry_Miss(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT key, value, created_at, expires_at, hit_count`).
		WithArgs("fp-miss").
		WillReturnError(pgx.ErrNoRows)

	e, err := s.GetEntry(context.Background(), "fp-miss")
	require.NoError(t, err)
	assert.Nil(t, e)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetEntry_Hit(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT key, value, created_at, expires_at, hit_count`).
		WithArgs("fp-hit").
		WillReturnRows(pgxmock.NewRows([]string{"key", "value", "created_at", "expires_at", "hit_count"}).
			AddRow("fp-hit", []byte(`{"stages":{}}`), now, now.Add(time.Hour), int64(3)))

	e, err := s.GetEntry(context.Background(), "fp-hit")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, "fp-hit", e.Key)
	assert.EqualValues(t, 3, e.HitCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetEntry_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`ON CONFLICT`).
		WithArgs("fp-set", []byte("payload"), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.SetEntry(context.Background(), "fp-set", []byte("payload"), 24*time.Hour)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_TouchEntry(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE content_cache SET hit_count = hit_count \+ 1`).
		WithArgs("fp-touch").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.TouchEntry(context.Background(), "fp-touch"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteExpired(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM content_cache WHERE expires_at`).
		WillReturnResult(pgxmock.NewResult("DELETE", 4))

	n, err := s.DeleteExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs("run-1", "Acme Widget", string(model.RunRunning), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.CreateRun(context.Background(), "run-1", "Acme Widget"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateRunStatus_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET status`).
		WithArgs(string(model.RunFailed), "ghost").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateRunStatus(context.Background(), "ghost", model.RunFailed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveRunResult(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET status = \$1, result = \$2`).
		WithArgs(string(model.RunCompleted), []byte(`{"score":88}`), "run-2").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.SaveRunResult(context.Background(), "run-2", model.RunCompleted, []byte(`{"score":88}`))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_Miss(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, product_name, status, result, created_at, updated_at FROM runs WHERE id = \$1`).
		WithArgs("no-such-run").
		WillReturnError(pgx.ErrNoRows)

	r, err := s.GetRun(context.Background(), "no-such-run")
	require.NoError(t, err)
	assert.Nil(t, r)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns_StatusFilter(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT id, product_name, status, result, created_at, updated_at FROM runs WHERE true AND status = \$1`).
		WithArgs(string(model.RunCompleted), 50).
		WillReturnRows(pgxmock.NewRows([]string{"id", "product_name", "status", "result", "created_at", "updated_at"}).
			AddRow("run-a", "Product A", string(model.RunCompleted), []byte(`{}`), now, now))

	runs, err := s.ListRuns(context.Background(), RunFilter{Status: model.RunCompleted})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-a", runs[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
