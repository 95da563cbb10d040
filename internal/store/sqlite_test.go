package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/promo-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

// --- Content cache ---

func TestSQLite_CacheEntry_SetAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SetEntry(ctx, "fp-abc", []byte(`{"stages":{}}`), time.Hour))

	e, err := st.GetEntry(ctx, "fp-abc")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, "fp-abc", e.Key)
	assert.Equal(t, `{"stages":{}}`, string(e.Value))
	assert.EqualValues(t, 0, e.HitCount)
	assert.True(t, e.ExpiresAt.After(e.CreatedAt))
}

func TestSQLite_CacheEntry_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	e, err := st.GetEntry(context.Background(), "nonexistent")
	require.NoError(t, err)
	assert.Nil(t, e)
}

func TestSQLite_CacheEntry_Expired(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	// Written with a TTL already in the past; readers must not see it.
	require.NoError(t, st.SetEntry(ctx, "stale", []byte("old"), -time.Hour))

	e, err := st.GetEntry(ctx, "stale")
	require.NoError(t, err)
	assert.Nil(t, e)
}

func TestSQLite_CacheEntry_OverwriteResetsHitCount(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SetEntry(ctx, "fp-ow", []byte("v1"), time.Hour))
	require.NoError(t, st.TouchEntry(ctx, "fp-ow"))
	require.NoError(t, st.TouchEntry(ctx, "fp-ow"))

	e, err := st.GetEntry(ctx, "fp-ow")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.EqualValues(t, 2, e.HitCount)

	require.NoError(t, st.SetEntry(ctx, "fp-ow", []byte("v2"), time.Hour))

	e, err = st.GetEntry(ctx, "fp-ow")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, "v2", string(e.Value))
	assert.EqualValues(t, 0, e.HitCount)
}

func TestSQLite_DeleteExpired(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SetEntry(ctx, "live", []byte("a"), time.Hour))
	require.NoError(t, st.SetEntry(ctx, "dead-1", []byte("b"), -time.Minute))
	require.NoError(t, st.SetEntry(ctx, "dead-2", []byte("c"), -time.Hour))

	n, err := st.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	e, err := st.GetEntry(ctx, "live")
	require.NoError(t, err)
	assert.NotNil(t, e)
}

// --- Runs ---

func TestSQLite_Run_Lifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateRun(ctx, "run-1", "Acme Widget"))

	r, err := st.GetRun(ctx, "run-1")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, "Acme Widget", r.ProductName)
	assert.Equal(t, model.RunRunning, r.Status)
	assert.Nil(t, r.Result)

	require.NoError(t, st.SaveRunResult(ctx, "run-1", model.RunCompleted, []byte(`{"score":91}`)))

	r, err = st.GetRun(ctx, "run-1")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, model.RunCompleted, r.Status)
	assert.Equal(t, `{"score":91}`, string(r.Result))
}

func TestSQLite_Run_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	r, err := st.GetRun(context.Background(), "no-such-run")
	require.NoError(t, err)
	assert.Nil(t, r)
}

func TestSQLite_UpdateRunStatus_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.UpdateRunStatus(context.Background(), "ghost", model.RunFailed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLite_ListRuns_FilterAndLimit(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateRun(ctx, "run-a", "Product A"))
	require.NoError(t, st.CreateRun(ctx, "run-b", "Product B"))
	require.NoError(t, st.CreateRun(ctx, "run-c", "Product C"))
	require.NoError(t, st.UpdateRunStatus(ctx, "run-b", model.RunFailed))

	failed, err := st.ListRuns(ctx, RunFilter{Status: model.RunFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "run-b", failed[0].ID)

	limited, err := st.ListRuns(ctx, RunFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	all, err := st.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
