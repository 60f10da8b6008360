package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) *Store {
	t.Helper()

	db, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewStore(db)
}

func TestRecordAndRecent(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	code := 1
	_, err := st.Record(ctx, Entry{
		Tool:       "decode_apk",
		Target:     "/apks/app.apk",
		Status:     "error",
		ErrorKind:  "ProcessFailure",
		Message:    "apktool exited with code 1",
		ExitCode:   &code,
		Duration:   1200 * time.Millisecond,
		StderrTail: "brut.androlib.AndrolibException",
	})
	require.NoError(t, err)

	id, err := st.Record(ctx, Entry{
		Tool:     "decode_apk",
		Target:   "/apks/app.apk",
		Status:   "ok",
		Duration: 900 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	entries, err := st.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Newest first.
	assert.Equal(t, "ok", entries[0].Status)
	assert.Nil(t, entries[0].ExitCode)
	assert.Equal(t, "error", entries[1].Status)
	require.NotNil(t, entries[1].ExitCode)
	assert.Equal(t, 1, *entries[1].ExitCode)
	assert.Equal(t, 1200*time.Millisecond, entries[1].Duration)
}

func TestRecentLimit(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := st.Record(ctx, Entry{
			Tool:      "list_resources",
			Status:    "ok",
			CreatedAt: time.Now().UTC().Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	entries, err := st.Recent(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestPrune(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	_, err := st.Record(ctx, Entry{
		Tool:      "decode_apk",
		Status:    "ok",
		CreatedAt: time.Now().UTC().Add(-48 * time.Hour),
	})
	require.NoError(t, err)
	_, err = st.Record(ctx, Entry{Tool: "decode_apk", Status: "ok"})
	require.NoError(t, err)

	deleted, err := st.Prune(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	entries, err := st.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestPruneRejectsBadRetention(t *testing.T) {
	st := setupStore(t)
	_, err := st.Prune(context.Background(), 0)
	require.Error(t, err)
}
