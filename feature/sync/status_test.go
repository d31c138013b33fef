package sync_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"calbridge/feature/sync"
	"calbridge/feature/sync/state"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeStatusStore struct {
	stats    state.Stats
	sessions []state.Session
	err      error

	gotLimit int
}

func (f *fakeStatusStore) Stats(ctx context.Context) (state.Stats, error) {
	return f.stats, f.err
}

func (f *fakeStatusStore) ListSessions(ctx context.Context, limit int) ([]state.Session, error) {
	f.gotLimit = limit
	return f.sessions, f.err
}

func TestStatusEndpoint(t *testing.T) {
	last := time.Date(2024, 5, 6, 8, 0, 0, 0, time.UTC)
	store := &fakeStatusStore{stats: state.Stats{
		Snapshots:          12,
		Mappings:           12,
		Sessions:           3,
		LastSuccessfulSync: &last,
	}}
	app := sync.NewStatusApp(store, zap.NewNop())

	resp, err := app.Test(httptest.NewRequest("GET", "/status", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	var got state.Stats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, int64(12), got.Snapshots)
	require.NotNil(t, got.LastSuccessfulSync)
	assert.True(t, got.LastSuccessfulSync.Equal(last))
}

func TestStatusEndpoint_StoreError(t *testing.T) {
	store := &fakeStatusStore{err: errors.New("db locked")}
	app := sync.NewStatusApp(store, zap.NewNop())

	resp, err := app.Test(httptest.NewRequest("GET", "/status", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}

func TestSessionsEndpoint(t *testing.T) {
	store := &fakeStatusStore{sessions: []state.Session{
		{ID: 2, Status: state.SessionCompleted},
		{ID: 1, Status: state.SessionFailed},
	}}
	app := sync.NewStatusApp(store, zap.NewNop())

	t.Run("DefaultLimit", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest("GET", "/sessions", nil))
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, 20, store.gotLimit)

		var got []state.Session
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
		assert.Len(t, got, 2)
	})

	t.Run("ExplicitLimit", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest("GET", "/sessions?limit=5", nil))
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, 5, store.gotLimit)
	})

	t.Run("BadLimit", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest("GET", "/sessions?limit=zero", nil))
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})
}
