package controllers

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/amaumene/chansync/internal/models"
	"github.com/amaumene/chansync/internal/services/backend"
	"github.com/amaumene/chansync/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFollowBackend struct {
	mu        sync.Mutex
	requests  []models.FollowRequest
	added     []string
	addedErr  error
	responses map[string]bool
	sent      []string
}

func (f *fakeFollowBackend) ListFollowRequests(ctx context.Context) ([]models.FollowRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.FollowRequest(nil), f.requests...), nil
}

func (f *fakeFollowBackend) GetAddedUsernames(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addedErr != nil {
		return nil, f.addedErr
	}
	return append([]string(nil), f.added...), nil
}

func (f *fakeFollowBackend) SendFollowRequest(ctx context.Context, toUsername string) (*models.FollowRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, toUsername)
	return &models.FollowRequest{ID: "new", ToUsername: toUsername, Status: models.FollowRequestPending}, nil
}

func (f *fakeFollowBackend) RespondFollowRequest(ctx context.Context, id string, accept bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.responses == nil {
		f.responses = make(map[string]bool)
	}
	f.responses[id] = accept
	return nil
}

func newTestFollowController(t *testing.T, fb *fakeFollowBackend) (*FollowController, *models.Database) {
	t.Helper()
	db, err := models.NewDatabase(filepath.Join(t.TempDir(), "follow.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewFollowController(testConfig(), fb, db, utils.NewNopLogger()), db
}

func TestFollowCacheMasksEmptyResponse(t *testing.T) {
	fb := &fakeFollowBackend{added: []string{"alice", "bob"}}
	c, db := newTestFollowController(t, fb)

	require.NoError(t, c.Refresh(context.Background()))
	assert.Equal(t, []string{"alice", "bob"}, c.AddedUsernames())

	cached, err := db.GetAddedUsernames("ME@example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, cached.Usernames)

	// A transient empty response does not wipe the list
	fb.mu.Lock()
	fb.added = nil
	fb.mu.Unlock()
	require.NoError(t, c.Refresh(context.Background()))
	assert.Equal(t, []string{"alice", "bob"}, c.AddedUsernames())

	// Non-empty server data is authoritative
	fb.mu.Lock()
	fb.added = []string{"carol"}
	fb.mu.Unlock()
	require.NoError(t, c.Refresh(context.Background()))
	assert.Equal(t, []string{"carol"}, c.AddedUsernames())

	cached, err = db.GetAddedUsernames("me@example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"carol"}, cached.Usernames)
}

func TestFollowCacheCoversServerErrors(t *testing.T) {
	fb := &fakeFollowBackend{added: []string{"alice"}}
	c, _ := newTestFollowController(t, fb)
	require.NoError(t, c.Refresh(context.Background()))

	fb.mu.Lock()
	fb.addedErr = &backend.NetworkError{Kind: backend.NetworkTimeout}
	fb.mu.Unlock()

	err := c.Refresh(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"alice"}, c.AddedUsernames())
}

func TestFollowRequests(t *testing.T) {
	fb := &fakeFollowBackend{requests: []models.FollowRequest{
		{ID: "1", FromUsername: "alice", Status: models.FollowRequestPending},
		{ID: "2", FromUsername: "bob", Status: models.FollowRequestAccepted},
		{ID: "3", FromUsername: "carol"},
	}}
	c, _ := newTestFollowController(t, fb)
	require.NoError(t, c.Refresh(context.Background()))

	requests := c.Requests()
	require.Len(t, requests, 2)
	assert.Equal(t, "1", requests[0].ID)
	assert.Equal(t, "3", requests[1].ID)

	require.NoError(t, c.Accept(context.Background(), "1"))
	require.NoError(t, c.Decline(context.Background(), "3"))
	assert.Empty(t, c.Requests())
	assert.Equal(t, map[string]bool{"1": true, "3": false}, fb.responses)
}

func TestAddUsername(t *testing.T) {
	fb := &fakeFollowBackend{}
	c, _ := newTestFollowController(t, fb)

	req, err := c.AddUsername(context.Background(), " @dave ")
	require.NoError(t, err)
	assert.Equal(t, "dave", req.ToUsername)
	assert.Equal(t, []string{"dave"}, fb.sent)

	_, err = c.AddUsername(context.Background(), "  ")
	assert.Error(t, err)
}
