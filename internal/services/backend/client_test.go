package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amaumene/chansync/internal/config"
	"github.com/amaumene/chansync/internal/models"
	"github.com/amaumene/chansync/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(&config.Config{
		APIBaseURL:      srv.URL,
		UserEmail:       "me@example.com",
		AuthToken:       "token",
		HTTPTimeout:     5 * time.Second,
		RetryMaxElapsed: 2 * time.Second,
	}, utils.NewNopLogger())
	require.NoError(t, err)
	return client
}

func TestFetchContent(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/channels/my channel/content", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "my channel", q.Get("channelName"))
		assert.Equal(t, "creator@example.com", q.Get("creatorEmail"))
		assert.Equal(t, "me@example.com", q.Get("viewerEmail"))
		assert.Equal(t, "5", q.Get("limit"))
		assert.Equal(t, "tok", q.Get("nextToken"))
		assert.Equal(t, "true", q.Get("showPrivateContent"))
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"content": []map[string]interface{}{
				{"SK": "a", "fileName": "a.mp4", "hlsUrl": "https://cdn/a.m3u8", "isPrivateUsername": true},
				{"SK": "b", "fileName": "b.mp4"},
			},
			"nextToken": "next",
			"hasMore":   true,
		})
	}))

	page, err := client.FetchContent(context.Background(), ContentQuery{
		ChannelName:        "my channel",
		CreatorEmail:       "creator@example.com",
		ViewerEmail:        "me@example.com",
		Limit:              5,
		NextToken:          "tok",
		ShowPrivateContent: true,
	})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "a", page.Items[0].SK)
	assert.True(t, page.Items[0].IsPrivate())
	assert.True(t, page.Items[0].HasHLS())
	assert.Equal(t, "next", page.NextToken)
	assert.True(t, page.HasMore)
}

func TestFetchContentEmptyIsNotAnError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content": [], "hasMore": true}`))
	}))

	page, err := client.FetchContent(context.Background(), ContentQuery{ChannelName: "c"})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.False(t, page.HasMore, "missing token means no further pages")
}

func TestRetriesTransientServerErrors(t *testing.T) {
	var calls int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"channelName": "c", "followerCount": 3}`))
	}))

	info, err := client.GetChannel(context.Background(), "c")
	require.NoError(t, err)
	assert.Equal(t, 3, info.FollowerCount)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClientErrorsArePermanent(t *testing.T) {
	var calls int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message": "You cannot delete this video"}`))
	}))

	err := client.DeleteFile(context.Background(), models.ContentItem{SK: "a", FileName: "a.mp4"})
	require.Error(t, err)

	var netErr *NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.Equal(t, NetworkServer, netErr.Kind)
	assert.Equal(t, http.StatusForbidden, netErr.StatusCode)
	assert.Equal(t, "You cannot delete this video", UserMessage(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDecodeError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content": "not a list"}`))
	}))

	_, err := client.FetchContent(context.Background(), ContentQuery{ChannelName: "c"})
	require.Error(t, err)
	assert.True(t, IsDecodeError(err))
	assert.False(t, IsCancellation(err))
}

func TestCancellationIsDistinguished(t *testing.T) {
	started := make(chan struct{})
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err := client.FetchContent(ctx, ContentQuery{ChannelName: "c"})
	require.Error(t, err)
	assert.True(t, IsCancellation(err))
	assert.Empty(t, UserMessage(err))
}

func TestCheckStreamFile(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/files/check-stream-file", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "me@example.com", body["userEmail"])
		assert.Equal(t, "key-1", body["streamKey"])

		_, _ = w.Write([]byte(`{"exists": true, "hasHlsUrl": false, "hasThumbnail": true, "fileId": "f1", "fileName": "live.mp4"}`))
	}))

	status, err := client.CheckStreamFile(context.Background(), "key-1")
	require.NoError(t, err)
	assert.True(t, status.Exists)
	assert.True(t, status.HasThumbnail)
	assert.False(t, status.HasHLSURL)
	assert.Equal(t, "f1", status.FileID)
}

func TestRequestsAreTraced(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"usernames": ["alice"]}`))
	}))

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	client.tracer = provider.Tracer("test")

	names, err := client.SearchUsernames(context.Background(), "ali")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, names)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /users/search", spans[0].Name())
}
