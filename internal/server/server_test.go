package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/marketbell/internal/logging"
	"github.com/nhle/marketbell/internal/model"
	"github.com/nhle/marketbell/internal/server"
	"github.com/nhle/marketbell/internal/source"
	"github.com/nhle/marketbell/internal/source/rest"
	"github.com/nhle/marketbell/internal/testutil"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

type fixture struct {
	srv    *httptest.Server
	tokens *server.Tokens
	token  string
}

func newFixture(t *testing.T, seed ...model.Notification) fixture {
	t.Helper()

	st := testutil.NewTestStore(t)
	testutil.SeedNotifications(t, st, "u1", seed...)

	tokens, err := server.NewTokens("test-secret", time.Hour)
	require.NoError(t, err)
	token, err := tokens.Generate("u1")
	require.NoError(t, err)

	srv := httptest.NewServer(server.New(st, tokens, logging.Discard()).Handler())
	t.Cleanup(srv.Close)

	return fixture{srv: srv, tokens: tokens, token: token}
}

func (f fixture) do(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.srv.URL+"/api"+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var payload map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	return resp, payload
}

func (f fixture) adapter() *rest.Adapter {
	return rest.NewAdapter(f.srv.URL+"/api", staticToken(f.token), 5*time.Second)
}

func seedAt(title string, minutes int, read bool) model.Notification {
	return model.Notification{
		Type:      model.TypeNewMessage,
		Title:     title,
		Message:   title,
		IsRead:    read,
		CreatedAt: time.Date(2026, 1, 1, 0, minutes, 0, 0, time.UTC),
	}
}

func TestRejectsMissingOrBadToken(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodGet, "/notifications", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, false, body["success"])

	other, err := server.NewTokens("other-secret", time.Hour)
	require.NoError(t, err)
	forged, err := other.Generate("u1")
	require.NoError(t, err)

	resp, _ = f.do(t, http.MethodGet, "/notifications", forged, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestListRejectsBadQuery(t *testing.T) {
	f := newFixture(t)

	for _, q := range []string{"?isRead=maybe", "?category=spam", "?limit=0"} {
		resp, body := f.do(t, http.MethodGet, "/notifications"+q, f.token, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
		assert.NotEmpty(t, body["message"], q)
	}
}

func TestListIncludesTimeAgo(t *testing.T) {
	f := newFixture(t, seedAt("a", 0, false))

	resp, body := f.do(t, http.MethodGet, "/notifications", f.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	data, ok := body["data"].([]any)
	require.True(t, ok)
	require.Len(t, data, 1)
	assert.NotEmpty(t, data[0].(map[string]any)["timeAgo"])
}

func TestCreateValidatesBody(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(t, http.MethodPost, "/notifications", f.token, map[string]any{"title": "no type"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := f.do(t, http.MethodPost, "/notifications", f.token, map[string]any{
		"type":    "connection_request",
		"title":   "New request",
		"message": "wants to connect",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	data := body["data"].(map[string]any)
	assert.Equal(t, "social", data["category"])
	assert.Equal(t, false, data["isRead"])
}

func TestAdapterAgainstServer(t *testing.T) {
	f := newFixture(t,
		seedAt("oldest", 0, true),
		seedAt("middle", 1, false),
		seedAt("newest", 2, false),
	)
	a := f.adapter()
	ctx := context.Background()

	newest, err := a.ListNotifications(ctx, model.Newest())
	require.NoError(t, err)
	require.Len(t, newest, 1)
	assert.Equal(t, "newest", newest[0].Title)

	count, err := a.UnreadCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, a.MarkAsRead(ctx, newest[0].ID))
	count, err = a.UnreadCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	unread, err := a.ListNotifications(ctx, model.Unread())
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, "middle", unread[0].Title)

	require.NoError(t, a.MarkAllAsRead(ctx))
	count, err = a.UnreadCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	require.NoError(t, a.DeleteNotification(ctx, newest[0].ID))
	err = a.DeleteNotification(ctx, newest[0].ID)
	var apiErr *source.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "Notification not found", apiErr.Message)

	require.NoError(t, a.DeleteAll(ctx))
	all, err := a.ListNotifications(ctx, model.Filter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestAdapterSurfacesAuthError(t *testing.T) {
	f := newFixture(t)
	a := rest.NewAdapter(f.srv.URL+"/api", staticToken("garbage"), time.Second)

	_, err := a.UnreadCount(context.Background())
	assert.True(t, source.IsAuthError(err))
}

func TestTokens(t *testing.T) {
	_, err := server.NewTokens("", time.Hour)
	assert.Error(t, err)

	tokens, err := server.NewTokens("s", time.Hour)
	require.NoError(t, err)

	raw, err := tokens.Generate("u7")
	require.NoError(t, err)
	claims, err := tokens.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "u7", claims.Subject)

	expired, err := server.NewTokens("s", -time.Minute)
	require.NoError(t, err)
	raw, err = expired.Generate("u7")
	require.NoError(t, err)
	_, err = tokens.Parse(raw)
	assert.Error(t, err)
}
