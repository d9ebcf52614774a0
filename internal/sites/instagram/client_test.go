package instagram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"insta-outreach/internal/core/domain"
)

// fakeServer is a minimal MCP server. Tool handlers return the JSON text the
// real server would put in the text content block.
type fakeServer struct {
	t        *testing.T
	mu       sync.Mutex
	methods  []string
	sessions []string
	tools    map[string]func(args map[string]any) (string, bool)
	sse      bool
	status   int
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     int64  `json:"id"`
		Method string `json:"method"`
		Params struct {
			Name      string         `json:"name"`
			Arguments map[string]any `json:"arguments"`
		} `json:"params"`
	}
	if !assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&req)) {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	params := req.Params

	f.mu.Lock()
	f.methods = append(f.methods, req.Method)
	f.sessions = append(f.sessions, r.Header.Get(sessionHeader))
	status := f.status
	f.mu.Unlock()

	if status != 0 {
		http.Error(w, "unavailable", status)
		return
	}

	var result any
	switch req.Method {
	case "initialize":
		w.Header().Set(sessionHeader, "session-1")
		result = map[string]any{"protocolVersion": protocolVersion}
	case "notifications/initialized":
		w.WriteHeader(http.StatusAccepted)
		return
	case "tools/call":
		handler, ok := f.tools[params.Name]
		if !ok {
			writeRPC(w, f.sse, rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: -32602, Message: "unknown tool " + params.Name}})
			return
		}
		text, isErr := handler(params.Arguments)
		result = map[string]any{
			"content": []map[string]string{{"type": "text", "text": text}},
			"isError": isErr,
		}
	}
	encoded, _ := json.Marshal(result)
	writeRPC(w, f.sse, rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: encoded})
}

func writeRPC(w http.ResponseWriter, sse bool, resp rpcResponse) {
	body, _ := json.Marshal(resp)
	if sse {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintf(w, "event: message\ndata: %s\n\n", body)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

func newTestClient(t *testing.T, f *fakeServer) *Client {
	f.t = t
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 5*time.Second, nil)
}

func TestClient_UserInfoOpensSessionOnce(t *testing.T) {
	f := &fakeServer{tools: map[string]func(map[string]any) (string, bool){
		ToolGetUserInfo: func(args map[string]any) (string, bool) {
			return fmt.Sprintf(`{"success":true,"user_info":{"username":%q,"biography":"coffee","follower_count":2500}}`, args["username"]), false
		},
	}}
	c := newTestClient(t, f)

	p, err := c.UserInfo(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.Profile{Username: "alice", Biography: "coffee", Followers: 2500}, p)

	_, err = c.UserInfo(context.Background(), "bob")
	require.NoError(t, err)

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t, []string{"initialize", "notifications/initialized", "tools/call", "tools/call"}, f.methods)
	assert.Equal(t, "session-1", f.sessions[3])
}

func TestClient_HashtagUsersOverSSE(t *testing.T) {
	f := &fakeServer{sse: true, tools: map[string]func(map[string]any) (string, bool){
		ToolGetHashtagUsers: func(args map[string]any) (string, bool) {
			assert.Equal(t, "ecolife", args["hashtag"])
			assert.EqualValues(t, 10, args["max_posts"])
			return `{"success":true,"users":["alice","@bob","alice",""]}`, false
		},
	}}
	c := newTestClient(t, f)

	users, err := c.HashtagUsers(context.Background(), "ecolife", 10)
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"alice": {}, "bob": {}}, users)
}

func TestClient_UserPostsAndThreads(t *testing.T) {
	f := &fakeServer{tools: map[string]func(map[string]any) (string, bool){
		ToolGetUserPosts: func(args map[string]any) (string, bool) {
			return `{"success":true,"posts":[{"id":"1","caption":"trail run","like_count":12,"taken_at":"2026-01-02T10:00:00Z"}]}`, false
		},
		ToolListPendingChats: func(args map[string]any) (string, bool) {
			return `{"success":true,"threads":[{"id":"t1","username":"carol","last_message":"hey"}]}`, false
		},
	}}
	c := newTestClient(t, f)

	posts, err := c.UserPosts(context.Background(), "alice", 5)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "trail run", posts[0].Caption)
	assert.Equal(t, 12, posts[0].Likes)
	assert.Equal(t, 2026, posts[0].TakenAt.Year())

	threads, err := c.PendingThreads(context.Background(), 20)
	require.NoError(t, err)
	assert.Equal(t, []domain.Thread{{ID: "t1", Username: "carol", LastMessage: "hey", Pending: true}}, threads)
}

func TestClient_ToolFailures(t *testing.T) {
	f := &fakeServer{tools: map[string]func(map[string]any) (string, bool){
		ToolSendMessage: func(args map[string]any) (string, bool) {
			return `{"success":false,"message":"user has restricted DMs"}`, false
		},
		ToolGetUserInfo: func(args map[string]any) (string, bool) {
			return "login required", true
		},
	}}
	c := newTestClient(t, f)

	err := c.SendMessage(context.Background(), "alice", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user has restricted DMs")
	assert.ErrorIs(t, err, domain.ErrGateway)
	assert.ErrorIs(t, err, domain.ErrPermanent)
	assert.False(t, domain.IsTransient(err))

	_, err = c.UserInfo(context.Background(), "alice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "login required")
	assert.ErrorIs(t, err, domain.ErrGateway)
	assert.False(t, domain.IsTransient(err))

	_, err = c.UserPosts(context.Background(), "alice", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown tool")
	assert.ErrorIs(t, err, domain.ErrGateway)
	assert.False(t, domain.IsTransient(err))
}

func TestClient_MissingProfilesAreUnavailable(t *testing.T) {
	f := &fakeServer{tools: map[string]func(map[string]any) (string, bool){
		ToolGetUserInfo: func(args map[string]any) (string, bool) {
			return `{"success":false,"message":"User not found"}`, false
		},
		ToolGetUserPosts: func(args map[string]any) (string, bool) {
			return "This account is private", true
		},
		ToolSendMessage: func(args map[string]any) (string, bool) {
			return `{"success":false,"message":"thread not found"}`, false
		},
	}}
	c := newTestClient(t, f)

	_, err := c.UserInfo(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrProfileUnavailable)
	assert.NotErrorIs(t, err, domain.ErrGateway)

	_, err = c.UserPosts(context.Background(), "hidden", 5)
	assert.ErrorIs(t, err, domain.ErrProfileUnavailable)

	// only the profile tools map to an unavailable profile
	err = c.SendMessage(context.Background(), "alice", "hi")
	assert.NotErrorIs(t, err, domain.ErrProfileUnavailable)
	assert.ErrorIs(t, err, domain.ErrPermanent)
}

func TestClient_ServerErrorsAreTransient(t *testing.T) {
	f := &fakeServer{status: http.StatusBadGateway}
	c := newTestClient(t, f)

	_, err := c.UserInfo(context.Background(), "alice")
	assert.ErrorIs(t, err, domain.ErrGateway)
	assert.True(t, domain.IsTransient(err))
}

func TestClient_AuthFailuresAreNotRetryable(t *testing.T) {
	f := &fakeServer{status: http.StatusUnauthorized}
	c := newTestClient(t, f)

	_, err := c.UserInfo(context.Background(), "alice")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrGateway)
	assert.ErrorIs(t, err, domain.ErrPermanent)
	assert.False(t, domain.IsTransient(err))
	assert.Contains(t, err.Error(), "status 401")
}
