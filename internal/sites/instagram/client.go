// Package instagram adapts the Instagram MCP server to ports.Instagram.
package instagram

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"insta-outreach/internal/core/domain"
	"insta-outreach/internal/core/ports"
)

const (
	protocolVersion = "2025-03-26"
	sessionHeader   = "Mcp-Session-Id"
)

// Client speaks JSON-RPC to an MCP server over streamable HTTP. The session
// is opened lazily on the first tool call and reused afterwards.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	log        *zap.Logger

	nextID atomic.Int64

	mu        sync.Mutex
	sessionID string
	ready     bool
}

var _ ports.Instagram = (*Client)(nil)

func NewClient(baseURL string, timeout time.Duration, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: timeout},
		log:        log.Named("instagram"),
	}
}

func (c *Client) SendMessage(ctx context.Context, username, text string) error {
	var out envelope
	return c.callTool(ctx, ToolSendMessage, map[string]any{"username": username, "message": text}, &out)
}

func (c *Client) UserInfo(ctx context.Context, username string) (domain.Profile, error) {
	var out userInfoPayload
	if err := c.callTool(ctx, ToolGetUserInfo, map[string]any{"username": username}, &out); err != nil {
		return domain.Profile{}, err
	}
	p := out.UserInfo.toDomain()
	if p.Username == "" {
		p.Username = username
	}
	return p, nil
}

func (c *Client) UserPosts(ctx context.Context, username string, count int) ([]domain.Post, error) {
	var out userPostsPayload
	if err := c.callTool(ctx, ToolGetUserPosts, map[string]any{"username": username, "count": count}, &out); err != nil {
		return nil, err
	}
	posts := make([]domain.Post, 0, len(out.Posts))
	for _, p := range out.Posts {
		posts = append(posts, p.toDomain())
	}
	return posts, nil
}

func (c *Client) HashtagUsers(ctx context.Context, tag string, maxPosts int) (map[string]struct{}, error) {
	var out hashtagUsersPayload
	if err := c.callTool(ctx, ToolGetHashtagUsers, map[string]any{"hashtag": tag, "max_posts": maxPosts}, &out); err != nil {
		return nil, err
	}
	users := make(map[string]struct{}, len(out.Users))
	for _, u := range out.Users {
		if u = strings.TrimPrefix(strings.TrimSpace(u), "@"); u != "" {
			users[u] = struct{}{}
		}
	}
	return users, nil
}

func (c *Client) PendingThreads(ctx context.Context, amount int) ([]domain.Thread, error) {
	var out pendingChatsPayload
	if err := c.callTool(ctx, ToolListPendingChats, map[string]any{"amount": amount}, &out); err != nil {
		return nil, err
	}
	threads := make([]domain.Thread, 0, len(out.Threads))
	for _, t := range out.Threads {
		threads = append(threads, t.toDomain())
	}
	return threads, nil
}

// callTool invokes name and decodes its JSON envelope into out. out must embed
// envelope so an unsuccessful tool run can be detected.
func (c *Client) callTool(ctx context.Context, name string, args map[string]any, out interface{ ok() (bool, string) }) error {
	if err := c.ensureSession(ctx); err != nil {
		return err
	}

	resp, err := c.call(ctx, "tools/call", map[string]any{"name": name, "arguments": args})
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	var res toolResult
	if err := json.Unmarshal(resp.Result, &res); err != nil {
		return fmt.Errorf("%s: decode tool result: %w", name, permanent(err))
	}
	payload := res.StructuredContent
	if len(payload) == 0 {
		payload = []byte(res.text())
	}
	if res.IsError {
		return toolFailure(name, strings.TrimSpace(string(payload)))
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("%s: decode payload: %w", name, permanent(err))
	}
	if ok, msg := out.ok(); !ok {
		if msg == "" {
			msg = "tool reported failure"
		}
		return toolFailure(name, msg)
	}
	return nil
}

// permanent marks err as a gateway failure that retrying will not fix.
func permanent(err error) error {
	return fmt.Errorf("%w: %w: %w", domain.ErrGateway, domain.ErrPermanent, err)
}

// toolFailure types a failure the tool itself reported. Missing or private
// accounts on the profile tools are a per-user condition, not a gateway fault.
func toolFailure(name, msg string) error {
	if name == ToolGetUserInfo || name == ToolGetUserPosts {
		lower := strings.ToLower(msg)
		for _, marker := range []string{"not found", "private", "does not exist"} {
			if strings.Contains(lower, marker) {
				return fmt.Errorf("%s: %w: %s", name, domain.ErrProfileUnavailable, msg)
			}
		}
	}
	return fmt.Errorf("%s: %w", name, permanent(errors.New(msg)))
}

func (r toolResult) text() string {
	var b strings.Builder
	for _, c := range r.Content {
		if c.Type == "text" {
			b.WriteString(c.Text)
		}
	}
	return b.String()
}

func (e *envelope) ok() (bool, string) { return e.Success, e.Message }

func (c *Client) ensureSession(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ready {
		return nil
	}

	_, err := c.call(ctx, "initialize", map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo":      map[string]string{"name": "insta-outreach", "version": "1.0.0"},
	})
	if err != nil {
		return fmt.Errorf("mcp initialize: %w", err)
	}
	if err := c.notify(ctx, "notifications/initialized"); err != nil {
		return fmt.Errorf("mcp initialized notification: %w", err)
	}
	c.ready = true
	c.log.Debug("mcp session opened", zap.String("url", c.BaseURL), zap.String("session", c.sessionID))
	return nil
}

func (c *Client) call(ctx context.Context, method string, params any) (*rpcResponse, error) {
	id := c.nextID.Add(1)
	httpResp, err := c.post(ctx, rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	// the session id is only assigned during initialize, under c.mu
	if sid := httpResp.Header.Get(sessionHeader); sid != "" && method == "initialize" {
		c.sessionID = sid
	}

	resp, err := decodeResponse(httpResp)
	if err != nil {
		return nil, permanent(err)
	}
	if resp.Error != nil {
		return nil, permanent(fmt.Errorf("mcp error %d: %s", resp.Error.Code, resp.Error.Message))
	}
	return resp, nil
}

func (c *Client) notify(ctx context.Context, method string) error {
	httpResp, err := c.post(ctx, rpcRequest{JSONRPC: "2.0", Method: method})
	if err != nil {
		return err
	}
	defer httpResp.Body.Close()
	_, _ = io.Copy(io.Discard, httpResp.Body)
	return nil
}

// post sends one JSON-RPC message. Every failure is a gateway error; only
// transport failures, 429 and 5xx are left retryable.
func (c *Client) post(ctx context.Context, msg rpcRequest) (*http.Response, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, permanent(fmt.Errorf("marshal request: %w", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	if c.sessionID != "" {
		req.Header.Set(sessionHeader, c.sessionID)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrGateway, err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, fmt.Errorf("%w: %w", domain.ErrGateway, err)
		}
		return nil, permanent(err)
	}
	return resp, nil
}

// decodeResponse reads a JSON-RPC response from either a plain JSON body or
// the first data event of an SSE stream.
func decodeResponse(httpResp *http.Response) (*rpcResponse, error) {
	var raw []byte
	if strings.HasPrefix(httpResp.Header.Get("Content-Type"), "text/event-stream") {
		data, err := firstEventData(httpResp.Body)
		if err != nil {
			return nil, err
		}
		raw = data
	} else {
		data, err := io.ReadAll(httpResp.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: read response: %w", domain.ErrGateway, err)
		}
		raw = data
	}

	var resp rpcResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &resp, nil
}

var errNoEvent = errors.New("event stream closed without a response")

func firstEventData(r io.Reader) ([]byte, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	var data bytes.Buffer
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		case line == "" && data.Len() > 0:
			return data.Bytes(), nil
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: read event stream: %w", domain.ErrGateway, err)
	}
	if data.Len() > 0 {
		return data.Bytes(), nil
	}
	return nil, fmt.Errorf("%w: %w", domain.ErrGateway, errNoEvent)
}
