package instagram

import (
	"encoding/json"
	"time"

	"insta-outreach/internal/core/domain"
)

// MCP tool names exposed by the Instagram server.
const (
	ToolSendMessage      = "send_message"
	ToolGetUserInfo      = "get_user_info"
	ToolGetUserPosts     = "get_user_posts"
	ToolGetHashtagUsers  = "get_hashtag_users"
	ToolListPendingChats = "list_pending_chats"
)

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// toolResult is the MCP tools/call result. Instagram tools answer with a
// single text block holding a JSON envelope.
type toolResult struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StructuredContent json.RawMessage `json:"structuredContent,omitempty"`
	IsError           bool            `json:"isError"`
}

// envelope is the common part of every tool payload.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type userInfoPayload struct {
	envelope
	UserInfo ApiUser `json:"user_info"`
}

type userPostsPayload struct {
	envelope
	Posts []ApiPost `json:"posts"`
}

type hashtagUsersPayload struct {
	envelope
	Users []string `json:"users"`
}

type pendingChatsPayload struct {
	envelope
	Threads []ApiThread `json:"threads"`
}

// ApiUser is the user shape returned by get_user_info.
type ApiUser struct {
	Username       string `json:"username"`
	FullName       string `json:"full_name"`
	Biography      string `json:"biography"`
	FollowerCount  int    `json:"follower_count"`
	FollowingCount int    `json:"following_count"`
	IsPrivate      bool   `json:"is_private"`
	ExternalURL    string `json:"external_url"`
}

// ApiPost is the media shape returned by get_user_posts.
type ApiPost struct {
	ID           string   `json:"id"`
	Caption      string   `json:"caption"`
	Hashtags     []string `json:"hashtags"`
	LikeCount    int      `json:"like_count"`
	CommentCount int      `json:"comment_count"`
	TakenAt      string   `json:"taken_at"`
}

// ApiThread is the thread shape returned by list_pending_chats.
type ApiThread struct {
	ThreadID    string `json:"thread_id"`
	ID          string `json:"id"`
	Username    string `json:"username"`
	LastMessage string `json:"last_message"`
}

func (u ApiUser) toDomain() domain.Profile {
	return domain.Profile{
		Username:    u.Username,
		FullName:    u.FullName,
		Biography:   u.Biography,
		Followers:   u.FollowerCount,
		Following:   u.FollowingCount,
		IsPrivate:   u.IsPrivate,
		ExternalURL: u.ExternalURL,
	}
}

func (p ApiPost) toDomain() domain.Post {
	post := domain.Post{
		ID:       p.ID,
		Caption:  p.Caption,
		Hashtags: p.Hashtags,
		Likes:    p.LikeCount,
		Comments: p.CommentCount,
	}
	if t, err := time.Parse(time.RFC3339, p.TakenAt); err == nil {
		post.TakenAt = t
	}
	return post
}

func (t ApiThread) toDomain() domain.Thread {
	id := t.ThreadID
	if id == "" {
		id = t.ID
	}
	return domain.Thread{ID: id, Username: t.Username, LastMessage: t.LastMessage, Pending: true}
}
