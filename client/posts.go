package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

func (q PostQuery) values() url.Values {
	v := url.Values{}
	if q.DepartmentID != 0 {
		v.Set("department", strconv.FormatInt(q.DepartmentID, 10))
	}
	if q.Course != "" {
		v.Set("course", q.Course)
	}
	if q.Professor != "" {
		v.Set("professor", q.Professor)
	}
	if q.Tag != "" {
		v.Set("tag", q.Tag)
	}
	if q.User != "" {
		v.Set("user", q.User)
	}
	if q.Sort != "" {
		v.Set("sort", q.Sort)
	}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	return v
}

// Posts returns one page of posts matching q.
func (c *Client) Posts(ctx context.Context, q PostQuery) (*PostPage, error) {
	var out PostPage
	if err := c.do(ctx, http.MethodGet, "/api/posts", q.values(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Post returns a single post.
func (c *Client) Post(ctx context.Context, id int64) (*Post, error) {
	var out Post
	if err := c.do(ctx, http.MethodGet, idPath("/api/posts/%s", id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreatePost creates a post, or a comment when p.ParentID is set.
func (c *Client) CreatePost(ctx context.Context, p NewPost) (*Post, error) {
	if err := c.Val.Check(p); err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	var out Post
	if err := c.do(ctx, http.MethodPost, "/api/posts", nil, p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdatePost edits a post and returns the server's copy.
func (c *Client) UpdatePost(ctx context.Context, id int64, u PostUpdate) (*Post, error) {
	var out Post
	if err := c.do(ctx, http.MethodPut, idPath("/api/posts/%s", id), nil, u, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeletePost deletes a post.
func (c *Client) DeletePost(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, idPath("/api/posts/%s", id), nil, nil, nil)
}

type voteRequest struct {
	UnityID string `json:"unityId"`
}

// AddVote records a like or dislike by unityID. The returned post carries
// the server's liked and disliked sets.
func (c *Client) AddVote(ctx context.Context, id int64, kind VoteKind, unityID string) (*Post, error) {
	if err := kind.valid(); err != nil {
		return nil, err
	}
	var out Post
	path := idPath("/api/posts/%s/", id) + string(kind)
	if err := c.do(ctx, http.MethodPost, path, nil, voteRequest{UnityID: unityID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RemoveVote withdraws a like or dislike by unityID.
func (c *Client) RemoveVote(ctx context.Context, id int64, kind VoteKind, unityID string) (*Post, error) {
	if err := kind.valid(); err != nil {
		return nil, err
	}
	var out Post
	path := idPath("/api/posts/%s/remove/", id) + string(kind)
	if err := c.do(ctx, http.MethodPut, path, nil, voteRequest{UnityID: unityID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (k VoteKind) valid() error {
	switch k {
	case Like, Dislike:
		return nil
	}
	return fmt.Errorf("unknown vote kind %q", string(k))
}
