package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// Comments lists the replies to a post.
func (c *Client) Comments(ctx context.Context, postID int64, sort string, page, limit int) ([]Post, error) {
	q := url.Values{}
	if sort != "" {
		q.Set("sort", sort)
	}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var out []Post
	if err := c.do(ctx, http.MethodGet, idPath("/api/posts/%s/comments", postID), q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateComment replies to a post.
func (c *Client) CreateComment(ctx context.Context, postID int64, senderID, content string) (*Post, error) {
	body := NewPost{
		Content:  content,
		SenderID: senderID,
		ParentID: &postID,
	}
	if err := c.Val.Check(body); err != nil {
		return nil, err
	}
	var out Post
	if err := c.do(ctx, http.MethodPost, idPath("/api/posts/%s/comments", postID), nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateComment edits a comment.
func (c *Client) UpdateComment(ctx context.Context, id int64, u PostUpdate) (*Post, error) {
	var out Post
	if err := c.do(ctx, http.MethodPut, idPath("/api/comments/%s", id), nil, u, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteComment deletes a comment.
func (c *Client) DeleteComment(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, idPath("/api/comments/%s", id), nil, nil, nil)
}
