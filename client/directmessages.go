package client

import (
	"context"
	"errors"
	"net/http"
)

// RecentConversations lists the group chats userID takes part in. A 404 is
// treated as having no conversations.
func (c *Client) RecentConversations(ctx context.Context, userID int64) ([]Conversation, error) {
	var out []Conversation
	err := c.do(ctx, http.MethodGet, idPath("/api/messages/direct-message/%s", userID), nil, nil, &out)
	if errors.Is(err, ErrNotFound) {
		return []Conversation{}, nil
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GroupMessages returns the message history of a group chat. A 404 is
// treated as an empty history.
func (c *Client) GroupMessages(ctx context.Context, groupID int64) ([]DirectMessage, error) {
	var out []DirectMessage
	err := c.do(ctx, http.MethodGet, idPath("/api/groupchat/%s", groupID), nil, nil, &out)
	if errors.Is(err, ErrNotFound) {
		return []DirectMessage{}, nil
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SendMessage posts content to a group chat as userID. The content is sent
// as the raw request body.
func (c *Client) SendMessage(ctx context.Context, userID, groupID int64, content string) (*DirectMessage, error) {
	var out DirectMessage
	if err := c.do(ctx, http.MethodPost, idPath("/api/groupchat/send/%s/%s", groupID, userID), nil, textBody(content), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateConversation starts a group chat owned by userID with an opening message.
func (c *Client) CreateConversation(ctx context.Context, userID int64, nc NewConversation) (*Conversation, error) {
	if err := c.Val.Check(nc); err != nil {
		return nil, err
	}
	var out Conversation
	if err := c.do(ctx, http.MethodPost, idPath("/api/messages/create/%s", userID), nil, nc, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AddParticipant adds userID to an existing group chat.
func (c *Client) AddParticipant(ctx context.Context, userID, groupID int64) (*Conversation, error) {
	var out Conversation
	if err := c.do(ctx, http.MethodPost, idPath("/api/messages/%s", userID), nil, groupID, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
