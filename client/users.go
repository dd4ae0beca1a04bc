package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// CurrentUser returns the signed-in user. It returns nil and no error when
// the backend does not know the session's user.
func (c *Client) CurrentUser(ctx context.Context) (*Profile, error) {
	var out Profile
	err := c.do(ctx, http.MethodGet, "/api/profile", nil, nil, &out)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateProfile saves the editable fields of the signed-in user's profile.
func (c *Client) UpdateProfile(ctx context.Context, p Profile) (*Profile, error) {
	var out Profile
	if err := c.do(ctx, http.MethodPost, "/api/profile", nil, p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ProfileByUnityID looks up another user. Unknown users yield nil, nil.
func (c *Client) ProfileByUnityID(ctx context.Context, unityID string) (*Profile, error) {
	var out Profile
	err := c.do(ctx, http.MethodGet, idPath("/api/profile/%s", unityID), nil, nil, &out)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// AddFriend sends (or accepts) a friend request and returns the backend's
// plain text confirmation.
func (c *Client) AddFriend(ctx context.Context, userID, friendID int64) (string, error) {
	var out string
	if err := c.do(ctx, http.MethodPost, idPath("/api/profile/%s/add-friend/%s", userID, friendID), nil, nil, &out); err != nil {
		return "", err
	}
	return out, nil
}

// FriendStatus returns the relationship between two users.
func (c *Client) FriendStatus(ctx context.Context, userID, friendID int64) (FriendStatus, error) {
	var out string
	if err := c.do(ctx, http.MethodGet, idPath("/api/profile/%s/add-friend/%s", userID, friendID), nil, nil, &out); err != nil {
		return "", err
	}
	if errs := c.Val.Validate(out, "oneof=NONE PENDING FRIENDS"); len(errs) > 0 {
		return "", fmt.Errorf("%w: friend status %q", ErrMalformedResponse, out)
	}
	return FriendStatus(out), nil
}

// Friends lists a user's friends.
func (c *Client) Friends(ctx context.Context, userID int64) ([]UserSummary, error) {
	var out []UserSummary
	if err := c.do(ctx, http.MethodGet, idPath("/api/profile/%s/friends", userID), nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
