package store

import (
	"context"
	"log/slog"

	"github.com/wolftalk/wolftalk/client"
)

// UserAPI is the subset of the client used by UserStore.
type UserAPI interface {
	CurrentUser(ctx context.Context) (*client.Profile, error)
	ProfileByUnityID(ctx context.Context, unityID string) (*client.Profile, error)
	UpdateProfile(ctx context.Context, p client.Profile) (*client.Profile, error)
	AddFriend(ctx context.Context, userID, friendID int64) (string, error)
	FriendStatus(ctx context.Context, userID, friendID int64) (client.FriendStatus, error)
	Friends(ctx context.Context, userID int64) ([]client.UserSummary, error)
}

// UserStore holds the signed-in user and the profile being viewed.
type UserStore struct {
	base
	api UserAPI

	current *client.Profile
	profile *client.Profile
}

// NewUserStore returns an empty UserStore.
func NewUserStore(api UserAPI, logger *slog.Logger) *UserStore {
	return &UserStore{base: base{logger: logger}, api: api}
}

// FetchCurrent loads the signed-in user. A nil profile with a nil error means
// nobody is signed in and the view should send the user to the SSO login.
func (s *UserStore) FetchCurrent(ctx context.Context) (*client.Profile, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	p, err := s.api.CurrentUser(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.finish(err, "Failed to fetch current user"); err != nil {
		return nil, err
	}
	s.current = p
	return p, nil
}

// Current returns the signed-in user loaded by FetchCurrent.
func (s *UserStore) Current() *client.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// SignedIn reports whether a user is signed in.
func (s *UserStore) SignedIn() bool {
	return s.Current() != nil
}

// UnityID returns the signed-in user's unity id, or "" when signed out.
func (s *UserStore) UnityID() string {
	if p := s.Current(); p != nil {
		return p.UnityID
	}
	return ""
}

// FetchProfile loads another user's profile. Unknown users yield nil.
func (s *UserStore) FetchProfile(ctx context.Context, unityID string) (*client.Profile, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	p, err := s.api.ProfileByUnityID(ctx, unityID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.finish(err, "Failed to fetch profile"); err != nil {
		return nil, err
	}
	s.profile = p
	return p, nil
}

// UpdateProfile saves the signed-in user's editable profile fields and makes
// the result the current user.
func (s *UserStore) UpdateProfile(ctx context.Context, p client.Profile) (*client.Profile, error) {
	if s.Current() == nil {
		return nil, ErrSignedOut
	}
	if err := s.begin(); err != nil {
		return nil, err
	}
	out, err := s.api.UpdateProfile(ctx, p)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.finish(err, "Failed to update profile"); err != nil {
		return nil, err
	}
	s.current = out
	return out, nil
}

// Profile returns the profile loaded by FetchProfile.
func (s *UserStore) Profile() *client.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile
}

// AddFriend sends a friend request from the signed-in user.
func (s *UserStore) AddFriend(ctx context.Context, friendID int64) (string, error) {
	me := s.Current()
	if me == nil {
		return "", ErrSignedOut
	}
	if err := s.begin(); err != nil {
		return "", err
	}
	msg, err := s.api.AddFriend(ctx, me.ID, friendID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.finish(err, "Failed to add friend"); err != nil {
		return "", err
	}
	return msg, nil
}

// FriendStatus returns the relationship between the signed-in user and friendID.
func (s *UserStore) FriendStatus(ctx context.Context, friendID int64) (client.FriendStatus, error) {
	me := s.Current()
	if me == nil {
		return client.FriendNone, ErrSignedOut
	}
	if err := s.begin(); err != nil {
		return "", err
	}
	st, err := s.api.FriendStatus(ctx, me.ID, friendID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.finish(err, "Failed to fetch friend status"); err != nil {
		return "", err
	}
	return st, nil
}

// Friends lists the signed-in user's friends.
func (s *UserStore) Friends(ctx context.Context) ([]client.UserSummary, error) {
	me := s.Current()
	if me == nil {
		return nil, ErrSignedOut
	}
	if err := s.begin(); err != nil {
		return nil, err
	}
	friends, err := s.api.Friends(ctx, me.ID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.finish(err, "Failed to fetch friends"); err != nil {
		return nil, err
	}
	return friends, nil
}

// Close releases the store. Later calls fail with ErrClosed.
func (s *UserStore) Close() error {
	s.close()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
	s.profile = nil
	return nil
}
