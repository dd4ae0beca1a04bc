package store

import (
	"context"
	"log/slog"
	"slices"

	"github.com/wolftalk/wolftalk/client"
)

// MessageAPI is the subset of the client used by MessageStore.
type MessageAPI interface {
	Posts(ctx context.Context, q client.PostQuery) (*client.PostPage, error)
	Post(ctx context.Context, id int64) (*client.Post, error)
}

// MessageStore holds the forum-wide post list and the post being read.
type MessageStore struct {
	base
	api MessageAPI

	messages []client.Post
	selected *client.Post
}

// NewMessageStore returns an empty MessageStore.
func NewMessageStore(api MessageAPI, logger *slog.Logger) *MessageStore {
	return &MessageStore{base: base{logger: logger}, api: api}
}

// FetchAll loads the first page of posts across all departments, newest
// first.
func (s *MessageStore) FetchAll(ctx context.Context) ([]client.Post, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	page, err := s.api.Posts(ctx, client.PostQuery{Page: 1})

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.finish(err, "Failed to fetch messages"); err != nil {
		return nil, err
	}
	s.messages = client.LinkRelations(page.Posts)
	return slices.Clone(s.messages), nil
}

// FetchByID loads a single post and selects it. On failure the selection
// is cleared.
func (s *MessageStore) FetchByID(ctx context.Context, id int64) (*client.Post, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	p, err := s.api.Post(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.finish(err, "Failed to fetch selected message"); err != nil {
		s.selected = nil
		return nil, err
	}
	s.selected = p
	return p, nil
}

// Messages returns the posts loaded by FetchAll.
func (s *MessageStore) Messages() []client.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.messages)
}

// Selected returns the post loaded by FetchByID.
func (s *MessageStore) Selected() *client.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// Close releases the store. Later calls fail with ErrClosed.
func (s *MessageStore) Close() error {
	s.close()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
	s.selected = nil
	return nil
}
