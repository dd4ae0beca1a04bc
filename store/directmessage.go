package store

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/wolftalk/wolftalk/client"
)

// DirectMessageAPI is the subset of the client used by DirectMessageStore.
type DirectMessageAPI interface {
	RecentConversations(ctx context.Context, userID int64) ([]client.Conversation, error)
	GroupMessages(ctx context.Context, groupID int64) ([]client.DirectMessage, error)
	SendMessage(ctx context.Context, userID, groupID int64, content string) (*client.DirectMessage, error)
	CreateConversation(ctx context.Context, userID int64, nc client.NewConversation) (*client.Conversation, error)
}

// DirectMessageStore holds the conversation list and the open conversation.
type DirectMessageStore struct {
	base
	api DirectMessageAPI

	conversations []client.Conversation
	groupID       int64
	messages      []client.DirectMessage
	scroll        bool
}

// NewDirectMessageStore returns an empty DirectMessageStore.
func NewDirectMessageStore(api DirectMessageAPI, logger *slog.Logger) *DirectMessageStore {
	return &DirectMessageStore{base: base{logger: logger}, api: api}
}

// FetchRecent loads userID's conversations, most recently active first.
// Conversations without messages sort last.
func (s *DirectMessageStore) FetchRecent(ctx context.Context, userID int64) ([]client.Conversation, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	convs, err := s.api.RecentConversations(ctx, userID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.finish(err, "Failed to fetch conversations"); err != nil {
		return nil, err
	}
	slices.SortStableFunc(convs, func(a, b client.Conversation) int {
		switch {
		case a.LastMessage == nil && b.LastMessage == nil:
			return 0
		case a.LastMessage == nil:
			return 1
		case b.LastMessage == nil:
			return -1
		}
		return b.LastMessage.Timestamp.Compare(a.LastMessage.Timestamp)
	})
	s.conversations = convs
	return slices.Clone(convs), nil
}

// FetchGroup loads a conversation's history in ascending timestamp order and
// opens it. When the history has grown since the last fetch of the same
// group, or a different group is opened, the scroll flag is raised.
func (s *DirectMessageStore) FetchGroup(ctx context.Context, groupID int64) ([]client.DirectMessage, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	msgs, err := s.api.GroupMessages(ctx, groupID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.finish(err, "Failed to fetch messages"); err != nil {
		return nil, err
	}
	s.setGroup(groupID, msgs)
	return slices.Clone(s.messages), nil
}

func (s *DirectMessageStore) setGroup(groupID int64, msgs []client.DirectMessage) {
	slices.SortStableFunc(msgs, func(a, b client.DirectMessage) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	if groupID != s.groupID || newest(msgs).After(newest(s.messages)) {
		s.scroll = len(msgs) > 0
	}
	s.groupID = groupID
	s.messages = msgs
}

func newest(msgs []client.DirectMessage) time.Time {
	if len(msgs) == 0 {
		return time.Time{}
	}
	return msgs[len(msgs)-1].Timestamp
}

// Send posts content to groupID as userID and then re-fetches the group so
// the history reflects the server's ordering.
func (s *DirectMessageStore) Send(ctx context.Context, userID, groupID int64, content string) ([]client.DirectMessage, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyMessage
	}
	if err := s.begin(); err != nil {
		return nil, err
	}
	_, err := s.api.SendMessage(ctx, userID, groupID, content)
	var msgs []client.DirectMessage
	if err == nil {
		msgs, err = s.api.GroupMessages(ctx, groupID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.finish(err, "Failed to send message"); err != nil {
		return nil, err
	}
	s.setGroup(groupID, msgs)
	return slices.Clone(s.messages), nil
}

// CreateGroup starts a conversation and adds it to the front of the list.
func (s *DirectMessageStore) CreateGroup(ctx context.Context, userID int64, nc client.NewConversation) (*client.Conversation, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	conv, err := s.api.CreateConversation(ctx, userID, nc)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.finish(err, "Failed to create conversation"); err != nil {
		return nil, err
	}
	s.conversations = slices.Insert(s.conversations, 0, *conv)
	return conv, nil
}

// Conversations returns the list loaded by FetchRecent.
func (s *DirectMessageStore) Conversations() []client.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.conversations)
}

// Messages returns the open conversation's history and its group id.
func (s *DirectMessageStore) Messages() (int64, []client.DirectMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.groupID, slices.Clone(s.messages)
}

// TakeScroll reports whether the view should scroll to the newest message
// and lowers the flag.
func (s *DirectMessageStore) TakeScroll() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.scroll
	s.scroll = false
	return v
}

// Close releases the store. Later calls fail with ErrClosed.
func (s *DirectMessageStore) Close() error {
	s.close()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations = nil
	s.messages = nil
	s.groupID = 0
	s.scroll = false
	return nil
}

// Title returns the conversation's display title for viewerID. A blank group
// title falls back to the other participants' names, e.g. "Ann and Bob" or
// "Ann and Bob + 2 more".
func Title(c client.Conversation, viewerID int64) string {
	if t := strings.TrimSpace(c.GroupTitle); t != "" {
		return t
	}
	var names []string
	for _, p := range c.Participants {
		if p.ID == viewerID && len(c.Participants) > 1 {
			continue
		}
		names = append(names, displayName(p))
	}
	switch len(names) {
	case 0:
		return "Unknown User"
	case 1, 2:
		return strings.Join(names, " and ")
	}
	return fmt.Sprintf("%s and %s + %d more", names[0], names[1], len(names)-2)
}

func displayName(u client.UserSummary) string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	if u.UnityID != "" {
		return u.UnityID
	}
	return "Unknown User"
}
