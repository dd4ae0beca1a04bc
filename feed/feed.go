// Package feed keeps a board's post list consistent with local votes, edits
// and deletions, and derives the filtered and sorted view shown to the user.
package feed

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/wolftalk/wolftalk/client"
)

var (
	// ErrSignedOut is returned for votes cast without a viewer.
	ErrSignedOut = errors.New("sign in to vote")

	// ErrNotInFeed is returned when a mutation names a post the feed does not hold.
	ErrNotInFeed = errors.New("post not in feed")

	// ErrVoteConflict is returned when the server answers a vote with the
	// viewer in both the liked and the disliked set.
	ErrVoteConflict = errors.New("viewer both liked and disliked the post")
)

// A PostService performs post mutations against the backend. *client.Client
// satisfies it.
type PostService interface {
	AddVote(ctx context.Context, id int64, kind client.VoteKind, unityID string) (*client.Post, error)
	RemoveVote(ctx context.Context, id int64, kind client.VoteKind, unityID string) (*client.Post, error)
	UpdatePost(ctx context.Context, id int64, u client.PostUpdate) (*client.Post, error)
	DeletePost(ctx context.Context, id int64) error
}

// Feed holds the local copy of a post list. It is safe for concurrent use;
// network calls are made without holding the lock, so two mutations of the
// same post may interleave.
type Feed struct {
	svc    PostService
	logger *slog.Logger
	viewer string

	mu    sync.Mutex
	posts []client.Post
	depts map[int64]string
}

// New returns an empty feed viewed by the user with unity id viewer. An
// empty viewer is a signed-out user.
func New(svc PostService, viewer string, logger *slog.Logger) *Feed {
	return &Feed{
		svc:    svc,
		logger: logger,
		viewer: viewer,
	}
}

// Viewer returns the viewing user's unity id.
func (f *Feed) Viewer() string {
	return f.viewer
}

// SetDepartments records the names used to label rows by department.
func (f *Feed) SetDepartments(depts []client.Department) {
	names := make(map[int64]string, len(depts))
	for _, d := range depts {
		names[d.ID] = d.Name
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.depts = names
}

// Load replaces the collection with the first page of posts.
func (f *Feed) Load(posts []client.Post) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts = appendUnique(nil, posts)
}

// Append adds a later page, skipping ids already held.
func (f *Feed) Append(posts []client.Post) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts = appendUnique(f.posts, posts)
}

func appendUnique(dst, posts []client.Post) []client.Post {
	seen := make(map[int64]struct{}, len(dst)+len(posts))
	for _, p := range dst {
		seen[p.ID] = struct{}{}
	}
	for _, p := range posts {
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		dst = append(dst, p)
	}
	return dst
}

// Len returns the number of posts held, comments included.
func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.posts)
}

// Posts returns a copy of the collection in first-seen order.
func (f *Feed) Posts() []client.Post {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.posts)
}

// Get returns the post with the given id.
func (f *Feed) Get(id int64) (client.Post, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.index(id)
	if i < 0 {
		return client.Post{}, false
	}
	return f.posts[i], true
}

// Visible returns the top-level posts in first-seen order.
func (f *Feed) Visible() []client.Post {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]client.Post, 0, len(f.posts))
	for _, p := range f.posts {
		if !p.IsComment() {
			out = append(out, p)
		}
	}
	return out
}

// View returns the visible posts filtered by sel and ordered by mode.
func (f *Feed) View(sel Selection, mode SortMode) []client.Post {
	return Apply(f.Posts(), sel, mode)
}

// index returns the position of id, or -1. f.mu must be held.
func (f *Feed) index(id int64) int {
	return slices.IndexFunc(f.posts, func(p client.Post) bool { return p.ID == id })
}

// Vote adds or, when alreadyApplied is set, removes the viewer's vote of the
// given kind. On success the post's vote sets are replaced by the server's.
// On failure the feed is left untouched.
func (f *Feed) Vote(ctx context.Context, id int64, kind client.VoteKind, alreadyApplied bool) error {
	if f.viewer == "" {
		return ErrSignedOut
	}
	if _, ok := f.Get(id); !ok {
		return fmt.Errorf("vote on post %d: %w", id, ErrNotInFeed)
	}

	var (
		updated *client.Post
		err     error
	)
	if alreadyApplied {
		updated, err = f.svc.RemoveVote(ctx, id, kind, f.viewer)
	} else {
		updated, err = f.svc.AddVote(ctx, id, kind, f.viewer)
	}
	if err != nil {
		f.logger.Error("Vote failed", "post", id, "kind", string(kind), "remove", alreadyApplied, "error", err.Error())
		return fmt.Errorf("vote on post %d: %w", id, err)
	}

	if slices.Contains(updated.LikedBy, f.viewer) && slices.Contains(updated.DislikedBy, f.viewer) {
		f.logger.Error("Server returned conflicting vote sets", "post", id, "viewer", f.viewer)
		return fmt.Errorf("vote on post %d: %w", id, ErrVoteConflict)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if i := f.index(id); i >= 0 {
		f.posts[i].LikedBy = nonNil(updated.LikedBy)
		f.posts[i].DislikedBy = nonNil(updated.DislikedBy)
	}
	return nil
}

// Toggle flips the viewer's vote of the given kind based on the current
// local vote state.
func (f *Feed) Toggle(ctx context.Context, id int64, kind client.VoteKind) error {
	p, ok := f.Get(id)
	if !ok {
		return fmt.Errorf("vote on post %d: %w", id, ErrNotInFeed)
	}
	liked, disliked := VoteState(p, f.viewer)
	applied := liked
	if kind == client.Dislike {
		applied = disliked
	}
	return f.Vote(ctx, id, kind, applied)
}

// A Patch is an edit to a post. Class and Professor are the user's
// selection; they also serve as the optimistic value when the server's
// response leaves the relation out.
type Patch struct {
	Title     string
	Body      string
	Class     *client.Class
	Professor *client.Professor
}

func (p Patch) update() client.PostUpdate {
	u := client.PostUpdate{Title: p.Title, Body: p.Body}
	if p.Class != nil {
		u.ClassID = &p.Class.ID
	}
	if p.Professor != nil {
		u.ProfessorID = &p.Professor.ID
	}
	return u
}

// Edit saves patch and merges the server's copy into the feed.
func (f *Feed) Edit(ctx context.Context, id int64, patch Patch) error {
	if _, ok := f.Get(id); !ok {
		return fmt.Errorf("edit post %d: %w", id, ErrNotInFeed)
	}

	updated, err := f.svc.UpdatePost(ctx, id, patch.update())
	if err != nil {
		f.logger.Error("Edit failed", "post", id, "error", err.Error())
		return fmt.Errorf("edit post %d: %w", id, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if i := f.index(id); i >= 0 {
		f.posts[i] = merge(f.posts[i], *updated, patch)
	}
	return nil
}

// merge overlays the server's copy of a post on the local one. Fields the
// server left out keep their local value, so a partial response never turns
// a comment into a post or resets its counters. Relations come from the
// server, then the patch, then the previous value.
func merge(prev, updated client.Post, patch Patch) client.Post {
	out := prev
	out.Title = cmp.Or(updated.Title, patch.Title)
	out.Body = cmp.Or(updated.Body, patch.Body)
	out.ParentID = firstNonNil(updated.ParentID, prev.ParentID)
	out.DepartmentID = firstNonNil(updated.DepartmentID, prev.DepartmentID)
	out.Class = firstNonNil(updated.Class, patch.Class, prev.Class)
	out.Professor = firstNonNil(updated.Professor, patch.Professor, prev.Professor)

	if updated.Sender.UnityID != "" {
		out.Sender = updated.Sender
	}
	if !updated.Timestamp.IsZero() {
		out.Timestamp = updated.Timestamp
	}
	if updated.LikedBy != nil {
		out.LikedBy = updated.LikedBy
	}
	if updated.DislikedBy != nil {
		out.DislikedBy = updated.DislikedBy
	}
	if updated.Tags != nil {
		out.Tags = updated.Tags
	}
	out.ViewCount = cmp.Or(updated.ViewCount, prev.ViewCount)
	out.CommentCount = cmp.Or(updated.CommentCount, prev.CommentCount)
	return out
}

func firstNonNil[T any](vals ...*T) *T {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

// Delete removes a post on the server and then from the feed.
func (f *Feed) Delete(ctx context.Context, id int64) error {
	if _, ok := f.Get(id); !ok {
		return fmt.Errorf("delete post %d: %w", id, ErrNotInFeed)
	}

	if err := f.svc.DeletePost(ctx, id); err != nil {
		f.logger.Error("Delete failed", "post", id, "error", err.Error())
		return fmt.Errorf("delete post %d: %w", id, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts = slices.DeleteFunc(f.posts, func(p client.Post) bool { return p.ID == id })
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
