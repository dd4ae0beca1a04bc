package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/wolftalk/wolftalk/client"
)

// ErrSuperseded is returned by a fetch whose result was discarded because a
// later Reset replaced the query.
var ErrSuperseded = errors.New("superseded by a newer query")

// A PageSource returns pages of posts. *client.Client satisfies it.
type PageSource interface {
	Posts(ctx context.Context, q client.PostQuery) (*client.PostPage, error)
}

// Pager grows a Feed one page at a time for a fixed query.
type Pager struct {
	feed   *Feed
	src    PageSource
	logger *slog.Logger

	mu      sync.Mutex
	query   client.PostQuery
	page    int
	hasMore bool
	// gen is bumped by every Reset. A fetch applies its result only when
	// gen is unchanged since it started.
	gen      int
	inflight int
}

// NewPager returns a pager that fills f from src. Nothing is fetched until
// Reset is called.
func NewPager(f *Feed, src PageSource, logger *slog.Logger) *Pager {
	return &Pager{
		feed:   f,
		src:    src,
		logger: logger,
	}
}

// Reset fetches the first page of q and replaces the feed's contents with it.
// On failure the feed and the paging state are left as they were. Fetches
// still in flight when Reset starts are discarded.
func (p *Pager) Reset(ctx context.Context, q client.PostQuery) error {
	q.Page = 1

	p.mu.Lock()
	p.gen++
	gen := p.gen
	p.inflight++
	p.mu.Unlock()

	res, err := p.src.Posts(ctx, q)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.inflight--
	if gen != p.gen {
		return ErrSuperseded
	}
	if err != nil {
		p.logger.Error("Could not load posts", "page", 1, "error", err.Error())
		return fmt.Errorf("load page 1: %w", err)
	}

	p.feed.Load(res.Posts)
	p.query = q
	p.page = 1
	p.hasMore = res.HasMore
	return nil
}

// Seed loads an already fetched first page of q into the feed, as if Reset
// had fetched it.
func (p *Pager) Seed(q client.PostQuery, first *client.PostPage) {
	q.Page = 1

	p.mu.Lock()
	defer p.mu.Unlock()
	p.gen++
	p.feed.Load(first.Posts)
	p.query = q
	p.page = 1
	p.hasMore = first.HasMore
}

// Select applies a new filter and sort order. Both always restart from the
// first page.
func (p *Pager) Select(ctx context.Context, sel Selection, mode SortMode) error {
	p.mu.Lock()
	q := p.query
	p.mu.Unlock()

	q.Course = sel.Course
	q.Professor = normalizeID(sel.Professor)
	q.Sort = string(mode)
	return p.Reset(ctx, q)
}

// LoadMore fetches the next page and appends it to the feed. It reports
// whether a fetch happened: nothing is fetched when the server reported no
// further pages or another fetch is still in flight. A failed fetch does not
// advance the page; calling LoadMore again retries it.
func (p *Pager) LoadMore(ctx context.Context) (bool, error) {
	p.mu.Lock()
	if !p.hasMore || p.inflight > 0 {
		p.mu.Unlock()
		return false, nil
	}
	p.inflight++
	gen := p.gen
	q := p.query
	q.Page = p.page + 1
	p.mu.Unlock()

	res, err := p.src.Posts(ctx, q)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.inflight--
	if gen != p.gen {
		return false, ErrSuperseded
	}
	if err != nil {
		p.logger.Error("Could not load more posts", "page", q.Page, "error", err.Error())
		return true, fmt.Errorf("load page %d: %w", q.Page, err)
	}

	p.feed.Append(res.Posts)
	p.page = q.Page
	p.hasMore = res.HasMore
	return true, nil
}

// Page returns the last page loaded, or 0 before the first load.
func (p *Pager) Page() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.page
}

// HasMore reports whether the server said another page exists.
func (p *Pager) HasMore() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hasMore
}

// Loading reports whether a fetch is in flight.
func (p *Pager) Loading() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inflight > 0
}

// Query returns the query of the last successful Reset.
func (p *Pager) Query() client.PostQuery {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.query
}
