package store

import (
	"context"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/wolftalk/wolftalk/client"
)

// DepartmentAPI is the subset of the client used by DepartmentStore.
type DepartmentAPI interface {
	Departments(ctx context.Context) ([]client.Department, error)
	Department(ctx context.Context, id int64) (*client.DepartmentDetail, error)
	Posts(ctx context.Context, q client.PostQuery) (*client.PostPage, error)
}

// DepartmentStore holds the department list and the department being viewed.
type DepartmentStore struct {
	base
	api DepartmentAPI

	departments []client.Department
	current     *client.DepartmentDetail
	posts       []client.Post
}

// NewDepartmentStore returns an empty DepartmentStore.
func NewDepartmentStore(api DepartmentAPI, logger *slog.Logger) *DepartmentStore {
	return &DepartmentStore{base: base{logger: logger}, api: api}
}

// FetchAll loads the department list.
func (s *DepartmentStore) FetchAll(ctx context.Context) ([]client.Department, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	depts, err := s.api.Departments(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.finish(err, "Failed to fetch departments"); err != nil {
		return nil, err
	}
	s.departments = depts
	return depts, nil
}

// FetchByID loads a department with its classes and professors and makes it
// the current department.
func (s *DepartmentStore) FetchByID(ctx context.Context, id int64) (*client.DepartmentDetail, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	dept, err := s.api.Department(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.finish(err, "Failed to load department"); err != nil {
		return nil, err
	}
	s.current = dept
	return dept, nil
}

// FetchPosts loads a department's posts with their relations linked and
// makes the department current. The previous posts are cleared before the
// request is made.
func (s *DepartmentStore) FetchPosts(ctx context.Context, id int64) ([]client.Post, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.posts = nil
	s.mu.Unlock()

	dept, err := s.api.Department(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.finish(err, "Failed to fetch department posts"); err != nil {
		return nil, err
	}
	s.current = dept
	s.posts = client.LinkRelations(dept.Messages)
	return s.posts, nil
}

// A Board is everything needed to render a department board.
type Board struct {
	Department *client.DepartmentDetail
	Page       *client.PostPage
}

// LoadBoard fetches the department and the first page of its posts
// concurrently and returns once both have arrived. q.DepartmentID and
// q.Page are set by LoadBoard.
func (s *DepartmentStore) LoadBoard(ctx context.Context, id int64, q client.PostQuery) (*Board, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}

	var (
		dept *client.DepartmentDetail
		page *client.PostPage
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		dept, err = s.api.Department(gctx, id)
		return err
	})
	g.Go(func() error {
		q.DepartmentID = id
		q.Page = 1
		var err error
		page, err = s.api.Posts(gctx, q)
		return err
	})
	err := g.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.finish(err, "Failed to load department"); err != nil {
		return nil, err
	}
	page.Posts = client.LinkRelations(page.Posts)
	s.current = dept
	s.posts = page.Posts
	return &Board{Department: dept, Page: page}, nil
}

// Departments returns the list loaded by FetchAll.
func (s *DepartmentStore) Departments() []client.Department {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.departments)
}

// Current returns the department loaded by FetchByID, FetchPosts or
// LoadBoard.
func (s *DepartmentStore) Current() *client.DepartmentDetail {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Posts returns the posts loaded by FetchPosts or LoadBoard.
func (s *DepartmentStore) Posts() []client.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.posts)
}

// Classes returns the current department's classes.
func (s *DepartmentStore) Classes() []client.Class {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	return s.current.Classes
}

// Professors returns the current department's professors.
func (s *DepartmentStore) Professors() []client.Professor {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	return s.current.Professors
}

// Lookup finds a department from the loaded list by id.
func (s *DepartmentStore) Lookup(id int64) (client.Department, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.departments, func(d client.Department) bool { return d.ID == id })
	if i < 0 {
		return client.Department{}, false
	}
	return s.departments[i], true
}

// LookupByCode finds a department from the loaded list by its code, e.g. "CSC".
func (s *DepartmentStore) LookupByCode(code string) (client.Department, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.departments, func(d client.Department) bool { return d.Code == code })
	if i < 0 {
		return client.Department{}, false
	}
	return s.departments[i], true
}

// Close releases the store. Later calls fail with ErrClosed.
func (s *DepartmentStore) Close() error {
	s.close()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.departments = nil
	s.current = nil
	s.posts = nil
	return nil
}
