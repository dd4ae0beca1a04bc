package client

import (
	"cmp"
	"context"
	"net/http"
	"slices"
)

// Departments lists all departments.
func (c *Client) Departments(ctx context.Context) ([]Department, error) {
	var out []Department
	if err := c.do(ctx, http.MethodGet, "/api/departments", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Department returns a department with its classes, professors and posts.
// An unknown id yields an error matching ErrNotFound.
func (c *Client) Department(ctx context.Context, id int64) (*DepartmentDetail, error) {
	var out DepartmentDetail
	if err := c.do(ctx, http.MethodGet, idPath("/api/departments/%s", id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DepartmentPosts returns the posts of a department with their class and
// professor relations resolved. A post without an explicit professor takes
// the first professor listed on its class.
func (c *Client) DepartmentPosts(ctx context.Context, id int64) ([]Post, error) {
	dept, err := c.Department(ctx, id)
	if err != nil {
		return nil, err
	}
	return LinkRelations(dept.Messages), nil
}

// LinkRelations fills a missing professor with the lowest-id professor of
// the post's class, the one the server's professor filter matches, and
// replaces nil vote sets with empty ones.
func LinkRelations(posts []Post) []Post {
	out := make([]Post, len(posts))
	for i, p := range posts {
		if p.Professor == nil && p.Class != nil && len(p.Class.Professors) > 0 {
			prof := slices.MinFunc(p.Class.Professors, func(a, b Professor) int {
				return cmp.Compare(a.ID, b.ID)
			})
			p.Professor = &prof
		}
		if p.LikedBy == nil {
			p.LikedBy = []string{}
		}
		if p.DislikedBy == nil {
			p.DislikedBy = []string{}
		}
		out[i] = p
	}
	return out
}
