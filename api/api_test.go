package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/neilotoole/slogt"

	"github.com/wolftalk/wolftalk/validator"
)

func int64p(v int64) *int64 { return &v }

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func testPost(id int64) Post {
	return Post{
		ID:           id,
		Title:        "Exam",
		Body:         "When is the midterm?",
		Sender:       User{ID: 1, UnityID: "jdoe", DisplayName: "Jane"},
		DepartmentID: int64p(4),
		Timestamp:    t0,
		LikedBy:      []string{},
		DislikedBy:   []string{},
	}
}

func TestAPI_listPosts(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		db         *testdb
		cache      *testcache
		wantStatus int
		wantBody   string
	}{
		{
			name:  "DBError",
			query: "?department=4",
			cache: &testcache{
				listPosts: func(t *testing.T, departmentID int64) ([]Post, error) {
					return nil, nil
				},
			},
			db: &testdb{
				listPosts: func(t *testing.T, f PostFilter, excludeIDs ...int64) ([]Post, error) {
					return nil, errors.New("something went wrong")
				},
			},
			wantStatus: 500,
			wantBody: `{
				"error": "Could not list posts"
			}`,
		},
		{
			name:  "CacheError",
			query: "?department=4",
			cache: &testcache{
				listPosts: func(t *testing.T, departmentID int64) ([]Post, error) {
					return nil, errors.New("something went wrong")
				},
			},
			wantStatus: 500,
			wantBody: `{
				"error": "Could not list posts"
			}`,
		},
		{
			name:  "Empty",
			query: "?department=4",
			cache: &testcache{
				listPosts: func(t *testing.T, departmentID int64) ([]Post, error) {
					return nil, nil
				},
			},
			db: &testdb{
				listPosts: func(t *testing.T, f PostFilter, excludeIDs ...int64) ([]Post, error) {
					return nil, nil
				},
			},
			wantStatus: 200,
			wantBody: `{
				"posts": [],
				"page": 1,
				"hasMore": false
			}`,
		},
		{
			name:  "Mixed",
			query: "?department=4&limit=2",
			cache: &testcache{
				listPosts: func(t *testing.T, departmentID int64) ([]Post, error) {
					if departmentID != 4 {
						t.Errorf("cache ListPosts(%d), want 4", departmentID)
					}
					p := testPost(2)
					p.LikedBy = []string{"asmith"}
					return []Post{p}, nil
				},
			},
			db: &testdb{
				listPosts: func(t *testing.T, f PostFilter, excludeIDs ...int64) ([]Post, error) {
					if diff := cmp.Diff([]int64{2}, excludeIDs); diff != "" {
						t.Errorf("excludeIDs (-want +got):\n%s", diff)
					}
					if f.Limit != 2 {
						t.Errorf("Limit = %d, want 2", f.Limit)
					}
					return []Post{testPost(1)}, nil
				},
			},
			wantStatus: 200,
			wantBody: `{
				"posts": [
					{
						"id": 2,
						"title": "Exam",
						"body": "When is the midterm?",
						"sender": {"id": 1, "unityId": "jdoe", "displayName": "Jane"},
						"parentId": null,
						"departmentId": 4,
						"timestamp": "2024-01-01T00:00:00Z",
						"likedBy": ["asmith"],
						"dislikedBy": [],
						"viewCount": 0,
						"commentCount": 0
					},
					{
						"id": 1,
						"title": "Exam",
						"body": "When is the midterm?",
						"sender": {"id": 1, "unityId": "jdoe", "displayName": "Jane"},
						"parentId": null,
						"departmentId": 4,
						"timestamp": "2024-01-01T00:00:00Z",
						"likedBy": [],
						"dislikedBy": [],
						"viewCount": 0,
						"commentCount": 0
					}
				],
				"page": 1,
				"hasMore": false
			}`,
		},
		{
			name:  "HasMore",
			query: "?department=4&limit=1&page=2",
			db: &testdb{
				listPosts: func(t *testing.T, f PostFilter, excludeIDs ...int64) ([]Post, error) {
					if f.Offset != 1 || f.Limit != 2 {
						t.Errorf("Offset, Limit = %d, %d, want 1, 2", f.Offset, f.Limit)
					}
					return []Post{testPost(2), testPost(1)}, nil
				},
			},
			wantStatus: 200,
			wantBody: `{
				"posts": [
					{
						"id": 2,
						"title": "Exam",
						"body": "When is the midterm?",
						"sender": {"id": 1, "unityId": "jdoe", "displayName": "Jane"},
						"parentId": null,
						"departmentId": 4,
						"timestamp": "2024-01-01T00:00:00Z",
						"likedBy": [],
						"dislikedBy": [],
						"viewCount": 0,
						"commentCount": 0
					}
				],
				"page": 2,
				"hasMore": true
			}`,
		},
		{
			name:  "FilteredSkipsCache",
			query: "?department=4&course=CSC%20316&professor=%2012&sort=popular",
			db: &testdb{
				listPosts: func(t *testing.T, f PostFilter, excludeIDs ...int64) ([]Post, error) {
					want := PostFilter{DepartmentID: 4, Course: "CSC 316", ProfessorID: 12, Sort: SortPopular, Limit: 11}
					if diff := cmp.Diff(want, f); diff != "" {
						t.Errorf("PostFilter (-want +got):\n%s", diff)
					}
					return nil, nil
				},
			},
			wantStatus: 200,
			wantBody: `{
				"posts": [],
				"page": 1,
				"hasMore": false
			}`,
		},
		{
			name:       "BadPage",
			query:      "?page=x",
			wantStatus: 400,
			wantBody: `{
				"error": "Invalid query parameter"
			}`,
		},
		{
			name:       "PageOutOfRange",
			query:      "?page=0",
			wantStatus: 400,
			wantBody: `{
				"errors": [
					{
						"field": "page",
						"message": "Key: 'pageQuery.page' Error:Field validation for 'page' failed on the 'gte' tag"
					}
				]
			}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.db == nil {
				tt.db = &testdb{}
			}
			if tt.cache == nil {
				tt.cache = &testcache{}
			}
			tt.db.T = t
			tt.cache.T = t
			api := &API{
				Logger: slogt.New(t),
				DB:     tt.db,
				Cache:  tt.cache,
				Val:    validator.New(),
			}

			srv := httptest.NewServer(api)
			defer srv.Close()

			resp, err := http.Get(srv.URL + "/api/posts" + tt.query)
			if err != nil {
				t.Fatal(err)
			}
			checkStatus(t, resp.StatusCode, tt.wantStatus)
			checkBody(t, resp, tt.wantBody)
		})
	}
}

func TestAPI_createPost(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		req        string
		db         *testdb
		cache      *testcache
		wantStatus  int
		wantBody    string
		wantLog     string
		wantUpdated []int64
	}{
		{
			name:       "InvalidBody",
			path:       "/api/posts",
			req:        `{`,
			wantStatus: 400,
			wantBody: `{
				"error": "Could not decode request body"
			}`,
		},
		{
			name:       "Invalid",
			path:       "/api/posts",
			req:        `{"title": "Hi", "senderId": "Not A Unity ID"}`,
			wantStatus: 400,
			wantBody: `{
				"errors": [
					{
						"field": "content",
						"message": "Key: 'postRequest.content' Error:Field validation for 'content' failed on the 'required' tag"
					},
					{
						"field": "senderId",
						"message": "Key: 'postRequest.senderId' Error:Field validation for 'senderId' failed on the 'unityid' tag"
					}
				]
			}`,
		},
		{
			name: "DBError",
			path: "/api/posts",
			req:  `{"title": "Exam", "content": "When is the midterm?", "senderId": "jdoe", "departmentId": 4}`,
			db: &testdb{
				insertPost: func(t *testing.T, p Post) (Post, error) {
					return Post{}, errors.New("something went wrong")
				},
			},
			wantStatus: 500,
			wantBody: `{
				"error": "Could not insert post"
			}`,
		},
		{
			name: "CacheErrorIgnored",
			path: "/api/posts",
			req:  `{"title": "Exam", "content": "When is the midterm?", "senderId": "jdoe", "departmentId": 4}`,
			db: &testdb{
				insertPost: func(t *testing.T, p Post) (Post, error) {
					if p.Body != "When is the midterm?" || p.Sender.UnityID != "jdoe" || *p.DepartmentID != 4 {
						t.Errorf("InsertPost(%+v)", p)
					}
					p.ID = 1
					p.Sender = User{ID: 1, UnityID: "jdoe", DisplayName: "Jane"}
					p.Timestamp = t0
					p.LikedBy = []string{}
					p.DislikedBy = []string{}
					return p, nil
				},
			},
			cache: &testcache{
				insertPost: func(t *testing.T, p Post) error {
					return errors.New("cache down")
				},
			},
			wantStatus: 201,
			wantBody: `{
				"id": 1,
				"title": "Exam",
				"body": "When is the midterm?",
				"sender": {"id": 1, "unityId": "jdoe", "displayName": "Jane"},
				"parentId": null,
				"departmentId": 4,
				"timestamp": "2024-01-01T00:00:00Z",
				"likedBy": [],
				"dislikedBy": [],
				"viewCount": 0,
				"commentCount": 0
			}`,
			wantLog: "Could not cache post",
		},
		{
			name: "Comment",
			path: "/api/posts/9/comments",
			req:  `{"content": "Next week", "senderId": "asmith"}`,
			db: &testdb{
				getPost: func(t *testing.T, id int64) (Post, error) {
					p := testPost(id)
					p.CommentCount = 1
					return p, nil
				},
				insertPost: func(t *testing.T, p Post) (Post, error) {
					if p.ParentID == nil || *p.ParentID != 9 {
						t.Errorf("ParentID = %v, want 9", p.ParentID)
					}
					p.ID = 10
					p.Sender = User{ID: 2, UnityID: "asmith"}
					p.Timestamp = t0
					p.LikedBy = []string{}
					p.DislikedBy = []string{}
					return p, nil
				},
			},
			cache: &testcache{
				insertPost: func(t *testing.T, p Post) error {
					t.Error("comment was cached")
					return nil
				},
			},
			wantStatus: 201,
			wantBody: `{
				"id": 10,
				"title": "",
				"body": "Next week",
				"sender": {"id": 2, "unityId": "asmith", "displayName": ""},
				"parentId": 9,
				"timestamp": "2024-01-01T00:00:00Z",
				"likedBy": [],
				"dislikedBy": [],
				"viewCount": 0,
				"commentCount": 0
			}`,
			wantUpdated: []int64{9},
		},
		{
			name: "CommentParentReloadError",
			path: "/api/posts/9/comments",
			req:  `{"content": "Next week", "senderId": "asmith"}`,
			db: &testdb{
				getPost: func(t *testing.T, id int64) (Post, error) {
					return Post{}, errors.New("connection reset")
				},
				insertPost: func(t *testing.T, p Post) (Post, error) {
					p.ID = 10
					p.Timestamp = t0
					p.LikedBy, p.DislikedBy = []string{}, []string{}
					return p, nil
				},
			},
			wantStatus: 201,
			wantBody: `{
				"id": 10,
				"title": "",
				"body": "Next week",
				"sender": {"id": 0, "unityId": "asmith", "displayName": ""},
				"parentId": 9,
				"timestamp": "2024-01-01T00:00:00Z",
				"likedBy": [],
				"dislikedBy": [],
				"viewCount": 0,
				"commentCount": 0
			}`,
			wantLog: "Could not reload parent post",
		},
		{
			name: "ParentNotFound",
			path: "/api/posts/9/comments",
			req:  `{"content": "Next week", "senderId": "asmith"}`,
			db: &testdb{
				insertPost: func(t *testing.T, p Post) (Post, error) {
					return Post{}, ErrNotFound
				},
			},
			wantStatus: 404,
			wantBody: `{
				"error": "Not found"
			}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.db == nil {
				tt.db = &testdb{}
			}
			if tt.cache == nil {
				tt.cache = &testcache{}
			}
			tt.db.T = t
			tt.cache.T = t
			var logs bytes.Buffer
			api := &API{
				Logger: slog.New(slog.NewTextHandler(&logs, nil)),
				DB:     tt.db,
				Cache:  tt.cache,
				Val:    validator.New(),
			}

			srv := httptest.NewServer(api)
			defer srv.Close()

			resp, err := http.Post(srv.URL+tt.path, "application/json", strings.NewReader(tt.req))
			if err != nil {
				t.Fatal(err)
			}
			checkStatus(t, resp.StatusCode, tt.wantStatus)
			checkBody(t, resp, tt.wantBody)
			checkLog(t, &logs, tt.wantLog)
			if diff := cmp.Diff(tt.wantUpdated, updatedIDs(tt.cache)); diff != "" {
				t.Errorf("cache updates (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAPI_vote(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		path       string
		req        string
		db         *testdb
		wantStatus int
		wantBody   string
	}{
		{
			name:   "Like",
			method: "POST",
			path:   "/api/posts/1/like",
			req:    `{"unityId": "jdoe"}`,
			db: &testdb{
				addVote: func(t *testing.T, id int64, kind VoteKind, unityID string) (Post, error) {
					if id != 1 || kind != Like || unityID != "jdoe" {
						t.Errorf("AddVote(%d, %s, %s)", id, kind, unityID)
					}
					p := testPost(1)
					p.LikedBy = []string{"jdoe"}
					return p, nil
				},
			},
			wantStatus: 200,
			wantBody: `{
				"id": 1,
				"title": "Exam",
				"body": "When is the midterm?",
				"sender": {"id": 1, "unityId": "jdoe", "displayName": "Jane"},
				"parentId": null,
				"departmentId": 4,
				"timestamp": "2024-01-01T00:00:00Z",
				"likedBy": ["jdoe"],
				"dislikedBy": [],
				"viewCount": 0,
				"commentCount": 0
			}`,
		},
		{
			name:   "RemoveDislike",
			method: "PUT",
			path:   "/api/posts/1/remove/dislike",
			req:    `{"unityId": "jdoe"}`,
			db: &testdb{
				removeVote: func(t *testing.T, id int64, kind VoteKind, unityID string) (Post, error) {
					if kind != Dislike {
						t.Errorf("RemoveVote kind = %s, want dislike", kind)
					}
					return testPost(1), nil
				},
			},
			wantStatus: 200,
			wantBody: `{
				"id": 1,
				"title": "Exam",
				"body": "When is the midterm?",
				"sender": {"id": 1, "unityId": "jdoe", "displayName": "Jane"},
				"parentId": null,
				"departmentId": 4,
				"timestamp": "2024-01-01T00:00:00Z",
				"likedBy": [],
				"dislikedBy": [],
				"viewCount": 0,
				"commentCount": 0
			}`,
		},
		{
			name:   "NotFound",
			method: "POST",
			path:   "/api/posts/99/dislike",
			req:    `{"unityId": "jdoe"}`,
			db: &testdb{
				addVote: func(t *testing.T, id int64, kind VoteKind, unityID string) (Post, error) {
					return Post{}, ErrNotFound
				},
			},
			wantStatus: 404,
			wantBody: `{
				"error": "Not found"
			}`,
		},
		{
			name:       "MissingUser",
			method:     "POST",
			path:       "/api/posts/1/like",
			req:        `{}`,
			wantStatus: 400,
			wantBody: `{
				"errors": [
					{
						"field": "unityId",
						"message": "Key: 'request.unityId' Error:Field validation for 'unityId' failed on the 'required' tag"
					}
				]
			}`,
		},
		{
			name:       "BadID",
			method:     "POST",
			path:       "/api/posts/abc/like",
			req:        `{"unityId": "jdoe"}`,
			wantStatus: 400,
			wantBody: `{
				"error": "Invalid id"
			}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.db == nil {
				tt.db = &testdb{}
			}
			tt.db.T = t
			cache := &testcache{T: t}
			api := &API{
				Logger: slogt.New(t),
				DB:     tt.db,
				Cache:  cache,
				Val:    validator.New(),
			}

			srv := httptest.NewServer(api)
			defer srv.Close()

			req, _ := http.NewRequest(tt.method, srv.URL+tt.path, strings.NewReader(tt.req))
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatal(err)
			}
			checkStatus(t, resp.StatusCode, tt.wantStatus)
			checkBody(t, resp, tt.wantBody)
			if tt.wantStatus == 200 && len(cache.updated) != 1 {
				t.Errorf("cache updated %d times, want 1", len(cache.updated))
			}
		})
	}
}

func TestAPI_deletePost(t *testing.T) {
	comment := testPost(5)
	comment.ParentID = int64p(1)

	tests := []struct {
		name        string
		path        string
		post        Post
		wantStatus  int
		wantDeleted bool
		wantEvicted bool
		wantUpdated []int64
	}{
		{
			name:        "Post",
			path:        "/api/posts/1",
			post:        testPost(1),
			wantStatus:  204,
			wantDeleted: true,
			wantEvicted: true,
		},
		{
			name:        "Comment",
			path:        "/api/comments/5",
			post:        comment,
			wantStatus:  204,
			wantDeleted: true,
			wantUpdated: []int64{1},
		},
		{
			name:       "CommentOnPostRoute",
			path:       "/api/posts/5",
			post:       comment,
			wantStatus: 404,
		},
		{
			name:       "PostOnCommentRoute",
			path:       "/api/comments/1",
			post:       testPost(1),
			wantStatus: 404,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var deleted, evicted bool
			db := &testdb{
				T: t,
				getPost: func(t *testing.T, id int64) (Post, error) {
					if id == tt.post.ID {
						return tt.post, nil
					}
					return testPost(id), nil
				},
				deletePost: func(t *testing.T, id int64) (Post, error) {
					deleted = true
					return tt.post, nil
				},
			}
			cache := &testcache{
				T: t,
				deletePost: func(t *testing.T, p Post) error {
					evicted = true
					return nil
				},
			}
			api := &API{Logger: slogt.New(t), DB: db, Cache: cache, Val: validator.New()}

			srv := httptest.NewServer(api)
			defer srv.Close()

			req, _ := http.NewRequest("DELETE", srv.URL+tt.path, nil)
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			checkStatus(t, resp.StatusCode, tt.wantStatus)
			if deleted != tt.wantDeleted {
				t.Errorf("deleted = %v, want %v", deleted, tt.wantDeleted)
			}
			if evicted != tt.wantEvicted {
				t.Errorf("evicted = %v, want %v", evicted, tt.wantEvicted)
			}
			if diff := cmp.Diff(tt.wantUpdated, updatedIDs(cache)); diff != "" {
				t.Errorf("cache updates (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAPI_updatePost(t *testing.T) {
	db := &testdb{
		T: t,
		getPost: func(t *testing.T, id int64) (Post, error) {
			return testPost(id), nil
		},
		updatePost: func(t *testing.T, id int64, u PostUpdate) (Post, error) {
			if u.ClassID == nil || *u.ClassID != 10 || u.ProfessorID != nil {
				t.Errorf("UpdatePost(%d, %+v)", id, u)
			}
			p := testPost(id)
			p.Title = u.Title
			p.Body = u.Body
			p.Class = &Class{ID: 10, CourseTitle: "CSC 316"}
			return p, nil
		},
	}
	cache := &testcache{T: t}
	api := &API{Logger: slogt.New(t), DB: db, Cache: cache, Val: validator.New()}

	srv := httptest.NewServer(api)
	defer srv.Close()

	req, _ := http.NewRequest("PUT", srv.URL+"/api/posts/3", strings.NewReader(`{"title": "Final", "body": "Room?", "clazz": 10}`))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	checkStatus(t, resp.StatusCode, 200)
	checkBody(t, resp, `{
		"id": 3,
		"title": "Final",
		"body": "Room?",
		"sender": {"id": 1, "unityId": "jdoe", "displayName": "Jane"},
		"parentId": null,
		"departmentId": 4,
		"clazz": {"id": 10, "courseTitle": "CSC 316"},
		"timestamp": "2024-01-01T00:00:00Z",
		"likedBy": [],
		"dislikedBy": [],
		"viewCount": 0,
		"commentCount": 0
	}`)
	if len(cache.updated) != 1 || cache.updated[0].Title != "Final" {
		t.Errorf("cache updated with %+v", cache.updated)
	}
}

func TestAPI_departments(t *testing.T) {
	db := &testdb{
		T: t,
		listDepartments: func(t *testing.T) ([]Department, error) {
			return []Department{{ID: 4, Name: "Computer Science", Code: "CSC"}}, nil
		},
		getDepartment: func(t *testing.T, id int64) (DepartmentDetail, error) {
			if id != 4 {
				return DepartmentDetail{}, ErrNotFound
			}
			return DepartmentDetail{
				Department: Department{ID: 4, Name: "Computer Science", Code: "CSC"},
				Classes:    []Class{{ID: 10, CourseTitle: "CSC 316", Professors: []Professor{{ID: 12, Name: "Dr. King"}}}},
				Professors: []Professor{{ID: 12, Name: "Dr. King"}},
				Messages:   []Post{},
			}, nil
		},
	}
	api := &API{Logger: slogt.New(t), DB: db, Cache: &testcache{T: t}, Val: validator.New()}
	srv := httptest.NewServer(api)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/departments")
	if err != nil {
		t.Fatal(err)
	}
	checkStatus(t, resp.StatusCode, 200)
	checkBody(t, resp, `[{"id": 4, "name": "Computer Science", "code": "CSC"}]`)

	resp, err = http.Get(srv.URL + "/api/departments/4")
	if err != nil {
		t.Fatal(err)
	}
	checkStatus(t, resp.StatusCode, 200)
	checkBody(t, resp, `{
		"id": 4,
		"name": "Computer Science",
		"code": "CSC",
		"classes": [{"id": 10, "courseTitle": "CSC 316", "professors": [{"id": 12, "name": "Dr. King"}]}],
		"professors": [{"id": 12, "name": "Dr. King"}],
		"messages": []
	}`)

	resp, err = http.Get(srv.URL + "/api/departments/5")
	if err != nil {
		t.Fatal(err)
	}
	checkStatus(t, resp.StatusCode, 404)
	checkBody(t, resp, `{"error": "Not found"}`)
}

func TestAPI_listComments(t *testing.T) {
	db := &testdb{
		T: t,
		getPost: func(t *testing.T, id int64) (Post, error) {
			if id != 1 {
				return Post{}, ErrNotFound
			}
			return testPost(1), nil
		},
		listPosts: func(t *testing.T, f PostFilter, excludeIDs ...int64) ([]Post, error) {
			want := PostFilter{ParentID: 1, Limit: 5, Offset: 5}
			if diff := cmp.Diff(want, f); diff != "" {
				t.Errorf("PostFilter (-want +got):\n%s", diff)
			}
			return nil, nil
		},
	}
	api := &API{Logger: slogt.New(t), DB: db, Cache: &testcache{T: t}, Val: validator.New()}
	srv := httptest.NewServer(api)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/posts/1/comments?page=2&limit=5")
	if err != nil {
		t.Fatal(err)
	}
	checkStatus(t, resp.StatusCode, 200)
	checkBody(t, resp, `[]`)

	resp, err = http.Get(srv.URL + "/api/posts/2/comments")
	if err != nil {
		t.Fatal(err)
	}
	checkStatus(t, resp.StatusCode, 404)
	checkBody(t, resp, `{"error": "Not found"}`)
}

func TestAPI_requestID(t *testing.T) {
	db := &testdb{
		T: t,
		listDepartments: func(t *testing.T) ([]Department, error) {
			return nil, nil
		},
	}
	api := &API{Logger: slogt.New(t), DB: db, Cache: &testcache{T: t}, Val: validator.New()}
	srv := httptest.NewServer(api)
	defer srv.Close()

	req, _ := http.NewRequest("GET", srv.URL+"/api/departments", nil)
	req.Header.Set("X-Request-ID", "abc")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("X-Request-ID"); got != "abc" {
		t.Errorf("X-Request-ID = %q, want abc", got)
	}

	resp, err = http.Get(srv.URL + "/api/departments")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("X-Request-ID"); len(got) != 36 {
		t.Errorf("X-Request-ID = %q, want a generated uuid", got)
	}
}

type testdb struct {
	T               *testing.T
	listDepartments func(t *testing.T) ([]Department, error)
	getDepartment   func(t *testing.T, id int64) (DepartmentDetail, error)
	listPosts       func(t *testing.T, f PostFilter, excludeIDs ...int64) ([]Post, error)
	getPost         func(t *testing.T, id int64) (Post, error)
	insertPost      func(t *testing.T, p Post) (Post, error)
	updatePost      func(t *testing.T, id int64, u PostUpdate) (Post, error)
	deletePost      func(t *testing.T, id int64) (Post, error)
	addVote         func(t *testing.T, id int64, kind VoteKind, unityID string) (Post, error)
	removeVote      func(t *testing.T, id int64, kind VoteKind, unityID string) (Post, error)

	ensureUser         func(t *testing.T, p Profile) (Profile, error)
	getUser            func(t *testing.T, unityID string) (Profile, error)
	updateProfile      func(t *testing.T, unityID string, u ProfileUpdate) (Profile, error)
	addFriend          func(t *testing.T, userID, friendID int64) (FriendStatus, error)
	friendStatus       func(t *testing.T, userID, friendID int64) (FriendStatus, error)
	listFriends        func(t *testing.T, userID int64) ([]User, error)
	listConversations  func(t *testing.T, userID int64) ([]Conversation, error)
	createConversation func(t *testing.T, userID int64, c NewConversation) (Conversation, error)
	addParticipant     func(t *testing.T, byUserID, userID, groupID int64) (Conversation, error)
	listGroupMessages  func(t *testing.T, userID, groupID int64) ([]DirectMessage, error)
	sendMessage        func(t *testing.T, userID, groupID int64, content string) (DirectMessage, error)
}

func (db *testdb) ListDepartments(_ context.Context) ([]Department, error) {
	return db.listDepartments(db.T)
}

func (db *testdb) GetDepartment(_ context.Context, id int64) (DepartmentDetail, error) {
	return db.getDepartment(db.T, id)
}

func (db *testdb) ListPosts(_ context.Context, f PostFilter, excludeIDs ...int64) ([]Post, error) {
	return db.listPosts(db.T, f, excludeIDs...)
}

func (db *testdb) GetPost(_ context.Context, id int64) (Post, error) {
	return db.getPost(db.T, id)
}

func (db *testdb) InsertPost(_ context.Context, p Post) (Post, error) {
	return db.insertPost(db.T, p)
}

func (db *testdb) UpdatePost(_ context.Context, id int64, u PostUpdate) (Post, error) {
	return db.updatePost(db.T, id, u)
}

func (db *testdb) DeletePost(_ context.Context, id int64) (Post, error) {
	return db.deletePost(db.T, id)
}

func (db *testdb) AddVote(_ context.Context, id int64, kind VoteKind, unityID string) (Post, error) {
	return db.addVote(db.T, id, kind, unityID)
}

func (db *testdb) RemoveVote(_ context.Context, id int64, kind VoteKind, unityID string) (Post, error) {
	return db.removeVote(db.T, id, kind, unityID)
}

func (db *testdb) EnsureUser(_ context.Context, p Profile) (Profile, error) {
	return db.ensureUser(db.T, p)
}

func (db *testdb) GetUser(_ context.Context, unityID string) (Profile, error) {
	return db.getUser(db.T, unityID)
}

func (db *testdb) UpdateProfile(_ context.Context, unityID string, u ProfileUpdate) (Profile, error) {
	return db.updateProfile(db.T, unityID, u)
}

func (db *testdb) AddFriend(_ context.Context, userID, friendID int64) (FriendStatus, error) {
	return db.addFriend(db.T, userID, friendID)
}

func (db *testdb) FriendStatus(_ context.Context, userID, friendID int64) (FriendStatus, error) {
	return db.friendStatus(db.T, userID, friendID)
}

func (db *testdb) ListFriends(_ context.Context, userID int64) ([]User, error) {
	return db.listFriends(db.T, userID)
}

func (db *testdb) ListConversations(_ context.Context, userID int64) ([]Conversation, error) {
	return db.listConversations(db.T, userID)
}

func (db *testdb) CreateConversation(_ context.Context, userID int64, c NewConversation) (Conversation, error) {
	return db.createConversation(db.T, userID, c)
}

func (db *testdb) AddParticipant(_ context.Context, byUserID, userID, groupID int64) (Conversation, error) {
	return db.addParticipant(db.T, byUserID, userID, groupID)
}

func (db *testdb) ListGroupMessages(_ context.Context, userID, groupID int64) ([]DirectMessage, error) {
	return db.listGroupMessages(db.T, userID, groupID)
}

func (db *testdb) SendMessage(_ context.Context, userID, groupID int64, content string) (DirectMessage, error) {
	return db.sendMessage(db.T, userID, groupID, content)
}

type testcache struct {
	T          *testing.T
	listPosts  func(t *testing.T, departmentID int64) ([]Post, error)
	insertPost func(t *testing.T, p Post) error
	deletePost func(t *testing.T, p Post) error
	updated    []Post
}

func (c *testcache) ListPosts(_ context.Context, departmentID int64) ([]Post, error) {
	if c.listPosts == nil {
		return nil, nil
	}
	return c.listPosts(c.T, departmentID)
}

func (c *testcache) InsertPost(_ context.Context, p Post) error {
	if c.insertPost == nil {
		return nil
	}
	return c.insertPost(c.T, p)
}

func (c *testcache) UpdatePost(_ context.Context, p Post) error {
	c.updated = append(c.updated, p)
	return nil
}

func (c *testcache) DeletePost(_ context.Context, p Post) error {
	if c.deletePost == nil {
		return nil
	}
	return c.deletePost(c.T, p)
}

func updatedIDs(c *testcache) []int64 {
	var ids []int64
	for _, p := range c.updated {
		ids = append(ids, p.ID)
	}
	return ids
}

func checkStatus(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("Got HTTP status %d, want %d", got, want)
	}
}

func checkBody(t *testing.T, resp *http.Response, want string) {
	t.Helper()
	defer resp.Body.Close()
	gotBody := normalizeJSON(t, resp.Body)
	wantBody := normalizeJSON(t, bytes.NewReader([]byte(want)))
	if gotBody != wantBody {
		t.Errorf("Body does not match\nGot\n  %s\n\nWant\n  %s", gotBody, wantBody)
	}
}

func checkLog(t *testing.T, buffer *bytes.Buffer, want string) {
	t.Helper()

	if s := buffer.String(); want != "" && !strings.Contains(s, want) {
		t.Errorf("Log does not contain  %s\n", want)
	}
}

func checkText(t *testing.T, resp *http.Response, want string) {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Could not read body: %v", err)
	}
	if got := string(b); got != want {
		t.Errorf("Body = %q, want %q", got, want)
	}
}

// normalizeJSON re-encodes JSON with sorted keys and fixed indentation.
func normalizeJSON(t *testing.T, r io.Reader) string {
	t.Helper()
	b, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("Could not read JSON: %v", err)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		t.Fatalf("Could not decode JSON: %v", err)
	}
	out, err := json.MarshalIndent(v, "  ", "  ")
	if err != nil {
		t.Fatalf("Could not encode JSON: %v", err)
	}
	return strings.TrimSpace(string(out))
}
