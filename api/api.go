package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolftalk/wolftalk/validator"
)

// A DB provides a storage layer that persists the forum.
type DB interface {
	ListDepartments(ctx context.Context) ([]Department, error)
	GetDepartment(ctx context.Context, id int64) (DepartmentDetail, error)
	ListPosts(ctx context.Context, f PostFilter, excludeIDs ...int64) ([]Post, error)
	GetPost(ctx context.Context, id int64) (Post, error)
	InsertPost(ctx context.Context, p Post) (Post, error)
	UpdatePost(ctx context.Context, id int64, u PostUpdate) (Post, error)
	DeletePost(ctx context.Context, id int64) (Post, error)
	AddVote(ctx context.Context, postID int64, kind VoteKind, unityID string) (Post, error)
	RemoveVote(ctx context.Context, postID int64, kind VoteKind, unityID string) (Post, error)

	EnsureUser(ctx context.Context, p Profile) (Profile, error)
	GetUser(ctx context.Context, unityID string) (Profile, error)
	UpdateProfile(ctx context.Context, unityID string, u ProfileUpdate) (Profile, error)
	AddFriend(ctx context.Context, userID, friendID int64) (FriendStatus, error)
	FriendStatus(ctx context.Context, userID, friendID int64) (FriendStatus, error)
	ListFriends(ctx context.Context, userID int64) ([]User, error)

	ListConversations(ctx context.Context, userID int64) ([]Conversation, error)
	CreateConversation(ctx context.Context, userID int64, c NewConversation) (Conversation, error)
	AddParticipant(ctx context.Context, byUserID, userID, groupID int64) (Conversation, error)
	ListGroupMessages(ctx context.Context, userID, groupID int64) ([]DirectMessage, error)
	SendMessage(ctx context.Context, userID, groupID int64, content string) (DirectMessage, error)
}

// A Cache provides a storage layer that caches each department's newest posts.
type Cache interface {
	ListPosts(ctx context.Context, departmentID int64) ([]Post, error)
	InsertPost(ctx context.Context, p Post) error
	UpdatePost(ctx context.Context, p Post) error
	DeletePost(ctx context.Context, p Post) error
}

// API provides the REST endpoints for the application.
type API struct {
	Logger *slog.Logger
	DB     DB
	Cache  Cache
	Val    *validator.Validator

	once sync.Once
	mux  *http.ServeMux
}

// pageSize defines the default number of items displayed on a single page in pagination.
var pageSize = 10

func (a *API) setupRoutes() {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/departments", a.listDepartments)
	mux.HandleFunc("GET /api/departments/{id}", a.getDepartment)

	mux.HandleFunc("GET /api/posts", a.listPosts)
	mux.HandleFunc("POST /api/posts", a.createPost)
	mux.HandleFunc("GET /api/posts/{id}", a.getPost)
	mux.HandleFunc("PUT /api/posts/{id}", a.updatePost(false))
	mux.HandleFunc("DELETE /api/posts/{id}", a.deletePost(false))

	mux.HandleFunc("POST /api/posts/{id}/like", a.vote(Like, true))
	mux.HandleFunc("POST /api/posts/{id}/dislike", a.vote(Dislike, true))
	mux.HandleFunc("PUT /api/posts/{id}/remove/like", a.vote(Like, false))
	mux.HandleFunc("PUT /api/posts/{id}/remove/dislike", a.vote(Dislike, false))

	mux.HandleFunc("GET /api/posts/{id}/comments", a.listComments)
	mux.HandleFunc("POST /api/posts/{id}/comments", a.createComment)
	mux.HandleFunc("PUT /api/comments/{id}", a.updatePost(true))
	mux.HandleFunc("DELETE /api/comments/{id}", a.deletePost(true))

	mux.HandleFunc("GET /api/profile", a.getProfile)
	mux.HandleFunc("POST /api/profile", a.updateProfile)
	mux.HandleFunc("GET /api/profile/{unityId}", a.getUser)
	mux.HandleFunc("POST /api/profile/{id}/add-friend/{friendId}", a.addFriend)
	mux.HandleFunc("GET /api/profile/{id}/add-friend/{friendId}", a.friendStatus)
	mux.HandleFunc("GET /api/profile/{id}/friends", a.listFriends)

	mux.HandleFunc("GET /api/messages/direct-message/{userId}", a.listConversations)
	mux.HandleFunc("POST /api/messages/create/{userId}", a.createConversation)
	mux.HandleFunc("POST /api/messages/{userId}", a.addParticipant)
	mux.HandleFunc("GET /api/groupchat/{groupId}", a.listGroupMessages)
	mux.HandleFunc("POST /api/groupchat/send/{groupId}/{userId}", a.sendMessage)

	a.mux = mux
}

func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.once.Do(a.setupRoutes)
	reqID := r.Header.Get("X-Request-ID")
	if reqID == "" {
		reqID = uuid.NewString()
	}
	w.Header().Set("X-Request-ID", reqID)
	a.Logger.Info("Request received", "method", r.Method, "path", r.URL.Path, "request_id", reqID)
	a.mux.ServeHTTP(w, r)
}

func (a *API) respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		a.Logger.Error("Could not encode JSON body", "error", err.Error())
	}
}

func (a *API) respondError(w http.ResponseWriter, status int, err error, msg string) {
	type response struct {
		Error string `json:"error"`
	}
	a.Logger.Error("Error", "error", err.Error())
	a.respond(w, status, response{Error: msg})
}

func (a *API) respondText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	if _, err := io.WriteString(w, body); err != nil {
		a.Logger.Error("Could not write text body", "error", err.Error())
	}
}

// respondStorageError maps the storage sentinel errors to their status and
// answers 500 with msg otherwise.
func (a *API) respondStorageError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, ErrNotFound):
		a.respondError(w, http.StatusNotFound, err, "Not found")
	case errors.Is(err, ErrNotParticipant):
		a.respondError(w, http.StatusForbidden, err, "Forbidden")
	case errors.Is(err, ErrAlreadyFriends):
		a.respondError(w, http.StatusBadRequest, err, "You are already friends.")
	default:
		a.respondError(w, http.StatusInternalServerError, err, msg)
	}
}

func (a *API) validateBody(w http.ResponseWriter, s interface{}) bool {
	errs := a.Val.ValidateStruct(s)
	type response struct {
		Errors []validator.ValidationError `json:"errors"`
	}

	if len(errs) > 0 {
		a.respond(w, http.StatusBadRequest, &response{
			Errors: errs,
		})
		return false
	}
	return true
}

// decodeBody reads a JSON request body into dst and validates it.
func (a *API) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		a.respondError(w, http.StatusBadRequest, err, "Could not decode request body")
		return false
	}
	if err := r.Body.Close(); err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not close request body")
		return false
	}
	return a.validateBody(w, dst)
}

func (a *API) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	return a.pathValueID(w, r, "id")
}

// pathValueID parses the positive integer path value name.
func (a *API) pathValueID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		if err == nil {
			err = fmt.Errorf("non-positive id %d", id)
		}
		a.respondError(w, http.StatusBadRequest, err, "Invalid id")
		return 0, false
	}
	return id, true
}

func (a *API) listDepartments(w http.ResponseWriter, r *http.Request) {
	depts, err := a.DB.ListDepartments(r.Context())
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not list departments")
		return
	}
	if depts == nil {
		depts = []Department{}
	}
	a.respond(w, http.StatusOK, depts)
}

func (a *API) getDepartment(w http.ResponseWriter, r *http.Request) {
	id, ok := a.pathID(w, r)
	if !ok {
		return
	}
	dept, err := a.DB.GetDepartment(r.Context(), id)
	if err != nil {
		a.respondStorageError(w, err, "Could not get department")
		return
	}
	a.respond(w, http.StatusOK, dept)
}

// pageQuery holds the paging parameters common to list endpoints.
type pageQuery struct {
	Page  int `json:"page" validate:"gte=1"`
	Limit int `json:"limit" validate:"gte=1,lte=100"`
}

func parsePage(q url.Values) (pageQuery, error) {
	pq := pageQuery{Page: 1, Limit: pageSize}
	var err error
	if v := q.Get("page"); v != "" {
		if pq.Page, err = strconv.Atoi(v); err != nil {
			return pq, fmt.Errorf("page: %w", err)
		}
	}
	if v := q.Get("limit"); v != "" {
		if pq.Limit, err = strconv.Atoi(v); err != nil {
			return pq, fmt.Errorf("limit: %w", err)
		}
	}
	return pq, nil
}

func parseID(v string) (int64, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, nil
	}
	return strconv.ParseInt(v, 10, 64)
}

func (a *API) listPosts(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Posts   []Post `json:"posts"`
		Page    int    `json:"page"`
		HasMore bool   `json:"hasMore"`
	}

	q := r.URL.Query()
	pq, err := parsePage(q)
	if err != nil {
		a.respondError(w, http.StatusBadRequest, err, "Invalid query parameter")
		return
	}
	if !a.validateBody(w, &pq) {
		return
	}
	dept, err := parseID(q.Get("department"))
	if err != nil {
		a.respondError(w, http.StatusBadRequest, err, "Invalid query parameter")
		return
	}
	prof, err := parseID(q.Get("professor"))
	if err != nil {
		a.respondError(w, http.StatusBadRequest, err, "Invalid query parameter")
		return
	}

	f := PostFilter{
		DepartmentID: dept,
		Course:       q.Get("course"),
		ProfessorID:  prof,
		Tag:          q.Get("tag"),
		Sender:       q.Get("user"),
		Sort:         q.Get("sort"),
		Limit:        pq.Limit + 1,
		Offset:       (pq.Page - 1) * pq.Limit,
	}

	posts, err := a.pagePosts(r.Context(), f)
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not list posts")
		return
	}

	res := response{Posts: posts, Page: pq.Page}
	if len(posts) > pq.Limit {
		res.Posts = posts[:pq.Limit]
		res.HasMore = true
	}
	if res.Posts == nil {
		res.Posts = []Post{}
	}
	a.respond(w, http.StatusOK, res)
}

// pagePosts returns up to f.Limit posts. The first page of a department's
// newest posts comes from the cache, with any remainder read from the DB.
func (a *API) pagePosts(ctx context.Context, f PostFilter) ([]Post, error) {
	if !f.cacheable() {
		return a.DB.ListPosts(ctx, f)
	}

	// Get posts from cache
	posts, err := a.Cache.ListPosts(ctx, f.DepartmentID)
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	a.Logger.Info("Got posts from cache", "count", len(posts))
	if len(posts) >= f.Limit {
		return posts[:f.Limit], nil
	}

	// Get any remaining posts from DB
	ids := make([]int64, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	f.Limit -= len(posts)
	dbPosts, err := a.DB.ListPosts(ctx, f, ids...)
	if err != nil {
		return nil, err
	}
	a.Logger.Info("Got remaining posts from DB", "count", len(dbPosts))
	return append(posts, dbPosts...), nil
}

func (a *API) getPost(w http.ResponseWriter, r *http.Request) {
	id, ok := a.pathID(w, r)
	if !ok {
		return
	}
	p, err := a.DB.GetPost(r.Context(), id)
	if err != nil {
		a.respondStorageError(w, err, "Could not get post")
		return
	}
	a.respond(w, http.StatusOK, p)
}

type postRequest struct {
	Title        string `json:"title" validate:"max=200"`
	Content      string `json:"content" validate:"required"`
	SenderID     string `json:"senderId" validate:"required,unityid"`
	DepartmentID *int64 `json:"departmentId"`
	ClassID      *int64 `json:"classId"`
	ProfessorID  *int64 `json:"professorId"`
	ParentID     *int64 `json:"parentId"`
}

func (req postRequest) post() Post {
	p := Post{
		Title:        req.Title,
		Body:         req.Content,
		Sender:       User{UnityID: req.SenderID},
		ParentID:     req.ParentID,
		DepartmentID: req.DepartmentID,
		Timestamp:    time.Now(),
	}
	if req.ClassID != nil {
		p.Class = &Class{ID: *req.ClassID}
	}
	if req.ProfessorID != nil {
		p.Professor = &Professor{ID: *req.ProfessorID}
	}
	return p
}

func (a *API) createPost(w http.ResponseWriter, r *http.Request) {
	var body postRequest
	if !a.decodeBody(w, r, &body) {
		return
	}
	a.insertPost(w, r, body.post())
}

func (a *API) createComment(w http.ResponseWriter, r *http.Request) {
	id, ok := a.pathID(w, r)
	if !ok {
		return
	}
	var body postRequest
	if !a.decodeBody(w, r, &body) {
		return
	}
	body.ParentID = &id
	a.insertPost(w, r, body.post())
}

func (a *API) insertPost(w http.ResponseWriter, r *http.Request, p Post) {
	p, err := a.DB.InsertPost(r.Context(), p)
	if err != nil {
		a.respondStorageError(w, err, "Could not insert post")
		return
	}

	switch {
	case p.ParentID != nil:
		a.refreshParent(r.Context(), *p.ParentID)
	case p.DepartmentID != nil:
		if err := a.Cache.InsertPost(r.Context(), p); err != nil {
			a.Logger.Error("Could not cache post", "error", err.Error())
		}
	}
	a.respond(w, http.StatusCreated, p)
}

// refreshCache writes p to the cache when it is a cached top-level post.
func (a *API) refreshCache(ctx context.Context, p Post) {
	if p.ParentID != nil || p.DepartmentID == nil {
		return
	}
	if err := a.Cache.UpdatePost(ctx, p); err != nil {
		a.Logger.Error("Could not update cached post", "id", p.ID, "error", err.Error())
	}
}

// refreshParent rewrites a cached post after one of its comments was added or
// removed, so its cached comment count stays current.
func (a *API) refreshParent(ctx context.Context, parentID int64) {
	parent, err := a.DB.GetPost(ctx, parentID)
	if err != nil {
		a.Logger.Error("Could not reload parent post", "id", parentID, "error", err.Error())
		return
	}
	a.refreshCache(ctx, parent)
}

// lookup fetches the post with the path id and checks that it is a comment
// when comment is true, and a post otherwise.
func (a *API) lookup(w http.ResponseWriter, r *http.Request, comment bool) (int64, bool) {
	id, ok := a.pathID(w, r)
	if !ok {
		return 0, false
	}
	p, err := a.DB.GetPost(r.Context(), id)
	if err != nil {
		a.respondStorageError(w, err, "Could not get post")
		return 0, false
	}
	if (p.ParentID != nil) != comment {
		a.respondError(w, http.StatusNotFound, fmt.Errorf("post %d: comment=%v", id, p.ParentID != nil), "Not found")
		return 0, false
	}
	return id, true
}

func (a *API) updatePost(comment bool) http.HandlerFunc {
	type request struct {
		Title       string `json:"title" validate:"max=200"`
		Body        string `json:"body" validate:"required"`
		ClassID     *int64 `json:"clazz"`
		ProfessorID *int64 `json:"prof"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var body request
		if !a.decodeBody(w, r, &body) {
			return
		}
		id, ok := a.lookup(w, r, comment)
		if !ok {
			return
		}
		p, err := a.DB.UpdatePost(r.Context(), id, PostUpdate{
			Title:       body.Title,
			Body:        body.Body,
			ClassID:     body.ClassID,
			ProfessorID: body.ProfessorID,
		})
		if err != nil {
			a.respondStorageError(w, err, "Could not update post")
			return
		}
		a.refreshCache(r.Context(), p)
		a.respond(w, http.StatusOK, p)
	}
}

func (a *API) deletePost(comment bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := a.lookup(w, r, comment)
		if !ok {
			return
		}
		p, err := a.DB.DeletePost(r.Context(), id)
		if err != nil {
			a.respondStorageError(w, err, "Could not delete post")
			return
		}
		if p.ParentID != nil {
			a.refreshParent(r.Context(), *p.ParentID)
		} else if err := a.Cache.DeletePost(r.Context(), p); err != nil {
			a.Logger.Error("Could not evict post from cache", "id", p.ID, "error", err.Error())
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (a *API) vote(kind VoteKind, add bool) http.HandlerFunc {
	type request struct {
		UnityID string `json:"unityId" validate:"required,unityid"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := a.pathID(w, r)
		if !ok {
			return
		}
		var body request
		if !a.decodeBody(w, r, &body) {
			return
		}

		var (
			p   Post
			err error
		)
		if add {
			p, err = a.DB.AddVote(r.Context(), id, kind, body.UnityID)
		} else {
			p, err = a.DB.RemoveVote(r.Context(), id, kind, body.UnityID)
		}
		if err != nil {
			a.respondStorageError(w, err, fmt.Sprintf("Could not apply %s to post %d", kind, id))
			return
		}
		a.refreshCache(r.Context(), p)
		a.respond(w, http.StatusOK, p)
	}
}

func (a *API) listComments(w http.ResponseWriter, r *http.Request) {
	id, ok := a.pathID(w, r)
	if !ok {
		return
	}
	pq, err := parsePage(r.URL.Query())
	if err != nil {
		a.respondError(w, http.StatusBadRequest, err, "Invalid query parameter")
		return
	}
	if !a.validateBody(w, &pq) {
		return
	}
	if _, err := a.DB.GetPost(r.Context(), id); err != nil {
		a.respondStorageError(w, err, "Could not get post")
		return
	}

	comments, err := a.DB.ListPosts(r.Context(), PostFilter{
		ParentID: id,
		Sort:     r.URL.Query().Get("sort"),
		Limit:    pq.Limit,
		Offset:   (pq.Page - 1) * pq.Limit,
	})
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not list comments")
		return
	}
	if comments == nil {
		comments = []Post{}
	}
	a.respond(w, http.StatusOK, comments)
}
