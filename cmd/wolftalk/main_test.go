package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"

	"github.com/wolftalk/wolftalk/client"
	"github.com/wolftalk/wolftalk/store"
)

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Error(err)
	}
}

func run(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd(&errOut)
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append(args,
		"--config", filepath.Join(t.TempDir(), "missing.yaml"),
		"--base-url", srv.URL,
	))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func signedIn(t *testing.T, mux *http.ServeMux) {
	mux.HandleFunc("GET /api/profile", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"id": 7, "unityId": "jdoe", "displayName": "Jane"})
	})
}

func signedOut(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/profile", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
}

var departments = []map[string]any{
	{"id": 4, "name": "Computer Science", "code": "CSC"},
	{"id": 5, "name": "Mathematics", "code": "MA"},
}

func boardPost(id int, sender string, liked ...string) map[string]any {
	if liked == nil {
		liked = []string{}
	}
	return map[string]any{
		"id":           id,
		"title":        "Post " + string(rune('A'+id-1)),
		"body":         "body",
		"sender":       map[string]any{"id": 1, "unityId": sender},
		"parentId":     nil,
		"departmentId": 4,
		"timestamp":    "2024-03-01T10:00:00Z",
		"likedBy":      liked,
		"dislikedBy":   []string{},
		"commentCount": 0,
	}
}

func TestDepartments(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/departments", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, departments)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	out, err := run(t, srv, "departments")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"CSC", "Computer Science", "MA", "Mathematics"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestBoard(t *testing.T) {
	var queries []string
	mux := http.NewServeMux()
	signedIn(t, mux)
	mux.HandleFunc("GET /api/departments", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, departments)
	})
	mux.HandleFunc("GET /api/departments/4", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{
			"id": 4, "name": "Computer Science", "code": "CSC",
			"classes":    []map[string]any{{"id": 10, "courseTitle": "CSC 316"}},
			"professors": []map[string]any{},
			"messages":   []map[string]any{},
		})
	})
	mux.HandleFunc("GET /api/posts", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		queries = append(queries, q.Get("department")+"/"+q.Get("sort")+"/"+q.Get("page"))
		switch q.Get("page") {
		case "1":
			writeJSON(t, w, map[string]any{
				"posts":   []map[string]any{boardPost(1, "jdoe", "jdoe", "asmith"), boardPost(2, "asmith")},
				"page":    1,
				"hasMore": true,
			})
		default:
			writeJSON(t, w, map[string]any{
				"posts":   []map[string]any{boardPost(2, "asmith"), boardPost(3, "bwong")},
				"page":    2,
				"hasMore": false,
			})
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	out, err := run(t, srv, "board", "csc", "--pages", "3", "--sort", "popular")
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff([]string{"4/popular/1", "4/popular/2"}, queries); diff != "" {
		t.Errorf("post queries (-want +got):\n%s", diff)
	}
	for _, want := range []string{"CSC  Computer Science", "Classes: CSC 316", "Post A", "Post C", "jdoe (you)", "+2"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Count(out, "Post B") != 1 {
		t.Errorf("duplicate post across pages:\n%s", out)
	}
	if strings.Contains(out, "More posts available") {
		t.Errorf("unexpected more marker:\n%s", out)
	}
}

func TestVote(t *testing.T) {
	var gotUser string
	mux := http.NewServeMux()
	signedIn(t, mux)
	mux.HandleFunc("GET /api/posts/5", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, boardPost(5, "asmith"))
	})
	mux.HandleFunc("POST /api/posts/5/like", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			UnityID string `json:"unityId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Error(err)
		}
		gotUser = body.UnityID
		writeJSON(t, w, boardPost(5, "asmith", "jdoe"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	out, err := run(t, srv, "vote", "5")
	if err != nil {
		t.Fatal(err)
	}
	if gotUser != "jdoe" {
		t.Errorf("vote sent for %q, want jdoe", gotUser)
	}
	if !strings.Contains(out, "score +1") || !strings.Contains(out, "you liked this") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestVote_SignedOut(t *testing.T) {
	mux := http.NewServeMux()
	signedOut(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	_, err := run(t, srv, "vote", "5")
	if !errors.Is(err, store.ErrSignedOut) {
		t.Fatalf("error = %v, want %v", err, store.ErrSignedOut)
	}
	if !strings.Contains(err.Error(), srv.URL+"/Shibboleth.sso/Login?target=%2F") {
		t.Errorf("error does not carry the login URL: %v", err)
	}
}

func TestEdit_NotOwner(t *testing.T) {
	mux := http.NewServeMux()
	signedIn(t, mux)
	mux.HandleFunc("GET /api/posts/5", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, boardPost(5, "asmith"))
	})
	mux.HandleFunc("PUT /api/posts/5", func(w http.ResponseWriter, r *http.Request) {
		t.Error("edit sent for someone else's post")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	if _, err := run(t, srv, "edit", "5", "--body", "mine now"); !errors.Is(err, errNotOwner) {
		t.Errorf("error = %v, want %v", err, errNotOwner)
	}
}

func TestDelete(t *testing.T) {
	var deleted bool
	mux := http.NewServeMux()
	signedIn(t, mux)
	mux.HandleFunc("GET /api/posts/5", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, boardPost(5, "jdoe"))
	})
	mux.HandleFunc("DELETE /api/posts/5", func(w http.ResponseWriter, r *http.Request) {
		deleted = true
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	out, err := run(t, srv, "delete", "5")
	if err != nil {
		t.Fatal(err)
	}
	if !deleted || !strings.Contains(out, "Deleted #5") {
		t.Errorf("deleted = %v, output:\n%s", deleted, out)
	}
}

func TestChat_Send(t *testing.T) {
	var sent string
	mux := http.NewServeMux()
	signedIn(t, mux)
	mux.HandleFunc("POST /api/groupchat/send/3/7", func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		sent = string(b)
		writeJSON(t, w, map[string]any{
			"id": 12, "groupId": 3, "content": sent, "timestamp": "2024-03-01T10:02:00Z",
			"sender": map[string]any{"id": 7, "unityId": "jdoe"},
		})
	})
	mux.HandleFunc("GET /api/groupchat/3", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, []map[string]any{
			{"id": 12, "groupId": 3, "sender": map[string]any{"id": 7, "unityId": "jdoe"}, "content": "see you there", "timestamp": "2024-03-01T10:02:00Z"},
			{"id": 11, "groupId": 3, "sender": map[string]any{"id": 9, "unityId": "asmith", "displayName": "Ann"}, "content": "lab at 3?", "timestamp": "2024-03-01T10:01:00Z"},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	out, err := run(t, srv, "chat", "3", "--send", "see you there")
	if err != nil {
		t.Fatal(err)
	}
	if sent != "see you there" {
		t.Errorf("sent %q", sent)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines:\n%s", len(lines), out)
	}
	if !strings.Contains(lines[0], "Ann: lab at 3?") {
		t.Errorf("first line = %q, want the older message", lines[0])
	}
	if !strings.Contains(lines[1], "you: see you there") || !strings.Contains(lines[1], "<- latest") {
		t.Errorf("last line = %q", lines[1])
	}
}

func TestFriends_Status(t *testing.T) {
	mux := http.NewServeMux()
	signedIn(t, mux)
	mux.HandleFunc("GET /api/profile/7/add-friend/9", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "PENDING")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	out, err := run(t, srv, "friends", "--status", "9")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "Request pending" {
		t.Errorf("output = %q", out)
	}
}

func TestDepartments_Show(t *testing.T) {
	mux := http.NewServeMux()
	signedIn(t, mux)
	mux.HandleFunc("GET /api/departments", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, departments)
	})
	mux.HandleFunc("GET /api/departments/4", func(w http.ResponseWriter, r *http.Request) {
		newer := boardPost(2, "jdoe")
		newer["timestamp"] = "2024-03-02T10:00:00Z"
		writeJSON(t, w, map[string]any{
			"id": 4, "name": "Computer Science", "code": "CSC",
			"classes":    []map[string]any{{"id": 10, "courseTitle": "CSC 316"}},
			"professors": []map[string]any{{"id": 12, "name": "Dr. King"}},
			"messages":   []map[string]any{boardPost(1, "asmith"), newer},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	out, err := run(t, srv, "departments", "csc")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"CSC  Computer Science", "Professors: Dr. King (12)", "Post A", "Post B", "jdoe (you)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "Post B") > strings.Index(out, "Post A") {
		t.Errorf("posts not newest first:\n%s", out)
	}
}

func TestRecent(t *testing.T) {
	var query string
	mux := http.NewServeMux()
	signedOut(mux)
	mux.HandleFunc("GET /api/departments", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, departments)
	})
	mux.HandleFunc("GET /api/posts", func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		math := boardPost(2, "bwong")
		math["departmentId"] = 5
		writeJSON(t, w, map[string]any{
			"posts":   []map[string]any{boardPost(1, "asmith"), math},
			"page":    1,
			"hasMore": false,
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	out, err := run(t, srv, "recent")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(query, "department") {
		t.Errorf("recent posts limited to a department: %s", query)
	}
	for _, want := range []string{"Computer Science", "Mathematics", "Post A", "Post B"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestProfile(t *testing.T) {
	var update map[string]any
	mux := http.NewServeMux()
	signedIn(t, mux)
	mux.HandleFunc("GET /api/departments", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, departments)
	})
	mux.HandleFunc("GET /api/departments/4", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"id": 4, "name": "Computer Science", "code": "CSC"})
	})
	mux.HandleFunc("POST /api/profile", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			t.Error(err)
		}
		update["id"] = 7
		writeJSON(t, w, update)
	})
	mux.HandleFunc("GET /api/profile/asmith", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"id": 9, "unityId": "asmith", "displayName": "Ann"})
	})
	mux.HandleFunc("GET /api/profile/nobody", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	out, err := run(t, srv, "profile")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "jdoe (#7)") || !strings.Contains(out, "name: Jane") {
		t.Errorf("own profile output:\n%s", out)
	}

	out, err = run(t, srv, "profile", "--name", "Janie", "--department", "csc")
	if err != nil {
		t.Fatal(err)
	}
	if update["displayName"] != "Janie" || update["department"] != "Computer Science" || update["departmentId"] != float64(4) {
		t.Errorf("update sent %v", update)
	}
	if !strings.Contains(out, "name: Janie") || !strings.Contains(out, "department: Computer Science") {
		t.Errorf("updated profile output:\n%s", out)
	}

	out, err = run(t, srv, "profile", "asmith")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "asmith (#9)") {
		t.Errorf("other profile output:\n%s", out)
	}

	if _, err := run(t, srv, "profile", "nobody"); err == nil || !strings.Contains(err.Error(), `no user "nobody"`) {
		t.Errorf("error = %v, want unknown user", err)
	}
}

func TestTitle(t *testing.T) {
	tests := []struct {
		name string
		post client.Post
		want string
	}{
		{name: "Title", post: client.Post{Title: "Exam", Body: "body"}, want: "Exam"},
		{name: "FirstLine", post: client.Post{Body: "short\nsecond line"}, want: "short"},
		{name: "Long", post: client.Post{Body: strings.Repeat("a", 45)}, want: strings.Repeat("a", 40) + "..."},
		{name: "Multibyte", post: client.Post{Body: strings.Repeat("é", 41)}, want: strings.Repeat("é", 40) + "..."},
		{name: "MultibyteFits", post: client.Post{Body: strings.Repeat("日", 40)}, want: strings.Repeat("日", 40)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := title(tt.post)
			if got != tt.want {
				t.Errorf("title() = %q, want %q", got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("title() = %q is not valid UTF-8", got)
			}
		})
	}
}
