package api

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by storage layers when a record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyFriends is returned when a friend request names an existing friend.
	ErrAlreadyFriends = errors.New("already friends")

	// ErrNotParticipant is returned when a user sends to a group chat they are not in.
	ErrNotParticipant = errors.New("not a participant")
)

// A User identifies the author of a post.
type User struct {
	ID          int64  `json:"id"`
	UnityID     string `json:"unityId"`
	DisplayName string `json:"displayName"`
}

// A Department groups classes, professors and posts.
type Department struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

// A Class is a course taught in a department.
type Class struct {
	ID          int64       `json:"id"`
	CourseTitle string      `json:"courseTitle"`
	Professors  []Professor `json:"professors,omitempty"`
}

// A Professor teaches classes in a department.
type Professor struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// DepartmentDetail is a department with its classes, professors and top-level posts.
type DepartmentDetail struct {
	Department
	Classes    []Class     `json:"classes"`
	Professors []Professor `json:"professors"`
	Messages   []Post      `json:"messages"`
}

// A Post is a forum post, or a comment when ParentID is set.
type Post struct {
	ID           int64      `json:"id"`
	Title        string     `json:"title"`
	Body         string     `json:"body"`
	Sender       User       `json:"sender"`
	ParentID     *int64     `json:"parentId"`
	DepartmentID *int64     `json:"departmentId,omitempty"`
	Class        *Class     `json:"clazz,omitempty"`
	Professor    *Professor `json:"professor,omitempty"`
	Timestamp    time.Time  `json:"timestamp"`
	LikedBy      []string   `json:"likedBy"`
	DislikedBy   []string   `json:"dislikedBy"`
	Tags         []string   `json:"tags,omitempty"`
	ViewCount    int        `json:"viewCount"`
	CommentCount int        `json:"commentCount"`
}

// VoteKind is "like" or "dislike".
type VoteKind string

const (
	Like    VoteKind = "like"
	Dislike VoteKind = "dislike"
)

// Sort orders accepted by ListPosts. Unknown values sort by recency.
const (
	SortRecent     = "recent"
	SortPopular    = "popular"
	SortUnanswered = "unanswered"
)

// PostFilter selects top-level posts, or the comments of ParentID when set.
type PostFilter struct {
	DepartmentID int64
	ParentID     int64
	Course       string
	ProfessorID  int64
	Tag          string
	Sender       string
	Sort         string
	// Limit of zero means no limit.
	Limit  int
	Offset int
}

// cacheable reports whether the filter selects a department's newest posts,
// which is what the cache holds.
func (f PostFilter) cacheable() bool {
	return f.DepartmentID != 0 && f.ParentID == 0 && f.Course == "" && f.ProfessorID == 0 &&
		f.Tag == "" && f.Sender == "" && (f.Sort == "" || f.Sort == SortRecent) && f.Offset == 0
}

// PostUpdate changes a post's text and relations. Nil ids keep the current relation.
type PostUpdate struct {
	Title       string
	Body        string
	ClassID     *int64
	ProfessorID *int64
}

// A Profile is a user's full record, as shown to the user themselves.
type Profile struct {
	ID           int64  `json:"id"`
	UnityID      string `json:"unityId"`
	DisplayName  string `json:"displayName"`
	Department   string `json:"department"`
	DepartmentID *int64 `json:"departmentId,omitempty"`
	Email        string `json:"email"`
	IsStudent    bool   `json:"isStudent"`
}

// User returns the summary of p embedded in posts and conversations.
func (p Profile) User() User {
	return User{ID: p.ID, UnityID: p.UnityID, DisplayName: p.DisplayName}
}

// ProfileUpdate holds the fields a user may change on their own profile.
type ProfileUpdate struct {
	DisplayName  string
	Department   string
	DepartmentID *int64
	Email        string
}

// FriendStatus is the relationship between two users.
type FriendStatus string

const (
	FriendNone    FriendStatus = "NONE"
	FriendPending FriendStatus = "PENDING"
	Friends       FriendStatus = "FRIENDS"
)

// A Conversation is a group chat.
type Conversation struct {
	ID           int64        `json:"id"`
	Participants []User       `json:"participants"`
	GroupTitle   string       `json:"groupTitle"`
	LastMessage  *LastMessage `json:"lastMessage,omitempty"`
}

// LastMessage previews the newest message of a conversation.
type LastMessage struct {
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// A DirectMessage is one message in a group chat.
type DirectMessage struct {
	ID        int64     `json:"id"`
	GroupID   int64     `json:"groupId"`
	Sender    User      `json:"sender"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// NewConversation starts a group chat. The creator is always a participant.
type NewConversation struct {
	ParticipantIDs []int64
	GroupTitle     string
	Content        string
}
