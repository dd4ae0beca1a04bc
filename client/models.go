package client

import "time"

// A UserSummary is the compact user shape embedded in posts and conversations.
type UserSummary struct {
	ID                int64  `json:"id"`
	UnityID           string `json:"unityId" validate:"required"`
	DisplayName       string `json:"displayName"`
	ProfilePictureURL string `json:"profilePictureUrl,omitempty"`
}

// A Profile is the signed-in (or looked-up) user.
type Profile struct {
	ID           int64  `json:"id" validate:"required"`
	UnityID      string `json:"unityId" validate:"required"`
	DisplayName  string `json:"displayName"`
	Department   string `json:"department"`
	DepartmentID *int64 `json:"departmentId,omitempty"`
	Email        string `json:"email"`
	IsStudent    bool   `json:"isStudent"`
}

// A Class is a course offered by a department, e.g. CSC116.
type Class struct {
	ID          int64       `json:"id" validate:"required"`
	CourseTitle string      `json:"courseTitle"`
	Professors  []Professor `json:"professors,omitempty"`
}

// A Professor teaches classes within a department.
type Professor struct {
	ID   int64  `json:"id" validate:"required"`
	Name string `json:"name"`
}

// A Department is listed on the homepage.
type Department struct {
	ID   int64  `json:"id" validate:"required"`
	Name string `json:"name"`
	Code string `json:"code"`
}

// DepartmentDetail is a department together with its classes, professors and posts.
type DepartmentDetail struct {
	Department
	Classes    []Class     `json:"classes" validate:"dive"`
	Professors []Professor `json:"professors" validate:"dive"`
	Messages   []Post      `json:"messages" validate:"dive"`
}

// A Post is a discussion board message. Posts with a ParentID are comments.
type Post struct {
	ID           int64       `json:"id" validate:"required"`
	Title        string      `json:"title"`
	Body         string      `json:"body"`
	Sender       UserSummary `json:"sender"`
	ParentID     *int64      `json:"parentId"`
	DepartmentID *int64      `json:"departmentId,omitempty"`
	Class        *Class      `json:"clazz,omitempty"`
	Professor    *Professor  `json:"professor,omitempty"`
	Timestamp    time.Time   `json:"timestamp"`
	LikedBy      []string    `json:"likedBy"`
	DislikedBy   []string    `json:"dislikedBy"`
	Tags         []string    `json:"tags,omitempty"`
	ViewCount    int         `json:"viewCount"`
	CommentCount int         `json:"commentCount"`
}

// IsComment reports whether p is a reply to another post.
func (p Post) IsComment() bool {
	return p.ParentID != nil
}

// A PostPage is one page of a post listing. HasMore is the only signal used
// to decide whether another page exists.
type PostPage struct {
	Posts   []Post `json:"posts" validate:"dive"`
	Page    int    `json:"page" validate:"gte=1"`
	HasMore bool   `json:"hasMore"`
}

// PostQuery selects a page of posts. Zero fields are omitted from the request.
type PostQuery struct {
	DepartmentID int64
	Course       string
	Professor    string
	Tag          string
	User         string
	Sort         string
	Page         int
	Limit        int
}

// NewPost is the body of a post or comment creation request.
type NewPost struct {
	Title        string `json:"title"`
	Content      string `json:"content" validate:"required"`
	SenderID     string `json:"senderId" validate:"required"`
	DepartmentID *int64 `json:"departmentId"`
	ClassID      *int64 `json:"classId"`
	ProfessorID  *int64 `json:"professorId"`
	ParentID     *int64 `json:"parentId"`
}

// PostUpdate is the body of an edit request. Nil relation ids leave the
// current relation unchanged on the server.
type PostUpdate struct {
	Title       string `json:"title"`
	Body        string `json:"body"`
	ClassID     *int64 `json:"clazz"`
	ProfessorID *int64 `json:"prof"`
}

// VoteKind selects the like or dislike endpoints.
type VoteKind string

const (
	Like    VoteKind = "like"
	Dislike VoteKind = "dislike"
)

// FriendStatus is the plain text relationship token returned by the profile endpoints.
type FriendStatus string

const (
	FriendNone    FriendStatus = "NONE"
	FriendPending FriendStatus = "PENDING"
	Friends       FriendStatus = "FRIENDS"
)

// A DirectMessage is a single message inside a group chat.
type DirectMessage struct {
	ID        int64       `json:"id" validate:"required"`
	GroupID   int64       `json:"groupId"`
	Sender    UserSummary `json:"sender"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
}

// LastMessage is the preview shown in the conversation list.
type LastMessage struct {
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// A Conversation is a group chat between two or more users.
type Conversation struct {
	ID           int64         `json:"id" validate:"required"`
	Participants []UserSummary `json:"participants" validate:"dive"`
	GroupTitle   string        `json:"groupTitle"`
	LastMessage  *LastMessage  `json:"lastMessage,omitempty"`
}

// NewConversation is the body of a group chat creation request.
type NewConversation struct {
	ParticipantIDs []int64 `json:"participantIds" validate:"min=1"`
	GroupTitle     string  `json:"groupTitle"`
	Content        string  `json:"content" validate:"required"`
}
