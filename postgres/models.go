package postgres

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/wolftalk/wolftalk/api"
)

type department struct {
	bun.BaseModel `bun:"table:departments,alias:d"`

	ID   int64  `bun:",pk,autoincrement"`
	Name string `bun:",notnull"`
	Code string `bun:",notnull,unique"`
}

type class struct {
	bun.BaseModel `bun:"table:classes,alias:c"`

	ID           int64       `bun:",pk,autoincrement"`
	DepartmentID int64       `bun:",notnull"`
	CourseTitle  string      `bun:",notnull"`
	Professors   []professor `bun:"m2m:class_professors,join:Class=Professor"`
}

type professor struct {
	bun.BaseModel `bun:"table:professors,alias:pr"`

	ID           int64  `bun:",pk,autoincrement"`
	DepartmentID int64  `bun:",notnull"`
	Name         string `bun:",notnull"`
}

type classProfessor struct {
	bun.BaseModel `bun:"table:class_professors,alias:cp"`

	ClassID     int64      `bun:",pk"`
	Class       *class     `bun:"rel:belongs-to,join:class_id=id"`
	ProfessorID int64      `bun:",pk"`
	Professor   *professor `bun:"rel:belongs-to,join:professor_id=id"`
}

type user struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           int64  `bun:",pk,autoincrement"`
	UnityID      string `bun:",notnull,unique"`
	DisplayName  string `bun:",notnull,default:''"`
	Department   string `bun:",notnull,default:''"`
	DepartmentID *int64 `bun:",nullzero"`
	Email        string `bun:",notnull,default:''"`
	IsStudent    bool   `bun:",notnull,default:false"`
}

// A friendRequest is a pending request from FromID to ToID until it is
// accepted, and a friendship after. At most one row links two users.
type friendRequest struct {
	bun.BaseModel `bun:"table:friend_requests,alias:fr"`

	FromID    int64     `bun:",pk"`
	ToID      int64     `bun:",pk"`
	Accepted  bool      `bun:",notnull,default:false"`
	CreatedAt time.Time `bun:",nullzero,notnull,default:now()"`
}

type groupChat struct {
	bun.BaseModel `bun:"table:group_chats,alias:gc"`

	ID           int64      `bun:",pk,autoincrement"`
	Title        string     `bun:",notnull,default:''"`
	CreatedAt    time.Time  `bun:",nullzero,notnull,default:now()"`
	Participants []user     `bun:"m2m:group_participants,join:Group=User"`
	LastContent  *string    `bun:",scanonly"`
	LastAt       *time.Time `bun:",scanonly"`
}

type groupParticipant struct {
	bun.BaseModel `bun:"table:group_participants,alias:gp"`

	GroupID int64      `bun:",pk"`
	Group   *groupChat `bun:"rel:belongs-to,join:group_id=id"`
	UserID  int64      `bun:",pk"`
	User    *user      `bun:"rel:belongs-to,join:user_id=id"`
}

type groupMessage struct {
	bun.BaseModel `bun:"table:group_messages,alias:gm"`

	ID        int64     `bun:",pk,autoincrement"`
	GroupID   int64     `bun:",notnull"`
	SenderID  int64     `bun:",notnull"`
	Sender    *user     `bun:"rel:belongs-to,join:sender_id=id"`
	Content   string    `bun:",notnull"`
	CreatedAt time.Time `bun:",nullzero,notnull,default:now()"`
}

// A post represents a post or comment in the database.
type post struct {
	bun.BaseModel `bun:"table:posts,alias:p"`

	ID            int64      `bun:",pk,autoincrement"`
	Title         string     `bun:",notnull,default:''"`
	Body          string     `bun:",notnull"`
	SenderUnityID string     `bun:",notnull"`
	Sender        *user      `bun:"rel:belongs-to,join:sender_unity_id=unity_id"`
	ParentID      *int64     `bun:",nullzero"`
	DepartmentID  *int64     `bun:",nullzero"`
	ClassID       *int64     `bun:",nullzero"`
	Class         *class     `bun:"rel:belongs-to,join:class_id=id"`
	ProfessorID   *int64     `bun:",nullzero"`
	Professor     *professor `bun:"rel:belongs-to,join:professor_id=id"`
	Tags          []string   `bun:",array"`
	ViewCount     int        `bun:",notnull,default:0"`
	CreatedAt     time.Time  `bun:",nullzero,notnull,default:now()"`
	Votes         []vote     `bun:"rel:has-many,join:id=post_id"`
	CommentCount  int        `bun:",scanonly"`
}

// A vote is one user's like or dislike. The (post_id, unity_id) key keeps
// each user to a single vote per post.
type vote struct {
	bun.BaseModel `bun:"table:votes,alias:v"`

	PostID    int64     `bun:",pk"`
	UnityID   string    `bun:",pk"`
	Kind      string    `bun:",notnull"`
	CreatedAt time.Time `bun:",nullzero,notnull,default:now()"`
}

func (d department) APIDepartment() api.Department {
	return api.Department{ID: d.ID, Name: d.Name, Code: d.Code}
}

func (c class) APIClass() api.Class {
	out := api.Class{ID: c.ID, CourseTitle: c.CourseTitle}
	for _, pr := range c.Professors {
		out.Professors = append(out.Professors, pr.APIProfessor())
	}
	return out
}

func (pr professor) APIProfessor() api.Professor {
	return api.Professor{ID: pr.ID, Name: pr.Name}
}

func (p post) APIPost() api.Post {
	out := api.Post{
		ID:           p.ID,
		Title:        p.Title,
		Body:         p.Body,
		Sender:       api.User{UnityID: p.SenderUnityID},
		ParentID:     p.ParentID,
		DepartmentID: p.DepartmentID,
		Timestamp:    p.CreatedAt,
		LikedBy:      []string{},
		DislikedBy:   []string{},
		Tags:         p.Tags,
		ViewCount:    p.ViewCount,
		CommentCount: p.CommentCount,
	}
	if p.Sender != nil {
		out.Sender.ID = p.Sender.ID
		out.Sender.DisplayName = p.Sender.DisplayName
	}
	if p.Class != nil {
		c := p.Class.APIClass()
		out.Class = &c
	}
	if p.Professor != nil {
		pr := p.Professor.APIProfessor()
		out.Professor = &pr
	}
	for _, v := range p.Votes {
		switch api.VoteKind(v.Kind) {
		case api.Like:
			out.LikedBy = append(out.LikedBy, v.UnityID)
		case api.Dislike:
			out.DislikedBy = append(out.DislikedBy, v.UnityID)
		}
	}
	return out
}

func (u user) APIUser() api.User {
	return api.User{ID: u.ID, UnityID: u.UnityID, DisplayName: u.DisplayName}
}

func (u user) APIProfile() api.Profile {
	return api.Profile{
		ID:           u.ID,
		UnityID:      u.UnityID,
		DisplayName:  u.DisplayName,
		Department:   u.Department,
		DepartmentID: u.DepartmentID,
		Email:        u.Email,
		IsStudent:    u.IsStudent,
	}
}

func (g groupChat) APIConversation() api.Conversation {
	out := api.Conversation{
		ID:           g.ID,
		GroupTitle:   g.Title,
		Participants: make([]api.User, len(g.Participants)),
	}
	for i, u := range g.Participants {
		out.Participants[i] = u.APIUser()
	}
	if g.LastContent != nil && g.LastAt != nil {
		out.LastMessage = &api.LastMessage{Content: *g.LastContent, Timestamp: *g.LastAt}
	}
	return out
}

func (m groupMessage) APIDirectMessage() api.DirectMessage {
	out := api.DirectMessage{
		ID:        m.ID,
		GroupID:   m.GroupID,
		Sender:    api.User{ID: m.SenderID},
		Content:   m.Content,
		Timestamp: m.CreatedAt,
	}
	if m.Sender != nil {
		out.Sender = m.Sender.APIUser()
	}
	return out
}
