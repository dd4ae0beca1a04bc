package redis

import (
	"strings"
	"time"

	"github.com/wolftalk/wolftalk/api"
)

// A post represents a cached top-level post. Its vote sets are stored as
// separate Redis sets.
type post struct {
	ID            int64  `redis:"id"`
	Title         string `redis:"title"`
	Body          string `redis:"body"`
	SenderID      int64  `redis:"sender_id"`
	SenderUnityID string `redis:"sender_unity_id"`
	SenderName    string `redis:"sender_name"`
	DepartmentID  int64  `redis:"department_id"`
	ClassID       int64  `redis:"class_id"`
	CourseTitle   string `redis:"course_title"`
	ProfessorID   int64  `redis:"professor_id"`
	ProfessorName string `redis:"professor_name"`
	Tags          string `redis:"tags"`
	ViewCount     int    `redis:"view_count"`
	CommentCount  int    `redis:"comment_count"`
	CreatedAt     int64  `redis:"created_at"`
	LikedBy       []string
	DislikedBy    []string
}

const tagSep = ","

func fromAPI(p api.Post) *post {
	m := &post{
		ID:            p.ID,
		Title:         p.Title,
		Body:          p.Body,
		SenderID:      p.Sender.ID,
		SenderUnityID: p.Sender.UnityID,
		SenderName:    p.Sender.DisplayName,
		Tags:          strings.Join(p.Tags, tagSep),
		ViewCount:     p.ViewCount,
		CommentCount:  p.CommentCount,
		CreatedAt:     p.Timestamp.UnixNano(),
		LikedBy:       p.LikedBy,
		DislikedBy:    p.DislikedBy,
	}
	if p.DepartmentID != nil {
		m.DepartmentID = *p.DepartmentID
	}
	if p.Class != nil {
		m.ClassID = p.Class.ID
		m.CourseTitle = p.Class.CourseTitle
	}
	if p.Professor != nil {
		m.ProfessorID = p.Professor.ID
		m.ProfessorName = p.Professor.Name
	}
	return m
}

func (m post) APIPost() api.Post {
	p := api.Post{
		ID:           m.ID,
		Title:        m.Title,
		Body:         m.Body,
		Sender:       api.User{ID: m.SenderID, UnityID: m.SenderUnityID, DisplayName: m.SenderName},
		Timestamp:    time.Unix(0, m.CreatedAt).UTC(),
		LikedBy:      m.LikedBy,
		DislikedBy:   m.DislikedBy,
		ViewCount:    m.ViewCount,
		CommentCount: m.CommentCount,
	}
	if p.LikedBy == nil {
		p.LikedBy = []string{}
	}
	if p.DislikedBy == nil {
		p.DislikedBy = []string{}
	}
	if m.Tags != "" {
		p.Tags = strings.Split(m.Tags, tagSep)
	}
	if m.DepartmentID != 0 {
		id := m.DepartmentID
		p.DepartmentID = &id
	}
	if m.ClassID != 0 {
		p.Class = &api.Class{ID: m.ClassID, CourseTitle: m.CourseTitle}
	}
	if m.ProfessorID != 0 {
		p.Professor = &api.Professor{ID: m.ProfessorID, Name: m.ProfessorName}
	}
	return p
}
