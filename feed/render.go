package feed

import (
	"slices"

	"github.com/wolftalk/wolftalk/client"
)

// NetScore is the number of likes minus the number of dislikes.
func NetScore(p client.Post) int {
	return len(p.LikedBy) - len(p.DislikedBy)
}

// VoteState reports whether unityID liked or disliked p.
func VoteState(p client.Post, unityID string) (liked, disliked bool) {
	if unityID == "" {
		return false, false
	}
	return slices.Contains(p.LikedBy, unityID), slices.Contains(p.DislikedBy, unityID)
}

// CanModify reports whether unityID may edit or delete p.
func CanModify(p client.Post, unityID string) bool {
	return unityID != "" && p.Sender.UnityID == unityID
}

// A Row is a post prepared for display to a particular viewer.
type Row struct {
	Post        client.Post
	NetScore    int
	HasLiked    bool
	HasDisliked bool
	CanModify   bool
	Department  string
}

// Rows returns the current view as display rows for the feed's viewer.
func (f *Feed) Rows(sel Selection, mode SortMode) []Row {
	posts := f.View(sel, mode)
	f.mu.Lock()
	depts := f.depts
	f.mu.Unlock()

	rows := make([]Row, len(posts))
	for i, p := range posts {
		liked, disliked := VoteState(p, f.viewer)
		rows[i] = Row{
			Post:        p,
			NetScore:    NetScore(p),
			HasLiked:    liked,
			HasDisliked: disliked,
			CanModify:   CanModify(p, f.viewer),
		}
		if p.DepartmentID != nil {
			rows[i].Department = depts[*p.DepartmentID]
		}
	}
	return rows
}
