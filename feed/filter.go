package feed

import (
	"slices"
	"strconv"
	"strings"

	"github.com/wolftalk/wolftalk/client"
)

// SortMode orders a board.
type SortMode string

const (
	SortRecent     SortMode = "recent"
	SortPopular    SortMode = "popular"
	SortUnanswered SortMode = "unanswered"
	// SortTrending has no ranking of its own yet and orders like SortRecent.
	SortTrending SortMode = "trending"
)

// ParseSortMode maps user input to a SortMode. Unknown input is SortRecent.
func ParseSortMode(s string) SortMode {
	switch m := SortMode(strings.ToLower(strings.TrimSpace(s))); m {
	case SortRecent, SortPopular, SortUnanswered, SortTrending:
		return m
	}
	return SortRecent
}

// Selection is the active board filter. Empty fields match everything.
type Selection struct {
	// Course is a class course title such as "CSC116".
	Course string
	// Professor is a professor id in decimal form.
	Professor string
}

// IsZero reports whether no filter is active.
func (s Selection) IsZero() bool {
	return s.Course == "" && normalizeID(s.Professor) == ""
}

func (s Selection) matches(p client.Post) bool {
	if s.Course != "" {
		if p.Class == nil || p.Class.CourseTitle != s.Course {
			return false
		}
	}
	if want := normalizeID(s.Professor); want != "" {
		if p.Professor == nil || strconv.FormatInt(p.Professor.ID, 10) != want {
			return false
		}
	}
	return true
}

// normalizeID trims the id and drops leading zeros from numeric ids so that
// " 012" and "12" select the same professor.
func normalizeID(id string) string {
	id = strings.TrimSpace(id)
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return strconv.FormatInt(n, 10)
	}
	return id
}

// popularity is the ranking key of SortPopular.
func popularity(p client.Post) int {
	return len(p.LikedBy) + p.CommentCount
}

// Apply returns the top-level posts of posts that match sel, ordered by mode.
// It does not modify posts. Ties keep their input order.
func Apply(posts []client.Post, sel Selection, mode SortMode) []client.Post {
	out := make([]client.Post, 0, len(posts))
	for _, p := range posts {
		if p.IsComment() || !sel.matches(p) {
			continue
		}
		if mode == SortUnanswered && p.CommentCount != 0 {
			continue
		}
		out = append(out, p)
	}

	switch mode {
	case SortPopular:
		slices.SortStableFunc(out, func(a, b client.Post) int {
			return popularity(b) - popularity(a)
		})
	default:
		slices.SortStableFunc(out, func(a, b client.Post) int {
			return b.Timestamp.Compare(a.Timestamp)
		})
	}
	return out
}
