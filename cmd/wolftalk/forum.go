package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wolftalk/wolftalk/client"
	"github.com/wolftalk/wolftalk/feed"
	"github.com/wolftalk/wolftalk/store"
)

var errNotOwner = errors.New("only the author can change a post")

func newDepartmentsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "departments [department]",
		Short: "List departments, or show one with all of its posts",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			depts := store.NewDepartmentStore(a.api, a.logger)
			defer depts.Close()

			if len(args) == 1 {
				return a.showDepartment(cmd, depts, args[0])
			}
			list, err := depts.FetchAll(ctx)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCODE\tNAME")
			for _, d := range list {
				fmt.Fprintf(tw, "%d\t%s\t%s\n", d.ID, d.Code, d.Name)
			}
			return tw.Flush()
		},
	}
}

// showDepartment prints a department's classes, professors and every one of
// its top-level posts, newest first.
func (a *app) showDepartment(cmd *cobra.Command, depts *store.DepartmentStore, arg string) error {
	ctx := cmd.Context()
	id, err := resolveDepartment(ctx, depts, arg)
	if err != nil {
		return err
	}
	viewer, err := a.viewer(ctx)
	if err != nil {
		return err
	}
	posts, err := depts.FetchPosts(ctx, id)
	if err != nil {
		return err
	}
	f := feed.New(a.api, viewer, a.logger)
	f.Load(posts)
	return printBoard(cmd.OutOrStdout(), depts.Current(), f.Rows(feed.Selection{}, feed.SortRecent), false)
}

// resolveDepartment accepts a numeric id or a department code such as "CSC".
func resolveDepartment(ctx context.Context, depts *store.DepartmentStore, arg string) (int64, error) {
	if id, err := strconv.ParseInt(arg, 10, 64); err == nil {
		return id, nil
	}
	if _, err := depts.FetchAll(ctx); err != nil {
		return 0, err
	}
	d, ok := depts.LookupByCode(strings.ToUpper(arg))
	if !ok {
		return 0, fmt.Errorf("unknown department %q", arg)
	}
	return d.ID, nil
}

func newBoardCmd(a *app) *cobra.Command {
	var (
		course    string
		professor string
		sort      string
		pages     int
	)
	cmd := &cobra.Command{
		Use:   "board <department>",
		Short: "Show a department board",
		Long: `Show the posts of a department, newest first by default. The department
is a numeric id or a code such as CSC.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			depts := store.NewDepartmentStore(a.api, a.logger)
			defer depts.Close()

			id, err := resolveDepartment(ctx, depts, args[0])
			if err != nil {
				return err
			}
			viewer, err := a.viewer(ctx)
			if err != nil {
				return err
			}

			sel := feed.Selection{Course: course, Professor: professor}
			mode := feed.ParseSortMode(sort)
			q := client.PostQuery{
				DepartmentID: id,
				Course:       course,
				Professor:    strings.TrimSpace(professor),
				Sort:         string(mode),
			}
			board, err := depts.LoadBoard(ctx, id, q)
			if err != nil {
				return err
			}

			f := feed.New(a.api, viewer, a.logger)
			f.SetDepartments(depts.Departments())
			pager := feed.NewPager(f, a.api, a.logger)
			pager.Seed(q, board.Page)
			for i := 1; i < pages; i++ {
				loaded, err := pager.LoadMore(ctx)
				if err != nil {
					return err
				}
				if !loaded {
					break
				}
			}

			return printBoard(cmd.OutOrStdout(), board.Department, f.Rows(sel, mode), pager.HasMore())
		},
	}
	cmd.Flags().StringVar(&course, "course", "", "only posts about this course title")
	cmd.Flags().StringVar(&professor, "professor", "", "only posts about this professor id")
	cmd.Flags().StringVar(&sort, "sort", "recent", "recent, popular, unanswered or trending")
	cmd.Flags().IntVar(&pages, "pages", 1, "number of pages to load")
	return cmd
}

func printBoard(w io.Writer, d *client.DepartmentDetail, rows []feed.Row, hasMore bool) error {
	fmt.Fprintf(w, "%s  %s\n", d.Code, d.Name)
	if len(d.Classes) > 0 {
		titles := make([]string, len(d.Classes))
		for i, c := range d.Classes {
			titles[i] = c.CourseTitle
		}
		fmt.Fprintf(w, "Classes: %s\n", strings.Join(titles, ", "))
	}
	if len(d.Professors) > 0 {
		names := make([]string, len(d.Professors))
		for i, p := range d.Professors {
			names[i] = fmt.Sprintf("%s (%d)", p.Name, p.ID)
		}
		fmt.Fprintf(w, "Professors: %s\n", strings.Join(names, ", "))
	}
	fmt.Fprintln(w)

	if len(rows) == 0 {
		fmt.Fprintln(w, "No posts yet.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSCORE\tVOTE\tTITLE\tBY\tCOMMENTS\tPOSTED")
	for _, r := range rows {
		fmt.Fprintf(tw, "%d\t%+d\t%s\t%s\t%s\t%d\t%s\n",
			r.Post.ID, r.NetScore, voteMark(r), title(r.Post), author(r), r.Post.CommentCount,
			r.Post.Timestamp.Local().Format("Jan 2 15:04"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if hasMore {
		fmt.Fprintln(w, "\nMore posts available, use --pages to load them.")
	}
	return nil
}

func voteMark(r feed.Row) string {
	switch {
	case r.HasLiked:
		return "up"
	case r.HasDisliked:
		return "down"
	}
	return ""
}

// maxTitleRunes bounds the body excerpt shown for an untitled post.
const maxTitleRunes = 40

func title(p client.Post) string {
	if p.Title != "" {
		return p.Title
	}
	body, _, _ := strings.Cut(p.Body, "\n")
	if r := []rune(body); len(r) > maxTitleRunes {
		body = string(r[:maxTitleRunes]) + "..."
	}
	return body
}

func author(r feed.Row) string {
	if r.CanModify {
		return r.Post.Sender.UnityID + " (you)"
	}
	return r.Post.Sender.UnityID
}

func printPost(w io.Writer, p client.Post, viewer string) {
	fmt.Fprintf(w, "#%d %s\n", p.ID, title(p))
	fmt.Fprintf(w, "by %s, %s\n", p.Sender.UnityID, p.Timestamp.Local().Format("Jan 2 2006 15:04"))
	if p.Class != nil {
		fmt.Fprintf(w, "class: %s\n", p.Class.CourseTitle)
	}
	if p.Professor != nil {
		fmt.Fprintf(w, "professor: %s\n", p.Professor.Name)
	}
	liked, disliked := feed.VoteState(p, viewer)
	fmt.Fprintf(w, "score %+d (%d up, %d down)", feed.NetScore(p), len(p.LikedBy), len(p.DislikedBy))
	switch {
	case liked:
		fmt.Fprint(w, ", you liked this")
	case disliked:
		fmt.Fprint(w, ", you disliked this")
	}
	fmt.Fprintf(w, "\n\n%s\n", p.Body)
}

func newRecentCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "recent",
		Short: "Show the newest posts across all departments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			viewer, err := a.viewer(ctx)
			if err != nil {
				return err
			}
			depts := store.NewDepartmentStore(a.api, a.logger)
			defer depts.Close()
			messages := store.NewMessageStore(a.api, a.logger)
			defer messages.Close()

			if _, err := depts.FetchAll(ctx); err != nil {
				return err
			}
			if _, err := messages.FetchAll(ctx); err != nil {
				return err
			}
			f := feed.New(a.api, viewer, a.logger)
			f.SetDepartments(depts.Departments())
			f.Load(messages.Messages())

			out := cmd.OutOrStdout()
			rows := f.Rows(feed.Selection{}, feed.SortRecent)
			if len(rows) == 0 {
				fmt.Fprintln(out, "No posts yet.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tDEPT\tSCORE\tTITLE\tBY\tPOSTED")
			for _, r := range rows {
				fmt.Fprintf(tw, "%d\t%s\t%+d\t%s\t%s\t%s\n",
					r.Post.ID, r.Department, r.NetScore, title(r.Post), author(r),
					r.Post.Timestamp.Local().Format("Jan 2 15:04"))
			}
			return tw.Flush()
		},
	}
}

// openPost loads a single post into a feed owned by the signed-in user.
func (a *app) openPost(ctx context.Context, arg string) (*feed.Feed, *client.Post, error) {
	id, err := parseID(arg)
	if err != nil {
		return nil, nil, err
	}
	_, me, err := a.signIn(ctx)
	if err != nil {
		return nil, nil, err
	}
	messages := store.NewMessageStore(a.api, a.logger)
	defer messages.Close()
	p, err := messages.FetchByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	f := feed.New(a.api, me.UnityID, a.logger)
	f.Load(client.LinkRelations([]client.Post{*p}))
	return f, p, nil
}

func newPostCmd(a *app) *cobra.Command {
	var (
		department string
		postTitle  string
		class      int64
		professor  int64
	)
	cmd := &cobra.Command{
		Use:   "post <text>...",
		Short: "Create a post on a department board",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, me, err := a.signIn(ctx)
			if err != nil {
				return err
			}
			depts := store.NewDepartmentStore(a.api, a.logger)
			defer depts.Close()
			deptID, err := resolveDepartment(ctx, depts, department)
			if err != nil {
				return err
			}

			np := client.NewPost{
				Title:        postTitle,
				Content:      strings.Join(args, " "),
				SenderID:     me.UnityID,
				DepartmentID: &deptID,
			}
			if class != 0 {
				np.ClassID = &class
			}
			if professor != 0 {
				np.ProfessorID = &professor
			}
			p, err := a.api.CreatePost(ctx, np)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Posted #%d\n", p.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&department, "department", "d", "", "department id or code")
	cmd.Flags().StringVarP(&postTitle, "title", "t", "", "post title")
	cmd.Flags().Int64Var(&class, "class", 0, "class id")
	cmd.Flags().Int64Var(&professor, "professor", 0, "professor id")
	_ = cmd.MarkFlagRequired("department")
	return cmd
}

func newVoteCmd(a *app) *cobra.Command {
	var dislike bool
	cmd := &cobra.Command{
		Use:   "vote <post id>",
		Short: "Toggle your like (or dislike) on a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			f, p, err := a.openPost(ctx, args[0])
			if err != nil {
				return err
			}
			kind := client.Like
			if dislike {
				kind = client.Dislike
			}
			if err := f.Toggle(ctx, p.ID, kind); err != nil {
				return err
			}
			updated, _ := f.Get(p.ID)
			printPost(cmd.OutOrStdout(), updated, f.Viewer())
			return nil
		},
	}
	cmd.Flags().BoolVar(&dislike, "dislike", false, "toggle a dislike instead of a like")
	return cmd
}

func newEditCmd(a *app) *cobra.Command {
	var (
		postTitle string
		body      string
		class     int64
		professor int64
	)
	cmd := &cobra.Command{
		Use:   "edit <post id>",
		Short: "Edit one of your posts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			f, p, err := a.openPost(ctx, args[0])
			if err != nil {
				return err
			}
			if !feed.CanModify(*p, f.Viewer()) {
				return errNotOwner
			}

			patch := feed.Patch{Title: p.Title, Body: p.Body}
			if cmd.Flags().Changed("title") {
				patch.Title = postTitle
			}
			if cmd.Flags().Changed("body") {
				patch.Body = body
			}
			if class != 0 {
				patch.Class = &client.Class{ID: class}
			}
			if professor != 0 {
				patch.Professor = &client.Professor{ID: professor}
			}
			if err := f.Edit(ctx, p.ID, patch); err != nil {
				return err
			}
			updated, _ := f.Get(p.ID)
			printPost(cmd.OutOrStdout(), updated, f.Viewer())
			return nil
		},
	}
	cmd.Flags().StringVarP(&postTitle, "title", "t", "", "new title")
	cmd.Flags().StringVarP(&body, "body", "b", "", "new body")
	cmd.Flags().Int64Var(&class, "class", 0, "new class id")
	cmd.Flags().Int64Var(&professor, "professor", 0, "new professor id")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <post id>",
		Short: "Delete one of your posts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			f, p, err := a.openPost(ctx, args[0])
			if err != nil {
				return err
			}
			if !feed.CanModify(*p, f.Viewer()) {
				return errNotOwner
			}
			if err := f.Delete(ctx, p.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted #%d\n", p.ID)
			return nil
		},
	}
}

func newCommentCmd(a *app) *cobra.Command {
	var page int
	cmd := &cobra.Command{
		Use:   "comment <post id> [text]...",
		Short: "List the comments on a post, or add one",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if len(args) > 1 {
				_, me, err := a.signIn(ctx)
				if err != nil {
					return err
				}
				c, err := a.api.CreateComment(ctx, id, me.UnityID, strings.Join(args[1:], " "))
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Commented #%d on #%d\n", c.ID, id)
				return nil
			}

			comments, err := a.api.Comments(ctx, id, "", page, 0)
			if err != nil {
				return err
			}
			if len(comments) == 0 {
				fmt.Fprintln(out, "No comments yet.")
				return nil
			}
			for _, c := range comments {
				fmt.Fprintf(out, "#%d %s (%s): %s\n", c.ID, c.Sender.UnityID,
					c.Timestamp.Local().Format("Jan 2 15:04"), c.Body)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page of comments to list")
	return cmd
}
