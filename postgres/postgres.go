package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/wolftalk/wolftalk/api"
)

// Postgres provides storage in PostgreSQL.
type Postgres struct {
	bun *bun.DB
}

// Connect connects to the database and ping the DB to ensure the connection is
// working.
func Connect(ctx context.Context, connStr string) (*Postgres, error) {
	sqlDB := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(connStr)))
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	db := bun.NewDB(sqlDB, pgdialect.New())
	db.RegisterModel((*classProfessor)(nil), (*groupParticipant)(nil))
	return &Postgres{
		bun: db,
	}, nil
}

// Close closes the database connection.
func (pg *Postgres) Close() error {
	return pg.bun.Close()
}

// CreateSchema creates any missing tables.
func (pg *Postgres) CreateSchema(ctx context.Context) error {
	models := []any{
		(*department)(nil),
		(*class)(nil),
		(*professor)(nil),
		(*classProfessor)(nil),
		(*user)(nil),
		(*post)(nil),
		(*vote)(nil),
		(*friendRequest)(nil),
		(*groupChat)(nil),
		(*groupParticipant)(nil),
		(*groupMessage)(nil),
	}
	for _, m := range models {
		if _, err := pg.bun.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	return nil
}

func scanErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return api.ErrNotFound
	}
	return fmt.Errorf("scan: %w", err)
}

// ListDepartments returns all departments ordered by code.
func (pg *Postgres) ListDepartments(ctx context.Context) ([]api.Department, error) {
	var depts []department
	if err := pg.bun.NewSelect().Model(&depts).Order("d.code ASC").Scan(ctx); err != nil {
		return nil, scanErr(err)
	}
	out := make([]api.Department, len(depts))
	for i, d := range depts {
		out[i] = d.APIDepartment()
	}
	return out, nil
}

// GetDepartment returns a department with its classes, professors and
// top-level posts, newest first.
func (pg *Postgres) GetDepartment(ctx context.Context, id int64) (api.DepartmentDetail, error) {
	var d department
	if err := pg.bun.NewSelect().Model(&d).Where("d.id = ?", id).Scan(ctx); err != nil {
		return api.DepartmentDetail{}, scanErr(err)
	}

	var classes []class
	if err := pg.bun.NewSelect().
		Model(&classes).
		Relation("Professors").
		Where("c.department_id = ?", id).
		Order("c.course_title ASC").
		Scan(ctx); err != nil {
		return api.DepartmentDetail{}, scanErr(err)
	}

	var profs []professor
	if err := pg.bun.NewSelect().
		Model(&profs).
		Where("pr.department_id = ?", id).
		Order("pr.name ASC").
		Scan(ctx); err != nil {
		return api.DepartmentDetail{}, scanErr(err)
	}

	posts, err := pg.ListPosts(ctx, api.PostFilter{DepartmentID: id})
	if err != nil {
		return api.DepartmentDetail{}, err
	}

	out := api.DepartmentDetail{
		Department: d.APIDepartment(),
		Classes:    make([]api.Class, len(classes)),
		Professors: make([]api.Professor, len(profs)),
		Messages:   posts,
	}
	for i, c := range classes {
		out.Classes[i] = c.APIClass()
	}
	for i, pr := range profs {
		out.Professors[i] = pr.APIProfessor()
	}
	return out, nil
}

const commentCountExpr = "(SELECT count(*) FROM posts AS cm WHERE cm.parent_id = p.id)"

// firstProfessorExpr selects the professor a post without one is attributed
// to: the lowest-id professor teaching its class.
const firstProfessorExpr = "SELECT min(fp.professor_id) FROM class_professors AS fp WHERE fp.class_id = p.class_id"

// inferProfessors fills the professor of posts that name a class but no
// professor, using the same rule as firstProfessorExpr.
func inferProfessors(ctx context.Context, db bun.IDB, posts []post) error {
	var classIDs []int64
	for _, p := range posts {
		if p.ProfessorID == nil && p.ClassID != nil {
			classIDs = append(classIDs, *p.ClassID)
		}
	}
	if len(classIDs) == 0 {
		return nil
	}

	var links []classProfessor
	if err := db.NewSelect().
		Model(&links).
		Relation("Professor").
		Where("cp.class_id IN (?)", bun.In(classIDs)).
		Order("cp.class_id ASC", "cp.professor_id ASC").
		Scan(ctx); err != nil {
		return fmt.Errorf("select class professors: %w", err)
	}
	first := make(map[int64]*professor, len(links))
	for _, l := range links {
		if _, ok := first[l.ClassID]; !ok {
			first[l.ClassID] = l.Professor
		}
	}
	for i := range posts {
		if posts[i].ProfessorID == nil && posts[i].ClassID != nil {
			posts[i].Professor = first[*posts[i].ClassID]
		}
	}
	return nil
}

func selectPosts(db bun.IDB, model any) *bun.SelectQuery {
	return db.NewSelect().
		Model(model).
		ColumnExpr("p.*").
		ColumnExpr(commentCountExpr+" AS comment_count").
		Relation("Sender").
		Relation("Class").
		Relation("Professor").
		Relation("Votes", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("v.created_at ASC")
		})
}

// ListPosts returns the posts selected by f. Top-level posts are listed
// unless f.ParentID is set, in which case its comments are.
func (pg *Postgres) ListPosts(ctx context.Context, f api.PostFilter, excludeIDs ...int64) ([]api.Post, error) {
	var posts []post
	q := selectPosts(pg.bun, &posts)

	if f.ParentID != 0 {
		q = q.Where("p.parent_id = ?", f.ParentID)
	} else {
		q = q.Where("p.parent_id IS NULL")
	}
	if f.DepartmentID != 0 {
		q = q.Where("p.department_id = ?", f.DepartmentID)
	}
	if f.Course != "" {
		q = q.Where(`"class"."course_title" = ?`, f.Course)
	}
	if f.ProfessorID != 0 {
		q = q.Where("COALESCE(p.professor_id, ("+firstProfessorExpr+")) = ?", f.ProfessorID)
	}
	if f.Tag != "" {
		q = q.Where("? = ANY(p.tags)", f.Tag)
	}
	if f.Sender != "" {
		q = q.Where("p.sender_unity_id = ?", f.Sender)
	}
	if len(excludeIDs) > 0 {
		q = q.Where("p.id NOT IN (?)", bun.In(excludeIDs))
	}

	switch f.Sort {
	case api.SortPopular:
		q = q.OrderExpr("((SELECT count(*) FROM votes AS lv WHERE lv.post_id = p.id AND lv.kind = ?) + " +
			commentCountExpr + ") DESC", string(api.Like))
	case api.SortUnanswered:
		q = q.Where(commentCountExpr + " = 0")
	}
	q = q.Order("p.created_at DESC", "p.id DESC")

	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, scanErr(err)
	}
	if err := inferProfessors(ctx, pg.bun, posts); err != nil {
		return nil, err
	}
	out := make([]api.Post, len(posts))
	for i, p := range posts {
		out[i] = p.APIPost()
	}
	return out, nil
}

func getPost(ctx context.Context, db bun.IDB, id int64) (api.Post, error) {
	var p post
	if err := selectPosts(db, &p).Where("p.id = ?", id).Scan(ctx); err != nil {
		return api.Post{}, scanErr(err)
	}
	posts := []post{p}
	if err := inferProfessors(ctx, db, posts); err != nil {
		return api.Post{}, err
	}
	return posts[0].APIPost(), nil
}

// GetPost returns a post or comment by id.
func (pg *Postgres) GetPost(ctx context.Context, id int64) (api.Post, error) {
	return getPost(ctx, pg.bun, id)
}

// InsertPost inserts a post into the database, creating its sender if
// needed. A comment takes its parent's department. The returned post holds
// auto generated fields, such as the post id.
func (pg *Postgres) InsertPost(ctx context.Context, in api.Post) (api.Post, error) {
	var out api.Post
	err := pg.bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		u := &user{UnityID: in.Sender.UnityID, DisplayName: in.Sender.DisplayName}
		if _, err := tx.NewInsert().Model(u).On("CONFLICT (unity_id) DO NOTHING").Returning("NULL").Exec(ctx); err != nil {
			return fmt.Errorf("insert user: %w", err)
		}

		p := &post{
			Title:         in.Title,
			Body:          in.Body,
			SenderUnityID: in.Sender.UnityID,
			ParentID:      in.ParentID,
			DepartmentID:  in.DepartmentID,
			Tags:          in.Tags,
			CreatedAt:     in.Timestamp,
		}
		if in.ParentID != nil {
			parent, err := getPost(ctx, tx, *in.ParentID)
			if err != nil {
				return fmt.Errorf("parent: %w", err)
			}
			p.DepartmentID = parent.DepartmentID
		}
		if in.Class != nil {
			p.ClassID = &in.Class.ID
		}
		if in.Professor != nil {
			p.ProfessorID = &in.Professor.ID
		}
		if _, err := tx.NewInsert().Model(p).Exec(ctx); err != nil {
			return fmt.Errorf("insert: %w", err)
		}

		var err error
		out, err = getPost(ctx, tx, p.ID)
		return err
	})
	return out, err
}

// UpdatePost changes a post's title and body, and its class and professor
// when given.
func (pg *Postgres) UpdatePost(ctx context.Context, id int64, u api.PostUpdate) (api.Post, error) {
	q := pg.bun.NewUpdate().
		Model((*post)(nil)).
		Set("title = ?", u.Title).
		Set("body = ?", u.Body).
		Where("id = ?", id)
	if u.ClassID != nil {
		q = q.Set("class_id = ?", *u.ClassID)
	}
	if u.ProfessorID != nil {
		q = q.Set("professor_id = ?", *u.ProfessorID)
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return api.Post{}, fmt.Errorf("update: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return api.Post{}, api.ErrNotFound
	}
	return pg.GetPost(ctx, id)
}

// DeletePost deletes a post together with its comments and votes and returns
// the deleted post.
func (pg *Postgres) DeletePost(ctx context.Context, id int64) (api.Post, error) {
	var out api.Post
	err := pg.bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		if out, err = getPost(ctx, tx, id); err != nil {
			return err
		}

		thread := tx.NewSelect().Model((*post)(nil)).Column("id").
			Where("id = ? OR parent_id = ?", id, id)
		if _, err := tx.NewDelete().Model((*vote)(nil)).Where("post_id IN (?)", thread).Exec(ctx); err != nil {
			return fmt.Errorf("delete votes: %w", err)
		}
		if _, err := tx.NewDelete().Model((*post)(nil)).Where("parent_id = ?", id).Exec(ctx); err != nil {
			return fmt.Errorf("delete comments: %w", err)
		}
		if _, err := tx.NewDelete().Model((*post)(nil)).Where("id = ?", id).Exec(ctx); err != nil {
			return fmt.Errorf("delete: %w", err)
		}
		return nil
	})
	return out, err
}

// AddVote records unityID's vote on a post. An existing vote by the same
// user is replaced, so a user is never in both the liked and disliked sets.
func (pg *Postgres) AddVote(ctx context.Context, postID int64, kind api.VoteKind, unityID string) (api.Post, error) {
	var out api.Post
	err := pg.bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := getPost(ctx, tx, postID); err != nil {
			return err
		}
		v := &vote{PostID: postID, UnityID: unityID, Kind: string(kind)}
		if _, err := tx.NewInsert().
			Model(v).
			On("CONFLICT (post_id, unity_id) DO UPDATE").
			Set("kind = EXCLUDED.kind").
			Exec(ctx); err != nil {
			return fmt.Errorf("insert vote: %w", err)
		}
		var err error
		out, err = getPost(ctx, tx, postID)
		return err
	})
	return out, err
}

// RemoveVote withdraws unityID's vote of the given kind. Removing a vote that
// was not cast is not an error.
func (pg *Postgres) RemoveVote(ctx context.Context, postID int64, kind api.VoteKind, unityID string) (api.Post, error) {
	if _, err := pg.bun.NewDelete().
		Model((*vote)(nil)).
		Where("post_id = ?", postID).
		Where("unity_id = ?", unityID).
		Where("kind = ?", string(kind)).
		Exec(ctx); err != nil {
		return api.Post{}, fmt.Errorf("delete vote: %w", err)
	}
	return pg.GetPost(ctx, postID)
}
