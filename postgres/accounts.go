package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/wolftalk/wolftalk/api"
)

// EnsureUser returns the user with p's unity id, creating it from p when
// missing. Blank names and emails on an existing user are filled from p.
func (pg *Postgres) EnsureUser(ctx context.Context, p api.Profile) (api.Profile, error) {
	var out api.Profile
	err := pg.bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		u := &user{UnityID: p.UnityID, DisplayName: p.DisplayName, Email: p.Email, IsStudent: p.IsStudent}
		if _, err := tx.NewInsert().
			Model(u).
			On("CONFLICT (unity_id) DO NOTHING").
			Returning("NULL").
			Exec(ctx); err != nil {
			return fmt.Errorf("insert user: %w", err)
		}

		var cur user
		if err := tx.NewSelect().Model(&cur).Where("u.unity_id = ?", p.UnityID).Scan(ctx); err != nil {
			return scanErr(err)
		}
		var changed bool
		if cur.DisplayName == "" && p.DisplayName != "" {
			cur.DisplayName, changed = p.DisplayName, true
		}
		if cur.Email == "" && p.Email != "" {
			cur.Email, changed = p.Email, true
		}
		if changed {
			if _, err := tx.NewUpdate().
				Model(&cur).
				Column("display_name", "email").
				WherePK().
				Exec(ctx); err != nil {
				return fmt.Errorf("update user: %w", err)
			}
		}
		out = cur.APIProfile()
		return nil
	})
	return out, err
}

// GetUser returns the user with the given unity id.
func (pg *Postgres) GetUser(ctx context.Context, unityID string) (api.Profile, error) {
	var u user
	if err := pg.bun.NewSelect().Model(&u).Where("u.unity_id = ?", unityID).Scan(ctx); err != nil {
		return api.Profile{}, scanErr(err)
	}
	return u.APIProfile(), nil
}

// UpdateProfile replaces the editable fields of a user's profile. The
// department id is only changed when given.
func (pg *Postgres) UpdateProfile(ctx context.Context, unityID string, p api.ProfileUpdate) (api.Profile, error) {
	q := pg.bun.NewUpdate().
		Model((*user)(nil)).
		Set("display_name = ?", p.DisplayName).
		Set("department = ?", p.Department).
		Set("email = ?", p.Email).
		Where("unity_id = ?", unityID)
	if p.DepartmentID != nil {
		q = q.Set("department_id = ?", *p.DepartmentID)
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return api.Profile{}, fmt.Errorf("update: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return api.Profile{}, api.ErrNotFound
	}
	return pg.GetUser(ctx, unityID)
}

// usersExist returns api.ErrNotFound unless every id names a user.
func usersExist(ctx context.Context, db bun.IDB, ids ...int64) error {
	uniq := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		uniq[id] = struct{}{}
	}
	n, err := db.NewSelect().Model((*user)(nil)).Where("u.id IN (?)", bun.In(ids)).Count(ctx)
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if n != len(uniq) {
		return api.ErrNotFound
	}
	return nil
}

// friendLink returns the request linking two users in either direction, or
// nil when there is none.
func friendLink(ctx context.Context, db bun.IDB, a, b int64) (*friendRequest, error) {
	var fr friendRequest
	err := db.NewSelect().
		Model(&fr).
		Where("(fr.from_id = ? AND fr.to_id = ?) OR (fr.from_id = ? AND fr.to_id = ?)", a, b, b, a).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select friend request: %w", err)
	}
	return &fr, nil
}

// AddFriend sends a friend request from userID to friendID. A pending request
// the other way is accepted instead.
func (pg *Postgres) AddFriend(ctx context.Context, userID, friendID int64) (api.FriendStatus, error) {
	var st api.FriendStatus
	err := pg.bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := usersExist(ctx, tx, userID, friendID); err != nil {
			return err
		}
		fr, err := friendLink(ctx, tx, userID, friendID)
		if err != nil {
			return err
		}

		switch {
		case fr == nil:
			if _, err := tx.NewInsert().
				Model(&friendRequest{FromID: userID, ToID: friendID}).
				Exec(ctx); err != nil {
				return fmt.Errorf("insert friend request: %w", err)
			}
			st = api.FriendPending
		case fr.Accepted:
			return api.ErrAlreadyFriends
		case fr.FromID == friendID:
			if _, err := tx.NewUpdate().
				Model(fr).
				Set("accepted = TRUE").
				WherePK().
				Exec(ctx); err != nil {
				return fmt.Errorf("accept friend request: %w", err)
			}
			st = api.Friends
		default:
			st = api.FriendPending
		}
		return nil
	})
	return st, err
}

// FriendStatus reports how two users are linked, regardless of who sent the
// request.
func (pg *Postgres) FriendStatus(ctx context.Context, userID, friendID int64) (api.FriendStatus, error) {
	if err := usersExist(ctx, pg.bun, userID, friendID); err != nil {
		return "", err
	}
	fr, err := friendLink(ctx, pg.bun, userID, friendID)
	switch {
	case err != nil:
		return "", err
	case fr == nil:
		return api.FriendNone, nil
	case fr.Accepted:
		return api.Friends, nil
	default:
		return api.FriendPending, nil
	}
}

// ListFriends returns a user's accepted friends ordered by unity id.
func (pg *Postgres) ListFriends(ctx context.Context, userID int64) ([]api.User, error) {
	if err := usersExist(ctx, pg.bun, userID); err != nil {
		return nil, err
	}
	friendIDs := pg.bun.NewSelect().
		Model((*friendRequest)(nil)).
		ColumnExpr("CASE WHEN fr.from_id = ? THEN fr.to_id ELSE fr.from_id END", userID).
		Where("fr.accepted").
		Where("fr.from_id = ? OR fr.to_id = ?", userID, userID)

	var friends []user
	if err := pg.bun.NewSelect().
		Model(&friends).
		Where("u.id IN (?)", friendIDs).
		Order("u.unity_id ASC").
		Scan(ctx); err != nil {
		return nil, scanErr(err)
	}
	out := make([]api.User, len(friends))
	for i, u := range friends {
		out[i] = u.APIUser()
	}
	return out, nil
}
