package postgres

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/wolftalk/wolftalk/api"
)

func selectConversations(db bun.IDB, model any) *bun.SelectQuery {
	return db.NewSelect().
		Model(model).
		ColumnExpr("gc.*").
		ColumnExpr("(SELECT lm.content FROM group_messages AS lm WHERE lm.group_id = gc.id " +
			"ORDER BY lm.created_at DESC, lm.id DESC LIMIT 1) AS last_content").
		ColumnExpr("(SELECT max(lm.created_at) FROM group_messages AS lm WHERE lm.group_id = gc.id) AS last_at").
		Relation("Participants", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("u.id ASC")
		})
}

func getConversation(ctx context.Context, db bun.IDB, id int64) (api.Conversation, error) {
	var g groupChat
	if err := selectConversations(db, &g).Where("gc.id = ?", id).Scan(ctx); err != nil {
		return api.Conversation{}, scanErr(err)
	}
	return g.APIConversation(), nil
}

// checkMember returns api.ErrNotFound for a missing group and
// api.ErrNotParticipant when userID is not in it.
func checkMember(ctx context.Context, db bun.IDB, userID, groupID int64) error {
	ok, err := db.NewSelect().Model((*groupChat)(nil)).Where("gc.id = ?", groupID).Exists(ctx)
	if err != nil {
		return fmt.Errorf("select group: %w", err)
	}
	if !ok {
		return api.ErrNotFound
	}
	ok, err = db.NewSelect().
		Model((*groupParticipant)(nil)).
		Where("gp.group_id = ?", groupID).
		Where("gp.user_id = ?", userID).
		Exists(ctx)
	if err != nil {
		return fmt.Errorf("select participant: %w", err)
	}
	if !ok {
		return api.ErrNotParticipant
	}
	return nil
}

// ListConversations returns the group chats userID takes part in, most
// recently active first.
func (pg *Postgres) ListConversations(ctx context.Context, userID int64) ([]api.Conversation, error) {
	member := pg.bun.NewSelect().
		Model((*groupParticipant)(nil)).
		Column("group_id").
		Where("gp.user_id = ?", userID)

	var groups []groupChat
	if err := selectConversations(pg.bun, &groups).
		Where("gc.id IN (?)", member).
		OrderExpr("last_at DESC NULLS LAST").
		Order("gc.id DESC").
		Scan(ctx); err != nil {
		return nil, scanErr(err)
	}
	out := make([]api.Conversation, len(groups))
	for i, g := range groups {
		out[i] = g.APIConversation()
	}
	return out, nil
}

// CreateConversation opens a group chat between userID and the given
// participants and posts its first message. Participant ids that name no
// user are skipped.
func (pg *Postgres) CreateConversation(ctx context.Context, userID int64, c api.NewConversation) (api.Conversation, error) {
	var out api.Conversation
	err := pg.bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := usersExist(ctx, tx, userID); err != nil {
			return err
		}
		g := &groupChat{Title: c.GroupTitle}
		if _, err := tx.NewInsert().Model(g).Exec(ctx); err != nil {
			return fmt.Errorf("insert group: %w", err)
		}

		var ids []int64
		if err := tx.NewSelect().
			Model((*user)(nil)).
			Column("id").
			Where("u.id IN (?)", bun.In(append([]int64{userID}, c.ParticipantIDs...))).
			Scan(ctx, &ids); err != nil {
			return fmt.Errorf("select participants: %w", err)
		}
		members := make([]groupParticipant, len(ids))
		for i, id := range ids {
			members[i] = groupParticipant{GroupID: g.ID, UserID: id}
		}
		if _, err := tx.NewInsert().Model(&members).Exec(ctx); err != nil {
			return fmt.Errorf("insert participants: %w", err)
		}

		m := &groupMessage{GroupID: g.ID, SenderID: userID, Content: c.Content}
		if _, err := tx.NewInsert().Model(m).Exec(ctx); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}

		var err error
		out, err = getConversation(ctx, tx, g.ID)
		return err
	})
	return out, err
}

// AddParticipant adds userID to a group chat on behalf of byUserID, who must
// already take part in it. Adding a current participant is not an error.
func (pg *Postgres) AddParticipant(ctx context.Context, byUserID, userID, groupID int64) (api.Conversation, error) {
	var out api.Conversation
	err := pg.bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := checkMember(ctx, tx, byUserID, groupID); err != nil {
			return err
		}
		if err := usersExist(ctx, tx, userID); err != nil {
			return err
		}
		if _, err := tx.NewInsert().
			Model(&groupParticipant{GroupID: groupID, UserID: userID}).
			On("CONFLICT DO NOTHING").
			Exec(ctx); err != nil {
			return fmt.Errorf("insert participant: %w", err)
		}
		var err error
		out, err = getConversation(ctx, tx, groupID)
		return err
	})
	return out, err
}

// ListGroupMessages returns a group chat's messages, oldest first.
func (pg *Postgres) ListGroupMessages(ctx context.Context, userID, groupID int64) ([]api.DirectMessage, error) {
	if err := checkMember(ctx, pg.bun, userID, groupID); err != nil {
		return nil, err
	}
	var msgs []groupMessage
	if err := pg.bun.NewSelect().
		Model(&msgs).
		Relation("Sender").
		Where("gm.group_id = ?", groupID).
		Order("gm.created_at ASC", "gm.id ASC").
		Scan(ctx); err != nil {
		return nil, scanErr(err)
	}
	out := make([]api.DirectMessage, len(msgs))
	for i, m := range msgs {
		out[i] = m.APIDirectMessage()
	}
	return out, nil
}

// SendMessage posts a message to a group chat userID takes part in.
func (pg *Postgres) SendMessage(ctx context.Context, userID, groupID int64, content string) (api.DirectMessage, error) {
	var out api.DirectMessage
	err := pg.bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := checkMember(ctx, tx, userID, groupID); err != nil {
			return err
		}
		m := &groupMessage{GroupID: groupID, SenderID: userID, Content: content}
		if _, err := tx.NewInsert().Model(m).Exec(ctx); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		if err := tx.NewSelect().Model(m).Relation("Sender").WherePK().Scan(ctx); err != nil {
			return scanErr(err)
		}
		out = m.APIDirectMessage()
		return nil
	})
	return out, err
}
