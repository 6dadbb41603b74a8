package cockroach

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgxutil"
	"github.com/nicolasparada/go-db"

	"github.com/nebulahq/nebula/errs"
	"github.com/nebulahq/nebula/id"
	"github.com/nebulahq/nebula/types"
)

const participationJSON = `
	json_build_object(
		'conversationID', participants.conversation_id,
		'userID', participants.user_id,
		'unreadCount', participants.unread_count,
		'lastReadAt', participants.last_read_at,
		'createdAt', participants.created_at,
		'updatedAt', participants.updated_at
	) AS participation
`

// CreateConversation creates a direct conversation between the logged-in user
// and the other user, registers both participants and stores the opening
// message, all in one transaction.
func (c *Cockroach) CreateConversation(ctx context.Context, in types.CreateConversation) (types.Created, error) {
	var out types.Created
	return out, c.db.RunTx(ctx, func(ctx context.Context) error {
		conversation, err := c.createConversation(ctx)
		if err != nil {
			return err
		}

		in.SetConversationID(conversation.ID)

		if err := c.createParticipants(ctx, in); err != nil {
			return err
		}

		createMessage := types.CreateMessage{
			ConversationID: conversation.ID,
			Content:        in.Content,
			Type:           types.MessageTypeText,
		}
		createMessage.SetLoggedInUserID(in.LoggedInUserID())
		if _, err := c.createMessage(ctx, createMessage); err != nil {
			return err
		}

		out = conversation

		return nil
	})
}

func (c *Cockroach) createConversation(ctx context.Context) (types.Created, error) {
	var out types.Created

	const q = `
		INSERT INTO conversations (id, type)
		VALUES (@conversation_id, @type)
		RETURNING id, created_at
	`

	rows, err := c.db.Query(ctx, q, pgx.StrictNamedArgs{
		"conversation_id": id.Generate(),
		"type":            types.ConversationTypeDirect,
	})
	if err != nil {
		return out, fmt.Errorf("sql insert conversation: %w", err)
	}

	out, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.Created])
	if err != nil {
		return out, fmt.Errorf("sql collect inserted conversation: %w", err)
	}

	return out, nil
}

func (c *Cockroach) createParticipants(ctx context.Context, in types.CreateConversation) error {
	const q = `
		INSERT INTO participants (conversation_id, user_id)
		VALUES (@conversation_id, @user_id)
			 , (@conversation_id, @other_user_id)
	`

	_, err := c.db.Exec(ctx, q, pgx.StrictNamedArgs{
		"conversation_id": in.ConversationID(),
		"user_id":         in.LoggedInUserID(),
		"other_user_id":   in.OtherUserID,
	})
	if isForeignKeyViolation(err) {
		return errs.NewNotFoundError("user not found")
	}

	if err != nil {
		return fmt.Errorf("sql insert participants: %w", err)
	}

	return nil
}

// ConversationFromParticipants finds the existing direct conversation
// between two users, if any.
func (c *Cockroach) ConversationFromParticipants(ctx context.Context, userID, otherUserID string) (types.Conversation, error) {
	var out types.Conversation

	const q = `
		SELECT conversations.*
		FROM conversations
		INNER JOIN participants AS mine
			ON mine.conversation_id = conversations.id AND mine.user_id = @user_id
		INNER JOIN participants AS theirs
			ON theirs.conversation_id = conversations.id AND theirs.user_id = @other_user_id
		WHERE conversations.type = @type
	`

	rows, err := c.db.Query(ctx, q, pgx.StrictNamedArgs{
		"user_id":       userID,
		"other_user_id": otherUserID,
		"type":          types.ConversationTypeDirect,
	})
	if err != nil {
		return out, fmt.Errorf("sql select conversation from participants: %w", err)
	}

	out, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.Conversation])
	if db.IsNotFoundError(err) {
		return out, errs.NewNotFoundError("conversation not found")
	}

	if err != nil {
		return out, fmt.Errorf("sql collect conversation from participants: %w", err)
	}

	return out, nil
}

// Conversation returns the conversation only when the user participates in it.
func (c *Cockroach) Conversation(ctx context.Context, in types.RetrieveConversation) (types.Conversation, error) {
	var out types.Conversation

	const q = `
		SELECT conversations.*, ` + participationJSON + `
		FROM conversations
		INNER JOIN participants ON participants.conversation_id = conversations.id
		WHERE conversations.id = @conversation_id
			AND participants.user_id = @user_id
	`

	rows, err := c.db.Query(ctx, q, pgx.StrictNamedArgs{
		"conversation_id": in.ConversationID,
		"user_id":         in.LoggedInUserID(),
	})
	if err != nil {
		return out, fmt.Errorf("sql select conversation: %w", err)
	}

	out, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.Conversation])
	if db.IsNotFoundError(err) {
		return out, errs.NewNotFoundError("conversation not found")
	}

	if err != nil {
		return out, fmt.Errorf("sql collect conversation: %w", err)
	}

	return out, nil
}

func (c *Cockroach) Conversations(ctx context.Context, in types.ListConversations) (types.Page[types.Conversation], error) {
	var out types.Page[types.Conversation]

	pageArgs, err := ParsePageArgs[time.Time](in.PageArgs)
	if err != nil {
		return out, err
	}

	filters := []string{"participants.user_id = @user_id"}
	args := pgx.NamedArgs{
		"user_id": in.LoggedInUserID(),
	}

	if pageArgs.After != nil {
		filters = append(filters, "(conversations.created_at, conversations.id) < (@after_created_at, @after_id)")
		args["after_created_at"] = pageArgs.After.Value
		args["after_id"] = pageArgs.After.ID
	}
	if pageArgs.Before != nil {
		filters = append(filters, "(conversations.created_at, conversations.id) > (@before_created_at, @before_id)")
		args["before_created_at"] = pageArgs.Before.Value
		args["before_id"] = pageArgs.Before.ID
	}

	var order string
	var limit uint
	if pageArgs.IsBackwards() {
		order = "ORDER BY conversations.created_at ASC, conversations.id ASC"
		limit = or(pageArgs.Last, defaultPageSize) + 1
	} else {
		order = "ORDER BY conversations.created_at DESC, conversations.id DESC"
		limit = or(pageArgs.First, defaultPageSize) + 1
	}

	query := fmt.Sprintf(`
		SELECT conversations.*, `+participationJSON+`
		FROM conversations
		INNER JOIN participants ON participants.conversation_id = conversations.id
		%s
		%s
		LIMIT %d`,
		where(filters),
		order,
		limit,
	)

	out.Items, err = pgxutil.Select(ctx, c.db, query, []any{args}, pgx.RowToStructByNameLax[types.Conversation])
	if err != nil {
		return out, fmt.Errorf("sql select conversations: %w", err)
	}

	if err := applyPageInfo(&out, pageArgs, func(c types.Conversation) Cursor[time.Time] {
		return Cursor[time.Time]{ID: c.ID, Value: c.CreatedAt}
	}); err != nil {
		return out, err
	}

	return out, nil
}

func (c *Cockroach) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	var exists bool

	const q = `
		SELECT EXISTS (
			SELECT 1
			FROM participants
			WHERE conversation_id = @conversation_id
				AND user_id = @user_id
		)
	`

	err := c.db.QueryRow(ctx, q, pgx.StrictNamedArgs{
		"conversation_id": conversationID,
		"user_id":         userID,
	}).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("sql check participant exists: %w", err)
	}

	return exists, nil
}

// MarkConversationRead zeroes the caller's unread counter and flags every
// message from other senders as read, in one transaction.
func (c *Cockroach) MarkConversationRead(ctx context.Context, in types.MarkConversationRead) error {
	return c.db.RunTx(ctx, func(ctx context.Context) error {
		if err := c.resetUnreadCount(ctx, in.ConversationID, in.LoggedInUserID()); err != nil {
			return err
		}

		return c.markMessagesRead(ctx, in.ConversationID, in.LoggedInUserID())
	})
}

func (c *Cockroach) resetUnreadCount(ctx context.Context, conversationID, userID string) error {
	const q = `
		UPDATE participants
		SET unread_count = 0,
			last_read_at = now(),
			updated_at = now()
		WHERE conversation_id = @conversation_id
			AND user_id = @user_id
		RETURNING conversation_id
	`

	args := pgx.StrictNamedArgs{
		"conversation_id": conversationID,
		"user_id":         userID,
	}

	_, err := pgxutil.SelectRow(ctx, c.db, q, []any{args}, pgx.RowTo[string])
	if db.IsNotFoundError(err) {
		return errs.NewNotFoundError("conversation not found")
	}

	if err != nil {
		return fmt.Errorf("sql reset unread count: %w", err)
	}

	return nil
}

func (c *Cockroach) markMessagesRead(ctx context.Context, conversationID, userID string) error {
	const q = `
		UPDATE messages
		SET is_read = true,
			read_at = now()
		WHERE conversation_id = @conversation_id
			AND sender_id != @user_id
			AND NOT is_read
	`

	_, err := c.db.Exec(ctx, q, pgx.StrictNamedArgs{
		"conversation_id": conversationID,
		"user_id":         userID,
	})
	if err != nil {
		return fmt.Errorf("sql mark messages read: %w", err)
	}

	return nil
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation
}
