package cockroach

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgxutil"

	"github.com/nebulahq/nebula/errs"
	"github.com/nebulahq/nebula/id"
	"github.com/nebulahq/nebula/types"
)

// CreateMessage persists the message, refreshes the conversation's
// denormalized last-message fields and bumps every other participant's
// unread counter, all in one transaction. Only participants may send.
func (c *Cockroach) CreateMessage(ctx context.Context, in types.CreateMessage) (types.Message, error) {
	var out types.Message
	return out, c.db.RunTx(ctx, func(ctx context.Context) error {
		isParticipant, err := c.IsParticipant(ctx, in.ConversationID, in.LoggedInUserID())
		if err != nil {
			return err
		}

		if !isParticipant {
			return errs.NewPermissionDeniedError("you are not a participant of this conversation")
		}

		out, err = c.createMessage(ctx, in)
		return err
	})
}

func (c *Cockroach) createMessage(ctx context.Context, in types.CreateMessage) (types.Message, error) {
	var out types.Message

	const q = `
		INSERT INTO messages (id, conversation_id, sender_id, content, type)
		VALUES (@message_id, @conversation_id, @sender_id, @content, @type)
		RETURNING messages.*
	`

	rows, err := c.db.Query(ctx, q, pgx.StrictNamedArgs{
		"message_id":      id.Generate(),
		"conversation_id": in.ConversationID,
		"sender_id":       in.LoggedInUserID(),
		"content":         in.Content,
		"type":            in.Type,
	})
	if err != nil {
		return out, fmt.Errorf("sql insert message: %w", err)
	}

	out, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.Message])
	if err != nil {
		return out, fmt.Errorf("sql collect inserted message: %w", err)
	}

	if err := c.touchConversation(ctx, in.ConversationID, in.Content, out.CreatedAt); err != nil {
		return out, err
	}

	if err := c.incrementUnreadCounts(ctx, in.ConversationID, in.LoggedInUserID()); err != nil {
		return out, err
	}

	return out, nil
}

func (c *Cockroach) touchConversation(ctx context.Context, conversationID, lastMessage string, at time.Time) error {
	const q = `
		UPDATE conversations
		SET last_message = @last_message,
			last_message_time = @last_message_time,
			updated_at = now()
		WHERE id = @conversation_id
	`

	_, err := c.db.Exec(ctx, q, pgx.StrictNamedArgs{
		"conversation_id":   conversationID,
		"last_message":      lastMessage,
		"last_message_time": at,
	})
	if err != nil {
		return fmt.Errorf("sql update conversation last message: %w", err)
	}

	return nil
}

func (c *Cockroach) incrementUnreadCounts(ctx context.Context, conversationID, senderID string) error {
	const q = `
		UPDATE participants
		SET unread_count = unread_count + 1,
			updated_at = now()
		WHERE conversation_id = @conversation_id
			AND user_id != @sender_id
	`

	_, err := c.db.Exec(ctx, q, pgx.StrictNamedArgs{
		"conversation_id": conversationID,
		"sender_id":       senderID,
	})
	if err != nil {
		return fmt.Errorf("sql increment unread counts: %w", err)
	}

	return nil
}

func (c *Cockroach) Messages(ctx context.Context, in types.ListMessages) (types.Page[types.Message], error) {
	var out types.Page[types.Message]

	pageArgs, err := ParsePageArgs[time.Time](in.PageArgs)
	if err != nil {
		return out, err
	}

	// The join on participants gates the listing to members.
	filters := []string{
		"messages.conversation_id = @conversation_id",
		"participants.user_id = @user_id",
	}
	args := pgx.NamedArgs{
		"conversation_id": in.ConversationID,
		"user_id":         in.LoggedInUserID(),
	}

	if pageArgs.After != nil {
		filters = append(filters, "(messages.created_at, messages.id) < (@after_created_at, @after_id)")
		args["after_created_at"] = pageArgs.After.Value
		args["after_id"] = pageArgs.After.ID
	}
	if pageArgs.Before != nil {
		filters = append(filters, "(messages.created_at, messages.id) > (@before_created_at, @before_id)")
		args["before_created_at"] = pageArgs.Before.Value
		args["before_id"] = pageArgs.Before.ID
	}

	var order string
	var limit uint
	if pageArgs.IsBackwards() {
		order = "ORDER BY messages.created_at ASC, messages.id ASC"
		limit = or(pageArgs.Last, defaultPageSize) + 1
	} else {
		order = "ORDER BY messages.created_at DESC, messages.id DESC"
		limit = or(pageArgs.First, defaultPageSize) + 1
	}

	query := fmt.Sprintf(`
		SELECT messages.*
		FROM messages
		INNER JOIN participants ON participants.conversation_id = messages.conversation_id
		%s
		%s
		LIMIT %d`,
		where(filters),
		order,
		limit,
	)

	out.Items, err = pgxutil.Select(ctx, c.db, query, []any{args}, pgx.RowToStructByNameLax[types.Message])
	if err != nil {
		return out, fmt.Errorf("sql select messages: %w", err)
	}

	if err := applyPageInfo(&out, pageArgs, func(m types.Message) Cursor[time.Time] {
		return Cursor[time.Time]{ID: m.ID, Value: m.CreatedAt}
	}); err != nil {
		return out, err
	}

	return out, nil
}
