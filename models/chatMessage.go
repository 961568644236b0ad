package models

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/homerly/rental_backend/repository"
	"github.com/homerly/rental_backend/utils"
	"gorm.io/gorm"
)

const (
	EventChatMessageSent = "chat.message_sent"

	maxChatMessageLength  = 2000
	defaultRecentMessages = 20
	maxRecentMessages     = 100
)

// ChatMessage is one message between an account and an admin. Owners and
// tenants only ever talk to admins.
type ChatMessage struct {
	BaseModel
	SenderId   uuid.UUID `gorm:"type:char(36);index;not null" json:"sender_id"`
	ReceiverId uuid.UUID `gorm:"type:char(36);index;not null" json:"receiver_id"`
	Message    string    `gorm:"type:text;not null" json:"message"`
	SentAt     time.Time `gorm:"index;not null" json:"sent_at"`
	IsRead     bool      `gorm:"not null;default:false;index" json:"is_read"`
}

type NewChatMessage struct {
	ReceiverId *uuid.UUID `json:"receiver_id"`
	Message    string     `json:"message" binding:"required"`
}

type ChatMessageResponse struct {
	ChatMessage
	SenderName string      `json:"sender_name"`
	SenderRole AccountRole `json:"sender_role"`
}

// ChatConversation summarises the thread between an admin and one account.
type ChatConversation struct {
	AccountId       uuid.UUID   `json:"account_id"`
	FullName        string      `json:"full_name"`
	Role            AccountRole `json:"role"`
	LastMessage     string      `json:"last_message"`
	LastMessageTime time.Time   `json:"last_message_time"`
	UnreadCount     int         `json:"unread_count"`
}

func between(a, b uuid.UUID) repository.Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("((sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?))", a, b, b, a)
	}
}

func newestSentFirst(db *gorm.DB) *gorm.DB {
	return db.Order("sent_at desc").Order("created_at desc")
}

// GetAdminId returns the first admin account, the default chat partner.
func GetAdminId(ctx context.Context) (uuid.UUID, error) {
	if _, err := callerFromContext(ctx); err != nil {
		return uuid.Nil, err
	}
	admin, err := readRepo[Account]().First(ctx, whereEq("role", AccountRoleAdmin), func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at asc")
	})
	if utils.IsKind(err, utils.KindNotFound) {
		return uuid.Nil, utils.NotFoundError("no admin is available to chat")
	}
	if err != nil {
		return uuid.Nil, err
	}
	return admin.ID, nil
}

// chatPartner resolves the other side of a thread. Admins must name it;
// everyone else defaults to the first admin and may only pick admins.
func chatPartner(ctx context.Context, c caller, other *uuid.UUID) (*Account, error) {
	if other == nil || *other == uuid.Nil {
		if c.isAdmin() {
			return nil, utils.BadRequestError("receiver is required")
		}
		adminId, err := GetAdminId(ctx)
		if err != nil {
			return nil, err
		}
		other = &adminId
	}
	if *other == c.Id {
		return nil, utils.BadRequestError("you cannot chat with yourself")
	}
	partner, err := GetAccount(ctx, *other)
	if err != nil {
		return nil, err
	}
	if !c.isAdmin() && partner.Role != AccountRoleAdmin {
		return nil, utils.ForbiddenError("you can only chat with an admin")
	}
	return partner, nil
}

func SendChatMessage(ctx context.Context, input *NewChatMessage) (*ChatMessageResponse, error) {
	c, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(input.Message)
	if text == "" {
		return nil, utils.BadRequestError("message is required")
	}
	if len(text) > maxChatMessageLength {
		return nil, utils.BadRequestError("message must be at most %d characters", maxChatMessageLength)
	}
	partner, err := chatPartner(ctx, c, input.ReceiverId)
	if err != nil {
		return nil, err
	}
	sender, err := GetAccount(ctx, c.Id)
	if err != nil {
		return nil, err
	}

	msg := ChatMessage{
		SenderId:   c.Id,
		ReceiverId: partner.ID,
		Message:    text,
		SentAt:     nowUTC(),
	}
	msg.CreatedBy = c.Id
	err = transact(ctx, func(uow *repository.UnitOfWork) error {
		return repository.For[ChatMessage](uow).Insert(ctx, &msg)
	})
	if err != nil {
		return nil, err
	}
	publishEvent(ctx, EventChatMessageSent, "chat_message", msg.ID, c.Id, msg)
	return &ChatMessageResponse{ChatMessage: msg, SenderName: sender.FullName, SenderRole: sender.Role}, nil
}

// GetChatHistory pages the thread newest first; each page reads oldest first.
func GetChatHistory(ctx context.Context, other *uuid.UUID, page repository.Pagination) (*repository.Page[ChatMessageResponse], error) {
	c, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	partner, err := chatPartner(ctx, c, other)
	if err != nil {
		return nil, err
	}
	result, err := readRepo[ChatMessage]().Page(ctx, page, between(c.Id, partner.ID), newestSentFirst)
	if err != nil {
		return nil, err
	}
	slices.Reverse(result.Items)
	return withSenders(ctx, result)
}

// GetRecentMessages returns the last count messages of the thread, oldest first.
func GetRecentMessages(ctx context.Context, other *uuid.UUID, count int) ([]ChatMessageResponse, error) {
	if count <= 0 {
		count = defaultRecentMessages
	}
	if count > maxRecentMessages {
		count = maxRecentMessages
	}
	result, err := GetChatHistory(ctx, other, repository.Pagination{Page: 1, PageSize: count})
	if err != nil {
		return nil, err
	}
	return result.Items, nil
}

// MarkMessagesAsRead marks what other sent the caller as read and returns
// how many messages changed.
func MarkMessagesAsRead(ctx context.Context, other *uuid.UUID) (int, error) {
	c, err := callerFromContext(ctx)
	if err != nil {
		return 0, err
	}
	partner, err := chatPartner(ctx, c, other)
	if err != nil {
		return 0, err
	}

	var affected int64
	err = transact(ctx, func(uow *repository.UnitOfWork) error {
		messages := repository.For[ChatMessage](uow)
		unread := whereEq("is_read", false)
		pending, err := messages.Find(ctx, unread, whereEq("sender_id", partner.ID), whereEq("receiver_id", c.Id))
		if err != nil || len(pending) == 0 {
			return err
		}
		ids := make([]uuid.UUID, 0, len(pending))
		for _, m := range pending {
			ids = append(ids, m.ID)
		}
		affected, err = messages.BulkUpdate(ctx, ids, map[string]any{"is_read": true}, unread)
		return err
	})
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

// GetAdminConversations lists every account that has a thread with the
// calling admin, most recent thread first.
func GetAdminConversations(ctx context.Context) ([]ChatConversation, error) {
	c, err := requireAdmin(ctx, "list chat conversations")
	if err != nil {
		return nil, err
	}
	messages, err := readRepo[ChatMessage]().Find(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("(sender_id = ? OR receiver_id = ?)", c.Id, c.Id)
	}, newestSentFirst)
	if err != nil {
		return nil, err
	}

	byAccount := make(map[uuid.UUID]*ChatConversation)
	order := make([]uuid.UUID, 0)
	for _, m := range messages {
		other := m.SenderId
		if other == c.Id {
			other = m.ReceiverId
		}
		conv, ok := byAccount[other]
		if !ok {
			conv = &ChatConversation{AccountId: other, LastMessage: m.Message, LastMessageTime: m.SentAt}
			byAccount[other] = conv
			order = append(order, other)
		}
		if m.ReceiverId == c.Id && !m.IsRead {
			conv.UnreadCount++
		}
	}
	if len(order) == 0 {
		return []ChatConversation{}, nil
	}

	accounts, err := readRepo[Account]().Find(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("id IN ?", order)
	})
	if err != nil {
		return nil, err
	}
	for _, a := range accounts {
		byAccount[a.ID].FullName = a.FullName
		byAccount[a.ID].Role = a.Role
	}

	out := make([]ChatConversation, 0, len(order))
	for _, id := range order {
		if conv := byAccount[id]; conv.Role != "" {
			out = append(out, *conv)
		}
	}
	return out, nil
}

func withSenders(ctx context.Context, page *repository.Page[ChatMessage]) (*repository.Page[ChatMessageResponse], error) {
	ids := make([]uuid.UUID, 0, 2)
	for _, m := range page.Items {
		if !slices.Contains(ids, m.SenderId) {
			ids = append(ids, m.SenderId)
		}
	}
	senders := make(map[uuid.UUID]Account, len(ids))
	if len(ids) > 0 {
		accounts, err := readRepo[Account]().Find(ctx, func(db *gorm.DB) *gorm.DB {
			return db.Unscoped().Where("id IN ?", ids)
		})
		if err != nil {
			return nil, err
		}
		for _, a := range accounts {
			senders[a.ID] = a
		}
	}
	return repository.MapPage(page, func(m *ChatMessage) ChatMessageResponse {
		sender := senders[m.SenderId]
		return ChatMessageResponse{ChatMessage: *m, SenderName: sender.FullName, SenderRole: sender.Role}
	}), nil
}
