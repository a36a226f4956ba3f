package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nyumbalink/property_chat/models"
	"gorm.io/gorm"
)

var (
	ErrSelfConversation     = errors.New("cannot start a conversation with yourself")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageNotFound      = errors.New("message not found")
	ErrNotParticipant       = errors.New("user is not a participant in this conversation")
	ErrNotSender            = errors.New("user is not the sender of this message")
	ErrEmptyContent         = errors.New("message content cannot be empty")
)

// ConversationService owns the unread-count and last-message
// bookkeeping for conversations. Both the websocket path and the HTTP
// handlers go through it, so the counter logic exists exactly once.
type ConversationService struct {
	db *gorm.DB
}

func NewConversationService(db *gorm.DB) *ConversationService {
	return &ConversationService{db: db}
}

// FindOrCreate returns the conversation between userA and userB for
// the given property, creating it if absent. The pair is unordered, so
// both slot assignments are matched. The bool reports whether a new
// conversation was created.
func (s *ConversationService) FindOrCreate(ctx context.Context, userA, userB uuid.UUID, propertyID *uuid.UUID) (*models.Conversation, bool, error) {
	if userA == userB {
		return nil, false, ErrSelfConversation
	}

	var conv models.Conversation
	q := s.db.WithContext(ctx).
		Where("(user1_id = ? AND user2_id = ?) OR (user1_id = ? AND user2_id = ?)", userA, userB, userB, userA)
	if propertyID != nil {
		q = q.Where("property_id = ?", *propertyID)
	} else {
		q = q.Where("property_id IS NULL")
	}

	err := q.First(&conv).Error
	if err == nil {
		return &conv, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	conv = models.Conversation{
		ID:         uuid.New(),
		User1ID:    userA,
		User2ID:    userB,
		PropertyID: propertyID,
	}
	if err := s.db.WithContext(ctx).Create(&conv).Error; err != nil {
		return nil, false, err
	}
	return &conv, true, nil
}

func (s *ConversationService) Get(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	var conv models.Conversation
	if err := s.db.WithContext(ctx).First(&conv, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	return &conv, nil
}

// RecordNewMessage persists a message and applies the aggregate
// updates in one transaction: last_message_text, updated_at, and a
// relative +1 on the recipient's unread counter. The returned
// conversation reflects the update.
func (s *ConversationService) RecordNewMessage(ctx context.Context, conversationID, senderID uuid.UUID, content string) (*models.Message, *models.Conversation, error) {
	if strings.TrimSpace(content) == "" {
		return nil, nil, ErrEmptyContent
	}

	conv, err := s.Get(ctx, conversationID)
	if err != nil {
		return nil, nil, err
	}
	if !conv.HasParticipant(senderID) {
		return nil, nil, ErrNotParticipant
	}

	msg := &models.Message{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		SenderID:       senderID,
		Content:        content,
	}

	unreadColumn := "user2_unread_count"
	if senderID == conv.User2ID {
		unreadColumn = "user1_unread_count"
	}

	now := time.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		// The increment stays relative so a concurrent mark-as-read
		// cannot overwrite it.
		return tx.Model(&models.Conversation{}).
			Where("id = ?", conv.ID).
			UpdateColumns(map[string]interface{}{
				"last_message_text": content,
				"updated_at":        now,
				unreadColumn:        gorm.Expr(unreadColumn + " + 1"),
			}).Error
	})
	if err != nil {
		log.Printf("Failed to record message in conversation %s from sender %s: %v", conversationID, senderID, err)
		return nil, nil, err
	}

	conv.LastMessageText = content
	conv.UpdatedAt = now
	if senderID == conv.User1ID {
		conv.User2UnreadCount++
	} else {
		conv.User1UnreadCount++
	}
	return msg, conv, nil
}

// MarkRead zeroes the reader's unread counter. The other participant's
// counter and the conversation's updated_at are untouched.
func (s *ConversationService) MarkRead(ctx context.Context, conversationID, readerID uuid.UUID) error {
	conv, err := s.Get(ctx, conversationID)
	if err != nil {
		return err
	}
	return s.MarkReadConversation(ctx, conv, readerID)
}

// MarkReadConversation is MarkRead for a conversation the caller has
// already loaded, so reading a thread doesn't fetch it twice.
func (s *ConversationService) MarkReadConversation(ctx context.Context, conv *models.Conversation, readerID uuid.UUID) error {
	if !conv.HasParticipant(readerID) {
		return ErrNotParticipant
	}

	column := "user1_unread_count"
	if readerID == conv.User2ID {
		column = "user2_unread_count"
	}
	return s.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ?", conv.ID).
		UpdateColumn(column, 0).Error
}

// ListForUser returns the user's conversations newest-activity first.
func (s *ConversationService) ListForUser(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]models.Conversation, error) {
	page, pageSize = normalizePage(page, pageSize, 20)

	var convs []models.Conversation
	err := s.db.WithContext(ctx).
		Where("user1_id = ? OR user2_id = ?", userID, userID).
		Order("updated_at desc").
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		Find(&convs).Error
	return convs, err
}

// Messages returns a conversation's messages oldest first. Participant
// checks are the caller's job.
func (s *ConversationService) Messages(ctx context.Context, conversationID uuid.UUID, page, pageSize int) ([]models.Message, error) {
	page, pageSize = normalizePage(page, pageSize, 50)

	var msgs []models.Message
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at asc").
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		Find(&msgs).Error
	return msgs, err
}

// Delete removes a conversation and all of its messages. Only a
// participant may delete.
func (s *ConversationService) Delete(ctx context.Context, conversationID, requesterID uuid.UUID) error {
	conv, err := s.Get(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(requesterID) {
		return ErrNotParticipant
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conversation_id = ?", conv.ID).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Conversation{}, "id = ?", conv.ID).Error
	})
}

// DeleteMessage removes a single message. Only its sender may delete
// it. The conversation's denormalized last-message text is left as is.
func (s *ConversationService) DeleteMessage(ctx context.Context, messageID, requesterID uuid.UUID) error {
	var msg models.Message
	if err := s.db.WithContext(ctx).First(&msg, "id = ?", messageID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMessageNotFound
		}
		return err
	}
	if msg.SenderID != requesterID {
		return ErrNotSender
	}
	return s.db.WithContext(ctx).Delete(&models.Message{}, "id = ?", messageID).Error
}

func normalizePage(page, pageSize, defaultSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 200 {
		pageSize = defaultSize
	}
	return page, pageSize
}
