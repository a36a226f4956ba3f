package websocket

import (
	"context"
	"log"

	"github.com/google/uuid"
	"github.com/nyumbalink/property_chat/models"
)

// conversationRecorder is the slice of the conversation service the
// dispatcher needs: persist one message and apply the aggregate
// updates in a single call.
type conversationRecorder interface {
	RecordNewMessage(ctx context.Context, conversationID, senderID uuid.UUID, content string) (*models.Message, *models.Conversation, error)
}

// Dispatcher runs the send-message protocol: authorize the claimed
// sender against the presence registry, persist through the
// conversation service, then push live or enqueue for later.
type Dispatcher struct {
	hub     *Hub
	pending *PendingQueue
	store   conversationRecorder
}

func NewDispatcher(hub *Hub, pending *PendingQueue, store conversationRecorder) *Dispatcher {
	return &Dispatcher{hub: hub, pending: pending, store: store}
}

// Dispatch handles one send attempt. Every failure is terminal for
// this attempt and observable only in logs; nothing goes back to the
// sender over this channel.
func (d *Dispatcher) Dispatch(ctx context.Context, client *Client, ev InboundEvent) {
	senderID, err := uuid.Parse(ev.SenderID)
	if err != nil {
		log.Printf("Dropping message with invalid sender id %q: %v", ev.SenderID, err)
		return
	}
	chatID, err := uuid.Parse(ev.ChatID)
	if err != nil {
		log.Printf("Dropping message with invalid chat id %q: %v", ev.ChatID, err)
		return
	}

	// The claimed sender must resolve, through the presence registry,
	// to the exact connection this frame arrived on. Anything else is
	// a spoof attempt and is dropped without a reply.
	registered, ok := d.hub.Lookup(senderID)
	if !ok || registered != client || senderID != client.UserID {
		log.Printf("Dropping spoofed message: connection bound to user %s does not match claimed sender %s", client.UserID, ev.SenderID)
		return
	}

	msg, conv, err := d.store.RecordNewMessage(ctx, chatID, senderID, ev.Content)
	if err != nil {
		log.Printf("Dropping message in conversation %s from sender %s: %v", chatID, senderID, err)
		return
	}

	out := MessageEvent{
		Type:      EventGetMessage,
		ID:        msg.ID,
		ChatID:    msg.ConversationID,
		SenderID:  msg.SenderID,
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt,
	}

	recipientID := conv.OtherParticipant(senderID)
	if recipient, online := d.hub.Lookup(recipientID); online {
		if err := recipient.WriteJSON(out); err != nil {
			log.Printf("Error pushing message %s to client %s: %v", msg.ID, recipientID, err)
		}
		return
	}
	d.pending.Enqueue(recipientID, out)
}
