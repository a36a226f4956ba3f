package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"

	"github.com/go-playground/validator/v10"
	websocketcontrib "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	config "github.com/nyumbalink/property_chat/configs"
	"github.com/nyumbalink/property_chat/services"
	ws "github.com/nyumbalink/property_chat/websocket"
)

var validate = validator.New()

// MessagingHandler is the single entry surface for chat: the REST
// endpoints and the websocket lifecycle both funnel into the same
// ConversationService, so the counter logic is never duplicated.
type MessagingHandler struct {
	svc        *services.ConversationService
	hub        *ws.Hub
	pending    *ws.PendingQueue
	dispatcher *ws.Dispatcher
}

func NewMessagingHandler(svc *services.ConversationService, hub *ws.Hub, pending *ws.PendingQueue, dispatcher *ws.Dispatcher) *MessagingHandler {
	return &MessagingHandler{svc: svc, hub: hub, pending: pending, dispatcher: dispatcher}
}

func (h *MessagingHandler) GetUserConversations(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user ID"})
	}

	page, _ := strconv.Atoi(c.Query("page", "1"))
	pageSize, _ := strconv.Atoi(c.Query("page_size", "20"))

	convs, err := h.svc.ListForUser(c.Context(), userID, page, pageSize)
	if err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(convs)
}

func (h *MessagingHandler) CreateOrGetConversation(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user ID"})
	}

	type Request struct {
		RecipientID string  `json:"recipient_id" validate:"required,uuid"`
		PropertyID  *string `json:"property_id,omitempty" validate:"omitempty,uuid"`
	}
	var req Request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	recipientID, _ := uuid.Parse(req.RecipientID)
	var propertyID *uuid.UUID
	if req.PropertyID != nil {
		id, _ := uuid.Parse(*req.PropertyID)
		propertyID = &id
	}

	conv, created, err := h.svc.FindOrCreate(c.Context(), userID, recipientID, propertyID)
	if err != nil {
		return h.serviceError(c, err)
	}
	if created {
		return c.Status(fiber.StatusCreated).JSON(conv)
	}
	return c.JSON(conv)
}

// GetConversationMessages returns the thread oldest-first and marks it
// read for the requester, mirroring a client opening the chat.
func (h *MessagingHandler) GetConversationMessages(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user ID"})
	}
	conversationID, err := uuid.Parse(c.Params("conversationId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid conversation ID"})
	}

	conv, err := h.svc.Get(c.Context(), conversationID)
	if err != nil {
		return h.serviceError(c, err)
	}
	if !conv.HasParticipant(userID) {
		return h.serviceError(c, services.ErrNotParticipant)
	}

	page, _ := strconv.Atoi(c.Query("page", "1"))
	pageSize, _ := strconv.Atoi(c.Query("page_size", "50"))

	msgs, err := h.svc.Messages(c.Context(), conversationID, page, pageSize)
	if err != nil {
		return h.serviceError(c, err)
	}

	if err := h.svc.MarkReadConversation(c.Context(), conv, userID); err != nil {
		log.Printf("Failed to mark conversation %s read for user %s: %v", conversationID, userID, err)
	}

	return c.JSON(msgs)
}

// SendMessage is the synchronous counterpart of the websocket send
// path. It runs the same persist-and-update logic; the recipient's
// live push still comes only from the socket path.
func (h *MessagingHandler) SendMessage(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user ID"})
	}
	conversationID, err := uuid.Parse(c.Params("conversationId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid conversation ID"})
	}

	type Request struct {
		Content string `json:"content" validate:"required"`
	}
	var req Request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	msg, _, err := h.svc.RecordNewMessage(c.Context(), conversationID, userID, req.Content)
	if err != nil {
		return h.serviceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

func (h *MessagingHandler) MarkConversationRead(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user ID"})
	}
	conversationID, err := uuid.Parse(c.Params("conversationId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid conversation ID"})
	}

	if err := h.svc.MarkRead(c.Context(), conversationID, userID); err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(fiber.Map{"status": "success"})
}

func (h *MessagingHandler) DeleteConversation(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user ID"})
	}
	conversationID, err := uuid.Parse(c.Params("conversationId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid conversation ID"})
	}

	if err := h.svc.Delete(c.Context(), conversationID, userID); err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(fiber.Map{"status": "success"})
}

func (h *MessagingHandler) DeleteMessage(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user ID"})
	}
	messageID, err := uuid.Parse(c.Params("messageId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid message ID"})
	}

	if err := h.svc.DeleteMessage(c.Context(), messageID, userID); err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(fiber.Map{"status": "success"})
}

// ServeWs owns one connection's lifecycle: unidentified until a valid
// auth frame arrives, then registered in the hub and drained of any
// queued messages; unregistered on disconnect. Re-auth on the same
// connection is idempotent.
func (h *MessagingHandler) ServeWs(c *websocketcontrib.Conn) {
	var client *ws.Client

	defer func() {
		if client != nil {
			h.hub.Unregister(client)
		}
		c.Close()
	}()

	for {
		var ev ws.InboundEvent
		if err := c.ReadJSON(&ev); err != nil {
			if websocketcontrib.IsCloseError(err, websocketcontrib.CloseGoingAway, websocketcontrib.CloseAbnormalClosure) {
				log.Printf("WebSocket closed: %v", err)
			} else {
				log.Printf("WebSocket read error: %v", err)
			}
			return
		}

		switch ev.Type {
		case ws.EventAuth:
			userID, err := userIDFromToken(ev.Token)
			if err != nil {
				log.Printf("WebSocket auth failed: %v", err)
				// An identified connection may still be receiving
				// broadcasts, so the rejection goes through the
				// client's serialized writer.
				if client != nil {
					_ = client.WriteJSON(fiber.Map{"error": "Invalid token"})
				} else {
					_ = c.WriteJSON(fiber.Map{"error": "Invalid token"})
				}
				return
			}
			client = h.identify(client, c, userID)

		case ws.EventSendMessage:
			if client == nil {
				log.Printf("Dropping send_message from unidentified connection")
				continue
			}
			h.dispatcher.Dispatch(context.Background(), client, ev)

		default:
			log.Printf("Ignoring unknown event type %q", ev.Type)
		}
	}
}

// identify applies an auth frame to the connection's current binding.
// Re-auth as the same user is idempotent (re-register, re-drain). An
// auth frame naming a different user first releases the previous
// identity's presence entry, otherwise that user would stay "online"
// on a connection that no longer speaks for them.
func (h *MessagingHandler) identify(client *ws.Client, conn ws.Conn, userID uuid.UUID) *ws.Client {
	if client != nil && client.UserID != userID {
		h.hub.Unregister(client)
		client = nil
	}
	if client == nil {
		client = ws.NewClient(userID, conn)
	}
	h.hub.Register(client)
	h.pending.Drain(userID, func(out ws.MessageEvent) {
		if err := client.WriteJSON(out); err != nil {
			log.Printf("Error replaying queued message %s to client %s: %v", out.ID, userID, err)
		}
	})
	return client
}

func currentUserID(c *fiber.Ctx) (uuid.UUID, error) {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	raw, ok := claims["user_id"].(string)
	if !ok {
		return uuid.Nil, errors.New("missing user_id claim")
	}
	return uuid.Parse(raw)
}

func userIDFromToken(tokenString string) (uuid.UUID, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(config.Config("JWT_SECRET")), nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return uuid.Nil, errors.New("invalid token")
	}
	raw, ok := claims["user_id"].(string)
	if !ok {
		return uuid.Nil, errors.New("missing user_id claim")
	}
	return uuid.Parse(raw)
}

func (h *MessagingHandler) serviceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrConversationNotFound), errors.Is(err, services.ErrMessageNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrNotParticipant), errors.Is(err, services.ErrNotSender):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrEmptyContent), errors.Is(err, services.ErrSelfConversation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	default:
		log.Printf("Unexpected service error: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}
}
