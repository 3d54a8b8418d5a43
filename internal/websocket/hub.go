package chatws

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/Construye-bit/ehc-gym-repo-sub003/internal/services"
	websocket "github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"
)

const (
	TypeMessage        = "message"
	TypeQuotaExhausted = "quota_exhausted"
	TypeError          = "error"

	sendTimeout = 10 * time.Second
)

type Hub struct {
	clients    map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message
	direct     chan directFrame
	done       chan struct{}
	log        *zap.Logger
}

// directFrame is addressed to one socket rather than to a user.
type directFrame struct {
	client  *Client
	payload []byte
}

type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID string
	send   chan []byte
}

type sender interface {
	SendMessage(
		ctx context.Context,
		actorID int64,
		role string,
		conversationID int64,
		content string,
	) (*services.ChatDelivery, error)
}

type Message struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id,omitempty"`
	SenderID       string `json:"sender_id,omitempty"`
	RecipientID    string `json:"recipient_id,omitempty"`
	Content        string `json:"content,omitempty"`
	Code           string `json:"code,omitempty"`
	Remaining      *int   `json:"remaining,omitempty"`
	Timestamp      string `json:"timestamp"`
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, 64),
		direct:     make(chan directFrame, 64),
		done:       make(chan struct{}),
		log:        log,
	}
}

func NewClient(hub *Hub, conn *websocket.Conn, userID string) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		userID: userID,
		send:   make(chan []byte, 32),
	}
}

// Run owns the client map and every client send channel until ctx is
// cancelled. Only this goroutine writes to or closes a send channel.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			for userID, set := range h.clients {
				for client := range set {
					close(client.send)
				}
				delete(h.clients, userID)
			}
			return
		case client := <-h.register:
			set, ok := h.clients[client.userID]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[client.userID] = set
			}
			set[client] = struct{}{}
		case client := <-h.unregister:
			set, ok := h.clients[client.userID]
			if !ok {
				continue
			}
			if _, exists := set[client]; exists {
				delete(set, client)
				close(client.send)
			}
			if len(set) == 0 {
				delete(h.clients, client.userID)
			}
		case message := <-h.broadcast:
			h.deliver(message)
		case frame := <-h.direct:
			h.sendToClient(frame.client, frame.payload)
		}
	}
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// NotifyDelivery pushes a stored message to both participants.
func (h *Hub) NotifyDelivery(delivery *services.ChatDelivery) {
	if delivery == nil || delivery.Message == nil {
		return
	}
	h.enqueue(&Message{
		Type:           TypeMessage,
		ConversationID: strconv.FormatInt(delivery.Message.ConversationID, 10),
		SenderID:       strconv.FormatInt(delivery.Message.SenderID, 10),
		RecipientID:    strconv.FormatInt(delivery.RecipientID, 10),
		Content:        delivery.Message.Content,
		Remaining:      delivery.Decision.Remaining,
		Timestamp:      services.FormatChatTimestamp(delivery.Message.CreatedAt),
	})
}

// NotifyQuotaExhausted tells the client that the free messages for the
// conversation are used up.
func (h *Hub) NotifyQuotaExhausted(clientID int64, conversationID int64) {
	zero := 0
	h.enqueue(&Message{
		Type:           TypeQuotaExhausted,
		ConversationID: strconv.FormatInt(conversationID, 10),
		SenderID:       strconv.FormatInt(clientID, 10),
		Code:           services.ReasonQuotaExhausted,
		Remaining:      &zero,
		Timestamp:      services.FormatChatTimestamp(time.Now()),
	})
}

func (h *Hub) enqueue(message *Message) {
	select {
	case h.broadcast <- message:
	default:
		h.log.Warn("chat hub broadcast queue full, dropping event",
			zap.String("type", message.Type),
			zap.String("conversation_id", message.ConversationID),
		)
	}
}

func (h *Hub) deliver(message *Message) {
	encoded, err := json.Marshal(message)
	if err != nil {
		h.log.Error("chat hub encode message", zap.Error(err))
		return
	}

	h.sendToUser(message.SenderID, encoded)
	if message.RecipientID != "" && message.RecipientID != message.SenderID {
		h.sendToUser(message.RecipientID, encoded)
	}
}

func (h *Hub) sendToUser(userID string, payload []byte) {
	set, ok := h.clients[userID]
	if !ok {
		return
	}

	for client := range set {
		select {
		case client.send <- payload:
		default:
			delete(set, client)
			close(client.send)
		}
	}
	if len(set) == 0 {
		delete(h.clients, userID)
	}
}

// sendToClient drops frames for sockets that are already gone.
func (h *Hub) sendToClient(client *Client, payload []byte) {
	set, ok := h.clients[client.userID]
	if !ok {
		return
	}
	if _, registered := set[client]; !registered {
		return
	}

	select {
	case client.send <- payload:
	default:
		delete(set, client)
		close(client.send)
		if len(set) == 0 {
			delete(h.clients, client.userID)
		}
	}
}

func (c *Client) ReadPump(service sender, role string) {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	actorID, err := strconv.ParseInt(c.userID, 10, 64)
	if err != nil {
		c.writeError("invalid user", "")
		return
	}

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var incoming struct {
			Type           string `json:"type"`
			ConversationID string `json:"conversation_id"`
			Content        string `json:"content"`
		}
		if err := json.Unmarshal(payload, &incoming); err != nil {
			c.writeError("invalid message payload", "")
			continue
		}
		if incoming.Type != TypeMessage {
			c.writeError("unsupported message type", "")
			continue
		}

		conversationID, err := strconv.ParseInt(incoming.ConversationID, 10, 64)
		if err != nil || conversationID <= 0 {
			c.writeError("invalid conversation id", "")
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		delivery, err := service.SendMessage(ctx, actorID, role, conversationID, incoming.Content)
		cancel()
		if err != nil {
			c.handleSendError(err, actorID, conversationID)
			continue
		}

		c.hub.NotifyDelivery(delivery)
	}
}

func (c *Client) handleSendError(err error, actorID int64, conversationID int64) {
	switch {
	case errors.Is(err, services.ErrQuotaExhausted):
		c.hub.NotifyQuotaExhausted(actorID, conversationID)
	case errors.Is(err, services.ErrConversationBlocked):
		c.writeError("conversation is blocked", services.ReasonConversationBlocked)
	case errors.Is(err, services.ErrForbidden):
		c.writeError("forbidden", "")
	case errors.Is(err, services.ErrNotFound):
		c.writeError("conversation not found", "")
	case errors.Is(err, services.ErrInvalidInput):
		c.writeError("invalid message", "")
	default:
		c.hub.log.Error("websocket send failed",
			zap.Int64("user_id", actorID),
			zap.Int64("conversation_id", conversationID),
			zap.Error(err),
		)
		c.writeError("failed to send message", "")
	}
}

func (c *Client) WritePump() {
	defer func() {
		_ = c.conn.Close()
	}()

	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

func (c *Client) writeError(message string, code string) {
	payload, err := json.Marshal(Message{
		Type:      TypeError,
		Content:   message,
		Code:      code,
		Timestamp: services.FormatChatTimestamp(time.Now()),
	})
	if err != nil {
		return
	}
	select {
	case c.hub.direct <- directFrame{client: c, payload: payload}:
	case <-c.hub.done:
	default:
		c.hub.log.Warn("chat hub direct queue full, dropping error frame",
			zap.String("user_id", c.userID),
		)
	}
}
