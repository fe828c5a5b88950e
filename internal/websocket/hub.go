// Package websocket 维护浏览器会话的实时通道。
//
// 通道把会话的通知（新邮件提示、操作结果）和剪贴板写入指令
// 推给前端。会话标识来自 tm_session cookie，与协调器使用同一
// 个键，一个会话可以有多个标签页同时在线。
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"tempmail/webclient/internal/domain"
	"tempmail/webclient/internal/inbox"
	"tempmail/webclient/internal/monitoring"
	"tempmail/webclient/internal/notify"
)

// MessageType 定义WebSocket消息类型
type MessageType string

const (
	MessageTypeNotification MessageType = "notification"
	MessageTypeNewMail      MessageType = "new_mail"
	MessageTypeCopy         MessageType = "copy"
	MessageTypePing         MessageType = "ping"
	MessageTypePong         MessageType = "pong"
	MessageTypeError        MessageType = "error"
)

// Message 定义WebSocket消息结构
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMailData 新邮件通知数据
type NewMailData struct {
	MessageID  string `json:"messageId"`
	Address    string `json:"address"`
	From       string `json:"from"`
	Subject    string `json:"subject"`
	ReceivedAt string `json:"receivedAt"`
}

// CopyData 剪贴板写入指令数据
type CopyData struct {
	Text string `json:"text"`
}

// upgraderFactory 创建带有 Origin 验证的 WebSocket 升级器
func upgraderFactory(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			for _, origin := range allowedOrigins {
				if origin == "*" {
					return true
				}
			}

			requestOrigin := r.Header.Get("Origin")
			if requestOrigin == "" {
				// 没有 Origin 视为同源请求
				return true
			}
			for _, origin := range allowedOrigins {
				if requestOrigin == origin {
					return true
				}
			}
			return false
		},
	}
}

// Client 代表一个WebSocket客户端连接
type Client struct {
	sessionID string
	conn      *websocket.Conn
	send      chan []byte
	hub       *Hub
	log       *zap.Logger
}

// Hub 管理所有WebSocket连接，按会话分组。
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	outbound   chan *sessionMessage

	log            *zap.Logger
	metrics        *monitoring.Metrics
	allowedOrigins []string
}

type sessionMessage struct {
	sessionID string
	message   *Message
}

// NewHub 创建WebSocket Hub，metrics 可为 nil。
func NewHub(allowedOrigins []string, metrics *monitoring.Metrics, log *zap.Logger) *Hub {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Hub{
		sessions:       make(map[string]map[*Client]struct{}),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		outbound:       make(chan *sessionMessage, 256),
		log:            log,
		metrics:        metrics,
		allowedOrigins: allowedOrigins,
	}
}

// Run 启动Hub
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Info("websocket hub stopped")
			h.closeAllClients()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.sessions[client.sessionID] == nil {
				h.sessions[client.sessionID] = make(map[*Client]struct{})
			}
			h.sessions[client.sessionID][client] = struct{}{}
			h.mu.Unlock()
			if h.metrics != nil {
				h.metrics.WebsocketConnections.Inc()
			}
			h.log.Debug("client registered", zap.String("session_id", client.sessionID))

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.sessions[client.sessionID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.send)
					if len(clients) == 0 {
						delete(h.sessions, client.sessionID)
					}
					if h.metrics != nil {
						h.metrics.WebsocketConnections.Dec()
					}
				}
			}
			h.mu.Unlock()
			h.log.Debug("client unregistered", zap.String("session_id", client.sessionID))

		case msg := <-h.outbound:
			h.deliver(msg.sessionID, msg.message)

		case <-ticker.C:
			h.pingAllClients()
		}
	}
}

// Send 向会话的全部在线标签页投递一条消息。
func (h *Hub) Send(sessionID string, msg *Message) {
	select {
	case h.outbound <- &sessionMessage{sessionID: sessionID, message: msg}:
	default:
		// 队列满丢弃，通知不保证必达
		h.log.Warn("hub outbound queue full, dropping message",
			zap.String("session_id", sessionID),
			zap.String("type", string(msg.Type)))
	}
}

// NotifyNewMail 向会话推送新邮件提示
func (h *Hub) NotifyNewMail(sessionID string, message *domain.Message) {
	data, err := json.Marshal(NewMailData{
		MessageID:  message.ID,
		Address:    message.TempEmail,
		From:       message.FromEmail,
		Subject:    message.Subject,
		ReceivedAt: message.ReceivedAt.Format(time.RFC3339),
	})
	if err != nil {
		h.log.Error("failed to marshal new mail data", zap.Error(err))
		return
	}

	h.Send(sessionID, &Message{
		Type:      MessageTypeNewMail,
		Data:      data,
		Timestamp: time.Now(),
	})
}

// Sink 返回把通知投递到指定会话的接收器。
func (h *Hub) Sink(sessionID string) notify.Sink {
	return &hubSink{hub: h, sessionID: sessionID}
}

type hubSink struct {
	hub       *Hub
	sessionID string
}

func (s *hubSink) Notify(n notify.Notification) {
	data, err := json.Marshal(n)
	if err != nil {
		return
	}
	s.hub.Send(s.sessionID, &Message{
		Type:      MessageTypeNotification,
		Data:      data,
		Timestamp: time.Now(),
	})
}

// Clipboard 返回通过实时通道驱动前端写剪贴板的设施。
func (h *Hub) Clipboard(sessionID string) inbox.Clipboard {
	return &hubClipboard{hub: h, sessionID: sessionID}
}

type hubClipboard struct {
	hub       *Hub
	sessionID string
}

func (c *hubClipboard) WriteText(text string) error {
	data, err := json.Marshal(CopyData{Text: text})
	if err != nil {
		return err
	}
	c.hub.Send(c.sessionID, &Message{
		Type:      MessageTypeCopy,
		Data:      data,
		Timestamp: time.Now(),
	})
	return nil
}

// SessionOnline 判断会话是否有在线连接
func (h *Hub) SessionOnline(sessionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID]) > 0
}

// deliver 把消息发给会话的全部客户端
func (h *Hub) deliver(sessionID string, msg *Message) {
	h.mu.RLock()
	clients := h.sessions[sessionID]
	h.mu.RUnlock()

	if len(clients) == 0 {
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("failed to marshal message", zap.Error(err))
		return
	}

	for client := range clients {
		select {
		case client.send <- data:
			if msg.Type == MessageTypeNotification && h.metrics != nil {
				h.metrics.NotificationsDelivered.Inc()
			}
		default:
			// 客户端阻塞，跳过
			h.log.Warn("client channel blocked, skipping",
				zap.String("session_id", sessionID))
		}
	}
}

// pingAllClients 向所有客户端发送ping
func (h *Hub) pingAllClients() {
	msg := &Message{
		Type:      MessageTypePing,
		Timestamp: time.Now(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, clients := range h.sessions {
		for client := range clients {
			select {
			case client.send <- data:
			default:
			}
		}
	}
}

// closeAllClients 关闭所有客户端连接
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, clients := range h.sessions {
		for client := range clients {
			close(client.send)
		}
	}
	h.sessions = make(map[string]map[*Client]struct{})
}

// HandleWebSocket 处理WebSocket连接
//
// sessionID 由会话中间件解析，这里只负责升级连接并接入 Hub。
func HandleWebSocket(hub *Hub, sessionID func(*gin.Context) string) gin.HandlerFunc {
	upgrader := upgraderFactory(hub.allowedOrigins)

	return func(c *gin.Context) {
		id := sessionID(c)
		if id == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "session required"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			hub.log.Error("failed to upgrade connection",
				zap.Error(err),
				zap.String("origin", c.Request.Header.Get("Origin")),
				zap.String("remote_addr", c.ClientIP()))
			return
		}

		client := &Client{
			sessionID: id,
			conn:      conn,
			send:      make(chan []byte, 256),
			hub:       hub,
			log:       hub.log,
		}

		hub.register <- client

		go client.writePump()
		go client.readPump()
	}
}

// readPump 处理客户端消息
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		var msg Message
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Error("websocket error", zap.Error(err))
			}
			break
		}

		switch msg.Type {
		case MessageTypePong:
			c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		default:
			c.log.Warn("unknown message type", zap.String("type", string(msg.Type)))
		}
	}
}

// writePump 发送消息给客户端
func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			c.conn.WriteMessage(websocket.TextMessage, message)

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
