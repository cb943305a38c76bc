package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/go-orz/toolkit/syncx"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 256
)

// Client 一条站内通知连接
type Client struct {
	UserID  string
	Conn    *websocket.Conn
	Send    chan []byte
	Manager *Manager

	done     chan struct{}
	stopOnce sync.Once
}

func NewClient(userID string, conn *websocket.Conn, manager *Manager) *Client {
	return &Client{
		UserID:  userID,
		Conn:    conn,
		Send:    make(chan []byte, sendBufferSize),
		Manager: manager,
		done:    make(chan struct{}),
	}
}

// stop 通知读写泵退出
// Send 通道永远不关闭，并发中的推送最多写进废弃缓冲，不会写到已关闭通道
func (c *Client) stop() {
	c.stopOnce.Do(func() {
		close(c.done)
	})
}

// Manager 站内通知连接管理器
// 每个用户至多保留一条活跃连接，后建立的连接会顶掉旧连接
type Manager struct {
	logger  *zap.Logger
	clients *syncx.SafeMap[string, *Client]
}

func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		logger:  logger,
		clients: syncx.NewSafeMap[string, *Client](),
	}
}

// Register 注册客户端连接
// 同一用户的旧连接只发停止信号，连接本身由旧连接的 WritePump 负责关闭
func (m *Manager) Register(client *Client) {
	if old, ok := m.clients.Get(client.UserID); ok && old != client {
		old.stop()
	}
	m.clients.Set(client.UserID, client)
	m.logger.Debug("websocket客户端已注册", zap.String("userId", client.UserID))
}

// Unregister 注销客户端连接
func (m *Manager) Unregister(client *Client) {
	if current, ok := m.clients.Get(client.UserID); ok && current == client {
		m.clients.Delete(client.UserID)
	}
	client.stop()
	m.logger.Debug("websocket客户端已注销", zap.String("userId", client.UserID))
}

// SendToUser 向指定用户推送消息
// 用户不在线、连接正在关闭或发送缓冲已满时返回 false
func (m *Manager) SendToUser(userID string, payload []byte) bool {
	client, ok := m.clients.Get(userID)
	if !ok {
		return false
	}
	select {
	case <-client.done:
		return false
	case client.Send <- payload:
		return true
	default:
		m.logger.Warn("websocket发送缓冲已满，丢弃消息", zap.String("userId", userID))
		return false
	}
}

// IsOnline 用户是否有活跃连接
func (m *Manager) IsOnline(userID string) bool {
	_, ok := m.clients.Get(userID)
	return ok
}

// WritePump 将 Send 通道中的消息写入连接，并周期性发送 ping
// 连接的关闭统一发生在这里
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case message := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ReadPump 读取并丢弃客户端消息，用于感知连接关闭
func (c *Client) ReadPump(ctx context.Context) {
	defer c.Manager.Unregister(c)

	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		default:
		}
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			return
		}
	}
}
