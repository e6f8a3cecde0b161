package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radieske/pix-webhook-hub/pkg/contracts/events"
)

const writeWait = 5 * time.Second

// client serializa as escritas numa conexão; gorilla não aceita writers concorrentes
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

// Hub mantém as conexões do feed ao vivo de webhooks
// subs: paymentId (ou "*") -> conjunto de clientes inscritos
type Hub struct {
	log      *zap.Logger
	upgrader websocket.Upgrader

	mu   sync.RWMutex
	subs map[string]map[*client]struct{}
}

// NewHub cria o hub com a política de origem informada (nil aceita qualquer origem)
func NewHub(log *zap.Logger, allowOrigin func(r *http.Request) bool) *Hub {
	if allowOrigin == nil {
		allowOrigin = func(*http.Request) bool { return true }
	}
	return &Hub{
		log:      log,
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		subs:     make(map[string]map[*client]struct{}),
	}
}

// HandleWS gerencia o ciclo de vida de uma conexão
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	c := &client{conn: conn}
	for {
		var msg ClientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		switch msg.Type {
		case "subscribe":
			if msg.PaymentID == "" {
				continue
			}
			h.mu.Lock()
			if _, ok := h.subs[msg.PaymentID]; !ok {
				h.subs[msg.PaymentID] = make(map[*client]struct{})
			}
			h.subs[msg.PaymentID][c] = struct{}{}
			h.mu.Unlock()
			h.ack(c, "subscribed", msg.PaymentID)
		case "unsubscribe":
			h.mu.Lock()
			h.drop(msg.PaymentID, c)
			h.mu.Unlock()
			h.ack(c, "unsubscribed", msg.PaymentID)
		case "ping":
			h.ack(c, "pong", "")
		}
	}

	h.mu.Lock()
	for key := range h.subs {
		h.drop(key, c)
	}
	h.mu.Unlock()
}

// drop exige h.mu travado
func (h *Hub) drop(key string, c *client) {
	if set, ok := h.subs[key]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, key)
		}
	}
}

func (h *Hub) ack(c *client, typ, paymentID string) {
	b, _ := json.Marshal(map[string]string{"type": typ, "paymentId": paymentID})
	_ = c.write(b)
}

// Broadcast envia o webhook processado aos inscritos no paymentId e no curinga
func (h *Hub) Broadcast(ev events.WebhookProcessed) {
	h.mu.RLock()
	targets := make(map[*client]struct{})
	for c := range h.subs[ev.PaymentID] {
		targets[c] = struct{}{}
	}
	for c := range h.subs[Wildcard] {
		targets[c] = struct{}{}
	}
	h.mu.RUnlock()
	if len(targets) == 0 {
		return
	}

	b, err := json.Marshal(map[string]any{"type": "webhook", "data": ev})
	if err != nil {
		h.log.Warn("ws marshal", zap.Error(err))
		return
	}
	for c := range targets {
		if err := c.write(b); err != nil {
			h.log.Debug("ws write", zap.String("payment_id", ev.PaymentID), zap.Error(err))
		}
	}
}

// Subscribers retorna quantos clientes estão inscritos na chave
func (h *Hub) Subscribers(key string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[key])
}

// Listener adapta o hub como handler do bus (entrega local, sem Redis)
// Confirmações duplicadas não são reenviadas aos dashboards
func (h *Hub) Listener() func(context.Context, events.WebhookProcessed) error {
	return func(_ context.Context, ev events.WebhookProcessed) error {
		if ev.Duplicate() {
			return nil
		}
		h.Broadcast(ev)
		return nil
	}
}
