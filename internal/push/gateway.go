package push

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/open-liontechsolution/tradingtool/internal/infrastructure"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Gateway fans backtest completion events out to websocket clients. A client
// subscribes to a single run id or to "*" for every completion; events
// arrive from NATS on backtest.completed.<id>.
type Gateway struct {
	logger        *zap.Logger
	js            nats.JetStreamContext
	subscriptions map[string]map[*client]bool // run id (or "*") -> clients
	natsSubs      map[string]*nats.Subscription
	mu            sync.RWMutex
}

func NewGateway(js nats.JetStreamContext, logger *zap.Logger) *Gateway {
	return &Gateway{
		logger:        logger,
		js:            js,
		subscriptions: make(map[string]map[*client]bool),
		natsSubs:      make(map[string]*nats.Subscription),
	}
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Error("failed to upgrade websocket", zap.Error(err))
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, 256),
	}
	infrastructure.WSConnections.Inc()

	go g.writePump(c)
	g.readPump(c)
}

func (g *Gateway) readPump(c *client) {
	defer func() {
		g.mu.Lock()
		for runID, clients := range g.subscriptions {
			delete(clients, c)
			g.dropTopicLocked(runID)
		}
		g.mu.Unlock()
		infrastructure.WSConnections.Dec()
		c.conn.Close()
	}()

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			break
		}

		var req struct {
			Action string `json:"action"` // "subscribe", "unsubscribe"
			RunID  string `json:"run_id"` // uuid or "*"
		}
		if err := json.Unmarshal(message, &req); err != nil || req.RunID == "" {
			continue
		}

		g.mu.Lock()
		switch req.Action {
		case "subscribe":
			if g.subscriptions[req.RunID] == nil {
				g.subscriptions[req.RunID] = make(map[*client]bool)
				if err := g.subscribeToNATS(req.RunID); err != nil {
					g.logger.Error("failed to subscribe to NATS", zap.String("run_id", req.RunID), zap.Error(err))
				}
			}
			g.subscriptions[req.RunID][c] = true
		case "unsubscribe":
			if clients, ok := g.subscriptions[req.RunID]; ok {
				delete(clients, c)
				g.dropTopicLocked(req.RunID)
			}
		}
		g.mu.Unlock()
	}
}

// dropTopicLocked tears down the NATS subscription once the last client for
// a run id is gone. Callers hold g.mu.
func (g *Gateway) dropTopicLocked(runID string) {
	if clients, ok := g.subscriptions[runID]; ok && len(clients) == 0 {
		if sub, ok := g.natsSubs[runID]; ok {
			sub.Unsubscribe()
			delete(g.natsSubs, runID)
		}
		delete(g.subscriptions, runID)
	}
}

func (g *Gateway) writePump(c *client) {
	defer c.conn.Close()
	for {
		message, ok := <-c.send
		if !ok {
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}

func (g *Gateway) subscribeToNATS(runID string) error {
	subject := infrastructure.SubjectBacktestCompleted + "." + runID
	sub, err := g.js.Subscribe(subject, func(msg *nats.Msg) {
		g.mu.RLock()
		for c := range g.subscriptions[runID] {
			select {
			case c.send <- msg.Data:
			default:
				// Slow consumer, drop rather than block the pump.
			}
		}
		g.mu.RUnlock()
		msg.Ack()
	}, nats.ManualAck())
	if err != nil {
		return err
	}

	g.natsSubs[runID] = sub
	g.logger.Info("subscribed to completion events", zap.String("run_id", runID))
	return nil
}
