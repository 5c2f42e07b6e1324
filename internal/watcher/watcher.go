package watcher

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/solana-pool-sniper/internal/config"
)

// Handler processes one admitted pool-init event. It runs on its own
// goroutine with the gate permit already held.
type Handler func(ctx context.Context, signature string)

// Watcher holds a live log subscription on the pool program and dispatches
// pool-init events through the gate. It reconnects forever with a fixed
// delay; only ctx cancellation stops it.
type Watcher struct {
	cfg     config.PoolConfig
	gate    *Gate
	handler Handler
	logger  *logrus.Logger

	dropped uint64
}

func New(cfg config.PoolConfig, gate *Gate, handler Handler, logger *logrus.Logger) *Watcher {
	if logger == nil {
		logger = logrus.New()
	}
	return &Watcher{
		cfg:     cfg,
		gate:    gate,
		handler: handler,
		logger:  logger,
	}
}

type logsNotification struct {
	Method string `json:"method"`
	Params struct {
		Result struct {
			Value struct {
				Signature string      `json:"signature"`
				Err       interface{} `json:"err"`
				Logs      []string    `json:"logs"`
			} `json:"value"`
		} `json:"result"`
	} `json:"params"`
}

// Run connects, subscribes and reads until ctx is cancelled. Every exit of
// the read loop other than cancellation leads to a reconnect attempt after
// the configured delay.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		if err := w.session(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.WithError(err).Warn("websocket session ended, reconnecting")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.cfg.ReconnectDelay):
		}
	}
}

func (w *Watcher) session(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, w.cfg.WSSURI, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	subscribe := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "logsSubscribe",
		"params": []interface{}{
			map[string]interface{}{
				"mentions": []string{w.cfg.ProgramID},
			},
			map[string]interface{}{
				"commitment": "processed",
			},
		},
	}
	if err := conn.WriteJSON(subscribe); err != nil {
		return err
	}

	w.logger.WithField("program", w.cfg.ProgramID).Info("subscribed to pool program logs")

	// Close the connection when ctx is cancelled so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		w.handleMessage(ctx, raw)
	}
}

func (w *Watcher) handleMessage(ctx context.Context, raw []byte) {
	var note logsNotification
	if err := json.Unmarshal(raw, &note); err != nil {
		return
	}
	if note.Method != "logsNotification" {
		return
	}

	value := note.Params.Result.Value
	if value.Err != nil || value.Signature == "" {
		return
	}
	if !containsMarker(value.Logs, w.cfg.InitMarker) {
		return
	}

	if !w.gate.TryAcquire() {
		w.dropped++
		w.logger.WithFields(logrus.Fields{
			"signature": value.Signature,
			"dropped":   w.dropped,
		}).Warn("pipeline at capacity, dropping pool event")
		return
	}

	w.logger.WithField("signature", value.Signature).Info("new pool detected")

	go func(sig string) {
		defer w.gate.Release()
		w.handler(ctx, sig)
	}(value.Signature)
}

func containsMarker(logs []string, marker string) bool {
	for _, line := range logs {
		if strings.Contains(line, marker) {
			return true
		}
	}
	return false
}
