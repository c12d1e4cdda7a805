package kalshi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/skyline-trading/weatherbot/internal/domain"
)

const (
	wsWriteWait = 10 * time.Second

	wsPongWait   = 30 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10

	wsReconnectDelay    = 2 * time.Second
	wsMaxReconnectDelay = 60 * time.Second
)

// BookHandler is called with a rebuilt orderbook after every update.
type BookHandler func(domain.OrderbookSnapshot)

// WSClient streams real-time orderbook data. It applies orderbook_delta
// messages onto the last snapshot per ticker so handlers always see a full
// book.
type WSClient struct {
	wsURL  string
	conn   *websocket.Conn
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool

	subscribedTickers []string
	cmdID             int64

	// books holds per-ticker level maps keyed by side then price.
	booksMu sync.Mutex
	books   map[string]*bookState

	handlerMu sync.RWMutex
	handlers  []BookHandler

	done chan struct{}
}

type bookState struct {
	yes map[int64]int64
	no  map[int64]int64
}

// NewWSClient creates a new Kalshi WebSocket client.
func NewWSClient(wsURL string, logger *slog.Logger) *WSClient {
	return &WSClient{
		wsURL:  wsURL,
		logger: logger.With(slog.String("component", "kalshi_ws")),
		books:  make(map[string]*bookState),
		done:   make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection and restores any tracked
// subscriptions.
func (w *WSClient) Connect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return errors.New("kalshi/ws: client is closed")
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, w.wsURL, nil)
	if err != nil {
		return fmt.Errorf("kalshi/ws: connect: %w", err)
	}

	w.conn = conn

	w.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	w.conn.SetPongHandler(func(string) error {
		w.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	go w.readLoop()
	go w.pingLoop()

	if len(w.subscribedTickers) > 0 {
		if err := w.sendSubscribe(w.subscribedTickers); err != nil {
			return fmt.Errorf("kalshi/ws: restore subscriptions: %w", err)
		}
	}

	return nil
}

// Subscribe adds orderbook subscriptions for the given market tickers.
func (w *WSClient) Subscribe(ctx context.Context, tickers []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		return errors.New("kalshi/ws: not connected")
	}

	if err := w.sendSubscribe(tickers); err != nil {
		return fmt.Errorf("kalshi/ws: subscribe: %w", err)
	}

	existing := make(map[string]struct{}, len(w.subscribedTickers))
	for _, t := range w.subscribedTickers {
		existing[t] = struct{}{}
	}
	for _, t := range tickers {
		if _, ok := existing[t]; !ok {
			w.subscribedTickers = append(w.subscribedTickers, t)
		}
	}

	return nil
}

// OnBook registers a handler invoked for every orderbook update.
func (w *WSClient) OnBook(handler BookHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.handlers = append(w.handlers, handler)
}

// Close shuts down the WebSocket connection.
func (w *WSClient) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	w.closed = true
	close(w.done)

	if w.conn != nil {
		_ = w.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		return w.conn.Close()
	}

	return nil
}

// sendSubscribe sends a subscribe command. Caller must hold w.mu.
func (w *WSClient) sendSubscribe(tickers []string) error {
	w.cmdID++

	cmd := WSSubscribeCmd{
		ID:  w.cmdID,
		Cmd: "subscribe",
		Params: WSSubscribeParams{
			Channels: []string{"orderbook_delta"},
			Tickers:  tickers,
		},
	}

	w.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))

	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal subscribe: %w", err)
	}

	return w.conn.WriteMessage(websocket.TextMessage, data)
}

func (w *WSClient) readLoop() {
	defer func() {
		w.mu.RLock()
		conn := w.conn
		w.mu.RUnlock()
		if conn != nil {
			conn.Close()
		}
	}()

	for {
		select {
		case <-w.done:
			return
		default:
		}

		w.mu.RLock()
		conn := w.conn
		w.mu.RUnlock()

		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-w.done:
				return
			default:
			}

			w.logger.Warn("read failed, reconnecting", slog.String("error", err.Error()))
			w.reconnect()
			return
		}

		w.handleMessage(message)
	}
}

func (w *WSClient) pingLoop() {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.mu.RLock()
			conn := w.conn
			w.mu.RUnlock()

			if conn == nil {
				return
			}

			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage parses a raw message, updates book state and notifies
// handlers.
func (w *WSClient) handleMessage(raw []byte) {
	var envelope WSMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return
	}

	switch envelope.Type {
	case "orderbook_snapshot":
		var snap WSOrderbookSnapshot
		if err := json.Unmarshal(envelope.Msg, &snap); err != nil {
			return
		}
		w.applySnapshot(snap)
		w.dispatch(snap.Ticker)

	case "orderbook_delta":
		var delta WSOrderbookDelta
		if err := json.Unmarshal(envelope.Msg, &delta); err != nil {
			return
		}
		if w.applyDelta(delta) {
			w.dispatch(delta.Ticker)
		}
	}
}

func (w *WSClient) applySnapshot(snap WSOrderbookSnapshot) {
	state := &bookState{
		yes: make(map[int64]int64, len(snap.Yes)),
		no:  make(map[int64]int64, len(snap.No)),
	}
	for _, l := range snap.Yes {
		state.yes[l.Price] = l.Qty
	}
	for _, l := range snap.No {
		state.no[l.Price] = l.Qty
	}

	w.booksMu.Lock()
	w.books[snap.Ticker] = state
	w.booksMu.Unlock()
}

// applyDelta mutates the tracked book. Deltas before the first snapshot are
// dropped.
func (w *WSClient) applyDelta(delta WSOrderbookDelta) bool {
	w.booksMu.Lock()
	defer w.booksMu.Unlock()

	state, ok := w.books[delta.Ticker]
	if !ok {
		return false
	}

	levels := state.yes
	if delta.Side == "no" {
		levels = state.no
	}

	levels[delta.Price] += delta.Delta
	if levels[delta.Price] <= 0 {
		delete(levels, delta.Price)
	}
	return true
}

// dispatch rebuilds the snapshot for a ticker and calls every handler.
func (w *WSClient) dispatch(ticker string) {
	w.booksMu.Lock()
	state, ok := w.books[ticker]
	if !ok {
		w.booksMu.Unlock()
		return
	}
	book := domain.OrderbookSnapshot{
		Ticker:    ticker,
		YesBids:   levelsToSorted(state.yes),
		NoBids:    levelsToSorted(state.no),
		Timestamp: time.Now(),
	}
	w.booksMu.Unlock()

	w.handlerMu.RLock()
	handlers := w.handlers
	w.handlerMu.RUnlock()

	for _, h := range handlers {
		h(book)
	}
}

func levelsToSorted(m map[int64]int64) []domain.PriceLevel {
	out := make([]domain.PriceLevel, 0, len(m))
	for p, q := range m {
		out = append(out, domain.PriceLevel{Price: p, Qty: q})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	return out
}

func (w *WSClient) reconnect() {
	delay := wsReconnectDelay

	for {
		select {
		case <-w.done:
			return
		default:
		}

		time.Sleep(delay)

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		err := w.Connect(ctx)
		cancel()

		if err == nil {
			w.logger.Info("reconnected")
			return
		}

		delay *= 2
		if delay > wsMaxReconnectDelay {
			delay = wsMaxReconnectDelay
		}
	}
}
