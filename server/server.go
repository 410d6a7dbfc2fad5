// Package server exposes the matching engine over HTTP and WebSocket. All
// boundary validation the engine itself doesn't perform — symbol matching,
// tick size, positive quantity — happens here, before an order ever reaches
// the book's mutex.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"limitless/engine"
)

// Recorder persists executed trades. Satisfied by *journal.Journal; a nil
// implementation is fine since journal.Journal's methods tolerate nil.
type Recorder interface {
	Record(symbol string, trades engine.Trades)
}

// Publisher caches book snapshots. Satisfied by *quote.Cache.
type Publisher interface {
	PublishLevels(symbol string, infos engine.OrderbookLevelInfos)
}

type Server struct {
	book       *engine.Orderbook
	symbol     string
	tickSize   int64
	recorder   Recorder
	publisher  Publisher
	tradeHub   *hub[engine.Trade]
	bookHub    *hub[engine.OrderbookLevelInfos]
	upgrader   websocket.Upgrader
	authToken  string
	corsOrigin string
}

type Config struct {
	Symbol     string
	TickSize   int64
	AuthToken  string
	CORSOrigin string
}

func New(book *engine.Orderbook, cfg Config, recorder Recorder, publisher Publisher) *Server {
	if cfg.TickSize <= 0 {
		cfg.TickSize = 1
	}
	s := &Server{
		book:       book,
		symbol:     cfg.Symbol,
		tickSize:   cfg.TickSize,
		recorder:   recorder,
		publisher:  publisher,
		tradeHub:   newHub[engine.Trade](),
		bookHub:    newHub[engine.OrderbookLevelInfos](),
		upgrader:   websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		authToken:  cfg.AuthToken,
		corsOrigin: cfg.CORSOrigin,
	}
	return s
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/orders", s.withCORS(s.withAuth(http.HandlerFunc(s.handleOrder))))
	mux.Handle("/orders/cancel", s.withCORS(s.withAuth(http.HandlerFunc(s.handleCancel))))
	mux.Handle("/orders/modify", s.withCORS(s.withAuth(http.HandlerFunc(s.handleModify))))
	mux.Handle("/book", s.withCORS(s.withAuth(http.HandlerFunc(s.handleSnapshot))))
	mux.Handle("/ws/trades", s.withCORS(s.withAuth(http.HandlerFunc(s.handleTradeStream))))
	mux.Handle("/ws/book", s.withCORS(s.withAuth(http.HandlerFunc(s.handleBookStream))))
	return mux
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.corsOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.authToken == "" {
			next.ServeHTTP(w, r)
			return
		}

		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		if token != s.authToken {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte("missing or invalid token"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

type orderRequest struct {
	ID       string `json:"id"`
	Symbol   string `json:"symbol"`
	Side     string `json:"side"`
	Type     string `json:"type"`
	Price    int64  `json:"price"`
	Quantity int64  `json:"quantity"`
}

type cancelRequest struct {
	ID string `json:"id"`
}

type modifyRequest struct {
	ID       string `json:"id"`
	Side     string `json:"side"`
	Price    int64  `json:"price"`
	Quantity int64  `json:"quantity"`
}

type orderResponse struct {
	ID     string        `json:"id"`
	Trades engine.Trades `json:"trades"`
}

func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid payload: %w", err))
		return
	}

	order, err := s.buildOrder(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	trades := s.book.AddOrder(order)
	s.publish(trades)

	writeJSON(w, http.StatusAccepted, orderResponse{ID: order.ID, Trades: trades})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid payload: %w", err))
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, errors.New("id is required"))
		return
	}

	s.book.CancelOrder(req.ID)
	s.publishLevels()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (s *Server) handleModify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req modifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid payload: %w", err))
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, errors.New("id is required"))
		return
	}
	if req.Quantity <= 0 {
		writeError(w, http.StatusBadRequest, errors.New("quantity must be positive"))
		return
	}
	if req.Price%s.tickSize != 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("price %d is not a multiple of tick size %d", req.Price, s.tickSize))
		return
	}

	side, err := parseSide(req.Side)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	trades := s.book.ModifyOrder(engine.OrderModify{ID: req.ID, Side: side, Price: req.Price, Quantity: req.Quantity})
	s.publish(trades)

	writeJSON(w, http.StatusOK, orderResponse{ID: req.ID, Trades: trades})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	infos := s.book.GetLevelInfos()
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) handleTradeStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sub := s.tradeHub.Subscribe(32)
	defer s.tradeHub.Unsubscribe(sub)

	for trade := range sub.ch {
		msg := outboundMessage{Type: "trade", Data: trade}
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

func (s *Server) handleBookStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sub := s.bookHub.Subscribe(32)
	defer s.bookHub.Unsubscribe(sub)

	for infos := range sub.ch {
		msg := outboundMessage{Type: "book", Data: infos}
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

type outboundMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// publish fans a batch of trades out to subscribers, records them in the
// journal, and refreshes the quote cache. The engine has no event stream of
// its own (AddOrder/ModifyOrder return trades synchronously), so the server
// assembles the push feed itself.
func (s *Server) publish(trades engine.Trades) {
	for _, t := range trades {
		s.tradeHub.Broadcast(t)
	}
	if len(trades) > 0 && s.recorder != nil {
		go s.recorder.Record(s.symbol, trades)
	}
	s.publishLevels()
}

func (s *Server) publishLevels() {
	infos := s.book.GetLevelInfos()
	s.bookHub.Broadcast(infos)
	if s.publisher != nil {
		go s.publisher.PublishLevels(s.symbol, infos)
	}
}

func (s *Server) buildOrder(req orderRequest) (*engine.Order, error) {
	if req.Symbol != "" && req.Symbol != s.symbol {
		return nil, fmt.Errorf("symbol %s does not trade on this book (want %s)", req.Symbol, s.symbol)
	}
	if req.Quantity <= 0 {
		return nil, errors.New("quantity must be positive")
	}

	side, err := parseSide(req.Side)
	if err != nil {
		return nil, err
	}
	orderType, err := parseOrderType(req.Type)
	if err != nil {
		return nil, err
	}
	if orderType != engine.Market && req.Price <= 0 {
		return nil, errors.New("price must be positive")
	}
	if orderType != engine.Market && req.Price%s.tickSize != 0 {
		return nil, fmt.Errorf("price %d is not a multiple of tick size %d", req.Price, s.tickSize)
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}

	return engine.NewOrder(id, side, orderType, req.Price, req.Quantity), nil
}

func parseSide(value string) (engine.Side, error) {
	switch strings.ToLower(value) {
	case "buy", "bid", "b":
		return engine.Buy, nil
	case "sell", "ask", "s":
		return engine.Sell, nil
	default:
		return 0, fmt.Errorf("unknown side %q", value)
	}
}

func parseOrderType(value string) (engine.OrderType, error) {
	switch strings.ToLower(value) {
	case "", "limit", "gtc", "good_till_cancel":
		return engine.GoodTillCancel, nil
	case "gfd", "good_for_day":
		return engine.GoodForDay, nil
	case "fak", "fill_and_kill", "ioc":
		return engine.FillAndKill, nil
	case "fok", "fill_or_kill":
		return engine.FillOrKill, nil
	case "market", "mkt":
		return engine.Market, nil
	default:
		return 0, fmt.Errorf("unknown order type %q", value)
	}
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
