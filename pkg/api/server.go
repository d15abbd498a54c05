package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/standardex/clob/pkg/clob"
	"github.com/standardex/clob/pkg/clob/access"
	"github.com/standardex/clob/pkg/clob/book"
	"github.com/standardex/clob/pkg/clob/engine"
	"github.com/standardex/clob/pkg/clob/events"
	"github.com/standardex/clob/pkg/clob/ledger"
	"github.com/standardex/clob/pkg/clob/registry"
)

// Server exposes the exchange over REST and WebSocket, with prometheus
// metrics on /metrics. It implements events.Listener so fills and book
// lifecycle events stream to subscribed WS clients; subscribe it on the
// event bus.
type Server struct {
	exchange *clob.Exchange
	router   *mux.Router
	hub      *Hub
	metrics  *Metrics
	promReg  *prometheus.Registry
	log      *zap.Logger
}

func NewServer(x *clob.Exchange, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	promReg := prometheus.NewRegistry()
	s := &Server{
		exchange: x,
		router:   mux.NewRouter(),
		hub:      NewHub(log),
		metrics:  NewMetrics(promReg),
		promReg:  promReg,
		log:      log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Pair endpoints
	api.HandleFunc("/pairs", s.handleGetPairs).Methods("GET")
	api.HandleFunc("/pairs", s.handleAddPair).Methods("POST")
	api.HandleFunc("/pairs/{base}/{quote}/orderbook", s.handleGetOrderbook).Methods("GET")
	api.HandleFunc("/pairs/{base}/{quote}/price", s.handleGetPrice).Methods("GET")

	// Account endpoints
	api.HandleFunc("/accounts/{address}/balances", s.handleGetBalances).Methods("GET")

	// Order endpoints
	api.HandleFunc("/orders", s.handleSubmitOrder).Methods("POST")
	api.HandleFunc("/orders/cancel", s.handleCancelOrder).Methods("POST")

	// Admin
	api.HandleFunc("/fees", s.handleSetFee).Methods("POST")

	// WebSocket stream
	s.router.HandleFunc("/ws", s.handleWebSocket)

	s.router.Handle("/metrics", promhttp.HandlerFor(s.promReg, promhttp.HandlerOpts{}))
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Router returns the configured handler, for tests and embedding.
func (s *Server) Router() http.Handler { return s.router }

// Start runs the hub and serves HTTP until the listener fails.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
	})

	s.log.Info("api server starting", zap.String("addr", addr))
	return http.ListenAndServe(addr, c.Handler(s.router))
}

// ==============================
// REST handlers
// ==============================

func (s *Server) handleGetPairs(w http.ResponseWriter, r *http.Request) {
	pairs := s.exchange.Pairs()
	out := make([]PairInfo, len(pairs))
	for i, p := range pairs {
		out[i] = PairInfo{Symbol: p.Symbol(), Base: p.Base.Hex(), Quote: p.Quote.Hex()}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAddPair(w http.ResponseWriter, r *http.Request) {
	var req AddPairRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	caller, base, quote, err := parseAddrs(req.Caller, req.Base, req.Quote)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	h, err := s.exchange.AddPair(caller, base, quote)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, PairInfo{
		Symbol: h.Pair.Symbol(),
		Base:   h.Pair.Base.Hex(),
		Quote:  h.Pair.Quote.Hex(),
	})
}

func (s *Server) handleGetOrderbook(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	base, quote, err := parsePair(vars["base"], vars["quote"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	bids, asks, err := s.exchange.Depth(base, quote)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, OrderbookSnapshot{
		Symbol:    base.Hex() + "/" + quote.Hex(),
		Bids:      toPriceLevels(bids),
		Asks:      toPriceLevels(asks),
		Timestamp: time.Now().UnixMilli(),
	})
}

func (s *Server) handleGetPrice(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	base, quote, err := parsePair(vars["base"], vars["quote"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	price, err := s.exchange.MktPrice(base, quote)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, PriceInfo{Symbol: base.Hex() + "/" + quote.Hex(), Price: price})
}

func (s *Server) handleGetBalances(w http.ResponseWriter, r *http.Request) {
	addrHex := mux.Vars(r)["address"]
	if !common.IsHexAddress(addrHex) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid address %q", addrHex))
		return
	}
	addr := common.HexToAddress(addrHex)
	balances := s.exchange.Ledger().Balances(addr)
	out := make(map[string]int64, len(balances))
	for token, amount := range balances {
		out[token.Hex()] = amount
	}
	writeJSON(w, http.StatusOK, BalancesInfo{Address: addr.Hex(), Balances: out})
}

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req SubmitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	owner, base, quote, err := parseAddrs(req.Owner, req.Base, req.Quote)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var report *engine.FillReport
	switch req.Side {
	case "bid", "buy":
		report, err = s.exchange.LimitBuy(owner, base, quote, req.Price, req.Qty)
	case "ask", "sell":
		report, err = s.exchange.LimitSell(owner, base, quote, req.Price, req.Qty)
	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid side %q", req.Side))
		return
	}
	if err != nil {
		s.metrics.OrdersRejected.Inc()
		writeError(w, statusFor(err), err)
		return
	}

	s.metrics.OrdersSubmitted.WithLabelValues(req.Side).Inc()
	s.metrics.SubmitLatency.Observe(time.Since(start).Seconds())

	resp := SubmitOrderResponse{
		OrderID:   report.OrderID,
		Filled:    report.Filled,
		Remaining: report.Remaining,
		AvgPrice:  report.AvgPrice,
		Fee:       report.Fee,
		Rested:    report.Rested,
	}
	for _, f := range report.Fills {
		resp.Fills = append(resp.Fills, FillInfo{
			TradeID: f.TradeID,
			Price:   f.Price,
			Qty:     f.Qty,
			MakerID: f.MakerID,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var req CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	caller, base, quote, err := parseAddrs(req.Caller, req.Base, req.Quote)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.exchange.Cancel(caller, base, quote, req.OrderID); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetFee(w http.ResponseWriter, r *http.Request) {
	var req SetFeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	caller, recipient, feeToken, err := parseAddrs(req.Caller, req.Recipient, req.FeeToken)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	cfg := engine.FeeConfig{Recipient: recipient, RateBps: req.RateBps, FeeToken: feeToken}
	if err := s.exchange.SetFeeConfig(caller, cfg); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ==============================
// Event stream (events.Listener)
// ==============================

func (s *Server) OnTrade(t events.Trade) {
	s.metrics.OnTrade(t)
	s.hub.BroadcastToChannel("trades:"+t.Pair, WSMessage{Type: "trade", Channel: "trades:" + t.Pair, Data: t})
	s.broadcastDepth(t.Pair)
}

func (s *Server) OnOrderAccepted(e events.OrderAccepted) {
	s.hub.BroadcastToChannel("orders:"+e.Pair, WSMessage{Type: "order_accepted", Channel: "orders:" + e.Pair, Data: e})
	s.broadcastDepth(e.Pair)
}

func (s *Server) OnOrderCancelled(e events.OrderCancelled) {
	s.metrics.OnOrderCancelled(e)
	s.hub.BroadcastToChannel("orders:"+e.Pair, WSMessage{Type: "order_cancelled", Channel: "orders:" + e.Pair, Data: e})
	s.broadcastDepth(e.Pair)
}

func (s *Server) OnBookCreated(e events.BookCreated) {
	s.metrics.OnBookCreated(e)
	s.hub.BroadcastToChannel("books", WSMessage{Type: "book_created", Channel: "books", Data: e})
}

// broadcastDepth pushes a fresh depth snapshot to book:<pair> subscribers
// after anything changed the book.
func (s *Server) broadcastDepth(pair string) {
	base, quote, err := splitSymbol(pair)
	if err != nil {
		s.log.Warn("ws depth broadcast skipped", zap.String("pair", pair), zap.Error(err))
		return
	}
	bids, asks, err := s.exchange.Depth(base, quote)
	if err != nil {
		s.log.Warn("ws depth broadcast skipped", zap.String("pair", pair), zap.Error(err))
		return
	}
	snap := OrderbookSnapshot{
		Symbol:    pair,
		Bids:      toPriceLevels(bids),
		Asks:      toPriceLevels(asks),
		Timestamp: time.Now().UnixMilli(),
	}
	s.hub.BroadcastToChannel("book:"+pair, WSMessage{Type: "book", Channel: "book:" + pair, Data: snap})
}

var _ events.Listener = (*Server)(nil)

// ==============================
// Helpers
// ==============================

// splitSymbol reverses Pair.Symbol: "<baseHex>/<quoteHex>" back to addresses.
func splitSymbol(symbol string) (base, quote common.Address, err error) {
	i := strings.IndexByte(symbol, '/')
	if i < 0 {
		return base, quote, fmt.Errorf("invalid pair symbol %q", symbol)
	}
	return parsePair(symbol[:i], symbol[i+1:])
}

func parsePair(baseHex, quoteHex string) (base, quote common.Address, err error) {
	if !common.IsHexAddress(baseHex) {
		return base, quote, fmt.Errorf("invalid base address %q", baseHex)
	}
	if !common.IsHexAddress(quoteHex) {
		return base, quote, fmt.Errorf("invalid quote address %q", quoteHex)
	}
	return common.HexToAddress(baseHex), common.HexToAddress(quoteHex), nil
}

func parseAddrs(aHex, bHex, cHex string) (a, b, c common.Address, err error) {
	for _, h := range []string{aHex, bHex, cHex} {
		if !common.IsHexAddress(h) {
			return a, b, c, fmt.Errorf("invalid address %q", h)
		}
	}
	return common.HexToAddress(aHex), common.HexToAddress(bHex), common.HexToAddress(cHex), nil
}

func toPriceLevels(levels []book.LevelSnapshot) []PriceLevel {
	out := make([]PriceLevel, len(levels))
	for i, l := range levels {
		out[i] = PriceLevel{Price: l.Price, Size: l.Qty, Orders: l.Orders}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

// statusFor maps engine error taxonomy to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, book.ErrOrderNotFound), errors.Is(err, registry.ErrPairNotFound):
		return http.StatusNotFound
	case errors.Is(err, registry.ErrPairAlreadyRegistered):
		return http.StatusConflict
	case errors.Is(err, access.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return http.StatusPaymentRequired
	case errors.Is(err, book.ErrInvalidPrice),
		errors.Is(err, book.ErrInvalidQuantity),
		errors.Is(err, book.ErrDuplicateOrderID):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
