package api

// REST and WebSocket payload types.

// PairInfo describes a registered trading pair.
type PairInfo struct {
	Symbol string `json:"symbol"`
	Base   string `json:"base"`
	Quote  string `json:"quote"`
}

// PriceLevel is a [price, size] aggregation of one book level.
type PriceLevel struct {
	Price  int64 `json:"price"`
	Size   int64 `json:"size"`
	Orders int   `json:"orders"`
}

// OrderbookSnapshot is the current depth of one book.
type OrderbookSnapshot struct {
	Symbol    string       `json:"symbol"`
	Bids      []PriceLevel `json:"bids"` // sorted high to low
	Asks      []PriceLevel `json:"asks"` // sorted low to high
	Timestamp int64        `json:"timestamp"` // unix milliseconds
}

// PriceInfo is the market price of a pair.
type PriceInfo struct {
	Symbol string `json:"symbol"`
	Price  int64  `json:"price"` // last trade, mid-price fallback, 0 if empty
}

// BalancesInfo lists one account's token balances.
type BalancesInfo struct {
	Address  string           `json:"address"`
	Balances map[string]int64 `json:"balances"` // token address -> amount
}

// SubmitOrderRequest places a limit order. Side is "bid" or "ask".
type SubmitOrderRequest struct {
	Owner string `json:"owner"`
	Base  string `json:"base"`
	Quote string `json:"quote"`
	Side  string `json:"side"`
	Price int64  `json:"price"`
	Qty   int64  `json:"qty"`
}

// FillInfo is one execution within a fill report.
type FillInfo struct {
	TradeID string `json:"tradeId"`
	Price   int64  `json:"price"`
	Qty     int64  `json:"qty"`
	MakerID uint64 `json:"makerId"`
}

// SubmitOrderResponse reports the outcome of a submit.
type SubmitOrderResponse struct {
	OrderID   uint64     `json:"orderId"`
	Filled    int64      `json:"filled"`
	Remaining int64      `json:"remaining"`
	AvgPrice  int64      `json:"avgPrice"`
	Fee       int64      `json:"fee"`
	Rested    bool       `json:"rested"`
	Fills     []FillInfo `json:"fills"`
}

// CancelOrderRequest cancels a resting order.
type CancelOrderRequest struct {
	Caller  string `json:"caller"`
	Base    string `json:"base"`
	Quote   string `json:"quote"`
	OrderID uint64 `json:"orderId"`
}

// AddPairRequest registers a new book. Caller must hold the booker role.
type AddPairRequest struct {
	Caller string `json:"caller"`
	Base   string `json:"base"`
	Quote  string `json:"quote"`
}

// SetFeeRequest updates the fee configuration. Caller must be an admin.
type SetFeeRequest struct {
	Caller    string `json:"caller"`
	Recipient string `json:"recipient"`
	RateBps   int64  `json:"rateBps"`
	FeeToken  string `json:"feeToken"`
}

// ErrorResponse carries a typed failure back to the caller.
type ErrorResponse struct {
	Error string `json:"error"`
}

// WSSubscribeRequest is sent by a client to manage channel subscriptions,
// e.g. {"op":"subscribe","channels":["trades:<symbol>"]}.
type WSSubscribeRequest struct {
	Op       string   `json:"op"` // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"`
}

// WSMessage wraps every broadcast payload.
type WSMessage struct {
	Type    string `json:"type"` // "trade", "order_accepted", "order_cancelled", "book_created"
	Channel string `json:"channel"`
	Data    any    `json:"data"`
}
