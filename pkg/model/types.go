package model

import "time"

// Candle represents a single daily candlestick (OHLCV data)
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Stock represents basic stock information
type Stock struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Exchange string `json:"exchange"` // NYSE, NASDAQ
}

// Quote represents a real-time price quote
type Quote struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	PrevClose     float64   `json:"prev_close"`
	Timestamp     time.Time `json:"timestamp"`
}

// IndicatorSnapshot holds the technical indicators derived from a daily
// candle series. A nil field means the series was too short to compute that
// indicator; zero is a legitimate computed value and never means "unavailable".
type IndicatorSnapshot struct {
	Symbol  string    `json:"symbol"`
	AsOf    time.Time `json:"as_of"`
	High20d *float64  `json:"high_20d"`
	SMA50d  *float64  `json:"sma_50d"`
	SMA200d *float64  `json:"sma_200d"`
	High52w *float64  `json:"high_52w"`
	ATR14   *float64  `json:"atr_14d"`
}

// Signal is one market-wide analysis result for a (symbol, date) pair.
// Rows are written once per trading day and never updated.
type Signal struct {
	Symbol    string    `json:"symbol"`
	Date      time.Time `json:"date"`
	Close     float64   `json:"close"`
	High20d   *float64  `json:"high_20d"`
	SMA50d    *float64  `json:"sma_50d"`
	SMA200d   *float64  `json:"sma_200d"`
	High52w   *float64  `json:"high_52w"`
	ATR       *float64  `json:"atr"`
	Triggered bool      `json:"signal_triggered"`
}

// Holding is an open position owned by a single user. TotalShares and
// AveragePrice are derived from the buy transactions and recomputed on every
// mutation, never trusted as an independent source of truth.
type Holding struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	Symbol       string    `json:"symbol"`
	TotalShares  float64   `json:"total_shares"`
	AveragePrice float64   `json:"average_price"`
	StopLoss     float64   `json:"stop_loss_price"`
	AddedUp      bool      `json:"is_added_up"`
	CreatedAt    time.Time `json:"created_at"`
}

// Transaction types
const (
	TxBuy  = "buy"
	TxSell = "sell"
)

// Transaction is one append-only entry in a holding's trade log.
type Transaction struct {
	ID            int64     `json:"id"`
	HoldingID     int64     `json:"holding_id"`
	Type          string    `json:"type"` // "buy" or "sell"
	Shares        float64   `json:"shares"`
	PricePerShare float64   `json:"price_per_share"`
	TotalAmount   float64   `json:"total_amount"`
	Date          time.Time `json:"date"`
}

// TradeHistory records a completed (or partially completed) sell: what the
// sold shares were bought for, what they sold for, and the net result.
type TradeHistory struct {
	ID           string    `json:"id"`
	UserID       int64     `json:"user_id"`
	Symbol       string    `json:"symbol"`
	Shares       float64   `json:"shares"`
	BuyPrice     float64   `json:"buy_price"`
	SellPrice    float64   `json:"sell_price"`
	InitialValue float64   `json:"initial_value"`
	EndValue     float64   `json:"end_value"`
	NetValue     float64   `json:"net_value"`
	BuyDate      time.Time `json:"buy_date"`
	SellDate     time.Time `json:"sell_date"`
}

// AnalysisRun records one completed daily sweep. AsOf is the prior market
// close the analysis reflects, not the wall-clock time the job finished.
type AnalysisRun struct {
	ID        string    `json:"id"`
	Date      time.Time `json:"date"`
	AsOf      time.Time `json:"as_of"`
	Analyzed  int       `json:"analyzed"`
	Skipped   int       `json:"skipped"`
	Triggered int       `json:"triggered"`
}

// Float64Ptr returns a pointer to v. Convenience for building snapshots.
func Float64Ptr(v float64) *float64 { return &v }
