package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"turtlestock/pkg/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

const dateLayout = "2006-01-02"

// Store persists signals, holdings, transactions, trade history and analysis
// runs in a SQLite database. A single writer mutex serializes mutations;
// SQLite serializes them anyway and the mutex keeps multi-statement
// operations coherent.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (or creates) the database at dbPath and runs migrations.
func Open(dbPath string, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.Info("sqlite store opened", zap.String("path", dbPath))
	return s, nil
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS signals (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol    TEXT NOT NULL,
			date      TEXT NOT NULL,
			close     REAL NOT NULL,
			high_20d  REAL,
			sma_50d   REAL,
			sma_200d  REAL,
			high_52w  REAL,
			atr       REAL,
			triggered INTEGER NOT NULL DEFAULT 0,
			UNIQUE(symbol, date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_date ON signals(date)`,

		`CREATE TABLE IF NOT EXISTS holdings (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id       INTEGER NOT NULL,
			symbol        TEXT NOT NULL,
			total_shares  REAL NOT NULL,
			average_price REAL NOT NULL,
			stop_loss     REAL NOT NULL,
			added_up      INTEGER NOT NULL DEFAULT 0,
			created_at    INTEGER NOT NULL,
			UNIQUE(user_id, symbol)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_holdings_user ON holdings(user_id)`,

		`CREATE TABLE IF NOT EXISTS transactions (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			holding_id      INTEGER NOT NULL,
			type            TEXT NOT NULL,
			shares          REAL NOT NULL,
			price_per_share REAL NOT NULL,
			total_amount    REAL NOT NULL,
			date            INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tx_holding ON transactions(holding_id)`,

		`CREATE TABLE IF NOT EXISTS trade_history (
			id            TEXT PRIMARY KEY,
			user_id       INTEGER NOT NULL,
			symbol        TEXT NOT NULL,
			shares        REAL NOT NULL,
			buy_price     REAL NOT NULL,
			sell_price    REAL NOT NULL,
			initial_value REAL NOT NULL,
			end_value     REAL NOT NULL,
			net_value     REAL NOT NULL,
			buy_date      INTEGER NOT NULL,
			sell_date     INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_history_user ON trade_history(user_id)`,

		`CREATE TABLE IF NOT EXISTS analysis_runs (
			id        TEXT PRIMARY KEY,
			date      TEXT NOT NULL UNIQUE,
			as_of     INTEGER NOT NULL,
			analyzed  INTEGER NOT NULL,
			skipped   INTEGER NOT NULL,
			triggered INTEGER NOT NULL
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// --- signals ---

// HasSignalsFor reports whether any signal row exists for the session date
func (s *Store) HasSignalsFor(ctx context.Context, date time.Time) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM signals WHERE date = ?`, date.Format(dateLayout)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("counting signals: %w", err)
	}
	return n > 0, nil
}

// InsertSignal writes one signal row. The unique (symbol, date) index makes
// the write idempotent; a duplicate is reported as inserted=false, not an
// error, so a restarted sweep can run over already-written symbols.
func (s *Store) InsertSignal(ctx context.Context, sig model.Signal) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO signals
		 (symbol, date, close, high_20d, sma_50d, sma_200d, high_52w, atr, triggered)
		 VALUES (?,?,?,?,?,?,?,?,?)`,
		sig.Symbol, sig.Date.Format(dateLayout), sig.Close,
		sig.High20d, sig.SMA50d, sig.SMA200d, sig.High52w, sig.ATR,
		boolToInt(sig.Triggered),
	)
	if err != nil {
		return false, fmt.Errorf("inserting signal %s: %w", sig.Symbol, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SignalsFor returns all signal rows for the session date
func (s *Store) SignalsFor(ctx context.Context, date time.Time) ([]model.Signal, error) {
	return s.querySignals(ctx,
		`SELECT symbol, date, close, high_20d, sma_50d, sma_200d, high_52w, atr, triggered
		 FROM signals WHERE date = ? ORDER BY symbol`, date.Format(dateLayout))
}

// TriggeredSignalsFor returns only the triggered signals for the session date
func (s *Store) TriggeredSignalsFor(ctx context.Context, date time.Time) ([]model.Signal, error) {
	return s.querySignals(ctx,
		`SELECT symbol, date, close, high_20d, sma_50d, sma_200d, high_52w, atr, triggered
		 FROM signals WHERE date = ? AND triggered = 1 ORDER BY symbol`, date.Format(dateLayout))
}

func (s *Store) querySignals(ctx context.Context, query string, args ...any) ([]model.Signal, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying signals: %w", err)
	}
	defer rows.Close()

	var signals []model.Signal
	for rows.Next() {
		var sig model.Signal
		var dateStr string
		var triggered int
		if err := rows.Scan(&sig.Symbol, &dateStr, &sig.Close,
			&sig.High20d, &sig.SMA50d, &sig.SMA200d, &sig.High52w, &sig.ATR,
			&triggered); err != nil {
			return nil, fmt.Errorf("scanning signal: %w", err)
		}
		sig.Date, _ = time.Parse(dateLayout, dateStr)
		sig.Triggered = triggered != 0
		signals = append(signals, sig)
	}
	return signals, rows.Err()
}

// --- holdings ---

// GetHoldings returns all open positions for a user
func (s *Store) GetHoldings(ctx context.Context, userID int64) ([]model.Holding, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, symbol, total_shares, average_price, stop_loss, added_up, created_at
		 FROM holdings WHERE user_id = ? ORDER BY symbol`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying holdings: %w", err)
	}
	defer rows.Close()

	var holdings []model.Holding
	for rows.Next() {
		h, err := scanHolding(rows)
		if err != nil {
			return nil, err
		}
		holdings = append(holdings, h)
	}
	return holdings, rows.Err()
}

// GetHolding returns a user's position in one symbol, ErrNotFound if absent
func (s *Store) GetHolding(ctx context.Context, userID int64, symbol string) (*model.Holding, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, symbol, total_shares, average_price, stop_loss, added_up, created_at
		 FROM holdings WHERE user_id = ? AND symbol = ?`, userID, symbol)

	h, err := scanHolding(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHolding(row rowScanner) (model.Holding, error) {
	var h model.Holding
	var addedUp int
	var createdAt int64
	err := row.Scan(&h.ID, &h.UserID, &h.Symbol, &h.TotalShares, &h.AveragePrice,
		&h.StopLoss, &addedUp, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return h, err
		}
		return h, fmt.Errorf("scanning holding: %w", err)
	}
	h.AddedUp = addedUp != 0
	h.CreatedAt = time.Unix(createdAt, 0).UTC()
	return h, nil
}

// CreateHolding inserts a new position and returns it with its ID set
func (s *Store) CreateHolding(ctx context.Context, h model.Holding) (*model.Holding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO holdings (user_id, symbol, total_shares, average_price, stop_loss, added_up, created_at)
		 VALUES (?,?,?,?,?,?,?)`,
		h.UserID, h.Symbol, h.TotalShares, h.AveragePrice, h.StopLoss,
		boolToInt(h.AddedUp), h.CreatedAt.Unix())
	if err != nil {
		return nil, fmt.Errorf("inserting holding %s: %w", h.Symbol, err)
	}
	h.ID, err = res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// UpdateHolding rewrites a position's derived fields
func (s *Store) UpdateHolding(ctx context.Context, h model.Holding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`UPDATE holdings SET total_shares = ?, average_price = ?, stop_loss = ?, added_up = ?
		 WHERE id = ?`,
		h.TotalShares, h.AveragePrice, h.StopLoss, boolToInt(h.AddedUp), h.ID)
	if err != nil {
		return fmt.Errorf("updating holding %d: %w", h.ID, err)
	}
	return nil
}

// DeleteHolding removes a closed position
func (s *Store) DeleteHolding(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM holdings WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting holding %d: %w", id, err)
	}
	return nil
}

// UpdateStops applies a batch of stop-loss changes in one transaction so a
// rebalance is visible all at once or not at all
func (s *Store) UpdateStops(ctx context.Context, stops map[int64]float64) error {
	if len(stops) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning stop update: %w", err)
	}
	defer tx.Rollback()

	for id, stop := range stops {
		if _, err := tx.ExecContext(ctx,
			`UPDATE holdings SET stop_loss = ? WHERE id = ?`, stop, id); err != nil {
			return fmt.Errorf("updating stop for holding %d: %w", id, err)
		}
	}
	return tx.Commit()
}

// --- transactions ---

// InsertTransaction appends one entry to a holding's trade log
func (s *Store) InsertTransaction(ctx context.Context, t model.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions (holding_id, type, shares, price_per_share, total_amount, date)
		 VALUES (?,?,?,?,?,?)`,
		t.HoldingID, t.Type, t.Shares, t.PricePerShare, t.TotalAmount, t.Date.Unix())
	if err != nil {
		return fmt.Errorf("inserting transaction: %w", err)
	}
	return nil
}

// BuyTransactions returns a holding's buys, oldest first. Aggregates are
// recomputed from these rows after every mutation.
func (s *Store) BuyTransactions(ctx context.Context, holdingID int64) ([]model.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, holding_id, type, shares, price_per_share, total_amount, date
		 FROM transactions WHERE holding_id = ? AND type = ? ORDER BY date, id`,
		holdingID, model.TxBuy)
	if err != nil {
		return nil, fmt.Errorf("querying transactions: %w", err)
	}
	defer rows.Close()

	var txs []model.Transaction
	for rows.Next() {
		var t model.Transaction
		var date int64
		if err := rows.Scan(&t.ID, &t.HoldingID, &t.Type, &t.Shares,
			&t.PricePerShare, &t.TotalAmount, &date); err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		t.Date = time.Unix(date, 0).UTC()
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// --- trade history ---

// InsertTradeHistory records a completed sell
func (s *Store) InsertTradeHistory(ctx context.Context, th model.TradeHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO trade_history
		 (id, user_id, symbol, shares, buy_price, sell_price, initial_value, end_value, net_value, buy_date, sell_date)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		th.ID, th.UserID, th.Symbol, th.Shares, th.BuyPrice, th.SellPrice,
		th.InitialValue, th.EndValue, th.NetValue, th.BuyDate.Unix(), th.SellDate.Unix())
	if err != nil {
		return fmt.Errorf("inserting trade history: %w", err)
	}
	return nil
}

// TradeHistory returns a user's completed trades, most recent first
func (s *Store) TradeHistory(ctx context.Context, userID int64) ([]model.TradeHistory, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, symbol, shares, buy_price, sell_price, initial_value, end_value, net_value, buy_date, sell_date
		 FROM trade_history WHERE user_id = ? ORDER BY sell_date DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying trade history: %w", err)
	}
	defer rows.Close()

	var history []model.TradeHistory
	for rows.Next() {
		var th model.TradeHistory
		var buyDate, sellDate int64
		if err := rows.Scan(&th.ID, &th.UserID, &th.Symbol, &th.Shares,
			&th.BuyPrice, &th.SellPrice, &th.InitialValue, &th.EndValue, &th.NetValue,
			&buyDate, &sellDate); err != nil {
			return nil, fmt.Errorf("scanning trade history: %w", err)
		}
		th.BuyDate = time.Unix(buyDate, 0).UTC()
		th.SellDate = time.Unix(sellDate, 0).UTC()
		history = append(history, th)
	}
	return history, rows.Err()
}

// --- analysis runs ---

// RecordRun upserts the completion record for a session date
func (s *Store) RecordRun(ctx context.Context, run model.AnalysisRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO analysis_runs (id, date, as_of, analyzed, skipped, triggered)
		 VALUES (?,?,?,?,?,?)
		 ON CONFLICT(date) DO UPDATE SET
		 as_of = excluded.as_of, analyzed = excluded.analyzed,
		 skipped = excluded.skipped, triggered = excluded.triggered`,
		run.ID, run.Date.Format(dateLayout), run.AsOf.Unix(),
		run.Analyzed, run.Skipped, run.Triggered)
	if err != nil {
		return fmt.Errorf("recording analysis run: %w", err)
	}
	return nil
}

// LastRun returns the most recent analysis run, ErrNotFound if none
func (s *Store) LastRun(ctx context.Context) (*model.AnalysisRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, date, as_of, analyzed, skipped, triggered
		 FROM analysis_runs ORDER BY date DESC LIMIT 1`)

	var run model.AnalysisRun
	var dateStr string
	var asOf int64
	err := row.Scan(&run.ID, &dateStr, &asOf, &run.Analyzed, &run.Skipped, &run.Triggered)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning analysis run: %w", err)
	}
	run.Date, _ = time.Parse(dateLayout, dateStr)
	run.AsOf = time.Unix(asOf, 0).UTC()
	return &run, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
