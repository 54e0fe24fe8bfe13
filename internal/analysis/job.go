package analysis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"turtlestock/internal/indicator"
	"turtlestock/internal/market"
	"turtlestock/internal/provider"
	"turtlestock/internal/signal"
	"turtlestock/pkg/model"
)

// HistoryDays is the calendar span fetched per symbol, sized to yield a full
// 252-session year plus slack for holidays.
const HistoryDays = 380

// SignalStore is the persistence surface the job needs.
type SignalStore interface {
	HasSignalsFor(ctx context.Context, date time.Time) (bool, error)
	InsertSignal(ctx context.Context, sig model.Signal) (bool, error)
	SignalsFor(ctx context.Context, date time.Time) ([]model.Signal, error)
	RecordRun(ctx context.Context, run model.AnalysisRun) error
}

// SymbolSource resolves the sweep universe.
type SymbolSource interface {
	Load(ctx context.Context) []string
}

// Report summarizes one invocation of the daily job.
type Report struct {
	Run        model.AnalysisRun
	Signals    []model.Signal
	AlreadyRan bool
}

// Job is the once-per-trading-day market sweep. A failed symbol is logged
// and skipped; the sweep itself never aborts. Rerunning for a date that
// already has signals returns the stored rows without refetching anything.
type Job struct {
	store    SignalStore
	provider provider.Provider
	symbols  SymbolSource
	logger   *zap.Logger
	now      func() time.Time

	// OnProgress, if set, is called after each symbol with the running count
	OnProgress func(done, total int)
}

// NewJob creates the daily analysis job
func NewJob(s SignalStore, p provider.Provider, symbols SymbolSource, logger *zap.Logger) *Job {
	return &Job{
		store:    s,
		provider: p,
		symbols:  symbols,
		logger:   logger,
		now:      time.Now,
	}
}

// Run performs the sweep for the given session date.
func (j *Job) Run(ctx context.Context, date time.Time) (*Report, error) {
	has, err := j.store.HasSignalsFor(ctx, date)
	if err != nil {
		return nil, err
	}
	if has {
		signals, err := j.store.SignalsFor(ctx, date)
		if err != nil {
			return nil, err
		}
		j.logger.Info("analysis already completed",
			zap.String("date", date.Format("2006-01-02")),
			zap.Int("signals", len(signals)))
		return &Report{Signals: signals, AlreadyRan: true}, nil
	}

	universe := j.symbols.Load(ctx)
	j.logger.Info("starting daily analysis",
		zap.String("date", date.Format("2006-01-02")),
		zap.Int("symbols", len(universe)))

	run := model.AnalysisRun{
		ID:   uuid.NewString(),
		Date: date,
		AsOf: market.PriorClose(j.now()),
	}
	var signals []model.Signal

	for i, sym := range universe {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		sig, ok := j.analyzeSymbol(ctx, sym, date)
		if !ok {
			run.Skipped++
		} else {
			run.Analyzed++
			if sig.Triggered {
				run.Triggered++
			}
			signals = append(signals, sig)
		}

		if j.OnProgress != nil {
			j.OnProgress(i+1, len(universe))
		}
	}

	if err := j.store.RecordRun(ctx, run); err != nil {
		return nil, err
	}

	j.logger.Info("daily analysis complete",
		zap.Int("analyzed", run.Analyzed),
		zap.Int("skipped", run.Skipped),
		zap.Int("triggered", run.Triggered))

	return &Report{Run: run, Signals: signals}, nil
}

// analyzeSymbol fetches, computes and persists one symbol's signal. Returns
// ok=false when the symbol was skipped.
func (j *Job) analyzeSymbol(ctx context.Context, sym string, date time.Time) (model.Signal, bool) {
	candles, err := j.provider.GetDailyCandles(ctx, sym, HistoryDays)
	if err != nil {
		j.logger.Warn("fetch failed, skipping",
			zap.String("symbol", sym), zap.Error(err))
		return model.Signal{}, false
	}

	if !indicator.HasSufficientHistory(len(candles)) {
		j.logger.Debug("insufficient history, skipping",
			zap.String("symbol", sym), zap.Int("sessions", len(candles)))
		return model.Signal{}, false
	}

	snap := indicator.Compute(sym, candles)
	close, _, ok := indicator.LatestClose(candles)
	if !ok {
		return model.Signal{}, false
	}

	sig := signal.Build(sym, date, close, snap)
	if _, err := j.store.InsertSignal(ctx, sig); err != nil {
		j.logger.Warn("persisting signal failed, skipping",
			zap.String("symbol", sym), zap.Error(err))
		return model.Signal{}, false
	}
	return sig, true
}
