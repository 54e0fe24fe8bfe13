package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"turtlestock/internal/analysis"
	"turtlestock/internal/cache"
	"turtlestock/internal/config"
	"turtlestock/internal/market"
	"turtlestock/internal/portfolio"
	"turtlestock/internal/provider"
	"turtlestock/internal/risk"
	"turtlestock/internal/scheduler"
	"turtlestock/internal/store"
	"turtlestock/internal/symbols"
	"turtlestock/pkg/model"
)

var (
	cfgFile string
	verbose bool
	format  string
	dateStr string
	userID  int64
	sized   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "turtlestock",
		Short: "Daily breakout-signal and risk-distribution engine",
		Long: `Turtlestock sweeps a US stock universe once per trading day, computes
breakout indicators (20-day high, 50/200-day averages, 52-week high, ATR),
evaluates the turtle entry rule, and sizes positions under an equal-split
portfolio risk budget.

Examples:
  turtlestock analyze
  turtlestock signals --sized
  turtlestock portfolio buy AAPL 10 198.50
  turtlestock daemon`,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "debug logging")

	rootCmd.AddCommand(
		newAnalyzeCmd(),
		newDaemonCmd(),
		newSignalsCmd(),
		newQuoteCmd(),
		newStatusCmd(),
		newPortfolioCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app bundles the wired components behind every subcommand.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	store   *store.Store
	market  provider.Provider
	manager *portfolio.Manager
	job     *analysis.Job
}

func setup() (*app, error) {
	_ = godotenv.Load()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var logger *zap.Logger
	if verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}

	st, err := store.Open(cfg.Store.Path, logger)
	if err != nil {
		return nil, err
	}

	var candleCache cache.CandleCache = cache.NewMemoryCache()
	if cfg.Cache.RedisAddr != "" {
		if rc, err := cache.NewRedisCache(cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB, logger); err != nil {
			logger.Warn("redis unavailable, using in-memory cache", zap.Error(err))
		} else {
			candleCache = rc
		}
	}

	providers := []provider.Provider{
		provider.NewYahooProvider(),
	}
	if cfg.API.Finnhub.Key != "" {
		providers = append([]provider.Provider{
			provider.NewFinnhubProvider(cfg.API.Finnhub.Key, cfg.API.Finnhub.RateLimit),
		}, providers...)
	}

	var marketData provider.Provider = provider.NewFallbackProvider(providers...)
	marketData = provider.NewRetryingProvider(marketData, cfg.API.MaxRetries, time.Second)
	marketData = provider.NewCachingProvider(marketData, candleCache, analysis.HistoryDays, 12*time.Hour)

	profile := risk.Profile{
		Capital:          decimal.NewFromFloat(cfg.Risk.Capital),
		RiskTolerancePct: decimal.NewFromFloat(cfg.Risk.RiskTolerancePct),
	}
	manager := portfolio.NewManager(st, marketData, risk.NewAllocator(), profile, logger)

	loader := symbols.NewLoader(marketData, cfg.Analysis.SymbolCachePath,
		symbols.Universe(cfg.Analysis.Universe), logger)
	job := analysis.NewJob(st, marketData, loader, logger)

	return &app{
		cfg:     cfg,
		logger:  logger,
		store:   st,
		market:  marketData,
		manager: manager,
		job:     job,
	}, nil
}

func (a *app) close() {
	a.store.Close()
	a.logger.Sync()
}

// sessionDate is the trading day the current moment belongs to
func sessionDate(now time.Time) time.Time {
	prior := market.PriorClose(now)
	return time.Date(prior.Year(), prior.Month(), prior.Day(), 0, 0, 0, 0, time.UTC)
}

func resolveDate() (time.Time, error) {
	if dateStr == "" {
		return sessionDate(time.Now()), nil
	}
	d, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", dateStr)
	}
	return d, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func newAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run the daily market sweep now",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.close()

			ctx, cancel := signalContext()
			defer cancel()

			date, err := resolveDate()
			if err != nil {
				return err
			}

			bar := progressbar.NewOptions(-1,
				progressbar.OptionShowCount(),
				progressbar.OptionSetWidth(40),
				progressbar.OptionSetDescription("Analyzing"),
			)
			a.job.OnProgress = func(done, total int) {
				bar.ChangeMax(total)
				bar.Set(done)
			}

			report, err := a.job.Run(ctx, date)
			if err != nil {
				return fmt.Errorf("running analysis: %w", err)
			}
			bar.Finish()
			fmt.Println()

			if report.AlreadyRan {
				fmt.Printf("Analysis already completed for %s (%d signals stored)\n",
					date.Format("2006-01-02"), len(report.Signals))
				return nil
			}

			fmt.Printf("Analyzed %d symbols (%d skipped), %d signals triggered\n",
				report.Run.Analyzed, report.Run.Skipped, report.Run.Triggered)
			return printSignals(triggeredOnly(report.Signals), nil)
		},
	}
	cmd.Flags().StringVar(&dateStr, "date", "", "session date YYYY-MM-DD (default: latest close)")
	return cmd
}

func newDaemonCmd() *cobra.Command {
	var runNow bool
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run continuously, sweeping after each market close",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.close()

			ctx, cancel := signalContext()
			defer cancel()

			sched := scheduler.New(ctx, a.job, a.logger)
			if err := sched.Register(a.cfg.Analysis.CronSpec); err != nil {
				return err
			}

			if runNow {
				sched.RunNow()
			}

			sched.Start()
			defer sched.Stop()

			fmt.Printf("Daemon running, analysis scheduled at %q ET. Ctrl-C to stop.\n",
				a.cfg.Analysis.CronSpec)
			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().BoolVar(&runNow, "run-now", false, "run one sweep immediately on start")
	return cmd
}

func newSignalsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signals",
		Short: "Show stored signals for a session date",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.close()

			ctx, cancel := signalContext()
			defer cancel()

			date, err := resolveDate()
			if err != nil {
				return err
			}

			signals, err := a.store.TriggeredSignalsFor(ctx, date)
			if err != nil {
				return err
			}
			if len(signals) == 0 {
				fmt.Printf("No triggered signals for %s\n", date.Format("2006-01-02"))
				return nil
			}

			var previews map[string]risk.Position
			if sized {
				previews = make(map[string]risk.Position, len(signals))
				for _, sig := range signals {
					pos, err := a.manager.PreviewPosition(ctx, userID, sig.Symbol, sig.Close, sig.ATR)
					if err != nil {
						a.logger.Warn("sizing preview failed",
							zap.String("symbol", sig.Symbol), zap.Error(err))
						continue
					}
					previews[sig.Symbol] = pos
				}
			}

			if format == "json" {
				return json.NewEncoder(os.Stdout).Encode(signals)
			}
			return printSignals(signals, previews)
		},
	}
	cmd.Flags().StringVar(&dateStr, "date", "", "session date YYYY-MM-DD (default: latest close)")
	cmd.Flags().StringVar(&format, "format", "table", "output format: table, json")
	cmd.Flags().BoolVar(&sized, "sized", false, "include position-size preview per signal")
	cmd.Flags().Int64Var(&userID, "user", 1, "user whose risk profile sizes the preview")
	return cmd
}

func newQuoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "quote SYMBOL...",
		Short: "Fetch latest quotes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.close()

			ctx, cancel := signalContext()
			defer cancel()

			table := tablewriter.NewTable(os.Stdout,
				tablewriter.WithHeader([]string{"Symbol", "Price", "Change", "Change%", "Prev Close"}),
			)
			for _, sym := range args {
				quote, err := a.market.GetQuote(ctx, sym)
				if err != nil {
					fmt.Fprintf(os.Stderr, "%s: %v\n", sym, err)
					continue
				}
				table.Append([]string{
					quote.Symbol,
					fmt.Sprintf("%.2f", quote.Price),
					fmt.Sprintf("%+.2f", quote.Change),
					fmt.Sprintf("%+.2f%%", quote.ChangePercent),
					fmt.Sprintf("%.2f", quote.PrevClose),
				})
			}
			table.Render()
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the last analysis run",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.close()

			ctx, cancel := signalContext()
			defer cancel()

			run, err := a.store.LastRun(ctx)
			if errors.Is(err, store.ErrNotFound) {
				fmt.Println("No analysis has run yet")
				return nil
			}
			if err != nil {
				return err
			}

			fmt.Printf("Last run:  %s\n", run.Date.Format("2006-01-02"))
			fmt.Printf("As of:     %s\n", run.AsOf.In(market.ETLocation()).Format("2006-01-02 15:04 MST"))
			fmt.Printf("Analyzed:  %d\n", run.Analyzed)
			fmt.Printf("Skipped:   %d\n", run.Skipped)
			fmt.Printf("Triggered: %d\n", run.Triggered)

			status := market.GetStatus(market.DefaultSchedule(), time.Now())
			fmt.Printf("Market:    %s\n", status.Reason)
			return nil
		},
	}
}

func newPortfolioCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "portfolio",
		Short: "Manage positions",
	}
	cmd.PersistentFlags().Int64Var(&userID, "user", 1, "user ID")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "buy SYMBOL SHARES PRICE",
			Short: "Open or extend a position",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withManager(func(ctx context.Context, a *app) error {
					shares, price, err := parseSharesPrice(args[1], args[2])
					if err != nil {
						return err
					}
					h, err := a.manager.Buy(ctx, userID, normalizeSymbol(args[0]), shares, price, time.Now().UTC())
					if err != nil {
						return err
					}
					fmt.Printf("Bought %.2f %s @ %.2f (total %.2f, avg %.2f, stop %.2f)\n",
						shares, h.Symbol, price, h.TotalShares, h.AveragePrice, h.StopLoss)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "addup SYMBOL SHARES",
			Short: "Pyramid into a winning position at the market price",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withManager(func(ctx context.Context, a *app) error {
					shares, err := strconv.ParseFloat(args[1], 64)
					if err != nil {
						return fmt.Errorf("invalid shares %q", args[1])
					}
					sym := normalizeSymbol(args[0])
					quote, err := a.market.GetQuote(ctx, sym)
					if err != nil {
						return fmt.Errorf("fetching market price: %w", err)
					}
					h, err := a.manager.AddUp(ctx, userID, sym, shares, quote.Price, time.Now().UTC())
					if err != nil {
						return err
					}
					fmt.Printf("Added up %.2f %s @ %.2f (total %.2f, stop %.2f)\n",
						shares, h.Symbol, quote.Price, h.TotalShares, h.StopLoss)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "sell SYMBOL SHARES PRICE",
			Short: "Reduce or close a position",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withManager(func(ctx context.Context, a *app) error {
					shares, price, err := parseSharesPrice(args[1], args[2])
					if err != nil {
						return err
					}
					if err := a.manager.Sell(ctx, userID, normalizeSymbol(args[0]), shares, price, time.Now().UTC()); err != nil {
						return err
					}
					fmt.Printf("Sold %.2f %s @ %.2f\n", shares, normalizeSymbol(args[0]), price)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "Show open positions",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withManager(func(ctx context.Context, a *app) error {
					holdings, err := a.store.GetHoldings(ctx, userID)
					if err != nil {
						return err
					}
					if len(holdings) == 0 {
						fmt.Println("No open positions")
						return nil
					}
					table := tablewriter.NewTable(os.Stdout,
						tablewriter.WithHeader([]string{"Symbol", "Shares", "Avg Price", "Stop", "Added Up"}),
					)
					for _, h := range holdings {
						table.Append([]string{
							h.Symbol,
							fmt.Sprintf("%.2f", h.TotalShares),
							fmt.Sprintf("%.2f", h.AveragePrice),
							fmt.Sprintf("%.2f", h.StopLoss),
							fmt.Sprintf("%v", h.AddedUp),
						})
					}
					table.Render()

					value, err := a.manager.PortfolioValue(ctx, userID)
					if err == nil {
						fmt.Printf("\nPortfolio value: %.2f\n", value)
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "history",
			Short: "Show completed trades",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withManager(func(ctx context.Context, a *app) error {
					history, err := a.store.TradeHistory(ctx, userID)
					if err != nil {
						return err
					}
					if len(history) == 0 {
						fmt.Println("No completed trades")
						return nil
					}
					table := tablewriter.NewTable(os.Stdout,
						tablewriter.WithHeader([]string{"Symbol", "Shares", "Buy", "Sell", "Net", "Sold On"}),
					)
					for _, th := range history {
						table.Append([]string{
							th.Symbol,
							fmt.Sprintf("%.2f", th.Shares),
							fmt.Sprintf("%.2f", th.BuyPrice),
							fmt.Sprintf("%.2f", th.SellPrice),
							fmt.Sprintf("%+.2f", th.NetValue),
							th.SellDate.Format("2006-01-02"),
						})
					}
					table.Render()
					return nil
				})
			},
		},
	)
	return cmd
}

func withManager(fn func(ctx context.Context, a *app) error) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := signalContext()
	defer cancel()
	return fn(ctx, a)
}

func parseSharesPrice(sharesArg, priceArg string) (float64, float64, error) {
	shares, err := strconv.ParseFloat(sharesArg, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid shares %q", sharesArg)
	}
	price, err := strconv.ParseFloat(priceArg, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid price %q", priceArg)
	}
	return shares, price, nil
}

func normalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func triggeredOnly(signals []model.Signal) []model.Signal {
	out := make([]model.Signal, 0, len(signals))
	for _, sig := range signals {
		if sig.Triggered {
			out = append(out, sig)
		}
	}
	return out
}

func printSignals(signals []model.Signal, previews map[string]risk.Position) error {
	if len(signals) == 0 {
		fmt.Println("No triggered signals")
		return nil
	}

	headers := []string{"Symbol", "Close", "20d High", "SMA50", "SMA200", "52w High", "ATR"}
	if previews != nil {
		headers = append(headers, "Shares", "Stop")
	}
	table := tablewriter.NewTable(os.Stdout, tablewriter.WithHeader(headers))

	for _, sig := range signals {
		row := []string{
			sig.Symbol,
			fmt.Sprintf("%.2f", sig.Close),
			fmtPtr(sig.High20d),
			fmtPtr(sig.SMA50d),
			fmtPtr(sig.SMA200d),
			fmtPtr(sig.High52w),
			fmtPtr(sig.ATR),
		}
		if previews != nil {
			if pos, ok := previews[sig.Symbol]; ok {
				row = append(row, fmt.Sprintf("%.0f", pos.Shares), fmt.Sprintf("%.2f", pos.StopLoss))
			} else {
				row = append(row, "-", "-")
			}
		}
		table.Append(row)
	}
	table.Render()
	return nil
}

func fmtPtr(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}
