package usecase

import (
	"context"
	"time"

	"FinRank/internal/domain/models"
	drepo "FinRank/internal/domain/repository"
	applogger "FinRank/pkg/logger"
	"FinRank/pkg/util"
)

// FetchConfig paces and filters a bulk price download.
type FetchConfig struct {
	Period          string
	Interval        string
	BatchSize       int
	BatchDelay      time.Duration
	RetryCooldown   time.Duration
	MinObservations int
}

// FetchReport summarises a bulk download.
type FetchReport struct {
	Requested     int      `json:"requested"`
	Retrieved     int      `json:"retrieved"`
	FailedInitial []string `json:"failed_initial"`
	FailedFinal   []string `json:"failed_final"`
	Dropped       []string `json:"dropped"`
}

// ClockSleeper sleeps on the wall clock and wakes early on cancellation.
type ClockSleeper struct{}

func (ClockSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// PriceFetcher downloads daily closes in paced batches with one retry pass
// over whatever failed.
type PriceFetcher struct {
	source  drepo.PriceSource
	cfg     FetchConfig
	sleeper drepo.Sleeper
	log     *applogger.Logger
	metrics drepo.Metrics
}

// NewPriceFetcher creates a fetcher. A nil sleeper uses ClockSleeper.
func NewPriceFetcher(src drepo.PriceSource, cfg FetchConfig, s drepo.Sleeper, l *applogger.Logger, m drepo.Metrics) *PriceFetcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 30
	}
	if cfg.MinObservations <= 0 {
		cfg.MinObservations = 1
	}
	cfg.Interval = string(drepo.NormalizeInterval(cfg.Interval))
	if s == nil {
		s = ClockSleeper{}
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &PriceFetcher{source: src, cfg: cfg, sleeper: s, log: l, metrics: m}
}

// Fetch returns the merged, filtered panel. An empty panel is a valid result
// when no batch succeeded; the error is non-nil only when ctx is cancelled.
func (f *PriceFetcher) Fetch(ctx context.Context, tickers []string) (*models.PricePanel, FetchReport, error) {
	start := time.Now()
	rep := FetchReport{Requested: len(tickers)}
	acc := &accumulator{series: make(map[string]models.Series)}

	failed, err := f.pass(ctx, "initial", tickers, acc)
	rep.FailedInitial = failed
	if err != nil {
		return f.panel(acc), rep, err
	}

	if len(failed) > 0 {
		f.log.Info("retrying failed tickers",
			applogger.Int("tickers", len(failed)),
			applogger.Duration("cooldown_ms", f.cfg.RetryCooldown),
		)
		if err := f.sleeper.Sleep(ctx, f.cfg.RetryCooldown); err != nil {
			return f.panel(acc), rep, err
		}
		if r, ok := f.source.(drepo.BreakerResetter); ok {
			r.ResetBreaker()
		}
		failed, err = f.pass(ctx, "retry", failed, acc)
		if err != nil {
			return f.panel(acc), rep, err
		}
	}
	rep.FailedFinal = failed

	p := f.panel(acc)
	rep.Dropped = p.DropSparse(f.cfg.MinObservations)
	rep.Retrieved = len(p.Tickers)

	if f.metrics != nil {
		f.metrics.RecordFailedTickers("final", len(rep.FailedFinal))
		f.metrics.RecordLatency("fetch", time.Since(start).Seconds())
	}
	f.log.Info("price download finished",
		applogger.Int("requested", rep.Requested),
		applogger.Int("retrieved", rep.Retrieved),
		applogger.Int("failed", len(rep.FailedFinal)),
		applogger.Int("dropped_sparse", len(rep.Dropped)),
		applogger.Int("days", len(p.Dates)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return p, rep, nil
}

type accumulator struct {
	order  []string
	series map[string]models.Series
}

// add keeps the first series seen for a ticker.
func (a *accumulator) add(ticker string, s models.Series) {
	if _, ok := a.series[ticker]; ok {
		return
	}
	a.order = append(a.order, ticker)
	a.series[ticker] = s
}

func (f *PriceFetcher) panel(acc *accumulator) *models.PricePanel {
	return models.NewPricePanel(acc.order, acc.series)
}

// pass downloads tickers batch by batch, sleeping after every batch, and
// returns the tickers that came back missing or empty.
func (f *PriceFetcher) pass(ctx context.Context, name string, tickers []string, acc *accumulator) ([]string, error) {
	batches := util.Chunk(tickers, f.cfg.BatchSize)
	var failed []string

	for i, batch := range batches {
		f.log.Info("downloading batch",
			applogger.String("pass", name),
			applogger.Int("batch", i+1),
			applogger.Int("batches", len(batches)),
			applogger.Int("tickers", len(batch)),
		)

		got, err := f.source.FetchCloses(ctx, batch, f.cfg.Period, f.cfg.Interval)
		if err != nil {
			f.log.Warn("batch failed",
				applogger.String("pass", name),
				applogger.Int("batch", i+1),
				applogger.Error(err),
			)
		}

		missed := 0
		for _, t := range batch {
			if s, ok := got[t]; ok && len(s) > 0 {
				acc.add(t, s)
				continue
			}
			failed = append(failed, t)
			missed++
		}
		if f.metrics != nil {
			f.metrics.RecordBatch(name, err == nil && missed == 0)
		}

		if err := f.sleeper.Sleep(ctx, f.cfg.BatchDelay); err != nil {
			return failed, err
		}
	}

	if f.metrics != nil {
		f.metrics.RecordFailedTickers(name, len(failed))
	}
	return failed, nil
}
