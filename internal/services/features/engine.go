package features

import (
	"context"
	"fmt"
	"math"
	"time"

	"FinRank/internal/domain/models"
	"FinRank/internal/domain/repository"
	applogger "FinRank/pkg/logger"
	"FinRank/pkg/util"

	"gonum.org/v1/gonum/floats"
)

// TradingDaysPerMonth converts lookback months into price rows for momentum.
const TradingDaysPerMonth = 21

// Config holds the feature window parameters.
type Config struct {
	LookbackMonths int
	ForwardMonths  int
	MinLookbackObs int
	Epsilon        float64
}

// DefaultConfig matches the research setup: 6 months back, 3 months forward.
func DefaultConfig() Config {
	return Config{LookbackMonths: 6, ForwardMonths: 3, MinLookbackObs: 20, Epsilon: 1e-6}
}

// Engine turns a price panel into monthly per-ticker feature rows with
// forward-looking labels.
type Engine struct {
	cfg     Config
	log     *applogger.Logger
	metrics repository.Metrics
}

// Result is the outcome of a full run. Skipped holds every non-row outcome.
type Result struct {
	Rows    []models.FeatureRow
	Skipped []models.RowResult
}

// SkipCounts tallies skipped ticker-months by reason.
func (r Result) SkipCounts() map[models.SkipReason]int {
	out := make(map[models.SkipReason]int)
	for _, s := range r.Skipped {
		out[s.Skip]++
	}
	return out
}

// NewEngine creates an engine. Zero config fields fall back to DefaultConfig.
func NewEngine(cfg Config, l *applogger.Logger, m repository.Metrics) *Engine {
	def := DefaultConfig()
	if cfg.LookbackMonths <= 0 {
		cfg.LookbackMonths = def.LookbackMonths
	}
	if cfg.ForwardMonths <= 0 {
		cfg.ForwardMonths = def.ForwardMonths
	}
	if cfg.MinLookbackObs <= 0 {
		cfg.MinLookbackObs = def.MinLookbackObs
	}
	if cfg.Epsilon <= 0 {
		cfg.Epsilon = def.Epsilon
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &Engine{cfg: cfg, log: l, metrics: m}
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// EvaluationDates lists the month-ends that have a full lookback and forward
// span inside the panel: all calendar month-ends of the panel minus the first
// LookbackMonths and the last ForwardMonths.
func (e *Engine) EvaluationDates(p *models.PricePanel) []time.Time {
	if p.Empty() {
		return nil
	}
	months := util.MonthEnds(p.Dates[0], p.Dates[len(p.Dates)-1])
	if len(months) <= e.cfg.LookbackMonths+e.cfg.ForwardMonths {
		return nil
	}
	return months[e.cfg.LookbackMonths : len(months)-e.cfg.ForwardMonths]
}

// Run evaluates every evaluation date. Rows are ordered by date, then by
// panel column order. The run stops early only when ctx is cancelled.
func (e *Engine) Run(ctx context.Context, p *models.PricePanel) (Result, error) {
	var res Result
	if p.Empty() {
		return res, nil
	}

	start := time.Now()
	returns := ComputeReturns(p)
	dates := e.EvaluationDates(p)
	e.log.Info("building features",
		applogger.Int("tickers", len(p.Tickers)),
		applogger.Int("months", len(dates)),
	)

	for _, date := range dates {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		e.log.Debug("processing month", applogger.String("month", date.Format("2006-01")))
		for _, r := range e.EvaluateDate(p, returns, date) {
			if r.OK() {
				res.Rows = append(res.Rows, *r.Row)
				continue
			}
			res.Skipped = append(res.Skipped, r)
		}
	}

	if e.metrics != nil {
		e.metrics.RecordRows(len(res.Rows))
		for _, s := range res.Skipped {
			e.metrics.RecordSkip(string(s.Skip))
		}
		e.metrics.RecordLatency("features", time.Since(start).Seconds())
	}
	e.log.Info("features built",
		applogger.Int("rows", len(res.Rows)),
		applogger.Int("skipped", len(res.Skipped)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return res, nil
}

// dateContext is everything shared by the tickers of one evaluation date.
type dateContext struct {
	date          time.Time
	lookback      window
	forward       window
	lbCols        map[string][]float64
	fwCols        map[string][]float64
	corr          *CorrMatrix
	market        []float64
	marketFuture  float64
	momentumSpan  int
	closesThrough int
	// malformed maps tickers whose columns do not span the panel to a detail.
	malformed map[string]string
}

// EvaluateDate computes one RowResult per panel column for date. returns
// must come from ComputeReturns on the same panel.
func (e *Engine) EvaluateDate(p *models.PricePanel, returns map[string][]float64, date time.Time) []models.RowResult {
	dc := e.prepare(p, returns, date)

	out := make([]models.RowResult, 0, len(p.Tickers))
	for _, t := range p.Tickers {
		r := e.evaluateTicker(p, dc, t)
		if r.Skip == models.SkipComputationError {
			e.log.Warn("feature computation failed",
				applogger.String("ticker", t),
				applogger.Date("date", date),
				applogger.String("detail", r.Detail),
			)
		}
		out = append(out, r)
	}
	return out
}

func (e *Engine) prepare(p *models.PricePanel, returns map[string][]float64, date time.Time) *dateContext {
	dc := &dateContext{
		date:         date,
		lookback:     dateWindow(p.Dates, util.AddMonths(date, -e.cfg.LookbackMonths), date),
		forward:      dateWindow(p.Dates, date, util.AddMonths(date, e.cfg.ForwardMonths)),
		lbCols:       make(map[string][]float64, len(p.Tickers)),
		fwCols:       make(map[string][]float64, len(p.Tickers)),
		momentumSpan: e.cfg.LookbackMonths * TradingDaysPerMonth,
		malformed:    make(map[string]string),
	}
	dc.closesThrough = dc.lookback.hi

	lb := make([][]float64, len(p.Tickers))
	fw := make([][]float64, len(p.Tickers))
	for i, t := range p.Tickers {
		if n, c := len(returns[t]), len(p.Closes[t]); n != len(p.Dates) || c != len(p.Dates) {
			dc.malformed[t] = fmt.Sprintf("column has %d closes and %d returns for %d dates", c, n, len(p.Dates))
			lb[i] = nanColumn(dc.lookback.len())
			fw[i] = nanColumn(dc.forward.len())
			continue
		}
		lb[i] = returns[t][dc.lookback.lo:dc.lookback.hi]
		fw[i] = returns[t][dc.forward.lo:dc.forward.hi]
		dc.lbCols[t] = lb[i]
		dc.fwCols[t] = fw[i]
	}
	dc.corr = PairwiseCorrelation(p.Tickers, lb)
	dc.market = rowMean(lb, window{lo: 0, hi: dc.lookback.len()})
	dc.marketFuture = nanSum(rowMean(fw, window{lo: 0, hi: dc.forward.len()}))
	return dc
}

func (e *Engine) evaluateTicker(p *models.PricePanel, dc *dateContext, ticker string) (res models.RowResult) {
	res = models.RowResult{Ticker: ticker, Date: dc.date}
	defer func() {
		if r := recover(); r != nil {
			res.Row = nil
			res.Skip = models.SkipComputationError
			res.Detail = fmt.Sprint(r)
		}
	}()

	if detail, ok := dc.malformed[ticker]; ok {
		res.Skip = models.SkipComputationError
		res.Detail = detail
		return res
	}

	lb := dc.lbCols[ticker]
	valid := present(nil, lb, window{lo: 0, hi: len(lb)})
	if len(valid) < e.cfg.MinLookbackObs {
		res.Skip = models.SkipInsufficientHistory
		res.Detail = fmt.Sprintf("%d lookback returns, need %d", len(valid), e.cfg.MinLookbackObs)
		return res
	}

	closes := p.Closes[ticker]
	if dc.closesThrough < dc.momentumSpan {
		res.Skip = models.SkipInsufficientHistory
		res.Detail = fmt.Sprintf("%d price rows, momentum needs %d", dc.closesThrough, dc.momentumSpan)
		return res
	}
	momentum := closes[dc.closesThrough-1]/closes[dc.closesThrough-dc.momentumSpan] - 1

	fw := dc.fwCols[ticker]
	if len(present(nil, fw, window{lo: 0, hi: len(fw)})) == 0 {
		res.Skip = models.SkipNoForwardData
		res.Detail = "no returns in forward window"
		return res
	}

	std := sampleStd(valid)
	avgCorr, maxCorr, minCorr := nanSummary(dc.corr.Column(ticker))
	var buf pairBuffers

	recentFrom := len(valid) - TradingDaysPerMonth
	if recentFrom < 0 {
		recentFrom = 0
	}
	future := nanSum(fw)

	row := &models.FeatureRow{
		Ticker:            ticker,
		Date:              dc.date,
		Momentum:          momentum,
		Volatility:        std * math.Sqrt(TradingDaysPerYear),
		AvgCorrelation:    avgCorr,
		MaxCorrelation:    maxCorr,
		MinCorrelation:    minCorr,
		MarketCorrelation: buf.pearson(lb, dc.market),
		Sharpe:            floats.Sum(valid) / (std + e.cfg.Epsilon),
		MomentumAccel:     floats.Sum(valid[recentFrom:]) - floats.Sum(valid[:recentFrom]),
		FutureReturn:      future,
	}
	if future > dc.marketFuture {
		row.BeatMarket = 1
	}
	res.Row = row
	return res
}

func nanColumn(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
