package repository

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"FinRank/internal/domain/models"
	applogger "FinRank/pkg/logger"
)

// CSVStore keeps the feature table and pick lists as flat CSV files.
type CSVStore struct {
	featuresPath string
	picksDir     string
	l            *applogger.Logger
}

// NewCSVStore creates a store writing the feature table to featuresPath and
// pick lists under picksDir.
func NewCSVStore(featuresPath, picksDir string, l *applogger.Logger) *CSVStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &CSVStore{featuresPath: featuresPath, picksDir: picksDir, l: l}
}

// FeaturesPath returns the feature table location.
func (s *CSVStore) FeaturesPath() string { return s.featuresPath }

func (s *CSVStore) SaveFeatures(_ context.Context, _ string, rows []models.FeatureRow) error {
	start := time.Now()
	err := writeAtomic(s.featuresPath, func(w io.Writer) error {
		return WriteFeatures(w, rows)
	})
	if err != nil {
		return fmt.Errorf("save features: %w", err)
	}
	s.l.Info("feature table written",
		applogger.String("path", s.featuresPath),
		applogger.Int("rows", len(rows)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

func (s *CSVStore) LoadFeatures(_ context.Context) ([]models.FeatureRow, error) {
	f, err := os.Open(s.featuresPath)
	if err != nil {
		return nil, fmt.Errorf("open feature table: %w", err)
	}
	defer f.Close()
	rows, err := ReadFeatures(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.featuresPath, err)
	}
	return rows, nil
}

func (s *CSVStore) SavePicks(_ context.Context, _ string, list models.PickList) error {
	path := filepath.Join(s.picksDir, picksFile(list.Name))
	err := writeAtomic(path, func(w io.Writer) error {
		return WritePicks(w, list)
	})
	if err != nil {
		return fmt.Errorf("save %s picks: %w", list.Name, err)
	}
	s.l.Debug("picks written", applogger.String("path", path), applogger.Int("picks", len(list.Picks)))
	return nil
}

func (s *CSVStore) Close() error { return nil }

// WriteFeatures writes the header and one line per row.
func WriteFeatures(w io.Writer, rows []models.FeatureRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(FeatureHeader); err != nil {
		return err
	}
	rec := make([]string, len(FeatureHeader))
	for _, r := range rows {
		rec[0] = r.Ticker
		rec[1] = r.Date.Format(dateLayout)
		rec[2] = formatFloat(r.Momentum)
		rec[3] = formatFloat(r.Volatility)
		rec[4] = formatFloat(r.AvgCorrelation)
		rec[5] = formatFloat(r.MaxCorrelation)
		rec[6] = formatFloat(r.MinCorrelation)
		rec[7] = formatFloat(r.MarketCorrelation)
		rec[8] = formatFloat(r.Sharpe)
		rec[9] = formatFloat(r.MomentumAccel)
		rec[10] = formatFloat(r.FutureReturn)
		rec[11] = strconv.Itoa(r.BeatMarket)
		rec[12] = formatFloat(r.DividendYield)
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadFeatures parses a feature table. Columns are matched by header name,
// so column order in the file does not matter; missing dividend_yield reads as 0.
func ReadFeatures(r io.Reader) ([]models.FeatureRow, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[h] = i
	}
	for _, h := range FeatureHeader[:12] {
		if _, ok := col[h]; !ok {
			return nil, fmt.Errorf("missing column %q", h)
		}
	}

	var out []models.FeatureRow
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		row, err := parseFeatureRecord(rec, col)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, row)
	}
}

func parseFeatureRecord(rec []string, col map[string]int) (models.FeatureRow, error) {
	var (
		row  models.FeatureRow
		err  error
		errs []error
	)
	get := func(name string) string {
		if i, ok := col[name]; ok && i < len(rec) {
			return rec[i]
		}
		return ""
	}
	num := func(name string) float64 {
		v, perr := parseFloat(get(name))
		if perr != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, perr))
		}
		return v
	}

	row.Ticker = get("ticker")
	// a trailing time of day is ignored
	if row.Date, err = time.Parse(dateLayout, firstN(get("date"), len(dateLayout))); err != nil {
		return row, fmt.Errorf("date: %w", err)
	}
	row.Momentum = num("momentum")
	row.Volatility = num("volatility")
	row.AvgCorrelation = num("avg_correlation")
	row.MaxCorrelation = num("max_correlation")
	row.MinCorrelation = num("min_correlation")
	row.MarketCorrelation = num("market_correlation")
	row.Sharpe = num("sharpe")
	row.MomentumAccel = num("momentum_accel")
	row.FutureReturn = num("future_return")
	if _, ok := col["dividend_yield"]; ok {
		row.DividendYield = num("dividend_yield")
	}
	if row.BeatMarket, err = strconv.Atoi(get("beat_market")); err != nil {
		return row, fmt.Errorf("beat_market: %w", err)
	}
	if len(errs) > 0 {
		return row, errs[0]
	}
	return row, nil
}

func firstN(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// WritePicks writes one list. Diversified lists carry avg_corr_with_picks.
func WritePicks(w io.Writer, list models.PickList) error {
	cw := csv.NewWriter(w)
	header := []string{"ticker", "prob_beat_market", "dividend_yield", "momentum", "volatility"}
	if list.Diversified {
		header = append(header, "avg_corr_with_picks")
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, p := range list.Picks {
		rec := []string{
			p.Ticker,
			formatFloat(p.ProbBeatMarket),
			formatFloat(p.DividendYield),
			formatFloat(p.Momentum),
			formatFloat(p.Volatility),
		}
		if list.Diversified {
			avg := ""
			if p.AvgCorrWithPicks != nil {
				avg = formatFloat(*p.AvgCorrWithPicks)
			}
			rec = append(rec, avg)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// writeAtomic writes through a temp file in the target directory and renames
// it into place.
func writeAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".finrank-*.csv")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
