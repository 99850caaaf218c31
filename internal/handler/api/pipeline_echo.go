package api

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"time"

	models "FinRank/internal/domain/models"
	"FinRank/internal/services/ranking"
	"FinRank/internal/usecase"
	"FinRank/pkg/cache"
	xhttp "FinRank/pkg/http"
	xlogger "FinRank/pkg/logger"

	"github.com/labstack/echo/v4"
)

const (
	recommendationsKey = "recommendations:latest"
	generateLockKey    = "pipeline:generate"
)

// Recommender ranks the stored feature table.
type Recommender interface {
	Run(ctx context.Context) (*models.Recommendations, error)
}

// Generator rebuilds the feature table.
type Generator interface {
	Run(ctx context.Context) (usecase.GenerateResult, error)
}

// FeatureLoader reads the stored feature table.
type FeatureLoader interface {
	LoadFeatures(ctx context.Context) ([]models.FeatureRow, error)
}

// PipelineEchoHandler exposes the ranking pipeline over HTTP.
type PipelineEchoHandler struct {
	logger   *xlogger.Logger
	recs     Recommender
	gen      Generator
	features FeatureLoader
	cache    cache.Service
	recsTTL  time.Duration
	lockTTL  time.Duration

	wg    sync.WaitGroup
	spawn func(func())
}

func NewPipelineEchoHandler(logger *xlogger.Logger, recs Recommender, gen Generator, features FeatureLoader, c cache.Service, recsTTL, lockTTL time.Duration) *PipelineEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	if c == nil {
		c = cache.NewMemoryCache()
	}
	h := &PipelineEchoHandler{
		logger:   logger,
		recs:     recs,
		gen:      gen,
		features: features,
		cache:    c,
		recsTTL:  recsTTL,
		lockTTL:  lockTTL,
	}
	h.spawn = func(f func()) { go f() }
	return h
}

func (h *PipelineEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api")
	g.GET("/recommendations", h.Recommendations)
	g.GET("/features/latest", h.LatestFeatures)
	g.POST("/pipeline/generate", h.Generate)
}

// Wait blocks until background generation runs have finished.
func (h *PipelineEchoHandler) Wait() {
	h.wg.Wait()
}

func (h *PipelineEchoHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

func (h *PipelineEchoHandler) Recommendations(c echo.Context) error {
	req := &models.RecommendationsRequest{}
	if verr := xhttp.BindAndValidate(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ctx := c.Request().Context()

	if req.Refresh {
		_ = h.cache.Delete(ctx, recommendationsKey)
	}
	recs, err := cache.GetOrLoad(ctx, h.cache, recommendationsKey, h.recsTTL, func(ctx context.Context) (*models.Recommendations, error) {
		return h.recs.Run(ctx)
	})
	if err != nil {
		h.logger.Error("recommendations usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}

	if req.List != "" {
		list, ok := recs.List(req.List)
		if !ok {
			return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("list %q not found", req.List))
		}
		return xhttp.SuccessResponse(c, truncate(list, req.Limit))
	}

	out := *recs
	out.Lists = make([]models.PickList, len(recs.Lists))
	for i, l := range recs.Lists {
		out.Lists[i] = truncate(l, req.Limit)
	}
	return xhttp.SuccessResponse(c, &out)
}

func (h *PipelineEchoHandler) LatestFeatures(c echo.Context) error {
	req := &models.LatestFeaturesRequest{}
	if verr := xhttp.BindAndValidate(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	rows, err := h.features.LoadFeatures(c.Request().Context())
	if err != nil {
		h.logger.Error("load features error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}

	latest := ranking.LatestDate(rows)
	ticker := strings.ToUpper(strings.TrimSpace(req.Ticker))
	views := make([]models.FeatureRowView, 0)
	total := 0
	for _, r := range rows {
		if !r.Date.Equal(latest) || (ticker != "" && r.Ticker != ticker) {
			continue
		}
		total++
		if len(views) < req.Limit {
			views = append(views, r.View())
		}
	}
	return xhttp.ListResponse(c, views, int64(total))
}

func (h *PipelineEchoHandler) Generate(c echo.Context) error {
	ctx := c.Request().Context()
	ok, err := h.cache.TryLock(ctx, generateLockKey, h.lockTTL)
	if err != nil {
		h.logger.Error("generate lock error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("could not acquire pipeline lock").WithError(err))
	}
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.ConflictError("feature generation already running"))
	}

	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.lockTTL)
	h.wg.Add(1)
	h.spawn(func() {
		defer h.wg.Done()
		defer cancel()
		defer func() { _ = h.cache.Unlock(context.WithoutCancel(runCtx), generateLockKey) }()

		res, err := h.gen.Run(runCtx)
		if err != nil {
			h.logger.Error("background generation failed", xlogger.String("run_id", res.RunID), xlogger.Error(err))
			return
		}
		_ = h.cache.Delete(runCtx, recommendationsKey)
		h.logger.Info("background generation finished",
			xlogger.String("run_id", res.RunID),
			xlogger.Int("rows", res.Rows),
			xlogger.Duration("duration_ms", res.Duration),
		)
	})

	return xhttp.AcceptedResponse(c, map[string]string{"status": "started"})
}

func truncate(l models.PickList, limit int) models.PickList {
	if limit > 0 && len(l.Picks) > limit {
		l.Picks = l.Picks[:limit]
	}
	return l
}

func toAppError(err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return xhttp.NotFoundError("feature table not found, run generation first").WithError(err)
	}
	return err
}
