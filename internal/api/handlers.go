package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zzhtl/biga/internal/backtest"
	"github.com/zzhtl/biga/internal/engine"
	"github.com/zzhtl/biga/internal/history"
	"github.com/zzhtl/biga/internal/indicator"
	"github.com/zzhtl/biga/internal/market"
	"github.com/zzhtl/biga/internal/scoring"
)

const dateLayout = "2006-01-02"

type analyzeRequest struct {
	Symbol        string             `json:"symbol" binding:"required"`
	Start         string             `json:"start,omitempty"`
	End           string             `json:"end,omitempty"`
	FactorWeights map[string]float64 `json:"factor_weights,omitempty"`
}

type predictRequest struct {
	analyzeRequest
	Days int `json:"days"`
}

type backtestRequest struct {
	Symbol      string `json:"symbol" binding:"required"`
	Start       string `json:"start" binding:"required"`
	End         string `json:"end" binding:"required"`
	StepDays    int    `json:"step_days"`
	HorizonDays int    `json:"horizon_days"`
	MinHistory  int    `json:"min_history"`
	Workers     int    `json:"workers"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
}

func (s *Server) handleAnalyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	eng, ok := s.engineFor(c, req.FactorWeights)
	if !ok {
		return
	}
	bars, ok := s.loadBars(c, req.Symbol, req.Start, req.End)
	if !ok {
		return
	}

	lastDate := bars[len(bars)-1].Date
	if s.cache != nil && req.FactorWeights == nil {
		if cached, err := s.cache.GetAnalysis(c.Request.Context(), req.Symbol, lastDate); err == nil {
			c.JSON(http.StatusOK, cached)
			return
		}
	}

	pred, err := eng.Analyze(c.Request.Context(), bars)
	if err != nil {
		s.analysisError(c, err)
		return
	}
	if s.cache != nil && req.FactorWeights == nil {
		if err := s.cache.PutAnalysis(c.Request.Context(), req.Symbol, lastDate, pred); err != nil {
			s.log.Debug().Err(err).Msg("analysis cache write skipped")
		}
	}
	c.JSON(http.StatusOK, pred)
}

func (s *Server) handlePredict(c *gin.Context) {
	var req predictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Days < 1 {
		req.Days = 5
	}
	if req.Days > 30 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "days must be 30 or fewer"})
		return
	}

	eng, ok := s.engineFor(c, req.FactorWeights)
	if !ok {
		return
	}
	bars, ok := s.loadBars(c, req.Symbol, req.Start, req.End)
	if !ok {
		return
	}

	// A cached prediction is only current if it was built from the same
	// last bar the provider just returned.
	if s.cache != nil && req.FactorWeights == nil {
		if cached, err := s.cache.GetPrediction(c.Request.Context(), req.Symbol, req.Days); err == nil &&
			cached.LastRealData.Date.Equal(bars[len(bars)-1].Date) {
			c.JSON(http.StatusOK, cached)
			return
		}
	}

	resp, err := eng.Predict(c.Request.Context(), bars, req.Days)
	if err != nil {
		s.analysisError(c, err)
		return
	}
	if s.cache != nil && req.FactorWeights == nil {
		if err := s.cache.PutPrediction(c.Request.Context(), req.Symbol, req.Days, resp); err != nil {
			s.log.Debug().Err(err).Msg("prediction cache write skipped")
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleBacktest(c *gin.Context) {
	var req backtestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cfg, ok := s.backtestConfig(c, req)
	if !ok {
		return
	}

	bars, ok := s.loadBars(c, req.Symbol, "", "")
	if !ok {
		return
	}

	report, err := s.runner.Run(c.Request.Context(), bars, cfg)
	if err != nil {
		s.analysisError(c, err)
		return
	}
	if s.cache != nil {
		if err := s.cache.PutReport(c.Request.Context(), report); err != nil {
			s.log.Debug().Err(err).Msg("report cache write skipped")
		}
	}
	if s.reports != nil {
		if err := s.reports.SaveReport(c.Request.Context(), report); err != nil {
			s.log.Warn().Err(err).Str("run_id", report.RunID).Msg("report persistence failed")
		}
	}
	c.JSON(http.StatusOK, report)
}

// handleBacktestReport serves a previously generated report by run ID,
// from cache first, then durable storage.
func (s *Server) handleBacktestReport(c *gin.Context) {
	runID := c.Param("run_id")

	if s.cache != nil {
		if report, err := s.cache.GetReport(c.Request.Context(), runID); err == nil {
			c.JSON(http.StatusOK, report)
			return
		}
	}
	if s.reports != nil {
		report, err := s.reports.LoadReport(c.Request.Context(), runID)
		if err == nil {
			c.JSON(http.StatusOK, report)
			return
		}
		if !errors.Is(err, history.ErrReportNotFound) {
			c.JSON(http.StatusBadGateway, gin.H{"error": "report storage unavailable"})
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "report not found: " + runID})
}

// engineFor applies optional per-request factor weight overrides. An
// invalid vector is a client error.
func (s *Server) engineFor(c *gin.Context, overrides map[string]float64) (*engine.Engine, bool) {
	if overrides == nil {
		return s.engine, true
	}
	w := scoring.Weights(overrides)
	if err := w.Validate(); err != nil {
		var cfgErr *scoring.ConfigError
		if errors.As(err, &cfgErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": cfgErr.Error(), "field": cfgErr.Field})
		} else {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return nil, false
	}
	return s.engine.WithWeights(w), true
}

func (s *Server) loadBars(c *gin.Context, symbol, start, end string) ([]market.Bar, bool) {
	startDate, ok := s.parseDate(c, start, "start")
	if !ok {
		return nil, false
	}
	endDate, ok := s.parseDate(c, end, "end")
	if !ok {
		return nil, false
	}

	bars, err := s.provider.Bars(c.Request.Context(), symbol, startDate, endDate)
	if err != nil {
		if errors.Is(err, history.ErrSymbolNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "symbol not found: " + symbol})
		} else {
			s.log.Error().Err(err).Str("symbol", symbol).Msg("bar fetch failed")
			c.JSON(http.StatusBadGateway, gin.H{"error": "history provider unavailable"})
		}
		return nil, false
	}
	if len(bars) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no bars in range for " + symbol})
		return nil, false
	}
	return bars, true
}

func (s *Server) parseDate(c *gin.Context, value, name string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name + " date, want YYYY-MM-DD"})
		return time.Time{}, false
	}
	return t.UTC(), true
}

func (s *Server) backtestConfig(c *gin.Context, req backtestRequest) (backtest.Config, bool) {
	start, err := time.Parse(dateLayout, req.Start)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start date, want YYYY-MM-DD"})
		return backtest.Config{}, false
	}
	end, err := time.Parse(dateLayout, req.End)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end date, want YYYY-MM-DD"})
		return backtest.Config{}, false
	}
	if !start.Before(end) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start must precede end"})
		return backtest.Config{}, false
	}
	if s.config.MaxBacktestDays > 0 && int(end.Sub(start).Hours()/24) > s.config.MaxBacktestDays {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date span exceeds server limit"})
		return backtest.Config{}, false
	}
	return backtest.Config{
		Symbol:      req.Symbol,
		Start:       start.UTC(),
		End:         end.UTC(),
		StepDays:    req.StepDays,
		HorizonDays: req.HorizonDays,
		MinHistory:  req.MinHistory,
		Workers:     req.Workers,
	}, true
}

// analysisError maps pipeline failures onto HTTP statuses.
func (s *Server) analysisError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, indicator.ErrInsufficientData):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, backtest.ErrLookaheadViolation):
		s.log.Error().Err(err).Msg("lookahead violation")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal consistency error"})
	default:
		var cfgErr *scoring.ConfigError
		if errors.As(err, &cfgErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": cfgErr.Error(), "field": cfgErr.Field})
			return
		}
		s.log.Error().Err(err).Msg("analysis failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "analysis failed"})
	}
}
