package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/zzhtl/biga/internal/backtest"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Origin is already enforced by the CORS layer for browser clients.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsMessage struct {
	Type      string           `json:"type"` // progress, report, error
	Completed int              `json:"completed,omitempty"`
	Total     int              `json:"total,omitempty"`
	Report    *backtest.Report `json:"report,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// handleBacktestWS streams walk-forward progress over a websocket and
// finishes with the full report. Query params mirror the REST body.
func (s *Server) handleBacktestWS(c *gin.Context) {
	req := backtestRequest{
		Symbol:      c.Query("symbol"),
		Start:       c.Query("start"),
		End:         c.Query("end"),
		StepDays:    intQuery(c, "step_days"),
		HorizonDays: intQuery(c, "horizon_days"),
		MinHistory:  intQuery(c, "min_history"),
		Workers:     intQuery(c, "workers"),
	}
	if req.Symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol query param required"})
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

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	messages := make(chan wsMessage, 64)
	cfg.Progress = func(completed, total int) {
		select {
		case messages <- wsMessage{Type: "progress", Completed: completed, Total: total}:
		default:
			// slow consumer, drop the tick; the next one carries the count
		}
	}

	go func() {
		defer close(messages)
		report, err := s.runner.Run(c.Request.Context(), bars, cfg)
		if err != nil {
			messages <- wsMessage{Type: "error", Error: err.Error()}
			return
		}
		messages <- wsMessage{Type: "report", Report: report}
	}()

	for msg := range messages {
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(msg); err != nil {
			s.log.Debug().Err(err).Msg("websocket client gone")
			return
		}
	}
}

func intQuery(c *gin.Context, name string) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return 0
	}
	return v
}
