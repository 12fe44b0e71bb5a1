// Package controlhttp serves the operator control surface over HTTP.
package controlhttp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"optdesk/internal/domain"
	"optdesk/internal/logger"
	"optdesk/internal/report"
	"optdesk/internal/store"
	"optdesk/internal/trader"

	"github.com/gin-gonic/gin"
)

// Controller is the command surface of the trading actor.
type Controller interface {
	SetPolling(ctx context.Context, running bool) error
	Login(ctx context.Context, secondFactor string) error
	SetMode(ctx context.Context, p trader.SetModePayload) error
	SetTrade(ctx context.Context, p trader.SetTradePayload) error
	SetQty(ctx context.Context, p trader.SetQtyPayload) error
	SetDirection(ctx context.Context, p trader.SetDirectionPayload) error
	SetArm(ctx context.Context, p trader.SetArmPayload) error
	SetExit(ctx context.Context, p trader.SetExitPayload) error
	PaperEnter(ctx context.Context, p trader.ForceEnterPayload) error
	PaperExit(ctx context.Context) error
	LiveEnter(ctx context.Context, p trader.ForceEnterPayload) error
	LiveExit(ctx context.Context) error
	Resync(ctx context.Context) error
	Snapshot() *trader.State
}

const (
	defaultJournalLimit = 50
	maxJournalLimit     = 500
)

type Router struct {
	ctrl    Controller
	reports *report.Service
	journal store.JournalRepository
}

func NewRouter(ctrl Controller, reports *report.Service, journal store.JournalRepository) *Router {
	return &Router{ctrl: ctrl, reports: reports, journal: journal}
}

// Register mounts the control routes on group.
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/state", r.handleState)
	group.POST("/polling/start", r.handlePolling(true))
	group.POST("/polling/stop", r.handlePolling(false))
	group.POST("/login", r.handleLogin)

	cfg := group.Group("/config")
	cfg.POST("/mode", bindAndRun(r.ctrl.SetMode))
	cfg.POST("/trade", bindAndRun(r.ctrl.SetTrade))
	cfg.POST("/qty", bindAndRun(r.ctrl.SetQty))
	cfg.POST("/direction", bindAndRun(r.ctrl.SetDirection))
	cfg.POST("/arm", bindAndRun(r.ctrl.SetArm))
	cfg.POST("/exit", bindAndRun(r.ctrl.SetExit))

	group.POST("/paper/enter", optionalBindAndRun(r.ctrl.PaperEnter))
	group.POST("/paper/exit", r.run(r.ctrl.PaperExit))
	group.POST("/live/enter", optionalBindAndRun(r.ctrl.LiveEnter))
	group.POST("/live/exit", r.run(r.ctrl.LiveExit))
	group.POST("/live/resync", r.run(r.ctrl.Resync))

	group.GET("/report", r.handleReport)
	group.GET("/report/chart", r.handleReportChart)
	group.GET("/journal", r.handleJournal)
}

func (r *Router) handleState(c *gin.Context) {
	c.JSON(http.StatusOK, r.ctrl.Snapshot())
}

func (r *Router) handlePolling(running bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := r.ctrl.SetPolling(c.Request.Context(), running); err != nil {
			writeError(c, "polling", err)
			return
		}
		logger.Infof("[api] polling running=%v ip=%s", running, c.ClientIP())
		c.JSON(http.StatusOK, r.ctrl.Snapshot())
	}
}

type loginRequest struct {
	SecondFactor string `json:"secondFactor"`
}

func (r *Router) handleLogin(c *gin.Context) {
	var req loginRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if err := r.ctrl.Login(c.Request.Context(), strings.TrimSpace(req.SecondFactor)); err != nil {
		writeError(c, "login", err)
		return
	}
	logger.Infof("[api] broker login ok ip=%s", c.ClientIP())
	c.JSON(http.StatusOK, r.ctrl.Snapshot())
}

func (r *Router) run(fn func(context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := fn(c.Request.Context()); err != nil {
			writeError(c, c.FullPath(), err)
			return
		}
		logger.Infof("[api] %s ok ip=%s", c.FullPath(), c.ClientIP())
		c.JSON(http.StatusOK, r.ctrl.Snapshot())
	}
}

func bindAndRun[T any](fn func(context.Context, T) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req T
		if err := c.ShouldBindJSON(&req); err != nil {
			logger.Warnf("[api] %s bind failed ip=%s err=%v", c.FullPath(), c.ClientIP(), err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		applyAndRespond(c, fn, req)
	}
}

// optionalBindAndRun accepts an empty body as the zero payload.
func optionalBindAndRun[T any](fn func(context.Context, T) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req T
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}
		applyAndRespond(c, fn, req)
	}
}

func applyAndRespond[T any](c *gin.Context, fn func(context.Context, T) error, req T) {
	if err := fn(c.Request.Context(), req); err != nil {
		writeError(c, c.FullPath(), err)
		return
	}
	logger.Infof("[api] %s ok ip=%s payload=%+v", c.FullPath(), c.ClientIP(), req)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (r *Router) handleReport(c *gin.Context) {
	rep, ok := r.buildReport(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, rep)
}

func (r *Router) handleReportChart(c *gin.Context) {
	rep, ok := r.buildReport(c)
	if !ok {
		return
	}
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := report.RenderChart(c.Writer, rep, r.location()); err != nil {
		logger.Errorf("[api] render report chart failed err=%v", err)
	}
}

func (r *Router) buildReport(c *gin.Context) (report.Report, bool) {
	if r.reports == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "ledger not configured"})
		return report.Report{}, false
	}
	q, err := parseReportQuery(c.Query("from"), c.Query("to"), c.Query("source"), r.location(), time.Now())
	if err != nil {
		writeError(c, "report", err)
		return report.Report{}, false
	}
	rep, err := r.reports.Build(c.Request.Context(), q)
	if err != nil {
		writeError(c, "report", err)
		return report.Report{}, false
	}
	return rep, true
}

func (r *Router) handleJournal(c *gin.Context) {
	if r.journal == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "journal not configured"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultJournalLimit)))
	if limit <= 0 {
		limit = defaultJournalLimit
	}
	if limit > maxJournalLimit {
		limit = maxJournalLimit
	}
	rows, err := r.journal.Recent(c.Request.Context(), limit)
	if err != nil {
		writeError(c, "journal", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"commands": rows})
}

func (r *Router) location() *time.Location {
	if st := r.ctrl.Snapshot(); st != nil {
		return st.Tuning.Auto.Location()
	}
	return time.UTC
}

const dateLayout = "2006-01-02"

// parseReportQuery accepts RFC3339 timestamps or trading dates. A date "to"
// is inclusive, so to=2025-10-14 covers that whole day. Missing bounds
// default to the current trading day.
func parseReportQuery(fromRaw, toRaw, source string, loc *time.Location, now time.Time) (report.Query, error) {
	today := domain.TradingDayOf(now, loc)
	dayStart, err := time.ParseInLocation(dateLayout, today, loc)
	if err != nil {
		return report.Query{}, err
	}
	q := report.Query{From: dayStart, To: dayStart.AddDate(0, 0, 1), Source: source}
	if s := strings.TrimSpace(fromRaw); s != "" {
		from, _, err := parseBound(s, loc)
		if err != nil {
			return report.Query{}, fmt.Errorf("%w: from: %v", domain.ErrInvalidInput, err)
		}
		q.From = from
		if strings.TrimSpace(toRaw) == "" {
			q.To = from.AddDate(0, 0, 1)
		}
	}
	if s := strings.TrimSpace(toRaw); s != "" {
		to, dateOnly, err := parseBound(s, loc)
		if err != nil {
			return report.Query{}, fmt.Errorf("%w: to: %v", domain.ErrInvalidInput, err)
		}
		if dateOnly {
			to = to.AddDate(0, 0, 1)
		}
		q.To = to
	}
	return q, nil
}

func parseBound(s string, loc *time.Location) (time.Time, bool, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, false, nil
	}
	ts, err := time.ParseInLocation(dateLayout, s, loc)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("want RFC3339 or YYYY-MM-DD, got %q", s)
	}
	return ts, true, nil
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrIllegalTransition),
		errors.Is(err, domain.ErrNotArmed),
		errors.Is(err, domain.ErrLiveDisabled),
		errors.Is(err, domain.ErrNoQuote),
		errors.Is(err, domain.ErrNoDirection),
		errors.Is(err, domain.ErrNoInstrument),
		errors.Is(err, domain.ErrRiskLimit):
		return http.StatusConflict
	case errors.Is(err, domain.ErrBrokerUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, trader.ErrStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, op string, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		logger.Errorf("[api] %s failed ip=%s err=%v", op, c.ClientIP(), err)
	} else {
		logger.Warnf("[api] %s rejected ip=%s err=%v", op, c.ClientIP(), err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
