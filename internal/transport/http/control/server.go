package controlhttp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"optdesk/internal/logger"
	"optdesk/internal/report"
	"optdesk/internal/store"

	"github.com/gin-gonic/gin"
)

// Server exposes the operator control surface under /api.
type Server struct {
	addr   string
	router *gin.Engine
}

// ServerConfig lists the dependencies of the control server.
type ServerConfig struct {
	Addr       string
	Controller Controller
	Reports    *report.Service
	Journal    store.JournalRepository
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Controller == nil {
		return nil, errors.New("control http server requires a controller")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9991"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	NewRouter(cfg.Controller, cfg.Reports, cfg.Journal).Register(router.Group("/api"))

	return &Server{addr: cfg.Addr, router: router}, nil
}

// Handler returns the underlying router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery
		client := c.ClientIP()
		c.Next()
		dur := time.Since(start)
		status := c.Writer.Status()
		fullPath := path
		if query != "" {
			fullPath = path + "?" + query
		}
		logger.Debugf("HTTP %s %s status=%d ip=%s dur=%s", method, fullPath, status, client, dur)
	}
}

func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Start serves until ctx is canceled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logger.Infof("control http listening on %s", s.addr)

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
