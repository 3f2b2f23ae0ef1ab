package httpserver

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tinytelemetry/countdown/internal/model"
)

const defaultAddr = "127.0.0.1:3030"

// stateWatcher is implemented by engines that can register a watch and
// report the state it starts from in one step.
type stateWatcher interface {
	WatchState(fn func(model.Transition)) (model.State, func())
}

// Server provides an HTTP API for driving the countdown timer and reading
// its run history.
type Server struct {
	addr      string
	timer     model.TimerAPI
	history   model.HistoryReader
	gatherer  prometheus.Gatherer
	server    *http.Server
	listener  net.Listener
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
}

// NewServer creates a new HTTP API server. history and gatherer may be nil,
// which disables the run and metrics routes respectively.
func NewServer(addr string, timer model.TimerAPI, history model.HistoryReader, gatherer prometheus.Gatherer) *Server {
	if addr == "" {
		addr = defaultAddr
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:      addr,
		timer:     timer,
		history:   history,
		gatherer:  gatherer,
		ctx:       ctx,
		cancel:    cancel,
		startTime: time.Now(),
	}
}

func (s *Server) router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/api/health", s.handleHealth)

	api := r.Group("/api/timer")
	api.GET("", s.handleState)
	api.PUT("/duration", s.handleSetDuration)
	api.POST("/start", s.handleStart)
	api.POST("/stop", s.handleStop)
	api.GET("/events", s.handleEvents)

	r.GET("/api/runs", s.handleRecentRuns)
	r.GET("/api/runs/stats", s.handleRunStats)

	if s.gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}
	return r
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)

	s.server = &http.Server{
		Handler:           s.router(),
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// No WriteTimeout: /api/timer/events stays open for the life of the client.
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = listener
	s.startTime = time.Now()

	go s.server.Serve(listener)
	return nil
}

// Addr returns the bound listen address, or the configured one before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Stop ends open event streams and gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.cancel()
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"uptime":  time.Since(s.startTime).Round(time.Second).String(),
		"state":   s.timer.State(),
		"history": s.history != nil,
	})
}

func (s *Server) handleState(c *gin.Context) {
	c.JSON(http.StatusOK, s.timer.State())
}

func (s *Server) handleSetDuration(c *gin.Context) {
	var req struct {
		Seconds *int `json:"seconds" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body or missing seconds field"})
		return
	}
	if *req.Seconds < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "seconds must be >= 0"})
		return
	}

	s.timer.SetDuration(*req.Seconds)
	c.JSON(http.StatusOK, s.timer.State())
}

func (s *Server) handleStart(c *gin.Context) {
	s.timer.Start()
	c.JSON(http.StatusOK, s.timer.State())
}

func (s *Server) handleStop(c *gin.Context) {
	s.timer.Stop()
	c.JSON(http.StatusOK, s.timer.State())
}

// handleEvents streams the current state followed by every transition as
// server-sent events until the client disconnects or the server stops.
func (s *Server) handleEvents(c *gin.Context) {
	ctx := c.Request.Context()
	events := make(chan model.Transition)

	forward := func(t model.Transition) {
		select {
		case events <- t:
		case <-ctx.Done():
		}
	}

	var (
		current model.State
		cancel  func()
	)
	if sw, ok := s.timer.(stateWatcher); ok {
		current, cancel = sw.WatchState(forward)
	} else {
		current = s.timer.State()
		cancel = s.timer.Watch(forward)
	}
	defer cancel()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("state", current)
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case t := <-events:
			c.SSEvent("transition", t)
			return true
		case <-ctx.Done():
			return false
		}
	})
}

var errHistoryDisabled = errors.New("run history is disabled")

func (s *Server) handleRecentRuns(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": errHistoryDisabled.Error()})
		return
	}

	limit := model.DefaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, model.DefaultMaxHistoryLimit)
	}

	runs, err := s.history.RecentRuns(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read run history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"runs":  runs,
		"count": len(runs),
	})
}

func (s *Server) handleRunStats(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": errHistoryDisabled.Error()})
		return
	}

	stats, err := s.history.RunStats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read run stats"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"completed":       stats.Completed,
		"stopped":         stats.Stopped,
		"total":           stats.Total(),
		"seconds_counted": stats.SecondsCounted,
	})
}
