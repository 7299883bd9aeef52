// Package web provides the HTTP status server and operator API for the
// fruit-grader daemon.
package web

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	ginlogrus "github.com/toorop/gin-logrus"

	"github.com/sweeney/fruit-grader/internal/calibration"
	"github.com/sweeney/fruit-grader/internal/status"
)

const (
	commandTimeout = 30 * time.Second
	wsWriteWait    = 5 * time.Second
	wsRefresh      = time.Second
)

// Commander runs operator commands on the control loop.
type Commander interface {
	TriggerManualOffset(ctx context.Context) error
	TriggerCalibration(ctx context.Context, reference float64) (float64, error)
}

// CalibrateRequest is the body of POST /api/calibrate.
type CalibrateRequest struct {
	Reference float64 `json:"reference"`
}

// CalibrateResponse is returned by a successful calibration.
type CalibrateResponse struct {
	Factor float64 `json:"factor"`
}

// Server serves the status page, live updates and the operator API.
type Server struct {
	httpServer       *http.Server
	tracker          *status.Tracker
	cmd              Commander
	defaultReference float64

	done     chan struct{}
	doneOnce sync.Once
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// New creates a Server reading state from tracker. cmd may be nil, in which
// case the operator API answers 503.
func New(addr string, tracker *status.Tracker, cmd Commander, defaultReference float64) *Server {
	s := &Server{
		tracker:          tracker,
		cmd:              cmd,
		defaultReference: defaultReference,
		done:             make(chan struct{}),
	}
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.routes(),
	}
	return s
}

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(ginlogrus.Logger(logrus.StandardLogger()), gin.Recovery())
	router.GET("/", s.handleIndex)
	router.GET("/index.html", s.handleIndex)
	router.GET("/index.json", s.handleJSON)
	router.GET("/ws", s.handleWS)
	router.POST("/api/tare", s.handleTare)
	router.POST("/api/calibrate", s.handleCalibrate)
	return router
}

// Handler returns the HTTP handler. Useful for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown closes live websocket streams and gracefully shuts down the
// server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.doneOnce.Do(func() { close(s.done) })
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(c *gin.Context) {
	snap := s.tracker.Snapshot()
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := renderHTML(c.Writer, snap, s.defaultReference); err != nil {
		_ = c.Error(err)
	}
}

func (s *Server) handleJSON(c *gin.Context) {
	c.Data(http.StatusOK, "application/json", status.FormatJSON(s.tracker.Snapshot()))
}

func (s *Server) handleTare(c *gin.Context) {
	if s.cmd == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "controller not running"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), commandTimeout)
	defer cancel()

	if err := s.cmd.TriggerManualOffset(ctx); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleCalibrate(c *gin.Context) {
	if s.cmd == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "controller not running"})
		return
	}

	var req CalibrateRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if req.Reference == 0 {
		req.Reference = s.defaultReference
	}
	if req.Reference <= 0 || math.IsNaN(req.Reference) || math.IsInf(req.Reference, 0) {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid reference weight %g", req.Reference)})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), commandTimeout)
	defer cancel()

	factor, err := s.cmd.TriggerCalibration(ctx, req.Reference)
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, calibration.ErrFactorOutOfRange) || errors.Is(err, calibration.ErrNoSamples) {
			code = http.StatusUnprocessableEntity
		}
		c.JSON(code, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, CalibrateResponse{Factor: factor})
}

// handleWS streams a status document on every change, and at least once a
// second, until the client goes away.
func (s *Server) handleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Warn("ws upgrade failed")
		return
	}
	go s.streamStatus(conn)
}

func (s *Server) streamStatus(conn *websocket.Conn) {
	defer conn.Close()

	changes, unsubscribe := s.tracker.Subscribe()
	defer unsubscribe()

	// Reads only detect the peer closing.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	refresh := time.NewTicker(wsRefresh)
	defer refresh.Stop()

	for {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(status.Build(s.tracker.Snapshot())); err != nil {
			logrus.WithError(err).Debug("ws write failed")
			return
		}
		select {
		case <-gone:
			return
		case <-s.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
				time.Now().Add(wsWriteWait))
			return
		case <-changes:
		case <-refresh.C:
		}
	}
}
