// Package api provides the HTTP status API for jackmixercc
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/james-see/jackmixercc/pkg/link"
	"github.com/james-see/jackmixercc/pkg/mixer"
	"github.com/james-see/jackmixercc/pkg/protocol"
	"github.com/james-see/jackmixercc/pkg/session"
)

// @title jackmixercc API
// @version 1.0
// @description Status and control API for the jack_mixer MIDI bridge
// @host localhost:9798
// @BasePath /api/v1

// Server serves the status API
type Server struct {
	engine  *mixer.Engine
	tracker *link.Tracker
	log     *zap.Logger
	srv     *http.Server
}

// New creates an API server listening on addr. tracker may be nil.
func New(addr string, engine *mixer.Engine, tracker *link.Tracker, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{engine: engine, tracker: tracker, log: log}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	s.log.Info("http api listening", zap.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http api: %w", err)
	}
	return nil
}

// Shutdown stops the server, waiting for active requests until ctx is done
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Router builds the gin engine with every route
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.log))

	// CORS middleware
	r.Use(corsMiddleware())

	// Health check
	r.GET("/health", healthCheck)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", healthCheck)
		v1.GET("/channels", s.listChannels)
		v1.GET("/channels/:name", s.getChannel)
		v1.POST("/channels/:name/command", s.postCommand)
		v1.GET("/link", s.getLink)
		v1.GET("/session/export", s.exportSession)
		v1.POST("/session/import", s.importSession)
	}

	// Swagger docs
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// ChannelView is a channel with its control bindings
type ChannelView struct {
	mixer.Status
	VolumeCC int    `json:"volume_cc"`
	MuteCC   int    `json:"mute_cc"`
	SoloCC   int    `json:"solo_cc"`
	Mirror   string `json:"mirror,omitempty"`
}

// CommandRequest is the body of a channel command
type CommandRequest struct {
	Command string `json:"command" binding:"required"`
}

// CommandResponse is the channel state after a command
type CommandResponse struct {
	mixer.Status
	Wire string `json:"wire"`
}

func viewOf(ch *mixer.Channel) ChannelView {
	return ChannelView{
		Status:   ch.Status(),
		VolumeCC: ch.Volume.CC,
		MuteCC:   ch.Mute.CC,
		SoloCC:   ch.Solo.CC,
		Mirror:   ch.Mirror,
	}
}

// healthCheck godoc
// @Summary Health check endpoint
// @Description Returns the health status of the API
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "jackmixercc",
	})
}

// listChannels godoc
// @Summary List channels
// @Description Returns every mixer channel in config order
// @Tags channels
// @Produce json
// @Success 200 {object} map[string][]ChannelView
// @Router /channels [get]
func (s *Server) listChannels(c *gin.Context) {
	channels := s.engine.Channels()
	views := make([]ChannelView, 0, len(channels))
	for i := range channels {
		views = append(views, viewOf(&channels[i]))
	}
	c.JSON(http.StatusOK, gin.H{"channels": views})
}

// getChannel godoc
// @Summary Get a channel
// @Description Returns the state of one channel, matched case-insensitively
// @Tags channels
// @Produce json
// @Param name path string true "Channel name"
// @Success 200 {object} mixer.Status
// @Failure 404 {object} map[string]string
// @Router /channels/{name} [get]
func (s *Server) getChannel(c *gin.Context) {
	status, err := s.engine.Status(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, status)
}

// postCommand godoc
// @Summary Send a command to a channel
// @Description Applies a control command using the wire protocol grammar (1i, 1d, 1v,<n>, 2m, 2u, 2t, 3t)
// @Tags channels
// @Accept json
// @Produce json
// @Param name path string true "Channel name"
// @Param command body CommandRequest true "Command"
// @Success 200 {object} CommandResponse
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /channels/{name}/command [post]
func (s *Server) postCommand(c *gin.Context) {
	var req CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	cmd, err := protocol.ParseCommand(req.Command)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	status, err := s.engine.Apply(c.Param("name"), cmd)
	switch {
	case errors.Is(err, mixer.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	case errors.Is(err, mixer.ErrClosed):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, CommandResponse{Status: status, Wire: protocol.Encode(status)})
}

// getLink godoc
// @Summary MIDI link state
// @Description Returns the MIDI connection state and persistence status
// @Tags status
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /link [get]
func (s *Server) getLink(c *gin.Context) {
	state := "unknown"
	if s.tracker != nil {
		state = s.tracker.State().String()
	}
	c.JSON(http.StatusOK, gin.H{
		"state":   state,
		"dirty":   s.engine.Dirty(),
		"pending": s.engine.Pending(),
	})
}

// exportSession godoc
// @Summary Export the session as MIDI
// @Description Returns the current control values as a Standard MIDI File
// @Tags session
// @Produce audio/midi
// @Success 200 {file} binary
// @Failure 500 {object} map[string]string
// @Router /session/export [get]
func (s *Server) exportSession(c *gin.Context) {
	data, err := session.ExportSMFBytes(session.Capture(s.engine, time.Now()))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.mid", session.RootElement))
	c.Data(http.StatusOK, "audio/midi", data)
}

// importSession godoc
// @Summary Import a session from MIDI
// @Description Upload a Standard MIDI File; its control-changes are applied and sent to the surface
// @Tags session
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "MIDI file"
// @Success 200 {object} map[string]int
// @Failure 400 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /session/import [post]
func (s *Server) importSession(c *gin.Context) {
	if s.engine.Closed() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": mixer.ErrClosed.Error()})
		return
	}
	file, _, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}
	defer func() { _ = file.Close() }()

	snap, err := session.ImportSMF(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	restored := session.Restore(s.engine, snap)
	s.log.Info("session imported", zap.Int("entries", restored))
	c.JSON(http.StatusOK, gin.H{"restored": restored})
}
