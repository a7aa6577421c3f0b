// Package server accepts remote control connections. Each connection carries
// exactly one request and one response; connections are served one at a time.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/james-see/jackmixercc/pkg/mixer"
	"github.com/james-see/jackmixercc/pkg/protocol"
)

const (
	// DefaultPort is the TCP port the control server listens on
	DefaultPort = 9797
	// DefaultReadTimeout bounds how long a client may take to send its request
	DefaultReadTimeout = 3 * time.Second

	maxFrameSize = 512

	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

// Server handles control protocol connections
type Server struct {
	engine      *mixer.Engine
	log         *zap.Logger
	readTimeout time.Duration

	mu       sync.Mutex
	listener net.Listener
	stopChan chan struct{}
	stopOnce sync.Once
}

// Option configures a Server
type Option func(*Server)

// WithReadTimeout sets the per-connection deadline
func WithReadTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.readTimeout = d
		}
	}
}

// WithLogger sets the server logger
func WithLogger(log *zap.Logger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// New creates a server that applies requests to engine
func New(engine *mixer.Engine, opts ...Option) *Server {
	s := &Server{
		engine:      engine,
		log:         zap.NewNop(),
		readTimeout: DefaultReadTimeout,
		stopChan:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListenAndServe listens on addr and serves until ctx is done or Close is called
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, l)
}

// Serve accepts connections on l and handles them sequentially
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()

	select {
	case <-s.stopChan:
		return l.Close()
	default:
	}

	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.stopChan:
		}
	}()

	s.log.Info("control server listening", zap.Stringer("addr", l.Addr()))
	var delay time.Duration
	for {
		conn, err := l.Accept()
		if err != nil {
			select {
			case <-s.stopChan:
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			if delay == 0 {
				delay = minAcceptDelay
			} else {
				delay = min(2*delay, maxAcceptDelay)
			}
			s.log.Warn("accept failed", zap.Error(err), zap.Duration("retry_in", delay))
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-s.stopChan:
				timer.Stop()
				return nil
			}
			continue
		}
		delay = 0
		s.handleConnection(conn)
	}
}

// handleConnection reads one request, answers it and closes the connection.
// Every connection gets an answer, even when the request is unusable.
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	peer := conn.RemoteAddr().String()
	_ = conn.SetReadDeadline(time.Now().Add(s.readTimeout))

	buf := make([]byte, maxFrameSize)
	n, err := conn.Read(buf)
	if err != nil && n == 0 {
		s.log.Warn("read request failed", zap.String("client", peer), zap.Error(err))
	}
	frame := string(buf[:n])
	s.log.Debug("tcp message in", zap.String("client", peer), zap.String("msg", frame))

	answer := s.Handle(frame)

	_ = conn.SetWriteDeadline(time.Now().Add(s.readTimeout))
	if _, err := conn.Write([]byte(answer)); err != nil {
		s.log.Warn("write response failed", zap.String("client", peer), zap.Error(err))
		return
	}
	s.log.Debug("tcp message out", zap.String("client", peer), zap.String("msg", answer))
}

// Handle turns a request frame into its response frame
func (s *Server) Handle(frame string) string {
	req, err := protocol.Decode(frame)
	if err != nil {
		s.log.Info("rejected request", zap.String("frame", frame), zap.Error(err))
		return protocol.EncodeUnknown()
	}

	status, err := s.engine.Apply(req.Channel, req.Command)
	if err != nil {
		s.log.Info("command not applied",
			zap.String("channel", req.Channel),
			zap.Stringer("command", req.Command),
			zap.Error(err),
		)
		return protocol.EncodeUnknown()
	}
	return protocol.Encode(status)
}

// Close stops accepting connections
func (s *Server) Close() error {
	var err error
	s.stopOnce.Do(func() {
		close(s.stopChan)
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.listener != nil {
			err = s.listener.Close()
		}
	})
	return err
}
