package pb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/roach88/quark/internal/codec"
)

// HandlerFunc serves one operation. args are the request arguments, still
// encoded. A non-nil result is encoded into the response data.
type HandlerFunc func(ctx context.Context, args []codec.RawMessage) (any, error)

// Authenticator checks login credentials.
type Authenticator func(username, password string) bool

// idleTimeout is how long the server waits for the next request on a
// session.
const idleTimeout = 60 * time.Second

// Server serves the control protocol over TCP. Each connection is one
// session: a login request followed by any number of operations.
//
// Operations are registered with Handle before calling Serve. Unknown
// operations receive an error response.
type Server struct {
	handlers map[string]HandlerFunc
	auth     Authenticator
	logger   *slog.Logger

	// mu serializes handler execution across sessions, mirroring the
	// engine's single-threaded reactor.
	mu sync.Mutex

	activeConnections sync.WaitGroup
}

// NewServer creates a server that accepts logins approved by auth.
func NewServer(auth Authenticator, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		handlers: make(map[string]HandlerFunc),
		auth:     auth,
		logger:   logger,
	}
}

// Handle registers a handler for op. Panics if op is reserved or already
// registered.
func (s *Server) Handle(op string, h HandlerFunc) {
	if op == OpLogin {
		panic("pb.Server: login is handled by the server")
	}
	if _, exists := s.handlers[op]; exists {
		panic(fmt.Sprintf("pb.Server: duplicate handler for op %q", op))
	}
	s.handlers[op] = h
}

// ListenAndServe listens on addr and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts sessions on ln until ctx is cancelled, then waits for
// active sessions to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()

	// Unblock Accept when the context is cancelled.
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	s.logger.Info("control server listening", "addr", ln.Addr().String())

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}

		s.activeConnections.Add(1)
		go func() {
			defer s.activeConnections.Done()
			s.serveSession(ctx, conn)
		}()
	}

	s.activeConnections.Wait()
	return nil
}

func (s *Server) serveSession(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	// Close the connection on shutdown so a blocked Decode returns.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	dec := codec.NewDecoder(conn)
	enc := codec.NewEncoder(conn)
	authenticated := false

	for {
		conn.SetReadDeadline(time.Now().Add(idleTimeout))

		var req inboundRequest
		if err := dec.Decode(&req); err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				s.logger.Debug("session read failed", "remote", conn.RemoteAddr().String(), "error", err)
			}
			return
		}

		if !authenticated {
			if req.Op != OpLogin || !s.login(req.Args) {
				s.write(enc, Response{OK: false, Error: "authentication failed"})
				return
			}
			authenticated = true
			s.write(enc, Response{OK: true})
			continue
		}

		s.write(enc, s.dispatch(ctx, req))
	}
}

func (s *Server) login(args []codec.RawMessage) bool {
	if len(args) != 2 {
		return false
	}
	var user, pass string
	if codec.Unmarshal(args[0], &user) != nil || codec.Unmarshal(args[1], &pass) != nil {
		return false
	}
	return s.auth == nil || s.auth(user, pass)
}

func (s *Server) dispatch(ctx context.Context, req inboundRequest) Response {
	h, ok := s.handlers[req.Op]
	if !ok {
		return Response{OK: false, Error: fmt.Sprintf("unknown op %q", req.Op)}
	}

	s.mu.Lock()
	result, err := h(ctx, req.Args)
	s.mu.Unlock()

	if err != nil {
		s.logger.Debug("op failed", "op", req.Op, "error", err)
		return Response{OK: false, Error: err.Error()}
	}

	resp := Response{OK: true}
	if result != nil {
		data, err := codec.Marshal(result)
		if err != nil {
			return Response{OK: false, Error: fmt.Sprintf("internal: marshaling response: %v", err)}
		}
		resp.Data = data
	}
	return resp
}

func (s *Server) write(enc *codec.Encoder, resp Response) {
	if err := enc.Encode(resp); err != nil {
		s.logger.Debug("failed to write response", "error", err)
	}
}

// DecodeArgs decodes the request arguments into dst, one pointer per
// argument. A count mismatch is an error.
func DecodeArgs(args []codec.RawMessage, dst ...any) error {
	if len(args) != len(dst) {
		return fmt.Errorf("expected %d arguments, got %d", len(dst), len(args))
	}
	for i, a := range args {
		if err := codec.Unmarshal(a, dst[i]); err != nil {
			return fmt.Errorf("argument %d: %w", i, err)
		}
	}
	return nil
}
