package pb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/roach88/quark/internal/codec"
)

// DefaultTimeout bounds each dial and each request/response exchange when
// the caller's context has no earlier deadline.
const DefaultTimeout = 30 * time.Second

// DefaultMaxReply caps the encoded size of a single reply when the dialer
// sets no limit.
const DefaultMaxReply = 64 << 20

// NetDialer connects to the engine over TCP.
type NetDialer struct {
	// Timeout bounds dialing and each exchange. Zero means DefaultTimeout.
	Timeout time.Duration
	// MaxReply caps the bytes of one reply. Zero means DefaultMaxReply.
	MaxReply int64
}

func (d NetDialer) maxReply() int64 {
	if d.MaxReply <= 0 {
		return DefaultMaxReply
	}
	return d.MaxReply
}

func (d NetDialer) timeout() time.Duration {
	if d.Timeout <= 0 {
		return DefaultTimeout
	}
	return d.Timeout
}

// Connect dials ep and logs in. Any failure is a *ConnectionError.
func (d NetDialer) Connect(ctx context.Context, ep Endpoint) (Session, error) {
	dialer := net.Dialer{Timeout: d.timeout()}
	conn, err := dialer.DialContext(ctx, "tcp", ep.Addr())
	if err != nil {
		return nil, &ConnectionError{Endpoint: ep.String(), Stage: StageDial, Err: err}
	}

	reader := &replyReader{r: conn, limit: d.maxReply()}
	s := &netSession{
		endpoint: ep.String(),
		conn:     conn,
		enc:      codec.NewEncoder(conn),
		reader:   reader,
		dec:      codec.NewDecoder(reader),
		timeout:  d.timeout(),
	}

	if _, err := s.Invoke(ctx, OpLogin, ep.Username, ep.Password); err != nil {
		conn.Close()
		var re *RemoteOperationError
		if errors.As(err, &re) {
			err = errors.New(re.Message)
		}
		var ce *ConnectionError
		if errors.As(err, &ce) {
			err = ce.Err
		}
		return nil, &ConnectionError{Endpoint: ep.String(), Stage: StageAuth, Err: err}
	}
	return s, nil
}

type netSession struct {
	endpoint string
	timeout  time.Duration

	mu     sync.Mutex
	conn   net.Conn
	enc    *codec.Encoder
	reader *replyReader
	dec    *codec.Decoder
	closed bool
	// broken holds the read failure that left the stream mid-reply.
	broken error
}

// replyReader budgets each reply separately. The engine only writes in
// response to a request, so resetting before each read covers exactly one
// reply.
type replyReader struct {
	r         io.Reader
	limit     int64
	remaining int64
}

func (r *replyReader) reset() { r.remaining = r.limit }

func (r *replyReader) Read(p []byte) (int, error) {
	if r.remaining <= 0 {
		return 0, fmt.Errorf("%w (%d bytes)", ErrReplyTooLarge, r.limit)
	}
	if int64(len(p)) > r.remaining {
		p = p[:r.remaining]
	}
	n, err := r.r.Read(p)
	r.remaining -= int64(n)
	return n, err
}

func (s *netSession) deadline(ctx context.Context) time.Time {
	d := time.Now().Add(s.timeout)
	if cd, ok := ctx.Deadline(); ok && cd.Before(d) {
		return cd
	}
	return d
}

// Invoke sends one request and waits for its response. Transport failures
// are *ConnectionError; a rejected command is *RemoteOperationError.
func (s *netSession) Invoke(ctx context.Context, op string, args ...any) (RawReply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, &ConnectionError{Endpoint: s.endpoint, Stage: StageInvoke, Err: ErrSessionClosed}
	}
	if s.broken != nil {
		return nil, &ConnectionError{Endpoint: s.endpoint, Stage: StageInvoke, Err: s.broken}
	}
	if err := ctx.Err(); err != nil {
		return nil, &ConnectionError{Endpoint: s.endpoint, Stage: StageInvoke, Err: err}
	}

	// Unblock the exchange if ctx is cancelled mid-flight.
	stop := context.AfterFunc(ctx, func() {
		s.conn.SetDeadline(time.Now())
	})
	defer stop()

	s.conn.SetDeadline(s.deadline(ctx))

	if args == nil {
		args = []any{}
	}
	if err := s.enc.Encode(request{Op: op, Args: args}); err != nil {
		return nil, &ConnectionError{Endpoint: s.endpoint, Stage: StageInvoke, Err: fmt.Errorf("writing %s: %w", op, err)}
	}

	var resp Response
	s.reader.reset()
	if err := s.dec.Decode(&resp); err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		s.broken = fmt.Errorf("reading %s: %w", op, err)
		return nil, &ConnectionError{Endpoint: s.endpoint, Stage: StageInvoke, Err: s.broken}
	}
	if !resp.OK {
		return nil, &RemoteOperationError{Op: op, Message: resp.Error}
	}
	return RawReply(resp.Data), nil
}

// Persist asks the engine to save its configuration under profile.
func (s *netSession) Persist(ctx context.Context, profile string) error {
	_, err := s.Invoke(ctx, OpPersist, profile)
	return err
}

// Disconnect closes the connection. Calling it twice returns
// ErrSessionClosed.
func (s *netSession) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return &ConnectionError{Endpoint: s.endpoint, Stage: StageDisconnect, Err: ErrSessionClosed}
	}
	s.closed = true
	if err := s.conn.Close(); err != nil {
		return &ConnectionError{Endpoint: s.endpoint, Stage: StageDisconnect, Err: err}
	}
	return nil
}
