package pb

import (
	"context"
	"net"
	"strconv"

	"github.com/roach88/quark/internal/codec"
)

// Endpoint is where and as whom to connect.
type Endpoint struct {
	Host     string
	Port     int
	Username string
	Password string
}

// Addr returns host:port.
func (e Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// String identifies the endpoint in errors and logs. Credentials are never
// included.
func (e Endpoint) String() string {
	return e.Username + "@" + e.Addr()
}

// RawReply is the undecoded data of a successful remote call.
type RawReply []byte

// Decode decodes the reply into v. An empty reply leaves v untouched.
func (r RawReply) Decode(v any) error {
	if len(r) == 0 {
		return nil
	}
	return codec.Unmarshal(r, v)
}

// Session is one authenticated conversation with the engine.
type Session interface {
	// Invoke runs one remote operation.
	Invoke(ctx context.Context, op string, args ...any) (RawReply, error)
	// Persist makes the engine write its in-memory configuration to the
	// named profile.
	Persist(ctx context.Context, profile string) error
	// Disconnect ends the session.
	Disconnect() error
}

// Dialer opens authenticated sessions.
type Dialer interface {
	Connect(ctx context.Context, ep Endpoint) (Session, error)
}

// Wire envelope. A request is {op, args}; a response is {ok, error, data}.
type request struct {
	Op   string `cbor:"op"`
	Args []any  `cbor:"args"`
}

type inboundRequest struct {
	Op   string             `cbor:"op"`
	Args []codec.RawMessage `cbor:"args"`
}

// Response is the wire envelope of every reply.
type Response struct {
	OK    bool             `cbor:"ok"`
	Error string           `cbor:"error,omitempty"`
	Data  codec.RawMessage `cbor:"data,omitempty"`
}

// Reserved operation names.
const (
	OpLogin   = "login"
	OpPersist = "persist"
)
