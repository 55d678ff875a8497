package jasmin

// InterceptorKind is the strategy of an interceptor.
type InterceptorKind string

const (
	DefaultInterceptorKind InterceptorKind = "Default"
	StaticInterceptorKind  InterceptorKind = "Static"
)

// Interceptor is a compiled interception rule: like a route, but it runs a
// script instead of selecting a connector.
type Interceptor interface {
	Kind() InterceptorKind
	Nature() Nature
	Class() string
	Wire() InterceptorWire
	isInterceptor()
}

// InterceptorWire is the encoded form of an interceptor.
type InterceptorWire struct {
	Class   string       `cbor:"class" json:"class"`
	Filters []FilterWire `cbor:"filters" json:"filters"`
	Script  string       `cbor:"script" json:"script"`
}

// DefaultInterceptor runs its script for every message.
type DefaultInterceptor struct {
	Dir    Nature
	Script string
}

func (i DefaultInterceptor) Kind() InterceptorKind { return DefaultInterceptorKind }
func (i DefaultInterceptor) Nature() Nature        { return i.Dir }
func (i DefaultInterceptor) Class() string         { return "DefaultInterceptor" }
func (i DefaultInterceptor) isInterceptor()        {}

func (i DefaultInterceptor) Wire() InterceptorWire {
	return InterceptorWire{Class: i.Class(), Filters: []FilterWire{}, Script: i.Script}
}

// StaticInterceptor runs its script when all filters match.
type StaticInterceptor struct {
	Dir     Nature
	Filters []Filter
	Script  string
}

func (i StaticInterceptor) Kind() InterceptorKind { return StaticInterceptorKind }
func (i StaticInterceptor) Nature() Nature        { return i.Dir }
func (i StaticInterceptor) Class() string         { return "Static" + string(i.Dir) + "Interceptor" }
func (i StaticInterceptor) isInterceptor()        {}

func (i StaticInterceptor) Wire() InterceptorWire {
	return InterceptorWire{Class: i.Class(), Filters: wireFilters(i.Filters), Script: i.Script}
}
