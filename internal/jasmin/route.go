package jasmin

// RouteKind is the routing strategy of a route, independent of nature.
type RouteKind string

const (
	DefaultKind          RouteKind = "Default"
	StaticKind           RouteKind = "Static"
	RandomRoundrobinKind RouteKind = "RandomRoundrobin"
	FailoverKind         RouteKind = "Failover"
)

// RouteKinds lists every route kind.
var RouteKinds = []RouteKind{DefaultKind, StaticKind, RandomRoundrobinKind, FailoverKind}

// Route is a compiled routing rule.
type Route interface {
	Kind() RouteKind
	Nature() Nature
	// Class is the engine class name, e.g. StaticMTRoute.
	Class() string
	Wire() RouteWire
	isRoute()
}

// RouteWire is the encoded form of a route. Rate is only present on MT
// routes.
type RouteWire struct {
	Class      string          `cbor:"class" json:"class"`
	Filters    []FilterWire    `cbor:"filters" json:"filters"`
	Connectors []ConnectorWire `cbor:"connectors" json:"connectors"`
	Rate       *float64        `cbor:"rate,omitempty" json:"rate,omitempty"`
}

func natureClass(kind RouteKind, n Nature, suffix string) string {
	return string(kind) + string(n) + suffix
}

func rateFor(n Nature, rate float64) *float64 {
	if n != MT {
		return nil
	}
	return &rate
}

// DefaultRoute matches everything and selects one connector. It is the
// fallback at order 0.
type DefaultRoute struct {
	Dir       Nature
	Connector Connector
	Rate      float64
}

func (r DefaultRoute) Kind() RouteKind { return DefaultKind }
func (r DefaultRoute) Nature() Nature  { return r.Dir }
func (r DefaultRoute) Class() string   { return "DefaultRoute" }
func (r DefaultRoute) isRoute()        {}

func (r DefaultRoute) Wire() RouteWire {
	return RouteWire{
		Class:      r.Class(),
		Filters:    []FilterWire{},
		Connectors: []ConnectorWire{r.Connector.Wire()},
		Rate:       rateFor(r.Dir, r.Rate),
	}
}

// StaticRoute selects one connector when all filters match.
type StaticRoute struct {
	Dir       Nature
	Filters   []Filter
	Connector Connector
	Rate      float64
}

func (r StaticRoute) Kind() RouteKind { return StaticKind }
func (r StaticRoute) Nature() Nature  { return r.Dir }
func (r StaticRoute) Class() string   { return natureClass(StaticKind, r.Dir, "Route") }
func (r StaticRoute) isRoute()        {}

func (r StaticRoute) Wire() RouteWire {
	return RouteWire{
		Class:      r.Class(),
		Filters:    wireFilters(r.Filters),
		Connectors: []ConnectorWire{r.Connector.Wire()},
		Rate:       rateFor(r.Dir, r.Rate),
	}
}

// RandomRoundrobinRoute picks a random connector among its list when all
// filters match.
type RandomRoundrobinRoute struct {
	Dir        Nature
	Filters    []Filter
	Connectors []Connector
	Rate       float64
}

func (r RandomRoundrobinRoute) Kind() RouteKind { return RandomRoundrobinKind }
func (r RandomRoundrobinRoute) Nature() Nature  { return r.Dir }
func (r RandomRoundrobinRoute) Class() string   { return natureClass(RandomRoundrobinKind, r.Dir, "Route") }
func (r RandomRoundrobinRoute) isRoute()        {}

func (r RandomRoundrobinRoute) Wire() RouteWire {
	return RouteWire{
		Class:      r.Class(),
		Filters:    wireFilters(r.Filters),
		Connectors: wireConnectors(r.Connectors),
		Rate:       rateFor(r.Dir, r.Rate),
	}
}

// FailoverRoute picks the first available connector when all filters
// match.
type FailoverRoute struct {
	Dir        Nature
	Filters    []Filter
	Connectors []Connector
	Rate       float64
}

func (r FailoverRoute) Kind() RouteKind { return FailoverKind }
func (r FailoverRoute) Nature() Nature  { return r.Dir }
func (r FailoverRoute) Class() string   { return natureClass(FailoverKind, r.Dir, "Route") }
func (r FailoverRoute) isRoute()        {}

func (r FailoverRoute) Wire() RouteWire {
	return RouteWire{
		Class:      r.Class(),
		Filters:    wireFilters(r.Filters),
		Connectors: wireConnectors(r.Connectors),
		Rate:       rateFor(r.Dir, r.Rate),
	}
}

func wireConnectors(cs []Connector) []ConnectorWire {
	out := make([]ConnectorWire, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.Wire())
	}
	return out
}

// OrderedRoute pairs a route's wire form with its position in the table,
// as returned by the engine's route listing.
type OrderedRoute struct {
	Order int       `cbor:"order" json:"order"`
	Route RouteWire `cbor:"route" json:"route"`
}
