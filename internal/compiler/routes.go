package compiler

import (
	"fmt"

	"github.com/roach88/quark/internal/jasmin"
	"github.com/roach88/quark/internal/model"
)

// CompileRoute builds the engine route for r. filters and connectors are
// the entities r references, resolved in r's order.
//
// At least one connector is required for every kind. Default routes ignore
// filters and use the first connector. Static routes use every filter and
// the first connector. Round-robin and failover routes carry the complete
// filter and connector lists.
func CompileRoute(r model.Route, filters []model.Filter, connectors []model.Connector) (jasmin.Route, error) {
	if err := checkNature(r.Nature); err != nil {
		return nil, err
	}
	if len(connectors) == 0 {
		return nil, Invalid(CodeNoConnectors, "connectors", ErrNoConnectors,
			"route %d (%s) resolves to no connectors", r.Order, r.Nature)
	}

	conns := make([]jasmin.Connector, 0, len(connectors))
	for i, c := range connectors {
		jc, err := routeConnector(r.Nature, c)
		if err != nil {
			return nil, withField(err, fmt.Sprintf("connectors[%d]", i))
		}
		conns = append(conns, jc)
	}

	rate, err := routeRate(r)
	if err != nil {
		return nil, err
	}

	if r.Kind == jasmin.DefaultKind {
		return jasmin.DefaultRoute{Dir: r.Nature, Connector: conns[0], Rate: rate}, nil
	}

	fs, err := compileRuleFilters(r.Nature, filters)
	if err != nil {
		return nil, err
	}

	switch r.Kind {
	case jasmin.StaticKind:
		return jasmin.StaticRoute{Dir: r.Nature, Filters: fs, Connector: conns[0], Rate: rate}, nil
	case jasmin.RandomRoundrobinKind:
		return jasmin.RandomRoundrobinRoute{Dir: r.Nature, Filters: fs, Connectors: conns, Rate: rate}, nil
	case jasmin.FailoverKind:
		return jasmin.FailoverRoute{Dir: r.Nature, Filters: fs, Connectors: conns, Rate: rate}, nil
	}
	return nil, Invalid(CodeUnsupportedKind, "kind", ErrUnsupportedKind, "unsupported route kind %q", r.Kind)
}

// CompileInterceptor builds the engine interceptor for i. The script must
// exist.
func CompileInterceptor(i model.Interceptor, filters []model.Filter) (jasmin.Interceptor, error) {
	if err := checkNature(i.Nature); err != nil {
		return nil, err
	}
	if err := CheckScript(i.Script); err != nil {
		return nil, Invalid(CodeInvalidFilterParam, "script", ErrInvalidFilterParameter, "%v", err)
	}

	switch i.Kind {
	case jasmin.DefaultInterceptorKind:
		return jasmin.DefaultInterceptor{Dir: i.Nature, Script: i.Script}, nil
	case jasmin.StaticInterceptorKind:
		fs, err := compileRuleFilters(i.Nature, filters)
		if err != nil {
			return nil, err
		}
		return jasmin.StaticInterceptor{Dir: i.Nature, Filters: fs, Script: i.Script}, nil
	}
	return nil, Invalid(CodeUnsupportedKind, "kind", ErrUnsupportedKind, "unsupported interceptor kind %q", i.Kind)
}

// RouteFingerprint returns the fingerprint of a compiled route.
func RouteFingerprint(r jasmin.Route) (string, error) {
	return jasmin.Fingerprint(r.Wire())
}

// InterceptorFingerprint returns the fingerprint of a compiled interceptor.
func InterceptorFingerprint(i jasmin.Interceptor) (string, error) {
	return jasmin.Fingerprint(i.Wire())
}

func checkNature(n jasmin.Nature) error {
	if n != jasmin.MT && n != jasmin.MO {
		return Invalid(CodeUnsupportedKind, "nature", ErrUnsupportedKind, "unknown nature %q", n)
	}
	return nil
}

func compileRuleFilters(n jasmin.Nature, filters []model.Filter) ([]jasmin.Filter, error) {
	out := make([]jasmin.Filter, 0, len(filters))
	for i, f := range filters {
		if !f.Nature.Allows(n) {
			return nil, Invalid(CodeNatureMismatch, fmt.Sprintf("filters[%d]", i), nil,
				"filter %q is %s and cannot be used on a %s rule", f.FID, f.Nature, n)
		}
		jf, err := CompileFilter(f)
		if err != nil {
			return nil, withField(err, fmt.Sprintf("filters[%d]", i))
		}
		out = append(out, jf)
	}
	return out, nil
}

// routeConnector maps a stored connector to the reference a route of
// nature n can hold: SMPP client connectors for MT, HTTP connectors for MO.
func routeConnector(n jasmin.Nature, c model.Connector) (jasmin.Connector, error) {
	jc, err := CompileConnector(c)
	if err != nil {
		return nil, err
	}
	switch {
	case n == jasmin.MT && c.Type != model.ConnectorSMPP:
		return nil, Invalid(CodeConnectorTypeMismatch, "connector", nil,
			"MT routes need SMPP connectors, %q is %s", c.CID, c.Type)
	case n == jasmin.MO && c.Type != model.ConnectorHTTP:
		return nil, Invalid(CodeConnectorTypeMismatch, "connector", nil,
			"MO routes need HTTP connectors, %q is %s", c.CID, c.Type)
	}
	return jc, nil
}

func routeRate(r model.Route) (float64, error) {
	if r.Nature != jasmin.MT || r.Rate == nil {
		return 0, nil
	}
	if *r.Rate < 0 {
		return 0, Invalid(CodeInvalidRate, "rate", nil, "rate %v must not be negative", *r.Rate)
	}
	return *r.Rate, nil
}

// withField prefixes the field of a ValidationError.
func withField(err error, prefix string) error {
	if ve, ok := err.(*ValidationError); ok {
		cp := *ve
		if cp.Field == "" {
			cp.Field = prefix
		} else {
			cp.Field = prefix + "." + cp.Field
		}
		return &cp
	}
	return err
}
