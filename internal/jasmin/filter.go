package jasmin

// FilterType is a filter class known to the engine.
type FilterType string

const (
	TransparentFilter     FilterType = "TransparentFilter"
	ConnectorFilter       FilterType = "ConnectorFilter"
	UserFilter            FilterType = "UserFilter"
	GroupFilter           FilterType = "GroupFilter"
	SourceAddrFilter      FilterType = "SourceAddrFilter"
	DestinationAddrFilter FilterType = "DestinationAddrFilter"
	ShortMessageFilter    FilterType = "ShortMessageFilter"
	DateIntervalFilter    FilterType = "DateIntervalFilter"
	TimeIntervalFilter    FilterType = "TimeIntervalFilter"
	TagFilter             FilterType = "TagFilter"
	EvalPyFilter          FilterType = "EvalPyFilter"
)

// FilterTypes lists every filter class in a stable order.
var FilterTypes = []FilterType{
	TransparentFilter,
	ConnectorFilter,
	UserFilter,
	GroupFilter,
	SourceAddrFilter,
	DestinationAddrFilter,
	ShortMessageFilter,
	DateIntervalFilter,
	TimeIntervalFilter,
	TagFilter,
	EvalPyFilter,
}

// Filter is a compiled filter: a class and at most one typed parameter.
type Filter struct {
	FID   string
	Type  FilterType
	Key   string
	Value any
}

// FilterWire is the encoded form of a filter.
type FilterWire struct {
	Class  string         `cbor:"class" json:"class"`
	FID    string         `cbor:"fid,omitempty" json:"fid,omitempty"`
	Params map[string]any `cbor:"params,omitempty" json:"params,omitempty"`
}

// Wire returns the encoded filter.
func (f Filter) Wire() FilterWire {
	w := FilterWire{Class: string(f.Type), FID: f.FID}
	if f.Key != "" {
		w.Params = map[string]any{f.Key: f.Value}
	}
	return w
}

func wireFilters(fs []Filter) []FilterWire {
	out := make([]FilterWire, 0, len(fs))
	for _, f := range fs {
		out = append(out, f.Wire())
	}
	return out
}
