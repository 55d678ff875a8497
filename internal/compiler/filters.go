package compiler

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/quark/internal/jasmin"
	"github.com/roach88/quark/internal/model"
)

// transformer validates a raw parameter value and returns the value the
// engine should receive.
type transformer func(v any) (any, error)

// filterSpec describes one filter class. An empty key means the class takes
// no parameter.
type filterSpec struct {
	key       string
	natures   jasmin.Natures
	transform transformer
}

func (s filterSpec) requiresParam() bool { return s.key != "" }

var both = jasmin.Natures{jasmin.MO, jasmin.MT}

// filterRegistry is the closed set of filter classes.
var filterRegistry = map[jasmin.FilterType]filterSpec{
	jasmin.TransparentFilter:     {natures: both},
	jasmin.ConnectorFilter:       {key: "connector", natures: jasmin.Natures{jasmin.MO}, transform: stripped},
	jasmin.UserFilter:            {key: "user", natures: jasmin.Natures{jasmin.MT}, transform: stripped},
	jasmin.GroupFilter:           {key: "group", natures: jasmin.Natures{jasmin.MT}, transform: stripped},
	jasmin.SourceAddrFilter:      {key: "source_addr", natures: both, transform: regex},
	jasmin.DestinationAddrFilter: {key: "destination_addr", natures: both, transform: regex},
	jasmin.ShortMessageFilter:    {key: "short_message", natures: both, transform: regex},
	jasmin.DateIntervalFilter:    {key: "dateInterval", natures: both, transform: dateInterval},
	jasmin.TimeIntervalFilter:    {key: "timeInterval", natures: both, transform: timeInterval},
	jasmin.TagFilter:             {key: "tag", natures: both, transform: tag},
	jasmin.EvalPyFilter:          {key: "pyCode", natures: both, transform: script},
}

// FilterParamKey returns the parameter key of a filter class, or "" if it
// takes none.
func FilterParamKey(t jasmin.FilterType) (string, error) {
	spec, ok := filterRegistry[t]
	if !ok {
		return "", Invalid(CodeUnknownFilterType, "type", ErrUnknownFilterType, "unknown filter type %q", t)
	}
	return spec.key, nil
}

// FilterNatures returns the directions a filter class can apply to.
func FilterNatures(t jasmin.FilterType) (jasmin.Natures, error) {
	spec, ok := filterRegistry[t]
	if !ok {
		return nil, Invalid(CodeUnknownFilterType, "type", ErrUnknownFilterType, "unknown filter type %q", t)
	}
	return spec.natures, nil
}

// ValidateFilterParam checks a parameter against the registry and returns
// the key and transformed value to send.
func ValidateFilterParam(t jasmin.FilterType, p *model.FilterParam) (string, any, error) {
	spec, ok := filterRegistry[t]
	if !ok {
		return "", nil, Invalid(CodeUnknownFilterType, "type", ErrUnknownFilterType, "unknown filter type %q", t)
	}

	if !spec.requiresParam() {
		if p != nil && p.Value != nil {
			return "", nil, Invalid(CodeInvalidFilterParam, "param", ErrInvalidFilterParameter,
				"%s takes no parameter", t)
		}
		return "", nil, nil
	}

	if p == nil || isBlank(p.Value) {
		return "", nil, Invalid(CodeInvalidFilterParam, "param", ErrInvalidFilterParameter,
			"%s requires parameter %q", t, spec.key)
	}
	if p.Key != "" && p.Key != spec.key {
		return "", nil, Invalid(CodeInvalidFilterParam, "param.key", ErrInvalidFilterParameter,
			"%s parameter key must be %q, got %q", t, spec.key, p.Key)
	}

	v, err := spec.transform(p.Value)
	if err != nil {
		return "", nil, Invalid(CodeInvalidFilterParam, "param.value", ErrInvalidFilterParameter,
			"%s: %v", t, err)
	}
	return spec.key, v, nil
}

// CompileFilter validates a stored filter and builds its engine form.
func CompileFilter(f model.Filter) (jasmin.Filter, error) {
	spec, ok := filterRegistry[f.Type]
	if !ok {
		return jasmin.Filter{}, Invalid(CodeUnknownFilterType, "type", ErrUnknownFilterType, "unknown filter type %q", f.Type)
	}

	switch f.Nature {
	case model.FilterAll:
		if len(spec.natures) != len(both) {
			return jasmin.Filter{}, Invalid(CodeNatureMismatch, "nature", nil,
				"%s only applies to %v", f.Type, spec.natures)
		}
	case model.FilterMO, model.FilterMT:
		if !spec.natures.Has(jasmin.Nature(f.Nature)) {
			return jasmin.Filter{}, Invalid(CodeNatureMismatch, "nature", nil,
				"%s cannot apply to %s", f.Type, f.Nature)
		}
	default:
		return jasmin.Filter{}, Invalid(CodeUnsupportedKind, "nature", ErrUnsupportedKind,
			"unknown filter nature %q", f.Nature)
	}

	key, value, err := ValidateFilterParam(f.Type, f.Param)
	if err != nil {
		return jasmin.Filter{}, err
	}
	return jasmin.Filter{FID: f.FID, Type: f.Type, Key: key, Value: value}, nil
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

func asString(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("expected a string, got %T", v)
	}
	return s, nil
}

func stripped(v any) (any, error) {
	s, err := asString(v)
	if err != nil {
		return nil, err
	}
	return strings.TrimSpace(s), nil
}

func regex(v any) (any, error) {
	s, err := asString(v)
	if err != nil {
		return nil, err
	}
	if err := checkPattern(s); err != nil {
		return nil, fmt.Errorf("invalid regex %q: %w", s, err)
	}
	return s, nil
}

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04:05"
)

func splitPair(s string) (string, string, error) {
	parts := strings.Split(s, ";")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("expected two values separated by ';', got %q", s)
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), nil
}

func dateInterval(v any) (any, error) {
	s, err := asString(v)
	if err != nil {
		return nil, err
	}
	a, b, err := splitPair(s)
	if err != nil {
		return nil, err
	}
	start, err := time.Parse(dateLayout, a)
	if err != nil {
		return nil, fmt.Errorf("start date %q is not YYYY-MM-DD", a)
	}
	end, err := time.Parse(dateLayout, b)
	if err != nil {
		return nil, fmt.Errorf("end date %q is not YYYY-MM-DD", b)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("end date %s is before start date %s", b, a)
	}
	return start.Format(dateLayout) + ";" + end.Format(dateLayout), nil
}

func timeInterval(v any) (any, error) {
	s, err := asString(v)
	if err != nil {
		return nil, err
	}
	a, b, err := splitPair(s)
	if err != nil {
		return nil, err
	}
	start, err := time.Parse(timeLayout, a)
	if err != nil {
		return nil, fmt.Errorf("start time %q is not HH:MM:SS", a)
	}
	end, err := time.Parse(timeLayout, b)
	if err != nil {
		return nil, fmt.Errorf("end time %q is not HH:MM:SS", b)
	}
	return start.Format(timeLayout) + ";" + end.Format(timeLayout), nil
}

func tag(v any) (any, error) {
	return toInt(v)
}

// toInt coerces numbers and numeric strings to int.
func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case uint64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("%v is not an integer", n)
		}
		return int(n), nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, fmt.Errorf("%q is not an integer", n)
		}
		return i, nil
	}
	return 0, fmt.Errorf("expected an integer, got %T", v)
}

// ScriptExtension is the extension script files must carry.
const ScriptExtension = ".py"

func script(v any) (any, error) {
	s, err := asString(v)
	if err != nil {
		return nil, err
	}
	if err := CheckScript(s); err != nil {
		return nil, err
	}
	return s, nil
}

// CheckScript verifies that path names an existing regular file with the
// script extension.
func CheckScript(path string) error {
	if filepath.Ext(path) != ScriptExtension {
		return fmt.Errorf("script %q must have a %s extension", path, ScriptExtension)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("script %q: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("script %q is not a regular file", path)
	}
	return nil
}
