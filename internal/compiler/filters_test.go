package compiler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/quark/internal/jasmin"
	"github.com/roach88/quark/internal/model"
)

func TestValidateFilterParam_UnknownType(t *testing.T) {
	for _, name := range []jasmin.FilterType{"", "RegexFilter", "transparentfilter", "EvalFilter"} {
		_, _, err := ValidateFilterParam(name, nil)
		require.Error(t, err, name)
		assert.ErrorIs(t, err, ErrUnknownFilterType)
		assert.ErrorIs(t, err, ErrValidation)
	}
}

func TestValidateFilterParam_RequiredAndForbidden(t *testing.T) {
	for _, ft := range jasmin.FilterTypes {
		t.Run(string(ft), func(t *testing.T) {
			key, err := FilterParamKey(ft)
			require.NoError(t, err)

			if key == "" {
				_, _, err := ValidateFilterParam(ft, &model.FilterParam{Key: "x", Value: "present"})
				assert.ErrorIs(t, err, ErrInvalidFilterParameter, "forbidden parameter must be rejected")

				_, _, err = ValidateFilterParam(ft, &model.FilterParam{Key: "x", Value: "  "})
				assert.ErrorIs(t, err, ErrInvalidFilterParameter, "blank forbidden parameter must be rejected")

				_, _, err = ValidateFilterParam(ft, &model.FilterParam{Value: ""})
				assert.ErrorIs(t, err, ErrInvalidFilterParameter, "empty forbidden parameter must be rejected")

				_, _, err = ValidateFilterParam(ft, &model.FilterParam{Key: "x"})
				assert.NoError(t, err, "a key without a value is no parameter")

				_, _, err = ValidateFilterParam(ft, nil)
				assert.NoError(t, err)
				return
			}

			_, _, err = ValidateFilterParam(ft, nil)
			assert.ErrorIs(t, err, ErrInvalidFilterParameter, "missing parameter must be rejected")

			_, _, err = ValidateFilterParam(ft, &model.FilterParam{Key: key, Value: "  "})
			assert.ErrorIs(t, err, ErrInvalidFilterParameter, "blank parameter must be rejected")
		})
	}
}

func TestValidateFilterParam_Transformers(t *testing.T) {
	script := writeScript(t, "tagger.py")

	tests := []struct {
		name    string
		ft      jasmin.FilterType
		value   any
		want    any
		wantErr bool
	}{
		{"connector stripped", jasmin.ConnectorFilter, "  smppc_1 ", "smppc_1", false},
		{"user stripped", jasmin.UserFilter, "alice\t", "alice", false},
		{"group stripped", jasmin.GroupFilter, " gold", "gold", false},
		{"group not string", jasmin.GroupFilter, 3, nil, true},
		{"regex ok", jasmin.DestinationAddrFilter, `^\+?256\d+$`, `^\+?256\d+$`, false},
		{"regex bad", jasmin.SourceAddrFilter, "([a-z", nil, true},
		{"regex negative lookahead", jasmin.DestinationAddrFilter, `^(?!\+1)\d+$`, `^(?!\+1)\d+$`, false},
		{"regex lookbehind", jasmin.ShortMessageFilter, `(?<=PIN )\d{4}`, `(?<=PIN )\d{4}`, false},
		{"regex backreference", jasmin.SourceAddrFilter, `^(\d)\1+$`, `^(\d)\1+$`, false},
		{"regex unbalanced lookahead", jasmin.ShortMessageFilter, "(?=x", nil, true},
		{"date ok", jasmin.DateIntervalFilter, "2024-01-05; 2024-01-10", "2024-01-05;2024-01-10", false},
		{"date same day", jasmin.DateIntervalFilter, "2024-01-05;2024-01-05", "2024-01-05;2024-01-05", false},
		{"date reversed", jasmin.DateIntervalFilter, "2024-01-10;2024-01-05", nil, true},
		{"date one value", jasmin.DateIntervalFilter, "2024-01-10", nil, true},
		{"date three values", jasmin.DateIntervalFilter, "2024-01-01;2024-01-02;2024-01-03", nil, true},
		{"date malformed", jasmin.DateIntervalFilter, "2024/01/01;2024-01-02", nil, true},
		{"time ok", jasmin.TimeIntervalFilter, "08:00:00;17:30:00", "08:00:00;17:30:00", false},
		{"time wraps midnight", jasmin.TimeIntervalFilter, "22:00:00;06:00:00", "22:00:00;06:00:00", false},
		{"time malformed", jasmin.TimeIntervalFilter, "8h;17h", nil, true},
		{"tag int", jasmin.TagFilter, 12, 12, false},
		{"tag string", jasmin.TagFilter, " 42 ", 42, false},
		{"tag whole float", jasmin.TagFilter, 7.0, 7, false},
		{"tag fraction", jasmin.TagFilter, 7.5, nil, true},
		{"tag text", jasmin.TagFilter, "seven", nil, true},
		{"script ok", jasmin.EvalPyFilter, script, script, false},
		{"script missing", jasmin.EvalPyFilter, "/nonexistent/filter.py", nil, true},
		{"script wrong extension", jasmin.EvalPyFilter, writeScript(t, "filter.sh"), nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, got, err := ValidateFilterParam(tt.ft, &model.FilterParam{Value: tt.value})
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidFilterParameter)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateFilterParam_KeyMismatch(t *testing.T) {
	_, _, err := ValidateFilterParam(jasmin.DestinationAddrFilter, &model.FilterParam{Key: "source_addr", Value: ".*"})
	assert.ErrorIs(t, err, ErrInvalidFilterParameter)

	key, _, err := ValidateFilterParam(jasmin.DestinationAddrFilter, &model.FilterParam{Value: ".*"})
	require.NoError(t, err)
	assert.Equal(t, "destination_addr", key, "empty key defaults to the class key")
}

func TestCompileFilter_Natures(t *testing.T) {
	_, err := CompileFilter(filter("c", jasmin.ConnectorFilter, model.FilterMT, "connector", "smppc_1"))
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, CodeNatureMismatch, ve.Code)

	_, err = CompileFilter(filter("u", jasmin.UserFilter, model.FilterAll, "user", "alice"))
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, CodeNatureMismatch, ve.Code)

	f, err := CompileFilter(filter("all", jasmin.TransparentFilter, model.FilterAll, "", nil))
	require.NoError(t, err)
	assert.Equal(t, jasmin.Filter{FID: "all", Type: jasmin.TransparentFilter}, f)

	_, err = CompileFilter(filter("bad", jasmin.TransparentFilter, "BOTH", "", nil))
	assert.ErrorIs(t, err, ErrUnsupportedKind)
}

func TestValidationError_Format(t *testing.T) {
	err := Invalid(CodeNoConnectors, "connectors", ErrNoConnectors, "route %d has none", 3)
	assert.Equal(t, "[E203] connectors: route 3 has none", err.Error())
	assert.True(t, IsValidationError(err))
	assert.True(t, errors.Is(err, ErrValidation))
	assert.True(t, errors.Is(err, ErrNoConnectors))
	assert.False(t, errors.Is(err, ErrDuplicate))
}
