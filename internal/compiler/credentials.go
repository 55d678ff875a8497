package compiler

import (
	"fmt"
	"sort"

	"github.com/roach88/quark/internal/jasmin"
	"github.com/roach88/quark/internal/model"
)

// Unlimited is the quota value meaning "no limit".
const Unlimited = "ND"

var (
	mtAuthorizationKeys = keySet(
		"http_send", "http_balance", "http_rate", "http_bulk", "smpps_send",
		"http_long_content", "set_dlr_level", "http_set_dlr_method",
		"set_source_address", "set_priority", "set_validity_period",
		"set_schedule_delivery_time", "set_hex_content",
	)
	mtValueFilterKeys = keySet("destination_address", "source_address", "priority", "validity_period", "content")
	mtDefaultKeys     = keySet("source_address")
	mtQuotaKeys       = keySet(
		"balance", "early_decrement_balance_percent", "submit_sm_count",
		"http_throughput", "smpps_throughput", "quota_updated",
	)

	smppAuthorizationKeys = keySet("bind")
	smppQuotaKeys         = keySet("max_bindings")

	// integerQuotas must hold whole numbers.
	integerQuotas = keySet("submit_sm_count", "max_bindings")
)

func keySet(keys ...string) map[string]bool {
	m := make(map[string]bool, len(keys))
	for _, k := range keys {
		m[k] = true
	}
	return m
}

// quotaSetter is SetQuota or UpdateQuota of a credential builder.
type quotaSetter func(key string, v any)

// CompileMTCredential flattens a messaging bundle into builder calls:
// authorizations, value filters, defaults, then quotas, each section in
// key order. Quotas use SetQuota when isNew and UpdateQuota otherwise.
func CompileMTCredential(b model.CredentialBundle, isNew bool) (*jasmin.MTMessagingCredential, error) {
	c := &jasmin.MTMessagingCredential{}

	for _, k := range sortedKeys(b.Authorizations) {
		if !mtAuthorizationKeys[k] {
			return nil, unknownKey("authorizations", k)
		}
		c.SetAuthorization(k, b.Authorizations[k])
	}

	for _, k := range sortedKeys(b.ValueFilters) {
		if !mtValueFilterKeys[k] {
			return nil, unknownKey("value_filters", k)
		}
		pattern := b.ValueFilters[k]
		if err := checkPattern(pattern); err != nil {
			return nil, Invalid(CodeInvalidCredential, "value_filters."+k, nil, "invalid regex %q: %v", pattern, err)
		}
		c.SetValueFilter(k, pattern)
	}

	for _, k := range sortedKeys(b.Defaults) {
		if !mtDefaultKeys[k] {
			return nil, unknownKey("defaults", k)
		}
		v := b.Defaults[k]
		if v != nil {
			if _, ok := v.(string); !ok {
				return nil, Invalid(CodeInvalidCredential, "defaults."+k, nil, "expected a string or null, got %T", v)
			}
		}
		c.SetDefaultValue(k, v)
	}

	set := quotaSetter(c.SetQuota)
	if !isNew {
		set = c.UpdateQuota
	}
	if err := compileQuotas(b.Quotas, mtQuotaKeys, set); err != nil {
		return nil, err
	}
	return c, nil
}

// CompileSMPPCredential flattens an SMPP server bundle. Only authorizations
// and quotas are meaningful for this flavour.
func CompileSMPPCredential(b model.CredentialBundle, isNew bool) (*jasmin.SMPPSCredential, error) {
	if len(b.ValueFilters) > 0 || len(b.Defaults) > 0 {
		return nil, Invalid(CodeInvalidCredential, "smpps_credential", nil,
			"SMPP credentials only support authorizations and quotas")
	}

	c := &jasmin.SMPPSCredential{}
	for _, k := range sortedKeys(b.Authorizations) {
		if !smppAuthorizationKeys[k] {
			return nil, unknownKey("authorizations", k)
		}
		c.SetAuthorization(k, b.Authorizations[k])
	}

	set := quotaSetter(c.SetQuota)
	if !isNew {
		set = c.UpdateQuota
	}
	if err := compileQuotas(b.Quotas, smppQuotaKeys, set); err != nil {
		return nil, err
	}
	return c, nil
}

func compileQuotas(quotas map[string]any, allowed map[string]bool, set quotaSetter) error {
	for _, k := range sortedKeys(quotas) {
		if !allowed[k] {
			return unknownKey("quotas", k)
		}
		v, err := quotaValue(k, quotas[k])
		if err != nil {
			return Invalid(CodeInvalidCredential, "quotas."+k, nil, "%v", err)
		}
		set(k, v)
	}
	return nil
}

// quotaValue normalizes a quota: nil or "ND" is unlimited (nil), numbers
// become float64 or int, quota_updated stays a bool.
func quotaValue(key string, v any) (any, error) {
	if key == "quota_updated" {
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("expected a bool, got %T", v)
		}
		return b, nil
	}
	if v == nil {
		return nil, nil
	}
	if s, ok := v.(string); ok && s == Unlimited {
		return nil, nil
	}

	if integerQuotas[key] {
		n, err := toInt(v)
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, fmt.Errorf("must not be negative")
		}
		return n, nil
	}

	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint64:
		f = float64(n)
	default:
		return nil, fmt.Errorf("expected a number or %q, got %T", Unlimited, v)
	}
	if f < 0 {
		return nil, fmt.Errorf("must not be negative")
	}
	return f, nil
}

func unknownKey(section, key string) error {
	return Invalid(CodeInvalidCredential, section+"."+key, nil, "unknown %s key %q", section, key)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
