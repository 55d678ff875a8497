package jasmin

// CredentialMethod names one mutation on a credential builder.
type CredentialMethod string

const (
	SetAuthorization CredentialMethod = "setAuthorization"
	SetValueFilter   CredentialMethod = "setValueFilter"
	SetDefaultValue  CredentialMethod = "setDefaultValue"
	SetQuota         CredentialMethod = "setQuota"
	UpdateQuota      CredentialMethod = "updateQuota"
)

// CredentialCall is one recorded builder call.
type CredentialCall struct {
	Method CredentialMethod `json:"method"`
	Key    string           `json:"key"`
	Value  any              `json:"value"`
}

// CredentialWire is the flattened state of a credential after all calls.
// A nil quota value means unlimited.
type CredentialWire struct {
	Authorizations map[string]bool   `cbor:"authorizations,omitempty" json:"authorizations,omitempty"`
	ValueFilters   map[string]string `cbor:"value_filters,omitempty" json:"value_filters,omitempty"`
	Defaults       map[string]any    `cbor:"defaults,omitempty" json:"defaults,omitempty"`
	Quotas         map[string]any    `cbor:"quotas,omitempty" json:"quotas,omitempty"`
	// QuotaUpdate is true when quotas were applied with updateQuota.
	QuotaUpdate bool `cbor:"quota_update,omitempty" json:"quota_update,omitempty"`
}

type credential struct {
	state CredentialWire
	calls []CredentialCall
}

func (c *credential) record(m CredentialMethod, key string, value any) {
	c.calls = append(c.calls, CredentialCall{Method: m, Key: key, Value: value})
}

func (c *credential) setAuthorization(key string, v bool) {
	if c.state.Authorizations == nil {
		c.state.Authorizations = make(map[string]bool)
	}
	c.state.Authorizations[key] = v
	c.record(SetAuthorization, key, v)
}

func (c *credential) quota(m CredentialMethod, key string, v any) {
	if c.state.Quotas == nil {
		c.state.Quotas = make(map[string]any)
	}
	c.state.Quotas[key] = v
	if m == UpdateQuota {
		c.state.QuotaUpdate = true
	}
	c.record(m, key, v)
}

// Calls returns the builder calls in the order they were made.
func (c *credential) Calls() []CredentialCall {
	out := make([]CredentialCall, len(c.calls))
	copy(out, c.calls)
	return out
}

// Wire returns the accumulated credential state.
func (c *credential) Wire() CredentialWire { return c.state }

// MTMessagingCredential is the messaging credential of a user: what it may
// send over HTTP and SMPP, with which values, and how much.
type MTMessagingCredential struct{ credential }

// SetAuthorization grants or revokes a capability.
func (c *MTMessagingCredential) SetAuthorization(key string, v bool) { c.setAuthorization(key, v) }

// SetValueFilter restricts a field to values matching a regex.
func (c *MTMessagingCredential) SetValueFilter(key, pattern string) {
	if c.state.ValueFilters == nil {
		c.state.ValueFilters = make(map[string]string)
	}
	c.state.ValueFilters[key] = pattern
	c.record(SetValueFilter, key, pattern)
}

// SetDefaultValue sets a default applied to submitted messages.
func (c *MTMessagingCredential) SetDefaultValue(key string, v any) {
	if c.state.Defaults == nil {
		c.state.Defaults = make(map[string]any)
	}
	c.state.Defaults[key] = v
	c.record(SetDefaultValue, key, v)
}

// SetQuota sets a quota on a credential not yet known to the engine.
func (c *MTMessagingCredential) SetQuota(key string, v any) { c.quota(SetQuota, key, v) }

// UpdateQuota changes a quota on a credential the engine already holds.
func (c *MTMessagingCredential) UpdateQuota(key string, v any) { c.quota(UpdateQuota, key, v) }

// SMPPSCredential is the SMPP server session credential of a user.
type SMPPSCredential struct{ credential }

// SetAuthorization grants or revokes a capability such as bind.
func (c *SMPPSCredential) SetAuthorization(key string, v bool) { c.setAuthorization(key, v) }

// SetQuota sets a quota on a credential not yet known to the engine.
func (c *SMPPSCredential) SetQuota(key string, v any) { c.quota(SetQuota, key, v) }

// UpdateQuota changes a quota on a credential the engine already holds.
func (c *SMPPSCredential) UpdateQuota(key string, v any) { c.quota(UpdateQuota, key, v) }
