package model

import (
	"time"

	"github.com/roach88/quark/internal/jasmin"
)

// Group is a namespace users belong to.
type Group struct {
	ID          int64     `json:"id"`
	GID         string    `json:"gid"`
	Description string    `json:"description,omitempty"`
	Enabled     bool      `json:"enabled"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CredentialBundle is a user's credential configuration. The SMPP flavour
// uses only Authorizations and Quotas.
//
// Quota values are numbers, nil or "ND" for unlimited, or a bool for the
// quota_updated flag.
type CredentialBundle struct {
	Authorizations map[string]bool   `json:"authorizations,omitempty" yaml:"authorizations,omitempty"`
	ValueFilters   map[string]string `json:"value_filters,omitempty" yaml:"value_filters,omitempty"`
	Defaults       map[string]any    `json:"defaults,omitempty" yaml:"defaults,omitempty"`
	Quotas         map[string]any    `json:"quotas,omitempty" yaml:"quotas,omitempty"`
}

// IsZero reports whether the bundle carries no sections.
func (b CredentialBundle) IsZero() bool {
	return len(b.Authorizations) == 0 && len(b.ValueFilters) == 0 &&
		len(b.Defaults) == 0 && len(b.Quotas) == 0
}

// User is an engine user. Username is also the remote uid.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Password string `json:"-"`
	GroupID  int64  `json:"group_id"`
	// GID is filled from the owning group when the user is loaded.
	GID            string           `json:"gid"`
	Enabled        bool             `json:"enabled"`
	MTCredential   CredentialBundle `json:"mt_credential"`
	SMPPCredential CredentialBundle `json:"smpps_credential"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// ConnectorType distinguishes SMPP client connectors, which live in the
// engine's SMPP client manager, from HTTP connectors, which only exist as
// route targets.
type ConnectorType string

const (
	ConnectorSMPP ConnectorType = "SMPP"
	ConnectorHTTP ConnectorType = "HTTP"
)

// Connector is a transport endpoint. Exactly one of SMPP or HTTP is set,
// matching Type.
type Connector struct {
	ID        int64         `json:"id"`
	CID       string        `json:"cid"`
	Type      ConnectorType `json:"type"`
	SMPP      *SMPPSettings `json:"smpp,omitempty"`
	HTTP      *HTTPSettings `json:"http,omitempty"`
	Started   bool          `json:"started"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// SMPPSettings is the stored configuration of an SMPP client connector.
// Enumerated fields hold the integer code the compiler maps through its
// lookup tables.
type SMPPSettings struct {
	Host       string `json:"host" yaml:"host"`
	Port       int    `json:"port" yaml:"port"`
	Username   string `json:"username" yaml:"username"`
	Password   string `json:"-" yaml:"password"`
	SystemType string `json:"system_type" yaml:"system_type"`
	Bind       string `json:"bind" yaml:"bind"`

	SessionInitTimerSecs int `json:"session_init_timer_secs" yaml:"session_init_timer_secs"`
	EnquireLinkTimerSecs int `json:"enquire_link_timer_secs" yaml:"enquire_link_timer_secs"`
	InactivityTimerSecs  int `json:"inactivity_timer_secs" yaml:"inactivity_timer_secs"`
	ResponseTimerSecs    int `json:"response_timer_secs" yaml:"response_timer_secs"`
	PDUReadTimerSecs     int `json:"pdu_read_timer_secs" yaml:"pdu_read_timer_secs"`
	DLRExpiry            int `json:"dlr_expiry" yaml:"dlr_expiry"`

	ReconnectOnConnectionLoss         bool `json:"reconnect_on_connection_loss" yaml:"reconnect_on_connection_loss"`
	ReconnectOnConnectionFailure      bool `json:"reconnect_on_connection_failure" yaml:"reconnect_on_connection_failure"`
	ReconnectOnConnectionLossDelay    int  `json:"reconnect_on_connection_loss_delay" yaml:"reconnect_on_connection_loss_delay"`
	ReconnectOnConnectionFailureDelay int  `json:"reconnect_on_connection_failure_delay" yaml:"reconnect_on_connection_failure_delay"`

	SubmitThroughput float64 `json:"submit_throughput" yaml:"submit_throughput"`
	RequeueDelay     int     `json:"requeue_delay" yaml:"requeue_delay"`

	SourceAddr    string `json:"source_addr,omitempty" yaml:"source_addr"`
	SourceAddrTON int    `json:"source_addr_ton" yaml:"source_addr_ton"`
	SourceAddrNPI int    `json:"source_addr_npi" yaml:"source_addr_npi"`
	DestAddrTON   int    `json:"dest_addr_ton" yaml:"dest_addr_ton"`
	DestAddrNPI   int    `json:"dest_addr_npi" yaml:"dest_addr_npi"`
	AddressTON    int    `json:"address_ton" yaml:"address_ton"`
	AddressNPI    int    `json:"address_npi" yaml:"address_npi"`
	AddressRange  string `json:"address_range,omitempty" yaml:"address_range"`

	Priority           int `json:"priority" yaml:"priority"`
	RegisteredDelivery int `json:"registered_delivery" yaml:"registered_delivery"`
	ReplaceIfPresent   int `json:"replace_if_present" yaml:"replace_if_present"`
	DataCoding         int `json:"data_coding" yaml:"data_coding"`
	DLRMsgIDBase       int `json:"dlr_msg_id_base" yaml:"dlr_msg_id_base"`

	LogFile  string `json:"log_file,omitempty" yaml:"log_file"`
	LogLevel int    `json:"log_level" yaml:"log_level"`
}

// HTTPSettings is the configuration of an HTTP connector.
type HTTPSettings struct {
	BaseURL string `json:"base_url" yaml:"base_url"`
	Method  string `json:"method" yaml:"method"`
}

// FilterNature scopes a filter to a direction, or to both.
type FilterNature string

const (
	FilterMO  FilterNature = "MO"
	FilterMT  FilterNature = "MT"
	FilterAll FilterNature = "ALL"
)

// Allows reports whether a filter of this nature may be attached to a rule
// of direction n.
func (fn FilterNature) Allows(n jasmin.Nature) bool {
	return fn == FilterAll || string(fn) == string(n)
}

// FilterParam is the single typed parameter of a filter.
type FilterParam struct {
	Key   string `json:"key" yaml:"key"`
	Value any    `json:"value" yaml:"value"`
}

// Filter is a named predicate over message attributes.
type Filter struct {
	ID        int64             `json:"id"`
	FID       string            `json:"fid"`
	Type      jasmin.FilterType `json:"type"`
	Nature    FilterNature      `json:"nature"`
	Param     *FilterParam      `json:"param,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Route is an ordered routing rule. Order is unique per nature.
// ConnectorIDs keep their position; the first one is the connector used by
// Default and Static kinds.
type Route struct {
	ID           int64            `json:"id"`
	Order        int              `json:"order"`
	Nature       jasmin.Nature    `json:"nature"`
	Kind         jasmin.RouteKind `json:"kind"`
	Rate         *float64         `json:"rate,omitempty"`
	ConnectorIDs []int64          `json:"connector_ids"`
	FilterIDs    []int64          `json:"filter_ids"`
	// Digest is the fingerprint of the route as last compiled.
	Digest    string    `json:"digest,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Interceptor is an ordered rule that runs a script.
type Interceptor struct {
	ID        int64                  `json:"id"`
	Order     int                    `json:"order"`
	Nature    jasmin.Nature          `json:"nature"`
	Kind      jasmin.InterceptorKind `json:"kind"`
	Script    string                 `json:"script"`
	FilterIDs []int64                `json:"filter_ids"`
	Digest    string                 `json:"digest,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}
