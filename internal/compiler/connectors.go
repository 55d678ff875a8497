package compiler

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/roach88/quark/internal/jasmin"
	"github.com/roach88/quark/internal/model"
)

// Enumeration lookup tables, keyed by the stored integer code and yielding
// the engine's enumeration name.
var (
	tonValues = map[int]string{
		0: "UNKNOWN",
		1: "INTERNATIONAL",
		2: "NATIONAL",
		3: "NETWORK_SPECIFIC",
		4: "SUBSCRIBER_NUMBER",
		5: "ALPHANUMERIC",
		6: "ABBREVIATED",
	}

	npiValues = map[int]string{
		0:  "UNKNOWN",
		1:  "ISDN",
		3:  "DATA",
		4:  "TELEX",
		5:  "LAND_MOBILE",
		8:  "NATIONAL",
		9:  "PRIVATE",
		10: "ERMES",
		14: "INTERNET",
		18: "WAP_CLIENT_ID",
	}

	priorityValues = map[int]string{
		0: "LEVEL_0",
		1: "LEVEL_1",
		2: "LEVEL_2",
		3: "LEVEL_3",
	}

	registeredDeliveryValues = map[int]string{
		0: "NO_SMSC_DELIVERY_RECEIPT_REQUESTED",
		1: "SMSC_DELIVERY_RECEIPT_REQUESTED",
		2: "SMSC_DELIVERY_RECEIPT_REQUESTED_FOR_FAILURE",
	}

	replaceIfPresentValues = map[int]string{
		0: "DO_NOT_REPLACE",
		1: "REPLACE",
	}

	// dlrMsgIDBaseValues names the message-id base conversions the engine
	// applies between submit_sm_resp and deliver_sm. The engine takes the
	// code itself.
	dlrMsgIDBaseValues = map[int]string{
		0: "hex to hex",
		1: "dec to hex",
		2: "hex to dec",
	}

	dataCodings = map[int]bool{0: true, 1: true, 2: true, 3: true, 4: true, 5: true, 6: true, 7: true, 8: true, 9: true, 10: true, 13: true, 14: true}

	binds     = map[string]bool{"transceiver": true, "transmitter": true, "receiver": true}
	logLevels = map[int]bool{10: true, 20: true, 30: true, 40: true, 50: true}
)

// CompileConnector builds the reference a route holds for c.
func CompileConnector(c model.Connector) (jasmin.Connector, error) {
	if strings.TrimSpace(c.CID) == "" {
		return nil, Invalid(CodeInvalidIdentifier, "cid", nil, "connector id is empty")
	}
	switch c.Type {
	case model.ConnectorSMPP:
		return jasmin.SMPPClientConnector{ID: c.CID}, nil
	case model.ConnectorHTTP:
		if c.HTTP == nil {
			return nil, Invalid(CodeInvalidConnector, "http", nil, "HTTP connector %q has no settings", c.CID)
		}
		if err := checkHTTP(*c.HTTP); err != nil {
			return nil, err
		}
		return jasmin.HTTPConnector{ID: c.CID, BaseURL: c.HTTP.BaseURL, Method: strings.ToUpper(c.HTTP.Method)}, nil
	}
	return nil, Invalid(CodeUnsupportedKind, "type", ErrUnsupportedKind, "unknown connector type %q", c.Type)
}

func checkHTTP(h model.HTTPSettings) error {
	u, err := url.Parse(h.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Invalid(CodeInvalidConnector, "http.base_url", nil, "base url %q must be an absolute http(s) URL", h.BaseURL)
	}
	switch strings.ToUpper(h.Method) {
	case "GET", "POST":
	default:
		return Invalid(CodeInvalidConnector, "http.method", nil, "method %q must be GET or POST", h.Method)
	}
	return nil
}

// CompileSMPPConfig maps an SMPP connector's settings onto the engine's
// SMPPClientConfig parameters. An empty log file is omitted so the engine
// applies its own default.
func CompileSMPPConfig(c model.Connector) (jasmin.SMPPClientConfig, error) {
	var cfg jasmin.SMPPClientConfig
	if c.Type != model.ConnectorSMPP || c.SMPP == nil {
		return cfg, Invalid(CodeInvalidConnector, "smpp", nil, "connector %q is not an SMPP connector", c.CID)
	}
	if strings.TrimSpace(c.CID) == "" {
		return cfg, Invalid(CodeInvalidIdentifier, "cid", nil, "connector id is empty")
	}
	s := *c.SMPP

	if strings.TrimSpace(s.Host) == "" {
		return cfg, Invalid(CodeInvalidConnector, "smpp.host", nil, "host is empty")
	}
	if s.Port < 1 || s.Port > 65535 {
		return cfg, Invalid(CodeInvalidConnector, "smpp.port", nil, "port %d out of range 1..65535", s.Port)
	}
	if !binds[s.Bind] {
		return cfg, Invalid(CodeInvalidConnector, "smpp.bind", nil, "bind %q must be transceiver, transmitter or receiver", s.Bind)
	}
	for field, v := range map[string]int{
		"session_init_timer_secs":               s.SessionInitTimerSecs,
		"enquire_link_timer_secs":               s.EnquireLinkTimerSecs,
		"inactivity_timer_secs":                 s.InactivityTimerSecs,
		"response_timer_secs":                   s.ResponseTimerSecs,
		"pdu_read_timer_secs":                   s.PDUReadTimerSecs,
		"dlr_expiry":                            s.DLRExpiry,
		"reconnect_on_connection_loss_delay":    s.ReconnectOnConnectionLossDelay,
		"reconnect_on_connection_failure_delay": s.ReconnectOnConnectionFailureDelay,
		"requeue_delay":                         s.RequeueDelay,
	} {
		if v < 0 {
			return cfg, Invalid(CodeInvalidConnector, "smpp."+field, nil, "%d must not be negative", v)
		}
	}
	if s.SubmitThroughput < 0 {
		return cfg, Invalid(CodeInvalidConnector, "smpp.submit_throughput", nil, "%v must not be negative", s.SubmitThroughput)
	}
	if !dataCodings[s.DataCoding] {
		return cfg, Invalid(CodeInvalidEnum, "smpp.data_coding", nil, "unknown data coding %d", s.DataCoding)
	}
	if !logLevels[s.LogLevel] {
		return cfg, Invalid(CodeInvalidEnum, "smpp.log_level", nil, "unknown log level %d", s.LogLevel)
	}

	sourceTON, err := lookup("smpp.source_addr_ton", tonValues, s.SourceAddrTON)
	if err != nil {
		return cfg, err
	}
	sourceNPI, err := lookup("smpp.source_addr_npi", npiValues, s.SourceAddrNPI)
	if err != nil {
		return cfg, err
	}
	destTON, err := lookup("smpp.dest_addr_ton", tonValues, s.DestAddrTON)
	if err != nil {
		return cfg, err
	}
	destNPI, err := lookup("smpp.dest_addr_npi", npiValues, s.DestAddrNPI)
	if err != nil {
		return cfg, err
	}
	addrTON, err := lookup("smpp.address_ton", tonValues, s.AddressTON)
	if err != nil {
		return cfg, err
	}
	addrNPI, err := lookup("smpp.address_npi", npiValues, s.AddressNPI)
	if err != nil {
		return cfg, err
	}
	priority, err := lookup("smpp.priority", priorityValues, s.Priority)
	if err != nil {
		return cfg, err
	}
	registered, err := lookup("smpp.registered_delivery", registeredDeliveryValues, s.RegisteredDelivery)
	if err != nil {
		return cfg, err
	}
	replace, err := lookup("smpp.replace_if_present", replaceIfPresentValues, s.ReplaceIfPresent)
	if err != nil {
		return cfg, err
	}
	if _, err := lookup("smpp.dlr_msg_id_base", dlrMsgIDBaseValues, s.DLRMsgIDBase); err != nil {
		return cfg, err
	}

	cfg.Set("id", c.CID)
	cfg.Set("host", s.Host)
	cfg.Set("port", s.Port)
	cfg.Set("username", s.Username)
	cfg.Set("password", s.Password)
	cfg.Set("systemType", s.SystemType)
	cfg.Set("bindOperation", s.Bind)
	cfg.Set("sessionInitTimerSecs", s.SessionInitTimerSecs)
	cfg.Set("enquireLinkTimerSecs", s.EnquireLinkTimerSecs)
	cfg.Set("inactivityTimerSecs", s.InactivityTimerSecs)
	cfg.Set("responseTimerSecs", s.ResponseTimerSecs)
	cfg.Set("pduReadTimerSecs", s.PDUReadTimerSecs)
	cfg.Set("dlr_expiry", s.DLRExpiry)
	cfg.Set("reconnectOnConnectionLoss", s.ReconnectOnConnectionLoss)
	cfg.Set("reconnectOnConnectionFailure", s.ReconnectOnConnectionFailure)
	cfg.Set("reconnectOnConnectionLossDelay", s.ReconnectOnConnectionLossDelay)
	cfg.Set("reconnectOnConnectionFailureDelay", s.ReconnectOnConnectionFailureDelay)
	cfg.Set("submit_sm_throughput", s.SubmitThroughput)
	cfg.Set("requeue_delay", s.RequeueDelay)
	cfg.Set("source_addr", nullable(s.SourceAddr))
	cfg.Set("source_addr_ton", sourceTON)
	cfg.Set("source_addr_npi", sourceNPI)
	cfg.Set("dest_addr_ton", destTON)
	cfg.Set("dest_addr_npi", destNPI)
	cfg.Set("addressTon", addrTON)
	cfg.Set("addressNpi", addrNPI)
	cfg.Set("addressRange", nullable(s.AddressRange))
	cfg.Set("priority_flag", priority)
	cfg.Set("registered_delivery", registered)
	cfg.Set("replace_if_present_flag", replace)
	cfg.Set("data_coding", s.DataCoding)
	cfg.Set("dlr_msg_id_bases", s.DLRMsgIDBase)
	if s.LogFile != "" {
		cfg.Set("log_file", s.LogFile)
	}
	cfg.Set("log_level", s.LogLevel)

	return cfg, nil
}

func lookup(field string, table map[int]string, code int) (string, error) {
	v, ok := table[code]
	if !ok {
		return "", Invalid(CodeInvalidEnum, field, nil, "unknown code %d", code)
	}
	return v, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// DescribeEnum returns the engine name for a stored code, for display.
func DescribeEnum(table string, code int) string {
	tables := map[string]map[int]string{
		"ton":                 tonValues,
		"npi":                 npiValues,
		"priority":            priorityValues,
		"registered_delivery": registeredDeliveryValues,
		"replace_if_present":  replaceIfPresentValues,
		"dlr_msg_id_base":     dlrMsgIDBaseValues,
	}
	if v, ok := tables[table][code]; ok {
		return v
	}
	return fmt.Sprintf("%d", code)
}
