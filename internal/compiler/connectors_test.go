package compiler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/quark/internal/jasmin"
	"github.com/roach88/quark/internal/model"
)

func TestCompileSMPPConfig_DefaultsGolden(t *testing.T) {
	cfg, err := CompileSMPPConfig(smppConnector("smppc_orange"))
	require.NoError(t, err)

	_, hasLogFile := cfg.Get("log_file")
	assert.False(t, hasLogFile, "absent log file is omitted")

	assertGolden(t, "connector_smpp_defaults", cfg)
}

func TestCompileSMPPConfig_LookupTables(t *testing.T) {
	c := smppConnector("smppc_x")
	c.SMPP.SourceAddrTON = 5
	c.SMPP.SourceAddrNPI = 0
	c.SMPP.DestAddrNPI = 18
	c.SMPP.Priority = 3
	c.SMPP.RegisteredDelivery = 2
	c.SMPP.ReplaceIfPresent = 1
	c.SMPP.DLRMsgIDBase = 2
	c.SMPP.SourceAddr = "ACME"
	c.SMPP.LogFile = "/var/log/jasmin/smppc_x.log"

	cfg, err := CompileSMPPConfig(c)
	require.NoError(t, err)

	want := map[string]any{
		"source_addr_ton":         "ALPHANUMERIC",
		"source_addr_npi":         "UNKNOWN",
		"dest_addr_npi":           "WAP_CLIENT_ID",
		"priority_flag":           "LEVEL_3",
		"registered_delivery":     "SMSC_DELIVERY_RECEIPT_REQUESTED_FOR_FAILURE",
		"replace_if_present_flag": "REPLACE",
		"dlr_msg_id_bases":        2,
		"source_addr":             "ACME",
		"log_file":                "/var/log/jasmin/smppc_x.log",
	}
	for k, v := range want {
		got, ok := cfg.Get(k)
		require.True(t, ok, k)
		assert.Equal(t, v, got, k)
	}
}

func TestCompileSMPPConfig_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.SMPPSettings)
		code   string
	}{
		{"empty host", func(s *model.SMPPSettings) { s.Host = "" }, CodeInvalidConnector},
		{"port zero", func(s *model.SMPPSettings) { s.Port = 0 }, CodeInvalidConnector},
		{"port too large", func(s *model.SMPPSettings) { s.Port = 70000 }, CodeInvalidConnector},
		{"bad bind", func(s *model.SMPPSettings) { s.Bind = "both" }, CodeInvalidConnector},
		{"negative timer", func(s *model.SMPPSettings) { s.EnquireLinkTimerSecs = -1 }, CodeInvalidConnector},
		{"negative throughput", func(s *model.SMPPSettings) { s.SubmitThroughput = -0.5 }, CodeInvalidConnector},
		{"unknown ton", func(s *model.SMPPSettings) { s.SourceAddrTON = 9 }, CodeInvalidEnum},
		{"unknown npi", func(s *model.SMPPSettings) { s.AddressNPI = 2 }, CodeInvalidEnum},
		{"unknown priority", func(s *model.SMPPSettings) { s.Priority = 4 }, CodeInvalidEnum},
		{"unknown registered delivery", func(s *model.SMPPSettings) { s.RegisteredDelivery = 3 }, CodeInvalidEnum},
		{"unknown replace flag", func(s *model.SMPPSettings) { s.ReplaceIfPresent = 2 }, CodeInvalidEnum},
		{"unknown dlr base", func(s *model.SMPPSettings) { s.DLRMsgIDBase = 7 }, CodeInvalidEnum},
		{"unknown data coding", func(s *model.SMPPSettings) { s.DataCoding = 11 }, CodeInvalidEnum},
		{"unknown log level", func(s *model.SMPPSettings) { s.LogLevel = 15 }, CodeInvalidEnum},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := smppConnector("smppc_x")
			tt.mutate(c.SMPP)

			_, err := CompileSMPPConfig(c)
			var ve *ValidationError
			require.True(t, errors.As(err, &ve), "want ValidationError, got %v", err)
			assert.Equal(t, tt.code, ve.Code)
		})
	}
}

func TestCompileSMPPConfig_RequiresSMPPConnector(t *testing.T) {
	_, err := CompileSMPPConfig(httpConnector("http_x"))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCompileConnector(t *testing.T) {
	c, err := CompileConnector(smppConnector("smppc_1"))
	require.NoError(t, err)
	assert.Equal(t, jasmin.SMPPClientConnector{ID: "smppc_1"}, c)

	h, err := CompileConnector(httpConnector("http_1"))
	require.NoError(t, err)
	assert.Equal(t, jasmin.HTTPConnector{ID: "http_1", BaseURL: "http://crm.local/mo", Method: "POST"}, h)

	bad := httpConnector("http_2")
	bad.HTTP.BaseURL = "crm.local"
	_, err = CompileConnector(bad)
	assert.ErrorIs(t, err, ErrValidation)

	bad = httpConnector("http_3")
	bad.HTTP.Method = "PUT"
	_, err = CompileConnector(bad)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = CompileConnector(model.Connector{CID: "x", Type: "SMTP"})
	assert.ErrorIs(t, err, ErrUnsupportedKind)

	_, err = CompileConnector(model.Connector{Type: model.ConnectorSMPP})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestDescribeEnum(t *testing.T) {
	assert.Equal(t, "INTERNATIONAL", DescribeEnum("ton", 1))
	assert.Equal(t, "hex to dec", DescribeEnum("dlr_msg_id_base", 2))
	assert.Equal(t, "99", DescribeEnum("ton", 99))
}
