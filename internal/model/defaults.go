package model

// DefaultMTCredential returns the messaging credential given to users
// created without one: every capability but bulk HTTP, permissive value
// filters, and no quota limits.
func DefaultMTCredential() CredentialBundle {
	return CredentialBundle{
		Authorizations: map[string]bool{
			"http_send":                  true,
			"http_balance":               true,
			"http_rate":                  true,
			"http_bulk":                  false,
			"smpps_send":                 true,
			"http_long_content":          true,
			"set_dlr_level":              true,
			"http_set_dlr_method":        true,
			"set_source_address":         true,
			"set_priority":               true,
			"set_validity_period":        true,
			"set_schedule_delivery_time": true,
			"set_hex_content":            true,
		},
		ValueFilters: map[string]string{
			"destination_address": ".*",
			"source_address":      ".*",
			"priority":            "^[0-3]$",
			"validity_period":     `^\d+$`,
			"content":             ".*",
		},
		Defaults: map[string]any{
			"source_address": nil,
		},
		Quotas: map[string]any{
			"balance":                         nil,
			"early_decrement_balance_percent": nil,
			"submit_sm_count":                 nil,
			"http_throughput":                 nil,
			"smpps_throughput":                nil,
			"quota_updated":                   false,
		},
	}
}

// DefaultSMPPCredential returns the SMPP server credential given to users
// created without one: bind allowed, unlimited bindings.
func DefaultSMPPCredential() CredentialBundle {
	return CredentialBundle{
		Authorizations: map[string]bool{"bind": true},
		Quotas:         map[string]any{"max_bindings": "ND"},
	}
}

// DefaultSMPPSettings returns connector settings matching the engine's own
// SMPPClientConfig defaults.
func DefaultSMPPSettings() SMPPSettings {
	return SMPPSettings{
		Host:                              "127.0.0.1",
		Port:                              2775,
		Username:                          "smppclient",
		Password:                          "password",
		Bind:                              "transceiver",
		SessionInitTimerSecs:              30,
		EnquireLinkTimerSecs:              30,
		InactivityTimerSecs:               300,
		ResponseTimerSecs:                 60,
		PDUReadTimerSecs:                  10,
		DLRExpiry:                         86400,
		ReconnectOnConnectionLoss:         true,
		ReconnectOnConnectionFailure:      true,
		ReconnectOnConnectionLossDelay:    10,
		ReconnectOnConnectionFailureDelay: 10,
		SubmitThroughput:                  1,
		RequeueDelay:                      120,
		SourceAddrTON:                     2,
		SourceAddrNPI:                     1,
		DestAddrTON:                       1,
		DestAddrNPI:                       1,
		LogLevel:                          20,
	}
}

// ApplyUserDefaults fills empty credential bundles with the defaults.
func ApplyUserDefaults(u *User) {
	if u.MTCredential.IsZero() {
		u.MTCredential = DefaultMTCredential()
	}
	if u.SMPPCredential.IsZero() {
		u.SMPPCredential = DefaultSMPPCredential()
	}
}
