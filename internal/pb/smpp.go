package pb

import (
	"context"

	"github.com/roach88/quark/internal/jasmin"
)

// SMPP client manager operation names.
const (
	OpConnectorAdd     = "connector_add"
	OpConnectorStart   = "connector_start"
	OpConnectorStop    = "connector_stop"
	OpConnectorRemove  = "connector_remove"
	OpConnectorDetails = "connector_details"
	OpServiceStatus    = "service_status"
	OpSessionState     = "session_state"
)

// ServiceStarted is the service status code of a running connector.
const ServiceStarted = 1

// SMPPClient manages the engine's SMPP client connectors.
type SMPPClient struct {
	controlClient
}

// NewSMPPClient creates a client for the SMPP client manager endpoint.
func NewSMPPClient(d Dialer, ep Endpoint, opts ...ClientOption) *SMPPClient {
	return &SMPPClient{controlClient: newControlClient(d, ep, opts)}
}

// AddConnector registers a connector. It starts stopped.
func (c *SMPPClient) AddConnector(ctx context.Context, cfg jasmin.SMPPClientConfig, persist bool) error {
	return c.invoke(ctx, OpConnectorAdd, persist, cfg.Wire())
}

// StartConnector starts a connector's service.
func (c *SMPPClient) StartConnector(ctx context.Context, cid string, persist bool) error {
	return c.invoke(ctx, OpConnectorStart, persist, cid)
}

// StopConnector stops a connector's service.
func (c *SMPPClient) StopConnector(ctx context.Context, cid string, persist bool) error {
	return c.invoke(ctx, OpConnectorStop, persist, cid)
}

// RemoveConnector unregisters a connector.
func (c *SMPPClient) RemoveConnector(ctx context.Context, cid string, persist bool) error {
	return c.invoke(ctx, OpConnectorRemove, persist, cid)
}

// ConnectorStatus reads the service status and session state of a
// connector in one session.
func (c *SMPPClient) ConnectorStatus(ctx context.Context, cid string) (jasmin.ConnectorStatus, error) {
	status := jasmin.ConnectorStatus{CID: cid}
	err := c.withSession(ctx, OpServiceStatus, false, func(ctx context.Context, s Session) error {
		reply, err := s.Invoke(ctx, OpServiceStatus, cid)
		if err != nil {
			return err
		}
		var code int
		if err := reply.Decode(&code); err != nil {
			return err
		}
		status.Started = code == ServiceStarted

		reply, err = s.Invoke(ctx, OpSessionState, cid)
		if err != nil {
			return err
		}
		return reply.Decode(&status.SessionState)
	})
	if err != nil {
		return jasmin.ConnectorStatus{}, err
	}
	return status, nil
}

// ConnectorDetails returns the engine's view of a connector's
// configuration.
func (c *SMPPClient) ConnectorDetails(ctx context.Context, cid string) (map[string]any, error) {
	var out map[string]any
	if err := c.read(ctx, OpConnectorDetails, &out, cid); err != nil {
		return nil, err
	}
	return out, nil
}
