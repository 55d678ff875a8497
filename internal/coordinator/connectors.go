package coordinator

import (
	"context"
	"strings"

	"github.com/roach88/quark/internal/compiler"
	"github.com/roach88/quark/internal/jasmin"
	"github.com/roach88/quark/internal/model"
)

// AddConnector creates a connector. Connectors are created stopped. SMPP
// connectors are registered with the engine's client manager; HTTP
// connectors only exist locally until a route references them.
func (c *Coordinator) AddConnector(ctx context.Context, conn model.Connector) (model.Connector, error) {
	if strings.TrimSpace(conn.CID) == "" {
		return model.Connector{}, compiler.Invalid(compiler.CodeInvalidIdentifier, "cid", nil, "connector id is empty")
	}
	conn.Started = false

	var cfg jasmin.SMPPClientConfig
	var err error
	switch conn.Type {
	case model.ConnectorSMPP:
		cfg, err = compiler.CompileSMPPConfig(conn)
	default:
		_, err = compiler.CompileConnector(conn)
	}
	if err != nil {
		return model.Connector{}, err
	}
	if _, err := c.store.GetConnectorByCID(ctx, conn.CID); err == nil {
		return model.Connector{}, compiler.Duplicate("cid", "connector %q already exists", conn.CID)
	}

	m := c.begin("add_connector", "connector", conn.CID)
	var created model.Connector
	create := func(ctx context.Context) error {
		created, err = c.store.CreateConnector(ctx, conn)
		return createError(err, "cid", "connector %q already exists", conn.CID)
	}

	if conn.Type == model.ConnectorHTTP {
		err = m.localOnly(ctx, create)
	} else {
		err = m.localFirst(ctx, create,
			func(ctx context.Context) error {
				return c.smpp.AddConnector(ctx, cfg, c.persist)
			},
			func(ctx context.Context) error {
				return c.store.DeleteConnector(ctx, created.ID)
			},
		)
	}
	if err != nil {
		return model.Connector{}, err
	}
	return created, nil
}

// smppConnector loads an SMPP connector, rejecting HTTP ones for op.
func (c *Coordinator) smppConnector(ctx context.Context, cid, op string) (model.Connector, error) {
	conn, err := c.store.GetConnectorByCID(ctx, cid)
	if err != nil {
		return model.Connector{}, lookupError(err, "cid", "connector", cid)
	}
	if conn.Type != model.ConnectorSMPP {
		return model.Connector{}, compiler.Invalid(compiler.CodeInvalidState, "cid", nil,
			"cannot %s HTTP connector %q", op, cid)
	}
	return conn, nil
}

// StartConnector starts a stopped SMPP connector.
func (c *Coordinator) StartConnector(ctx context.Context, cid string) error {
	conn, err := c.smppConnector(ctx, cid, "start")
	if err != nil {
		return err
	}
	if conn.Started {
		return compiler.Invalid(compiler.CodeInvalidState, "cid", nil, "connector %q is already started", cid)
	}
	before := conn

	m := c.begin("start_connector", "connector", cid)
	return m.localFirst(ctx,
		func(ctx context.Context) error {
			conn.Started = true
			_, err := c.store.UpdateConnector(ctx, conn)
			return err
		},
		func(ctx context.Context) error {
			return c.smpp.StartConnector(ctx, cid, c.persist)
		},
		func(ctx context.Context) error {
			_, err := c.store.UpdateConnector(ctx, before)
			return err
		},
	)
}

// StopConnector stops a started SMPP connector.
func (c *Coordinator) StopConnector(ctx context.Context, cid string) error {
	conn, err := c.smppConnector(ctx, cid, "stop")
	if err != nil {
		return err
	}
	if !conn.Started {
		return compiler.Invalid(compiler.CodeInvalidState, "cid", nil, "connector %q is not started", cid)
	}

	m := c.begin("stop_connector", "connector", cid)
	return m.remoteFirst(ctx,
		func(ctx context.Context) error {
			return c.smpp.StopConnector(ctx, cid, c.persist)
		},
		func(ctx context.Context) error {
			conn.Started = false
			_, err := c.store.UpdateConnector(ctx, conn)
			return err
		},
	)
}

// RemoveConnector removes a connector no route references. A started SMPP
// connector must be stopped first.
func (c *Coordinator) RemoveConnector(ctx context.Context, cid string) error {
	conn, err := c.store.GetConnectorByCID(ctx, cid)
	if err != nil {
		return lookupError(err, "cid", "connector", cid)
	}
	refs, err := c.store.CountConnectorReferences(ctx, conn.ID)
	if err != nil {
		return err
	}
	if refs > 0 {
		return compiler.Referenced("cid", "connector %q is used by %d routes", cid, refs)
	}

	if conn.Type == model.ConnectorSMPP && conn.Started {
		return compiler.Invalid(compiler.CodeInvalidState, "cid", nil, "connector %q must be stopped before removal", cid)
	}

	m := c.begin("remove_connector", "connector", cid)
	remove := func(ctx context.Context) error {
		return c.store.DeleteConnector(ctx, conn.ID)
	}
	if conn.Type == model.ConnectorHTTP {
		return m.localOnly(ctx, remove)
	}
	return m.remoteFirst(ctx,
		func(ctx context.Context) error {
			return c.smpp.RemoveConnector(ctx, cid, c.persist)
		},
		remove,
	)
}

// ListConnectors returns the local connectors.
func (c *Coordinator) ListConnectors(ctx context.Context) ([]model.Connector, error) {
	return c.store.ListConnectors(ctx)
}

// GetConnectorStatus returns the live state of an SMPP connector.
func (c *Coordinator) GetConnectorStatus(ctx context.Context, cid string) (jasmin.ConnectorStatus, error) {
	if _, err := c.smppConnector(ctx, cid, "query"); err != nil {
		return jasmin.ConnectorStatus{}, err
	}
	var status jasmin.ConnectorStatus
	err := c.loop.RunBlocking(ctx, "connector_status "+cid, func(ctx context.Context) error {
		var err error
		status, err = c.smpp.ConnectorStatus(ctx, cid)
		return err
	})
	return status, err
}

// GetConnectorDetails returns the engine's view of an SMPP connector's
// configuration.
func (c *Coordinator) GetConnectorDetails(ctx context.Context, cid string) (map[string]any, error) {
	if _, err := c.smppConnector(ctx, cid, "query"); err != nil {
		return nil, err
	}
	var details map[string]any
	err := c.loop.RunBlocking(ctx, "connector_details "+cid, func(ctx context.Context) error {
		var err error
		details, err = c.smpp.ConnectorDetails(ctx, cid)
		return err
	})
	return details, err
}
