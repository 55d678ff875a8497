package store

import (
	"context"
	"fmt"

	"github.com/roach88/quark/internal/model"
)

const connectorColumns = `id, cid, type, settings, password, started, created_at, updated_at`

// CreateConnector inserts c. The SMPP password is sealed and kept out of
// the settings column.
func (s *Store) CreateConnector(ctx context.Context, c model.Connector) (model.Connector, error) {
	settings, password, err := s.connectorColumns(c)
	if err != nil {
		return model.Connector{}, fmt.Errorf("create connector %s: %w", c.CID, err)
	}

	now := s.now()
	c.CreatedAt, c.UpdatedAt = now, now
	id, err := s.insert(ctx, s.db, `
		INSERT INTO connectors (cid, type, settings, password, started, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.CID, string(c.Type), settings, password, c.Started, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return model.Connector{}, fmt.Errorf("create connector %s: %w", c.CID, err)
	}
	c.ID = id
	return c, nil
}

// GetConnector returns the connector with id.
func (s *Store) GetConnector(ctx context.Context, id int64) (model.Connector, error) {
	return s.scanConnector(s.queryRow(ctx, s.db, `SELECT `+connectorColumns+` FROM connectors WHERE id = ?`, id))
}

// GetConnectorByCID returns the connector with cid.
func (s *Store) GetConnectorByCID(ctx context.Context, cid string) (model.Connector, error) {
	return s.scanConnector(s.queryRow(ctx, s.db, `SELECT `+connectorColumns+` FROM connectors WHERE cid = ?`, cid))
}

// ListConnectors returns every connector ordered by cid.
func (s *Store) ListConnectors(ctx context.Context) ([]model.Connector, error) {
	rows, err := s.query(ctx, s.db, `SELECT `+connectorColumns+` FROM connectors ORDER BY cid`)
	if err != nil {
		return nil, fmt.Errorf("query connectors: %w", err)
	}
	defer rows.Close()

	out := []model.Connector{}
	for rows.Next() {
		c, err := s.scanConnector(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate connectors: %w", err)
	}
	return out, nil
}

// UpdateConnector writes c's settings and started flag.
func (s *Store) UpdateConnector(ctx context.Context, c model.Connector) (model.Connector, error) {
	settings, password, err := s.connectorColumns(c)
	if err != nil {
		return model.Connector{}, fmt.Errorf("update connector %s: %w", c.CID, err)
	}

	c.UpdatedAt = s.now()
	res, err := s.exec(ctx, s.db, `
		UPDATE connectors SET settings = ?, password = ?, started = ?, updated_at = ? WHERE id = ?`,
		settings, password, c.Started, c.UpdatedAt, c.ID)
	if err := affectedOne(res, err); err != nil {
		return model.Connector{}, fmt.Errorf("update connector %s: %w", c.CID, err)
	}
	return c, nil
}

// DeleteConnector removes the connector with id. Connectors used by a
// route are ErrReferenced.
func (s *Store) DeleteConnector(ctx context.Context, id int64) error {
	res, err := s.exec(ctx, s.db, `DELETE FROM connectors WHERE id = ?`, id)
	if err := affectedOne(res, err); err != nil {
		return fmt.Errorf("delete connector %d: %w", id, err)
	}
	return nil
}

// CountConnectors returns the number of connectors.
func (s *Store) CountConnectors(ctx context.Context) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM connectors`)
}

// CountConnectorReferences returns how many routes use the connector.
func (s *Store) CountConnectorReferences(ctx context.Context, id int64) (int, error) {
	return s.count(ctx, `SELECT COUNT(DISTINCT route_id) FROM route_connectors WHERE connector_id = ?`, id)
}

func (s *Store) connectorColumns(c model.Connector) (settings, password string, err error) {
	switch c.Type {
	case model.ConnectorSMPP:
		if c.SMPP == nil {
			return "", "", fmt.Errorf("SMPP connector without SMPP settings")
		}
		if settings, err = marshalColumn("settings", c.SMPP); err != nil {
			return "", "", err
		}
		if password, err = s.sealer.Seal(c.SMPP.Password); err != nil {
			return "", "", fmt.Errorf("seal password: %w", err)
		}
	case model.ConnectorHTTP:
		if c.HTTP == nil {
			return "", "", fmt.Errorf("HTTP connector without HTTP settings")
		}
		if settings, err = marshalColumn("settings", c.HTTP); err != nil {
			return "", "", err
		}
	default:
		return "", "", fmt.Errorf("unknown connector type %q", c.Type)
	}
	return settings, password, nil
}

func (s *Store) scanConnector(row rowScanner) (model.Connector, error) {
	var c model.Connector
	var typ, settings, password string
	err := row.Scan(&c.ID, &c.CID, &typ, &settings, &password, &c.Started, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return model.Connector{}, fmt.Errorf("scan connector: %w", classify(err))
	}
	c.Type = model.ConnectorType(typ)

	switch c.Type {
	case model.ConnectorSMPP:
		c.SMPP = &model.SMPPSettings{}
		if err := unmarshalColumn("settings", settings, c.SMPP); err != nil {
			return model.Connector{}, err
		}
		if c.SMPP.Password, err = s.sealer.Unseal(password); err != nil {
			return model.Connector{}, fmt.Errorf("unseal password of %s: %w", c.CID, err)
		}
	case model.ConnectorHTTP:
		c.HTTP = &model.HTTPSettings{}
		if err := unmarshalColumn("settings", settings, c.HTTP); err != nil {
			return model.Connector{}, err
		}
	}
	return c, nil
}
