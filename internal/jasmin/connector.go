package jasmin

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Connector is a destination a route can select.
type Connector interface {
	// CID is the connector id the engine knows it by.
	CID() string
	// Class is the engine class name.
	Class() string
	Wire() ConnectorWire
	isConnector()
}

// ConnectorWire is the encoded form of a connector reference.
type ConnectorWire struct {
	Class   string `cbor:"class" json:"class"`
	CID     string `cbor:"cid" json:"cid"`
	BaseURL string `cbor:"base_url,omitempty" json:"base_url,omitempty"`
	Method  string `cbor:"method,omitempty" json:"method,omitempty"`
}

// SMPPClientConnector references a connector managed by the SMPP client
// manager. MT routes select these.
type SMPPClientConnector struct {
	ID string
}

func (c SMPPClientConnector) CID() string   { return c.ID }
func (c SMPPClientConnector) Class() string { return "SmppClientConnector" }
func (c SMPPClientConnector) isConnector()  {}

func (c SMPPClientConnector) Wire() ConnectorWire {
	return ConnectorWire{Class: c.Class(), CID: c.ID}
}

// HTTPConnector delivers MO traffic to an HTTP endpoint.
type HTTPConnector struct {
	ID      string
	BaseURL string
	Method  string
}

func (c HTTPConnector) CID() string   { return c.ID }
func (c HTTPConnector) Class() string { return "HttpConnector" }
func (c HTTPConnector) isConnector()  {}

func (c HTTPConnector) Wire() ConnectorWire {
	return ConnectorWire{Class: c.Class(), CID: c.ID, BaseURL: c.BaseURL, Method: c.Method}
}

// ConnectorFromWire rebuilds a connector reference from its wire form.
func ConnectorFromWire(w ConnectorWire) (Connector, error) {
	switch w.Class {
	case "SmppClientConnector":
		return SMPPClientConnector{ID: w.CID}, nil
	case "HttpConnector":
		return HTTPConnector{ID: w.CID, BaseURL: w.BaseURL, Method: w.Method}, nil
	}
	return nil, fmt.Errorf("unknown connector class %q", w.Class)
}

// ConfigParam is one SMPPClientConfig keyword argument.
type ConfigParam struct {
	Key   string
	Value any
}

// SMPPClientConfig is the parameter set of an SMPP client connector, keyed
// by the engine's SMPPClientConfig argument names. Parameters keep the
// order they were set in.
type SMPPClientConfig struct {
	Params []ConfigParam
}

// Set adds key or replaces its value in place.
func (c *SMPPClientConfig) Set(key string, value any) {
	for i := range c.Params {
		if c.Params[i].Key == key {
			c.Params[i].Value = value
			return
		}
	}
	c.Params = append(c.Params, ConfigParam{Key: key, Value: value})
}

// Get returns the value of key.
func (c SMPPClientConfig) Get(key string) (any, bool) {
	for _, p := range c.Params {
		if p.Key == key {
			return p.Value, true
		}
	}
	return nil, false
}

// ID returns the connector id parameter.
func (c SMPPClientConfig) ID() string {
	v, _ := c.Get("id")
	s, _ := v.(string)
	return s
}

// Wire returns the parameters as a map. CBOR encoding sorts the keys.
func (c SMPPClientConfig) Wire() map[string]any {
	m := make(map[string]any, len(c.Params))
	for _, p := range c.Params {
		m[p.Key] = p.Value
	}
	return m
}

// MarshalJSON writes the parameters as an object in insertion order.
func (c SMPPClientConfig) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range c.Params {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(p.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(p.Value)
		if err != nil {
			return nil, fmt.Errorf("param %s: %w", p.Key, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ConnectorStatus is the live state of an SMPP client connector.
type ConnectorStatus struct {
	CID          string `cbor:"cid" json:"cid"`
	Started      bool   `cbor:"started" json:"started"`
	SessionState string `cbor:"session_state" json:"session_state"`
}
