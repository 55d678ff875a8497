// Package jasmin models the objects the remote Jasmin router and SMPP
// client manager accept over their control interface.
//
// Everything here is a compiled projection: values are built by the
// compiler package from local entities and only ever sent to the engine.
// Routes, interceptors and connectors are closed sets of variants. A
// type switch over Route, Interceptor or Connector is exhaustive over the
// types declared in this package.
//
// Each object has a wire form (the Wire method) which is what travels in
// the CBOR request, and which Fingerprint hashes.
package jasmin
