// Package server implements the HTTP and WebSocket surface of the room chat
// service.
//
// The Hub is the session gateway: it binds each connection to at most one
// room, turns inbound intents into calls on the room coordinator, and fans
// the resulting events out to the connections that should see them. The
// implementation is organized into files for configuration, the hub, clients,
// the wire protocol, routing, and HTTP handlers.
package server
