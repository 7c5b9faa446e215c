// Package server implements the HTTP and WebSocket transport for the chat relay.
//
// The implementation is organized into specialized files for configuration,
// hub lifecycle, clients, routing, and HTTP handlers. Protocol handling lives
// in package chat; this package only moves frames between sockets and the
// dispatcher.
package server
