// Package chat implements the single-room relay core: a registry of live
// connections and their display names, and a dispatcher that turns inbound
// join, message and typing frames into notices fanned out to the room.
//
// The package knows nothing about sockets. A transport adapts each peer to
// the Conn interface, calls Dispatcher.Connect once, HandleFrame for every
// text frame in arrival order, and Disconnect when its read loop ends.
package chat
