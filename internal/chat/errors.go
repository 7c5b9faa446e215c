package chat

import "errors"

var (
	// ErrEmptyName is returned when a claimed display name is blank after trimming.
	ErrEmptyName = errors.New("username must not be empty")
	// ErrNameTooLong is returned when a claimed display name exceeds MaxNameLength.
	ErrNameTooLong = errors.New("username too long")
	// ErrNameTaken is returned when another live connection holds the name.
	ErrNameTaken = errors.New("username already taken")
	// ErrAlreadyJoined is returned when a named connection tries to claim again.
	ErrAlreadyJoined = errors.New("connection already joined")
	// ErrUnknownConn is returned for connections that are not in the live set.
	ErrUnknownConn = errors.New("connection not registered")

	// ErrConnClosed is returned by Conn.Send once the connection is closed.
	ErrConnClosed = errors.New("connection closed")
	// ErrSendBufferFull is returned by Conn.Send when the peer is not draining.
	ErrSendBufferFull = errors.New("send buffer full")

	// ErrMalformedFrame wraps frames that are not a JSON object at all.
	ErrMalformedFrame = errors.New("malformed frame")
	// ErrMalformedPayload wraps well-formed envelopes whose fields have the wrong shape.
	ErrMalformedPayload = errors.New("malformed payload")
)
