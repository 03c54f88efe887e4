// Package audit relays auth events to a sink through a buffered channel so
// that slow sinks never sit on the request path.
//
// The package does not decide which events are emitted; the Engine does.
package audit
