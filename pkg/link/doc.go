// Package link runs a framed request/reply protocol over a byte stream,
// typically a UART controller stream or a host serial port.
//
// Both ends synchronize by exchanging REQ/ACK control bytes carrying the
// next sequence number they send. Every frame carries a sequence number
// and a frame out of sequence forces a resync. There is no checksum, the
// parity of the UART can be enabled for that.
//
// A Client sends requests and matches replies by the sequence number
// echoed in the first data byte. A Server dispatches requests by code and
// emits events.
package link
