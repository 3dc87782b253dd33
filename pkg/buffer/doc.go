// Package buffer provides the byte rings shared between interrupt
// handlers and foreground code.
package buffer

// An interrupt handler is the only producer of a receive ring and the
// only consumer of a transmit ring; foreground code owns the other end.
// Single-byte operations need no locking. Operations touching both
// indices (Reset, Unread, Scrub) run inside a Guard.
