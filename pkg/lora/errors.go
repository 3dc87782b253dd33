package lora

import "errors"

var (
	// ErrInvalidConfig indicates a radio setting out of range.
	ErrInvalidConfig = errors.New("invalid radio config")
	// ErrTooLarge indicates a payload over MaxPayload bytes.
	ErrTooLarge = errors.New("payload too large")
	// ErrTimeout indicates the radio timed out before the packet was sent
	// or received.
	ErrTimeout = errors.New("radio timeout")
	// ErrCRC indicates a packet received with a bad CRC.
	ErrCRC = errors.New("packet crc error")
	// ErrNoPacket indicates the radio interrupt fired without a packet.
	ErrNoPacket = errors.New("no packet")
	// ErrTxFailed indicates the radio interrupt fired without TxDone.
	ErrTxFailed = errors.New("transmit failed")
	// ErrRXFull indicates the received data buffer has no room for a
	// packet.
	ErrRXFull = errors.New("receive buffer full")
)
