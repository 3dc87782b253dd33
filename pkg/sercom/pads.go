package sercom

type padEntry struct {
	pin Pinout
	pad Pad
}

func padRun(fn Function, port Port, first uint8) []padEntry {
	entries := make([]padEntry, 4)
	for n := range entries {
		entries[n] = padEntry{pin: Pin(fn, port, first+uint8(n)), pad: Pad(n)}
	}
	return entries
}

func padList(entries ...[]padEntry) []padEntry {
	var all []padEntry
	for _, e := range entries {
		all = append(all, e...)
	}
	return all
}

// pin multiplexing table of SAMD21 SERCOM pads.
var padTable = map[ID][]padEntry{
	Sercom0: padList(padRun(FunctionC, PortA, 8), padRun(FunctionD, PortA, 4)),
	Sercom1: padRun(FunctionC, PortA, 16),
	Sercom2: padList(padRun(FunctionC, PortA, 12), padRun(FunctionD, PortA, 8)),
	Sercom3: padList(padRun(FunctionC, PortA, 22), padRun(FunctionD, PortA, 16), []padEntry{
		{Pin(FunctionD, PortA, 20), 2},
		{Pin(FunctionD, PortA, 21), 3},
	}),
	Sercom4: padList(padRun(FunctionC, PortB, 12), []padEntry{
		{Pin(FunctionD, PortA, 12), 0},
		{Pin(FunctionD, PortA, 13), 1},
		{Pin(FunctionD, PortB, 10), 2},
		{Pin(FunctionD, PortB, 11), 3},
		{Pin(FunctionD, PortB, 8), 0},
		{Pin(FunctionD, PortB, 9), 1},
	}),
	Sercom5: padList([]padEntry{
		{Pin(FunctionC, PortB, 16), 0},
		{Pin(FunctionC, PortB, 17), 1},
	}, padRun(FunctionD, PortA, 22), []padEntry{
		{Pin(FunctionD, PortB, 22), 2},
		{Pin(FunctionD, PortB, 23), 3},
		{Pin(FunctionD, PortB, 2), 0},
		{Pin(FunctionD, PortB, 3), 1},
		{Pin(FunctionD, PortB, 30), 0},
		{Pin(FunctionD, PortB, 31), 1},
	}),
}

// PadOf returns the pad a pin is routed to on a unit.
func PadOf(id ID, p Pinout) (Pad, bool) {
	for _, e := range padTable[id] {
		if e.pin == p {
			return e.pad, true
		}
	}
	return 0, false
}

// PinPad binds a pin to the pad it must reach.
type PinPad struct {
	Pin Pinout
	Pad Pad
}

// Request asks for a unit able to route pins to pads.
type Request struct {
	// Owner defaults to DefaultOwner of the claimed unit.
	Owner    string
	Protocol Protocol
	Pins     []PinPad
}

// DefaultOwner names the owner of a unit claimed for protocol.
func DefaultOwner(protocol Protocol, id ID) string {
	return protocol.String() + ":" + id.String()
}

// UARTRequest builds the Request for a UART pin pair.
func UARTRequest(owner string, tx, rx Pinout, pads PadConfig) Request {
	txPad, rxPad := pads.Pads()
	return Request{
		Owner:    owner,
		Protocol: ProtocolUART,
		Pins:     []PinPad{{tx, txPad}, {rx, rxPad}},
	}
}

// SPIRequest builds the Request for SPI data and clock pins. The client
// select line is driven as GPIO in host mode and not routed.
func SPIRequest(owner string, mosi, miso, sck Pinout, pads SPIPadConfig) Request {
	do, di, clk, _ := pads.Pads()
	return Request{
		Owner:    owner,
		Protocol: ProtocolSPI,
		Pins:     []PinPad{{mosi, do}, {miso, di}, {sck, clk}},
	}
}

// Routes checks whether unit id can route all pins of the request.
func (r Request) Routes(id ID) bool {
	for _, p := range r.Pins {
		if pad, ok := PadOf(id, p.Pin); !ok || pad != p.Pad {
			return false
		}
	}
	return len(r.Pins) > 0
}
