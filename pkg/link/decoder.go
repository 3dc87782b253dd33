package link

// State is the synchronization state of a link.
type State int

// State bits.
const (
	// Syncing means the peer sequence is unknown.
	Syncing State = 0
	// Ready means frames can be sent and received.
	Ready State = 0x01
	// Busy means a sync exchange or a frame is partially received.
	Busy State = 0x02
)

// IsReady reports whether frames can be exchanged.
func (s State) IsReady() bool {
	return s&Ready != 0
}

// IsBusy reports whether a sync exchange or a frame is in progress.
func (s State) IsBusy() bool {
	return s&Busy != 0
}

func (s State) String() string {
	switch s {
	case Syncing:
		return "syncing"
	case Syncing | Busy:
		return "syncing+busy"
	case Ready:
		return "ready"
	case Ready | Busy:
		return "ready+busy"
	}
	return "invalid"
}

// Control bytes.
const (
	CtlREQ byte = 0xff
	CtlACK byte = 0xfe
)

// Step is the outcome of feeding the decoder.
type Step struct {
	// Ctl is a control byte to send, followed by the local sequence.
	Ctl   byte
	State State
	Frame *Frame
}

// RestartTimer reports whether the resync timer should be (re)started.
// The timer is stopped when the step leaves the link ready and idle.
func (s Step) RestartTimer() bool {
	return s.State.IsBusy() || s.Ctl == CtlREQ
}

type decodeState int

const (
	awaitSync    decodeState = iota // REQ sent, waiting for REQ or ACK
	awaitReqSeq                     // got REQ, waiting for its sequence
	awaitAckSeq                     // got ACK, waiting for its sequence
	awaitSeq                        // idle, waiting for the next frame
	awaitLateAck                    // got ACK while ready
	awaitCode
	awaitLen
	awaitData
)

// Decoder turns received bytes into frames. It is not safe for concurrent
// use.
type Decoder struct {
	peer  Seq
	state decodeState
	frame *Frame
	got   int
}

// State returns the synchronization state.
func (d *Decoder) State() State {
	switch {
	case d.state == awaitSync:
		return Syncing
	case d.state == awaitSeq:
		return Ready
	case d.state > awaitSeq:
		return Ready | Busy
	}
	return Syncing | Busy
}

// Reset drops any progress and asks the peer to resync.
func (d *Decoder) Reset() Step {
	d.frame = nil
	return d.step(d.resync())
}

// Timeout is called when the resync timer expires. Anything but an idle
// ready link is resynchronized.
func (d *Decoder) Timeout() Step {
	if d.state == awaitSeq {
		return d.step(0, nil)
	}
	return d.step(d.resync())
}

// Feed consumes one byte.
func (d *Decoder) Feed(b byte) Step {
	return d.step(d.feed(b))
}

func (d *Decoder) step(ctl byte, f *Frame) Step {
	return Step{Ctl: ctl, State: d.State(), Frame: f}
}

func (d *Decoder) feed(b byte) (byte, *Frame) {
	switch d.state {
	case awaitSync:
		if b == CtlREQ {
			d.state = awaitReqSeq
		} else if b == CtlACK {
			d.state = awaitAckSeq
		}
	case awaitReqSeq, awaitAckSeq:
		seq := Seq(b)
		if !seq.IsValid() {
			return d.resync()
		}
		reply := byte(0)
		if d.state == awaitReqSeq {
			reply = CtlACK
		}
		d.peer, d.state = seq, awaitSeq
		return reply, nil
	case awaitSeq:
		switch {
		case b == CtlREQ:
			d.state = awaitReqSeq
		case b == CtlACK:
			d.state = awaitLateAck
		case Seq(b) != d.peer:
			return d.resync()
		default:
			d.frame = &Frame{Seq: d.peer}
			d.peer = d.peer.Next()
			d.state = awaitCode
		}
	case awaitLateAck:
		if Seq(b) != d.peer {
			return d.resync()
		}
		d.state = awaitSeq
	case awaitCode:
		d.frame.Code = b & CodeMask
		n := (b & lenMask) >> lenShift
		switch n {
		case 0:
			return d.done()
		case lenExt:
			d.state = awaitLen
		default:
			d.expect(int(n))
		}
	case awaitLen:
		if b > MaxData {
			return d.resync()
		}
		if b == 0 {
			return d.done()
		}
		d.expect(int(b))
	case awaitData:
		d.frame.Data[d.got] = b
		if d.got++; d.got == len(d.frame.Data) {
			return d.done()
		}
	}
	return 0, nil
}

func (d *Decoder) expect(n int) {
	d.frame.Data, d.got = make([]byte, n), 0
	d.state = awaitData
}

func (d *Decoder) resync() (byte, *Frame) {
	d.state = awaitSync
	return CtlREQ, nil
}

func (d *Decoder) done() (byte, *Frame) {
	f := d.frame
	d.frame, d.state = nil, awaitSeq
	return 0, f
}
