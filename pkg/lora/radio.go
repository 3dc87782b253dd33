// Package lora drives a SX126x LoRa transceiver on a SPI host.
//
// Every radio command is one SPI transaction: the opcode, its parameters
// and the dummy clocks reading the answer. The radio holds its busy line
// high while it cannot take a command and raises its interrupt line when
// a transmission or reception finishes.
package lora

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/sercom.go/pkg/buffer"
	"github.com/robotalks/sercom.go/pkg/sercom"
	"github.com/robotalks/sercom.go/pkg/spi"
)

// Opcodes.
const (
	OpSetStandby          byte = 0x80
	OpSetPacketType       byte = 0x8A
	OpSetRfFrequency      byte = 0x86
	OpSetPaConfig         byte = 0x95
	OpSetTxParams         byte = 0x8E
	OpSetBufferBaseAddr   byte = 0x8F
	OpSetModulationParams byte = 0x8B
	OpSetPacketParams     byte = 0x8C
	OpSetDioIrqParams     byte = 0x08
	OpWriteRegister       byte = 0x0D
	OpReadRegister        byte = 0x1D
	OpGetIrqStatus        byte = 0x12
	OpClearIrqStatus      byte = 0x02
	OpSetTx               byte = 0x83
	OpSetRx               byte = 0x82
	OpWriteBuffer         byte = 0x0E
	OpReadBuffer          byte = 0x1E
	OpGetRxBufferStatus   byte = 0x13
)

// IRQ status bits.
const (
	IRQTxDone  uint16 = 1 << 0
	IRQRxDone  uint16 = 1 << 1
	IRQCRCErr  uint16 = 1 << 6
	IRQTimeout uint16 = 1 << 9
)

const (
	regTxClamp    uint16 = 0x08D8
	regTxModulate uint16 = 0x0889
	regSyncWord   uint16 = 0x0740

	packetTypeLoRa = 0x01
	paDeviceSel    = 0x00
	paLut          = 0x01
	txPower        = 0x16

	// MaxPayload is the largest packet the radio buffer holds.
	MaxPayload = 255

	timeoutStep = 15625 * time.Nanosecond
	maxTxSteps  = 0xFFFFFF
	// 0xFFFFFF puts the receiver in continuous mode.
	maxRxSteps = 0xFFFFFE

	misoSize = MaxPayload + 5
)

// ResetPulse is how long the reset line is held low.
var ResetPulse = time.Millisecond

// Radio is a LoRa transceiver.
type Radio struct {
	SPI *spi.Controller

	dev  sercom.Device
	conf Config
	rx   *buffer.Serial

	lock sync.Mutex
}

// New claims the SPI unit and configures the control lines. Init brings
// the radio up.
func New(dev sercom.Device, pool *sercom.Pool, conf Config) (*Radio, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	if conf.RXSize <= 0 {
		conf.RXSize = DefaultRXSize
	}
	dev.ConfigPin(conf.Reset, sercom.PinOutput)
	dev.SetPin(conf.Reset, true)
	dev.ConfigPin(conf.Busy, sercom.PinInput)
	dev.ConfigPin(conf.IRQ, sercom.PinInput)
	c, err := spi.New(dev, pool, conf.SPI, spi.Options{Name: conf.Name, RXSize: misoSize})
	if err != nil {
		return nil, err
	}
	return &Radio{
		SPI:  c,
		dev:  dev,
		conf: conf,
		rx:   buffer.NewSerial(conf.RXSize, nil),
	}, nil
}

// Name implements framework.Named.
func (r *Radio) Name() string {
	return r.SPI.Name()
}

// Config returns the radio configuration.
func (r *Radio) Config() Config {
	return r.conf
}

// Init resets the radio and programs the configured modulation.
func (r *Radio) Init(ctx context.Context) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.rx.Reset()
	if err := r.reset(ctx); err != nil {
		return err
	}
	c := &r.conf
	freq := rfFrequency(c.Frequency)
	duty, hpMax, _ := c.OutputPower.paConfig()
	steps := []struct {
		op     byte
		params []byte
	}{
		{OpSetStandby, []byte{0x00}},
		{OpSetPacketType, []byte{packetTypeLoRa}},
		{OpSetRfFrequency, []byte{byte(freq >> 24), byte(freq >> 16), byte(freq >> 8), byte(freq)}},
		{OpSetPaConfig, []byte{duty, hpMax, paDeviceSel, paLut}},
		{OpSetTxParams, []byte{txPower, byte(c.RampTime)}},
	}
	for _, s := range steps {
		if _, err := r.sendOpCode(ctx, 0, s.op, s.params...); err != nil {
			return err
		}
	}
	// TX clamping workaround.
	if err := r.updateRegister(ctx, regTxClamp, func(v byte) byte { return v | 0x1E }); err != nil {
		return err
	}
	if _, err := r.sendOpCode(ctx, 0, OpSetBufferBaseAddr, 0x00, 0x00); err != nil {
		return err
	}
	if _, err := r.sendOpCode(ctx, 0, OpSetModulationParams,
		byte(c.SpreadFactor), byte(c.Bandwidth), byte(c.CodingRate), boolByte(c.LowDataRateOpt)); err != nil {
		return err
	}
	// Modulation quality workaround.
	if err := r.updateRegister(ctx, regTxModulate, func(v byte) byte {
		if c.Bandwidth == BW500 {
			return v &^ 0x04
		}
		return v | 0x04
	}); err != nil {
		return err
	}
	if err := r.packetParams(ctx, 0x01, MaxPayload); err != nil {
		return err
	}
	// TxDone, RxDone, CRCErr and Timeout, all on DIO1.
	mask := IRQTxDone | IRQRxDone | IRQCRCErr | IRQTimeout
	if _, err := r.sendOpCode(ctx, 0, OpSetDioIrqParams,
		byte(mask>>8), byte(mask), byte(mask>>8), byte(mask), 0, 0, 0, 0); err != nil {
		return err
	}
	word := []byte{0x14, 0x24}
	if c.PublicNetwork {
		word = []byte{0x34, 0x44}
	}
	if err := r.writeRegister(ctx, regSyncWord, word...); err != nil {
		return err
	}
	glog.Infof("%s: radio %dHz SF%d bw %d cr %d", r.Name(), c.Frequency, c.SpreadFactor, c.Bandwidth, c.CodingRate)
	return nil
}

// Close resets the radio into standby and releases the SPI unit.
func (r *Radio) Close() error {
	r.lock.Lock()
	defer r.lock.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := r.reset(ctx); err != nil {
		glog.Warningf("%s: reset: %v", r.Name(), err)
	} else if _, err := r.sendOpCode(ctx, 0, OpSetStandby, 0x00); err != nil {
		glog.Warningf("%s: standby: %v", r.Name(), err)
	}
	r.rx.Reset()
	return r.SPI.Close()
}

// Reset pulses the reset line.
func (r *Radio) Reset(ctx context.Context) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.reset(ctx)
}

func (r *Radio) reset(ctx context.Context) error {
	r.dev.SetPin(r.conf.Reset, false)
	defer r.dev.SetPin(r.conf.Reset, true)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(ResetPulse):
	}
	return nil
}

func (r *Radio) waitPin(ctx context.Context, p sercom.Pinout, high bool) error {
	for r.dev.PinState(p) != high {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: wait %s: %w", r.Name(), p, ctx.Err())
		case <-time.After(spi.PollInterval):
		}
	}
	return nil
}

// SendOpCode waits for the radio to be ready and sends a command. The
// numRead answer bytes are left for ReadSPI. The returned status is the
// byte clocked back with the last command byte.
func (r *Radio) SendOpCode(ctx context.Context, numRead int, op byte, params ...byte) (byte, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.sendOpCode(ctx, numRead, op, params...)
}

func (r *Radio) sendOpCode(ctx context.Context, numRead int, op byte, params ...byte) (byte, error) {
	if err := r.waitPin(ctx, r.conf.Busy, false); err != nil {
		return 0, err
	}
	r.SPI.ResetMISOBuffer()
	out := make([]byte, 0, len(params)+1)
	out = append(out, op)
	out = append(out, params...)
	glog.V(3).Infof("%s: op %02x % x read %d", r.Name(), op, params, numRead)
	return r.SPI.HostProcedure(ctx, out, numRead)
}

// ReadSPI takes one answer byte of the last command.
func (r *Radio) ReadSPI() (byte, bool) {
	return r.SPI.Receive()
}

func (r *Radio) answer(n int) []byte {
	in := make([]byte, n)
	return in[:r.SPI.ReceivePacket(in)]
}

// WriteRegister writes values to consecutive registers from addr.
func (r *Radio) WriteRegister(ctx context.Context, addr uint16, values ...byte) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.writeRegister(ctx, addr, values...)
}

func (r *Radio) writeRegister(ctx context.Context, addr uint16, values ...byte) error {
	_, err := r.sendOpCode(ctx, 0, OpWriteRegister, append([]byte{byte(addr >> 8), byte(addr)}, values...)...)
	return err
}

// ReadRegister reads one register.
func (r *Radio) ReadRegister(ctx context.Context, addr uint16) (byte, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.readRegister(ctx, addr)
}

func (r *Radio) readRegister(ctx context.Context, addr uint16) (byte, error) {
	if _, err := r.sendOpCode(ctx, 2, OpReadRegister, byte(addr>>8), byte(addr)); err != nil {
		return 0, err
	}
	// status first
	in := r.answer(2)
	if len(in) < 2 {
		return 0, fmt.Errorf("%s: read register %04x: short answer", r.Name(), addr)
	}
	return in[1], nil
}

func (r *Radio) updateRegister(ctx context.Context, addr uint16, fn func(byte) byte) error {
	v, err := r.readRegister(ctx, addr)
	if err != nil {
		return err
	}
	return r.writeRegister(ctx, addr, fn(v))
}

// IRQStatus reads and clears the interrupt status.
func (r *Radio) IRQStatus(ctx context.Context) (uint16, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.irqStatus(ctx)
}

func (r *Radio) irqStatus(ctx context.Context) (uint16, error) {
	if _, err := r.sendOpCode(ctx, 3, OpGetIrqStatus); err != nil {
		return 0, err
	}
	in := r.answer(3)
	if len(in) < 3 {
		return 0, fmt.Errorf("%s: irq status: short answer", r.Name())
	}
	if _, err := r.sendOpCode(ctx, 0, OpClearIrqStatus, 0xFF, 0xFF); err != nil {
		return 0, err
	}
	return uint16(in[1])<<8 | uint16(in[2]), nil
}

func (r *Radio) packetParams(ctx context.Context, header, payload byte) error {
	pre := r.conf.PreambleSymbols
	_, err := r.sendOpCode(ctx, 0, OpSetPacketParams,
		byte(pre>>8), byte(pre), header, payload, boolByte(r.conf.CRC), 0x00)
	return err
}

func timeoutSteps(d time.Duration, limit uint32) uint32 {
	if d <= 0 {
		return 0
	}
	steps := uint64(d / timeoutStep)
	if steps > uint64(limit) {
		return limit
	}
	return uint32(steps)
}

// SetTxMode sends payload bytes already in the radio buffer and waits
// for the interrupt line. It reports whether TxDone was raised.
func (r *Radio) SetTxMode(ctx context.Context, payload byte, timeout time.Duration) (bool, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	irq, err := r.setTxMode(ctx, payload, timeout)
	return irq&IRQTxDone != 0, err
}

func (r *Radio) setTxMode(ctx context.Context, payload byte, timeout time.Duration) (uint16, error) {
	if err := r.packetParams(ctx, 0x00, payload); err != nil {
		return 0, err
	}
	t := timeoutSteps(timeout, maxTxSteps)
	if _, err := r.sendOpCode(ctx, 0, OpSetTx, byte(t>>16), byte(t>>8), byte(t)); err != nil {
		return 0, err
	}
	if err := r.waitPin(ctx, r.conf.IRQ, true); err != nil {
		return 0, err
	}
	return r.irqStatus(ctx)
}

// WriteBuffer writes data to the start of the radio buffer.
func (r *Radio) WriteBuffer(ctx context.Context, data []byte) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.writeBuffer(ctx, data)
}

func (r *Radio) writeBuffer(ctx context.Context, data []byte) error {
	if len(data) > MaxPayload {
		return ErrTooLarge
	}
	_, err := r.sendOpCode(ctx, 0, OpWriteBuffer, append([]byte{0x00}, data...)...)
	return err
}

// ReadBuffer moves n bytes from the start of the radio buffer into the
// received data.
func (r *Radio) ReadBuffer(ctx context.Context, n int) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.readBuffer(ctx, n)
}

func (r *Radio) readBuffer(ctx context.Context, n int) error {
	if n > MaxPayload {
		return ErrTooLarge
	}
	if _, err := r.sendOpCode(ctx, n+1, OpReadBuffer, 0x00); err != nil {
		return err
	}
	in := r.answer(n + 1)
	if len(in) == 0 {
		return nil
	}
	if !r.rx.WritePacket(in[1:]) {
		return fmt.Errorf("%s: %d bytes: %w", r.Name(), len(in)-1, ErrRXFull)
	}
	return nil
}

// TransmitPacket sends data as one packet and waits for it to leave.
func (r *Radio) TransmitPacket(ctx context.Context, data []byte, timeout time.Duration) error {
	if len(data) > MaxPayload {
		return ErrTooLarge
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	if _, err := r.sendOpCode(ctx, 0, OpSetStandby, 0x00); err != nil {
		return err
	}
	if err := r.writeBuffer(ctx, data); err != nil {
		return err
	}
	irq, err := r.setTxMode(ctx, byte(len(data)), timeout)
	switch {
	case err != nil:
		return err
	case irq&IRQTxDone != 0:
		return nil
	case irq&IRQTimeout != 0:
		return ErrTimeout
	}
	return fmt.Errorf("%s: irq %04x: %w", r.Name(), irq, ErrTxFailed)
}

// Transmit sends a single byte packet.
func (r *Radio) Transmit(ctx context.Context, b byte, timeout time.Duration) error {
	return r.TransmitPacket(ctx, []byte{b}, timeout)
}

// TransmitString sends s, cut at MaxPayload bytes.
func (r *Radio) TransmitString(ctx context.Context, s string, timeout time.Duration) error {
	if len(s) > MaxPayload {
		s = s[:MaxPayload]
	}
	return r.TransmitPacket(ctx, []byte(s), timeout)
}

// TransmitInt sends the decimal ASCII form of v.
func (r *Radio) TransmitInt(ctx context.Context, v uint32, timeout time.Duration) error {
	return r.TransmitPacket(ctx, buffer.AppendUint(nil, v), timeout)
}

// ReceiveSingle listens for one packet and appends it to the received
// data. A zero timeout listens until a packet arrives or ctx is done.
func (r *Radio) ReceiveSingle(ctx context.Context, timeout time.Duration) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if _, err := r.sendOpCode(ctx, 0, OpSetStandby, 0x00); err != nil {
		return err
	}
	if err := r.packetParams(ctx, 0x00, MaxPayload); err != nil {
		return err
	}
	t := timeoutSteps(timeout, maxRxSteps)
	if _, err := r.sendOpCode(ctx, 0, OpSetRx, byte(t>>16), byte(t>>8), byte(t)); err != nil {
		return err
	}
	if err := r.waitPin(ctx, r.conf.IRQ, true); err != nil {
		return err
	}
	irq, err := r.irqStatus(ctx)
	if err != nil {
		return err
	}
	switch {
	case irq&IRQRxDone != 0 && irq&IRQCRCErr != 0:
		return ErrCRC
	case irq&IRQRxDone != 0:
	case irq&IRQTimeout != 0:
		return ErrTimeout
	default:
		return fmt.Errorf("%s: irq %04x: %w", r.Name(), irq, ErrNoPacket)
	}
	if _, err := r.sendOpCode(ctx, 3, OpGetRxBufferStatus); err != nil {
		return err
	}
	// status, payload length, buffer start
	in := r.answer(3)
	if len(in) < 2 {
		return fmt.Errorf("%s: rx buffer status: short answer", r.Name())
	}
	return r.readBuffer(ctx, int(in[1]))
}

// Receive takes one byte of the received data.
func (r *Radio) Receive() (byte, bool) {
	return r.rx.Get()
}

// ReceiveString reports whether s was received ending shift bytes before
// the last byte.
func (r *Radio) ReceiveString(s string, shift int, movePointer bool) bool {
	return r.rx.MatchSuffix(s, shift, movePointer)
}

// ReceiveInt takes leading ASCII digits of the received data.
func (r *Radio) ReceiveInt() (uint32, bool) {
	return r.rx.ParseUint()
}

// ReceiveParam looks for prefix followed by digits and the optional
// delimiter in the received data.
func (r *Radio) ReceiveParam(prefix string, delimiter byte, maxDigits int) (uint32, bool) {
	return r.rx.Param(prefix, delimiter, maxDigits)
}

// RXAvailable returns the number of received bytes not yet taken.
func (r *Radio) RXAvailable() int {
	return r.rx.Len()
}

// ClearRX discards the received data.
func (r *Radio) ClearRX() {
	r.rx.Reset()
}
