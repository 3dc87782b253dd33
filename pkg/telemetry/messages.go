// Package telemetry defines the messages published about controllers.
package telemetry

import (
	"time"

	"github.com/golang/protobuf/proto"
)

// Direction tells which way data moved through a controller.
type Direction int32

// Directions.
const (
	Direction_UNKNOWN Direction = 0
	Direction_RX      Direction = 1
	Direction_TX      Direction = 2
)

var Direction_name = map[int32]string{
	0: "UNKNOWN",
	1: "RX",
	2: "TX",
}

var Direction_value = map[string]int32{
	"UNKNOWN": 0,
	"RX":      1,
	"TX":      2,
}

func (d Direction) String() string {
	return proto.EnumName(Direction_name, int32(d))
}

// Status is the snapshot of a controller.
type Status struct {
	Board     string `protobuf:"bytes,1,opt,name=board,proto3" json:"board,omitempty"`
	Name      string `protobuf:"bytes,2,opt,name=name,proto3" json:"name,omitempty"`
	Unit      uint32 `protobuf:"varint,3,opt,name=unit,proto3" json:"unit,omitempty"`
	Protocol  string `protobuf:"bytes,4,opt,name=protocol,proto3" json:"protocol,omitempty"`
	On        bool   `protobuf:"varint,5,opt,name=on,proto3" json:"on,omitempty"`
	Error     string `protobuf:"bytes,6,opt,name=error,proto3" json:"error,omitempty"`
	Rx        string `protobuf:"bytes,7,opt,name=rx,proto3" json:"rx,omitempty"`
	Tx        string `protobuf:"bytes,8,opt,name=tx,proto3" json:"tx,omitempty"`
	RxBuffer  string `protobuf:"bytes,9,opt,name=rx_buffer,json=rxBuffer,proto3" json:"rx_buffer,omitempty"`
	TxBuffer  string `protobuf:"bytes,10,opt,name=tx_buffer,json=txBuffer,proto3" json:"tx_buffer,omitempty"`
	RxUsed    uint32 `protobuf:"varint,11,opt,name=rx_used,json=rxUsed,proto3" json:"rx_used,omitempty"`
	TxFree    uint32 `protobuf:"varint,12,opt,name=tx_free,json=txFree,proto3" json:"tx_free,omitempty"`
	Timestamp int64  `protobuf:"varint,13,opt,name=timestamp,proto3" json:"timestamp,omitempty"`
}

func (m *Status) Reset()         { *m = Status{} }
func (m *Status) String() string { return proto.CompactTextString(m) }
func (*Status) ProtoMessage()    {}

// Data carries bytes moved through a controller.
type Data struct {
	Board     string    `protobuf:"bytes,1,opt,name=board,proto3" json:"board,omitempty"`
	Name      string    `protobuf:"bytes,2,opt,name=name,proto3" json:"name,omitempty"`
	Direction Direction `protobuf:"varint,3,opt,name=direction,proto3,enum=sercom.telemetry.v1.Direction" json:"direction,omitempty"`
	Payload   []byte    `protobuf:"bytes,4,opt,name=payload,proto3" json:"payload,omitempty"`
	Timestamp int64     `protobuf:"varint,5,opt,name=timestamp,proto3" json:"timestamp,omitempty"`
}

func (m *Data) Reset()         { *m = Data{} }
func (m *Data) String() string { return proto.CompactTextString(m) }
func (*Data) ProtoMessage()    {}

func init() {
	proto.RegisterEnum("sercom.telemetry.v1.Direction", Direction_name, Direction_value)
	proto.RegisterType((*Status)(nil), "sercom.telemetry.v1.Status")
	proto.RegisterType((*Data)(nil), "sercom.telemetry.v1.Data")
}

// Now is the timestamp stamped on new messages, in unix milliseconds.
func Now() int64 {
	return time.Now().UnixNano() / int64(time.Millisecond)
}

// Encode serializes a message.
func Encode(m proto.Message) ([]byte, error) {
	return proto.Marshal(m)
}

// DecodeStatus parses a Status.
func DecodeStatus(data []byte) (*Status, error) {
	var m Status
	if err := proto.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// DecodeData parses a Data.
func DecodeData(data []byte) (*Data, error) {
	var m Data
	if err := proto.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
