package icd

import "errors"

// Header constants.
const (
	// HeaderSize is the size of the message header in bytes.
	HeaderSize = 8

	// CurrentVersion is the ICD version this codec speaks.
	CurrentVersion uint16 = 25
)

// MessageType identifies the type of message.
type MessageType uint16

// In-scope ICD message type codes. Requests are low codes, acks are the
// request code +100, streamed data is 200+, server errors are 300.
const (
	TypeRegisterViewer    MessageType = 0
	TypeOpenFile          MessageType = 3
	TypeSetImageView      MessageType = 4
	TypeSetRegion         MessageType = 5
	TypeRegisterViewerAck MessageType = 100
	TypeOpenFileAck       MessageType = 103
	TypeSetImageViewAck   MessageType = 104
	TypeSetRegionAck      MessageType = 105
	TypeRasterTileData    MessageType = 200
	TypeRegionHistogram   MessageType = 201
	TypeSpatialProfile    MessageType = 202
	TypeSpectralProfile   MessageType = 203
	TypeErrorData         MessageType = 300
)

// String returns the string representation of the message type.
func (mt MessageType) String() string {
	switch mt {
	case TypeRegisterViewer:
		return "RegisterViewer"
	case TypeOpenFile:
		return "OpenFile"
	case TypeSetImageView:
		return "SetImageView"
	case TypeSetRegion:
		return "SetRegion"
	case TypeRegisterViewerAck:
		return "RegisterViewerAck"
	case TypeOpenFileAck:
		return "OpenFileAck"
	case TypeSetImageViewAck:
		return "SetImageViewAck"
	case TypeSetRegionAck:
		return "SetRegionAck"
	case TypeRasterTileData:
		return "RasterTileData"
	case TypeRegionHistogram:
		return "RegionHistogramData"
	case TypeSpatialProfile:
		return "SpatialProfileData"
	case TypeSpectralProfile:
		return "SpectralProfileData"
	case TypeErrorData:
		return "ErrorData"
	default:
		return "Unknown"
	}
}

// Codec errors.
var (
	// ErrMalformedHeader is returned when a buffer is too short to hold
	// the 8-byte message header.
	ErrMalformedHeader = errors.New("icd: malformed header")
)

// Header is the decoded 8-byte message header.
type Header struct {
	Type       MessageType
	ICDVersion uint16
	RequestID  uint32
}

// Message is one complete wire message: header plus opaque payload.
type Message struct {
	Type       MessageType
	ICDVersion uint16
	RequestID  uint32
	Payload    []byte
}

// EncodeHeader encodes an 8-byte little-endian header.
func EncodeHeader(mt MessageType, requestID uint32, version uint16) []byte {
	buf := make([]byte, HeaderSize)
	buf[0] = byte(mt)
	buf[1] = byte(mt >> 8)
	buf[2] = byte(version)
	buf[3] = byte(version >> 8)
	buf[4] = byte(requestID)
	buf[5] = byte(requestID >> 8)
	buf[6] = byte(requestID >> 16)
	buf[7] = byte(requestID >> 24)
	return buf
}

// DecodeHeader decodes the 8-byte header from data. Unknown type codes
// decode successfully; a buffer shorter than HeaderSize fails with
// ErrMalformedHeader.
func DecodeHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, ErrMalformedHeader
	}
	return Header{
		Type:       MessageType(uint16(data[0]) | uint16(data[1])<<8),
		ICDVersion: uint16(data[2]) | uint16(data[3])<<8,
		RequestID:  uint32(data[4]) | uint32(data[5])<<8 | uint32(data[6])<<16 | uint32(data[7])<<24,
	}, nil
}

// SplitMessage separates a raw wire buffer into header and payload.
// The returned payload aliases data; callers that retain it must copy.
func SplitMessage(data []byte) (Header, []byte, error) {
	h, err := DecodeHeader(data)
	if err != nil {
		return Header{}, nil, err
	}
	return h, data[HeaderSize:], nil
}

// CombineMessage joins a header and payload into one wire buffer.
func CombineMessage(mt MessageType, requestID uint32, version uint16, payload []byte) []byte {
	buf := make([]byte, HeaderSize+len(payload))
	copy(buf, EncodeHeader(mt, requestID, version))
	copy(buf[HeaderSize:], payload)
	return buf
}

// DecodeMessage decodes a complete message, copying the payload so the
// result is safe to retain after the input buffer is reused.
func DecodeMessage(data []byte) (*Message, error) {
	h, payload, err := SplitMessage(data)
	if err != nil {
		return nil, err
	}
	p := make([]byte, len(payload))
	copy(p, payload)
	return &Message{
		Type:       h.Type,
		ICDVersion: h.ICDVersion,
		RequestID:  h.RequestID,
		Payload:    p,
	}, nil
}

// Encode encodes the message to its wire representation.
func (m *Message) Encode() []byte {
	return CombineMessage(m.Type, m.RequestID, m.ICDVersion, m.Payload)
}
