package protocol

import (
	"bytes"
	"testing"
)

func TestMessageHeaderEncodeDecode(t *testing.T) {
	tests := []struct {
		name   string
		header MessageHeader
		want   []byte
	}{
		{
			"rmi",
			MessageHeader{MessageID: 5, Timestamp: 1000, Type: MessageRMI, Length: 10},
			[]byte{0x05, 0xE8, 0x07, 0x01, 0x0A},
		},
		{
			"reserved_bits",
			MessageHeader{MessageID: 1, Timestamp: 0, Reserved: 5, Type: MessageAudio, Length: 1},
			[]byte{0x01, 0x00, 0xA3, 0x01},
		},
		{
			"control",
			MessageHeader{MessageID: 32767, Timestamp: MaxTimestamp, Type: MessageControl, Length: 128},
			[]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x00, 0x80, 0x01},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.header.Encode()
			if err != nil {
				t.Fatalf("Encode error: %v", err)
			}
			if !bytes.Equal(got, tc.want) {
				t.Errorf("Encode = % x, want % x", got, tc.want)
			}

			decoded, n, err := DecodeMessageHeader(got)
			if err != nil {
				t.Fatalf("DecodeMessageHeader error: %v", err)
			}
			if n != len(got) || *decoded != tc.header {
				t.Errorf("DecodeMessageHeader = (%+v, %d), want (%+v, %d)", *decoded, n, tc.header, len(got))
			}
		})
	}
}

func TestDecodeMessageHeaderErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		code ErrorCode
	}{
		{"type_4", []byte{0x00, 0x00, 0x04, 0x01}, CodeInvalidMessageType},
		{"type_31", []byte{0x00, 0x00, 0xFF, 0x01}, CodeInvalidMessageType},
		{"zero_length", []byte{0x00, 0x00, 0x01, 0x00}, CodeEmptyMessage},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := DecodeMessageHeader(tc.data)
			if got := CodeOf(err); got != tc.code {
				t.Errorf("CodeOf(%v) = %s, want %s", err, got, tc.code)
			}
		})
	}
}

func TestDecodeMessageHeaderInsufficient(t *testing.T) {
	full := []byte{0x05, 0xE8, 0x07, 0x01, 0x0A}
	for i := 0; i < len(full); i++ {
		if _, _, err := DecodeMessageHeader(full[:i]); !IsInsufficient(err) {
			t.Errorf("DecodeMessageHeader(prefix %d) error = %v", i, err)
		}
	}
}

func TestMessageHeaderEncodeOutOfRange(t *testing.T) {
	tests := []MessageHeader{
		{Reserved: 8, Length: 1},
		{Type: 32, Length: 1},
		{MessageID: 40000, Length: 1},
	}
	for _, h := range tests {
		if _, err := h.Encode(); CodeOf(err) != CodeValueOutOfRange {
			t.Errorf("Encode(%+v) error = %v, want ValueOutOfRange", h, err)
		}
	}
}

func TestEncodeMessage(t *testing.T) {
	got, err := EncodeMessage(MessageHeader{MessageID: 2, Type: MessageVideo, Length: 99}, []byte("abc"))
	if err != nil {
		t.Fatalf("EncodeMessage error: %v", err)
	}
	want := []byte{0x02, 0x00, 0x02, 0x03, 'a', 'b', 'c'}
	if !bytes.Equal(got, want) {
		t.Errorf("EncodeMessage = % x, want % x", got, want)
	}

	if _, err := EncodeMessage(MessageHeader{}, nil); CodeOf(err) != CodeEmptyMessage {
		t.Errorf("EncodeMessage(empty) error = %v, want EmptyMessage", err)
	}
}

func TestMessageTypeString(t *testing.T) {
	tests := []struct {
		mt   MessageType
		want string
	}{
		{MessageControl, "Control"},
		{MessageRMI, "RemoteMethodInvoke"},
		{MessageVideo, "Video"},
		{MessageAudio, "Audio"},
		{MessageType(9), "Unknown"},
	}
	for _, tc := range tests {
		if got := tc.mt.String(); got != tc.want {
			t.Errorf("MessageType(%d).String() = %s, want %s", tc.mt, got, tc.want)
		}
	}
}
