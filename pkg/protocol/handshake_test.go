package protocol

import (
	"testing"

	"github.com/vango-dev/photon/pkg/variant"
)

func TestVersionListRoundTrip(t *testing.T) {
	m := NewVersionList([]Version{1, 2, 7})
	payload, err := m.Encode()
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	decoded, err := DecodeRemoteMethodExact(payload, Limits{})
	if err != nil {
		t.Fatalf("DecodeRemoteMethodExact error: %v", err)
	}
	got, err := ParseVersionList(decoded)
	if err != nil {
		t.Fatalf("ParseVersionList error: %v", err)
	}
	if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 7 {
		t.Errorf("ParseVersionList = %v", got)
	}
}

func TestParseVersionListErrors(t *testing.T) {
	tests := []struct {
		name string
		m    *RemoteMethodInfo
	}{
		{"wrong_method", NewHello()},
		{"wrong_param", NewRemoteMethod(variant.TypeVoid, MethodVersionList, variant.NewUint16(1))},
		{"wrong_element", NewRemoteMethod(variant.TypeVoid, MethodVersionList, variant.NewArray(variant.NewUint32(1)))},
		{"nil_element", NewRemoteMethod(variant.TypeVoid, MethodVersionList, variant.NewArray(nil))},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseVersionList(tc.m); CodeOf(err) != CodeHandshakeFailed {
				t.Errorf("error = %v, want HandshakeFailed", err)
			}
		})
	}
}

func TestParseVersionSelected(t *testing.T) {
	v, err := ParseVersionSelected(NewVersionSelected(3))
	if err != nil || v != 3 {
		t.Errorf("ParseVersionSelected = (%d, %v), want 3", v, err)
	}
	if _, err := ParseVersionSelected(NewHelloReply()); CodeOf(err) != CodeHandshakeFailed {
		t.Errorf("error = %v, want HandshakeFailed", err)
	}
}

func TestSelectVersion(t *testing.T) {
	tests := []struct {
		name   string
		ours   []Version
		theirs []Version
		want   Version
		ok     bool
	}{
		{"single", []Version{1}, []Version{1}, 1, true},
		{"highest_common", []Version{1, 2, 3}, []Version{4, 3, 2}, 3, true},
		{"unordered", []Version{3, 1, 2}, []Version{1, 2}, 2, true},
		{"none", []Version{1}, []Version{2}, 0, false},
		{"empty", []Version{1}, nil, 0, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := SelectVersion(tc.ours, tc.theirs)
			if got != tc.want || ok != tc.ok {
				t.Errorf("SelectVersion = (%d, %v), want (%d, %v)", got, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestControlMessages(t *testing.T) {
	ts, err := ParsePingPong(NewPing(12345))
	if err != nil || ts != 12345 {
		t.Errorf("ParsePingPong(ping) = (%d, %v)", ts, err)
	}
	ts, err = ParsePingPong(NewPong(9))
	if err != nil || ts != 9 {
		t.Errorf("ParsePingPong(pong) = (%d, %v)", ts, err)
	}

	reason, msg, err := ParseClose(NewClose(CloseGoingAway, "bye"))
	if err != nil || reason != CloseGoingAway || msg != "bye" {
		t.Errorf("ParseClose = (%s, %q, %v)", reason, msg, err)
	}
	if _, _, err := ParseClose(NewPing(1)); CodeOf(err) != CodeUnexpectedMessage {
		t.Errorf("ParseClose(ping) error = %v", err)
	}
}

func TestReturnMessage(t *testing.T) {
	m := NewReturn(variant.NewUint32(7), nil)
	if !IsReturn(m) {
		t.Fatal("IsReturn = false")
	}
	value, fault, err := ParseReturn(m)
	if err != nil {
		t.Fatalf("ParseReturn error: %v", err)
	}
	if !variant.Equal(value, variant.NewUint32(7)) || !fault.IsNull() {
		t.Errorf("ParseReturn = (%s, %s)", value, fault)
	}

	if _, _, err := ParseReturn(NewHello()); CodeOf(err) != CodeUnexpectedMessage {
		t.Errorf("ParseReturn(hello) error = %v", err)
	}
}
