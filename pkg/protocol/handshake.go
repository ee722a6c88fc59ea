package protocol

import (
	"sort"

	"github.com/vango-dev/photon/pkg/variant"
)

// Handshake control methods, exchanged on channel 0 as Control messages:
//
//	client                               server
//	  │── hello ───────────────────────────▶│
//	  │◀─────────────────────── helloReply ─│
//	  │── versionList [Array<Uint16>] ─────▶│
//	  │◀──────── versionSelected [Uint16] ──│
const (
	MethodHello           = "photon.control.hello"
	MethodHelloReply      = "photon.control.helloReply"
	MethodVersionList     = "photon.control.versionList"
	MethodVersionSelected = "photon.control.versionSelected"
)

// Version is a protocol version number negotiated during the handshake.
type Version uint16

// CurrentVersion is the current protocol version.
const CurrentVersion Version = 1

// SupportedVersions returns the versions this implementation speaks.
func SupportedVersions() []Version {
	return []Version{CurrentVersion}
}

// NewHello creates the client's opening message.
func NewHello() *RemoteMethodInfo {
	return NewRemoteMethod(variant.TypeVoid, MethodHello)
}

// NewHelloReply creates the server's answer to hello.
func NewHelloReply() *RemoteMethodInfo {
	return NewRemoteMethod(variant.TypeVoid, MethodHelloReply)
}

// NewVersionList creates the client's offer of supported versions.
func NewVersionList(versions []Version) *RemoteMethodInfo {
	arr := make(variant.Array, len(versions))
	for i, v := range versions {
		arr[i] = variant.NewUint16(uint16(v))
	}
	return NewRemoteMethod(variant.TypeVoid, MethodVersionList, variant.NewArrayOf(arr))
}

// NewVersionSelected creates the server's version decision.
func NewVersionSelected(v Version) *RemoteMethodInfo {
	return NewRemoteMethod(variant.TypeVoid, MethodVersionSelected, variant.NewUint16(uint16(v)))
}

// ParseVersionList extracts the offered versions from a versionList message.
func ParseVersionList(m *RemoteMethodInfo) ([]Version, error) {
	if !m.MatchPrototype(variant.TypeVoid, MethodVersionList, variant.TypeArray) {
		return nil, Errorf(CodeHandshakeFailed, "expected %s, got %s", MethodVersionList, m.Name)
	}
	arr := m.Param(0).Array()
	versions := make([]Version, 0, len(arr))
	for i, e := range arr {
		if !e.Is(variant.TypeUint16) {
			return nil, Errorf(CodeHandshakeFailed, "version %d has type %s", i, e.Type())
		}
		versions = append(versions, Version(e.Uint16()))
	}
	return versions, nil
}

// ParseVersionSelected extracts the chosen version from a versionSelected message.
func ParseVersionSelected(m *RemoteMethodInfo) (Version, error) {
	if !m.MatchPrototype(variant.TypeVoid, MethodVersionSelected, variant.TypeUint16) {
		return 0, Errorf(CodeHandshakeFailed, "expected %s, got %s", MethodVersionSelected, m.Name)
	}
	return Version(m.Param(0).Uint16()), nil
}

// SelectVersion returns the highest version present in both lists.
func SelectVersion(ours, theirs []Version) (Version, bool) {
	sorted := append([]Version(nil), ours...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] > sorted[j] })
	for _, v := range sorted {
		for _, t := range theirs {
			if v == t {
				return v, true
			}
		}
	}
	return 0, false
}

// ContainsVersion reports whether v is in versions.
func ContainsVersion(versions []Version, v Version) bool {
	for _, have := range versions {
		if have == v {
			return true
		}
	}
	return false
}
