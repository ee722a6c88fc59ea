package protocol

// Decode limits. A DUI[4] length can announce up to 512MB, so lengths and
// counts are checked against these before anything is allocated.
const (
	// DefaultMaxAllocation is the default maximum size of one ByteArray or
	// String (4MB).
	DefaultMaxAllocation = 4 * 1024 * 1024

	// DefaultMaxCollection is the default maximum element count of one Array
	// or KVArray.
	DefaultMaxCollection = 100_000

	// DefaultMaxDepth is the default maximum nesting of Arrays and KVArrays.
	DefaultMaxDepth = 64
)

// Limits bounds what a Decoder accepts. Exceeding a limit is a protocol
// error, never insufficient data.
type Limits struct {
	// MaxAllocation is the maximum byte length of one ByteArray or String.
	MaxAllocation int

	// MaxCollection is the maximum element count of one Array or KVArray.
	MaxCollection int

	// MaxDepth is the maximum container nesting depth.
	MaxDepth int
}

// DefaultLimits returns the default decode limits.
func DefaultLimits() Limits {
	return Limits{
		MaxAllocation: DefaultMaxAllocation,
		MaxCollection: DefaultMaxCollection,
		MaxDepth:      DefaultMaxDepth,
	}
}

// withDefaults fills zero fields from DefaultLimits.
func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.MaxAllocation <= 0 {
		l.MaxAllocation = d.MaxAllocation
	}
	if l.MaxCollection <= 0 {
		l.MaxCollection = d.MaxCollection
	}
	if l.MaxDepth <= 0 {
		l.MaxDepth = d.MaxDepth
	}
	return l
}

// depthContext tracks the current decoding depth for recursive structures.
type depthContext struct {
	current int
	max     int
}

// enter increments the depth and returns an error if the limit would be exceeded.
// The depth is only incremented on success.
func (dc *depthContext) enter() error {
	if dc.current >= dc.max {
		return Errorf(CodeDepthExceeded, "nesting deeper than %d", dc.max)
	}
	dc.current++
	return nil
}

// leave decrements the depth.
func (dc *depthContext) leave() {
	dc.current--
}
