package conn

// Role is the side of the connection a Conn plays.
type Role uint8

const (
	RoleClient Role = iota
	RoleServer
)

// String returns the string representation of the role.
func (r Role) String() string {
	switch r {
	case RoleClient:
		return "client"
	case RoleServer:
		return "server"
	default:
		return "unknown"
	}
}

// State is the handshake state of a connection.
type State uint8

const (
	// StateInitial is a client that has not sent hello yet.
	StateInitial State = iota
	// StateWaitingForHello is a server waiting for the client's hello.
	StateWaitingForHello
	// StateWaitingForVersionList is a server that answered hello.
	StateWaitingForVersionList
	// StateWaitingForHelloReply is a client that sent hello.
	StateWaitingForHelloReply
	// StateWaitingForVersionSelected is a client that offered its versions.
	StateWaitingForVersionSelected
	// StateEstablished accepts RMI and media messages.
	StateEstablished
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateInitial:
		return "Initial"
	case StateWaitingForHello:
		return "WaitingForHello"
	case StateWaitingForVersionList:
		return "WaitingForVersionList"
	case StateWaitingForHelloReply:
		return "WaitingForHelloReply"
	case StateWaitingForVersionSelected:
		return "WaitingForVersionSelected"
	case StateEstablished:
		return "Established"
	default:
		return "Unknown"
	}
}

// readingState tracks what the chunk pass expects next from the input.
type readingState uint8

const (
	expectingChunkHeader readingState = iota
	expectingChunkData
)
