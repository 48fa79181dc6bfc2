package protocol

// Connection is an opaque handle to a duplex message channel. The registry
// and dispatch results hold connections by identity only; connections carry
// no session state of their own.
type Connection interface {
	ID() string
	Send(v any) error
	Close() error
}

type Action int

const (
	// ActionNone produces no network effect.
	ActionNone Action = iota
	// ActionUnicast sends Message back to the connection that triggered the
	// dispatch.
	ActionUnicast
	// ActionBroadcast fans Message out to Recipients.
	ActionBroadcast
)

// Result is the single network effect a dispatch produces: send to the
// sender, fan out to a recipient list, or nothing.
type Result struct {
	Error      bool
	Action     Action
	Message    any
	Recipients []Connection
}

func Nothing() Result {
	return Result{Action: ActionNone}
}

func Unicast(msg any) Result {
	return Result{Action: ActionUnicast, Message: msg}
}

func Broadcast(msg any, recipients []Connection) Result {
	return Result{Action: ActionBroadcast, Message: msg, Recipients: recipients}
}

// Failure builds a unicast error frame addressed to the sender.
func Failure(kind ErrorKind, message string) Result {
	return Result{
		Error:   true,
		Action:  ActionUnicast,
		Message: NewErrorFrame(kind, message),
	}
}

// FailureBroadcast builds a session-wide error frame fanned out to the given
// connections, typically the repo's dashboards.
func FailureBroadcast(kind ErrorKind, message string, recipients []Connection) Result {
	return Result{
		Error:      true,
		Action:     ActionBroadcast,
		Message:    NewErrorFrame(kind, message),
		Recipients: recipients,
	}
}
