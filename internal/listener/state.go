package listener

// State is the position of the listener in its consume cycle.
type State int32

// Listener states.
//
//	Disconnected -> Connected -> Subscribed -> (Receiving -> Processing -> Acknowledging)* -> Disconnected
//
// Acknowledging lasts until the next delivery arrives.
const (
	StateDisconnected State = iota
	StateConnected
	StateSubscribed
	StateReceiving
	StateProcessing
	StateAcknowledging
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateSubscribed:
		return "subscribed"
	case StateReceiving:
		return "receiving"
	case StateProcessing:
		return "processing"
	case StateAcknowledging:
		return "acknowledging"
	default:
		return "unknown"
	}
}
