package notifier

// State of the notification channel as seen by the admin client
type State int

const (
	StateDisconnected State = iota
	StateConnectedUnregistered
	StateRegistered
	StateAlerting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnectedUnregistered:
		return "connected_unregistered"
	case StateRegistered:
		return "registered"
	case StateAlerting:
		return "alerting"
	default:
		return "unknown"
	}
}
