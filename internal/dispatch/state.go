package dispatch

// State is the dispatcher lifecycle state.
//
//	Uninitialized → Active ⇄ EmergencyStopped → ShutDown
//
// ShutDown is terminal. EmergencyStopped returns to Active only through an
// explicit Reset.
type State int32

const (
	StateUninitialized State = iota
	StateActive
	StateEmergencyStopped
	StateShutDown
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateActive:
		return "active"
	case StateEmergencyStopped:
		return "emergency_stopped"
	case StateShutDown:
		return "shut_down"
	default:
		return "unknown"
	}
}
