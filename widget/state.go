package widget

// State is a snapshot of the conversation state owned by the Controller.
type State struct {
	// InFlight is true from the moment a request is issued until the
	// completion of the most recent request is handled.
	InFlight bool

	// Visible tracks whether the panel is shown.
	Visible bool

	// Token identifies the most recent request. It increases by one for
	// every request issued.
	Token uint64

	// Queued is the number of submissions waiting under PolicyQueue.
	Queued int
}
