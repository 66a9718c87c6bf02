package presence

// ValidationError rejects a request before any state changes. It is surfaced
// to the originating connection only; nothing is persisted or broadcast.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}
