package policy

// Policy decides the byte threshold a run is evaluated against.
type Policy interface {
	// Threshold returns the total size the source store may hold. engaged
	// reports whether the run has already had to act.
	Threshold(engaged bool) uint64
}
