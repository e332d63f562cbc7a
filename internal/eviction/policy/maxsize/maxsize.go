package maxsize

// Policy enforces a fixed quota with hysteresis: once a run has to act, it
// keeps going until usage is Buffer bytes below MaxBytes.
type Policy struct {
	MaxBytes uint64
	Buffer   uint64
}

func (p *Policy) Threshold(engaged bool) uint64 {
	if !engaged {
		return p.MaxBytes
	}
	if p.Buffer >= p.MaxBytes {
		return 0
	}
	return p.MaxBytes - p.Buffer
}
