package maxsize

import "testing"

func TestThreshold(t *testing.T) {
	tests := []struct {
		name    string
		policy  Policy
		engaged bool
		want    uint64
	}{
		{"Idle Uses Limit", Policy{MaxBytes: 1000, Buffer: 100}, false, 1000},
		{"Engaged Subtracts Buffer", Policy{MaxBytes: 1000, Buffer: 100}, true, 900},
		{"No Buffer", Policy{MaxBytes: 1000}, true, 1000},
		{"Buffer Larger Than Limit", Policy{MaxBytes: 100, Buffer: 500}, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.Threshold(tt.engaged); got != tt.want {
				t.Errorf("Threshold(%v) = %d, want %d", tt.engaged, got, tt.want)
			}
		})
	}
}
