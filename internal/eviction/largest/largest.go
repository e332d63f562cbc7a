// Package largest migrates the biggest record first, so a run frees its
// target with as few transfers as possible.
package largest

import (
	"github.com/lucasew/slackoffload/internal/eviction"
	"github.com/lucasew/slackoffload/internal/inventory"
)

type Largest struct{}

func init() {
	eviction.Register("largest", func() eviction.Strategy {
		return New()
	})
}

func New() *Largest {
	return &Largest{}
}

// Select breaks ties in favor of the later record.
func (Largest) Select(candidates []inventory.FileRecord) int {
	best := 0
	for i, rec := range candidates {
		if rec.Size >= candidates[best].Size {
			best = i
		}
	}
	return best
}
