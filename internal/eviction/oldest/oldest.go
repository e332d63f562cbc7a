// Package oldest migrates the first listed record first.
package oldest

import (
	"github.com/lucasew/slackoffload/internal/eviction"
	"github.com/lucasew/slackoffload/internal/inventory"
)

type Oldest struct{}

func init() {
	eviction.Register("oldest", func() eviction.Strategy {
		return New()
	})
}

func New() *Oldest {
	return &Oldest{}
}

func (Oldest) Select(candidates []inventory.FileRecord) int {
	return 0
}
