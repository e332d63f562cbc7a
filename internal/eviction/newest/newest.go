// Package newest migrates the last listed record first.
package newest

import (
	"github.com/lucasew/slackoffload/internal/eviction"
	"github.com/lucasew/slackoffload/internal/inventory"
)

type Newest struct{}

func init() {
	eviction.Register("newest", func() eviction.Strategy {
		return New()
	})
}

func New() *Newest {
	return &Newest{}
}

func (Newest) Select(candidates []inventory.FileRecord) int {
	return len(candidates) - 1
}
