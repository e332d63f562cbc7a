package largest

import (
	"testing"

	"github.com/lucasew/slackoffload/internal/eviction"
	"github.com/lucasew/slackoffload/internal/inventory"
)

func TestLargest(t *testing.T) {
	l := New()

	t.Run("Picks Biggest", func(t *testing.T) {
		got := l.Select([]inventory.FileRecord{
			{ID: "a", Size: 10},
			{ID: "b", Size: 300},
			{ID: "c", Size: 20},
		})
		if got != 1 {
			t.Errorf("expected index 1, got %d", got)
		}
	})

	t.Run("Ties Prefer Later", func(t *testing.T) {
		got := l.Select([]inventory.FileRecord{
			{ID: "a", Size: 50},
			{ID: "b", Size: 50},
			{ID: "c", Size: 10},
		})
		if got != 1 {
			t.Errorf("expected index 1, got %d", got)
		}
	})

	t.Run("Registered", func(t *testing.T) {
		if _, err := eviction.GetStrategy("largest"); err != nil {
			t.Errorf("GetStrategy failed: %v", err)
		}
	})
}
