package oldest

import (
	"testing"

	"github.com/lucasew/slackoffload/internal/inventory"
)

func TestOldest(t *testing.T) {
	got := New().Select([]inventory.FileRecord{{ID: "a"}, {ID: "b"}, {ID: "c"}})
	if got != 0 {
		t.Errorf("expected first index, got %d", got)
	}
}
