package inventory

import (
	"math"
	"testing"
)

func TestTotalSize(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		if got := TotalSize(nil); got != 0 {
			t.Errorf("expected 0, got %d", got)
		}
	})

	t.Run("Sum", func(t *testing.T) {
		inv := Inventory{{ID: "A", Size: 400}, {ID: "B", Size: 700}}
		if got := inv.TotalSize(); got != 1100 {
			t.Errorf("expected 1100, got %d", got)
		}
	})

	t.Run("Large Values", func(t *testing.T) {
		inv := Inventory{{Size: math.MaxUint64 / 2}, {Size: math.MaxUint64 / 2}}
		if got := inv.TotalSize(); got != math.MaxUint64-1 {
			t.Errorf("expected %d, got %d", uint64(math.MaxUint64-1), got)
		}
	})

	t.Run("Saturates", func(t *testing.T) {
		inv := Inventory{{Size: math.MaxUint64}, {Size: 1}}
		if got := inv.TotalSize(); got != math.MaxUint64 {
			t.Errorf("expected saturation, got %d", got)
		}
	})
}

func TestArchiveKey(t *testing.T) {
	rec := FileRecord{ID: "F123", Name: "report.pdf"}

	tests := []struct {
		prefix string
		want   string
	}{
		{"", "F123-report.pdf"},
		{"slack", "slack/F123-report.pdf"},
		{"slack/", "slack/F123-report.pdf"},
		{"slack//", "slack/F123-report.pdf"},
		{"archive/slack", "archive/slack/F123-report.pdf"},
	}

	for _, tt := range tests {
		if got := ArchiveKey(tt.prefix, rec); got != tt.want {
			t.Errorf("ArchiveKey(%q) = %q, want %q", tt.prefix, got, tt.want)
		}
	}
}
