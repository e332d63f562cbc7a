package inventory

import (
	"math"
	"strings"
	"time"
)

// FileRecord is a single file as listed by the source store.
type FileRecord struct {
	ID       string
	Name     string
	Title    string
	Size     uint64
	URL      string
	Filetype string
	Mimetype string
	User     string
	Created  time.Time
}

// Inventory is the complete listing of the source store, in the order the
// store returned it across all pages.
type Inventory []FileRecord

// TotalSize returns the sum of the sizes of records. It saturates at
// math.MaxUint64 instead of wrapping around.
func TotalSize(records []FileRecord) uint64 {
	var total uint64
	for _, r := range records {
		if r.Size > math.MaxUint64-total {
			return math.MaxUint64
		}
		total += r.Size
	}
	return total
}

// TotalSize returns the aggregate size of the inventory.
func (inv Inventory) TotalSize() uint64 {
	return TotalSize(inv)
}

// ArchiveKey returns the cold-storage object key for a record:
// {prefix}/{id}-{name}. An empty prefix yields {id}-{name}.
func ArchiveKey(prefix string, r FileRecord) string {
	name := r.ID + "-" + r.Name
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}
