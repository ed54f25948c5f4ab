package types

import "fmt"

// Bytes is a uint64 wrapper representing a size in bytes.
type Bytes uint64

// FromKB converts a kibibyte count, the unit /proc reports memory in, to Bytes.
func FromKB(kb uint64) Bytes { return Bytes(kb * 1024) }

// ToUint64 returns the raw byte count.
func (b Bytes) ToUint64() uint64 { return uint64(b) }

// String implements fmt.Stringer using Humanized.
func (b Bytes) String() string { return b.Humanized() }

// Humanized returns a human-readable string with automatic unit (B, KB, MB, GB, TB).
func (b Bytes) Humanized() string {
	v := float64(b)
	switch {
	case b >= 1<<40:
		return fmt.Sprintf("%.2f TB", v/(1<<40))
	case b >= 1<<30:
		return fmt.Sprintf("%.2f GB", v/(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.2f MB", v/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.2f KB", v/(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
