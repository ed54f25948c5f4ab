package telemetry

import (
	"fmt"

	"github.com/ja7ad/proctop/pkg/system/proc"
)

// MemoryUtilization returns (MemTotal-MemFree)/MemTotal as a percentage.
// Page cache and buffers count as used.
func MemoryUtilization(m proc.MemInfo) (float64, error) {
	if m.Total == 0 {
		return 0, fmt.Errorf("%w: MemTotal is zero", ErrIndeterminate)
	}
	if m.Free > m.Total {
		return 0, fmt.Errorf("%w: MemFree exceeds MemTotal", ErrIndeterminate)
	}
	return 100 * float64(m.Total-m.Free) / float64(m.Total), nil
}
