package telemetry

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ja7ad/proctop/pkg/types"
)

// Utilization is a percentage that may be indeterminate. An invalid value
// renders as "n/a" and marshals to null, never as 0.
type Utilization struct {
	Percent float64
	Valid   bool
}

// Known wraps a computed percentage.
func Known(p float64) Utilization { return Utilization{Percent: p, Valid: true} }

func (u Utilization) String() string {
	if !u.Valid {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", u.Percent)
}

func (u Utilization) MarshalJSON() ([]byte, error) {
	if !u.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(u.Percent)
}

// Process is one process record of a sample.
type Process struct {
	PID     int           `json:"pid"`
	User    string        `json:"user"`
	Command string        `json:"command"`
	RAM     types.Bytes   `json:"ram_bytes"`
	CPU     Utilization   `json:"cpu_percent"` // lifetime average
	Age     time.Duration `json:"age_ns"`
}

// Sample is one poll of the whole host.
type Sample struct {
	At               time.Time     `json:"time"`
	CPU              Utilization   `json:"cpu_percent"` // since the previous sample
	Memory           Utilization   `json:"memory_percent"`
	Uptime           time.Duration `json:"uptime_ns"`
	TotalProcesses   int           `json:"total_processes"`
	RunningProcesses int           `json:"running_processes"`
	Processes        []Process     `json:"processes"`
}

// Host describes the machine being sampled.
type Host struct {
	OperatingSystem string `json:"os"`
	Kernel          string `json:"kernel"`
}
