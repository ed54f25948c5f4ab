package telemetry

import (
	"fmt"
	"math"
	"time"

	"github.com/ja7ad/proctop/pkg/system/proc"
)

// ProcessStatReader supplies what the per-process calculation needs.
type ProcessStatReader interface {
	ProcessStatLine(pid int) ([]string, error)
	Uptime() (float64, error)
	ClockTicks() int
}

// ProcessUtilization returns the lifetime-average CPU percentage of a
// process: the share of its age it has spent on CPU, children included.
// It can exceed 100 for multi-threaded processes.
//
//	busy = utime + stime + cutime + cstime
//	age  = uptime - starttime/hz
//	pct  = 100 * busy/hz / age
func ProcessUtilization(s proc.ProcessSnapshot, uptimeSeconds float64, hz int) (float64, error) {
	age, err := processAgeSeconds(s, uptimeSeconds, hz)
	if err != nil {
		return 0, err
	}
	return 100 * s.Busy().Seconds(hz) / age, nil
}

// ProcessAge returns how long the process has existed.
func ProcessAge(s proc.ProcessSnapshot, uptimeSeconds float64, hz int) (time.Duration, error) {
	age, err := processAgeSeconds(s, uptimeSeconds, hz)
	if err != nil {
		return 0, err
	}
	return time.Duration(age * float64(time.Second)), nil
}

// processAgeSeconds fails when the process appears to start at or after the
// uptime sample, which happens when uptime is read before the process file.
func processAgeSeconds(s proc.ProcessSnapshot, uptimeSeconds float64, hz int) (float64, error) {
	if hz <= 0 {
		return 0, fmt.Errorf("%w: clock ticks per second is %d", ErrIndeterminate, hz)
	}
	age := uptimeSeconds - s.Start.Seconds(hz)
	if !(age > 0) || math.IsInf(age, 0) {
		return 0, fmt.Errorf("%w: pid %d age %.2fs", ErrIndeterminate, s.PID, age)
	}
	return age, nil
}

// ProcessCPU computes per-process utilization from a live source. It holds
// no state and is safe for concurrent use.
type ProcessCPU struct {
	src ProcessStatReader
}

func NewProcessCPU(src ProcessStatReader) ProcessCPU {
	return ProcessCPU{src: src}
}

// Snapshot reads and parses the counters of pid.
func (p ProcessCPU) Snapshot(pid int) (proc.ProcessSnapshot, error) {
	tokens, err := p.src.ProcessStatLine(pid)
	if err != nil {
		return proc.ProcessSnapshot{}, err
	}
	return proc.ParseProcessStat(tokens)
}

// Compute returns the lifetime-average CPU percentage of pid, reading uptime
// fresh. Errors are ErrNotFound, ErrMalformedInput or ErrIndeterminate.
func (p ProcessCPU) Compute(pid int) (float64, error) {
	uptime, err := p.src.Uptime()
	if err != nil {
		return 0, fmt.Errorf("uptime: %w", err)
	}
	s, err := p.Snapshot(pid)
	if err != nil {
		return 0, err
	}
	return ProcessUtilization(s, uptime, p.src.ClockTicks())
}
