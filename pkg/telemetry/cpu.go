package telemetry

import (
	"fmt"
	"sync"

	"github.com/ja7ad/proctop/pkg/system/proc"
)

// SystemStatReader supplies the aggregate cpu row of /proc/stat.
type SystemStatReader interface {
	SystemStatLine() ([]string, error)
}

// SystemCPU computes interval CPU utilization between consecutive calls.
// One instance per monitored host; it is safe for concurrent use.
//
// The previous sample starts as all zeros, so the first call reports the
// average since boot and later calls report the interval since the previous
// call on the same instance.
type SystemCPU struct {
	src SystemStatReader

	mu    sync.Mutex
	total proc.Ticks
	idle  proc.Ticks
}

func NewSystemCPU(src SystemStatReader) *SystemCPU {
	return &SystemCPU{src: src}
}

// Utilization reads the current counters and returns the busy percentage
// over the interval since the previous call, in [0,100].
//
// The read happens under the same lock as the state update, so concurrent
// callers are serialized and state is never torn.
func (c *SystemCPU) Utilization() (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tokens, err := c.src.SystemStatLine()
	if err != nil {
		return 0, err
	}
	s, err := proc.ParseSystemStat(tokens)
	if err != nil {
		return 0, err
	}
	return c.observe(s)
}

// Observe is Utilization for a snapshot the caller already read.
func (c *SystemCPU) Observe(s proc.SystemSnapshot) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.observe(s)
}

func (c *SystemCPU) observe(s proc.SystemSnapshot) (float64, error) {
	total, idle := s.Total(), s.IdleTotal()
	prevTotal, prevIdle := c.total, c.idle
	c.total, c.idle = total, idle

	if total < prevTotal || idle < prevIdle || total-idle < prevTotal-prevIdle {
		return 0, fmt.Errorf("%w: cpu counters moved backward", ErrIndeterminate)
	}
	totalDelta := total - prevTotal
	if totalDelta == 0 {
		return 0, fmt.Errorf("%w: no ticks elapsed", ErrIndeterminate)
	}
	idleDelta := idle - prevIdle
	return 100 * float64(totalDelta-idleDelta) / float64(totalDelta), nil
}
