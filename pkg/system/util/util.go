package util

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// EMA is an exponential moving average. The first sample seeds it.
type EMA struct {
	alpha, prev float64
	ok          bool
}

func NewEMA(alpha float64) *EMA { return &EMA{alpha: alpha} }

func (e *EMA) Next(v float64) float64 {
	if !e.ok {
		e.prev, e.ok = v, true
		return v
	}
	e.prev = e.alpha*v + (1-e.alpha)*e.prev
	return e.prev
}

// ClampPercent bounds x to [0,100]; NaN becomes 0.
func ClampPercent(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	if x > 100 {
		return 100
	}
	return x
}

// MaxPID is PID_MAX_LIMIT, the largest pid_max a 64-bit Linux kernel accepts.
const MaxPID = 4194304

// ParsePIDs expands arguments of the form "PID" or "LO..HI" into a sorted,
// de-duplicated PID list. Arguments may also be comma separated.
func ParsePIDs(args []string) ([]int, error) {
	set := make(map[int]struct{})
	for _, arg := range args {
		for _, part := range strings.Split(arg, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			lo, hi, isRange := strings.Cut(part, "..")
			if !isRange {
				hi = lo
			}
			a, err := parsePID(lo)
			if err != nil {
				return nil, err
			}
			b, err := parsePID(hi)
			if err != nil {
				return nil, err
			}
			if b < a {
				return nil, fmt.Errorf("invalid pid range %q", part)
			}
			for pid := a; pid <= b; pid++ {
				set[pid] = struct{}{}
			}
		}
	}
	out := make([]int, 0, len(set))
	for pid := range set {
		out = append(out, pid)
	}
	slices.Sort(out)
	return out, nil
}

func parsePID(s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid pid %q", s)
	}
	if v > MaxPID {
		return 0, fmt.Errorf("pid %d exceeds the kernel limit %d", v, MaxPID)
	}
	return v, nil
}
