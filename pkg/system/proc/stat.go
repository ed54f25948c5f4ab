package proc

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ja7ad/proctop/pkg/types"
)

// Ticks counts CPU scheduler clock ticks (jiffies).
type Ticks uint64

// Seconds converts t to seconds given the ticks-per-second constant.
func (t Ticks) Seconds(hz int) float64 {
	return float64(t) / float64(hz)
}

// 1-based field positions in /proc/<pid>/stat.
const (
	fieldPID         = 1
	fieldUTime       = 14
	fieldSTime       = 15
	fieldCUTime      = 16
	fieldCSTime      = 17
	fieldStartTime   = 22
	processStatWidth = fieldStartTime
)

// systemStatWidth is the label plus ten counters of the aggregate cpu row.
const systemStatWidth = 11

// ProcessSnapshot is one instant of a single process's CPU counters.
type ProcessSnapshot struct {
	PID         int
	User        Ticks
	System      Ticks
	ChildUser   Ticks
	ChildSystem Ticks
	Start       Ticks // since boot
}

// Busy returns user+system time including waited-for children.
func (s ProcessSnapshot) Busy() Ticks {
	return s.User + s.System + s.ChildUser + s.ChildSystem
}

// SystemSnapshot is one instant of the aggregate "cpu" row of /proc/stat.
type SystemSnapshot struct {
	User      Ticks
	Nice      Ticks
	System    Ticks
	Idle      Ticks
	IOWait    Ticks
	IRQ       Ticks
	SoftIRQ   Ticks
	Steal     Ticks
	Guest     Ticks
	GuestNice Ticks
}

// Active returns every category except idle and iowait.
func (s SystemSnapshot) Active() Ticks {
	return s.User + s.Nice + s.System + s.IRQ + s.SoftIRQ + s.Steal + s.Guest + s.GuestNice
}

// IdleTotal returns idle+iowait.
func (s SystemSnapshot) IdleTotal() Ticks {
	return s.Idle + s.IOWait
}

// Total returns the sum of all ten fields.
func (s SystemSnapshot) Total() Ticks {
	return s.Active() + s.IdleTotal()
}

// SplitProcessStat tokenizes a raw /proc/<pid>/stat line. The parenthesized
// comm field is kept as a single token (parentheses included) so that token
// i-1 is proc(5) field i.
func SplitProcessStat(line string) ([]string, error) {
	open := strings.IndexByte(line, '(')
	closing := strings.LastIndexByte(line, ')')
	if open < 0 || closing < open {
		return nil, fmt.Errorf("%w: stat line has no (comm) field", ErrMalformedInput)
	}

	head := strings.Fields(line[:open])
	if len(head) != 1 {
		return nil, fmt.Errorf("%w: expected pid before (comm), got %d tokens", ErrMalformedInput, len(head))
	}

	tokens := make([]string, 0, 52)
	tokens = append(tokens, head[0], line[open:closing+1])
	tokens = append(tokens, strings.Fields(line[closing+1:])...)
	return tokens, nil
}

// ParseProcessStat extracts a ProcessSnapshot from normalized stat tokens.
// Only fields 1, 14-17 and 22 are interpreted; the rest are skipped. Field 1
// must be a decimal pid as well: a line whose first token is not an integer
// is ErrMalformedInput even when the tick fields parse.
func ParseProcessStat(tokens []string) (ProcessSnapshot, error) {
	if len(tokens) < processStatWidth {
		return ProcessSnapshot{}, fmt.Errorf("%w: process stat has %d fields, want at least %d",
			ErrMalformedInput, len(tokens), processStatWidth)
	}

	pid, err := strconv.Atoi(tokens[fieldPID-1])
	if err != nil {
		return ProcessSnapshot{}, fmt.Errorf("%w: field %d (pid): %v", ErrMalformedInput, fieldPID, err)
	}

	var s ProcessSnapshot
	s.PID = pid
	for _, f := range []struct {
		pos int
		dst *Ticks
	}{
		{fieldUTime, &s.User},
		{fieldSTime, &s.System},
		{fieldCUTime, &s.ChildUser},
		{fieldCSTime, &s.ChildSystem},
		{fieldStartTime, &s.Start},
	} {
		v, err := parseTicks(tokens, f.pos)
		if err != nil {
			return ProcessSnapshot{}, err
		}
		*f.dst = v
	}
	return s, nil
}

// ParseSystemStat extracts a SystemSnapshot from the tokens of the aggregate
// "cpu" row: the label followed by ten counters.
func ParseSystemStat(tokens []string) (SystemSnapshot, error) {
	if len(tokens) < systemStatWidth {
		return SystemSnapshot{}, fmt.Errorf("%w: cpu row has %d fields, want at least %d",
			ErrMalformedInput, len(tokens), systemStatWidth)
	}
	if tokens[0] != "cpu" {
		return SystemSnapshot{}, fmt.Errorf("%w: cpu row label is %q", ErrMalformedInput, tokens[0])
	}

	var s SystemSnapshot
	dst := []*Ticks{
		&s.User, &s.Nice, &s.System, &s.Idle, &s.IOWait,
		&s.IRQ, &s.SoftIRQ, &s.Steal, &s.Guest, &s.GuestNice,
	}
	for i, d := range dst {
		v, err := parseTicks(tokens, i+2)
		if err != nil {
			return SystemSnapshot{}, err
		}
		*d = v
	}
	return s, nil
}

func parseTicks(tokens []string, pos int) (Ticks, error) {
	v, err := strconv.ParseUint(tokens[pos-1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: field %d: %v", ErrMalformedInput, pos, err)
	}
	return Ticks(v), nil
}

// MemInfo holds the /proc/meminfo rows this module uses.
type MemInfo struct {
	Total     types.Bytes
	Free      types.Bytes
	Available types.Bytes
	Buffers   types.Bytes
	Cached    types.Bytes
}

// ParseMemInfo reads "Key:   value kB" lines. MemTotal is required; other
// rows default to zero when absent (older kernels lack MemAvailable).
func ParseMemInfo(lines []string) (MemInfo, error) {
	var (
		m        MemInfo
		hasTotal bool
	)
	for _, line := range lines {
		fs := strings.Fields(line)
		if len(fs) < 2 {
			continue
		}
		var dst *types.Bytes
		switch strings.TrimSuffix(fs[0], ":") {
		case "MemTotal":
			dst, hasTotal = &m.Total, true
		case "MemFree":
			dst = &m.Free
		case "MemAvailable":
			dst = &m.Available
		case "Buffers":
			dst = &m.Buffers
		case "Cached":
			dst = &m.Cached
		default:
			continue
		}
		kb, err := strconv.ParseUint(fs[1], 10, 64)
		if err != nil {
			return MemInfo{}, fmt.Errorf("%w: meminfo %s: %v", ErrMalformedInput, fs[0], err)
		}
		*dst = types.FromKB(kb)
	}
	if !hasTotal {
		return MemInfo{}, fmt.Errorf("%w: meminfo has no MemTotal", ErrMalformedInput)
	}
	return m, nil
}

// ParseStatCounter returns the integer following key in /proc/stat lines,
// e.g. "processes" or "procs_running".
func ParseStatCounter(lines []string, key string) (int, error) {
	for _, line := range lines {
		fs := strings.Fields(line)
		if len(fs) < 2 || fs[0] != key {
			continue
		}
		v, err := strconv.Atoi(fs[1])
		if err != nil {
			return 0, fmt.Errorf("%w: stat %s: %v", ErrMalformedInput, key, err)
		}
		return v, nil
	}
	return 0, fmt.Errorf("%w: stat has no %s row", ErrMalformedInput, key)
}
