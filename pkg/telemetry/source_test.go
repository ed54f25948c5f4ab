package telemetry

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ja7ad/proctop/pkg/system/proc"
	"github.com/ja7ad/proctop/pkg/types"
)

// fakeProcess is one entry of fakeSource. A nil stat means the process has
// exited.
type fakeProcess struct {
	stat    []string
	user    string
	command string
	ram     types.Bytes
}

// fakeSource serves canned counters. cpuRows are returned in order, the last
// one repeating.
type fakeSource struct {
	mu      sync.Mutex
	cpuRows [][]string
	cpuN    int

	hz      int
	uptime  float64
	mem     proc.MemInfo
	total   int
	running int
	procs   map[int]fakeProcess
	pids    []int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		cpuRows: [][]string{cpuRow(200, 800)},
		hz:      100,
		uptime:  500,
		mem:     proc.MemInfo{Total: types.FromKB(1000), Free: types.FromKB(250)},
		total:   4000,
		running: 2,
		procs:   map[int]fakeProcess{},
	}
}

// cpuRow builds an aggregate cpu row with the given busy (user) and idle
// ticks.
func cpuRow(user, idle uint64) []string {
	return strings.Fields(fmt.Sprintf("cpu %d 0 0 %d 0 0 0 0 0 0", user, idle))
}

// procStat builds 22 normalized tokens for pid.
func procStat(pid int, utime, stime, cutime, cstime, start uint64) []string {
	tokens := make([]string, 22)
	for i := range tokens {
		tokens[i] = "0"
	}
	tokens[0] = fmt.Sprint(pid)
	tokens[1] = "(fake)"
	tokens[2] = "S"
	tokens[13] = fmt.Sprint(utime)
	tokens[14] = fmt.Sprint(stime)
	tokens[15] = fmt.Sprint(cutime)
	tokens[16] = fmt.Sprint(cstime)
	tokens[21] = fmt.Sprint(start)
	return tokens
}

func (f *fakeSource) add(pid int, p fakeProcess) {
	f.procs[pid] = p
	f.pids = append(f.pids, pid)
}

func (f *fakeSource) SystemStatLine() ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := min(f.cpuN, len(f.cpuRows)-1)
	f.cpuN++
	return f.cpuRows[i], nil
}

func (f *fakeSource) lookup(pid int) (fakeProcess, error) {
	p, ok := f.procs[pid]
	if !ok || p.stat == nil {
		return fakeProcess{}, fmt.Errorf("%w: pid %d", proc.ErrNotFound, pid)
	}
	return p, nil
}

func (f *fakeSource) ProcessStatLine(pid int) ([]string, error) {
	p, err := f.lookup(pid)
	return p.stat, err
}

func (f *fakeSource) Uptime() (float64, error) { return f.uptime, nil }
func (f *fakeSource) ClockTicks() int          { return f.hz }
func (f *fakeSource) Pids() ([]int, error)     { return f.pids, nil }
func (f *fakeSource) MemInfo() (proc.MemInfo, error) {
	return f.mem, nil
}
func (f *fakeSource) ProcessCounts() (int, int, error) { return f.total, f.running, nil }

func (f *fakeSource) Command(pid int) (string, error) {
	p, err := f.lookup(pid)
	return p.command, err
}

func (f *fakeSource) User(pid int) (string, error) {
	p, err := f.lookup(pid)
	return p.user, err
}

func (f *fakeSource) RAM(pid int) (types.Bytes, error) {
	p, err := f.lookup(pid)
	return p.ram, err
}

func (f *fakeSource) OperatingSystem() (string, error) { return "Fake OS 1.0", nil }
func (f *fakeSource) Kernel() (string, error)          { return "6.1.0-fake", nil }
