// Package telemetry turns proc counter snapshots into utilization figures:
// a stateful interval calculator for system CPU, a pure lifetime-average
// calculator per process, and a facade producing one Sample per poll.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ja7ad/proctop/pkg/system/proc"
	"github.com/ja7ad/proctop/pkg/types"
)

// Source is everything Telemetry reads. proc.FS implements it.
type Source interface {
	SystemStatReader
	ProcessStatReader

	Pids() ([]int, error)
	MemInfo() (proc.MemInfo, error)
	ProcessCounts() (total, running int, err error)

	Command(pid int) (string, error)
	User(pid int) (string, error)
	RAM(pid int) (types.Bytes, error)
	OperatingSystem() (string, error)
	Kernel() (string, error)
}

const defaultWorkers = 8

type Option func(*Telemetry)

// WithLogger sets the logger. The default discards.
func WithLogger(log *slog.Logger) Option {
	return func(t *Telemetry) {
		if log != nil {
			t.log = log
		}
	}
}

// WithWorkers bounds how many processes are read concurrently.
func WithWorkers(n int) Option {
	return func(t *Telemetry) {
		if n > 0 {
			t.workers = n
		}
	}
}

// WithPIDs restricts sampling to pids instead of every process the source
// enumerates.
func WithPIDs(pids []int) Option {
	return func(t *Telemetry) {
		t.pids = slices.Clone(pids)
	}
}

// Telemetry composes the calculators into per-poll samples. It owns the
// SystemCPU state for one host and caches nothing else between calls.
type Telemetry struct {
	src     Source
	cpu     *SystemCPU
	procs   ProcessCPU
	log     *slog.Logger
	workers int
	pids    []int
}

func New(src Source, opts ...Option) *Telemetry {
	t := &Telemetry{
		src:     src,
		cpu:     NewSystemCPU(src),
		procs:   NewProcessCPU(src),
		log:     slog.New(slog.DiscardHandler),
		workers: defaultWorkers,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Host returns the OS pretty name and kernel release.
func (t *Telemetry) Host() (Host, error) {
	osName, err := t.src.OperatingSystem()
	if err != nil {
		return Host{}, fmt.Errorf("operating system: %w", err)
	}
	kernel, err := t.src.Kernel()
	if err != nil {
		return Host{}, fmt.Errorf("kernel: %w", err)
	}
	return Host{OperatingSystem: osName, Kernel: kernel}, nil
}

// Sample polls the host once. Indeterminate figures come back as invalid
// Utilization values; processes that vanish mid-poll are omitted; a
// malformed counter line anywhere fails the whole sample.
func (t *Telemetry) Sample(ctx context.Context) (*Sample, error) {
	s := &Sample{At: time.Now()}

	cpu, err := t.cpu.Utilization()
	if s.CPU, err = t.utilization("system cpu", cpu, err); err != nil {
		return nil, fmt.Errorf("system cpu: %w", err)
	}

	mem, err := t.src.MemInfo()
	if err != nil {
		return nil, fmt.Errorf("meminfo: %w", err)
	}
	memPct, err := MemoryUtilization(mem)
	if s.Memory, err = t.utilization("memory", memPct, err); err != nil {
		return nil, fmt.Errorf("memory: %w", err)
	}

	uptime, err := t.src.Uptime()
	if err != nil {
		return nil, fmt.Errorf("uptime: %w", err)
	}
	s.Uptime = time.Duration(uptime * float64(time.Second))

	if s.TotalProcesses, s.RunningProcesses, err = t.src.ProcessCounts(); err != nil {
		return nil, fmt.Errorf("process counts: %w", err)
	}

	pids := t.pids
	if pids == nil {
		if pids, err = t.src.Pids(); err != nil {
			return nil, fmt.Errorf("pids: %w", err)
		}
	}
	if s.Processes, err = t.processes(ctx, pids, uptime); err != nil {
		return nil, err
	}
	return s, nil
}

// Process builds the record of a single pid with a fresh uptime read.
func (t *Telemetry) Process(pid int) (Process, error) {
	uptime, err := t.src.Uptime()
	if err != nil {
		return Process{}, fmt.Errorf("uptime: %w", err)
	}
	return t.process(pid, uptime, t.src.ClockTicks())
}

func (t *Telemetry) processes(ctx context.Context, pids []int, uptime float64) ([]Process, error) {
	hz := t.src.ClockTicks()
	slots := make([]*Process, len(pids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.workers)
	for i, pid := range pids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p, err := t.process(pid, uptime, hz)
			switch {
			case err == nil:
				slots[i] = &p
			case errors.Is(err, ErrNotFound):
				t.log.Debug("process exited during sample", "pid", pid)
			default:
				return fmt.Errorf("pid %d: %w", pid, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]Process, 0, len(pids))
	for _, p := range slots {
		if p != nil {
			out = append(out, *p)
		}
	}
	slices.SortFunc(out, func(a, b Process) int { return a.PID - b.PID })
	return out, nil
}

func (t *Telemetry) process(pid int, uptime float64, hz int) (Process, error) {
	snap, err := t.procs.Snapshot(pid)
	if err != nil {
		return Process{}, err
	}

	p := Process{PID: snap.PID}
	pct, err := ProcessUtilization(snap, uptime, hz)
	if p.CPU, err = t.utilization("process cpu", pct, err); err != nil {
		return Process{}, err
	}
	if p.CPU.Valid {
		// age shares the same precondition as utilization
		p.Age, _ = ProcessAge(snap, uptime, hz)
	}

	if p.User, err = t.src.User(pid); err != nil {
		return Process{}, t.descriptorErr(pid, "user", err)
	}
	if p.Command, err = t.src.Command(pid); err != nil {
		return Process{}, t.descriptorErr(pid, "command", err)
	}
	if p.RAM, err = t.src.RAM(pid); err != nil {
		return Process{}, t.descriptorErr(pid, "ram", err)
	}
	return p, nil
}

// descriptorErr passes ErrNotFound through and wraps anything else.
func (t *Telemetry) descriptorErr(pid int, what string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return err
	}
	return fmt.Errorf("%s of pid %d: %w", what, pid, err)
}

// utilization folds ErrIndeterminate into an invalid value and passes every
// other error through.
func (t *Telemetry) utilization(what string, pct float64, err error) (Utilization, error) {
	switch {
	case err == nil:
		return Known(pct), nil
	case errors.Is(err, ErrIndeterminate):
		t.log.Debug("indeterminate utilization", "metric", what, "err", err)
		return Utilization{}, nil
	default:
		return Utilization{}, err
	}
}
