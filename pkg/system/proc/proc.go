//go:build linux

package proc

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/ja7ad/proctop/pkg/types"
)

const (
	DefaultProcRoot = "/proc"
	DefaultEtcRoot  = "/etc"
)

// ClockTicks returns the number of jiffies (clock ticks) per second.
// It first checks the env var CLK_TCK (useful for testing), otherwise
// falls back to 100 (common default).
//
// Note: On real systems, the authoritative way is `sysconf(_SC_CLK_TCK)`,
// but calling that requires cgo.
func ClockTicks() int {
	v, _ := strconv.Atoi(os.Getenv("CLK_TCK"))
	if v > 0 {
		return v
	}
	return 100
}

// PageSize returns the system memory page size in bytes.
// Like ClockTicks, it first checks an env override (PAGE_SIZE).
func PageSize() int {
	if ps := os.Getenv("PAGE_SIZE"); ps != "" {
		if v, _ := strconv.Atoi(ps); v > 0 {
			return v
		}
	}
	return os.Getpagesize()
}

// FS reads counters and descriptive fields from a procfs tree and an /etc
// tree. The zero value is not usable; use NewFS.
type FS struct {
	proc string
	etc  string
	hz   int
	page int
}

// NewFS returns an FS rooted at procRoot and etcRoot. Empty roots select the
// defaults. The tick rate and page size are captured once here.
func NewFS(procRoot, etcRoot string) FS {
	if procRoot == "" {
		procRoot = DefaultProcRoot
	}
	if etcRoot == "" {
		etcRoot = DefaultEtcRoot
	}
	return FS{proc: procRoot, etc: etcRoot, hz: ClockTicks(), page: PageSize()}
}

func (f FS) pidPath(pid int, name string) string {
	return filepath.Join(f.proc, strconv.Itoa(pid), name)
}

// ClockTicks returns the tick rate captured by NewFS.
func (f FS) ClockTicks() int { return f.hz }

// Exists reports whether /proc/<pid> is present.
func (f FS) Exists(pid int) bool {
	_, err := os.Stat(filepath.Join(f.proc, strconv.Itoa(pid)))
	return err == nil
}

// Pids lists the numeric directories of the procfs root.
func (f FS) Pids() ([]int, error) {
	entries, err := os.ReadDir(f.proc)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", f.proc, err)
	}
	pids := make([]int, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		pid, err := strconv.Atoi(e.Name())
		if err != nil || pid <= 0 {
			continue
		}
		pids = append(pids, pid)
	}
	return pids, nil
}

// ProcessStatLine reads /proc/<pid>/stat and returns its normalized tokens.
func (f FS) ProcessStatLine(pid int) ([]string, error) {
	b, err := f.readPidFile(pid, "stat")
	if err != nil {
		return nil, err
	}
	line, _, _ := strings.Cut(string(b), "\n")
	tokens, err := SplitProcessStat(line)
	if err != nil {
		return nil, fmt.Errorf("pid %d: %w", pid, err)
	}
	return tokens, nil
}

// SystemStatLine returns the tokens of the aggregate "cpu" row of /proc/stat.
func (f FS) SystemStatLine() ([]string, error) {
	lines, err := readLines(filepath.Join(f.proc, "stat"))
	if err != nil {
		return nil, err
	}
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) > 0 && fields[0] == "cpu" {
			return fields, nil
		}
	}
	return nil, fmt.Errorf("%w: /proc/stat has no aggregate cpu row", ErrMalformedInput)
}

// ProcessCounts returns the "processes" (forks since boot) and
// "procs_running" rows of /proc/stat.
func (f FS) ProcessCounts() (total, running int, err error) {
	lines, err := readLines(filepath.Join(f.proc, "stat"))
	if err != nil {
		return 0, 0, err
	}
	if total, err = ParseStatCounter(lines, "processes"); err != nil {
		return 0, 0, err
	}
	if running, err = ParseStatCounter(lines, "procs_running"); err != nil {
		return 0, 0, err
	}
	return total, running, nil
}

// Uptime returns seconds since boot from the first field of /proc/uptime.
func (f FS) Uptime() (float64, error) {
	b, err := os.ReadFile(filepath.Join(f.proc, "uptime"))
	if err != nil {
		return 0, err
	}
	fields := strings.Fields(string(b))
	if len(fields) < 1 {
		return 0, fmt.Errorf("%w: empty uptime", ErrMalformedInput)
	}
	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: uptime %q", ErrMalformedInput, fields[0])
	}
	return v, nil
}

// MemInfo parses /proc/meminfo.
func (f FS) MemInfo() (MemInfo, error) {
	lines, err := readLines(filepath.Join(f.proc, "meminfo"))
	if err != nil {
		return MemInfo{}, err
	}
	return ParseMemInfo(lines)
}

// Command returns /proc/<pid>/cmdline with NUL separators turned into
// spaces. Kernel threads have an empty command line.
func (f FS) Command(pid int) (string, error) {
	b, err := f.readPidFile(pid, "cmdline")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(strings.ReplaceAll(string(b), "\x00", " ")), nil
}

// RAM returns VmSize from /proc/<pid>/status. When status carries no VmSize
// it falls back to the size field of /proc/<pid>/statm in pages; kernel
// threads report zero there, which is not an error.
func (f FS) RAM(pid int) (types.Bytes, error) {
	v, err := f.statusField(pid, "VmSize:")
	if err != nil {
		return 0, err
	}
	if v == "" {
		return f.statmSize(pid)
	}
	kb, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: pid %d VmSize: %v", ErrMalformedInput, pid, err)
	}
	return types.FromKB(kb), nil
}

func (f FS) statmSize(pid int) (types.Bytes, error) {
	b, err := f.readPidFile(pid, "statm")
	if err != nil {
		return 0, err
	}
	fields := strings.Fields(string(b))
	if len(fields) == 0 {
		return 0, fmt.Errorf("%w: pid %d statm is empty", ErrMalformedInput, pid)
	}
	pages, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: pid %d statm size: %v", ErrMalformedInput, pid, err)
	}
	return types.Bytes(pages * uint64(f.page)), nil
}

// UID returns the real user id from /proc/<pid>/status.
func (f FS) UID(pid int) (string, error) {
	v, err := f.statusField(pid, "Uid:")
	if err != nil {
		return "", err
	}
	if v == "" {
		return "", fmt.Errorf("%w: pid %d status has no Uid", ErrMalformedInput, pid)
	}
	return v, nil
}

// User resolves the owner of pid through <etc>/passwd. An uid with no passwd
// entry, or a host with no passwd file, is returned as the numeric id.
func (f FS) User(pid int) (string, error) {
	uid, err := f.UID(pid)
	if err != nil {
		return "", err
	}
	lines, err := readLines(filepath.Join(f.etc, "passwd"))
	if errors.Is(err, fs.ErrNotExist) {
		return uid, nil
	}
	if err != nil {
		return "", fmt.Errorf("passwd: %w", err)
	}
	for _, line := range lines {
		parts := strings.Split(line, ":")
		if len(parts) >= 3 && parts[2] == uid {
			return parts[0], nil
		}
	}
	return uid, nil
}

// OperatingSystem returns PRETTY_NAME from <etc>/os-release.
func (f FS) OperatingSystem() (string, error) {
	lines, err := readLines(filepath.Join(f.etc, "os-release"))
	if err != nil {
		return "", err
	}
	for _, line := range lines {
		k, v, ok := strings.Cut(line, "=")
		if ok && k == "PRETTY_NAME" {
			return strings.Trim(v, `"'`), nil
		}
	}
	return "", nil
}

// Kernel returns the release from /proc/version ("Linux version <release> ...").
func (f FS) Kernel() (string, error) {
	b, err := os.ReadFile(filepath.Join(f.proc, "version"))
	if err != nil {
		return "", err
	}
	fields := strings.Fields(string(b))
	if len(fields) < 3 {
		return "", fmt.Errorf("%w: version has %d fields", ErrMalformedInput, len(fields))
	}
	return fields[2], nil
}

func (f FS) statusField(pid int, key string) (string, error) {
	b, err := f.readPidFile(pid, "status")
	if err != nil {
		return "", err
	}
	sc := bufio.NewScanner(strings.NewReader(string(b)))
	for sc.Scan() {
		line := sc.Text()
		if rest, ok := strings.CutPrefix(line, key); ok {
			fields := strings.Fields(rest)
			if len(fields) == 0 {
				return "", nil
			}
			return fields[0], nil
		}
	}
	return "", sc.Err()
}

// readPidFile maps "process is gone" errors onto ErrNotFound.
func (f FS) readPidFile(pid int, name string) ([]byte, error) {
	b, err := os.ReadFile(f.pidPath(pid, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ESRCH) {
			return nil, fmt.Errorf("%w: pid %d", ErrNotFound, pid)
		}
		return nil, err
	}
	return b, nil
}

func readLines(path string) ([]string, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	var lines []string
	sc := bufio.NewScanner(fh)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines, sc.Err()
}
