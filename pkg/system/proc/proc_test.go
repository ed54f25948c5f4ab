//go:build linux

package proc

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixture lays out a fake procfs and etc tree under t.TempDir.
type fixture struct {
	t    *testing.T
	proc string
	etc  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	f := &fixture{t: t, proc: filepath.Join(root, "proc"), etc: filepath.Join(root, "etc")}
	f.write(filepath.Join(f.proc, "stat"), "cpu  100 0 50 800 20 0 0 0 0 0\ncpu0 100 0 50 800 20 0 0 0 0 0\nprocesses 321\nprocs_running 2\n")
	f.write(filepath.Join(f.proc, "uptime"), "500.25 1800.10\n")
	f.write(filepath.Join(f.proc, "meminfo"), "MemTotal:  1000 kB\nMemFree:  250 kB\n")
	f.write(filepath.Join(f.proc, "version"), "Linux version 6.8.0-45-generic (buildd@lcy02) #45-Ubuntu SMP\n")
	f.write(filepath.Join(f.etc, "os-release"), "NAME=\"Ubuntu\"\nPRETTY_NAME=\"Ubuntu 24.04.1 LTS\"\n")
	f.write(filepath.Join(f.etc, "passwd"), "root:x:0:0:root:/root:/bin/bash\nalice:x:1000:1000::/home/alice:/bin/zsh\n")
	return f
}

func (f *fixture) write(path, body string) {
	f.t.Helper()
	require.NoError(f.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(f.t, os.WriteFile(path, []byte(body), 0o644))
}

func (f *fixture) addProcess(pid int, stat, status, cmdline string) {
	dir := filepath.Join(f.proc, strconv.Itoa(pid))
	f.write(filepath.Join(dir, "stat"), stat)
	f.write(filepath.Join(dir, "status"), status)
	f.write(filepath.Join(dir, "cmdline"), cmdline)
}

func (f *fixture) fs() FS { return NewFS(f.proc, f.etc) }

const fixtureStat = "1000 (my prog) S 1 1000 1000 0 -1 4194560 500 0 0 0 300 200 10 5 20 0 1 0 4500 10485760 600 18446744073709551615\n"

func TestClockTicksAndPageSize(t *testing.T) {
	t.Setenv("CLK_TCK", "")
	t.Setenv("PAGE_SIZE", "")
	assert.Equal(t, 100, ClockTicks())
	assert.Greater(t, PageSize(), 0, "PageSize must be > 0")

	t.Setenv("CLK_TCK", "250")
	t.Setenv("PAGE_SIZE", "16384")
	assert.Equal(t, 250, ClockTicks())
	assert.Equal(t, 16384, PageSize())
	assert.Equal(t, 250, NewFS("", "").ClockTicks(), "FS captures CLK_TCK at construction")
}

func TestFS_Pids(t *testing.T) {
	f := newFixture(t)
	f.addProcess(1000, fixtureStat, "Uid:\t1000\t1000\t1000\t1000\n", "")
	f.addProcess(7, fixtureStat, "Uid:\t0\t0\t0\t0\n", "")
	require.NoError(t, os.MkdirAll(filepath.Join(f.proc, "self"), 0o755))
	f.write(filepath.Join(f.proc, "12"), "not a dir")

	pids, err := f.fs().Pids()
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{7, 1000}, pids)
}

func TestFS_ProcessStatLine(t *testing.T) {
	f := newFixture(t)
	f.addProcess(1000, fixtureStat, "", "")
	fs := f.fs()

	tokens, err := fs.ProcessStatLine(1000)
	require.NoError(t, err)
	assert.Equal(t, "(my prog)", tokens[1])

	s, err := ParseProcessStat(tokens)
	require.NoError(t, err)
	assert.Equal(t, ProcessSnapshot{PID: 1000, User: 300, System: 200, ChildUser: 10, ChildSystem: 5, Start: 4500}, s)

	_, err = fs.ProcessStatLine(4242)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, fs.Exists(1000))
	assert.False(t, fs.Exists(4242))
}

func TestFS_SystemCounters(t *testing.T) {
	f := newFixture(t)
	fs := f.fs()

	tokens, err := fs.SystemStatLine()
	require.NoError(t, err)
	s, err := ParseSystemStat(tokens)
	require.NoError(t, err)
	assert.Equal(t, Ticks(970), s.Total())
	assert.Equal(t, Ticks(820), s.IdleTotal())

	total, running, err := fs.ProcessCounts()
	require.NoError(t, err)
	assert.Equal(t, 321, total)
	assert.Equal(t, 2, running)

	up, err := fs.Uptime()
	require.NoError(t, err)
	assert.InDelta(t, 500.25, up, 1e-9)

	m, err := fs.MemInfo()
	require.NoError(t, err)
	assert.Equal(t, uint64(1000*1024), m.Total.ToUint64())
	assert.Equal(t, uint64(250*1024), m.Free.ToUint64())

	t.Run("no_cpu_row", func(t *testing.T) {
		f.write(filepath.Join(f.proc, "stat"), "intr 0\n")
		_, err := fs.SystemStatLine()
		require.ErrorIs(t, err, ErrMalformedInput)
	})
	t.Run("bad_uptime", func(t *testing.T) {
		f.write(filepath.Join(f.proc, "uptime"), "soon\n")
		_, err := fs.Uptime()
		require.ErrorIs(t, err, ErrMalformedInput)
	})
}

func TestFS_Descriptors(t *testing.T) {
	f := newFixture(t)
	f.addProcess(1000, fixtureStat,
		"Name:\tmy prog\nUid:\t1000\t1000\t1000\t1000\nVmSize:\t  204800 kB\n",
		"/usr/bin/my-prog\x00--flag\x00value\x00")
	f.addProcess(2, fixtureStat, "Name:\tkthreadd\nUid:\t4321\t4321\t4321\t4321\n", "")
	f.write(filepath.Join(f.proc, "2", "statm"), "0 0 0 0 0 0 0\n")
	f.addProcess(3, fixtureStat, "Name:\tzombie\nUid:\t0\t0\t0\t0\n", "")
	f.write(filepath.Join(f.proc, "3", "statm"), "2560 100 50 1 0 60 0\n")
	t.Setenv("PAGE_SIZE", "4096")
	fs := f.fs()

	cmd, err := fs.Command(1000)
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/my-prog --flag value", cmd)

	user, err := fs.User(1000)
	require.NoError(t, err)
	assert.Equal(t, "alice", user)

	ram, err := fs.RAM(1000)
	require.NoError(t, err)
	assert.Equal(t, uint64(204800*1024), ram.ToUint64())

	t.Run("kernel_thread", func(t *testing.T) {
		cmd, err := fs.Command(2)
		require.NoError(t, err)
		assert.Empty(t, cmd)

		ram, err := fs.RAM(2)
		require.NoError(t, err)
		assert.Zero(t, ram)

		user, err := fs.User(2)
		require.NoError(t, err)
		assert.Equal(t, "4321", user, "unknown uid falls back to the number")
	})

	t.Run("statm_fallback", func(t *testing.T) {
		ram, err := fs.RAM(3)
		require.NoError(t, err)
		assert.Equal(t, uint64(2560*4096), ram.ToUint64())

		f.write(filepath.Join(f.proc, "3", "statm"), "lots\n")
		_, err = fs.RAM(3)
		require.ErrorIs(t, err, ErrMalformedInput)
	})

	t.Run("vanished", func(t *testing.T) {
		for _, fn := range []func() error{
			func() error { _, err := fs.Command(9); return err },
			func() error { _, err := fs.User(9); return err },
			func() error { _, err := fs.RAM(9); return err },
		} {
			require.ErrorIs(t, fn(), ErrNotFound)
		}
	})

	osName, err := fs.OperatingSystem()
	require.NoError(t, err)
	assert.Equal(t, "Ubuntu 24.04.1 LTS", osName)

	kernel, err := fs.Kernel()
	require.NoError(t, err)
	assert.Equal(t, "6.8.0-45-generic", kernel)
}

func TestFS_LiveSelf(t *testing.T) {
	if _, err := os.Stat("/proc/self/stat"); err != nil {
		t.Skipf("skipping: no procfs: %v", err)
	}
	fs := NewFS("", "")
	me := os.Getpid()

	tokens, err := fs.ProcessStatLine(me)
	require.NoError(t, err)
	s, err := ParseProcessStat(tokens)
	require.NoError(t, err)
	assert.Equal(t, me, s.PID)

	up, err := fs.Uptime()
	require.NoError(t, err)
	assert.Greater(t, up, s.Start.Seconds(fs.ClockTicks())-1)

	sysTokens, err := fs.SystemStatLine()
	require.NoError(t, err)
	sys, err := ParseSystemStat(sysTokens)
	require.NoError(t, err)
	assert.Greater(t, sys.Total(), Ticks(0))
}

func TestFS_UserPasswd(t *testing.T) {
	f := newFixture(t)
	f.addProcess(1000, fixtureStat, "Uid:\t1000\t1000\t1000\t1000\n", "")
	passwd := filepath.Join(f.etc, "passwd")

	t.Run("missing_passwd", func(t *testing.T) {
		require.NoError(t, os.Remove(passwd))
		user, err := f.fs().User(1000)
		require.NoError(t, err)
		assert.Equal(t, "1000", user)
	})

	t.Run("unreadable_passwd", func(t *testing.T) {
		// a directory opens fine but fails on read
		require.NoError(t, os.RemoveAll(passwd))
		require.NoError(t, os.MkdirAll(passwd, 0o755))
		_, err := f.fs().User(1000)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrNotFound)
		assert.Contains(t, err.Error(), "passwd")
	})
}
