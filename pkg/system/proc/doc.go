// Package proc reads Linux process and CPU accounting counters from procfs
// and splits them into typed snapshots.
//
// # Layout
//
// Two layers live here:
//
//   - Parsers (stat.go) are pure functions over already-read text. They take
//     a line split into tokens and extract counters by fixed 1-based field
//     index, the way proc(5) numbers them:
//
//     /proc/<pid>/stat   14 utime, 15 stime, 16 cutime, 17 cstime, 22 starttime
//     /proc/stat "cpu"   2..11 user nice system idle iowait irq softirq steal guest guest_nice
//
//   - FS (proc.go) is the thin I/O side: it opens files under a procfs root
//     (and an /etc root for os-release and passwd) and hands token lines to
//     the parsers. Tests point it at a fixture tree built with t.TempDir.
//
// # The comm field
//
// Field 2 of /proc/<pid>/stat is the command name in parentheses and may
// itself contain spaces or ')' characters. SplitProcessStat isolates
// everything between the first '(' and the last ')' into one token before
// splitting the rest on whitespace, so indices 14..22 stay aligned.
//
// # Errors
//
//   - ErrMalformedInput: too few fields or a non-integer counter. Zero is a
//     valid counter value, so this is never masked as zero.
//   - ErrNotFound: the process vanished. Expected under process churn.
//
// Both are wrapped with detail; test with errors.Is.
//
// # Clock ticks
//
// Counters are in USER_HZ ticks. ClockTicks returns CLK_TCK from the
// environment when set, otherwise 100, which is what every Go-supported
// Linux platform uses (sysconf(_SC_CLK_TCK) would require cgo).
package proc
