//go:build linux

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ja7ad/proctop/pkg/config"
	"github.com/ja7ad/proctop/pkg/logger"
	"github.com/ja7ad/proctop/pkg/system/proc"
	"github.com/ja7ad/proctop/pkg/system/util"
	"github.com/ja7ad/proctop/pkg/telemetry"
	"github.com/ja7ad/proctop/pkg/types"
)

const maxCommandWidth = 48

var _ telemetry.Source = proc.FS{}

type opts struct {
	samples int
	ema     float64
	jsonOut bool
}

func main() {
	cfg := config.Load()
	var o opts

	root := &cobra.Command{
		Use:   "proctop [PID|PID..PID]...",
		Short: "Host and per-process CPU/memory telemetry from /proc",
		Long: `proctop samples /proc at a fixed interval and prints system CPU busy %
(interval average since the previous sample), memory used %, and for each
process its lifetime-average CPU %, virtual memory size and age.

With no PID arguments every process is sampled. Environment variables
(PROCTOP_*, LOG_LEVEL, LOG_FORMAT, optionally from .env) set defaults that
flags override.

Examples:
  proctop -s 5 -i 2s
  proctop --json -s 1 1 $(pidof sshd)
  proctop -n 0 1000..1100`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg, o, args)
		},
	}

	f := root.Flags()
	f.DurationVarP(&cfg.Interval, "interval", "i", cfg.Interval, "sampling interval (e.g. 1s, 500ms)")
	f.IntVarP(&o.samples, "samples", "s", 0, "number of samples to print (0 = run until Ctrl-C)")
	f.IntVarP(&cfg.Top, "rows", "n", cfg.Top, "process rows to print per sample (0 = all)")
	f.Float64Var(&o.ema, "ema", 0, "EMA alpha for system CPU smoothing [0..1], 0 disables")
	f.BoolVar(&o.jsonOut, "json", false, "write one JSON object per sample instead of a table")
	f.IntVar(&cfg.Workers, "workers", cfg.Workers, "processes read concurrently")
	f.StringVar(&cfg.ProcRoot, "proc", cfg.ProcRoot, "procfs mount point")
	f.StringVar(&cfg.EtcRoot, "etc", cfg.EtcRoot, "directory holding os-release and passwd")
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")

	if err := root.Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, o opts, args []string) error {
	pids, err := util.ParsePIDs(args)
	if err != nil {
		return err
	}
	if o.ema < 0 || o.ema > 1 {
		return fmt.Errorf("ema must be in [0,1]")
	}
	if o.samples < 0 {
		return fmt.Errorf("samples must be >= 0")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := logger.New(cfg)
	src := proc.NewFS(cfg.ProcRoot, cfg.EtcRoot)

	topts := []telemetry.Option{telemetry.WithLogger(log), telemetry.WithWorkers(cfg.Workers)}
	if len(pids) > 0 {
		for _, pid := range pids {
			if !src.Exists(pid) {
				log.Warn("pid not running, it will be skipped until it appears", "pid", pid)
			}
		}
		topts = append(topts, telemetry.WithPIDs(pids))
	}
	tm := telemetry.New(src, topts...)

	var enc *json.Encoder
	if o.jsonOut {
		enc = json.NewEncoder(os.Stdout)
	} else {
		host, err := tm.Host()
		if err != nil {
			log.Warn("host info", "err", err)
		}
		fmt.Printf(_console, host.OperatingSystem, host.Kernel, src.ClockTicks(), cfg.Interval,
			time.Now().Format("2006-01-02 15:04:05"))
	}

	var ema *util.EMA
	if o.ema > 0 {
		ema = util.NewEMA(o.ema)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	sampleN := 0
	for {
		select {
		case <-ctx.Done():
			log.Info("interrupted")
			return nil

		case <-ticker.C:
			s, err := tm.Sample(ctx)
			if err != nil {
				switch {
				case ctx.Err() != nil:
					return nil
				case errors.Is(err, telemetry.ErrMalformedInput):
					// the counter layout does not match this platform; retrying won't help
					return fmt.Errorf("incompatible /proc format: %w", err)
				}
				log.Warn("sample error", "err", err)
				continue
			}

			if ema != nil && s.CPU.Valid {
				s.CPU.Percent = util.ClampPercent(ema.Next(s.CPU.Percent))
			}

			if enc != nil {
				if err := enc.Encode(s); err != nil {
					return fmt.Errorf("write json: %w", err)
				}
			} else {
				printSample(os.Stdout, s, cfg.Top)
			}

			sampleN++
			if o.samples > 0 && sampleN >= o.samples {
				return nil
			}
		}
	}
}

func printSample(w io.Writer, s *telemetry.Sample, rows int) {
	fmt.Fprintf(w, "\n%s  cpu %s  mem %s  procs %d (%d running)  up %s\n",
		s.At.Format("15:04:05"), s.CPU, s.Memory, s.TotalProcesses, s.RunningProcesses,
		types.Elapsed(s.Uptime))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PID\tUSER\tCPU%\tRAM\tTIME+\tCOMMAND")
	procs := s.Processes
	if rows > 0 && len(procs) > rows {
		procs = procs[:rows]
	}
	for _, p := range procs {
		cpu := "n/a"
		if p.CPU.Valid {
			cpu = fmt.Sprintf("%.1f", p.CPU.Percent)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			p.PID, p.User, cpu, p.RAM.Humanized(), types.Elapsed(p.Age), truncate(p.Command, maxCommandWidth))
	}
	tw.Flush()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

const _console = `proctop - host and process CPU/memory telemetry

       OS: %s
       Kernel: %s
       Clock ticks: %d/s
       Interval: %s

Sampling as of %s:
`
