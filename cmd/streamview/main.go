// Command streamview is a headless RTSP viewer: it drives a viewing
// session, reports lifecycle transitions and delivery statistics, and
// can optionally restart the session after faults with exponential
// backoff.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/pflag"

	streamview "github.com/e7canasta/streamview"
	"github.com/e7canasta/streamview/internal/backoff"
)

const version = "v0.1.0"

type cliFlags struct {
	configPath    string
	url           string
	transport     string
	latency       time.Duration
	timeout       time.Duration
	decodePaths   []string
	lowLatency    bool
	decodeThreads int
	skipCorrupt   bool

	restart     bool
	restartMax  int
	statsEvery  time.Duration
	debug       bool
	showVersion bool
}

func main() {
	flags := &cliFlags{}
	pflag.StringVarP(&flags.configPath, "config", "c", "", "YAML config file")
	pflag.StringVarP(&flags.url, "url", "u", "", "RTSP stream URL")
	pflag.StringVar(&flags.transport, "transport", "", "preferred transport: any, udp, tcp")
	pflag.DurationVar(&flags.latency, "latency", 0, "jitter buffer window (default 200ms)")
	pflag.DurationVar(&flags.timeout, "timeout", 0, "connection timeout (default 5s)")
	pflag.StringSliceVar(&flags.decodePaths, "decode", nil,
		"decode path preference order: vaapi-h264, vaapi-generic, software")
	pflag.BoolVar(&flags.lowLatency, "low-latency", false, "enable decoder low-latency mode")
	pflag.IntVar(&flags.decodeThreads, "decode-threads", 0, "software decode threads (0 = auto)")
	pflag.BoolVar(&flags.skipCorrupt, "skip-corrupt", false, "drop damaged frames at the decoder")
	pflag.BoolVarP(&flags.restart, "restart", "r", false, "restart session after faults with backoff")
	pflag.IntVar(&flags.restartMax, "restart-max", 5, "max restart attempts per fault episode")
	pflag.DurationVar(&flags.statsEvery, "stats-interval", 10*time.Second, "interval between stats reports")
	pflag.BoolVar(&flags.debug, "debug", false, "enable debug logging")
	pflag.BoolVarP(&flags.showVersion, "version", "V", false, "show version and exit")
	pflag.Parse()

	if flags.showVersion {
		fmt.Printf("streamview %s\n", version)
		os.Exit(0)
	}

	logLevel := slog.LevelInfo
	if flags.debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))

	var file *fileConfig
	if flags.configPath != "" {
		loaded, err := loadConfigFile(flags.configPath)
		if err != nil {
			fatalf("%v", err)
		}
		file = loaded
	}

	cfg, err := sessionConfig(file, flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		pflag.Usage()
		os.Exit(1)
	}

	printBanner(cfg)

	session, err := streamview.New(cfg)
	if err != nil {
		fatalf("creating session: %v", err)
	}
	defer session.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	viewer := &viewer{
		session:    session,
		statsEvery: flags.statsEvery,
	}

	if flags.restart {
		retryCfg := backoff.DefaultConfig()
		if file != nil && file.Restart.MaxAttempts > 0 {
			retryCfg.MaxRetries = file.Restart.MaxAttempts
		}
		if flags.restartMax > 0 {
			retryCfg.MaxRetries = flags.restartMax
		}
		if file != nil && file.Restart.InitialDelayS > 0 {
			retryCfg.Delay = time.Duration(file.Restart.InitialDelayS) * time.Second
		}
		if file != nil && file.Restart.MaxDelayS > 0 {
			retryCfg.MaxDelay = time.Duration(file.Restart.MaxDelayS) * time.Second
		}
		err = backoff.Retry(ctx, viewer.view, retryCfg)
	} else {
		err = viewer.view(ctx)
	}

	if err != nil && ctx.Err() == nil {
		fatalf("session ended: %v", err)
	}

	printFinalStats(session.Stats())
}

// viewer runs one session episode at a time and renders its progress.
type viewer struct {
	session    *streamview.Session
	statsEvery time.Duration
}

// view drives the session until it stops. A fault is returned as an
// error so the backoff loop can decide whether to try again; an orderly
// stop (signal or end of stream) returns nil.
func (v *viewer) view(ctx context.Context) error {
	state, err := v.session.Start(ctx)
	if err != nil {
		return err
	}
	color.Cyan("session committed (%s), waiting for stream...", state)

	ticker := time.NewTicker(v.statsEvery)
	defer ticker.Stop()

	frames := 0
	for {
		select {
		case <-ctx.Done():
			color.Yellow("interrupted, stopping session...")
			return v.session.Stop()

		case n, ok := <-v.session.Notifications():
			if !ok {
				return nil
			}
			switch n.Kind {
			case streamview.NotifyStarting:
				color.Cyan("◌ starting, building decode graph...")
			case streamview.NotifyActive:
				color.Green("● active on %s decode path", n.DecodePath)
			case streamview.NotifyStopped:
				color.Yellow("○ stopped (orderly)")
				return nil
			case streamview.NotifyFaulted:
				color.Red("✗ fault [%s]: %s", n.Category, n.Reason)
				return fmt.Errorf("fault [%s]: %s", n.Category, n.Reason)
			}

		case f, ok := <-v.session.Frames():
			if !ok {
				return nil
			}
			frames++
			slog.Debug("frame received",
				"seq", f.Seq,
				"size_bytes", len(f.Data),
				"trace_id", f.TraceID,
			)

		case <-ticker.C:
			printStats(v.session.Stats())
		}
	}
}

func printBanner(cfg streamview.Config) {
	fmt.Printf("streamview %s\n", version)
	fmt.Printf("  URL:       %s\n", cfg.Endpoint.URL)
	fmt.Printf("  Transport: %s\n", cfg.Endpoint.Transport)
	if len(cfg.DecodePaths) > 0 {
		fmt.Printf("  Decode:   ")
		for _, p := range cfg.DecodePaths {
			fmt.Printf(" %s", p)
		}
		fmt.Printf("\n")
	} else {
		fmt.Printf("  Decode:    vaapi-h264 vaapi-generic software (default)\n")
	}
	fmt.Printf("\n")
}

func printStats(stats streamview.SessionStats) {
	fmt.Printf("── stats ──────────────────────────────\n")
	fmt.Printf("  State:       %s\n", stats.State)
	if stats.DecodePath != "" {
		hw := "software"
		if stats.Hardware {
			hw = "hardware"
		}
		fmt.Printf("  Decode path: %s (%s)\n", stats.DecodePath, hw)
	}
	fmt.Printf("  Frames:      %d (dropped %d, %.1f%%)\n",
		stats.FrameCount, stats.FramesDropped, stats.DropRate)
	fmt.Printf("  FPS:         %.2f\n", stats.FPSReal)
	fmt.Printf("  Latency:     %d ms since last frame\n", stats.LatencyMS)
	fmt.Printf("  Data:        %.2f MB\n", float64(stats.BytesRead)/1024/1024)
	if total := stats.FaultsNetwork + stats.FaultsCodec + stats.FaultsAuth + stats.FaultsUnknown; total > 0 {
		fmt.Printf("  Faults:      network=%d codec=%d auth=%d unknown=%d\n",
			stats.FaultsNetwork, stats.FaultsCodec, stats.FaultsAuth, stats.FaultsUnknown)
	}
	fmt.Printf("───────────────────────────────────────\n")
}

func printFinalStats(stats streamview.SessionStats) {
	fmt.Printf("\nfinal: %d frames delivered, %d dropped (%.1f%%), %.2f MB\n",
		stats.FrameCount, stats.FramesDropped, stats.DropRate,
		float64(stats.BytesRead)/1024/1024)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
