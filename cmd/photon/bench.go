package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"os"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/photon/internal/config"
	"github.com/vango-dev/photon/pkg/client"
	"github.com/vango-dev/photon/pkg/variant"
)

type benchOptions struct {
	addr         string
	embedded     bool
	clients      int
	duration     time.Duration
	payloadBytes int
	jsonOutput   string
}

func benchCmd() *cobra.Command {
	var opts benchOptions

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure call throughput and latency",
		Long: `Open several connections and call echo.bytes in a loop on each,
then report throughput and round-trip latency percentiles.

Examples:
  photon bench --embedded
  photon bench --addr=localhost:6666 --clients=100 --duration=30s
  photon bench --embedded --json=report.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := runBench(cmd.Context(), opts)
			if err != nil {
				return err
			}
			writeSummary(os.Stderr, report)
			if opts.jsonOutput != "" {
				return writeJSON(opts.jsonOutput, report)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.addr, "addr", "a", "", "Server TCP address (default from photon.json)")
	cmd.Flags().BoolVar(&opts.embedded, "embedded", false, "Run an in-process server on a loopback port")
	cmd.Flags().IntVarP(&opts.clients, "clients", "n", 20, "Concurrent connections")
	cmd.Flags().DurationVarP(&opts.duration, "duration", "d", 10*time.Second, "Run time")
	cmd.Flags().IntVar(&opts.payloadBytes, "payload", 64, "ByteArray payload size per call")
	cmd.Flags().StringVar(&opts.jsonOutput, "json", "", `Write the report as JSON to this path ("-" for stdout)`)

	return cmd
}

type benchReport struct {
	Version    string         `json:"version"`
	Clients    int            `json:"clients"`
	DurationMS int64          `json:"duration_ms"`
	Payload    int            `json:"payload_bytes"`
	Calls      uint64         `json:"calls"`
	Errors     uint64         `json:"errors"`
	CallsPerS  float64        `json:"calls_per_sec"`
	LatencyMS  latencyInfo    `json:"latency_ms"`
	Runtime    runtimeSummary `json:"runtime"`
}

type latencyInfo struct {
	Min float64 `json:"min"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
	Max float64 `json:"max"`
}

type runtimeSummary struct {
	GoVersion  string  `json:"go_version"`
	MaxProcs   int     `json:"gomaxprocs"`
	AllocMB    float64 `json:"alloc_mb"`
	NumGC      uint32  `json:"num_gc"`
	PauseTotal float64 `json:"gc_pause_total_ms"`
}

func runBench(ctx context.Context, opts benchOptions) (benchReport, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.clients < 1 {
		opts.clients = 1
	}

	addr := opts.addr
	if opts.embedded {
		stop, embeddedAddr, err := startEmbedded(ctx)
		if err != nil {
			return benchReport{}, err
		}
		defer stop()
		addr = embeddedAddr
	} else if addr == "" {
		cfg, err := loadConfig()
		if err != nil {
			return benchReport{}, err
		}
		addr = dialAddress(cfg.Server.Address)
	}

	clients := make([]*client.Client, 0, opts.clients)
	defer func() {
		for _, c := range clients {
			_ = c.Close()
		}
	}()
	for i := 0; i < opts.clients; i++ {
		c, err := dialServer(ctx, callOptions{addr: addr, timeout: 10 * time.Second})
		if err != nil {
			return benchReport{}, err
		}
		clients = append(clients, c)
	}

	runCtx, cancel := context.WithTimeout(ctx, opts.duration)
	defer cancel()

	payload := bytes.Repeat([]byte{0xAB}, opts.payloadBytes)
	var (
		calls, failures atomic.Uint64
		samplesMu       sync.Mutex
		samples         []time.Duration
		before, after   runtime.MemStats
		wg              sync.WaitGroup
	)

	runtime.GC()
	runtime.ReadMemStats(&before)
	start := time.Now()

	for _, c := range clients {
		wg.Add(1)
		go func(c *client.Client) {
			defer wg.Done()
			var local []time.Duration
			for runCtx.Err() == nil {
				t0 := time.Now()
				v, err := c.Call(runCtx, methodEchoBytes, variant.TypeByteArray, variant.NewByteArray(payload))
				if err != nil {
					if runCtx.Err() == nil {
						failures.Add(1)
					}
					if c.Err() != nil {
						break
					}
					continue
				}
				if !bytes.Equal(v.Bytes(), payload) {
					failures.Add(1)
					continue
				}
				calls.Add(1)
				local = append(local, time.Since(t0))
			}
			samplesMu.Lock()
			samples = append(samples, local...)
			samplesMu.Unlock()
		}(c)
	}
	wg.Wait()
	elapsed := time.Since(start)
	runtime.ReadMemStats(&after)

	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })

	report := benchReport{
		Version:    version,
		Clients:    opts.clients,
		DurationMS: elapsed.Milliseconds(),
		Payload:    opts.payloadBytes,
		Calls:      calls.Load(),
		Errors:     failures.Load(),
		Runtime: runtimeSummary{
			GoVersion:  runtime.Version(),
			MaxProcs:   runtime.GOMAXPROCS(0),
			AllocMB:    float64(after.TotalAlloc-before.TotalAlloc) / (1024 * 1024),
			NumGC:      after.NumGC - before.NumGC,
			PauseTotal: ms(time.Duration(after.PauseTotalNs - before.PauseTotalNs)),
		},
	}
	if elapsed > 0 {
		report.CallsPerS = float64(report.Calls) / elapsed.Seconds()
	}
	if len(samples) > 0 {
		report.LatencyMS = latencyInfo{
			Min: ms(samples[0]),
			P50: ms(percentile(samples, 0.50)),
			P95: ms(percentile(samples, 0.95)),
			P99: ms(percentile(samples, 0.99)),
			Max: ms(samples[len(samples)-1]),
		}
	}
	return report, nil
}

// startEmbedded serves the default configuration on a loopback port.
func startEmbedded(ctx context.Context) (stop func(), addr string, err error) {
	cfg := config.New()
	cfg.Server.HTTPAddress = ""
	cfg.Server.MaxConnections = 0
	cfg.Metrics.Enabled = false
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	srv, err := newServer(ctx, cfg, logger)
	if err != nil {
		return nil, "", err
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, "", err
	}
	go func() { _ = srv.Serve(ln) }()

	stop = func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
	return stop, ln.Addr().String(), nil
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[len(sorted)-1]
	}
	idx := int(math.Ceil(float64(len(sorted))*p)) - 1
	if idx < 0 {
		idx = 0
	}
	return sorted[idx]
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func writeSummary(w io.Writer, report benchReport) {
	fmt.Fprintln(w, "=== photon bench ===")
	fmt.Fprintf(w, "Clients: %d\n", report.Clients)
	fmt.Fprintf(w, "Duration: %s\n", time.Duration(report.DurationMS)*time.Millisecond)
	fmt.Fprintf(w, "Payload bytes: %d\n", report.Payload)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Total calls: %d\n", report.Calls)
	fmt.Fprintf(w, "Throughput: %.1f calls/s\n", report.CallsPerS)
	fmt.Fprintf(w, "Errors: %d\n", report.Errors)
	fmt.Fprintln(w)

	if report.LatencyMS.Max == 0 {
		fmt.Fprintln(w, "No latency samples recorded.")
	} else {
		fmt.Fprintln(w, "RTT (call -> return):")
		fmt.Fprintf(w, "  min: %.2f ms\n", report.LatencyMS.Min)
		fmt.Fprintf(w, "  p50: %.2f ms\n", report.LatencyMS.P50)
		fmt.Fprintf(w, "  p95: %.2f ms\n", report.LatencyMS.P95)
		fmt.Fprintf(w, "  p99: %.2f ms\n", report.LatencyMS.P99)
		fmt.Fprintf(w, "  max: %.2f ms\n", report.LatencyMS.Max)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Go runtime (process-wide):")
	fmt.Fprintf(w, "  alloc:    %.2f MB\n", report.Runtime.AllocMB)
	fmt.Fprintf(w, "  num_gc:   %d\n", report.Runtime.NumGC)
	fmt.Fprintf(w, "  gc_pause: %.2f ms (total)\n", report.Runtime.PauseTotal)
}

func writeJSON(path string, report benchReport) error {
	var out io.Writer
	if path == "-" {
		out = os.Stdout
	} else {
		file, err := os.Create(path)
		if err != nil {
			return err
		}
		defer file.Close()
		out = file
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
