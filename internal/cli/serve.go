package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lazypower/strata/internal/config"
	"github.com/lazypower/strata/internal/dualwrite"
	"github.com/lazypower/strata/internal/engine"
	"github.com/lazypower/strata/internal/ratelimit"
	"github.com/lazypower/strata/internal/server"
	"github.com/lazypower/strata/internal/store"
	"github.com/lazypower/strata/internal/tools"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the memory tool protocol on stdin/stdout",
	RunE:  runServe,
}

// maxLineBytes bounds a single protocol line. Content tops out at 100k
// characters; the envelope and metadata ride alongside.
const maxLineBytes = 1 << 20

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	dataDir := cfg.DataDir
	if dataDir == "" {
		var err error
		dataDir, err = store.DefaultDataDir()
		if err != nil {
			return fmt.Errorf("resolve data dir: %w", err)
		}
	}

	coord, err := dualwrite.Open(dataDir, cfg.CacheDir)
	if err != nil {
		return fmt.Errorf("open stores: %w", err)
	}
	defer coord.Close()

	eng := engine.New(coord, engine.Config{
		Enabled:       cfg.Decay.Enabled,
		Rate:          cfg.Decay.Rate,
		Threshold:     cfg.Decay.Threshold,
		Immortal:      cfg.Decay.Immortal,
		SweepInterval: cfg.Decay.SweepInterval(),
		BatchSize:     cfg.Decay.BatchSize,
	})
	eng.Start()
	defer eng.Stop()

	limiter := ratelimit.New(ratelimit.DefaultConfig())
	limiter.Start()
	defer limiter.Stop()

	var audit *tools.AuditLog
	if cfg.AuditLog != "" {
		audit, err = tools.OpenAudit(cfg.AuditLog)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: audit log disabled: %v\n", err)
		} else {
			defer audit.Close()
		}
	}

	dispatcher := tools.New(coord, eng, limiter, audit, VersionString(), cfg.Debug)

	// Optional HTTP probe surface.
	var httpServer *http.Server
	if cfg.HTTPAddr != "" {
		httpServer = &http.Server{
			Addr:    cfg.HTTPAddr,
			Handler: server.New(coord, eng, VersionString()),
		}
		go func() {
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				fmt.Fprintf(os.Stderr, "probe server error: %v\n", err)
			}
		}()
		fmt.Fprintf(os.Stderr, "  probes: http://%s/api/health\n", cfg.HTTPAddr)
	}

	fmt.Fprintf(os.Stderr, "strata %s serving on stdio\n", VersionString())
	fmt.Fprintf(os.Stderr, "  data: %s\n", dataDir)
	if coord.DualWrite() {
		fmt.Fprintf(os.Stderr, "  cache: %s\n", cfg.CacheDir)
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	lines := make(chan []byte)
	go readLines(os.Stdin, lines)

	out := json.NewEncoder(os.Stdout)

loop:
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				break loop // EOF: client closed the pipe
			}
			respond(dispatcher, out, line)
		case <-done:
			fmt.Fprintln(os.Stderr, "\nshutting down...")
			break loop
		}
	}

	if httpServer != nil {
		httpServer.Close()
	}
	return nil
}

// readLines feeds stdin lines to the dispatcher loop. Blank lines are
// skipped; the channel closes on EOF.
func readLines(r *os.File, lines chan<- []byte) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		buf := make([]byte, len(line))
		copy(buf, line)
		lines <- buf
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "stdin: %v\n", err)
	}
	close(lines)
}

// respond decodes one request line, dispatches it, and writes exactly one
// envelope line.
func respond(d *tools.Dispatcher, out *json.Encoder, line []byte) {
	var req tools.Request
	if err := json.Unmarshal(line, &req); err != nil {
		out.Encode(tools.Response{
			Success: false,
			Err: &tools.ErrorBody{
				Code:       tools.CodeInvalidInput,
				Message:    "request is not valid JSON",
				StatusCode: 400,
				Timestamp:  time.Now().UnixMilli(),
			},
		})
		return
	}
	out.Encode(d.Dispatch(req))
}
