package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BurntSushi/toml"

	"driftd/internal/baseline"
	"driftd/internal/confidence"
	"driftd/internal/config"
	"driftd/internal/drift"
	"driftd/internal/export"
	"driftd/internal/feature"
	"driftd/internal/logging"
	"driftd/internal/metrics"
	"driftd/internal/monitor"
	"driftd/internal/similarity"
)

// inputRecord is one snapshot line of the NDJSON input stream.
type inputRecord struct {
	SubjectID string           `json:"subject_id"`
	Snapshot  feature.Snapshot `json:"snapshot"`
}

// outputRecord is one report line of the NDJSON output stream.
type outputRecord struct {
	SubjectID      string          `json:"subject_id"`
	Mode           drift.Mode      `json:"mode"`
	ProfileCreated bool            `json:"profile_created,omitempty"`
	Score          json.RawMessage `json:"score,omitempty"`
	Drift          json.RawMessage `json:"drift,omitempty"`
	Assessment     json.RawMessage `json:"assessment,omitempty"`
	Warnings       []string        `json:"warnings,omitempty"`
}

func cmdRun(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "configuration file (.toml or .yaml)")
	inputPath := fs.String("input", "-", "snapshot stream, NDJSON (- for stdin)")
	outputPath := fs.String("output", "-", "report stream, NDJSON (- for stdout)")
	fs.Parse(args)

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fatal(err)
		}
		cfg = loaded
	}

	log, closer, err := logging.New(cfg.Logging)
	if err != nil {
		fatal(err)
	}
	if closer != nil {
		defer closer.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var met *metrics.Metrics
	if cfg.Metrics.Enabled {
		met = metrics.New()
		srv := &http.Server{
			Addr:              cfg.Metrics.ListenAddr,
			Handler:           met.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Info("metrics endpoint listening", "addr", cfg.Metrics.ListenAddr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics endpoint failed", "error", err)
			}
		}()
		defer srv.Shutdown(context.Background())
	}

	pipeline := monitor.New(
		baseline.NewAggregator(cfg.Baseline, log),
		similarity.NewEngine(cfg.Similarity, log),
		drift.NewDetector(cfg.Drift, log),
		confidence.NewEstimator(cfg.Confidence, log),
		met,
		log,
	)

	validator, err := export.NewValidator()
	if err != nil {
		fatal(err)
	}

	// Hot reload of analytics tunables: validated edits to the config file
	// are applied between records. Logging and metrics settings stay as
	// loaded at startup.
	reloads := make(chan *config.Config, 1)
	if *configPath != "" {
		watchStop := make(chan struct{})
		defer close(watchStop)
		go func() {
			err := config.Watch(*configPath, log, func(next *config.Config) {
				select {
				case <-reloads:
				default:
				}
				reloads <- next
			}, watchStop)
			if err != nil {
				log.Warn("config watch unavailable", "error", err)
			}
		}()
	}

	in, err := openInput(*inputPath)
	if err != nil {
		fatal(err)
	}
	defer in.Close()

	out, err := openOutput(*outputPath)
	if err != nil {
		fatal(err)
	}
	defer out.Close()

	if err := runLoop(ctx, log, pipeline, validator, reloads, in, out); err != nil {
		fatal(err)
	}
}

// runLoop processes snapshot records until the input ends or the context
// is cancelled. Malformed lines are logged and skipped; pending config
// reloads are applied between records.
func runLoop(ctx context.Context, log *slog.Logger, pipeline *monitor.Pipeline, validator *export.Validator, reloads <-chan *config.Config, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	encoder := json.NewEncoder(out)

	var processed, skipped int
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			log.Info("shutting down", "processed", processed, "skipped", skipped)
			return nil
		case next := <-reloads:
			pipeline.Reconfigure(next)
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec inputRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			skipped++
			log.Warn("skipping malformed snapshot line", "error", err)
			continue
		}
		if rec.SubjectID == "" {
			skipped++
			log.Warn("skipping snapshot without subject_id")
			continue
		}

		result := pipeline.Tick(rec.SubjectID, rec.Snapshot)
		outRec, err := encodeResult(validator, pipeline, &result)
		if err != nil {
			skipped++
			log.Warn("skipping unexportable result", "subject", rec.SubjectID, "error", err)
			continue
		}
		if err := encoder.Encode(outRec); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		processed++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read snapshots: %w", err)
	}
	log.Info("input drained", "processed", processed, "skipped", skipped)
	return nil
}

func encodeResult(validator *export.Validator, pipeline *monitor.Pipeline, result *monitor.TickResult) (*outputRecord, error) {
	rec := &outputRecord{
		SubjectID:      result.SubjectID,
		Mode:           pipeline.Mode(result.SubjectID),
		ProfileCreated: result.ProfileCreated,
		Warnings:       result.Warnings,
	}
	if result.Score != nil {
		data, err := validator.Score(result.Score)
		if err != nil {
			return nil, err
		}
		rec.Score = data
	}
	if result.Drift != nil {
		data, err := validator.Detection(result.Drift)
		if err != nil {
			return nil, err
		}
		rec.Drift = data
	}
	if result.Assessment != nil {
		data, err := validator.Assessment(result.Assessment)
		if err != nil {
			return nil, err
		}
		rec.Assessment = data
	}
	return rec, nil
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

func openOutput(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopWriteCloser{os.Stdout}, nil
	}
	return os.Create(path)
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func cmdCheckConfig(args []string) {
	fs := flag.NewFlagSet("check-config", flag.ExitOnError)
	configPath := fs.String("config", "", "configuration file (.toml or .yaml)")
	fs.Parse(args)

	if *configPath == "" {
		fatal(fmt.Errorf("check-config requires -config"))
	}
	if _, err := config.Load(*configPath); err != nil {
		fatal(err)
	}
	fmt.Println("OK")
}

func cmdDefaults() {
	if err := toml.NewEncoder(os.Stdout).Encode(config.Default()); err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}
