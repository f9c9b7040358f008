// Command shardqueryd wires the Catalog, Analyzer, Rewriter, Binder,
// shard executors and Batch Processor into a Task Manager and drives one
// submit/status/fetch cycle against it. A concrete HTTP server exposing
// the task endpoints from spec.md §6 is out of scope; this binary exists
// to exercise the wiring end to end.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/1auti/dynamic-querys-sub000/internal/filter"
	"github.com/1auti/dynamic-querys-sub000/internal/task"
	"github.com/1auti/dynamic-querys-sub000/internal/wiring"
)

func main() {
	if err := run(); err != nil {
		log.WithError(err).Fatal("shardqueryd exited with an error")
	}
}

func run() error {
	var cfg wiring.Config
	var queryCode string
	var timeout time.Duration

	cfg.Bind(pflag.CommandLine)
	pflag.StringVar(&queryCode, "query", "", "catalog code to submit once the App is wired (skipped if empty)")
	pflag.DurationVar(&timeout, "timeout", 30*time.Second, "how long to wait for the demo task to finish")
	pflag.Parse()

	if err := cfg.Preflight(); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	app, cleanup, err := wiring.New(ctx, &cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	go cleanupSweep(ctx, app, cfg.TaskCleanupInterval, cfg.TaskMaxAge)

	if queryCode == "" {
		log.Info("wiring assembled, no --query given; nothing to run")
		<-ctx.Done()
		return nil
	}

	return demo(ctx, app, queryCode, timeout)
}

// cleanupSweep periodically reclaims terminal tasks older than maxAge,
// mirroring the teacher's preference for a ticking background goroutine
// over an ad hoc timer per call site.
func cleanupSweep(ctx context.Context, app *wiring.App, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := app.Manager.Cleanup(maxAge); n > 0 {
				log.WithField("removed", n).Info("swept terminal tasks")
			}
		}
	}
}

func demo(ctx context.Context, app *wiring.App, queryCode string, timeout time.Duration) error {
	f := &filter.Filter{UseAllShards: true}

	id, err := app.Manager.Submit(ctx, queryCode, f)
	if err != nil {
		return err
	}
	log.WithField("taskId", id).Info("submitted task")

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		st, err := app.Manager.Status(id)
		if err != nil {
			return err
		}
		switch st.Status {
		case task.StatusCompleted:
			return reportResult(app, id)
		case task.StatusFailed:
			return fmt.Errorf("task %s failed: %s", id, st.ErrorMsg)
		case task.StatusCancelled:
			return fmt.Errorf("task %s was cancelled", id)
		}
		time.Sleep(50 * time.Millisecond)
	}
	return fmt.Errorf("task %s did not finish within %s", id, timeout)
}

func reportResult(app *wiring.App, id string) error {
	data, err := app.Manager.Fetch(id)
	if err != nil {
		return err
	}
	var rows []map[string]any
	if err := json.Unmarshal(data, &rows); err != nil {
		return err
	}
	log.WithField("rows", len(rows)).Info("task completed")
	return nil
}
