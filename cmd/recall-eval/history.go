package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/newsrec/recall-eval/internal/bus"
	"github.com/newsrec/recall-eval/internal/evaluation"
	"github.com/newsrec/recall-eval/internal/pkg/errors"
	"github.com/newsrec/recall-eval/internal/pkg/logger"
	"github.com/newsrec/recall-eval/internal/report"
)

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List, replay or follow evaluation reports",
		Long: `Without flags, read the bus event archive (bus.event_log) and list the
evaluation reports published with --publish, oldest first.

  --follow   subscribe to the bus topic and print each report as it arrives
  --replay   republish archived reports onto the configured bus

Combine both to stream the archive through the bus in one process:

  recall-eval history --replay --follow --limit 10`,
		Args: cobra.NoArgs,
		RunE: runHistory,
	}

	cmd.Flags().Duration("since", 0, "only use reports archived within this window (e.g. 24h); 0 uses all")
	cmd.Flags().IntP("limit", "n", 0, "list the most recent N reports, or stop following after N (0 = no limit)")
	cmd.Flags().BoolP("follow", "f", false, "print reports published on the bus until interrupted")
	cmd.Flags().Bool("replay", false, "republish archived reports onto the bus")

	return cmd
}

func runHistory(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	since, _ := cmd.Flags().GetDuration("since")
	limit, _ := cmd.Flags().GetInt("limit")
	follow, _ := cmd.Flags().GetBool("follow")
	replay, _ := cmd.Flags().GetBool("replay")

	var after time.Time
	if since > 0 {
		after = time.Now().Add(-since)
	}

	if !follow && !replay {
		return listHistory(cmd.OutOrStdout(), a, after, limit)
	}
	return streamHistory(cmd.Context(), cmd.OutOrStdout(), a, after, limit, follow, replay)
}

func openArchive(a *app) (*bus.EventLogger, error) {
	if a.cfg.Bus.EventLog == "" {
		return nil, errors.ValidationError("bus.event_log is not configured")
	}
	return bus.NewEventLogger(a.cfg.Bus.EventLog, false)
}

// listHistory prints archived reports newer than after. A positive limit
// keeps the most recent ones.
func listHistory(out io.Writer, a *app, after time.Time, limit int) error {
	archive, err := openArchive(a)
	if err != nil {
		return err
	}
	defer archive.Close()

	entries, err := archive.Events(after, 0)
	if err != nil {
		return err
	}

	var reports []*evaluation.Report
	for _, entry := range entries {
		if entry.Event.Type != bus.EventEvaluationCompleted {
			continue
		}
		r, err := report.DecodeEvent(entry.Event)
		if err != nil {
			a.log.WithError(err).Warn("Skipping unreadable archived event", "event_id", entry.Event.ID)
			continue
		}
		reports = append(reports, r)
	}
	if limit > 0 && len(reports) > limit {
		reports = reports[len(reports)-limit:]
	}

	if a.format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(reports); err != nil {
			return errors.IOError("writing history", err)
		}
		return nil
	}

	for _, r := range reports {
		if err := writeHistoryLine(out, r); err != nil {
			return err
		}
	}
	return nil
}

// streamHistory subscribes to the report topic and/or replays the archive
// onto the configured bus. The bus is built without the archive so
// replayed events are not written twice.
func streamHistory(ctx context.Context, out io.Writer, a *app, after time.Time, limit int, follow, replay bool) error {
	busCfg := a.cfg.Bus
	busCfg.EventLog = ""
	if replay && !follow && busCfg.Type == "memory" {
		return errors.ValidationError("replaying onto the memory bus reaches no subscriber; add --follow or use bus.type=kafka")
	}

	var archive *bus.EventLogger
	if replay {
		var err error
		if archive, err = openArchive(a); err != nil {
			return err
		}
		defer archive.Close()
	}

	b, err := bus.NewBus(busCfg, a.log)
	if err != nil {
		return err
	}
	defer b.Close()

	var follower *reportFollower
	if follow {
		follower = newReportFollower(limit, func(r *evaluation.Report) error {
			if a.format == "json" {
				if err := json.NewEncoder(out).Encode(r); err != nil {
					return errors.IOError("writing history", err)
				}
				return nil
			}
			return writeHistoryLine(out, r)
		}, a.log)
		if err := b.Subscribe(ctx, busCfg.Topic, follower.handle); err != nil {
			return err
		}
		a.log.Info("Following evaluation reports", "bus", busCfg.Type, "topic", busCfg.Topic)
	}

	if replay {
		if err := archive.Replay(ctx, b, after); err != nil {
			return err
		}
		a.log.Debug("Replayed archive", "path", archive.Path())
	}

	if follower == nil {
		return nil
	}
	return follower.wait(ctx)
}

// reportFollower prints reports delivered by the bus. Handlers may run
// concurrently, so output is serialized.
type reportFollower struct {
	limit int
	emit  func(*evaluation.Report) error
	log   *logger.Logger

	mu   sync.Mutex
	seen int
	err  error
	done chan struct{}
	once sync.Once
}

func newReportFollower(limit int, emit func(*evaluation.Report) error, log *logger.Logger) *reportFollower {
	return &reportFollower{
		limit: limit,
		emit:  emit,
		log:   log,
		done:  make(chan struct{}),
	}
}

func (f *reportFollower) handle(_ context.Context, event bus.Event) error {
	if event.Type != bus.EventEvaluationCompleted {
		return nil
	}
	r, err := report.DecodeEvent(event)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.limit > 0 && f.seen >= f.limit {
		return nil
	}
	if err := f.emit(r); err != nil {
		f.finish(err)
		return err
	}
	f.seen++
	if f.limit > 0 && f.seen >= f.limit {
		f.finish(nil)
	}
	return nil
}

func (f *reportFollower) finish(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}

// wait blocks until the limit is reached, output fails or ctx ends. An
// interrupt is a normal way to stop following.
func (f *reportFollower) wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		f.log.Debug("Stopped following", "reports", f.count())
		return nil
	}
}

func (f *reportFollower) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seen
}

func writeHistoryLine(out io.Writer, r *evaluation.Report) error {
	best := report.Undefined
	if res, ok := report.Best(r); ok {
		best = fmt.Sprintf("%s@%d=%s", r.Metric, res.K, report.FormatValue(res))
	}
	if _, err := fmt.Fprintf(out, "%s  %-10s %-9s %s  (%s predictions %s, %s)\n",
		r.RunID, r.Mode, r.Split, best,
		humanize.Comma(int64(r.Predictions)), r.Fingerprint, humanize.Time(r.FinishedAt)); err != nil {
		return errors.IOError("writing history", err)
	}
	return nil
}
