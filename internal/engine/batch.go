package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/settled-dev/settled/internal/model"
)

// PartitionSink receives one completed partition. Implementations must make
// the write atomic: after an error or cancellation no partial partition may
// be visible to readers.
type PartitionSink interface {
	WritePartition(ctx context.Context, out *Output) error
}

// BatchRunner reconciles several date partitions concurrently. Partitions
// share no mutable state, so each worker owns its dates end to end.
type BatchRunner struct {
	engine  *Engine
	sink    PartitionSink
	workers int
	log     *logrus.Logger
}

// NewBatchRunner creates a runner with the given worker count (minimum 1).
func NewBatchRunner(e *Engine, sink PartitionSink, workers int, log *logrus.Logger) *BatchRunner {
	if workers < 1 {
		workers = 1
	}
	if log == nil {
		log = logrus.New()
	}
	return &BatchRunner{engine: e, sink: sink, workers: workers, log: log}
}

// Run partitions the orders by order date, reconciles each date between
// from and to inclusive, and hands every completed partition to the sink.
// Cancellation is honored at partition boundaries: dates not yet started
// are skipped and the first error stops new work. Settlements and GL
// entries are shared read-only across partitions, since a settlement may
// land days after its order.
func (b *BatchRunner) Run(ctx context.Context, from, to time.Time, in Inputs) ([]*Output, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("invalid date range: %s is after %s", from.Format("2006-01-02"), to.Format("2006-01-02"))
	}

	ordersByDate := make(map[time.Time][]model.Order)
	for _, o := range in.Orders {
		d := dateOnly(o.Date)
		ordersByDate[d] = append(ordersByDate[d], o)
	}

	var dates []time.Time
	for d := dateOnly(from); !d.After(dateOnly(to)); d = d.AddDate(0, 0, 1) {
		if len(ordersByDate[d]) > 0 {
			dates = append(dates, d)
		}
	}
	if len(dates) == 0 {
		return nil, nil
	}

	jobs := make(chan time.Time)
	outputs := make([]*Output, len(dates))
	index := make(map[time.Time]int, len(dates))
	for i, d := range dates {
		index[d] = i
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
		cancel()
	}

	for w := 0; w < b.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for date := range jobs {
				partition := Inputs{
					Orders:      ordersByDate[date],
					Refunds:     in.Refunds,
					Settlements: in.Settlements,
					GLEntries:   in.GLEntries,
				}
				out, err := b.engine.Run(runCtx, date, partition)
				if err != nil {
					fail(fmt.Errorf("partition %s: %w", date.Format("2006-01-02"), err))
					return
				}
				if b.sink != nil {
					if err := b.sink.WritePartition(runCtx, out); err != nil {
						fail(fmt.Errorf("writing partition %s: %w", date.Format("2006-01-02"), err))
						return
					}
				}
				mu.Lock()
				outputs[index[date]] = out
				mu.Unlock()
			}
		}()
	}

	// Feed dates in order; stop feeding as soon as the context dies.
feed:
	for _, d := range dates {
		select {
		case jobs <- d:
		case <-runCtx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var completed []*Output
	for _, out := range outputs {
		if out != nil {
			completed = append(completed, out)
		}
	}
	sort.Slice(completed, func(i, j int) bool { return completed[i].Date.Before(completed[j].Date) })
	return completed, nil
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
