package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/settled-dev/settled/internal/model"
)

type memorySink struct {
	mu         sync.Mutex
	partitions map[string]*Output
	failOn     string
}

func newMemorySink() *memorySink {
	return &memorySink{partitions: make(map[string]*Output)}
}

func (m *memorySink) WritePartition(_ context.Context, out *Output) error {
	key := out.Date.Format("2006-01-02")
	if m.failOn == key {
		return errors.New("sink write failed")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.partitions[key] = out
	return nil
}

func batchInputs() Inputs {
	return Inputs{
		Orders: []model.Order{
			order("ORD-A1", 1, "100.00"),
			order("ORD-A2", 1, "40.00"),
			order("ORD-B1", 2, "75.00"),
			order("ORD-C1", 4, "60.00"),
		},
		Settlements: []model.Settlement{
			settlement("SET-A1", "ORD-A1", 3, "100.00"),
			settlement("SET-B1", "ORD-B1", 4, "75.00"),
			settlement("SET-C1", "ORD-C1", 5, "60.00"),
		},
		GLEntries: []model.GLEntry{
			glEntry("GL-A1", "SET-A1", "1010", "100.00", "0"),
			glEntry("GL-B1", "SET-B1", "1010", "75.00", "0"),
			glEntry("GL-C1", "SET-C1", "1010", "60.00", "0"),
		},
	}
}

func TestBatchRun_PartitionsByOrderDate(t *testing.T) {
	e := newTestEngine(t)
	sink := newMemorySink()
	runner := NewBatchRunner(e, sink, 2, nil)

	outputs, err := runner.Run(context.Background(), day(1), day(5), batchInputs())
	require.NoError(t, err)
	require.Len(t, outputs, 3)

	// Outputs come back ordered by date regardless of worker scheduling.
	assert.Equal(t, day(1), outputs[0].Date)
	assert.Equal(t, day(2), outputs[1].Date)
	assert.Equal(t, day(4), outputs[2].Date)

	// Day 1 has two orders; settlements are visible across partitions.
	assert.Len(t, outputs[0].Results, 3)
	assert.Contains(t, sink.partitions, "2024-01-01")
	assert.Contains(t, sink.partitions, "2024-01-04")
}

func TestBatchRun_DatesWithNoOrdersSkipped(t *testing.T) {
	e := newTestEngine(t)
	runner := NewBatchRunner(e, newMemorySink(), 4, nil)

	outputs, err := runner.Run(context.Background(), day(10), day(15), batchInputs())
	require.NoError(t, err)
	assert.Empty(t, outputs)
}

func TestBatchRun_InvalidRange(t *testing.T) {
	runner := NewBatchRunner(newTestEngine(t), nil, 1, nil)
	_, err := runner.Run(context.Background(), day(5), day(1), batchInputs())
	assert.Error(t, err)
}

func TestBatchRun_SinkErrorStopsRun(t *testing.T) {
	e := newTestEngine(t)
	sink := newMemorySink()
	sink.failOn = "2024-01-02"
	runner := NewBatchRunner(e, sink, 1, nil)

	_, err := runner.Run(context.Background(), day(1), day(5), batchInputs())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2024-01-02")

	// The failed partition was never stored.
	assert.NotContains(t, sink.partitions, "2024-01-02")
}

func TestBatchRun_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := NewBatchRunner(newTestEngine(t), newMemorySink(), 2, nil)
	_, err := runner.Run(ctx, day(1), day(5), batchInputs())
	assert.Error(t, err)
}

func TestBatchRun_SameResultsAsSingleRuns(t *testing.T) {
	e := newTestEngine(t)
	in := batchInputs()

	runner := NewBatchRunner(e, nil, 3, nil)
	outputs, err := runner.Run(context.Background(), day(1), day(5), in)
	require.NoError(t, err)
	require.Len(t, outputs, 3)

	single, err := e.Run(context.Background(), day(2), Inputs{
		Orders:      []model.Order{in.Orders[2]},
		Refunds:     in.Refunds,
		Settlements: in.Settlements,
		GLEntries:   in.GLEntries,
	})
	require.NoError(t, err)
	assert.Equal(t, single.Results, outputs[1].Results)
}
