package engine

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/settled-dev/settled/internal/config"
	"github.com/settled-dev/settled/internal/model"
)

var runDate = time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	e, err := New(config.Default(), log)
	require.NoError(t, err)
	e.Now = func() time.Time { return time.Date(2024, 1, 21, 6, 0, 0, 0, time.UTC) }
	return e
}

func run(t *testing.T, in Inputs) *Output {
	t.Helper()
	out, err := newTestEngine(t).Run(context.Background(), runDate, in)
	require.NoError(t, err)
	return out
}

func findException(out *Output, excType model.ExceptionType) *model.ExceptionRecord {
	for i := range out.Exceptions {
		if out.Exceptions[i].Type == excType {
			return &out.Exceptions[i]
		}
	}
	return nil
}

// Scenario A: clean match two days after the order.
func TestRun_CleanMatch(t *testing.T) {
	in := Inputs{
		Orders:      []model.Order{order("ORD-1", 1, "100.00")},
		Settlements: []model.Settlement{settlement("SET-1", "ORD-1", 3, "100.00")},
		GLEntries: []model.GLEntry{
			glEntry("GL-1", "SET-1", "1010", "100.00", "0"),
		},
	}
	out := run(t, in)

	require.Len(t, out.Results, 2)
	assert.Equal(t, model.StatusMatched, out.Results[0].MatchStatus)
	assert.Equal(t, model.StatusMatched, out.Results[1].MatchStatus)
	assert.Empty(t, out.Exceptions)
	assert.Equal(t, 2, out.Summary.MatchedCount)
}

// Scenario B: approved refund shifts net value beyond tolerance.
func TestRun_RefundPushesVarianceOverTolerance(t *testing.T) {
	in := Inputs{
		Orders: []model.Order{order("ORD-1", 1, "50.00")},
		Refunds: []model.Refund{
			{ID: "REF-1", OrderID: "ORD-1", Date: day(1), Amount: dec("10.00"), Status: model.RefundApproved},
		},
		Settlements: []model.Settlement{settlement("SET-1", "ORD-1", 2, "39.90")},
	}
	out := run(t, in)

	require.Len(t, out.Results, 1)
	assert.Equal(t, model.StatusUnmatchedAmount, out.Results[0].MatchStatus)
	assert.True(t, out.Results[0].OrderNetValue.Equal(dec("40.00")))
	assert.True(t, out.Results[0].AmountDiff.Equal(dec("0.10")))

	exc := findException(out, model.ExcUnmatchedAmount)
	require.NotNil(t, exc)
	assert.Equal(t, "Value Mismatch", exc.Category)
	assert.Equal(t, out.Results[0].ID, exc.ResultID)
}

// Scenario C: no settlement inside the window.
func TestRun_NoSettlementMatch(t *testing.T) {
	in := Inputs{
		Orders: []model.Order{order("ORD-1", 1, "100.00")},
	}
	out := run(t, in)

	require.Len(t, out.Results, 1)
	assert.Equal(t, model.StatusNoSettlementMatch, out.Results[0].MatchStatus)

	exc := findException(out, model.ExcNoSettlementMatch)
	require.NotNil(t, exc)
	assert.Equal(t, model.SeverityHigh, exc.Severity)
}

// Scenario D: matched settlement with no GL entry behind it.
func TestRun_MissingGLEntry(t *testing.T) {
	in := Inputs{
		Orders:      []model.Order{order("ORD-1", 1, "100.00")},
		Settlements: []model.Settlement{settlement("SET-1", "ORD-1", 3, "100.00")},
	}
	out := run(t, in)

	require.Len(t, out.Results, 2)
	assert.Equal(t, model.StatusMatched, out.Results[0].MatchStatus)
	assert.Equal(t, model.StatusMissingGLEntry, out.Results[1].MatchStatus)

	exc := findException(out, model.ExcMissingGLEntry)
	require.NotNil(t, exc)
	assert.Equal(t, model.SeverityHigh, exc.Severity)
	assert.Equal(t, out.Results[1].ID, exc.ResultID)
}

func TestRun_PSPGLMismatchIsCritical(t *testing.T) {
	in := Inputs{
		Orders:      []model.Order{order("ORD-1", 1, "100.00")},
		Settlements: []model.Settlement{settlement("SET-1", "ORD-1", 3, "100.00")},
		GLEntries: []model.GLEntry{
			glEntry("GL-1", "SET-1", "1010", "90.00", "0"),
		},
	}
	out := run(t, in)

	exc := findException(out, model.ExcPSPGLMismatch)
	require.NotNil(t, exc)
	assert.Equal(t, model.SeverityCritical, exc.Severity)
	assert.True(t, exc.AmountDiff.Equal(dec("10.00")))
}

func TestRun_FeeMismatchDoesNotBlockMatch(t *testing.T) {
	s := settlement("SET-1", "ORD-1", 3, "97.00")
	s.Fees = dec("3.00")
	in := Inputs{
		Orders:      []model.Order{order("ORD-1", 1, "97.00")},
		Settlements: []model.Settlement{s},
		GLEntries: []model.GLEntry{
			glEntry("GL-1", "SET-1", "1010", "97.00", "0"),
			glEntry("GL-2", "SET-1", "6050", "1.00", "0"),
		},
	}
	out := run(t, in)

	// Cash ties out, so both records stay matched despite the fee exception.
	require.Len(t, out.Results, 2)
	assert.Equal(t, model.StatusMatched, out.Results[1].MatchStatus)

	exc := findException(out, model.ExcFeeMismatch)
	require.NotNil(t, exc)
	assert.Equal(t, model.SeverityMedium, exc.Severity)
	assert.True(t, exc.AmountDiff.Equal(dec("2.00")))
}

func TestRun_DelayedSettlementCoOccursWithNoMatch(t *testing.T) {
	in := Inputs{
		Orders:      []model.Order{order("ORD-1", 1, "100.00")},
		Settlements: []model.Settlement{settlement("SET-1", "ORD-1", 12, "100.00")},
	}
	out := run(t, in)

	require.Len(t, out.Results, 1)
	assert.Equal(t, model.StatusNoSettlementMatch, out.Results[0].MatchStatus)

	noMatch := findException(out, model.ExcNoSettlementMatch)
	delay := findException(out, model.ExcSettlementDelay)
	require.NotNil(t, noMatch)
	require.NotNil(t, delay)
	assert.Equal(t, out.Results[0].ID, noMatch.ResultID)
	assert.Equal(t, out.Results[0].ID, delay.ResultID)
}

func TestRun_ToleranceBoundaryMatches(t *testing.T) {
	in := Inputs{
		Orders:      []model.Order{order("ORD-1", 1, "100.00")},
		Settlements: []model.Settlement{settlement("SET-1", "ORD-1", 2, "99.95")},
	}
	out := run(t, in)
	assert.Equal(t, model.StatusMatched, out.Results[0].MatchStatus)
}

func TestRun_EmptySettlementCollectionIsNotFatal(t *testing.T) {
	in := Inputs{
		Orders: []model.Order{
			order("ORD-1", 1, "10.00"),
			order("ORD-2", 1, "20.00"),
		},
	}
	out := run(t, in)

	require.Len(t, out.Results, 2)
	for _, r := range out.Results {
		assert.Equal(t, model.StatusNoSettlementMatch, r.MatchStatus)
	}
	assert.Equal(t, 2, out.Summary.ExceptionTypeCounts[model.ExcNoSettlementMatch])
}

func TestRun_FailsFastOnMissingRequiredField(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.Run(context.Background(), runDate, Inputs{
		Orders: []model.Order{{ID: "", Date: day(1), Amount: dec("10.00")}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing order ID")

	_, err = e.Run(context.Background(), runDate, Inputs{
		Orders:      []model.Order{order("ORD-1", 1, "10.00")},
		Settlements: []model.Settlement{{ID: "SET-1", Date: day(2)}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing source reference")
}

func TestRun_Idempotent(t *testing.T) {
	in := Inputs{
		Orders: []model.Order{
			order("ORD-3", 1, "300.00"),
			order("ORD-1", 1, "100.00"),
			order("ORD-2", 1, "50.00"),
		},
		Refunds: []model.Refund{
			{ID: "REF-1", OrderID: "ORD-2", Date: day(1), Amount: dec("10.00"), Status: model.RefundApproved},
		},
		Settlements: []model.Settlement{
			settlement("SET-1", "ORD-1", 3, "100.00"),
			settlement("SET-2", "ORD-2", 2, "39.90"),
		},
		GLEntries: []model.GLEntry{
			glEntry("GL-1", "SET-1", "1010", "100.00", "0"),
		},
	}

	e := newTestEngine(t)
	first, err := e.Run(context.Background(), runDate, in)
	require.NoError(t, err)
	second, err := e.Run(context.Background(), runDate, in)
	require.NoError(t, err)

	assert.Equal(t, first.Results, second.Results)
	assert.Equal(t, first.Exceptions, second.Exceptions)
	assert.Equal(t, first.Summary, second.Summary)
}

func TestRun_ResultIDsAreContiguousAndOrdered(t *testing.T) {
	in := Inputs{
		Orders: []model.Order{
			order("ORD-2", 1, "20.00"),
			order("ORD-1", 1, "10.00"),
		},
	}
	out := run(t, in)

	require.Len(t, out.Results, 2)
	assert.Equal(t, "REC-20240120-0001", out.Results[0].ID)
	assert.Equal(t, "REC-20240120-0002", out.Results[1].ID)
	// Orders are processed in ID order, not input order.
	assert.Equal(t, "ORD-1", out.Results[0].SourceID)
}

func TestRun_Summary(t *testing.T) {
	s1 := settlement("SET-1", "ORD-1", 3, "100.00")
	in := Inputs{
		Orders: []model.Order{
			order("ORD-1", 1, "100.00"),
			order("ORD-2", 1, "55.00"),
		},
		Settlements: []model.Settlement{s1},
		GLEntries: []model.GLEntry{
			glEntry("GL-1", "SET-1", "1010", "100.00", "0"),
		},
	}
	out := run(t, in)

	sum := out.Summary
	assert.Equal(t, 3, sum.TotalRecords) // 2 order results + 1 GL tie-out
	assert.Equal(t, 2, sum.MatchedCount)
	assert.Equal(t, 1, sum.ExceptionCount)
	assert.True(t, sum.TotalOrderValue.Equal(dec("155.00")))
	assert.True(t, sum.TotalPSPNet.Equal(dec("100.00")))
	assert.True(t, sum.TotalGLCash.Equal(dec("100.00")))
	assert.True(t, sum.TotalVariance.IsZero())
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestEngine(t).Run(ctx, runDate, Inputs{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSummary_MatchRate(t *testing.T) {
	s := Summary{TotalRecords: 3, MatchedCount: 2}
	assert.Equal(t, "66.67", s.MatchRate().StringFixed(2))
	assert.True(t, Summary{}.MatchRate().IsZero())
}
