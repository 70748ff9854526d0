package push

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/lherron/jiramine/internal/autohash"
	"github.com/lherron/jiramine/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readyRow(key string) *domain.MappingRow {
	name := key
	return &domain.MappingRow{
		MappingID:    "id-" + key,
		SourceKey:    key,
		SourceName:   key,
		ProposedName: &name,
		Status:       domain.StatusReadyForCreation,
	}
}

type fixture struct {
	executor *Executor
	out      *bytes.Buffer
	saved    []*domain.MappingRow
}

func newFixture() *fixture {
	f := &fixture{out: &bytes.Buffer{}}
	f.executor = &Executor{
		Kind:          domain.KindGroup,
		SuccessStatus: domain.StatusCreationSuccess,
		FailureStatus: domain.StatusCreationFailed,
		Save: func(row *domain.MappingRow) error {
			f.saved = append(f.saved, row)
			return nil
		},
		Out: f.out,
	}
	return f
}

func action(row *domain.MappingRow, id int64, err error) Action {
	return Action{
		Row:  row,
		Plan: fmt.Sprintf("create group %q", row.SourceKey),
		Execute: func(ctx context.Context) (int64, error) {
			return id, err
		},
	}
}

func TestRunDryRunExecutesNothing(t *testing.T) {
	f := newFixture()
	row := readyRow("developers")
	executed := false
	a := Action{Row: row, Plan: "create group \"developers\"", Execute: func(ctx context.Context) (int64, error) {
		executed = true
		return 1, nil
	}}

	sum, err := f.executor.Run(context.Background(), Options{DryRun: true, Confirm: true}, []Action{a})
	require.NoError(t, err)

	assert.False(t, executed, "dry run must not execute actions")
	assert.Empty(t, f.saved)
	assert.Equal(t, 1, sum.Planned)
	assert.Equal(t, 0, sum.Attempted)
	assert.Contains(t, f.out.String(), "dry run: 1 group push action(s) planned")
	assert.Contains(t, f.out.String(), "create group \"developers\"")
	assert.Equal(t, domain.StatusReadyForCreation, row.Status)
}

func TestRunWithoutConfirmExecutesNothing(t *testing.T) {
	f := newFixture()
	row := readyRow("developers")

	sum, err := f.executor.Run(context.Background(), Options{}, []Action{action(row, 1, nil)})
	require.NoError(t, err)

	assert.Equal(t, 0, sum.Attempted)
	assert.Empty(t, f.saved)
	assert.Contains(t, f.out.String(), "pass --confirm-push to execute")
}

func TestRunConfirmedSuccess(t *testing.T) {
	f := newFixture()
	row := readyRow("developers")
	row.SetNotes("stale note")

	sum, err := f.executor.Run(context.Background(), Options{Confirm: true}, []Action{action(row, 42, nil)})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusCreationSuccess, row.Status)
	require.NotNil(t, row.TargetID)
	assert.Equal(t, int64(42), *row.TargetID)
	assert.Nil(t, row.Notes)
	assert.True(t, autohash.Verify(row), "pushed row must be stamped")

	assert.Equal(t, 1, sum.Succeeded)
	assert.Len(t, f.saved, 1)
}

func TestRunFailureDoesNotAbortBatch(t *testing.T) {
	f := newFixture()
	bad := readyRow("bad")
	good := readyRow("good")
	apiErr := errors.New("redmine: HTTP 422: Name has already been taken")

	sum, err := f.executor.Run(context.Background(), Options{Confirm: true}, []Action{
		action(bad, 0, apiErr),
		action(good, 7, nil),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, sum.Attempted)
	assert.Equal(t, 1, sum.Succeeded)
	assert.Equal(t, 1, sum.Failed)

	assert.Equal(t, domain.StatusCreationFailed, bad.Status)
	require.NotNil(t, bad.Notes)
	assert.Contains(t, *bad.Notes, "HTTP 422")
	assert.True(t, autohash.Verify(bad))

	assert.Equal(t, domain.StatusCreationSuccess, good.Status)
	assert.Len(t, f.saved, 2, "both outcomes must be persisted")
}

func TestRunTruncatesLongErrorNotes(t *testing.T) {
	f := newFixture()
	row := readyRow("big")
	long := errors.New(strings.Repeat("x", 2000))

	_, err := f.executor.Run(context.Background(), Options{Confirm: true}, []Action{action(row, 0, long)})
	require.NoError(t, err)

	require.NotNil(t, row.Notes)
	assert.Len(t, *row.Notes, maxNoteLen+len("..."))
}

func TestRunProbeFailureAbortsBeforeAnyMutation(t *testing.T) {
	f := newFixture()
	f.executor.Probe = func(ctx context.Context) error {
		return errors.New("extended API marker header missing")
	}
	row := readyRow("qa")
	executed := false
	a := Action{Row: row, Plan: "create role \"qa\"", Execute: func(ctx context.Context) (int64, error) {
		executed = true
		return 1, nil
	}}

	sum, err := f.executor.Run(context.Background(), Options{Confirm: true}, []Action{a})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "marker header missing")

	assert.False(t, executed, "probe failure must prevent all mutations")
	assert.Equal(t, 0, sum.Attempted)
	assert.Empty(t, f.saved)
	assert.Equal(t, domain.StatusReadyForCreation, row.Status)
}

func TestRunProbeSkippedWithoutConfirm(t *testing.T) {
	f := newFixture()
	f.executor.Probe = func(ctx context.Context) error {
		t.Error("probe must not run for unconfirmed pushes")
		return nil
	}

	_, err := f.executor.Run(context.Background(), Options{}, []Action{action(readyRow("qa"), 1, nil)})
	require.NoError(t, err)
}
