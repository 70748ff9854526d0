package recon

import (
	"errors"
	"testing"

	"github.com/lherron/jiramine/internal/autohash"
	"github.com/lherron/jiramine/internal/domain"
	"github.com/lherron/jiramine/internal/match"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRow(key, name string) *domain.MappingRow {
	return &domain.MappingRow{
		MappingID:  "id-" + key,
		SourceKey:  key,
		SourceName: name,
		Status:     domain.StatusPendingAnalysis,
	}
}

// saveRecorder captures rows passed to Save.
type saveRecorder struct {
	saved []*domain.MappingRow
}

func (s *saveRecorder) save(row *domain.MappingRow) error {
	s.saved = append(s.saved, row)
	return nil
}

func baseConfig(saves *saveRecorder) Config {
	return Config{
		Kind: domain.KindTracker,
		Allowed: []domain.MigrationStatus{
			domain.StatusPendingAnalysis,
			domain.StatusMatchFound,
			domain.StatusReadyForCreation,
			domain.StatusManualIntervention,
		},
		ReadyStatus: domain.StatusReadyForCreation,
		Save:        saves.save,
	}
}

func TestReconcileMatchFound(t *testing.T) {
	saves := &saveRecorder{}
	cfg := baseConfig(saves)
	cfg.Match = match.NewIndex([]match.Candidate{{ID: 7, Name: "Epic"}})

	row := newRow("10001", "Epic")
	sum, err := Reconcile([]*domain.MappingRow{row}, cfg)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusMatchFound, row.Status)
	require.NotNil(t, row.TargetID)
	assert.Equal(t, int64(7), *row.TargetID)
	require.NotNil(t, row.ProposedName)
	assert.Equal(t, "Epic", *row.ProposedName)
	assert.Nil(t, row.Notes)
	assert.True(t, autohash.Verify(row), "saved row must carry a matching hash")

	assert.Equal(t, 1, sum.Matched)
	assert.Len(t, saves.saved, 1)
}

func TestReconcileNoMatchBecomesReady(t *testing.T) {
	saves := &saveRecorder{}
	cfg := baseConfig(saves)
	cfg.Match = match.NewIndex(nil)

	row := newRow("10002", "Spike")
	sum, err := Reconcile([]*domain.MappingRow{row}, cfg)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusReadyForCreation, row.Status)
	assert.Nil(t, row.TargetID)
	require.NotNil(t, row.ProposedName)
	assert.Equal(t, "Spike", *row.ProposedName)
	assert.Equal(t, 1, sum.Ready)
}

func TestReconcileAmbiguousGoesManual(t *testing.T) {
	saves := &saveRecorder{}
	cfg := baseConfig(saves)
	cfg.Match = match.NewIndex([]match.Candidate{
		{ID: 1, Name: "Support"},
		{ID: 2, Name: "support"},
	})

	row := newRow("10003", "Support")
	sum, err := Reconcile([]*domain.MappingRow{row}, cfg)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusManualIntervention, row.Status)
	assert.Nil(t, row.TargetID)
	require.NotNil(t, row.Notes)
	assert.Contains(t, *row.Notes, "ambiguous match: 2")
	assert.Equal(t, 1, sum.ManualReview)
}

func TestReconcileSkipsDisallowedStatuses(t *testing.T) {
	saves := &saveRecorder{}
	cfg := baseConfig(saves)

	done := newRow("A", "A")
	done.Status = domain.StatusCreationSuccess
	failed := newRow("B", "B")
	failed.Status = domain.StatusCreationFailed

	sum, err := Reconcile([]*domain.MappingRow{done, failed}, cfg)
	require.NoError(t, err)

	assert.Equal(t, 2, sum.Skipped)
	assert.Empty(t, saves.saved)
	assert.Equal(t, domain.StatusCreationSuccess, done.Status)
}

func TestReconcileManualOverrideProtection(t *testing.T) {
	saves := &saveRecorder{}
	cfg := baseConfig(saves)
	cfg.Match = match.NewIndex([]match.Candidate{{ID: 7, Name: "Epic"}})

	// Simulate a human edit: stamp, then change a hashed field.
	row := newRow("10001", "Epic")
	autohash.Stamp(row)
	row.SetNotes("operator note: keep as is")

	sum, err := Reconcile([]*domain.MappingRow{row}, cfg)
	require.NoError(t, err)

	assert.Equal(t, 1, sum.ManualOverrides)
	assert.Equal(t, 1, sum.Skipped)
	assert.Empty(t, saves.saved, "overridden row must not be touched")
	assert.Equal(t, domain.StatusPendingAnalysis, row.Status)
	assert.Equal(t, "operator note: keep as is", *row.Notes)
}

func TestReconcileIdempotent(t *testing.T) {
	saves := &saveRecorder{}
	cfg := baseConfig(saves)
	cfg.Match = match.NewIndex([]match.Candidate{{ID: 7, Name: "Epic"}})

	rows := []*domain.MappingRow{newRow("10001", "Epic"), newRow("10002", "Spike")}
	_, err := Reconcile(rows, cfg)
	require.NoError(t, err)
	require.Len(t, saves.saved, 2)

	// Second run over the same rows: nothing changed, nothing saved.
	saves.saved = nil
	sum, err := Reconcile(rows, cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Unchanged)
	assert.Empty(t, saves.saved)
}

func TestReconcileDependencyGating(t *testing.T) {
	missing := Dependency{
		Kind:        "project",
		AwaitStatus: domain.StatusAwaitingProject,
		Resolve: func(row *domain.MappingRow) DepResult {
			return DepResult{State: DepMissing, Key: "PROJ"}
		},
	}
	notReady := Dependency{
		Kind:        "group",
		AwaitStatus: domain.StatusAwaitingGroup,
		Resolve: func(row *domain.MappingRow) DepResult {
			return DepResult{State: DepNotReady, Key: "devs", Status: domain.StatusReadyForCreation}
		},
	}

	t.Run("missing dependency", func(t *testing.T) {
		saves := &saveRecorder{}
		cfg := baseConfig(saves)
		cfg.Allowed = append(cfg.Allowed, domain.StatusAwaitingProject)
		cfg.Dependencies = []Dependency{missing}

		row := newRow("PROJ/1/devs", "PROJ: devs")
		sum, err := Reconcile([]*domain.MappingRow{row}, cfg)
		require.NoError(t, err)

		assert.Equal(t, domain.StatusAwaitingProject, row.Status)
		assert.Contains(t, *row.Notes, `project mapping missing for "PROJ"`)
		assert.Equal(t, 1, sum.Awaiting["project"])
	})

	t.Run("dependency not ready", func(t *testing.T) {
		saves := &saveRecorder{}
		cfg := baseConfig(saves)
		cfg.Allowed = append(cfg.Allowed, domain.StatusAwaitingGroup)
		cfg.Dependencies = []Dependency{notReady}

		row := newRow("PROJ/1/devs", "PROJ: devs")
		_, err := Reconcile([]*domain.MappingRow{row}, cfg)
		require.NoError(t, err)

		assert.Equal(t, domain.StatusAwaitingGroup, row.Status)
		assert.Contains(t, *row.Notes, "not ready yet (status: ready_for_creation)")
	})

	t.Run("first unmet dependency wins", func(t *testing.T) {
		saves := &saveRecorder{}
		cfg := baseConfig(saves)
		cfg.Allowed = append(cfg.Allowed, domain.StatusAwaitingProject, domain.StatusAwaitingGroup)
		cfg.Dependencies = []Dependency{missing, notReady}

		row := newRow("PROJ/1/devs", "PROJ: devs")
		_, err := Reconcile([]*domain.MappingRow{row}, cfg)
		require.NoError(t, err)

		assert.Equal(t, domain.StatusAwaitingProject, row.Status)
	})
}

func TestReconcileProposeManualError(t *testing.T) {
	saves := &saveRecorder{}
	cfg := baseConfig(saves)
	cfg.Propose = func(row *domain.MappingRow, matched *match.Candidate) error {
		return &ManualError{Reason: "no default issue status configured"}
	}

	row := newRow("10005", "Incident")
	sum, err := Reconcile([]*domain.MappingRow{row}, cfg)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusManualIntervention, row.Status)
	assert.Equal(t, "no default issue status configured", *row.Notes)
	assert.Equal(t, 1, sum.ManualReview)
}

func TestReconcileProposeFatalError(t *testing.T) {
	saves := &saveRecorder{}
	cfg := baseConfig(saves)
	boom := errors.New("payload encode failed")
	cfg.Propose = func(row *domain.MappingRow, matched *match.Candidate) error {
		return boom
	}

	_, err := Reconcile([]*domain.MappingRow{newRow("X", "X")}, cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestReconcileAlreadyRecorded(t *testing.T) {
	saves := &saveRecorder{}
	cfg := baseConfig(saves)
	cfg.ReadyStatus = domain.StatusReadyForAssignment
	cfg.RecordedStatus = domain.StatusAssignmentRecorded
	cfg.AlreadyRecorded = func(row *domain.MappingRow) (int64, bool) {
		return 42, true
	}

	row := newRow("PROJ/1/devs", "PROJ: devs")
	sum, err := Reconcile([]*domain.MappingRow{row}, cfg)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusAssignmentRecorded, row.Status)
	require.NotNil(t, row.TargetID)
	assert.Equal(t, int64(42), *row.TargetID)
	assert.Equal(t, 1, sum.AlreadyRecorded)
	assert.Equal(t, 0, sum.Ready)
}

func TestSummaryFormat(t *testing.T) {
	sum := &Summary{
		Kind:     domain.KindMembership,
		Total:    5,
		Ready:    2,
		Awaiting: map[string]int{"project": 1, "role": 2},
	}
	text := sum.Format()
	assert.Contains(t, text, "membership: 5 row(s)")
	assert.Contains(t, text, "2 ready")
	assert.Contains(t, text, "1 awaiting project")
	assert.Contains(t, text, "2 awaiting role")
}
