// internal/workflow/workflow_test.go
package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "demand-broker/internal/common/errors"
	"demand-broker/internal/common/logger"
	"demand-broker/internal/geocoder"
	"demand-broker/internal/matching"
	"demand-broker/internal/models"
	"demand-broker/internal/notify"
	"demand-broker/internal/parser"
	"demand-broker/internal/scheduler"
	"demand-broker/internal/storage"
)

// ==========================
// Test Fixtures
// ==========================

var testClock = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store    *storage.Memory
	notifier *notify.Recorder
	sched    *scheduler.Recorder
	engine   *Engine
	ctx      context.Context
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	store := storage.NewMemory()
	notifier := notify.NewRecorder()
	sched := scheduler.NewRecorder()
	geo := geocoder.NewStatic(map[string]geocoder.Coordinates{
		"CA:H0H0H0": {Latitude: 90.0, Longitude: -135.0},
		"CA:H3G1B2": {Latitude: 45.4972, Longitude: -73.5790},
	})
	log := logger.NewNoOpLogger()

	f := &fixture{
		store:    store,
		notifier: notifier,
		sched:    sched,
		ctx:      context.Background(),
		now:      testClock,
	}
	f.engine = NewEngine(
		store,
		storage.NewMemorySequencer(),
		matching.NewEngine(store, log),
		notifier,
		sched,
		geo,
		parser.NewPatternCache(),
		log,
	).WithClock(func() time.Time { return f.now })
	return f
}

// advance moves the fixture clock forward so timestamp ordering
// becomes observable across consecutive operations.
func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func (f *fixture) createDemand(t *testing.T, ownerKey string, criteria ...string) *models.Demand {
	fields := models.FieldMap{models.FieldCriteria: criteria}
	d, err := f.engine.CreateDemand(f.ctx, fields, ownerKey, models.SourceAPI, "en", "")
	require.NoError(t, err)
	return d
}

func (f *fixture) publishDemand(t *testing.T, demandKey string) *models.Demand {
	d, err := f.engine.PublishDemand(f.ctx, demandKey)
	require.NoError(t, err)
	return d
}

func (f *fixture) createPublishedProposal(t *testing.T, demandKey, associateKey string) *models.Proposal {
	p, err := f.engine.CreateProposal(f.ctx, models.FieldMap{}, associateKey, models.SourceAPI, "en", "", demandKey)
	require.NoError(t, err)
	p, err = f.engine.PublishProposal(f.ctx, p.Key)
	require.NoError(t, err)
	return p
}

// ==========================
// Demand Lifecycle Tests
// ==========================

func TestCreateDemand_DrawsReferenceAndOpens(t *testing.T) {
	f := newFixture(t)

	first := f.createDemand(t, "consumer-1", "wii")
	second := f.createDemand(t, "consumer-1", "console")
	other := f.createDemand(t, "consumer-2", "books")

	assert.Equal(t, models.StateOpened, first.State)
	assert.Equal(t, int64(1), first.Reference)
	assert.Equal(t, int64(2), second.Reference)
	assert.Equal(t, int64(1), other.Reference)
}

func TestCreateDemand_ResolvesLocation(t *testing.T) {
	f := newFixture(t)

	fields := models.FieldMap{
		models.FieldCriteria:    []string{"wii"},
		models.FieldPostalCode:  "H3G1B2",
		models.FieldCountryCode: "CA",
	}
	d, err := f.engine.CreateDemand(f.ctx, fields, "consumer-1", models.SourceAPI, "en", "")

	require.NoError(t, err)
	require.NotEmpty(t, d.LocationKey)
	loc, err := f.store.GetLocation(f.ctx, d.LocationKey)
	require.NoError(t, err)
	assert.True(t, loc.Geocoded())
	assert.InDelta(t, 45.4972, loc.Latitude, 1e-6)
}

func TestResolveLocation_DeduplicatesByPostalAndCountry(t *testing.T) {
	f := newFixture(t)

	first, err := f.engine.ResolveLocation(f.ctx, "H0H0H0", "CA")
	require.NoError(t, err)
	second, err := f.engine.ResolveLocation(f.ctx, "H0H0H0", "CA")
	require.NoError(t, err)

	assert.Equal(t, first.Key, second.Key)
	assert.NotEqual(t, models.InvalidCoordinate, first.Latitude)
}

func TestResolveLocation_GeocodeFailureNotPersisted(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.ResolveLocation(f.ctx, "99999", "US")

	assert.Equal(t, apperrors.ErrCodeClient, apperrors.CodeOf(err))
	locations, err := f.store.QueryLocations(f.ctx, storage.Query{
		Filters: []storage.Filter{storage.Eq("postalCode", "99999")},
	})
	require.NoError(t, err)
	assert.Empty(t, locations)
}

func TestUpdateDemand_ResetsStateToOpened(t *testing.T) {
	f := newFixture(t)
	d := f.createDemand(t, "consumer-1", "wii")
	f.publishDemand(t, d.Key)

	updated, err := f.engine.UpdateDemand(f.ctx, d.Key, "consumer-1", models.FieldMap{
		models.FieldCriteriaAdd: []string{"games"},
	})

	require.NoError(t, err)
	assert.Equal(t, models.StateOpened, updated.State)
	assert.Contains(t, updated.Criteria, "games")
}

func TestUpdateDemand_RejectsNonOwner(t *testing.T) {
	f := newFixture(t)
	d := f.createDemand(t, "consumer-1", "wii")

	_, err := f.engine.UpdateDemand(f.ctx, d.Key, "intruder", models.FieldMap{})

	assert.Equal(t, apperrors.ErrCodeReservedOperation, apperrors.CodeOf(err))
}

func TestUpdateDemand_RejectsFinalState(t *testing.T) {
	f := newFixture(t)
	d := f.createDemand(t, "consumer-1", "wii")
	_, err := f.engine.CancelDemand(f.ctx, d.Key, "consumer-1")
	require.NoError(t, err)

	_, err = f.engine.UpdateDemand(f.ctx, d.Key, "consumer-1", models.FieldMap{})

	assert.Equal(t, apperrors.ErrCodeInvalidState, apperrors.CodeOf(err))
}

func TestCancelDemand_SchedulesAttachedProposalCancellations(t *testing.T) {
	f := newFixture(t)
	d := f.createDemand(t, "consumer-1", "wii")
	f.publishDemand(t, d.Key)
	p1 := f.createPublishedProposal(t, d.Key, "associate-1")
	p2 := f.createPublishedProposal(t, d.Key, "associate-2")

	cancelled, err := f.engine.CancelDemand(f.ctx, d.Key, "consumer-1")

	require.NoError(t, err)
	assert.Equal(t, models.StateCancelled, cancelled.State)
	assert.Empty(t, cancelled.ProposalKeys)
	tasks := f.sched.Named(TaskCancelProposal)
	require.Len(t, tasks, 2)
	assert.ElementsMatch(t, []string{p1.Key, p2.Key}, []string{tasks[0].EntityKey, tasks[1].EntityKey})
}

func TestMarkDemandForDeletion_OnlyFromCancelled(t *testing.T) {
	f := newFixture(t)
	d := f.createDemand(t, "consumer-1", "wii")

	_, err := f.engine.MarkDemandForDeletion(f.ctx, d.Key, "consumer-1")
	assert.Equal(t, apperrors.ErrCodeInvalidState, apperrors.CodeOf(err))

	_, err = f.engine.CancelDemand(f.ctx, d.Key, "consumer-1")
	require.NoError(t, err)
	marked, err := f.engine.MarkDemandForDeletion(f.ctx, d.Key, "consumer-1")
	require.NoError(t, err)
	assert.Equal(t, models.StateMarkedForDeletion, marked.State)
}

func TestExpireDemands_CancelsPastExpiration(t *testing.T) {
	f := newFixture(t)

	stale, err := f.engine.CreateDemand(f.ctx, models.FieldMap{
		models.FieldCriteria:   []string{"wii"},
		models.FieldExpiration: testClock.Add(-48 * time.Hour),
	}, "consumer-1", models.SourceAPI, "en", "")
	require.NoError(t, err)
	f.publishDemand(t, stale.Key)

	fresh, err := f.engine.CreateDemand(f.ctx, models.FieldMap{
		models.FieldCriteria:   []string{"console"},
		models.FieldExpiration: testClock.Add(48 * time.Hour),
	}, "consumer-1", models.SourceAPI, "en", "")
	require.NoError(t, err)
	f.publishDemand(t, fresh.Key)

	count, err := f.engine.ExpireDemands(f.ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, count)
	got, err := f.store.GetDemand(f.ctx, stale.Key)
	require.NoError(t, err)
	assert.Equal(t, models.StateCancelled, got.State)
	got, err = f.store.GetDemand(f.ctx, fresh.Key)
	require.NoError(t, err)
	assert.Equal(t, models.StatePublished, got.State)
}

// ==========================
// Proposal Lifecycle Tests
// ==========================

func TestPublishProposal_AttachesToDemand(t *testing.T) {
	f := newFixture(t)
	d := f.createDemand(t, "consumer-1", "wii")
	f.publishDemand(t, d.Key)

	p := f.createPublishedProposal(t, d.Key, "associate-1")

	got, err := f.store.GetDemand(f.ctx, d.Key)
	require.NoError(t, err)
	assert.Contains(t, got.ProposalKeys, p.Key)
	assert.Equal(t, "consumer-1", p.ConsumerKey)
}

func TestConfirmProposal_SingleWinner(t *testing.T) {
	f := newFixture(t)
	d := f.createDemand(t, "consumer-1", "wii")
	f.publishDemand(t, d.Key)
	winner := f.createPublishedProposal(t, d.Key, "associate-1")
	loser := f.createPublishedProposal(t, d.Key, "associate-2")

	confirmed, err := f.engine.ConfirmProposal(f.ctx, winner.Key, "consumer-1")

	require.NoError(t, err)
	assert.Equal(t, models.StateConfirmed, confirmed.State)

	got, err := f.store.GetDemand(f.ctx, d.Key)
	require.NoError(t, err)
	assert.Equal(t, models.StateConfirmed, got.State)
	assert.Equal(t, []string{winner.Key}, got.ProposalKeys)

	tasks := f.sched.Named(TaskCancelProposal)
	require.Len(t, tasks, 1)
	assert.Equal(t, loser.Key, tasks[0].EntityKey)
}

func TestConfirmProposal_OnlyDemandOwner(t *testing.T) {
	f := newFixture(t)
	d := f.createDemand(t, "consumer-1", "wii")
	f.publishDemand(t, d.Key)
	p := f.createPublishedProposal(t, d.Key, "associate-1")

	_, err := f.engine.ConfirmProposal(f.ctx, p.Key, "associate-1")

	assert.Equal(t, apperrors.ErrCodeReservedOperation, apperrors.CodeOf(err))
	got, err := f.store.GetProposal(f.ctx, p.Key)
	require.NoError(t, err)
	assert.Equal(t, models.StatePublished, got.State)
}

func TestConfirmProposal_GuardRunsBeforeMutation(t *testing.T) {
	f := newFixture(t)
	d := f.createDemand(t, "consumer-1", "wii")
	f.publishDemand(t, d.Key)
	p, err := f.engine.CreateProposal(f.ctx, models.FieldMap{}, "associate-1", models.SourceAPI, "en", "", d.Key)
	require.NoError(t, err)

	// still opened, not published
	_, err = f.engine.ConfirmProposal(f.ctx, p.Key, "consumer-1")

	assert.Equal(t, apperrors.ErrCodeInvalidState, apperrors.CodeOf(err))
	got, err := f.store.GetDemand(f.ctx, d.Key)
	require.NoError(t, err)
	assert.Equal(t, models.StatePublished, got.State, "demand must not move when the proposal guard fails")
}

func TestDeclineProposal_LeavesDemandUntouched(t *testing.T) {
	f := newFixture(t)
	d := f.createDemand(t, "consumer-1", "wii")
	f.publishDemand(t, d.Key)
	p := f.createPublishedProposal(t, d.Key, "associate-1")

	declined, err := f.engine.DeclineProposal(f.ctx, p.Key, "consumer-1")

	require.NoError(t, err)
	assert.Equal(t, models.StateDeclined, declined.State)
	assert.Equal(t, "consumer-1", declined.CancelerKey)
	got, err := f.store.GetDemand(f.ctx, d.Key)
	require.NoError(t, err)
	assert.Equal(t, models.StatePublished, got.State)
}

func TestCancelConfirmedProposal_RevertsDemandToPublished(t *testing.T) {
	f := newFixture(t)
	d := f.createDemand(t, "consumer-1", "wii")
	f.publishDemand(t, d.Key)
	p := f.createPublishedProposal(t, d.Key, "associate-1")
	_, err := f.engine.ConfirmProposal(f.ctx, p.Key, "consumer-1")
	require.NoError(t, err)
	before, err := f.store.GetDemand(f.ctx, d.Key)
	require.NoError(t, err)

	f.advance(time.Minute)
	cancelled, err := f.engine.CancelProposal(f.ctx, p.Key, "associate-1")

	require.NoError(t, err)
	assert.Equal(t, models.StateCancelled, cancelled.State)
	assert.Equal(t, "associate-1", cancelled.CancelerKey)

	after, err := f.store.GetDemand(f.ctx, d.Key)
	require.NoError(t, err)
	assert.Equal(t, models.StatePublished, after.State)
	assert.NotContains(t, after.ProposalKeys, p.Key)
	assert.True(t, after.UpdatedAt.After(before.UpdatedAt))
}

func TestCloseProposal_OnlyFromConfirmed(t *testing.T) {
	f := newFixture(t)
	d := f.createDemand(t, "consumer-1", "wii")
	f.publishDemand(t, d.Key)
	p := f.createPublishedProposal(t, d.Key, "associate-1")

	// closed is not reachable directly from published
	_, err := f.engine.CloseProposal(f.ctx, p.Key, "associate-1")
	assert.Equal(t, apperrors.ErrCodeInvalidState, apperrors.CodeOf(err))

	_, err = f.engine.ConfirmProposal(f.ctx, p.Key, "consumer-1")
	require.NoError(t, err)
	closed, err := f.engine.CloseProposal(f.ctx, p.Key, "associate-1")
	require.NoError(t, err)
	assert.Equal(t, models.StateClosed, closed.State)
}

func TestCancelProposal_ClosedIsImmutable(t *testing.T) {
	f := newFixture(t)
	d := f.createDemand(t, "consumer-1", "wii")
	f.publishDemand(t, d.Key)
	p := f.createPublishedProposal(t, d.Key, "associate-1")
	_, err := f.engine.ConfirmProposal(f.ctx, p.Key, "consumer-1")
	require.NoError(t, err)
	_, err = f.engine.CloseProposal(f.ctx, p.Key, "associate-1")
	require.NoError(t, err)

	_, err = f.engine.CancelProposal(f.ctx, p.Key, "associate-1")

	assert.Equal(t, apperrors.ErrCodeInvalidState, apperrors.CodeOf(err))
}

func TestUpdateProposal_DetachesFromDemand(t *testing.T) {
	f := newFixture(t)
	d := f.createDemand(t, "consumer-1", "wii")
	f.publishDemand(t, d.Key)
	p := f.createPublishedProposal(t, d.Key, "associate-1")

	updated, err := f.engine.UpdateProposal(f.ctx, p.Key, "associate-1", models.FieldMap{
		models.FieldQuantity: int64(3),
	})

	require.NoError(t, err)
	assert.Equal(t, models.StateOpened, updated.State)
	assert.Equal(t, int64(3), updated.Quantity)
	got, err := f.store.GetDemand(f.ctx, d.Key)
	require.NoError(t, err)
	assert.NotContains(t, got.ProposalKeys, p.Key)
}
