// internal/workflow/dispatch_test.go
package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"demand-broker/internal/channels/api"
	apperrors "demand-broker/internal/common/errors"
	"demand-broker/internal/models"
	"demand-broker/internal/storage"
)

func envelope(text, ownerKey string) *api.Envelope {
	return &api.Envelope{
		Text:      text,
		Source:    models.SourceAPI,
		Locale:    "en",
		OwnerKey:  ownerKey,
		Recipient: ownerKey,
	}
}

func TestDispatch_CreatesDemandFromCommand(t *testing.T) {
	f := newFixture(t)

	err := f.engine.Dispatch(f.ctx, envelope("action:demand wii console range:10mi", "consumer-1"))

	require.NoError(t, err)
	demands, err := f.store.QueryDemands(f.ctx, storage.Query{
		Filters: []storage.Filter{storage.Eq("ownerKey", "consumer-1")},
	})
	require.NoError(t, err)
	require.Len(t, demands, 1)
	assert.Equal(t, []string{"wii", "console"}, demands[0].Criteria)
	assert.Equal(t, 10.0, demands[0].Range)
	assert.Equal(t, models.UnitMiles, demands[0].RangeUnit)
	assert.Equal(t, int64(1), demands[0].Reference)
}

func TestDispatch_BareKeywordsDefaultToDemand(t *testing.T) {
	f := newFixture(t)

	err := f.engine.Dispatch(f.ctx, envelope("wii console", "consumer-1"))

	require.NoError(t, err)
	demands, err := f.store.QueryDemands(f.ctx, storage.Query{
		Filters: []storage.Filter{storage.Eq("ownerKey", "consumer-1")},
	})
	require.NoError(t, err)
	require.Len(t, demands, 1)
	assert.Equal(t, []string{"wii", "console"}, demands[0].Criteria)
}

func TestDispatch_UpdatesOwnDemandByReference(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.Dispatch(f.ctx, envelope("action:demand wii", "consumer-1")))

	err := f.engine.Dispatch(f.ctx, envelope("action:demand ref:1 +console", "consumer-1"))

	require.NoError(t, err)
	demands, err := f.store.QueryDemands(f.ctx, storage.Query{
		Filters: []storage.Filter{storage.Eq("ownerKey", "consumer-1")},
	})
	require.NoError(t, err)
	require.Len(t, demands, 1)
	assert.Equal(t, []string{"wii", "console"}, demands[0].Criteria)
}

func TestDispatch_ProposeAgainstPublishedDemand(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.Dispatch(f.ctx, envelope("action:demand wii", "consumer-1")))
	d, err := f.engine.demandByReference(f.ctx, "consumer-1", 1)
	require.NoError(t, err)
	f.publishDemand(t, d.Key)

	err = f.engine.Dispatch(f.ctx, envelope("action:propose ref:1 price:$25.99 wii", "associate-1"))

	require.NoError(t, err)
	proposals, err := f.store.QueryProposals(f.ctx, storage.Query{
		Filters: []storage.Filter{storage.Eq("demandKey", d.Key)},
	})
	require.NoError(t, err)
	require.Len(t, proposals, 1)
	assert.Equal(t, models.StatePublished, proposals[0].State)
	assert.Equal(t, "25.99", proposals[0].Price.String())
	assert.Equal(t, "consumer-1", proposals[0].ConsumerKey)
}

func TestDispatch_HelpShortCircuits(t *testing.T) {
	f := newFixture(t)

	err := f.engine.Dispatch(f.ctx, envelope("help:", "consumer-1"))

	require.NoError(t, err)
	msgs := f.notifier.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "Command help", msgs[0].Subject)
	demands, err := f.store.QueryDemands(f.ctx, storage.Query{})
	require.NoError(t, err)
	assert.Empty(t, demands)
}

func TestDispatch_EmptyCommandRepliesWithClientError(t *testing.T) {
	f := newFixture(t)

	err := f.engine.Dispatch(f.ctx, envelope("   ", "consumer-1"))

	assert.Equal(t, apperrors.ErrCodeClient, apperrors.CodeOf(err))
	msgs := f.notifier.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "Command failed", msgs[0].Subject)
}

func TestDispatch_UnknownReferenceRepliesNotFound(t *testing.T) {
	f := newFixture(t)

	err := f.engine.Dispatch(f.ctx, envelope("action:cancel ref:42", "consumer-1"))

	assert.Equal(t, apperrors.ErrCodeInvalidIdentifier, apperrors.CodeOf(err))
	msgs := f.notifier.Messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Body, "ref:42")
}

func TestDispatch_ListDemands(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.Dispatch(f.ctx, envelope("action:demand wii", "consumer-1")))

	err := f.engine.Dispatch(f.ctx, envelope("action:list", "consumer-1"))

	require.NoError(t, err)
	msgs := f.notifier.Messages()
	require.NotEmpty(t, msgs)
	last := msgs[len(msgs)-1]
	assert.Equal(t, "Your demands", last.Subject)
	assert.Contains(t, last.Body, "ref:1")
}

func TestDispatch_PersistsRawCommand(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.engine.Dispatch(f.ctx, envelope("action:demand wii", "consumer-1")))

	demands, err := f.store.QueryDemands(f.ctx, storage.Query{
		Filters: []storage.Filter{storage.Eq("ownerKey", "consumer-1")},
	})
	require.NoError(t, err)
	require.Len(t, demands, 1)
	require.NotEmpty(t, demands[0].RawCommandKey)
	rc, err := f.store.GetRawCommand(f.ctx, demands[0].RawCommandKey)
	require.NoError(t, err)
	assert.Equal(t, "action:demand wii", rc.Command)
}
