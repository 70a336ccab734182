// internal/workflow/transitions_test.go
package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "demand-broker/internal/common/errors"
	"demand-broker/internal/models"
)

// ==========================
// Transition Guard Tests
// ==========================

func TestGuardProposal_FromPublished(t *testing.T) {
	tests := []struct {
		next    models.State
		allowed bool
	}{
		{models.StateConfirmed, true},
		{models.StateDeclined, true},
		{models.StateCancelled, true},
		{models.StateClosed, false},
		{models.StateOpened, false},
		{models.StateMarkedForDeletion, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.next), func(t *testing.T) {
			err := guardProposal(models.StatePublished, tt.next)
			if tt.allowed {
				assert.NoError(t, err)
			} else {
				assert.Equal(t, apperrors.ErrCodeInvalidState, apperrors.CodeOf(err))
			}
		})
	}
}

func TestGuardDemand_ConfirmedCanRevertToPublished(t *testing.T) {
	assert.NoError(t, guardDemand(models.StateConfirmed, models.StatePublished))
}

func TestGuard_MarkedForDeletionOnlyFromCancelled(t *testing.T) {
	for _, from := range []models.State{
		models.StateOpened, models.StateInvalid, models.StatePublished,
		models.StateConfirmed, models.StateDeclined, models.StateClosed,
	} {
		assert.Error(t, guardDemand(from, models.StateMarkedForDeletion), "demand from %s", from)
		assert.Error(t, guardProposal(from, models.StateMarkedForDeletion), "proposal from %s", from)
	}
	assert.NoError(t, guardDemand(models.StateCancelled, models.StateMarkedForDeletion))
	assert.NoError(t, guardProposal(models.StateCancelled, models.StateMarkedForDeletion))
}

func TestGuard_TerminalStatesAcceptNothing(t *testing.T) {
	for _, next := range []models.State{
		models.StateOpened, models.StateInvalid, models.StatePublished,
		models.StateConfirmed, models.StateDeclined, models.StateCancelled,
		models.StateClosed, models.StateMarkedForDeletion,
	} {
		assert.Error(t, guardDemand(models.StateClosed, next), "demand closed -> %s", next)
		assert.Error(t, guardDemand(models.StateMarkedForDeletion, next), "demand marked -> %s", next)
		assert.Error(t, guardProposal(models.StateClosed, next), "proposal closed -> %s", next)
		assert.Error(t, guardProposal(models.StateMarkedForDeletion, next), "proposal marked -> %s", next)
	}
}

func TestGuard_ErrorNamesBothStates(t *testing.T) {
	err := guardProposal(models.StateOpened, models.StateConfirmed)

	assert.Contains(t, err.Error(), string(models.StateOpened))
	assert.Contains(t, err.Error(), string(models.StateConfirmed))
}
