// internal/workflow/transitions.go
package workflow

import (
	apperrors "demand-broker/internal/common/errors"
	"demand-broker/internal/common/metrics"
	"demand-broker/internal/models"
)

// Transition tables for the two lifecycles. A state missing from the map
// accepts no transition at all.
var demandTransitions = map[models.State][]models.State{
	models.StateOpened:    {models.StatePublished, models.StateCancelled},
	models.StateInvalid:   {models.StateOpened, models.StateCancelled},
	models.StatePublished: {models.StateConfirmed, models.StateClosed, models.StateCancelled},
	models.StateConfirmed: {models.StatePublished, models.StateClosed, models.StateCancelled},
	models.StateCancelled: {models.StateMarkedForDeletion},
}

var proposalTransitions = map[models.State][]models.State{
	models.StateOpened:    {models.StatePublished, models.StateCancelled},
	models.StateInvalid:   {models.StateOpened, models.StateCancelled},
	models.StatePublished: {models.StateConfirmed, models.StateDeclined, models.StateCancelled},
	models.StateConfirmed: {models.StateClosed, models.StateCancelled},
	models.StateDeclined:  {models.StateCancelled},
	models.StateCancelled: {models.StateMarkedForDeletion},
}

// guardTransition checks the table before anything is mutated. The
// returned error carries both states so the channel reply can explain
// exactly what was refused.
func guardTransition(kind string, table map[models.State][]models.State, current, next models.State) error {
	for _, allowed := range table[current] {
		if allowed == next {
			metrics.Transitions.WithLabelValues(kind, string(next)).Inc()
			return nil
		}
	}
	metrics.TransitionsRejected.WithLabelValues(kind).Inc()
	return apperrors.NewInvalidStateError(string(current), string(next))
}

func guardDemand(current, next models.State) error {
	return guardTransition("demand", demandTransitions, current, next)
}

func guardProposal(current, next models.State) error {
	return guardTransition("proposal", proposalTransitions, current, next)
}
