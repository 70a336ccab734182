// internal/workflow/proposal.go
package workflow

import (
	"context"
	"fmt"

	apperrors "demand-broker/internal/common/errors"
	"demand-broker/internal/models"
	"demand-broker/internal/notify"
	"demand-broker/internal/scheduler"
)

// CreateProposal builds an opened proposal against an existing demand.
// The demand owner's key is copied onto the proposal for access control.
func (e *Engine) CreateProposal(ctx context.Context, fields models.FieldMap, ownerKey, source, localeID, rawCommandKey, demandKey string) (*models.Proposal, error) {
	d, err := e.store.GetDemand(ctx, demandKey)
	if err != nil {
		return nil, err
	}

	p := models.NewProposal(fields, ownerKey, source, localeID, e.now())
	p.RawCommandKey = rawCommandKey
	p.DemandKey = d.Key
	p.ConsumerKey = d.OwnerKey
	if fields.Has(models.FieldStore) {
		p.StoreKey = fields.String(models.FieldStore)
	}

	if err := e.store.SaveProposal(ctx, p); err != nil {
		return nil, err
	}
	e.log.Info("proposal created", map[string]interface{}{
		"proposal_key": p.Key,
		"demand_key":   d.Key,
		"owner_key":    ownerKey,
	})
	return p, nil
}

// UpdateProposal applies attribute edits while the proposal is editable.
// The edit resets the state to opened and detaches the proposal from its
// demand until it is validated and published again.
func (e *Engine) UpdateProposal(ctx context.Context, proposalKey, actorKey string, fields models.FieldMap) (*models.Proposal, error) {
	p, err := e.store.GetProposal(ctx, proposalKey)
	if err != nil {
		return nil, err
	}
	if p.OwnerKey != actorKey {
		return nil, apperrors.NewReservedOperationError("update proposal", actorKey)
	}
	if !p.State.Editable() {
		return nil, apperrors.NewInvalidStateError(string(p.State), string(models.StateOpened))
	}

	p.ApplyFields(fields, e.now())
	p.State = models.StateOpened

	if err := e.store.SaveProposal(ctx, p); err != nil {
		return nil, err
	}
	if err := e.detachFromDemand(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// PublishProposal moves an opened proposal to published, attaches it to
// its demand and tells the demand owner a proposal arrived.
func (e *Engine) PublishProposal(ctx context.Context, proposalKey string) (*models.Proposal, error) {
	p, err := e.store.GetProposal(ctx, proposalKey)
	if err != nil {
		return nil, err
	}
	if err := guardProposal(p.State, models.StatePublished); err != nil {
		return nil, err
	}

	d, err := e.store.GetDemand(ctx, p.DemandKey)
	if err != nil {
		return nil, err
	}

	p.State = models.StatePublished
	p.Touch(e.now())
	if err := e.store.SaveProposal(ctx, p); err != nil {
		return nil, err
	}

	d.AttachProposal(p.Key)
	d.Touch(e.now())
	if err := e.store.SaveDemand(ctx, d); err != nil {
		return nil, err
	}

	e.send(ctx, notify.Message{
		Recipient: d.OwnerKey,
		Source:    d.Source,
		Locale:    d.Locale,
		Subject:   fmt.Sprintf("New proposal on demand ref:%d", d.Reference),
		Body:      fmt.Sprintf("Proposal %s offers %v at %s.", p.Key, p.Criteria, p.Price.StringFixed(2)),
	})
	return p, nil
}

// ConfirmProposal accepts one proposal on behalf of the demand owner.
// Only one proposal per demand ever reaches confirmed: the demand's
// proposal-key list is reset to the winner and every sibling is scheduled
// for cancellation.
func (e *Engine) ConfirmProposal(ctx context.Context, proposalKey, actorKey string) (*models.Proposal, error) {
	p, err := e.store.GetProposal(ctx, proposalKey)
	if err != nil {
		return nil, err
	}
	d, err := e.store.GetDemand(ctx, p.DemandKey)
	if err != nil {
		return nil, err
	}
	if d.OwnerKey != actorKey {
		return nil, apperrors.NewReservedOperationError("confirm proposal", actorKey)
	}
	// both guards run before either entity is touched
	if err := guardProposal(p.State, models.StateConfirmed); err != nil {
		return nil, err
	}
	if err := guardDemand(d.State, models.StateConfirmed); err != nil {
		return nil, err
	}

	var siblings []string
	for _, key := range d.ProposalKeys {
		if key != p.Key {
			siblings = append(siblings, key)
		}
	}

	p.State = models.StateConfirmed
	p.Touch(e.now())
	if err := e.store.SaveProposal(ctx, p); err != nil {
		return nil, err
	}

	d.ProposalKeys = []string{p.Key}
	d.State = models.StateConfirmed
	d.Touch(e.now())
	if err := e.store.SaveDemand(ctx, d); err != nil {
		return nil, err
	}

	for _, siblingKey := range siblings {
		e.schedule(ctx, scheduler.Task{
			Name:      TaskCancelProposal,
			EntityKey: siblingKey,
			Payload: map[string]interface{}{
				"demandKey":   d.Key,
				"cancelerKey": actorKey,
			},
		})
	}

	e.send(ctx, notify.Message{
		Recipient: p.OwnerKey,
		Source:    p.Source,
		Locale:    p.Locale,
		Subject:   fmt.Sprintf("Proposal confirmed for demand ref:%d", d.Reference),
		Body:      "Your proposal has been confirmed by the consumer.",
	})
	e.send(ctx, notify.Message{
		Recipient: d.OwnerKey,
		Source:    d.Source,
		Locale:    d.Locale,
		Subject:   fmt.Sprintf("Demand ref:%d confirmed", d.Reference),
		Body:      fmt.Sprintf("You confirmed proposal %s.", p.Key),
	})
	return p, nil
}

// DeclineProposal records the decline and who asked for it. The demand is
// left untouched.
func (e *Engine) DeclineProposal(ctx context.Context, proposalKey, actorKey string) (*models.Proposal, error) {
	p, err := e.store.GetProposal(ctx, proposalKey)
	if err != nil {
		return nil, err
	}
	if p.ConsumerKey != actorKey {
		return nil, apperrors.NewReservedOperationError("decline proposal", actorKey)
	}
	if err := guardProposal(p.State, models.StateDeclined); err != nil {
		return nil, err
	}

	p.State = models.StateDeclined
	p.CancelerKey = actorKey
	p.Touch(e.now())
	if err := e.store.SaveProposal(ctx, p); err != nil {
		return nil, err
	}

	e.send(ctx, notify.Message{
		Recipient: p.OwnerKey,
		Source:    p.Source,
		Locale:    p.Locale,
		Subject:   "Proposal declined",
		Body:      fmt.Sprintf("Your proposal %s has been declined.", p.Key),
	})
	return p, nil
}

// CloseProposal closes a confirmed proposal and notifies the demand
// owner. The demand is closed separately and stays untouched here.
func (e *Engine) CloseProposal(ctx context.Context, proposalKey, actorKey string) (*models.Proposal, error) {
	p, err := e.store.GetProposal(ctx, proposalKey)
	if err != nil {
		return nil, err
	}
	if p.OwnerKey != actorKey {
		return nil, apperrors.NewReservedOperationError("close proposal", actorKey)
	}
	if err := guardProposal(p.State, models.StateClosed); err != nil {
		return nil, err
	}

	p.State = models.StateClosed
	p.Touch(e.now())
	if err := e.store.SaveProposal(ctx, p); err != nil {
		return nil, err
	}

	e.send(ctx, notify.Message{
		Recipient: p.ConsumerKey,
		Source:    p.Source,
		Locale:    p.Locale,
		Subject:   "Proposal completed",
		Body:      fmt.Sprintf("Proposal %s has been closed by the sale associate.", p.Key),
	})
	return p, nil
}

// CancelProposal cancels a proposal from any non-closed state and
// detaches it from its demand. Cancelling the confirmed proposal reverts
// the demand to published with a bumped modification timestamp so the
// next sweep picks it up again.
func (e *Engine) CancelProposal(ctx context.Context, proposalKey, actorKey string) (*models.Proposal, error) {
	p, err := e.store.GetProposal(ctx, proposalKey)
	if err != nil {
		return nil, err
	}
	if p.OwnerKey != actorKey && p.ConsumerKey != actorKey {
		return nil, apperrors.NewReservedOperationError("cancel proposal", actorKey)
	}
	if err := guardProposal(p.State, models.StateCancelled); err != nil {
		return nil, err
	}

	wasConfirmed := p.State == models.StateConfirmed
	p.State = models.StateCancelled
	p.CancelerKey = actorKey
	p.Touch(e.now())
	if err := e.store.SaveProposal(ctx, p); err != nil {
		return nil, err
	}

	d, err := e.store.GetDemand(ctx, p.DemandKey)
	if err != nil {
		return nil, err
	}
	d.DetachProposal(p.Key)
	if wasConfirmed {
		if err := guardDemand(d.State, models.StatePublished); err == nil {
			d.State = models.StatePublished
		}
	}
	d.Touch(e.now())
	if err := e.store.SaveDemand(ctx, d); err != nil {
		return nil, err
	}
	return p, nil
}

// MarkProposalForDeletion is terminal and only legal from cancelled.
func (e *Engine) MarkProposalForDeletion(ctx context.Context, proposalKey, actorKey string) (*models.Proposal, error) {
	p, err := e.store.GetProposal(ctx, proposalKey)
	if err != nil {
		return nil, err
	}
	if p.OwnerKey != actorKey {
		return nil, apperrors.NewReservedOperationError("delete proposal", actorKey)
	}
	if err := guardProposal(p.State, models.StateMarkedForDeletion); err != nil {
		return nil, err
	}

	p.State = models.StateMarkedForDeletion
	p.Touch(e.now())
	if err := e.store.SaveProposal(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// detachFromDemand removes the proposal key from its demand's list.
func (e *Engine) detachFromDemand(ctx context.Context, p *models.Proposal) error {
	if p.DemandKey == "" {
		return nil
	}
	d, err := e.store.GetDemand(ctx, p.DemandKey)
	if err != nil {
		return err
	}
	d.DetachProposal(p.Key)
	d.Touch(e.now())
	return e.store.SaveDemand(ctx, d)
}
