// internal/workflow/demand.go
package workflow

import (
	"context"
	"fmt"

	apperrors "demand-broker/internal/common/errors"
	"demand-broker/internal/models"
	"demand-broker/internal/notify"
	"demand-broker/internal/scheduler"
	"demand-broker/internal/storage"
)

// CreateDemand builds an opened demand from a parsed field map, draws the
// owner's next reference number, resolves the location when postal fields
// are present, and persists the result.
func (e *Engine) CreateDemand(ctx context.Context, fields models.FieldMap, ownerKey, source, localeID, rawCommandKey string) (*models.Demand, error) {
	d := models.NewDemand(fields, ownerKey, source, localeID, e.now())
	d.RawCommandKey = rawCommandKey

	ref, err := e.sequencer.NextDemandReference(ctx, ownerKey)
	if err != nil {
		return nil, err
	}
	d.Reference = ref

	if err := e.attachLocation(ctx, &d.Command, fields); err != nil {
		return nil, err
	}

	if err := e.store.SaveDemand(ctx, d); err != nil {
		return nil, err
	}
	e.log.Info("demand created", map[string]interface{}{
		"demand_key": d.Key,
		"owner_key":  ownerKey,
		"reference":  d.Reference,
	})

	e.send(ctx, notify.Message{
		Recipient: ownerKey,
		Source:    source,
		Locale:    localeID,
		Subject:   fmt.Sprintf("Demand ref:%d recorded", d.Reference),
		Body:      fmt.Sprintf("Your demand ref:%d has been recorded and will be published after validation.", d.Reference),
	})
	return d, nil
}

// UpdateDemand applies attribute edits. Edits are only legal while the
// demand is still editable, and always force the state back to opened so
// the demand goes through validation again.
func (e *Engine) UpdateDemand(ctx context.Context, demandKey, actorKey string, fields models.FieldMap) (*models.Demand, error) {
	d, err := e.store.GetDemand(ctx, demandKey)
	if err != nil {
		return nil, err
	}
	if d.OwnerKey != actorKey {
		return nil, apperrors.NewReservedOperationError("update demand", actorKey)
	}
	if !d.State.Editable() {
		return nil, apperrors.NewInvalidStateError(string(d.State), string(models.StateOpened))
	}

	d.ApplyFields(fields, e.now())
	if err := e.attachLocation(ctx, &d.Command, fields); err != nil {
		return nil, err
	}
	d.State = models.StateOpened

	if err := e.store.SaveDemand(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// PublishDemand moves an opened demand to published and runs the matching
// chain, recording the associates in range and telling them about it.
func (e *Engine) PublishDemand(ctx context.Context, demandKey string) (*models.Demand, error) {
	d, err := e.store.GetDemand(ctx, demandKey)
	if err != nil {
		return nil, err
	}
	if err := guardDemand(d.State, models.StatePublished); err != nil {
		return nil, err
	}

	d.State = models.StatePublished
	d.Touch(e.now())

	if e.matcher != nil && d.LocationKey != "" {
		associates, err := e.matcher.SaleAssociatesInRange(ctx, d)
		if err != nil {
			e.log.WithError(err).Warn("matching failed, demand published unmatched", map[string]interface{}{
				"demand_key": d.Key,
			})
		} else {
			d.SaleAssociateKeys = d.SaleAssociateKeys[:0]
			for _, a := range associates {
				d.SaleAssociateKeys = append(d.SaleAssociateKeys, a.Key)
			}
		}
	}

	if err := e.store.SaveDemand(ctx, d); err != nil {
		return nil, err
	}

	for _, associateKey := range d.SaleAssociateKeys {
		e.send(ctx, notify.Message{
			Recipient: associateKey,
			Source:    models.SourceSimulated,
			Locale:    d.Locale,
			Subject:   fmt.Sprintf("Demand ref:%d in your range", d.Reference),
			Body:      fmt.Sprintf("A demand matching your tags is looking for: %v", d.Criteria),
		})
	}
	return d, nil
}

// CancelDemand cancels the demand, detaches every attached proposal and
// schedules their cancellation as deferred tasks.
func (e *Engine) CancelDemand(ctx context.Context, demandKey, actorKey string) (*models.Demand, error) {
	d, err := e.store.GetDemand(ctx, demandKey)
	if err != nil {
		return nil, err
	}
	if d.OwnerKey != actorKey {
		return nil, apperrors.NewReservedOperationError("cancel demand", actorKey)
	}
	if err := guardDemand(d.State, models.StateCancelled); err != nil {
		return nil, err
	}

	detached := d.ProposalKeys
	d.ProposalKeys = nil
	d.State = models.StateCancelled
	d.CancelerKey = actorKey
	d.Touch(e.now())

	if err := e.store.SaveDemand(ctx, d); err != nil {
		return nil, err
	}
	for _, proposalKey := range detached {
		e.schedule(ctx, scheduler.Task{
			Name:      TaskCancelProposal,
			EntityKey: proposalKey,
			Payload: map[string]interface{}{
				"demandKey":   d.Key,
				"cancelerKey": actorKey,
			},
		})
	}
	e.send(ctx, notify.Message{
		Recipient: d.OwnerKey,
		Source:    d.Source,
		Locale:    d.Locale,
		Subject:   fmt.Sprintf("Demand ref:%d cancelled", d.Reference),
		Body:      fmt.Sprintf("Your demand ref:%d has been cancelled.", d.Reference),
	})
	return d, nil
}

// CloseDemand closes a fulfilled demand.
func (e *Engine) CloseDemand(ctx context.Context, demandKey, actorKey string) (*models.Demand, error) {
	d, err := e.store.GetDemand(ctx, demandKey)
	if err != nil {
		return nil, err
	}
	if d.OwnerKey != actorKey {
		return nil, apperrors.NewReservedOperationError("close demand", actorKey)
	}
	if err := guardDemand(d.State, models.StateClosed); err != nil {
		return nil, err
	}

	d.State = models.StateClosed
	d.Touch(e.now())
	if err := e.store.SaveDemand(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// MarkDemandForDeletion is terminal and only legal from cancelled.
func (e *Engine) MarkDemandForDeletion(ctx context.Context, demandKey, actorKey string) (*models.Demand, error) {
	d, err := e.store.GetDemand(ctx, demandKey)
	if err != nil {
		return nil, err
	}
	if d.OwnerKey != actorKey {
		return nil, apperrors.NewReservedOperationError("delete demand", actorKey)
	}
	if err := guardDemand(d.State, models.StateMarkedForDeletion); err != nil {
		return nil, err
	}

	d.State = models.StateMarkedForDeletion
	d.Touch(e.now())
	if err := e.store.SaveDemand(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// ExpireDemands cancels published demands whose expiration has passed and
// notifies their owners. Run periodically by the sweep ticker.
func (e *Engine) ExpireDemands(ctx context.Context) (int, error) {
	now := e.now()
	expired, err := e.store.QueryDemands(ctx, storage.Query{Filters: []storage.Filter{
		storage.Eq("state", string(models.StatePublished)),
		{Attr: "expiration", Op: storage.OpLT, Value: now},
	}})
	if err != nil {
		return 0, err
	}

	var cancelled int
	for _, d := range expired {
		if d.Expiration.IsZero() {
			continue
		}
		if err := guardDemand(d.State, models.StateCancelled); err != nil {
			continue
		}
		d.State = models.StateCancelled
		d.CancelerKey = "system"
		d.Touch(now)
		if err := e.store.SaveDemand(ctx, d); err != nil {
			e.log.WithError(err).Error("expired demand not persisted", map[string]interface{}{
				"demand_key": d.Key,
			})
			continue
		}
		cancelled++
		e.send(ctx, notify.Message{
			Recipient: d.OwnerKey,
			Source:    d.Source,
			Locale:    d.Locale,
			Subject:   fmt.Sprintf("Demand ref:%d expired", d.Reference),
			Body:      fmt.Sprintf("Your demand ref:%d expired on %s and has been cancelled.", d.Reference, d.Expiration.Format("2006-01-02")),
		})
	}
	if cancelled > 0 {
		e.log.Info("expiration sweep completed", map[string]interface{}{
			"cancelled": cancelled,
		})
	}
	return cancelled, nil
}
