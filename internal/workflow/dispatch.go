// internal/workflow/dispatch.go
package workflow

import (
	"context"
	"fmt"
	"strings"

	"demand-broker/internal/channels/api"
	apperrors "demand-broker/internal/common/errors"
	"demand-broker/internal/common/metrics"
	"demand-broker/internal/locale"
	"demand-broker/internal/models"
	"demand-broker/internal/notify"
	"demand-broker/internal/parser"
	"demand-broker/internal/storage"
)

// Dispatch processes one inbound envelope end to end: persist the raw
// command for audit, parse the text with the sender's locale patterns,
// and route the action to the matching lifecycle operation. User-facing
// errors are echoed back over the sender's channel; data access failures
// are reported generically.
func (e *Engine) Dispatch(ctx context.Context, env *api.Envelope) error {
	rc := env.RawCommand(e.now())
	if err := e.store.SaveRawCommand(ctx, rc); err != nil {
		return err
	}

	fields, err := parser.Parse(e.patterns.Get(env.Locale), env.Text)
	if err != nil {
		metrics.CommandsParsed.WithLabelValues(env.Locale, "error").Inc()
		e.reply(ctx, env, err)
		return err
	}
	metrics.CommandsParsed.WithLabelValues(env.Locale, "success").Inc()

	if fields.Has(models.FieldNeedHelp) {
		e.sendHelp(ctx, env)
		return nil
	}

	action := locale.Action(fields.String(models.FieldAction))
	if action == "" {
		// a bare command line is a demand, the system's default verb
		action = locale.ActionDemand
	}

	opErr := e.route(ctx, env, action, fields, rc.Key)
	if opErr != nil {
		e.reply(ctx, env, opErr)
	}
	return opErr
}

func (e *Engine) route(ctx context.Context, env *api.Envelope, action locale.Action, fields models.FieldMap, rawCommandKey string) error {
	switch action {
	case locale.ActionDemand:
		if fields.Has(models.FieldReference) {
			d, err := e.demandByReference(ctx, env.OwnerKey, fields.Long(models.FieldReference))
			if err != nil {
				return err
			}
			_, err = e.UpdateDemand(ctx, d.Key, env.OwnerKey, fields)
			return err
		}
		_, err := e.CreateDemand(ctx, fields, env.OwnerKey, env.Source, env.Locale, rawCommandKey)
		return err

	case locale.ActionPropose, locale.ActionSupply:
		if !fields.Has(models.FieldReference) {
			return apperrors.NewClientError("a proposal needs the demand reference (ref:<number>)")
		}
		d, err := e.publishedDemandByReference(ctx, fields.Long(models.FieldReference))
		if err != nil {
			return err
		}
		p, err := e.CreateProposal(ctx, fields, env.OwnerKey, env.Source, env.Locale, rawCommandKey, d.Key)
		if err != nil {
			return err
		}
		_, err = e.PublishProposal(ctx, p.Key)
		return err

	case locale.ActionConfirm:
		proposalKey, err := requireProposalKey(fields)
		if err != nil {
			return err
		}
		_, err = e.ConfirmProposal(ctx, proposalKey, env.OwnerKey)
		return err

	case locale.ActionDecline:
		proposalKey, err := requireProposalKey(fields)
		if err != nil {
			return err
		}
		_, err = e.DeclineProposal(ctx, proposalKey, env.OwnerKey)
		return err

	case locale.ActionClose:
		if fields.Has(models.FieldProposal) {
			_, err := e.CloseProposal(ctx, fields.String(models.FieldProposal), env.OwnerKey)
			return err
		}
		d, err := e.demandByReference(ctx, env.OwnerKey, fields.Long(models.FieldReference))
		if err != nil {
			return err
		}
		_, err = e.CloseDemand(ctx, d.Key, env.OwnerKey)
		return err

	case locale.ActionCancel:
		if fields.Has(models.FieldProposal) {
			_, err := e.CancelProposal(ctx, fields.String(models.FieldProposal), env.OwnerKey)
			return err
		}
		d, err := e.demandByReference(ctx, env.OwnerKey, fields.Long(models.FieldReference))
		if err != nil {
			return err
		}
		_, err = e.CancelDemand(ctx, d.Key, env.OwnerKey)
		return err

	case locale.ActionDelete:
		if fields.Has(models.FieldProposal) {
			_, err := e.MarkProposalForDeletion(ctx, fields.String(models.FieldProposal), env.OwnerKey)
			return err
		}
		d, err := e.demandByReference(ctx, env.OwnerKey, fields.Long(models.FieldReference))
		if err != nil {
			return err
		}
		_, err = e.MarkDemandForDeletion(ctx, d.Key, env.OwnerKey)
		return err

	case locale.ActionList:
		return e.listDemands(ctx, env)

	case locale.ActionHelp:
		e.sendHelp(ctx, env)
		return nil
	}
	return apperrors.NewClientError("unsupported action %q", string(action))
}

func requireProposalKey(fields models.FieldMap) (string, error) {
	key := fields.String(models.FieldProposal)
	if key == "" {
		return "", apperrors.NewClientError("a proposal key is required (proposal:<key>)")
	}
	return key, nil
}

// demandByReference resolves one of the sender's own demands.
func (e *Engine) demandByReference(ctx context.Context, ownerKey string, reference int64) (*models.Demand, error) {
	if reference == 0 {
		return nil, apperrors.NewClientError("a demand reference is required (ref:<number>)")
	}
	demands, err := e.store.QueryDemands(ctx, storage.Query{
		Filters: []storage.Filter{
			storage.Eq("ownerKey", ownerKey),
			storage.Eq("reference", reference),
		},
		Limit: 1,
	})
	if err != nil {
		return nil, err
	}
	if len(demands) == 0 {
		return nil, apperrors.NewInvalidIdentifierError(storage.KindDemand, fmt.Sprintf("ref:%d", reference))
	}
	return demands[0], nil
}

// publishedDemandByReference resolves any published demand by reference,
// for sale associates responding to a broadcast.
func (e *Engine) publishedDemandByReference(ctx context.Context, reference int64) (*models.Demand, error) {
	demands, err := e.store.QueryDemands(ctx, storage.Query{
		Filters: []storage.Filter{
			storage.Eq("reference", reference),
			storage.Eq("state", string(models.StatePublished)),
		},
		Limit: 1,
	})
	if err != nil {
		return nil, err
	}
	if len(demands) == 0 {
		return nil, apperrors.NewInvalidIdentifierError(storage.KindDemand, fmt.Sprintf("ref:%d", reference))
	}
	return demands[0], nil
}

func (e *Engine) listDemands(ctx context.Context, env *api.Envelope) error {
	demands, err := e.store.QueryDemands(ctx, storage.Query{
		Filters: []storage.Filter{storage.Eq("ownerKey", env.OwnerKey)},
	})
	if err != nil {
		return err
	}

	var lines []string
	for _, d := range demands {
		if d.State == models.StateMarkedForDeletion {
			continue
		}
		lines = append(lines, fmt.Sprintf("ref:%d %s %v", d.Reference, d.State, d.Criteria))
	}
	body := "You have no demands."
	if len(lines) > 0 {
		body = strings.Join(lines, "\n")
	}
	e.send(ctx, notify.Message{
		Recipient: env.Recipient,
		Source:    env.Source,
		Locale:    env.Locale,
		Subject:   "Your demands",
		Body:      body,
	})
	return nil
}

func (e *Engine) sendHelp(ctx context.Context, env *api.Envelope) {
	e.send(ctx, notify.Message{
		Recipient: env.Recipient,
		Source:    env.Source,
		Locale:    env.Locale,
		Subject:   "Command help",
		Body: strings.Join([]string{
			"Post a demand:      action:demand wii console range:25km",
			"Update a demand:    action:demand ref:21 +games -console",
			"Respond (sellers):  action:propose ref:21 price:25.99",
			"Confirm a proposal: action:confirm proposal:<key>",
			"Decline a proposal: action:decline proposal:<key>",
			"Cancel or close:    action:cancel ref:21 / action:close ref:21",
			"List your demands:  action:list",
		}, "\n"),
	})
}

// reply echoes a user-facing failure back to the sender. Data access
// errors stay internal and are reported generically.
func (e *Engine) reply(ctx context.Context, env *api.Envelope, opErr error) {
	body := "Your command could not be processed, please try again later."
	if apperrors.UserFacing(opErr) {
		body = opErr.Error()
	}
	e.send(ctx, notify.Message{
		Recipient: env.Recipient,
		Source:    env.Source,
		Locale:    env.Locale,
		Subject:   "Command failed",
		Body:      body,
	})
}
