package transform

import (
	"fmt"

	"github.com/rumor-ml/commons.systems/bankstmt/internal/domain"
	"github.com/rumor-ml/commons.systems/bankstmt/internal/snapshot"
)

// counterpartyAttrs maps canonical Account fields to their movement_meta suffix.
var counterpartyAttrs = [...]string{"rut", "account", "bank"}

// Normalize converts one raw snapshot movement into the canonical Movement.
//
// Optional scalar fields are copied as-is (nil when absent). Outbound amounts
// are negated so that positive always means money in. Only the external
// counterparty is recorded: the recipient of an outbound movement or the
// sender of an inbound one.
func Normalize(raw snapshot.RawMovement) (domain.Movement, error) {
	if raw.Type == nil && !raw.TypePresent {
		return domain.Movement{}, fmt.Errorf("%w: type", domain.ErrMissingField)
	}
	if raw.MovementMeta == nil {
		return domain.Movement{}, fmt.Errorf("%w: movement_meta", domain.ErrMissingField)
	}

	// A null type is not "outbound", so it reads as inbound.
	var direction domain.Direction
	if raw.Type != nil {
		direction = domain.Direction(*raw.Type)
	}

	m := domain.Movement{
		ID:              raw.ID.StringPtr(),
		AccountableDate: raw.AccountableDate,
		Date:            raw.Date,
		Description:     raw.Description,
	}

	if raw.Amount != nil {
		amount := *raw.Amount
		if direction == domain.DirectionOutbound {
			amount = amount.Neg()
		}
		m.Amount = &amount
	}

	if len(raw.MovementMeta) == 0 {
		return m, nil
	}

	populated, _ := domain.CounterpartySide(direction)
	account, err := extractAccount(raw.MovementMeta, populated)
	if err != nil {
		return domain.Movement{}, err
	}

	if populated == domain.SideRecipient {
		m.RecipientAccount = account
	} else {
		m.SenderAccount = account
	}
	return m, nil
}

// extractAccount builds the Account for side from movement_meta. All three
// keys must be present; their values may be null.
func extractAccount(meta snapshot.Meta, side domain.Side) (*domain.Account, error) {
	var values [len(counterpartyAttrs)]*string
	for i, attr := range counterpartyAttrs {
		key := side.MetaKey(attr)
		v, ok := meta[key]
		if !ok {
			return nil, fmt.Errorf("%w: movement_meta.%s", domain.ErrMissingField, key)
		}
		values[i] = v.StringPtr()
	}

	return &domain.Account{
		Rut:    values[0],
		Number: values[1],
		Bank:   values[2],
	}, nil
}
