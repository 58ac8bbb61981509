// Package domain holds the canonical movement model shared by the ingestion,
// merge and presentation stages.
package domain

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrMissingField marks a snapshot record lacking a structurally required key.
	ErrMissingField = errors.New("missing required field")

	// ErrInvalidDate marks an accountable date that matches no supported layout.
	ErrInvalidDate = errors.New("invalid accountable date")
)

// Direction is the upstream movement type.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Side names one end of a transfer. Field names in movement_meta and in the
// canonical record are derived from it ("sender_rut", "recipient_account", ...).
type Side string

const (
	SideSender    Side = "sender"
	SideRecipient Side = "recipient"
)

// MetaKey returns the movement_meta key for the given attribute of this side,
// e.g. SideRecipient.MetaKey("bank") == "recipient_bank".
func (s Side) MetaKey(attr string) string {
	return string(s) + "_" + attr
}

// CounterpartySide maps a direction to the side that holds the external party
// and the side that is implicitly the account holder.
//
// Outbound money goes to a recipient, so the recipient is recorded and the
// sender (us) is left empty. Every other direction is treated as inbound.
func CounterpartySide(d Direction) (populated, empty Side) {
	if d == DirectionOutbound {
		return SideRecipient, SideSender
	}
	return SideSender, SideRecipient
}

// Account is the counterparty of a movement. Any attribute may be nil when the
// upstream feed sent an explicit null.
type Account struct {
	Rut    *string `json:"rut"`
	Number *string `json:"number"`
	Bank   *string `json:"bank"`
}

// Movement is the canonical shape of one bank movement.
//
// Sign convention:
//
//	Positive = money in (inbound)
//	Negative = money out (outbound)
//
// Fields missing upstream are nil rather than zero values so that absence
// survives into identity derivation and rendering.
type Movement struct {
	ID               *string          `json:"id"`
	Amount           *decimal.Decimal `json:"-"`
	AccountableDate  *string          `json:"accountable_date"`
	Date             *string          `json:"date"`
	Description      *string          `json:"description"`
	SenderAccount    *Account         `json:"sender_account"`
	RecipientAccount *Account         `json:"recipient_account"`
}

// HasID reports whether the upstream feed supplied an identifier.
func (m *Movement) HasID() bool {
	return m.ID != nil
}

// AmountOrZero returns the signed amount, treating a missing amount as zero.
func (m *Movement) AmountOrZero() decimal.Decimal {
	if m.Amount == nil {
		return decimal.Zero
	}
	return *m.Amount
}

// Counterparty returns the populated account and its side, or nil when the
// movement carried no metadata.
func (m *Movement) Counterparty() (*Account, Side) {
	switch {
	case m.RecipientAccount != nil:
		return m.RecipientAccount, SideRecipient
	case m.SenderAccount != nil:
		return m.SenderAccount, SideSender
	default:
		return nil, ""
	}
}

// MarshalJSON renders the amount as a bare JSON number instead of the quoted
// string decimal.Decimal produces by default.
func (m Movement) MarshalJSON() ([]byte, error) {
	type Alias Movement
	var amount json.RawMessage = []byte("null")
	if m.Amount != nil {
		amount = json.RawMessage(m.Amount.String())
	}
	return json.Marshal(&struct {
		Alias
		Amount json.RawMessage `json:"amount"`
	}{
		Alias:  Alias(m),
		Amount: amount,
	})
}

// UnmarshalJSON accepts the amount either as a number or a quoted string.
func (m *Movement) UnmarshalJSON(data []byte) error {
	type Alias Movement
	aux := &struct {
		*Alias
		Amount *decimal.Decimal `json:"amount"`
	}{
		Alias: (*Alias)(m),
	}
	if err := json.Unmarshal(data, aux); err != nil {
		return fmt.Errorf("failed to decode movement: %w", err)
	}
	m.Amount = aux.Amount
	return nil
}

// StringPtr returns a pointer to s. Convenience for building movements.
func StringPtr(s string) *string {
	return &s
}

// DecimalPtr returns a pointer to d.
func DecimalPtr(d decimal.Decimal) *decimal.Decimal {
	return &d
}
