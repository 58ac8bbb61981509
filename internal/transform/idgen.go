package transform

import (
	"encoding/json"
	"strings"

	"github.com/rumor-ml/commons.systems/bankstmt/internal/domain"
)

// KeySeparator joins the invariant fields of a synthetic key and is appended
// to resolve collisions within one batch. "+" is unusable here because ISO
// timestamps carry it in zone offsets.
const KeySeparator = "|"

const nullField = "null"

// SyntheticKey derives a key from the invariant fields of a movement.
// Format: "{accountable_date}|{date}|{amount}|{sender_account}|{recipient_account}"
// Accounts are rendered as compact JSON; absent values render as "null".
// Example: "2023-01-15T09:00:00.000000Z|2023-01-15T09:00:00.000000Z|-5000|null|{"rut":"1-9","number":"42","bank":"Banco"}"
func SyntheticKey(m domain.Movement) string {
	amount := nullField
	if m.Amount != nil {
		amount = m.Amount.String()
	}

	parts := []string{
		optional(m.AccountableDate),
		optional(m.Date),
		amount,
		accountString(m.SenderAccount),
		accountString(m.RecipientAccount),
	}
	return strings.Join(parts, KeySeparator)
}

func optional(s *string) string {
	if s == nil {
		return nullField
	}
	return *s
}

// accountString renders an account deterministically: struct field order
// fixes the JSON key order.
func accountString(a *domain.Account) string {
	if a == nil {
		return nullField
	}
	data, err := json.Marshal(a)
	if err != nil {
		// Account holds only *string fields; Marshal cannot fail.
		panic("transform: marshal account: " + err.Error())
	}
	return string(data)
}

// Resolver assigns store keys to the movements of a single ingestion batch.
// Create one per snapshot; collision avoidance never spans batches, which is
// what lets a re-ingested snapshot overwrite its own earlier entries.
type Resolver struct {
	minted map[string]struct{}
	// next[base] is the smallest suffix count not yet known to be minted for base.
	next        map[string]int
	synthesized int
	collisions  int
}

// NewResolver creates an empty batch resolver.
func NewResolver() *Resolver {
	return &Resolver{
		minted: make(map[string]struct{}),
		next:   make(map[string]int),
	}
}

// Resolve returns the key m should be stored under.
//
// An upstream id is trusted verbatim. Otherwise the synthetic key is used,
// with KeySeparator appended until the key is unused in this batch. The
// result depends only on batch order and field values.
func (r *Resolver) Resolve(m domain.Movement) string {
	if m.ID != nil {
		return *m.ID
	}

	r.synthesized++
	base := SyntheticKey(m)

	n := r.next[base]
	key := base + strings.Repeat(KeySeparator, n)
	for {
		if _, taken := r.minted[key]; !taken {
			break
		}
		key += KeySeparator
		n++
	}

	if n > 0 {
		r.collisions++
	}
	r.minted[key] = struct{}{}
	r.next[base] = n + 1
	return key
}

// Synthesized returns how many keys were derived from invariant fields.
func (r *Resolver) Synthesized() int { return r.synthesized }

// Collisions returns how many synthesized keys needed a suffix.
func (r *Resolver) Collisions() int { return r.collisions }
