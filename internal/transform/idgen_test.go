package transform

import (
	"strings"
	"testing"

	"github.com/rumor-ml/commons.systems/bankstmt/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func movement(accountable, date, amt string) domain.Movement {
	return domain.Movement{
		AccountableDate: domain.StringPtr(accountable),
		Date:            domain.StringPtr(date),
		Amount:          amount(amt),
	}
}

func TestSyntheticKey(t *testing.T) {
	tests := []struct {
		name     string
		movement domain.Movement
		expected string
	}{
		{
			name:     "no counterparty",
			movement: movement("2023-01-15T09:00:00.000000Z", "2023-01-15T08:00:00.000000Z", "3000"),
			expected: "2023-01-15T09:00:00.000000Z|2023-01-15T08:00:00.000000Z|3000|null|null",
		},
		{
			name: "recipient account",
			movement: domain.Movement{
				AccountableDate: domain.StringPtr("2023-02-01"),
				Date:            domain.StringPtr("2023-02-01"),
				Amount:          amount("-5000"),
				RecipientAccount: &domain.Account{
					Rut:    domain.StringPtr("1-9"),
					Number: domain.StringPtr("42"),
					Bank:   nil,
				},
			},
			expected: `2023-02-01|2023-02-01|-5000|null|{"rut":"1-9","number":"42","bank":null}`,
		},
		{
			name:     "all fields absent",
			movement: domain.Movement{},
			expected: "null|null|null|null|null",
		},
		{
			name:     "trailing zeros do not change the key",
			movement: movement("d", "d", "10.50"),
			expected: "d|d|10.5|null|null",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SyntheticKey(tt.movement))
		})
	}
}

func TestSyntheticKey_IgnoresIDAndDescription(t *testing.T) {
	a := movement("d1", "d2", "1")
	b := movement("d1", "d2", "1")
	b.Description = domain.StringPtr("different text")
	b.ID = domain.StringPtr("ignored")

	assert.Equal(t, SyntheticKey(a), SyntheticKey(b))
}

func TestSyntheticKey_Deterministic(t *testing.T) {
	m := domain.Movement{
		AccountableDate: domain.StringPtr("d"),
		SenderAccount: &domain.Account{
			Rut:    domain.StringPtr("r"),
			Number: domain.StringPtr("n"),
			Bank:   domain.StringPtr("b"),
		},
	}
	first := SyntheticKey(m)
	for i := 0; i < 50; i++ {
		require.Equal(t, first, SyntheticKey(m))
	}
}

func TestSyntheticKey_SenderAndRecipientDiffer(t *testing.T) {
	acc := &domain.Account{Rut: domain.StringPtr("1-9")}
	sender := domain.Movement{SenderAccount: acc}
	recipient := domain.Movement{RecipientAccount: acc}
	assert.NotEqual(t, SyntheticKey(sender), SyntheticKey(recipient))
}

func TestResolver_TrustsUpstreamID(t *testing.T) {
	r := NewResolver()
	m := movement("d", "d", "1")
	m.ID = domain.StringPtr("abc")

	assert.Equal(t, "abc", r.Resolve(m))
	assert.Equal(t, "abc", r.Resolve(m), "ids are not subject to collision suffixes")
	assert.Equal(t, 0, r.Synthesized())
	assert.Equal(t, 0, r.Collisions())
}

func TestResolver_CollisionsWithinBatch(t *testing.T) {
	r := NewResolver()
	m := movement("d", "d", "1")
	base := SyntheticKey(m)

	k1 := r.Resolve(m)
	k2 := r.Resolve(m)
	k3 := r.Resolve(m)

	assert.Equal(t, base, k1)
	assert.Equal(t, base+"|", k2)
	assert.Equal(t, base+"||", k3)
	assert.Equal(t, 3, r.Synthesized())
	assert.Equal(t, 2, r.Collisions())
}

func TestResolver_NewBatchReusesKeys(t *testing.T) {
	m := movement("d", "d", "1")

	first := NewResolver()
	a1, a2 := first.Resolve(m), first.Resolve(m)

	second := NewResolver()
	b1, b2 := second.Resolve(m), second.Resolve(m)

	assert.Equal(t, a1, b1)
	assert.Equal(t, a2, b2)
}

// The per-base counter must hand out exactly the keys a naive
// append-until-free loop would.
func TestResolver_MatchesNaiveLoop(t *testing.T) {
	a := movement("d", "d", "1")
	b := movement("d", "d", "2")
	c := movement("d", "d", "1")
	c.RecipientAccount = &domain.Account{Rut: domain.StringPtr("1-9")}

	naive := map[string]struct{}{}
	naiveResolve := func(mv domain.Movement) string {
		k := SyntheticKey(mv)
		for {
			if _, ok := naive[k]; !ok {
				break
			}
			k += KeySeparator
		}
		naive[k] = struct{}{}
		return k
	}

	r := NewResolver()
	batch := []domain.Movement{a, b, a, c, b, a, c, a}
	for i, mv := range batch {
		assert.Equal(t, naiveResolve(mv), r.Resolve(mv), "movement %d", i)
	}
}

func TestResolver_ManyDuplicatesStayUnique(t *testing.T) {
	r := NewResolver()
	m := movement("d", "d", "1")
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		k := r.Resolve(m)
		require.False(t, seen[k], "duplicate key at %d", i)
		seen[k] = true
		assert.Equal(t, i, strings.Count(k, KeySeparator)-4)
	}
}
