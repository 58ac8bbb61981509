package output

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/relvacode/iso8601"
	"github.com/rumor-ml/commons.systems/bankstmt/internal/domain"
	"github.com/rumor-ml/commons.systems/bankstmt/internal/statement"
	"github.com/shopspring/decimal"
)

// PrimaryDateLayout is the layout the bank feed uses for accountable dates.
const PrimaryDateLayout = "2006-01-02T15:04:05.999999Z"

// DisplayDateLayout renders dates as DD-MM-YYYY.
const DisplayDateLayout = "02-01-2006"

// HeaderLine is the summary line that precedes the rendered movements.
func HeaderLine(count int) string {
	return fmt.Sprintf("Numero de movimientos: %d", count)
}

// ParseAccountableDate parses s with the primary layout, falling back to
// general ISO-8601. A space may stand in for the "T" separator. Times without
// a zone are UTC.
func ParseAccountableDate(s *string) (time.Time, error) {
	if s == nil {
		return time.Time{}, fmt.Errorf("%w: accountable_date is null", domain.ErrInvalidDate)
	}
	if t, err := time.Parse(PrimaryDateLayout, *s); err == nil {
		return t, nil
	}

	iso := *s
	if len(iso) > 10 && iso[10] == ' ' {
		iso = iso[:10] + "T" + iso[11:]
	}
	t, err := iso8601.ParseString(iso)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", domain.ErrInvalidDate, *s, err)
	}
	return t, nil
}

// FormatAmount renders an amount the way the feed spelled it: integers stay
// integral, and a number sent with a fractional part or exponent keeps at
// least one decimal ("5000.0" stays "5000.0", "1234.50" becomes "1234.5").
func FormatAmount(d decimal.Decimal) string {
	out := d.String()
	if d.Exponent() != 0 && !strings.Contains(out, ".") {
		out += ".0"
	}
	return out
}

// RenderedMovement is a display line together with its sort keys.
type RenderedMovement struct {
	Key             string
	Line            string
	AccountableDate time.Time
	Movement        domain.Movement
}

// FormatMovement renders m as "DD-MM-YYYY | amount | description".
// A missing amount renders as 0 and a missing description as empty text.
func FormatMovement(m domain.Movement) (string, time.Time, error) {
	date, err := ParseAccountableDate(m.AccountableDate)
	if err != nil {
		return "", time.Time{}, err
	}

	description := ""
	if m.Description != nil {
		description = *m.Description
	}

	line := fmt.Sprintf("%s | %s | %s", date.Format(DisplayDateLayout), FormatAmount(m.AmountOrZero()), description)
	return line, date, nil
}

// Sorted renders every entry of st and orders them by accountable date, then
// amount. The sort is stable over store insertion order, so ties keep the
// order in which their keys were first ingested.
func Sorted(st *statement.Statement) ([]RenderedMovement, error) {
	if st == nil {
		return nil, fmt.Errorf("statement cannot be nil")
	}

	entries := st.Entries()
	rendered := make([]RenderedMovement, 0, len(entries))
	for _, e := range entries {
		line, date, err := FormatMovement(e.Movement)
		if err != nil {
			return nil, fmt.Errorf("failed to render movement %q: %w", e.Key, err)
		}
		rendered = append(rendered, RenderedMovement{
			Key:             e.Key,
			Line:            line,
			AccountableDate: date,
			Movement:        e.Movement,
		})
	}

	sort.SliceStable(rendered, func(i, j int) bool {
		a, b := rendered[i], rendered[j]
		if !a.AccountableDate.Equal(b.AccountableDate) {
			return a.AccountableDate.Before(b.AccountableDate)
		}
		return a.Movement.AmountOrZero().LessThan(b.Movement.AmountOrZero())
	})

	return rendered, nil
}

// Lines returns the sorted display lines of st.
func Lines(st *statement.Statement) ([]string, error) {
	rendered, err := Sorted(st)
	if err != nil {
		return nil, err
	}
	lines := make([]string, len(rendered))
	for i, r := range rendered {
		lines[i] = r.Line
	}
	return lines, nil
}

// Render returns the summary header followed by the sorted display lines.
func Render(st *statement.Statement) ([]string, error) {
	lines, err := Lines(st)
	if err != nil {
		return nil, err
	}
	return append([]string{HeaderLine(st.Len())}, lines...), nil
}
