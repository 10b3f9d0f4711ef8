package ledger

import (
	"regexp"
	"strings"
	"time"

	"agentledger/internal/core"
)

// DateLayout is the canonical YYYY-MM-DD grammar for filter bounds.
const DateLayout = "2006-01-02"

// defaultWindowDays is the trailing inclusive window applied when both
// bounds are absent: to = today, from = today - 29 days.
const defaultWindowDays = 30

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Normalize turns raw, partially-specified query input into the canonical
// filter set. Both bounds resolve against UTC midnight of now, never local
// wall-clock time. Pure over (in, now).
func Normalize(in FilterInput, now time.Time) (Filters, error) {
	out := Filters{
		AgentID:  strings.TrimSpace(in.AgentID),
		Currency: strings.ToUpper(strings.TrimSpace(in.Currency)),
	}
	if out.Currency == "" {
		out.Currency = core.CurrencyUSD
	}

	today := now.UTC().Truncate(24 * time.Hour)

	to := today
	if raw := strings.TrimSpace(in.To); raw != "" {
		t, err := parseDate(raw, "to")
		if err != nil {
			return Filters{}, err
		}
		to = t
	}

	from := to.AddDate(0, 0, -(defaultWindowDays - 1))
	if raw := strings.TrimSpace(in.From); raw != "" {
		t, err := parseDate(raw, "from")
		if err != nil {
			return Filters{}, err
		}
		from = t
	}

	if from.After(to) {
		return Filters{}, core.E(core.KindInvalidDateRange, "from %s is after to %s", from.Format(DateLayout), to.Format(DateLayout))
	}

	out.From = from.Format(DateLayout)
	out.To = to.Format(DateLayout)
	return out, nil
}

// SafeNormalize never fails: on any validation error it collapses both
// bounds to today and keeps the best-effort currency and agent scope. Use
// only for error-path logging; data operations take Normalize's result.
func SafeNormalize(in FilterInput, now time.Time) Filters {
	f, err := Normalize(in, now)
	if err == nil {
		return f
	}
	today := now.UTC().Format(DateLayout)
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = core.CurrencyUSD
	}
	return Filters{
		AgentID:  strings.TrimSpace(in.AgentID),
		From:     today,
		To:       today,
		Currency: currency,
	}
}

func parseDate(raw, field string) (time.Time, error) {
	if !datePattern.MatchString(raw) {
		return time.Time{}, core.E(core.KindInvalidDate, "%s %q does not match YYYY-MM-DD", field, raw)
	}
	t, err := time.ParseInLocation(DateLayout, raw, time.UTC)
	if err != nil {
		return time.Time{}, core.E(core.KindInvalidDate, "%s %q is not a valid date", field, raw)
	}
	return t, nil
}
