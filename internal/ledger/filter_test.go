package ledger

import (
	"testing"
	"time"

	"agentledger/internal/core"
)

var testNow = time.Date(2026, 9, 1, 15, 30, 0, 0, time.UTC)

func TestNormalizeDefaults(t *testing.T) {
	f, err := Normalize(FilterInput{}, testNow)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if f.To != "2026-09-01" {
		t.Errorf("to = %q, want today", f.To)
	}
	if f.From != "2026-08-03" {
		t.Errorf("from = %q, want 29 days before to", f.From)
	}
	if f.Currency != "USD" {
		t.Errorf("currency = %q, want USD", f.Currency)
	}
	if f.AgentID != "" {
		t.Errorf("agentId = %q, want empty", f.AgentID)
	}
}

func TestNormalizeExplicitBounds(t *testing.T) {
	f, err := Normalize(FilterInput{From: "2026-01-10", To: "2026-02-20"}, testNow)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if f.From != "2026-01-10" || f.To != "2026-02-20" {
		t.Errorf("bounds = %q..%q", f.From, f.To)
	}
}

func TestNormalizeFromOnlyDefaultsToToToday(t *testing.T) {
	f, err := Normalize(FilterInput{From: "2026-08-20"}, testNow)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if f.From != "2026-08-20" || f.To != "2026-09-01" {
		t.Errorf("bounds = %q..%q, want 2026-08-20..2026-09-01", f.From, f.To)
	}
}

func TestNormalizeToOnlyDerivesFrom(t *testing.T) {
	f, err := Normalize(FilterInput{To: "2026-03-30"}, testNow)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if f.From != "2026-03-01" {
		t.Errorf("from = %q, want 2026-03-01 (30-day window ending at to)", f.From)
	}
}

func TestNormalizeInvalidDates(t *testing.T) {
	cases := []struct {
		name string
		in   FilterInput
	}{
		{"bad from format", FilterInput{From: "2026/01/01"}},
		{"bad to format", FilterInput{To: "Jan 1 2026"}},
		{"truncated", FilterInput{From: "2026-01"}},
		{"impossible date", FilterInput{From: "2026-13-45"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Normalize(tc.in, testNow)
			if !core.IsKind(err, core.KindInvalidDate) {
				t.Errorf("err = %v, want InvalidDate", err)
			}
		})
	}
}

func TestNormalizeInvertedRange(t *testing.T) {
	_, err := Normalize(FilterInput{From: "2026-05-10", To: "2026-05-01"}, testNow)
	if !core.IsKind(err, core.KindInvalidDateRange) {
		t.Errorf("err = %v, want InvalidDateRange", err)
	}
}

func TestNormalizeCurrencyAndAgent(t *testing.T) {
	f, err := Normalize(FilterInput{Currency: "  usd ", AgentID: "  agent-atlas  "}, testNow)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if f.Currency != "USD" {
		t.Errorf("currency = %q, want USD", f.Currency)
	}
	if f.AgentID != "agent-atlas" {
		t.Errorf("agentId = %q, want trimmed", f.AgentID)
	}

	// The normalizer canonicalizes but does not reject foreign currencies;
	// providers do.
	f, err = Normalize(FilterInput{Currency: "eur"}, testNow)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if f.Currency != "EUR" {
		t.Errorf("currency = %q, want EUR", f.Currency)
	}
	if f.CheckCurrency() == nil {
		t.Error("CheckCurrency should reject EUR")
	}
}

func TestNormalizeEmptyAgentMeansUnscoped(t *testing.T) {
	f, err := Normalize(FilterInput{AgentID: "   "}, testNow)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if f.AgentID != "" {
		t.Errorf("agentId = %q, want empty (unscoped)", f.AgentID)
	}
}

func TestSafeNormalizeNeverFails(t *testing.T) {
	f := SafeNormalize(FilterInput{From: "garbage", To: "2026-05-01", Currency: "eur"}, testNow)
	if f.From != "2026-09-01" || f.To != "2026-09-01" {
		t.Errorf("bounds = %q..%q, want today..today", f.From, f.To)
	}
	if f.Currency != "EUR" {
		t.Errorf("currency = %q, want best-effort EUR", f.Currency)
	}

	ok, err := Normalize(FilterInput{From: "2026-05-01"}, testNow)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if got := SafeNormalize(FilterInput{From: "2026-05-01"}, testNow); got != ok {
		t.Errorf("SafeNormalize diverged from Normalize on valid input: %+v vs %+v", got, ok)
	}
}

func TestFiltersWindow(t *testing.T) {
	f := Filters{From: "2026-08-01", To: "2026-08-02", Currency: "USD"}
	start, end := f.Window()
	if !start.Equal(time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("start = %v", start)
	}
	want := time.Date(2026, 8, 2, 23, 59, 59, 999000000, time.UTC)
	if !end.Equal(want) {
		t.Errorf("end = %v, want %v", end, want)
	}
}

func TestNormalizeRecordValidation(t *testing.T) {
	valid := RecordInput{
		AgentID:     "agent-atlas",
		Category:    "compute",
		Vendor:      "Lambda Labs",
		Description: "GPU hours",
		AmountMinor: 18400,
	}

	cases := []struct {
		name   string
		mutate func(*RecordInput)
		kind   core.Kind
	}{
		{"empty agent", func(in *RecordInput) { in.AgentID = "  " }, core.KindInvalidAgent},
		{"empty category", func(in *RecordInput) { in.Category = "" }, core.KindInvalidCategory},
		{"empty vendor", func(in *RecordInput) { in.Vendor = " " }, core.KindInvalidVendor},
		{"empty description", func(in *RecordInput) { in.Description = "" }, core.KindInvalidDescription},
		{"zero amount", func(in *RecordInput) { in.AmountMinor = 0 }, core.KindInvalidAmount},
		{"negative amount", func(in *RecordInput) { in.AmountMinor = -500 }, core.KindInvalidAmount},
		{"foreign currency", func(in *RecordInput) { in.Currency = "EUR" }, core.KindUnsupportedCurrency},
		{"bad timestamp", func(in *RecordInput) { in.OccurredAt = "yesterday" }, core.KindInvalidDate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := valid
			tc.mutate(&in)
			_, err := NormalizeRecord(in, testNow)
			if !core.IsKind(err, tc.kind) {
				t.Errorf("err = %v, want kind %s", err, tc.kind)
			}
		})
	}
}

func TestNormalizeRecordDefaults(t *testing.T) {
	fields, err := NormalizeRecord(RecordInput{
		AgentID:     " agent-atlas ",
		Category:    "compute",
		Vendor:      "Lambda Labs",
		Description: " GPU hours ",
		AmountMinor: 100,
	}, testNow)
	if err != nil {
		t.Fatalf("NormalizeRecord failed: %v", err)
	}
	if fields.AgentID != "agent-atlas" || fields.Description != "GPU hours" {
		t.Errorf("fields not trimmed: %+v", fields)
	}
	if fields.Currency != "USD" {
		t.Errorf("currency = %q, want USD default", fields.Currency)
	}
	if !fields.OccurredAt.Equal(testNow) {
		t.Errorf("occurredAt = %v, want now", fields.OccurredAt)
	}
}

func TestNormalizeRecordOccurredAtForms(t *testing.T) {
	fields, err := NormalizeRecord(RecordInput{
		AgentID: "a", Category: "c", Vendor: "v", Description: "d",
		AmountMinor: 1, OccurredAt: "2026-08-15T10:30:00Z",
	}, testNow)
	if err != nil {
		t.Fatalf("NormalizeRecord failed: %v", err)
	}
	if !fields.OccurredAt.Equal(time.Date(2026, 8, 15, 10, 30, 0, 0, time.UTC)) {
		t.Errorf("occurredAt = %v", fields.OccurredAt)
	}

	fields, err = NormalizeRecord(RecordInput{
		AgentID: "a", Category: "c", Vendor: "v", Description: "d",
		AmountMinor: 1, OccurredAt: "2026-08-15",
	}, testNow)
	if err != nil {
		t.Fatalf("NormalizeRecord failed: %v", err)
	}
	if !fields.OccurredAt.Equal(time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("date-only occurredAt = %v, want midnight UTC", fields.OccurredAt)
	}
}
