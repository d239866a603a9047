package aggregation_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	coreagg "github.com/aevon-lab/timebucket/internal/core/aggregation"
	"github.com/aevon-lab/timebucket/internal/core/period"
	"github.com/aevon-lab/timebucket/internal/core/zone"
)

// writeRule is a test helper that writes a single rule YAML file into dir.
func writeRule(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestFileSystemRuleRepository_LoadAndList(t *testing.T) {
	dir := t.TempDir()
	writeRule(t, dir, "daily_signups.yaml", `
name: "daily_signups"
series: "signups"
operator: "count"
period: "day"
`)
	writeRule(t, dir, "weekly_revenue.yaml", `
name: "weekly_revenue"
series: "orders"
operator: "sum"
field: "amount"
period: "week"
week_start: "monday"
time_zone: "Pacific Time (US & Canada)"
format: "%b %e"
`)

	repo, err := coreagg.NewFileSystemRuleRepository(dir, coreagg.Env{})
	if err != nil {
		t.Fatalf("NewFileSystemRuleRepository: %v", err)
	}

	all, err := repo.List(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("List all: got %d rules, want 2", len(all))
	}
	if all[0].Name != "daily_signups" || all[1].Name != "weekly_revenue" {
		t.Errorf("List order = [%s %s], want sorted by name", all[0].Name, all[1].Name)
	}

	filtered, err := repo.List(context.Background(), "orders")
	if err != nil {
		t.Fatal(err)
	}
	if len(filtered) != 1 {
		t.Fatalf("List orders: got %d, want 1", len(filtered))
	}
	if filtered[0].Options.Format != "%b %e" {
		t.Errorf("Format = %q, want %q", filtered[0].Options.Format, "%b %e")
	}

	noMatch, err := repo.List(context.Background(), "invoices")
	if err != nil {
		t.Fatal(err)
	}
	if len(noMatch) != 0 {
		t.Errorf("List invoices: got %d, want 0", len(noMatch))
	}
}

func TestFileSystemRuleRepository_Get(t *testing.T) {
	dir := t.TempDir()
	writeRule(t, dir, "my_rule.yaml", `
name: "my_rule"
series: "orders"
operator: "max"
field: "amount"
period: "month"
day_start: 6
time_zone: false
date_only: true
`)

	repo, err := coreagg.NewFileSystemRuleRepository(dir, coreagg.Env{})
	if err != nil {
		t.Fatal(err)
	}

	rule, err := repo.Get(context.Background(), "my_rule")
	if err != nil {
		t.Fatal(err)
	}
	if rule.Series != "orders" {
		t.Errorf("Series = %q", rule.Series)
	}
	if rule.Operator != "max" {
		t.Errorf("Operator = %q", rule.Operator)
	}
	if rule.Field != "amount" {
		t.Errorf("Field = %q", rule.Field)
	}
	if rule.Options.Period != period.Month {
		t.Errorf("Period = %s, want month", rule.Options.Period)
	}
	if rule.Options.DayStart != 6 {
		t.Errorf("DayStart = %v, want 6", rule.Options.DayStart)
	}
	if rule.Options.TimeZone != zone.Flag(false) {
		t.Errorf("TimeZone = %q, want false", rule.Options.TimeZone)
	}
	if !rule.Options.DateOnly {
		t.Error("DateOnly = false, want true")
	}
	if rule.Fingerprint == "" {
		t.Error("Fingerprint is empty")
	}

	_, err = repo.Get(context.Background(), "nonexistent")
	if !errors.Is(err, coreagg.ErrRuleNotFound) {
		t.Errorf("Get nonexistent: err = %v, want ErrRuleNotFound", err)
	}
}

func TestFileSystemRuleRepository_DefaultsToCount(t *testing.T) {
	dir := t.TempDir()
	writeRule(t, dir, "visits.yaml", "name: visits\nseries: visits\nperiod: hour\n")

	repo, err := coreagg.NewFileSystemRuleRepository(dir, coreagg.Env{})
	if err != nil {
		t.Fatal(err)
	}
	rule, err := repo.Get(context.Background(), "visits")
	if err != nil {
		t.Fatal(err)
	}
	if rule.Operator != coreagg.OpCount {
		t.Errorf("Operator = %q, want count", rule.Operator)
	}
}

func TestFileSystemRuleRepository_Fingerprint_Changes(t *testing.T) {
	dir := t.TempDir()
	content := "name: \"fp_rule\"\nseries: \"x\"\noperator: \"count\"\nperiod: \"day\"\n"
	writeRule(t, dir, "fp_rule.yaml", content)

	repo1, err := coreagg.NewFileSystemRuleRepository(dir, coreagg.Env{})
	if err != nil {
		t.Fatal(err)
	}
	r1, _ := repo1.Get(context.Background(), "fp_rule")

	writeRule(t, dir, "fp_rule.yaml", content+"# comment\n")

	repo2, err := coreagg.NewFileSystemRuleRepository(dir, coreagg.Env{})
	if err != nil {
		t.Fatal(err)
	}
	r2, _ := repo2.Get(context.Background(), "fp_rule")

	if r1.Fingerprint == r2.Fingerprint {
		t.Error("Fingerprint did not change after file modification")
	}
}

func TestFileSystemRuleRepository_InvalidRules(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "unsupported operator", content: "name: r\nseries: x\noperator: average\nperiod: day\n"},
		{name: "missing series", content: "name: r\noperator: count\nperiod: day\n"},
		{name: "missing period", content: "name: r\nseries: x\n"},
		{name: "unknown period", content: "name: r\nseries: x\nperiod: fortnight\n"},
		{name: "unknown week start", content: "name: r\nseries: x\nperiod: week\nweek_start: funday\n"},
		{name: "date only with hour", content: "name: r\nseries: x\nperiod: hour\ndate_only: true\n"},
		{name: "day start with minute", content: "name: r\nseries: x\nperiod: minute\nday_start: 2\n"},
		{name: "unknown zone", content: "name: r\nseries: x\nperiod: day\ntime_zone: Mars/Olympus\n"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			writeRule(t, dir, "bad.yaml", tc.content)
			if _, err := coreagg.NewFileSystemRuleRepository(dir, coreagg.Env{}); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestFileSystemRuleRepository_MissingDir(t *testing.T) {
	// Non-existent directory is valid: zero rules.
	repo, err := coreagg.NewFileSystemRuleRepository(filepath.Join(t.TempDir(), "missing"), coreagg.Env{})
	if err != nil {
		t.Fatalf("unexpected error for missing dir: %v", err)
	}
	rules, _ := repo.List(context.Background(), "")
	if len(rules) != 0 {
		t.Errorf("expected 0 rules from missing dir, got %d", len(rules))
	}
}

func TestFileSystemRuleRepository_SkipsEmptyFiles(t *testing.T) {
	dir := t.TempDir()
	writeRule(t, dir, "empty.yaml", "")
	writeRule(t, dir, "comment_only.yaml", "# just a comment\n")
	writeRule(t, dir, "notes.txt", "name: ignored\n")
	writeRule(t, dir, "real.yml", "name: real\nseries: x\nperiod: day\n")

	repo, err := coreagg.NewFileSystemRuleRepository(dir, coreagg.Env{})
	if err != nil {
		t.Fatal(err)
	}
	rules, _ := repo.List(context.Background(), "")
	if len(rules) != 1 {
		t.Errorf("expected 1 rule (skipping empty/comment files), got %d", len(rules))
	}
}

func TestFileSystemRuleRepository_DuplicateRuleName(t *testing.T) {
	dir := t.TempDir()
	writeRule(t, dir, "first.yaml", "name: dup\nseries: x\nperiod: day\n")
	writeRule(t, dir, "second.yaml", "name: dup\nseries: y\noperator: sum\nperiod: week\n")

	if _, err := coreagg.NewFileSystemRuleRepository(dir, coreagg.Env{}); err == nil {
		t.Fatal("expected error for duplicate rule name, got nil")
	}
}

func TestRule_WithRange(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rule := coreagg.Rule{Options: coreagg.Options{Period: period.Day}}

	opts := rule.WithRange(&start, nil)
	if opts.Start == nil || !opts.Start.Equal(start) {
		t.Errorf("Start = %v, want %v", opts.Start, start)
	}
	if rule.Options.Start != nil {
		t.Error("WithRange mutated the rule")
	}
}
