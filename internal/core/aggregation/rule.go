package aggregation

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aevon-lab/timebucket/internal/core/period"
	"github.com/aevon-lab/timebucket/internal/core/zone"
)

// ErrRuleNotFound is returned by RuleRepository.Get for unknown names.
var ErrRuleNotFound = errors.New("rule not found")

// Rule is a named, preconfigured grouping over one series.
// Rules are loaded at startup from YAML files and fingerprinted.
type Rule struct {
	Name        string
	Series      string
	Operator    string // count, sum, min, max
	Field       string // data field to reduce; empty means the record value
	Options     Options
	Fingerprint string // SHA-256 of the raw YAML file; computed at load time
}

// rawRule is the on-disk YAML shape.
type rawRule struct {
	Name      string    `yaml:"name"`
	Series    string    `yaml:"series"`
	Operator  string    `yaml:"operator"`
	Field     string    `yaml:"field"`
	Period    string    `yaml:"period"`
	TimeZone  zone.Spec `yaml:"time_zone"`
	WeekStart string    `yaml:"week_start"`
	DayStart  float64   `yaml:"day_start"`
	DateOnly  bool      `yaml:"date_only"`
	N         int       `yaml:"n"`
	Format    string    `yaml:"format"`
}

// RuleRepository defines the interface for loading rules.
type RuleRepository interface {
	// Get returns the rule with the given name, or ErrRuleNotFound.
	Get(ctx context.Context, name string) (*Rule, error)

	// List returns all loaded rules sorted by name, optionally filtered by series.
	List(ctx context.Context, series string) ([]Rule, error)
}

// FileSystemRuleRepository loads rules from *.yaml files in a directory.
// Each file contains exactly one rule at the top level. Rules are loaded once
// at startup and cached in memory.
type FileSystemRuleRepository struct {
	dir   string
	env   Env
	rules map[string]Rule // keyed by Name
}

// NewFileSystemRuleRepository creates a new repository and eagerly loads all
// rules from dir. Each rule's options are compiled against env so that bad
// zones or inconsistent options fail at startup. Returns an error if any rule
// file is malformed or invalid.
func NewFileSystemRuleRepository(dir string, env Env) (*FileSystemRuleRepository, error) {
	repo := &FileSystemRuleRepository{
		dir:   dir,
		env:   env,
		rules: make(map[string]Rule),
	}
	if err := repo.load(); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *FileSystemRuleRepository) load() error {
	info, err := os.Stat(r.dir)
	if os.IsNotExist(err) {
		return nil // no rules directory: zero rules configured
	}
	if err != nil {
		return fmt.Errorf("rule dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("rule path %q is not a directory", r.dir)
	}

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return fmt.Errorf("reading rule dir: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() || (!strings.HasSuffix(e.Name(), ".yaml") && !strings.HasSuffix(e.Name(), ".yml")) {
			continue
		}

		path := filepath.Join(r.dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading rule file %s: %w", path, err)
		}

		var raw rawRule
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("parsing rule file %s: %w", path, err)
		}
		if raw.Name == "" {
			continue // skip empty / comment-only files
		}

		rule, err := r.compile(raw)
		if err != nil {
			return fmt.Errorf("rule %q: %w", raw.Name, err)
		}
		rule.Fingerprint = fmt.Sprintf("%x", sha256.Sum256(data))

		if _, exists := r.rules[rule.Name]; exists {
			return fmt.Errorf("rule %q: duplicate rule name (check multiple YAML files)", rule.Name)
		}
		r.rules[rule.Name] = rule
	}
	return nil
}

func (r *FileSystemRuleRepository) compile(raw rawRule) (Rule, error) {
	if raw.Series == "" {
		return Rule{}, fmt.Errorf("series must not be empty")
	}
	if raw.Operator == "" {
		raw.Operator = OpCount
	}
	if !ValidOperator(raw.Operator) {
		return Rule{}, fmt.Errorf("unsupported operator %q", raw.Operator)
	}

	unit, err := period.ParseUnit(raw.Period)
	if err != nil {
		return Rule{}, err
	}
	opts := Options{
		Period:   unit,
		TimeZone: raw.TimeZone,
		DayStart: raw.DayStart,
		DateOnly: raw.DateOnly,
		N:        raw.N,
		Format:   raw.Format,
	}
	if raw.WeekStart != "" {
		ws, err := period.ParseWeekday(raw.WeekStart)
		if err != nil {
			return Rule{}, err
		}
		opts.WeekStart = &ws
	}
	if err := opts.Validate(r.env); err != nil {
		return Rule{}, err
	}

	return Rule{
		Name:     raw.Name,
		Series:   raw.Series,
		Operator: raw.Operator,
		Field:    raw.Field,
		Options:  opts,
	}, nil
}

// Get returns the rule with the given name, or ErrRuleNotFound.
func (r *FileSystemRuleRepository) Get(_ context.Context, name string) (*Rule, error) {
	rule, ok := r.rules[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrRuleNotFound, name)
	}
	return &rule, nil
}

// List returns all loaded rules sorted by name, optionally filtered by series.
func (r *FileSystemRuleRepository) List(_ context.Context, series string) ([]Rule, error) {
	out := make([]Rule, 0, len(r.rules))
	for _, rule := range r.rules {
		if series != "" && rule.Series != series {
			continue
		}
		out = append(out, rule)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// WithRange returns the rule's options bounded by start and last.
func (r Rule) WithRange(start, last *time.Time) Options {
	opts := r.Options
	opts.Start, opts.Last = start, last
	return opts
}
