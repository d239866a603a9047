package zone

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

type kind uint8

const (
	absent kind = iota
	flag
	named
)

// Spec is the requested bucketing zone: an explicit name, a boolean flag, or
// absent. The zero value is absent.
type Spec struct {
	kind kind
	flag bool
	name string
}

// Named returns a Spec for an explicit zone name.
func Named(name string) Spec { return Spec{kind: named, name: name} }

// Flag returns a boolean Spec. true means the ambient default, false means UTC.
func Flag(v bool) Spec { return Spec{kind: flag, flag: v} }

// ParseSpec reads a Spec from its textual form: "" is absent, "true" and
// "false" are flags, anything else is a zone name.
func ParseSpec(s string) Spec {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "":
		return Spec{}
	case "true":
		return Flag(true)
	case "false":
		return Flag(false)
	}
	return Named(s)
}

func (s Spec) IsZero() bool { return s.kind == absent }

// Name returns the explicit zone name, or "" for flags and absent specs.
func (s Spec) Name() string { return s.name }

func (s Spec) String() string {
	switch s.kind {
	case flag:
		return strconv.FormatBool(s.flag)
	case named:
		return s.name
	}
	return ""
}

// UnmarshalYAML accepts both `time_zone: false` and `time_zone: Europe/Paris`.
func (s *Spec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("time_zone must be a scalar, got %v", node.ShortTag())
	}
	if node.ShortTag() == "!!null" {
		*s = Spec{}
		return nil
	}
	if node.ShortTag() == "!!bool" {
		var v bool
		if err := node.Decode(&v); err != nil {
			return err
		}
		*s = Flag(v)
		return nil
	}
	*s = ParseSpec(node.Value)
	return nil
}

// UnknownZoneError is returned when a zone name cannot be resolved.
type UnknownZoneError struct {
	Name string
	Err  error
}

func (e *UnknownZoneError) Error() string {
	return fmt.Sprintf("unknown time zone %q", e.Name)
}

func (e *UnknownZoneError) Unwrap() error { return e.Err }

// Resolver turns Specs into locations. The ambient default is fixed at
// construction; a nil ambient means UTC.
type Resolver struct {
	ambient *time.Location
}

func NewResolver(ambient *time.Location) *Resolver {
	if ambient == nil {
		ambient = time.UTC
	}
	return &Resolver{ambient: ambient}
}

// Ambient returns the default zone used for absent and true specs.
func (r *Resolver) Ambient() *time.Location {
	if r == nil {
		return time.UTC
	}
	return r.ambient
}

// Resolve returns the location for spec.
func (r *Resolver) Resolve(spec Spec) (*time.Location, error) {
	switch spec.kind {
	case flag:
		if !spec.flag {
			return time.UTC, nil
		}
		return r.Ambient(), nil
	case named:
		return Load(spec.name)
	}
	return r.Ambient(), nil
}

var cache sync.Map // name -> *time.Location

// Load resolves an IANA name, a friendly name such as
// "Pacific Time (US & Canada)", or a fixed offset such as "+05:30".
func Load(name string) (*time.Location, error) {
	if v, ok := cache.Load(name); ok {
		return v.(*time.Location), nil
	}

	loc, err := load(name)
	if err != nil {
		return nil, &UnknownZoneError{Name: name, Err: err}
	}
	actual, _ := cache.LoadOrStore(name, loc)
	return actual.(*time.Location), nil
}

func load(name string) (*time.Location, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, fmt.Errorf("empty zone name")
	}
	if strings.EqualFold(trimmed, "utc") || strings.EqualFold(trimmed, "z") {
		return time.UTC, nil
	}
	if loc, ok := parseOffset(trimmed); ok {
		return loc, nil
	}
	if iana, ok := friendlyNames[trimmed]; ok {
		trimmed = iana
	}
	// "Local" would leak the host zone into bucket keys.
	if trimmed == "Local" {
		return nil, fmt.Errorf("the host zone cannot be requested by name")
	}
	return time.LoadLocation(trimmed)
}

// parseOffset accepts +HH:MM, -HH:MM, +HHMM and +HH.
func parseOffset(s string) (*time.Location, bool) {
	if len(s) < 3 || (s[0] != '+' && s[0] != '-') {
		return nil, false
	}
	body := strings.ReplaceAll(s[1:], ":", "")
	if len(body) != 2 && len(body) != 4 {
		return nil, false
	}
	hours, err := strconv.Atoi(body[:2])
	if err != nil || hours > 14 {
		return nil, false
	}
	minutes := 0
	if len(body) == 4 {
		if minutes, err = strconv.Atoi(body[2:]); err != nil || minutes > 59 {
			return nil, false
		}
	}
	offset := hours*3600 + minutes*60
	if s[0] == '-' {
		offset = -offset
	}
	if offset == 0 {
		return time.UTC, true
	}
	return time.FixedZone(s, offset), true
}
