// Package patterns loads, validates, and hot-reloads the YAML gate catalogs
// (spec §4.1), grounded on the mtime-gated reload pattern used by
// internal/gates.LoadRegimeThresholds in the teacher repo, generalized to
// three independently-cached catalogs instead of one.
package patterns

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/m37335/threegate/internal/errkind"
)

var errNotFound = errkind.BadInput
var errBadInput = errkind.BadInput

// Condition is one declarative check inside a pattern or variant.
type Condition struct {
	Name            string      `yaml:"name"`
	Indicator       string      `yaml:"indicator"`
	Operator        string      `yaml:"operator"`
	Reference       string      `yaml:"reference,omitempty"`
	Value           interface{} `yaml:"value,omitempty"`
	Timeframe       string      `yaml:"timeframe,omitempty"`
	Multiplier      *float64    `yaml:"multiplier,omitempty"`
	Tolerance       *float64    `yaml:"tolerance,omitempty"`
	Periods         *int        `yaml:"periods,omitempty"`
	LookbackPeriods *int        `yaml:"lookback_periods,omitempty"`
	Weight          *float64    `yaml:"weight,omitempty"`
}

// Variant is one named sub-pattern (e.g. "bullish_trend") with its own
// condition list, confidence threshold, and required-condition gate.
type Variant struct {
	Name                string      `yaml:"name"`
	Description         string      `yaml:"description"`
	Conditions          []Condition `yaml:"conditions"`
	RequiredConditions  []string    `yaml:"required_conditions,omitempty"`
	MinConfidence       *float64    `yaml:"min_confidence,omitempty"`
	AllowedEnvironments []string    `yaml:"allowed_environments,omitempty"`
}

// Pattern is one top-level catalog entry. It either carries a direct
// Conditions list, one or more named Variants, or (Gate 2 only)
// EnvironmentConditions keyed by Gate 1 environment name.
type Pattern struct {
	Name                  string             `yaml:"name"`
	Description           string             `yaml:"description"`
	Conditions            []Condition        `yaml:"conditions,omitempty"`
	RequiredConditions    []string           `yaml:"required_conditions,omitempty"`
	MinConfidence         *float64           `yaml:"min_confidence,omitempty"`
	AllowedEnvironments   []string           `yaml:"allowed_environments,omitempty"`
	Variants              map[string]Variant `yaml:"variants,omitempty"`
	EnvironmentConditions map[string]Variant `yaml:"environment_conditions,omitempty"`

	// VariantOrder and EnvironmentOrder preserve the YAML declaration order
	// of Variants/EnvironmentConditions (three_gate_engine.py:866 iterates
	// its parsed dict, which keeps Python's insertion-order guarantee; a Go
	// map does not, so gate evaluation's "first valid wins" tie-break reads
	// these slices instead of ranging the map directly).
	VariantOrder     []string `yaml:"-"`
	EnvironmentOrder []string `yaml:"-"`
}

// UnmarshalYAML decodes a Pattern normally, then separately walks the raw
// mapping node to recover declaration order for Variants/EnvironmentConditions.
func (p *Pattern) UnmarshalYAML(value *yaml.Node) error {
	type patternAlias Pattern
	var aux patternAlias
	if err := value.Decode(&aux); err != nil {
		return err
	}
	*p = Pattern(aux)
	p.VariantOrder = mappingKeyOrder(value, "variants")
	p.EnvironmentOrder = mappingKeyOrder(value, "environment_conditions")
	return nil
}

// Catalog is the parsed contents of one gate{N}_patterns.yaml file.
type Catalog struct {
	Patterns           map[string]Pattern  `yaml:"patterns"`
	EnvironmentMapping map[string][]string `yaml:"environment_mapping,omitempty"`

	// PatternOrder preserves the YAML declaration order of Patterns, for
	// the same reason as Pattern.VariantOrder above.
	PatternOrder []string `yaml:"-"`
}

// UnmarshalYAML decodes a Catalog normally, then records Patterns'
// declaration order from the raw mapping node.
func (c *Catalog) UnmarshalYAML(value *yaml.Node) error {
	type catalogAlias Catalog
	var aux catalogAlias
	if err := value.Decode(&aux); err != nil {
		return err
	}
	*c = Catalog(aux)
	c.PatternOrder = mappingKeyOrder(value, "patterns")
	return nil
}

// mappingKeyOrder returns the declaration order of keys under value's child
// mapping named childKey, or nil if value isn't a mapping or childKey is
// absent/not itself a mapping.
func mappingKeyOrder(value *yaml.Node, childKey string) []string {
	if value.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(value.Content); i += 2 {
		if value.Content[i].Value != childKey {
			continue
		}
		child := value.Content[i+1]
		if child.Kind != yaml.MappingNode {
			return nil
		}
		order := make([]string, 0, len(child.Content)/2)
		for j := 0; j+1 < len(child.Content); j += 2 {
			order = append(order, child.Content[j].Value)
		}
		return order
	}
	return nil
}

// ValidOperators is the authoritative operator allow-list (spec §4.1),
// a superset of the original Python validator's list (which omitted the
// was_consistently_above/below pair).
var ValidOperators = map[string]bool{
	">": true, "<": true, ">=": true, "<=": true, "==": true, "!=": true,
	"between": true, "not_between": true,
	"all_above": true, "all_below": true, "any_above": true, "any_below": true,
	"near": true, "engulfs": true, "breaks": true, "oscillates_around": true,
	"was_consistently_above": true, "was_consistently_below": true,
}

// Loader loads gate catalogs from a directory, caching each by the source
// file's modification time.
type Loader struct {
	dir string

	mu       sync.Mutex
	cache    map[int]*Catalog
	mtimes   map[int]int64
	stats    CacheStats
}

// CacheStats mirrors the hits/misses/loads counters the original pattern
// loader tracked, exposed for the statistics surface (spec §4.4 analog).
type CacheStats struct {
	Hits   int
	Misses int
	Loads  int
}

// NewLoader returns a Loader rooted at dir (e.g. "config").
func NewLoader(dir string) *Loader {
	return &Loader{
		dir:    dir,
		cache:  map[int]*Catalog{},
		mtimes: map[int]int64{},
	}
}

func (l *Loader) path(gate int) string {
	return filepath.Join(l.dir, fmt.Sprintf("gate%d_patterns.yaml", gate))
}

// LoadGatePatterns returns the catalog for the given gate (1, 2, or 3),
// reloading from disk only if the file's mtime has advanced since the last
// load (spec §4.1). On parse/validation failure the previous cached value,
// if any, is preserved and the error is returned to the caller.
func (l *Loader) LoadGatePatterns(gate int) (*Catalog, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	info, statErr := os.Stat(l.path(gate))
	if statErr != nil {
		if cached, ok := l.cache[gate]; ok {
			return cached, nil
		}
		return nil, fmt.Errorf("%w: gate %d pattern file: %v", errNotFound, gate, statErr)
	}

	mtime := info.ModTime().UnixNano()
	if cached, ok := l.cache[gate]; ok && l.mtimes[gate] >= mtime {
		l.stats.Hits++
		return cached, nil
	}

	l.stats.Misses++
	catalog, err := l.loadFromFile(gate)
	if err != nil {
		// Record the failed attempt's mtime so a broken file is not
		// re-parsed on every subsequent call; the last good catalog (if
		// any) remains the cached value until the file changes again.
		l.mtimes[gate] = mtime
		if cached, ok := l.cache[gate]; ok {
			return cached, fmt.Errorf("%w (serving stale catalog)", err)
		}
		return nil, err
	}
	l.cache[gate] = catalog
	l.mtimes[gate] = mtime
	l.stats.Loads++
	return catalog, nil
}

func (l *Loader) loadFromFile(gate int) (*Catalog, error) {
	data, err := os.ReadFile(l.path(gate))
	if err != nil {
		return nil, fmt.Errorf("%w: reading gate %d pattern file: %v", errBadInput, gate, err)
	}

	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("%w: parsing gate %d YAML: %v", errBadInput, gate, err)
	}

	if err := validate(gate, &catalog); err != nil {
		return nil, err
	}
	return &catalog, nil
}

// Reload forces a reload of the given gate (or every gate when gate==0),
// discarding the cache regardless of mtime.
func (l *Loader) Reload(gate int) error {
	gates := []int{1, 2, 3}
	if gate != 0 {
		gates = []int{gate}
	}

	l.mu.Lock()
	for _, g := range gates {
		delete(l.cache, g)
		delete(l.mtimes, g)
	}
	l.mu.Unlock()

	for _, g := range gates {
		if _, err := l.LoadGatePatterns(g); err != nil {
			return err
		}
	}
	return nil
}

// Stats returns a snapshot of the cache hit/miss/load counters.
func (l *Loader) Stats() CacheStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}

func validate(gate int, catalog *Catalog) error {
	if catalog.Patterns == nil {
		return fmt.Errorf("%w: gate %d: missing 'patterns' key", errBadInput, gate)
	}
	for name, p := range catalog.Patterns {
		if p.Name == "" || p.Description == "" {
			return fmt.Errorf("%w: gate %d pattern %q: name and description are required", errBadInput, gate, name)
		}
		if err := validateConditions(gate, name, p.Conditions); err != nil {
			return err
		}
		for vname, v := range p.Variants {
			if err := validateConditions(gate, name+"."+vname, v.Conditions); err != nil {
				return err
			}
		}
		for ename, v := range p.EnvironmentConditions {
			if err := validateConditions(gate, name+"."+ename, v.Conditions); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateConditions(gate int, patternName string, conditions []Condition) error {
	for i, c := range conditions {
		if c.Name == "" || c.Indicator == "" || c.Operator == "" {
			return fmt.Errorf("%w: gate %d pattern %q condition[%d]: name, indicator, and operator are required", errBadInput, gate, patternName, i)
		}
		if !ValidOperators[c.Operator] {
			return fmt.Errorf("%w: gate %d pattern %q condition[%d]: invalid operator %q", errBadInput, gate, patternName, i, c.Operator)
		}
	}
	return nil
}
