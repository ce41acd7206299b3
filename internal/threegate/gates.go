package threegate

import (
	"sort"
	"time"

	"github.com/m37335/threegate/internal/condition"
	"github.com/m37335/threegate/internal/domain"
	"github.com/m37335/threegate/internal/patterns"
)

// evaluatePatternConditions scores a weighted condition list (spec §4.3.1):
// confidence = sum(score_c * weight_c) / sum(weight_c), gated by
// required_conditions (every named condition must individually score >=0.5)
// and by minConfidence (falls back to defaultMinConfidence when nil).
func evaluatePatternConditions(snap condition.Snapshot, conditions []patterns.Condition, required []string, minConfidence *float64) (confidence float64, passed, failed []string, ok bool) {
	if len(conditions) == 0 {
		return 0, nil, nil, false
	}

	passedSet := map[string]bool{}
	var weightSum, scoreSum float64
	for _, c := range conditions {
		score := condition.Evaluate(snap, c)
		weight := 1.0
		if c.Weight != nil {
			weight = *c.Weight
		}
		weightSum += weight
		scoreSum += score * weight
		if score >= 0.5 {
			passedSet[c.Name] = true
			passed = append(passed, c.Name)
		} else {
			failed = append(failed, c.Name)
		}
	}

	if weightSum == 0 {
		return 0, passed, failed, false
	}
	confidence = scoreSum / weightSum

	for _, req := range required {
		if !passedSet[req] {
			return confidence, passed, failed, false
		}
	}

	threshold := defaultMinConfidence
	if minConfidence != nil {
		threshold = *minConfidence
	}
	return confidence, passed, failed, confidence >= threshold
}

func sortedKeys(m map[string]patterns.Pattern) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedVariantKeys(m map[string]patterns.Variant) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// patternOrder returns catalog.Patterns in their YAML declaration order
// (three_gate_engine.py:866's dict-insertion-order iteration), falling back
// to alphabetical order if the recorded order is missing or stale relative
// to the map (e.g. a catalog built by hand rather than parsed from YAML).
func patternOrder(catalog *patterns.Catalog) []string {
	if len(catalog.PatternOrder) == len(catalog.Patterns) {
		return catalog.PatternOrder
	}
	return sortedKeys(catalog.Patterns)
}

// variantOrder returns p.Variants in YAML declaration order, with the same
// alphabetical fallback as patternOrder.
func variantOrder(p patterns.Pattern) []string {
	if len(p.VariantOrder) == len(p.Variants) {
		return p.VariantOrder
	}
	return sortedVariantKeys(p.Variants)
}

// evaluateGate1 walks the environment-recognition catalog in YAML
// declaration order and returns the first pattern/variant whose conditions
// clear required_conditions and min_confidence (spec §4.3.2). The returned
// GateResult.Pattern is "{pattern}_{variant}" when the match came from a
// variant, else the bare pattern name. On total failure, returns the
// no_valid_pattern sentinel with the last-evaluated pattern's diagnostics
// carried in AdditionalData (three_gate_engine.py:928).
func (e *Engine) evaluateGate1(snap condition.Snapshot, catalog *patterns.Catalog) domain.GateResult {
	var lastName string
	var lastConfidence float64
	var lastPassed, lastFailed []string

	for _, name := range patternOrder(catalog) {
		p := catalog.Patterns[name]

		if len(p.Variants) > 0 {
			for _, vname := range variantOrder(p) {
				v := p.Variants[vname]
				confidence, passed, failed, ok := evaluatePatternConditions(snap, v.Conditions, v.RequiredConditions, firstNonNil(v.MinConfidence, p.MinConfidence))
				lastName, lastConfidence, lastPassed, lastFailed = name+"_"+vname, confidence, passed, failed
				if ok {
					result := newGateResult(name + "_" + vname)
					result.Valid = true
					result.Confidence = confidence
					result.PassedConditions = passed
					result.FailedConditions = failed
					return result
				}
			}
			continue
		}

		confidence, passed, failed, ok := evaluatePatternConditions(snap, p.Conditions, p.RequiredConditions, p.MinConfidence)
		lastName, lastConfidence, lastPassed, lastFailed = name, confidence, passed, failed
		if ok {
			result := newGateResult(name)
			result.Valid = true
			result.Confidence = confidence
			result.PassedConditions = passed
			result.FailedConditions = failed
			return result
		}
	}
	return domain.GateResult{
		Valid:            false,
		Pattern:          "no_valid_pattern",
		PassedConditions: []string{},
		FailedConditions: []string{},
		AdditionalData: map[string]interface{}{
			"last_evaluated":         lastName,
			"last_confidence":        lastConfidence,
			"last_passed_conditions": lastPassed,
			"last_failed_conditions": lastFailed,
		},
		Timestamp: time.Now().UTC(),
	}
}

// scenarioEval is one scenario's evaluated outcome, recorded for the
// no_valid_scenario diagnostic (three_gate_engine.py:973).
type scenarioEval struct {
	Name       string   `json:"name"`
	Confidence float64  `json:"confidence"`
	Passed     []string `json:"passed_conditions"`
	Failed     []string `json:"failed_conditions"`
}

// evaluateGate2 selects a trade scenario consistent with the Gate 1
// environment (spec §4.3.3). Scenario candidates come from the catalog's
// own environment_mapping when it defines one for the normalized
// environment; only when the catalog carries no mapping section at all does
// the hard-coded defaultEnvironmentMapping apply. On total failure, returns
// the no_valid_scenario sentinel with every evaluated scenario's diagnostics
// carried in AdditionalData.
func (e *Engine) evaluateGate2(snap condition.Snapshot, catalog *patterns.Catalog, gate1 domain.GateResult) domain.GateResult {
	normalized := normalizeEnvironment(gate1.Pattern)

	scenarios, ok := catalog.EnvironmentMapping[normalized]
	if !ok {
		if len(catalog.EnvironmentMapping) == 0 {
			scenarios = defaultEnvironmentMapping[normalized]
		}
	}

	envKey := ""
	for key, full := range gate2EnvironmentKeys {
		if full == gate1.Pattern {
			envKey = key
			break
		}
	}

	var evaluated []scenarioEval

	for _, scenarioName := range scenarios {
		p, found := catalog.Patterns[scenarioName]
		if !found {
			continue
		}

		if envKey != "" {
			if v, has := p.EnvironmentConditions[envKey]; has {
				confidence, passed, failed, ok := evaluatePatternConditions(snap, v.Conditions, v.RequiredConditions, firstNonNil(v.MinConfidence, p.MinConfidence))
				evaluated = append(evaluated, scenarioEval{scenarioName, confidence, passed, failed})
				if ok {
					result := newGateResult(scenarioName)
					result.Valid = true
					result.Confidence = confidence
					result.PassedConditions = passed
					result.FailedConditions = failed
					return result
				}
				continue
			}
		}

		if len(p.Variants) > 0 {
			for _, vname := range variantOrder(p) {
				v := p.Variants[vname]
				confidence, passed, failed, ok := evaluatePatternConditions(snap, v.Conditions, v.RequiredConditions, firstNonNil(v.MinConfidence, p.MinConfidence))
				evaluated = append(evaluated, scenarioEval{scenarioName + "_" + vname, confidence, passed, failed})
				if ok {
					result := newGateResult(scenarioName + "_" + vname)
					result.Valid = true
					result.Confidence = confidence
					result.PassedConditions = passed
					result.FailedConditions = failed
					return result
				}
			}
			continue
		}

		confidence, passed, failed, ok := evaluatePatternConditions(snap, p.Conditions, p.RequiredConditions, p.MinConfidence)
		evaluated = append(evaluated, scenarioEval{scenarioName, confidence, passed, failed})
		if ok {
			result := newGateResult(scenarioName)
			result.Valid = true
			result.Confidence = confidence
			result.PassedConditions = passed
			result.FailedConditions = failed
			return result
		}
	}
	return domain.GateResult{
		Valid:            false,
		Pattern:          "no_valid_scenario",
		PassedConditions: []string{},
		FailedConditions: []string{},
		AdditionalData: map[string]interface{}{
			"evaluated_scenarios":       evaluated,
			"total_scenarios_evaluated": len(evaluated),
		},
		Timestamp: time.Now().UTC(),
	}
}

// evaluateGate3 fires the final trigger, restricted to patterns whose
// allowed_environments include the Gate 1 environment (spec §4.3.4).
func (e *Engine) evaluateGate3(snap condition.Snapshot, catalog *patterns.Catalog, gate1 domain.GateResult) domain.GateResult {
	for _, name := range patternOrder(catalog) {
		p := catalog.Patterns[name]
		if !allowsEnvironment(p.AllowedEnvironments, gate1.Pattern) {
			continue
		}

		if len(p.Variants) > 0 {
			for _, vname := range variantOrder(p) {
				v := p.Variants[vname]
				if len(v.AllowedEnvironments) > 0 && !allowsEnvironment(v.AllowedEnvironments, gate1.Pattern) {
					continue
				}
				confidence, passed, failed, ok := evaluatePatternConditions(snap, v.Conditions, v.RequiredConditions, firstNonNil(v.MinConfidence, p.MinConfidence))
				if ok {
					result := newGateResult(name + "_" + vname)
					result.Valid = true
					result.Confidence = confidence
					result.PassedConditions = passed
					result.FailedConditions = failed
					return result
				}
			}
			continue
		}

		confidence, passed, failed, ok := evaluatePatternConditions(snap, p.Conditions, p.RequiredConditions, p.MinConfidence)
		if ok {
			result := newGateResult(name)
			result.Valid = true
			result.Confidence = confidence
			result.PassedConditions = passed
			result.FailedConditions = failed
			return result
		}
	}
	return domain.GateResult{
		Valid:            false,
		Pattern:          "no_valid_trigger",
		PassedConditions: []string{},
		FailedConditions: []string{},
		AdditionalData:   map[string]interface{}{},
		Timestamp:        time.Now().UTC(),
	}
}

func allowsEnvironment(allowed []string, env string) bool {
	if len(allowed) == 0 {
		return true
	}
	normalized := normalizeEnvironment(env)
	for _, a := range allowed {
		if a == env || a == normalized {
			return true
		}
	}
	return false
}

func firstNonNil(a, b *float64) *float64 {
	if a != nil {
		return a
	}
	return b
}
