// Package router assigns incoming memories to a cognitive layer by scoring
// their content against fixed per-layer pattern bags. Analysis is pure:
// the same content always yields the same decision.
package router

import (
	"sort"
	"strings"
)

// Layer tie-break order, also the iteration order for scoring.
var layerOrder = []string{"episodic", "semantic", "procedural", "meta", "identity", "working"}

// aliases maps accepted layer spellings to canonical names.
var aliases = map[string]string{
	"core": "identity", "self": "identity", "values": "identity",
	"temp": "working", "scratch": "working", "wip": "working",
	"facts": "semantic", "knowledge": "semantic",
	"skills": "procedural", "howto": "procedural",
	"insights": "meta", "reasoning": "meta",
	"events": "episodic", "conversations": "episodic",
}

// Canonicalize resolves a user-supplied layer name (case-folded, alias
// table applied) to its canonical form. ok is false for unknown names.
func Canonicalize(name string) (string, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	if alias, found := aliases[n]; found {
		return alias, true
	}
	for _, l := range layerOrder {
		if l == n {
			return l, true
		}
	}
	return "", false
}

// Decision is the routing verdict for one piece of content.
type Decision struct {
	Layer              string             `json:"layer"`
	Confidence         float64            `json:"confidence"`
	Signals            []string           `json:"signals"`
	EmotionalIntensity float64            `json:"emotional_intensity"`
	TechnicalDensity   float64            `json:"technical_density"`
	Scores             map[string]float64 `json:"scores"`
}

// Analyze scores content against every layer's pattern bag and picks the
// winner. Content with no firing signals defaults to the working layer.
func Analyze(content string) Decision {
	scores := make(map[string]float64, len(layerOrder))
	signalSet := make(map[string]bool)

	for _, layer := range layerOrder {
		var score float64
		for _, p := range layerPatterns[layer] {
			n := len(p.re.FindAllStringIndex(content, -1))
			if n == 0 {
				continue
			}
			// Diminishing returns: repeat firings past the first add 10%
			// of the base weight each, up to five.
			extra := n - 1
			if extra > 5 {
				extra = 5
			}
			score += p.weight * (1 + 0.1*float64(extra))
			signalSet[p.signal] = true
		}
		scores[layer] = score
	}

	emotional := emotionalIntensity(content, signalSet)
	technical := technicalDensity(content, signalSet)

	if emotional > 0.7 {
		scores["identity"] *= 1 + 0.5*emotional
	}
	if technical > 0.6 {
		factor := 1 + 0.3*technical
		if firedHowto(signalSet) {
			scores["procedural"] *= factor
		} else {
			scores["semantic"] *= factor
		}
	}

	top, second := rank(scores)
	decision := Decision{
		EmotionalIntensity: emotional,
		TechnicalDensity:   technical,
		Signals:            sortedSignals(signalSet),
		Scores:             scores,
	}

	if scores[top] == 0 {
		decision.Layer = "working"
		decision.Confidence = 0.5
		return decision
	}

	decision.Layer = top
	decision.Confidence = clamp(0.5+0.5*(scores[top]-scores[second])/scores[top], 0, 0.95)
	return decision
}

// emotionalIntensity computes the [0,1] emotional observable:
// 0.5 baseline, +0.1 per distinct emotional signal, +0.05 per exclamation
// mark (capped at 0.2), +0.03 per ALL-CAPS word (capped at 0.15).
func emotionalIntensity(content string, signals map[string]bool) float64 {
	v := 0.5
	for _, p := range emotionalPatterns {
		if p.re.MatchString(content) {
			v += 0.1
			signals[p.signal] = true
		}
	}

	bangs := len(exclamations.FindAllStringIndex(content, -1))
	v += capAt(0.05*float64(bangs), 0.2)

	caps := len(allCapsRe.FindAllString(content, -1))
	v += capAt(0.03*float64(caps), 0.15)

	return clamp(v, 0, 1)
}

// technicalDensity computes the [0,1] technical observable:
// +0.15 per distinct technical signal, +0.1 for code-like punctuation,
// +0.02 per camelCase/snake_case identifier (capped at 0.2).
func technicalDensity(content string, signals map[string]bool) float64 {
	var v float64
	for _, p := range technicalPatterns {
		if p.re.MatchString(content) {
			v += 0.15
			signals[p.signal] = true
		}
	}

	if codePunctRe.MatchString(content) {
		v += 0.1
	}

	idents := len(camelCaseRe.FindAllString(content, -1)) + len(snakeCaseRe.FindAllString(content, -1))
	v += capAt(0.02*float64(idents), 0.2)

	return clamp(v, 0, 1)
}

func firedHowto(signals map[string]bool) bool {
	for s := range signals {
		if howtoSignals[s] {
			return true
		}
	}
	return false
}

// rank returns the highest and second-highest scoring layers, breaking
// ties by the fixed layer order.
func rank(scores map[string]float64) (top, second string) {
	top, second = layerOrder[0], layerOrder[1]
	if scores[second] > scores[top] {
		top, second = second, top
	}
	for _, layer := range layerOrder[2:] {
		switch {
		case scores[layer] > scores[top]:
			second = top
			top = layer
		case scores[layer] > scores[second]:
			second = layer
		}
	}
	return top, second
}

func sortedSignals(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func capAt(v, max float64) float64 {
	if v > max {
		return max
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
