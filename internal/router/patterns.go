package router

import "regexp"

// pattern is one weighted linguistic signal. Weight is the base score a
// firing contributes; Signal is the name surfaced in the decision.
type pattern struct {
	re     *regexp.Regexp
	weight float64
	signal string
}

func pat(expr string, weight float64, signal string) pattern {
	return pattern{re: regexp.MustCompile(`(?i)` + expr), weight: weight, signal: signal}
}

// layerPatterns is the fixed catalog of per-layer pattern bags. Loaded once
// at package init and shared read-only; the router never mutates it.
var layerPatterns = map[string][]pattern{
	"episodic": {
		pat(`\b(today|yesterday|tonight|this (morning|afternoon|evening)|last (night|week|month)|earlier|just now)\b`, 0.8, "temporal_marker"),
		pat(`\b(we|i) (had|met|talked|discussed|attended|finished)\b`, 0.7, "event_recount"),
		pat(`\b(session|meeting|conversation|call|standup)\b`, 0.6, "conversation_marker"),
		pat(`\b(happened|occurred|took place)\b`, 0.6, "past_event"),
		pat(`\b\d{4}-\d{2}-\d{2}\b`, 0.5, "date_stamp"),
		pat(`\bremember when\b`, 0.7, "recollection"),
	},
	"semantic": {
		pat(`\b(means|defined as|refers to|consists of|stands for)\b`, 0.9, "definition_marker"),
		pat(`\b(is|are|was|were) (a|an|the)\b`, 0.6, "definition"),
		pat(`\b(fact|facts|concept|knowledge|definition)\b`, 0.6, "fact_marker"),
		pat(`\b(always|never|every|all of)\b`, 0.5, "generalization"),
		pat(`\b(located in|part of|type of|kind of|belongs to)\b`, 0.7, "taxonomy_marker"),
	},
	"procedural": {
		pat(`\bhow to\b`, 0.9, "howto_marker"),
		pat(`\bstep \d+\b|\b(step|steps)\b`, 0.8, "step_marker"),
		pat(`\b(first|then|next|finally|afterwards)\b`, 0.6, "sequence_marker"),
		pat(`\b(install|configure|run|running|deploy|deployment|build|compile|migrate|migrations)\b`, 0.7, "action_verb"),
		pat(`\b(command|script|procedure|process|workflow|recipe)\b`, 0.6, "process_marker"),
		pat(`\b(requires?|must|before (starting|running))\b`, 0.5, "prerequisite"),
	},
	"meta": {
		pat(`\b(realized?|insight|reflection|reflecting|noticing)\b`, 0.9, "insight_marker"),
		pat(`\b(pattern|theme|trend|tendency)\b`, 0.7, "pattern_marker"),
		pat(`\b(learned|lesson|takeaway|retrospective)\b`, 0.8, "lesson_marker"),
		pat(`\b(thinking about (my|our)|about how (i|we))\b`, 0.7, "metacognition"),
		pat(`\b(reasoning|conclusion|hypothesis)\b`, 0.6, "reasoning_marker"),
	},
	"identity": {
		pat(`\bmy (purpose|role|goal|mission|values?|identity|personality)\b`, 0.9, "identity_marker"),
		pat(`\bwho i am\b`, 0.9, "self_definition"),
		pat(`\b(i am|i'm)\b`, 0.8, "self_reference"),
		pat(`\bi (value|believe|care about|stand for)\b`, 0.8, "value_marker"),
		pat(`\b(core|principle|character)\b`, 0.5, "core_marker"),
	},
	"working": {
		pat(`\b(todo|to-do|task|tasks)\b`, 0.8, "task_marker"),
		pat(`\b(need to|have to|should|must do)\b`, 0.6, "obligation_marker"),
		pat(`\b(currently|right now|in progress|wip)\b`, 0.7, "current_task"),
		pat(`\b(temporary|temp|scratch|draft|placeholder)\b`, 0.8, "temporary_marker"),
		pat(`\b(next step|pending|blocked|waiting on)\b`, 0.6, "pending_marker"),
	},
}

// emotionalPatterns feed the emotional-intensity observable: each distinct
// firing signal adds 0.1 over the 0.5 baseline.
var emotionalPatterns = []pattern{
	pat(`\b(love|amazing|wonderful|excited|thrilled|happy|great|fantastic)\b`, 0, "emotion_positive"),
	pat(`\b(hate|terrible|awful|frustrated|angry|sad|horrible|devastated)\b`, 0, "emotion_negative"),
	pat(`\b(absolutely|completely|totally|extremely|incredibly)\b`, 0, "emotion_intensifier"),
	pat(`\b(afraid|scared|worried|anxious|nervous)\b`, 0, "emotion_fear"),
}

// technicalPatterns feed the technical-density observable: each distinct
// firing signal adds 0.15.
var technicalPatterns = []pattern{
	pat(`\b(server|database|api|function|endpoint|compiler|runtime|kernel)\b`, 0, "technical_term"),
	pat(`\b(bug|error|stack trace|exception|segfault|crash|regression)\b`, 0, "defect_term"),
	pat(`\b(sql|http|json|yaml|grpc|tcp|tls|cli|sdk)\b`, 0, "protocol_term"),
	pat(`\b(config|configuration|dependency|dependencies|migration|migrations|pipeline)\b`, 0, "infra_term"),
}

// howtoSignals are the procedural signals that steer the technical-density
// boost toward the procedural layer instead of semantic.
var howtoSignals = map[string]bool{
	"howto_marker":    true,
	"step_marker":     true,
	"sequence_marker": true,
}

var (
	codePunctRe  = regexp.MustCompile("[{}`]|=>|->|\\(\\)|</|;")
	camelCaseRe  = regexp.MustCompile(`\b[a-z]+[A-Z][A-Za-z]*\b`)
	snakeCaseRe  = regexp.MustCompile(`\b[a-z0-9]+_[a-z0-9_]+\b`)
	allCapsRe    = regexp.MustCompile(`\b[A-Z]{2,}\b`)
	exclamations = regexp.MustCompile(`!`)
)
