package tools

import (
	"encoding/json"
	"strings"

	"github.com/lazypower/strata/internal/router"
	"github.com/lazypower/strata/internal/store"
)

// Bounds enforced on every external input.
const (
	maxContentLen   = 100_000
	maxQueryLen     = 1_000
	maxContextLen   = 10_000
	maxMetaValueLen = 5_000
	maxMetadataSize = 50_000
	maxTags         = 50
	maxTagLen       = 100
	maxRelatedIDs   = 100
	maxLimit        = 1000
	defaultLimit    = 10
	maxTimestamp    = 4_102_444_800 // year 2100
)

// Metadata is the recognized metadata envelope. Unknown keys are kept
// under Custom rather than rejected.
type Metadata struct {
	Importance         float64        `json:"importance"`
	EmotionalIntensity *float64       `json:"emotional_intensity,omitempty"`
	Context            string         `json:"context,omitempty"`
	Tags               []string       `json:"tags,omitempty"`
	RelatedIDs         []int64        `json:"related_ids,omitempty"`
	Timestamp          *float64       `json:"timestamp,omitempty"`
	Source             string         `json:"source,omitempty"`
	Custom             map[string]any `json:"custom,omitempty"`
}

// Marshal serializes the metadata envelope and enforces the size ceiling.
func (m *Metadata) Marshal() (string, *Error) {
	b, err := json.Marshal(m)
	if err != nil {
		return "", Errorf(CodeInternal, "encode metadata: %v", err)
	}
	if len(b) > maxMetadataSize {
		return "", fieldError(CodeValidation, "metadata", "serialized metadata exceeds %d bytes", maxMetadataSize)
	}
	return string(b), nil
}

// SaveInput is a validated remember/save_to_layer request.
type SaveInput struct {
	Content string
	Layer   string // canonical, empty when routing is requested
	Meta    Metadata
}

// validateContent trims and bounds the content payload.
func validateContent(args map[string]any) (string, *Error) {
	raw, ok := args["content"].(string)
	if !ok {
		return "", fieldError(CodeInvalidContent, "content", "content is required and must be a string")
	}
	content := strings.TrimSpace(raw)
	if content == "" {
		return "", fieldError(CodeInvalidContent, "content", "content must not be empty")
	}
	if len([]rune(content)) > maxContentLen {
		return "", fieldError(CodeInvalidContent, "content", "content exceeds %d characters", maxContentLen)
	}
	return content, nil
}

// validateLayer resolves a layer argument through the alias table.
// required distinguishes save_to_layer from remember.
func validateLayer(args map[string]any, required bool) (string, *Error) {
	raw, present := args["layer"]
	if !present || raw == nil {
		if required {
			return "", fieldError(CodeInvalidLayer, "layer", "layer is required")
		}
		return "", nil
	}
	name, ok := raw.(string)
	if !ok {
		return "", fieldError(CodeInvalidLayer, "layer", "layer must be a string")
	}
	canonical, ok := router.Canonicalize(name)
	if !ok {
		return "", fieldError(CodeInvalidLayer, "layer", "unknown layer %q; valid layers: %s",
			name, strings.Join(store.Layers, ", "))
	}
	return canonical, nil
}

// ValidateSave checks a remember or save_to_layer payload.
func ValidateSave(args map[string]any, layerRequired bool) (SaveInput, *Error) {
	var in SaveInput

	content, verr := validateContent(args)
	if verr != nil {
		return in, verr
	}
	in.Content = content

	layer, verr := validateLayer(args, layerRequired)
	if verr != nil {
		return in, verr
	}
	in.Layer = layer

	meta, verr := validateMetadata(args["metadata"])
	if verr != nil {
		return in, verr
	}
	in.Meta = meta

	return in, nil
}

// validateMetadata normalizes the metadata bag: recognized keys are range-
// checked, everything else moves under custom.
func validateMetadata(raw any) (Metadata, *Error) {
	meta := Metadata{Importance: 0.7}
	if raw == nil {
		return meta, nil
	}
	bag, ok := raw.(map[string]any)
	if !ok {
		return meta, fieldError(CodeValidation, "metadata", "metadata must be an object")
	}

	for key, val := range bag {
		switch key {
		case "importance":
			v, verr := unitInterval("metadata.importance", val)
			if verr != nil {
				return meta, verr
			}
			meta.Importance = v
		case "emotional_intensity":
			v, verr := unitInterval("metadata.emotional_intensity", val)
			if verr != nil {
				return meta, verr
			}
			meta.EmotionalIntensity = &v
		case "context":
			s, ok := val.(string)
			if !ok {
				return meta, fieldError(CodeValidation, "metadata.context", "context must be a string")
			}
			if len([]rune(s)) > maxContextLen {
				return meta, fieldError(CodeValidation, "metadata.context", "context exceeds %d characters", maxContextLen)
			}
			meta.Context = s
		case "tags":
			tags, verr := validateTags(val)
			if verr != nil {
				return meta, verr
			}
			meta.Tags = tags
		case "related_ids":
			ids, verr := validateRelatedIDs(val)
			if verr != nil {
				return meta, verr
			}
			meta.RelatedIDs = ids
		case "timestamp":
			v, ok := asFloat(val)
			if !ok {
				return meta, fieldError(CodeValidation, "metadata.timestamp", "timestamp must be a number")
			}
			if v < 0 || v > maxTimestamp {
				return meta, fieldError(CodeValidation, "metadata.timestamp", "timestamp out of range [0, %d]", maxTimestamp)
			}
			meta.Timestamp = &v
		case "source":
			s, ok := val.(string)
			if !ok {
				return meta, fieldError(CodeValidation, "metadata.source", "source must be a string")
			}
			if verr := boundedString("metadata.source", s); verr != nil {
				return meta, verr
			}
			meta.Source = s
		default:
			if s, isStr := val.(string); isStr {
				if verr := boundedString("metadata."+key, s); verr != nil {
					return meta, verr
				}
			}
			if meta.Custom == nil {
				meta.Custom = make(map[string]any)
			}
			meta.Custom[key] = val
		}
	}

	return meta, nil
}

func validateTags(val any) ([]string, *Error) {
	list, ok := val.([]any)
	if !ok {
		return nil, fieldError(CodeValidation, "metadata.tags", "tags must be an array of strings")
	}
	if len(list) > maxTags {
		return nil, fieldError(CodeValidation, "metadata.tags", "tag count exceeds %d", maxTags)
	}
	tags := make([]string, 0, len(list))
	for _, item := range list {
		tag, ok := item.(string)
		if !ok {
			return nil, fieldError(CodeValidation, "metadata.tags", "tags must be an array of strings")
		}
		if len([]rune(tag)) > maxTagLen {
			return nil, fieldError(CodeValidation, "metadata.tags", "tag exceeds %d characters", maxTagLen)
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

func validateRelatedIDs(val any) ([]int64, *Error) {
	list, ok := val.([]any)
	if !ok {
		return nil, fieldError(CodeValidation, "metadata.related_ids", "related_ids must be an array of integers")
	}
	if len(list) > maxRelatedIDs {
		return nil, fieldError(CodeValidation, "metadata.related_ids", "related_ids count exceeds %d", maxRelatedIDs)
	}
	ids := make([]int64, 0, len(list))
	for _, item := range list {
		f, ok := asFloat(item)
		if !ok || f != float64(int64(f)) {
			return nil, fieldError(CodeValidation, "metadata.related_ids", "related_ids must be an array of integers")
		}
		ids = append(ids, int64(f))
	}
	return ids, nil
}

// RecallInput is a validated recall request.
type RecallInput struct {
	Query          string
	Layer          string // empty means all layers
	Limit          int
	IncludeDecayed bool
}

// ValidateRecall checks a recall payload.
func ValidateRecall(args map[string]any) (RecallInput, *Error) {
	var in RecallInput

	raw, ok := args["query"].(string)
	if !ok {
		return in, fieldError(CodeInvalidQuery, "query", "query is required and must be a string")
	}
	query := strings.TrimSpace(raw)
	if query == "" {
		return in, fieldError(CodeInvalidQuery, "query", "query must not be empty")
	}
	if len([]rune(query)) > maxQueryLen {
		return in, fieldError(CodeInvalidQuery, "query", "query exceeds %d characters", maxQueryLen)
	}
	in.Query = query

	layer, verr := validateLayer(args, false)
	if verr != nil {
		return in, verr
	}
	in.Layer = layer

	limit, verr := validateLimit(args["limit"])
	if verr != nil {
		return in, verr
	}
	in.Limit = limit

	in.IncludeDecayed, _ = args["include_decayed"].(bool)
	return in, nil
}

// QueryLayerInput is a validated query_layer request.
type QueryLayerInput struct {
	Layer          string
	Filters        store.Filters
	OrderBy        string
	Limit          int
	IncludeDecayed bool
}

// ValidateQueryLayer checks a query_layer payload and parses its filter DSL.
func ValidateQueryLayer(args map[string]any) (QueryLayerInput, *Error) {
	var in QueryLayerInput

	layer, verr := validateLayer(args, true)
	if verr != nil {
		return in, verr
	}
	in.Layer = layer
	in.Limit = defaultLimit
	in.IncludeDecayed, _ = args["include_decayed"].(bool)

	rawOpts, present := args["options"]
	if !present || rawOpts == nil {
		return in, nil
	}
	opts, ok := rawOpts.(map[string]any)
	if !ok {
		return in, fieldError(CodeValidation, "options", "options must be an object")
	}

	if rawFilters, present := opts["filters"]; present && rawFilters != nil {
		filters, verr := validateFilters(rawFilters)
		if verr != nil {
			return in, verr
		}
		in.Filters = filters
	}

	if rawOrder, present := opts["order_by"]; present && rawOrder != nil {
		s, ok := rawOrder.(string)
		if !ok {
			return in, fieldError(CodeValidation, "options.order_by", "order_by must be a string")
		}
		in.OrderBy = s
	}

	if rawLimit, present := opts["limit"]; present && rawLimit != nil {
		limit, verr := validateLimit(rawLimit)
		if verr != nil {
			return in, verr
		}
		in.Limit = limit
	}

	return in, nil
}

// validateFilters parses the structured filter DSL. Unknown keys are
// rejected: the filter surface is the only query path the protocol
// exposes, and it stays closed.
func validateFilters(raw any) (store.Filters, *Error) {
	var f store.Filters
	bag, ok := raw.(map[string]any)
	if !ok {
		return f, fieldError(CodeValidation, "options.filters", "filters must be an object")
	}

	for key, val := range bag {
		switch key {
		case "id":
			v, ok := asFloat(val)
			if !ok || v != float64(int64(v)) {
				return f, fieldError(CodeValidation, "filters.id", "id must be an integer")
			}
			id := int64(v)
			f.ID = &id
		case "importance_min":
			p, verr := unitIntervalPtr("filters.importance_min", val)
			if verr != nil {
				return f, verr
			}
			f.ImportanceMin = p
		case "importance_max":
			p, verr := unitIntervalPtr("filters.importance_max", val)
			if verr != nil {
				return f, verr
			}
			f.ImportanceMax = p
		case "emotional_intensity_min":
			p, verr := unitIntervalPtr("filters.emotional_intensity_min", val)
			if verr != nil {
				return f, verr
			}
			f.EmotionalIntensityMin = p
		case "emotional_intensity_max":
			p, verr := unitIntervalPtr("filters.emotional_intensity_max", val)
			if verr != nil {
				return f, verr
			}
			f.EmotionalIntensityMax = p
		case "timestamp_after":
			p, verr := timestampPtr("filters.timestamp_after", val)
			if verr != nil {
				return f, verr
			}
			f.TimestampAfter = p
		case "timestamp_before":
			p, verr := timestampPtr("filters.timestamp_before", val)
			if verr != nil {
				return f, verr
			}
			f.TimestampBefore = p
		case "content_contains":
			s, verr := containsFragment("filters.content_contains", val)
			if verr != nil {
				return f, verr
			}
			f.ContentContains = s
		case "context_contains":
			s, verr := containsFragment("filters.context_contains", val)
			if verr != nil {
				return f, verr
			}
			f.ContextContains = s
		case "effective_importance_min":
			p, verr := unitIntervalPtr("filters.effective_importance_min", val)
			if verr != nil {
				return f, verr
			}
			f.EffectiveImportanceMin = p
		case "effective_importance_max":
			p, verr := unitIntervalPtr("filters.effective_importance_max", val)
			if verr != nil {
				return f, verr
			}
			f.EffectiveImportanceMax = p
		default:
			return f, fieldError(CodeValidation, "filters."+key, "unrecognized filter key %q", key)
		}
	}

	return f, nil
}

func validateLimit(raw any) (int, *Error) {
	if raw == nil {
		return defaultLimit, nil
	}
	v, ok := asFloat(raw)
	if !ok || v != float64(int(v)) {
		return 0, fieldError(CodeValidation, "limit", "limit must be an integer")
	}
	limit := int(v)
	if limit < 1 || limit > maxLimit {
		return 0, fieldError(CodeValidation, "limit", "limit out of range [1, %d]", maxLimit)
	}
	return limit, nil
}

func containsFragment(field string, val any) (string, *Error) {
	s, ok := val.(string)
	if !ok {
		return "", fieldError(CodeValidation, field, "must be a string")
	}
	if len([]rune(s)) > maxQueryLen {
		return "", fieldError(CodeValidation, field, "exceeds %d characters", maxQueryLen)
	}
	return s, nil
}

func unitInterval(field string, val any) (float64, *Error) {
	v, ok := asFloat(val)
	if !ok {
		return 0, fieldError(CodeValidation, field, "must be a number")
	}
	if v < 0 || v > 1 {
		return 0, fieldError(CodeValidation, field, "out of range [0, 1]")
	}
	return v, nil
}

func unitIntervalPtr(field string, val any) (*float64, *Error) {
	v, verr := unitInterval(field, val)
	if verr != nil {
		return nil, verr
	}
	return &v, nil
}

func timestampPtr(field string, val any) (*float64, *Error) {
	v, ok := asFloat(val)
	if !ok {
		return nil, fieldError(CodeValidation, field, "must be a number")
	}
	if v < 0 || v > maxTimestamp {
		return nil, fieldError(CodeValidation, field, "out of range [0, %d]", maxTimestamp)
	}
	return &v, nil
}

func boundedString(field, s string) *Error {
	if len([]rune(s)) > maxMetaValueLen {
		return fieldError(CodeValidation, field, "exceeds %d characters", maxMetaValueLen)
	}
	return nil
}

// asFloat accepts the numeric types a JSON decode can produce.
func asFloat(val any) (float64, bool) {
	switch v := val.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
