// Package tools binds the protocol's operation vocabulary to the storage
// engine: admission, validation, execution, and the uniform response
// envelope all live here.
package tools

import (
	"encoding/json"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/lazypower/strata/internal/dualwrite"
	"github.com/lazypower/strata/internal/engine"
	"github.com/lazypower/strata/internal/ratelimit"
	"github.com/lazypower/strata/internal/router"
	"github.com/lazypower/strata/internal/store"
)

// Request is one decoded protocol request.
type Request struct {
	ID   string         `json:"id,omitempty"`
	Tool string         `json:"tool"`
	Args map[string]any `json:"args"`
}

// ErrorBody is the error half of the response envelope.
type ErrorBody struct {
	Code         Code           `json:"code"`
	Message      string         `json:"message"`
	StatusCode   int            `json:"statusCode"`
	Timestamp    int64          `json:"timestamp"`
	Tool         string         `json:"tool"`
	RetryAfterMs int64          `json:"retryAfterMs,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
}

// Response is the uniform success-or-error envelope.
type Response struct {
	Success   bool       `json:"success"`
	ID        string     `json:"id,omitempty"`
	Tool      string     `json:"tool,omitempty"`
	Timestamp int64      `json:"timestamp,omitempty"`
	Data      any        `json:"data,omitempty"`
	Err       *ErrorBody `json:"error,omitempty"`
}

// knownTools is the fixed operation vocabulary.
var knownTools = map[string]bool{
	"remember":      true,
	"recall":        true,
	"query_layer":   true,
	"save_to_layer": true,
	"get_status":    true,
	"get_stats":     true,
}

// Dispatcher routes requests to the components.
type Dispatcher struct {
	coord   *dualwrite.Coordinator
	engine  *engine.Engine
	limiter *ratelimit.Limiter
	audit   *AuditLog
	version string
	debug   bool
}

// New creates a Dispatcher. audit may be nil.
func New(coord *dualwrite.Coordinator, eng *engine.Engine, limiter *ratelimit.Limiter, audit *AuditLog, version string, debug bool) *Dispatcher {
	return &Dispatcher{
		coord:   coord,
		engine:  eng,
		limiter: limiter,
		audit:   audit,
		version: version,
		debug:   debug,
	}
}

// Dispatch runs one request end to end: admission, validation, execution,
// envelope. Any residual panic or unexpected error becomes INTERNAL_ERROR;
// the process never crashes on a request.
func (d *Dispatcher) Dispatch(req Request) Response {
	start := time.Now()
	requestID := uuid.NewString()

	data, terr := d.execute(req)

	resp := d.envelope(req, requestID, data, terr)

	if d.audit != nil {
		rec := AuditRecord{
			Timestamp:  start.UnixMilli(),
			RequestID:  requestID,
			Tool:       req.Tool,
			OK:         terr == nil,
			DurationMs: time.Since(start).Milliseconds(),
		}
		if terr != nil {
			rec.Code = string(terr.Code)
		}
		if err := d.audit.Emit(rec); err != nil {
			log.Printf("audit: emit: %v", err)
		}
	}

	return resp
}

func (d *Dispatcher) execute(req Request) (data any, terr *Error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("dispatch: panic in %s: %v", req.Tool, r)
			data = nil
			terr = Errorf(CodeInternal, "internal error")
		}
	}()

	if !knownTools[req.Tool] {
		return nil, Errorf(CodeUnknownTool, "unknown tool %q", req.Tool)
	}

	if res := d.limiter.Admit(req.Tool); !res.Allowed {
		e := Errorf(CodeRateLimit, "rate limit exceeded for %s", req.Tool)
		e.RetryAfterMs = res.RetryAfterMs
		return nil, e
	}

	switch req.Tool {
	case "remember":
		return d.handleSave(req.Args, false)
	case "save_to_layer":
		return d.handleSave(req.Args, true)
	case "recall":
		return d.handleRecall(req.Args)
	case "query_layer":
		return d.handleQueryLayer(req.Args)
	case "get_status":
		return d.handleStatus()
	case "get_stats":
		return d.handleStats()
	}
	return nil, Errorf(CodeInternal, "unreachable tool %q", req.Tool)
}

func (d *Dispatcher) envelope(req Request, requestID string, data any, terr *Error) Response {
	now := time.Now().UnixMilli()
	if terr == nil {
		return Response{
			Success:   true,
			ID:        req.ID,
			Tool:      req.Tool,
			Timestamp: now,
			Data:      data,
		}
	}

	msg := Sanitize(terr.Message)
	if terr.Code == CodeInternal && !d.debug {
		msg = "internal error"
	}

	details := terr.Details
	if d.debug {
		if details == nil {
			details = make(map[string]any)
		}
		details["request_id"] = requestID
	}

	return Response{
		Success: false,
		ID:      req.ID,
		Err: &ErrorBody{
			Code:         terr.Code,
			Message:      msg,
			StatusCode:   statusFor(terr.Code),
			Timestamp:    now,
			Tool:         req.Tool,
			RetryAfterMs: terr.RetryAfterMs,
			Details:      details,
		},
	}
}

// handleSave implements remember (routed) and save_to_layer (explicit).
func (d *Dispatcher) handleSave(args map[string]any, layerRequired bool) (any, *Error) {
	in, verr := ValidateSave(args, layerRequired)
	if verr != nil {
		return nil, verr
	}

	layer := in.Layer
	confidence := 1.0
	var decision *router.Decision
	if layer == "" {
		dec := router.Analyze(in.Content)
		decision = &dec
		layer = dec.Layer
		confidence = dec.Confidence
	}

	now := unixSeconds()
	ts := now
	if in.Meta.Timestamp != nil {
		ts = *in.Meta.Timestamp
	}

	emotional := 0.5
	if in.Meta.EmotionalIntensity != nil {
		emotional = *in.Meta.EmotionalIntensity
	} else if decision != nil {
		emotional = decision.EmotionalIntensity
	}

	metaJSON, verr := in.Meta.Marshal()
	if verr != nil {
		return nil, verr
	}

	// Effective importance starts at the stored importance: no time has
	// passed, and immortal records keep it there permanently.
	effective := in.Meta.Importance
	rec := &store.Record{
		Timestamp:           ts,
		Content:             in.Content,
		Context:             in.Meta.Context,
		Importance:          in.Meta.Importance,
		EmotionalIntensity:  emotional,
		Metadata:            metaJSON,
		LastAccessed:        &now,
		EffectiveImportance: &effective,
	}

	id, mirrored, err := d.coord.Save(layer, rec)
	if err != nil {
		return nil, storeError(CodeWrite, err)
	}

	data := map[string]any{
		"layer":      layer,
		"id":         id,
		"timestamp":  ts,
		"dual_write": mirrored,
		"confidence": confidence,
	}
	if decision != nil {
		data["signals"] = decision.Signals
	}
	return data, nil
}

func (d *Dispatcher) handleRecall(args map[string]any) (any, *Error) {
	in, verr := ValidateRecall(args)
	if verr != nil {
		return nil, verr
	}

	cfg := d.engine.Config()
	q := store.CompileRecall(in.Query, in.Limit, in.IncludeDecayed, cfg.Threshold)

	layers := store.Layers
	if in.Layer != "" {
		layers = []string{in.Layer}
	}

	type hit struct {
		layer string
		rec   store.Record
	}
	var hits []hit
	for _, layer := range layers {
		records, err := d.coord.Scan(layer, q)
		if err != nil {
			if in.Layer != "" {
				return nil, storeError(CodeDatabase, err)
			}
			// Cross-layer recall keeps serving the healthy layers.
			log.Printf("recall: layer %s: %v", layer, err)
			continue
		}
		for _, rec := range records {
			hits = append(hits, hit{layer: layer, rec: rec})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		ri, rj := rankImportance(hits[i].rec), rankImportance(hits[j].rec)
		if ri != rj {
			return ri > rj
		}
		return hits[i].rec.Timestamp > hits[j].rec.Timestamp
	})
	if len(hits) > in.Limit {
		hits = hits[:in.Limit]
	}

	// Touch what we return; failures never reach the caller.
	touched := make(map[string][]int64)
	for _, h := range hits {
		touched[h.layer] = append(touched[h.layer], h.rec.ID)
	}
	for layer, ids := range touched {
		d.engine.Touch(layer, ids)
	}

	results := make([]map[string]any, 0, len(hits))
	for _, h := range hits {
		results = append(results, recordView(h.layer, h.rec))
	}
	return results, nil
}

func rankImportance(rec store.Record) float64 {
	if rec.EffectiveImportance != nil {
		return *rec.EffectiveImportance
	}
	return rec.Importance
}

func (d *Dispatcher) handleQueryLayer(args map[string]any) (any, *Error) {
	in, verr := ValidateQueryLayer(args)
	if verr != nil {
		return nil, verr
	}

	cfg := d.engine.Config()
	q, err := store.Compile(in.Filters, in.OrderBy, in.Limit, in.IncludeDecayed, cfg.Threshold)
	if err != nil {
		return nil, Errorf(CodeValidation, "%v", err)
	}

	records, err := d.coord.Scan(in.Layer, q)
	if err != nil {
		return nil, storeError(CodeDatabase, err)
	}

	results := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		results = append(results, recordView(in.Layer, rec))
	}
	return results, nil
}

func (d *Dispatcher) handleStatus() (any, *Error) {
	health := d.coord.Health()
	return map[string]any{
		"version": d.version,
		"health":  health.Overall,
		"layers":  health.Layers,
		"dual_write": map[string]any{
			"enabled":   health.DualWrite,
			"data_dir":  health.DataDir,
			"cache_dir": health.CacheDir,
		},
		"decay": d.engine.Status(),
	}, nil
}

func (d *Dispatcher) handleStats() (any, *Error) {
	cfg := d.engine.Config()
	layers := make(map[string]store.LayerStats, len(store.Layers))
	for _, layer := range store.Layers {
		s, err := d.coord.Stats(layer, cfg.Immortal, cfg.Threshold)
		if err != nil {
			return nil, storeError(CodeDatabase, err)
		}
		layers[layer] = s
	}
	return map[string]any{
		"layers": layers,
		"decay":  d.engine.Status(),
	}, nil
}

// recordView shapes one record for the wire, decoding the metadata bag.
func recordView(layer string, rec store.Record) map[string]any {
	var meta any
	if err := json.Unmarshal([]byte(rec.Metadata), &meta); err != nil {
		meta = rec.Metadata
	}

	view := map[string]any{
		"layer":               layer,
		"id":                  rec.ID,
		"timestamp":           rec.Timestamp,
		"content":             rec.Content,
		"context":             rec.Context,
		"importance":          rec.Importance,
		"emotional_intensity": rec.EmotionalIntensity,
		"access_count":        rec.AccessCount,
		"metadata":            meta,
	}
	if rec.EffectiveImportance != nil {
		view["effective_importance"] = *rec.EffectiveImportance
	}
	return view
}

func unixSeconds() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}
