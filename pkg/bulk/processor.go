package bulk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/biocompute/bcodb/pkg/objects"
	"github.com/biocompute/bcodb/pkg/observability"
	"github.com/biocompute/bcodb/pkg/permissions"
	"github.com/biocompute/bcodb/pkg/prefixes"
	"github.com/biocompute/bcodb/pkg/schema"
)

// PayloadValidator checks a payload against a named schema and returns
// every violation. The schema package's Validator satisfies this.
type PayloadValidator interface {
	ValidateKey(payload interface{}, key string) ([]schema.ValidationError, error)
}

// Processor runs batches through the lifecycle pipeline
type Processor struct {
	gate      permissions.Gate
	validator PayloadValidator
	allocator *objects.Allocator
	store     *objects.Store
	metrics   *observability.Metrics
	logger    *observability.Logger
}

// NewProcessor creates a batch processor
func NewProcessor(gate permissions.Gate, validator PayloadValidator, allocator *objects.Allocator,
	store *objects.Store, metrics *observability.Metrics, logger *observability.Logger) *Processor {
	return &Processor{
		gate:      gate,
		validator: validator,
		allocator: allocator,
		store:     store,
		metrics:   metrics,
		logger:    logger,
	}
}

// Process runs every item of a batch through the pipeline in input order.
// Item failures become per-item results and never abort siblings; only
// infrastructure faults (store or gate unreachable) return an error, which
// terminates the whole request.
func (p *Processor) Process(ctx context.Context, identity permissions.Identity, op Operation, items []Item) (BatchResult, error) {
	results := make([]ItemResult, 0, len(items))
	for _, item := range items {
		start := time.Now()
		result, err := p.processItem(ctx, identity, op, item)
		if err != nil {
			return BatchResult{}, err
		}
		p.metrics.BatchItemDuration.WithLabelValues(string(op)).Observe(time.Since(start).Seconds())
		p.metrics.BatchItemsTotal.WithLabelValues(string(op), strconv.Itoa(result.StatusCode)).Inc()
		results = append(results, result)
	}

	status := AggregateStatus(results)
	p.metrics.BatchesTotal.WithLabelValues(string(op), outcomeLabel(status)).Inc()
	return BatchResult{Status: status, Results: results}, nil
}

func outcomeLabel(status int) string {
	switch {
	case status == http.StatusMultiStatus:
		return "mixed"
	case status >= 200 && status < 300:
		return "success"
	default:
		return "failure"
	}
}

func (p *Processor) processItem(ctx context.Context, identity permissions.Identity, op Operation, item Item) (ItemResult, error) {
	switch op {
	case OpDraftCreate:
		return p.createDraft(ctx, identity, item)
	case OpDraftModify:
		return p.modifyDraft(ctx, identity, item)
	case OpDraftDelete:
		return p.deleteDraft(ctx, identity, item)
	case OpPublish:
		return p.publish(ctx, identity, item)
	}
	return ItemResult{}, fmt.Errorf("unknown operation: %s", op)
}

func (p *Processor) createDraft(ctx context.Context, identity permissions.Identity, item Item) (ItemResult, error) {
	if item.ObjectID != "" && item.ObjectID != objects.NewObjectToken {
		return reject(http.StatusBadRequest, "object_id must be NEW or omitted for draft creation"), nil
	}

	dec, err := p.gate.Authorize(ctx, identity, permissions.ActionDraftCreate,
		permissions.Target{Prefix: item.Prefix, OwnerGroup: item.OwnerGroup})
	if err != nil {
		return ItemResult{}, err
	}
	if !dec.Allowed {
		return p.denied(permissions.ActionDraftCreate, dec), nil
	}

	if result, ok := p.validateContents(item.Schema, item.Contents); !ok {
		return result, nil
	}

	objectID, sequence, err := p.allocator.MintDraft(ctx, item.Prefix)
	if err != nil {
		if errors.Is(err, prefixes.ErrNotFound) {
			return reject(http.StatusNotFound, "unknown prefix: "+item.Prefix), nil
		}
		return ItemResult{}, err
	}
	p.metrics.DraftIDsMintedTotal.WithLabelValues(item.Prefix).Inc()

	draft := &objects.Object{
		ObjectID:   objectID,
		Prefix:     item.Prefix,
		Sequence:   sequence,
		SchemaID:   item.Schema,
		Contents:   item.Contents,
		OwnerGroup: item.OwnerGroup,
	}
	if err := p.store.CreateDraft(ctx, draft); err != nil {
		return ItemResult{}, err
	}
	return ItemResult{StatusCode: http.StatusCreated, ObjectID: objectID}, nil
}

func (p *Processor) modifyDraft(ctx context.Context, identity permissions.Identity, item Item) (ItemResult, error) {
	canonical, target, result, err := p.resolveDraftTarget(ctx, item.ObjectID)
	if err != nil {
		return ItemResult{}, err
	}
	if result != nil {
		return *result, nil
	}

	dec, err := p.gate.Authorize(ctx, identity, permissions.ActionDraftModify, target)
	if err != nil {
		return ItemResult{}, err
	}
	if !dec.Allowed {
		return p.denied(permissions.ActionDraftModify, dec), nil
	}

	if result, ok := p.validateContents(item.Schema, item.Contents); !ok {
		return result, nil
	}

	err = p.store.UpdateDraft(ctx, &objects.Object{
		ObjectID: canonical,
		SchemaID: item.Schema,
		Contents: item.Contents,
	})
	if err != nil {
		if errors.Is(err, objects.ErrNotFound) {
			return reject(http.StatusNotFound, "draft not found: "+canonical), nil
		}
		return ItemResult{}, err
	}
	return ItemResult{StatusCode: http.StatusOK, ObjectID: canonical}, nil
}

func (p *Processor) deleteDraft(ctx context.Context, identity permissions.Identity, item Item) (ItemResult, error) {
	canonical, target, result, err := p.resolveDraftTarget(ctx, item.ObjectID)
	if err != nil {
		return ItemResult{}, err
	}
	if result != nil {
		return *result, nil
	}

	dec, err := p.gate.Authorize(ctx, identity, permissions.ActionDraftDelete, target)
	if err != nil {
		return ItemResult{}, err
	}
	if !dec.Allowed {
		return p.denied(permissions.ActionDraftDelete, dec), nil
	}

	if err := p.store.DeleteDraft(ctx, canonical); err != nil {
		if errors.Is(err, objects.ErrNotFound) {
			return reject(http.StatusNotFound, "draft not found: "+canonical), nil
		}
		return ItemResult{}, err
	}
	return ItemResult{StatusCode: http.StatusOK, ObjectID: canonical}, nil
}

func (p *Processor) publish(ctx context.Context, identity permissions.Identity, item Item) (ItemResult, error) {
	canonical, target, result, err := p.resolveDraftTarget(ctx, item.ObjectID)
	if err != nil {
		return ItemResult{}, err
	}
	if result != nil {
		return *result, nil
	}
	if item.Prefix != "" && item.Prefix != target.Prefix {
		return reject(http.StatusBadRequest,
			fmt.Sprintf("prefix %s does not match object_id %s", item.Prefix, canonical)), nil
	}

	dec, err := p.gate.Authorize(ctx, identity, permissions.ActionPublish, target)
	if err != nil {
		return ItemResult{}, err
	}
	if !dec.Allowed {
		return p.denied(permissions.ActionPublish, dec), nil
	}

	// The gate resolved the draft; reload it for validation and copy.
	draft, err := p.store.GetDraft(ctx, canonical)
	if err != nil {
		if errors.Is(err, objects.ErrNotFound) {
			return reject(http.StatusNotFound, "draft not found: "+canonical), nil
		}
		return ItemResult{}, err
	}

	schemaKey := item.Schema
	if schemaKey == "" {
		schemaKey = draft.SchemaID
	}
	if result, ok := p.validateContents(schemaKey, draft.Contents); !ok {
		return result, nil
	}

	published, err := p.store.Publish(ctx, canonical, item.DeleteDraft)
	if err != nil {
		if errors.Is(err, objects.ErrNotFound) {
			return reject(http.StatusNotFound, "draft not found: "+canonical), nil
		}
		return ItemResult{}, err
	}
	return ItemResult{StatusCode: http.StatusCreated, ObjectID: published.ObjectID}, nil
}

// resolveDraftTarget parses and canonicalizes a draft identifier and looks
// up its owning group for the gate. A format error or unresolvable object
// yields a non-nil early result; unresolvable objects still pass through
// the gate so superusers and denial mapping behave uniformly.
func (p *Processor) resolveDraftTarget(ctx context.Context, objectID string) (string, permissions.Target, *ItemResult, error) {
	parsed, err := objects.ParseObjectID(objectID)
	if err != nil || !parsed.IsDraft {
		r := reject(http.StatusBadRequest, "malformed draft object_id: "+objectID)
		return "", permissions.Target{}, &r, nil
	}
	canonical := objects.FormatDraftID(parsed.Prefix, parsed.Sequence)

	target := permissions.Target{Prefix: parsed.Prefix, ObjectID: canonical}
	draft, err := p.store.GetDraft(ctx, canonical)
	switch {
	case err == nil:
		target.OwnerGroup = draft.OwnerGroup
	case errors.Is(err, objects.ErrNotFound):
		// Leave OwnerGroup empty; the gate reports the unknown object.
	default:
		return "", permissions.Target{}, nil, err
	}
	return canonical, target, nil, nil
}

// validateContents checks a payload against the declared schema. The second
// return is false when the item must be rejected.
func (p *Processor) validateContents(schemaKey string, contents json.RawMessage) (ItemResult, bool) {
	if schemaKey == "" {
		return reject(http.StatusBadRequest, "schema is required"), false
	}

	var payload interface{}
	if err := json.Unmarshal(contents, &payload); err != nil {
		return reject(http.StatusBadRequest, "contents is not valid JSON"), false
	}

	violations, err := p.validator.ValidateKey(payload, schemaKey)
	if err != nil {
		if errors.Is(err, schema.ErrNotFound) {
			p.metrics.SchemaValidationsTotal.WithLabelValues(schemaKey, "unknown_schema").Inc()
			return reject(http.StatusBadRequest, "unknown schema: "+schemaKey), false
		}
		p.logger.WithError(err).WithField("schema", schemaKey).Error("schema validation faulted")
		return reject(http.StatusBadRequest, "schema validation failed"), false
	}
	if len(violations) > 0 {
		p.metrics.SchemaValidationsTotal.WithLabelValues(schemaKey, "invalid").Inc()
		return ItemResult{
			StatusCode: http.StatusBadRequest,
			Message:    "schema validation failed",
			Data:       violations,
		}, false
	}
	p.metrics.SchemaValidationsTotal.WithLabelValues(schemaKey, "valid").Inc()
	return ItemResult{}, true
}

func (p *Processor) denied(action permissions.Action, dec permissions.Decision) ItemResult {
	p.metrics.PermissionDenialsTotal.WithLabelValues(string(action), string(dec.Reason)).Inc()
	msg := string(dec.Reason)
	if dec.Detail != "" {
		msg = fmt.Sprintf("%s: %s", dec.Reason, dec.Detail)
	}
	return reject(statusForDenial(dec.Reason), msg)
}

func reject(status int, message string) ItemResult {
	return ItemResult{StatusCode: status, Message: message}
}
