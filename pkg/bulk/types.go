package bulk

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/biocompute/bcodb/pkg/permissions"
)

// Operation is one of the four batch lifecycle operations
type Operation string

const (
	OpDraftCreate Operation = "draft_create"
	OpDraftModify Operation = "draft_modify"
	OpDraftDelete Operation = "draft_delete"
	OpPublish     Operation = "publish"
)

// legacyKeys maps each operation to the single wrapper key older clients
// send instead of a bare array.
var legacyKeys = map[Operation]string{
	OpDraftCreate: "POST_api_objects_drafts_create",
	OpDraftModify: "POST_api_objects_drafts_modify",
	OpDraftDelete: "POST_api_objects_drafts_delete",
	OpPublish:     "POST_api_objects_drafts_publish",
}

// Action returns the permission action gating this operation
func (op Operation) Action() permissions.Action {
	switch op {
	case OpDraftCreate:
		return permissions.ActionDraftCreate
	case OpDraftModify:
		return permissions.ActionDraftModify
	case OpDraftDelete:
		return permissions.ActionDraftDelete
	case OpPublish:
		return permissions.ActionPublish
	}
	return ""
}

// Item is one entry of a batch request
type Item struct {
	Prefix      string          `json:"prefix,omitempty"`
	OwnerGroup  string          `json:"owner_group,omitempty"`
	Schema      string          `json:"schema,omitempty"`
	Contents    json.RawMessage `json:"contents,omitempty"`
	ObjectID    string          `json:"object_id,omitempty"`
	DeleteDraft bool            `json:"delete_draft,omitempty"`
}

// ItemResult is one entry of a batch response, in input order
type ItemResult struct {
	StatusCode int         `json:"status_code"`
	ObjectID   string      `json:"object_id,omitempty"`
	Data       interface{} `json:"data,omitempty"`
	Message    string      `json:"message,omitempty"`
}

// Committed reports whether the item reached its terminal success state
func (r ItemResult) Committed() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// BatchResult is the processed batch: the aggregate status plus one result
// per input item.
type BatchResult struct {
	Status  int
	Results []ItemResult
}

// ParseBatch normalizes a request body into a list of items. Both the bare
// array form and the legacy single-key wrapper form are accepted.
func ParseBatch(op Operation, body []byte) ([]Item, error) {
	var items []Item
	if err := json.Unmarshal(body, &items); err == nil {
		return items, nil
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, fmt.Errorf("batch body is neither an array nor a wrapper object")
	}
	raw, ok := wrapper[legacyKeys[op]]
	if !ok || len(wrapper) != 1 {
		return nil, fmt.Errorf("wrapper object must hold exactly the %q key", legacyKeys[op])
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("failed to parse wrapped item list: %w", err)
	}
	return items, nil
}

// AggregateStatus computes the batch status from per-item outcomes. Uniform
// outcomes surface the shared per-item status (or the class default when
// items disagree within the class); mixed outcomes are 207 Multi-Status.
func AggregateStatus(results []ItemResult) int {
	if len(results) == 0 {
		return http.StatusBadRequest
	}

	committed, rejected := 0, 0
	for _, r := range results {
		if r.Committed() {
			committed++
		} else {
			rejected++
		}
	}

	switch {
	case rejected == 0:
		return uniformStatus(results, http.StatusOK)
	case committed == 0:
		return uniformStatus(results, http.StatusBadRequest)
	default:
		return http.StatusMultiStatus
	}
}

func uniformStatus(results []ItemResult, fallback int) int {
	status := results[0].StatusCode
	for _, r := range results[1:] {
		if r.StatusCode != status {
			return fallback
		}
	}
	return status
}

// statusForDenial maps a structured denial reason to an item status
func statusForDenial(reason permissions.DenyReason) int {
	switch reason {
	case permissions.ReasonUnknownPrefix, permissions.ReasonUnknownObject:
		return http.StatusNotFound
	case permissions.ReasonNotInOwnerGroup, permissions.ReasonInsufficientPermissions:
		return http.StatusForbidden
	}
	return http.StatusForbidden
}
