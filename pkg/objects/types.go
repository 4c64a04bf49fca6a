package objects

import (
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates the object does not exist in the addressed table
	ErrNotFound = errors.New("object not found")
	// ErrInvalidID indicates the identifier does not match the object ID grammar
	ErrInvalidID = errors.New("invalid object identifier")
	// ErrDuplicate indicates the draft slot is already occupied
	ErrDuplicate = errors.New("object already exists")
)

// State is the lifecycle table an object lives in
type State string

const (
	StateDraft     State = "DRAFT"
	StatePublished State = "PUBLISHED"
)

// Object is a stored draft or published object
type Object struct {
	ObjectID   string          `json:"object_id"`
	Prefix     string          `json:"prefix"`
	Sequence   int64           `json:"sequence"`
	Version    int64           `json:"version"`
	State      State           `json:"state"`
	SchemaID   string          `json:"schema_id"`
	Contents   json.RawMessage `json:"contents"`
	OwnerGroup string          `json:"owner_group"`
	LastUpdate time.Time       `json:"last_update"`
}
