package permissions

// Distinguished identities and groups
const (
	// AnonUser is the anonymous identity; it holds view on published tables only
	AnonUser = "anon"
	// WheelUser is the superuser identity bypassing all checks
	WheelUser = "wheel"
	// WheelGroup confers superuser through membership
	WheelGroup = "wheel"
	// PrefixAdminsGroup gates prefix administration
	PrefixAdminsGroup = "prefix_admins"
)

// Action is an operation subject to authorization
type Action string

const (
	ActionDraftCreate  Action = "draft_create"
	ActionDraftModify  Action = "draft_modify"
	ActionDraftDelete  Action = "draft_delete"
	ActionPublish      Action = "publish"
	ActionPrefixCreate Action = "prefix_create"
	ActionPrefixModify Action = "prefix_modify"
	ActionPrefixDelete Action = "prefix_delete"
)

// IsPrefixAdmin reports whether the action administers a prefix namespace
func (a Action) IsPrefixAdmin() bool {
	switch a {
	case ActionPrefixCreate, ActionPrefixModify, ActionPrefixDelete:
		return true
	}
	return false
}

// TableClass distinguishes the draft and publish permission tables
type TableClass string

const (
	ClassDraft   TableClass = "draft"
	ClassPublish TableClass = "publish"
)

// Capability is a permission-checkable verb on a table class
type Capability string

const (
	CapabilityAdd    Capability = "add"
	CapabilityChange Capability = "change"
	CapabilityDelete Capability = "delete"
	CapabilityView   Capability = "view"
)

// binding ties an object action to the capability its owning group must hold
type binding struct {
	Class      TableClass
	Capability Capability
}

// objectBindings is the compile-time action table. Object lifecycle actions
// are a closed set; no string-keyed dispatch happens at request time.
var objectBindings = map[Action]binding{
	ActionDraftCreate: {ClassDraft, CapabilityAdd},
	ActionDraftModify: {ClassDraft, CapabilityChange},
	ActionDraftDelete: {ClassDraft, CapabilityDelete},
	ActionPublish:     {ClassPublish, CapabilityAdd},
}

// DenyReason is the structured cause of a denial
type DenyReason string

const (
	ReasonNotInOwnerGroup         DenyReason = "NOT_IN_OWNER_GROUP"
	ReasonInsufficientPermissions DenyReason = "INSUFFICIENT_PERMISSIONS"
	ReasonUnknownPrefix           DenyReason = "UNKNOWN_PREFIX"
	ReasonUnknownObject           DenyReason = "UNKNOWN_OBJECT"
)

// Decision is the outcome of an authorization check
type Decision struct {
	Allowed bool       `json:"allowed"`
	Reason  DenyReason `json:"reason,omitempty"`
	Detail  string     `json:"detail,omitempty"`
}

// Allow returns a permitting decision
func Allow() Decision {
	return Decision{Allowed: true}
}

// Deny returns a denial with a structured reason
func Deny(reason DenyReason, detail string) Decision {
	return Decision{Allowed: false, Reason: reason, Detail: detail}
}

// Identity is a resolved caller: a username plus its group memberships.
// The core never parses raw credentials; the auth layer builds this.
type Identity struct {
	Username string   `json:"username"`
	Groups   []string `json:"groups"`
}

// IsAnonymous reports whether the identity is the anonymous caller
func (i Identity) IsAnonymous() bool {
	return i.Username == "" || i.Username == AnonUser
}

// IsSuperuser reports whether the identity bypasses all checks
func (i Identity) IsSuperuser() bool {
	return i.Username == WheelUser || i.IsMember(WheelGroup)
}

// IsMember reports whether the identity belongs to the named group
func (i Identity) IsMember(group string) bool {
	for _, g := range i.Groups {
		if g == group {
			return true
		}
	}
	return false
}

// Target names what an action operates on. For draft_create only the prefix
// and intended owner group are known; for actions on existing objects the
// caller resolves the object first and carries its owning group here. An
// object target with an empty owner group marks an unresolvable object.
type Target struct {
	Prefix     string
	OwnerGroup string
	ObjectID   string
}
