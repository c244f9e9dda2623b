package models

import "github.com/google/uuid"

// AclMode is the effect of one ACL row. Forbid is an absolute veto: it wins
// over any Allow at any depth of the inheritance chain.
type AclMode string

const (
	AclInherit AclMode = "inherit"
	AclAllow   AclMode = "allow"
	AclDeny    AclMode = "deny"
	AclForbid  AclMode = "forbid"
)

// Valid reports whether m is one of the defined modes.
func (m AclMode) Valid() bool {
	switch m {
	case AclInherit, AclAllow, AclDeny, AclForbid:
		return true
	}
	return false
}

// Action tags are an open string set; the constants below are the actions
// the server itself checks.
type Action string

const (
	ActionRead          Action = "Read"
	ActionWrite         Action = "Write"
	ActionDelete        Action = "Delete"
	ActionReadAcl       Action = "ReadAcl"
	ActionWriteAcl      Action = "WriteAcl"
	ActionReadKeys      Action = "ReadKeys"
	ActionWriteKeys     Action = "WriteKeys"
	ActionDeleteKeys    Action = "DeleteKeys"
	ActionReadRootInfo  Action = "ReadRootInfo"
	ActionWriteRootInfo Action = "WriteRootInfo"
	ActionOwner         Action = "Owner"

	// ActionTakeOwnership is meaningful only in the global permission set.
	ActionTakeOwnership Action = "TakeOwnership"
)

// GlobalScope is the object id of the server-wide permission set, the parent
// scope of every object in the ACL inheritance chain.
var GlobalScope = uuid.Nil

// AclRow is one authorization fact: subject may (or may not) perform action
// on the object the row is attached to. Rows are keyed by
// (object, subject, action); writing an identical key replaces the row.
type AclRow struct {
	Object  uuid.UUID
	Subject uuid.UUID
	Action  Action
	Mode    AclMode
}
