package policy

import "github.com/noah-isme/course-enrollment-api/internal/models"

// ScopeKind describes which rows a listing may return.
type ScopeKind int

const (
	ScopeNone ScopeKind = iota
	ScopeAll
	// ScopeInstructor limits rows to courses owned by OwnerID.
	ScopeInstructor
	// ScopeStudent limits rows to enrollments held by OwnerID.
	ScopeStudent
)

// Scope is the row restriction applied by read queries.
type Scope struct {
	Kind    ScopeKind
	OwnerID string
}

// ListScope authorizes a listing action and returns the restriction the
// query must apply for this actor.
func ListScope(actor models.Actor, action Action) (Scope, error) {
	if err := Authorize(actor, action, Target{}); err != nil {
		return Scope{Kind: ScopeNone}, err
	}
	switch actor.Role {
	case models.RoleAdmin:
		return Scope{Kind: ScopeAll}, nil
	case models.RoleInstructor:
		return Scope{Kind: ScopeInstructor, OwnerID: actor.ID}, nil
	case models.RoleStudent:
		if action == ActionEnrollmentList {
			return Scope{Kind: ScopeStudent, OwnerID: actor.ID}, nil
		}
		return Scope{Kind: ScopeAll}, nil
	}
	return Scope{Kind: ScopeNone}, Denied(action)
}
