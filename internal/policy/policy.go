// Package policy is the single place where role and ownership rules live.
// Services ask it for a decision before touching a record and never compare
// roles themselves.
package policy

import (
	"fmt"

	"github.com/noah-isme/course-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
)

// Action names an operation subject to authorization.
type Action string

const (
	ActionCourseCreate Action = "course.create"
	ActionCourseUpdate Action = "course.update"
	ActionCourseDelete Action = "course.delete"
	ActionCourseList   Action = "course.list"
	ActionCourseView   Action = "course.view"
	ActionCourseRoster Action = "course.roster"

	ActionUserCreate Action = "user.create"
	ActionUserUpdate Action = "user.update"
	ActionUserDelete Action = "user.delete"
	ActionUserList   Action = "user.list"
	ActionUserView   Action = "user.view"

	ActionEnrollmentRequest Action = "enrollment.request"
	ActionEnrollmentDirect  Action = "enrollment.direct"
	ActionEnrollmentApprove Action = "enrollment.approve"
	ActionEnrollmentReject  Action = "enrollment.reject"
	ActionEnrollmentGrade   Action = "enrollment.grade"
	ActionEnrollmentAbandon Action = "enrollment.abandon"
	ActionEnrollmentCancel  Action = "enrollment.cancel"
	ActionEnrollmentList    Action = "enrollment.list"
	ActionEnrollmentView    Action = "enrollment.view"
	ActionAvailableCourses  Action = "enrollment.available_courses"
	ActionPendingRequests   Action = "enrollment.pending_requests"
)

// Target carries only the ownership fields of the record being acted on.
type Target struct {
	CourseInstructorID  string
	EnrollmentStudentID string
	SubjectUserID       string
}

type check func(actor models.Actor, target Target) bool

var (
	allow check = func(models.Actor, Target) bool { return true }

	ownsCourse check = func(a models.Actor, t Target) bool {
		return t.CourseInstructorID != "" && t.CourseInstructorID == a.ID
	}
	ownsEnrollment check = func(a models.Actor, t Target) bool {
		return t.EnrollmentStudentID != "" && t.EnrollmentStudentID == a.ID
	}
	isSelf check = func(a models.Actor, t Target) bool {
		return t.SubjectUserID != "" && t.SubjectUserID == a.ID
	}
)

// rules maps each action to the roles that may perform it. A role missing
// from an entry is denied.
var rules = map[Action]map[models.Role]check{
	ActionCourseCreate: {models.RoleAdmin: allow},
	ActionCourseUpdate: {models.RoleAdmin: allow},
	ActionCourseDelete: {models.RoleAdmin: allow},
	ActionCourseList:   {models.RoleAdmin: allow, models.RoleInstructor: allow, models.RoleStudent: allow},
	ActionCourseView:   {models.RoleAdmin: allow, models.RoleInstructor: ownsCourse, models.RoleStudent: allow},
	ActionCourseRoster: {models.RoleAdmin: allow, models.RoleInstructor: ownsCourse},

	ActionUserCreate: {models.RoleAdmin: allow},
	ActionUserUpdate: {models.RoleAdmin: allow},
	ActionUserDelete: {models.RoleAdmin: allow},
	ActionUserList:   {models.RoleAdmin: allow, models.RoleInstructor: allow},
	ActionUserView:   {models.RoleAdmin: allow, models.RoleInstructor: isSelf, models.RoleStudent: isSelf},

	ActionEnrollmentRequest: {models.RoleStudent: ownsEnrollment},
	ActionEnrollmentDirect:  {models.RoleAdmin: allow},
	ActionEnrollmentApprove: {models.RoleAdmin: allow},
	ActionEnrollmentReject:  {models.RoleAdmin: allow},
	ActionEnrollmentGrade:   {models.RoleAdmin: allow, models.RoleInstructor: ownsCourse},
	ActionEnrollmentAbandon: {models.RoleAdmin: allow, models.RoleInstructor: ownsCourse},
	ActionEnrollmentCancel:  {models.RoleAdmin: allow, models.RoleStudent: ownsEnrollment},
	ActionEnrollmentList:    {models.RoleAdmin: allow, models.RoleInstructor: allow, models.RoleStudent: allow},
	ActionEnrollmentView: {
		models.RoleAdmin:      allow,
		models.RoleInstructor: ownsCourse,
		models.RoleStudent:    ownsEnrollment,
	},
	ActionAvailableCourses: {models.RoleStudent: allow},
	ActionPendingRequests:  {models.RoleAdmin: allow},
}

// Allowed reports the raw decision without building an error.
func Allowed(actor models.Actor, action Action, target Target) bool {
	if actor.ID == "" || !actor.Role.Valid() {
		return false
	}
	byRole, ok := rules[action]
	if !ok {
		return false
	}
	fn, ok := byRole[actor.Role]
	if !ok {
		return false
	}
	return fn(actor, target)
}

// MayEver reports whether the actor's role can perform action on at least
// some target. It is a coarse route guard; Authorize still decides per record.
func MayEver(actor models.Actor, action Action) bool {
	if actor.ID == "" || !actor.Role.Valid() {
		return false
	}
	_, ok := rules[action][actor.Role]
	return ok
}

// Authorize returns nil when the actor may perform action on target, or a
// Forbidden error that reveals nothing about the target otherwise.
func Authorize(actor models.Actor, action Action, target Target) error {
	if Allowed(actor, action, target) {
		return nil
	}
	return Denied(action)
}

// Denied builds the error returned for a refused action.
func Denied(action Action) error {
	return appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("not allowed to perform %s", action))
}
