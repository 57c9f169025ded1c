package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-enrollment-api/internal/middleware"
	"github.com/noah-isme/course-enrollment-api/internal/policy"
)

// Handlers groups the API handlers mounted by RegisterRoutes.
type Handlers struct {
	Auth        *AuthHandler
	Users       *UserHandler
	Courses     *CourseHandler
	Enrollments *EnrollmentHandler
}

// RegisterRoutes mounts the versioned API on group. Everything except login
// requires a bearer token; admin-only routes are rejected before reaching
// the services.
func RegisterRoutes(group *gin.RouterGroup, h Handlers, tokens middleware.TokenValidator) {
	group.POST("/auth/login", h.Auth.Login)

	secured := group.Group("")
	secured.Use(middleware.JWT(tokens))

	secured.GET("/auth/me", h.Auth.Me)

	users := secured.Group("/users")
	users.GET("", middleware.RequireAction(policy.ActionUserList), h.Users.List)
	users.POST("", middleware.RequireAction(policy.ActionUserCreate), h.Users.Create)
	users.GET("/:id", h.Users.Get)
	users.PUT("/:id", middleware.RequireAction(policy.ActionUserUpdate), h.Users.Update)
	users.DELETE("/:id", middleware.RequireAction(policy.ActionUserDelete), h.Users.Delete)

	courses := secured.Group("/courses")
	courses.GET("", h.Courses.List)
	courses.POST("", middleware.RequireAction(policy.ActionCourseCreate), h.Courses.Create)
	courses.GET("/:id", h.Courses.Get)
	courses.PUT("/:id", middleware.RequireAction(policy.ActionCourseUpdate), h.Courses.Update)
	courses.DELETE("/:id", middleware.RequireAction(policy.ActionCourseDelete), h.Courses.Delete)
	courses.GET("/:id/roster", middleware.RequireAction(policy.ActionCourseRoster), h.Courses.Roster)
	courses.GET("/:id/roster/export", middleware.RequireAction(policy.ActionCourseRoster), h.Courses.ExportRoster)

	enrollments := secured.Group("/enrollments")
	enrollments.GET("", h.Enrollments.List)
	enrollments.POST("", h.Enrollments.Create)
	enrollments.GET("/:id", h.Enrollments.Get)
	enrollments.PUT("/:id", h.Enrollments.Update)
	enrollments.DELETE("/:id", middleware.RequireAction(policy.ActionEnrollmentCancel), h.Enrollments.Delete)
	enrollments.POST("/:id/approve", middleware.RequireAction(policy.ActionEnrollmentApprove), h.Enrollments.Approve)
	enrollments.POST("/:id/reject", middleware.RequireAction(policy.ActionEnrollmentReject), h.Enrollments.Reject)

	secured.GET("/available-courses", middleware.RequireAction(policy.ActionAvailableCourses), h.Enrollments.AvailableCourses)
	secured.GET("/pending-requests", middleware.RequireAction(policy.ActionPendingRequests), h.Enrollments.PendingRequests)
}
