package app

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/noah-isme/enrollment-ledger/internal/handler"
	"github.com/noah-isme/enrollment-ledger/internal/middleware"
	"github.com/noah-isme/enrollment-ledger/internal/models"
	"github.com/noah-isme/enrollment-ledger/pkg/config"
	"github.com/noah-isme/enrollment-ledger/pkg/logger"
	corsmiddleware "github.com/noah-isme/enrollment-ledger/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/enrollment-ledger/pkg/middleware/requestid"
)

// NewRouter registers every HTTP route on a fresh gin engine.
func NewRouter(c *Container) *gin.Engine {
	cfg := c.Config
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(c.Logger))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(c.Metrics))

	health := handler.NewHealthHandler(c.Tx, c.Metrics)
	r.GET("/health", health.Health)
	r.GET("/ready", health.Ready)
	if cfg.Metrics.Enabled {
		r.GET("/metrics", health.Prometheus)
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	enrollments := handler.NewEnrollmentHandler(c.Ledger, c.Queries)
	grades := handler.NewGradeHandler(c.Grades, c.Audit)
	audit := handler.NewAuditHandler(c.Audit)
	students := handler.NewStudentHandler(c.Directory)
	courses := handler.NewCourseHandler(c.Directory)

	api := r.Group(cfg.APIPrefix)
	if cfg.JWT.RequireAuth {
		api.Use(middleware.JWT(c.Auth))
	} else {
		api.Use(middleware.OptionalJWT(c.Auth))
	}
	if c.Idempotency != nil {
		api.Use(middleware.Idempotency(c.Idempotency, cfg.Idempotency.TTL, c.Logger, c.Metrics))
	}

	write := []gin.HandlerFunc{}
	if cfg.JWT.RequireAuth {
		write = append(write, middleware.RequireRoles(models.RoleAdmin, models.RoleRegistrar))
	}
	mutate := func(h gin.HandlerFunc) []gin.HandlerFunc {
		return append(append([]gin.HandlerFunc{}, write...), h)
	}

	api.POST("/enrollments", mutate(enrollments.Enroll)...)

	api.GET("/students", students.List)
	api.POST("/students", mutate(students.Create)...)
	api.GET("/students/:id", students.Get)
	api.DELETE("/students/:id", mutate(students.Delete)...)
	api.PATCH("/students/:id/email", mutate(students.UpdateEmail)...)
	api.GET("/students/:id/courses", enrollments.CoursesForStudent)
	api.DELETE("/students/:id/courses/:courseId", mutate(enrollments.Withdraw)...)
	api.PUT("/students/:id/courses/:courseId/grade", mutate(grades.SetGrade)...)
	api.GET("/students/:id/courses/:courseId/grade-history", grades.History)

	api.GET("/courses", courses.List)
	api.POST("/courses", mutate(courses.Create)...)
	api.GET("/courses/:id", courses.Get)
	api.DELETE("/courses/:id", mutate(courses.Delete)...)
	api.GET("/courses/:id/students", enrollments.StudentsForCourse)
	api.GET("/courses/:id/enrollment-count", enrollments.EnrollmentCount)

	api.GET("/audit/grades", audit.Recent)
	api.GET("/audit/grades/export", audit.Export)

	return r
}
