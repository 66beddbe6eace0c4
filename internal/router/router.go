package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/evalhub/exam-eval-api/internal/handler"
	"github.com/evalhub/exam-eval-api/internal/middleware"
	"github.com/evalhub/exam-eval-api/internal/models"
	"github.com/evalhub/exam-eval-api/internal/service"
	"github.com/evalhub/exam-eval-api/pkg/config"
	"github.com/evalhub/exam-eval-api/pkg/logger"
	corsmiddleware "github.com/evalhub/exam-eval-api/pkg/middleware/cors"
	reqidmiddleware "github.com/evalhub/exam-eval-api/pkg/middleware/requestid"
)

// Deps carries everything the HTTP surface needs.
type Deps struct {
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *service.MetricsService

	Auth     *service.AuthService
	OTP      *service.OTPService
	Papers   *service.PaperService
	Spocs    *service.SpocService
	Teachers *service.TeacherService
	Subjects *service.SubjectService
	Tickets  *service.TicketService
	Users    *service.UserService
}

// New assembles the gin engine with the full middleware chain and routes.
func New(deps Deps) *gin.Engine {
	if deps.Config.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(deps.Logger))
	r.Use(corsmiddleware.New(deps.Config.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.Metrics))

	metricsHandler := handler.NewMetricsHandler(deps.Metrics)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if deps.Config.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authHandler := handler.NewAuthHandler(deps.Auth)
	otpHandler := handler.NewOTPHandler(deps.OTP)
	paperHandler := handler.NewPaperHandler(deps.Papers)
	spocHandler := handler.NewSpocHandler(deps.Spocs)
	teacherHandler := handler.NewTeacherHandler(deps.Teachers)
	subjectHandler := handler.NewSubjectHandler(deps.Subjects)
	ticketHandler := handler.NewTicketHandler(deps.Tickets)
	userHandler := handler.NewUserHandler(deps.Users)

	authRequired := middleware.JWT(deps.Auth)

	api := r.Group(deps.Config.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/otp/send", otpHandler.Send)
		auth.POST("/otp/verify", otpHandler.Verify)
		auth.POST("/password/reset", otpHandler.ResetPassword)
		auth.GET("/me", authRequired, authHandler.Me)
	}

	// Released results are looked up by printed roll number, with no session.
	api.GET("/papers/results/:rollNo", paperHandler.Results)

	papers := api.Group("/papers", authRequired)
	{
		papers.POST("", middleware.RequireRoles(models.RoleAdmin, models.RoleSpoc), paperHandler.Upload)
		papers.GET("", paperHandler.List)
		papers.GET("/:id", paperHandler.Get)
		papers.GET("/:id/download", paperHandler.Download)
		papers.PATCH("/:id/status", middleware.RequireRoles(models.RoleTeacher, models.RoleAdmin), paperHandler.UpdateStatus)
	}

	spocs := api.Group("/spocs", authRequired)
	{
		spocs.POST("", middleware.RequireRoles(models.RoleAdmin), spocHandler.Create)
		spocs.GET("", middleware.RequireRoles(models.RoleAdmin, models.RoleSpoc), spocHandler.List)
		spocs.GET("/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleSpoc), spocHandler.Get)
		spocs.PATCH("/:id", middleware.RequireRoles(models.RoleAdmin), spocHandler.Update)
		spocs.GET("/:id/students", middleware.RequireRoles(models.RoleAdmin, models.RoleSpoc), spocHandler.Students)
		spocs.PUT("/:id/students/:studentId", middleware.RequireRoles(models.RoleAdmin, models.RoleSpoc), spocHandler.AddStudent)
		spocs.DELETE("/:id/students/:studentId", middleware.RequireRoles(models.RoleAdmin, models.RoleSpoc), spocHandler.RemoveStudent)
		spocs.GET("/:id/report", middleware.RequirePermission(models.PermViewReports), spocHandler.Report)
	}

	teachers := api.Group("/teachers", authRequired)
	{
		teachers.POST("", middleware.RequireRoles(models.RoleAdmin), teacherHandler.Create)
		teachers.GET("", middleware.RequireRoles(models.RoleAdmin, models.RoleSpoc), teacherHandler.List)
		teachers.GET("/:id", teacherHandler.Get)
		teachers.PATCH("/:id", middleware.RequireRoles(models.RoleAdmin), teacherHandler.Update)
		teachers.PUT("/:id/papers/:paperId", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), teacherHandler.AssignPaper)
	}

	subjects := api.Group("/subjects", authRequired)
	{
		subjects.POST("", middleware.RequireRoles(models.RoleAdmin), subjectHandler.Create)
		subjects.GET("", subjectHandler.List)
		subjects.GET("/:id", subjectHandler.Get)
		subjects.POST("/:id/spocs", middleware.RequireRoles(models.RoleAdmin), subjectHandler.AddSpocs)
		subjects.POST("/:id/admins", middleware.RequireRoles(models.RoleAdmin), subjectHandler.AddAdmins)
	}

	tickets := api.Group("/tickets", authRequired)
	{
		tickets.POST("", middleware.RequireRoles(models.RoleStudent), ticketHandler.Create)
		tickets.GET("", ticketHandler.List)
		tickets.GET("/:id", ticketHandler.Get)
		tickets.POST("/:id/respond", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher, models.RoleSpoc), ticketHandler.Respond)
	}

	users := api.Group("/users", authRequired, middleware.RequirePermission(models.PermManageUsers))
	{
		users.GET("", userHandler.List)
		users.GET("/:id", userHandler.Get)
		users.PATCH("/:id", userHandler.Update)
		users.POST("/:id/password", userHandler.ResetPassword)
		users.DELETE("/:id", userHandler.Delete)
	}

	return r
}
