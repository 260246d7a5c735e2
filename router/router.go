package router

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Marcosotoladev/DhermicaApp-sub000/config"
	_ "github.com/Marcosotoladev/DhermicaApp-sub000/docs"
	"github.com/Marcosotoladev/DhermicaApp-sub000/endpoint"
	"github.com/Marcosotoladev/DhermicaApp-sub000/middleware"
	"github.com/Marcosotoladev/DhermicaApp-sub000/model"
	"github.com/Marcosotoladev/DhermicaApp-sub000/storage"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Options carries the optional collaborators of the HTTP server.
type Options struct {
	AppName    string
	ImageStore storage.ImageStore
	Metrics    *middleware.Metrics
	Logger     *zap.Logger
	// AuthLimit throttles /login and /signup per client IP.
	AuthLimit middleware.RateLimitConfig
}

// SetupRouter builds the gin engine with every route of the clinic API.
func SetupRouter(db *gorm.DB, clinic *config.ClinicConfig, opts Options) *gin.Engine {
	if clinic == nil {
		clinic = config.DefaultClinicConfig()
	}
	if opts.AuthLimit.Limit == 0 {
		opts.AuthLimit = middleware.RateLimitConfig{Limit: 10, Window: 15 * time.Minute}
	}

	r := gin.New()
	r.Use(gin.Recovery())
	if opts.Logger != nil {
		r.Use(middleware.RequestLogger(opts.Logger))
	}
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware())
		r.GET("/metrics", opts.Metrics.Handler())
	}
	r.Use(middleware.CORSMiddleware())

	r.GET("/", func(c *gin.Context) {
		name := opts.AppName
		if name == "" {
			name = "Dhermica"
		}
		c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("Welcome to %s!", name)})
	})
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/")
	api.Use(
		middleware.APITokenMiddleware(),
		middleware.DatabaseMiddleware(db),
		middleware.ClinicMiddleware(clinic),
		middleware.ImageStoreMiddleware(opts.ImageStore),
		middleware.EndpointCallLogger(),
	)

	limited := middleware.RateLimiter(opts.AuthLimit)
	api.POST("/signup", limited, endpoint.Signup)
	api.POST("/login", limited, endpoint.Login)
	api.GET("/token/validate", endpoint.ValidateToken)

	// Catalog pages are public; admins also see inactive rows.
	public := api.Group("/")
	public.Use(middleware.OptionalLoginToken())
	{
		public.GET("/treatment", endpoint.ListTreatments)
		public.GET("/treatment/:id", endpoint.GetTreatment)
		public.GET("/professional", endpoint.ListProfessionals)
		public.GET("/professional/:id", endpoint.GetProfessional)
		public.GET("/availability", endpoint.GetAvailability)
		public.GET("/review", endpoint.ListReviews)
	}

	auth := api.Group("/")
	auth.Use(middleware.ValidateLoginToken())
	{
		auth.DELETE("/logout", endpoint.Logout)
		auth.POST("/verify-password", endpoint.VerifyPassword)
		auth.PATCH("/user", endpoint.UpdateUser)
	}

	me := auth.Group("/me")
	me.Use(middleware.RequireRole(model.RoleClient))
	{
		me.GET("/client", endpoint.GetMyClient)
		me.PATCH("/client", endpoint.UpdateMyClient)
		me.GET("/appointments", endpoint.ListMyAppointments)
		me.GET("/dashboard", endpoint.MyDashboard)
		me.POST("/appointment", endpoint.BookMyAppointment)
		me.PATCH("/appointment/:id/cancel", endpoint.CancelMyAppointment)
		me.POST("/review", endpoint.CreateMyReview)
	}

	// Professionals read the agenda; everything else is admin only.
	staff := auth.Group("/")
	staff.Use(middleware.RequireRole(model.RoleAdmin, model.RoleProfessional))
	{
		staff.GET("/appointment", endpoint.ListAppointments)
		staff.GET("/appointment/:id", endpoint.GetAppointment)
		staff.GET("/professional/:id/schedule", endpoint.GetProfessionalSchedule)
	}

	admin := auth.Group("/")
	admin.Use(middleware.RequireRole(model.RoleAdmin))
	{
		admin.GET("/user", endpoint.ListUsers)
		admin.POST("/user", endpoint.AdminCreateUser)
		admin.GET("/user/:id", endpoint.GetUserInfo)
		admin.PATCH("/user/:id", endpoint.AdminUpdateUser)
		admin.DELETE("/user/:id", endpoint.DeleteUser)

		admin.GET("/client", endpoint.ListClients)
		admin.POST("/client", endpoint.CreateClient)
		admin.GET("/client/:id", endpoint.GetClient)
		admin.PATCH("/client/:id", endpoint.UpdateClient)
		admin.DELETE("/client/:id", endpoint.DeleteClient)
		admin.GET("/client/:id/history", endpoint.GetClientHistory)

		admin.POST("/professional", endpoint.CreateProfessional)
		admin.PATCH("/professional/:id", endpoint.UpdateProfessional)
		admin.DELETE("/professional/:id", endpoint.DeleteProfessional)
		admin.GET("/professional/:id/hours", endpoint.GetWorkingHours)
		admin.PUT("/professional/:id/hours", endpoint.ReplaceWorkingHours)
		admin.GET("/professional/:id/exceptions", endpoint.ListScheduleExceptions)
		admin.POST("/professional/:id/exceptions", endpoint.CreateScheduleException)
		admin.DELETE("/professional/:id/exceptions/:exceptionId", endpoint.DeleteScheduleException)

		admin.POST("/treatment", endpoint.CreateTreatment)
		admin.PATCH("/treatment/:id", endpoint.UpdateTreatment)
		admin.DELETE("/treatment/:id", endpoint.DeleteTreatment)
		admin.POST("/treatment/:id/image", endpoint.UploadTreatmentImage)

		admin.GET("/condition", endpoint.ListMedicalConditions)
		admin.POST("/condition", endpoint.CreateMedicalCondition)
		admin.PATCH("/condition/:id", endpoint.UpdateMedicalCondition)
		admin.DELETE("/condition/:id", endpoint.DeleteMedicalCondition)

		admin.POST("/appointment", endpoint.CreateAppointment)
		admin.PATCH("/appointment/:id/status", endpoint.UpdateAppointmentStatus)
		admin.PATCH("/appointment/:id/cancel", endpoint.CancelAppointment)
		admin.PATCH("/appointment/:id/reschedule", endpoint.RescheduleAppointment)
		admin.DELETE("/appointment/:id", endpoint.DeleteAppointment)

		admin.GET("/review/pending", endpoint.ListPendingReviews)
		admin.PATCH("/review/:id/moderate", endpoint.ModerateReview)

		admin.GET("/dashboard", endpoint.Dashboard)
	}

	return r
}
