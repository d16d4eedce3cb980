package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"crmhub/internal/handlers"
	"crmhub/internal/middleware"
)

type Handlers struct {
	Auth       *handlers.AuthHandler
	Companies  *handlers.CompanyHandler
	Contacts   *handlers.ContactHandler
	Leads      *handlers.LeadHandler
	Pipelines  *handlers.PipelineHandler
	Deals      *handlers.DealHandler
	Activities *handlers.ActivityHandler
	Tasks      *handlers.TaskHandler
	Reports    *handlers.ReportHandler
}

func SetupRoutes(r *gin.Engine, h Handlers, authenticator middleware.Authenticator) *gin.Engine {
	// ---- public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.POST("/auth/login", h.Auth.Login)
	r.POST("/auth/signup", h.Auth.SignUp)
	r.POST("/auth/refresh", h.Auth.RefreshToken)

	// ---- protected
	r.Use(middleware.AuthMiddleware(authenticator))

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/logout", h.Auth.Logout)
		authGroup.GET("/session", h.Auth.Session)
		authGroup.GET("/events", h.Auth.Events)
	}

	profile := r.Group("/profile")
	{
		profile.GET("", h.Auth.GetProfile)
		profile.PUT("", h.Auth.UpdateProfile)
	}

	// COMPANIES
	companies := r.Group("/companies")
	{
		companies.GET("", h.Companies.List)
		companies.POST("", h.Companies.Create)
		companies.GET("/:id", h.Companies.GetByID)
		companies.PUT("/:id", h.Companies.Update)
		companies.DELETE("/:id", h.Companies.Delete)
	}

	// CONTACTS
	contacts := r.Group("/contacts")
	{
		contacts.GET("", h.Contacts.List)
		contacts.POST("", h.Contacts.Create)
		contacts.GET("/:id", h.Contacts.GetByID)
		contacts.PUT("/:id", h.Contacts.Update)
		contacts.DELETE("/:id", h.Contacts.Delete)
	}

	// LEADS
	leads := r.Group("/leads")
	{
		leads.GET("", h.Leads.List)
		leads.POST("", h.Leads.Create)
		leads.GET("/status-counts", h.Leads.StatusCounts)
		leads.GET("/:id", h.Leads.GetByID)
		leads.PUT("/:id", h.Leads.Update)
		leads.DELETE("/:id", h.Leads.Delete)
		leads.POST("/:id/convert", h.Leads.Convert)
	}

	// PIPELINES ("default" вместо id = основная воронка)
	pipelines := r.Group("/pipelines")
	{
		pipelines.GET("", h.Pipelines.List)
		pipelines.GET("/:id", h.Pipelines.GetByID)
		pipelines.POST("/:id/stages", h.Pipelines.CreateStage)
		pipelines.PUT("/:id/stages/:stage_id", h.Pipelines.UpdateStage)
		pipelines.DELETE("/:id/stages/:stage_id", h.Pipelines.DeleteStage)
	}

	// DEALS
	deals := r.Group("/deals")
	{
		deals.GET("", h.Deals.List)
		deals.POST("", h.Deals.Create)
		deals.GET("/board", h.Deals.Board)
		deals.GET("/metrics", h.Deals.Metrics)
		deals.GET("/events", h.Deals.Events)
		deals.GET("/:id", h.Deals.GetByID)
		deals.PUT("/:id", h.Deals.Update)
		deals.DELETE("/:id", h.Deals.Delete)
		deals.PUT("/:id/stage", h.Deals.Move)
	}

	// ACTIVITIES
	activities := r.Group("/activities")
	{
		activities.GET("", h.Activities.List)
		activities.POST("", h.Activities.Create)
		activities.GET("/:id", h.Activities.GetByID)
		activities.PUT("/:id", h.Activities.Update)
		activities.DELETE("/:id", h.Activities.Delete)
		activities.PATCH("/:id/status", h.Activities.UpdateStatus)
		activities.POST("/:id/complete", h.Activities.Complete)
	}

	// TASKS
	tasks := r.Group("/tasks")
	{
		tasks.GET("", h.Tasks.GetAll)
		tasks.POST("", h.Tasks.Create)
		tasks.GET("/:id", h.Tasks.GetByID)
		tasks.PUT("/:id", h.Tasks.Update)
		tasks.DELETE("/:id", h.Tasks.Delete)
		tasks.PATCH("/:id/status", h.Tasks.UpdateStatus)
	}

	// DASHBOARD / REPORTS
	r.GET("/dashboard", h.Reports.Dashboard)
	reports := r.Group("/reports")
	{
		reports.GET("/pipeline.pdf", h.Reports.PipelinePDF)
	}

	return r
}
