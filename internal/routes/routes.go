package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/simon-dulai/optometry-purchase-predictor/internal/analytics"
	"github.com/simon-dulai/optometry-purchase-predictor/internal/archive"
	"github.com/simon-dulai/optometry-purchase-predictor/internal/config"
	"github.com/simon-dulai/optometry-purchase-predictor/internal/events"
	"github.com/simon-dulai/optometry-purchase-predictor/internal/handlers"
	"github.com/simon-dulai/optometry-purchase-predictor/internal/ingest"
	"github.com/simon-dulai/optometry-purchase-predictor/internal/middleware"
	"github.com/simon-dulai/optometry-purchase-predictor/internal/scoring"
)

// Dependencies are the services the handlers are built from.
type Dependencies struct {
	DB       *gorm.DB
	Cfg      *config.Config
	Scorer   *scoring.Scorer
	Pipeline *ingest.Pipeline
	Reader   *analytics.Reader
	Archive  archive.Store
	Events   events.Publisher
	Gatherer prometheus.Gatherer
}

// SetupRoutes configures the application routes.
func SetupRoutes(router *gin.Engine, deps Dependencies) {
	authHandler := handlers.NewAuthHandler(deps.DB, deps.Cfg, deps.Events)
	uploadHandler := handlers.NewUploadHandler(deps.Pipeline, deps.Archive, deps.Cfg.MaxUploadBytes)
	patientHandler := handlers.NewPatientHandler(deps.Reader)
	predictHandler := handlers.NewPredictHandler(deps.Scorer)
	demoHandler := handlers.NewDemoHandler()
	dataHandler := handlers.NewDataHandler(deps.DB, deps.Events)
	healthHandler := handlers.NewHealthHandler(deps.DB, deps.Scorer)

	// Public routes
	router.GET("/health", healthHandler.Health)
	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}
	router.POST("/register", authHandler.Register)
	router.POST("/login", authHandler.Login)
	router.POST("/predict", predictHandler.Predict)

	demoRoutes := router.Group("/demo/csv")
	{
		demoRoutes.GET("/upcoming", demoHandler.UpcomingCSV)
		demoRoutes.GET("/past", demoHandler.PastCSV)
	}

	// Authenticated routes, scoped to the token's tenant
	private := router.Group("")
	private.Use(middleware.AuthMiddleware(deps.Cfg))
	{
		private.GET("/me", authHandler.GetProfile)
		private.DELETE("/me", authHandler.DeleteAccount)

		uploadRoutes := private.Group("/upload")
		{
			uploadRoutes.POST("/upcoming", uploadHandler.UploadUpcoming)
			uploadRoutes.POST("/past", uploadHandler.UploadPast)
		}

		private.GET("/patients", patientHandler.ListPatients)
		private.GET("/patients/date/:date", patientHandler.PatientsByDate)
		private.GET("/past/date/:date", patientHandler.PastByDate)

		analyticsRoutes := private.Group("/analytics")
		{
			analyticsRoutes.GET("/weekly", patientHandler.WeeklyForecast)
			analyticsRoutes.GET("/monthly", patientHandler.MonthlyComparison)
		}

		private.DELETE("/data/clear", dataHandler.ClearData)
	}
}
