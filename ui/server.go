package ui

import (
	"net/http"

	"attrition/adapters/excel"
	"attrition/app"
	"attrition/internal/auth"
	"attrition/ui/middleware"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Deps are the services the API serves
type Deps struct {
	Batches        *app.BatchService
	Queries        *app.QueryService
	Insights       *app.InsightGenerator
	Reader         *excel.DataReader
	Auth           *auth.Authenticator // nil disables login and token checks
	AllowedOrigins []string
	Logger         zerolog.Logger
}

// Server represents the JSON API for the attrition dashboard
type Server struct {
	router   *gin.Engine
	batches  *app.BatchService
	queries  *app.QueryService
	insights *app.InsightGenerator
	reader   *excel.DataReader
	auth     *auth.Authenticator
	origins  []string
	logger   zerolog.Logger
}

// NewServer creates a new API server instance
func NewServer(deps Deps) *Server {
	s := &Server{
		router:   gin.New(),
		batches:  deps.Batches,
		queries:  deps.Queries,
		insights: deps.Insights,
		reader:   deps.Reader,
		auth:     deps.Auth,
		origins:  deps.AllowedOrigins,
		logger:   deps.Logger.With().Str("component", "api").Logger(),
	}
	s.router.MaxMultipartMemory = 8 << 20
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// Handler returns the API wrapped with CORS handling
func (s *Server) Handler() http.Handler {
	return middleware.CORS(s.origins)(s.router)
}

func (s *Server) setupRoutes() {
	api := s.router.Group("/api")

	if s.auth != nil {
		api.POST("/login", s.handleLogin)
		api.Use(auth.Middleware(s.auth, s.logger))
	}

	api.POST("/datasets", s.handleUpload)
	api.GET("/datasets", s.handleListDatasets)
	api.DELETE("/datasets/:id", s.handleDeleteDataset)

	ds := api.Group("/datasets/:id")
	ds.GET("", s.handleGetDataset)
	ds.GET("/schema", s.handleSchema)
	ds.GET("/summary", s.handleSummary)
	ds.GET("/employees/:eid", s.handleEmployee)
	ds.POST("/query", s.handleQuery)
	ds.POST("/employees/:eid/insight", s.handleInsight)
	ds.POST("/insights/at-risk", s.handleAtRiskInsights)
	ds.GET("/export", s.handleExport)
}
