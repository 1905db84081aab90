package server

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"lyrix/internal/config"
	database "lyrix/internal/db"
	"lyrix/internal/library"
	"lyrix/internal/session"
	"lyrix/internal/storage"

	"lyrix/internal/api/handlers"
	"lyrix/internal/api/middleware"
)

type Server struct {
	cfg      *config.Config
	db       *database.Client
	storage  *storage.Client
	registry *session.Registry
	router   *gin.Engine
}

func New(cfg *config.Config, db *database.Client, storage *storage.Client, registry *session.Registry) *Server {
	if cfg.Server.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode) // Set to Release for production
	}

	router := gin.New()
	router.Use(gin.Recovery(), middleware.SilentLogger("/samples"))

	s := &Server{
		cfg:      cfg,
		db:       db,
		storage:  storage,
		registry: registry,
		router:   router,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}

	// "Authorization" must be allowed so the frontend can send the JWT
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}

	s.router.Use(cors.New(corsConfig))
}

func (s *Server) setupRoutes() {
	secret := []byte(s.cfg.Server.JWTSecret)
	repo := library.NewRepository(s.db.DB)

	authHandler := handlers.NewAuthHandler(s.db.DB, secret)
	statsHandler := handlers.NewStatsHandler(repo, s.registry)
	songHandler := handlers.NewSongHandler(repo, s.storage, s.registry, s.cfg.Server.TempDir)
	sessionHandler := handlers.NewSessionHandler(repo, s.registry)

	limiter := middleware.NewRateLimiter(s.cfg.Server.SamplesPerSecond, int(s.cfg.Server.SamplesPerSecond/4)+1)

	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "lyrix"})
	})

	v1 := s.router.Group("/api/v1")
	{
		// ==========================================
		// PUBLIC ROUTES (No Token Required)
		// ==========================================
		v1.POST("/auth/login", authHandler.Login)
		v1.GET("/stats", statsHandler.GetStats)

		// ==========================================
		// PROTECTED ROUTES (JWT Token Required)
		// ==========================================
		protected := v1.Group("/")
		protected.Use(middleware.RequireAuth(secret))
		{
			anyone := middleware.RequireRole(middleware.RoleEditor, middleware.RoleViewer)
			editor := middleware.RequireRole(middleware.RoleEditor)

			// --- ADMIN ONLY ---
			protected.POST("/auth/register", middleware.RequireRole(middleware.RoleAdmin), authHandler.Register)

			// --- LIBRARY
			protected.GET("/songs", anyone, songHandler.ListSongs)
			protected.GET("/songs/:id", anyone, songHandler.GetSong)
			protected.GET("/songs/:id/corrections", anyone, songHandler.ListCorrections)
			protected.GET("/songs/:id/audio", anyone, songHandler.StreamAudio)
			protected.GET("/songs/:id/export", anyone, songHandler.DownloadExport)
			protected.POST("/songs", editor, songHandler.CreateSong)
			protected.DELETE("/songs/:id", editor, songHandler.DeleteSong)
			protected.POST("/songs/:id/audio", editor, songHandler.UploadAudio)
			protected.POST("/songs/:id/export", editor, songHandler.Export)

			// --- LIVE SESSIONS
			// Viewers may follow playback; only editors change timecodes or modes.
			protected.POST("/sessions/:songID", anyone, sessionHandler.Open)
			protected.GET("/sessions/:songID", anyone, sessionHandler.Snapshot)
			protected.GET("/sessions/:songID/diagnostics", anyone, sessionHandler.Diagnostics)
			protected.POST("/sessions/:songID/samples", anyone, limiter.Middleware(), sessionHandler.Sample)
			protected.POST("/sessions/:songID/messages", editor, sessionHandler.Message)
			protected.DELETE("/sessions/:songID", editor, sessionHandler.Close)
		}
	}
}

// Handler exposes the router, for http.Server and tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the server on the configured port
func (s *Server) Start(addr string) error {
	return s.router.Run(addr)
}
