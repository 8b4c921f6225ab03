package server

import (
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"chatmart/internal/config"
	custommiddleware "chatmart/internal/middleware"
	"chatmart/internal/notifier"
	"chatmart/internal/repository"
	"chatmart/internal/service"
	"chatmart/internal/transport"
)

const catalogCacheTTL = 5 * time.Minute

// AdminTokenHeader authorizes admin routes. The token is shared with the
// bot gateway's admin panel.
const AdminTokenHeader = "X-Admin-Token"

type Server struct {
	*http.Server
	config      *config.Config
	logger      *zap.Logger
	db          *sql.DB
	redisClient *redis.Client
}

func NewServer(cfg *config.Config, logger *zap.Logger, db *sql.DB, redisClient *redis.Client) *Server {
	router := chi.NewRouter()

	router.Use(custommiddleware.DefaultMiddlewareStack()...)
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(nil, cfg.Server.Env == "development"))

	if redisClient != nil {
		router.Use(custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
			RequestsPerWindow: 100,
			Window:            time.Minute,
			KeyPrefix:         "ratelimit",
		}, logger))
	}

	// Health check endpoint
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Initialize repositories
	var productRepo repository.ProductRepository = repository.NewProductRepository(db)
	if redisClient != nil {
		productRepo = repository.NewCachedProductRepository(productRepo, redisClient, catalogCacheTTL, logger)
	}
	cartRepo := repository.NewCartRepository(db)
	promocodeRepo := repository.NewPromocodeRepository(db)

	// Initialize notifier
	var alertNotifier notifier.Notifier
	if cfg.Notifier.BotToken != "" {
		alertNotifier = notifier.NewTelegramNotifier(cfg.Notifier.BotToken, cfg.Notifier.AdminChatID, logger)
	} else {
		alertNotifier = notifier.NewLogNotifier(logger)
	}

	// Initialize services
	catalogService := service.NewCatalogService(productRepo, logger)
	inventoryService := service.NewInventoryService(productRepo, alertNotifier, cfg.Marketplace, logger)
	promocodeService := service.NewPromocodeService(promocodeRepo, cfg.Marketplace, logger)
	cartService := service.NewCartService(cartRepo, productRepo, promocodeService, cfg.Marketplace, logger)

	// Initialize handlers
	productHandler := transport.NewProductHandler(catalogService, inventoryService, logger)
	cartHandler := transport.NewCartHandler(cartService, logger)
	promocodeHandler := transport.NewPromocodeHandler(promocodeService, logger)

	adminMiddleware := AdminTokenMiddleware(cfg.Server.AdminToken, logger)

	// Register routes
	productHandler.RegisterRoutes(router, adminMiddleware)
	cartHandler.RegisterRoutes(router)
	promocodeHandler.RegisterRoutes(router, adminMiddleware)

	server := &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config:      cfg,
		logger:      logger,
		db:          db,
		redisClient: redisClient,
	}

	return server
}

// AdminTokenMiddleware guards admin routes with a shared token. With no
// token configured every admin request is rejected.
func AdminTokenMiddleware(token string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" || r.Header.Get(AdminTokenHeader) != token {
				logger.Warn("admin request rejected",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				w.Write([]byte(`{"error":{"code":"Forbidden","message":"admin access required"}}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			s.logger.Error("Failed to close redis connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
