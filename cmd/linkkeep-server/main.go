package main

import (
	"flag"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/linkkeep/linkkeep/pkg/linkkeep/apikeys"
	"github.com/linkkeep/linkkeep/pkg/linkkeep/bus"
	"github.com/linkkeep/linkkeep/pkg/linkkeep/cache"
	"github.com/linkkeep/linkkeep/pkg/linkkeep/catalog"
	"github.com/linkkeep/linkkeep/pkg/linkkeep/categories"
	"github.com/linkkeep/linkkeep/pkg/linkkeep/config"
	"github.com/linkkeep/linkkeep/pkg/linkkeep/database"
	"github.com/linkkeep/linkkeep/pkg/linkkeep/importer"
	"github.com/linkkeep/linkkeep/pkg/linkkeep/links"
	"github.com/linkkeep/linkkeep/pkg/linkkeep/logger"
	"github.com/linkkeep/linkkeep/pkg/linkkeep/models"
	"github.com/linkkeep/linkkeep/pkg/linkkeep/notify"
	"github.com/linkkeep/linkkeep/pkg/linkkeep/resolver"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog := logger.New(cfg.LogLevel, cfg.PrettyLog)
	defer zlog.Sync()

	db, err := database.Connect(cfg.DBPath)
	if err != nil {
		zlog.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := models.AutoMigrate(db); err != nil {
		zlog.Fatal("Failed to run migrations", zap.Error(err))
	}
	zlog.Info("Database migrations completed", zap.String("path", cfg.DBPath))

	changeBus := bus.New(zlog)
	store := catalog.New(db, changeBus, zlog)
	if err := store.EnsureDefaultCategory(); err != nil {
		zlog.Fatal("Failed to ensure default category", zap.Error(err))
	}

	images, err := cache.NewImageCache(cfg.ThumbnailCacheSize)
	if err != nil {
		zlog.Fatal("Failed to create thumbnail cache", zap.Error(err))
	}
	res := resolver.New(images, &http.Client{Timeout: cfg.ResolverTimeout}, zlog)
	scheduler := notify.NewLogScheduler(zlog)

	linkCache := cache.New(store, res, images, scheduler, zlog)
	linkCache.Bind(changeBus)
	linkCache.RefreshFromStore()

	if !cfg.PrettyLog {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		categories.NewHandler(store).RegisterRoutes(api)
		links.NewHandler(store, linkCache, scheduler).RegisterRoutes(api)
		apikeys.NewHandler(db).RegisterRoutes(api)

		// Bulk import is the one surface other processes call, so it is
		// the one behind key auth.
		importer.NewHandler(store).RegisterRoutes(api.Group("", apikeys.AuthMiddleware(db)))
	}

	zlog.Info("Starting server", zap.String("addr", cfg.ListenAddr))
	if err := r.Run(cfg.ListenAddr); err != nil {
		zlog.Fatal("Server exited", zap.Error(err))
	}
}
