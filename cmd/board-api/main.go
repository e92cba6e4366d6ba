package main

import (
	"github.com/MicahParks/keyfunc"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"lini/api"
	"lini/config"
	"lini/storage"
)

func main() {
	cfg, err := config.LoadService(nil)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := log.New()
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
		logger.SetLevel(log.DebugLevel)
	}

	var backend storage.Backend
	switch cfg.Backend {
	case config.BackendTables:
		ids, err := storage.NewIDSource(cfg.InstanceID)
		if err != nil {
			log.Fatalf("storage: %v", err)
		}
		if cfg.InstanceID < 0 {
			log.WithField("instance", ids.Instance()).Warn("INSTANCE_ID not set; picked one at random")
		}
		backend, err = storage.NewTables(cfg.ConnectionString, cfg.BoardsTable, cfg.ListsTable, cfg.CardsTable, ids)
		if err != nil {
			log.Fatalf("storage: %v", err)
		}
	default:
		log.Warn("using in-memory board store; boards are lost on restart")
		backend = storage.NewMemory()
	}
	store := storage.New(backend)

	var auth *api.Auth
	if cfg.AuthTestMode {
		auth = api.NewTestAuth([]byte(cfg.TestSecret))
	} else {
		jwks, err := keyfunc.Get(cfg.JWKSURL(), keyfunc.Options{})
		if err != nil {
			log.Fatalf("jwks: %v", err)
		}
		auth = api.NewAuth(jwks, cfg.AuthAudience, cfg.Issuer(), cfg.JWKSCacheTTL)
	}

	var deduper api.Deduper
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		deduper = api.NewRedisDeduper(redis.NewClient(opts), cfg.DedupeTTL)
	}

	e := echo.New()
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, api.HeaderCSRFToken},
	}))
	api.Register(e, store, auth, deduper, logger)

	log.WithFields(log.Fields{"addr": cfg.ListenAddr, "backend": cfg.Backend}).Info("board api starting")
	e.Logger.Fatal(e.Start(cfg.ListenAddr))
}
