package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cfg "github.com/example/streamflix/internal/config"
	"github.com/gorilla/mux"
	"github.com/graphql-go/graphql"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	_ "modernc.org/sqlite"
)

var jwtSecret []byte

type App struct {
	Store          Store
	Log            *zap.Logger
	Catalog        *CatalogClient
	AllowedOrigins []string
	rateLimiter    *RateLimiter
	schema         graphql.Schema
}

// NewApp wires the handler dependencies and builds the GraphQL schema.
func NewApp(store Store, logger *zap.Logger, catalog *CatalogClient, origins []string, authRatePerMin int) (*App, error) {
	a := &App{
		Store:          store,
		Log:            logger,
		Catalog:        catalog,
		AllowedOrigins: origins,
		rateLimiter:    NewRateLimiter(authRatePerMin),
	}
	schema, err := a.newGraphQLSchema()
	if err != nil {
		return nil, err
	}
	a.schema = schema
	return a, nil
}

// Router assembles the full route table with the shared middleware chain.
func (a *App) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(SecurityHeaders)
	r.Use(RequestID)
	r.Use(a.Logging)
	r.Use(a.CORS)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(200)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")
	r.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if p, ok := a.Store.(interface{ ping() bool }); ok {
			if !p.ping() {
				w.WriteHeader(503)
				w.Write([]byte(`{"ready":false}`))
				return
			}
		}
		w.WriteHeader(200)
		w.Write([]byte(`{"ready":true}`))
	}).Methods("GET")

	// Authentication endpoints; signup/login are rate limited per client IP.
	auth := r.PathPrefix("/api/auth").Subrouter()
	auth.Handle("/signup", a.RateLimit(http.HandlerFunc(a.HandleSignup))).Methods("POST")
	auth.Handle("/login", a.RateLimit(http.HandlerFunc(a.HandleLogin))).Methods("POST")
	auth.HandleFunc("/logout", a.HandleLogout).Methods("POST")
	auth.HandleFunc("/me", a.HandleMe).Methods("GET")

	// Profile registry endpoints require an authenticated session.
	profiles := r.PathPrefix("/api/profiles").Subrouter()
	profiles.Use(a.SessionAuth)
	profiles.HandleFunc("", a.HandleCreateProfile).Methods("POST")
	profiles.HandleFunc("/{id}", a.HandleDeleteProfile).Methods("DELETE")
	profiles.HandleFunc("/{id}", a.HandleUpdateProfile).Methods("PUT")

	// GraphQL boundary; auth travels in the Authorization header.
	r.HandleFunc("/graphql", a.HandleGraphQL).Methods("POST")

	// Catalog proxy
	r.HandleFunc("/api/trending", a.catalogHandler("/trending/all/day")).Methods("GET")
	r.HandleFunc("/api/movies/popular", a.catalogHandler("/movie/popular")).Methods("GET")
	r.HandleFunc("/api/movies/top_rated", a.catalogHandler("/movie/top_rated")).Methods("GET")
	r.HandleFunc("/api/movies/now_playing", a.catalogHandler("/movie/now_playing")).Methods("GET")
	r.HandleFunc("/api/movies/upcoming", a.catalogHandler("/movie/upcoming")).Methods("GET")
	r.HandleFunc("/api/tv/popular", a.catalogHandler("/tv/popular")).Methods("GET")
	r.HandleFunc("/api/tv/top_rated", a.catalogHandler("/tv/top_rated")).Methods("GET")
	r.HandleFunc("/api/movie/{id}", a.catalogIDHandler("/movie/%d")).Methods("GET")
	r.HandleFunc("/api/movie/{id}/similar", a.catalogIDHandler("/movie/%d/similar")).Methods("GET")
	r.HandleFunc("/api/tv/{id}", a.catalogIDHandler("/tv/%d")).Methods("GET")
	r.HandleFunc("/api/tv/{id}/similar", a.catalogIDHandler("/tv/%d/similar")).Methods("GET")
	r.HandleFunc("/api/genres/movie", a.catalogHandler("/genre/movie/list")).Methods("GET")
	r.HandleFunc("/api/genres/tv", a.catalogHandler("/genre/tv/list")).Methods("GET")
	r.HandleFunc("/api/search", a.HandleSearch).Methods("GET")

	return r
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write json: %v", err)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}

func main() {
	c, err := cfg.New()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	jwtSecret = []byte(c.JwtSecret)

	logger, err := newLogger(c.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	var store Store
	switch c.DBAdapter {
	case "sqlite":
		s, err := NewSQLiteStore(c.SQLiteFile)
		if err != nil {
			logger.Fatal("sqlite init", zap.Error(err))
		}
		store = s
	case "postgres":
		dsn, err := c.BuildPostgresDSN()
		if err != nil {
			logger.Fatal("postgres config", zap.Error(err))
		}
		logger.Info("applying database migrations")
		if err := ApplyMigrations("./migrations", dsn); err != nil {
			logger.Warn("migrations", zap.Error(err))
		}
		p, err := NewPostgresStore(dsn)
		if err != nil {
			logger.Fatal("postgres init", zap.Error(err))
		}
		store = p
		logger.Info("connected to PostgreSQL")
	case "memory":
		logger.Info("using in-memory store (not recommended for production)")
		store = NewMemStore()
	default:
		logger.Fatal("unsupported DB_ADAPTER", zap.String("adapter", c.DBAdapter))
	}

	catalog := NewCatalogClient(c.CatalogBaseURL, c.CatalogAPIKey, c.CatalogCacheTTL)
	app, err := NewApp(store, logger, catalog, c.AllowedOrigins, c.AuthRatePerMin)
	if err != nil {
		logger.Fatal("app init", zap.Error(err))
	}

	srv := &http.Server{Handler: app.Router(), Addr: ":" + c.Port, ReadTimeout: 5 * time.Second, WriteTimeout: 15 * time.Second}

	go func() {
		logger.Info("server starting", zap.String("port", c.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if closer, ok := app.Store.(interface{ close() error }); ok {
		_ = closer.close()
	}
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("shutdown failed", zap.Error(err))
	}
	logger.Info("server exited")
}
