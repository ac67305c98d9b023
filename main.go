package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	_ "modernc.org/sqlite"

	cfg "github.com/example/nextarget/internal/config"
)

// App wires the components together: user store, token issuer, OAuth state
// store, identity providers, and the completion client.
type App struct {
	DB                DB
	Tokens            *TokenIssuer
	States            *StateStore
	Providers         map[string]Provider
	Completer         Completer
	ClientCallbackURL string

	httpLimiter *RateLimiter
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

// Router builds the full route table with the middleware chain applied.
func (a *App) Router() *mux.Router {
	r := mux.NewRouter()

	r.Use(SecurityHeaders)
	r.Use(a.Logging)
	r.Use(a.CORS)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(200)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")
	r.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if p, ok := a.DB.(interface{ ping() bool }); ok {
			if !p.ping() {
				w.WriteHeader(503)
				w.Write([]byte(`{"ready":false}`))
				return
			}
		}
		w.WriteHeader(200)
		w.Write([]byte(`{"ready":true}`))
	}).Methods("GET")

	// Public auth endpoints
	r.HandleFunc("/auth/register", a.HandleRegister).Methods("POST")
	r.HandleFunc("/auth/login", a.HandleLogin).Methods("POST")
	r.HandleFunc("/auth/token/exchange", a.HandleTokenExchange).Methods("POST")
	r.HandleFunc("/auth/{provider}/start", a.HandleOAuthStart).Methods("GET")
	r.HandleFunc("/auth/{provider}/callback", a.HandleOAuthCallback).Methods("GET")

	// Bearer-authenticated endpoints
	api := r.NewRoute().Subrouter()
	api.Use(a.BearerAuth)
	api.Use(a.RateLimit)
	api.HandleFunc("/users/me", a.HandleMe).Methods("GET")
	api.HandleFunc("/ai/completions", a.HandleCompletion).Methods("POST")
	api.HandleFunc("/coach/advice", a.HandleAdvice).Methods("POST")

	return r
}

func main() {
	c, err := cfg.New()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var db DB
	switch c.DBAdapter {
	case "sqlite":
		s, err := NewSQLiteDB(c.SQLiteFile)
		if err != nil {
			log.Fatalf("sqlite init: %v", err)
		}
		db = s
	case "postgres":
		dsn, err := c.BuildPostgresDSN()
		if err != nil {
			log.Fatalf("postgres config error: %v", err)
		}
		if err := ApplyMigrations("./migrations", dsn); err != nil {
			log.Printf("migrations warning: %v", err)
		}
		p, err := NewPostgresDB(dsn)
		if err != nil {
			log.Fatalf("postgres init: %v", err)
		}
		db = p
		log.Println("Connected to PostgreSQL database")
	case "memory":
		log.Println("Using in-memory database (not recommended for production)")
		db = NewMemoryDB()
	default:
		log.Fatalf("unsupported DB_ADAPTER: %s (supported: postgres, sqlite, memory)", c.DBAdapter)
	}

	issuer, err := NewTokenIssuer(c.JWTSecret, c.JWTAlgorithm, c.AccessTokenTTL, c.CallbackTokenTTL)
	if err != nil {
		log.Fatalf("token issuer: %v", err)
	}

	app := &App{
		DB:     db,
		Tokens: issuer,
		States: NewStateStore(),
		Providers: map[string]Provider{
			"google":   NewGoogleProvider(c.Google),
			"facebook": NewFacebookProvider(c.Facebook),
		},
		Completer:         NewCompletionClient(c.LLMAPIKey, c.LLMAPIBase, c.LLMModel, c.LLMTimeout),
		ClientCallbackURL: c.ClientCallbackURL,
		httpLimiter:       NewRateLimiter(120),
	}

	srv := &http.Server{Handler: app.Router(), Addr: ":" + c.Port, ReadTimeout: 5 * time.Second, WriteTimeout: 35 * time.Second}

	go func() {
		fmt.Println("Starting server on", c.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if closer, ok := app.DB.(interface{ close() error }); ok {
		_ = closer.close()
	}
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown failed:%+v", err)
	}
	fmt.Println("Server exited properly")
}
