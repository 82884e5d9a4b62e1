package server

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"companion-backend/internal/avatar"
	"companion-backend/internal/config"
	"companion-backend/internal/db"
	"companion-backend/internal/logger"
	"companion-backend/internal/persona"
	"companion-backend/internal/store"
	"companion-backend/internal/types"
)

// maxBodyBytes caps relay request bodies; SDP answers are the largest payloads.
const maxBodyBytes = 1 << 20

// sessionCloser ends a vendor streaming session. id and vendorSession follow
// store.AvatarSession.
type sessionCloser interface {
	Close(ctx context.Context, id, vendorSession string) error
}

type Server struct {
	router     *chi.Mux
	cfg        config.Config
	log        *logger.Logger
	client     *openai.Client
	catalog    *persona.Catalog
	did        *avatar.DIDClient
	heygen     *avatar.HeyGenClient
	closers    map[string]sessionCloser
	sessions   *store.MemoryStore
	database   *db.DB
	ledger     *store.DatabaseStore
	sessionKey []byte
}

func NewServer(cfg config.Config, log *logger.Logger) (*Server, error) {
	oc := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.OpenAIBaseURL != "" {
		oc.BaseURL = cfg.OpenAIBaseURL
	}
	client := openai.NewClientWithConfig(oc)

	catalog, err := persona.LoadCatalog(cfg.PersonasFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load persona catalog: %w", err)
	}

	key := []byte(cfg.SessionSecret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("failed to generate session key: %w", err)
		}
		log.Warn("SESSION_SECRET is not set; client sessions will not survive a restart")
	}

	var database *db.DB
	var ledger *store.DatabaseStore
	if cfg.DatabaseURL != "" {
		database, err = db.New(cfg.DatabaseURL, log)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		if err := database.RunMigrations(); err != nil {
			database.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("avatar session ledger ready", logrus.Fields{"driver": database.Driver})
		ledger = store.NewDatabaseStore(database)
	} else {
		log.Info("DB_URL not provided; avatar sessions are tracked in memory only")
	}

	did := avatar.NewDIDClient(cfg.DIDBaseURL, cfg.DIDAPIKey, cfg.DIDVoice)
	heygen := avatar.NewHeyGenClient(cfg.HeyGenBaseURL, cfg.HeyGenAPIKey, cfg.HeyGenQuality)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.AllowedOrigin},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Requested-With", sessionHeader},
		ExposedHeaders:   []string{sessionHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	s := &Server{
		router:  r,
		cfg:     cfg,
		log:     log,
		client:  client,
		catalog: catalog,
		did:     did,
		heygen:  heygen,
		closers: map[string]sessionCloser{
			avatar.ProviderDID:    did,
			avatar.ProviderHeyGen: heygen,
		},
		sessions:   store.NewMemoryStore(cfg.AvatarSessionTTL),
		database:   database,
		ledger:     ledger,
		sessionKey: key,
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, http.StatusNotFound, "Not Found")
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	s.router.Get("/api/health", s.handleHealth)
	s.router.Get("/api/hello", s.handleHello)
	s.router.Get("/api/personas", s.handlePersonas)
	// OpenAI relays
	s.router.Post("/api/chat", s.handleChat)
	s.router.Post("/api/audio", s.handleAudio)
	s.router.Post("/api/emotional-audio", s.handleEmotionalAudio)
	// Avatar streaming relays
	s.router.Post("/api/d-id-stream", s.handleDIDStream)
	s.router.Post("/api/heygen", s.handleHeyGen)
	s.router.Get("/api/avatar/sessions", s.handleAvatarSessions)
}

func (s *Server) Router() http.Handler { return s.router }

// Close releases the ledger connection.
func (s *Server) Close() error {
	if s.database != nil {
		return s.database.Close()
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":         "ok",
		"avatarSessions": s.sessions.Len(),
	}
	if s.database != nil {
		if err := s.database.HealthCheck(); err != nil {
			s.log.Error("database health check failed", logrus.Fields{"error": err.Error()})
			resp["database"] = "error"
		} else {
			resp["database"] = "ok"
			if n, err := s.ledger.CountOpen(r.Context()); err == nil {
				resp["ledgerOpenSessions"] = n
			}
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHello(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"message":   "Hello from the companion backend! 👋",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handlePersonas(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"personas": s.catalog.List()})
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

// reqLog tags log lines with the chi request id.
func (s *Server) reqLog(r *http.Request) *logger.Logger {
	return s.log.WithFields(logrus.Fields{"request_id": middleware.GetReqID(r.Context())})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, code int, msg string) {
	s.writeJSON(w, code, types.ErrorResponse{Error: msg})
}
