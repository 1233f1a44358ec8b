// Package server exposes the layered pipeline and its standalone text tools
// as a JSON REST API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/rbaliyan/stegocrypt"
	"github.com/rbaliyan/stegocrypt/keywrap"
)

// Handler is one REST endpoint.
type Handler struct {
	path   string
	method string
	handle http.HandlerFunc
}

// Path returns the request path.
func (h Handler) Path() string { return h.path }

// Method returns the HTTP method.
func (h Handler) Method() string { return h.method }

// Handle returns the handler func.
func (h Handler) Handle() http.HandlerFunc { return h.handle }

// Server serves the REST API. It holds no key material between requests.
type Server struct {
	cfg      Config
	logger   logrus.FieldLogger
	pipeline *stegocrypt.Pipeline
	handlers []Handler
	router   http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger. The pipeline logs through it too.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Server) { s.logger = l }
}

// New validates cfg and builds the router.
func New(cfg Config, opts ...Option) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("server: invalid config: %w", err)
	}
	s := &Server{cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		l, err := cfg.NewLogger(logrus.StandardLogger().Out)
		if err != nil {
			return nil, err
		}
		s.logger = l
	}

	policy, err := stegocrypt.ParseIdentifierPolicy(cfg.IdentifierPolicy)
	if err != nil {
		return nil, err
	}
	s.pipeline, err = stegocrypt.New(
		stegocrypt.WithLogger(s.logger),
		stegocrypt.WithIdentifierPolicy(policy),
	)
	if err != nil {
		return nil, err
	}

	s.registerHandlers()
	router := mux.NewRouter()
	router.Use(s.requestContext)
	for _, h := range s.handlers {
		router.HandleFunc(h.Path(), h.Handle()).Methods(h.Method())
	}
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	})

	s.router = cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Origin", "Accept", "Content-Type", "X-Requested-With", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
	}).Handler(router)
	return s, nil
}

func (s *Server) registerHandlers() {
	s.handlers = []Handler{
		{HealthPath, http.MethodGet, s.health},
		{GenerateKeysPath, http.MethodPost, s.generateKeys},
		{EncryptPath, http.MethodPost, s.encrypt},
		{DecryptPath, http.MethodPost, s.decrypt},
		{InfoPath, http.MethodGet, s.info},

		{LegacyGenerateKeysPath, http.MethodPost, s.deprecated(GenerateKeysPath, s.generateKeys)},
		{LegacyEncryptPath, http.MethodPost, s.deprecated(EncryptPath, s.legacyEncrypt)},
		{LegacyDecryptPath, http.MethodPost, s.deprecated(DecryptPath, s.decrypt)},
		{LegacyInfoPath, http.MethodGet, s.deprecated(InfoPath, s.info)},

		{WatermarkEmbedPath, http.MethodPost, s.watermarkEmbed},
		{WatermarkExtractPath, http.MethodPost, s.watermarkExtract},
		{WatermarkRemovePath, http.MethodPost, s.watermarkRemove},
		{StegoHidePath, http.MethodPost, s.stegoHide},
		{StegoExtractPath, http.MethodPost, s.stegoExtract},
		{StegoCapacityPath, http.MethodPost, s.stegoCapacity},

		{AESEncryptPath, http.MethodPost, s.aesEncrypt},
		{AESDecryptPath, http.MethodPost, s.aesDecrypt},
		{AESInfoPath, http.MethodGet, s.describe(moduleInfo{
			Module:   "AES",
			KeySizes: []int{128, 192, 256},
			Modes:    []string{"CBC"},
		}, AESPath)},

		{RSAGeneratePath, http.MethodPost, s.generateKeypair(rsaKeys)},
		{RSAEncryptPath, http.MethodPost, s.rsaEncrypt},
		{RSADecryptPath, http.MethodPost, s.rsaDecrypt},
		{RSASignPath, http.MethodPost, s.sign(rsaKeys)},
		{RSAVerifyPath, http.MethodPost, s.verify(rsaKeys)},
		{RSAInfoPath, http.MethodGet, s.describe(moduleInfo{
			Module:   "RSA",
			KeySizes: keywrap.SupportedRSABits,
		}, RSAPath)},

		{ECCGeneratePath, http.MethodPost, s.generateKeypair(eccKeys)},
		{ECCSignPath, http.MethodPost, s.sign(eccKeys)},
		{ECCVerifyPath, http.MethodPost, s.verify(eccKeys)},
		{ECCInfoPath, http.MethodGet, s.describe(moduleInfo{
			Module: "ECC",
			Curves: keywrap.SupportedCurves,
		}, ECCPath)},

		{SignatureGeneratePath, http.MethodPost, s.generateKeypair(anyKey)},
		{SignatureSignPath, http.MethodPost, s.sign(anyKey)},
		{SignatureVerifyPath, http.MethodPost, s.verify(anyKey)},
		{SignatureInfoPath, http.MethodGet, s.describe(moduleInfo{
			Module:   "Digital signatures",
			KeySizes: keywrap.SupportedRSABits,
			Curves:   keywrap.SupportedCurves,
		}, SignaturePath)},
	}
}

// Handlers returns the registered endpoints.
func (s *Server) Handlers() []Handler {
	return s.handlers
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.logger.WithField("listen", s.cfg.Listen).Info("starting stegocrypt server")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.RequestTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

const requestIDHeader = "X-Request-ID"

type ctxKey struct{}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// statusRecorder captures the response status for the access log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// requestContext assigns a request ID, applies the request timeout and
// writes one access log line per request.
func (s *Server) requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.New().String()
		}
		w.Header().Set(requestIDHeader, id)

		ctx, cancel := context.WithTimeout(context.WithValue(r.Context(), ctxKey{}, id), s.cfg.RequestTimeout)
		defer cancel()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r.WithContext(ctx))

		s.logger.WithFields(logrus.Fields{
			"request_id": id,
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     rec.status,
			"duration":   time.Since(start),
		}).Info("request")
	})
}

func (s *Server) log(r *http.Request) logrus.FieldLogger {
	return s.logger.WithField("request_id", requestID(r.Context()))
}
