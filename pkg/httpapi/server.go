// Package httpapi exposes the authentication service over HTTP with JSON
// bodies. Integers are big-endian byte strings, hex-encoded.
package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/lestrrat-go/jwx/v2/jwk"
	json "github.com/nikkolasg/hexjson"

	"github.com/vinay10949/chaum-pedersen-auth/pkg/auth"
	"github.com/vinay10949/chaum-pedersen-auth/pkg/jwt"
	"github.com/vinay10949/chaum-pedersen-auth/pkg/log"
	"github.com/vinay10949/chaum-pedersen-auth/pkg/metrics"
	mw "github.com/vinay10949/chaum-pedersen-auth/pkg/middleware"
	"github.com/vinay10949/chaum-pedersen-auth/pkg/rpc"
)

// DefaultTimeout bounds the handling of a single request.
const DefaultTimeout = 30 * time.Second

// maxBodySize caps request bodies. The largest message carries two
// 4096-bit integers.
const maxBodySize = 64 << 10

// Options configures the optional parts of the HTTP surface.
type Options struct {
	// JWKS is published at /.well-known/jwks.json when set.
	JWKS jwk.Set
	// Tokens enables /whoami and /admin/stats when set.
	Tokens *jwt.Verifier
	// RateLimit is requests per client per minute; zero disables it.
	RateLimit int
	Timeout   time.Duration
	Logger    log.Logger
}

// Server routes HTTP requests to an auth.Service.
type Server struct {
	svc     *auth.Service
	opts    Options
	log     log.Logger
	limiter *mw.RateLimiter
	router  chi.Router
}

// New builds the router. Close releases the rate limiter.
func New(svc *auth.Service, opts Options) *Server {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = log.DefaultLogger()
	}

	s := &Server{
		svc:  svc,
		opts: opts,
		log:  opts.Logger.Named("http"),
	}
	if opts.RateLimit > 0 {
		s.limiter = mw.NewRateLimiter(opts.RateLimit, time.Minute, nil)
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.opts.Timeout))
	r.Use(s.requestLogger)
	r.Use(metrics.InstrumentHandler)
	r.Use(mw.CORS)

	r.Get("/health", s.health)
	r.Get("/params", s.params)
	r.Get("/metrics", metrics.Handler().ServeHTTP)

	r.Group(func(r chi.Router) {
		if s.limiter != nil {
			r.Use(s.limiter.Handler)
		}
		r.Post("/register", s.register)
		r.Post("/auth/challenge", s.challenge)
		r.Post("/auth/verify", s.verify)
	})

	if s.opts.JWKS != nil {
		r.Get("/.well-known/jwks.json", s.jwks)
	}
	if s.opts.Tokens != nil {
		r.Group(func(r chi.Router) {
			r.Use(mw.JWTMiddleware(s.opts.Tokens))
			r.Use(mw.RequireZKScheme(jwt.SchemeChaumPedersen))
			r.Use(mw.RequireGroup(s.svc.Params().Name()))

			r.Get("/whoami", s.whoami)
			r.Get("/admin/stats", s.stats)
		})
	}

	return r
}

// requestLogger tags the request's logger with the chi request ID.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l := s.log.With("request_id", middleware.GetReqID(r.Context()))
		next.ServeHTTP(w, r.WithContext(log.ToContext(r.Context(), l)))
	})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close stops background work owned by the server.
func (s *Server) Close() {
	if s.limiter != nil {
		s.limiter.Close()
	}
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req rpc.RegisterRequest
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.svc.Register(r.Context(), req.User, req.Y1, req.Y2); err != nil {
		s.fail(w, r, err)
		return
	}

	s.reply(w, r, http.StatusCreated, &rpc.RegisterResponse{Status: "registered"})
}

func (s *Server) challenge(w http.ResponseWriter, r *http.Request) {
	var req rpc.AuthenticationChallengeRequest
	if !s.decode(w, r, &req) {
		return
	}

	c, err := s.svc.BeginAuthentication(r.Context(), req.User, req.R1, req.R2)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.reply(w, r, http.StatusOK, &rpc.AuthenticationChallengeResponse{
		AuthID: c.SessionID,
		C:      c.C,
	})
}

func (s *Server) verify(w http.ResponseWriter, r *http.Request) {
	var req rpc.AuthenticationAnswerRequest
	if !s.decode(w, r, &req) {
		return
	}

	session, err := s.svc.CompleteAuthentication(r.Context(), req.AuthID, req.S)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.reply(w, r, http.StatusOK, &rpc.AuthenticationAnswerResponse{
		SessionID: session.Token,
		ExpiresIn: int64(session.ExpiresIn / time.Second),
	})
}

func (s *Server) params(w http.ResponseWriter, r *http.Request) {
	s.reply(w, r, http.StatusOK, rpc.NewParamsResponse(s.svc.Params()))
}

func (s *Server) jwks(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=300")
	s.reply(w, r, http.StatusOK, s.opts.JWKS)
}

func (s *Server) whoami(w http.ResponseWriter, r *http.Request) {
	claims, ok := mw.GetJWTClaims(r)
	if !ok {
		http.Error(w, "JWT claims required", http.StatusUnauthorized)
		return
	}
	s.reply(w, r, http.StatusOK, claims)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Ping(); err != nil {
		log.FromContextOrDefault(r.Context()).Warnw("health check failed", "err", err)
		s.reply(w, r, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "service": "zkauthd"})
		return
	}
	s.reply(w, r, http.StatusOK, map[string]string{"status": "ok", "service": "zkauthd"})
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.Stats()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.reply(w, r, http.StatusOK, stats)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.fail(w, r, fmt.Errorf("%w: %v", auth.ErrInvalidEncoding, err))
		return false
	}
	return true
}

func (s *Server) reply(w http.ResponseWriter, r *http.Request, code int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		log.FromContextOrDefault(r.Context()).Errorw("failed to encode response", "path", r.URL.Path, "err", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(data)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := StatusCode(err)
	if code == http.StatusInternalServerError {
		log.FromContextOrDefault(r.Context()).Errorw("request failed", "path", r.URL.Path, "err", err)
	}
	s.reply(w, r, code, map[string]string{"error": err.Error()})
}

// StatusCode maps service errors onto HTTP status codes.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, auth.ErrInvalidEncoding):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrUnknownIdentity), errors.Is(err, auth.ErrUnknownSession):
		return http.StatusNotFound
	case errors.Is(err, auth.ErrVerificationFailed):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// ErrorFromStatus maps an HTTP status and error message back onto the
// service error it came from.
func ErrorFromStatus(code int, msg string) error {
	var candidates []error
	switch code {
	case http.StatusBadRequest:
		candidates = []error{auth.ErrInvalidEncoding}
	case http.StatusNotFound:
		candidates = []error{auth.ErrUnknownIdentity, auth.ErrUnknownSession}
	case http.StatusUnauthorized:
		candidates = []error{auth.ErrVerificationFailed}
	}

	for _, sentinel := range candidates {
		if detail, ok := strings.CutPrefix(msg, sentinel.Error()); ok {
			if detail == "" {
				return sentinel
			}
			return fmt.Errorf("%w%s", sentinel, detail)
		}
	}
	if len(candidates) > 0 {
		return fmt.Errorf("%w: %s", candidates[len(candidates)-1], msg)
	}
	return fmt.Errorf("server returned %d: %s", code, msg)
}
