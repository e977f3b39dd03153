package main

import (
	"embed"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/oralflow/oralflow/libs/auth"
	"github.com/oralflow/oralflow/libs/httpx"
)

//go:embed assets/gateway.v1.yaml
var openAPISpec embed.FS

// identityHeaders are set only by the gateway; client supplied values are dropped.
var identityHeaders = []string{"X-User-Id", "X-Role", "X-Paciente-Id", "X-Odontologo-Id"}

func registerRoutes(mux *http.ServeMux, verifier *auth.Verifier, clinicURL *url.URL) {
	clinicProxy := httputil.NewSingleHostReverseProxy(clinicURL)
	clinicProxy.Transport = otelhttp.NewTransport(http.DefaultTransport)

	registerProxy(mux, "/api/v1", requireAuth(clinicProxy, verifier))

	mux.HandleFunc("GET /openapi", func(w http.ResponseWriter, _ *http.Request) {
		data, err := openAPISpec.ReadFile("assets/gateway.v1.yaml")
		if err != nil {
			http.Error(w, "openapi not available", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	})
}

func registerProxy(mux *http.ServeMux, prefix string, handler http.Handler) {
	if !strings.HasSuffix(prefix, "/") {
		mux.Handle(prefix, handler)
		mux.Handle(prefix+"/", handler)
		return
	}
	mux.Handle(prefix, handler)
}

func mustParseURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		panic(err)
	}
	return u
}

func requireAuth(next http.Handler, verifier *auth.Verifier) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, h := range identityHeaders {
			r.Header.Del(h)
		}

		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") || len(strings.TrimSpace(authHeader)) <= len("Bearer ") {
			writeDetail(w, http.StatusUnauthorized, "Las credenciales de autenticación no se proveyeron.")
			return
		}
		claims, err := verifier.Verify(strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer ")))
		if err != nil {
			writeDetail(w, http.StatusUnauthorized, "Token inválido o expirado.")
			return
		}

		for k, v := range claims.Headers() {
			r.Header.Set(k, v)
		}
		r.Header.Del("Authorization")
		next.ServeHTTP(w, r)
	})
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}

type rateLimitConfig struct {
	PerMinute int
	// Redis switches to the shared limiter; nil keeps counts in process.
	Redis    redis.Scripter
	Prefix   string
	FailOpen bool
}

func rateLimit(logger *slog.Logger, cfg rateLimitConfig) httpx.Middleware {
	if cfg.Redis != nil {
		logger.Info("rate limiting enabled (redis)", "per_minute", cfg.PerMinute)
		return httpx.NewRedisRateLimiter(cfg.Redis, cfg.PerMinute, time.Minute, cfg.Prefix).Middleware(logger, cfg.FailOpen)
	}
	logger.Info("rate limiting enabled (in-memory)", "per_minute", cfg.PerMinute)
	return httpx.NewRateLimiter(cfg.PerMinute, time.Minute).Middleware()
}
