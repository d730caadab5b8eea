package api

import (
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"go.uber.org/zap"

	"vistorias/pkg/apperr"
	"vistorias/pkg/auth"
)

// authed requires a valid Bearer token whose user still exists and is
// active. The access level comes from the database, not the token.
func (s *Server) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := r.Header.Get("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			s.fail(w, r, apperr.Unauthorized())
			return
		}
		claims, err := s.issuer.Parse(strings.TrimPrefix(h, "Bearer "))
		if err != nil {
			s.fail(w, r, apperr.New(apperr.CodeUnauthorized, "token inválido ou expirado"))
			return
		}
		u, err := s.store.GetUsuario(r.Context(), claims.UserID)
		switch {
		case apperr.Is(err, apperr.CodeNotFound):
			s.fail(w, r, apperr.New(apperr.CodeUnauthorized, "usuário inativo ou removido"))
			return
		case err != nil:
			s.fail(w, r, err)
			return
		case !u.Ativo:
			s.fail(w, r, apperr.New(apperr.CodeUnauthorized, "usuário inativo ou removido"))
			return
		}
		claims.Nivel = u.NivelAcessoID
		claims.Email = u.Email
		claims.Nome = u.Nome
		next(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
	}
}

// admin is authed plus the ADMIN access level.
func (s *Server) admin(next http.HandlerFunc) http.HandlerFunc {
	return s.authed(func(w http.ResponseWriter, r *http.Request) {
		if !auth.FromContext(r.Context()).IsAdmin() {
			s.fail(w, r, apperr.Forbidden())
			return
		}
		next(w, r)
	})
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.corsOrigin != "" {
			origin := s.corsOrigin
			if origin == "*" && r.Header.Get("Origin") != "" {
				origin = r.Header.Get("Origin")
			}
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Expose-Headers", "Content-Disposition")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// Unwrap lets http.ResponseController and the websocket upgrader reach the
// underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Int("bytes", rec.bytes),
			zap.Duration("took", time.Since(start)),
			zap.String("ip", clientIP(r)),
		}
		switch {
		case rec.status >= 500:
			s.log.Error("request", fields...)
		case r.URL.Path == "/healthz":
			s.log.Debug("request", fields...)
		default:
			s.log.Info("request", fields...)
		}
	})
}

func (s *Server) withRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				s.log.Error("panic serving request",
					zap.Any("panic", v),
					zap.String("path", r.URL.Path),
					zap.ByteString("stack", debug.Stack()))
				s.writeError(w, apperr.New(apperr.CodeInternal, "erro interno"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
