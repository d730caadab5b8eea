package api

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"vistorias/pkg/auth"
	"vistorias/pkg/cep"
	"vistorias/pkg/notify"
	"vistorias/pkg/storage"
	"vistorias/pkg/store"
	"vistorias/pkg/version"
)

// CEPLookup resolves Brazilian postal codes.
type CEPLookup interface {
	Lookup(ctx context.Context, cep string) (cep.Resultado, error)
}

// Notifier receives workflow events for connected clients.
type Notifier interface {
	Publish(ev notify.Event)
}

type noopNotifier struct{}

func (noopNotifier) Publish(notify.Event) {}

// Deps are the collaborators the HTTP layer needs.
type Deps struct {
	Store   *store.Store
	Issuer  *auth.Issuer
	Objects storage.ObjectStore
	CEP     CEPLookup
	Notify  Notifier
	Log     *zap.Logger

	// WS serves /api/ws when set.
	WS http.Handler
	// Uploads serves the signed /uploads/ URLs of the local storage backend.
	Uploads http.Handler

	MaxUploadBytes int64
	CORSOrigin     string
	Empresa        string
}

type Server struct {
	store   *store.Store
	issuer  *auth.Issuer
	objects storage.ObjectStore
	cep     CEPLookup
	notify  Notifier
	log     *zap.Logger
	ws      http.Handler
	uploads http.Handler

	maxUpload  int64
	corsOrigin string
	empresa    string
}

func New(d Deps) *Server {
	s := &Server{
		store:      d.Store,
		issuer:     d.Issuer,
		objects:    d.Objects,
		cep:        d.CEP,
		notify:     d.Notify,
		log:        d.Log,
		ws:         d.WS,
		uploads:    d.Uploads,
		maxUpload:  d.MaxUploadBytes,
		corsOrigin: d.CORSOrigin,
		empresa:    d.Empresa,
	}
	if s.notify == nil {
		s.notify = noopNotifier{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.maxUpload <= 0 {
		s.maxUpload = 15 << 20
	}
	return s
}

// Handler builds the routed and wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.ws != nil {
		mux.Handle("GET /api/ws", s.ws)
	}
	if s.uploads != nil {
		mux.Handle("GET /uploads/", http.StripPrefix("/uploads/", s.uploads))
	}

	s.authRoutes(mux)
	s.usuarioRoutes(mux)
	s.cadastroRoutes(mux)
	s.vistoriaRoutes(mux)
	s.checklistRoutes(mux)
	s.fotoRoutes(mux)
	s.laudoRoutes(mux)
	s.pagamentoRoutes(mux)

	var h http.Handler = mux
	h = s.withCORS(h)
	h = s.withLogging(h)
	h = s.withRecover(h)
	return h
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "down", "db": err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": version.String()})
}
