package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"vistorias/pkg/apperr"
	"vistorias/pkg/auth"
	"vistorias/pkg/model"
	"vistorias/pkg/notify"
	"vistorias/pkg/store"
)

// vistoriaRequest is the body of the "Nova Vistoria" wizard. Cliente,
// Embarcacao and Local may be sent inline instead of by ID.
type vistoriaRequest struct {
	EmbarcacaoID                uint    `json:"embarcacaoId"`
	LocalID                     *uint   `json:"localId"`
	VistoriadorID               uint    `json:"vistoriadorId"`
	ValorVistoria               float64 `json:"valorVistoria"`
	ValorVistoriador            float64 `json:"valorVistoriador"`
	Observacoes                 string  `json:"observacoes"`
	ContatoAcompanhanteNome     string  `json:"contatoAcompanhanteNome"`
	ContatoAcompanhanteTelefone string  `json:"contatoAcompanhanteTelefone"`
	ContatoAcompanhanteEmail    string  `json:"contatoAcompanhanteEmail"`

	Cliente    *model.Cliente    `json:"cliente"`
	Embarcacao *model.Embarcacao `json:"embarcacao"`
	Local      *model.Local      `json:"local"`
}

func (req vistoriaRequest) vistoria() model.Vistoria {
	return model.Vistoria{
		EmbarcacaoID:                req.EmbarcacaoID,
		LocalID:                     req.LocalID,
		VistoriadorID:               req.VistoriadorID,
		ValorVistoria:               req.ValorVistoria,
		ValorVistoriador:            req.ValorVistoriador,
		Observacoes:                 strings.TrimSpace(req.Observacoes),
		ContatoAcompanhanteNome:     strings.TrimSpace(req.ContatoAcompanhanteNome),
		ContatoAcompanhanteTelefone: strings.TrimSpace(req.ContatoAcompanhanteTelefone),
		ContatoAcompanhanteEmail:    strings.ToLower(strings.TrimSpace(req.ContatoAcompanhanteEmail)),
	}
}

func (s *Server) vistoriaRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/vistorias", s.authed(s.handleListVistorias))
	mux.HandleFunc("POST /api/vistorias", s.admin(s.handleCreateVistoria))
	mux.HandleFunc("GET /api/vistorias/{id}", s.authed(s.handleGetVistoria))
	mux.HandleFunc("PUT /api/vistorias/{id}", s.admin(s.handleUpdateVistoria))
	mux.HandleFunc("DELETE /api/vistorias/{id}", s.admin(s.handleDeleteVistoria))
	mux.HandleFunc("POST /api/vistorias/{id}/iniciar", s.authed(s.handleIniciarVistoria))
	mux.HandleFunc("PUT /api/vistorias/{id}/rascunho", s.authed(s.handleSalvarRascunho))
	mux.HandleFunc("POST /api/vistorias/{id}/concluir", s.authed(s.handleConcluirVistoria))
	mux.HandleFunc("POST /api/vistorias/{id}/devolver", s.admin(s.handleDevolverVistoria))
	mux.HandleFunc("POST /api/vistorias/{id}/aprovar", s.admin(s.handleAprovarVistoria))
	mux.HandleFunc("POST /api/vistorias/{id}/reabrir", s.admin(s.handleReabrirVistoria))
	mux.HandleFunc("GET /api/vistoriador/vistorias", s.authed(s.handleMinhasVistorias))
	mux.HandleFunc("GET /api/dashboard", s.authed(s.handleDashboard))
}

func (s *Server) vistoriaFiltro(r *http.Request) (store.VistoriaFiltro, error) {
	var f store.VistoriaFiltro
	var err error
	if f.VistoriadorID, err = queryUint(r, "vistoriadorId"); err != nil {
		return f, err
	}
	if f.EmbarcacaoID, err = queryUint(r, "embarcacaoId"); err != nil {
		return f, err
	}
	if f.De, err = queryDate(r, "de"); err != nil {
		return f, err
	}
	if f.Ate, err = queryDate(r, "ate"); err != nil {
		return f, err
	}
	f.Status = splitCSV(r.URL.Query().Get("status"))
	return f, nil
}

// handleListVistorias lists every vistoria for admins and only the caller's
// for inspectors.
func (s *Server) handleListVistorias(w http.ResponseWriter, r *http.Request) {
	f, err := s.vistoriaFiltro(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if c := auth.FromContext(r.Context()); !c.IsAdmin() {
		f.VistoriadorID = c.UserID
	}
	s.listVistorias(w, r, f)
}

func (s *Server) handleMinhasVistorias(w http.ResponseWriter, r *http.Request) {
	f, err := s.vistoriaFiltro(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	f.VistoriadorID = auth.FromContext(r.Context()).UserID
	s.listVistorias(w, r, f)
}

func (s *Server) listVistorias(w http.ResponseWriter, r *http.Request, f store.VistoriaFiltro) {
	p, err := pageOf(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	list, total, err := s.store.ListVistorias(r.Context(), f, p)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, listResponse{Items: list, Total: total})
}

func (s *Server) handleGetVistoria(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	v, err := s.vistoriaAcessivel(r, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleCreateVistoria(w http.ResponseWriter, r *http.Request) {
	var req vistoriaRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	n, err := s.novaVistoria(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	n.Vistoria.AdministradorID = auth.FromContext(r.Context()).UserID
	if err := s.store.CreateVistoria(r.Context(), &n); err != nil {
		s.fail(w, r, err)
		return
	}
	v, err := s.store.GetVistoria(r.Context(), n.Vistoria.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.audit(r, "CRIAR", "vistoria", v.ID, "")
	s.notifyVistoria(notify.EventVistoriaAtribuida, v, v)
	s.writeJSON(w, http.StatusCreated, v)
}

// novaVistoria validates the wizard body. An inline client whose document is
// already registered is reused instead of duplicated.
func (s *Server) novaVistoria(ctx context.Context, req vistoriaRequest) (store.NovaVistoria, error) {
	n := store.NovaVistoria{Vistoria: req.vistoria()}
	if n.Vistoria.VistoriadorID == 0 {
		return n, apperr.Invalid("vistoriador obrigatório")
	}
	if req.Embarcacao != nil {
		e := *req.Embarcacao
		e.ID = 0
		e.Cliente, e.Seguradora = nil, nil
		if err := validarEmbarcacao(&e); err != nil {
			return n, err
		}
		n.Embarcacao = &e
	} else if req.EmbarcacaoID == 0 {
		return n, apperr.Invalid("embarcação obrigatória")
	}
	if req.Cliente != nil {
		if n.Embarcacao == nil {
			return n, apperr.Invalid("cliente inline exige embarcação inline")
		}
		c := *req.Cliente
		if c.ID != 0 {
			n.Embarcacao.ClienteID = &c.ID
		} else {
			c.Ativo = true
			if err := validarCliente(&c); err != nil {
				return n, err
			}
			existente, err := s.store.GetClienteByDocumento(ctx, c.Documento())
			switch {
			case err == nil:
				n.Embarcacao.ClienteID = &existente.ID
			case apperr.Is(err, apperr.CodeNotFound):
				n.Cliente = &c
			default:
				return n, err
			}
		}
	}
	if req.Local != nil {
		l := *req.Local
		l.ID = 0
		if err := validarLocal(&l); err != nil {
			return n, err
		}
		n.Local = &l
	}
	return n, nil
}

func (s *Server) handleUpdateVistoria(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req vistoriaRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.EmbarcacaoID == 0 || req.VistoriadorID == 0 {
		s.fail(w, r, apperr.Invalid("embarcação e vistoriador são obrigatórios"))
		return
	}
	antes, err := s.store.GetVistoria(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	v := req.vistoria()
	v.ID = id
	if err := s.store.UpdateVistoria(r.Context(), &v); err != nil {
		s.fail(w, r, err)
		return
	}
	depois, err := s.store.GetVistoria(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.audit(r, "ATUALIZAR", "vistoria", id, "")
	if antes.VistoriadorID != depois.VistoriadorID {
		s.notifyVistoria(notify.EventVistoriaAtribuida, depois, depois)
	}
	s.writeJSON(w, http.StatusOK, depois)
}

func (s *Server) handleDeleteVistoria(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	keys, err := s.store.DeleteVistoria(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	for _, k := range keys {
		if err := s.objects.Delete(r.Context(), k); err != nil {
			s.log.Warn("delete foto object failed", zap.Uint("vistoria", id), zap.String("key", k), zap.Error(err))
		}
	}
	s.audit(r, "EXCLUIR", "vistoria", id, "")
	w.WriteHeader(http.StatusNoContent)
}

// transicao runs an owner-checked status change and publishes it.
func (s *Server) transicao(w http.ResponseWriter, r *http.Request, acao string, run func(ctx context.Context, id uint) (model.Vistoria, error)) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if _, err := s.vistoriaAcessivel(r, id); err != nil {
		s.fail(w, r, err)
		return
	}
	v, err := run(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.audit(r, acao, "vistoria", id, v.Status)
	s.notifyVistoria(notify.EventVistoriaStatus, v, map[string]string{"status": v.Status})
	s.writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleIniciarVistoria(w http.ResponseWriter, r *http.Request) {
	s.transicao(w, r, "INICIAR", s.store.IniciarVistoria)
}

func (s *Server) handleDevolverVistoria(w http.ResponseWriter, r *http.Request) {
	s.transicao(w, r, "DEVOLVER", s.store.DevolverVistoria)
}

func (s *Server) handleAprovarVistoria(w http.ResponseWriter, r *http.Request) {
	s.transicao(w, r, "APROVAR", s.store.AprovarVistoria)
}

func (s *Server) handleReabrirVistoria(w http.ResponseWriter, r *http.Request) {
	s.transicao(w, r, "REABRIR", s.store.ReabrirVistoria)
}

func (s *Server) handleConcluirVistoria(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Observacoes string `json:"observacoes"`
	}
	if r.ContentLength != 0 {
		if err := decode(w, r, &req); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	s.transicao(w, r, "CONCLUIR", func(ctx context.Context, id uint) (model.Vistoria, error) {
		return s.store.ConcluirVistoria(ctx, id, strings.TrimSpace(req.Observacoes))
	})
}

func (s *Server) handleSalvarRascunho(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if _, err := s.vistoriaAcessivel(r, id); err != nil {
		s.fail(w, r, err)
		return
	}
	var dados json.RawMessage
	if err := decode(w, r, &dados); err != nil {
		s.fail(w, r, err)
		return
	}
	v, err := s.store.SalvarRascunho(r.Context(), id, dados)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	var vistoriadorID uint
	if c := auth.FromContext(r.Context()); !c.IsAdmin() {
		vistoriadorID = c.UserID
	}
	d, err := s.store.ContarDashboard(r.Context(), vistoriadorID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, d)
}
