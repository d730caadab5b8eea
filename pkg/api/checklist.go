package api

import (
	"net/http"
	"strings"

	"vistorias/pkg/apperr"
	"vistorias/pkg/checklist"
	"vistorias/pkg/model"
)

func (s *Server) checklistRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/vistorias/{id}/checklist", s.authed(s.handleChecklistVistoria))
	mux.HandleFunc("GET /api/vistorias/{id}/checklist/progresso", s.authed(s.handleChecklistProgresso))
	mux.HandleFunc("PATCH /api/vistorias/{id}/checklist/{itemId}", s.authed(s.handleAtualizarItem))

	mux.HandleFunc("GET /api/checklist-templates", s.authed(s.handleListTemplates))
	mux.HandleFunc("POST /api/checklist-templates", s.admin(s.handleCreateTemplate))
	mux.HandleFunc("GET /api/checklist-templates/tipo/{tipo}", s.authed(s.handleTemplatePorTipo))
	mux.HandleFunc("GET /api/checklist-templates/{id}", s.authed(s.handleGetTemplate))
	mux.HandleFunc("PUT /api/checklist-templates/{id}", s.admin(s.handleUpdateTemplate))
	mux.HandleFunc("DELETE /api/checklist-templates/{id}", s.admin(s.handleDeleteTemplate))
	mux.HandleFunc("GET /api/tipos-foto", s.authed(s.handleTiposFoto))
}

type checklistResponse struct {
	Itens     []model.VistoriaChecklistStatus `json:"itens"`
	Progresso checklist.Progresso             `json:"progresso"`
}

func (s *Server) handleChecklistVistoria(w http.ResponseWriter, r *http.Request) {
	itens, ok := s.checklistDe(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, checklistResponse{Itens: itens, Progresso: checklist.CalcularProgresso(itens)})
}

func (s *Server) handleChecklistProgresso(w http.ResponseWriter, r *http.Request) {
	itens, ok := s.checklistDe(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, checklist.CalcularProgresso(itens))
}

func (s *Server) checklistDe(w http.ResponseWriter, r *http.Request) ([]model.VistoriaChecklistStatus, bool) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return nil, false
	}
	if _, err := s.vistoriaAcessivel(r, id); err != nil {
		s.fail(w, r, err)
		return nil, false
	}
	itens, err := s.store.ChecklistDaVistoria(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return nil, false
	}
	if itens == nil {
		itens = []model.VistoriaChecklistStatus{}
	}
	return itens, true
}

func (s *Server) handleAtualizarItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	itemID, err := pathID(r, "itemId")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if _, err := s.vistoriaAcessivel(r, id); err != nil {
		s.fail(w, r, err)
		return
	}
	var req struct {
		Status     string `json:"status"`
		Observacao string `json:"observacao"`
	}
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	status := strings.ToUpper(strings.TrimSpace(req.Status))
	switch status {
	case model.ItemPendente, model.ItemConcluido, model.ItemNaoAplicavel:
	default:
		s.fail(w, r, apperr.Invalid("status deve ser PENDENTE, CONCLUIDO ou NAO_APLICAVEL"))
		return
	}
	it, err := s.store.AtualizarItemChecklist(r.Context(), id, itemID, status, strings.TrimSpace(req.Observacao))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.audit(r, "CHECKLIST_"+status, "vistoria", id, it.Nome)
	s.writeJSON(w, http.StatusOK, it)
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListTemplates(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	t, err := s.store.GetTemplate(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleTemplatePorTipo(w http.ResponseWriter, r *http.Request) {
	tipo := strings.ToUpper(r.PathValue("tipo"))
	if !model.TipoEmbarcacaoValido(tipo) {
		s.fail(w, r, apperr.Invalid("tipo de embarcação inválido"))
		return
	}
	t, err := s.store.GetTemplateByTipo(r.Context(), tipo)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, t)
}

func validarTemplate(t *model.ChecklistTemplate) error {
	t.TipoEmbarcacao = strings.ToUpper(strings.TrimSpace(t.TipoEmbarcacao))
	t.Nome = strings.TrimSpace(t.Nome)
	if !model.TipoEmbarcacaoValido(t.TipoEmbarcacao) {
		return apperr.Invalid("tipo de embarcação inválido")
	}
	if t.Nome == "" {
		return apperr.Invalid("nome obrigatório")
	}
	ordens := map[int]bool{}
	for i := range t.Itens {
		it := &t.Itens[i]
		it.Nome = strings.TrimSpace(it.Nome)
		if it.Nome == "" {
			return apperr.Invalidf("item %d sem nome", i+1)
		}
		if it.Ordem < 0 {
			return apperr.Invalidf("item %q com ordem negativa", it.Nome)
		}
		if it.Ordem > 0 {
			if ordens[it.Ordem] {
				return apperr.Invalidf("ordem %d repetida", it.Ordem)
			}
			ordens[it.Ordem] = true
		}
	}
	return nil
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var t model.ChecklistTemplate
	if err := decode(w, r, &t); err != nil {
		s.fail(w, r, err)
		return
	}
	t.ID = 0
	for i := range t.Itens {
		t.Itens[i].ID = 0
	}
	if err := validarTemplate(&t); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.store.CreateTemplate(r.Context(), &t); err != nil {
		s.fail(w, r, err)
		return
	}
	s.audit(r, "CRIAR", "checklist_template", t.ID, t.TipoEmbarcacao)
	s.writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var t model.ChecklistTemplate
	if err := decode(w, r, &t); err != nil {
		s.fail(w, r, err)
		return
	}
	t.ID = id
	if err := validarTemplate(&t); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.store.UpdateTemplate(r.Context(), &t); err != nil {
		s.fail(w, r, err)
		return
	}
	s.audit(r, "ATUALIZAR", "checklist_template", id, t.TipoEmbarcacao)
	s.handleGetTemplate(w, r)
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	s.deleteCadastro(w, r, "checklist_template", s.store.DeleteTemplate)
}

func (s *Server) handleTiposFoto(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListTiposFoto(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}
