package api

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"vistorias/pkg/apperr"
	"vistorias/pkg/auth"
	"vistorias/pkg/model"
	"vistorias/pkg/notify"
	"vistorias/pkg/store"
	"vistorias/pkg/validate"
)

type usuarioRequest struct {
	Nome          string `json:"nome"`
	Email         string `json:"email"`
	CPF           string `json:"cpf"`
	Telefone      string `json:"telefone"`
	Senha         string `json:"senha"`
	NivelAcessoID uint   `json:"nivelAcessoId"`
}

func (req *usuarioRequest) validar(criando bool) error {
	req.Nome = strings.TrimSpace(req.Nome)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.CPF = validate.Digits(req.CPF)
	var errs []string
	if req.Nome == "" {
		errs = append(errs, "nome obrigatório")
	}
	if !validate.Email(req.Email) {
		errs = append(errs, "e-mail inválido")
	}
	if req.CPF != "" && !validate.CPF(req.CPF) {
		errs = append(errs, "CPF inválido")
	}
	if req.NivelAcessoID == 0 {
		req.NivelAcessoID = model.NivelVistoriador
	}
	if req.NivelAcessoID != model.NivelAdmin && req.NivelAcessoID != model.NivelVistoriador {
		errs = append(errs, "nível de acesso inválido")
	}
	if criando && len(req.Senha) < minSenha {
		errs = append(errs, "senha deve ter ao menos 6 caracteres")
	}
	if len(errs) > 0 {
		return apperr.Invalid(strings.Join(errs, "; "))
	}
	return nil
}

func (s *Server) usuarioRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/usuarios", s.admin(s.handleListUsuarios))
	mux.HandleFunc("POST /api/usuarios", s.admin(s.handleCreateUsuario))
	mux.HandleFunc("GET /api/usuarios/{id}", s.admin(s.handleGetUsuario))
	mux.HandleFunc("PUT /api/usuarios/{id}", s.admin(s.handleUpdateUsuario))
	mux.HandleFunc("DELETE /api/usuarios/{id}", s.admin(s.handleDeleteUsuario))
	mux.HandleFunc("PATCH /api/usuarios/{id}/ativo", s.admin(s.handleUsuarioAtivo))
	mux.HandleFunc("POST /api/usuarios/{id}/reset-senha", s.admin(s.handleResetSenha))
	mux.HandleFunc("GET /api/vistoriadores", s.admin(s.handleListVistoriadores))
	mux.HandleFunc("GET /api/auditoria", s.admin(s.handleListAuditoria))
}

func (s *Server) handleListUsuarios(w http.ResponseWriter, r *http.Request) {
	nivel, err := queryUint(r, "nivel")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.listUsuarios(w, r, nivel)
}

func (s *Server) handleListVistoriadores(w http.ResponseWriter, r *http.Request) {
	s.listUsuarios(w, r, model.NivelVistoriador)
}

func (s *Server) listUsuarios(w http.ResponseWriter, r *http.Request, nivel uint) {
	p, err := pageOf(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	list, total, err := s.store.ListUsuarios(r.Context(), nivel, r.URL.Query().Get("busca"), p)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, listResponse{Items: list, Total: total})
}

func (s *Server) handleCreateUsuario(w http.ResponseWriter, r *http.Request) {
	var req usuarioRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := req.validar(true); err != nil {
		s.fail(w, r, err)
		return
	}
	hash, err := auth.HashPassword(req.Senha)
	if err != nil {
		s.fail(w, r, apperr.Wrap(apperr.CodeInternal, "falha ao gerar hash", err))
		return
	}
	u := model.Usuario{
		Nome:               req.Nome,
		Email:              req.Email,
		CPF:                req.CPF,
		Telefone:           req.Telefone,
		SenhaHash:          hash,
		NivelAcessoID:      req.NivelAcessoID,
		Ativo:              true,
		DeveAtualizarSenha: true,
	}
	if err := s.store.CreateUsuario(r.Context(), &u); err != nil {
		s.fail(w, r, err)
		return
	}
	s.audit(r, "CRIAR", "usuario", u.ID, u.Email)
	s.writeJSON(w, http.StatusCreated, u)
}

func (s *Server) handleGetUsuario(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	u, err := s.store.GetUsuario(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleUpdateUsuario(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req usuarioRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := req.validar(false); err != nil {
		s.fail(w, r, err)
		return
	}
	if id == auth.FromContext(r.Context()).UserID && req.NivelAcessoID != model.NivelAdmin {
		s.fail(w, r, apperr.Conflict("não é possível remover o próprio acesso de administrador"))
		return
	}
	u := model.Usuario{ID: id, Nome: req.Nome, Email: req.Email, CPF: req.CPF, Telefone: req.Telefone, NivelAcessoID: req.NivelAcessoID}
	if err := s.store.UpdateUsuario(r.Context(), &u); err != nil {
		s.fail(w, r, err)
		return
	}
	s.audit(r, "ATUALIZAR", "usuario", id, u.Email)
	s.handleGetUsuario(w, r)
}

func (s *Server) handleDeleteUsuario(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if id == auth.FromContext(r.Context()).UserID {
		s.fail(w, r, apperr.Conflict("não é possível excluir o próprio usuário"))
		return
	}
	if err := s.store.DeleteUsuario(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	s.audit(r, "EXCLUIR", "usuario", id, "")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUsuarioAtivo(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req struct {
		Ativo *bool `json:"ativo"`
	}
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Ativo == nil {
		s.fail(w, r, apperr.Invalid("campo ativo obrigatório"))
		return
	}
	if id == auth.FromContext(r.Context()).UserID && !*req.Ativo {
		s.fail(w, r, apperr.Conflict("não é possível desativar o próprio usuário"))
		return
	}
	if err := s.store.SetUsuarioAtivo(r.Context(), id, *req.Ativo); err != nil {
		s.fail(w, r, err)
		return
	}
	acao := "DESATIVAR"
	if *req.Ativo {
		acao = "ATIVAR"
	}
	s.audit(r, acao, "usuario", id, "")
	s.handleGetUsuario(w, r)
}

// handleResetSenha sets a temporary password the user must change on next login.
func (s *Server) handleResetSenha(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req struct {
		Senha string `json:"senha"`
	}
	if r.ContentLength != 0 {
		if err := decode(w, r, &req); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	temp := req.Senha
	if temp == "" {
		temp = strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
	}
	if len(temp) < minSenha {
		s.fail(w, r, apperr.Invalidf("senha deve ter ao menos %d caracteres", minSenha))
		return
	}
	hash, err := auth.HashPassword(temp)
	if err != nil {
		s.fail(w, r, apperr.Wrap(apperr.CodeInternal, "falha ao gerar hash", err))
		return
	}
	if err := s.store.UpdateSenha(r.Context(), id, hash, true); err != nil {
		s.fail(w, r, err)
		return
	}
	s.audit(r, "RESET_SENHA", "usuario", id, "")
	s.writeJSON(w, http.StatusOK, map[string]string{"senhaTemporaria": temp})
}

func (s *Server) handleListAuditoria(w http.ResponseWriter, r *http.Request) {
	p, err := pageOf(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	uid, err := queryUint(r, "usuarioId")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	eid, err := queryUint(r, "entidadeId")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	f := store.AuditFiltro{UsuarioID: uid, Entidade: r.URL.Query().Get("entidade"), EntidadeID: eid}
	list, total, err := s.store.ListAudit(r.Context(), f, p)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, listResponse{Items: list, Total: total})
}

// notifyVistoria publishes a vistoria event to its inspector and the admins.
func (s *Server) notifyVistoria(tipo string, v model.Vistoria, payload interface{}) {
	s.notify.Publish(notify.Event{Type: tipo, VistoriaID: v.ID, Para: v.VistoriadorID, Payload: payload})
}
