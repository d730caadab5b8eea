package api

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"vistorias/pkg/apperr"
	"vistorias/pkg/auth"
	"vistorias/pkg/model"
	"vistorias/pkg/validate"
)

const minSenha = 6

type authRequest struct {
	Nome  string `json:"nome"`
	Email string `json:"email"`
	Senha string `json:"senha"`
}

type authResponse struct {
	Token   string        `json:"token"`
	Usuario model.Usuario `json:"usuario"`
}

type senhaRequest struct {
	SenhaAtual string `json:"senhaAtual"`
	NovaSenha  string `json:"novaSenha"`
}

func (s *Server) authRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("GET /api/auth/me", s.authed(s.handleMe))
	mux.HandleFunc("PUT /api/auth/senha", s.authed(s.handleTrocarSenha))
}

// handleRegister only allows the first user to be created (admin).
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req authRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Nome = strings.TrimSpace(req.Nome)
	if req.Nome == "" || !validate.Email(req.Email) || len(req.Senha) < minSenha {
		s.fail(w, r, apperr.Invalidf("nome, e-mail válido e senha com ao menos %d caracteres são obrigatórios", minSenha))
		return
	}
	hash, err := auth.HashPassword(req.Senha)
	if err != nil {
		s.fail(w, r, apperr.Wrap(apperr.CodeInternal, "falha ao gerar hash", err))
		return
	}
	u := model.Usuario{Nome: req.Nome, Email: req.Email, SenhaHash: hash, NivelAcessoID: model.NivelAdmin, Ativo: true}
	if err := s.store.CriarPrimeiroUsuario(r.Context(), &u); err != nil {
		s.fail(w, r, err)
		return
	}
	s.log.Info("first admin registered", zap.Uint("user", u.ID), zap.String("email", u.Email))
	s.respondToken(w, r, http.StatusCreated, u)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req authRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Email == "" || req.Senha == "" {
		s.fail(w, r, apperr.Invalid("e-mail e senha são obrigatórios"))
		return
	}
	invalid := apperr.New(apperr.CodeUnauthorized, "credenciais inválidas")
	u, err := s.store.GetUsuarioByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if apperr.Is(err, apperr.CodeNotFound) {
			err = invalid
		}
		s.fail(w, r, err)
		return
	}
	if !auth.CheckPassword(u.SenhaHash, req.Senha) {
		s.fail(w, r, invalid)
		return
	}
	if !u.Ativo {
		s.fail(w, r, apperr.New(apperr.CodeForbidden, "usuário inativo"))
		return
	}
	s.respondToken(w, r, http.StatusOK, u)
}

func (s *Server) respondToken(w http.ResponseWriter, r *http.Request, status int, u model.Usuario) {
	token, err := s.issuer.Generate(u)
	if err != nil {
		s.fail(w, r, apperr.Wrap(apperr.CodeInternal, "falha ao gerar token", err))
		return
	}
	s.writeJSON(w, status, authResponse{Token: token, Usuario: u})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, err := s.store.GetUsuario(r.Context(), auth.FromContext(r.Context()).UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleTrocarSenha(w http.ResponseWriter, r *http.Request) {
	var req senhaRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if len(req.NovaSenha) < minSenha {
		s.fail(w, r, apperr.Invalidf("a nova senha deve ter ao menos %d caracteres", minSenha))
		return
	}
	c := auth.FromContext(r.Context())
	u, err := s.store.GetUsuario(r.Context(), c.UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !auth.CheckPassword(u.SenhaHash, req.SenhaAtual) {
		s.fail(w, r, apperr.New(apperr.CodeUnauthorized, "senha atual incorreta"))
		return
	}
	hash, err := auth.HashPassword(req.NovaSenha)
	if err != nil {
		s.fail(w, r, apperr.Wrap(apperr.CodeInternal, "falha ao gerar hash", err))
		return
	}
	if err := s.store.UpdateSenha(r.Context(), u.ID, hash, false); err != nil {
		s.fail(w, r, err)
		return
	}
	s.audit(r, "TROCAR_SENHA", "usuario", u.ID, "")
	w.WriteHeader(http.StatusNoContent)
}
