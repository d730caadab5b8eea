package api

import (
	"context"
	"net/http"
	"strings"

	"vistorias/pkg/apperr"
	"vistorias/pkg/model"
	"vistorias/pkg/store"
	"vistorias/pkg/validate"
)

func (s *Server) cadastroRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/clientes", s.authed(s.handleListClientes))
	mux.HandleFunc("POST /api/clientes", s.admin(s.handleCreateCliente))
	mux.HandleFunc("GET /api/clientes/documento/{doc}", s.authed(s.handleClientePorDocumento))
	mux.HandleFunc("GET /api/clientes/{id}", s.authed(s.handleGetCliente))
	mux.HandleFunc("PUT /api/clientes/{id}", s.admin(s.handleUpdateCliente))
	mux.HandleFunc("DELETE /api/clientes/{id}", s.admin(s.handleDeleteCliente))

	mux.HandleFunc("GET /api/embarcacoes", s.authed(s.handleListEmbarcacoes))
	mux.HandleFunc("POST /api/embarcacoes", s.admin(s.handleCreateEmbarcacao))
	mux.HandleFunc("GET /api/embarcacoes/{id}", s.authed(s.handleGetEmbarcacao))
	mux.HandleFunc("PUT /api/embarcacoes/{id}", s.admin(s.handleUpdateEmbarcacao))
	mux.HandleFunc("DELETE /api/embarcacoes/{id}", s.admin(s.handleDeleteEmbarcacao))

	mux.HandleFunc("GET /api/seguradoras", s.authed(s.handleListSeguradoras))
	mux.HandleFunc("POST /api/seguradoras", s.admin(s.handleCreateSeguradora))
	mux.HandleFunc("GET /api/seguradoras/{id}", s.authed(s.handleGetSeguradora))
	mux.HandleFunc("GET /api/seguradoras/{id}/tipos", s.authed(s.handleSeguradoraTipos))
	mux.HandleFunc("PUT /api/seguradoras/{id}", s.admin(s.handleUpdateSeguradora))
	mux.HandleFunc("DELETE /api/seguradoras/{id}", s.admin(s.handleDeleteSeguradora))

	mux.HandleFunc("GET /api/locais", s.authed(s.handleListLocais))
	mux.HandleFunc("POST /api/locais", s.admin(s.handleCreateLocal))
	mux.HandleFunc("GET /api/locais/{id}", s.authed(s.handleGetLocal))
	mux.HandleFunc("PUT /api/locais/{id}", s.admin(s.handleUpdateLocal))
	mux.HandleFunc("DELETE /api/locais/{id}", s.admin(s.handleDeleteLocal))

	mux.HandleFunc("GET /api/cep/{cep}", s.authed(s.handleCEP))
	mux.HandleFunc("GET /api/tipos-embarcacao", s.authed(func(w http.ResponseWriter, _ *http.Request) {
		s.writeJSON(w, http.StatusOK, model.TiposEmbarcacao)
	}))
}

// validarEndereco normalizes CEP and UF; an empty address is valid.
func validarEndereco(e *model.Endereco) []string {
	var errs []string
	e.CEP = validate.Digits(e.CEP)
	e.Estado = strings.ToUpper(strings.TrimSpace(e.Estado))
	if e.CEP != "" && !validate.CEP(e.CEP) {
		errs = append(errs, "CEP inválido")
	}
	if e.Estado != "" && !validate.UF(e.Estado) {
		errs = append(errs, "UF inválida")
	}
	return errs
}

func validarCliente(c *model.Cliente) error {
	var errs []string
	c.Nome = strings.TrimSpace(c.Nome)
	if c.Nome == "" {
		errs = append(errs, "nome obrigatório")
	}
	if c.TipoPessoa == "" {
		c.TipoPessoa = model.PessoaFisica
	}
	c.TipoPessoa = strings.ToUpper(c.TipoPessoa)
	c.CPF = digitsPtr(c.CPF)
	c.CNPJ = digitsPtr(c.CNPJ)
	switch c.TipoPessoa {
	case model.PessoaFisica:
		c.CNPJ = nil
		if c.CPF == nil || !validate.CPF(*c.CPF) {
			errs = append(errs, "CPF inválido")
		}
	case model.PessoaJuridica:
		c.CPF = nil
		if c.CNPJ == nil || !validate.CNPJ(*c.CNPJ) {
			errs = append(errs, "CNPJ inválido")
		}
	default:
		errs = append(errs, "tipo de pessoa deve ser FISICA ou JURIDICA")
	}
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	if c.Email != "" && !validate.Email(c.Email) {
		errs = append(errs, "e-mail inválido")
	}
	errs = append(errs, validarEndereco(&c.Endereco)...)
	if len(errs) > 0 {
		return apperr.Invalid(strings.Join(errs, "; "))
	}
	return nil
}

func digitsPtr(p *string) *string {
	if p == nil {
		return nil
	}
	d := validate.Digits(*p)
	if d == "" {
		return nil
	}
	return &d
}

func validarEmbarcacao(e *model.Embarcacao) error {
	var errs []string
	e.Nome = strings.TrimSpace(e.Nome)
	e.NrInscricaoBarco = strings.ToUpper(strings.TrimSpace(e.NrInscricaoBarco))
	e.TipoEmbarcacao = strings.ToUpper(strings.TrimSpace(e.TipoEmbarcacao))
	if e.Nome == "" {
		errs = append(errs, "nome obrigatório")
	}
	if e.NrInscricaoBarco == "" {
		errs = append(errs, "número de inscrição obrigatório")
	}
	if !model.TipoEmbarcacaoValido(e.TipoEmbarcacao) {
		errs = append(errs, "tipo de embarcação inválido")
	}
	if e.ValorEmbarcacao < 0 || e.Comprimento < 0 {
		errs = append(errs, "valores não podem ser negativos")
	}
	if e.AnoFabricacao != 0 && (e.AnoFabricacao < 1900 || e.AnoFabricacao > 2100) {
		errs = append(errs, "ano de fabricação inválido")
	}
	if len(errs) > 0 {
		return apperr.Invalid(strings.Join(errs, "; "))
	}
	return nil
}

func validarLocal(l *model.Local) error {
	var errs []string
	if l.Tipo == "" {
		l.Tipo = model.LocalMarina
	}
	l.Tipo = strings.ToUpper(l.Tipo)
	switch l.Tipo {
	case model.LocalMarina, model.LocalResidencia, model.LocalOutro:
	default:
		errs = append(errs, "tipo de local inválido")
	}
	if l.Tipo == model.LocalMarina && strings.TrimSpace(l.NomeLocal) == "" {
		errs = append(errs, "nome da marina obrigatório")
	}
	errs = append(errs, validarEndereco(&l.Endereco)...)
	if len(errs) > 0 {
		return apperr.Invalid(strings.Join(errs, "; "))
	}
	return nil
}

func (s *Server) handleListClientes(w http.ResponseWriter, r *http.Request) {
	p, err := pageOf(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ativo, err := queryBool(r, "ativo")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	list, total, err := s.store.ListClientes(r.Context(), store.ClienteFiltro{Busca: r.URL.Query().Get("busca"), Ativo: ativo}, p)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, listResponse{Items: list, Total: total})
}

func (s *Server) handleGetCliente(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	c, err := s.store.GetCliente(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleClientePorDocumento(w http.ResponseWriter, r *http.Request) {
	doc := validate.Digits(r.PathValue("doc"))
	if !validate.CPF(doc) && !validate.CNPJ(doc) {
		s.fail(w, r, apperr.Invalid("CPF ou CNPJ inválido"))
		return
	}
	c, err := s.store.GetClienteByDocumento(r.Context(), doc)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleCreateCliente(w http.ResponseWriter, r *http.Request) {
	var c model.Cliente
	if err := decode(w, r, &c); err != nil {
		s.fail(w, r, err)
		return
	}
	c.ID = 0
	c.Ativo = true
	if err := validarCliente(&c); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.store.CreateCliente(r.Context(), &c); err != nil {
		s.fail(w, r, err)
		return
	}
	s.audit(r, "CRIAR", "cliente", c.ID, c.Nome)
	s.writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleUpdateCliente(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var c model.Cliente
	if err := decode(w, r, &c); err != nil {
		s.fail(w, r, err)
		return
	}
	c.ID = id
	if err := validarCliente(&c); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.store.UpdateCliente(r.Context(), &c); err != nil {
		s.fail(w, r, err)
		return
	}
	s.audit(r, "ATUALIZAR", "cliente", id, c.Nome)
	s.handleGetCliente(w, r)
}

func (s *Server) handleDeleteCliente(w http.ResponseWriter, r *http.Request) {
	s.deleteCadastro(w, r, "cliente", s.store.DeleteCliente)
}

func (s *Server) handleListEmbarcacoes(w http.ResponseWriter, r *http.Request) {
	p, err := pageOf(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var f store.EmbarcacaoFiltro
	if f.ClienteID, err = queryUint(r, "clienteId"); err != nil {
		s.fail(w, r, err)
		return
	}
	if f.SeguradoraID, err = queryUint(r, "seguradoraId"); err != nil {
		s.fail(w, r, err)
		return
	}
	f.Tipo = strings.ToUpper(r.URL.Query().Get("tipo"))
	f.Busca = r.URL.Query().Get("busca")
	list, total, err := s.store.ListEmbarcacoes(r.Context(), f, p)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, listResponse{Items: list, Total: total})
}

func (s *Server) handleGetEmbarcacao(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	e, err := s.store.GetEmbarcacao(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleCreateEmbarcacao(w http.ResponseWriter, r *http.Request) {
	var e model.Embarcacao
	if err := decode(w, r, &e); err != nil {
		s.fail(w, r, err)
		return
	}
	e.ID = 0
	if err := validarEmbarcacao(&e); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.store.CreateEmbarcacao(r.Context(), &e); err != nil {
		s.fail(w, r, err)
		return
	}
	s.audit(r, "CRIAR", "embarcacao", e.ID, e.NrInscricaoBarco)
	s.writeJSON(w, http.StatusCreated, e)
}

func (s *Server) handleUpdateEmbarcacao(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var e model.Embarcacao
	if err := decode(w, r, &e); err != nil {
		s.fail(w, r, err)
		return
	}
	e.ID = id
	if err := validarEmbarcacao(&e); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.store.UpdateEmbarcacao(r.Context(), &e); err != nil {
		s.fail(w, r, err)
		return
	}
	s.audit(r, "ATUALIZAR", "embarcacao", id, e.NrInscricaoBarco)
	s.handleGetEmbarcacao(w, r)
}

func (s *Server) handleDeleteEmbarcacao(w http.ResponseWriter, r *http.Request) {
	s.deleteCadastro(w, r, "embarcacao", s.store.DeleteEmbarcacao)
}

func (s *Server) handleListSeguradoras(w http.ResponseWriter, r *http.Request) {
	ativas, err := queryBool(r, "ativas")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	list, err := s.store.ListSeguradoras(r.Context(), ativas != nil && *ativas)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetSeguradora(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sg, err := s.store.GetSeguradora(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sg)
}

// handleSeguradoraTipos lists the vessel types an insurer accepts; an insurer
// without restrictions accepts all of them.
func (s *Server) handleSeguradoraTipos(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sg, err := s.store.GetSeguradora(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	tipos := make([]string, 0, len(model.TiposEmbarcacao))
	for _, t := range model.TiposEmbarcacao {
		if sg.Permite(t) {
			tipos = append(tipos, t)
		}
	}
	s.writeJSON(w, http.StatusOK, tipos)
}

type seguradoraRequest struct {
	Nome            string   `json:"nome"`
	Ativo           *bool    `json:"ativo"`
	TiposPermitidos []string `json:"tiposPermitidos"`
}

func (req seguradoraRequest) modelo(id uint) (model.Seguradora, error) {
	sg := model.Seguradora{ID: id, Nome: strings.TrimSpace(req.Nome), Ativo: req.Ativo == nil || *req.Ativo}
	if sg.Nome == "" {
		return sg, apperr.Invalid("nome obrigatório")
	}
	seen := map[string]bool{}
	for _, t := range req.TiposPermitidos {
		t = strings.ToUpper(strings.TrimSpace(t))
		if !model.TipoEmbarcacaoValido(t) {
			return sg, apperr.Invalidf("tipo de embarcação inválido: %s", t)
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		sg.TiposPermitidos = append(sg.TiposPermitidos, model.SeguradoraTipoEmbarcacao{TipoEmbarcacao: t})
	}
	return sg, nil
}

func (s *Server) handleCreateSeguradora(w http.ResponseWriter, r *http.Request) {
	var req seguradoraRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	sg, err := req.modelo(0)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.store.CreateSeguradora(r.Context(), &sg); err != nil {
		s.fail(w, r, err)
		return
	}
	s.audit(r, "CRIAR", "seguradora", sg.ID, sg.Nome)
	s.writeJSON(w, http.StatusCreated, sg)
}

func (s *Server) handleUpdateSeguradora(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req seguradoraRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	sg, err := req.modelo(id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.store.UpdateSeguradora(r.Context(), &sg); err != nil {
		s.fail(w, r, err)
		return
	}
	s.audit(r, "ATUALIZAR", "seguradora", id, sg.Nome)
	s.handleGetSeguradora(w, r)
}

func (s *Server) handleDeleteSeguradora(w http.ResponseWriter, r *http.Request) {
	s.deleteCadastro(w, r, "seguradora", s.store.DeleteSeguradora)
}

func (s *Server) handleListLocais(w http.ResponseWriter, r *http.Request) {
	p, err := pageOf(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	list, total, err := s.store.ListLocais(r.Context(), strings.ToUpper(r.URL.Query().Get("tipo")), p)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, listResponse{Items: list, Total: total})
}

func (s *Server) handleGetLocal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	l, err := s.store.GetLocal(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, l)
}

func (s *Server) handleCreateLocal(w http.ResponseWriter, r *http.Request) {
	var l model.Local
	if err := decode(w, r, &l); err != nil {
		s.fail(w, r, err)
		return
	}
	l.ID = 0
	if err := validarLocal(&l); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.store.CreateLocal(r.Context(), &l); err != nil {
		s.fail(w, r, err)
		return
	}
	s.audit(r, "CRIAR", "local", l.ID, l.NomeLocal)
	s.writeJSON(w, http.StatusCreated, l)
}

func (s *Server) handleUpdateLocal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var l model.Local
	if err := decode(w, r, &l); err != nil {
		s.fail(w, r, err)
		return
	}
	l.ID = id
	if err := validarLocal(&l); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.store.UpdateLocal(r.Context(), &l); err != nil {
		s.fail(w, r, err)
		return
	}
	s.audit(r, "ATUALIZAR", "local", id, l.NomeLocal)
	s.handleGetLocal(w, r)
}

func (s *Server) handleDeleteLocal(w http.ResponseWriter, r *http.Request) {
	s.deleteCadastro(w, r, "local", s.store.DeleteLocal)
}

func (s *Server) deleteCadastro(w http.ResponseWriter, r *http.Request, entidade string, del func(context.Context, uint) error) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := del(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	s.audit(r, "EXCLUIR", entidade, id, "")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCEP(w http.ResponseWriter, r *http.Request) {
	if s.cep == nil {
		s.fail(w, r, apperr.New(apperr.CodeExternal, "consulta de CEP indisponível"))
		return
	}
	res, err := s.cep.Lookup(r.Context(), r.PathValue("cep"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}
