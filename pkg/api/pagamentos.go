package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"vistorias/pkg/apperr"
	"vistorias/pkg/auth"
	"vistorias/pkg/model"
	"vistorias/pkg/notify"
	"vistorias/pkg/pagamento"
	"vistorias/pkg/storage"
	"vistorias/pkg/store"
)

var comprovanteTypes = []string{"application/pdf", "image/jpeg", "image/png"}

type pendentesResponse struct {
	Periodo    pagamento.Intervalo `json:"periodo"`
	Vistorias  []model.Vistoria    `json:"vistorias"`
	Quantidade int                 `json:"quantidade"`
	Total      float64             `json:"total"`
}

type loteRequest struct {
	VistoriadorID uint   `json:"vistoriadorId"`
	PeriodoTipo   string `json:"periodoTipo"`
	Data          string `json:"data"`
	Observacoes   string `json:"observacoes"`
}

type pagarRequest struct {
	FormaPagamento string `json:"formaPagamento"`
	DataPagamento  string `json:"dataPagamento"`
	Observacoes    string `json:"observacoes"`
}

func (s *Server) pagamentoRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/pagamentos/pendentes", s.authed(s.handlePendentes))
	mux.HandleFunc("GET /api/pagamentos/resumo", s.authed(s.handleResumoPagamentos))
	mux.HandleFunc("GET /api/pagamentos/lotes", s.authed(s.handleListLotes))
	mux.HandleFunc("POST /api/pagamentos/lotes", s.admin(s.handleCriarLote))
	mux.HandleFunc("GET /api/pagamentos/lotes/{id}", s.authed(s.handleGetLote))
	mux.HandleFunc("POST /api/pagamentos/lotes/{id}/pagar", s.admin(s.handlePagarLote))
	mux.HandleFunc("POST /api/pagamentos/lotes/{id}/cancelar", s.admin(s.handleCancelarLote))
	mux.HandleFunc("GET /api/pagamentos/lotes/{id}/csv", s.authed(s.handleLoteCSV))
}

// escopoVistoriador resolves whose payments the caller may see: admins pick
// any inspector (0 = all), inspectors only themselves.
func escopoVistoriador(r *http.Request) (uint, error) {
	id, err := queryUint(r, "vistoriadorId")
	if err != nil {
		return 0, err
	}
	if c := auth.FromContext(r.Context()); !c.IsAdmin() {
		return c.UserID, nil
	}
	return id, nil
}

// periodoDe reads the period kind and reference date, defaulting to the
// current month.
func periodoDe(tipo, data string) (pagamento.Intervalo, error) {
	if tipo == "" {
		tipo = model.PeriodoMensal
	}
	ref := time.Now()
	if data != "" {
		t, err := parseDate(data)
		if err != nil {
			return pagamento.Intervalo{}, apperr.Invalid("data de referência inválida")
		}
		ref = t
	}
	return pagamento.Periodo(tipo, ref)
}

func (s *Server) handlePendentes(w http.ResponseWriter, r *http.Request) {
	vid, err := escopoVistoriador(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if vid == 0 {
		s.fail(w, r, apperr.Invalid("vistoriadorId obrigatório"))
		return
	}
	per, err := periodoDe(r.URL.Query().Get("periodo"), r.URL.Query().Get("data"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	vs, err := s.store.VistoriasPendentesPagamento(r.Context(), vid, per.Inicio, per.Fim)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp := pendentesResponse{Periodo: per, Vistorias: vs, Quantidade: len(vs)}
	if resp.Vistorias == nil {
		resp.Vistorias = []model.Vistoria{}
	}
	for _, v := range vs {
		resp.Total += v.ValorVistoriador
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleResumoPagamentos(w http.ResponseWriter, r *http.Request) {
	vid, err := escopoVistoriador(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resumo, err := s.store.ResumoPagamentos(r.Context(), vid)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resumo)
}

func (s *Server) handleListLotes(w http.ResponseWriter, r *http.Request) {
	vid, err := escopoVistoriador(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	p, err := pageOf(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	f := store.LoteFiltro{VistoriadorID: vid, Status: strings.ToUpper(r.URL.Query().Get("status"))}
	list, total, err := s.store.ListLotes(r.Context(), f, p)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, listResponse{Items: list, Total: total})
}

func (s *Server) handleCriarLote(w http.ResponseWriter, r *http.Request) {
	var req loteRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.VistoriadorID == 0 {
		s.fail(w, r, apperr.Invalid("vistoriadorId obrigatório"))
		return
	}
	tipo := strings.ToUpper(strings.TrimSpace(req.PeriodoTipo))
	per, err := periodoDe(tipo, req.Data)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if tipo == "" {
		tipo = model.PeriodoMensal
	}
	lote, err := s.store.CriarLote(r.Context(), store.NovoLote{
		VistoriadorID: req.VistoriadorID,
		PeriodoTipo:   tipo,
		DataInicio:    per.Inicio,
		DataFim:       per.Fim,
		CobradoPorID:  auth.FromContext(r.Context()).UserID,
		Observacoes:   strings.TrimSpace(req.Observacoes),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.audit(r, "CRIAR", "lote_pagamento", lote.ID, fmt.Sprintf("%d vistorias, %s", lote.QuantidadeVistorias, pagamento.Moeda(lote.ValorTotal)))
	s.writeJSON(w, http.StatusCreated, lote)
}

func (s *Server) loteAcessivel(r *http.Request) (model.LotePagamento, error) {
	id, err := pathID(r, "id")
	if err != nil {
		return model.LotePagamento{}, err
	}
	l, err := s.store.GetLote(r.Context(), id)
	if err != nil {
		return l, err
	}
	if c := auth.FromContext(r.Context()); !c.IsAdmin() && l.VistoriadorID != c.UserID {
		return model.LotePagamento{}, apperr.NotFound("lote")
	}
	s.fillComprovanteURL(r, &l)
	return l, nil
}

func (s *Server) fillComprovanteURL(r *http.Request, l *model.LotePagamento) {
	if l.ComprovanteChave == "" {
		return
	}
	u, err := s.objects.URL(r.Context(), l.ComprovanteChave)
	if err != nil {
		s.log.Warn("comprovante url failed", zap.Uint("lote", l.ID), zap.Error(err))
		return
	}
	l.ComprovanteURL = u
}

func (s *Server) handleGetLote(w http.ResponseWriter, r *http.Request) {
	l, err := s.loteAcessivel(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, l)
}

// handlePagarLote settles a batch. The body is JSON, or multipart with the
// same fields plus an optional "comprovante" file.
func (s *Server) handlePagarLote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req pagarRequest
	var comprovante string
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+(1<<20))
		if err := r.ParseMultipartForm(8 << 20); err != nil {
			s.fail(w, r, apperr.Wrap(apperr.CodeInvalidInput, "formulário multipart inválido", err))
			return
		}
		defer r.MultipartForm.RemoveAll()
		req.FormaPagamento = r.FormValue("formaPagamento")
		req.DataPagamento = r.FormValue("dataPagamento")
		req.Observacoes = r.FormValue("observacoes")
		if comprovante, err = s.salvarComprovante(r, id); err != nil {
			s.fail(w, r, err)
			return
		}
	} else if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	p := store.Pagamento{
		FormaPagamento:   strings.ToUpper(strings.TrimSpace(req.FormaPagamento)),
		ComprovanteChave: comprovante,
		Observacoes:      strings.TrimSpace(req.Observacoes),
		PagoPorID:        auth.FromContext(ctx).UserID,
	}
	if req.DataPagamento != "" {
		if p.DataPagamento, err = parseDate(req.DataPagamento); err != nil {
			s.fail(w, r, apperr.Invalid("data de pagamento inválida"))
			return
		}
	}
	lote, err := s.store.PagarLote(ctx, id, p)
	if err != nil {
		if comprovante != "" {
			if derr := s.objects.Delete(ctx, comprovante); derr != nil {
				s.log.Warn("orphan comprovante", zap.String("key", comprovante), zap.Error(derr))
			}
		}
		s.fail(w, r, err)
		return
	}
	s.fillComprovanteURL(r, &lote)
	s.audit(r, "PAGAR", "lote_pagamento", id, p.FormaPagamento+" "+pagamento.Moeda(lote.ValorTotal))
	s.notify.Publish(notify.Event{Type: notify.EventLotePago, Para: lote.VistoriadorID, Payload: map[string]interface{}{
		"loteId": lote.ID, "valorTotal": lote.ValorTotal,
	}})
	s.writeJSON(w, http.StatusOK, lote)
}

// salvarComprovante stores the optional receipt; "" when none was sent.
func (s *Server) salvarComprovante(r *http.Request, loteID uint) (string, error) {
	file, header, err := r.FormFile("comprovante")
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil
	}
	if err != nil {
		return "", apperr.Wrap(apperr.CodeInvalidInput, "comprovante inválido", err)
	}
	defer file.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(file); err != nil {
		return "", apperr.Wrap(apperr.CodeInvalidInput, "falha ao ler comprovante", err)
	}
	mt := mimetype.Detect(buf.Bytes())
	if !mimetype.EqualsAny(mt.String(), comprovanteTypes...) {
		return "", apperr.Invalidf("tipo de comprovante não permitido: %s", mt.String())
	}
	ext := mt.Extension()
	if ext == "" {
		ext = filepath.Ext(header.Filename)
	}
	key := storage.ComprovanteKey(loteID, ext)
	if err := s.objects.Put(r.Context(), key, &buf, int64(buf.Len()), mt.String()); err != nil {
		return "", apperr.Storage(err)
	}
	return key, nil
}

func (s *Server) handleCancelarLote(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req struct {
		Motivo string `json:"motivo"`
	}
	if r.ContentLength != 0 {
		if err := decode(w, r, &req); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	lote, err := s.store.CancelarLote(r.Context(), id, strings.TrimSpace(req.Motivo))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.audit(r, "CANCELAR", "lote_pagamento", id, req.Motivo)
	s.writeJSON(w, http.StatusOK, lote)
}

func (s *Server) handleLoteCSV(w http.ResponseWriter, r *http.Request) {
	l, err := s.loteAcessivel(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := pagamento.ExportCSV(&buf, l); err != nil {
		s.fail(w, r, apperr.Wrap(apperr.CodeInternal, "falha ao gerar CSV", err))
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"lote-%d.csv\"", l.ID))
	_, _ = w.Write(buf.Bytes())
}
