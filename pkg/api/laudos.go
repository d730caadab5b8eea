package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"vistorias/pkg/apperr"
	"vistorias/pkg/laudo"
	"vistorias/pkg/model"
	"vistorias/pkg/notify"
	"vistorias/pkg/storage"
)

// laudoRequest carries the narrative fields an admin or inspector may edit.
type laudoRequest struct {
	Proprietario  *string    `json:"proprietario"`
	DataVistoria  *time.Time `json:"dataVistoria"`
	LocalVistoria *string    `json:"localVistoria"`
	Casco         *string    `json:"casco"`
	Motorizacao   *string    `json:"motorizacao"`
	Eletrica      *string    `json:"eletrica"`
	Seguranca     *string    `json:"seguranca"`
	Conclusao     *string    `json:"conclusao"`
	Observacoes   *string    `json:"observacoes"`
	ValorRisco    *float64   `json:"valorRisco"`
}

func (req laudoRequest) aplicar(l *model.Laudo) error {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&l.Proprietario, req.Proprietario)
	set(&l.LocalVistoria, req.LocalVistoria)
	set(&l.Casco, req.Casco)
	set(&l.Motorizacao, req.Motorizacao)
	set(&l.Eletrica, req.Eletrica)
	set(&l.Seguranca, req.Seguranca)
	set(&l.Conclusao, req.Conclusao)
	set(&l.Observacoes, req.Observacoes)
	if req.DataVistoria != nil {
		l.DataVistoria = req.DataVistoria
	}
	if req.ValorRisco != nil {
		if *req.ValorRisco < 0 {
			return apperr.Invalid("valor de risco não pode ser negativo")
		}
		l.ValorRisco = *req.ValorRisco
	}
	return nil
}

func (s *Server) laudoRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/vistorias/{id}/laudo", s.authed(s.handleGerarLaudo))
	mux.HandleFunc("GET /api/vistorias/{id}/laudo", s.authed(s.handleGetLaudoVistoria))
	mux.HandleFunc("PUT /api/laudos/{id}", s.authed(s.handleUpdateLaudo))
	mux.HandleFunc("GET /api/laudos/{id}/pdf", s.authed(s.handleLaudoPDF))
}

// handleGerarLaudo creates the report on first call and (re)renders its PDF.
func (s *Server) handleGerarLaudo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
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
	if err := laudo.PodeGerar(v); err != nil {
		s.fail(w, r, err)
		return
	}
	var req laudoRequest
	if r.ContentLength != 0 {
		if err := decode(w, r, &req); err != nil {
			s.fail(w, r, err)
			return
		}
	}

	l, err := s.store.GetLaudoByVistoria(ctx, v.ID)
	novo := apperr.Is(err, apperr.CodeNotFound)
	if err != nil && !novo {
		s.fail(w, r, err)
		return
	}
	if err := req.aplicar(&l); err != nil {
		s.fail(w, r, err)
		return
	}
	laudo.Preencher(&l, v)
	if novo {
		err = s.store.CreateLaudo(ctx, &l)
	} else {
		err = s.store.UpdateLaudo(ctx, &l)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}

	pdf, err := s.renderLaudo(ctx, l, v)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	key := storage.LaudoKey(v.ID, l.NumeroLaudo)
	if err := s.objects.Put(ctx, key, bytes.NewReader(pdf), int64(len(pdf)), "application/pdf"); err != nil {
		s.fail(w, r, apperr.Storage(err))
		return
	}
	now := time.Now()
	if err := s.store.SetLaudoPDF(ctx, l.ID, key, now); err != nil {
		s.fail(w, r, err)
		return
	}
	l.ChavePDF, l.GeradoEm = key, &now
	s.fillLaudoURL(r, &l)

	s.audit(r, "GERAR_LAUDO", "vistoria", v.ID, l.NumeroLaudo)
	s.notifyVistoria(notify.EventLaudoGerado, v, map[string]interface{}{"laudoId": l.ID, "numero": l.NumeroLaudo})
	status := http.StatusOK
	if novo {
		status = http.StatusCreated
	}
	s.writeJSON(w, status, l)
}

// renderLaudo gathers checklist and photos and renders the PDF. Checklist
// photos come first, in checklist order.
func (s *Server) renderLaudo(ctx context.Context, l model.Laudo, v model.Vistoria) ([]byte, error) {
	itens, err := s.store.ChecklistDaVistoria(ctx, v.ID)
	if err != nil {
		return nil, err
	}
	fotos, err := s.store.ListFotos(ctx, v.ID)
	if err != nil {
		return nil, err
	}
	nomeItem := map[uint]string{}
	ordemItem := map[uint]int{}
	for _, it := range itens {
		nomeItem[it.ID] = it.Nome
		ordemItem[it.ID] = it.Ordem
	}
	ordem := func(f model.Foto) int {
		if f.ChecklistItemID == nil {
			return 1 << 30
		}
		return ordemItem[*f.ChecklistItemID]
	}
	sort.SliceStable(fotos, func(i, j int) bool { return ordem(fotos[i]) < ordem(fotos[j]) })

	d := laudo.Dados{Laudo: l, Vistoria: v, Checklist: itens, Empresa: s.empresa}
	for _, f := range fotos {
		if len(d.Fotos) == laudo.MaxFotos {
			break
		}
		if f.ContentType != "image/jpeg" && f.ContentType != "image/png" {
			continue
		}
		data, err := s.lerObjeto(ctx, f.Chave)
		if err != nil {
			s.log.Warn("laudo foto skipped", zap.Uint("foto", f.ID), zap.Error(err))
			continue
		}
		titulo := f.NomeOriginal
		switch {
		case f.ChecklistItemID != nil && nomeItem[*f.ChecklistItemID] != "":
			titulo = nomeItem[*f.ChecklistItemID]
		case f.Tipo != nil:
			titulo = f.Tipo.NomeExibicao
		}
		d.Fotos = append(d.Fotos, laudo.Foto{Titulo: titulo, Data: data})
	}

	var buf bytes.Buffer
	if err := laudo.Render(&buf, d); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "falha ao gerar PDF", err)
	}
	return buf.Bytes(), nil
}

func (s *Server) lerObjeto(ctx context.Context, key string) ([]byte, error) {
	rc, err := s.objects.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(io.LimitReader(rc, s.maxUpload))
}

func (s *Server) fillLaudoURL(r *http.Request, l *model.Laudo) {
	if l.ChavePDF == "" {
		return
	}
	u, err := s.objects.URL(r.Context(), l.ChavePDF)
	if err != nil {
		s.log.Warn("laudo url failed", zap.Uint("laudo", l.ID), zap.Error(err))
		return
	}
	l.URLPDF = u
}

func (s *Server) handleGetLaudoVistoria(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if _, err := s.vistoriaAcessivel(r, id); err != nil {
		s.fail(w, r, err)
		return
	}
	l, err := s.store.GetLaudoByVistoria(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.fillLaudoURL(r, &l)
	s.writeJSON(w, http.StatusOK, l)
}

func (s *Server) laudoAcessivel(r *http.Request) (model.Laudo, error) {
	id, err := pathID(r, "id")
	if err != nil {
		return model.Laudo{}, err
	}
	l, err := s.store.GetLaudo(r.Context(), id)
	if err != nil {
		return l, err
	}
	if _, err := s.vistoriaAcessivel(r, l.VistoriaID); err != nil {
		if apperr.Is(err, apperr.CodeNotFound) {
			return model.Laudo{}, apperr.NotFound("laudo")
		}
		return model.Laudo{}, err
	}
	return l, nil
}

// handleUpdateLaudo edits the narrative; the PDF is regenerated on the next
// POST to the vistoria laudo route.
func (s *Server) handleUpdateLaudo(w http.ResponseWriter, r *http.Request) {
	l, err := s.laudoAcessivel(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req laudoRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := req.aplicar(&l); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.store.UpdateLaudo(r.Context(), &l); err != nil {
		s.fail(w, r, err)
		return
	}
	s.audit(r, "ATUALIZAR", "laudo", l.ID, l.NumeroLaudo)
	s.fillLaudoURL(r, &l)
	s.writeJSON(w, http.StatusOK, l)
}

func (s *Server) handleLaudoPDF(w http.ResponseWriter, r *http.Request) {
	l, err := s.laudoAcessivel(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if l.ChavePDF == "" {
		s.fail(w, r, apperr.Conflict("PDF do laudo ainda não foi gerado"))
		return
	}
	rc, err := s.objects.Get(r.Context(), l.ChavePDF)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.fail(w, r, apperr.NotFound("PDF do laudo"))
			return
		}
		s.fail(w, r, apperr.Storage(err))
		return
	}
	defer rc.Close()
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", l.NumeroLaudo+".pdf"))
	if _, err := io.Copy(w, rc); err != nil {
		s.log.Warn("laudo pdf stream interrupted", zap.Uint("laudo", l.ID), zap.Error(err))
	}
}
