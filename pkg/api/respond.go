package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"vistorias/pkg/apperr"
	"vistorias/pkg/auth"
	"vistorias/pkg/model"
	"vistorias/pkg/store"
)

const maxJSONBody = 1 << 20

type errorBody struct {
	Error   apperr.Code `json:"error"`
	Message string      `json:"message"`
}

// listResponse wraps paginated results.
type listResponse struct {
	Items interface{} `json:"items"`
	Total int64       `json:"total"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("write response failed", zap.Int("status", status), zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.writeJSON(w, apperr.HTTPStatus(err), errorBody{Error: apperr.CodeOf(err), Message: apperr.PublicMessage(err)})
}

// fail renders err and logs anything that maps to a 5xx.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if status := apperr.HTTPStatus(err); status >= 500 {
		s.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err))
	}
	s.writeError(w, err)
}

// decode reads a JSON body into v.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Invalid("corpo da requisição vazio")
		}
		return apperr.Wrap(apperr.CodeInvalidInput, "JSON inválido", err)
	}
	return nil
}

func pathID(r *http.Request, name string) (uint, error) {
	id, err := strconv.ParseUint(r.PathValue(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Invalidf("%s inválido", name)
	}
	return uint(id), nil
}

// queryUint returns 0 when the parameter is absent.
func queryUint(r *http.Request, name string) (uint, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, apperr.Invalidf("%s inválido", name)
	}
	return uint(v), nil
}

func queryBool(r *http.Request, name string) (*bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, apperr.Invalidf("%s inválido", name)
	}
	return &b, nil
}

// queryDate accepts YYYY-MM-DD or RFC 3339; nil when absent.
func queryDate(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	t, err := parseDate(raw)
	if err != nil {
		return nil, apperr.Invalidf("%s inválido", name)
	}
	return &t, nil
}

func parseDate(raw string) (time.Time, error) {
	if t, err := time.ParseInLocation("2006-01-02", raw, time.Local); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func pageOf(r *http.Request) (store.Page, error) {
	limit, err := queryUint(r, "limit")
	if err != nil {
		return store.Page{}, err
	}
	offset, err := queryUint(r, "offset")
	if err != nil {
		return store.Page{}, err
	}
	return store.Page{Limit: int(limit), Offset: int(offset)}, nil
}

func splitCSV(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, strings.ToUpper(p))
		}
	}
	return out
}

// audit records a mutation; failures are logged and never reach the client.
func (s *Server) audit(r *http.Request, acao, entidade string, id uint, detalhe string) {
	entry := model.AuditoriaLog{
		Acao:       acao,
		Entidade:   entidade,
		EntidadeID: id,
		Detalhe:    detalhe,
		IP:         clientIP(r),
	}
	if c := auth.FromContext(r.Context()); c != nil {
		uid := c.UserID
		entry.UsuarioID = &uid
	}
	if err := s.store.AppendAudit(r.Context(), entry); err != nil {
		s.log.Warn("audit append failed", zap.String("acao", acao), zap.String("entidade", entidade), zap.Error(err))
	}
}

// vistoriaAcessivel loads a vistoria and applies the owner rule. Inspectors
// get NOT_FOUND for vistorias of others.
func (s *Server) vistoriaAcessivel(r *http.Request, id uint) (model.Vistoria, error) {
	v, err := s.store.GetVistoria(r.Context(), id)
	if err != nil {
		return v, err
	}
	if !auth.PodeAcessarVistoria(auth.FromContext(r.Context()), v) {
		return model.Vistoria{}, apperr.NotFound("vistoria")
	}
	return v, nil
}

func (s *Server) fillFotoURLs(r *http.Request, fotos []model.Foto) {
	for i := range fotos {
		s.fillFotoURL(r, &fotos[i])
	}
}

func (s *Server) fillFotoURL(r *http.Request, f *model.Foto) {
	u, err := s.objects.URL(r.Context(), f.Chave)
	if err != nil {
		s.log.Warn("foto url failed", zap.Uint("foto", f.ID), zap.Error(err))
		return
	}
	f.URL = u
}
