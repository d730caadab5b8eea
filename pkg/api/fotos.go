package api

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"vistorias/pkg/apperr"
	"vistorias/pkg/checklist"
	"vistorias/pkg/model"
	"vistorias/pkg/notify"
	"vistorias/pkg/storage"
)

var fotoTypes = []string{"image/jpeg", "image/png", "image/webp", "image/heic", "image/heif"}

type fotoResponse struct {
	Foto      model.Foto                     `json:"foto"`
	Item      *model.VistoriaChecklistStatus `json:"item,omitempty"`
	Progresso *checklist.Progresso           `json:"progresso,omitempty"`
}

func (s *Server) fotoRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/vistorias/{id}/fotos", s.authed(s.handleUploadFoto))
	mux.HandleFunc("GET /api/vistorias/{id}/fotos", s.authed(s.handleListFotos))
	mux.HandleFunc("GET /api/fotos/{id}", s.authed(s.handleGetFoto))
	mux.HandleFunc("DELETE /api/fotos/{id}", s.authed(s.handleDeleteFoto))
}

func formUint(r *http.Request, name string) (*uint, error) {
	raw := strings.TrimSpace(r.FormValue(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || v == 0 {
		return nil, apperr.Invalidf("%s inválido", name)
	}
	u := uint(v)
	return &u, nil
}

// handleUploadFoto stores a photo and, when it satisfies a checklist item
// (explicit checklistItemId or keyword match), links it and renames the
// object under the item's key.
func (s *Server) handleUploadFoto(w http.ResponseWriter, r *http.Request) {
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

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+(1<<20))
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.fail(w, r, apperr.Invalidf("arquivo excede o limite de %d MB", s.maxUpload>>20))
			return
		}
		s.fail(w, r, apperr.Wrap(apperr.CodeInvalidInput, "formulário multipart inválido", err))
		return
	}
	defer r.MultipartForm.RemoveAll()
	file, header, err := r.FormFile("foto")
	if err != nil {
		s.fail(w, r, apperr.Invalid("campo foto obrigatório"))
		return
	}
	defer file.Close()
	if header.Size > s.maxUpload {
		s.fail(w, r, apperr.Invalidf("arquivo excede o limite de %d MB", s.maxUpload>>20))
		return
	}
	tipoID, err := formUint(r, "tipoId")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	itemID, err := formUint(r, "checklistItemId")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	observacao := strings.TrimSpace(r.FormValue("observacao"))

	mt, err := mimetype.DetectReader(file)
	if err != nil {
		s.fail(w, r, apperr.Wrap(apperr.CodeInvalidInput, "não foi possível ler o arquivo", err))
		return
	}
	if !mimetype.EqualsAny(mt.String(), fotoTypes...) {
		s.fail(w, r, apperr.Invalidf("tipo de arquivo não permitido: %s", mt.String()))
		return
	}
	if _, err := file.Seek(0, 0); err != nil {
		s.fail(w, r, apperr.Wrap(apperr.CodeInternal, "falha ao ler o arquivo", err))
		return
	}

	if v.Status == model.StatusPendente {
		if v, err = s.store.IniciarVistoria(ctx, v.ID); err != nil {
			s.fail(w, r, err)
			return
		}
		s.notifyVistoria(notify.EventVistoriaStatus, v, map[string]string{"status": v.Status})
	}

	var alvo *model.VistoriaChecklistStatus
	if itemID != nil {
		it, err := s.store.GetItemChecklist(ctx, v.ID, *itemID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if !checklist.Disponivel(it) {
			s.fail(w, r, apperr.Conflict("item do checklist já concluído: "+it.Nome))
			return
		}
		alvo = &it
	}
	var tipo model.TipoFotoChecklist
	if tipoID != nil {
		if tipo, err = s.store.GetTipoFoto(ctx, *tipoID); err != nil {
			s.fail(w, r, err)
			return
		}
	}

	ext := mt.Extension()
	key := storage.FotoKey(v.ID, ext)
	if err := s.objects.Put(ctx, key, file, header.Size, mt.String()); err != nil {
		s.fail(w, r, apperr.Storage(err))
		return
	}
	foto := model.Foto{
		VistoriaID:   v.ID,
		TipoID:       tipoID,
		Chave:        key,
		NomeOriginal: filepath.Base(header.Filename),
		ContentType:  mt.String(),
		Tamanho:      header.Size,
		Observacao:   observacao,
	}
	if err := s.store.CreateFoto(ctx, &foto); err != nil {
		if derr := s.objects.Delete(ctx, key); derr != nil {
			s.log.Warn("orphan foto object", zap.String("key", key), zap.Error(derr))
		}
		s.fail(w, r, err)
		return
	}

	if alvo == nil {
		itens, err := s.store.ChecklistDaVistoria(ctx, v.ID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		nome := strings.TrimSuffix(foto.NomeOriginal, filepath.Ext(foto.NomeOriginal))
		alvo = checklist.Match(itens, tipo.NomeExibicao, tipo.Codigo, observacao, nome)
	}

	resp := fotoResponse{Foto: foto}
	if alvo != nil {
		it, err := s.store.VincularFoto(ctx, foto.ID, alvo.ID)
		switch {
		case err == nil:
			resp.Item = &it
			resp.Foto.ChecklistItemID = &it.ID
			resp.Foto.Chave = s.renomearFoto(r, foto, it, ext)
		case itemID != nil:
			s.descartarFoto(ctx, foto)
			s.fail(w, r, err)
			return
		default:
			s.log.Warn("checklist link failed", zap.Uint("foto", foto.ID), zap.Uint("item", alvo.ID), zap.Error(err))
		}
	}
	if itens, err := s.store.ChecklistDaVistoria(ctx, v.ID); err == nil {
		p := checklist.CalcularProgresso(itens)
		resp.Progresso = &p
	}

	s.fillFotoURL(r, &resp.Foto)
	s.audit(r, "UPLOAD_FOTO", "vistoria", v.ID, foto.NomeOriginal)
	s.notifyVistoria(notify.EventFotoAdicionada, v, resp)
	s.writeJSON(w, http.StatusCreated, resp)
}

// descartarFoto undoes an upload whose requested checklist link failed.
func (s *Server) descartarFoto(ctx context.Context, f model.Foto) {
	if _, err := s.store.DeleteFoto(ctx, f.ID); err != nil {
		s.log.Warn("discard foto row failed", zap.Uint("foto", f.ID), zap.Error(err))
	}
	if err := s.objects.Delete(ctx, f.Chave); err != nil {
		s.log.Warn("orphan foto object", zap.String("key", f.Chave), zap.Error(err))
	}
}

// renomearFoto moves the object to the checklist key and returns the key the
// row ends up with. Failures keep the original key.
func (s *Server) renomearFoto(r *http.Request, f model.Foto, it model.VistoriaChecklistStatus, ext string) string {
	ctx := r.Context()
	dst := storage.ChecklistFotoKey(f.VistoriaID, it.Ordem, it.Nome, f.ID, ext)
	if err := s.objects.Move(ctx, f.Chave, dst); err != nil {
		s.log.Warn("foto rename failed", zap.Uint("foto", f.ID), zap.String("src", f.Chave), zap.String("dst", dst), zap.Error(err))
		return f.Chave
	}
	if err := s.store.UpdateFotoChave(ctx, f.ID, dst); err != nil {
		s.log.Error("foto key update failed, moving back", zap.Uint("foto", f.ID), zap.Error(err))
		if err := s.objects.Move(ctx, dst, f.Chave); err != nil {
			s.log.Error("foto move back failed", zap.Uint("foto", f.ID), zap.String("key", dst), zap.Error(err))
		}
		return f.Chave
	}
	return dst
}

func (s *Server) handleListFotos(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if _, err := s.vistoriaAcessivel(r, id); err != nil {
		s.fail(w, r, err)
		return
	}
	fotos, err := s.store.ListFotos(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if fotos == nil {
		fotos = []model.Foto{}
	}
	s.fillFotoURLs(r, fotos)
	s.writeJSON(w, http.StatusOK, fotos)
}

func (s *Server) fotoAcessivel(r *http.Request) (model.Foto, error) {
	id, err := pathID(r, "id")
	if err != nil {
		return model.Foto{}, err
	}
	f, err := s.store.GetFoto(r.Context(), id)
	if err != nil {
		return f, err
	}
	if _, err := s.vistoriaAcessivel(r, f.VistoriaID); err != nil {
		if apperr.Is(err, apperr.CodeNotFound) {
			return model.Foto{}, apperr.NotFound("foto")
		}
		return model.Foto{}, err
	}
	return f, nil
}

func (s *Server) handleGetFoto(w http.ResponseWriter, r *http.Request) {
	f, err := s.fotoAcessivel(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.fillFotoURL(r, &f)
	s.writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleDeleteFoto(w http.ResponseWriter, r *http.Request) {
	f, err := s.fotoAcessivel(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	deleted, err := s.store.DeleteFoto(r.Context(), f.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.objects.Delete(r.Context(), deleted.Chave); err != nil {
		s.log.Warn("delete foto object failed", zap.Uint("foto", f.ID), zap.String("key", deleted.Chave), zap.Error(err))
	}
	s.audit(r, "EXCLUIR_FOTO", "vistoria", f.VistoriaID, f.NomeOriginal)
	w.WriteHeader(http.StatusNoContent)
}
