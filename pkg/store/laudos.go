package store

import (
	"context"
	"time"

	"vistorias/pkg/model"
)

func (s *Store) GetLaudo(ctx context.Context, id uint) (model.Laudo, error) {
	var l model.Laudo
	err := s.ctx(ctx).First(&l, id).Error
	return l, mapErr(err, "laudo")
}

func (s *Store) GetLaudoByVistoria(ctx context.Context, vistoriaID uint) (model.Laudo, error) {
	var l model.Laudo
	err := s.ctx(ctx).Where("vistoria_id = ?", vistoriaID).First(&l).Error
	return l, mapErr(err, "laudo")
}

func (s *Store) CreateLaudo(ctx context.Context, l *model.Laudo) error {
	return mapErr(s.ctx(ctx).Omit("Vistoria").Create(l).Error, "laudo")
}

// UpdateLaudo saves the editable narrative fields.
func (s *Store) UpdateLaudo(ctx context.Context, l *model.Laudo) error {
	if _, err := s.GetLaudo(ctx, l.ID); err != nil {
		return err
	}
	err := s.ctx(ctx).Model(&model.Laudo{ID: l.ID}).
		Select("proprietario", "data_vistoria", "local_vistoria", "casco", "motorizacao",
			"eletrica", "seguranca", "conclusao", "observacoes", "valor_risco").
		Updates(l).Error
	return mapErr(err, "laudo")
}

func (s *Store) SetLaudoPDF(ctx context.Context, id uint, chave string, em time.Time) error {
	err := s.ctx(ctx).Model(&model.Laudo{ID: id}).Updates(map[string]interface{}{
		"chave_pdf": chave,
		"gerado_em": em,
	}).Error
	return mapErr(err, "laudo")
}
