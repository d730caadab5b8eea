package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"vistorias/pkg/apperr"
	"vistorias/pkg/checklist"
	"vistorias/pkg/model"
)

// CreateFoto records an uploaded photo; the vistoria must be in progress.
func (s *Store) CreateFoto(ctx context.Context, f *model.Foto) error {
	return s.ctx(ctx).Transaction(func(tx *gorm.DB) error {
		v, err := lockVistoria(tx, f.VistoriaID)
		if err != nil {
			return err
		}
		if v.Status != model.StatusEmAndamento {
			return apperr.Conflict("fotos só podem ser enviadas com a vistoria em andamento")
		}
		if f.TipoID != nil {
			var t model.TipoFotoChecklist
			if err := tx.First(&t, *f.TipoID).Error; err != nil {
				return mapErr(err, "tipo de foto")
			}
		}
		f.ID = 0
		f.ChecklistItemID = nil
		return mapErr(tx.Omit("Tipo").Create(f).Error, "foto")
	})
}

func (s *Store) GetFoto(ctx context.Context, id uint) (model.Foto, error) {
	var f model.Foto
	err := s.ctx(ctx).Preload("Tipo").First(&f, id).Error
	return f, mapErr(err, "foto")
}

func (s *Store) ListFotos(ctx context.Context, vistoriaID uint) ([]model.Foto, error) {
	var out []model.Foto
	err := s.ctx(ctx).Preload("Tipo").Where("vistoria_id = ?", vistoriaID).Order("created_at, id").Find(&out).Error
	return out, mapErr(err, "foto")
}

func (s *Store) UpdateFotoChave(ctx context.Context, id uint, chave string) error {
	err := s.ctx(ctx).Model(&model.Foto{ID: id}).Update("chave", chave).Error
	return mapErr(err, "foto")
}

// VincularFoto marks a checklist item done by the given photo.
func (s *Store) VincularFoto(ctx context.Context, fotoID, itemID uint) (model.VistoriaChecklistStatus, error) {
	var it model.VistoriaChecklistStatus
	err := s.ctx(ctx).Transaction(func(tx *gorm.DB) error {
		var f model.Foto
		if err := tx.First(&f, fotoID).Error; err != nil {
			return mapErr(err, "foto")
		}
		if err := tx.Where("vistoria_id = ?", f.VistoriaID).First(&it, itemID).Error; err != nil {
			return mapErr(err, "item do checklist")
		}
		if !checklist.Disponivel(it) {
			return apperr.Conflict("item do checklist já concluído: " + it.Nome)
		}
		now := time.Now()
		if err := tx.Model(&it).Updates(map[string]interface{}{
			"status":       model.ItemConcluido,
			"foto_id":      fotoID,
			"concluido_em": now,
		}).Error; err != nil {
			return err
		}
		if err := tx.Model(&f).Update("checklist_item_id", itemID).Error; err != nil {
			return err
		}
		return tx.First(&it, itemID).Error
	})
	return it, mapErr(err, "item do checklist")
}

// DeleteFoto removes the photo row and reverts checklist items it satisfied.
// An item with another linked photo points at that one instead. The deleted
// row is returned so its object can be removed.
func (s *Store) DeleteFoto(ctx context.Context, id uint) (model.Foto, error) {
	var f model.Foto
	err := s.ctx(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&f, id).Error; err != nil {
			return mapErr(err, "foto")
		}
		v, err := lockVistoria(tx, f.VistoriaID)
		if err != nil {
			return err
		}
		if v.Status == model.StatusConcluida || v.Status == model.StatusAprovada {
			return apperr.Conflict("fotos de vistoria concluída não podem ser excluídas")
		}
		var itens []model.VistoriaChecklistStatus
		if err := tx.Where("foto_id = ?", id).Find(&itens).Error; err != nil {
			return err
		}
		for _, it := range itens {
			var outra model.Foto
			err := tx.Where("checklist_item_id = ? AND id <> ?", it.ID, id).Order("id DESC").First(&outra).Error
			switch {
			case err == nil:
				err = tx.Model(&it).Update("foto_id", outra.ID).Error
			case err == gorm.ErrRecordNotFound:
				err = tx.Model(&it).Updates(map[string]interface{}{
					"status":       model.ItemPendente,
					"foto_id":      nil,
					"concluido_em": nil,
				}).Error
			}
			if err != nil {
				return err
			}
		}
		return tx.Delete(&model.Foto{}, id).Error
	})
	return f, mapErr(err, "foto")
}
