package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"vistorias/pkg/apperr"
	"vistorias/pkg/model"
)

func ordemItens(db *gorm.DB) *gorm.DB { return db.Order("ordem") }

func (s *Store) ListTemplates(ctx context.Context) ([]model.ChecklistTemplate, error) {
	var out []model.ChecklistTemplate
	err := s.ctx(ctx).Preload("Itens", ordemItens).Order("tipo_embarcacao").Find(&out).Error
	return out, mapErr(err, "template")
}

func (s *Store) GetTemplate(ctx context.Context, id uint) (model.ChecklistTemplate, error) {
	var t model.ChecklistTemplate
	err := s.ctx(ctx).Preload("Itens", ordemItens).First(&t, id).Error
	return t, mapErr(err, "template")
}

func (s *Store) GetTemplateByTipo(ctx context.Context, tipo string) (model.ChecklistTemplate, error) {
	var t model.ChecklistTemplate
	err := s.ctx(ctx).Preload("Itens", ordemItens).Where("tipo_embarcacao = ?", tipo).First(&t).Error
	return t, mapErr(err, "template")
}

func (s *Store) CreateTemplate(ctx context.Context, t *model.ChecklistTemplate) error {
	numerarItens(t)
	return mapErr(s.ctx(ctx).Create(t).Error, "template")
}

// UpdateTemplate replaces the template header and its items. Checklists
// already instantiated keep their own copy.
func (s *Store) UpdateTemplate(ctx context.Context, t *model.ChecklistTemplate) error {
	numerarItens(t)
	err := s.ctx(ctx).Transaction(func(tx *gorm.DB) error {
		var cur model.ChecklistTemplate
		if err := tx.First(&cur, t.ID).Error; err != nil {
			return err
		}
		if err := tx.Model(&cur).Select("tipo_embarcacao", "nome", "descricao", "ativo").Updates(t).Error; err != nil {
			return err
		}
		if err := tx.Where("template_id = ?", t.ID).Delete(&model.ChecklistItem{}).Error; err != nil {
			return err
		}
		for i := range t.Itens {
			t.Itens[i].ID = 0
			t.Itens[i].TemplateID = t.ID
		}
		if len(t.Itens) == 0 {
			return nil
		}
		return tx.Create(&t.Itens).Error
	})
	return mapErr(err, "template")
}

func (s *Store) DeleteTemplate(ctx context.Context, id uint) error {
	err := s.ctx(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("template_id = ?", id).Delete(&model.ChecklistItem{}).Error; err != nil {
			return err
		}
		return deleteByID(tx, &model.ChecklistTemplate{}, id, "template")
	})
	return mapErr(err, "template")
}

// numerarItens fills missing Ordem values after the highest one given.
func numerarItens(t *model.ChecklistTemplate) {
	max := 0
	for _, it := range t.Itens {
		if it.Ordem > max {
			max = it.Ordem
		}
	}
	for i := range t.Itens {
		if t.Itens[i].Ordem == 0 {
			max++
			t.Itens[i].Ordem = max
		}
	}
}

func (s *Store) ListTiposFoto(ctx context.Context) ([]model.TipoFotoChecklist, error) {
	var out []model.TipoFotoChecklist
	err := s.ctx(ctx).Order("nome_exibicao").Find(&out).Error
	return out, mapErr(err, "tipo de foto")
}

func (s *Store) GetTipoFoto(ctx context.Context, id uint) (model.TipoFotoChecklist, error) {
	var t model.TipoFotoChecklist
	err := s.ctx(ctx).First(&t, id).Error
	return t, mapErr(err, "tipo de foto")
}

func (s *Store) ChecklistDaVistoria(ctx context.Context, vistoriaID uint) ([]model.VistoriaChecklistStatus, error) {
	var out []model.VistoriaChecklistStatus
	err := s.ctx(ctx).Where("vistoria_id = ?", vistoriaID).Order("ordem, id").Find(&out).Error
	return out, mapErr(err, "checklist")
}

func (s *Store) GetItemChecklist(ctx context.Context, vistoriaID, itemID uint) (model.VistoriaChecklistStatus, error) {
	var it model.VistoriaChecklistStatus
	err := s.ctx(ctx).Where("vistoria_id = ?", vistoriaID).First(&it, itemID).Error
	return it, mapErr(err, "item do checklist")
}

// AtualizarItemChecklist applies a manual status change. NAO_APLICAVEL is
// refused for mandatory items and CONCLUIDO needs a linked photo. PENDENTE
// and NAO_APLICAVEL clear the link on both sides.
func (s *Store) AtualizarItemChecklist(ctx context.Context, vistoriaID, itemID uint, status, observacao string) (model.VistoriaChecklistStatus, error) {
	var it model.VistoriaChecklistStatus
	err := s.ctx(ctx).Transaction(func(tx *gorm.DB) error {
		v, err := lockVistoria(tx, vistoriaID)
		if err != nil {
			return err
		}
		if v.Status != model.StatusEmAndamento {
			return apperr.Conflict("checklist só pode ser alterado com a vistoria em andamento")
		}
		if err := tx.Where("vistoria_id = ?", vistoriaID).First(&it, itemID).Error; err != nil {
			return mapErr(err, "item do checklist")
		}
		upd := map[string]interface{}{"observacao": observacao}
		switch status {
		case model.ItemPendente:
			upd["status"] = status
			upd["foto_id"] = nil
			upd["concluido_em"] = nil
		case model.ItemNaoAplicavel:
			if it.Obrigatorio {
				return apperr.Invalid("item obrigatório não pode ser marcado como não aplicável")
			}
			upd["status"] = status
			upd["foto_id"] = nil
			upd["concluido_em"] = nil
		case model.ItemConcluido:
			if it.FotoID == nil {
				return apperr.Invalid("item só pode ser concluído com uma foto vinculada")
			}
			upd["status"] = status
			if it.ConcluidoEm == nil {
				upd["concluido_em"] = time.Now()
			}
		case "":
		default:
			return apperr.Invalid("status de item inválido: " + status)
		}
		if err := tx.Model(&it).Updates(upd).Error; err != nil {
			return err
		}
		if status == model.ItemPendente || status == model.ItemNaoAplicavel {
			if err := tx.Model(&model.Foto{}).Where("checklist_item_id = ?", itemID).
				Update("checklist_item_id", nil).Error; err != nil {
				return err
			}
		}
		return tx.First(&it, itemID).Error
	})
	return it, mapErr(err, "item do checklist")
}
