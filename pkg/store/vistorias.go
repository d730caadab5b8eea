package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"vistorias/pkg/apperr"
	"vistorias/pkg/checklist"
	"vistorias/pkg/model"
)

type VistoriaFiltro struct {
	VistoriadorID uint
	EmbarcacaoID  uint
	Status        []string
	De, Ate       *time.Time
}

func (s *Store) ListVistorias(ctx context.Context, f VistoriaFiltro, p Page) ([]model.Vistoria, int64, error) {
	q := s.ctx(ctx).Model(&model.Vistoria{})
	if f.VistoriadorID != 0 {
		q = q.Where("vistoriador_id = ?", f.VistoriadorID)
	}
	if f.EmbarcacaoID != 0 {
		q = q.Where("embarcacao_id = ?", f.EmbarcacaoID)
	}
	if len(f.Status) > 0 {
		q = q.Where("status IN ?", f.Status)
	}
	if f.De != nil {
		q = q.Where("created_at >= ?", *f.De)
	}
	if f.Ate != nil {
		q = q.Where("created_at < ?", *f.Ate)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, mapErr(err, "vistoria")
	}
	var out []model.Vistoria
	err := p.apply(q.Preload("Embarcacao.Cliente").Preload("Local").Preload("Vistoriador").
		Order("created_at DESC, id DESC")).Find(&out).Error
	return out, total, mapErr(err, "vistoria")
}

func (s *Store) GetVistoria(ctx context.Context, id uint) (model.Vistoria, error) {
	var v model.Vistoria
	err := s.ctx(ctx).
		Preload("Embarcacao.Cliente").
		Preload("Embarcacao.Seguradora").
		Preload("Local").
		Preload("Vistoriador").
		Preload("Administrador").
		First(&v, id).Error
	return v, mapErr(err, "vistoria")
}

// NovaVistoria carries a vistoria plus optional inline records created with it.
// Inline records take precedence over the matching ID fields.
type NovaVistoria struct {
	Vistoria   model.Vistoria
	Cliente    *model.Cliente
	Embarcacao *model.Embarcacao
	Local      *model.Local
}

// CreateVistoria persists the vistoria and any inline client, vessel or
// location in one transaction.
func (s *Store) CreateVistoria(ctx context.Context, n *NovaVistoria) error {
	return s.ctx(ctx).Transaction(func(tx *gorm.DB) error {
		v := &n.Vistoria
		if n.Cliente != nil {
			if err := tx.Create(n.Cliente).Error; err != nil {
				return mapErr(err, "cliente")
			}
			if n.Embarcacao != nil {
				n.Embarcacao.ClienteID = &n.Cliente.ID
			}
		}
		if n.Embarcacao != nil {
			if err := createEmbarcacao(tx, n.Embarcacao); err != nil {
				return err
			}
			v.EmbarcacaoID = n.Embarcacao.ID
		}
		if n.Local != nil {
			if err := tx.Create(n.Local).Error; err != nil {
				return mapErr(err, "local")
			}
			v.LocalID = &n.Local.ID
		}
		if err := checkVistoriaRefs(tx, v); err != nil {
			return err
		}
		v.ID = 0
		v.Status = model.StatusPendente
		v.DataInicio, v.DataConclusao, v.DataAprovacao = nil, nil, nil
		return mapErr(tx.Omit(clause.Associations).Create(v).Error, "vistoria")
	})
}

func checkVistoriaRefs(tx *gorm.DB, v *model.Vistoria) error {
	var e model.Embarcacao
	if err := tx.First(&e, v.EmbarcacaoID).Error; err != nil {
		return mapErr(err, "embarcação")
	}
	if v.LocalID != nil {
		var l model.Local
		if err := tx.First(&l, *v.LocalID).Error; err != nil {
			return mapErr(err, "local")
		}
	}
	var u model.Usuario
	if err := tx.First(&u, v.VistoriadorID).Error; err != nil {
		return mapErr(err, "vistoriador")
	}
	if !u.Ativo {
		return apperr.Invalid("vistoriador inativo")
	}
	if v.ValorVistoria < 0 || v.ValorVistoriador < 0 {
		return apperr.Invalid("valores não podem ser negativos")
	}
	return nil
}

// UpdateVistoria edits assignment and commercial fields. Approved vistorias are frozen.
func (s *Store) UpdateVistoria(ctx context.Context, v *model.Vistoria) error {
	return s.ctx(ctx).Transaction(func(tx *gorm.DB) error {
		cur, err := lockVistoria(tx, v.ID)
		if err != nil {
			return err
		}
		if cur.Status == model.StatusAprovada {
			return apperr.Conflict("vistoria aprovada não pode ser alterada")
		}
		if err := checkVistoriaRefs(tx, v); err != nil {
			return err
		}
		return mapErr(tx.Model(&model.Vistoria{ID: v.ID}).
			Select("embarcacao_id", "local_id", "vistoriador_id", "valor_vistoria", "valor_vistoriador",
				"observacoes", "contato_acompanhante_nome", "contato_acompanhante_telefone", "contato_acompanhante_email").
			Updates(v).Error, "vistoria")
	})
}

// DeleteVistoria removes a vistoria not yet concluded along with its photos
// and checklist, returning the object keys left to delete.
func (s *Store) DeleteVistoria(ctx context.Context, id uint) ([]string, error) {
	var keys []string
	err := s.ctx(ctx).Transaction(func(tx *gorm.DB) error {
		cur, err := lockVistoria(tx, id)
		if err != nil {
			return err
		}
		if cur.Status == model.StatusConcluida || cur.Status == model.StatusAprovada {
			return apperr.Conflict("vistoria concluída não pode ser excluída")
		}
		var fotos []model.Foto
		if err := tx.Where("vistoria_id = ?", id).Find(&fotos).Error; err != nil {
			return err
		}
		for _, f := range fotos {
			keys = append(keys, f.Chave)
		}
		for _, m := range []interface{}{&model.VistoriaChecklistStatus{}, &model.Foto{}, &model.Laudo{}} {
			if err := tx.Where("vistoria_id = ?", id).Delete(m).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&model.Vistoria{}, id).Error
	})
	if err != nil {
		return nil, mapErr(err, "vistoria")
	}
	return keys, nil
}

func lockVistoria(tx *gorm.DB, id uint) (model.Vistoria, error) {
	var v model.Vistoria
	err := tx.Clauses(lockingUpdate).First(&v, id).Error
	return v, mapErr(err, "vistoria")
}

// transicionar moves a vistoria to a new status inside a transaction; apply
// runs before the row is saved and may veto the change.
func (s *Store) transicionar(ctx context.Context, id uint, para string, apply func(tx *gorm.DB, v *model.Vistoria) error) (model.Vistoria, error) {
	err := s.ctx(ctx).Transaction(func(tx *gorm.DB) error {
		v, err := lockVistoria(tx, id)
		if err != nil {
			return err
		}
		if !model.PodeTransitar(v.Status, para) {
			return apperr.Conflict(fmt.Sprintf("transição inválida: %s -> %s", v.Status, para))
		}
		if apply != nil {
			if err := apply(tx, &v); err != nil {
				return err
			}
		}
		v.Status = para
		return tx.Model(&model.Vistoria{ID: id}).
			Select("status", "data_inicio", "data_conclusao", "data_aprovacao").
			Updates(&v).Error
	})
	if err != nil {
		return model.Vistoria{}, mapErr(err, "vistoria")
	}
	return s.GetVistoria(ctx, id)
}

// IniciarVistoria starts the inspection and instantiates its checklist from
// the active template for the vessel type.
func (s *Store) IniciarVistoria(ctx context.Context, id uint) (model.Vistoria, error) {
	return s.transicionar(ctx, id, model.StatusEmAndamento, func(tx *gorm.DB, v *model.Vistoria) error {
		now := time.Now()
		if v.DataInicio == nil {
			v.DataInicio = &now
		}
		return instanciarChecklist(tx, v)
	})
}

func instanciarChecklist(tx *gorm.DB, v *model.Vistoria) error {
	var n int64
	if err := tx.Model(&model.VistoriaChecklistStatus{}).Where("vistoria_id = ?", v.ID).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var e model.Embarcacao
	if err := tx.First(&e, v.EmbarcacaoID).Error; err != nil {
		return mapErr(err, "embarcação")
	}
	var tpl model.ChecklistTemplate
	err := tx.Preload("Itens", func(db *gorm.DB) *gorm.DB { return db.Order("ordem") }).
		Where("tipo_embarcacao = ? AND ativo = ?", e.TipoEmbarcacao, true).First(&tpl).Error
	if err == gorm.ErrRecordNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	itens := checklist.Instanciar(v.ID, tpl)
	if len(itens) == 0 {
		return nil
	}
	return tx.Create(&itens).Error
}

// SalvarRascunho stores the field form draft, starting a pending vistoria.
func (s *Store) SalvarRascunho(ctx context.Context, id uint, dados json.RawMessage) (model.Vistoria, error) {
	if len(dados) > 0 && !json.Valid(dados) {
		return model.Vistoria{}, apperr.Invalid("rascunho deve ser JSON válido")
	}
	v, err := s.GetVistoria(ctx, id)
	if err != nil {
		return v, err
	}
	switch v.Status {
	case model.StatusPendente:
		if _, err := s.IniciarVistoria(ctx, id); err != nil {
			return v, err
		}
	case model.StatusEmAndamento:
	default:
		return v, apperr.Conflict("vistoria já concluída")
	}
	if err := s.ctx(ctx).Model(&model.Vistoria{ID: id}).Update("dados_rascunho", []byte(dados)).Error; err != nil {
		return v, mapErr(err, "vistoria")
	}
	return s.GetVistoria(ctx, id)
}

// ConcluirVistoria closes the inspection once every mandatory checklist item is done.
func (s *Store) ConcluirVistoria(ctx context.Context, id uint, observacoes string) (model.Vistoria, error) {
	return s.transicionar(ctx, id, model.StatusConcluida, func(tx *gorm.DB, v *model.Vistoria) error {
		var itens []model.VistoriaChecklistStatus
		if err := tx.Where("vistoria_id = ?", v.ID).Order("ordem").Find(&itens).Error; err != nil {
			return err
		}
		prog := checklist.CalcularProgresso(itens)
		if !prog.PodeConcluir {
			return apperr.Conflict("itens obrigatórios pendentes: " + strings.Join(prog.Faltando, ", "))
		}
		now := time.Now()
		v.DataConclusao = &now
		if observacoes != "" {
			if err := tx.Model(&model.Vistoria{ID: v.ID}).Update("observacoes", observacoes).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) AprovarVistoria(ctx context.Context, id uint) (model.Vistoria, error) {
	return s.transicionar(ctx, id, model.StatusAprovada, func(tx *gorm.DB, v *model.Vistoria) error {
		now := time.Now()
		v.DataAprovacao = &now
		return nil
	})
}

// ReabrirVistoria returns a concluded vistoria to the field. Vistorias already
// in a payment batch stay closed.
func (s *Store) ReabrirVistoria(ctx context.Context, id uint) (model.Vistoria, error) {
	return s.transicionar(ctx, id, model.StatusEmAndamento, func(tx *gorm.DB, v *model.Vistoria) error {
		if v.Status != model.StatusConcluida {
			return apperr.Conflict("apenas vistorias concluídas podem ser reabertas")
		}
		var n int64
		if err := tx.Model(&model.VistoriaLotePagamento{}).Where("vistoria_id = ?", v.ID).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return apperr.Conflict("vistoria incluída em lote de pagamento")
		}
		v.DataConclusao = nil
		return nil
	})
}

// DevolverVistoria returns an in-progress vistoria to PENDENTE; the checklist is kept.
func (s *Store) DevolverVistoria(ctx context.Context, id uint) (model.Vistoria, error) {
	return s.transicionar(ctx, id, model.StatusPendente, nil)
}
