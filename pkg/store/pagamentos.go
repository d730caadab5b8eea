package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"vistorias/pkg/apperr"
	"vistorias/pkg/model"
)

var statusPagaveis = []string{model.StatusConcluida, model.StatusAprovada}

func pendentesQuery(tx *gorm.DB, vistoriadorID uint, de, ate time.Time) *gorm.DB {
	return tx.Model(&model.Vistoria{}).
		Where("vistoriador_id = ? AND status IN ?", vistoriadorID, statusPagaveis).
		Where("data_conclusao >= ? AND data_conclusao < ?", de, ate).
		Where("id NOT IN (?)", tx.Model(&model.VistoriaLotePagamento{}).Select("vistoria_id"))
}

// VistoriasPendentesPagamento lists concluded vistorias of the inspector in
// [de, ate) not yet in any live batch.
func (s *Store) VistoriasPendentesPagamento(ctx context.Context, vistoriadorID uint, de, ate time.Time) ([]model.Vistoria, error) {
	var out []model.Vistoria
	err := pendentesQuery(s.ctx(ctx), vistoriadorID, de, ate).
		Preload("Embarcacao").Order("data_conclusao, id").Find(&out).Error
	return out, mapErr(err, "vistoria")
}

// NovoLote describes a batch request; the period is [DataInicio, DataFim).
type NovoLote struct {
	VistoriadorID uint
	PeriodoTipo   string
	DataInicio    time.Time
	DataFim       time.Time
	CobradoPorID  uint
	Observacoes   string
}

// CriarLote groups every unbatched concluded vistoria of the period into a
// PENDENTE batch.
func (s *Store) CriarLote(ctx context.Context, n NovoLote) (model.LotePagamento, error) {
	lote := model.LotePagamento{
		VistoriadorID: n.VistoriadorID,
		PeriodoTipo:   n.PeriodoTipo,
		DataInicio:    n.DataInicio,
		DataFim:       n.DataFim,
		Status:        model.LotePendente,
		CobradoPorID:  n.CobradoPorID,
		Observacoes:   n.Observacoes,
	}
	err := s.ctx(ctx).Transaction(func(tx *gorm.DB) error {
		var u model.Usuario
		if err := tx.First(&u, n.VistoriadorID).Error; err != nil {
			return mapErr(err, "vistoriador")
		}
		var vs []model.Vistoria
		if err := pendentesQuery(tx, n.VistoriadorID, n.DataInicio, n.DataFim).Order("id").Find(&vs).Error; err != nil {
			return err
		}
		if len(vs) == 0 {
			return apperr.Invalid("nenhuma vistoria pendente de pagamento no período")
		}
		for _, v := range vs {
			lote.Vistorias = append(lote.Vistorias, model.VistoriaLotePagamento{
				VistoriaID:       v.ID,
				ValorVistoriador: v.ValorVistoriador,
			})
			lote.ValorTotal += v.ValorVistoriador
		}
		lote.QuantidadeVistorias = len(vs)
		return tx.Omit("Vistoriador").Create(&lote).Error
	})
	if err != nil {
		return lote, mapErr(err, "lote")
	}
	return s.GetLote(ctx, lote.ID)
}

type LoteFiltro struct {
	VistoriadorID uint
	Status        string
}

func (s *Store) ListLotes(ctx context.Context, f LoteFiltro, p Page) ([]model.LotePagamento, int64, error) {
	q := s.ctx(ctx).Model(&model.LotePagamento{})
	if f.VistoriadorID != 0 {
		q = q.Where("vistoriador_id = ?", f.VistoriadorID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, mapErr(err, "lote")
	}
	var out []model.LotePagamento
	err := p.apply(q.Preload("Vistoriador").Order("created_at DESC, id DESC")).Find(&out).Error
	return out, total, mapErr(err, "lote")
}

func (s *Store) GetLote(ctx context.Context, id uint) (model.LotePagamento, error) {
	var l model.LotePagamento
	err := s.ctx(ctx).
		Preload("Vistoriador").
		Preload("Vistorias.Vistoria.Embarcacao.Cliente").
		First(&l, id).Error
	return l, mapErr(err, "lote")
}

// Pagamento holds the settlement data for a batch.
type Pagamento struct {
	FormaPagamento   string
	DataPagamento    time.Time
	ComprovanteChave string
	Observacoes      string
	PagoPorID        uint
}

func (s *Store) PagarLote(ctx context.Context, id uint, p Pagamento) (model.LotePagamento, error) {
	if p.FormaPagamento == "" {
		return model.LotePagamento{}, apperr.Invalid("forma de pagamento é obrigatória")
	}
	if p.DataPagamento.IsZero() {
		p.DataPagamento = time.Now()
	}
	err := s.ctx(ctx).Transaction(func(tx *gorm.DB) error {
		l, err := lockLote(tx, id)
		if err != nil {
			return err
		}
		if l.Status != model.LotePendente {
			return apperr.Conflict("lote não está pendente")
		}
		upd := map[string]interface{}{
			"status":          model.LotePago,
			"forma_pagamento": p.FormaPagamento,
			"data_pagamento":  p.DataPagamento,
			"pago_por_id":     p.PagoPorID,
		}
		if p.ComprovanteChave != "" {
			upd["comprovante_chave"] = p.ComprovanteChave
		}
		if p.Observacoes != "" {
			upd["observacoes"] = p.Observacoes
		}
		return tx.Model(&l).Updates(upd).Error
	})
	if err != nil {
		return model.LotePagamento{}, mapErr(err, "lote")
	}
	return s.GetLote(ctx, id)
}

// CancelarLote cancels a pending batch and frees its vistorias for a new one.
func (s *Store) CancelarLote(ctx context.Context, id uint, motivo string) (model.LotePagamento, error) {
	err := s.ctx(ctx).Transaction(func(tx *gorm.DB) error {
		l, err := lockLote(tx, id)
		if err != nil {
			return err
		}
		if l.Status != model.LotePendente {
			return apperr.Conflict("lote não está pendente")
		}
		if err := tx.Where("lote_pagamento_id = ?", id).Delete(&model.VistoriaLotePagamento{}).Error; err != nil {
			return err
		}
		upd := map[string]interface{}{"status": model.LoteCancelado}
		if motivo != "" {
			upd["observacoes"] = motivo
		}
		return tx.Model(&l).Updates(upd).Error
	})
	if err != nil {
		return model.LotePagamento{}, mapErr(err, "lote")
	}
	return s.GetLote(ctx, id)
}

func lockLote(tx *gorm.DB, id uint) (model.LotePagamento, error) {
	var l model.LotePagamento
	err := tx.Clauses(lockingUpdate).First(&l, id).Error
	return l, mapErr(err, "lote")
}

// ResumoVistoriador aggregates amounts owed to one inspector.
type ResumoVistoriador struct {
	VistoriadorID   uint       `json:"vistoriadorId"`
	Nome            string     `json:"nome"`
	QtdSemLote      int64      `json:"qtdSemLote"`
	ValorSemLote    float64    `json:"valorSemLote"`
	ValorEmLote     float64    `json:"valorEmLote"`
	ValorPago       float64    `json:"valorPago"`
	LotesPendentes  int64      `json:"lotesPendentes"`
	UltimoPagamento *time.Time `json:"ultimoPagamento,omitempty"`
}

// ResumoPagamentos returns one row per inspector; vistoriadorID 0 means all.
func (s *Store) ResumoPagamentos(ctx context.Context, vistoriadorID uint) ([]ResumoVistoriador, error) {
	q := s.ctx(ctx).Where("nivel_acesso_id = ?", model.NivelVistoriador)
	if vistoriadorID != 0 {
		q = s.ctx(ctx).Where("id = ?", vistoriadorID)
	}
	var users []model.Usuario
	if err := q.Order("nome").Find(&users).Error; err != nil {
		return nil, mapErr(err, "usuário")
	}
	out := make([]ResumoVistoriador, 0, len(users))
	for _, u := range users {
		r := ResumoVistoriador{VistoriadorID: u.ID, Nome: u.Nome}
		var semLote struct {
			N     int64
			Total float64
		}
		err := s.ctx(ctx).Model(&model.Vistoria{}).
			Select("COUNT(*) AS n, COALESCE(SUM(valor_vistoriador), 0) AS total").
			Where("vistoriador_id = ? AND status IN ?", u.ID, statusPagaveis).
			Where("id NOT IN (?)", s.ctx(ctx).Model(&model.VistoriaLotePagamento{}).Select("vistoria_id")).
			Scan(&semLote).Error
		if err != nil {
			return nil, mapErr(err, "vistoria")
		}
		r.QtdSemLote, r.ValorSemLote = semLote.N, semLote.Total

		var lotes []model.LotePagamento
		if err := s.ctx(ctx).Where("vistoriador_id = ? AND status <> ?", u.ID, model.LoteCancelado).Find(&lotes).Error; err != nil {
			return nil, mapErr(err, "lote")
		}
		for _, l := range lotes {
			switch l.Status {
			case model.LotePendente:
				r.LotesPendentes++
				r.ValorEmLote += l.ValorTotal
			case model.LotePago:
				r.ValorPago += l.ValorTotal
				if l.DataPagamento != nil && (r.UltimoPagamento == nil || l.DataPagamento.After(*r.UltimoPagamento)) {
					r.UltimoPagamento = l.DataPagamento
				}
			}
		}
		out = append(out, r)
	}
	return out, nil
}
