package store

import (
	"context"
	"time"

	"vistorias/pkg/model"
)

func (s *Store) AppendAudit(ctx context.Context, entry model.AuditoriaLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if len(entry.Detalhe) > 500 {
		entry.Detalhe = entry.Detalhe[:500]
	}
	return mapErr(s.ctx(ctx).Create(&entry).Error, "auditoria")
}

type AuditFiltro struct {
	UsuarioID  uint
	Entidade   string
	EntidadeID uint
}

// ListAudit returns the newest entries first.
func (s *Store) ListAudit(ctx context.Context, f AuditFiltro, p Page) ([]model.AuditoriaLog, int64, error) {
	q := s.ctx(ctx).Model(&model.AuditoriaLog{})
	if f.UsuarioID != 0 {
		q = q.Where("usuario_id = ?", f.UsuarioID)
	}
	if f.Entidade != "" {
		q = q.Where("entidade = ?", f.Entidade)
	}
	if f.EntidadeID != 0 {
		q = q.Where("entidade_id = ?", f.EntidadeID)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, mapErr(err, "auditoria")
	}
	var out []model.AuditoriaLog
	err := p.apply(q.Order("id DESC")).Find(&out).Error
	return out, total, mapErr(err, "auditoria")
}

// Dashboard counts vistorias per status plus pending payment totals.
type Dashboard struct {
	PorStatus         map[string]int64 `json:"porStatus"`
	Total             int64            `json:"total"`
	LotesPendentes    int64            `json:"lotesPendentes"`
	ValorLotesAbertos float64          `json:"valorLotesAbertos"`
}

// ContarDashboard scopes counts to one inspector when vistoriadorID is set.
func (s *Store) ContarDashboard(ctx context.Context, vistoriadorID uint) (Dashboard, error) {
	d := Dashboard{PorStatus: map[string]int64{
		model.StatusPendente:    0,
		model.StatusEmAndamento: 0,
		model.StatusConcluida:   0,
		model.StatusAprovada:    0,
	}}
	var rows []struct {
		Status string
		N      int64
	}
	q := s.ctx(ctx).Model(&model.Vistoria{}).Select("status, COUNT(*) AS n").Group("status")
	if vistoriadorID != 0 {
		q = q.Where("vistoriador_id = ?", vistoriadorID)
	}
	if err := q.Scan(&rows).Error; err != nil {
		return d, mapErr(err, "vistoria")
	}
	for _, r := range rows {
		d.PorStatus[r.Status] = r.N
		d.Total += r.N
	}
	var lotes struct {
		N     int64
		Total float64
	}
	lq := s.ctx(ctx).Model(&model.LotePagamento{}).
		Select("COUNT(*) AS n, COALESCE(SUM(valor_total), 0) AS total").
		Where("status = ?", model.LotePendente)
	if vistoriadorID != 0 {
		lq = lq.Where("vistoriador_id = ?", vistoriadorID)
	}
	if err := lq.Scan(&lotes).Error; err != nil {
		return d, mapErr(err, "lote")
	}
	d.LotesPendentes, d.ValorLotesAbertos = lotes.N, lotes.Total
	return d, nil
}
