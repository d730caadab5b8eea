package model

import "time"

// Payment period kinds.
const (
	PeriodoDiario    = "DIARIO"
	PeriodoSemanal   = "SEMANAL"
	PeriodoQuinzenal = "QUINZENAL"
	PeriodoMensal    = "MENSAL"
)

// Status of a LotePagamento.
const (
	LotePendente  = "PENDENTE"
	LotePago      = "PAGO"
	LoteCancelado = "CANCELADO"
)

// LotePagamento groups vistorias paid to one inspector in one period.
type LotePagamento struct {
	ID                  uint                    `gorm:"primaryKey" json:"id"`
	VistoriadorID       uint                    `gorm:"index;not null" json:"vistoriadorId"`
	Vistoriador         *Usuario                `json:"vistoriador,omitempty"`
	PeriodoTipo         string                  `gorm:"size:16;not null" json:"periodoTipo"`
	DataInicio          time.Time               `json:"dataInicio"`
	DataFim             time.Time               `json:"dataFim"`
	QuantidadeVistorias int                     `json:"quantidadeVistorias"`
	ValorTotal          float64                 `json:"valorTotal"`
	Status              string                  `gorm:"size:16;index;not null;default:PENDENTE" json:"status"`
	DataPagamento       *time.Time              `json:"dataPagamento,omitempty"`
	FormaPagamento      string                  `gorm:"size:40" json:"formaPagamento,omitempty"`
	ComprovanteChave    string                  `gorm:"size:255" json:"-"`
	ComprovanteURL      string                  `gorm:"-" json:"comprovanteUrl,omitempty"`
	Observacoes         string                  `gorm:"type:text" json:"observacoes,omitempty"`
	CobradoPorID        uint                    `json:"cobradoPorId"`
	PagoPorID           *uint                   `json:"pagoPorId,omitempty"`
	Vistorias           []VistoriaLotePagamento `gorm:"foreignKey:LotePagamentoID;constraint:OnDelete:CASCADE" json:"vistorias,omitempty"`
	CreatedAt           time.Time               `json:"createdAt"`
	UpdatedAt           time.Time               `json:"updatedAt"`
}

func (LotePagamento) TableName() string { return "lotes_pagamento" }

// VistoriaLotePagamento links one vistoria to its (single, live) payment batch.
type VistoriaLotePagamento struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	LotePagamentoID  uint      `gorm:"index;not null" json:"lotePagamentoId"`
	VistoriaID       uint      `gorm:"uniqueIndex;not null" json:"vistoriaId"`
	Vistoria         *Vistoria `json:"vistoria,omitempty"`
	ValorVistoriador float64   `json:"valorVistoriador"`
}

func (VistoriaLotePagamento) TableName() string { return "vistorias_lote_pagamento" }
