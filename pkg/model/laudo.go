package model

import "time"

// Laudo is the inspection report generated for a concluded vistoria.
type Laudo struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	VistoriaID  uint      `gorm:"uniqueIndex;not null" json:"vistoriaId"`
	Vistoria    *Vistoria `json:"vistoria,omitempty"`
	NumeroLaudo string    `gorm:"size:32;uniqueIndex;not null" json:"numeroLaudo"`

	Proprietario  string     `gorm:"size:200" json:"proprietario,omitempty"`
	DataVistoria  *time.Time `json:"dataVistoria,omitempty"`
	LocalVistoria string     `gorm:"size:255" json:"localVistoria,omitempty"`

	Casco       string  `gorm:"type:text" json:"casco,omitempty"`
	Motorizacao string  `gorm:"type:text" json:"motorizacao,omitempty"`
	Eletrica    string  `gorm:"type:text" json:"eletrica,omitempty"`
	Seguranca   string  `gorm:"type:text" json:"seguranca,omitempty"`
	Conclusao   string  `gorm:"type:text" json:"conclusao,omitempty"`
	Observacoes string  `gorm:"type:text" json:"observacoes,omitempty"`
	ValorRisco  float64 `json:"valorRisco,omitempty"`

	ChavePDF  string     `gorm:"size:255" json:"-"`
	URLPDF    string     `gorm:"-" json:"urlPdf,omitempty"`
	GeradoEm  *time.Time `json:"geradoEm,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

func (Laudo) TableName() string { return "laudos" }
