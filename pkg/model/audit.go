package model

import "time"

// AuditoriaLog captures a mutating operation against the API.
type AuditoriaLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UsuarioID  *uint     `gorm:"index" json:"usuarioId,omitempty"`
	Acao       string    `gorm:"size:40;not null" json:"acao"`
	Entidade   string    `gorm:"size:40;not null" json:"entidade"`
	EntidadeID uint      `json:"entidadeId,omitempty"`
	Detalhe    string    `gorm:"size:500" json:"detalhe,omitempty"`
	IP         string    `gorm:"size:64" json:"ip,omitempty"`
	CreatedAt  time.Time `gorm:"index" json:"createdAt"`
}

func (AuditoriaLog) TableName() string { return "auditoria_logs" }

// All lists every entity for AutoMigrate, parents first.
func All() []interface{} {
	return []interface{}{
		&NivelAcesso{}, &Usuario{},
		&Cliente{}, &Seguradora{}, &SeguradoraTipoEmbarcacao{}, &Embarcacao{}, &Local{},
		&Vistoria{},
		&TipoFotoChecklist{}, &ChecklistTemplate{}, &ChecklistItem{},
		&Foto{}, &VistoriaChecklistStatus{},
		&Laudo{},
		&LotePagamento{}, &VistoriaLotePagamento{},
		&AuditoriaLog{},
	}
}
