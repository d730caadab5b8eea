package model

import "time"

const (
	NivelAdmin       uint = 1
	NivelVistoriador uint = 2
)

// NivelAcesso is an access level; IDs are fixed by the seeder.
type NivelAcesso struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Nome      string `gorm:"uniqueIndex;size:32" json:"nome"`
	Descricao string `gorm:"size:255" json:"descricao,omitempty"`
}

type Usuario struct {
	ID                 uint         `gorm:"primaryKey" json:"id"`
	Nome               string       `gorm:"size:120;not null" json:"nome"`
	Email              string       `gorm:"uniqueIndex;size:160;not null" json:"email"`
	CPF                string       `gorm:"size:11" json:"cpf,omitempty"`
	Telefone           string       `gorm:"size:20" json:"telefone,omitempty"`
	SenhaHash          string       `gorm:"size:100;not null" json:"-"`
	NivelAcessoID      uint         `gorm:"not null;default:2" json:"nivelAcessoId"`
	NivelAcesso        *NivelAcesso `json:"nivelAcesso,omitempty"`
	Ativo              bool         `gorm:"not null;default:true" json:"ativo"`
	DeveAtualizarSenha bool         `gorm:"not null;default:false" json:"deveAtualizarSenha"`
	CreatedAt          time.Time    `json:"createdAt"`
	UpdatedAt          time.Time    `json:"updatedAt"`
}

func (u Usuario) IsAdmin() bool { return u.NivelAcessoID == NivelAdmin }

func (NivelAcesso) TableName() string { return "niveis_acesso" }
func (Usuario) TableName() string { return "usuarios" }
