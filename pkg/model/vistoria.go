package model

import (
	"encoding/json"
	"time"
)

// Status of a Vistoria.
const (
	StatusPendente    = "PENDENTE"
	StatusEmAndamento = "EM_ANDAMENTO"
	StatusConcluida   = "CONCLUIDA"
	StatusAprovada    = "APROVADA"
)

var transicoesVistoria = map[string][]string{
	StatusPendente:    {StatusEmAndamento},
	StatusEmAndamento: {StatusConcluida, StatusPendente},
	StatusConcluida:   {StatusAprovada, StatusEmAndamento},
	StatusAprovada:    {},
}

// PodeTransitar reports whether a vistoria may move from one status to another.
func PodeTransitar(de, para string) bool {
	for _, s := range transicoesVistoria[de] {
		if s == para {
			return true
		}
	}
	return false
}

type Vistoria struct {
	ID              uint        `gorm:"primaryKey" json:"id"`
	EmbarcacaoID    uint        `gorm:"index;not null" json:"embarcacaoId"`
	Embarcacao      *Embarcacao `json:"embarcacao,omitempty"`
	LocalID         *uint       `gorm:"index" json:"localId,omitempty"`
	Local           *Local      `json:"local,omitempty"`
	VistoriadorID   uint        `gorm:"index;not null" json:"vistoriadorId"`
	Vistoriador     *Usuario    `json:"vistoriador,omitempty"`
	AdministradorID uint        `gorm:"not null" json:"administradorId"`
	Administrador   *Usuario    `json:"administrador,omitempty"`
	Status          string      `gorm:"size:16;index;not null;default:PENDENTE" json:"status"`

	DataInicio    *time.Time `json:"dataInicio,omitempty"`
	DataConclusao *time.Time `gorm:"index" json:"dataConclusao,omitempty"`
	DataAprovacao *time.Time `json:"dataAprovacao,omitempty"`

	ValorVistoria    float64 `json:"valorVistoria"`
	ValorVistoriador float64 `json:"valorVistoriador"`

	// DadosRascunho holds the inspector's in-progress form state verbatim.
	DadosRascunho json.RawMessage `gorm:"type:text" json:"dadosRascunho,omitempty"`
	Observacoes   string          `gorm:"type:text" json:"observacoes,omitempty"`

	ContatoAcompanhanteNome     string `gorm:"size:120" json:"contatoAcompanhanteNome,omitempty"`
	ContatoAcompanhanteTelefone string `gorm:"size:20" json:"contatoAcompanhanteTelefone,omitempty"`
	ContatoAcompanhanteEmail    string `gorm:"size:160" json:"contatoAcompanhanteEmail,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Vistoria) TableName() string { return "vistorias" }

// EhDe reports whether the vistoria is assigned to the given inspector.
func (v Vistoria) EhDe(usuarioID uint) bool { return v.VistoriadorID == usuarioID }
