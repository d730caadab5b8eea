package model

import "time"

// TipoFotoChecklist is a named kind of photo the app can request.
type TipoFotoChecklist struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	Codigo       string `gorm:"size:40;uniqueIndex;not null" json:"codigo"`
	NomeExibicao string `gorm:"size:120;not null" json:"nomeExibicao"`
	Descricao    string `gorm:"size:255" json:"descricao,omitempty"`
	Obrigatorio  bool   `json:"obrigatorio"`
}

func (TipoFotoChecklist) TableName() string { return "tipos_foto_checklist" }

// ChecklistTemplate is the photo checklist for one vessel type.
type ChecklistTemplate struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	TipoEmbarcacao string          `gorm:"size:32;uniqueIndex;not null" json:"tipoEmbarcacao"`
	Nome           string          `gorm:"size:120;not null" json:"nome"`
	Descricao      string          `gorm:"size:255" json:"descricao,omitempty"`
	Ativo          bool            `gorm:"not null;default:true" json:"ativo"`
	Itens          []ChecklistItem `gorm:"foreignKey:TemplateID;constraint:OnDelete:CASCADE" json:"itens,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

func (ChecklistTemplate) TableName() string { return "checklist_templates" }

type ChecklistItem struct {
	ID               uint   `gorm:"primaryKey" json:"id"`
	TemplateID       uint   `gorm:"index;not null" json:"templateId"`
	Ordem            int    `gorm:"not null" json:"ordem"`
	Nome             string `gorm:"size:120;not null" json:"nome"`
	Descricao        string `gorm:"size:255" json:"descricao,omitempty"`
	Obrigatorio      bool   `json:"obrigatorio"`
	PermiteMultiplas bool   `json:"permiteMultiplas"`
	TipoFotoCodigo   string `gorm:"size:40" json:"tipoFotoCodigo,omitempty"`
}

func (ChecklistItem) TableName() string { return "checklist_itens" }

// Status of a checklist item inside a vistoria.
const (
	ItemPendente     = "PENDENTE"
	ItemConcluido    = "CONCLUIDO"
	ItemNaoAplicavel = "NAO_APLICAVEL"
)

// VistoriaChecklistStatus is a template item instantiated for one vistoria.
type VistoriaChecklistStatus struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	VistoriaID       uint       `gorm:"index;not null" json:"vistoriaId"`
	TemplateItemID   *uint      `json:"templateItemId,omitempty"`
	Ordem            int        `json:"ordem"`
	Nome             string     `gorm:"size:120;not null" json:"nome"`
	Descricao        string     `gorm:"size:255" json:"descricao,omitempty"`
	Obrigatorio      bool       `json:"obrigatorio"`
	PermiteMultiplas bool       `json:"permiteMultiplas"`
	TipoFotoCodigo   string     `gorm:"size:40" json:"tipoFotoCodigo,omitempty"`
	Status           string     `gorm:"size:16;not null;default:PENDENTE" json:"status"`
	FotoID           *uint      `json:"fotoId,omitempty"`
	ConcluidoEm      *time.Time `json:"concluidoEm,omitempty"`
	Observacao       string     `gorm:"size:255" json:"observacao,omitempty"`
}

func (VistoriaChecklistStatus) TableName() string { return "vistoria_checklist_status" }

type Foto struct {
	ID              uint               `gorm:"primaryKey" json:"id"`
	VistoriaID      uint               `gorm:"index;not null" json:"vistoriaId"`
	TipoID          *uint              `json:"tipoId,omitempty"`
	Tipo            *TipoFotoChecklist `json:"tipo,omitempty"`
	ChecklistItemID *uint              `json:"checklistItemId,omitempty"`
	Chave           string             `gorm:"size:255;not null" json:"chave"`
	NomeOriginal    string             `gorm:"size:255" json:"nomeOriginal,omitempty"`
	ContentType     string             `gorm:"size:64" json:"contentType,omitempty"`
	Tamanho         int64              `json:"tamanho"`
	Observacao      string             `gorm:"size:255" json:"observacao,omitempty"`
	URL             string             `gorm:"-" json:"url,omitempty"`
	CreatedAt       time.Time          `json:"createdAt"`
}

func (Foto) TableName() string { return "fotos" }
