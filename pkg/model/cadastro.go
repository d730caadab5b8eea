package model

import "time"

const (
	PessoaFisica   = "FISICA"
	PessoaJuridica = "JURIDICA"
)

// Endereco is embedded in Cliente and Local.
type Endereco struct {
	CEP         string `gorm:"size:8" json:"cep,omitempty"`
	Logradouro  string `gorm:"size:200" json:"logradouro,omitempty"`
	Numero      string `gorm:"size:20" json:"numero,omitempty"`
	Complemento string `gorm:"size:100" json:"complemento,omitempty"`
	Bairro      string `gorm:"size:100" json:"bairro,omitempty"`
	Cidade      string `gorm:"size:100" json:"cidade,omitempty"`
	Estado      string `gorm:"size:2" json:"estado,omitempty"`
}

type Cliente struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	TipoPessoa  string  `gorm:"size:10;not null;default:FISICA" json:"tipoPessoa"`
	Nome        string  `gorm:"size:200;not null;index" json:"nome"`
	CPF         *string `gorm:"size:11;uniqueIndex" json:"cpf,omitempty"`
	CNPJ        *string `gorm:"size:14;uniqueIndex" json:"cnpj,omitempty"`
	Email       string  `gorm:"size:160" json:"email,omitempty"`
	Telefone    string  `gorm:"size:20" json:"telefone,omitempty"`
	Endereco    `gorm:"embedded"`
	Observacoes string    `gorm:"type:text" json:"observacoes,omitempty"`
	Ativo       bool      `gorm:"not null;default:true" json:"ativo"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Documento returns the CPF or CNPJ, whichever is set.
func (c Cliente) Documento() string {
	if c.CPF != nil && *c.CPF != "" {
		return *c.CPF
	}
	if c.CNPJ != nil {
		return *c.CNPJ
	}
	return ""
}

type Seguradora struct {
	ID              uint                       `gorm:"primaryKey" json:"id"`
	Nome            string                     `gorm:"size:120;uniqueIndex;not null" json:"nome"`
	Ativo           bool                       `gorm:"not null;default:true" json:"ativo"`
	TiposPermitidos []SeguradoraTipoEmbarcacao `gorm:"constraint:OnDelete:CASCADE" json:"tiposPermitidos,omitempty"`
	CreatedAt       time.Time                  `json:"createdAt"`
	UpdatedAt       time.Time                  `json:"updatedAt"`
}

// Permite reports whether the insurer covers the vessel type. An insurer
// without an explicit list covers every type.
func (s Seguradora) Permite(tipo string) bool {
	if len(s.TiposPermitidos) == 0 {
		return true
	}
	for _, t := range s.TiposPermitidos {
		if t.TipoEmbarcacao == tipo {
			return true
		}
	}
	return false
}

type SeguradoraTipoEmbarcacao struct {
	ID             uint   `gorm:"primaryKey" json:"-"`
	SeguradoraID   uint   `gorm:"uniqueIndex:idx_seg_tipo;not null" json:"-"`
	TipoEmbarcacao string `gorm:"uniqueIndex:idx_seg_tipo;size:32;not null" json:"tipoEmbarcacao"`
}

type Embarcacao struct {
	ID               uint        `gorm:"primaryKey" json:"id"`
	Nome             string      `gorm:"size:120;not null" json:"nome"`
	NrInscricaoBarco string      `gorm:"size:40;uniqueIndex;not null" json:"nrInscricaoBarco"`
	TipoEmbarcacao   string      `gorm:"size:32;not null" json:"tipoEmbarcacao"`
	PortoInscricao   string      `gorm:"size:120" json:"portoInscricao,omitempty"`
	AnoFabricacao    int         `json:"anoFabricacao,omitempty"`
	ValorEmbarcacao  float64     `json:"valorEmbarcacao,omitempty"`
	Comprimento      float64     `json:"comprimento,omitempty"`
	ClienteID        *uint       `gorm:"index" json:"clienteId,omitempty"`
	Cliente          *Cliente    `json:"cliente,omitempty"`
	SeguradoraID     *uint       `gorm:"index" json:"seguradoraId,omitempty"`
	Seguradora       *Seguradora `json:"seguradora,omitempty"`
	CreatedAt        time.Time   `json:"createdAt"`
	UpdatedAt        time.Time   `json:"updatedAt"`
}

const (
	LocalMarina     = "MARINA"
	LocalResidencia = "RESIDENCIA"
	LocalOutro      = "OUTRO"
)

type Local struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Tipo      string `gorm:"size:16;not null;default:MARINA" json:"tipo"`
	NomeLocal string `gorm:"size:160" json:"nomeLocal,omitempty"`
	Endereco  `gorm:"embedded"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Local) TableName() string { return "locais" }
func (Cliente) TableName() string { return "clientes" }
func (Seguradora) TableName() string { return "seguradoras" }
func (SeguradoraTipoEmbarcacao) TableName() string { return "seguradoras_tipos_embarcacao" }
func (Embarcacao) TableName() string { return "embarcacoes" }
