package checklist

import (
	"fmt"

	"vistorias/pkg/model"
)

type itemDef struct {
	nome, codigo string
	obrigatorio  bool
	multiplas    bool
}

var (
	base = []itemDef{
		{"Visão geral", "VISAO_GERAL", true, true},
		{"Proa", "PROA", true, false},
		{"Popa", "POPA", true, false},
		{"Bombordo", "BOMBORDO", true, false},
		{"Boreste", "BORESTE", true, false},
		{"Número de inscrição", "INSCRICAO", true, false},
	}
	motorizada = []itemDef{
		{"Motor", "MOTOR", true, true},
		{"Horímetro", "HORIMETRO", false, false},
		{"Painel de comando", "PAINEL", true, false},
		{"Bateria e parte elétrica", "BATERIA", false, false},
	}
	seguranca = []itemDef{
		{"Extintor", "EXTINTOR", true, false},
		{"Coletes salva-vidas", "COLETE", true, false},
		{"Boia circular", "BOIA", false, false},
		{"Luzes de navegação", "NAVEGACAO", false, false},
	}
	porte = []itemDef{
		{"Cabine", "CABINE", false, true},
		{"Bomba de porão", "BOMBA", false, false},
		{"Hélice e eixo", "HELICE", false, false},
		{"Âncora", "ANCORA", false, false},
		{"Eletrônicos", "ELETRONICA", false, true},
	}
)

func defsFor(tipo string) []itemDef {
	var out []itemDef
	out = append(out, base...)
	switch tipo {
	case model.TipoJetSki:
		out = append(out,
			itemDef{"Número de chassi", "CHASSI", true, false},
			itemDef{"Motor", "MOTOR", true, false},
			itemDef{"Horímetro", "HORIMETRO", true, false},
			itemDef{"Painel de comando", "PAINEL", false, false},
			itemDef{"Coletes salva-vidas", "COLETE", false, false},
			itemDef{"Carreta de reboque", "REBOQUE", false, false},
		)
	case model.TipoVeleiro:
		out = append(out, itemDef{"Mastro e velas", "MASTRO", true, true})
		out = append(out, motorizada[0], motorizada[2])
		out = append(out, seguranca...)
		out = append(out, porte...)
	case model.TipoIate, model.TipoEmbarcacaoComercial:
		out = append(out, motorizada...)
		out = append(out, seguranca...)
		out = append(out, porte...)
		out = append(out, itemDef{"Tanque de combustível", "TANQUE", false, false})
	default:
		out = append(out, motorizada...)
		out = append(out, seguranca...)
	}
	return out
}

// DefaultTemplate builds the default photo checklist of a vessel type.
func DefaultTemplate(tipo string) model.ChecklistTemplate {
	defs := defsFor(tipo)
	t := model.ChecklistTemplate{
		TipoEmbarcacao: tipo,
		Nome:           fmt.Sprintf("Checklist padrão %s", tipo),
		Ativo:          true,
		Itens:          make([]model.ChecklistItem, 0, len(defs)),
	}
	for i, d := range defs {
		t.Itens = append(t.Itens, model.ChecklistItem{
			Ordem:            i + 1,
			Nome:             d.nome,
			Obrigatorio:      d.obrigatorio,
			PermiteMultiplas: d.multiplas,
			TipoFotoCodigo:   d.codigo,
		})
	}
	return t
}

// DefaultTemplates returns one template per vessel type.
func DefaultTemplates() []model.ChecklistTemplate {
	out := make([]model.ChecklistTemplate, 0, len(model.TiposEmbarcacao))
	for _, tipo := range model.TiposEmbarcacao {
		out = append(out, DefaultTemplate(tipo))
	}
	return out
}

// DefaultTiposFoto lists every photo type referenced by the default templates.
func DefaultTiposFoto() []model.TipoFotoChecklist {
	seen := map[string]bool{}
	var out []model.TipoFotoChecklist
	for _, tipo := range model.TiposEmbarcacao {
		for _, d := range defsFor(tipo) {
			if seen[d.codigo] {
				continue
			}
			seen[d.codigo] = true
			out = append(out, model.TipoFotoChecklist{
				Codigo:       d.codigo,
				NomeExibicao: d.nome,
				Obrigatorio:  d.obrigatorio,
			})
		}
	}
	return out
}

// Instanciar copies template items into per-vistoria checklist rows.
func Instanciar(vistoriaID uint, t model.ChecklistTemplate) []model.VistoriaChecklistStatus {
	out := make([]model.VistoriaChecklistStatus, 0, len(t.Itens))
	for _, it := range t.Itens {
		id := it.ID
		row := model.VistoriaChecklistStatus{
			VistoriaID:       vistoriaID,
			Ordem:            it.Ordem,
			Nome:             it.Nome,
			Descricao:        it.Descricao,
			Obrigatorio:      it.Obrigatorio,
			PermiteMultiplas: it.PermiteMultiplas,
			TipoFotoCodigo:   it.TipoFotoCodigo,
			Status:           model.ItemPendente,
		}
		if id != 0 {
			row.TemplateItemID = &id
		}
		out = append(out, row)
	}
	return out
}
