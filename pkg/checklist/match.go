// Package checklist matches uploaded photos to the photo-checklist items of a
// vistoria and ships the default checklist per vessel type.
package checklist

import (
	"vistorias/pkg/model"
	"vistorias/pkg/texto"
)

// minContido is the shortest hint that may match inside a longer item name.
const minContido = 3

// conceitos maps a canonical checklist concept to the normalized terms that
// identify it in item names, photo types, notes and file names.
var conceitos = map[string][]string{
	"casco":      {"casco", "costado", "obras vivas", "obras mortas", "fundo"},
	"proa":       {"proa", "frente", "bico"},
	"popa":       {"popa", "traseira", "espelho de popa"},
	"bombordo":   {"bombordo", "lateral esquerda", "lado esquerdo"},
	"boreste":    {"boreste", "estibordo", "lateral direita", "lado direito"},
	"motor":      {"motor", "motores", "motorizacao", "rabeta", "popa motor", "propulsao"},
	"horimetro":  {"horimetro", "horas motor", "horimetro motor"},
	"painel":     {"painel", "comando", "console", "cockpit", "instrumentos"},
	"inscricao":  {"inscricao", "numero de inscricao", "nr inscricao", "tie", "registro", "marcacao casco"},
	"chassi":     {"chassi", "numero de serie", "hin", "casco id"},
	"extintor":   {"extintor", "extintores"},
	"colete":     {"colete", "coletes", "salva vidas"},
	"boia":       {"boia", "boias", "boia circular"},
	"ancora":     {"ancora", "ferro", "amarra"},
	"bateria":    {"bateria", "baterias", "eletrica", "quadro eletrico"},
	"bomba":      {"bomba", "bomba de porao", "porao"},
	"cabine":     {"cabine", "interior", "camarote", "salao"},
	"helice":     {"helice", "helices", "eixo"},
	"mastro":     {"mastro", "vela", "velas", "cordame", "retranca"},
	"documento":  {"documento", "documentos", "tie", "titulo", "nota fiscal"},
	"reboque":    {"reboque", "carreta"},
	"navegacao":  {"navegacao", "luzes", "luz de navegacao", "gps", "radio", "vhf"},
	"tanque":     {"tanque", "combustivel"},
	"geral":      {"geral", "visao geral", "panoramica"},
	"eletronica": {"eletronica", "eletronicos", "sonar", "radar", "plotter"},
}

// Conceitos returns the concepts whose terms appear in s.
func Conceitos(s string) []string {
	n := texto.Normalize(s)
	var out []string
	for c, termos := range conceitos {
		for _, t := range termos {
			if texto.ContainsWords(n, t) {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// Disponivel reports whether an item can still receive a photo.
func Disponivel(item model.VistoriaChecklistStatus) bool {
	switch item.Status {
	case model.ItemPendente:
		return true
	case model.ItemConcluido:
		return item.PermiteMultiplas
	default:
		return false
	}
}

// Match picks the checklist item a photo described by hints most likely
// satisfies. Hints are tried in order (photo type name, note, file name);
// for each hint the rules are, by priority: exact normalized name, whole-word
// name containment either way, then a shared concept. Items are scanned in their
// given order. Returns nil when nothing matches.
func Match(items []model.VistoriaChecklistStatus, hints ...string) *model.VistoriaChecklistStatus {
	var livres []int
	for i := range items {
		if Disponivel(items[i]) {
			livres = append(livres, i)
		}
	}
	if len(livres) == 0 {
		return nil
	}
	for _, h := range hints {
		hint := texto.Normalize(h)
		if hint == "" {
			continue
		}
		for _, i := range livres {
			if texto.Normalize(items[i].Nome) == hint || (items[i].TipoFotoCodigo != "" && texto.Normalize(items[i].TipoFotoCodigo) == hint) {
				return &items[i]
			}
		}
		for _, i := range livres {
			nome := texto.Normalize(items[i].Nome)
			if (len(hint) >= minContido && texto.ContainsWords(nome, hint)) || texto.ContainsWords(hint, nome) {
				return &items[i]
			}
		}
		hc := Conceitos(hint)
		if len(hc) == 0 {
			continue
		}
		for _, i := range livres {
			if shares(hc, Conceitos(items[i].Nome)) {
				return &items[i]
			}
		}
	}
	return nil
}

func shares(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

// Progresso summarizes a vistoria checklist.
type Progresso struct {
	Total                int     `json:"total"`
	Concluidos           int     `json:"concluidos"`
	NaoAplicaveis        int     `json:"naoAplicaveis"`
	Pendentes            int     `json:"pendentes"`
	ObrigatoriosPendente int     `json:"obrigatoriosPendentes"`
	Percentual           float64 `json:"percentual"`
	PodeConcluir         bool    `json:"podeConcluir"`
	// Faltando names the mandatory items still pending, in checklist order.
	Faltando []string `json:"faltando,omitempty"`
}

func CalcularProgresso(items []model.VistoriaChecklistStatus) Progresso {
	var p Progresso
	p.Total = len(items)
	for _, it := range items {
		switch it.Status {
		case model.ItemConcluido:
			p.Concluidos++
		case model.ItemNaoAplicavel:
			p.NaoAplicaveis++
		default:
			p.Pendentes++
			if it.Obrigatorio {
				p.ObrigatoriosPendente++
				p.Faltando = append(p.Faltando, it.Nome)
			}
		}
	}
	if considerados := p.Total - p.NaoAplicaveis; considerados > 0 {
		p.Percentual = float64(int(float64(p.Concluidos)/float64(considerados)*1000+0.5)) / 10
	} else {
		p.Percentual = 100
	}
	p.PodeConcluir = p.ObrigatoriosPendente == 0
	return p
}
