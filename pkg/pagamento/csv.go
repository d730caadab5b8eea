package pagamento

import (
	"encoding/csv"
	"io"

	"github.com/gocarina/gocsv"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"vistorias/pkg/model"
)

// Linha is one vistoria of a batch in the CSV export.
type Linha struct {
	Lote           uint   `csv:"lote"`
	Vistoriador    string `csv:"vistoriador"`
	Vistoria       uint   `csv:"vistoria"`
	DataConclusao  string `csv:"data_conclusao"`
	Embarcacao     string `csv:"embarcacao"`
	Inscricao      string `csv:"inscricao"`
	Cliente        string `csv:"cliente"`
	Valor          string `csv:"valor"`
	StatusLote     string `csv:"status_lote"`
	FormaPagamento string `csv:"forma_pagamento"`
}

// Linhas flattens a batch loaded with its vistorias, vessels and clients.
func Linhas(l model.LotePagamento) []Linha {
	nome := ""
	if l.Vistoriador != nil {
		nome = l.Vistoriador.Nome
	}
	out := make([]Linha, 0, len(l.Vistorias))
	for _, vl := range l.Vistorias {
		row := Linha{
			Lote:           l.ID,
			Vistoriador:    nome,
			Vistoria:       vl.VistoriaID,
			Valor:          Moeda(vl.ValorVistoriador),
			StatusLote:     l.Status,
			FormaPagamento: l.FormaPagamento,
		}
		if v := vl.Vistoria; v != nil {
			if v.DataConclusao != nil {
				row.DataConclusao = v.DataConclusao.Format("02/01/2006")
			}
			if e := v.Embarcacao; e != nil {
				row.Embarcacao = e.Nome
				row.Inscricao = e.NrInscricaoBarco
				if e.Cliente != nil {
					row.Cliente = e.Cliente.Nome
				}
			}
		}
		out = append(out, row)
	}
	return out
}

// ExportCSV writes the batch as ';'-separated CSV with CRLF line endings.
func ExportCSV(w io.Writer, l model.LotePagamento) error {
	cw := csv.NewWriter(w)
	cw.Comma = ';'
	cw.UseCRLF = true
	return gocsv.MarshalCSV(Linhas(l), cw)
}

var brl = message.NewPrinter(language.BrazilianPortuguese)

// Moeda formats an amount with pt-BR separators, without the currency symbol.
func Moeda(v float64) string {
	return brl.Sprintf("%.2f", v)
}
