// Package laudo numbers and renders inspection reports as PDF.
package laudo

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"vistorias/pkg/apperr"
	"vistorias/pkg/model"
)

// MaxFotos caps the photo grid.
const MaxFotos = 12

// Numero builds the report number, unique per vistoria: LN-YYYYMM-000123.
func Numero(vistoriaID uint, t time.Time) string {
	return fmt.Sprintf("LN-%s-%06d", t.Format("200601"), vistoriaID)
}

// PodeGerar reports whether a vistoria is closed enough to have a report.
func PodeGerar(v model.Vistoria) error {
	if v.Status != model.StatusConcluida && v.Status != model.StatusAprovada {
		return apperr.Conflict("laudo só pode ser gerado para vistorias concluídas ou aprovadas")
	}
	return nil
}

// Preencher fills header fields of a new report from the vistoria.
func Preencher(l *model.Laudo, v model.Vistoria) {
	if l.NumeroLaudo == "" {
		l.NumeroLaudo = Numero(v.ID, time.Now())
	}
	l.VistoriaID = v.ID
	if l.Proprietario == "" && v.Embarcacao != nil && v.Embarcacao.Cliente != nil {
		l.Proprietario = v.Embarcacao.Cliente.Nome
	}
	if l.DataVistoria == nil {
		switch {
		case v.DataConclusao != nil:
			l.DataVistoria = v.DataConclusao
		case v.DataInicio != nil:
			l.DataVistoria = v.DataInicio
		}
	}
	if l.LocalVistoria == "" && v.Local != nil {
		l.LocalVistoria = descreverLocal(*v.Local)
	}
	if l.ValorRisco == 0 && v.Embarcacao != nil {
		l.ValorRisco = v.Embarcacao.ValorEmbarcacao
	}
}

func descreverLocal(l model.Local) string {
	var parts []string
	for _, p := range []string{l.NomeLocal, l.Logradouro, l.Numero, l.Bairro} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if l.Cidade != "" {
		c := l.Cidade
		if l.Estado != "" {
			c += "/" + l.Estado
		}
		parts = append(parts, c)
	}
	return strings.Join(parts, ", ")
}

// Foto is an image already fetched from storage.
type Foto struct {
	Titulo string
	Data   []byte
}

// Dados is everything the template prints.
type Dados struct {
	Laudo     model.Laudo
	Vistoria  model.Vistoria
	Checklist []model.VistoriaChecklistStatus
	Fotos     []Foto
	Empresa   string
}

var brl = message.NewPrinter(language.BrazilianPortuguese)

func moeda(v float64) string {
	if v == 0 {
		return "-"
	}
	return brl.Sprintf("R$ %.2f", v)
}

func data(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("02/01/2006")
}

var statusItem = map[string]string{
	model.ItemPendente:     "Pendente",
	model.ItemConcluido:    "Concluído",
	model.ItemNaoAplicavel: "Não aplicável",
}

// Render writes the report PDF. Photos that are not decodable JPEG or PNG
// are skipped.
func Render(w io.Writer, d Dados) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(tr("Laudo "+d.Laudo.NumeroLaudo), false)
	pdf.SetCreator("vistorias", false)
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AliasNbPages("{nb}")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 10, tr(fmt.Sprintf("%s - Página %d de {nb}", d.Laudo.NumeroLaudo, pdf.PageNo())), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	empresa := d.Empresa
	if empresa == "" {
		empresa = "Vistorias Náuticas"
	}
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 9, tr("LAUDO DE VISTORIA NÁUTICA"), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, tr(empresa), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 6, tr("Laudo nº "+d.Laudo.NumeroLaudo), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	v := d.Vistoria
	var emb model.Embarcacao
	if v.Embarcacao != nil {
		emb = *v.Embarcacao
	}
	seguradora := "-"
	if emb.Seguradora != nil {
		seguradora = emb.Seguradora.Nome
	}
	vistoriador := "-"
	if v.Vistoriador != nil {
		vistoriador = v.Vistoriador.Nome
	}
	ano := "-"
	if emb.AnoFabricacao > 0 {
		ano = fmt.Sprint(emb.AnoFabricacao)
	}

	secao(pdf, tr, "Identificação")
	tabela(pdf, tr, [][2]string{
		{"Embarcação", emb.Nome},
		{"Inscrição", emb.NrInscricaoBarco},
		{"Tipo", emb.TipoEmbarcacao},
		{"Porto de inscrição", emb.PortoInscricao},
		{"Ano de fabricação", ano},
		{"Proprietário", d.Laudo.Proprietario},
		{"Seguradora", seguradora},
		{"Local da vistoria", d.Laudo.LocalVistoria},
		{"Data da vistoria", data(d.Laudo.DataVistoria)},
		{"Vistoriador", vistoriador},
		{"Valor em risco", moeda(d.Laudo.ValorRisco)},
	})

	for _, s := range []struct{ titulo, texto string }{
		{"Casco", d.Laudo.Casco},
		{"Motorização", d.Laudo.Motorizacao},
		{"Parte elétrica", d.Laudo.Eletrica},
		{"Equipamentos de segurança", d.Laudo.Seguranca},
		{"Observações", d.Laudo.Observacoes},
		{"Conclusão", d.Laudo.Conclusao},
	} {
		if strings.TrimSpace(s.texto) == "" {
			continue
		}
		secao(pdf, tr, s.titulo)
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, 5, tr(s.texto), "", "J", false)
		pdf.Ln(2)
	}

	if len(d.Checklist) > 0 {
		secao(pdf, tr, "Checklist fotográfico")
		checklistTabela(pdf, tr, d.Checklist)
	}

	fotos := d.Fotos
	if len(fotos) > MaxFotos {
		fotos = fotos[:MaxFotos]
	}
	if len(fotos) > 0 {
		pdf.AddPage()
		secao(pdf, tr, "Registro fotográfico")
		grade(pdf, tr, fotos)
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render laudo: %w", err)
	}
	return pdf.Output(w)
}

func secao(pdf *fpdf.Fpdf, tr func(string) string, titulo string) {
	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetFillColor(220, 230, 241)
	pdf.CellFormat(0, 7, tr(titulo), "", 1, "L", true, 0, "")
	pdf.Ln(1)
}

func tabela(pdf *fpdf.Fpdf, tr func(string) string, rows [][2]string) {
	for _, r := range rows {
		val := r[1]
		if val == "" {
			val = "-"
		}
		pdf.SetFont("Helvetica", "B", 9)
		pdf.CellFormat(50, 6, tr(r[0]), "1", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 9)
		pdf.CellFormat(0, 6, tr(val), "1", 1, "L", false, 0, "")
	}
	pdf.Ln(3)
}

func checklistTabela(pdf *fpdf.Fpdf, tr func(string) string, itens []model.VistoriaChecklistStatus) {
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(240, 240, 240)
	pdf.CellFormat(12, 6, "#", "1", 0, "C", true, 0, "")
	pdf.CellFormat(98, 6, "Item", "1", 0, "L", true, 0, "")
	pdf.CellFormat(30, 6, tr("Obrigatório"), "1", 0, "C", true, 0, "")
	pdf.CellFormat(0, 6, "Status", "1", 1, "C", true, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	for _, it := range itens {
		obrig := "Não"
		if it.Obrigatorio {
			obrig = "Sim"
		}
		st := statusItem[it.Status]
		if st == "" {
			st = it.Status
		}
		pdf.CellFormat(12, 6, fmt.Sprint(it.Ordem), "1", 0, "C", false, 0, "")
		pdf.CellFormat(98, 6, tr(it.Nome), "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, tr(obrig), "1", 0, "C", false, 0, "")
		pdf.CellFormat(0, 6, tr(st), "1", 1, "C", false, 0, "")
	}
	pdf.Ln(3)
}

// grade lays photos out two per row, three rows per page.
func grade(pdf *fpdf.Fpdf, tr func(string) string, fotos []Foto) {
	const (
		cols    = 2
		cellW   = 88.0
		cellH   = 72.0
		imgH    = 64.0
		gap     = 4.0
		perPage = 6
	)
	left, top, _, _ := pdf.GetMargins()
	startY := pdf.GetY()
	n := 0
	for i, f := range fotos {
		tipo, ok := imageType(f.Data)
		if !ok {
			continue
		}
		if n > 0 && n%perPage == 0 {
			pdf.AddPage()
			startY = top
		}
		slot := n % perPage
		x := left + float64(slot%cols)*(cellW+gap)
		y := startY + float64(slot/cols)*(cellH+gap)

		name := fmt.Sprintf("foto-%d", i)
		opt := fpdf.ImageOptions{ImageType: tipo}
		info := pdf.RegisterImageOptionsReader(name, opt, bytes.NewReader(f.Data))
		if !pdf.Ok() || info == nil {
			return
		}
		w, h := fit(info.Width(), info.Height(), cellW, imgH)
		pdf.ImageOptions(name, x+(cellW-w)/2, y+(imgH-h)/2, w, h, false, opt, 0, "")
		pdf.SetXY(x, y+imgH)
		pdf.SetFont("Helvetica", "", 8)
		pdf.CellFormat(cellW, cellH-imgH, tr(f.Titulo), "", 0, "C", false, 0, "")
		n++
	}
}

// imageType accepts only images fpdf can embed and that actually decode.
func imageType(b []byte) (string, bool) {
	_, format, err := image.DecodeConfig(bytes.NewReader(b))
	if err != nil {
		return "", false
	}
	switch format {
	case "jpeg":
		return "JPG", true
	case "png":
		return "PNG", true
	}
	return "", false
}

func fit(w, h, maxW, maxH float64) (float64, float64) {
	if w <= 0 || h <= 0 {
		return maxW, maxH
	}
	scale := maxW / w
	if h*scale > maxH {
		scale = maxH / h
	}
	return w * scale, h * scale
}
