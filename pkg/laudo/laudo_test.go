package laudo

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vistorias/pkg/apperr"
	"vistorias/pkg/model"
)

func sampleImage(t *testing.T, format string) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 30))
	for x := 0; x < 40; x++ {
		for y := 0; y < 30; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 6), G: 80, B: uint8(y * 8), A: 255})
		}
	}
	var buf bytes.Buffer
	switch format {
	case "png":
		require.NoError(t, png.Encode(&buf, img))
	default:
		require.NoError(t, jpeg.Encode(&buf, img, nil))
	}
	return buf.Bytes()
}

func TestNumero(t *testing.T) {
	ts := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "LN-202403-000123", Numero(123, ts))
	assert.Equal(t, "LN-202403-1234567", Numero(1234567, ts))
}

func TestPodeGerar(t *testing.T) {
	assert.NoError(t, PodeGerar(model.Vistoria{Status: model.StatusConcluida}))
	assert.NoError(t, PodeGerar(model.Vistoria{Status: model.StatusAprovada}))
	err := PodeGerar(model.Vistoria{Status: model.StatusEmAndamento})
	assert.True(t, apperr.Is(err, apperr.CodeConflict))
}

func TestPreencher(t *testing.T) {
	concl := time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)
	v := model.Vistoria{
		ID:            9,
		DataConclusao: &concl,
		Embarcacao: &model.Embarcacao{
			ValorEmbarcacao: 250000,
			Cliente:         &model.Cliente{Nome: "Carlos"},
		},
		Local: &model.Local{NomeLocal: "Marina Sul", Endereco: model.Endereco{Cidade: "Itajaí", Estado: "SC"}},
	}
	var l model.Laudo
	Preencher(&l, v)
	assert.Equal(t, uint(9), l.VistoriaID)
	assert.Regexp(t, `^LN-\d{6}-000009$`, l.NumeroLaudo)
	assert.Equal(t, "Carlos", l.Proprietario)
	assert.Equal(t, "Marina Sul, Itajaí/SC", l.LocalVistoria)
	assert.Equal(t, &concl, l.DataVistoria)
	assert.Equal(t, 250000.0, l.ValorRisco)

	l.Proprietario = "Editado"
	Preencher(&l, v)
	assert.Equal(t, "Editado", l.Proprietario, "edited fields survive")
}

func TestRender(t *testing.T) {
	concl := time.Now()
	d := Dados{
		Laudo: model.Laudo{
			NumeroLaudo:  "LN-202405-000009",
			Proprietario: "Carlos",
			DataVistoria: &concl,
			Casco:        "Casco em bom estado, sem avarias aparentes.",
			Conclusao:    "Embarcação apta ao seguro.",
			ValorRisco:   1500.5,
		},
		Vistoria: model.Vistoria{
			Status:      model.StatusConcluida,
			Embarcacao:  &model.Embarcacao{Nome: "Maré Alta", NrInscricaoBarco: "ABC-1", TipoEmbarcacao: model.TipoLancha},
			Vistoriador: &model.Usuario{Nome: "Vitor"},
		},
		Checklist: []model.VistoriaChecklistStatus{
			{Ordem: 1, Nome: "Proa", Obrigatorio: true, Status: model.ItemConcluido},
			{Ordem: 2, Nome: "Âncora", Status: model.ItemNaoAplicavel},
		},
	}
	for i := 0; i < 14; i++ {
		format := "jpeg"
		if i%2 == 1 {
			format = "png"
		}
		d.Fotos = append(d.Fotos, Foto{Titulo: "Foto", Data: sampleImage(t, format)})
	}
	d.Fotos = append(d.Fotos, Foto{Titulo: "corrompida", Data: []byte("not an image")})

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, d))
	out := buf.Bytes()
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
	assert.Contains(t, string(out), "%%EOF")
}

func TestRenderSemFotos(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, Dados{Laudo: model.Laudo{NumeroLaudo: "LN-1"}}))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestImageType(t *testing.T) {
	typ, ok := imageType(sampleImage(t, "png"))
	assert.True(t, ok)
	assert.Equal(t, "PNG", typ)
	typ, ok = imageType(sampleImage(t, "jpeg"))
	assert.True(t, ok)
	assert.Equal(t, "JPG", typ)
	_, ok = imageType([]byte("GIF89a"))
	assert.False(t, ok)
}

func TestFit(t *testing.T) {
	w, h := fit(400, 300, 88, 64)
	assert.InDelta(t, 85.33, w, 0.01)
	assert.InDelta(t, 64, h, 0.01)
	w, h = fit(1000, 100, 88, 64)
	assert.InDelta(t, 88, w, 0.01)
	assert.InDelta(t, 8.8, h, 0.01)
}
