package checklist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vistorias/pkg/model"
)

func items() []model.VistoriaChecklistStatus {
	return Instanciar(1, DefaultTemplate(model.TipoLancha))
}

func TestMatchIgnoresFragments(t *testing.T) {
	its := append(items(), model.VistoriaChecklistStatus{ID: 99, Nome: "Hélice & eixo", Status: model.ItemPendente})
	for _, hint := range []string{"a", "ao", "r", "e", "pr", "vis", "IMG_0001"} {
		assert.Nil(t, Match(its, hint), "hint %q", hint)
	}
	got := Match(its, "eixo")
	require.NotNil(t, got)
	assert.Equal(t, "Hélice & eixo", got.Nome)
}

func TestMatchExactName(t *testing.T) {
	got := Match(items(), "PROA")
	require.NotNil(t, got)
	assert.Equal(t, "Proa", got.Nome)
}

func TestMatchByCodigo(t *testing.T) {
	got := Match(items(), "visao_geral")
	require.NotNil(t, got)
	assert.Equal(t, "Visão geral", got.Nome)
}

func TestMatchContainment(t *testing.T) {
	got := Match(items(), "foto do painel de comando lado piloto")
	require.NotNil(t, got)
	assert.Equal(t, "Painel de comando", got.Nome)
}

func TestMatchConcept(t *testing.T) {
	got := Match(items(), "IMG_0001_extintores.jpg")
	require.NotNil(t, got)
	assert.Equal(t, "Extintor", got.Nome)

	got = Match(items(), "traseira do barco")
	require.NotNil(t, got)
	assert.Equal(t, "Popa", got.Nome)
}

func TestMatchSkipsConcluded(t *testing.T) {
	list := items()
	for i := range list {
		if list[i].Nome == "Proa" {
			list[i].Status = model.ItemConcluido
		}
	}
	assert.Nil(t, Match(list, "proa"))

	for i := range list {
		if list[i].Nome == "Motor" {
			list[i].Status = model.ItemConcluido
		}
	}
	got := Match(list, "motor")
	require.NotNil(t, got, "motor accepts multiple photos")
	assert.Equal(t, "Motor", got.Nome)
}

func TestMatchHintOrder(t *testing.T) {
	got := Match(items(), "", "sem relação", "coletes.jpg")
	require.NotNil(t, got)
	assert.Equal(t, "Coletes salva-vidas", got.Nome)
	assert.Nil(t, Match(items(), "paisagem"))
	assert.Nil(t, Match(nil, "proa"))
}

func TestProgresso(t *testing.T) {
	list := []model.VistoriaChecklistStatus{
		{Status: model.ItemConcluido, Obrigatorio: true},
		{Status: model.ItemPendente, Obrigatorio: true},
		{Status: model.ItemPendente},
		{Status: model.ItemNaoAplicavel, Obrigatorio: true},
	}
	p := CalcularProgresso(list)
	assert.Equal(t, 4, p.Total)
	assert.Equal(t, 1, p.Concluidos)
	assert.Equal(t, 2, p.Pendentes)
	assert.Equal(t, 1, p.ObrigatoriosPendente)
	assert.InDelta(t, 33.3, p.Percentual, 0.01)
	assert.False(t, p.PodeConcluir)

	assert.True(t, CalcularProgresso(nil).PodeConcluir)
}

func TestDefaultTemplates(t *testing.T) {
	ts := DefaultTemplates()
	assert.Len(t, ts, len(model.TiposEmbarcacao))
	for _, tpl := range ts {
		seen := map[string]bool{}
		for i, it := range tpl.Itens {
			assert.Equal(t, i+1, it.Ordem)
			assert.False(t, seen[it.TipoFotoCodigo], "%s duplicated in %s", it.TipoFotoCodigo, tpl.TipoEmbarcacao)
			seen[it.TipoFotoCodigo] = true
		}
	}
	assert.NotEmpty(t, DefaultTiposFoto())
}
