package texto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "helice e eixo", Normalize("  Hélice & Eixo!! "))
	assert.Equal(t, "helice e eixo", Normalize("Hélice&Eixo"))
	assert.Equal(t, "numero de inscricao", Normalize("Número_de-inscrição"))
	assert.Equal(t, "", Normalize("---"))
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "coletes-salva-vidas", Slug("Coletes salva-vidas"))
	assert.Equal(t, "", Slug("!!"))
}

func TestContainsWords(t *testing.T) {
	cases := []struct {
		s, sub string
		want   bool
	}{
		{"painel de comando", "painel", true},
		{"foto do painel de comando", "painel de comando", true},
		{"visao geral", "a", false},
		{"visao geral", "ao", false},
		{"boreste", "r", false},
		{"proa", "", false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, ContainsWords(c.s, c.sub), "%q in %q", c.sub, c.s)
	}
}
