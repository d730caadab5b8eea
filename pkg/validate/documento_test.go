package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCPF(t *testing.T) {
	assert.True(t, CPF("529.982.247-25"))
	assert.True(t, CPF("52998224725"))
	assert.False(t, CPF("529.982.247-24"))
	assert.False(t, CPF("111.111.111-11"))
	assert.False(t, CPF("1234"))
}

func TestCNPJ(t *testing.T) {
	assert.True(t, CNPJ("11.222.333/0001-81"))
	assert.False(t, CNPJ("11.222.333/0001-80"))
	assert.False(t, CNPJ("00000000000000"))
	assert.False(t, CNPJ("112223330001"))
}

func TestCEPEmailUF(t *testing.T) {
	assert.True(t, CEP("01310-100"))
	assert.True(t, CEP("01310100"))
	assert.False(t, CEP("0131010"))
	assert.True(t, Email("ana@marina.com.br"))
	assert.False(t, Email("ana@marina"))
	assert.True(t, UF("sp"))
	assert.False(t, UF("XX"))
	assert.Equal(t, "52998224725", Digits("529.982.247-25"))
}
