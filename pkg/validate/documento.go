// Package validate holds Brazilian document and address field checks.
package validate

import (
	"regexp"
	"strings"

	"github.com/paemuri/brdoc"
)

var (
	emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	ufs     = map[string]bool{
		"AC": true, "AL": true, "AP": true, "AM": true, "BA": true, "CE": true, "DF": true,
		"ES": true, "GO": true, "MA": true, "MT": true, "MS": true, "MG": true, "PA": true,
		"PB": true, "PR": true, "PE": true, "PI": true, "RJ": true, "RN": true, "RS": true,
		"RO": true, "RR": true, "SC": true, "SP": true, "SE": true, "TO": true,
	}
)

// Digits strips everything but 0-9.
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// CPF accepts the number with or without punctuation.
func CPF(s string) bool { return brdoc.IsCPF(strings.TrimSpace(s)) }

// CNPJ accepts the number with or without punctuation.
func CNPJ(s string) bool { return brdoc.IsCNPJ(strings.TrimSpace(s)) }

// CEP accepts "12345-678" or "12345678".
func CEP(s string) bool { return brdoc.IsCEP(strings.TrimSpace(s)) }

func Email(s string) bool { return emailRe.MatchString(s) }

func UF(s string) bool { return ufs[strings.ToUpper(s)] }
