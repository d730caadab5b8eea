package pagamento

import (
	"fmt"
	"strings"
	"time"

	"vistorias/pkg/apperr"
	"vistorias/pkg/model"
)

// Intervalo is a half-open period [Inicio, Fim).
type Intervalo struct {
	Inicio time.Time `json:"inicio"`
	Fim    time.Time `json:"fim"`
}

// UltimoDia is the last calendar day covered by the period.
func (i Intervalo) UltimoDia() time.Time {
	return i.Fim.AddDate(0, 0, -1)
}

func (i Intervalo) Contem(t time.Time) bool {
	return !t.Before(i.Inicio) && t.Before(i.Fim)
}

// Periodo returns the period of the given kind containing ref, using ref's
// location for day boundaries. Weeks run Monday to Sunday; fortnights split
// the month at the 16th.
func Periodo(tipo string, ref time.Time) (Intervalo, error) {
	y, m, d := ref.Date()
	dia := time.Date(y, m, d, 0, 0, 0, 0, ref.Location())
	switch strings.ToUpper(tipo) {
	case model.PeriodoDiario:
		return Intervalo{dia, dia.AddDate(0, 0, 1)}, nil
	case model.PeriodoSemanal:
		offset := (int(dia.Weekday()) + 6) % 7
		ini := dia.AddDate(0, 0, -offset)
		return Intervalo{ini, ini.AddDate(0, 0, 7)}, nil
	case model.PeriodoQuinzenal:
		mes := time.Date(y, m, 1, 0, 0, 0, 0, ref.Location())
		meio := mes.AddDate(0, 0, 15)
		if d <= 15 {
			return Intervalo{mes, meio}, nil
		}
		return Intervalo{meio, mes.AddDate(0, 1, 0)}, nil
	case model.PeriodoMensal:
		mes := time.Date(y, m, 1, 0, 0, 0, 0, ref.Location())
		return Intervalo{mes, mes.AddDate(0, 1, 0)}, nil
	default:
		return Intervalo{}, apperr.Invalid(fmt.Sprintf("período inválido: %q", tipo))
	}
}

// Anterior returns the period right before i for the same kind.
func Anterior(tipo string, i Intervalo) (Intervalo, error) {
	return Periodo(tipo, i.Inicio.AddDate(0, 0, -1))
}
