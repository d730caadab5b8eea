package model

// Vessel types accepted by Embarcacao.TipoEmbarcacao and ChecklistTemplate.
const (
	TipoJetSki              = "JET_SKI"
	TipoLancha              = "LANCHA"
	TipoIate                = "IATE"
	TipoVeleiro             = "VELEIRO"
	TipoBarco               = "BARCO"
	TipoEmbarcacaoComercial = "EMBARCACAO_COMERCIAL"
)

var TiposEmbarcacao = []string{
	TipoJetSki, TipoLancha, TipoIate, TipoVeleiro, TipoBarco, TipoEmbarcacaoComercial,
}

func TipoEmbarcacaoValido(t string) bool {
	for _, v := range TiposEmbarcacao {
		if v == t {
			return true
		}
	}
	return false
}
