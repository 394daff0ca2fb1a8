package classifier

import "strings"

// keyword families are matched against department names at scoring time, so
// a family whose department is absent from the supplied list never scores.
type family string

const (
	familyIT         family = "it"
	familyFinance    family = "finance"
	familyHR         family = "hr"
	familyProduction family = "production"
)

const (
	weightStrong = 4
	weightMedium = 2
	weightWeak   = 1
)

type keywordTier struct {
	weight   int
	keywords []string
}

// keywordTables holds the per-family weighted keywords. Entries are stored
// pre-normalized: lowercase, no diacritics.
var keywordTables = map[family][]keywordTier{
	familyIT: {
		{weightStrong, []string{
			"computador", "impressora", "internet", "senha", "email", "rede",
			"erro de login", "falha de rede", "sistema fora do ar", "tela azul",
		}},
		{weightMedium, []string{
			"sistema", "acesso", "login", "software", "hardware", "monitor",
			"notebook", "servidor", "wifi", "teclado", "antivirus",
		}},
		{weightWeak, []string{
			"tela", "mouse", "cabo", "lento", "travando", "atualizacao",
		}},
	},
	familyFinance: {
		{weightStrong, []string{
			"boleto", "fatura", "reembolso", "cobranca",
			"nota fiscal", "pagamento em atraso", "conta a pagar",
		}},
		{weightMedium, []string{
			"pagamento", "financeiro", "imposto", "orcamento", "despesa",
			"banco", "transferencia",
		}},
		{weightWeak, []string{
			"valor", "conta", "custo", "recibo",
		}},
	},
	familyHR: {
		{weightStrong, []string{
			"ferias", "contracheque", "holerite", "admissao", "demissao",
			"folha de pagamento", "plano de saude",
		}},
		{weightMedium, []string{
			"salario", "ponto", "atestado", "beneficio",
			"vale transporte", "vale refeicao",
		}},
		{weightWeak, []string{
			"funcionario", "colaborador", "contrato",
		}},
	},
	familyProduction: {
		{weightStrong, []string{
			"esteira", "caldeira",
			"linha de producao", "maquina parada", "producao parada",
		}},
		{weightMedium, []string{
			"maquina", "producao", "equipamento", "manutencao", "fabrica",
			"turno", "operador",
		}},
		{weightWeak, []string{
			"peca", "lote", "estoque", "insumo",
		}},
	},
}

// familyForDepartment resolves which keyword family applies to a department,
// by its normalized name. Unrecognized departments get no family and can only
// score through the direct name-mention bonus.
func familyForDepartment(normalizedName string) (family, bool) {
	switch {
	case normalizedName == "ti" || containsAny(normalizedName, "tecnolog", "informat", "suporte"):
		return familyIT, true
	case containsAny(normalizedName, "financ", "contabil"):
		return familyFinance, true
	case normalizedName == "rh" || containsAny(normalizedName, "recursos humanos", "pessoal"):
		return familyHR, true
	case containsAny(normalizedName, "produc", "fabrica", "manufatura"):
		return familyProduction, true
	}
	return "", false
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
