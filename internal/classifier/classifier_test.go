package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

func allDepartments() []domain.Department {
	return []domain.Department{
		{ID: "d1", Name: "T.I", IsActive: true},
		{ID: "d2", Name: "Financeiro", IsActive: true},
		{ID: "d3", Name: "Recursos Humanos", IsActive: true},
		{ID: "d4", Name: "Produção", IsActive: true},
	}
}

func TestGuess_ITKeywords(t *testing.T) {
	dept := Guess("Computador com problema", "erro de login e falha de rede no escritorio", allDepartments())
	require.NotNil(t, dept)
	assert.Equal(t, "T.I", dept.Name)
}

func TestGuess_FinanceKeywords(t *testing.T) {
	dept := Guess("Boleto", "Boleto com pagamento em atraso e nota fiscal bloqueada", allDepartments())
	require.NotNil(t, dept)
	assert.Equal(t, "Financeiro", dept.Name)
}

func TestGuess_HRKeywords(t *testing.T) {
	dept := Guess("Férias", "preciso do contracheque e do plano de saude", allDepartments())
	require.NotNil(t, dept)
	assert.Equal(t, "Recursos Humanos", dept.Name)
}

func TestGuess_ProductionKeywords(t *testing.T) {
	dept := Guess("Linha de produção", "maquina parada na esteira desde o turno da manha", allDepartments())
	require.NotNil(t, dept)
	assert.Equal(t, "Produção", dept.Name)
}

func TestGuess_NoMatchReturnsNil(t *testing.T) {
	assert.Nil(t, Guess("Dúvida geral", "gostaria de saber o horario de funcionamento", allDepartments()))
}

func TestGuess_EmptyInput(t *testing.T) {
	assert.Nil(t, Guess("", "", allDepartments()))
	assert.Nil(t, Guess("  ", "\t", allDepartments()))
}

func TestGuess_AbsentDepartmentNeverReturned(t *testing.T) {
	// IT text, but only Finance in the candidate list: no cross-family leak.
	onlyFinance := []domain.Department{{ID: "d2", Name: "Financeiro", IsActive: true}}
	assert.Nil(t, Guess("Computador quebrado", "erro de login no sistema", onlyFinance))
}

func TestGuess_NameMentionBonus(t *testing.T) {
	departments := []domain.Department{
		{ID: "d9", Name: "Jurídico", IsActive: true},
	}
	// No keyword family for legal; the explicit name mention still scores.
	dept := Guess("Contato juridico", "preciso falar com o juridico sobre um processo", departments)
	require.NotNil(t, dept)
	assert.Equal(t, "Jurídico", dept.Name)
}

func TestGuess_DiacriticsInsensitive(t *testing.T) {
	dept := Guess("PRODUÇÃO PARADA", "a produção está parada", allDepartments())
	require.NotNil(t, dept)
	assert.Equal(t, "Produção", dept.Name)
}

func TestKeywordScore(t *testing.T) {
	flat, tokens := normalizeText("erro de login na impressora e nas impressoras")

	t.Run("MultiWordSubstringDoubles", func(t *testing.T) {
		assert.Equal(t, weightStrong*2, keywordScore("erro de login", weightStrong, flat, tokens))
	})

	t.Run("ExactToken", func(t *testing.T) {
		assert.Equal(t, weightStrong, keywordScore("impressora", weightStrong, flat, tokens))
	})

	t.Run("PluralVariantReduced", func(t *testing.T) {
		_, only := normalizeText("as impressoras pararam")
		assert.Equal(t, weightStrong-1, keywordScore("impressora", weightStrong, "as impressoras pararam", only))
	})

	t.Run("Miss", func(t *testing.T) {
		assert.Equal(t, 0, keywordScore("caldeira", weightStrong, flat, tokens))
	})
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "ti", normalizeName("T.I"))
	assert.Equal(t, "financeiro", normalizeName(" Financeiro "))
	assert.Equal(t, "recursos humanos", normalizeName("Recursos  Humanos"))
	assert.Equal(t, "producao", normalizeName("Produção"))
}

func TestFamilyForDepartment(t *testing.T) {
	cases := map[string]family{
		"ti":                familyIT,
		"tecnologia":        familyIT,
		"suporte tecnico":   familyIT,
		"financeiro":        familyFinance,
		"contabilidade":     familyFinance,
		"rh":                familyHR,
		"recursos humanos":  familyHR,
		"producao":          familyProduction,
		"fabrica":           familyProduction,
	}
	for name, want := range cases {
		fam, ok := familyForDepartment(name)
		require.True(t, ok, name)
		assert.Equal(t, want, fam, name)
	}

	_, ok := familyForDepartment("juridico")
	assert.False(t, ok)
}
