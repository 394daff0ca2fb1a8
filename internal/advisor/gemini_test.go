package advisor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONBlock(t *testing.T) {
	t.Run("PlainObject", func(t *testing.T) {
		block, ok := extractJSONBlock(`{"a":1}`)
		require.True(t, ok)
		assert.Equal(t, `{"a":1}`, block)
	})

	t.Run("FencedWithProse", func(t *testing.T) {
		text := "Claro! Aqui esta a analise:\n```json\n{\"suggestions\":[\"passo 1\"]}\n```\nEspero ter ajudado."
		block, ok := extractJSONBlock(text)
		require.True(t, ok)
		assert.JSONEq(t, `{"suggestions":["passo 1"]}`, block)
	})

	t.Run("NestedBraces", func(t *testing.T) {
		block, ok := extractJSONBlock(`prefix {"outer":{"inner":2}} suffix`)
		require.True(t, ok)
		assert.Equal(t, `{"outer":{"inner":2}}`, block)
	})

	t.Run("BracesInsideStrings", func(t *testing.T) {
		block, ok := extractJSONBlock(`{"text":"chaves { dentro } de string","x":1}`)
		require.True(t, ok)
		assert.JSONEq(t, `{"text":"chaves { dentro } de string","x":1}`, block)
	})

	t.Run("EscapedQuotes", func(t *testing.T) {
		block, ok := extractJSONBlock(`{"text":"ele disse \"oi\" e saiu"}`)
		require.True(t, ok)
		assert.JSONEq(t, `{"text":"ele disse \"oi\" e saiu"}`, block)
	})

	t.Run("NoObject", func(t *testing.T) {
		_, ok := extractJSONBlock("nenhum objeto aqui")
		assert.False(t, ok)
	})

	t.Run("Unbalanced", func(t *testing.T) {
		_, ok := extractJSONBlock(`{"a": 1`)
		assert.False(t, ok)
	})
}

func TestParseAnswer(t *testing.T) {
	answer, err := parseAnswer("```json\n" + `{
        "suggestions": ["Reinicie o roteador", "Teste em outro cabo"],
        "department": "T.I",
        "confidence": 0.85,
        "priority": "alta",
        "rationale": "sintomas de rede",
        "next_action": "Reinicie o roteador",
        "follow_up_questions": ["Outros usuarios afetados?"]
    }` + "\n```")
	require.NoError(t, err)
	assert.Len(t, answer.Suggestions, 2)
	require.NotNil(t, answer.Department)
	assert.Equal(t, "T.I", *answer.Department)
	require.NotNil(t, answer.Confidence)
	assert.InDelta(t, 0.85, *answer.Confidence, 0.001)

	_, err = parseAnswer("sem json nenhum")
	assert.Error(t, err)
}

func TestAnswerToAnalysis(t *testing.T) {
	department := "T.I"
	rationale := "rede"

	t.Run("FiltersAndCaps", func(t *testing.T) {
		confidence := 1.7
		answer := &geminiAnswer{
			Suggestions: []string{"Passo A", "Passo B", "Passo C", "Passo D", "Passo E", "Passo F"},
			Department:  &department,
			Confidence:  &confidence,
			Rationale:   &rationale,
		}
		analysis := answerToAnalysis(answer, Input{DoneActions: []string{"passo a"}})
		assert.Equal(t, SourceGemini, analysis.Source)
		assert.Equal(t, []string{"Passo B", "Passo C", "Passo D", "Passo E", "Passo F"}, analysis.Suggestions)
		require.NotNil(t, analysis.Confidence)
		assert.Equal(t, 1.0, *analysis.Confidence)
		require.NotNil(t, analysis.NextAction)
		assert.Equal(t, "Passo B", *analysis.NextAction)
	})

	t.Run("ExplicitNextActionWins", func(t *testing.T) {
		next := "Verifique o cabo"
		answer := &geminiAnswer{Suggestions: []string{"Passo A"}, NextAction: &next}
		analysis := answerToAnalysis(answer, Input{})
		require.NotNil(t, analysis.NextAction)
		assert.Equal(t, next, *analysis.NextAction)
	})

	t.Run("NegativeConfidenceClamped", func(t *testing.T) {
		confidence := -0.3
		answer := &geminiAnswer{Confidence: &confidence}
		analysis := answerToAnalysis(answer, Input{})
		require.NotNil(t, analysis.Confidence)
		assert.Equal(t, 0.0, *analysis.Confidence)
	})
}

func TestNewGeminiClient_RequiresKeyAndCandidates(t *testing.T) {
	candidates := []Candidate{{Endpoint: "https://example.com", Model: "gemini-1.5-flash"}}
	assert.Nil(t, NewGeminiClient("", candidates, 0, nil))
	assert.Nil(t, NewGeminiClient("  ", candidates, 0, nil))
	assert.Nil(t, NewGeminiClient("key", nil, 0, nil))
	assert.NotNil(t, NewGeminiClient("key", candidates, 0, nil))
}
