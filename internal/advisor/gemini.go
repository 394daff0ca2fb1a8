package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Candidate is one (endpoint, model) pair to try. Candidates are attempted
// in order with short-circuit on the first success; this is an availability
// hedge, not a correctness requirement.
type Candidate struct {
	Endpoint string
	Model    string
}

// GeminiClient calls the Gemini generateContent API.
type GeminiClient struct {
	apiKey     string
	candidates []Candidate
	httpClient *http.Client
	logger     *zap.Logger
}

// NewGeminiClient returns a configured client, or nil when no API key is set
// so the advisory service runs heuristic-only.
func NewGeminiClient(apiKey string, candidates []Candidate, timeout time.Duration, logger *zap.Logger) *GeminiClient {
	if strings.TrimSpace(apiKey) == "" || len(candidates) == 0 {
		return nil
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &GeminiClient{
		apiKey:     apiKey,
		candidates: candidates,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Analyze tries each candidate in order and returns the first parsed answer.
func (c *GeminiClient) Analyze(ctx context.Context, input Input, departments []string) (*Analysis, error) {
	prompt := buildPrompt(input, departments)
	var lastErr error
	for _, candidate := range c.candidates {
		analysis, err := c.call(ctx, candidate, prompt, input)
		if err == nil {
			return analysis, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Debug("gemini candidate failed",
			zap.String("endpoint", candidate.Endpoint),
			zap.String("model", candidate.Model),
			zap.Error(err))
		lastErr = err
	}
	return nil, fmt.Errorf("all gemini candidates failed: %w", lastErr)
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// geminiAnswer is the structured payload the prompt asks the model for.
// Every field is optional; missing fields are simply absent, not fatal.
type geminiAnswer struct {
	Suggestions       []string `json:"suggestions"`
	Department        *string  `json:"department"`
	Confidence        *float64 `json:"confidence"`
	Priority          *string  `json:"priority"`
	Rationale         *string  `json:"rationale"`
	NextAction        *string  `json:"next_action"`
	FollowUpQuestions []string `json:"follow_up_questions"`
}

func (c *GeminiClient) call(ctx context.Context, candidate Candidate, prompt string, input Input) (*Analysis, error) {
	payload, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
	})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		strings.TrimRight(candidate.Endpoint, "/"), candidate.Model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("gemini returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	var parsed geminiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode gemini response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return nil, errors.New("gemini response has no content")
	}

	answer, err := parseAnswer(parsed.Candidates[0].Content.Parts[0].Text)
	if err != nil {
		return nil, err
	}
	return answerToAnalysis(answer, input), nil
}

// parseAnswer extracts the structured answer from free-form model output:
// markdown code fences are stripped and the first balanced {...} block is
// parsed, so surrounding prose does not break decoding.
func parseAnswer(text string) (*geminiAnswer, error) {
	block, ok := extractJSONBlock(text)
	if !ok {
		return nil, errors.New("no json object in gemini answer")
	}
	var answer geminiAnswer
	if err := json.Unmarshal([]byte(block), &answer); err != nil {
		return nil, fmt.Errorf("decode gemini answer: %w", err)
	}
	return &answer, nil
}

func extractJSONBlock(text string) (string, bool) {
	cleaned := strings.ReplaceAll(text, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")

	start := strings.Index(cleaned, "{")
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(cleaned); i++ {
		ch := cleaned[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return cleaned[start : i+1], true
			}
		}
	}
	return "", false
}

func answerToAnalysis(answer *geminiAnswer, input Input) *Analysis {
	suggestions := filterExcluded(answer.Suggestions, input.DoneActions, input.RejectedActions, input.PriorSuggestions)
	suggestions = capList(suggestions, maxSurfaced)

	analysis := &Analysis{
		Suggestions:         suggestions,
		PredictedDepartment: answer.Department,
		PriorityHint:        answer.Priority,
		Rationale:           answer.Rationale,
		Source:              SourceGemini,
		FollowUpQuestions:   capList(answer.FollowUpQuestions, maxFollowUps),
	}
	if answer.Confidence != nil {
		confidence := *answer.Confidence
		if confidence < 0 {
			confidence = 0
		}
		if confidence > 1 {
			confidence = 1
		}
		analysis.Confidence = &confidence
	}
	switch {
	case answer.NextAction != nil && strings.TrimSpace(*answer.NextAction) != "":
		analysis.NextAction = answer.NextAction
	case len(suggestions) > 0:
		next := suggestions[0]
		analysis.NextAction = &next
	}
	return analysis
}

func buildPrompt(input Input, departments []string) string {
	var b strings.Builder
	b.WriteString("Voce e um assistente de triagem de chamados de helpdesk.\n")
	b.WriteString("Analise o chamado abaixo e responda APENAS com um objeto JSON com os campos: ")
	b.WriteString(`suggestions (lista de ate 5 passos), department (um dos departamentos listados ou null), `)
	b.WriteString(`confidence (0..1), priority ("critica", "alta" ou null), rationale, next_action, follow_up_questions (lista de ate 5).`)
	b.WriteString("\n\nTitulo: ")
	b.WriteString(input.Title)
	b.WriteString("\nDescricao: ")
	b.WriteString(input.Description)
	if len(departments) > 0 {
		b.WriteString("\n\nDepartamentos disponiveis: ")
		b.WriteString(strings.Join(departments, ", "))
	}
	writePromptList(&b, "Acoes ja executadas (nao repita)", input.DoneActions)
	writePromptList(&b, "Acoes rejeitadas pelo usuario (nao repita)", input.RejectedActions)
	writePromptList(&b, "Sugestoes ja apresentadas (nao repita)", input.PriorSuggestions)
	return b.String()
}

func writePromptList(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteString("\n\n")
	b.WriteString(label)
	b.WriteString(":")
	for _, item := range items {
		b.WriteString("\n- ")
		b.WriteString(item)
	}
}
