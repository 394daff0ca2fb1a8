package advisor

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

const (
	maxCandidates = 7
	maxSurfaced   = 5
	maxFollowUps  = 5
	maxConfidence = 0.9
)

var (
	errorCodeRe = regexp.MustCompile(`(erro|error|codigo|code)\s*[:#]?\s*[a-z]*\d+|0x[0-9a-f]+`)

	signalClusters = []struct {
		name    string
		pattern *regexp.Regexp
		steps   []string
	}{
		{"network", regexp.MustCompile(`\b(rede|internet|wifi|conexao|vpn|servidor)\b`), []string{
			"Teste a conexao em outro ponto de rede ou via cabo",
			"Reinicie o roteador ou switch mais proximo",
			"Verifique se outros sites ou servicos tambem estao fora",
		}},
		{"access", regexp.MustCompile(`\b(acesso|login|senha|bloqueado|bloqueada|permissao)\b`), []string{
			"Confirme se o usuario e a senha estao corretos (maiusculas/minusculas)",
			"Tente redefinir a senha pelo portal de autoatendimento",
			"Verifique se a conta nao esta bloqueada por tentativas",
		}},
		{"email", regexp.MustCompile(`\b(email|e-mail|outlook|webmail|caixa de entrada)\b`), []string{
			"Acesse o webmail para confirmar se o problema e do cliente de email",
			"Verifique a lixeira e os filtros de spam",
			"Confirme se a caixa de correio nao atingiu o limite de espaco",
		}},
		{"browser", regexp.MustCompile(`\b(navegador|chrome|edge|firefox|site|pagina)\b`), []string{
			"Limpe o cache e os cookies do navegador",
			"Teste em uma janela anonima ou em outro navegador",
			"Desative extensoes recentes e tente novamente",
		}},
		{"device", regexp.MustCompile(`\b(impressora|computador|notebook|monitor|teclado|mouse|equipamento)\b`), []string{
			"Verifique cabos e conexoes fisicas do equipamento",
			"Desligue o equipamento da tomada por 30 segundos e religue",
			"Teste o equipamento em outra maquina ou porta",
		}},
		{"app", regexp.MustCompile(`\b(sistema|aplicativo|app|software|erp)\b`), []string{
			"Feche e abra o sistema novamente",
			"Verifique se ha atualizacao pendente do aplicativo",
			"Confirme se o problema ocorre para outros usuarios do sistema",
		}},
	}

	genericSteps = []string{
		"Reinicie o computador e tente novamente",
		"Anote o horario exato em que o problema ocorre",
		"Registre uma captura de tela do problema",
	}

	askErrorTextStep = "Informe o texto exato da mensagem de erro"

	clarifyingQuestions = []string{
		"Pode descrever o que estava fazendo quando o problema comecou?",
		"O problema acontece sempre ou de forma intermitente?",
	}

	askErrorQuestion     = "Qual e a mensagem de erro exata?"
	affectsOthersQuestion = "O problema afeta outros usuarios ou dispositivos?"

	criticalWordsRe = regexp.MustCompile(`\b(parou|parado|parada|urgente|critico|critica|inacessivel)\b`)
	highWordsRe     = regexp.MustCompile(`\b(importante|falhando|instavel|intermitente)\b`)
)

// department scoring buckets: each matching bucket adds its fixed weight to
// every department of the bucket's category.
var departmentBuckets = []struct {
	category string
	weight   int
	pattern  *regexp.Regexp
}{
	{"finance", 3, regexp.MustCompile(`\b(boleto|pagamento|fatura|financeiro|reembolso|imposto|cobranca)\b|nota fiscal`)},
	{"hr", 3, regexp.MustCompile(`\b(ferias|salario|holerite|contracheque|beneficio|admissao|demissao)\b|folha de pagamento`)},
	{"production", 3, regexp.MustCompile(`\b(maquina|producao|fabrica|esteira|manutencao|turno)\b`)},
	{"it", 2, regexp.MustCompile(`\b(computador|sistema|software|aplicativo|erp)\b`)},
	{"it", 2, regexp.MustCompile(`\b(rede|internet|wifi|vpn|servidor|email|acesso|login|senha)\b`)},
	{"it", 2, regexp.MustCompile(`\b(impressora|notebook|monitor|teclado|mouse|hardware)\b`)},
}

// heuristicAnalyze is the deterministic fallback path. It never fails.
func heuristicAnalyze(input Input, departments []domain.Department) *Analysis {
	text := foldText(input.Title + " " + input.Description)
	hasErrorCode := errorCodeRe.MatchString(text)

	candidates := make([]string, 0, maxCandidates)
	candidates = append(candidates, genericSteps...)
	if !hasErrorCode {
		candidates = append(candidates, askErrorTextStep)
	}
	for _, cluster := range signalClusters {
		if cluster.pattern.MatchString(text) {
			candidates = append(candidates, cluster.steps...)
		}
	}

	suggestions := filterExcluded(candidates, input.DoneActions, input.RejectedActions, input.PriorSuggestions)
	suggestions = capList(suggestions, maxCandidates)
	suggestions = capList(suggestions, maxSurfaced)
	if len(suggestions) == 0 {
		suggestions = filterExcluded(clarifyingQuestions, input.PriorSuggestions)
	}

	analysis := &Analysis{
		Suggestions: suggestions,
		Source:      SourceHeuristic,
	}
	if len(suggestions) > 0 {
		next := suggestions[0]
		analysis.NextAction = &next
	}

	followUps := make([]string, 0, maxFollowUps)
	if !hasErrorCode {
		followUps = append(followUps, askErrorQuestion)
	}
	followUps = append(followUps, affectsOthersQuestion)
	analysis.FollowUpQuestions = capList(followUps, maxFollowUps)

	if name, confidence := predictDepartment(text, departments); name != "" {
		analysis.PredictedDepartment = &name
		analysis.Confidence = &confidence
		rationale := "correspondencia de palavras-chave da descricao"
		analysis.Rationale = &rationale
	}

	if hint := priorityHint(text); hint != "" {
		analysis.PriorityHint = &hint
	}
	return analysis
}

func predictDepartment(text string, departments []domain.Department) (string, float64) {
	bestName := ""
	bestScore := 0
	for i := range departments {
		category := departmentCategory(departments[i].Name)
		if category == "" {
			continue
		}
		score := 0
		for _, bucket := range departmentBuckets {
			if bucket.category == category && bucket.pattern.MatchString(text) {
				score += bucket.weight
			}
		}
		if score > bestScore {
			bestScore = score
			bestName = departments[i].Name
		}
	}
	if bestScore <= 0 {
		return "", 0
	}
	confidence := 0.5 + 0.1*float64(bestScore)
	if confidence > maxConfidence {
		confidence = maxConfidence
	}
	return bestName, confidence
}

func departmentCategory(name string) string {
	folded := foldText(name)
	switch {
	case strings.Contains(folded, "financ") || strings.Contains(folded, "contabil"):
		return "finance"
	case folded == "rh" || strings.Contains(folded, "recursos humanos") || strings.Contains(folded, "pessoal"):
		return "hr"
	case strings.Contains(folded, "produc") || strings.Contains(folded, "fabrica"):
		return "production"
	case folded == "ti" || folded == "t.i" || folded == "t.i." || strings.Contains(folded, "tecnolog") || strings.Contains(folded, "informat") || strings.Contains(folded, "suporte"):
		return "it"
	}
	return ""
}

func priorityHint(text string) string {
	if criticalWordsRe.MatchString(text) {
		return "critica"
	}
	if highWordsRe.MatchString(text) {
		return "alta"
	}
	return ""
}

var foldStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// foldText lowercases and strips diacritics so the regex tables match both
// accented and unaccented spellings.
func foldText(text string) string {
	lowered := strings.ToLower(text)
	stripped, _, err := transform.String(foldStripper, lowered)
	if err != nil {
		return lowered
	}
	return stripped
}
