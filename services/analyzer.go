package services

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	// AnalysisAcceptConfidence is the confidence at which a model answer is
	// accepted without further retries.
	AnalysisAcceptConfidence = 0.7
	maxAnalysisAttempts      = 3
)

// ClothingAnalysis is the sanitized classification of one wardrobe photo.
// Every field is guaranteed to come from the catalog vocabulary or its
// documented default.
type ClothingAnalysis struct {
	Type         string   `json:"type"`
	Color        string   `json:"color"`
	Season       string   `json:"season"`
	Occasion     string   `json:"occasion"`
	Tags         []string `json:"tags"`
	Confidence   float64  `json:"confidence"`
	Reasoning    string   `json:"reasoning"`
	QualityScore float64  `json:"quality_score"`
	RetryCount   int      `json:"retry_count"`
}

type ClothingAnalyzer struct {
	LLM       StylistLLMProvider
	ModelName LLMModelName
}

// BuildClothingPrompt renders the classification prompt, including the user
// supplied name/description hints when present.
func BuildClothingPrompt(name *string, description *string) string {
	contextInfo := ""
	if name != nil || description != nil {
		var hints []string
		if name != nil {
			hints = append(hints, fmt.Sprintf("Nome/Tipo esperado: %s", *name))
		}
		if description != nil {
			hints = append(hints, fmt.Sprintf("Descrição: %s", *description))
		}
		contextInfo = "\nInformações adicionais fornecidas pelo usuário:\n" + strings.Join(hints, "\n")
	}

	return fmt.Sprintf(`ANÁLISE PRECISA DE ROUPAS - INSTRUÇÕES DETALHADAS:

Você é um especialista em moda e análise de vestuário. Analise esta imagem de roupa com MÁXIMA PRECISÃO.

OBSERVAÇÕES CRÍTICAS:
1. Observe CUIDADOSAMENTE a forma, silhueta e corte da peça
2. Analise as CORES reais visíveis, não suponha cores
3. Considere o contexto e proporções da peça
4. Diferencie claramente entre tipos de roupas (calça != vestido, saia != short)

TIPOS VÁLIDOS (seja preciso):
- Roupas superiores: camiseta, camisa, blusa, regata, cropped, casaco, jaqueta, suéter
- Roupas inferiores: calça, short, saia, bermuda, legging
- Vestidos: vestido (peça única que cobre torso e pernas)
- Calçados: tênis, sapato, sandália, bota, chinelo
- Acessórios: bolsa, chapéu, óculos, cinto, relógio, joia

CORES (seja específico):
- Cores básicas: preto, branco, cinza, bege, marrom
- Cores vibrantes: vermelho, azul, verde, amarelo, rosa, roxo, laranja
- Tons específicos: azul-marinho, verde-oliva, rosa-claro, etc.
- Padrões: listrado, xadrez, floral, poá, estampado

ESTAÇÕES:
- verão: tecidos leves, cores claras, peças frescas
- inverno: tecidos pesados, cores escuras, peças quentes
- meia-estação: peças versáteis para primavera/outono
- todas: peças básicas e atemporais

OCASIÕES:
- casual: uso diário, conforto
- formal: trabalho, eventos sérios
- esporte: atividades físicas
- festa: eventos sociais, celebrações
- praia: roupas de banho, verão
%s

FORMATO DE RESPOSTA (JSON obrigatório):
{
  "type": "tipo_exato_da_peça",
  "color": "cor_predominante_real",
  "season": "estação_adequada",
  "occasion": "ocasião_principal",
  "tags": ["tag1", "tag2", "tag3"],
  "confidence": 0.95,
  "reasoning": "Explicação detalhada da análise realizada"
}

ANALISE A IMAGEM AGORA COM MÁXIMA ATENÇÃO AOS DETALHES:`, contextInfo)
}

func lowQualityAnalysis(qualityScore float64) *ClothingAnalysis {
	return &ClothingAnalysis{
		Type:         "indefinido",
		Color:        "indefinido",
		Season:       "todas",
		Occasion:     "casual",
		Tags:         []string{"qualidade_baixa"},
		Confidence:   0.1,
		Reasoning:    "Imagem de baixa qualidade ou muito pequena para análise precisa.",
		QualityScore: qualityScore,
	}
}

func exhaustedAnalysis(qualityScore float64, retryCount int) *ClothingAnalysis {
	return &ClothingAnalysis{
		Type:         "indefinido",
		Color:        "indefinido",
		Season:       "todas",
		Occasion:     "casual",
		Tags:         []string{"análise_incompleta"},
		Confidence:   0.2,
		Reasoning:    "Não foi possível analisar a imagem com precisão após múltiplas tentativas.",
		QualityScore: qualityScore,
		RetryCount:   retryCount,
	}
}

// sanitizeAnalysis maps a raw model payload onto the catalog vocabulary.
// Anything off-vocabulary falls back to its default instead of erroring, so a
// sloppy answer still produces a usable record.
func sanitizeAnalysis(raw map[string]any, qualityScore float64, retryCount int) *ClothingAnalysis {
	analysis := &ClothingAnalysis{
		Type:         "indefinido",
		Color:        "indefinido",
		Season:       "todas",
		Occasion:     "casual",
		Tags:         []string{},
		Confidence:   0.5,
		Reasoning:    "Análise realizada automaticamente.",
		QualityScore: qualityScore,
		RetryCount:   retryCount,
	}

	if value, ok := raw["type"].(string); ok {
		if matched, found := MatchClothingType(value); found {
			analysis.Type = matched
		}
	}
	if value, ok := raw["color"].(string); ok {
		if matched, found := MatchColor(value); found {
			analysis.Color = matched
		}
	}
	if value, ok := raw["season"].(string); ok {
		if matched, found := MatchSeason(value); found {
			analysis.Season = matched
		}
	}
	if value, ok := raw["occasion"].(string); ok {
		if matched, found := MatchOccasion(value); found {
			analysis.Occasion = matched
		}
	}
	if rawTags, ok := raw["tags"].([]any); ok {
		for _, rawTag := range rawTags {
			tag, isString := rawTag.(string)
			if !isString || tag == "" {
				continue
			}
			analysis.Tags = append(analysis.Tags, tag)
			if len(analysis.Tags) == 5 {
				break
			}
		}
	}
	if value, ok := raw["confidence"].(float64); ok {
		analysis.Confidence = max(0, min(1, value))
	}
	if value, ok := raw["reasoning"].(string); ok && value != "" {
		analysis.Reasoning = value
	}
	return analysis
}

// Analyze classifies the clothing photo at imagePath. It retries up to three
// model calls, accepting early on a confident answer and otherwise keeping the
// best attempt. It never returns an error for a bad model answer, only for a
// broken pipeline; the returned LLMResponse carries accumulated token usage.
func (a *ClothingAnalyzer) Analyze(imagePath string, name *string, description *string) (*ClothingAnalysis, *LLMResponse, error) {
	usage := &LLMResponse{}

	qualityScore := ScoreImageFile(imagePath)
	if qualityScore < LowQualityThreshold {
		fmt.Printf("[Analyze: %v] low quality score %.2f, skipping model call\n", imagePath, qualityScore)
		return lowQualityAnalysis(qualityScore), usage, nil
	}

	prompt := BuildClothingPrompt(name, description)

	var best *ClothingAnalysis
	attempt := 0
	for attempt < maxAnalysisAttempts {
		temperature := float32(0.1)
		if attempt > 0 {
			temperature = 0.2
		}
		response, err := a.LLM.DescribeImage(imagePath, prompt, a.ModelName, GenerateOptions{
			Temperature:     temperature,
			MaxOutputTokens: 800,
			TopP:            floatPointer(0.8),
			TopK:            floatPointer(40),
		})
		if err != nil {
			fmt.Printf("[Analyze: %v] attempt %d failed: %v\n", imagePath, attempt+1, err)
			attempt++
			continue
		}
		usage.Add(response)

		var raw map[string]any
		if err := json.Unmarshal([]byte(CleanAIResponseText(response.Response)), &raw); err != nil {
			fmt.Printf("[Analyze: %v] attempt %d returned unparsable JSON: %v\n", imagePath, attempt+1, err)
			attempt++
			continue
		}

		candidate := sanitizeAnalysis(raw, qualityScore, attempt)
		if candidate.Confidence >= AnalysisAcceptConfidence {
			return candidate, usage, nil
		}
		if best == nil || candidate.Confidence > best.Confidence {
			best = candidate
		}
		attempt++
	}

	if best != nil {
		return best, usage, nil
	}
	return exhaustedAnalysis(qualityScore, attempt), usage, nil
}
