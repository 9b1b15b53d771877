package services

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
)

// WardrobePiece is the slice of a clothing item the stylist works with.
type WardrobePiece struct {
	ID       uint     `json:"id"`
	Type     string   `json:"type"`
	Color    string   `json:"color"`
	Season   string   `json:"season"`
	Occasion string   `json:"occasion"`
	Tags     []string `json:"tags"`
}

type OutfitPreferences struct {
	Occasion            string   `json:"occasion"`
	Weather             *string  `json:"weather,omitempty"`
	Season              *string  `json:"season,omitempty"`
	Style               *string  `json:"style,omitempty"`
	Colors              []string `json:"colors,omitempty"`
	ExcludeItems        []uint   `json:"exclude_items,omitempty"`
	MannequinPreference string   `json:"mannequin_preference"`
}

type SelectedPiece struct {
	ID     uint   `json:"id"`
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

type OutfitSuggestion struct {
	SelectedItems        []SelectedPiece `json:"selected_items"`
	Reasoning            string          `json:"reasoning"`
	StyleNotes           string          `json:"style_notes"`
	MannequinImagePrompt string          `json:"mannequin_image_prompt"`
	Confidence           float64         `json:"confidence"`
	Fallback             bool            `json:"fallback"`
}

var occasionClusters = [][]string{
	{"casual", "passeio", "fim de semana", "relaxar"},
	{"trabalho", "reunião", "formal", "escritório", "profissional"},
	{"festa", "jantar", "encontro", "social", "evento"},
}

// Ordered so answers stay stable when a weather string mentions several terms.
var weatherSeasonRules = []struct {
	term    string
	seasons []string
}{
	{"ensolarado", []string{"verão", "primavera"}},
	{"quente", []string{"verão"}},
	{"frio", []string{"inverno", "outono"}},
	{"chuvoso", []string{"outono", "inverno"}},
	{"vento", []string{"outono", "inverno"}},
	{"neve", []string{"inverno"}},
}

func clusterMentions(cluster []string, value string) bool {
	for _, term := range cluster {
		if strings.Contains(value, term) {
			return true
		}
	}
	return false
}

// OccasionsCompatible reports whether an item occasion fits the requested one,
// grouping near-synonyms into casual, formal and social clusters. Values that
// hit no cluster are treated as compatible.
func OccasionsCompatible(itemOccasion string, requestedOccasion string) bool {
	itemLower := NormalizeTerm(itemOccasion)
	requestedLower := NormalizeTerm(requestedOccasion)

	for _, cluster := range occasionClusters {
		if clusterMentions(cluster, itemLower) || clusterMentions(cluster, requestedLower) {
			return clusterMentions(cluster, itemLower) && clusterMentions(cluster, requestedLower)
		}
	}
	return true
}

// WeatherCompatible maps a free-form weather description onto seasons and
// checks the item season against them. The first mentioned weather term wins;
// unknown weather never filters.
func WeatherCompatible(itemSeason string, weather string) bool {
	weatherLower := NormalizeTerm(weather)
	seasonLower := NormalizeTerm(itemSeason)

	for _, rule := range weatherSeasonRules {
		if strings.Contains(weatherLower, rule.term) {
			for _, season := range rule.seasons {
				if strings.Contains(seasonLower, season) {
					return true
				}
			}
			return false
		}
	}
	return true
}

// FilterWardrobe drops excluded items and items whose occasion or season
// cannot work for the request. Occasion must match the requested one exactly
// and season must match the requested season when one is given; the softer
// cluster and weather compatibility layers run on top of that. Items tagged
// for all seasons or occasions always pass.
func FilterWardrobe(items []WardrobePiece, prefs OutfitPreferences) []WardrobePiece {
	excluded := make(map[uint]bool, len(prefs.ExcludeItems))
	for _, id := range prefs.ExcludeItems {
		excluded[id] = true
	}
	requestedOccasion := NormalizeTerm(prefs.Occasion)

	var filtered []WardrobePiece
	for _, item := range items {
		if excluded[item.ID] {
			continue
		}
		itemOccasion := NormalizeTerm(item.Occasion)
		itemSeason := NormalizeTerm(item.Season)
		if itemOccasion != "" && itemOccasion != "todas" {
			if !strings.Contains(itemOccasion, requestedOccasion) &&
				!OccasionsCompatible(item.Occasion, prefs.Occasion) {
				continue
			}
			if itemOccasion != requestedOccasion {
				continue
			}
		}
		if prefs.Season != nil && *prefs.Season != "" && itemSeason != "" && itemSeason != "todas" {
			if itemSeason != NormalizeTerm(*prefs.Season) {
				continue
			}
		}
		if prefs.Weather != nil && itemSeason != "" && itemSeason != "todas" {
			if !WeatherCompatible(item.Season, *prefs.Weather) {
				continue
			}
		}
		filtered = append(filtered, item)
	}
	return filtered
}

func orUnspecified(value *string) string {
	if value == nil || *value == "" {
		return "não especificado"
	}
	return *value
}

func orUnspecifiedList(values []string) string {
	if len(values) == 0 {
		return "não especificado"
	}
	return strings.Join(values, ", ")
}

// BuildOutfitPrompt serializes the filtered wardrobe and preferences into the
// stylist prompt with its JSON answer contract.
func BuildOutfitPrompt(items []WardrobePiece, prefs OutfitPreferences) string {
	var wardrobe strings.Builder
	for _, item := range items {
		fmt.Fprintf(&wardrobe, `
- ID: %d
- Tipo: %s
- Cor: %s
- Estação: %s
- Ocasião: %s
- Tags: %s
`, item.ID, item.Type, item.Color, item.Season, item.Occasion, strings.Join(item.Tags, ", "))
	}

	return fmt.Sprintf(`Você é um estilista virtual especializado em criar looks harmoniosos. Com base no guarda-roupa e preferências do usuário, crie um outfit completo.

GUARDA-ROUPA DISPONÍVEL:
%s
PREFERÊNCIAS DO USUÁRIO:
- Ocasião: %s
- Clima: %s
- Estação: %s
- Estilo preferido: %s
- Cores preferidas: %s
- Preferência de manequim: %s

INSTRUÇÕES:
1. Selecione 3-6 peças que formem um look completo e harmonioso
2. Priorize peças que combinem bem em cores e estilos
3. Considere a ocasião e o clima
4. Explique o raciocínio por trás de cada escolha
5. Forneça dicas de estilo
6. Crie uma descrição detalhada para gerar uma imagem de manequim com o look

Retorne apenas JSON no seguinte formato:
{
  "selectedItems": [
    {
      "id": 1,
      "type": "tipo_da_peça",
      "reason": "motivo_da_escolha"
    }
  ],
  "reasoning": "explicação_geral_do_look",
  "styleNotes": "dicas_de_como_usar",
  "mannequinImagePrompt": "descrição_detalhada_para_gerar_imagem_do_manequim_%s",
  "confidence": 0.95
}`, wardrobe.String(), prefs.Occasion, orUnspecified(prefs.Weather), orUnspecified(prefs.Season),
		orUnspecified(prefs.Style), orUnspecifiedList(prefs.Colors),
		prefs.MannequinPreference, strings.ToLower(prefs.MannequinPreference))
}

// BuildMannequinPrompt renders the image generation prompt for the selected
// pieces.
func BuildMannequinPrompt(selected []SelectedPiece, prefs OutfitPreferences) string {
	types := make([]string, 0, len(selected))
	for _, piece := range selected {
		types = append(types, piece.Type)
	}
	return fmt.Sprintf("Professional photo of a %s mannequin wearing: %s. Style: %s, studio lighting, clean background, fashion photography",
		strings.ToLower(prefs.MannequinPreference), strings.Join(types, ", "), orUnspecified(prefs.Style))
}

// OutfitBuilder turns a wardrobe and a request into an outfit suggestion,
// asking the model first and falling back to a rule-based assembler when the
// model is unavailable or answers garbage.
type OutfitBuilder struct {
	LLM       StylistLLMProvider
	ModelName LLMModelName
	Rand      *rand.Rand
}

type rawSelectedPiece struct {
	ID     json.Number `json:"id"`
	Type   string      `json:"type"`
	Reason string      `json:"reason"`
}

type rawOutfitAnswer struct {
	SelectedItems        []rawSelectedPiece `json:"selectedItems"`
	Reasoning            string             `json:"reasoning"`
	StyleNotes           string             `json:"styleNotes"`
	MannequinImagePrompt string             `json:"mannequinImagePrompt"`
	Confidence           *float64           `json:"confidence"`
}

// Generate builds an outfit from the wardrobe. It returns a ValidationError
// when the wardrobe cannot support a look at all, or when the model answered
// but every id it picked is outside the candidate set; invocation and parse
// failures degrade to the fallback assembler instead.
func (b *OutfitBuilder) Generate(wardrobe []WardrobePiece, prefs OutfitPreferences) (*OutfitSuggestion, *LLMResponse, error) {
	usage := &LLMResponse{}

	if len(wardrobe) == 0 {
		return nil, usage, NewValidationError("Adicione itens ao seu guarda-roupa primeiro para gerar looks!")
	}

	filtered := FilterWardrobe(wardrobe, prefs)
	if len(filtered) < 2 {
		return nil, usage, NewValidationError("Você precisa de mais itens no guarda-roupa para gerar um look completo. Adicione pelo menos uma parte superior e inferior.")
	}

	suggestion, err := b.generateWithModel(filtered, prefs, usage)
	if err != nil {
		return nil, usage, err
	}
	if suggestion == nil {
		suggestion = b.assembleFallback(filtered, prefs)
	}

	if len(suggestion.SelectedItems) == 0 {
		return nil, usage, NewValidationError("Nenhum item válido foi selecionado pela IA")
	}

	if suggestion.MannequinImagePrompt == "" {
		suggestion.MannequinImagePrompt = BuildMannequinPrompt(suggestion.SelectedItems, prefs)
	}
	return suggestion, usage, nil
}

// generateWithModel returns a nil suggestion with a nil error when the model
// call or its parse failed, which sends the caller to the fallback assembler.
// A parsed answer whose ids all miss the candidate set is a ValidationError.
func (b *OutfitBuilder) generateWithModel(filtered []WardrobePiece, prefs OutfitPreferences, usage *LLMResponse) (*OutfitSuggestion, error) {
	response, err := b.LLM.GenerateText(BuildOutfitPrompt(filtered, prefs), b.ModelName, GenerateOptions{
		Temperature:     0.3,
		MaxOutputTokens: 1000,
	})
	if err != nil {
		fmt.Printf("[Outfit] model unavailable, using fallback: %v\n", err)
		return nil, nil
	}
	usage.Add(response)

	var answer rawOutfitAnswer
	if err := json.Unmarshal([]byte(CleanAIResponseText(response.Response)), &answer); err != nil {
		fmt.Printf("[Outfit] unparsable model answer, using fallback: %v\n", err)
		return nil, nil
	}

	known := make(map[uint]WardrobePiece, len(filtered))
	for _, item := range filtered {
		known[item.ID] = item
	}

	var selected []SelectedPiece
	for _, raw := range answer.SelectedItems {
		id, err := raw.ID.Int64()
		if err != nil || id < 0 {
			continue
		}
		item, exists := known[uint(id)]
		if !exists {
			continue
		}
		pieceType := raw.Type
		if pieceType == "" {
			pieceType = item.Type
		}
		selected = append(selected, SelectedPiece{ID: uint(id), Type: pieceType, Reason: raw.Reason})
	}
	if len(selected) == 0 {
		fmt.Println("[Outfit] model answer referenced no known items")
		return nil, NewValidationError("Nenhum item válido foi selecionado pela IA")
	}

	suggestion := &OutfitSuggestion{
		SelectedItems:        selected,
		Reasoning:            answer.Reasoning,
		StyleNotes:           answer.StyleNotes,
		MannequinImagePrompt: answer.MannequinImagePrompt,
		Confidence:           0.7,
	}
	if suggestion.Reasoning == "" {
		suggestion.Reasoning = "Look criado com base nas peças disponíveis."
	}
	if suggestion.StyleNotes == "" {
		suggestion.StyleNotes = "Combine as peças com confiança!"
	}
	if answer.Confidence != nil {
		suggestion.Confidence = max(0, min(1, *answer.Confidence))
	}
	return suggestion, nil
}

var fallbackTopTypes = []string{"blusa", "camiseta", "camisa", "top", "regata"}
var fallbackBottomTypes = []string{"calça", "saia", "shorts", "bermuda"}
var fallbackShoeTypes = []string{"sapato", "tênis", "sandália", "bota"}

func piecesOfKind(items []WardrobePiece, kinds []string) []WardrobePiece {
	var matched []WardrobePiece
	for _, item := range items {
		itemType := NormalizeTerm(item.Type)
		for _, kind := range kinds {
			if strings.Contains(itemType, kind) {
				matched = append(matched, item)
				break
			}
		}
	}
	return matched
}

func (b *OutfitBuilder) pickRandom(items []WardrobePiece) WardrobePiece {
	return items[b.Rand.Intn(len(items))]
}

// assembleFallback picks one top, one bottom and one shoe at random from the
// filtered wardrobe.
func (b *OutfitBuilder) assembleFallback(filtered []WardrobePiece, prefs OutfitPreferences) *OutfitSuggestion {
	var selected []SelectedPiece

	if tops := piecesOfKind(filtered, fallbackTopTypes); len(tops) > 0 {
		top := b.pickRandom(tops)
		selected = append(selected, SelectedPiece{
			ID:     top.ID,
			Type:   top.Type,
			Reason: fmt.Sprintf("%s %s combina perfeitamente com a ocasião %s", top.Type, top.Color, prefs.Occasion),
		})
	}
	if bottoms := piecesOfKind(filtered, fallbackBottomTypes); len(bottoms) > 0 {
		bottom := b.pickRandom(bottoms)
		selected = append(selected, SelectedPiece{
			ID:     bottom.ID,
			Type:   bottom.Type,
			Reason: fmt.Sprintf("%s %s oferece o conforto ideal para %s", bottom.Type, bottom.Color, orUnspecified(prefs.Weather)),
		})
	}
	if shoes := piecesOfKind(filtered, fallbackShoeTypes); len(shoes) > 0 {
		shoe := b.pickRandom(shoes)
		selected = append(selected, SelectedPiece{
			ID:     shoe.ID,
			Type:   shoe.Type,
			Reason: fmt.Sprintf("%s completa o visual %s", shoe.Type, orUnspecified(prefs.Style)),
		})
	}

	return &OutfitSuggestion{
		SelectedItems: selected,
		Reasoning: fmt.Sprintf("Look %s perfeito para %s em dia %s. As peças foram selecionadas para criar harmonia e conforto.",
			orUnspecified(prefs.Style), prefs.Occasion, orUnspecified(prefs.Weather)),
		StyleNotes: "Para um toque especial, considere acessórios que complementem as cores escolhidas. Este look pode ser facilmente adaptado para outras ocasiões.",
		Confidence: 0.75,
		Fallback:   true,
	}
}
