package services

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// The catalog vocabulary is Brazilian Portuguese, matching the mobile app.
var ptLower = cases.Lower(language.BrazilianPortuguese)

var ValidClothingTypes = []string{
	"camiseta", "camisa", "blusa", "regata", "cropped", "casaco", "jaqueta", "suéter",
	"calça", "short", "saia", "bermuda", "legging", "vestido",
	"tênis", "sapato", "sandália", "bota", "chinelo",
	"bolsa", "chapéu", "óculos", "cinto", "relógio", "joia",
}

var ValidColors = []string{
	"preto", "branco", "cinza", "bege", "marrom",
	"vermelho", "azul", "verde", "amarelo", "rosa", "roxo", "laranja",
	"azul-marinho", "verde-oliva", "rosa-claro", "cinza-escuro",
	"listrado", "xadrez", "floral", "poá", "estampado",
}

var ValidSeasons = []string{"verão", "inverno", "meia-estação", "todas"}

var ValidOccasions = []string{"casual", "formal", "esporte", "festa", "praia"}

func NormalizeTerm(term string) string {
	return strings.TrimSpace(ptLower.String(term))
}

// matchFuzzy returns the first vocabulary entry related to the raw value by
// substring in either direction. An empty raw value never matches.
func matchFuzzy(raw string, vocabulary []string) (string, bool) {
	normalized := NormalizeTerm(raw)
	if normalized == "" {
		return "", false
	}
	for _, valid := range vocabulary {
		if strings.Contains(normalized, valid) || strings.Contains(valid, normalized) {
			return valid, true
		}
	}
	return "", false
}

func matchExact(raw string, vocabulary []string) (string, bool) {
	normalized := NormalizeTerm(raw)
	for _, valid := range vocabulary {
		if normalized == valid {
			return valid, true
		}
	}
	return "", false
}

func MatchClothingType(raw string) (string, bool) {
	return matchFuzzy(raw, ValidClothingTypes)
}

func MatchColor(raw string) (string, bool) {
	return matchFuzzy(raw, ValidColors)
}

func MatchSeason(raw string) (string, bool) {
	return matchExact(raw, ValidSeasons)
}

func MatchOccasion(raw string) (string, bool) {
	return matchExact(raw, ValidOccasions)
}
