package services

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

// scriptedLLM replays canned answers and records the options of each call.
type scriptedLLM struct {
	answers []string
	errs    []error
	calls   []GenerateOptions
}

func (s *scriptedLLM) respond() (*LLMResponse, error) {
	index := len(s.calls) - 1
	if index < len(s.errs) && s.errs[index] != nil {
		return nil, s.errs[index]
	}
	answer := s.answers[len(s.answers)-1]
	if index < len(s.answers) {
		answer = s.answers[index]
	}
	return &LLMResponse{Response: answer, InputTokenCount: 10, OutputTokenCount: 5, TotalTokenCount: 15}, nil
}

func (s *scriptedLLM) DescribeImage(imagePath string, prompt string, modelName LLMModelName, opts GenerateOptions) (*LLMResponse, error) {
	s.calls = append(s.calls, opts)
	return s.respond()
}

func (s *scriptedLLM) GenerateText(prompt string, modelName LLMModelName, opts GenerateOptions) (*LLMResponse, error) {
	s.calls = append(s.calls, opts)
	return s.respond()
}

func (s *scriptedLLM) GenerateImage(prompt string, modelName LLMModelName) (*LLMResponse, error) {
	s.calls = append(s.calls, GenerateOptions{})
	return s.respond()
}

func writeTestImage(t *testing.T, sizeKB int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "item.jpg")
	err := os.WriteFile(path, make([]byte, sizeKB*1024), 0644)
	assert.NoError(t, err)
	return path
}

func TestAnalyzeLowQualityShortCircuits(t *testing.T) {
	llm := &scriptedLLM{}
	analyzer := &ClothingAnalyzer{LLM: llm, ModelName: Flash20}

	analysis, usage, err := analyzer.Analyze(writeTestImage(t, 2), nil, nil)
	assert.NoError(t, err)
	assert.Empty(t, llm.calls, "low quality images must not reach the model")
	assert.Equal(t, "indefinido", analysis.Type)
	assert.Equal(t, []string{"qualidade_baixa"}, analysis.Tags)
	assert.Equal(t, 0.1, analysis.Confidence)
	assert.Equal(t, 0.1, analysis.QualityScore)
	assert.Equal(t, int32(0), usage.TotalTokenCount)
}

func TestAnalyzeAcceptsConfidentFirstAnswer(t *testing.T) {
	llm := &scriptedLLM{answers: []string{
		"```json\n{\"type\": \"camiseta\", \"color\": \"azul\", \"season\": \"verão\", \"occasion\": \"casual\", \"tags\": [\"básica\"], \"confidence\": 0.92, \"reasoning\": \"Camiseta azul de verão.\"}\n```",
	}}
	analyzer := &ClothingAnalyzer{LLM: llm, ModelName: Flash20}

	analysis, usage, err := analyzer.Analyze(writeTestImage(t, 150), nil, nil)
	assert.NoError(t, err)
	assert.Len(t, llm.calls, 1)
	assert.Equal(t, float32(0.1), llm.calls[0].Temperature)
	assert.Equal(t, int32(800), llm.calls[0].MaxOutputTokens)
	assert.Equal(t, "camiseta", analysis.Type)
	assert.Equal(t, "azul", analysis.Color)
	assert.Equal(t, "verão", analysis.Season)
	assert.Equal(t, 0.92, analysis.Confidence)
	assert.Equal(t, int32(15), usage.TotalTokenCount)
}

func TestAnalyzeRetriesAndKeepsBest(t *testing.T) {
	llm := &scriptedLLM{answers: []string{
		"{\"type\": \"camiseta\", \"confidence\": 0.4}",
		"{\"type\": \"camisa\", \"confidence\": 0.6}",
		"{\"type\": \"blusa\", \"confidence\": 0.5}",
	}}
	analyzer := &ClothingAnalyzer{LLM: llm, ModelName: Flash20}

	analysis, usage, err := analyzer.Analyze(writeTestImage(t, 150), nil, nil)
	assert.NoError(t, err)
	assert.Len(t, llm.calls, 3)
	assert.Equal(t, float32(0.1), llm.calls[0].Temperature)
	assert.Equal(t, float32(0.2), llm.calls[1].Temperature)
	assert.Equal(t, float32(0.2), llm.calls[2].Temperature)
	assert.Equal(t, "camisa", analysis.Type)
	assert.Equal(t, 0.6, analysis.Confidence)
	assert.Equal(t, int32(45), usage.TotalTokenCount, "usage accumulates over attempts")
}

func TestAnalyzeSanitizesOffVocabularyAnswer(t *testing.T) {
	llm := &scriptedLLM{answers: []string{
		"{\"type\": \"kimono\", \"color\": \"neon\", \"season\": \"primavera\", \"occasion\": \"gala\", \"tags\": [\"a\", \"b\", \"c\", \"d\", \"e\", \"f\", 7], \"confidence\": 3.5}",
	}}
	analyzer := &ClothingAnalyzer{LLM: llm, ModelName: Flash20}

	analysis, _, err := analyzer.Analyze(writeTestImage(t, 150), nil, nil)
	assert.NoError(t, err)
	assert.Equal(t, "indefinido", analysis.Type)
	assert.Equal(t, "indefinido", analysis.Color)
	assert.Equal(t, "todas", analysis.Season)
	assert.Equal(t, "casual", analysis.Occasion)
	assert.Len(t, analysis.Tags, 5)
	assert.Equal(t, 1.0, analysis.Confidence, "confidence clamps to [0, 1]")
	assert.Equal(t, "Análise realizada automaticamente.", analysis.Reasoning)
}

func TestAnalyzeExhaustedFallback(t *testing.T) {
	failure := fmt.Errorf("model down")
	llm := &scriptedLLM{answers: []string{"not json"}, errs: []error{failure, failure, nil}}
	analyzer := &ClothingAnalyzer{LLM: llm, ModelName: Flash20}

	analysis, _, err := analyzer.Analyze(writeTestImage(t, 150), nil, nil)
	assert.NoError(t, err)
	assert.Len(t, llm.calls, 3)
	assert.Equal(t, []string{"análise_incompleta"}, analysis.Tags)
	assert.Equal(t, 0.2, analysis.Confidence)
	assert.Equal(t, "indefinido", analysis.Type)
}

func TestBuildClothingPromptIncludesHints(t *testing.T) {
	name := "Camiseta favorita"
	description := "comprada em 2023"
	prompt := BuildClothingPrompt(&name, &description)
	assert.Contains(t, prompt, "Nome/Tipo esperado: Camiseta favorita")
	assert.Contains(t, prompt, "Descrição: comprada em 2023")
	assert.Contains(t, prompt, "FORMATO DE RESPOSTA")

	bare := BuildClothingPrompt(nil, nil)
	assert.NotContains(t, bare, "Informações adicionais")
}

func TestCleanAIResponseText(t *testing.T) {
	assert.Equal(t, "{\"a\": 1}", CleanAIResponseText("```json\n{\"a\": 1}\n```"))
	assert.Equal(t, "{\"a\": 1}", CleanAIResponseText("{\"a\": 1}"))
}
