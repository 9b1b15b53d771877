package models

import "github.com/lib/pq"

type ClothingItem struct {
	JsonModel
	Owner   UserAccount `json:"-"`
	OwnerID uint        `json:"-"`

	// optional user-supplied hints passed to the AI analysis
	Name        string  `json:"name"`
	Description *string `gorm:"type:text" json:"description"`

	ImageURL    *string `json:"image_url"`
	ImageStatus string  `json:"image_status"` // draft, uploaded

	// AI analysis result columns, written by the analyze worker
	Type       string         `json:"type"`
	Color      string         `json:"color"`
	Season     string         `json:"season"`
	Occasion   string         `json:"occasion"`
	Tags       pq.StringArray `gorm:"type:text[]" json:"tags"`
	Confidence *float64       `json:"confidence"`
	Reasoning  *string        `gorm:"type:text" json:"reasoning"`

	QualityScore    *float64 `json:"quality_score"`
	AnalysisRetries int      `json:"analysis_retries"`

	ProcessingStatus    string  `json:"processing_status"` // pending, analyzing, completed, failed
	ProcessRetryTimes   int     `json:"process_retry_times"`
	ProcessErrorMessage *string `json:"process_error_message"`

	LLMModel            *string `json:"llm_model"`
	LLMInputTokenCount  *int32  `json:"llm_input_token_count"`
	LLMOutputTokenCount *int32  `json:"llm_output_token_count"`
	LLMTotalTokenCount  *int32  `json:"llm_total_token_count"`
}

type GeneratedOutfit struct {
	JsonModel
	Owner   UserAccount `json:"-"`
	OwnerID uint        `json:"-"`

	SelectedItemsJSON    string  `gorm:"type:text" json:"-"`
	Reasoning            string  `gorm:"type:text" json:"reasoning"`
	StyleNotes           string  `gorm:"type:text" json:"style_notes"`
	MannequinImagePrompt string  `gorm:"type:text" json:"mannequin_image_prompt"`
	Confidence           float64 `json:"confidence"`

	// preferences snapshot at generation time
	InputPreferencesJSON string `gorm:"type:text" json:"-"`

	// true when the deterministic assembler produced the look instead of the model
	Fallback bool `json:"fallback"`

	MannequinImageURL *string `json:"mannequin_image_url"`
}

type MannequinGeneration struct {
	JsonModel
	GeneratedOutfitID uint            `json:"generated_outfit_id"`
	GeneratedOutfit   GeneratedOutfit `json:"-"`
	OwnerID           uint            `json:"-"`
	Owner             UserAccount     `json:"-"`

	Status                 string   `json:"status"` // pending, completed, failed
	PreviewImageURL        *string  `json:"preview_image_url"`
	Duration               *float64 `json:"duration"` // in seconds
	GenerationRetryTimes   int      `json:"generation_retry_times"`
	GenerationErrorMessage *string  `json:"generation_error_message"`

	LLMModel            *string `json:"llm_model"`
	LLMInputTokenCount  *int32  `json:"llm_input_token_count"`
	LLMOutputTokenCount *int32  `json:"llm_output_token_count"`
	LLMTotalTokenCount  *int32  `json:"llm_total_token_count"`
}
