package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"stylewiseapi/models"
	"stylewiseapi/services"

	firebase "firebase.google.com/go/v4"
	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

const (
	TypeAnalyzeClothing     = "analyze:clothing"
	TypeMannequinGeneration = "generate:mannequin"
	TypeOutfitAlert         = "generate:outfit_alert"
)

// AnalyzeUploadGrace delays the analysis so the client has time to finish
// the presigned PUT before the worker fetches the image.
const AnalyzeUploadGrace = 5 * time.Second

type AnalyzeClothingPayload struct {
	ClothingItemID uint `json:"clothing_item_id"`
}

type MannequinGenerationPayload struct {
	GenerationID uint `json:"generation_id"`
}

func NewAnalyzeClothingTask(clothingItemID uint) (*asynq.Task, error) {
	payload, err := json.Marshal(AnalyzeClothingPayload{ClothingItemID: clothingItemID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeAnalyzeClothing, payload), nil
}

func NewMannequinGenerationTask(generationID uint) (*asynq.Task, error) {
	payload, err := json.Marshal(MannequinGenerationPayload{GenerationID: generationID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeMannequinGeneration, payload), nil
}

func NewOutfitAlertTask() *asynq.Task {
	return asynq.NewTask(TypeOutfitAlert, []byte{})
}

func getFileForItem(awsService services.AWSServiceProvider, item models.ClothingItem) ([]byte, string, error) {
	bucketName := os.Getenv("R2_BUCKET_NAME")
	fmt.Printf("[Item: %v] Bucket name: %s\n", item.ID, bucketName)
	fmt.Printf("[Item: %v] Request presigned download url.. ", item.ID)
	if item.ImageURL == nil {
		return nil, "", fmt.Errorf("[Item: %v] Image URL is nil", item.ID)
	}
	fileUrl, err := awsService.GetPresignedR2FileReadURL(context.TODO(), bucketName, *item.ImageURL)
	fileName := filepath.Base(*item.ImageURL)
	if err != nil {
		sentry.CaptureException(fmt.Errorf("[Item: %v] Error on getting presigned URL for file %s", item.ID, *item.ImageURL))
		return nil, fileName, err
	}
	fmt.Printf("Downloading... %s\n", fileUrl)
	fileBytes, err := services.ReadFileFromUrl(fileUrl)
	if err != nil {
		sentry.CaptureException(fmt.Errorf("[Item: %v] Error on downloading file %s: %v", item.ID, *item.ImageURL, err))
		return nil, fileName, err
	}

	return fileBytes, fileName, nil
}

func saveItemProcessingFail(db *gorm.DB, item models.ClothingItem, msg string, shouldRetry bool) error {
	item.ProcessRetryTimes = item.ProcessRetryTimes + 1
	item.ProcessErrorMessage = &msg
	if !shouldRetry || item.ProcessRetryTimes >= 3 {

		item.ProcessingStatus = "failed"
	}
	tx := db.Save(&item)
	if tx.Error != nil {
		sentry.CaptureException(fmt.Errorf("[Fail Item %v] Error on saving item for failed status", item.ID))
		return tx.Error
	}
	return nil
}

func saveGenerationFail(db *gorm.DB, generation models.MannequinGeneration, msg string, shouldRetry bool) error {
	generation.GenerationRetryTimes = generation.GenerationRetryTimes + 1
	generation.GenerationErrorMessage = &msg
	if !shouldRetry || generation.GenerationRetryTimes >= 3 {

		generation.Status = "failed"
	}
	tx := db.Save(&generation)
	if tx.Error != nil {
		sentry.CaptureException(fmt.Errorf("[Fail Generation %v] Error on saving generation for failed status", generation.ID))
		return tx.Error
	}
	return nil
}

// HandleAnalyzeClothingTask downloads a wardrobe photo and runs the
// classification pipeline over it, persisting the analysis and token usage.
func HandleAnalyzeClothingTask(
	ctx context.Context, t *asynq.Task, db *gorm.DB, llm services.StylistLLMProvider,
	awsService services.AWSServiceProvider, fbApp *firebase.App) error {
	googleKey := os.Getenv("GOOGLE_API_KEY")
	if googleKey == "" {
		sentry.CaptureException(fmt.Errorf("[QUEUE] %s Google API key is not set", string(t.Payload())))
		return fmt.Errorf("[QUEUE] %s Google API key is not set", string(t.Payload()))
	}
	var payload AnalyzeClothingPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return err
	}
	fmt.Printf("[Item: %v] Start Processing\n", payload.ClothingItemID)
	var item models.ClothingItem
	res := db.First(&item, payload.ClothingItemID)
	if res.Error != nil {
		sentry.CaptureException(fmt.Errorf("[QUEUE] Error on retrieving item for processing %v", payload.ClothingItemID))
		return res.Error
	}
	if item.ProcessingStatus == "completed" {
		fmt.Printf("[Item: %v] Already analyzed\n", payload.ClothingItemID)
		return nil
	}
	item.ProcessingStatus = "analyzing"
	if err := db.Save(&item).Error; err != nil {
		sentry.CaptureException(fmt.Errorf("[Item: %v] Error on saving analyzing status %v", payload.ClothingItemID, err))
		return err
	}

	fileBytes, fileName, err := getFileForItem(awsService, item)
	if err != nil {
		saveItemProcessingFail(db, item, "Failed to read the item photo, please upload it again", true)
		sentry.CaptureException(fmt.Errorf("[Item: %v] Error on getting file %v: %v", payload.ClothingItemID, item.ImageURL, err))
		return err
	}
	fmt.Printf("[Item: %v] Downloaded file size: %d bytes\n", payload.ClothingItemID, len(fileBytes))

	filePath, err := services.CreateTempFile(fileBytes, fileName)
	if err != nil {
		sentry.CaptureException(fmt.Errorf("[Item: %v] Error on creating temp file %s: %v", payload.ClothingItemID, fileName, err))
		return err
	}
	defer os.Remove(filePath)

	model := services.Flash25
	modelString := model.String()
	fmt.Printf("[Item: %v] Model: %s\n", payload.ClothingItemID, modelString)

	analyzer := services.ClothingAnalyzer{LLM: llm, ModelName: model}
	var nameHint *string
	if item.Name != "" {
		nameHint = &item.Name
	}
	analysis, usage, err := analyzer.Analyze(filePath, nameHint, item.Description)
	if err != nil {
		fmt.Printf("[Item: %v] Error on analyzing image %v\n", payload.ClothingItemID, err)
		saveItemProcessingFail(db, item, "Failed to analyze your item, please try again", true)
		sentry.CaptureException(fmt.Errorf("[Item: %v] Error on analyzing image: %v", payload.ClothingItemID, err))
		return err
	}
	fmt.Printf("[Item: %v] LLM Processed: type=%s color=%s conf=%.2f, IT: %d, OT: %d, TT: %d\n",
		payload.ClothingItemID, analysis.Type, analysis.Color, analysis.Confidence,
		usage.InputTokenCount, usage.OutputTokenCount, usage.TotalTokenCount)

	item.Type = analysis.Type
	item.Color = analysis.Color
	item.Season = analysis.Season
	item.Occasion = analysis.Occasion
	item.Tags = pq.StringArray(analysis.Tags)
	item.Confidence = &analysis.Confidence
	item.Reasoning = &analysis.Reasoning
	item.QualityScore = &analysis.QualityScore
	item.AnalysisRetries = analysis.RetryCount
	item.ImageStatus = "uploaded"
	item.ProcessingStatus = "completed"
	item.ProcessErrorMessage = nil
	item.LLMModel = &modelString
	item.LLMInputTokenCount = &usage.InputTokenCount
	item.LLMOutputTokenCount = &usage.OutputTokenCount
	item.LLMTotalTokenCount = &usage.TotalTokenCount
	tx := db.Save(&item)
	if tx.Error != nil {
		sentry.CaptureException(fmt.Errorf("[QUEUE] Error on saving item %v", payload.ClothingItemID))
		return tx.Error
	}
	fmt.Printf("[Item: %v] Analysis finished succesfully..", payload.ClothingItemID)

	itemName := item.Name
	if itemName == "" {
		itemName = analysis.Type
	}
	services.SendNotification(fbApp, db, item.OwnerID, "Peça analisada!",
		fmt.Sprintf("Sua peça %s foi analisada e está pronta para combinar", itemName),
		map[string]string{"clothing_item_id": fmt.Sprintf("%d", item.ID), "type": "clothing_analyzed"})
	return nil
}

// HandleMannequinGenerationTask renders an outfit preview with the image
// model, whitens the background and uploads it through a presigned PUT.
func HandleMannequinGenerationTask(
	ctx context.Context, t *asynq.Task, db *gorm.DB, llm services.StylistLLMProvider,
	awsService services.AWSServiceProvider, fbApp *firebase.App) error {
	var payload MannequinGenerationPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return err
	}
	fmt.Printf("[Generation: %v] Start Processing\n", payload.GenerationID)
	var generation models.MannequinGeneration
	res := db.Joins("GeneratedOutfit").First(&generation, payload.GenerationID)
	if res.Error != nil {
		sentry.CaptureException(fmt.Errorf("[QUEUE] Error on retrieving generation for processing %v", payload.GenerationID))
		return res.Error
	}
	if generation.Status == "completed" {
		fmt.Printf("[Generation: %v] Already completed\n", payload.GenerationID)
		return nil
	}
	prompt := generation.GeneratedOutfit.MannequinImagePrompt
	if prompt == "" {
		saveGenerationFail(db, generation, "The look has no mannequin prompt to render", false)
		sentry.CaptureException(fmt.Errorf("[Generation: %v] Outfit %v has empty mannequin prompt", payload.GenerationID, generation.GeneratedOutfitID))
		return nil
	}

	model := services.Flash25Image
	modelString := model.String()
	fmt.Printf("[Generation: %v] Model: %s\n", payload.GenerationID, modelString)
	started := time.Now()

	response, err := llm.GenerateImage(prompt, model)
	if err != nil {
		fmt.Printf("[Generation: %v] Error on generating image %v\n", payload.GenerationID, err)
		saveGenerationFail(db, generation, "Failed to render the look preview, please try again", true)
		sentry.CaptureException(fmt.Errorf("[Generation: %v] Error on generating image: %v", payload.GenerationID, err))
		return err
	}
	if len(response.Images) == 0 {
		saveGenerationFail(db, generation, "The model returned no preview image, please try again", true)
		sentry.CaptureException(fmt.Errorf("[Generation: %v] Model returned no images", payload.GenerationID))
		return fmt.Errorf("[Generation: %v] Model returned no images", payload.GenerationID)
	}

	imageBytes, err := services.WhitenPreviewBackground(response.Images[0], 190, 245, 0.60)
	if err != nil {
		fmt.Printf("[Generation: %v] Background whitening failed, keeping original: %v\n", payload.GenerationID, err)
		imageBytes = response.Images[0]
	}

	bucketName := services.GetEnv("R2_BUCKET_NAME", "")
	safeFileName := fmt.Sprintf("mannequins/%v/generation-%v.png", generation.OwnerID, generation.ID)
	uploadUrl, presignErr := awsService.PresignLink(context.Background(), bucketName, safeFileName)
	if presignErr != nil {
		fmt.Printf("[Generation: %v] Unable to create presign link: %v\n", payload.GenerationID, presignErr)
		saveGenerationFail(db, generation, "Failed to store the preview, please try again", true)
		sentry.CaptureException(presignErr)
		return presignErr
	}
	respBody, statusCode, err := awsService.UploadToPresignedURL(context.Background(), bucketName, uploadUrl, imageBytes)
	fmt.Printf("[Generation: %v] R2 Upload file size %v, url %s, response body: %s, status code: %d\n", payload.GenerationID, len(imageBytes), uploadUrl, respBody, statusCode)
	if err != nil || (statusCode != 200 && statusCode != 204) {
		fmt.Printf("[Generation: %v] Error on uploading preview: %v\n", payload.GenerationID, err)
		saveGenerationFail(db, generation, "Failed to store the preview, please try again", true)
		sentry.CaptureException(err)
		return err
	}

	duration := time.Since(started).Seconds()
	generation.Status = "completed"
	generation.PreviewImageURL = &safeFileName
	generation.Duration = &duration
	generation.GenerationErrorMessage = nil
	generation.LLMModel = &modelString
	generation.LLMInputTokenCount = &response.InputTokenCount
	generation.LLMOutputTokenCount = &response.OutputTokenCount
	generation.LLMTotalTokenCount = &response.TotalTokenCount
	if err := db.Save(&generation).Error; err != nil {
		sentry.CaptureException(fmt.Errorf("[QUEUE] Error on saving generation %v", payload.GenerationID))
		return err
	}

	outfit := generation.GeneratedOutfit
	outfit.MannequinImageURL = &safeFileName
	if err := db.Save(&outfit).Error; err != nil {
		sentry.CaptureException(fmt.Errorf("[Generation: %v] Error on saving outfit preview url %v", payload.GenerationID, err))
		return err
	}
	fmt.Printf("[Generation: %v] Preview finished succesfully in %.1fs..", payload.GenerationID, duration)

	services.SendNotification(fbApp, db, generation.OwnerID, "Seu look está pronto!",
		"A prévia do seu look no manequim foi gerada, confira!",
		map[string]string{"outfit_id": fmt.Sprintf("%d", generation.GeneratedOutfitID), "type": "mannequin_ready"})
	return nil
}

// ScheduledOutfitAlertTask nudges users with a wardrobe to generate a look.
func ScheduledOutfitAlertTask(ctx context.Context, t *asynq.Task, db *gorm.DB, fbApp *firebase.App) error {

	fmt.Printf("[Outfit Alert] Processing for all users\n")

	var users []models.UserAccount
	result := db.Where("banned = ? AND receive_notifications = ? AND type = ?", false, true, models.UserTypeUser).Find(&users)
	if result.Error != nil {
		sentry.CaptureException(fmt.Errorf("[Outfit Alert] Error fetching users: %v", result.Error))
		return result.Error
	}

	fmt.Printf("[Outfit Alert] Found %d users to send notifications\n", len(users))

	for _, user := range users {
		err := sendOutfitAlertToUser(ctx, db, fbApp, user.ID)
		if err != nil {
			fmt.Printf("[Outfit Alert] Failed to send to user %d: %v\n", user.ID, err)
			sentry.CaptureException(fmt.Errorf("[Outfit Alert] Failed to send to user %d: %v", user.ID, err))
			continue
		}
		fmt.Printf("[Outfit Alert] Successfully sent outfit alert to user %d\n", user.ID)
		time.Sleep(1 * time.Second) // To avoid hitting rate limits
	}

	return nil
}

var outfitAlertMessages = []string{
	"Que tal montar um look novo com as peças do seu guarda-roupa?",
	"Seu estilista virtual está pronto, gere um look para hoje!",
	"Hora de combinar suas peças favoritas em um novo look!",
}

func sendOutfitAlertToUser(ctx context.Context, db *gorm.DB, fbApp *firebase.App, userID uint) error {
	var itemCount int64
	result := db.Model(&models.ClothingItem{}).Where("owner_id = ? AND processing_status = ?", userID, "completed").Count(&itemCount)
	if result.Error != nil {
		return fmt.Errorf("error counting user wardrobe: %v", result.Error)
	}
	if itemCount < 2 {
		fmt.Printf("[Outfit Alert] User %d has too few analyzed items (%d), skipping\n", userID, itemCount)
		return nil
	}

	message := outfitAlertMessages[time.Now().Unix()%int64(len(outfitAlertMessages))]
	title := "Look do dia"

	fmt.Println("[Outfit Alert] Sending notification to user", userID)
	services.SendNotification(fbApp, db, userID, title, message, map[string]string{"type": "outfit_alert"})

	return nil
}
