package controllers

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"

	"stylewiseapi/models"
	"stylewiseapi/services"
	"stylewiseapi/tasks"

	firebase "firebase.google.com/go/v4"
	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

type AnalyzeInlineIn struct {
	ImageBase64 string  `json:"image_base64" validate:"required"`
	FileName    string  `json:"file_name" validate:"required,max=200"`
	Name        *string `json:"name" validate:"omitempty,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`
}

type ClothingItemResponse struct {
	ID               uint     `json:"id"`
	Name             string   `json:"name"`
	Description      *string  `json:"description"`
	Uri              *string  `json:"uri,omitempty"`
	Type             string   `json:"type"`
	Color            string   `json:"color"`
	Season           string   `json:"season"`
	Occasion         string   `json:"occasion"`
	Tags             []string `json:"tags"`
	Confidence       *float64 `json:"confidence"`
	Reasoning        *string  `json:"reasoning"`
	QualityScore     *float64 `json:"quality_score"`
	ProcessingStatus string   `json:"processing_status"`
	CreatedAt        string   `json:"created_at"`
	UpdatedAt        string   `json:"updated_at"`
}

type ClothingItemCreatedResponse struct {
	Item          ClothingItemResponse `json:"item"`
	FileUploadUrl string               `json:"file_upload_url"`
}

type WardrobeController struct {
	AWSService  services.AWSServiceProvider
	FirebaseApp *firebase.App
	URLCache    services.URLCacheServiceProvider
	LLM         services.StylistLLMProvider
}

func (controller *WardrobeController) WardrobeRoutes(g *echo.Group) {
	g.POST("", controller.CreateItem)
	g.POST("/analyze", controller.AnalyzeInline)
	g.GET("", controller.ListItems)
	g.GET("/:id", controller.GetItem)
	g.PUT("/:id", controller.UpdateItem)
	g.DELETE("/:id", controller.DeleteItem)
	g.POST("/:id/analyze", controller.ReAnalyzeItem)
}

func itemToResponse(item models.ClothingItem, uri *string) ClothingItemResponse {
	return ClothingItemResponse{
		ID:               item.ID,
		Name:             item.Name,
		Description:      item.Description,
		Uri:              uri,
		Type:             item.Type,
		Color:            item.Color,
		Season:           item.Season,
		Occasion:         item.Occasion,
		Tags:             item.Tags,
		Confidence:       item.Confidence,
		Reasoning:        item.Reasoning,
		QualityScore:     item.QualityScore,
		ProcessingStatus: item.ProcessingStatus,
		CreatedAt:        item.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt:        item.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

func (controller *WardrobeController) CreateItem(c echo.Context) error {
	var req models.ClothingItemCreateIn
	if err := c.Bind(&req); err != nil {
		fmt.Println(err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}
	asynqClient, ok := c.Get("__asynqclient").(*asynq.Client)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Service is not available, please try again a bit later"})
	}

	if !services.IsAllowedImageName(req.FileName) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Only image uploads are supported"})
	}

	name := ""
	if req.Name != nil {
		name = *req.Name
	}
	item := models.ClothingItem{
		Name:             name,
		Description:      req.Description,
		OwnerID:          user.ID,
		ImageStatus:      "draft",
		ProcessingStatus: "pending",
	}
	var bucketName = services.GetEnv("R2_BUCKET_NAME", "")
	// todo clean and map the same file name as in FE UI otherwise **FAIL**
	safeFileName := fmt.Sprintf("wardrobe/%v/%s", user.ID, req.FileName)

	uploadUrl, presignErr := controller.AWSService.PresignLink(context.Background(), bucketName, safeFileName)
	if presignErr != nil {
		log.Printf("Unable to presign generate for %s!, %s", item.Name, presignErr)
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"message": "Error while creating wardrobe item with attachment",
		})
	}
	item.ImageURL = &safeFileName
	if err := db.Create(&item).Error; err != nil {
		sentry.CaptureException(err)
		return err
	}

	task, err := tasks.NewAnalyzeClothingTask(item.ID)
	if err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Sorry, could not process item, please try again"})
	}
	info, err := asynqClient.Enqueue(task, asynq.MaxRetry(3), asynq.Queue("analyze"), asynq.ProcessIn(tasks.AnalyzeUploadGrace))
	if err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Sorry, could not process item, please try again"})
	}
	fmt.Println("[Queue] Analyze clothing task submitted, Item ID: ", item.ID, " Task ID: ", info.ID)

	return c.JSON(http.StatusCreated, ClothingItemCreatedResponse{
		Item:          itemToResponse(item, nil),
		FileUploadUrl: uploadUrl,
	})
}

// AnalyzeInline classifies an inline base64 photo synchronously and returns
// the analysis without persisting anything.
func (controller *WardrobeController) AnalyzeInline(c echo.Context) error {
	var req AnalyzeInlineIn
	if err := c.Bind(&req); err != nil {
		fmt.Println(err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	if !services.IsAllowedImageName(req.FileName) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Only image uploads are supported"})
	}

	imageBytes, err := base64.StdEncoding.DecodeString(req.ImageBase64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Image is not valid base64"})
	}
	filePath, err := services.CreateTempFile(imageBytes, req.FileName)
	if err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Sorry, could not analyze the image, please try again"})
	}
	defer os.Remove(filePath)

	analyzer := services.ClothingAnalyzer{LLM: controller.LLM, ModelName: services.Flash25}
	analysis, usage, err := analyzer.Analyze(filePath, req.Name, req.Description)
	if err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Sorry, could not analyze the image, please try again"})
	}
	fmt.Printf("[Analyze inline] User: %v IT: %d, OT: %d, TT: %d\n", user.ID, usage.InputTokenCount, usage.OutputTokenCount, usage.TotalTokenCount)

	return c.JSON(http.StatusOK, analysis)
}

// populatePresignedItemImages takes raw wardrobe models and enriches them with presigned URLs concurrently.
// This version includes a failsafe for when the cache system itself fails.
func (controller *WardrobeController) populatePresignedItemImages(ctx context.Context, items []models.ClothingItem) []ClothingItemResponse {
	if len(items) == 0 {
		return []ClothingItemResponse{}
	}

	var wg sync.WaitGroup
	processedResponses := make([]ClothingItemResponse, len(items))
	bucketName := services.GetEnv("R2_BUCKET_NAME", "")

	for i, clothingItem := range items {
		wg.Add(1)
		go func(index int, item models.ClothingItem) {
			defer wg.Done()

			var imageUrl string
			if item.ImageURL != nil && *item.ImageURL != "" {
				objectKey := *item.ImageURL

				url, err := controller.URLCache.GetReadURL(ctx, objectKey)
				if err == nil {
					imageUrl = url
				} else {
					// cache system itself failed, not just a miss, bypass it
					log.Printf("CACHE WARNING: Cache system failed for key '%s': %v. Triggering manual R2 fallback.", objectKey, err)
					sentry.WithScope(func(scope *sentry.Scope) {
						scope.SetTag("failure_type", "cache_system")
						scope.SetExtra("objectKey", objectKey)
						sentry.CaptureException(err)
					})

					fallbackUrl, fallbackErr := controller.AWSService.GetPresignedR2FileReadURL(ctx, bucketName, objectKey)
					if fallbackErr != nil {
						log.Printf("CRITICAL: Manual R2 fallback also failed for key '%s': %v", objectKey, fallbackErr)
						sentry.CaptureException(fallbackErr)
						// imageUrl remains empty, but we don't fail the entire request.
					} else {
						imageUrl = fallbackUrl
					}
				}
			}
			processedResponses[index] = itemToResponse(item, &imageUrl)
		}(i, clothingItem)
	}

	wg.Wait()
	return processedResponses
}

func (controller *WardrobeController) ListItems(c echo.Context) error {
	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}

	page := 1
	pageSize := 50
	echo.QueryParamsBinder(c).Int("page", &page).Int("page_size", &pageSize)
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 50
	}

	query := db.Where("owner_id = ?", user.ID)
	if value := c.QueryParam("type"); value != "" {
		query = query.Where("type = ?", services.NormalizeTerm(value))
	}
	if value := c.QueryParam("color"); value != "" {
		query = query.Where("color = ?", services.NormalizeTerm(value))
	}
	if value := c.QueryParam("season"); value != "" {
		query = query.Where("season = ?", services.NormalizeTerm(value))
	}
	if value := c.QueryParam("occasion"); value != "" {
		query = query.Where("occasion = ?", services.NormalizeTerm(value))
	}

	var total int64
	if err := query.Model(&models.ClothingItem{}).Count(&total).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch items"})
	}

	var items []models.ClothingItem
	if err := query.Order("created_at desc").Offset((page - 1) * pageSize).Limit(pageSize).Find(&items).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch items"})
	}

	processedResponses := controller.populatePresignedItemImages(c.Request().Context(), items)

	return c.JSON(http.StatusOK, echo.Map{
		"items":     processedResponses,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

func (controller *WardrobeController) getOwnedItem(c echo.Context) (*models.ClothingItem, error) {
	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return nil, echo.ErrUnauthorized
	}
	db := c.Get("__db").(*gorm.DB)
	var itemId uint
	if err := echo.PathParamsBinder(c).Uint("id", &itemId).BindError(); err != nil {
		return nil, echo.ErrBadRequest
	}
	var item models.ClothingItem
	r := db.Where("id = ? AND owner_id = ?", itemId, user.ID).Limit(1).Find(&item)
	if r.Error != nil {
		return nil, echo.ErrInternalServerError
	}
	if r.RowsAffected == 0 {
		return nil, echo.ErrNotFound
	}
	return &item, nil
}

func (controller *WardrobeController) GetItem(c echo.Context) error {
	item, err := controller.getOwnedItem(c)
	if err != nil {
		return err
	}
	responses := controller.populatePresignedItemImages(c.Request().Context(), []models.ClothingItem{*item})
	return c.JSON(http.StatusOK, responses[0])
}

func (controller *WardrobeController) UpdateItem(c echo.Context) error {
	item, err := controller.getOwnedItem(c)
	if err != nil {
		return err
	}
	var req models.ClothingItemUpdateIn
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	db := c.Get("__db").(*gorm.DB)

	if req.Name != nil {
		item.Name = *req.Name
	}
	if req.Description != nil {
		item.Description = req.Description
	}
	// manual corrections still have to land on the catalog vocabulary
	if req.Type != nil {
		matched, found := services.MatchClothingType(*req.Type)
		if !found {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("Unknown clothing type %q", *req.Type)})
		}
		item.Type = matched
	}
	if req.Color != nil {
		matched, found := services.MatchColor(*req.Color)
		if !found {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("Unknown color %q", *req.Color)})
		}
		item.Color = matched
	}
	if req.Season != nil {
		matched, found := services.MatchSeason(*req.Season)
		if !found {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("Unknown season %q", *req.Season)})
		}
		item.Season = matched
	}
	if req.Occasion != nil {
		matched, found := services.MatchOccasion(*req.Occasion)
		if !found {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("Unknown occasion %q", *req.Occasion)})
		}
		item.Occasion = matched
	}
	if err := db.Save(item).Error; err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Failed to update item, please try again"})
	}
	return c.JSON(http.StatusOK, itemToResponse(*item, nil))
}

func (controller *WardrobeController) DeleteItem(c echo.Context) error {
	item, err := controller.getOwnedItem(c)
	if err != nil {
		return err
	}
	db := c.Get("__db").(*gorm.DB)
	if err := db.Delete(item).Error; err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Failed to delete item, please try again"})
	}
	fmt.Println("Wardrobe item deleted, ID: ", item.ID)
	return c.JSON(http.StatusOK, echo.Map{"message": "deleted"})
}

func (controller *WardrobeController) ReAnalyzeItem(c echo.Context) error {
	item, err := controller.getOwnedItem(c)
	if err != nil {
		return err
	}
	db := c.Get("__db").(*gorm.DB)
	asynqClient, ok := c.Get("__asynqclient").(*asynq.Client)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Service is not available, please try again a bit later"})
	}
	if item.ProcessingStatus == "analyzing" {
		return c.JSON(http.StatusConflict, echo.Map{"message": "Item is already being analyzed"})
	}

	item.ProcessingStatus = "pending"
	item.ProcessRetryTimes = 0
	item.ProcessErrorMessage = nil
	item.Tags = pq.StringArray{}
	if err := db.Save(item).Error; err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Failed to update item status, please try again"})
	}
	task, err := tasks.NewAnalyzeClothingTask(item.ID)
	if err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Sorry, could not process item, please try again"})
	}
	info, err := asynqClient.Enqueue(task, asynq.MaxRetry(3), asynq.Queue("analyze"))
	if err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Sorry, could not process item, please try again"})
	}
	fmt.Println("[Queue] Re-analyze clothing task submitted, Item ID: ", item.ID, " Task ID: ", info.ID)
	return c.JSON(http.StatusOK, echo.Map{
		"message":           "queued",
		"processing_status": item.ProcessingStatus,
	})
}
