package controllers

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"stylewiseapi/models"
	"stylewiseapi/services"
	"stylewiseapi/tasks"

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

type MannequinGenerateIn struct {
	OutfitID uint `json:"outfit_id" validate:"required"`
}

type MannequinGenerationResponse struct {
	ID              uint     `json:"id"`
	OutfitID        uint     `json:"outfit_id"`
	Status          string   `json:"status"`
	PreviewImageUri *string  `json:"preview_image_uri,omitempty"`
	Duration        *float64 `json:"duration"`
	ErrorMessage    *string  `json:"error_message"`
	CreatedAt       string   `json:"created_at"`
}

type MannequinController struct {
	AWSService services.AWSServiceProvider
	URLCache   services.URLCacheServiceProvider
}

func (controller *MannequinController) MannequinRoutes(g *echo.Group) {
	g.POST("", controller.CreateGeneration)
	g.GET("", controller.ListGenerations)
	g.GET("/:id/status", controller.GenerationStatus)
	g.DELETE("/:id", controller.DeleteGeneration)
}

func generationToResponse(generation models.MannequinGeneration, uri *string) MannequinGenerationResponse {
	return MannequinGenerationResponse{
		ID:              generation.ID,
		OutfitID:        generation.GeneratedOutfitID,
		Status:          generation.Status,
		PreviewImageUri: uri,
		Duration:        generation.Duration,
		ErrorMessage:    generation.GenerationErrorMessage,
		CreatedAt:       generation.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

func (controller *MannequinController) CreateGeneration(c echo.Context) error {
	var req MannequinGenerateIn
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

	var outfit models.GeneratedOutfit
	r := db.Where("id = ? AND owner_id = ?", req.OutfitID, user.ID).Limit(1).Find(&outfit)
	if r.Error != nil {
		return echo.ErrInternalServerError
	}
	if r.RowsAffected == 0 {
		return echo.ErrNotFound
	}
	if outfit.MannequinImagePrompt == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "This look has no mannequin prompt to render"})
	}

	var inFlight int64
	if err := db.Model(&models.MannequinGeneration{}).Where("generated_outfit_id = ? AND status = ?", outfit.ID, "pending").Count(&inFlight).Error; err != nil {
		return echo.ErrInternalServerError
	}
	if inFlight > 0 {
		return c.JSON(http.StatusConflict, echo.Map{"message": "A preview is already being generated for this look"})
	}

	generation := models.MannequinGeneration{
		GeneratedOutfitID: outfit.ID,
		OwnerID:           user.ID,
		Status:            "pending",
	}
	if err := db.Create(&generation).Error; err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Failed to start generation, please try again"})
	}

	task, err := tasks.NewMannequinGenerationTask(generation.ID)
	if err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Sorry, could not start generation, please try again"})
	}
	info, err := asynqClient.Enqueue(task, asynq.MaxRetry(3), asynq.Queue("generate"))
	if err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Sorry, could not start generation, please try again"})
	}
	fmt.Println("[Queue] Mannequin generation task submitted, Generation ID: ", generation.ID, " Task ID: ", info.ID)

	return c.JSON(http.StatusCreated, generationToResponse(generation, nil))
}

func (controller *MannequinController) getOwnedGeneration(c echo.Context) (*models.MannequinGeneration, error) {
	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return nil, echo.ErrUnauthorized
	}
	db := c.Get("__db").(*gorm.DB)
	var generationId uint
	if err := echo.PathParamsBinder(c).Uint("id", &generationId).BindError(); err != nil {
		return nil, echo.ErrBadRequest
	}
	var generation models.MannequinGeneration
	r := db.Where("id = ? AND owner_id = ?", generationId, user.ID).Limit(1).Find(&generation)
	if r.Error != nil {
		return nil, echo.ErrInternalServerError
	}
	if r.RowsAffected == 0 {
		return nil, echo.ErrNotFound
	}
	return &generation, nil
}

func (controller *MannequinController) previewUri(ctx context.Context, generation *models.MannequinGeneration) *string {
	if generation.PreviewImageURL == nil || *generation.PreviewImageURL == "" {
		return nil
	}
	objectKey := *generation.PreviewImageURL
	url, err := controller.URLCache.GetReadURL(ctx, objectKey)
	if err != nil {
		log.Printf("CACHE WARNING: Cache system failed for key '%s': %v. Triggering manual R2 fallback.", objectKey, err)
		sentry.WithScope(func(scope *sentry.Scope) {
			scope.SetTag("failure_type", "cache_system")
			scope.SetExtra("objectKey", objectKey)
			sentry.CaptureException(err)
		})
		bucketName := services.GetEnv("R2_BUCKET_NAME", "")
		url, err = controller.AWSService.GetPresignedR2FileReadURL(ctx, bucketName, objectKey)
		if err != nil {
			log.Printf("CRITICAL: Manual R2 fallback also failed for key '%s': %v", objectKey, err)
			sentry.CaptureException(err)
			return nil
		}
	}
	return &url
}

func (controller *MannequinController) GenerationStatus(c echo.Context) error {
	generation, err := controller.getOwnedGeneration(c)
	if err != nil {
		return err
	}
	uri := controller.previewUri(c.Request().Context(), generation)
	return c.JSON(http.StatusOK, generationToResponse(*generation, uri))
}

func (controller *MannequinController) ListGenerations(c echo.Context) error {
	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	db := c.Get("__db").(*gorm.DB)

	var generations []models.MannequinGeneration
	if err := db.Where("owner_id = ?", user.ID).Order("created_at desc").Find(&generations).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch generations"})
	}
	responses := make([]MannequinGenerationResponse, 0, len(generations))
	for _, generation := range generations {
		uri := controller.previewUri(c.Request().Context(), &generation)
		responses = append(responses, generationToResponse(generation, uri))
	}
	return c.JSON(http.StatusOK, echo.Map{"generations": responses})
}

func (controller *MannequinController) DeleteGeneration(c echo.Context) error {
	generation, err := controller.getOwnedGeneration(c)
	if err != nil {
		return err
	}
	db := c.Get("__db").(*gorm.DB)
	if err := db.Delete(generation).Error; err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Failed to delete generation, please try again"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "deleted"})
}
