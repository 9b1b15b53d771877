package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"stylewiseapi/models"
	"stylewiseapi/services"

	firebase "firebase.google.com/go/v4"
	"github.com/getsentry/sentry-go"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

type OutfitResponse struct {
	ID                   uint                     `json:"id"`
	SelectedItems        []services.SelectedPiece `json:"selected_items"`
	Reasoning            string                   `json:"reasoning"`
	StyleNotes           string                   `json:"style_notes"`
	MannequinImagePrompt string                   `json:"mannequin_image_prompt"`
	Confidence           float64                  `json:"confidence"`
	Fallback             bool                     `json:"fallback"`
	MannequinImageUri    *string                  `json:"mannequin_image_uri,omitempty"`
	CreatedAt            string                   `json:"created_at"`
}

type OutfitDetailResponse struct {
	OutfitResponse
	Items []ClothingItemResponse `json:"items"`
}

type BuilderController struct {
	LLM         services.StylistLLMProvider
	AWSService  services.AWSServiceProvider
	URLCache    services.URLCacheServiceProvider
	FirebaseApp *firebase.App
}

func (controller *BuilderController) BuilderRoutes(g *echo.Group) {
	g.POST("/generate", controller.GenerateOutfit)
	g.GET("/outfits", controller.ListOutfits)
	g.GET("/outfits/:id", controller.GetOutfit)
}

func outfitToResponse(outfit models.GeneratedOutfit, uri *string) OutfitResponse {
	var selected []services.SelectedPiece
	if err := json.Unmarshal([]byte(outfit.SelectedItemsJSON), &selected); err != nil {
		fmt.Printf("[Outfit: %v] stored selected items are unreadable: %v\n", outfit.ID, err)
		selected = []services.SelectedPiece{}
	}
	return OutfitResponse{
		ID:                   outfit.ID,
		SelectedItems:        selected,
		Reasoning:            outfit.Reasoning,
		StyleNotes:           outfit.StyleNotes,
		MannequinImagePrompt: outfit.MannequinImagePrompt,
		Confidence:           outfit.Confidence,
		Fallback:             outfit.Fallback,
		MannequinImageUri:    uri,
		CreatedAt:            outfit.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

func (controller *BuilderController) GenerateOutfit(c echo.Context) error {
	var req models.OutfitGenerateIn
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

	var items []models.ClothingItem
	if err := db.Where("owner_id = ? AND processing_status = ?", user.ID, "completed").Find(&items).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch wardrobe"})
	}
	wardrobe := make([]services.WardrobePiece, 0, len(items))
	for _, item := range items {
		wardrobe = append(wardrobe, services.WardrobePiece{
			ID:       item.ID,
			Type:     item.Type,
			Color:    item.Color,
			Season:   item.Season,
			Occasion: item.Occasion,
			Tags:     item.Tags,
		})
	}

	prefs := services.OutfitPreferences{
		Occasion:            req.Occasion,
		Weather:             req.Weather,
		Season:              req.Season,
		Style:               req.Style,
		Colors:              req.Colors,
		ExcludeItems:        req.ExcludeItems,
		MannequinPreference: string(user.MannequinPreference),
	}
	if prefs.Style == nil {
		prefs.Style = user.Style
	}

	builder := services.OutfitBuilder{
		LLM:       controller.LLM,
		ModelName: services.Flash25,
		Rand:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	suggestion, usage, err := builder.Generate(wardrobe, prefs)
	if err != nil {
		var validationErr *services.ValidationError
		if errors.As(err, &validationErr) {
			return c.JSON(http.StatusBadRequest, echo.Map{"message": validationErr.Message})
		}
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Sorry, could not generate a look, please try again"})
	}
	fmt.Printf("[Outfit] User: %v fallback: %v IT: %d, OT: %d, TT: %d\n", user.ID, suggestion.Fallback, usage.InputTokenCount, usage.OutputTokenCount, usage.TotalTokenCount)

	selectedJSON, err := json.Marshal(suggestion.SelectedItems)
	if err != nil {
		sentry.CaptureException(err)
		return echo.ErrInternalServerError
	}
	prefsJSON, err := json.Marshal(prefs)
	if err != nil {
		sentry.CaptureException(err)
		return echo.ErrInternalServerError
	}
	outfit := models.GeneratedOutfit{
		OwnerID:              user.ID,
		SelectedItemsJSON:    string(selectedJSON),
		Reasoning:            suggestion.Reasoning,
		StyleNotes:           suggestion.StyleNotes,
		MannequinImagePrompt: suggestion.MannequinImagePrompt,
		Confidence:           suggestion.Confidence,
		InputPreferencesJSON: string(prefsJSON),
		Fallback:             suggestion.Fallback,
	}
	if err := db.Create(&outfit).Error; err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Failed to save your look, please try again"})
	}

	return c.JSON(http.StatusCreated, outfitToResponse(outfit, nil))
}

// populatePresignedOutfitImages resolves mannequin preview URLs concurrently
// through the cache, with a direct R2 fallback when the cache itself breaks.
func (controller *BuilderController) populatePresignedOutfitImages(ctx context.Context, outfits []models.GeneratedOutfit) []OutfitResponse {
	if len(outfits) == 0 {
		return []OutfitResponse{}
	}

	var wg sync.WaitGroup
	processedResponses := make([]OutfitResponse, len(outfits))
	bucketName := services.GetEnv("R2_BUCKET_NAME", "")

	for i, outfitModel := range outfits {
		wg.Add(1)
		go func(index int, outfit models.GeneratedOutfit) {
			defer wg.Done()

			var imageUrl string
			if outfit.MannequinImageURL != nil && *outfit.MannequinImageURL != "" {
				objectKey := *outfit.MannequinImageURL

				url, err := controller.URLCache.GetReadURL(ctx, objectKey)
				if err == nil {
					imageUrl = url
				} else {
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
					} else {
						imageUrl = fallbackUrl
					}
				}
			}
			var uri *string
			if imageUrl != "" {
				uri = &imageUrl
			}
			processedResponses[index] = outfitToResponse(outfit, uri)
		}(i, outfitModel)
	}

	wg.Wait()
	return processedResponses
}

func (controller *BuilderController) ListOutfits(c echo.Context) error {
	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}

	page := 1
	pageSize := 20
	echo.QueryParamsBinder(c).Int("page", &page).Int("page_size", &pageSize)
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	var total int64
	if err := db.Model(&models.GeneratedOutfit{}).Where("owner_id = ?", user.ID).Count(&total).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch looks"})
	}
	var outfits []models.GeneratedOutfit
	if err := db.Where("owner_id = ?", user.ID).Order("created_at desc").Offset((page - 1) * pageSize).Limit(pageSize).Find(&outfits).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch looks"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"outfits":   controller.populatePresignedOutfitImages(c.Request().Context(), outfits),
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

func (controller *BuilderController) GetOutfit(c echo.Context) error {
	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	db := c.Get("__db").(*gorm.DB)
	var outfitId uint
	if err := echo.PathParamsBinder(c).Uint("id", &outfitId).BindError(); err != nil {
		return echo.ErrBadRequest
	}
	var outfit models.GeneratedOutfit
	r := db.Where("id = ? AND owner_id = ?", outfitId, user.ID).Limit(1).Find(&outfit)
	if r.Error != nil {
		return echo.ErrInternalServerError
	}
	if r.RowsAffected == 0 {
		return echo.ErrNotFound
	}

	responses := controller.populatePresignedOutfitImages(c.Request().Context(), []models.GeneratedOutfit{outfit})
	detail := OutfitDetailResponse{OutfitResponse: responses[0], Items: []ClothingItemResponse{}}

	ids := make([]uint, 0, len(detail.SelectedItems))
	for _, piece := range detail.SelectedItems {
		ids = append(ids, piece.ID)
	}
	if len(ids) > 0 {
		var items []models.ClothingItem
		if err := db.Where("owner_id = ? AND id IN ?", user.ID, ids).Find(&items).Error; err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch look items"})
		}
		wardrobe := WardrobeController{AWSService: controller.AWSService, URLCache: controller.URLCache}
		detail.Items = wardrobe.populatePresignedItemImages(c.Request().Context(), items)
	}

	return c.JSON(http.StatusOK, detail)
}
