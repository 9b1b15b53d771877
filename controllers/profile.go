package controllers

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"stylewiseapi/models"
	"stylewiseapi/services"

	"github.com/getsentry/sentry-go"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

type SetAvatarUploadFileRequest struct {
	FileName *string `json:"file_name" validate:"required,max=1000"`
}

type ProfileController struct {
	AWSService services.AWSServiceProvider
	URLCache   services.URLCacheServiceProvider
}

func (controller *ProfileController) ProfileRoutes(g *echo.Group) {
	g.GET("", func(c echo.Context) error {
		user := c.Get("currentUser").(models.UserAccount)
		var gender *string
		if user.Gender != "" {
			gender = StrPointer(string(user.Gender))
		}
		avatarUrl := user.AvatarURL
		if user.AvatarURL != nil && *user.AvatarURL != "" && !isExternalURL(*user.AvatarURL) {
			url, err := controller.URLCache.GetReadURL(c.Request().Context(), *user.AvatarURL)
			if err != nil {
				log.Printf("CACHE WARNING: Cache system failed for key '%s': %v", *user.AvatarURL, err)
				sentry.CaptureException(err)
			} else {
				avatarUrl = &url
			}
		}
		return c.JSON(http.StatusOK, echo.Map{
			"id":                    user.ID,
			"name":                  user.Name,
			"email":                 user.Email,
			"type":                  string(user.Type),
			"gender":                gender,
			"mannequin_preference":  string(user.MannequinPreference),
			"style":                 user.Style,
			"avatar_url":            avatarUrl,
			"receive_notifications": user.ReceiveNotifications,
		})
	})

	g.PUT("", func(c echo.Context) error {
		user := c.Get("currentUser").(models.UserAccount)
		db := c.Get("__db").(*gorm.DB)
		var updateIn = new(models.ProfileUpdateIn)
		if err := c.Bind(updateIn); err != nil {
			return err
		}
		if err := c.Validate(updateIn); err != nil {
			return err
		}
		if updateIn.Name != nil && *updateIn.Name != "" {
			user.Name = *updateIn.Name
		}
		if updateIn.Gender != nil {
			user.Gender = models.Gender(*updateIn.Gender)
		}
		if updateIn.MannequinPreference != nil {
			user.MannequinPreference = models.Mannequin(*updateIn.MannequinPreference)
		}
		if updateIn.Style != nil {
			user.Style = updateIn.Style
		}
		if updateIn.ReceiveNotifications != nil {
			user.ReceiveNotifications = *updateIn.ReceiveNotifications
		}
		if err := db.Save(&user).Error; err != nil {
			sentry.CaptureException(err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Failed to update profile, please try again"})
		}
		return c.JSON(http.StatusOK, echo.Map{
			"name":                  user.Name,
			"gender":                string(user.Gender),
			"mannequin_preference":  string(user.MannequinPreference),
			"style":                 user.Style,
			"receive_notifications": user.ReceiveNotifications,
		})
	})

	g.POST("/avatar", func(c echo.Context) error {
		user := c.Get("currentUser").(models.UserAccount)
		var req SetAvatarUploadFileRequest
		if err := c.Bind(&req); err != nil {
			fmt.Println(err)
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		}
		if err := c.Validate(req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		if !services.IsAllowedImageName(*req.FileName) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Only image uploads are supported"})
		}
		db := c.Get("__db").(*gorm.DB)

		var bucketName = services.GetEnv("R2_BUCKET_NAME", "")
		safeFileName := fmt.Sprintf("avatars/%v/%s", user.ID, *req.FileName)
		uploadUrl, presignErr := controller.AWSService.PresignLink(context.Background(), bucketName, safeFileName)
		if presignErr != nil {
			log.Printf("Unable to presign generate for avatar upload %s!, %s", user.Name, presignErr)
			return c.JSON(http.StatusInternalServerError, echo.Map{
				"message": "Error while uploading your avatar, please try again",
			})
		}
		user.AvatarURL = &safeFileName
		if err := db.Save(&user).Error; err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Failed to save your avatar"})
		}
		return c.JSON(http.StatusOK, map[string]string{"message": "Avatar is updated successfully", "upload_url": uploadUrl, "file_name": *req.FileName})
	})

	g.GET("/stats", func(c echo.Context) error {
		user := c.Get("currentUser").(models.UserAccount)
		db := c.Get("__db").(*gorm.DB)
		var clothingCount int64
		var outfitCount int64
		var mannequinCount int64
		var savedCount int64
		if err := db.Model(&models.ClothingItem{}).Where("owner_id = ?", user.ID).Count(&clothingCount).Error; err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Something went wrong"})
		}
		if err := db.Model(&models.GeneratedOutfit{}).Where("owner_id = ?", user.ID).Count(&outfitCount).Error; err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Something went wrong"})
		}
		if err := db.Model(&models.MannequinGeneration{}).Where("owner_id = ? AND status = ?", user.ID, "completed").Count(&mannequinCount).Error; err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Something went wrong"})
		}
		if err := db.Model(&models.FeedPostSave{}).Where("user_account_id = ?", user.ID).Count(&savedCount).Error; err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Something went wrong"})
		}
		return c.JSON(http.StatusOK, echo.Map{
			"clothing_count":   clothingCount,
			"outfit_count":     outfitCount,
			"mannequin_count":  mannequinCount,
			"saved_post_count": savedCount,
		})
	})
}
