package controllers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"stylewiseapi/models"
	"stylewiseapi/services"
	"time"

	firebase "firebase.google.com/go/v4"
	"github.com/getsentry/sentry-go"
	"github.com/golang-jwt/jwt/v4"
	echojwt "github.com/labstack/echo-jwt"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AuthController struct {
	Google      services.GoogleServiceProvider
	FirebaseApp *firebase.App
	AWSService  services.AWSServiceProvider
}

func (m *AuthController) AuthRoutes(g *echo.Group) {
	g.POST("/register", func(c echo.Context) error {
		registerIn := new(models.RegisterIn)
		if err := c.Bind(registerIn); err != nil {
			return err
		}
		if err := c.Validate(registerIn); err != nil {
			return err
		}
		db := c.Get("__db").(*gorm.DB)

		var existing models.UserAccount
		r := db.Where("email = ?", registerIn.Email).Limit(1).Find(&existing)
		if r.Error != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Internal server error"})
		}
		if r.RowsAffected > 0 {
			return c.JSON(http.StatusConflict, echo.Map{"message": "An account with this email already exists"})
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(registerIn.Password), bcrypt.DefaultCost)
		if err != nil {
			sentry.CaptureException(err)
			return echo.ErrInternalServerError
		}
		accountType := models.UserTypeUser
		if registerIn.Type != "" {
			accountType = models.UserType(registerIn.Type)
		}
		user := &models.UserAccount{
			Name:                registerIn.Name,
			Email:               registerIn.Email,
			Password:            string(hash),
			Type:                accountType,
			MannequinPreference: models.MannequinNeutral,
			Platform:            models.ScanPlatform(registerIn.Platform),
			LastIp:              c.RealIP(),
		}
		if err := db.Create(&user).Error; err != nil {
			sentry.CaptureException(err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Sorry, something wrong happened, please try again!"})
		}
		refreshToken, err := GenerateRefreshToken(fmt.Sprint(user.ID))
		if err != nil {
			fmt.Println(err)
			return echo.ErrInternalServerError
		}
		fmt.Println("User registered: ", user.Email, " type: ", user.Type)
		return c.JSON(http.StatusCreated, echo.Map{
			"id":            user.ID,
			"name":          user.Name,
			"email":         user.Email,
			"type":          string(user.Type),
			"new":           true,
			"access_token":  GenerateUserToken(fmt.Sprint(user.ID), c, 72),
			"refresh_token": refreshToken,
		})
	})

	g.POST("/login", func(c echo.Context) error {
		loginIn := new(models.LoginIn)
		if err := c.Bind(loginIn); err != nil {
			return err
		}
		if err := c.Validate(loginIn); err != nil {
			return err
		}
		db := c.Get("__db").(*gorm.DB)

		var user models.UserAccount
		r := db.Where("email = ?", loginIn.Email).Limit(1).Find(&user)
		if r.Error != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Internal server error"})
		}
		if r.RowsAffected == 0 || user.Password == "" {
			return c.JSON(http.StatusForbidden, echo.Map{"message": "Wrong email or password"})
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(loginIn.Password)); err != nil {
			return c.JSON(http.StatusForbidden, echo.Map{"message": "Wrong email or password"})
		}
		if user.Banned {
			return echo.ErrForbidden
		}
		user.LastIp = c.RealIP()
		db.Save(&user)
		refreshToken, err := GenerateRefreshToken(fmt.Sprint(user.ID))
		if err != nil {
			fmt.Println(err)
			return echo.ErrInternalServerError
		}
		return c.JSON(http.StatusOK, echo.Map{
			"id":            user.ID,
			"name":          user.Name,
			"email":         user.Email,
			"type":          string(user.Type),
			"new":           false,
			"access_token":  GenerateUserToken(fmt.Sprint(user.ID), c, 72),
			"refresh_token": refreshToken,
		})
	})

	g.POST("/google", func(c echo.Context) (err error) {
		googleCreds := new(models.GoogleAuthSignIn)
		if err := c.Bind(googleCreds); err != nil {
			return err
		}
		if !models.ValidatePlatformRaw(googleCreds.Platform) {
			return c.JSON(http.StatusForbidden, echo.Map{"message": "Please provide proper platform parameter"})
		}
		if err = c.Validate(googleCreds); err != nil {
			return err
		}
		payload, err := m.Google.ValidateIdToken(context.Background(), googleCreds.IdToken, os.Getenv("GOOGLE_CLIENT_ID"))
		if err != nil {
			fmt.Println(err)
			return c.JSON(http.StatusForbidden, echo.Map{"message": "Couldn't verify credentials"})
		}
		sub, ok := payload.Claims["sub"]
		if !ok {
			sentry.CaptureMessage(fmt.Sprintf("Error when fetching user data %s", payload.Claims))
			return c.JSON(http.StatusForbidden, echo.Map{"message": "Couldn't verify credentials"})
		}
		var googleId string = sub.(string)
		googleEmail, ok := payload.Claims["email"].(string)
		if !ok {
			sentry.CaptureMessage(fmt.Sprintf("Error when fetching user data email %s", payload.Claims))
			return c.JSON(http.StatusForbidden, echo.Map{"message": "Couldn't verify credentials"})
		}
		pictureUrl, _ := payload.Claims["picture"].(string)
		googleName, _ := payload.Claims["name"].(string)

		db := c.Get("__db").(*gorm.DB)
		var user *models.UserAccount
		isNew := false
		r := db.Where("google_id = ?", googleId).Limit(1).Find(&user)
		if r.Error != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Internal server error"})
		}
		if r.RowsAffected == 0 {
			r = db.Where("email = ?", googleEmail).Limit(1).Find(&user)
			if r.Error != nil {
				return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Internal server error"})
			}
			if r.RowsAffected > 0 {
				// existing email/password account, attach the google identity
				user.GoogleID = googleId
				if user.AvatarURL == nil && pictureUrl != "" {
					user.AvatarURL = &pictureUrl
				}
				user.LastIp = c.RealIP()
				user.Platform = models.ScanPlatform(googleCreds.Platform)
				db.Save(&user)
			} else {
				isNew = true
				user = &models.UserAccount{
					Name:                googleName,
					Email:               googleEmail,
					GoogleID:            googleId,
					Type:                models.UserTypeUser,
					MannequinPreference: models.MannequinNeutral,
					Platform:            models.ScanPlatform(googleCreds.Platform),
					LastIp:              c.RealIP(),
				}
				if pictureUrl != "" {
					user.AvatarURL = &pictureUrl
				}
				db.Create(&user)
			}
		}
		if user.Banned {
			return echo.ErrForbidden
		}
		refreshToken, err := GenerateRefreshToken(fmt.Sprint(user.ID))
		if err != nil {
			fmt.Println(err)
			return echo.ErrInternalServerError
		}
		fmt.Println("Google sign in: ", googleEmail, googleId, " new: ", isNew)
		return c.JSON(http.StatusOK, echo.Map{
			"id":            user.ID,
			"name":          user.Name,
			"email":         user.Email,
			"type":          string(user.Type),
			"avatar":        user.AvatarURL,
			"new":           isNew,
			"access_token":  GenerateUserToken(fmt.Sprint(user.ID), c, 72),
			"refresh_token": refreshToken,
		})
	})

	g.POST("/refresh-token", func(c echo.Context) error {
		type tokenReqBody struct {
			RefreshToken string `json:"refresh_token"`
		}
		tokenReq := new(tokenReqBody)

		if err := c.Bind(&tokenReq); err != nil {
			fmt.Println(err)
			return echo.ErrBadRequest
		}

		if tokenReq.RefreshToken == "" {
			fmt.Println("Refresh token is empty")
			return echo.ErrBadRequest
		}
		token, err := jwt.Parse(tokenReq.RefreshToken, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("Unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(os.Getenv("JWT_SECRET")), nil
		})
		if err != nil {
			fmt.Println(err)
			return echo.ErrBadRequest
		}
		if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
			db := c.Get("__db").(*gorm.DB)
			data, errConvert := claims["sub"].(string)
			if !errConvert {
				fmt.Println("Cannot convert sub to string!", err)
				return echo.ErrInternalServerError
			}
			userId, err := strconv.Atoi(data)
			if err != nil {
				fmt.Println("Error parsing sub of the user!!", err)
				return echo.ErrInternalServerError
			}
			if userId < 1 {
				fmt.Println("Refresh: sub is:", userId)
				return echo.ErrBadRequest
			}
			var user *models.UserAccount
			result := db.First(&user, userId)
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				fmt.Println("Requested user not found!", userId)
				if user == nil {
					return echo.ErrForbidden
				}
			}
			if result.Error != nil {
				fmt.Println("Error getting user while refreshing token", userId)
				return echo.ErrInternalServerError
			}
			if !user.Banned {
				t := GenerateUserToken(fmt.Sprint(userId), c, 72)
				rt, err := GenerateRefreshToken(fmt.Sprint(userId))
				if err != nil {
					fmt.Println("Error refreshing token ", err)
					return echo.ErrInternalServerError
				}
				return c.JSON(http.StatusOK, echo.Map{
					"access_token":  t,
					"refresh_token": rt,
				})
			}

			return echo.ErrUnauthorized
		}

		return err
	})

	g.GET("/me", func(c echo.Context) error {
		user := c.Get("currentUser").(models.UserAccount)
		db := c.Get("__db").(*gorm.DB)
		var clothingCount int64
		var outfitCount int64
		if err := db.Model(&models.ClothingItem{}).Where("owner_id = ?", user.ID).Count(&clothingCount).Error; err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Something went wrong"})
		}
		if err := db.Model(&models.GeneratedOutfit{}).Where("owner_id = ?", user.ID).Count(&outfitCount).Error; err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Something went wrong"})
		}
		var gender *string
		if user.Gender != "" {
			gender = StrPointer(string(user.Gender))
		}
		avatarUrl := user.AvatarURL
		if user.AvatarURL != nil && *user.AvatarURL != "" && !isExternalURL(*user.AvatarURL) {
			bucketName := services.GetEnv("R2_BUCKET_NAME", "")
			avatarR2URL, err := m.AWSService.GetPresignedR2FileReadURL(context.Background(), bucketName, *user.AvatarURL)
			if err != nil {
				log.Printf("CRITICAL: R2 avatar could not fetch for key '%s': %v", *user.AvatarURL, err)
				sentry.CaptureException(err)
			} else {
				avatarUrl = &avatarR2URL
			}
		}
		return c.JSON(http.StatusOK, models.UserMeInfoOut{
			Id:                   user.ID,
			Name:                 user.Name,
			Email:                user.Email,
			Type:                 string(user.Type),
			Gender:               gender,
			MannequinPreference:  string(user.MannequinPreference),
			Style:                user.Style,
			AvatarURL:            avatarUrl,
			ReceiveNotifications: user.ReceiveNotifications,
			ClothingCount:        clothingCount,
			OutfitCount:          outfitCount,
		})
	}, echojwt.JWT([]byte(os.Getenv("JWT_SECRET"))), UserMiddleware)

	g.POST("/register-push", func(c echo.Context) error {
		user := c.Get("currentUser").(models.UserAccount)
		db := c.Get("__db").(*gorm.DB)
		var tokenRequest = new(models.UserPushIn)

		if err := c.Bind(tokenRequest); err != nil {
			return err
		}

		if !models.ValidatePlatformRaw(string(tokenRequest.Platform)) {
			return c.JSON(http.StatusForbidden, echo.Map{"message": "Please provide proper platform parameter"})
		}
		var pushData models.UserPushToken = models.UserPushToken{
			Platform:      models.ScanPlatform(tokenRequest.Platform),
			Token:         tokenRequest.Token,
			UserAccountID: user.ID,
			Active:        true,
		}

		// same token/device can sign in to diff accs and still receive pushes.
		// we try to delete other session but we cannot errly on that
		result := db.Where("token = ? and user_account_id = ?", tokenRequest.Token, user.ID).FirstOrCreate(&pushData)
		if result.Error != nil {
			log.Println(result.Error)
			return echo.ErrInternalServerError
		}
		if result.RowsAffected >= 1 {
			fmt.Println("Token created for user ", user.ID, "Platform: ", tokenRequest.Platform)
		}
		fmt.Println("Push id ", pushData.ID, " Token ", pushData.Token, " Platform: ", pushData.Platform, "User ID:", pushData.UserAccountID)
		return c.JSON(http.StatusOK, echo.Map{
			"message": "registered",
			"push_id": pushData.ID,
		})
	}, echojwt.JWT([]byte(os.Getenv("JWT_SECRET"))), UserMiddleware)

	g.POST("/delete-push", func(c echo.Context) error {
		user := c.Get("currentUser").(models.UserAccount)
		db := c.Get("__db").(*gorm.DB)
		var tokenRequest = new(models.UserPushIn)

		if err := c.Bind(tokenRequest); err != nil {
			return err
		}

		if !models.ValidatePlatformRaw(string(tokenRequest.Platform)) {
			return c.JSON(http.StatusForbidden, echo.Map{"message": "Please provide proper platform parameter"})
		}

		result := db.Where("token = ? and user_account_id = ? and platform = ?", tokenRequest.Token, user.ID, tokenRequest.Platform).Delete(&models.UserPushToken{})
		if result.Error != nil {
			log.Println(result.Error)
			return echo.ErrInternalServerError
		}
		if result.RowsAffected >= 1 {
			fmt.Println("Token deleted for user ", user.ID, "Platform: ", tokenRequest.Platform)
		}
		return c.JSON(http.StatusOK, echo.Map{
			"message": "deleted",
			"deleted": result.RowsAffected > 0,
		})
	}, echojwt.JWT([]byte(os.Getenv("JWT_SECRET"))), UserMiddleware)

	g.POST("/logout", func(c echo.Context) error {
		user := c.Get("currentUser").(models.UserAccount)
		db := c.Get("__db").(*gorm.DB)
		var tokenRequest = new(models.UserPushIn)
		if err := c.Bind(tokenRequest); err != nil {
			return err
		}

		db.Where("user_account_id = ? and token = ?", user.ID, tokenRequest.Token).Delete(&models.UserPushToken{})

		return c.JSON(http.StatusOK, echo.Map{
			"message": "logged out",
		})
	}, echojwt.JWT([]byte(os.Getenv("JWT_SECRET"))), UserMiddleware)

	g.POST("/delete-account", func(c echo.Context) error {
		user := c.Get("currentUser").(models.UserAccount)
		db := c.Get("__db").(*gorm.DB)
		now := time.Now()
		user.ConfirmedDeleteDate = &now
		db.Save(&user)
		return c.JSON(http.StatusOK, echo.Map{
			"message": "delete scheduled",
		})
	}, echojwt.JWT([]byte(os.Getenv("JWT_SECRET"))), UserMiddleware)
}
