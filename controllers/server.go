package controllers

import (
	"context"
	"log"
	"net/http"
	"os"
	"stylewiseapi/models"
	"stylewiseapi/services"

	firebase "firebase.google.com/go/v4"
	"github.com/go-playground/validator"
	"github.com/hibiken/asynq"
	echojwt "github.com/labstack/echo-jwt"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"gorm.io/gorm"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		// Optionally, you could return the error to give each route more control over the status code
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func SetupServer(
	db *gorm.DB,
	googleService services.GoogleServiceProvider,
	awsService services.AWSServiceProvider,
	firebaseApp *firebase.App,
	asynqClient *asynq.Client,
	asynqInspector *asynq.Inspector,
	urlCache services.URLCacheServiceProvider,
	llm services.StylistLLMProvider,
) *echo.Echo {

	err := awsService.InitPresignClient(context.Background())
	if err != nil {
		log.Fatal("Failed to initialize AWS provider: S3")
	}

	e := echo.New()
	v := validator.New()
	v.RegisterValidation("platform", models.ValidatePlatform)
	v.RegisterValidation("usertype", models.ValidateUserType)
	v.RegisterValidation("gender", models.ValidateGender)
	v.RegisterValidation("mannequin", models.ValidateMannequin)
	e.Validator = &CustomValidator{validator: v}
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set("__db", db)
			c.Set("__asynqclient", asynqClient)
			c.Set("__asynqinspector", asynqInspector)
			return next(c)
		}
	})

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))

	jwtSecret := []byte(os.Getenv("JWT_SECRET"))

	authController := AuthController{Google: googleService, FirebaseApp: firebaseApp, AWSService: awsService}
	authGroup := e.Group("auth")
	authController.AuthRoutes(authGroup)

	profileController := ProfileController{AWSService: awsService, URLCache: urlCache}
	profileGroup := e.Group("profile", echojwt.JWT(jwtSecret), UserMiddleware)
	profileController.ProfileRoutes(profileGroup)

	wardrobeController := WardrobeController{AWSService: awsService, FirebaseApp: firebaseApp, URLCache: urlCache, LLM: llm}
	wardrobeGroup := e.Group("wardrobe", echojwt.JWT(jwtSecret), UserMiddleware)
	wardrobeController.WardrobeRoutes(wardrobeGroup)

	builderController := BuilderController{LLM: llm, AWSService: awsService, URLCache: urlCache, FirebaseApp: firebaseApp}
	builderGroup := e.Group("builder", echojwt.JWT(jwtSecret), UserMiddleware)
	builderController.BuilderRoutes(builderGroup)

	mannequinController := MannequinController{AWSService: awsService, URLCache: urlCache}
	mannequinGroup := e.Group("mannequin", echojwt.JWT(jwtSecret), UserMiddleware)
	mannequinController.MannequinRoutes(mannequinGroup)

	feedController := FeedController{AWSService: awsService, URLCache: urlCache}
	feedGroup := e.Group("feed", echojwt.JWT(jwtSecret), UserMiddleware)
	feedController.FeedRoutes(feedGroup)

	return e
}
