package controllers

import (
	"fmt"
	"log"
	"net/http"
	"stylewiseapi/models"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

func UserMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		db := c.Get("__db").(*gorm.DB)
		userRaw := c.Get("user")
		if userRaw == nil {
			return echo.ErrUnauthorized
		}
		user := userRaw.(*jwt.Token)
		claims := user.Claims.(jwt.MapClaims)
		userId := claims["sub"]
		if userId == nil || userId == "" {
			log.Println("Error while getting the token information!")
			return echo.ErrUnauthorized
		}

		var currentUser models.UserAccount
		r := db.Limit(1).Find(&currentUser, "id = ?", userId)
		if r.Error != nil {
			fmt.Println("Failed to fetch account info", r.Error)
			return echo.ErrInternalServerError
		}
		if r.RowsAffected == 0 {
			return echo.ErrUnauthorized
		}
		if currentUser.Banned {
			return echo.NewHTTPError(http.StatusLocked)
		}
		c.Set("currentUser", currentUser)
		fmt.Printf("Fetched user %s \n", currentUser.Name)
		return next(c)
	}
}

// StoreOnlyMiddleware runs after UserMiddleware and gates routes that
// only store accounts may access, e.g. posting to the feed.
func StoreOnlyMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, ok := c.Get("currentUser").(models.UserAccount)
		if !ok {
			return echo.ErrUnauthorized
		}
		if user.Type != models.UserTypeStore {
			return c.JSON(http.StatusForbidden, echo.Map{"message": "Only store accounts can do this"})
		}
		return next(c)
	}
}
