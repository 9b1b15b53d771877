package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"time"

	"stylewiseapi/models"
	"stylewiseapi/services"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/api/idtoken"
	"gorm.io/gorm"
)

// FakeUserPassword is the plain password every fake account is created with.
const FakeUserPassword = "sekret-password-1"

func JsonString(model interface{}) string {
	bytes, _ := json.Marshal(model)
	return string(bytes)
}

func NewJSONRequest(method string, target string, param interface{}) *http.Request {

	req := httptest.NewRequest(method, target, strings.NewReader(JsonString(param)))
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")
	return req
}

func GenerateUserToken(userPk string) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userPk,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour * 72)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	})
	t, err := token.SignedString([]byte(os.Getenv("JWT_SECRET")))
	if err != nil {
		log.Fatalf("Error when signing user token for %s. Error %s ", userPk, err)
	}
	return t
}

func NewJSONAuthRequest(method string, target string, userPk string, param interface{}) *http.Request {
	log.Println(JsonString(param))
	req := httptest.NewRequest(method, target, strings.NewReader(JsonString(param)))
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")
	token := GenerateUserToken(userPk)
	req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", token))
	return req
}

func NewJSONAuthRequestCustomAuth(method string, target string, authorizationString string, param interface{}) *http.Request {
	log.Println(JsonString(param))
	req := httptest.NewRequest(method, target, strings.NewReader(JsonString(param)))
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")
	req.Header.Add("Authorization", authorizationString)
	return req
}

func NewJSONAuthRequestRaw(method string, target string, userPk string, json string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(json))
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")
	token := GenerateUserToken(userPk)
	req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", token))
	return req
}

func Int64Pointer(i int64) *int64 {
	return &i
}

func NewRefString(data string) *string {
	return &data
}

func Contains(items []string, lookFor string) bool {

	for i := 0; i < len(items); i++ {

		if items[i] == lookFor {
			return true
		}
	}
	return false
}

func fakeAccount(db *gorm.DB, name string, email string, userType models.UserType) *models.UserAccount {
	hashed, _ := bcrypt.GenerateFromPassword([]byte(FakeUserPassword), bcrypt.DefaultCost)
	user := &models.UserAccount{
		Name:                 name,
		Email:                email,
		Password:             string(hashed),
		GoogleID:             "12232",
		Platform:             models.PlatformIOS,
		LastIp:               "123.122.122.122",
		Type:                 userType,
		Gender:               models.GenderFemale,
		MannequinPreference:  models.MannequinNeutral,
		ReceiveNotifications: true,
	}
	db.Create(&user)
	tokenDb := models.UserPushToken{
		UserAccountID: user.ID,
		Platform:      "android",
		Token:         "cX-UZ3zwQEiPt-2GJkG2gA:APA91bGqRflaGrJrnynhRwZ442HdgUjVcO7mWMFnx6IwAdJ9RRKopvSP4QU7hbvTmk1XAp8XGvtHZLvo5JmOPTVKBbGqqvhfbZWKlXA9csEjx1hgpNvrWepU-rqG1sxS8_WCF5cGZchf",
		Active:        true,
	}
	db.Save(&tokenDb)
	db.First(&user, user.ID)
	return user
}

func FakeUser(db *gorm.DB) *models.UserAccount {
	return fakeAccount(db, "OurName", "email@example.com", models.UserTypeUser)
}

func FakeUserV2(db *gorm.DB, userName string, email string) *models.UserAccount {
	if email == "" {
		email = "email@example.com"
	}
	return fakeAccount(db, userName, email, models.UserTypeUser)
}

func FakeStore(db *gorm.DB, storeName string, email string) *models.UserAccount {
	if email == "" {
		email = "store@example.com"
	}
	if storeName == "" {
		storeName = "My Store"
	}
	return fakeAccount(db, storeName, email, models.UserTypeStore)
}

// FakeClothingItem creates an already analyzed wardrobe item, skipping the
// queue round trip.
func FakeClothingItem(db *gorm.DB, ownerID uint, itemType string, clr string) *models.ClothingItem {
	confidence := 0.9
	item := &models.ClothingItem{
		OwnerID:          ownerID,
		Name:             fmt.Sprintf("My %s", itemType),
		ImageURL:         NewRefString(fmt.Sprintf("wardrobe/%d/%s.jpg", ownerID, itemType)),
		ImageStatus:      "uploaded",
		Type:             itemType,
		Color:            clr,
		Season:           "todas",
		Occasion:         "casual",
		Confidence:       &confidence,
		ProcessingStatus: "completed",
	}
	db.Create(&item)
	return item
}

type GoogleServiceMock struct{}

func (gsm GoogleServiceMock) ValidateIdToken(ctx context.Context, idToken string, audience string) (*idtoken.Payload, error) {

	return &idtoken.Payload{Issuer: "Issue", Audience: "AAA", Expires: 119919191919, IssuedAt: 12312321321, Subject: "fake@example.com", Claims: map[string]interface{}{
		"email":   "fake@example.com",
		"name":    "Fake Google User",
		"picture": "https://lh3.googleusercontent.com/pictureurl",
		"sub":     "123googleid",
	}}, nil

}

type AWSProviderMock struct {
	MockUrl string
}

func (awsService AWSProviderMock) InitPresignClient(ctx context.Context) error {
	return nil
}

func (awsService AWSProviderMock) PresignLink(ctx context.Context, bucketName string, fileName string) (string, error) {

	return fmt.Sprintf("https://fakebucketurl.com/%s", fileName), nil
}

func (awsService AWSProviderMock) GetPresignedR2FileReadURL(ctx context.Context, bucketName, fileKey string) (string, error) {
	return awsService.MockUrl, nil
}

func (awsService AWSProviderMock) UploadToPresignedURL(ctx context.Context, bucketName, url string, fileContent []byte) (string, int, error) {
	return url, 204, nil
}

type URLCacheMock struct {
	MockUrl string
}

func (cache URLCacheMock) GetReadURL(ctx context.Context, objectKey string) (string, error) {
	return cache.MockUrl, nil
}

// StylistLLMMock answers with canned payloads, overridable per test.
type StylistLLMMock struct {
	DescribeImageResponse string
	GenerateTextResponse  string
	GenerateTextErr       error
}

func (m StylistLLMMock) DescribeImage(imagePath string, prompt string, modelName services.LLMModelName, opts services.GenerateOptions) (*services.LLMResponse, error) {
	response := m.DescribeImageResponse
	if response == "" {
		response = `{
			"type": "camiseta",
			"color": "azul",
			"season": "verão",
			"occasion": "casual",
			"tags": ["básica", "algodão"],
			"confidence": 0.92,
			"reasoning": "Camiseta azul de corte reto, tecido leve."
		}`
	}
	return &services.LLMResponse{
		Response:           response,
		InputTokenCount:    10,
		TotalTokenCount:    11,
		ThoughtsTokenCount: 12,
		OutputTokenCount:   13,
	}, nil
}

func (m StylistLLMMock) GenerateText(prompt string, modelName services.LLMModelName, opts services.GenerateOptions) (*services.LLMResponse, error) {
	if m.GenerateTextErr != nil {
		return nil, m.GenerateTextErr
	}
	response := m.GenerateTextResponse
	if response == "" {
		response = `{
			"selectedItems": [
				{"id": 1, "type": "camiseta", "reason": "combina com a ocasião"},
				{"id": 2, "type": "calça", "reason": "base neutra"}
			],
			"reasoning": "Look casual equilibrado.",
			"styleNotes": "Use com tênis branco.",
			"mannequinImagePrompt": "Mannequin wearing blue t-shirt and jeans",
			"confidence": 0.88
		}`
	}
	return &services.LLMResponse{
		Response:           response,
		InputTokenCount:    10,
		TotalTokenCount:    11,
		ThoughtsTokenCount: 12,
		OutputTokenCount:   13,
	}, nil
}

func (m StylistLLMMock) GenerateImage(prompt string, modelName services.LLMModelName) (*services.LLMResponse, error) {
	return &services.LLMResponse{
		Response:         "",
		Images:           [][]byte{TinyPNG()},
		InputTokenCount:  10,
		OutputTokenCount: 13,
		TotalTokenCount:  23,
	}, nil
}

// TinyPNG encodes a small white square, enough to exercise the image pipeline.
func TinyPNG() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: 250, G: 250, B: 250, A: 255})
		}
	}
	var buf bytes.Buffer
	png.Encode(&buf, img)
	return buf.Bytes()
}
