package controllers

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"stylewiseapi/dbhelper"
	"stylewiseapi/models"
	"stylewiseapi/services"
	"stylewiseapi/test"

	"github.com/stretchr/testify/assert"
)

func TestListWardrobeItems(t *testing.T) {
	fmt.Println("Starting TestListWardrobeItems")
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, nil,
		test.URLCacheMock{MockUrl: "https://cached.example.com/read"}, test.StylistLLMMock{})

	user := test.FakeUser(db)
	other := test.FakeUserV2(db, "Other", "other@example.com")
	test.FakeClothingItem(db, user.ID, "camiseta", "azul")
	test.FakeClothingItem(db, user.ID, "calça", "preto")
	test.FakeClothingItem(db, other.ID, "vestido", "vermelho")

	req := test.NewJSONAuthRequest("GET", "/wardrobe", fmt.Sprint(user.ID), nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Items    []ClothingItemResponse `json:"items"`
		Total    int64                  `json:"total"`
		Page     int                    `json:"page"`
		PageSize int                    `json:"page_size"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	assert.Equal(t, int64(2), body.Total)
	assert.Len(t, body.Items, 2)
	for _, item := range body.Items {
		assert.Equal(t, "https://cached.example.com/read", *item.Uri)
	}

	// filter by type
	req = test.NewJSONAuthRequest("GET", "/wardrobe?type=camiseta", fmt.Sprint(user.ID), nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	json.Unmarshal(rec.Body.Bytes(), &body)
	assert.Equal(t, int64(1), body.Total)
	assert.Equal(t, "camiseta", body.Items[0].Type)
}

func TestGetWardrobeItemOwnership(t *testing.T) {
	fmt.Println("Starting TestGetWardrobeItemOwnership")
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, nil, test.URLCacheMock{}, test.StylistLLMMock{})

	user := test.FakeUser(db)
	other := test.FakeUserV2(db, "Other", "other@example.com")
	item := test.FakeClothingItem(db, user.ID, "camiseta", "azul")

	req := test.NewJSONAuthRequest("GET", fmt.Sprintf("/wardrobe/%d", item.ID), fmt.Sprint(user.ID), nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var response ClothingItemResponse
	json.Unmarshal(rec.Body.Bytes(), &response)
	assert.Equal(t, item.ID, response.ID)
	assert.Equal(t, "camiseta", response.Type)

	// someone else's item is a 404, not a 403
	req = test.NewJSONAuthRequest("GET", fmt.Sprintf("/wardrobe/%d", item.ID), fmt.Sprint(other.ID), nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateWardrobeItem(t *testing.T) {
	fmt.Println("Starting TestUpdateWardrobeItem")
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, nil, test.URLCacheMock{}, test.StylistLLMMock{})

	user := test.FakeUser(db)
	item := test.FakeClothingItem(db, user.ID, "camiseta", "azul")

	req := test.NewJSONAuthRequest("PUT", fmt.Sprintf("/wardrobe/%d", item.ID), fmt.Sprint(user.ID), models.ClothingItemUpdateIn{
		Name:  test.NewRefString("Camisa social"),
		Type:  test.NewRefString("camisa"),
		Color: test.NewRefString("branco"),
	})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var updated models.ClothingItem
	db.First(&updated, item.ID)
	assert.Equal(t, "Camisa social", updated.Name)
	assert.Equal(t, "camisa", updated.Type)
	assert.Equal(t, "branco", updated.Color)

	// off vocabulary correction is rejected
	req = test.NewJSONAuthRequest("PUT", fmt.Sprintf("/wardrobe/%d", item.ID), fmt.Sprint(user.ID), models.ClothingItemUpdateIn{
		Type: test.NewRefString("spacesuit"),
	})
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteWardrobeItem(t *testing.T) {
	fmt.Println("Starting TestDeleteWardrobeItem")
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, nil, test.URLCacheMock{}, test.StylistLLMMock{})

	user := test.FakeUser(db)
	item := test.FakeClothingItem(db, user.ID, "camiseta", "azul")

	req := test.NewJSONAuthRequest("DELETE", fmt.Sprintf("/wardrobe/%d", item.ID), fmt.Sprint(user.ID), nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var count int64
	db.Model(&models.ClothingItem{}).Where("id = ?", item.ID).Count(&count)
	assert.Equal(t, int64(0), count)

	req = test.NewJSONAuthRequest("DELETE", fmt.Sprintf("/wardrobe/%d", item.ID), fmt.Sprint(user.ID), nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAnalyzeInline(t *testing.T) {
	fmt.Println("Starting TestAnalyzeInline")
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, nil, test.URLCacheMock{}, test.StylistLLMMock{})

	user := test.FakeUser(db)

	// payload large enough to pass the quality gate
	imageBase64 := base64.StdEncoding.EncodeToString(make([]byte, 30*1024))
	req := test.NewJSONAuthRequest("POST", "/wardrobe/analyze", fmt.Sprint(user.ID), AnalyzeInlineIn{
		ImageBase64: imageBase64,
		FileName:    "photo.jpg",
		Name:        test.NewRefString("Camiseta azul"),
	})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var analysis services.ClothingAnalysis
	json.Unmarshal(rec.Body.Bytes(), &analysis)
	assert.Equal(t, "camiseta", analysis.Type)
	assert.Equal(t, "azul", analysis.Color)
	assert.GreaterOrEqual(t, analysis.Confidence, 0.7)
}

func TestAnalyzeInlineRejectsBadInput(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, nil, test.URLCacheMock{}, test.StylistLLMMock{})

	user := test.FakeUser(db)

	req := test.NewJSONAuthRequest("POST", "/wardrobe/analyze", fmt.Sprint(user.ID), AnalyzeInlineIn{
		ImageBase64: base64.StdEncoding.EncodeToString([]byte("tiny")),
		FileName:    "document.pdf",
	})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = test.NewJSONAuthRequest("POST", "/wardrobe/analyze", fmt.Sprint(user.ID), AnalyzeInlineIn{
		ImageBase64: "not-base64!!",
		FileName:    "photo.jpg",
	})
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
