package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"stylewiseapi/dbhelper"
	"stylewiseapi/models"
	"stylewiseapi/test"

	"github.com/stretchr/testify/assert"
)

func TestCreateGenerationValidations(t *testing.T) {
	fmt.Println("Starting TestCreateGenerationValidations")
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, nil, test.URLCacheMock{}, test.StylistLLMMock{})

	user := test.FakeUser(db)
	other := test.FakeUserV2(db, "Other", "other@example.com")

	promptless := models.GeneratedOutfit{OwnerID: user.ID, SelectedItemsJSON: "[]"}
	db.Create(&promptless)

	// unknown look
	req := test.NewJSONAuthRequest("POST", "/mannequin", fmt.Sprint(user.ID), MannequinGenerateIn{OutfitID: 999999})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// someone else's look
	req = test.NewJSONAuthRequest("POST", "/mannequin", fmt.Sprint(other.ID), MannequinGenerateIn{OutfitID: promptless.ID})
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// look without a prompt cannot be rendered
	req = test.NewJSONAuthRequest("POST", "/mannequin", fmt.Sprint(user.ID), MannequinGenerateIn{OutfitID: promptless.ID})
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// pending generation blocks a second submission
	outfit := models.GeneratedOutfit{OwnerID: user.ID, SelectedItemsJSON: "[]", MannequinImagePrompt: "Mannequin wearing a look"}
	db.Create(&outfit)
	db.Create(&models.MannequinGeneration{GeneratedOutfitID: outfit.ID, OwnerID: user.ID, Status: "pending"})

	req = test.NewJSONAuthRequest("POST", "/mannequin", fmt.Sprint(user.ID), MannequinGenerateIn{OutfitID: outfit.ID})
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGenerationStatusAndList(t *testing.T) {
	fmt.Println("Starting TestGenerationStatusAndList")
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, nil,
		test.URLCacheMock{MockUrl: "https://cached.example.com/preview"}, test.StylistLLMMock{})

	user := test.FakeUser(db)

	outfit := models.GeneratedOutfit{OwnerID: user.ID, SelectedItemsJSON: "[]", MannequinImagePrompt: "Mannequin wearing a look"}
	db.Create(&outfit)

	duration := 4.2
	previewKey := fmt.Sprintf("mannequins/%d/generation-1.png", user.ID)
	done := models.MannequinGeneration{
		GeneratedOutfitID: outfit.ID,
		OwnerID:           user.ID,
		Status:            "completed",
		PreviewImageURL:   &previewKey,
		Duration:          &duration,
	}
	db.Create(&done)
	pending := models.MannequinGeneration{GeneratedOutfitID: outfit.ID, OwnerID: user.ID, Status: "pending"}
	db.Create(&pending)

	req := test.NewJSONAuthRequest("GET", fmt.Sprintf("/mannequin/%d/status", done.ID), fmt.Sprint(user.ID), nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	var status MannequinGenerationResponse
	json.Unmarshal(rec.Body.Bytes(), &status)
	assert.Equal(t, "completed", status.Status)
	assert.Equal(t, outfit.ID, status.OutfitID)
	assert.Equal(t, "https://cached.example.com/preview", *status.PreviewImageUri)
	assert.Equal(t, 4.2, *status.Duration)

	req = test.NewJSONAuthRequest("GET", "/mannequin", fmt.Sprint(user.ID), nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	var listBody struct {
		Generations []MannequinGenerationResponse `json:"generations"`
	}
	json.Unmarshal(rec.Body.Bytes(), &listBody)
	assert.Len(t, listBody.Generations, 2)

	req = test.NewJSONAuthRequest("DELETE", fmt.Sprintf("/mannequin/%d", pending.ID), fmt.Sprint(user.ID), nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	var count int64
	db.Model(&models.MannequinGeneration{}).Where("id = ?", pending.ID).Count(&count)
	assert.Equal(t, int64(0), count)
}
