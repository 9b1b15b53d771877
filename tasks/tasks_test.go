package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"stylewiseapi/dbhelper"
	"stylewiseapi/models"
	"stylewiseapi/test"

	"github.com/stretchr/testify/assert"
)

func stringPtr(s string) *string {
	return &s
}

func TestAnalyzeClothingTaskPayload(t *testing.T) {
	task, err := NewAnalyzeClothingTask(42)
	assert.NoError(t, err)
	assert.Equal(t, TypeAnalyzeClothing, task.Type())

	var payload AnalyzeClothingPayload
	err = json.Unmarshal(task.Payload(), &payload)
	assert.NoError(t, err)
	assert.Equal(t, uint(42), payload.ClothingItemID)
}

func TestMannequinGenerationTaskPayload(t *testing.T) {
	task, err := NewMannequinGenerationTask(7)
	assert.NoError(t, err)
	assert.Equal(t, TypeMannequinGeneration, task.Type())

	var payload MannequinGenerationPayload
	err = json.Unmarshal(task.Payload(), &payload)
	assert.NoError(t, err)
	assert.Equal(t, uint(7), payload.GenerationID)
}

func TestHandleAnalyzeClothingTask(t *testing.T) {
	fmt.Println("Starting TestHandleAnalyzeClothingTask")
	os.Setenv("GOOGLE_API_KEY", "test-key")
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()

	user := test.FakeUser(db)

	item := models.ClothingItem{
		OwnerID:          user.ID,
		Name:             "Camiseta favorita",
		ImageURL:         stringPtr(fmt.Sprintf("wardrobe/%d/tshirt.jpg", user.ID)),
		ImageStatus:      "draft",
		ProcessingStatus: "pending",
	}
	db.Create(&item)

	// large enough body to pass the image quality gate
	mockContent := make([]byte, 30*1024)
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write(mockContent)
	}))
	defer mockServer.Close()

	fakeTask, err := NewAnalyzeClothingTask(item.ID)
	if err != nil {
		t.Fatalf("Failed to create task: %v", err)
	}
	awsServiceMock := &test.AWSProviderMock{MockUrl: mockServer.URL}

	err = HandleAnalyzeClothingTask(context.Background(), fakeTask, db, test.StylistLLMMock{}, awsServiceMock, nil)
	assert.NoError(t, err)

	var updated models.ClothingItem
	err = db.First(&updated, item.ID).Error
	assert.NoError(t, err)
	assert.Equal(t, "completed", updated.ProcessingStatus)
	assert.Equal(t, "uploaded", updated.ImageStatus)
	assert.Equal(t, "camiseta", updated.Type)
	assert.Equal(t, "azul", updated.Color)
	assert.Equal(t, "verão", updated.Season)
	assert.Equal(t, "casual", updated.Occasion)
	assert.NotNil(t, updated.Confidence)
	assert.NotNil(t, updated.LLMModel)
	assert.Equal(t, int32(10), *updated.LLMInputTokenCount)
}

func TestHandleAnalyzeClothingTaskDownloadFailure(t *testing.T) {
	fmt.Println("Starting TestHandleAnalyzeClothingTaskDownloadFailure")
	os.Setenv("GOOGLE_API_KEY", "test-key")
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()

	user := test.FakeUser(db)

	item := models.ClothingItem{
		OwnerID:          user.ID,
		ImageURL:         stringPtr(fmt.Sprintf("wardrobe/%d/missing.jpg", user.ID)),
		ImageStatus:      "draft",
		ProcessingStatus: "pending",
	}
	db.Create(&item)

	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer mockServer.Close()

	fakeTask, err := NewAnalyzeClothingTask(item.ID)
	if err != nil {
		t.Fatalf("Failed to create task: %v", err)
	}
	awsServiceMock := &test.AWSProviderMock{MockUrl: mockServer.URL}

	err = HandleAnalyzeClothingTask(context.Background(), fakeTask, db, test.StylistLLMMock{}, awsServiceMock, nil)
	assert.Error(t, err)

	var updated models.ClothingItem
	db.First(&updated, item.ID)
	assert.Equal(t, 1, updated.ProcessRetryTimes)
	assert.NotNil(t, updated.ProcessErrorMessage)
}

func TestHandleMannequinGenerationTask(t *testing.T) {
	fmt.Println("Starting TestHandleMannequinGenerationTask")
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()

	user := test.FakeUser(db)

	outfit := models.GeneratedOutfit{
		OwnerID:              user.ID,
		SelectedItemsJSON:    `[{"id":1,"type":"camiseta","reason":"combina"}]`,
		Reasoning:            "Look casual",
		MannequinImagePrompt: "Mannequin wearing blue t-shirt and jeans",
		Confidence:           0.88,
	}
	db.Create(&outfit)

	generation := models.MannequinGeneration{
		GeneratedOutfitID: outfit.ID,
		OwnerID:           user.ID,
		Status:            "pending",
	}
	db.Create(&generation)

	fakeTask, err := NewMannequinGenerationTask(generation.ID)
	if err != nil {
		t.Fatalf("Failed to create task: %v", err)
	}
	awsServiceMock := &test.AWSProviderMock{}

	err = HandleMannequinGenerationTask(context.Background(), fakeTask, db, test.StylistLLMMock{}, awsServiceMock, nil)
	assert.NoError(t, err)

	var updated models.MannequinGeneration
	err = db.First(&updated, generation.ID).Error
	assert.NoError(t, err)
	assert.Equal(t, "completed", updated.Status)
	assert.NotNil(t, updated.PreviewImageURL)
	assert.NotNil(t, updated.Duration)
	assert.NotNil(t, updated.LLMModel)

	var updatedOutfit models.GeneratedOutfit
	db.First(&updatedOutfit, outfit.ID)
	assert.NotNil(t, updatedOutfit.MannequinImageURL)
	assert.Equal(t, *updated.PreviewImageURL, *updatedOutfit.MannequinImageURL)
}

func TestHandleMannequinGenerationTaskEmptyPrompt(t *testing.T) {
	fmt.Println("Starting TestHandleMannequinGenerationTaskEmptyPrompt")
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()

	user := test.FakeUser(db)

	outfit := models.GeneratedOutfit{
		OwnerID:           user.ID,
		SelectedItemsJSON: `[]`,
	}
	db.Create(&outfit)

	generation := models.MannequinGeneration{
		GeneratedOutfitID: outfit.ID,
		OwnerID:           user.ID,
		Status:            "pending",
	}
	db.Create(&generation)

	fakeTask, err := NewMannequinGenerationTask(generation.ID)
	if err != nil {
		t.Fatalf("Failed to create task: %v", err)
	}

	err = HandleMannequinGenerationTask(context.Background(), fakeTask, db, test.StylistLLMMock{}, &test.AWSProviderMock{}, nil)
	assert.NoError(t, err)

	var updated models.MannequinGeneration
	db.First(&updated, generation.ID)
	assert.Equal(t, "failed", updated.Status)
	assert.NotNil(t, updated.GenerationErrorMessage)
}
