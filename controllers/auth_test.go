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

func TestRegisterAndLogin(t *testing.T) {
	fmt.Println("Starting TestRegisterAndLogin")
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, nil, test.URLCacheMock{}, test.StylistLLMMock{})

	req := test.NewJSONRequest("POST", "/auth/register", models.RegisterIn{
		Name:     "Maria",
		Email:    "maria@example.com",
		Password: "long-enough-password",
		Platform: "android",
	})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code)

	var registered map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &registered)
	assert.Equal(t, "Maria", registered["name"])
	assert.Equal(t, "USER", registered["type"])
	assert.Equal(t, true, registered["new"])
	assert.NotEmpty(t, registered["access_token"])
	assert.NotEmpty(t, registered["refresh_token"])

	// same email again
	req = test.NewJSONRequest("POST", "/auth/register", models.RegisterIn{
		Name:     "Maria",
		Email:    "maria@example.com",
		Password: "long-enough-password",
	})
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)

	req = test.NewJSONRequest("POST", "/auth/login", models.LoginIn{
		Email:    "maria@example.com",
		Password: "long-enough-password",
	})
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	var loggedIn map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &loggedIn)
	assert.Equal(t, false, loggedIn["new"])
	assert.NotEmpty(t, loggedIn["access_token"])

	req = test.NewJSONRequest("POST", "/auth/login", models.LoginIn{
		Email:    "maria@example.com",
		Password: "not-the-password",
	})
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRegisterStoreAccount(t *testing.T) {
	fmt.Println("Starting TestRegisterStoreAccount")
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, nil, test.URLCacheMock{}, test.StylistLLMMock{})

	req := test.NewJSONRequest("POST", "/auth/register", models.RegisterIn{
		Name:     "Loja Bonita",
		Email:    "loja@example.com",
		Password: "long-enough-password",
		Type:     "STORE",
	})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code)

	var registered map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &registered)
	assert.Equal(t, "STORE", registered["type"])
}

func TestGoogleSignIn(t *testing.T) {
	fmt.Println("Starting TestGoogleSignIn")
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, nil, test.URLCacheMock{}, test.StylistLLMMock{})

	req := test.NewJSONRequest("POST", "/auth/google", models.GoogleAuthSignIn{
		IdToken:  "fake-google-token",
		Platform: "ios",
	})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var first map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &first)
	assert.Equal(t, true, first["new"])
	assert.Equal(t, "fake@example.com", first["email"])
	assert.NotEmpty(t, first["access_token"])

	// second sign in finds the same account
	req = test.NewJSONRequest("POST", "/auth/google", models.GoogleAuthSignIn{
		IdToken:  "fake-google-token",
		Platform: "ios",
	})
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	var second map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &second)
	assert.Equal(t, false, second["new"])
	assert.Equal(t, first["id"], second["id"])

	var userCount int64
	db.Model(&models.UserAccount{}).Count(&userCount)
	assert.Equal(t, int64(1), userCount)
}

func TestMe(t *testing.T) {
	fmt.Println("Starting TestMe")
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, nil, test.URLCacheMock{}, test.StylistLLMMock{})

	user := test.FakeUser(db)
	test.FakeClothingItem(db, user.ID, "camiseta", "azul")
	test.FakeClothingItem(db, user.ID, "calça", "preto")

	req := test.NewJSONAuthRequest("GET", "/auth/me", fmt.Sprint(user.ID), nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var me models.UserMeInfoOut
	json.Unmarshal(rec.Body.Bytes(), &me)
	assert.Equal(t, user.ID, me.Id)
	assert.Equal(t, user.Email, me.Email)
	assert.Equal(t, "USER", me.Type)
	assert.Equal(t, "Neutral", me.MannequinPreference)
	assert.Equal(t, int64(2), me.ClothingCount)
	assert.Equal(t, int64(0), me.OutfitCount)
}

func TestMeUnauthorized(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, nil, test.URLCacheMock{}, test.StylistLLMMock{})

	req := test.NewJSONRequest("GET", "/auth/me", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterAndDeletePush(t *testing.T) {
	fmt.Println("Starting TestRegisterAndDeletePush")
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, nil, test.URLCacheMock{}, test.StylistLLMMock{})

	user := test.FakeUser(db)

	req := test.NewJSONAuthRequest("POST", "/auth/register-push", fmt.Sprint(user.ID), models.UserPushIn{
		Token:    "device-token-abc",
		Platform: "android",
	})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var tokenCount int64
	db.Model(&models.UserPushToken{}).Where("user_account_id = ? AND token = ?", user.ID, "device-token-abc").Count(&tokenCount)
	assert.Equal(t, int64(1), tokenCount)

	// registering the same token twice stays idempotent
	req = test.NewJSONAuthRequest("POST", "/auth/register-push", fmt.Sprint(user.ID), models.UserPushIn{
		Token:    "device-token-abc",
		Platform: "android",
	})
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	db.Model(&models.UserPushToken{}).Where("user_account_id = ? AND token = ?", user.ID, "device-token-abc").Count(&tokenCount)
	assert.Equal(t, int64(1), tokenCount)

	req = test.NewJSONAuthRequest("POST", "/auth/delete-push", fmt.Sprint(user.ID), models.UserPushIn{
		Token:    "device-token-abc",
		Platform: "android",
	})
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	var deleted map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &deleted)
	assert.Equal(t, true, deleted["deleted"])
}

func TestDeleteAccountSchedules(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, nil, test.URLCacheMock{}, test.StylistLLMMock{})

	user := test.FakeUser(db)

	req := test.NewJSONAuthRequest("POST", "/auth/delete-account", fmt.Sprint(user.ID), nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var updated models.UserAccount
	db.First(&updated, user.ID)
	assert.NotNil(t, updated.ConfirmedDeleteDate)
}
