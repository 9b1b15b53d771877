package models

type RegisterIn struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Type     string `json:"type" validate:"omitempty,usertype"`
	Platform string `json:"platform" validate:"omitempty,platform"`
}

type LoginIn struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type GoogleAuthSignIn struct {
	IdToken  string `json:"idToken" validate:"required"`
	Platform string `json:"platform" validate:"required,platform"`
}

type AuthOut struct {
	Id          uint   `json:"id"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	New         bool   `json:"new"`
	AccessToken string `json:"access_token"`
}

type UserMeInfoOut struct {
	Id                   uint    `json:"id"`
	Name                 string  `json:"name"`
	Email                string  `json:"email"`
	Type                 string  `json:"type"`
	Gender               *string `json:"gender"`
	MannequinPreference  string  `json:"mannequin_preference"`
	Style                *string `json:"style"`
	AvatarURL            *string `json:"avatar_url"`
	ReceiveNotifications bool    `json:"receive_notifications"`
	ClothingCount        int64   `json:"clothing_count"`
	OutfitCount          int64   `json:"outfit_count"`
}

type ProfileUpdateIn struct {
	Name                 *string `json:"name"`
	Gender               *string `json:"gender" validate:"omitempty,gender"`
	MannequinPreference  *string `json:"mannequin_preference" validate:"omitempty,mannequin"`
	Style                *string `json:"style"`
	ReceiveNotifications *bool   `json:"receive_notifications"`
}

type ClothingItemCreateIn struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	FileName    string  `json:"file_name" validate:"required"`
}

type ClothingItemUploadOut struct {
	Id        uint   `json:"id"`
	UploadUrl string `json:"upload_url"`
}

type ClothingItemUpdateIn struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Type        *string `json:"type"`
	Color       *string `json:"color"`
	Season      *string `json:"season"`
	Occasion    *string `json:"occasion"`
}

type OutfitGenerateIn struct {
	Occasion     string   `json:"occasion" validate:"required"`
	Weather      *string  `json:"weather"`
	Season       *string  `json:"season"`
	Style        *string  `json:"style"`
	Colors       []string `json:"colors"`
	ExcludeItems []uint   `json:"exclude_items"`
}

type FeedPostCreateIn struct {
	Caption  string `json:"caption" validate:"required"`
	FileName string `json:"file_name" validate:"required"`
}

type FeedPostOut struct {
	Id         uint    `json:"id"`
	StoreId    uint    `json:"store_id"`
	StoreName  string  `json:"store_name"`
	ImageURL   *string `json:"image_url"`
	Caption    string  `json:"caption"`
	LikeCount  int64   `json:"like_count"`
	SaveCount  int64   `json:"save_count"`
	LikedByMe  bool    `json:"liked_by_me"`
	SavedByMe  bool    `json:"saved_by_me"`
	CreatedAt  int64   `json:"created_at"`
	UploadUrl  *string `json:"upload_url,omitempty"`
}

type FeedPostStatsOut struct {
	PostCount  int64 `json:"post_count"`
	LikeCount  int64 `json:"like_count"`
	SaveCount  int64 `json:"save_count"`
}
