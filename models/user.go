package models

import "time"

type JsonModel struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type UserAccount struct {
	JsonModel
	Name     string `json:"name"`
	Email    string `json:"email" gorm:"unique"`
	Password string `json:"-"`
	Banned   bool   `gorm:"default:false" json:"-"`
	LastIp   string `json:"-"`
	GoogleID string `json:"-"`

	// USER accounts own a wardrobe; STORE accounts own feed posts.
	Type   UserType `sql:"type:ENUM('USER', 'STORE')" json:"type"`
	Gender Gender   `sql:"type:ENUM('FEMALE', 'MALE', 'OTHER')" json:"gender"`

	// preferences feeding the outfit builder
	MannequinPreference Mannequin `sql:"type:ENUM('Woman', 'Man', 'Neutral')" json:"mannequin_preference"`
	Style               *string   `json:"style"`

	Platform  Platform `sql:"type:ENUM('ios', 'android', 'web')" json:"platform"`
	AvatarURL *string  `json:"avatar_url"`

	ReceiveNotifications bool       `json:"receive_notifications"`
	ConfirmedDeleteDate  *time.Time `json:"-"`
}

type UserPushToken struct {
	JsonModel
	UserAccountID uint
	UserAccount   UserAccount `json:"user_account"`
	Platform      Platform    `sql:"type:ENUM('ios', 'android', 'web')" json:"platform"`
	Token         string      `json:"token"`
	Active        bool        `gorm:"default:false" json:"-"`
}

type UserPushIn struct {
	Token    string `json:"token" validate:"required"`
	Platform string `json:"platform" validate:"required,platform"`
}
