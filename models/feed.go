package models

type FeedPost struct {
	JsonModel
	StoreID uint        `json:"store_id"`
	Store   UserAccount `json:"-"`

	ImageURL *string `json:"image_url"`
	Caption  string  `gorm:"type:text" json:"caption"`
}

type FeedPostLike struct {
	JsonModel
	UserAccountID uint        `gorm:"uniqueIndex:idx_feed_like_user_post" json:"-"`
	UserAccount   UserAccount `json:"-"`
	FeedPostID    uint        `gorm:"uniqueIndex:idx_feed_like_user_post" json:"feed_post_id"`
	FeedPost      FeedPost    `json:"-"`
}

type FeedPostSave struct {
	JsonModel
	UserAccountID uint        `gorm:"uniqueIndex:idx_feed_save_user_post" json:"-"`
	UserAccount   UserAccount `json:"-"`
	FeedPostID    uint        `gorm:"uniqueIndex:idx_feed_save_user_post" json:"feed_post_id"`
	FeedPost      FeedPost    `json:"-"`
}
