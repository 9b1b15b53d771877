package controllers

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"

	"stylewiseapi/models"
	"stylewiseapi/services"

	"github.com/getsentry/sentry-go"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

type FeedController struct {
	AWSService services.AWSServiceProvider
	URLCache   services.URLCacheServiceProvider
}

func (controller *FeedController) FeedRoutes(g *echo.Group) {
	g.GET("", controller.ListFeed)
	g.GET("/saved/posts", controller.ListSavedPosts)
	g.POST("/:id/like", controller.LikePost)
	g.DELETE("/:id/like", controller.UnlikePost)
	g.POST("/:id/save", controller.SavePost)
	g.DELETE("/:id/save", controller.UnsavePost)

	g.POST("", controller.CreatePost, StoreOnlyMiddleware)
	g.DELETE("/:id", controller.DeletePost, StoreOnlyMiddleware)
	g.GET("/my/stats", controller.MyStats, StoreOnlyMiddleware)
}

func (controller *FeedController) CreatePost(c echo.Context) error {
	var req models.FeedPostCreateIn
	if err := c.Bind(&req); err != nil {
		fmt.Println(err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	user := c.Get("currentUser").(models.UserAccount)
	db := c.Get("__db").(*gorm.DB)

	if !services.IsAllowedImageName(req.FileName) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Only image uploads are supported"})
	}

	var bucketName = services.GetEnv("R2_BUCKET_NAME", "")
	safeFileName := fmt.Sprintf("feed/%v/%s", user.ID, req.FileName)
	uploadUrl, presignErr := controller.AWSService.PresignLink(context.Background(), bucketName, safeFileName)
	if presignErr != nil {
		log.Printf("Unable to presign generate for feed post of store %v!, %s", user.ID, presignErr)
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"message": "Error while creating post with attachment",
		})
	}

	post := models.FeedPost{
		StoreID:  user.ID,
		ImageURL: &safeFileName,
		Caption:  req.Caption,
	}
	if err := db.Create(&post).Error; err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Failed to save your post, please try again"})
	}
	fmt.Println("Feed post created, ID: ", post.ID, " Store: ", user.ID)

	return c.JSON(http.StatusCreated, models.FeedPostOut{
		Id:        post.ID,
		StoreId:   user.ID,
		StoreName: user.Name,
		ImageURL:  &safeFileName,
		Caption:   post.Caption,
		CreatedAt: post.CreatedAt.UnixMilli(),
		UploadUrl: &uploadUrl,
	})
}

func (controller *FeedController) DeletePost(c echo.Context) error {
	user := c.Get("currentUser").(models.UserAccount)
	db := c.Get("__db").(*gorm.DB)
	var postId uint
	if err := echo.PathParamsBinder(c).Uint("id", &postId).BindError(); err != nil {
		return echo.ErrBadRequest
	}
	result := db.Where("id = ? AND store_id = ?", postId, user.ID).Delete(&models.FeedPost{})
	if result.Error != nil {
		sentry.CaptureException(result.Error)
		return echo.ErrInternalServerError
	}
	if result.RowsAffected == 0 {
		return echo.ErrNotFound
	}
	db.Where("feed_post_id = ?", postId).Delete(&models.FeedPostLike{})
	db.Where("feed_post_id = ?", postId).Delete(&models.FeedPostSave{})
	return c.JSON(http.StatusOK, echo.Map{"message": "deleted"})
}

type postCountRow struct {
	FeedPostID uint
	Total      int64
}

func countByPost(db *gorm.DB, model interface{}, postIds []uint) map[uint]int64 {
	counts := map[uint]int64{}
	var rows []postCountRow
	if err := db.Model(model).Select("feed_post_id, count(*) as total").Where("feed_post_id IN ?", postIds).Group("feed_post_id").Scan(&rows).Error; err != nil {
		fmt.Println("Error counting feed reactions ", err)
		return counts
	}
	for _, row := range rows {
		counts[row.FeedPostID] = row.Total
	}
	return counts
}

func markedByUser(db *gorm.DB, model interface{}, postIds []uint, userId uint) map[uint]bool {
	marked := map[uint]bool{}
	var ids []uint
	if err := db.Model(model).Where("feed_post_id IN ? AND user_account_id = ?", postIds, userId).Pluck("feed_post_id", &ids).Error; err != nil {
		fmt.Println("Error fetching feed reactions ", err)
		return marked
	}
	for _, id := range ids {
		marked[id] = true
	}
	return marked
}

// buildFeedResponses enriches posts with counts, the caller's own reactions
// and concurrently presigned image URLs.
func (controller *FeedController) buildFeedResponses(c echo.Context, db *gorm.DB, posts []models.FeedPost, userId uint) []models.FeedPostOut {
	if len(posts) == 0 {
		return []models.FeedPostOut{}
	}
	postIds := make([]uint, 0, len(posts))
	for _, post := range posts {
		postIds = append(postIds, post.ID)
	}
	likeCounts := countByPost(db, &models.FeedPostLike{}, postIds)
	saveCounts := countByPost(db, &models.FeedPostSave{}, postIds)
	liked := markedByUser(db, &models.FeedPostLike{}, postIds, userId)
	saved := markedByUser(db, &models.FeedPostSave{}, postIds, userId)

	var wg sync.WaitGroup
	responses := make([]models.FeedPostOut, len(posts))
	bucketName := services.GetEnv("R2_BUCKET_NAME", "")
	ctx := c.Request().Context()

	for i, postModel := range posts {
		wg.Add(1)
		go func(index int, post models.FeedPost) {
			defer wg.Done()

			var imageUri *string
			if post.ImageURL != nil && *post.ImageURL != "" {
				objectKey := *post.ImageURL
				url, err := controller.URLCache.GetReadURL(ctx, objectKey)
				if err != nil {
					log.Printf("CACHE WARNING: Cache system failed for key '%s': %v. Triggering manual R2 fallback.", objectKey, err)
					sentry.WithScope(func(scope *sentry.Scope) {
						scope.SetTag("failure_type", "cache_system")
						scope.SetExtra("objectKey", objectKey)
						sentry.CaptureException(err)
					})
					url, err = controller.AWSService.GetPresignedR2FileReadURL(ctx, bucketName, objectKey)
					if err != nil {
						log.Printf("CRITICAL: Manual R2 fallback also failed for key '%s': %v", objectKey, err)
						sentry.CaptureException(err)
					}
				}
				if err == nil {
					imageUri = &url
				}
			}
			responses[index] = models.FeedPostOut{
				Id:        post.ID,
				StoreId:   post.StoreID,
				StoreName: post.Store.Name,
				ImageURL:  imageUri,
				Caption:   post.Caption,
				LikeCount: likeCounts[post.ID],
				SaveCount: saveCounts[post.ID],
				LikedByMe: liked[post.ID],
				SavedByMe: saved[post.ID],
				CreatedAt: post.CreatedAt.UnixMilli(),
			}
		}(i, postModel)
	}
	wg.Wait()
	return responses
}

func (controller *FeedController) ListFeed(c echo.Context) error {
	user := c.Get("currentUser").(models.UserAccount)
	db := c.Get("__db").(*gorm.DB)

	page := 1
	pageSize := 20
	echo.QueryParamsBinder(c).Int("page", &page).Int("page_size", &pageSize)
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	var posts []models.FeedPost
	if err := db.Joins("Store").Order("feed_posts.created_at desc").Offset((page - 1) * pageSize).Limit(pageSize).Find(&posts).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch feed"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"posts":     controller.buildFeedResponses(c, db, posts, user.ID),
		"page":      page,
		"page_size": pageSize,
	})
}

func (controller *FeedController) ListSavedPosts(c echo.Context) error {
	user := c.Get("currentUser").(models.UserAccount)
	db := c.Get("__db").(*gorm.DB)

	var posts []models.FeedPost
	err := db.Joins("Store").
		Joins("JOIN feed_post_saves ON feed_post_saves.feed_post_id = feed_posts.id AND feed_post_saves.user_account_id = ?", user.ID).
		Order("feed_post_saves.created_at desc").
		Find(&posts).Error
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch saved posts"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"posts": controller.buildFeedResponses(c, db, posts, user.ID),
	})
}

func (controller *FeedController) loadPost(c echo.Context) (*models.FeedPost, error) {
	db := c.Get("__db").(*gorm.DB)
	var postId uint
	if err := echo.PathParamsBinder(c).Uint("id", &postId).BindError(); err != nil {
		return nil, echo.ErrBadRequest
	}
	var post models.FeedPost
	r := db.Limit(1).Find(&post, "id = ?", postId)
	if r.Error != nil {
		return nil, echo.ErrInternalServerError
	}
	if r.RowsAffected == 0 {
		return nil, echo.ErrNotFound
	}
	return &post, nil
}

func (controller *FeedController) LikePost(c echo.Context) error {
	user := c.Get("currentUser").(models.UserAccount)
	db := c.Get("__db").(*gorm.DB)
	post, err := controller.loadPost(c)
	if err != nil {
		return err
	}
	like := models.FeedPostLike{UserAccountID: user.ID, FeedPostID: post.ID}
	// unique index keeps double likes out, FirstOrCreate keeps it idempotent
	result := db.Where("user_account_id = ? AND feed_post_id = ?", user.ID, post.ID).FirstOrCreate(&like)
	if result.Error != nil {
		sentry.CaptureException(result.Error)
		return echo.ErrInternalServerError
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "liked", "post_id": post.ID})
}

func (controller *FeedController) UnlikePost(c echo.Context) error {
	user := c.Get("currentUser").(models.UserAccount)
	db := c.Get("__db").(*gorm.DB)
	post, err := controller.loadPost(c)
	if err != nil {
		return err
	}
	result := db.Where("user_account_id = ? AND feed_post_id = ?", user.ID, post.ID).Delete(&models.FeedPostLike{})
	if result.Error != nil {
		sentry.CaptureException(result.Error)
		return echo.ErrInternalServerError
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "unliked", "deleted": result.RowsAffected > 0})
}

func (controller *FeedController) SavePost(c echo.Context) error {
	user := c.Get("currentUser").(models.UserAccount)
	db := c.Get("__db").(*gorm.DB)
	post, err := controller.loadPost(c)
	if err != nil {
		return err
	}
	save := models.FeedPostSave{UserAccountID: user.ID, FeedPostID: post.ID}
	result := db.Where("user_account_id = ? AND feed_post_id = ?", user.ID, post.ID).FirstOrCreate(&save)
	if result.Error != nil {
		sentry.CaptureException(result.Error)
		return echo.ErrInternalServerError
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "saved", "post_id": post.ID})
}

func (controller *FeedController) UnsavePost(c echo.Context) error {
	user := c.Get("currentUser").(models.UserAccount)
	db := c.Get("__db").(*gorm.DB)
	post, err := controller.loadPost(c)
	if err != nil {
		return err
	}
	result := db.Where("user_account_id = ? AND feed_post_id = ?", user.ID, post.ID).Delete(&models.FeedPostSave{})
	if result.Error != nil {
		sentry.CaptureException(result.Error)
		return echo.ErrInternalServerError
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "unsaved", "deleted": result.RowsAffected > 0})
}

func (controller *FeedController) MyStats(c echo.Context) error {
	user := c.Get("currentUser").(models.UserAccount)
	db := c.Get("__db").(*gorm.DB)

	var postCount int64
	if err := db.Model(&models.FeedPost{}).Where("store_id = ?", user.ID).Count(&postCount).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch stats"})
	}
	var likeCount int64
	if err := db.Model(&models.FeedPostLike{}).
		Joins("JOIN feed_posts ON feed_posts.id = feed_post_likes.feed_post_id").
		Where("feed_posts.store_id = ?", user.ID).Count(&likeCount).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch stats"})
	}
	var saveCount int64
	if err := db.Model(&models.FeedPostSave{}).
		Joins("JOIN feed_posts ON feed_posts.id = feed_post_saves.feed_post_id").
		Where("feed_posts.store_id = ?", user.ID).Count(&saveCount).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch stats"})
	}

	return c.JSON(http.StatusOK, models.FeedPostStatsOut{
		PostCount: postCount,
		LikeCount: likeCount,
		SaveCount: saveCount,
	})
}
