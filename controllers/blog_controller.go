package controller

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"coachflow/models"
	"coachflow/utils"
)

// BlogController serves the bilingual blog: public read endpoints that
// localize posts with an English fallback, and JWT-protected CRUD for
// the admin dashboard.
type BlogController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewBlogController(db *gorm.DB) *BlogController {
	return &BlogController{
		DB:     db,
		Logger: log.New(os.Stdout, "BLOG: ", log.Ldate|log.Ltime|log.Lshortfile),
	}
}

func blogLanguage(c *fiber.Ctx) string {
	lang := strings.ToLower(c.Query("lang", "en"))
	if lang != "bg" {
		lang = "en"
	}
	return lang
}

// ListPosts handles GET /blog/posts - published posts only, localized
func (bc *BlogController) ListPosts(c *fiber.Ctx) error {
	lang := blogLanguage(c)
	page, limit := pagination(c)

	query := bc.DB.Model(&models.BlogPost{}).Where("is_published = ?", true)
	if category := c.Query("category"); category != "" {
		query = query.Where("category = ?", category)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to count posts", err)
	}

	var posts []models.BlogPost
	err := query.Order("published_at DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&posts).Error
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch posts", err)
	}

	localized := make([]models.LocalizedPost, 0, len(posts))
	for i := range posts {
		localized = append(localized, posts[i].Localized(lang))
	}

	return c.JSON(utils.PaginatedResponse{Data: localized, Total: total, Page: page, Limit: limit})
}

// GetPost handles GET /blog/posts/:slug and counts the view
func (bc *BlogController) GetPost(c *fiber.Ctx) error {
	lang := blogLanguage(c)
	slug := c.Params("slug")

	var post models.BlogPost
	err := bc.DB.Where("slug = ? AND is_published = ?", slug, true).First(&post).Error
	if err == gorm.ErrRecordNotFound {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Post not found", nil)
	}
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch post", err)
	}

	bc.DB.Model(&post).Update("view_count", gorm.Expr("view_count + ?", 1))

	return c.JSON(utils.SuccessResponse(post.Localized(lang)))
}

type blogPostInput struct {
	Slug          string `json:"slug" validate:"required,max=200"`
	Category      string `json:"category" validate:"max=100"`
	TitleEN       string `json:"title_en" validate:"required,max=300"`
	TitleBG       string `json:"title_bg" validate:"max=300"`
	ExcerptEN     string `json:"excerpt_en"`
	ExcerptBG     string `json:"excerpt_bg"`
	BodyEN        string `json:"body_en" validate:"required"`
	BodyBG        string `json:"body_bg"`
	CoverImageURL string `json:"cover_image_url" validate:"omitempty,url"`
}

// CreatePost handles POST /admin/blog/posts. New posts start as drafts.
func (bc *BlogController) CreatePost(c *fiber.Ctx) error {
	var input blogPostInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	post := models.BlogPost{
		Slug:          strings.ToLower(strings.TrimSpace(input.Slug)),
		Category:      input.Category,
		TitleEN:       input.TitleEN,
		TitleBG:       input.TitleBG,
		ExcerptEN:     input.ExcerptEN,
		ExcerptBG:     input.ExcerptBG,
		BodyEN:        input.BodyEN,
		BodyBG:        input.BodyBG,
		CoverImageURL: input.CoverImageURL,
	}

	if err := bc.DB.Create(&post).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Failed to create post (slug taken?)", err)
	}

	bc.Logger.Printf("Created post %q (id %d)", post.Slug, post.ID)
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(post))
}

// UpdatePost handles PUT /admin/blog/posts/:id
func (bc *BlogController) UpdatePost(c *fiber.Ctx) error {
	id := utils.ParseUint(c.Params("id"))
	if id == 0 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid post id", nil)
	}

	var post models.BlogPost
	if err := bc.DB.First(&post, id).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Post not found", nil)
	}

	var input blogPostInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	post.Slug = strings.ToLower(strings.TrimSpace(input.Slug))
	post.Category = input.Category
	post.TitleEN = input.TitleEN
	post.TitleBG = input.TitleBG
	post.ExcerptEN = input.ExcerptEN
	post.ExcerptBG = input.ExcerptBG
	post.BodyEN = input.BodyEN
	post.BodyBG = input.BodyBG
	post.CoverImageURL = input.CoverImageURL

	if err := bc.DB.Save(&post).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update post", err)
	}

	return c.JSON(utils.SuccessResponse(post))
}

// PublishPost handles POST /admin/blog/posts/:id/publish. PublishedAt is
// set on the first publish only so republishing doesn't rewrite history.
func (bc *BlogController) PublishPost(c *fiber.Ctx) error {
	return bc.setPublished(c, true)
}

// UnpublishPost handles POST /admin/blog/posts/:id/unpublish
func (bc *BlogController) UnpublishPost(c *fiber.Ctx) error {
	return bc.setPublished(c, false)
}

func (bc *BlogController) setPublished(c *fiber.Ctx, published bool) error {
	id := utils.ParseUint(c.Params("id"))
	if id == 0 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid post id", nil)
	}

	var post models.BlogPost
	if err := bc.DB.First(&post, id).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Post not found", nil)
	}

	updates := map[string]interface{}{"is_published": published}
	if published && post.PublishedAt == nil {
		updates["published_at"] = time.Now()
	}
	if err := bc.DB.Model(&post).Updates(updates).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update post", err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{"id": post.ID, "is_published": published}))
}

// DeletePost handles DELETE /admin/blog/posts/:id (soft delete via gorm)
func (bc *BlogController) DeletePost(c *fiber.Ctx) error {
	id := utils.ParseUint(c.Params("id"))
	if id == 0 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid post id", nil)
	}

	result := bc.DB.Delete(&models.BlogPost{}, id)
	if result.Error != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete post", result.Error)
	}
	if result.RowsAffected == 0 {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Post not found", nil)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{"id": id, "deleted": true}))
}

// ListAllPosts handles GET /admin/blog/posts - drafts included
func (bc *BlogController) ListAllPosts(c *fiber.Ctx) error {
	page, limit := pagination(c)

	var total int64
	if err := bc.DB.Model(&models.BlogPost{}).Count(&total).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to count posts", err)
	}

	var posts []models.BlogPost
	err := bc.DB.Order("created_at DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&posts).Error
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch posts", err)
	}

	return c.JSON(utils.PaginatedResponse{Data: posts, Total: total, Page: page, Limit: limit})
}
