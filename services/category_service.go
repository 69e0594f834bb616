package services

import (
	"strings"
	"time"

	"doin-challenge/cache"
	"doin-challenge/logger"
	"doin-challenge/models"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const categoriesKey = "active"

type CategoryService struct {
	DB *gorm.DB

	active *cache.TTL[[]models.Category]
}

func NewCategoryService(db *gorm.DB, store cache.Store, ttl time.Duration) *CategoryService {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CategoryService{DB: db, active: cache.NewTTL[[]models.Category](store, "categories:", ttl)}
}

type CategoryInput struct {
	Name        *string `json:"name"`
	Slug        *string `json:"slug"`
	Description *string `json:"description"`
	Icon        *string `json:"icon"`
	Color       *string `json:"color"`
	SortOrder   *int    `json:"sort_order"`
	IsActive    *bool   `json:"is_active"`
}

// List returns active categories in display order.
func (s *CategoryService) List() ([]models.Category, error) {
	return s.active.GetOrLoad(categoriesKey, func() ([]models.Category, error) {
		categories := []models.Category{}
		err := s.DB.Where("is_active = ?", true).Order("sort_order ASC").Order("name ASC").Find(&categories).Error
		return categories, err
	})
}

// ListAll includes inactive categories for the admin screen.
func (s *CategoryService) ListAll() ([]models.Category, error) {
	var categories []models.Category
	err := s.DB.Order("sort_order ASC").Order("name ASC").Find(&categories).Error
	return categories, err
}

func (s *CategoryService) Get(id string) (*models.Category, error) {
	var c models.Category
	if err := s.DB.Where("id = ?", id).First(&c).Error; err != nil {
		return nil, notFound("category", err)
	}
	return &c, nil
}

func (s *CategoryService) Create(in CategoryInput) (*models.Category, error) {
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return nil, invalidf("name is required")
	}
	c := models.Category{ID: uuid.NewString(), Icon: "🎤", Color: "#EC4899", IsActive: true}
	if err := s.apply(&c, in); err != nil {
		return nil, err
	}
	if c.Slug == "" {
		c.Slug = categorySlug(c.Name, c.ID)
	}
	if err := s.ensureSlugFree(c.Slug, c.ID); err != nil {
		return nil, err
	}
	if err := s.DB.Create(&c).Error; err != nil {
		return nil, err
	}
	s.invalidate()
	return &c, nil
}

func categorySlug(name, id string) string {
	if s := slug.Make(name); s != "" {
		return s
	}
	return "category-" + id[:8]
}

func (s *CategoryService) apply(c *models.Category, in CategoryInput) error {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if n := len([]rune(name)); n < 1 || n > 100 {
			return invalidf("name must be 1..100 characters")
		}
		c.Name = name
	}
	if in.Slug != nil {
		c.Slug = slug.Make(*in.Slug)
	}
	if in.Description != nil {
		c.Description = *in.Description
	}
	if in.Icon != nil && *in.Icon != "" {
		c.Icon = *in.Icon
	}
	if in.Color != nil && *in.Color != "" {
		c.Color = *in.Color
	}
	if in.SortOrder != nil {
		c.SortOrder = *in.SortOrder
	}
	if in.IsActive != nil {
		c.IsActive = *in.IsActive
	}
	return nil
}

func (s *CategoryService) ensureSlugFree(slug, id string) error {
	var n int64
	if err := s.DB.Model(&models.Category{}).Unscoped().Where("slug = ? AND id <> ?", slug, id).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return conflictf("category slug %q is taken", slug)
	}
	return nil
}

func (s *CategoryService) Update(id string, in CategoryInput) (*models.Category, error) {
	c, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(c, in); err != nil {
		return nil, err
	}
	if c.Slug == "" {
		c.Slug = categorySlug(c.Name, c.ID)
	}
	if err := s.ensureSlugFree(c.Slug, c.ID); err != nil {
		return nil, err
	}
	if err := s.DB.Save(c).Error; err != nil {
		return nil, err
	}
	s.invalidate()
	return c, nil
}

// Delete removes the category and detaches its challenges.
func (s *CategoryService) Delete(id string) error {
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Delete(&models.Category{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmtNotFound("category")
		}
		return tx.Model(&models.Challenge{}).Where("category_id = ?", id).Update("category_id", nil).Error
	})
	if err != nil {
		return err
	}
	s.invalidate()
	return nil
}

func (s *CategoryService) invalidate() {
	if err := s.active.Invalidate(categoriesKey); err != nil {
		logger.Warn("[CACHE] categories cache invalidate failed", zap.Error(err))
	}
}

// DefaultCategories is seeded on a fresh database.
var DefaultCategories = []models.Category{
	{Name: "アイドル", Slug: "idol", Icon: "🎤", Color: "#EC4899", SortOrder: 1},
	{Name: "音楽ライブ", Slug: "music-live", Icon: "🎸", Color: "#8B5CF6", SortOrder: 2},
	{Name: "配信", Slug: "streaming", Icon: "📺", Color: "#3B82F6", SortOrder: 3},
	{Name: "VTuber", Slug: "vtuber", Icon: "🎮", Color: "#22D3EE", SortOrder: 4},
	{Name: "舞台・ミュージカル", Slug: "stage", Icon: "🎭", Color: "#F59E0B", SortOrder: 5},
	{Name: "スポーツ", Slug: "sports", Icon: "⚽", Color: "#10B981", SortOrder: 6},
	{Name: "その他", Slug: "other", Icon: "✨", Color: "#6B7280", SortOrder: 99},
}
