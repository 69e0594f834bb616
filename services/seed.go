package services

import (
	"doin-challenge/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SeedResult struct {
	Categories   int64 `json:"categories"`
	Badges       int64 `json:"badges"`
	Achievements int64 `json:"achievements"`
}

// Seed inserts the default categories and the badge and achievement catalogs.
// Rows that already exist (by slug or condition type) are left untouched.
func Seed(db *gorm.DB) (*SeedResult, error) {
	res := &SeedResult{}
	err := db.Transaction(func(tx *gorm.DB) error {
		categories := make([]models.Category, len(DefaultCategories))
		copy(categories, DefaultCategories)
		for i := range categories {
			categories[i].IsActive = true
		}
		r := tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "slug"}}, DoNothing: true}).Create(&categories)
		if r.Error != nil {
			return r.Error
		}
		res.Categories = r.RowsAffected

		badges := make([]models.Badge, len(models.BadgeCatalog))
		copy(badges, models.BadgeCatalog)
		r = tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "condition_type"}}, DoNothing: true}).Create(&badges)
		if r.Error != nil {
			return r.Error
		}
		res.Badges = r.RowsAffected

		achievements := make([]models.Achievement, len(models.AchievementCatalog))
		copy(achievements, models.AchievementCatalog)
		for i := range achievements {
			achievements[i].IsActive = true
		}
		r = tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "condition_type"}}, DoNothing: true}).Create(&achievements)
		if r.Error != nil {
			return r.Error
		}
		res.Achievements = r.RowsAffected
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// PromoteAdmin gives the admin role to the user with the given open id.
func PromoteAdmin(db *gorm.DB, openID string) error {
	res := db.Model(&models.User{}).Where("open_id = ?", openID).Update("role", models.RoleAdmin)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmtNotFound("user")
	}
	return nil
}
