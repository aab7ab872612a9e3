package db

import "github.com/rs/zerolog/log"

// Category is a self-referential tree of business classifications. Slug
// is unique (spec.md §3/§6).
type Category struct {
	BaseModel
	Name     string    `json:"name"`
	Slug     string    `json:"slug" gorm:"uniqueIndex"`
	ParentID *uint     `json:"parent_id" gorm:"index"`
	Parent   *Category `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;"`
	IsActive bool      `json:"is_active" gorm:"default:true;index"`
}

// Keyword belongs to a Category; (category_id, text) is unique.
type Keyword struct {
	BaseModel
	CategoryID uint   `json:"category_id" gorm:"uniqueIndex:idx_category_keyword"`
	Text       string `json:"text" gorm:"uniqueIndex:idx_category_keyword"`
	Priority   int    `json:"priority" gorm:"default:0"`
	IsActive   bool   `json:"is_active" gorm:"default:true;index"`
}

func (d *DatabaseConnection) CreateCategory(category *Category) (*Category, error) {
	result := d.db.Create(category)
	if result.Error != nil {
		log.Error().Err(result.Error).Msg("Failed to create category")
	}
	return category, result.Error
}

func (d *DatabaseConnection) GetCategoryByID(id uint) (*Category, error) {
	var category Category
	err := d.db.First(&category, id).Error
	if err != nil {
		return nil, err
	}
	return &category, nil
}

func (d *DatabaseConnection) GetActiveCategories() ([]*Category, error) {
	var categories []*Category
	err := d.db.Where("is_active = ?", true).Find(&categories).Error
	return categories, err
}

func (d *DatabaseConnection) GetCategoriesByIDs(ids []uint) ([]*Category, error) {
	var categories []*Category
	err := d.db.Where("id IN ?", ids).Find(&categories).Error
	return categories, err
}

func (d *DatabaseConnection) CreateKeyword(keyword *Keyword) (*Keyword, error) {
	result := d.db.Create(keyword)
	if result.Error != nil {
		log.Error().Err(result.Error).Msg("Failed to create keyword")
	}
	return keyword, result.Error
}

// GetActiveKeywordsForCategory returns the active keywords owned by a
// category, ordered by priority descending. Callers implementing
// CreateFullScan's "fall back to category name" rule should check for an
// empty result themselves (spec.md §4.5).
func (d *DatabaseConnection) GetActiveKeywordsForCategory(categoryID uint) ([]*Keyword, error) {
	var keywords []*Keyword
	err := d.db.Where("category_id = ? AND is_active = ?", categoryID, true).
		Order("priority DESC").
		Find(&keywords).Error
	return keywords, err
}
