package repository

import (
	"marketplace/internal/models"

	"gorm.io/gorm"
)

type ShopRepository interface {
	Create(shop *models.Shop) error
	GetByID(id uint) (*models.Shop, error)
	GetAll() ([]models.Shop, error)
	Update(shop *models.Shop) error
	UpdateMetrics(shopID uint, updates map[string]interface{}) error
	SetActive(shopID uint, current, target bool) (bool, error)
}

type shopRepository struct {
	db *gorm.DB
}

func NewShopRepository(db *gorm.DB) ShopRepository {
	return &shopRepository{db: db}
}

func (r *shopRepository) Create(shop *models.Shop) error {
	return r.db.Create(shop).Error
}

func (r *shopRepository) GetByID(id uint) (*models.Shop, error) {
	var shop models.Shop
	err := r.db.First(&shop, id).Error
	if err != nil {
		return nil, err
	}
	return &shop, nil
}

func (r *shopRepository) GetAll() ([]models.Shop, error) {
	var shops []models.Shop
	err := r.db.Find(&shops).Error
	return shops, err
}

func (r *shopRepository) Update(shop *models.Shop) error {
	return r.db.Save(shop).Error
}

func (r *shopRepository) UpdateMetrics(shopID uint, updates map[string]interface{}) error {
	return r.db.Model(&models.Shop{}).Where("id = ?", shopID).Updates(updates).Error
}

// SetActive flips the active flag only when the current value still matches,
// so concurrent recomputes cannot double-apply a suspend or reactivate.
func (r *shopRepository) SetActive(shopID uint, current, target bool) (bool, error) {
	result := r.db.Model(&models.Shop{}).
		Where("id = ? AND is_active = ?", shopID, current).
		Update("is_active", target)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
