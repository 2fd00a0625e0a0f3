package repository

import (
	"marketplace/internal/models"

	"gorm.io/gorm"
)

type TransactionRepository interface {
	Create(transaction *models.Transaction) error
	GetByReference(reference string) (*models.Transaction, error)
	GetByOrderID(orderID uint) ([]models.Transaction, error)
	GetByUserID(userID uint) ([]models.Transaction, error)
	MarkTerminal(reference string, status models.TransactionStatus) (bool, error)
}

type transactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) Create(transaction *models.Transaction) error {
	return r.db.Create(transaction).Error
}

func (r *transactionRepository) GetByReference(reference string) (*models.Transaction, error) {
	var transaction models.Transaction
	err := r.db.Where("reference = ?", reference).First(&transaction).Error
	if err != nil {
		return nil, err
	}
	return &transaction, nil
}

func (r *transactionRepository) GetByOrderID(orderID uint) ([]models.Transaction, error) {
	var transactions []models.Transaction
	err := r.db.Where("order_id = ?", orderID).Find(&transactions).Error
	return transactions, err
}

func (r *transactionRepository) GetByUserID(userID uint) ([]models.Transaction, error) {
	var transactions []models.Transaction
	err := r.db.Where("user_id = ?", userID).Find(&transactions).Error
	return transactions, err
}

// MarkTerminal applies the single allowed status move, pending to a terminal
// status. Replays against an already-terminal row affect nothing and return
// false.
func (r *transactionRepository) MarkTerminal(reference string, status models.TransactionStatus) (bool, error) {
	result := r.db.Model(&models.Transaction{}).
		Where("reference = ? AND status = ?", reference, string(models.TransactionPending)).
		Update("status", string(status))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
