package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"service-order-attachments/internal/model"
)

type OperatorRepository struct {
	db *gorm.DB
}

func NewOperatorRepository(db *gorm.DB) *OperatorRepository {
	return &OperatorRepository{db: db}
}

func (r *OperatorRepository) Create(ctx context.Context, operator *model.Operator) error {
	if err := r.db.WithContext(ctx).Create(operator).Error; err != nil {
		return fmt.Errorf("create operator failed: %w", err)
	}
	return nil
}

// GetByUsername returns nil, nil when no operator has that username.
func (r *OperatorRepository) GetByUsername(ctx context.Context, username string) (*model.Operator, error) {
	var operator model.Operator
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&operator).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query operator by username failed: %w", err)
	}
	return &operator, nil
}

func (r *OperatorRepository) GetByID(ctx context.Context, id uint) (*model.Operator, error) {
	var operator model.Operator
	if err := r.db.WithContext(ctx).First(&operator, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query operator by id failed: %w", err)
	}
	return &operator, nil
}
