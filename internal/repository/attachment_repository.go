package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"service-order-attachments/internal/model"
)

// AttachmentRepository is the relational record store for attachments.
type AttachmentRepository struct {
	db    *gorm.DB
	table string
}

func NewAttachmentRepository(db *gorm.DB, table string) *AttachmentRepository {
	if table == "" {
		table = model.Attachment{}.TableName()
	}
	return &AttachmentRepository{db: db, table: table}
}

func (r *AttachmentRepository) Migrate() error {
	if err := r.db.Table(r.table).AutoMigrate(&model.Attachment{}); err != nil {
		return fmt.Errorf("migrate %s failed: %w", r.table, err)
	}
	return nil
}

func (r *AttachmentRepository) Insert(ctx context.Context, attachment *model.Attachment) error {
	if err := r.db.WithContext(ctx).Table(r.table).Create(attachment).Error; err != nil {
		return fmt.Errorf("insert attachment failed: %w", err)
	}
	return nil
}

// ListLocations returns the locations of a service order in insertion order.
func (r *AttachmentRepository) ListLocations(ctx context.Context, serviceOrder string) ([]string, error) {
	locations := make([]string, 0)
	if err := r.db.WithContext(ctx).
		Table(r.table).
		Where("service_order = ?", serviceOrder).
		Order("id ASC").
		Pluck("gambar_url", &locations).Error; err != nil {
		return nil, fmt.Errorf("list attachment locations failed: %w", err)
	}
	return locations, nil
}
