package model

import "time"

// Attachment is one row of the service order attachment table. Column and
// JSON names follow the existing table schema.
type Attachment struct {
	ID           uint      `gorm:"primaryKey" json:"id,omitempty"`
	ServiceOrder string    `gorm:"column:service_order;size:128;not null;index" json:"service_order"`
	CreatedAt    time.Time `gorm:"column:tanggal;not null" json:"tanggal"`
	Workcenter   string    `gorm:"column:workcenter;size:128;not null" json:"workcenter"`
	Location     string    `gorm:"column:gambar_url;type:text;not null" json:"gambar_url"`
}

func (Attachment) TableName() string {
	return "service_orders"
}
