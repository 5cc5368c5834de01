package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"service-order-attachments/internal/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// one connection keeps the in-memory database alive across queries
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestAttachmentRepositoryListsInInsertionOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewAttachmentRepository(newTestDB(t), "")
	require.NoError(t, repo.Migrate())

	at := time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)
	rows := []model.Attachment{
		{ServiceOrder: "SO-1", CreatedAt: at, Workcenter: "WC-A", Location: "https://x/uploads/SO-1/3.jpg"},
		{ServiceOrder: "SO-2", CreatedAt: at, Workcenter: "WC-A", Location: "https://x/uploads/SO-2/1.jpg"},
		{ServiceOrder: "SO-1", CreatedAt: at, Workcenter: "WC-B", Location: "https://x/uploads/SO-1/1.pdf"},
	}
	for i := range rows {
		require.NoError(t, repo.Insert(ctx, &rows[i]))
		assert.NotZero(t, rows[i].ID)
	}

	got, err := repo.ListLocations(ctx, "SO-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://x/uploads/SO-1/3.jpg", "https://x/uploads/SO-1/1.pdf"}, got)

	again, err := repo.ListLocations(ctx, "SO-1")
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestAttachmentRepositoryEmptyResult(t *testing.T) {
	repo := NewAttachmentRepository(newTestDB(t), "service_orders")
	require.NoError(t, repo.Migrate())

	got, err := repo.ListLocations(context.Background(), "missing")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestAttachmentRepositoryCustomTable(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewAttachmentRepository(db, "so_attachments")
	require.NoError(t, repo.Migrate())

	require.NoError(t, repo.Insert(ctx, &model.Attachment{
		ServiceOrder: "SO-9",
		CreatedAt:    time.Now().UTC(),
		Workcenter:   "WC",
		Location:     "loc",
	}))

	assert.True(t, db.Migrator().HasTable("so_attachments"))
	got, err := repo.ListLocations(ctx, "SO-9")
	require.NoError(t, err)
	assert.Equal(t, []string{"loc"}, got)
}

func TestAttachmentRepositoryInsertFailsWithoutTable(t *testing.T) {
	repo := NewAttachmentRepository(newTestDB(t), "")

	err := repo.Insert(context.Background(), &model.Attachment{ServiceOrder: "SO-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert attachment failed")
}

func TestOperatorRepository(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	require.NoError(t, db.AutoMigrate(&model.Operator{}))
	repo := NewOperatorRepository(db)

	missing, err := repo.GetByUsername(ctx, "budi")
	require.NoError(t, err)
	assert.Nil(t, missing)

	op := &model.Operator{Username: "budi", PasswordHash: "hash", Workcenter: "WC-A"}
	require.NoError(t, repo.Create(ctx, op))

	byName, err := repo.GetByUsername(ctx, "budi")
	require.NoError(t, err)
	require.NotNil(t, byName)
	assert.Equal(t, "WC-A", byName.Workcenter)

	byID, err := repo.GetByID(ctx, op.ID)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "budi", byID.Username)

	assert.Error(t, repo.Create(ctx, &model.Operator{Username: "budi", PasswordHash: "x"}))
}
