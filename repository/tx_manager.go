package repository

import (
	"context"

	"gorm.io/gorm"
)

// GormTxManager implements TxManager on top of a gorm connection
type GormTxManager struct {
	db *gorm.DB
}

// NewTxManager creates a transaction manager
func NewTxManager(db *gorm.DB) TxManager {
	return &GormTxManager{db: db}
}

func (m *GormTxManager) WithTransaction(ctx context.Context, fn func(context.Context) error) error {
	return WithTransaction(ctx, m.db, fn)
}

func (m *GormTxManager) WithSerializableTransaction(ctx context.Context, fn func(context.Context) error) error {
	return WithSerializableTransaction(ctx, m.db, fn)
}
