// File: sessionforge.userstore.gorm.imp.go

package sessionforge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Account statuses stored in the users table.
const (
	UserStatusDisabled = 0
	UserStatusEnabled  = 1
)

// UserModel is the persisted account row backing GormUserStore.
type UserModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	Username  string    `gorm:"uniqueIndex:idx_users_username;type:varchar(64);not null"`
	Email     string    `gorm:"uniqueIndex:idx_users_email;type:varchar(128);not null"`
	Password  string    `gorm:"type:varchar(128);not null"`
	Status    int       `gorm:"index:idx_users_status;not null;default:1"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName specifies the table name for UserModel
func (UserModel) TableName() string {
	return "users"
}

// GormUserStore is a GORM-backed UserStore. Disabled rows are filtered at
// the query level, so they surface as ErrUserNotFound like absent accounts.
type GormUserStore struct {
	db *gorm.DB
}

// NewGormUserStore creates a new GORM-based user store.
func NewGormUserStore(db *gorm.DB) (*GormUserStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database cannot be nil")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	if err := db.AutoMigrate(&UserModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate users table: %w", err)
	}

	return &GormUserStore{db: db}, nil
}

func (s *GormUserStore) FindByUsername(ctx context.Context, username string) (*UserRecord, error) {
	return s.findOne(ctx, "username = ?", username)
}

func (s *GormUserStore) FindByEmail(ctx context.Context, email string) (*UserRecord, error) {
	return s.findOne(ctx, "email = ?", email)
}

func (s *GormUserStore) findOne(ctx context.Context, query string, arg string) (*UserRecord, error) {
	var row UserModel
	err := s.db.WithContext(ctx).
		Where(query, arg).
		Where("status = ?", UserStatusEnabled).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user lookup failed: %w", err)
	}

	return &UserRecord{
		ID:           row.ID,
		Username:     row.Username,
		Email:        row.Email,
		PasswordHash: row.Password,
	}, nil
}
