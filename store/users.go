package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/groxaxo/chatmode/types"
)

// CreateUser stores a new admin account with a bcrypt password hash.
func (s *Store) CreateUser(ctx context.Context, username, password, role string) (*User, error) {
	if username == "" || password == "" {
		return nil, types.NewError(types.ErrInvalidRequest, "username and password are required")
	}
	if role == "" {
		role = "admin"
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("user created",
		zap.String("username", username),
		zap.String("role", role))
	return user, nil
}

// Authenticate verifies credentials. Unknown users and wrong passwords are
// indistinguishable to the caller.
func (s *Store) Authenticate(ctx context.Context, username, password string) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).First(&user, "username = ?", username).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.NewError(types.ErrUnauthorized, "invalid credentials")
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, types.NewError(types.ErrUnauthorized, "invalid credentials")
	}
	return &user, nil
}

// CountUsers returns the number of admin accounts; used for first-run
// bootstrap.
func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&User{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}
