package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"meetuply/internal/domain"
	"meetuply/internal/pkg/jwt"
)

type Service struct {
	db     *gorm.DB
	tokens *jwt.Service
	log    *zap.Logger
}

func NewService(db *gorm.DB, tokens *jwt.Service, log *zap.Logger) *Service {
	return &Service{db: db, tokens: tokens, log: log}
}

type LoginResult struct {
	User  *domain.User
	Token string
}

// Register creates an account. The gateway customer key is minted here
// so the first payment does not need an extra step.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*LoginResult, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	var existing domain.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&existing).Error
	if err == nil {
		return nil, ErrEmailTaken
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Email:        email,
		PasswordHash: string(hash),
		Name:         req.Name,
		Gender:       domain.Gender(req.Gender),
		BirthDate:    req.BirthDate,
		CustomerKey:  uuid.NewString(),
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	token, err := s.tokens.GenerateToken(user.ID)
	if err != nil {
		return nil, err
	}

	s.log.Info("user registered", zap.Int64("user_id", user.ID))
	return &LoginResult{User: user, Token: token}, nil
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	var user domain.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.GenerateToken(user.ID)
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: &user, Token: token}, nil
}

func (s *Service) GetByID(ctx context.Context, userID int64) (*domain.User, error) {
	var user domain.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique constraint") || strings.Contains(msg, "unique failed")
}
