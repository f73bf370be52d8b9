package service

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/decipherworld/classroom-server/internal/errors"
	"github.com/decipherworld/classroom-server/internal/models"
	"github.com/decipherworld/classroom-server/internal/repository"
	"github.com/decipherworld/classroom-server/internal/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type authService struct {
	facilitatorRepo repository.FacilitatorRepository
	jwtManager      *utils.JWTManager
	log             *zap.Logger
}

// NewAuthService creates the facilitator auth service
func NewAuthService(
	facilitatorRepo repository.FacilitatorRepository,
	jwtManager *utils.JWTManager,
	log *zap.Logger,
) AuthService {
	return &authService{
		facilitatorRepo: facilitatorRepo,
		jwtManager:      jwtManager,
		log:             log,
	}
}

func (s *authService) Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error) {
	exists, err := s.facilitatorRepo.EmailExists(ctx, req.Email)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
	}
	if exists {
		return nil, apperrors.New(apperrors.ErrAlreadyExists, "email already registered")
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrUnknown, "password hashing failed")
	}

	facilitator := &models.Facilitator{
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: hash,
		School:       req.School,
		Status:       "active",
	}
	if err := s.facilitatorRepo.Create(ctx, facilitator); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseInsert)
	}

	s.log.Info("facilitator registered",
		zap.Uint("facilitator_id", facilitator.ID),
		zap.String("email", facilitator.Email))

	return s.issueTokens(facilitator)
}

func (s *authService) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	facilitator, err := s.facilitatorRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.ErrAuthentication, "invalid email or password")
		}
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
	}
	if facilitator.Status != "active" {
		return nil, apperrors.New(apperrors.ErrAuthorization, "account is not active")
	}

	valid, err := utils.VerifyPassword(req.Password, facilitator.PasswordHash)
	if err != nil || !valid {
		return nil, apperrors.New(apperrors.ErrAuthentication, "invalid email or password")
	}

	if err := s.facilitatorRepo.UpdateLastLogin(ctx, facilitator.ID); err != nil {
		s.log.Warn("failed to record login time",
			zap.Uint("facilitator_id", facilitator.ID), zap.Error(err))
	} else {
		now := time.Now()
		facilitator.LastLoginAt = &now
	}

	return s.issueTokens(facilitator)
}

func (s *authService) RefreshToken(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	claims, err := s.jwtManager.ValidateToken(refreshToken)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrTokenInvalid)
	}
	if claims.TokenType != "refresh" {
		return nil, apperrors.New(apperrors.ErrTokenInvalid, "not a refresh token")
	}

	facilitator, err := s.facilitatorRepo.FindByID(ctx, claims.FacilitatorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.ErrAuthentication)
		}
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
	}
	if facilitator.Status != "active" {
		return nil, apperrors.New(apperrors.ErrAuthorization, "account is not active")
	}

	return s.issueTokens(facilitator)
}

func (s *authService) GetProfile(ctx context.Context, facilitatorID uint) (*models.Facilitator, error) {
	facilitator, err := s.facilitatorRepo.FindByID(ctx, facilitatorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.ErrNotFound, "facilitator not found")
		}
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
	}
	return facilitator, nil
}

func (s *authService) issueTokens(facilitator *models.Facilitator) (*AuthResponse, error) {
	access, err := s.jwtManager.GenerateAccessToken(facilitator.ID, facilitator.Email, facilitator.Name)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrUnknown, "token generation failed")
	}
	refresh, err := s.jwtManager.GenerateRefreshToken(facilitator.ID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrUnknown, "token generation failed")
	}

	return &AuthResponse{
		Facilitator:  facilitator,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.jwtManager.GetTokenExpiry("access").Seconds()),
		TokenType:    "Bearer",
	}, nil
}
