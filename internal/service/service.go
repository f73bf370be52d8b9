package service

import (
	"time"

	"github.com/decipherworld/classroom-server/internal/repository"
	"github.com/decipherworld/classroom-server/internal/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Config service-layer settings
type Config struct {
	JWTSecret          string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration

	DefaultThresholdPercent int
	DefaultCountdown        time.Duration
	JoinCodeLength          int
	MaxInputsPerSubmission  int

	RateLimitEnabled     bool
	SubmissionsPerWindow int
	RateLimitWindow      time.Duration
}

// DefaultConfig default settings
func DefaultConfig() *Config {
	return &Config{
		JWTSecret:               "change-me-in-production",
		AccessTokenExpiry:       12 * time.Hour,
		RefreshTokenExpiry:      7 * 24 * time.Hour,
		DefaultThresholdPercent: 100,
		DefaultCountdown:        5 * time.Second,
		JoinCodeLength:          6,
		MaxInputsPerSubmission:  10,
		RateLimitEnabled:        true,
		SubmissionsPerWindow:    10,
		RateLimitWindow:         60 * time.Second,
	}
}

// Services service collection
type Services struct {
	Auth        AuthService
	Session     SessionService
	Progression ProgressionService
	RateLimiter *RateLimiter
}

// NewServices wires repositories and services. The broadcaster is usually
// the websocket hub; pass nil to drop events (tests, migrations).
func NewServices(db *gorm.DB, cfg *Config, broadcaster Broadcaster, log *zap.Logger) *Services {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	gameRepo := repository.NewGameRepository(db)
	missionRepo := repository.NewMissionRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	teamRepo := repository.NewTeamRepository(db)
	inputRepo := repository.NewPhaseInputRepository(db)
	trackerRepo := repository.NewCompletionTrackerRepository(db)
	progRepo := repository.NewTeamProgressRepository(db)
	facilitatorRepo := repository.NewFacilitatorRepository(db)

	jwtManager := utils.NewJWTManager(
		cfg.JWTSecret,
		cfg.AccessTokenExpiry,
		cfg.RefreshTokenExpiry,
	)

	validator := NewInputValidator(teamRepo, missionRepo, inputRepo, cfg.MaxInputsPerSubmission)

	var limiter *RateLimiter
	if cfg.RateLimitEnabled {
		limiter = NewRateLimiter(cfg.SubmissionsPerWindow, cfg.RateLimitWindow)
	}

	return &Services{
		Auth: NewAuthService(facilitatorRepo, jwtManager, log.Named("auth")),
		Session: NewSessionService(
			sessionRepo, gameRepo, missionRepo, teamRepo, trackerRepo,
			log.Named("session"), cfg.JoinCodeLength,
		),
		Progression: NewProgressionService(
			db, sessionRepo, teamRepo, missionRepo, inputRepo, trackerRepo, progRepo,
			validator, broadcaster, log.Named("progression"),
			cfg.DefaultThresholdPercent, cfg.DefaultCountdown,
		),
		RateLimiter: limiter,
	}
}
