package usecase

import (
	"context"
	"errors"
	"time"

	"seat-reservation/internal/data/entity"
	"seat-reservation/internal/data/repository"
	"seat-reservation/internal/dto/request"
	"seat-reservation/internal/dto/response"
	"seat-reservation/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type AuthService interface {
	Login(ctx context.Context, req *request.LoginRequest, meta SessionMeta) (*response.AuthResponse, error)
	Logout(ctx context.Context, token string) error
	// Authenticate resolves a session token to the caller.
	Authenticate(ctx context.Context, token string) (utils.Actor, error)
}

// SessionMeta describes the client opening a session.
type SessionMeta struct {
	UserAgent string
	IPAddress string
}

type authService struct {
	repo          *repository.Repository
	sessionExpiry time.Duration
	opts          options
	log           *zap.Logger
}

func NewAuthService(repo *repository.Repository, config *utils.Config, log *zap.Logger, opts ...Option) AuthService {
	expiry := time.Duration(config.Session.ExpiryHours) * time.Hour
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	return &authService{
		repo:          repo,
		sessionExpiry: expiry,
		opts:          buildOptions(opts),
		log:           log.With(zap.String("service", "auth")),
	}
}

func (s *authService) Login(ctx context.Context, req *request.LoginRequest, meta SessionMeta) (*response.AuthResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Login validation failed", zap.Any("errors", errs))
		return nil, validationFailed(errs)
	}

	sctx, cancel := s.opts.storageContext(ctx)
	defer cancel()

	// The identifier may be an email or a username
	user, err := s.repo.User.FindByEmail(sctx, req.Username)
	if err != nil {
		return nil, storageError("find user", err)
	}
	if user == nil {
		user, err = s.repo.User.FindByUsername(sctx, req.Username)
		if err != nil {
			return nil, storageError("find user", err)
		}
	}

	if user == nil {
		s.log.Warn("User not found for login", zap.String("identifier", req.Username))
		return nil, newError(KindUnauthenticated, "invalid credentials")
	}

	if !utils.CheckPasswordHash(req.Password, user.PasswordHash) {
		s.log.Warn("Invalid password", zap.String("user_id", user.ID.String()))
		return nil, newError(KindUnauthenticated, "invalid credentials")
	}

	if !user.IsActive {
		s.log.Warn("Inactive user tried to login", zap.String("user_id", user.ID.String()))
		return nil, newError(KindUnauthenticated, "account is deactivated")
	}

	session, err := s.createSession(sctx, user.ID, meta)
	if err != nil {
		return nil, storageError("create session", err)
	}

	s.log.Info("User logged in",
		zap.String("user_id", user.ID.String()),
		zap.String("username", user.Username))

	resp := response.AuthToResponse(user, session)
	return &resp, nil
}

func (s *authService) Logout(ctx context.Context, token string) error {
	tokenUUID, err := uuid.Parse(token)
	if err != nil {
		return newError(KindUnauthenticated, "invalid token format")
	}

	sctx, cancel := s.opts.storageContext(ctx)
	defer cancel()

	if err := s.repo.Session.Revoke(sctx, tokenUUID); err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return newError(KindUnauthenticated, "session not found or already revoked")
		}
		return storageError("revoke session", err)
	}

	s.log.Info("User logged out")
	return nil
}

func (s *authService) Authenticate(ctx context.Context, token string) (utils.Actor, error) {
	tokenUUID, err := uuid.Parse(token)
	if err != nil {
		return utils.Actor{}, newError(KindUnauthenticated, "invalid token format")
	}

	sctx, cancel := s.opts.storageContext(ctx)
	defer cancel()

	session, err := s.repo.Session.FindValidSession(sctx, tokenUUID)
	if err != nil {
		return utils.Actor{}, storageError("find session", err)
	}
	if session == nil {
		return utils.Actor{}, newError(KindUnauthenticated, "invalid or expired session")
	}

	user, err := s.repo.User.FindByID(sctx, session.UserID)
	if err != nil {
		return utils.Actor{}, storageError("find user", err)
	}
	if user == nil || !user.IsActive {
		return utils.Actor{}, newError(KindUnauthenticated, "account is not active")
	}

	return utils.Actor{UserID: user.ID, Role: string(user.Role)}, nil
}

func (s *authService) createSession(ctx context.Context, userID uuid.UUID, meta SessionMeta) (*entity.Session, error) {
	now := s.opts.now()
	session := &entity.Session{
		BaseSimple: entity.BaseSimple{
			ID:        uuid.New(),
			CreatedAt: now,
		},
		UserID:    userID,
		Token:     utils.GenerateSessionToken(),
		ExpiresAt: now.Add(s.sessionExpiry),
	}
	if meta.UserAgent != "" {
		session.UserAgent = &meta.UserAgent
	}
	if meta.IPAddress != "" {
		session.IPAddress = &meta.IPAddress
	}

	if err := s.repo.Session.Create(ctx, session); err != nil {
		return nil, err
	}

	return session, nil
}
