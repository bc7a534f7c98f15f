// Package service реализует бизнес-логику сервиса лояльности washbonus.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/washbonus/internal/notify"
	"github.com/mmeshcher/washbonus/internal/repository"
)

// ErrInvalidCredentials возвращается при неверной паре логин/пароль.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInsufficientVisits возвращается при запросе погашения раньше четвёртого визита.
	ErrInsufficientVisits = errors.New("not enough approved visits")
	// ErrAlreadyApproved возвращается при повторном одобрении транзакции.
	ErrAlreadyApproved = errors.New("transaction already approved")
)

// Service содержит бизнес-логику сервиса лояльности.
type Service struct {
	repo     repository.Repository
	notifier *notify.Client
	logger   *zap.Logger
}

// NewService создаёт новый сервис с указанным репозиторием и клиентом шлюза уведомлений.
func NewService(repo repository.Repository, notifier *notify.Client, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:     repo,
		notifier: notifier,
		logger:   logger,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// RegisterBusiness регистрирует новый бизнес-аккаунт.
func (s *Service) RegisterBusiness(ctx context.Context, login, password, name string) (uuid.UUID, error) {
	hashed := hashPassword(login, password)
	id, err := s.repo.CreateBusiness(ctx, login, hashed, name)
	if err != nil {
		if errors.Is(err, repository.ErrBusinessExists) {
			return uuid.Nil, repository.ErrBusinessExists
		}
		return uuid.Nil, err
	}
	return id, nil
}

// AuthenticateBusiness проверяет логин и пароль бизнеса и возвращает его идентификатор.
func (s *Service) AuthenticateBusiness(ctx context.Context, login, password string) (uuid.UUID, error) {
	b, err := s.repo.GetBusinessByLogin(ctx, login)
	if err != nil {
		return uuid.Nil, err
	}

	hashed := hashPassword(login, password)
	if hex.EncodeToString(hashed) != hex.EncodeToString(b.PasswordHash) {
		return uuid.Nil, ErrInvalidCredentials
	}

	return b.ID, nil
}

func hashPassword(login, password string) []byte {
	sum := sha256.Sum256([]byte(login + ":" + password))
	return sum[:]
}
