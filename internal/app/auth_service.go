package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"service-order-attachments/internal/model"
	"service-order-attachments/internal/pkg/jwtutil"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrUsernameExists    = errors.New("username already exists")
	ErrInvalidCredential = errors.New("invalid username or password")
)

// OperatorStore is satisfied by repository.OperatorRepository.
type OperatorStore interface {
	Create(ctx context.Context, operator *model.Operator) error
	GetByUsername(ctx context.Context, username string) (*model.Operator, error)
	GetByID(ctx context.Context, id uint) (*model.Operator, error)
}

type AuthService struct {
	operators     OperatorStore
	jwtSecret     string
	jwtExpiration time.Duration
}

type RegisterInput struct {
	Username   string
	Password   string
	Workcenter string
}

type LoginInput struct {
	Username string
	Password string
}

type AuthResult struct {
	Token    string
	Operator *model.Operator
}

func NewAuthService(operators OperatorStore, jwtSecret string, jwtExpiration time.Duration) *AuthService {
	return &AuthService{
		operators:     operators,
		jwtSecret:     jwtSecret,
		jwtExpiration: jwtExpiration,
	}
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	operator, err := s.CreateOperator(ctx, input)
	if err != nil {
		return nil, err
	}

	token, err := jwtutil.GenerateToken(s.jwtSecret, s.jwtExpiration, operator.ID, operator.Username)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, Operator: operator}, nil
}

// CreateOperator stores a new operator without issuing a token. The CLI uses
// it directly.
func (s *AuthService) CreateOperator(ctx context.Context, input RegisterInput) (*model.Operator, error) {
	username := strings.TrimSpace(input.Username)
	password := strings.TrimSpace(input.Password)
	workcenter := strings.TrimSpace(input.Workcenter)

	if username == "" || password == "" || len(password) < 8 {
		return nil, ErrInvalidInput
	}

	existing, err := s.operators.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUsernameExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password failed: %w", err)
	}

	operator := &model.Operator{
		Username:     username,
		PasswordHash: string(hash),
		Workcenter:   workcenter,
	}
	if err := s.operators.Create(ctx, operator); err != nil {
		return nil, err
	}
	return operator, nil
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	username := strings.TrimSpace(input.Username)
	password := strings.TrimSpace(input.Password)
	if username == "" || password == "" {
		return nil, ErrInvalidInput
	}

	operator, err := s.operators.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if operator == nil {
		return nil, ErrInvalidCredential
	}

	if err := bcrypt.CompareHashAndPassword([]byte(operator.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredential
	}

	token, err := jwtutil.GenerateToken(s.jwtSecret, s.jwtExpiration, operator.ID, operator.Username)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, Operator: operator}, nil
}

func (s *AuthService) GetOperatorByID(ctx context.Context, id uint) (*model.Operator, error) {
	if id == 0 {
		return nil, ErrInvalidInput
	}
	return s.operators.GetByID(ctx, id)
}
