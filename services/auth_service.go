package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/frisbee-cz/evidence/models"
	"github.com/frisbee-cz/evidence/repositories"
	"github.com/frisbee-cz/evidence/utils"
	"github.com/golang-jwt/jwt/v4"
)

const (
	tokenTTL          = 24 * time.Hour
	minPasswordLength = 8
)

type AuthService struct {
	agents    repositories.AgentRepository
	jwtSecret []byte
	logger    *slog.Logger
}

func NewAuthService(agents repositories.AgentRepository, jwtSecret string, logger *slog.Logger) *AuthService {
	return &AuthService{
		agents:    agents,
		jwtSecret: []byte(jwtSecret),
		logger:    logger,
	}
}

type RegisterInput struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*models.Agent, string, error) {
	if input.FirstName == "" || input.LastName == "" {
		return nil, "", NewValidationError("first_name", "This field is required")
	}
	if !utils.IsValidEmail(input.Email) {
		return nil, "", NewValidationError("email", "Enter a valid email address")
	}
	if len(input.Password) < minPasswordLength {
		return nil, "", ErrPasswordTooShort
	}

	hash, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, "", fmt.Errorf("hashing password: %w", err)
	}

	agent := &models.Agent{
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Email:        input.Email,
		PasswordHash: hash,
		// New agents get email copies of club notifications until they
		// opt out.
		HasEmailNotificationsEnabled: true,
	}
	if err := s.agents.Create(ctx, agent); err != nil {
		if errors.Is(err, repositories.ErrAgentEmailExists) {
			return nil, "", ErrAgentEmailConflict
		}
		return nil, "", err
	}

	token, err := s.issueToken(agent)
	if err != nil {
		return nil, "", err
	}

	s.logger.Info("agent registered", slog.Int("agent_id", agent.ID))
	agent.PasswordHash = ""
	return agent, token, nil
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (*models.Agent, string, error) {
	agent, err := s.agents.GetByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, repositories.ErrAgentNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}

	if !utils.CheckPasswordHash(input.Password, agent.PasswordHash) {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.issueToken(agent)
	if err != nil {
		return nil, "", err
	}

	agent.PasswordHash = ""
	return agent, token, nil
}

func (s *AuthService) GetAgent(ctx context.Context, id int) (*models.Agent, error) {
	agent, err := s.agents.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrAgentNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	agent.PasswordHash = ""
	return agent, nil
}

func (s *AuthService) SetEmailNotifications(ctx context.Context, caller Caller, enabled bool) error {
	return s.agents.SetEmailNotifications(ctx, caller.AgentID, enabled)
}

// AddAffiliation links an agent to a club. Admin only, affiliations are
// granted by the federation office.
func (s *AuthService) AddAffiliation(ctx context.Context, caller Caller, agentID, clubID int) (*models.AgentAtClub, error) {
	if !caller.IsAdmin {
		return nil, ErrForbiddenOperation
	}
	affiliation := &models.AgentAtClub{
		AgentID:  agentID,
		ClubID:   clubID,
		IsActive: true,
	}
	if err := s.agents.CreateAffiliation(ctx, affiliation); err != nil {
		if errors.Is(err, repositories.ErrAffiliationExists) {
			return nil, NewValidationError("club_id", "Agent is already affiliated with this club")
		}
		if errors.Is(err, repositories.ErrAgentNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return affiliation, nil
}

func (s *AuthService) SetAffiliationActive(ctx context.Context, caller Caller, affiliationID int, active bool) error {
	if !caller.IsAdmin {
		return ErrForbiddenOperation
	}
	return s.agents.SetAffiliationActive(ctx, affiliationID, active)
}

// ListClubs returns the clubs the caller may act for.
func (s *AuthService) ListClubs(ctx context.Context, caller Caller) ([]int, error) {
	return s.agents.ListClubIDsByAgent(ctx, caller.AgentID)
}

func (s *AuthService) issueToken(agent *models.Agent) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"agent_id": agent.ID,
		"is_admin": agent.IsAdmin,
		"iat":      now.Unix(),
		"exp":      now.Add(tokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}
