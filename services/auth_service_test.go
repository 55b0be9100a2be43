package services

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "test-secret"

func newAuthService() (*AuthService, *fakeAgentRepo) {
	agents := &fakeAgentRepo{}
	return NewAuthService(agents, testJWTSecret, testLogger()), agents
}

func validRegisterInput() RegisterInput {
	return RegisterInput{
		FirstName: "Karel",
		LastName:  "Dvořák",
		Email:     "karel@example.com",
		Password:  "velmi tajné heslo",
	}
}

func TestRegisterIssuesToken(t *testing.T) {
	svc, _ := newAuthService()

	agent, token, err := svc.Register(context.Background(), validRegisterInput())
	require.NoError(t, err)

	assert.NotZero(t, agent.ID)
	assert.Empty(t, agent.PasswordHash, "hash never leaves the service")
	assert.True(t, agent.HasEmailNotificationsEnabled, "new agents are opted in")

	parsed, err := jwt.Parse(token, func(*jwt.Token) (interface{}, error) {
		return []byte(testJWTSecret), nil
	})
	require.NoError(t, err)
	claims, ok := parsed.Claims.(jwt.MapClaims)
	require.True(t, ok)
	assert.Equal(t, float64(agent.ID), claims["agent_id"])
	assert.Equal(t, false, claims["is_admin"])
	assert.NotNil(t, claims["exp"])
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newAuthService()

	input := validRegisterInput()
	input.Password = "short"
	_, _, err := svc.Register(context.Background(), input)
	assert.ErrorIs(t, err, ErrPasswordTooShort)

	input = validRegisterInput()
	input.Email = "not-an-email"
	_, _, err = svc.Register(context.Background(), input)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "email", vErr.Field)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _ := newAuthService()

	_, _, err := svc.Register(context.Background(), validRegisterInput())
	require.NoError(t, err)

	_, _, err = svc.Register(context.Background(), validRegisterInput())
	assert.ErrorIs(t, err, ErrAgentEmailConflict)
}

func TestLogin(t *testing.T) {
	svc, _ := newAuthService()

	registered, _, err := svc.Register(context.Background(), validRegisterInput())
	require.NoError(t, err)
	agent, token, err := svc.Login(context.Background(), LoginInput{
		Email:    "karel@example.com",
		Password: "velmi tajné heslo",
	})
	require.NoError(t, err)
	assert.Equal(t, registered.ID, agent.ID)
	assert.NotEmpty(t, token)

	_, _, err = svc.Login(context.Background(), LoginInput{
		Email:    "karel@example.com",
		Password: "wrong password",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// An unknown email gets the same error, no account enumeration.
	_, _, err = svc.Login(context.Background(), LoginInput{
		Email:    "nobody@example.com",
		Password: "velmi tajné heslo",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAffiliationOperationsAreAdminOnly(t *testing.T) {
	svc, _ := newAuthService()

	_, err := svc.AddAffiliation(context.Background(), Caller{AgentID: 1}, 2, 10)
	assert.ErrorIs(t, err, ErrForbiddenOperation)

	err = svc.SetAffiliationActive(context.Background(), Caller{AgentID: 1}, 5, false)
	assert.ErrorIs(t, err, ErrForbiddenOperation)
}
