//go:build e2e

package authtest

import (
	"testing"
	"time"

	"courtbook/internal/pkg/config"
	"courtbook/internal/pkg/jwt"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// IssueToken signs a bearer token for the given user with the same secret
// the app under test validates against.
func IssueToken(t *testing.T, cfg config.Config, userID uuid.UUID, role string) string {
	t.Helper()

	duration, err := time.ParseDuration(cfg.JWT.Duration)
	require.NoError(t, err)

	token, err := jwt.NewService(cfg.JWT.Secret, duration).GenerateToken(userID, role)
	require.NoError(t, err)
	return token
}
