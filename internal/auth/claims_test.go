package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signUnverifiedToken(t *testing.T, claims *Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("any-key-since-we-never-verify"))
	require.NoError(t, err)
	return signed
}

func TestParseClaims_RoundTrips(t *testing.T) {
	want := &Claims{
		OwnerID:             "owner-1",
		IsAPIToken:          true,
		APITokenMachineGUID: "worker-7",
		ProjectID:           "proj-9",
		Issuer:              "pamaxie-db-api",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed := signUnverifiedToken(t, want)

	got, err := ParseClaims(signed)
	require.NoError(t, err)
	assert.Equal(t, want.OwnerID, got.OwnerID)
	assert.Equal(t, want.IsAPIToken, got.IsAPIToken)
	assert.Equal(t, want.APITokenMachineGUID, got.APITokenMachineGUID)
	assert.Equal(t, want.ProjectID, got.ProjectID)
}

func TestParseClaims_MalformedTokenIsAnError(t *testing.T) {
	_, err := ParseClaims("not-a-jwt")
	assert.Error(t, err)
}

func TestMachineGUID_EmptyForNonAPIToken(t *testing.T) {
	claims := &Claims{IsAPIToken: false, APITokenMachineGUID: "worker-7"}
	assert.Equal(t, "", claims.MachineGUID())
}

func TestMachineGUID_PresentForAPIToken(t *testing.T) {
	claims := &Claims{IsAPIToken: true, APITokenMachineGUID: "worker-7"}
	assert.Equal(t, "worker-7", claims.MachineGUID())
}
