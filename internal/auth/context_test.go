// ABOUTME: Tests for auth context propagation helpers
// ABOUTME: Covers WithAuth/FromContext round trips and missing-context cases

package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithAuth_FromContext(t *testing.T) {
	ctx := WithAuth(context.Background(), &AuthContext{UserID: "user-1"})

	authCtx := FromContext(ctx)
	require.NotNil(t, authCtx)
	assert.Equal(t, "user-1", authCtx.UserID)
}

func TestFromContext_Missing(t *testing.T) {
	authCtx := FromContext(context.Background())
	assert.Nil(t, authCtx)
}

func TestMustFromContext_PanicsWhenMissing(t *testing.T) {
	assert.Panics(t, func() {
		MustFromContext(context.Background())
	})
}

func TestMustFromContext_ReturnsWhenPresent(t *testing.T) {
	ctx := WithAuth(context.Background(), &AuthContext{UserID: "user-1"})

	authCtx := MustFromContext(ctx)
	assert.Equal(t, "user-1", authCtx.UserID)
}
