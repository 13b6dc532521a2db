package auth

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTokenSource struct {
	calls atomic.Int32
	token string
	err   error
}

func (f *fakeTokenSource) Login(ctx context.Context, apiKey string) (string, error) {
	f.calls.Add(1)
	if f.err != nil {
		return "", f.err
	}
	return f.token, nil
}

func TestCredentialCache_RunPopulatesTokenImmediately(t *testing.T) {
	source := &fakeTokenSource{token: "tok-1"}
	cache := NewCredentialCache(source, "long-lived-key", time.Hour, 5, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go cache.Run(ctx)

	token, err := cache.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)
}

func TestCredentialCache_Token_BoundedRetryTimesOutWithoutRefresh(t *testing.T) {
	source := &fakeTokenSource{err: errors.New("login unreachable")}
	cache := NewCredentialCache(source, "long-lived-key", time.Hour, 3, time.Millisecond)

	cache.refresh(context.Background())

	_, err := cache.Token(context.Background())
	assert.Error(t, err)
	assert.GreaterOrEqual(t, source.calls.Load(), int32(1))
}

func TestCredentialCache_RefreshKeepsStaleTokenOnFailure(t *testing.T) {
	source := &fakeTokenSource{token: "tok-good"}
	cache := NewCredentialCache(source, "long-lived-key", time.Hour, 5, time.Millisecond)
	cache.refresh(context.Background())

	source.err = errors.New("upstream down")
	cache.refresh(context.Background())

	token, err := cache.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-good", token)
}
