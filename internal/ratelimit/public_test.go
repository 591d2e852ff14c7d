package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smallbiznis/estately/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

type mockBucket struct {
	mock.Mock
}

func (m *mockBucket) Allow(ctx context.Context, key string, rate float64, burst int) (*Result, error) {
	args := m.Called(ctx, key, rate, burst)
	res, _ := args.Get(0).(*Result)
	return res, args.Error(1)
}

func newLimiter(bucket Bucket) *PublicToolLimiter {
	cfg := config.DefaultQueryConfig()
	cfg.PublicRate = 2
	cfg.PublicBurst = 10
	return NewPublicToolLimiter(PublicParams{
		Bucket: bucket,
		Query:  config.NewStaticQueryConfigHolder(cfg),
		Log:    zap.NewNop(),
	})
}

func TestPublicToolLimiterWithoutBucketAllowsEverything(t *testing.T) {
	limiter := newLimiter(nil)
	assert.False(t, limiter.Enabled())
	assert.True(t, limiter.Allow(context.Background(), "10.0.0.1", "get_properties").Allowed)

	var missing *PublicToolLimiter
	assert.True(t, missing.Allow(context.Background(), "10.0.0.1", "get_properties").Allowed)
}

func TestPublicToolLimiterUsesConfiguredBucket(t *testing.T) {
	bucket := &mockBucket{}
	bucket.On("Allow", mock.Anything, "estately:public:10.0.0.1", 2.0, 10).
		Return(&Result{Allowed: true, Limit: 10, Remaining: 9}, nil).Once()
	bucket.On("Allow", mock.Anything, "estately:public:10.0.0.1", 2.0, 10).
		Return(&Result{Allowed: false, Limit: 10, RetryAfter: 500 * time.Millisecond}, nil).Once()

	limiter := newLimiter(bucket)
	first := limiter.Allow(context.Background(), " 10.0.0.1 ", "get_properties")
	assert.True(t, first.Allowed)
	assert.Equal(t, 9, first.Remaining)

	second := limiter.Allow(context.Background(), "10.0.0.1", "get_properties")
	assert.False(t, second.Allowed)
	assert.Equal(t, 500*time.Millisecond, second.RetryAfter)
	bucket.AssertExpectations(t)
}

func TestPublicToolLimiterFailsOpen(t *testing.T) {
	bucket := &mockBucket{}
	bucket.On("Allow", mock.Anything, "estately:public:unknown", 2.0, 10).
		Return(nil, errors.New("connection refused"))

	decision := newLimiter(bucket).Allow(context.Background(), "", "get_property")
	assert.True(t, decision.Allowed)
	bucket.AssertExpectations(t)
}

func TestBucketTTL(t *testing.T) {
	assert.Equal(t, 10*time.Second, bucketTTL(2, 10))
	assert.Equal(t, time.Second, bucketTTL(100, 1))
}

func TestNilLockerRunsCallback(t *testing.T) {
	var locker *Locker
	called := false
	err := locker.WithLock(context.Background(), "seed", time.Minute, func(context.Context) error {
		called = true
		return nil
	})
	assert.NoError(t, err)
	assert.True(t, called)
	assert.Nil(t, NewLocker(nil))
	assert.Nil(t, NewBucket(nil))
}

func TestScriptReplyParsing(t *testing.T) {
	assert.Equal(t, int64(1), toInt(int64(1)))
	assert.Equal(t, int64(7), toInt("7"))
	assert.InDelta(t, 2.5, toFloat("2.5"), 1e-9)
	assert.InDelta(t, 3.0, toFloat(int64(3)), 1e-9)
}
