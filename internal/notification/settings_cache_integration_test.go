//go:build integration

package notification_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"gestionale/internal/notification"
	id "gestionale/pkg/domain"
	"gestionale/pkg/testutil/containers"
)

type CachedSettingsSuite struct {
	suite.Suite
	redis *containers.RedisContainer
}

func TestCachedSettingsSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(CachedSettingsSuite))
}

func (s *CachedSettingsSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
}

func (s *CachedSettingsSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *CachedSettingsSuite) TestReadThrough() {
	ctx := context.Background()
	inner := notification.NewMemorySettings()
	inner.Set("compensation_rejected", id.RoleCollaboratore, notification.ChannelEmail, false)
	cached := notification.NewCachedSettings(inner, s.redis.Client, time.Minute)

	enabled, err := cached.Enabled(ctx, "compensation_rejected", id.RoleCollaboratore, notification.ChannelEmail)
	s.Require().NoError(err)
	s.False(enabled)

	// Now served from the cache: flipping the inner store has no effect
	// until the TTL expires.
	inner.Set("compensation_rejected", id.RoleCollaboratore, notification.ChannelEmail, true)
	enabled, err = cached.Enabled(ctx, "compensation_rejected", id.RoleCollaboratore, notification.ChannelEmail)
	s.Require().NoError(err)
	s.False(enabled)
}

func (s *CachedSettingsSuite) TestTTLExpiry() {
	ctx := context.Background()
	inner := notification.NewMemorySettings()
	inner.Set("reimbursement_approved", id.RoleCollaboratore, notification.ChannelInApp, false)
	cached := notification.NewCachedSettings(inner, s.redis.Client, time.Second)

	enabled, err := cached.Enabled(ctx, "reimbursement_approved", id.RoleCollaboratore, notification.ChannelInApp)
	s.Require().NoError(err)
	s.False(enabled)

	inner.Set("reimbursement_approved", id.RoleCollaboratore, notification.ChannelInApp, true)
	time.Sleep(1500 * time.Millisecond)

	enabled, err = cached.Enabled(ctx, "reimbursement_approved", id.RoleCollaboratore, notification.ChannelInApp)
	s.Require().NoError(err)
	s.True(enabled, "expired key should re-read the inner store")
}

func (s *CachedSettingsSuite) TestDefaultEnabledIsCached() {
	ctx := context.Background()
	cached := notification.NewCachedSettings(notification.NewMemorySettings(), s.redis.Client, time.Minute)

	enabled, err := cached.Enabled(ctx, "compensation_liquidated", id.RoleCollaboratore, notification.ChannelEmail)
	s.Require().NoError(err)
	s.True(enabled)

	val, err := s.redis.Client.Get(ctx, "delivery-settings:compensation_liquidated:collaboratore:email").Result()
	s.Require().NoError(err)
	s.Equal("1", val)
}
