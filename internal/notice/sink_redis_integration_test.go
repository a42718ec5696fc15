//go:build integration

package notice_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"crowdvault/internal/notice"
	"crowdvault/pkg/domain"
	"crowdvault/pkg/testutil/containers"
)

type RedisSinkSuite struct {
	suite.Suite
	redis *containers.RedisContainer
}

func TestRedisSinkSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisSinkSuite))
}

func (s *RedisSinkSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
}

func (s *RedisSinkSuite) TestRecordPublishesToChannel() {
	ctx := context.Background()
	const channel = "crowdvault.notices.test"

	sub := s.redis.Client.Subscribe(ctx, channel)
	defer sub.Close()

	// Wait for the subscription before publishing so the message is not lost.
	_, err := sub.Receive(ctx)
	s.Require().NoError(err)

	sink := notice.NewRedisSink(s.redis.Client, channel)
	sent := notice.Event{
		ID:      "11111111-1111-1111-1111-111111111111",
		Kind:    notice.KindNewContribution,
		At:      time.Now().UTC(),
		Account: domain.AccountID("alice"),
		Amount:  250,
	}
	s.Require().NoError(sink.Record(ctx, sent))

	select {
	case msg := <-sub.Channel():
		var got notice.Event
		s.Require().NoError(json.Unmarshal([]byte(msg.Payload), &got))
		s.Equal(sent.ID, got.ID)
		s.Equal(sent.Kind, got.Kind)
		s.Equal(sent.Account, got.Account)
		s.Equal(sent.Amount, got.Amount)
	case <-time.After(5 * time.Second):
		s.Fail("timed out waiting for published notice")
	}
}
