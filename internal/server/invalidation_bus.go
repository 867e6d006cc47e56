package server

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/asoforge/asoforge/modules/ruleset/domain/types"
	"github.com/asoforge/asoforge/modules/ruleset/services"
	"github.com/asoforge/asoforge/pkg/uuidv7"
)

const invalidationChannel = "asoforge:ruleset:invalidate"

type invalidationMessage struct {
	Origin         string `json:"origin"`
	Vertical       string `json:"vertical,omitempty"`
	Market         string `json:"market,omitempty"`
	OrganizationID string `json:"organization_id,omitempty"`
	AppID          string `json:"app_id,omitempty"`
}

// InvalidationBus fans ruleset cache invalidations out to every running
// instance over a Redis channel. Each instance invalidates its local
// cache immediately and publishes; subscribers skip messages they
// originated, since the local cache was already cleared.
type InvalidationBus struct {
	client   *redis.Client
	resolver *services.Resolver
	log      *zap.Logger
	origin   string
}

// NewInvalidationBusFromEnv returns nil when REDIS_ADDR is unset: a
// single-instance deployment needs no bus.
func NewInvalidationBusFromEnv(resolver *services.Resolver, log *zap.Logger) (*InvalidationBus, error) {
	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, nil
	}

	origin, err := uuidv7.NewString()
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	return &InvalidationBus{
		client:   client,
		resolver: resolver,
		log:      log,
		origin:   origin,
	}, nil
}

func (b *InvalidationBus) PublishInvalidation(scope types.Scope) {
	payload, err := json.Marshal(invalidationMessage{
		Origin:         b.origin,
		Vertical:       scope.Vertical,
		Market:         scope.Market,
		OrganizationID: scope.OrganizationID,
		AppID:          scope.AppID,
	})
	if err != nil {
		return
	}
	if err := b.client.Publish(context.Background(), invalidationChannel, payload).Err(); err != nil {
		b.log.Warn("invalidation publish failed", zap.Error(err))
	}
}

// Run subscribes and applies remote invalidations until ctx is done.
func (b *InvalidationBus) Run(ctx context.Context) {
	sub := b.client.Subscribe(ctx, invalidationChannel)
	defer func() { _ = sub.Close() }()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Channel():
			if !ok {
				return
			}
			var m invalidationMessage
			if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
				b.log.Warn("invalidation message malformed", zap.Error(err))
				continue
			}
			if m.Origin == b.origin {
				continue
			}
			scope := types.Scope{
				Vertical:       m.Vertical,
				Market:         m.Market,
				OrganizationID: m.OrganizationID,
				AppID:          m.AppID,
			}
			n := b.resolver.Invalidate(scope)
			b.log.Info("remote invalidation applied",
				zap.String("scope", scope.CacheKey()),
				zap.Int("entries", n))
		}
	}
}

func (b *InvalidationBus) Close() error {
	return b.client.Close()
}
