package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"github.com/wolfman30/report-ivr/internal/calllog"
	"github.com/wolfman30/report-ivr/internal/calls"
	appconfig "github.com/wolfman30/report-ivr/internal/config"
	"github.com/wolfman30/report-ivr/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available, call log disabled", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildCallLog returns the Redis call log, or nil when Redis is not configured.
func BuildCallLog(redisClient *redis.Client) calls.CallLog {
	if redisClient == nil {
		return nil
	}
	return calllog.NewStore(redisClient, otel.Tracer("report-ivr.calllog"))
}
