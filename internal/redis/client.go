// Package redis provides the shared Redis client used for OAuth2 state
// tokens and send statistics. Redis is optional; when no address is
// configured the callers fall back to in-memory implementations.
package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"smtp-relay/internal/common/errors"
	"smtp-relay/internal/common/logging"
)

// Config holds Redis connection settings
type Config struct {
	Address  string
	Password string
	DB       int
}

// NewClient connects to Redis and verifies the connection with a ping
func NewClient(cfg Config, logger logging.Logger) (*redis.Client, error) {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.ConnectionError("failed to connect to redis", err).
			WithContext("address", cfg.Address)
	}

	logger.Info("Connected to Redis", logging.String("address", cfg.Address))
	return client, nil
}
