package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"ats-scorer-go/internal/config"
)

// Storage aggregates the backing services. Components whose config is
// empty or whose connection fails are left nil.
type Storage struct {
	MinIO    *MinIO
	RabbitMQ *RabbitMQ
	MySQL    *MySQL
	Redis    *Redis
}

// NewStorage connects every configured component. It fails only when none
// of them could be initialized.
func NewStorage(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Storage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	storage := &Storage{}
	var err error
	var initErrors []string

	if cfg.MinIO.Endpoint != "" {
		storage.MinIO, err = NewMinIO(&cfg.MinIO, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("minio unavailable")
			initErrors = append(initErrors, fmt.Sprintf("MinIO: %v", err))
		}
	}

	if cfg.RabbitMQ.URL != "" {
		storage.RabbitMQ, err = NewRabbitMQ(&cfg.RabbitMQ, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("rabbitmq unavailable")
			initErrors = append(initErrors, fmt.Sprintf("RabbitMQ: %v", err))
		}
	}

	if cfg.MySQL.Host != "" {
		storage.MySQL, err = NewMySQL(&cfg.MySQL)
		if err != nil {
			logger.Warn().Err(err).Msg("mysql unavailable")
			initErrors = append(initErrors, fmt.Sprintf("MySQL: %v", err))
		}
	}

	if cfg.Redis.Address != "" {
		storage.Redis, err = NewRedisAdapter(&cfg.Redis)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable")
			initErrors = append(initErrors, fmt.Sprintf("Redis: %v", err))
		}
	}

	if storage.MinIO == nil && storage.RabbitMQ == nil && storage.MySQL == nil && storage.Redis == nil {
		return nil, fmt.Errorf("all storage components failed: %s", strings.Join(initErrors, "; "))
	}
	return storage, nil
}

// Ping reports the health of each initialized component.
func (s *Storage) Ping(ctx context.Context) map[string]string {
	status := map[string]string{}
	check := func(name string, ok bool, ping func() error) {
		if !ok {
			status[name] = "disabled"
			return
		}
		if err := ping(); err != nil {
			status[name] = "down: " + err.Error()
			return
		}
		status[name] = "up"
	}
	check("redis", s.Redis != nil, func() error { return s.Redis.Ping(ctx) })
	check("mysql", s.MySQL != nil, func() error {
		sqlDB, err := s.MySQL.DB().DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	})
	check("rabbitmq", s.RabbitMQ != nil, func() error {
		if s.RabbitMQ.conn.IsClosed() {
			return fmt.Errorf("connection closed")
		}
		return nil
	})
	check("minio", s.MinIO != nil, func() error {
		_, err := s.MinIO.client.BucketExists(ctx, s.MinIO.uploadsBucket)
		return err
	})
	return status
}

// Check returns an error naming every initialized component that is down.
func (s *Storage) Check(ctx context.Context) error {
	var down []string
	for name, state := range s.Ping(ctx) {
		if strings.HasPrefix(state, "down") {
			down = append(down, name+" "+state)
		}
	}
	if len(down) > 0 {
		sort.Strings(down)
		return fmt.Errorf("storage unhealthy: %s", strings.Join(down, "; "))
	}
	return nil
}

// Close closes all connections.
func (s *Storage) Close() {
	if s.RabbitMQ != nil {
		_ = s.RabbitMQ.Close()
	}
	if s.MySQL != nil {
		_ = s.MySQL.Close()
	}
	if s.Redis != nil {
		_ = s.Redis.Close()
	}
}
