package redis

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	dialTimeout = 3 * time.Second
	pingTimeout = 5 * time.Second
)

type RedisConfig struct {
	Host      string `json:"host"`
	Port      int    `json:"port"`
	Password  string `json:"password"`
	Namespace string `json:"namespace"`
}

type RedisSentinelConfig struct {
	SentinelHost     string `json:"sentinel_host"`
	SentinelPort     int    `json:"sentinel_port"`
	Password         string `json:"password"`
	MasterName       string `json:"master_name"`
	SentinelUsername string `json:"sentinel_username"`
	Namespace        string `json:"namespace"`
}

// Key builds the namespaced key all stores in this service use: namespace:kind:id.
func Key(namespace, kind, id string) string {
	return fmt.Sprintf("%s:%s:%s", namespace, kind, id)
}

// NewRedisClient connects to a standalone Redis and pings it before returning.
func NewRedisClient(config *RedisConfig) (*redis.Client, error) {
	if config.Host == "" {
		return nil, fmt.Errorf("failed to connect to Redis: no host configured")
	}

	client := redis.NewClient(&redis.Options{
		Addr:        net.JoinHostPort(config.Host, strconv.Itoa(config.Port)),
		Password:    config.Password,
		DialTimeout: dialTimeout,
	})
	if err := ping(client); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	slog.Info("Connected to Redis", "host", config.Host, "port", config.Port, "namespace", config.Namespace)
	return client, nil
}

// NewRedisSentinelClient resolves the master through a sentinel and pings it.
func NewRedisSentinelClient(config *RedisSentinelConfig) (*redis.Client, error) {
	if config.MasterName == "" {
		return nil, fmt.Errorf("failed to connect to Redis through Sentinel: no master name configured")
	}

	client := redis.NewFailoverClient(&redis.FailoverOptions{
		MasterName:       config.MasterName,
		SentinelAddrs:    []string{net.JoinHostPort(config.SentinelHost, strconv.Itoa(config.SentinelPort))},
		SentinelUsername: config.SentinelUsername,
		SentinelPassword: config.Password,
		Password:         config.Password,
		DialTimeout:      dialTimeout,
	})
	if err := ping(client); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis through Sentinel: %w", err)
	}

	slog.Info("Connected to Redis through Sentinel", "sentinel_host", config.SentinelHost, "master", config.MasterName)
	return client, nil
}

func ping(client *redis.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return err
	}
	return nil
}
