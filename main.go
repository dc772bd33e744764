package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"go-credential-verifier/logging"
	"go-credential-verifier/metrics"
	"go-credential-verifier/policy"
	"go-credential-verifier/redis"
	"go-credential-verifier/verifier"
)

type Config struct {
	ServerConfig ServerConfig `json:"server_config"`
	LogLevel     string       `json:"log_level,omitempty"`
	LogFormat    string       `json:"log_format,omitempty"`

	Verifier          VerifierConfig `json:"verifier"`
	GatewayUrl        string         `json:"gateway_url"`
	GatewayStagingUrl string         `json:"gateway_staging_url,omitempty"`

	JwtPrivateKeyPath  string   `json:"jwt_private_key_path"`
	IrmaServerUrl      string   `json:"irma_server_url"`
	IssuerId           string   `json:"issuer_id"`
	Credential         string   `json:"credential"`
	SdJwtBatchSize     uint     `json:"sd_jwt_batch_size"`
	CorsAllowedOrigins []string `json:"cors_allowed_origins,omitempty"`

	StorageType         string                    `json:"storage_type"`
	RedisConfig         redis.RedisConfig         `json:"redis_config,omitempty"`
	RedisSentinelConfig redis.RedisSentinelConfig `json:"redis_sentinel_config,omitempty"`

	PolicyCache PolicyCacheConfig `json:"policy_cache,omitempty"`

	// PolicyAction is "fixed" (every request uses the default policy id) or
	// "user_defined_data" (the user defined data names the policy id).
	PolicyAction  string                     `json:"policy_action,omitempty"`
	DefaultPolicy verifier.Policy            `json:"default_policy"`
	Policies      map[string]verifier.Policy `json:"policies,omitempty"`
}

type VerifierConfig struct {
	Scope              string `json:"scope"`
	Endpoint           string `json:"endpoint"`
	AllowedIds         []int  `json:"allowed_ids,omitempty"`
	UserIdentifierType string `json:"user_identifier_type,omitempty"`

	// Mock selects the staging gateway and enables synthetic documents.
	Mock               bool   `json:"mock,omitempty"`
	FreshnessTolerance string `json:"freshness_tolerance,omitempty"`
	CallTimeout        string `json:"call_timeout,omitempty"`
}

type PolicyCacheConfig struct {
	Size int    `json:"size,omitempty"`
	TTL  string `json:"ttl,omitempty"`
}

func main() {
	configPath := flag.String("config", "", "Path for the config.json to use")
	flag.Parse()

	if *configPath == "" {
		slog.Error("please provide a config path using the --config flag")
		os.Exit(1)
	}

	config, err := readConfigFile(*configPath)
	if err != nil {
		slog.Error("failed to read config file", "path", *configPath, "error", err)
		os.Exit(1)
	}

	logging.InitLoggerWithFormat(config.LogLevel, config.LogFormat)
	slog.Info("using config", "path", *configPath)
	slog.Info("hosting on", "host", config.ServerConfig.Host, "port", config.ServerConfig.Port)

	if err := run(config); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(config Config) error {
	ctx := context.Background()

	jwtCreator, err := NewIrmaJwtCreator(
		config.JwtPrivateKeyPath,
		config.IssuerId,
		config.Credential,
		config.SdJwtBatchSize,
	)
	if err != nil {
		return fmt.Errorf("failed to instantiate jwt creator: %w", err)
	}

	client, namespace, err := createRedisClient(&config)
	if err != nil {
		return fmt.Errorf("failed to connect to storage: %w", err)
	}

	resultStorage, err := createResultStorage(&config, client, namespace)
	if err != nil {
		return fmt.Errorf("failed to instantiate result storage: %w", err)
	}

	policies, err := createPolicyStore(ctx, &config, client, namespace)
	if err != nil {
		return fmt.Errorf("failed to instantiate policy store: %w", err)
	}

	gateway := NewGatewayClient(gatewayURL(&config))
	if err := gateway.HealthCheck(ctx); err != nil {
		slog.Warn("Gateway is not reachable, verifications will fail until it is", "error", err)
	}

	verifierConfig, err := config.Verifier.toVerifierConfig()
	if err != nil {
		return fmt.Errorf("invalid verifier config: %w", err)
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	v, err := verifier.New(verifierConfig, gateway, policies, verifier.WithMetrics(m))
	if err != nil {
		return fmt.Errorf("failed to create verifier: %w", err)
	}
	slog.Info("Verifier ready", "scope", config.Verifier.Scope, "hashed_scope", v.HashedScope(), "mock", config.Verifier.Mock)

	serverState := ServerState{
		irmaServerURL:      config.IrmaServerUrl,
		verifier:           v,
		resultStorage:      resultStorage,
		jwtCreator:         jwtCreator,
		metrics:            m,
		gatherer:           registry,
		corsAllowedOrigins: config.CorsAllowedOrigins,
		mockDocuments:      config.Verifier.Mock,
	}

	server, err := NewServer(&serverState, config.ServerConfig)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return server.ListenAndServe()
}

func readConfigFile(path string) (Config, error) {
	configBytes, err := os.ReadFile(path)

	if err != nil {
		return Config{}, err
	}

	var config Config
	err = json.Unmarshal(configBytes, &config)

	if err != nil {
		return Config{}, err
	}

	return config, nil
}

func (c VerifierConfig) toVerifierConfig() (verifier.Config, error) {
	userIDType, err := verifier.ParseUserIDType(c.UserIdentifierType)
	if err != nil {
		return verifier.Config{}, err
	}

	allowed := verifier.AllIDs
	if len(c.AllowedIds) > 0 {
		allowed = make(map[verifier.AttestationID]bool, len(c.AllowedIds))
		for _, id := range c.AllowedIds {
			if _, known := verifier.AllIDs[verifier.AttestationID(id)]; !known {
				return verifier.Config{}, fmt.Errorf("unknown attestation id %d in allowed_ids", id)
			}
			allowed[verifier.AttestationID(id)] = true
		}
	}

	freshness, err := parseOptionalDuration("freshness_tolerance", c.FreshnessTolerance)
	if err != nil {
		return verifier.Config{}, err
	}
	callTimeout, err := parseOptionalDuration("call_timeout", c.CallTimeout)
	if err != nil {
		return verifier.Config{}, err
	}

	return verifier.Config{
		Scope:              c.Scope,
		Endpoint:           c.Endpoint,
		AllowedIDs:         allowed,
		UserIdentifierType: userIDType,
		FreshnessTolerance: freshness,
		CallTimeout:        callTimeout,
	}, nil
}

// parseOptionalDuration returns zero for an empty value so the verifier default applies.
func parseOptionalDuration(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", field, value, err)
	}
	return d, nil
}

func gatewayURL(config *Config) string {
	if config.Verifier.Mock && config.GatewayStagingUrl != "" {
		return config.GatewayStagingUrl
	}
	return config.GatewayUrl
}

// createRedisClient connects to redis when the storage type asks for it. For
// in-memory storage the client is nil.
func createRedisClient(config *Config) (*goredis.Client, string, error) {
	switch config.StorageType {
	case "redis":
		slog.Info("Using redis storage")
		client, err := redis.NewRedisClient(&config.RedisConfig)
		return client, config.RedisConfig.Namespace, err
	case "redis_sentinel":
		slog.Info("Using redis sentinel storage")
		client, err := redis.NewRedisSentinelClient(&config.RedisSentinelConfig)
		return client, config.RedisSentinelConfig.Namespace, err
	case "memory":
		slog.Info("Using in memory storage")
		return nil, "", nil
	}
	return nil, "", fmt.Errorf("%v is not a valid storage type", config.StorageType)
}

func createResultStorage(config *Config, client *goredis.Client, namespace string) (ResultStorage, error) {
	if client != nil {
		return NewRedisResultStorage(client, namespace), nil
	}
	if config.StorageType == "memory" {
		return NewInMemoryResultStorage(), nil
	}
	return nil, fmt.Errorf("%v is not a valid storage type", config.StorageType)
}

func policyAction(name string) (policy.ActionIDFunc, error) {
	switch name {
	case "", "fixed":
		return policy.FixedAction(policy.DefaultActionID), nil
	case "user_defined_data":
		return policy.ActionFromUserData, nil
	}
	return nil, fmt.Errorf("%v is not a valid policy action", name)
}

// createPolicyStore picks the policy store for the configuration and seeds it with
// the configured policies. A single default policy without a redis backend needs
// no lookup at all.
func createPolicyStore(ctx context.Context, config *Config, client *goredis.Client, namespace string) (verifier.PolicyStore, error) {
	action, err := policyAction(config.PolicyAction)
	if err != nil {
		return nil, err
	}

	var store verifier.PolicyStore
	switch {
	case client != nil:
		ttl, err := parseOptionalDuration("policy_cache.ttl", config.PolicyCache.TTL)
		if err != nil {
			return nil, err
		}
		store = policy.NewCached(policy.NewRedis(client, namespace, action), config.PolicyCache.Size, ttl)
	case len(config.Policies) == 0 && (config.PolicyAction == "" || config.PolicyAction == "fixed"):
		slog.Info("Using static policy", "minimum_age", config.DefaultPolicy.MinimumAge, "ofac", config.DefaultPolicy.Ofac)
		return policy.NewStatic(config.DefaultPolicy), nil
	default:
		store = policy.NewInMemory(action)
	}

	if !config.DefaultPolicy.IsEmpty() {
		if _, err := store.SetConfig(ctx, policy.DefaultActionID, config.DefaultPolicy); err != nil {
			return nil, fmt.Errorf("failed to seed default policy: %w", err)
		}
	}
	for id, p := range config.Policies {
		created, err := store.SetConfig(ctx, id, p)
		if err != nil {
			return nil, fmt.Errorf("failed to seed policy %s: %w", id, err)
		}
		slog.Debug("Seeded policy", "id", id, "created", created)
	}
	return store, nil
}
