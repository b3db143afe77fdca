package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Server   ServerConfig   `mapstructure:"server"`
	Chains   []ChainConfig  `mapstructure:"chains"`
	Expiry   ExpiryConfig   `mapstructure:"expiry"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		d.User, d.Password, d.Host, d.Port, d.DBName)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
	// TokenCacheTTL 代币元数据缓存过期时间（秒）
	TokenCacheTTL int `mapstructure:"token_cache_ttl"`
}

func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type ChainConfig struct {
	ID                 string `mapstructure:"id"`
	Network            string `mapstructure:"network"`
	RPCURL             string `mapstructure:"rpc_url"`
	ChainID            uint64 `mapstructure:"chain_id"`
	ContractAddress    string `mapstructure:"contract_address"`
	ContractVersion    int    `mapstructure:"contract_version"`
	StartBlock         int64  `mapstructure:"start_block"`
	ConfirmationBlocks int    `mapstructure:"confirmation_blocks"`
	PullInterval       int    `mapstructure:"pull_interval"`
	BatchSize          int    `mapstructure:"batch_size"`
	Enabled            bool   `mapstructure:"enabled"`
}

type ExpiryConfig struct {
	// SweepCron 过期扫描的cron表达式（带秒字段）
	SweepCron string `mapstructure:"sweep_cron"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	v.SetDefault("expiry.sweep_cron", "0 * * * * *")
	v.SetDefault("redis.token_cache_ttl", 3600)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func (c *Config) GetChainConfig(chainID string) (*ChainConfig, error) {
	for _, chain := range c.Chains {
		if chain.ID == chainID {
			return &chain, nil
		}
	}
	return nil, fmt.Errorf("chain config not found: %s", chainID)
}

func (c *Config) GetEnabledChains() []ChainConfig {
	var enabled []ChainConfig
	for _, chain := range c.Chains {
		if chain.Enabled {
			enabled = append(enabled, chain)
		}
	}
	return enabled
}
