package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Database    DatabaseConfig    `mapstructure:"database"`
	Server      ServerConfig      `mapstructure:"server"`
	Ledger      LedgerConfig      `mapstructure:"ledger"`
	Aggregation AggregationConfig `mapstructure:"aggregation"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

func (d *DatabaseConfig) DSN() string {
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, sslMode)
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type LedgerConfig struct {
	APIURL       string `mapstructure:"api_url"`
	PageLimit    int    `mapstructure:"page_limit"`
	HTTPTimeout  int    `mapstructure:"http_timeout"`
	PollEnabled  bool   `mapstructure:"poll_enabled"`
	IngestCron   string `mapstructure:"ingest_cron"`
}

type AggregationConfig struct {
	BalanceCron     string `mapstructure:"balance_cron"`
	WalletStatsCron string `mapstructure:"wallet_stats_cron"`
	MaxHoursPerRun  int    `mapstructure:"max_hours_per_run"`
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

	v.SetDefault("ledger.page_limit", 1000)
	v.SetDefault("ledger.http_timeout", 15)
	v.SetDefault("ledger.ingest_cron", "30 * * * * *")
	v.SetDefault("aggregation.balance_cron", "0 * * * * *")
	v.SetDefault("aggregation.wallet_stats_cron", "20 */30 * * * *")
	v.SetDefault("aggregation.max_hours_per_run", 60)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}
