package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port             string  `mapstructure:"port"`
		MetricsPort      string  `mapstructure:"metrics_port"`
		TempDir          string  `mapstructure:"temp_dir"`
		LogLevel         string  `mapstructure:"log_level"`
		JWTSecret        string  `mapstructure:"jwt_secret"`
		SamplesPerSecond float64 `mapstructure:"samples_per_second"`
		AdminUser        string  `mapstructure:"admin_user"`
		AdminPassword    string  `mapstructure:"admin_password"`
	} `mapstructure:"server"`
	Database struct {
		Driver   string `mapstructure:"driver"`
		Host     string `mapstructure:"host"`
		Port     string `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
		Path     string `mapstructure:"path"`
	} `mapstructure:"database"`
	Storage struct {
		Provider     string `mapstructure:"provider"`
		LocalStorage string `mapstructure:"local_storage"`
		KeyID        string `mapstructure:"key_id"`
		AppKey       string `mapstructure:"app_key"`
		Endpoint     string `mapstructure:"endpoint"`
		Region       string `mapstructure:"region"`
		BucketAudio  string `mapstructure:"bucket_audio"`
		BucketExport string `mapstructure:"bucket_export"`
	} `mapstructure:"storage"`
	Sync struct {
		Embedded           bool  `mapstructure:"embedded"`
		WatchdogIntervalMs int64 `mapstructure:"watchdog_interval_ms"`
		GraceMs            int64 `mapstructure:"grace_ms"`
		ResetGuardMs       int64 `mapstructure:"reset_guard_ms"`
		ContentionWindowMs int64 `mapstructure:"contention_window_ms"`
		ThrottleMs         int64 `mapstructure:"throttle_ms"`
	} `mapstructure:"sync"`
}

func Load() *Config {
	viper.SetEnvPrefix("LYRIX")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Register keys
	viper.BindEnv("server.port")
	viper.BindEnv("server.metrics_port")
	viper.BindEnv("server.temp_dir")
	viper.BindEnv("server.log_level")
	viper.BindEnv("server.jwt_secret")
	viper.BindEnv("server.samples_per_second")
	viper.BindEnv("server.admin_user")
	viper.BindEnv("server.admin_password")

	viper.BindEnv("database.driver")
	viper.BindEnv("database.host")
	viper.BindEnv("database.port")
	viper.BindEnv("database.user")
	viper.BindEnv("database.password")
	viper.BindEnv("database.name")
	viper.BindEnv("database.path")

	viper.BindEnv("storage.provider")
	viper.BindEnv("storage.local_storage")
	viper.BindEnv("storage.key_id")
	viper.BindEnv("storage.app_key")
	viper.BindEnv("storage.endpoint")
	viper.BindEnv("storage.region")
	viper.BindEnv("storage.bucket_audio")
	viper.BindEnv("storage.bucket_export")

	viper.BindEnv("sync.embedded")
	viper.BindEnv("sync.watchdog_interval_ms")
	viper.BindEnv("sync.grace_ms")
	viper.BindEnv("sync.reset_guard_ms")
	viper.BindEnv("sync.contention_window_ms")
	viper.BindEnv("sync.throttle_ms")

	// Defaults
	viper.SetDefault("server.port", ":8080")
	viper.SetDefault("server.metrics_port", ":9091")
	viper.SetDefault("server.temp_dir", "/tmp/")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("server.samples_per_second", 120)
	viper.SetDefault("server.admin_user", "admin")

	viper.SetDefault("database.driver", "postgres")
	viper.SetDefault("database.port", "5432")
	viper.SetDefault("database.path", "lyrix.db")

	viper.SetDefault("storage.provider", "local")
	viper.SetDefault("storage.local_storage", "./storage")
	viper.SetDefault("storage.bucket_audio", "lyrix-audio")
	viper.SetDefault("storage.bucket_export", "lyrix-export")

	// Sync windows the player UI was tuned with
	viper.SetDefault("sync.embedded", false)
	viper.SetDefault("sync.watchdog_interval_ms", 120)
	viper.SetDefault("sync.grace_ms", 5000)
	viper.SetDefault("sync.reset_guard_ms", 1000)
	viper.SetDefault("sync.contention_window_ms", 500)
	viper.SetDefault("sync.throttle_ms", 16)

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("Warning: Config error: %s", err)
		} else {
			log.Println("Info: config.yaml not found, using Environment Variables only.")
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		log.Fatalf("Unable to decode config: %v", err)
	}

	if cfg.Storage.Provider == "s3" && cfg.Storage.KeyID == "" {
		log.Fatal("Critical: S3 KeyID is missing (LYRIX_STORAGE_KEY_ID)")
	}
	if cfg.Server.JWTSecret == "" {
		log.Println("Warning: LYRIX_SERVER_JWT_SECRET is empty, API tokens are insecure")
	}

	return &cfg
}
