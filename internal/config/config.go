package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr     string
	Port           string
	DatabasePath   string
	SessionSecret  string
	// SessionSecure 为 true 时会话 Cookie 只通过 HTTPS 发送
	SessionSecure  bool
	GinMode        string
	DefaultLocale  string
	DefaultWebsite string
	LogLevel       string
	LogFormat      string
	PartsDir       string
}

var defaults = map[string]string{
	"port":            "8080",
	"database_path":   "pagewright.db",
	"session_secret":  "pagewright-dev-secret",
	"session_secure":  "false",
	"gin_mode":        "release",
	"default_locale":  "en",
	"default_website": "default",
	"log_level":       "info",
	"log_format":      "text",
	"parts_dir":       "",
	"listen_addr":     "",
}

// NewViper returns a viper instance reading the configuration keys from the
// environment (PORT, DATABASE_PATH, ...) and, when path is set, a config file.
func NewViper(path string) (*viper.Viper, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	return v, nil
}

// Load 读取应用配置，并为缺失项提供安全的默认值。
func Load(v *viper.Viper) AppConfig {
	if v == nil {
		v, _ = NewViper("")
	}

	get := func(key string) string {
		value := strings.TrimSpace(v.GetString(key))
		if value == "" {
			return defaults[key]
		}
		return value
	}

	port := get("port")
	listenAddr := get("listen_addr")
	if listenAddr == "" {
		listenAddr = fmt.Sprintf(":%s", port)
	}

	return AppConfig{
		ListenAddr:     listenAddr,
		Port:           port,
		DatabasePath:   get("database_path"),
		SessionSecret:  get("session_secret"),
		SessionSecure:  v.GetBool("session_secure"),
		GinMode:        get("gin_mode"),
		DefaultLocale:  get("default_locale"),
		DefaultWebsite: get("default_website"),
		LogLevel:       get("log_level"),
		LogFormat:      get("log_format"),
		PartsDir:       get("parts_dir"),
	}
}
