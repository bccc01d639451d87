package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable name, e.g. ECOQ_DATABASE_URL.
const EnvPrefix = "ECOQ"

// Load configuration from environment variables and optionally a config file.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only applies to keys viper already knows about.
	for _, key := range []string{
		"database.url",
		"governor.redis_addr",
		"dispatch.trigger_url",
		"dispatch.trigger_secret",
		"chat.gateway_url",
		"chat.gateway_token",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("database.max_open_conns", 10)

	v.SetDefault("governor.backend", "postgres")
	v.SetDefault("governor.redis_key", "ecoq:floodwait")

	v.SetDefault("dispatch.inter_task_delay", 3*time.Second)
	v.SetDefault("dispatch.idle_delay", 10*time.Second)
	v.SetDefault("dispatch.inline_wait_max", 15*time.Second)
	v.SetDefault("dispatch.chain_delay", 2*time.Second)
	v.SetDefault("dispatch.stuck_after", 15*time.Minute)
	v.SetDefault("dispatch.queues", []string{"chats", "topics", "messages"})
	v.SetDefault("dispatch.worker", false)

	v.SetDefault("chat.timeout", 30*time.Second)
	v.SetDefault("chat.dialogs_limit", 200)

	v.SetDefault("provision.topics", []string{
		"📢 Новости",
		"🛒 Барахолка",
		"🗳 Выборы старшего",
		"💬 Общение",
	})
	v.SetDefault("provision.marketplace_topic", 1)
	v.SetDefault("provision.admin_topic", 2)
	v.SetDefault("provision.bots", []string{})
	v.SetDefault("provision.read_only_bot", "")
	v.SetDefault("provision.welcome_text",
		"Добро пожаловать! Здесь мы выбираем старшего по дому. Голосование ниже.")
	v.SetDefault("provision.pin_welcome", true)
	v.SetDefault("provision.poll_question", "Готовы ли вы стать старшим по дому?")
	v.SetDefault("provision.poll_options", []string{"Да, готов(а)", "Нет", "Поддержу другого кандидата"})
	v.SetDefault("provision.promo_topic", "🎁 Бонусы")
	v.SetDefault("provision.promo_text", "Забирайте бонусы соседей в нашем приложении.")
	v.SetDefault("provision.promo_button", "Открыть приложение")
}
