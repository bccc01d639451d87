package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"    validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database"  validate:"required"`
	Governor  GovernorConfig  `mapstructure:"governor"  validate:"required"`
	Dispatch  DispatchConfig  `mapstructure:"dispatch"  validate:"required"`
	Chat      ChatConfig      `mapstructure:"chat"      validate:"required"`
	Provision ProvisionConfig `mapstructure:"provision" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL          string `mapstructure:"url"            validate:"required,url"`
	MaxOpenConns int    `mapstructure:"max_open_conns" validate:"gte=1"`
}

// GovernorConfig selects where the global FloodWait deadline lives.
type GovernorConfig struct {
	Backend   string `mapstructure:"backend"    validate:"required,oneof=postgres redis"`
	RedisAddr string `mapstructure:"redis_addr" validate:"required_if=Backend redis"`
	RedisKey  string `mapstructure:"redis_key"`
}

// DispatchConfig tunes both dispatch loop shapes.
type DispatchConfig struct {
	// InterTaskDelay is the self-imposed pause between two tasks in the persistent loop.
	InterTaskDelay time.Duration `mapstructure:"inter_task_delay" validate:"gte=0"`
	// IdleDelay is how long the persistent loop sleeps when a full pass did nothing.
	IdleDelay time.Duration `mapstructure:"idle_delay" validate:"gt=0"`
	// InlineWaitMax bounds how long a self-chaining invocation may sleep in-process
	// for a task that is almost due.
	InlineWaitMax time.Duration `mapstructure:"inline_wait_max" validate:"gte=0"`
	// ChainDelay is the delay before the follow-up invocation after a processed task.
	ChainDelay time.Duration `mapstructure:"chain_delay" validate:"gte=0"`
	// StuckAfter is how long a task may stay in processing before it is reset.
	StuckAfter time.Duration `mapstructure:"stuck_after" validate:"gt=0"`
	// TriggerURL is the public URL of the self-chaining trigger endpoint.
	TriggerURL string `mapstructure:"trigger_url" validate:"omitempty,url"`
	// TriggerSecret gates the trigger endpoints. Empty disables the check.
	TriggerSecret string   `mapstructure:"trigger_secret" validate:"omitempty,min=32"`
	Queues        []string `mapstructure:"queues"         validate:"required,min=1,dive,oneof=chats topics messages"`
	// Worker starts the persistent loop next to the HTTP server.
	Worker bool `mapstructure:"worker"`
}

// ChatConfig configures the chat platform gateway client.
type ChatConfig struct {
	GatewayURL   string        `mapstructure:"gateway_url"   validate:"required,url"`
	GatewayToken string        `mapstructure:"gateway_token" validate:"required"`
	Timeout      time.Duration `mapstructure:"timeout"       validate:"gt=0"`
	DialogsLimit int           `mapstructure:"dialogs_limit" validate:"gt=0"`
}

// ProvisionConfig holds the fixed shape of a newly provisioned ecosystem.
type ProvisionConfig struct {
	// Topics are created in this order. Exactly four are expected.
	Topics []string `mapstructure:"topics" validate:"len=4,dive,required"`
	// MarketplaceTopic and AdminTopic are indexes into Topics.
	MarketplaceTopic int      `mapstructure:"marketplace_topic" validate:"gte=0,lt=4"`
	AdminTopic       int      `mapstructure:"admin_topic"       validate:"gte=0,lt=4,nefield=MarketplaceTopic"`
	Bots             []string `mapstructure:"bots"              validate:"dive,required"`
	ReadOnlyBot      string   `mapstructure:"read_only_bot"`
	WelcomeText      string   `mapstructure:"welcome_text"      validate:"required"`
	PinWelcome       bool     `mapstructure:"pin_welcome"`
	PollQuestion     string   `mapstructure:"poll_question"     validate:"required"`
	PollOptions      []string `mapstructure:"poll_options"      validate:"min=2,dive,required"`
	PromoTopic       string   `mapstructure:"promo_topic"       validate:"required"`
	PromoText        string   `mapstructure:"promo_text"        validate:"required"`
	PromoButton      string   `mapstructure:"promo_button"      validate:"required"`
}
