package constants

import "time"

const (
	AppName            = "geko"
	DefaultKeyringUser = "cloud-connection"
	DefaultConfigDir   = "~/.config/geko"
	DefaultStoreName   = "geko.db"
	DefaultConfigName  = "config.toml"
	Version            = "v0.3.0"

	DefaultLogLevel     = "warn"
	DefaultLogFormat    = "text"
	DefaultLogMaxSizeMB = 10

	// DateFormat is the completion day key format (YYYY-MM-DD)
	DateFormat = "2006-01-02"

	// TimeFormat is the reminder time-of-day format (HH:MM)
	TimeFormat = "15:04"

	// Habit defaults
	DefaultDailyTarget = 1

	// Grid constants
	DaysPerWeek         = 7
	MonthGridRows       = 6
	DefaultHistoryWeeks = 16

	// Feedback prompt constants
	FeedbackThreshold        = 3
	SettingFeedbackPresented = "feedback_prompt_presented"
	FeedbackResetEnvVar      = "GEKO_RESET_FEEDBACK_STATE"

	// Peer link constants
	PeerLockfileName     = "geko-peer.lock"
	PeerSecretHeader     = "X-Geko-Secret"
	PeerExecutable       = "geko"
	DefaultPeerListen    = "127.0.0.1:0"
	DefaultSendTimeout   = 5 * time.Second
	PeerOutboxSize       = 64
	PeerHandshakeTimeout = 10 * time.Second

	// Cloud constants
	CloudEnvVar          = "GEKO_CLOUD_DSN"
	DefaultCloudRefresh  = 30 * time.Second
	DefaultWatchDebounce = 500 * time.Millisecond
	CloudMaxOpenConns    = 10
	CloudConnMaxLifetime = 5 * time.Minute
)
