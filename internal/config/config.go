package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file specified by DOXA_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("DOXA_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Load main env file (ignore error if file doesn't exist)
	_ = godotenv.Load(envFile)

	// Load secret sidecar if it exists
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func ServerPort() int {
	port, err := strconv.Atoi(os.Getenv("SERVER_PORT"))
	if err != nil {
		return 8080
	}
	return port
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

// DatabaseDriver selects the store dialect.
// Valid values: sqlite, postgres. Defaults to "sqlite".
func DatabaseDriver() string {
	d := os.Getenv("DATABASE_DRIVER")
	if d == "" {
		return "sqlite"
	}
	return d
}

func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

// DatabasePath is the sqlite database file path.
func DatabasePath() string {
	p := os.Getenv("DATABASE_PATH")
	if p == "" {
		return "doxa.db"
	}
	return p
}

// QueueDir is the durable queue segment directory.
func QueueDir() string {
	d := os.Getenv("QUEUE_DIR")
	if d == "" {
		return "queue"
	}
	return d
}

// MinBatchSize is the observation count that releases a batch.
func MinBatchSize() int {
	n, err := strconv.Atoi(os.Getenv("MIN_BATCH_SIZE"))
	if err != nil || n <= 0 {
		return 5
	}
	return n
}

// MaxBatchSize caps how many observations one drain returns.
func MaxBatchSize() int {
	n, err := strconv.Atoi(os.Getenv("MAX_BATCH_SIZE"))
	if err != nil || n <= 0 {
		return 50
	}
	return n
}

// PipelineWorkers bounds how many batches process concurrently.
func PipelineWorkers() int {
	n, err := strconv.Atoi(os.Getenv("PIPELINE_WORKERS"))
	if err != nil || n <= 0 {
		return 2
	}
	return n
}

func OpenAIAPIKey() string {
	return os.Getenv("OPENAI_API_KEY")
}

func AnthropicAPIKey() string {
	return os.Getenv("ANTHROPIC_API_KEY")
}

func GeminiAPIKey() string {
	return os.Getenv("GEMINI_API_KEY")
}

func CerebrasAPIKey() string {
	return os.Getenv("CEREBRAS_API_KEY")
}

// LLMProvider returns the configured LLM provider.
// Defaults to "openai" if not set.
// Valid values: openai, anthropic, gemini, cerebras, mock
func LLMProvider() string {
	p := os.Getenv("LLM_PROVIDER")
	if p == "" {
		return "openai"
	}
	return p
}

// EmbeddingProvider returns the configured embedding provider.
// Defaults to "none" if not set.
// Valid values: openai, hash, none
func EmbeddingProvider() string {
	p := os.Getenv("EMBEDDING_PROVIDER")
	if p == "" {
		return "none"
	}
	return p
}

// LLMAPIKey returns the API key for the configured LLM provider.
func LLMAPIKey() string {
	switch LLMProvider() {
	case "anthropic":
		return AnthropicAPIKey()
	case "gemini":
		return GeminiAPIKey()
	case "cerebras":
		return CerebrasAPIKey()
	case "mock":
		return ""
	default:
		return OpenAIAPIKey()
	}
}

// LLMTimeout bounds each inference call.
func LLMTimeout() time.Duration {
	s, err := strconv.Atoi(os.Getenv("LLM_TIMEOUT_SECONDS"))
	if err != nil || s <= 0 {
		return 60 * time.Second
	}
	return time.Duration(s) * time.Second
}

// LLMMaxRetries bounds retries of malformed inference responses.
func LLMMaxRetries() int {
	n, err := strconv.Atoi(os.Getenv("LLM_MAX_RETRIES"))
	if err != nil || n < 0 {
		return 3
	}
	return n
}

// AttentionInterval is the monitor's sampling cadence.
func AttentionInterval() time.Duration {
	s, err := strconv.ParseFloat(os.Getenv("ATTENTION_UPDATE_INTERVAL"), 64)
	if err != nil || s <= 0 {
		return 2 * time.Second
	}
	return time.Duration(s * float64(time.Second))
}

// ActivityDir is watched for filesystem events as the input-activity proxy.
// Empty disables the fsnotify source.
func ActivityDir() string {
	return os.Getenv("ACTIVITY_DIR")
}

// AppProbeCommand is executed to report the active application, e.g. an
// osascript one-liner on macOS. Empty disables the probe.
func AppProbeCommand() string {
	return os.Getenv("APP_PROBE_COMMAND")
}

// FocusApps lists applications classified as focus-type work.
func FocusApps() []string {
	return splitList(os.Getenv("FOCUS_APPS"), []string{
		"Visual Studio Code", "Xcode", "IntelliJ IDEA", "Terminal", "iTerm2",
	})
}

// CasualApps lists applications classified as casual use.
func CasualApps() []string {
	return splitList(os.Getenv("CASUAL_APPS"), []string{
		"Safari", "Music", "Messages", "Discord", "Twitter",
	})
}

func HighFocusThreshold() float64 {
	return floatEnv("HIGH_FOCUS_THRESHOLD", 0.8)
}

func LowFocusThreshold() float64 {
	return floatEnv("LOW_FOCUS_THRESHOLD", 0.3)
}

func BaseInterruptionCost() float64 {
	return floatEnv("BASE_INTERRUPTION_COST", 0.5)
}

// HighFocusMultiplier scales interruption cost when attention is high.
func HighFocusMultiplier() float64 {
	return floatEnv("HIGH_FOCUS_MULTIPLIER", 2.4)
}

// LowFocusMultiplier scales interruption cost when attention is low.
func LowFocusMultiplier() float64 {
	return floatEnv("LOW_FOCUS_MULTIPLIER", 0.4)
}

// DialogueWebhookURL receives dialogue requests. Empty disables emission.
func DialogueWebhookURL() string {
	return os.Getenv("DIALOGUE_WEBHOOK_URL")
}

// ActionWebhookURL receives autonomous-action requests. Empty disables
// emission.
func ActionWebhookURL() string {
	return os.Getenv("ACTION_WEBHOOK_URL")
}

// DecayInterval is the staleness updater cadence.
func DecayInterval() time.Duration {
	m, err := strconv.Atoi(os.Getenv("DECAY_INTERVAL_MINUTES"))
	if err != nil || m <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(m) * time.Minute
}

// DecayHalfLifeHours controls how fast unreinforced propositions go stale.
func DecayHalfLifeHours() float64 {
	return floatEnv("DECAY_HALF_LIFE_HOURS", 168)
}

// ProfileTriggerCount is how many new propositions accumulate before the
// profile synthesizer runs.
func ProfileTriggerCount() int {
	n, err := strconv.Atoi(os.Getenv("PROFILE_TRIGGER_COUNT"))
	if err != nil || n <= 0 {
		return 30
	}
	return n
}

// RateLimitRPS returns requests per second limit.
// Defaults to 100 if not set.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting.
// Defaults to 20 if not set.
func RateLimitBurst() int {
	burst, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST"))
	if err != nil || burst <= 0 {
		return 20
	}
	return burst
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}

func floatEnv(key string, def float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return def
	}
	return v
}

func splitList(v string, def []string) []string {
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
