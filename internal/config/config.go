package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Load reads the .env file specified by MEDIATOR_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("MEDIATOR_ENV")
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
	return intOr("SERVER_PORT", 8080)
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

// RegistryPath is the persisted disablement registry file.
func RegistryPath() string {
	return stringOr("REGISTRY_PATH", "config/conflict_mediator_registry.json")
}

// ComponentsFile is an optional YAML manifest of loaded components.
func ComponentsFile() string {
	return os.Getenv("COMPONENTS_FILE")
}

// PatchNamespace is the literal package segment marking patch classes.
// Defaults to "mixin".
func PatchNamespace() string {
	return stringOr("PATCH_NAMESPACE", "mixin")
}

// Presenter selects the decision surface: queue (operator API) or none (headless).
func Presenter() string {
	switch p := strings.ToLower(os.Getenv("PRESENTER")); p {
	case "none":
		return p
	default:
		return "queue"
	}
}

func ReporterWorkers() int {
	return intOr("REPORTER_WORKERS", 2)
}

func ReporterQueueSize() int {
	return intOr("REPORTER_QUEUE_SIZE", 64)
}

// MaxCauseDepth bounds how far the cause chain of a failure is followed.
func MaxCauseDepth() int {
	return intOr("MAX_CAUSE_DEPTH", 32)
}

func JournalCapacity() int {
	return intOr("JOURNAL_CAPACITY", 256)
}

// IgnoredOwners lists component ids never reported as a conflict side,
// typically the host framework itself.
func IgnoredOwners() []string {
	return list("IGNORED_OWNERS")
}

// DuplicateMarkers overrides the phrases that mark a duplicate member failure.
func DuplicateMarkers() []string {
	return list("DUPLICATE_MARKERS")
}

func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

func MigrationsPath() string {
	return stringOr("MIGRATIONS_PATH", "migrations")
}

// OperatorToken guards the /v1 API when set.
func OperatorToken() string {
	return os.Getenv("OPERATOR_TOKEN")
}

// RateLimitRPS returns requests per second limit.
// Defaults to 50 if not set.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 50
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting.
// Defaults to 20 if not set.
func RateLimitBurst() int {
	return intOr("RATE_LIMIT_BURST", 20)
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	return stringOr("LOG_LEVEL", "info")
}

func stringOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func intOr(key string, def int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func list(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
