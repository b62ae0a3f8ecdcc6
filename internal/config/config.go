package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                  string
	AllowedOrigin         string
	DatabaseURL           string
	SQLitePath            string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	AuthSecret            string
	AccessTokenTTLMinutes int
	ManagerPIN            string
	PriceValidation       string
	LowStockThreshold     int
	NearExpiryDays        int
	DashboardTTLSeconds   int
	LoginRateLimit        string
	SaleRateLimit         string
	PINRateLimit          string
	EventsChannel         string
}

// LoadDotEnv copies values from a .env file into the process environment
// without overriding variables that are already set. A missing file is fine.
func LoadDotEnv(paths ...string) {
	if err := godotenv.Load(paths...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("[config] WARN: failed to read .env: %v", err)
	}
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))

	cfg := Config{
		Port:                  getEnv("PORT", "8080"),
		AllowedOrigin:         getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:5173"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		SQLitePath:            os.Getenv("SQLITE_PATH"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               redisDB,
		AuthSecret:            strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes: getPositiveInt("ACCESS_TOKEN_TTL_MINUTES", 480),
		ManagerPIN:            strings.TrimSpace(os.Getenv("MANAGER_PIN")),
		PriceValidation:       strings.ToLower(strings.TrimSpace(getEnv("PRICE_VALIDATION", "verify"))),
		LowStockThreshold:     getPositiveInt("LOW_STOCK_THRESHOLD", 50),
		NearExpiryDays:        getPositiveInt("NEAR_EXPIRY_DAYS", 30),
		DashboardTTLSeconds:   getPositiveInt("DASHBOARD_TTL_SECONDS", 30),
		LoginRateLimit:        getEnv("LOGIN_RATE_LIMIT", "5-M"),
		SaleRateLimit:         getEnv("SALE_RATE_LIMIT", "120-M"),
		PINRateLimit:          getEnv("PIN_RATE_LIMIT", "8-M"),
		EventsChannel:         getEnv("EVENTS_CHANNEL", "apotekku:events"),
	}

	return cfg
}

// Validate checks values that would otherwise fail late or silently.
func (c Config) Validate() error {
	switch c.PriceValidation {
	case "verify", "trust":
	default:
		return fmt.Errorf("PRICE_VALIDATION must be verify or trust, got %q", c.PriceValidation)
	}
	if c.DatabaseURL != "" && c.SQLitePath != "" {
		return fmt.Errorf("set only one of DATABASE_URL and SQLITE_PATH")
	}
	return nil
}

// ValidateSecurity refuses to start with a short signing secret or a manager
// PIN that is easy to guess.
func (c Config) ValidateSecurity() error {
	if len(c.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if len(c.ManagerPIN) < 6 {
		return fmt.Errorf("MANAGER_PIN must be set and at least 6 digits")
	}
	if reason := weakPIN(c.ManagerPIN); reason != "" {
		return fmt.Errorf("MANAGER_PIN is too weak: %s", reason)
	}
	return nil
}

// weakPIN returns why pin is guessable, or "" when it is acceptable.
func weakPIN(pin string) string {
	digits := make(map[rune]struct{}, len(pin))
	for _, r := range pin {
		if r < '0' || r > '9' {
			return "digits only"
		}
		digits[r] = struct{}{}
	}
	if len(digits) <= 2 {
		return "uses two or fewer distinct digits"
	}

	step := int(pin[1]) - int(pin[0])
	if step == 1 || step == -1 {
		sequential := true
		for i := 2; i < len(pin); i++ {
			if int(pin[i])-int(pin[i-1]) != step {
				sequential = false
				break
			}
		}
		if sequential {
			return "sequential digits"
		}
	}

	if half := len(pin) / 2; len(pin)%2 == 0 && pin[:half] == pin[half:] {
		return "repeats itself"
	}
	if len(pin)%2 == 0 {
		doubled := true
		for i := 0; i < len(pin); i += 2 {
			if pin[i] != pin[i+1] {
				doubled = false
				break
			}
		}
		if doubled {
			return "each digit doubled"
		}
	}
	return ""
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func getPositiveInt(key string, fallback int) int {
	val, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil || val < 1 {
		return fallback
	}
	return val
}
