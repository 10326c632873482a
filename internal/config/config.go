package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/lingualoop/lingualoop-core/internal/rating"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type Config struct {
	Mode     Mode
	HTTPAddr string

	DBDriver string
	DBDSN    string

	AuthSecret string

	AdminUser     string
	AdminPassHash string // bcrypt

	CORSOriginsOnline  []string
	CORSOriginsOffline []string

	// Rating carries every ELO tunable; nothing in the engine hardcodes a
	// default rating, K-factor, or volatility boost.
	Rating rating.Params

	// SubmitRetries bounds the internal retry loop around the submission
	// transaction before a conflict is surfaced to the caller.
	SubmitRetries int

	SiteID string
}

func FromEnv() Config {
	mode := Mode(os.Getenv("MODE"))
	if mode == "" {
		mode = ModeOffline
	}
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	p := rating.DefaultParams()
	p.DefaultUserRating = envInt("DEFAULT_USER_RATING", p.DefaultUserRating)
	p.DefaultTestRating = envInt("DEFAULT_TEST_RATING", p.DefaultTestRating)
	p.UserKFactor = envInt("USER_K_FACTOR", p.UserKFactor)
	p.TestKFactor = envInt("TEST_K_FACTOR", p.TestKFactor)
	p.MinRating = envInt("MIN_RATING", p.MinRating)
	p.MaxRating = envInt("MAX_RATING", p.MaxRating)
	p.LowSampleAttempts = envInt("LOW_SAMPLE_ATTEMPTS", p.LowSampleAttempts)
	if d := envInt("STALE_AFTER_DAYS", 0); d > 0 {
		p.StaleAfter = time.Duration(d) * 24 * time.Hour
	}

	return Config{
		Mode:               mode,
		HTTPAddr:           addr,
		DBDriver:           envOr("DB_DRIVER", "sqlite"),
		DBDSN:              envOr("DB_DSN", ""),
		AuthSecret:         envOr("AUTH_HMAC_SECRET", "supersecret-dev-key"),
		AdminUser:          envOr("ADMIN_USER", "admin"),
		AdminPassHash:      envOr("ADMIN_PASS_HASH", "$2y$12$pyZAiWaTfVtM7UElIRStvOC3gNbnp70nmQU4eYopLGBfCJr1DOvji"),
		CORSOriginsOnline:  csvOr("CORS_ORIGINS_ONLINE", "https://app.lingualoop.ai"),
		CORSOriginsOffline: csvOr("CORS_ORIGINS_OFFLINE", "http://localhost:3000,http://localhost:3010"),
		Rating:             p,
		SubmitRetries:      envInt("SUBMIT_RETRIES", 3),
		SiteID:             envOr("SITE_ID", "local"),
	}
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func envInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
