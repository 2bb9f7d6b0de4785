package config

import (
	"os"
	"strings"
)

type Config struct {
	HTTPAddr string
	SiteID   string

	DBDriver string
	DBDSN    string

	CORSOrigins []string

	// RequireFullCoverage makes a course outcome gradable only when its
	// technique weights sum to exactly 100. Default is the permissive
	// policy: partial coverage (sum <= 100) still produces a score.
	RequireFullCoverage bool

	// RecomputeOnScoreWrite triggers a synchronous recompute of the
	// affected (student, course, term) after each raw score write.
	RecomputeOnScoreWrite bool
}

func FromEnv() Config {
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	return Config{
		HTTPAddr:              addr,
		SiteID:                envOr("SITE_ID", "local"),
		DBDriver:              envOr("DB_DRIVER", "sqlite"),
		DBDSN:                 envOr("DB_DSN", ""),
		CORSOrigins:           csvOr("CORS_ORIGINS", "http://localhost:3000"),
		RequireFullCoverage:   envBool("REQUIRE_FULL_COVERAGE", false),
		RecomputeOnScoreWrite: envBool("RECOMPUTE_ON_SCORE_WRITE", true),
	}
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
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
