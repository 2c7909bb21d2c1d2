package app

import (
	"strings"

	"github.com/examwell/examwell-backend/internal/logger"
	"github.com/examwell/examwell-backend/internal/utils"
)

type Config struct {
	Mode           string
	Port           string
	AllowedOrigins []string
}

func LoadConfig(log *logger.Logger) Config {
	origins := utils.GetEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000", log)

	var allowed []string
	for _, o := range strings.Split(origins, ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			allowed = append(allowed, o)
		}
	}

	return Config{
		Mode:           utils.GetEnv("APP_MODE", "development", log),
		Port:           utils.GetEnv("PORT", "8080", log),
		AllowedOrigins: allowed,
	}
}
