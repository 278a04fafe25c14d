package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
	"github.com/nexhr/sales-api/internal/config"
	"go.uber.org/zap"
)

// CORS builds the cross-origin policy from config. A "*" entry allows any
// origin; with no origins configured the policy is open in development and
// deny-all everywhere else.
func CORS(cfg *config.CORSConfig, environment string, logger *zap.Logger) func(http.Handler) http.Handler {
	options := cors.Options{
		AllowedMethods:   cfg.AllowedMethods,
		AllowedHeaders:   cfg.AllowedHeaders,
		ExposedHeaders:   cfg.ExposedHeaders,
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
	}

	allowAny := func(r *http.Request, origin string) bool { return origin != "" }
	dev := environment == "development" || environment == "local"

	switch {
	case hasWildcardOrigin(cfg.AllowedOrigins):
		if !dev {
			logger.Warn("CORS wildcard origin outside development",
				zap.String("environment", environment))
		}
		options.AllowOriginFunc = allowAny
	case len(cfg.AllowedOrigins) > 0:
		options.AllowedOrigins = cfg.AllowedOrigins
		logger.Info("CORS restricted to configured origins",
			zap.Strings("origins", cfg.AllowedOrigins))
	case dev || environment == "":
		options.AllowOriginFunc = allowAny
		logger.Info("CORS open for development")
	default:
		// An empty AllowedOrigins list makes the handler default to "*",
		// so denial has to be explicit
		options.AllowOriginFunc = func(r *http.Request, origin string) bool { return false }
		logger.Warn("no CORS origins configured, denying all cross-origin requests",
			zap.String("environment", environment))
	}

	return cors.Handler(options)
}

func hasWildcardOrigin(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
