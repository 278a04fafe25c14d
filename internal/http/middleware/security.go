package middleware

import (
	"fmt"
	"net/http"

	"github.com/nexhr/sales-api/internal/config"
)

// SecurityHeaders adds the standard hardening headers to every response.
// Headers with an empty configured value are skipped.
func SecurityHeaders(cfg *config.SecurityConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()

			if cfg.ContentTypeNosniff {
				h.Set("X-Content-Type-Options", "nosniff")
			}

			set := func(name, value string) {
				if value != "" {
					h.Set(name, value)
				}
			}
			set("X-Frame-Options", cfg.FrameOptions)
			set("X-XSS-Protection", cfg.XSSProtection)
			set("Content-Security-Policy", cfg.ContentSecurityPolicy)
			set("Referrer-Policy", cfg.ReferrerPolicy)
			set("Permissions-Policy", cfg.PermissionsPolicy)

			if cfg.EnableHSTS {
				hsts := fmt.Sprintf("max-age=%d", cfg.HSTSMaxAge)
				if cfg.HSTSIncludeSubdomains {
					hsts += "; includeSubDomains"
				}
				if cfg.HSTSPreload {
					hsts += "; preload"
				}
				h.Set("Strict-Transport-Security", hsts)
			}

			// Do not advertise the server implementation
			h.Del("X-Powered-By")
			h.Del("Server")

			next.ServeHTTP(w, r)
		})
	}
}
