// Package config loads the server and guard configuration from the
// environment. Every guard is disabled unless switched on.
package config

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aatuh/shield/envvar"
	"github.com/aatuh/shield/guards/csp"
	"github.com/aatuh/shield/guards/csrf"
	"github.com/aatuh/shield/guards/frameguard"
	"github.com/aatuh/shield/guards/hsts"
	"github.com/aatuh/shield/ports"
	"github.com/aatuh/shield/secure"
	"github.com/aatuh/shield/validation"
)

// Raw mirrors the environment before conversion.
type Raw struct {
	Addr              string   `env:"API_ADDR"`
	LogLevel          string   `env:"LOG_LEVEL" validate:"oneof=debug info warn error"`
	Env               string   `env:"ENV" validate:"oneof=development staging production test"`
	AppKey            string   `env:"APP_KEY" validate:"required,min=16"`
	SessionDSN        string   `env:"SESSION_DSN"` // empty means in-memory sessions
	SessionTTLSeconds int      `env:"SESSION_TTL_SECONDS" validate:"min=1"`
	CORSOrigins       []string `env:"CORS_ALLOWED_ORIGINS"`

	CSRFEnabled      bool     `env:"SHIELD_CSRF_ENABLED"`
	CSRFMethods      []string `env:"SHIELD_CSRF_METHODS" validate:"dive,oneof=GET HEAD POST PUT PATCH DELETE OPTIONS"`
	CSRFExceptRoutes []string `env:"SHIELD_CSRF_EXCEPT_ROUTES"`
	CSRFXsrfCookie   bool     `env:"SHIELD_CSRF_XSRF_COOKIE"`

	XFrameEnabled bool   `env:"SHIELD_XFRAME_ENABLED"`
	XFrameAction  string `env:"SHIELD_XFRAME_ACTION" validate:"omitempty,oneof=DENY SAMEORIGIN ALLOW-FROM"`
	XFrameDomain  string `env:"SHIELD_XFRAME_DOMAIN" validate:"required_if=XFrameEnabled true XFrameAction ALLOW-FROM"`

	HSTSEnabled           bool   `env:"SHIELD_HSTS_ENABLED"`
	HSTSMaxAge            string `env:"SHIELD_HSTS_MAX_AGE"`
	HSTSIncludeSubDomains bool   `env:"SHIELD_HSTS_INCLUDE_SUBDOMAINS"`
	HSTSPreload           bool   `env:"SHIELD_HSTS_PRELOAD"`

	NoSniffEnabled     bool `env:"SHIELD_NOSNIFF_ENABLED"`
	DNSPrefetchEnabled bool `env:"SHIELD_DNS_PREFETCH_ENABLED"`
	DNSPrefetchAllow   bool `env:"SHIELD_DNS_PREFETCH_ALLOW"`

	CSPEnabled     bool   `env:"SHIELD_CSP_ENABLED"`
	CSPDirectives  string `env:"SHIELD_CSP_DIRECTIVES"`
	CSPReportOnly  bool   `env:"SHIELD_CSP_REPORT_ONLY"`
	CSPUseDefaults bool   `env:"SHIELD_CSP_USE_DEFAULTS"`

	XSSEnabled    bool `env:"SHIELD_XSS_ENABLED"`
	NoOpenEnabled bool `env:"SHIELD_NOOPEN_ENABLED"`
}

type Config struct {
	Addr        string
	LogLevel    string
	Env         string
	AppKey      string
	SessionDSN  string
	SessionTTL  time.Duration
	CORSOrigins []string
	Shield      secure.Config
}

// Production reports whether cookies should be marked Secure.
func (c Config) Production() bool { return c.Env == "production" }

// ReadRaw reads every variable, applying defaults.
func ReadRaw(env ports.EnvVar) Raw {
	return Raw{
		Addr:              env.GetOr("API_ADDR", ":8000"),
		LogLevel:          strings.ToLower(env.GetOr("LOG_LEVEL", "info")),
		Env:               env.GetOr("ENV", "development"),
		AppKey:            env.GetOr("APP_KEY", ""),
		SessionDSN:        env.GetOr("SESSION_DSN", ""),
		SessionTTLSeconds: env.GetIntOr("SESSION_TTL_SECONDS", 7200),
		CORSOrigins:       env.GetListOr("CORS_ALLOWED_ORIGINS", nil),

		CSRFEnabled:      env.GetBoolOr("SHIELD_CSRF_ENABLED", false),
		CSRFMethods:      upper(env.GetListOr("SHIELD_CSRF_METHODS", nil)),
		CSRFExceptRoutes: env.GetListOr("SHIELD_CSRF_EXCEPT_ROUTES", nil),
		CSRFXsrfCookie:   env.GetBoolOr("SHIELD_CSRF_XSRF_COOKIE", false),

		XFrameEnabled: env.GetBoolOr("SHIELD_XFRAME_ENABLED", false),
		XFrameAction:  strings.ToUpper(env.GetOr("SHIELD_XFRAME_ACTION", "")),
		XFrameDomain:  env.GetOr("SHIELD_XFRAME_DOMAIN", ""),

		HSTSEnabled:           env.GetBoolOr("SHIELD_HSTS_ENABLED", false),
		HSTSMaxAge:            env.GetOr("SHIELD_HSTS_MAX_AGE", ""),
		HSTSIncludeSubDomains: env.GetBoolOr("SHIELD_HSTS_INCLUDE_SUBDOMAINS", false),
		HSTSPreload:           env.GetBoolOr("SHIELD_HSTS_PRELOAD", false),

		NoSniffEnabled:     env.GetBoolOr("SHIELD_NOSNIFF_ENABLED", false),
		DNSPrefetchEnabled: env.GetBoolOr("SHIELD_DNS_PREFETCH_ENABLED", false),
		DNSPrefetchAllow:   env.GetBoolOr("SHIELD_DNS_PREFETCH_ALLOW", false),

		CSPEnabled:     env.GetBoolOr("SHIELD_CSP_ENABLED", false),
		CSPDirectives:  env.GetOr("SHIELD_CSP_DIRECTIVES", ""),
		CSPReportOnly:  env.GetBoolOr("SHIELD_CSP_REPORT_ONLY", false),
		CSPUseDefaults: env.GetBoolOr("SHIELD_CSP_USE_DEFAULTS", false),

		XSSEnabled:    env.GetBoolOr("SHIELD_XSS_ENABLED", false),
		NoOpenEnabled: env.GetBoolOr("SHIELD_NOOPEN_ENABLED", false),
	}
}

// Load reads, validates and converts the environment. A nil validator
// uses validation.New.
func Load(env ports.EnvVar, v ports.Validator) (Config, error) {
	if v == nil {
		v = validation.New()
	}
	raw := ReadRaw(env)
	if err := v.ValidateStruct(context.Background(), raw); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return raw.convert()
}

func (raw Raw) convert() (Config, error) {
	cfg := Config{
		Addr:        raw.Addr,
		LogLevel:    raw.LogLevel,
		Env:         raw.Env,
		AppKey:      raw.AppKey,
		SessionDSN:  raw.SessionDSN,
		SessionTTL:  time.Duration(raw.SessionTTLSeconds) * time.Second,
		CORSOrigins: raw.CORSOrigins,
	}

	action, err := frameguard.ParseAction(raw.XFrameAction, raw.XFrameDomain)
	if raw.XFrameEnabled && err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	cookie := csrf.DefaultCookieOptions()
	cookie.Secure = cfg.Production()

	cfg.Shield = secure.Config{
		XFrame: frameguard.Options{Enabled: raw.XFrameEnabled, Action: action},
		HSTS: hsts.Options{
			Enabled:           raw.HSTSEnabled,
			MaxAge:            parseMaxAge(raw.HSTSMaxAge),
			IncludeSubDomains: raw.HSTSIncludeSubDomains,
			Preload:           raw.HSTSPreload,
		},
		CSP: csp.Options{
			Enabled:     raw.CSPEnabled,
			Directives:  csp.ParseDirectives(raw.CSPDirectives),
			ReportOnly:  raw.CSPReportOnly,
			UseDefaults: raw.CSPUseDefaults,
		},
		CSRF: csrf.Options{
			Enabled:          raw.CSRFEnabled,
			Methods:          raw.CSRFMethods,
			ExceptRoutes:     raw.CSRFExceptRoutes,
			EnableXsrfCookie: raw.CSRFXsrfCookie,
			Cookie:           cookie,
		},
	}
	cfg.Shield.ContentTypeSniffing.Enabled = raw.NoSniffEnabled
	cfg.Shield.DNSPrefetch.Enabled = raw.DNSPrefetchEnabled
	cfg.Shield.DNSPrefetch.Allow = raw.DNSPrefetchAllow
	cfg.Shield.XSSProtection.Enabled = raw.XSSEnabled
	cfg.Shield.NoOpen.Enabled = raw.NoOpenEnabled
	return cfg, nil
}

// parseMaxAge reads integers as seconds and anything else as a duration
// expression. Empty means the default.
func parseMaxAge(s string) hsts.MaxAge {
	s = strings.TrimSpace(s)
	if s == "" {
		return hsts.MaxAge{}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return hsts.Seconds(n)
	}
	return hsts.Expr(s)
}

func upper(in []string) []string {
	for i := range in {
		in[i] = strings.ToUpper(in[i])
	}
	return in
}

// MustLoadFromEnv loads .env files when present, then the environment. It
// panics on invalid configuration.
func MustLoadFromEnv() Config {
	adapter := envvar.New()
	adapter.LoadEnvFiles([]string{".env"})
	cfg, err := Load(adapter, nil)
	if err != nil {
		panic(err)
	}
	return cfg
}
