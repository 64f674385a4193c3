package config

import (
	"log/slog"
	"net/url"
	"strings"
)

// RedactedConfig returns a copy of cfg with sensitive fields replaced by the
// placeholder "***". Use it whenever the active configuration is logged.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	redact(&out.Wallet.PrivateKey)
	redact(&out.Wallet.KeyPassword)
	redact(&out.Feed.APIKey)
	redact(&out.Database.Password)
	out.Database.DSN = redactURL(cfg.Database.DSN)
	out.Ledger.RPCURL = redactURL(cfg.Ledger.RPCURL)
	redact(&out.Redis.Password)
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)
	redact(&out.Server.APIKey)
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	// Copy slices so callers cannot mutate the original through the redacted
	// copy.
	if cfg.Notify.Events != nil {
		out.Notify.Events = append([]string(nil), cfg.Notify.Events...)
	}
	if cfg.Server.CORSOrigins != nil {
		out.Server.CORSOrigins = append([]string(nil), cfg.Server.CORSOrigins...)
	}
	return out
}

// LogValue renders the redacted configuration for slog.
func (c *Config) LogValue() slog.Value {
	r := RedactedConfig(c)
	return slog.GroupValue(
		slog.String("mode", r.Mode),
		slog.String("log_level", r.LogLevel),
		slog.String("rpc_url", r.Ledger.RPCURL),
		slog.String("donation_address", r.Ledger.DonationAddress),
		slog.String("oracle_address", r.Ledger.OracleAddress),
		slog.Duration("update_interval", r.Oracle.UpdateInterval),
		slog.Bool("fallback_key", c.Wallet.PrivateKey != "" || c.Wallet.EncryptedKeyPath != ""),
		slog.Bool("database", r.Database.Enabled),
		slog.Bool("redis", r.Redis.Enabled),
		slog.Bool("s3", r.S3.Enabled),
		slog.Int("port", r.Server.Port),
	)
}

const (
	redacted = "***"
	// redactedURLPart avoids characters url.URL would percent-encode.
	redactedURLPart = "redacted"
)

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}

// redactURL hides userinfo and query strings, where providers put API keys.
func redactURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return redacted
	}
	if u.User != nil {
		u.User = url.User(redactedURLPart)
	}
	if u.RawQuery != "" {
		u.RawQuery = redactedURLPart
	}
	// Infura-style project keys live in the last path segment.
	if i := strings.LastIndex(u.Path, "/"); i >= 0 && len(u.Path)-i-1 >= 32 {
		u.Path = u.Path[:i+1] + redactedURLPart
		u.RawPath = ""
	}
	return u.String()
}
