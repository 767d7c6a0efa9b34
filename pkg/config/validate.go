package config

import (
	"fmt"
	"slices"
	"strings"

	"go.uber.org/multierr"
)

// validate catches values envconfig accepts but the services cannot run
// with. Every problem is reported, not just the first.
func (c *Config) validate() error {
	var errs error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = multierr.Append(errs, fmt.Errorf(format, args...))
		}
	}

	env := strings.ToLower(c.App.Env)
	check(slices.Contains([]string{AppEnvDev, AppEnvStaging, AppEnvProd}, env),
		"%s must be dev, staging or prod, got %q", EnvAppEnv, c.App.Env)
	check(c.App.LogFormat == "" || c.App.LogFormat == "json" || c.App.LogFormat == "console",
		"GEBEYA_LOG_FORMAT must be json or console, got %q", c.App.LogFormat)
	check(c.DB.Driver == "" || c.DB.Driver == "postgres" || c.DB.Driver == "sqlite",
		"GEBEYA_DB_DRIVER must be postgres or sqlite, got %q", c.DB.Driver)
	check(c.DB.Driver != "sqlite" || env != AppEnvProd,
		"sqlite is not supported in prod")
	check(len(c.Orders.Currency) == 3,
		"GEBEYA_ORDERS_CURRENCY must be an ISO 4217 code, got %q", c.Orders.Currency)
	check(c.Orders.MaxLineItems > 0, "GEBEYA_ORDERS_MAX_LINE_ITEMS must be positive")
	check(c.Payouts.VerificationCodeDigits >= 4 && c.Payouts.VerificationCodeDigits <= 10,
		"GEBEYA_PAYOUT_VERIFICATION_CODE_DIGITS must be between 4 and 10, got %d", c.Payouts.VerificationCodeDigits)
	check(c.Outbox.MaxAttempts > 0, "GEBEYA_OUTBOX_MAX_ATTEMPTS must be positive")
	check(c.Cron.LockTTL >= c.Cron.Interval,
		"GEBEYA_CRON_LOCK_TTL (%s) must cover GEBEYA_CRON_INTERVAL (%s)", c.Cron.LockTTL, c.Cron.Interval)
	return errs
}
