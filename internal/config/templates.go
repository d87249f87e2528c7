package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Heston Pricer Configuration
# Every key is optional; missing keys take the values shown here.

[market]
# Spot price of the underlying
spot = 6627.88
# Strike price
strike = 6630.00
# Time to maturity in years
maturity = 0.25
# Continuously compounded risk-free rate
rate = 0.03864
# Observed market price of the call
observed_price = 295.00
# Implied volatility used for the Black-Scholes price
implied_vol = 0.2104

[heston]
# Initial variance
v0 = 0.035
# Mean-reversion speed
kappa = 2.5
# Long-run variance
theta = 0.03
# Volatility of variance
sigma = 0.4
# Spot/variance correlation
rho = -0.7

[integration]
# Truncated Gil-Pelaez frequency range. The upper bound is not adapted to the
# parameters: very high vol-of-vol or long maturities may need a larger value.
lower_bound = 1e-8
upper_bound = 100.0
# Maximum number of adaptive subintervals
limit = 100
abs_tolerance = 1.49e-8
rel_tolerance = 1.49e-8
# Wall-clock limit for one valuation ("0s" disables it)
timeout = "10s"
# Integrate P1 and P2 concurrently
concurrent = false

[validation]
# Reject non-positive spot/strike/maturity and out-of-range model parameters
strict = false

[store]
# Record every valuation in the history database
enabled = false
# path = "~/.config/heston-pricer/valuations.db"

[logging]
# debug, info, warn, error, disabled
level = "warn"
console = true
file = false
max_size = 20
max_backups = 5
max_age = 30

[ui]
color_enabled = true
`

func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}
	return nil
}
