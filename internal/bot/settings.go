package bot

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dvloznov/telegrind/internal/domain"
)

var currencyRe = regexp.MustCompile(`^[A-Za-z]{3}$`)

// parseSettings applies "tz=<hours> currency=<code>" arguments to cfg.
// Keys may come in any order; omitted keys keep their value.
func parseSettings(args string, cfg domain.DocumentConfig) (domain.DocumentConfig, error) {
	for _, field := range strings.Fields(args) {
		key, value, ok := strings.Cut(field, "=")
		if !ok || value == "" {
			return cfg, fmt.Errorf("parseSettings: %q is not key=value", field)
		}
		switch strings.ToLower(key) {
		case "tz", "utc", "timezone":
			hours, err := strconv.Atoi(strings.TrimPrefix(value, "+"))
			if err != nil || hours < -12 || hours > 14 {
				return cfg, fmt.Errorf("parseSettings: bad utc offset %q", value)
			}
			cfg.UTCOffsetHours = hours
		case "currency", "cur":
			if !currencyRe.MatchString(value) {
				return cfg, fmt.Errorf("parseSettings: bad currency %q", value)
			}
			cfg.DefaultCurrency = strings.ToUpper(value)
		default:
			return cfg, fmt.Errorf("parseSettings: unknown setting %q", key)
		}
	}
	return cfg, nil
}
