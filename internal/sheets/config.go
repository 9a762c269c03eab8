package sheets

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/dvloznov/telegrind/internal/domain"
)

// ConfigSheetName is the worksheet holding per-document settings.
const ConfigSheetName = "_config"

// Settings labels, one per row, in column A.
const (
	offsetLabel   = "timezone offset (hours)"
	currencyLabel = "default currency"
)

var configSpec = domain.WorksheetSpec{Name: ConfigSheetName, Rows: 2, Cols: 2}

// ConfigSheet reads and writes the 2x2 settings range. A missing worksheet is
// created and filled with defaults on first access.
type ConfigSheet struct {
	session *Session
	cached  *domain.DocumentConfig
}

func (c *ConfigSheet) rangeA1() string {
	return quoteSheet(ConfigSheetName) + "!A1:B2"
}

// Get returns the document settings, cached for the session.
func (c *ConfigSheet) Get(ctx context.Context) (domain.DocumentConfig, error) {
	if c.cached != nil {
		return *c.cached, nil
	}

	_, created, err := c.session.Worksheet(ctx, configSpec)
	if err != nil {
		return domain.DocumentConfig{}, fmt.Errorf("ConfigSheet.Get: %w", err)
	}
	if created {
		cfg := domain.DefaultDocumentConfig()
		if err := c.Write(ctx, cfg); err != nil {
			return domain.DocumentConfig{}, err
		}
		return cfg, nil
	}

	rows, err := c.session.api.GetValues(ctx, c.session.documentID, c.rangeA1())
	if err != nil {
		return domain.DocumentConfig{}, fmt.Errorf("ConfigSheet.Get: %w", err)
	}
	cfg := decodeConfig(rows)
	if cfg.invalid != "" {
		c.session.log.Warn().Str("value", cfg.invalid).Msg("Unreadable settings value, using default")
	}
	c.cached = &cfg.DocumentConfig
	return cfg.DocumentConfig, nil
}

// Write overwrites the settings range and refreshes the cache. The currency
// is stored trimmed and upper-cased, in the sheet and in the cache alike.
func (c *ConfigSheet) Write(ctx context.Context, cfg domain.DocumentConfig) error {
	if _, _, err := c.session.Worksheet(ctx, configSpec); err != nil {
		return fmt.Errorf("ConfigSheet.Write: %w", err)
	}
	cfg.DefaultCurrency = strings.ToUpper(strings.TrimSpace(cfg.DefaultCurrency))
	values := [][]interface{}{
		{offsetLabel, cfg.UTCOffsetHours},
		{currencyLabel, cfg.DefaultCurrency},
	}
	if err := c.session.api.UpdateValues(ctx, c.session.documentID, c.rangeA1(), values); err != nil {
		return fmt.Errorf("ConfigSheet.Write: %w", err)
	}
	c.cached = &cfg
	return nil
}

type decodedConfig struct {
	domain.DocumentConfig
	invalid string
}

// decodeConfig maps row i to setting i; values that fail to coerce keep
// their defaults.
func decodeConfig(rows [][]interface{}) decodedConfig {
	out := decodedConfig{DocumentConfig: domain.DefaultDocumentConfig()}
	value := func(i int) (string, bool) {
		if i >= len(rows) || len(rows[i]) < 2 {
			return "", false
		}
		return strings.TrimSpace(domain.CellText(rows[i][1])), true
	}

	if v, ok := value(0); ok {
		if f, err := strconv.ParseFloat(strings.Replace(v, ",", ".", 1), 64); err == nil {
			out.UTCOffsetHours = int(f)
		} else {
			out.invalid = v
		}
	}
	if v, ok := value(1); ok && v != "" {
		out.DefaultCurrency = strings.ToUpper(v)
	}
	return out
}
