package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dyike/CortexTrader/config"
	"github.com/dyike/CortexTrader/internal/display"
)

// newConfigCmd creates the config command
func newConfigCmd(root *rootOptions) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			mgr, cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			return showConfig(cmd.OutOrStdout(), mgr.Path(), cfg)
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration and API credentials",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			return validateConfig(cmd.OutOrStdout(), cfg)
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "get KEY",
		Short: "Print one configuration value from the config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, _, err := root.loadConfig()
			if err != nil {
				return err
			}
			v, err := GetConfigValue(mgr.Get(), args[0])
			if err != nil {
				return err
			}
			data, _ := json.Marshal(v)
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:     "set KEY VALUE",
		Short:   "Set one configuration value in the config file",
		Example: "  cortextrader config set max_debate_rounds 3\n  cortextrader config set watchlist '[\"AAPL\",\"MSFT\"]'",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, _, err := root.loadConfig()
			if err != nil {
				return err
			}
			updated, err := SetConfigValue(mgr.Get(), args[0], args[1])
			if err != nil {
				return err
			}
			if err := mgr.Update(updated); err != nil {
				return fmt.Errorf("rejected %s: %w", args[0], err)
			}
			display.DisplaySuccess(cmd.OutOrStdout(), fmt.Sprintf("%s updated in %s", args[0], mgr.Path()))
			return nil
		},
	})

	return configCmd
}

func configMap(cfg config.Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	m := map[string]any{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// GetConfigValue looks a value up by its JSON key.
func GetConfigValue(cfg config.Config, key string) (any, error) {
	m, err := configMap(cfg)
	if err != nil {
		return nil, err
	}
	v, ok := m[strings.ToLower(key)]
	if !ok {
		return nil, fmt.Errorf("unknown configuration key: %s", key)
	}
	return v, nil
}

// SetConfigValue returns cfg with key set. raw is parsed as JSON and falls back to a
// plain string, so both `3` and `deepseek-chat` work.
func SetConfigValue(cfg config.Config, key, raw string) (config.Config, error) {
	key = strings.ToLower(key)
	m, err := configMap(cfg)
	if err != nil {
		return cfg, err
	}
	if _, ok := m[key]; !ok {
		return cfg, fmt.Errorf("unknown configuration key: %s", key)
	}

	var parsed any
	if err := json.Unmarshal([]byte(raw), &parsed); err == nil {
		m[key] = parsed
		if out, err := decodeConfig(m); err == nil {
			return out, nil
		}
	}
	m[key] = raw
	out, err := decodeConfig(m)
	if err != nil {
		return cfg, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return out, nil
}

func decodeConfig(m map[string]any) (config.Config, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return config.Config{}, err
	}
	var cfg config.Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func isSecretKey(key string) bool {
	return strings.HasSuffix(key, "_api_key") || strings.HasSuffix(key, "_secret") || strings.HasSuffix(key, "_token")
}

// showConfig prints every key, masking credentials.
func showConfig(w io.Writer, path string, cfg config.Config) error {
	m, err := configMap(cfg)
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintln(w, titleStyle.Render("📋 CortexTrader configuration"))
	fmt.Fprintln(w, keyStyle.Render("config file")+path)
	for _, k := range keys {
		v := m[k]
		if isSecretKey(k) {
			s, _ := v.(string)
			fmt.Fprintln(w, keyStyle.Render(k)+configured(s != ""))
			continue
		}
		data, _ := json.Marshal(v)
		fmt.Fprintln(w, keyStyle.Render(k)+string(data))
	}
	return nil
}

// validateConfig fails on invalid settings and warns about missing credentials.
func validateConfig(w io.Writer, cfg config.Config) error {
	fmt.Fprintln(w, titleStyle.Render("🔍 Validating configuration"))
	if err := cfg.Validate(); err != nil {
		display.DisplayError(w, err, "configuration")
		return err
	}
	display.DisplaySuccess(w, "settings are valid")

	var warnings []string
	switch cfg.LLMProvider {
	case "deepseek":
		if cfg.DeepSeekAPIKey == "" {
			warnings = append(warnings, "DEEPSEEK_API_KEY is not set")
		}
	default:
		if cfg.OpenAIAPIKey == "" && cfg.DeepSeekAPIKey == "" {
			warnings = append(warnings, "neither OPENAI_API_KEY nor DEEPSEEK_API_KEY is set")
		}
	}
	if cfg.PriceSource == "longport" && (cfg.LongportAppKey == "" || cfg.LongportAppSecret == "" || cfg.LongportAccessToken == "") {
		warnings = append(warnings, "price_source is longport but LONGPORT_* credentials are incomplete")
	}
	if cfg.FinnhubAPIKey == "" {
		warnings = append(warnings, "CORTEX_FINNHUB_API_KEY is not set; news falls back to scraping and fundamentals to Yahoo")
	}

	for _, warning := range warnings {
		display.DisplayWarning(w, warning)
	}
	if len(warnings) == 0 {
		display.DisplaySuccess(w, "all credentials configured")
	}
	return nil
}
