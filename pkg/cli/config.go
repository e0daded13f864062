package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/nimburion/injurystore/pkg/config"
	"github.com/nimburion/injurystore/pkg/observability/logger"
)

const redacted = "***"

// secretSettings marks configuration paths printed as *** by "config show".
var secretSettings = map[string]any{
	"storage": map[string]any{
		"redis":    map[string]any{"url": true},
		"mongodb":  map[string]any{"url": true},
		"sql":      map[string]any{"dsn": true},
		"dynamodb": map[string]any{"access_key_id": true, "secret_access_key": true, "session_token": true},
		"s3":       map[string]any{"access_key_id": true, "secret_access_key": true, "session_token": true},
		"search":   map[string]any{"password": true, "api_key": true},
	},
	"http": map[string]any{
		"auth": map[string]any{"jwt_secret": true},
	},
	"events": map[string]any{
		"rabbitmq": map[string]any{"url": true},
		"sqs":      map[string]any{"access_key_id": true, "secret_access_key": true, "session_token": true},
	},
}

// LoadConfigAndLogger loads and validates configuration, then builds the zap
// logger it describes.
func LoadConfigAndLogger(
	cfgPath,
	envPrefix,
	secretFilePath string,
	flags *pflag.FlagSet,
	defaultServiceName string,
	serviceNameOverride string,
) (*config.Config, logger.Logger, error) {
	if err := applySecretFileFlag(envPrefix, secretFilePath); err != nil {
		return nil, nil, err
	}
	cfg, err := config.NewViperLoader(cfgPath, envPrefix).WithFlags(flags).Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	cfg.Service.Name = resolveServiceNameValue(cfg.Service.Name, defaultServiceName, serviceNameOverride)

	log, err := logger.NewZapLogger(logger.Config{
		Level:  logger.LogLevel(cfg.Observability.LogLevel),
		Format: logger.LogFormat(cfg.Observability.LogFormat),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}
	if strings.EqualFold(cfg.Observability.LogLevel, string(logger.DebugLevel)) {
		log.Debug("effective configuration", "storage_type", cfg.Storage.Type, "storage_key", cfg.Storage.Key)
	}
	return cfg, log, nil
}

func applySecretFileFlag(envPrefix, secretFilePath string) error {
	if secretFilePath == "" {
		return nil
	}
	info, err := os.Stat(secretFilePath)
	if err != nil {
		return fmt.Errorf("secret file %s is not accessible: %w", secretFilePath, err)
	}
	if info.IsDir() {
		return fmt.Errorf("secret file %s must not be a directory", secretFilePath)
	}
	return os.Setenv(resolveEnvPrefix(envPrefix)+"_SECRETS_FILE", filepath.Clean(secretFilePath))
}

func resolveEnvPrefix(prefix string) string {
	trimmed := strings.TrimSpace(prefix)
	if trimmed == "" {
		return config.DefaultEnvPrefix
	}
	return strings.ToUpper(trimmed)
}

func resolveServiceNameValue(currentConfigName, defaultServiceName, serviceNameOverride string) string {
	if override := strings.TrimSpace(serviceNameOverride); override != "" {
		return override
	}
	if configured := strings.TrimSpace(currentConfigName); configured != "" {
		return configured
	}
	if fallback := strings.TrimSpace(defaultServiceName); fallback != "" {
		return fallback
	}
	return "injurystore"
}

func (a *app) configCommand() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration commands",
	}

	var showSecrets bool
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := a.loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			out, err := formatConfig(cfg, !showSecrets)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), out)
			return err
		},
	}
	showCmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "print credentials and connection strings unmasked")

	schemaCmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := config.BuildSchema()
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), schema)
		},
	}
	configCmd.AddCommand(showCmd, schemaCmd)
	return configCmd
}

func formatConfig(cfg *config.Config, redact bool) (string, error) {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	if !redact {
		return string(raw), nil
	}
	var settings map[string]any
	if err := yaml.Unmarshal(raw, &settings); err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	data, err := yaml.Marshal(redactSettings(settings, secretSettings))
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	return string(data), nil
}

// redactSettings replaces every non-empty value marked in mask.
func redactSettings(settings, mask map[string]any) map[string]any {
	out := make(map[string]any, len(settings))
	for key, value := range settings {
		m, ok := mask[key]
		if !ok {
			out[key] = value
			continue
		}
		out[key] = redactSettingValue(value, m)
	}
	return out
}

func redactSettingValue(value, mask any) any {
	if maskMap, ok := mask.(map[string]any); ok {
		valueMap, ok := value.(map[string]any)
		if !ok {
			return value
		}
		return redactSettings(valueMap, maskMap)
	}
	if s, ok := value.(string); ok && s == "" {
		return value
	}
	if value == nil {
		return value
	}
	return redacted
}
