package toml

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	configName = "config"
	configType = "toml"
	homeEnvVar = "CTXCACHE_HOME"
	appDirName = "ctxcache"

	capacityKey       = "engine.context_capacity"
	batchSizeKey      = "engine.max_batch_size"
	maxTokensKey      = "generation.max_tokens"
	runwayKey         = "generation.reserved_runway"
	templateKey       = "prompt.template"
	systemTextKey     = "prompt.system_text"
	overheadKey       = "prompt.per_turn_overhead"
	transcriptsDirKey = "transcripts.dir"
)

// Config carries the runtime settings read from config.toml, with defaults
// applied for anything the file leaves out.
type Config struct {
	ContextCapacity int
	MaxBatchSize    int
	MaxTokens       int
	ReservedRunway  int
	Template        string
	SystemText      string
	PerTurnOverhead int
	TranscriptsDir  string
}

// ConfigDir resolves the application directory: $CTXCACHE_HOME when set,
// otherwise ctxcache under the user config directory.
func ConfigDir() (string, error) {
	if dir := os.Getenv(homeEnvVar); dir != "" {
		return filepath.Clean(dir), nil
	}

	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config directory: %w", err)
	}

	return filepath.Join(base, appDirName), nil
}

func LoadConfig(cfg *viper.Viper) (Config, error) {
	if cfg == nil {
		cfg = viper.New()
	}

	dir, err := ConfigDir()
	if err != nil {
		return Config{}, err
	}

	cfg.SetConfigName(configName)
	cfg.SetConfigType(configType)
	cfg.AddConfigPath(dir)
	cfg.SetDefault(capacityKey, 4096)
	cfg.SetDefault(batchSizeKey, 256)
	cfg.SetDefault(maxTokensKey, 256)
	cfg.SetDefault(runwayKey, 64)
	cfg.SetDefault(templateKey, "chatml")
	cfg.SetDefault(systemTextKey, "")
	cfg.SetDefault(overheadKey, 8)
	cfg.SetDefault(transcriptsDirKey, filepath.Join(dir, "transcripts"))

	err = cfg.ReadInConfig()
	if err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	loaded := Config{
		ContextCapacity: cfg.GetInt(capacityKey),
		MaxBatchSize:    cfg.GetInt(batchSizeKey),
		MaxTokens:       cfg.GetInt(maxTokensKey),
		ReservedRunway:  cfg.GetInt(runwayKey),
		Template:        cfg.GetString(templateKey),
		SystemText:      cfg.GetString(systemTextKey),
		PerTurnOverhead: cfg.GetInt(overheadKey),
		TranscriptsDir:  cfg.GetString(transcriptsDirKey),
	}

	if loaded.ContextCapacity <= 0 {
		return Config{}, fmt.Errorf("context capacity must be positive, got %d", loaded.ContextCapacity)
	}
	if loaded.MaxBatchSize <= 0 {
		return Config{}, fmt.Errorf("max batch size must be positive, got %d", loaded.MaxBatchSize)
	}
	if loaded.TranscriptsDir == "" {
		return Config{}, errors.New("transcripts directory is empty")
	}

	return loaded, nil
}
