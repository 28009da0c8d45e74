package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "missionsim.cfg.json"

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds SQLite storage backend settings
type SQLiteConfig struct {
	Path         string        `json:"path" mapstructure:"path"`
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
}

// StorageConfig selects and configures the storage backend
type StorageConfig struct {
	Type   string       `json:"type" mapstructure:"type"`
	Memory MemoryConfig `json:"memory" mapstructure:"memory"`
	SQLite SQLiteConfig `json:"sqlite" mapstructure:"sqlite"`
}

// SimulationConfig holds the simulated window and progress reporting
type SimulationConfig struct {
	StartSec         int           `json:"startSec" mapstructure:"startSec"`
	EndSec           int           `json:"endSec" mapstructure:"endSec"`
	ProgressInterval time.Duration `json:"progressInterval" mapstructure:"progressInterval"`
}

// OutputConfig holds the ndjson output paths
type OutputConfig struct {
	TimelinePath string `json:"timelinePath" mapstructure:"timelinePath"`
	EventPath    string `json:"eventPath" mapstructure:"eventPath"`
	Compress     bool   `json:"compress" mapstructure:"compress"`
}

// InfluxConfig holds InfluxDB connection settings
type InfluxConfig struct {
	Enabled    bool   `json:"enabled" mapstructure:"enabled"`
	Host       string `json:"host" mapstructure:"host"`
	Port       string `json:"port" mapstructure:"port"`
	Protocol   string `json:"protocol" mapstructure:"protocol"`
	Token      string `json:"token" mapstructure:"token"`
	Org        string `json:"org" mapstructure:"org"`
	BackupPath string `json:"backupPath" mapstructure:"backupPath"`
}

// EnvPrefix prefixes environment overrides: db.password is read from
// MISSIONSIM_DB_PASSWORD.
const EnvPrefix = "MISSIONSIM"

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file. An optional .env
// file next to it is loaded into the environment first; environment
// variables override the file.
func Load(configDir string) error {
	SetDefaults()

	envFile := filepath.Join(configDir, ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error reading %s: %w", envFile, err)
	}
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// SetDefaults registers the default of every known key.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./simlogs")

	viper.SetDefault("simulation.startSec", 0)
	viper.SetDefault("simulation.endSec", 86400)
	viper.SetDefault("simulation.progressInterval", "10s")

	viper.SetDefault("output.timelinePath", "./timeline.ndjson")
	viper.SetDefault("output.eventPath", "./events.ndjson")
	viper.SetDefault("output.compress", false)

	viper.SetDefault("storage.type", "ndjson")
	viper.SetDefault("storage.memory.outputDir", "./recordings")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.path", "")
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "missionsim")

	viper.SetDefault("mysql.host", "localhost")
	viper.SetDefault("mysql.port", "3306")
	viper.SetDefault("mysql.username", "root")
	viper.SetDefault("mysql.password", "")
	viper.SetDefault("mysql.database", "missionsim")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "missionsim")
	viper.SetDefault("influx.backupPath", "./simlogs/influx_backup.log.gz")

	viper.SetDefault("api.serverUrl", "http://localhost:5000")
	viper.SetDefault("api.apiKey", "")
	viper.SetDefault("api.upload", false)

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("dispatcher.bufferSize", 4096)

	viper.SetDefault("metrics.address", "")
}

// BindFlags maps command line flags onto their config keys. Flags the user
// did not set leave the file or default value in place.
func BindFlags(fs *pflag.FlagSet) error {
	bindings := map[string]string{
		"output.timelinePath": "timeline-log",
		"output.eventPath":    "event-log",
		"storage.type":        "storage",
		"logLevel":            "log-level",
		"simulation.startSec": "start-sec",
		"simulation.endSec":   "end-sec",
		"api.upload":          "upload",
	}
	for key, flag := range bindings {
		f := fs.Lookup(flag)
		if f == nil {
			continue
		}
		if err := viper.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding flag %q: %w", flag, err)
		}
	}
	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetStorageConfig returns the storage backend settings.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			Path:         viper.GetString("storage.sqlite.path"),
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
		},
	}
}

// GetSimulationConfig returns the simulated window settings.
func GetSimulationConfig() SimulationConfig {
	return SimulationConfig{
		StartSec:         viper.GetInt("simulation.startSec"),
		EndSec:           viper.GetInt("simulation.endSec"),
		ProgressInterval: viper.GetDuration("simulation.progressInterval"),
	}
}

// GetOutputConfig returns the ndjson output settings.
func GetOutputConfig() OutputConfig {
	return OutputConfig{
		TimelinePath: viper.GetString("output.timelinePath"),
		EventPath:    viper.GetString("output.eventPath"),
		Compress:     viper.GetBool("output.compress"),
	}
}

// GetInfluxConfig returns the InfluxDB settings.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:    viper.GetBool("influx.enabled"),
		Host:       viper.GetString("influx.host"),
		Port:       viper.GetString("influx.port"),
		Protocol:   viper.GetString("influx.protocol"),
		Token:      viper.GetString("influx.token"),
		Org:        viper.GetString("influx.org"),
		BackupPath: viper.GetString("influx.backupPath"),
	}
}
