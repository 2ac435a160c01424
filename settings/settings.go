// Package settings loads runtime settings from defaults, an optional JSON
// file and AUTODRIVE_* environment variables.
package settings

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// FileName is the settings file looked up in the working directory
const FileName = "autodrive.json"

const (
	StorageFile   = "file"
	StorageSQLite = "sqlite"
)

// ErrInvalidSettings is returned when a loaded value is unusable
var ErrInvalidSettings = errors.New("invalid settings")

// Settings holds the resolved runtime settings
type Settings struct {
	Host string
	Port int

	ScenariosDir string
	SessionsDir  string

	StorageType string
	SQLitePath  string

	LogLevel string
	LogFile  string

	NgrokEnabled bool
	NgrokDomain  string

	ReplayDelay time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)

	v.SetDefault("paths.scenarios", "scenarios")
	v.SetDefault("paths.sessions", "sessions")

	v.SetDefault("storage.type", StorageFile)
	v.SetDefault("storage.sqlitePath", "sessions/autodrive.db")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "autodrive.log")

	v.SetDefault("ngrok.enabled", false)
	v.SetDefault("ngrok.domain", "")

	v.SetDefault("replay.delay", "300ms")
}

// Load resolves settings. An empty path looks for autodrive.json in the
// working directory and tolerates its absence; an explicit path must exist.
func Load(path string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("AUTODRIVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading settings file: %w", err)
		}
	} else {
		v.SetConfigName(strings.TrimSuffix(FileName, ".json"))
		v.SetConfigType("json")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading settings file: %w", err)
			}
		}
	}

	s := &Settings{
		Host:         v.GetString("server.host"),
		Port:         v.GetInt("server.port"),
		ScenariosDir: v.GetString("paths.scenarios"),
		SessionsDir:  v.GetString("paths.sessions"),
		StorageType:  strings.ToLower(v.GetString("storage.type")),
		SQLitePath:   v.GetString("storage.sqlitePath"),
		LogLevel:     v.GetString("log.level"),
		LogFile:      v.GetString("log.file"),
		NgrokEnabled: v.GetBool("ngrok.enabled"),
		NgrokDomain:  v.GetString("ngrok.domain"),
		ReplayDelay:  v.GetDuration("replay.delay"),
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks values that cannot be defaulted around
func (s *Settings) Validate() error {
	switch s.StorageType {
	case StorageFile, StorageSQLite:
	default:
		return fmt.Errorf("%w: storage.type must be %q or %q, got %q",
			ErrInvalidSettings, StorageFile, StorageSQLite, s.StorageType)
	}
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("%w: server.port out of range: %d", ErrInvalidSettings, s.Port)
	}
	if s.ReplayDelay < 0 {
		return fmt.Errorf("%w: replay.delay cannot be negative", ErrInvalidSettings)
	}
	return nil
}

// Addr returns host:port for the HTTP listener
func (s *Settings) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
