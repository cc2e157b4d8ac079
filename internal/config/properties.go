package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/magiconair/properties"
)

// ErrConfigMissing is returned when a properties file does not exist or cannot be read.
// Callers log it and continue with an empty property set.
var ErrConfigMissing = errors.New("configuration file missing")

// Keys of the one-time initialization file.
const (
	KeySecretServerURL        = "datasource.secretServerUrl"
	KeySecretServerRule       = "datasource.secretServerRule"
	KeySecretServerKey        = "datasource.secretServerKey"
	KeySecretServerCacheStrat = "datasource.secretServerCacheStrat"
	KeySecretServerCacheAge   = "datasource.secretServerCacheAge"
)

// LoadProperties reads a Java-style .properties file.
// It always returns a usable (possibly empty) property set; the error wraps
// ErrConfigMissing when the file is absent or unreadable.
// ${} expansion is disabled because values are vendor field names and URLs.
func LoadProperties(path string) (*properties.Properties, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return properties.NewProperties(), fmt.Errorf("%w: %s", ErrConfigMissing, path)
		}
		return properties.NewProperties(), fmt.Errorf("%w: reading %s: %v", ErrConfigMissing, path, err)
	}

	loader := &properties.Loader{Encoding: properties.UTF8, DisableExpansion: true}
	props, err := loader.LoadBytes(data)
	if err != nil {
		return properties.NewProperties(), fmt.Errorf("parsing properties %s: %w", path, err)
	}
	return props, nil
}

// QualifierSettings holds the connection settings used once to register the tss client.
type QualifierSettings struct {
	URL           string
	Rule          string
	OnboardingKey string // Optional.
	CacheStrategy string
	CacheAge      string // Minutes.
}

// QualifierFromProperties extracts the initialization settings.
func QualifierFromProperties(p *properties.Properties) QualifierSettings {
	return QualifierSettings{
		URL:           p.GetString(KeySecretServerURL, ""),
		Rule:          p.GetString(KeySecretServerRule, ""),
		OnboardingKey: p.GetString(KeySecretServerKey, ""),
		CacheStrategy: p.GetString(KeySecretServerCacheStrat, ""),
		CacheAge:      p.GetString(KeySecretServerCacheAge, ""),
	}
}
