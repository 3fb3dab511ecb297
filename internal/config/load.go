// File: internal/config/load.go
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/ini.v1"
)

// FileName is the base name looked up in the search directories.
const FileName = "rmv_config"

// searchExts is the lookup order within one directory.
var searchExts = []string{"yaml", "yml", "json", "toml", "ini"}

// FindFile returns the first FileName.<ext> found in dirs, or "" if there is none.
func FindFile(dirs []string) string {
	for _, dir := range dirs {
		for _, ext := range searchExts {
			candidate := filepath.Join(dir, FileName+"."+ext)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate
			}
		}
	}
	return ""
}

// ReadFile loads the file at path into v. INI files in the legacy
// rmv_config.ini layout are parsed here since viper has no INI codec.
func ReadFile(v *viper.Viper, path string) error {
	if strings.EqualFold(filepath.Ext(path), ".ini") {
		return readINI(v, path)
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file '%s': %w", path, err)
	}
	return nil
}

func readINI(v *viper.Viper, path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("config file '%s' does not exist", path)
	}
	file, err := ini.Load(path)
	if err != nil {
		return fmt.Errorf("error reading config file '%s': %w", path, err)
	}

	settings := make(map[string]interface{})
	for _, section := range file.Sections() {
		name := strings.ToLower(section.Name())
		values := iniValues(name, section)
		if section.Name() == ini.DefaultSection {
			for k, val := range values {
				settings[k] = val
			}
			continue
		}
		settings[name] = values
	}
	return v.MergeConfigMap(settings)
}

// iniValues returns the non-empty keys of section. An empty value leaves the
// key unset, so "guidelines_agreed =" still means "ask". Keys of the general
// section are INI booleans (yes/no, on/off, 1/0, true/false).
func iniValues(name string, section *ini.Section) map[string]interface{} {
	values := make(map[string]interface{}, len(section.Keys()))
	for _, key := range section.Keys() {
		raw := strings.TrimSpace(key.String())
		if raw == "" {
			continue
		}
		k := strings.ToLower(key.Name())
		if name == "general" {
			if b, err := key.Bool(); err == nil {
				values[k] = b
				continue
			}
		}
		values[k] = raw
	}
	return values
}
