package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/c360/vizflow/errors"
)

// Limits applied to configuration input.
const (
	maxConfigSize = 1 << 20
	maxJSONDepth  = 64
	maxEnvVarLen  = 4096
	maxPathLen    = 4096
)

// checkConfigPath rejects empty, oversized and parent-escaping paths, and
// anything that is not JSON or YAML.
func checkConfigPath(path string) error {
	if path == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "checkConfigPath", "empty path")
	}
	if len(path) > maxPathLen {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "checkConfigPath",
			fmt.Sprintf("path length %d exceeds %d", len(path), maxPathLen))
	}
	if !filepath.IsAbs(path) {
		for _, part := range strings.Split(filepath.ToSlash(path), "/") {
			if part == ".." {
				return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "checkConfigPath",
					"relative path leaves the working directory: "+path)
			}
		}
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return nil
	default:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "checkConfigPath",
			"config files must be JSON or YAML: "+path)
	}
}

func readConfigFile(path string) ([]byte, error) {
	if err := checkConfigPath(path); err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Config", "readConfigFile", "stat "+path)
	}
	if !info.Mode().IsRegular() {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "readConfigFile", "not a regular file: "+path)
	}
	if info.Size() > maxConfigSize {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "readConfigFile",
			fmt.Sprintf("%s is %d bytes, limit %d", path, info.Size(), maxConfigSize))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapTransient(err, "Config", "readConfigFile", "read "+path)
	}
	return data, nil
}

func writeConfigFile(path string, data []byte) error {
	if err := checkConfigPath(path); err != nil {
		return err
	}
	if len(data) > maxConfigSize {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "writeConfigFile",
			fmt.Sprintf("%d bytes exceeds %d", len(data), maxConfigSize))
	}
	return os.WriteFile(path, data, 0o600)
}

func checkEnvValue(key, value string) error {
	if len(value) > maxEnvVarLen {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "checkEnvValue",
			fmt.Sprintf("%s is %d bytes, limit %d", key, len(value), maxEnvVarLen))
	}
	if strings.ContainsRune(value, 0) {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "checkEnvValue", "null byte in "+key)
	}
	return nil
}

// checkJSONDepth scans for nesting deeper than maxJSONDepth before the
// document is decoded.
func checkJSONDepth(data []byte) error {
	depth := 0
	inString, escaped := false, false
	for _, b := range data {
		switch {
		case escaped:
			escaped = false
		case inString && b == '\\':
			escaped = true
		case b == '"':
			inString = !inString
		case inString:
		case b == '{' || b == '[':
			depth++
			if depth > maxJSONDepth {
				return errors.WrapInvalid(errors.ErrParsingFailed, "Config", "checkJSONDepth",
					fmt.Sprintf("nesting deeper than %d", maxJSONDepth))
			}
		case b == '}' || b == ']':
			depth--
			if depth < 0 {
				return errors.WrapInvalid(errors.ErrParsingFailed, "Config", "checkJSONDepth", "unbalanced brackets")
			}
		}
	}
	return nil
}
