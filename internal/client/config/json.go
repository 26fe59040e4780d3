package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ledgerlock/ledgerlock/internal/flagx"
	"github.com/ledgerlock/ledgerlock/internal/timex"
)

// jsonConfig is the unmarshalling DTO. timex.Duration lets the file spell
// the timeout either as a string like "10s" or as integer nanoseconds.
type jsonConfig struct {
	ServerEndpointAddr string         `json:"server_endpoint_addr"`
	SessionDBPath      string         `json:"session_db_path"`
	RequestTimeout     timex.Duration `json:"request_timeout"`
}

// parseJson overlays cfg with values from the JSON file named by the -c or
// -config flag. No flag means no file and no error; a file that was asked
// for but cannot be read or parsed is an error, not something to shrug off
// with defaults the user explicitly tried to override.
func parseJson(cfg *Config) error {
	path := flagx.JsonConfigFlags()
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	var jc jsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}

	cfg.ServerEndpointAddr = jc.ServerEndpointAddr
	cfg.SessionDBPath = jc.SessionDBPath
	cfg.RequestTimeout = time.Duration(jc.RequestTimeout.Duration)
	return nil
}
