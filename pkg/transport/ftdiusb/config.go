package ftdiusb

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/gousb"
)

// CableConfig overrides cable selection when the default enumeration
// behavior (scan KnownCables, open the first hit) isn't what's wanted —
// multiple cables plugged in at once, or a cable whose VID/PID isn't in
// KnownCables yet.
type CableConfig struct {
	VID, PID gousb.ID
	HasVIDPID bool
	DevicePath string
}

var (
	cableConfig     *CableConfig
	cableConfigDone bool
)

// LoadCableConfig reads cable overrides from a .env file (walking up from
// the working directory to the nearest go.mod, same discovery rule as the
// rest of this module's configuration) and then from environment
// variables, which take precedence: DIVECOMPUTER_VID, DIVECOMPUTER_PID,
// DIVECOMPUTER_DEVICE_PATH.
func LoadCableConfig() (*CableConfig, error) {
	if cableConfig != nil && cableConfigDone {
		return cableConfig, nil
	}

	cfg := &CableConfig{}

	envPath := filepath.Join(findProjectRoot(), ".env")
	if data, err := os.ReadFile(envPath); err == nil {
		parseCableEnvFile(string(data), cfg)
	}

	if vid := os.Getenv("DIVECOMPUTER_VID"); vid != "" {
		if v, err := strconv.ParseUint(vid, 0, 16); err == nil {
			cfg.VID = gousb.ID(v)
			cfg.HasVIDPID = true
		}
	}
	if pid := os.Getenv("DIVECOMPUTER_PID"); pid != "" {
		if v, err := strconv.ParseUint(pid, 0, 16); err == nil {
			cfg.PID = gousb.ID(v)
			cfg.HasVIDPID = true
		}
	}
	if path := os.Getenv("DIVECOMPUTER_DEVICE_PATH"); path != "" {
		cfg.DevicePath = path
	}

	cableConfig = cfg
	cableConfigDone = true
	return cfg, nil
}

func parseCableEnvFile(content string, cfg *CableConfig) {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		switch key {
		case "DIVECOMPUTER_VID":
			if v, err := strconv.ParseUint(value, 0, 16); err == nil {
				cfg.VID = gousb.ID(v)
				cfg.HasVIDPID = true
			}
		case "DIVECOMPUTER_PID":
			if v, err := strconv.ParseUint(value, 0, 16); err == nil {
				cfg.PID = gousb.ID(v)
				cfg.HasVIDPID = true
			}
		case "DIVECOMPUTER_DEVICE_PATH":
			cfg.DevicePath = value
		}
	}
}

func findProjectRoot() string {
	cwd, _ := os.Getwd()
	if _, err := os.Stat(filepath.Join(cwd, ".env")); err == nil {
		return cwd
	}
	for {
		if _, err := os.Stat(filepath.Join(cwd, "go.mod")); err == nil {
			return cwd
		}
		parent := filepath.Dir(cwd)
		if parent == cwd {
			return cwd
		}
		cwd = parent
	}
}
