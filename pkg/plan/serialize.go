package plan

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

// FileName is the name WriteTo gives the plan file inside the build
// directory.
const FileName = "blade_core_config.yaml"

// WriteTo serializes plan as YAML to <buildDir>/blade_core_config.yaml,
// writing to a temporary file in the same directory first and renaming it
// into place so a reader never observes a partially-written plan.
func (p *Plan) WriteTo(buildDir string) (string, error) {
	if err := os.MkdirAll(buildDir, 0o755); err != nil {
		return "", fmt.Errorf("creating build directory %s: %w", buildDir, err)
	}

	out, err := yaml.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshaling plan: %w", err)
	}

	dest := filepath.Join(buildDir, FileName)

	tmp, err := os.CreateTemp(buildDir, ".blade_core_config-*.yaml.tmp")
	if err != nil {
		return "", fmt.Errorf("creating temporary plan file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(out); err != nil {
		tmp.Close()
		return "", fmt.Errorf("writing plan to %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("closing %s: %w", tmpName, err)
	}

	if err := os.Rename(tmpName, dest); err != nil {
		return "", fmt.Errorf("renaming %s to %s: %w", tmpName, dest, err)
	}

	return dest, nil
}
