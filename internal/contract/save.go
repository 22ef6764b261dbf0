package contract

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// OutputPaths returns <dir>/<name>/<name>.txt and .json for c.
func OutputPaths(dir string, c *Contract) (txt, js string) {
	name := c.DirName()
	base := filepath.Join(dir, name, name)
	return base + ".txt", base + ".json"
}

// SaveContract writes c as indented JSON and returns the path.
func SaveContract(dir string, c *Contract) (string, error) {
	_, path := OutputPaths(dir, c)
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode contract: %w", err)
	}
	if err := writeFile(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// SaveResult writes the compiled text next to the contract JSON.
func SaveResult(dir string, r *BatchResult) (txt, js string, err error) {
	txt, _ = OutputPaths(dir, r.Contract)
	if err := writeFile(txt, []byte(r.Text())); err != nil {
		return "", "", err
	}
	js, err = SaveContract(dir, r.Contract)
	if err != nil {
		return "", "", err
	}
	return txt, js, nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
