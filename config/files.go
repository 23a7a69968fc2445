package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	maxConfigSize = 1 << 20 // 1MB
	maxDepth      = 32
	maxEnvVarLen  = 4096
	maxPathLen    = 4096
)

// checkPath accepts JSON or YAML files. Relative paths must resolve inside
// the working directory; absolute paths may not contain parent references.
func checkPath(path string) error {
	switch {
	case path == "":
		return errors.New("empty config path")
	case len(path) > maxPathLen:
		return fmt.Errorf("path too long: %d > %d", len(path), maxPathLen)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
	default:
		return fmt.Errorf("unsupported config file type: %s", path)
	}

	if filepath.IsAbs(path) {
		for _, part := range strings.Split(filepath.ToSlash(path), "/") {
			if part == ".." {
				return fmt.Errorf("parent reference in %s", path)
			}
		}
		return nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolve working directory: %w", err)
	}
	rel, err := filepath.Rel(cwd, filepath.Join(cwd, path))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%s resolves outside the working directory", path)
	}
	return nil
}

// readConfigFile reads a regular config file no larger than maxConfigSize
func readConfigFile(path string) ([]byte, error) {
	if err := checkPath(path); err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", path)
	}
	if info.Size() > maxConfigSize {
		return nil, fmt.Errorf("config file too large: %d bytes", info.Size())
	}
	return os.ReadFile(path)
}

// writeConfigFile writes data readable by the owner only
func writeConfigFile(path string, data []byte) error {
	if err := checkPath(path); err != nil {
		return err
	}
	if len(data) > maxConfigSize {
		return fmt.Errorf("config data too large: %d bytes", len(data))
	}
	return os.WriteFile(path, data, 0600)
}

// checkEnvValue rejects oversized values and NUL bytes
func checkEnvValue(key, value string) error {
	if len(value) > maxEnvVarLen {
		return fmt.Errorf("%s too long: %d bytes", key, len(value))
	}
	if strings.IndexByte(value, 0) >= 0 {
		return fmt.Errorf("NUL byte in %s", key)
	}
	return nil
}

// checkJSONDepth walks the token stream and fails past maxDepth
func checkJSONDepth(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	depth := 0
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		delim, ok := tok.(json.Delim)
		if !ok {
			continue
		}
		switch delim {
		case '{', '[':
			depth++
			if depth > maxDepth {
				return fmt.Errorf("nesting deeper than %d", maxDepth)
			}
		default:
			depth--
		}
	}
}

// checkYAMLDepth fails when the node tree is deeper than maxDepth
func checkYAMLDepth(root *yaml.Node) error {
	var walk func(n *yaml.Node, depth int) error
	walk = func(n *yaml.Node, depth int) error {
		if depth > maxDepth {
			return fmt.Errorf("nesting deeper than %d", maxDepth)
		}
		for _, child := range n.Content {
			if err := walk(child, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(root, 0)
}
