package config

import (
	"errors"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Parser errors.
var (
	ErrInvalidYAML     = errors.New("invalid YAML format")
	ErrUnexpectedToken = errors.New("unexpected token")
	ErrInvalidDuration = errors.New("invalid duration format")
	ErrInvalidNumber   = errors.New("invalid number format")
	ErrFileNotFound    = errors.New("configuration file not found")
	ErrInvalidEnum     = errors.New("invalid enum value")
)

// LoadConfig loads configuration from a file path, layered over Default.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrFileNotFound
		}
		return nil, err
	}
	return ParseConfig(data)
}

// ParseConfig parses configuration from YAML-subset data, substituting
// environment variables and falling back to Default for anything unset.
func ParseConfig(data []byte) (*Config, error) {
	data = substituteEnvVars(data)
	cfg := Default()
	if err := parseYAML(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// substituteEnvVars replaces ${VAR} and ${VAR:-default} patterns with
// environment variable values.
func substituteEnvVars(data []byte) []byte {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllFunc(data, func(match []byte) []byte {
		content := string(match[2 : len(match)-1])
		if idx := strings.Index(content, ":-"); idx != -1 {
			varName := content[:idx]
			defaultVal := content[idx+2:]
			if val := os.Getenv(varName); val != "" {
				return []byte(val)
			}
			return []byte(defaultVal)
		}
		return []byte(os.Getenv(content))
	})
}

// yamlNode represents a parsed YAML node.
type yamlNode struct {
	key      string
	value    string
	indent   int
	children []*yamlNode
}

func parseYAML(data []byte, cfg *Config) error {
	lines := strings.Split(string(data), "\n")
	root := &yamlNode{indent: -1}
	if err := buildTree(lines, root); err != nil {
		return err
	}
	return applyConfig(root, cfg)
}

// buildTree builds a tree structure from YAML lines, keyed on
// indentation; there are no lists in this config shape, only nested maps.
func buildTree(lines []string, root *yamlNode) error {
	stack := []*yamlNode{root}
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		indent := countIndent(line)
		node, err := parseLine(trimmed, indent)
		if err != nil {
			return err
		}
		for len(stack) > 1 && stack[len(stack)-1].indent >= indent {
			stack = stack[:len(stack)-1]
		}
		parent := stack[len(stack)-1]
		parent.children = append(parent.children, node)
		stack = append(stack, node)
	}
	return nil
}

func countIndent(line string) int {
	count := 0
	for _, ch := range line {
		if ch == ' ' {
			count++
		} else if ch == '\t' {
			count += 2
		} else {
			break
		}
	}
	return count
}

func parseLine(line string, indent int) (*yamlNode, error) {
	colonIdx := strings.Index(line, ":")
	if colonIdx == -1 {
		return nil, ErrInvalidYAML
	}
	key := strings.TrimSpace(line[:colonIdx])
	value := ""
	if colonIdx+1 < len(line) {
		value = strings.TrimSpace(line[colonIdx+1:])
	}
	return &yamlNode{key: key, value: unquote(value), indent: indent}, nil
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

func parseDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, ErrInvalidDuration
	}
	return d, nil
}

func parseBool(s string) bool {
	b, _ := strconv.ParseBool(s)
	return b
}

// applyConfig applies parsed YAML nodes onto cfg, which already holds
// Default()'s values; any key absent from the file is left untouched.
func applyConfig(root *yamlNode, cfg *Config) error {
	for _, node := range root.children {
		switch node.key {
		case "ldap":
			if err := applyLDAPConfig(node, &cfg.LDAP); err != nil {
				return err
			}
		case "dialect":
			if node.value != "" {
				d, ok := ParseDialect(node.value)
				if !ok {
					return ErrInvalidEnum
				}
				cfg.Dialect = d
			}
		case "readability":
			if node.value != "" {
				r, ok := ParseReadability(node.value)
				if !ok {
					return ErrInvalidEnum
				}
				cfg.Readability = r
			}
		case "foldWidth":
			if node.value != "" {
				v, err := strconv.Atoi(node.value)
				if err != nil {
					return ErrInvalidNumber
				}
				cfg.FoldWidth = v
			}
		case "tempDir":
			if node.value != "" {
				cfg.TempDir = node.value
			}
		}
	}
	return nil
}

func applyLDAPConfig(node *yamlNode, cfg *LDAPConfig) error {
	for _, child := range node.children {
		switch child.key {
		case "address":
			if child.value != "" {
				cfg.Address = child.value
			}
		case "bindDN":
			if child.value != "" {
				cfg.BindDN = child.value
			}
		case "bindPassword":
			if child.value != "" {
				cfg.BindPassword = child.value
			}
		case "startTLS":
			if child.value != "" {
				cfg.StartTLS = parseBool(child.value)
			}
		case "timeout":
			if child.value != "" {
				d, err := parseDuration(child.value)
				if err != nil {
					return err
				}
				cfg.Timeout = d
			}
		}
	}
	return nil
}
