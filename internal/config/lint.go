package config

import (
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Lint 报告配置文件中无法识别的键（拼写错误等），不影响加载。
func Lint(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config failed: %w", err)
	}
	var root yaml.Node
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return nil, fmt.Errorf("parse config failed: %w", err)
	}
	if len(root.Content) == 0 {
		return nil, nil
	}
	var unknown []string
	walkKnownKeys(root.Content[0], reflect.TypeOf(Config{}), "", &unknown)
	sort.Strings(unknown)
	return unknown, nil
}

func walkKnownKeys(node *yaml.Node, typ reflect.Type, prefix string, unknown *[]string) {
	if node == nil || node.Kind != yaml.MappingNode {
		return
	}
	fields := tomlFields(typ)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := strings.ToLower(strings.TrimSpace(node.Content[i].Value))
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		if prefix == "" && key == "include" {
			continue
		}
		ft, ok := fields[key]
		if !ok {
			*unknown = append(*unknown, fmt.Sprintf("%s (line %d)", path, node.Content[i].Line))
			continue
		}
		if ft.Kind() == reflect.Struct {
			walkKnownKeys(node.Content[i+1], ft, path, unknown)
		}
	}
}

func tomlFields(typ reflect.Type) map[string]reflect.Type {
	out := make(map[string]reflect.Type, typ.NumField())
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := strings.Split(f.Tag.Get("toml"), ",")[0]
		if tag == "" || tag == "-" {
			continue
		}
		out[tag] = f.Type
	}
	return out
}
