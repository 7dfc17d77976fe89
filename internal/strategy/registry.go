package strategy

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"gridbot/internal/pkg/convert"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Factory 根据原始参数构造策略。
type Factory func(params map[string]any, opts Options) (Strategy, error)

// Definition 描述一个可选策略：名称、参数 schema 与构造函数。
type Definition struct {
	Name    string
	Schema  string
	Factory Factory

	compiled *jsonschema.Schema
}

// UnknownStrategyError 表示配置中的策略名未注册。
type UnknownStrategyError struct {
	Name  string
	Known []string
}

func (e *UnknownStrategyError) Error() string {
	return fmt.Sprintf("strategy type %q is not recognized (known: %s)", e.Name, strings.Join(e.Known, ", "))
}

// Registry 按名称查找策略实现。
type Registry struct {
	mu   sync.RWMutex
	defs map[string]*Definition
}

// NewRegistry 返回已注册内置策略（default、bollinger）的 registry。
func NewRegistry() *Registry {
	r := &Registry{defs: make(map[string]*Definition)}
	for _, def := range builtins() {
		if err := r.Register(def); err != nil {
			panic(fmt.Sprintf("register builtin strategy %s: %v", def.Name, err))
		}
	}
	return r
}

func builtins() []Definition {
	return []Definition{
		{Name: DefaultName, Schema: defaultSchema, Factory: newDefaultFromMap},
		{Name: BollingerName, Schema: bollingerSchema, Factory: newBollingerFromMap},
	}
}

// Register 编译 schema 并登记策略；同名覆盖。
func (r *Registry) Register(def Definition) error {
	name := normalizeName(def.Name)
	if name == "" {
		return fmt.Errorf("strategy name is required")
	}
	if def.Factory == nil {
		return fmt.Errorf("strategy %s: factory is required", name)
	}
	if strings.TrimSpace(def.Schema) != "" {
		compiled, err := compileSchema(name, def.Schema)
		if err != nil {
			return fmt.Errorf("strategy %s: compile schema: %w", name, err)
		}
		def.compiled = compiled
	}
	def.Name = name
	r.mu.Lock()
	r.defs[name] = &def
	r.mu.Unlock()
	return nil
}

// Names 返回已注册策略名（排序）。
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.defs))
	for name := range r.defs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// New 校验参数并构造策略。
func (r *Registry) New(name string, params map[string]any, opts Options) (Strategy, error) {
	key := normalizeName(name)
	r.mu.RLock()
	def, ok := r.defs[key]
	r.mu.RUnlock()
	if !ok {
		return nil, &UnknownStrategyError{Name: name, Known: r.Names()}
	}
	if err := def.Validate(params); err != nil {
		return nil, err
	}
	return def.Factory(params, opts)
}

// New 使用内置 registry 构造策略。
func New(name string, params map[string]any, opts Options) (Strategy, error) {
	return NewRegistry().New(name, params, opts)
}

// Validate 按 schema 校验参数；数字字符串先转为数字。
func (d *Definition) Validate(params map[string]any) error {
	if d == nil || d.compiled == nil {
		return nil
	}
	if params == nil {
		params = map[string]any{}
	}
	if err := d.compiled.Validate(sanitizeParams(params)); err != nil {
		return fmt.Errorf("strategy %s: invalid parameters: %w", d.Name, err)
	}
	return nil
}

func compileSchema(name, raw string) (*jsonschema.Schema, error) {
	url := name + ".schema.json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, strings.NewReader(raw)); err != nil {
		return nil, err
	}
	return compiler.Compile(url)
}

func sanitizeParams(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			out[k] = sanitizeParams(child)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = sanitizeParams(child)
		}
		return out
	case bool, nil:
		return val
	case string:
		if num, ok := convert.Number(val); ok {
			return num
		}
		return val
	default:
		if num, ok := convert.Number(val); ok {
			return num
		}
		return val
	}
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
