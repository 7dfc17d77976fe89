package config

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"gridbot/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// ChangeListener 在配置文件变更且重新校验通过后被调用。
type ChangeListener func(*Config)

// Watcher 监听配置文件，热更新可在运行期生效的部分（策略参数、日志级别）。
type Watcher struct {
	path string
	v    *viper.Viper
	load func(string) (*Config, error)

	mu        sync.RWMutex
	current   *Config
	listeners []ChangeListener
}

// NewWatcher 以已加载的配置为初始快照。
func NewWatcher(path string, initial *Config) (*Watcher, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config watcher requires path")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config failed: %w", err)
	}
	return &Watcher{path: path, v: v, load: Load, current: initial}, nil
}

// Current 返回最近一次成功加载的配置。
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Subscribe 注册监听器。
func (w *Watcher) Subscribe(fn ChangeListener) {
	if fn == nil {
		return
	}
	w.mu.Lock()
	w.listeners = append(w.listeners, fn)
	w.mu.Unlock()
}

// Run 开始监听，阻塞到 ctx 结束。
func (w *Watcher) Run(ctx context.Context) error {
	if w == nil {
		return nil
	}
	w.v.OnConfigChange(func(evt fsnotify.Event) {
		if evt.Op&(fsnotify.Write|fsnotify.Create) == 0 {
			return
		}
		if err := w.reload(); err != nil {
			logger.Errorf("config reload failed (%s): %v", evt.Name, err)
		}
	})
	w.v.WatchConfig()
	logger.Infof("config watcher started: %s", w.path)
	<-ctx.Done()
	return nil
}

func (w *Watcher) reload() error {
	cfg, err := w.load(w.path)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.current = cfg
	listeners := append([]ChangeListener(nil), w.listeners...)
	w.mu.Unlock()
	for _, fn := range listeners {
		fn(cfg)
	}
	return nil
}
