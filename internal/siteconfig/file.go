package siteconfig

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/riskintel/backend/pkg/logger"
)

type keywordSet struct {
	Chinese []string `yaml:"chinese"`
	English []string `yaml:"english"`
}

// FileProvider reads site hints from a YAML file. A failed load keeps the
// previously loaded configuration.
type FileProvider struct {
	path string

	mu       sync.RWMutex
	sites    map[string]Site
	keywords []string

	watcher *fsnotify.Watcher
	done    chan struct{}
}

func NewFileProvider(path string) *FileProvider {
	p := &FileProvider{
		path:  path,
		sites: map[string]Site{defaultKey: DefaultSite},
	}
	if err := p.Reload(); err != nil {
		logger.Warn("Site config not loaded, using defaults", zap.String("path", path), zap.Error(err))
	}
	return p
}

func (p *FileProvider) SiteConfig(rawURL string) Site {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return Lookup(p.sites, rawURL)
}

func (p *FileProvider) Keywords() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.keywords
}

func (p *FileProvider) Reload() error {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return fmt.Errorf("failed to read site config: %w", err)
	}

	sites, keywords, err := parse(data)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.sites = sites
	p.keywords = keywords
	p.mu.Unlock()

	names := make([]string, 0, len(sites))
	for k := range sites {
		names = append(names, k)
	}
	logger.Info("Site config loaded", zap.String("path", p.path), zap.Strings("sites", names), zap.Int("keywords", len(keywords)))
	return nil
}

func parse(data []byte) (map[string]Site, []string, error) {
	var raw map[string]yaml.Node
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, nil, fmt.Errorf("failed to parse site config: %w", err)
	}

	sites := make(map[string]Site, len(raw))
	var keywords []string
	for key, node := range raw {
		if key == keywordsKey {
			var ks keywordSet
			if err := node.Decode(&ks); err != nil {
				return nil, nil, fmt.Errorf("failed to decode %s: %w", keywordsKey, err)
			}
			keywords = lowerAll(append(ks.Chinese, ks.English...))
			continue
		}
		var s Site
		if err := node.Decode(&s); err != nil {
			return nil, nil, fmt.Errorf("failed to decode site %q: %w", key, err)
		}
		sites[key] = s
	}
	if _, ok := sites[defaultKey]; !ok {
		sites[defaultKey] = DefaultSite
	}
	return sites, keywords, nil
}

// Watch reloads the file whenever it changes until ctx is done or Close is called.
// The parent directory is watched so that editors replacing the file are seen.
func (p *FileProvider) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(p.path)); err != nil {
		w.Close()
		return fmt.Errorf("failed to watch %s: %w", p.path, err)
	}

	p.watcher = w
	p.done = make(chan struct{})
	go p.run(ctx)
	return nil
}

func (p *FileProvider) run(ctx context.Context) {
	defer close(p.done)

	target := filepath.Clean(p.path)
	var debounce <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target || event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			debounce = time.After(200 * time.Millisecond)
		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("Site config watcher error", zap.Error(err))
		case <-debounce:
			debounce = nil
			if err := p.Reload(); err != nil {
				logger.Warn("Site config reload failed, keeping previous", zap.Error(err))
			}
		}
	}
}

func (p *FileProvider) Close() error {
	if p.watcher == nil {
		return nil
	}
	err := p.watcher.Close()
	<-p.done
	return err
}
