package config

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/sgerhart/shadowhunter/internal/model"
)

// PolicySnapshot is an immutable, versioned set of policy rules, both
// enabled and disabled (spec.md §4.4 rule 7, §6.4).
type PolicySnapshot struct {
	Rules   []model.PolicyRule
	Version int64
}

// PolicyLoader loads policy rules from a directory of YAML files and,
// when hot reload is enabled, polls for changes the way
// internal/rules/loader.go does — a directory mtime scan rather than an
// OS-level file-watch dependency.
type PolicyLoader struct {
	dir        string
	hotReload  bool
	debounce   time.Duration
	logger     *slog.Logger

	mu       sync.RWMutex
	snapshot *PolicySnapshot
	watchers []chan struct{}
}

// NewPolicyLoader builds a loader over dir. debounce collapses bursts
// of filesystem events into a single reload.
func NewPolicyLoader(dir string, hotReload bool, debounce time.Duration, logger *slog.Logger) *PolicyLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &PolicyLoader{
		dir:       dir,
		hotReload: hotReload,
		debounce:  debounce,
		logger:    logger.With("component", "policy_loader"),
	}
}

// LoadSnapshot reads every *.yaml/*.yml file under dir, deduplicates by
// rule ID (last file wins), and stores the result as the current
// snapshot. Disabled rules are kept in the snapshot (so they remain
// visible and toggleable) — internal/rules' policyRuleDetector is what
// skips them at evaluation time.
func (l *PolicyLoader) LoadSnapshot() (*PolicySnapshot, error) {
	files, err := l.ruleFiles()
	if err != nil {
		return nil, fmt.Errorf("scanning policy dir %s: %w", l.dir, err)
	}

	byID := make(map[string]model.PolicyRule)
	for _, f := range files {
		rules, err := l.loadFile(f)
		if err != nil {
			l.logger.Warn("skipping unreadable policy file", "file", f, "error", err)
			continue
		}
		for _, r := range rules {
			byID[r.ID] = r
		}
	}

	rules := make([]model.PolicyRule, 0, len(byID))
	for _, r := range byID {
		rules = append(rules, r)
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })

	snapshot := &PolicySnapshot{Rules: rules, Version: time.Now().UnixNano()}

	l.mu.Lock()
	l.snapshot = snapshot
	l.mu.Unlock()

	l.notifyWatchers()
	l.logger.Info("policy snapshot loaded", "rule_count", len(rules), "version", snapshot.Version)
	return snapshot, nil
}

// Snapshot returns the current snapshot, or an empty one if nothing
// has loaded yet.
func (l *PolicyLoader) Snapshot() *PolicySnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.snapshot == nil {
		return &PolicySnapshot{}
	}
	out := make([]model.PolicyRule, len(l.snapshot.Rules))
	copy(out, l.snapshot.Rules)
	return &PolicySnapshot{Rules: out, Version: l.snapshot.Version}
}

// Subscribe returns a channel that fires whenever a new snapshot loads.
func (l *PolicyLoader) Subscribe() <-chan struct{} {
	ch := make(chan struct{}, 1)
	l.mu.Lock()
	l.watchers = append(l.watchers, ch)
	l.mu.Unlock()
	return ch
}

func (l *PolicyLoader) notifyWatchers() {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.notifyWatchersLocked()
}

// notifyWatchersLocked is notifyWatchers without its own locking, for
// callers that already hold l.mu.
func (l *PolicyLoader) notifyWatchersLocked() {
	for _, ch := range l.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Watch starts the polling reloader if hot reload is enabled. It never
// blocks; the caller's stop channel ends the goroutine.
func (l *PolicyLoader) Watch(stop <-chan struct{}) {
	if !l.hotReload {
		return
	}
	go l.pollLoop(stop)
}

func (l *PolicyLoader) pollLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	var lastMod time.Time
	var timer *time.Timer
	for {
		select {
		case <-stop:
			if timer != nil {
				timer.Stop()
			}
			return
		case <-ticker.C:
			latest, changed := l.latestModTime(lastMod)
			if !changed {
				continue
			}
			lastMod = latest
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(l.debounce, func() {
				if _, err := l.LoadSnapshot(); err != nil {
					l.logger.Error("policy reload failed", "error", err)
				}
			})
		}
	}
}

func (l *PolicyLoader) latestModTime(since time.Time) (time.Time, bool) {
	latest := since
	changed := false
	_ = filepath.WalkDir(l.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !isYAML(path) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().After(latest) {
			latest = info.ModTime()
			changed = true
		}
		return nil
	})
	return latest, changed
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func (l *PolicyLoader) ruleFiles() ([]string, error) {
	var files []string
	err := filepath.WalkDir(l.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !d.IsDir() && isYAML(path) {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

func (l *PolicyLoader) loadFile(path string) ([]model.PolicyRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rules []model.PolicyRule
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return rules, nil
}

// CreateRule adds rule to the live snapshot with a generated ID,
// grounded on correlator/internal/rules/override.go's AddOverride:
// in-memory only, no file written, callers that need durability across
// restarts re-author the YAML directly. Refuses with model.ErrConflict
// if an existing rule already shares rule's name and service.
func (l *PolicyLoader) CreateRule(rule model.PolicyRule) (model.PolicyRule, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	current := l.rulesLocked()
	for _, r := range current {
		if r.Name == rule.Name && r.Service == rule.Service {
			return model.PolicyRule{}, fmt.Errorf("rule %q for service %q: %w", rule.Name, rule.Service, model.ErrConflict)
		}
	}

	rule.ID = uuid.NewString()
	current = append(current, rule)
	l.setRulesLocked(current)
	l.logger.Info("policy rule created", "id", rule.ID, "name", rule.Name, "service", rule.Service)
	return rule, nil
}

// ToggleRule flips the enabled bit of the rule identified by id and
// returns the updated rule, or model.ErrNotFound.
func (l *PolicyLoader) ToggleRule(id string) (model.PolicyRule, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	current := l.rulesLocked()
	for i, r := range current {
		if r.ID == id {
			current[i].Enabled = !current[i].Enabled
			l.setRulesLocked(current)
			l.logger.Info("policy rule toggled", "id", id, "enabled", current[i].Enabled)
			return current[i], nil
		}
	}
	return model.PolicyRule{}, fmt.Errorf("toggle rule %s: %w", id, model.ErrNotFound)
}

// DeleteRule removes the rule identified by id, or returns
// model.ErrNotFound.
func (l *PolicyLoader) DeleteRule(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	current := l.rulesLocked()
	for i, r := range current {
		if r.ID == id {
			current = append(current[:i], current[i+1:]...)
			l.setRulesLocked(current)
			l.logger.Info("policy rule deleted", "id", id)
			return nil
		}
	}
	return fmt.Errorf("delete rule %s: %w", id, model.ErrNotFound)
}

// rulesLocked returns a mutable copy of the current snapshot's rules.
// Caller must hold l.mu.
func (l *PolicyLoader) rulesLocked() []model.PolicyRule {
	if l.snapshot == nil {
		return nil
	}
	out := make([]model.PolicyRule, len(l.snapshot.Rules))
	copy(out, l.snapshot.Rules)
	return out
}

// setRulesLocked installs rules as a new versioned snapshot and notifies
// watchers. Caller must hold l.mu.
func (l *PolicyLoader) setRulesLocked(rules []model.PolicyRule) {
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })
	l.snapshot = &PolicySnapshot{Rules: rules, Version: time.Now().UnixNano()}
	l.notifyWatchersLocked()
}
