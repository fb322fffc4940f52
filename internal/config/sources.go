package config

import (
	"log/slog"
	"strings"
)

// SourceConfig holds the key=value options configured for one source.
// Pipe-separated values denote lists.
type SourceConfig map[string]string

// Get returns the raw value for a key, or "" when unset.
func (c SourceConfig) Get(key string) string {
	return c[key]
}

// Bool interprets a key as a boolean, defaulting when unset.
func (c SourceConfig) Bool(key string, def bool) bool {
	raw, ok := c[key]
	if !ok || raw == "" {
		return def
	}
	return strings.EqualFold(raw, "true")
}

// List splits a pipe-separated value into its elements.
func (c SourceConfig) List(key string) []string {
	raw, ok := c[key]
	if !ok || raw == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(raw, "|") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

// SourceSet is the ordered set of sources configured for one business area.
// Order follows the configuration string, so dispatch order is deterministic.
type SourceSet struct {
	names   []string
	configs map[string]SourceConfig
}

// Names returns source names in configuration order.
func (s *SourceSet) Names() []string {
	if s == nil {
		return nil
	}
	return s.names
}

// Get returns the config for a source and whether it is configured.
func (s *SourceSet) Get(name string) (SourceConfig, bool) {
	if s == nil {
		return nil, false
	}
	cfg, ok := s.configs[name]
	return cfg, ok
}

// Len returns the number of configured sources.
func (s *SourceSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.names)
}

// Restrict returns a new SourceSet containing only the requested sources,
// preserving configuration order. Unknown names are dropped silently.
func (s *SourceSet) Restrict(requested []string) *SourceSet {
	if s == nil {
		return &SourceSet{configs: map[string]SourceConfig{}}
	}
	want := make(map[string]bool, len(requested))
	for _, name := range requested {
		want[name] = true
	}
	out := &SourceSet{configs: make(map[string]SourceConfig)}
	for _, name := range s.names {
		if want[name] {
			out.names = append(out.names, name)
			out.configs[name] = s.configs[name]
		}
	}
	return out
}

func (s *SourceSet) add(name string, cfg SourceConfig) {
	if _, exists := s.configs[name]; !exists {
		s.names = append(s.names, name)
	}
	s.configs[name] = cfg
}

// SourceConfigResolver resolves per-tenant source configuration and per-source
// retriever overrides parsed from the configuration string grammar:
//
//	sources:   "area:source(key=value,key2=a|b);area:source2"
//	overrides: "area:source=retriever1|retriever2;..."
//
// Malformed entries are skipped with a warning; parsing never fails outright.
type SourceConfigResolver struct {
	sources   map[string]*SourceSet
	overrides map[string]map[string][]string
}

// NewSourceConfigResolver parses the sources and overrides grammars.
func NewSourceConfigResolver(rawSources, rawOverrides string) *SourceConfigResolver {
	r := &SourceConfigResolver{
		sources:   make(map[string]*SourceSet),
		overrides: make(map[string]map[string][]string),
	}
	r.parseSources(rawSources)
	r.parseOverrides(rawOverrides)
	return r
}

// SourcesFor returns the configured sources for a business area.
// Returns an empty set when the area has no configuration.
func (r *SourceConfigResolver) SourcesFor(area string) *SourceSet {
	if set, ok := r.sources[area]; ok {
		return set
	}
	return &SourceSet{configs: map[string]SourceConfig{}}
}

// OverridesFor returns the per-source retriever override lists for an area.
func (r *SourceConfigResolver) OverridesFor(area string) map[string][]string {
	return r.overrides[area]
}

// SourceConfig returns the config block for one source in one area.
func (r *SourceConfigResolver) SourceConfig(area, source string) (SourceConfig, bool) {
	return r.SourcesFor(area).Get(source)
}

func (r *SourceConfigResolver) parseSources(raw string) {
	for _, entry := range splitEntries(raw) {
		area, rest, ok := strings.Cut(entry, ":")
		if !ok || area == "" || rest == "" {
			slog.Warn("Skipping malformed source config entry", "entry", entry)
			continue
		}

		name := rest
		cfg := SourceConfig{}
		if open := strings.Index(rest, "("); open >= 0 {
			if !strings.HasSuffix(rest, ")") {
				slog.Warn("Skipping malformed source config entry", "entry", entry)
				continue
			}
			name = rest[:open]
			for _, pair := range strings.Split(rest[open+1:len(rest)-1], ",") {
				pair = strings.TrimSpace(pair)
				if pair == "" {
					continue
				}
				key, value, ok := strings.Cut(pair, "=")
				if !ok || key == "" {
					slog.Warn("Skipping malformed source option", "entry", entry, "option", pair)
					continue
				}
				cfg[strings.TrimSpace(key)] = strings.TrimSpace(value)
			}
		}

		name = strings.TrimSpace(name)
		if name == "" {
			slog.Warn("Skipping source config entry with empty source name", "entry", entry)
			continue
		}

		area = strings.TrimSpace(area)
		set, ok := r.sources[area]
		if !ok {
			set = &SourceSet{configs: make(map[string]SourceConfig)}
			r.sources[area] = set
		}
		set.add(name, cfg)
	}
}

func (r *SourceConfigResolver) parseOverrides(raw string) {
	for _, entry := range splitEntries(raw) {
		area, rest, ok := strings.Cut(entry, ":")
		if !ok || area == "" {
			slog.Warn("Skipping malformed retriever override", "entry", entry)
			continue
		}
		source, retrievers, ok := strings.Cut(rest, "=")
		if !ok || source == "" || retrievers == "" {
			slog.Warn("Skipping malformed retriever override", "entry", entry)
			continue
		}

		var names []string
		for _, name := range strings.Split(retrievers, "|") {
			name = strings.TrimSpace(name)
			if name != "" {
				names = append(names, name)
			}
		}
		if len(names) == 0 {
			slog.Warn("Skipping retriever override with no retrievers", "entry", entry)
			continue
		}

		area = strings.TrimSpace(area)
		if r.overrides[area] == nil {
			r.overrides[area] = make(map[string][]string)
		}
		r.overrides[area][strings.TrimSpace(source)] = names
	}
}

func splitEntries(raw string) []string {
	var out []string
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry != "" {
			out = append(out, entry)
		}
	}
	return out
}
