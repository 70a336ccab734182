// internal/parser/patterns.go
package parser

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/text/language"

	"demand-broker/internal/locale"
)

// FieldPattern binds a compiled expression to the domain field it extracts.
type FieldPattern struct {
	Prefix locale.Prefix
	re     *regexp.Regexp
}

// CompiledPatterns is the per-locale compiled form of the grammar settings.
// The help pattern and the action-as-verb pattern take priority over field
// patterns; field patterns are applied in a fixed order with matched spans
// removed from the working text.
type CompiledPatterns struct {
	Locale      string
	Tag         language.Tag
	help        *regexp.Regexp
	actionVerb  *regexp.Regexp
	actionCanon map[string]locale.Action
	fields      []FieldPattern
}

// Empty reports whether the locale had no grammar tables. Parsing then
// yields only free-form criteria.
func (p *CompiledPatterns) Empty() bool {
	return p.help == nil && p.actionVerb == nil && len(p.fields) == 0
}

// fieldOrder fixes the priority of field-value patterns.
var fieldOrder = []locale.Prefix{
	locale.PrefixAction,
	locale.PrefixState,
	locale.PrefixReference,
	locale.PrefixProposal,
	locale.PrefixStore,
	locale.PrefixQuantity,
	locale.PrefixExpiration,
	locale.PrefixRange,
	locale.PrefixPrice,
	locale.PrefixTotal,
	locale.PrefixLocale,
	locale.PrefixTags, // last: captures to end of the residual text
}

// Compile builds the pattern set for one locale's settings.
func Compile(s *locale.Settings) *CompiledPatterns {
	p := &CompiledPatterns{
		Locale:      s.Locale,
		Tag:         s.Tag,
		actionCanon: map[string]locale.Action{},
	}

	if syns := s.Prefixes[locale.PrefixHelp]; len(syns) > 0 {
		p.help = regexp.MustCompile(fmt.Sprintf(
			`(?i)^(?:%s)(?::|\s|$)\s*(.*)$`, alternation(syns)))
	}

	var actionSyns []string
	for action, syns := range s.Actions {
		for _, syn := range syns {
			actionSyns = append(actionSyns, syn)
			p.actionCanon[strings.ToLower(syn)] = action
		}
	}
	if len(actionSyns) > 0 {
		// Verbs are only recognized at the start of the command line.
		p.actionVerb = regexp.MustCompile(fmt.Sprintf(
			`(?i)^(%s)(?:\s+|$)`, alternation(actionSyns)))
	}

	for _, prefix := range fieldOrder {
		syns := s.Prefixes[prefix]
		if len(syns) == 0 {
			continue
		}
		p.fields = append(p.fields, FieldPattern{
			Prefix: prefix,
			re:     compileField(prefix, syns),
		})
	}

	return p
}

func compileField(prefix locale.Prefix, syns []string) *regexp.Regexp {
	alt := alternation(syns)
	var value string
	switch prefix {
	case locale.PrefixReference, locale.PrefixQuantity:
		value = `(\d+)`
	case locale.PrefixExpiration:
		value = `(\d{2,4}-\d{1,2}-\d{1,2})`
	case locale.PrefixRange:
		// The unit is whatever letters immediately trail the number.
		value = `(\d+(?:[.,]\d+)?)([a-zA-Z]*)`
	case locale.PrefixLocale:
		// Postal code token plus an optional 2-letter country code,
		// delimited by a space (dash and no-separator forms are split
		// out of the first token during conversion).
		value = `([0-9a-zA-Z-]+)(?:\s+([a-zA-Z]{2})(?:\s|$))?`
	case locale.PrefixTags:
		value = `(.+)$`
	default:
		value = `([^\s]+)`
	}
	return regexp.MustCompile(fmt.Sprintf(`(?i)(?:^|\s)(?:%s):\s*%s`, alt, value))
}

// alternation joins pre-sorted (longest-first) synonyms into a regexp
// alternation, escaping metacharacters like "?" and "!".
func alternation(syns []string) string {
	quoted := make([]string, len(syns))
	for i, syn := range syns {
		quoted[i] = regexp.QuoteMeta(syn)
	}
	return strings.Join(quoted, "|")
}

// PatternCache holds compiled pattern sets keyed by locale. Reads are safe
// for concurrent use; a rebuild compiles a fresh set and publishes it
// atomically, so in-flight parses keep the set they started with.
type PatternCache struct {
	mu       sync.RWMutex
	byLocale map[string]*CompiledPatterns
	load     func(string) *locale.Settings
}

func NewPatternCache() *PatternCache {
	return &PatternCache{
		byLocale: map[string]*CompiledPatterns{},
		load:     locale.Load,
	}
}

// NewPatternCacheWithLoader allows tests and embedders to inject a
// settings source.
func NewPatternCacheWithLoader(load func(string) *locale.Settings) *PatternCache {
	return &PatternCache{
		byLocale: map[string]*CompiledPatterns{},
		load:     load,
	}
}

// Get returns the compiled patterns for a locale, building them on first
// use. Unknown locales yield an empty (criteria-only) pattern set.
func (c *PatternCache) Get(localeID string) *CompiledPatterns {
	c.mu.RLock()
	p, ok := c.byLocale[localeID]
	c.mu.RUnlock()
	if ok {
		return p
	}
	return c.rebuild(localeID)
}

// Rebuild discards and recompiles one locale's pattern set. Callers that
// mutate synonym tables invoke this to publish the change.
func (c *PatternCache) Rebuild(localeID string) *CompiledPatterns {
	return c.rebuild(localeID)
}

// Clear drops one locale's compiled set; the next Get recompiles it.
func (c *PatternCache) Clear(localeID string) {
	c.mu.Lock()
	delete(c.byLocale, localeID)
	c.mu.Unlock()
}

func (c *PatternCache) rebuild(localeID string) *CompiledPatterns {
	// Build outside the lock, publish under it.
	p := Compile(c.load(localeID))
	c.mu.Lock()
	c.byLocale[localeID] = p
	c.mu.Unlock()
	return p
}
