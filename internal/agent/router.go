package agent

import (
	"log"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

// Router selects agents for a request by scoring each enabled agent's
// detection metadata against the file path and content.
//
// Score formula:
//
//	30 · [extension matches]
//	+ 50 · matchedContentPatterns / max(1, totalContentPatterns)
//	+ 20 · matchedFrameworkKeywords / max(1, totalFrameworkKeywords)
//
// Content patterns match anywhere in the content, case-insensitive and
// multiline. Framework keywords match as case-insensitive substrings.
type Router struct {
	registry  *Registry
	defaultID string

	// Compiled pattern cache. Descriptors rarely change, content
	// patterns are shared across requests.
	patternMu sync.RWMutex
	patterns  map[string]*regexp.Regexp
}

const (
	extensionWeight = 30.0
	patternWeight   = 50.0
	keywordWeight   = 20.0
)

// NewRouter creates a router over the given registry. defaultID is the
// guaranteed fallback agent returned when nothing scores above zero.
func NewRouter(registry *Registry, defaultID string) (*Router, error) {
	if defaultID == "" {
		return nil, NewConfigurationError("router requires a default agent id",
			"set default_agent in configuration")
	}
	return &Router{
		registry:  registry,
		defaultID: defaultID,
		patterns:  make(map[string]*regexp.Regexp),
	}, nil
}

// DefaultID returns the configured fallback agent id.
func (r *Router) DefaultID() string {
	return r.defaultID
}

// Detect returns the id of the highest-scoring enabled agent for the
// given file, or the default agent id when no agent scores above zero.
//
// Ties on the maximum score are broken by registration order: the agent
// registered first wins. This keeps routing deterministic regardless of
// map iteration order.
func (r *Router) Detect(filePath, content string) string {
	bestID := ""
	bestScore := 0.0

	for _, id := range r.registry.ListAvailable() {
		d, ok := r.registry.Descriptor(id)
		if !ok {
			continue
		}
		score := r.Score(d, filePath, content)
		if score > bestScore {
			bestID = id
			bestScore = score
		}
	}

	if bestID == "" {
		log.Printf("[ROUTER] no agent matched %s, falling back to %s", filePath, r.defaultID)
		return r.defaultID
	}
	return bestID
}

// Applicable returns every enabled agent with a score above zero, in
// registration order, always including the default agent as a guaranteed
// fallback entry. Used for fan-out mode.
func (r *Router) Applicable(filePath, content string) []string {
	var ids []string
	sawDefault := false

	for _, id := range r.registry.ListAvailable() {
		d, ok := r.registry.Descriptor(id)
		if !ok {
			continue
		}
		if r.Score(d, filePath, content) > 0 {
			ids = append(ids, id)
			if id == r.defaultID {
				sawDefault = true
			}
		}
	}

	if !sawDefault {
		ids = append(ids, r.defaultID)
	}
	return ids
}

// Score computes the detection score for one descriptor. Scores are
// always non-negative.
func (r *Router) Score(d Descriptor, filePath, content string) float64 {
	score := 0.0

	if matchesExtension(d.Detection.Extensions, filePath) {
		score += extensionWeight
	}

	if total := len(d.Detection.ContentPatterns); total > 0 {
		matched := 0
		for _, pattern := range d.Detection.ContentPatterns {
			re := r.compile(pattern)
			if re != nil && re.MatchString(content) {
				matched++
			}
		}
		score += patternWeight * float64(matched) / float64(total)
	}

	if total := len(d.Detection.FrameworkKeywords); total > 0 {
		matched := 0
		lower := strings.ToLower(content)
		for _, kw := range d.Detection.FrameworkKeywords {
			if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
				matched++
			}
		}
		score += keywordWeight * float64(matched) / float64(total)
	}

	return score
}

func matchesExtension(extensions []string, filePath string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filePath)), ".")
	if ext == "" {
		return false
	}
	for _, candidate := range extensions {
		if strings.TrimPrefix(strings.ToLower(candidate), ".") == ext {
			return true
		}
	}
	return false
}

// compile returns the cached case-insensitive multiline regexp for
// pattern, or nil if the pattern does not compile. Invalid patterns are
// logged once and score zero rather than failing detection.
func (r *Router) compile(pattern string) *regexp.Regexp {
	r.patternMu.RLock()
	re, cached := r.patterns[pattern]
	r.patternMu.RUnlock()
	if cached {
		return re
	}

	compiled, err := regexp.Compile("(?im)" + pattern)
	if err != nil {
		log.Printf("[ROUTER] invalid content pattern %q: %v", pattern, err)
		compiled = nil
	}

	r.patternMu.Lock()
	r.patterns[pattern] = compiled
	r.patternMu.Unlock()
	return compiled
}
