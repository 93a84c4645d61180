package scoring

import (
	"sort"
	"sync"
)

// TopicRegistry is the set of topic keys known to the exam content. Module
// authoring is validated against it; scoring still falls back to "Unknown"
// for content that escaped validation.
type TopicRegistry struct {
	mu     sync.RWMutex
	topics map[string]string // normalized key -> display title
}

func NewTopicRegistry(titles ...string) *TopicRegistry {
	r := &TopicRegistry{topics: make(map[string]string)}
	for _, t := range titles {
		r.Register(t)
	}
	return r
}

// Register adds a title and returns its key. Empty titles are ignored.
func (r *TopicRegistry) Register(title string) string {
	key := NormalizeTopic(title)
	if key == "" || key == NormalizeTopic(UnknownTopic) {
		return ""
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.topics[key]; !ok {
		r.topics[key] = title
	}
	return key
}

// Replace swaps the whole registry for the given titles.
func (r *TopicRegistry) Replace(titles []string) {
	next := make(map[string]string, len(titles))
	for _, t := range titles {
		key := NormalizeTopic(t)
		if key == "" || key == NormalizeTopic(UnknownTopic) {
			continue
		}
		if _, ok := next[key]; !ok {
			next[key] = t
		}
	}
	r.mu.Lock()
	r.topics = next
	r.mu.Unlock()
}

// Resolve returns the key for a label if the topic is known.
func (r *TopicRegistry) Resolve(label string) (string, bool) {
	key := NormalizeTopic(label)
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.topics[key]
	return key, ok
}

func (r *TopicRegistry) Title(key string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.topics[key]
}

func (r *TopicRegistry) Keys() []string {
	r.mu.RLock()
	keys := make([]string, 0, len(r.topics))
	for k := range r.topics {
		keys = append(keys, k)
	}
	r.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

func (r *TopicRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.topics)
}
