package wgconf

import "strings"

// Fields is a string map that remembers insertion order. WireGuard config
// sections round-trip through this type, so key order in the file survives a
// parse/serialize cycle. Copying a Fields shares the backing storage; use
// Clone for an independent copy.
type Fields struct {
	keys   []string
	values map[string]string
}

func NewFields() Fields {
	return Fields{values: make(map[string]string)}
}

// Set stores key=value. Updating an existing key keeps its position; a new
// key appends.
func (f *Fields) Set(key, value string) {
	if f.values == nil {
		f.values = make(map[string]string)
	}
	if _, ok := f.values[key]; !ok {
		f.keys = append(f.keys, key)
	}
	f.values[key] = value
}

func (f Fields) Get(key string) string {
	return f.values[key]
}

func (f Fields) Lookup(key string) (string, bool) {
	value, ok := f.values[key]
	return value, ok
}

func (f Fields) Has(key string) bool {
	_, ok := f.values[key]
	return ok
}

func (f *Fields) Delete(key string) bool {
	if _, ok := f.values[key]; !ok {
		return false
	}
	delete(f.values, key)
	for i, existing := range f.keys {
		if existing == key {
			f.keys = append(f.keys[:i], f.keys[i+1:]...)
			break
		}
	}
	return true
}

func (f Fields) Len() int {
	return len(f.values)
}

// Keys returns the keys in insertion order.
func (f Fields) Keys() []string {
	keys := make([]string, len(f.keys))
	copy(keys, f.keys)
	return keys
}

func (f Fields) Clone() Fields {
	clone := Fields{
		keys:   make([]string, len(f.keys)),
		values: make(map[string]string, len(f.values)),
	}
	copy(clone.keys, f.keys)
	for key, value := range f.values {
		clone.values[key] = value
	}
	return clone
}

// Merge copies every entry of other into f in other's order, overwriting
// existing values but keeping their positions.
func (f *Fields) Merge(other Fields) {
	for _, key := range other.keys {
		f.Set(key, other.values[key])
	}
}

// NormalizeKey lowercases a config key and replaces spaces with underscores,
// the form all Fields keys use ("Private Key" -> "private_key",
// "PrivateKey" -> "privatekey").
func NormalizeKey(key string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(key)), " ", "_")
}
