package dncore

import "strings"

// TxtRecord is an ordered set of DNS-SD TXT key/value pairs with unique keys.
//
// Construction rules for raw "key=value" segments:
//   - The segment is split on the first '='.
//   - A segment without '=' is a boolean attribute: the key is present, the value is empty.
//   - Empty segments and segments with an empty key are dropped.
//   - If a key repeats, the first occurrence wins.
//
// References:
//   - https://www.ietf.org/rfc/rfc6763.txt, section 6.
type TxtRecord struct {
	keys   []string
	values map[string]string
}

// NewTxtRecord creates an empty TXT record.
func NewTxtRecord() *TxtRecord {
	return &TxtRecord{values: make(map[string]string)}
}

// ParseTxtRecord builds TXT record from raw segments, e.g. ["ev3dev.robot.user=robot"].
func ParseTxtRecord(segments []string) *TxtRecord {
	txt := NewTxtRecord()

	for _, segment := range segments {
		key, value, _ := strings.Cut(segment, "=")
		if key == "" {
			continue
		}

		txt.add(key, value)
	}

	return txt
}

// ParseTxtRecordBytes builds TXT record from raw byte segments.
func ParseTxtRecordBytes(segments [][]byte) *TxtRecord {
	strs := make([]string, 0, len(segments))
	for _, segment := range segments {
		strs = append(strs, string(segment))
	}

	return ParseTxtRecord(strs)
}

// Get returns value for the key.
func (t *TxtRecord) Get(key string) (string, bool) {
	if t == nil {
		return "", false
	}

	value, ok := t.values[key]

	return value, ok
}

// Keys returns keys in the insertion order.
func (t *TxtRecord) Keys() []string {
	if t == nil {
		return nil
	}

	return append([]string(nil), t.keys...)
}

// Len returns number of keys.
func (t *TxtRecord) Len() int {
	if t == nil {
		return 0
	}

	return len(t.keys)
}

// Map returns a copy of the key/value pairs.
func (t *TxtRecord) Map() map[string]string {
	m := make(map[string]string, t.Len())
	if t == nil {
		return m
	}

	for k, v := range t.values {
		m[k] = v
	}

	return m
}

// Strings returns "key=value" segments in the insertion order.
func (t *TxtRecord) Strings() []string {
	strs := make([]string, 0, t.Len())
	if t == nil {
		return strs
	}

	for _, key := range t.keys {
		strs = append(strs, key+"="+t.values[key])
	}

	return strs
}

// Merge adds keys from other which are not present yet.
func (t *TxtRecord) Merge(other *TxtRecord) {
	if other == nil {
		return
	}

	for _, key := range other.keys {
		t.add(key, other.values[key])
	}
}

// Clone returns a deep copy.
func (t *TxtRecord) Clone() *TxtRecord {
	c := NewTxtRecord()
	c.Merge(t)

	return c
}

func (t *TxtRecord) add(key, value string) {
	if _, ok := t.values[key]; ok {
		return
	}

	t.keys = append(t.keys, key)
	t.values[key] = value
}
