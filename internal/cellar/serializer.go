package cellar

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/goccy/go-json"
)

const (
	// Namespace is the directory prefix of the remote repository owned by the cellar.
	Namespace = "wines/"

	// FileSuffix is the extension of every bottle file inside Namespace.
	FileSuffix = ".json"

	// ManagedPattern matches every bottle file inside Namespace.
	ManagedPattern = "wines/**/*.json"

	jsonIndent = "  "
)

// PathFor returns the repository path of the bottle: wines/{type}/wine-{id}.json
func PathFor(b *Bottle) string {
	return fmt.Sprintf("%s%s/wine-%s%s", Namespace, b.Type, b.ID, FileSuffix)
}

// NameFromPath recovers a printable name for a bottle file that is no longer present locally.
func NameFromPath(path string) string {
	name := path[strings.LastIndex(path, "/")+1:]
	return strings.TrimSuffix(name, FileSuffix)
}

// Serialize encodes the bottle as indented JSON with a fixed key order and a trailing newline.
// The output is byte-stable for equal input, which the remote content hash comparison relies on.
func Serialize(b *Bottle) ([]byte, error) {
	if b == nil {
		return nil, errors.New("serialize: nil bottle")
	}

	out := *b
	if out.GrapeVariety == nil {
		out.GrapeVariety = []string{}
	}
	if out.History == nil {
		out.History = []HistoryEntry{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", jsonIndent)
	if err := enc.Encode(&out); err != nil {
		return nil, fmt.Errorf("serialize bottle %s: %w", b.ID, err)
	}
	return unescapeLineSeparators(buf.Bytes()), nil
}

// unescapeLineSeparators writes U+2028 and U+2029 as raw runes, which the
// encoder always escapes. Files written by other clients keep them raw, and
// the blob hashes must agree.
func unescapeLineSeparators(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] != '\\' || i+1 >= len(data) {
			out = append(out, data[i])
			continue
		}
		if data[i+1] == 'u' && i+6 <= len(data) {
			switch string(data[i+2 : i+6]) {
			case "2028":
				out = append(out, "\u2028"...)
				i += 5
				continue
			case "2029":
				out = append(out, "\u2029"...)
				i += 5
				continue
			}
		}
		// other escapes are copied whole, so `\\u2028` stays text
		out = append(out, data[i], data[i+1])
		i++
	}
	return out
}

// Deserialize parses and validates a bottle. Every failure is a *ValidationError;
// a partially decoded bottle is never returned.
func Deserialize(data []byte) (*Bottle, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, newValidationError(KindInvalidJSON, "Invalid JSON")
	}
	if dec.More() {
		return nil, newValidationError(KindInvalidJSON, "Invalid JSON")
	}

	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, newValidationError(KindNotObject, "bottle must be a JSON object")
	}

	f := fields{obj: obj}
	b := &Bottle{
		ID:           f.requiredString("id", true),
		Name:         f.requiredString("name", true),
		Vintage:      f.requiredInt("vintage"),
		Type:         WineType(f.requiredString("type", false)),
		Country:      f.requiredString("country", false),
		Region:       f.requiredString("region", false),
		GrapeVariety: f.stringArray("grapeVariety"),
		Location:     f.optionalString("location"),
		Rating:       f.optionalNumber("rating"),
		Notes:        f.optionalString("notes"),
	}
	if f.err != nil {
		return nil, f.err
	}
	if !b.Type.Valid() {
		return nil, newValidationError(KindInvalidEnum, fmt.Sprintf("field \"type\" has invalid value %q", b.Type))
	}

	history, err := parseHistory(obj["history"], f.has("history"))
	if err != nil {
		return nil, err
	}
	b.History = history

	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

func parseHistory(v any, present bool) ([]HistoryEntry, error) {
	if !present {
		return nil, newValidationError(KindMissingField, "missing required field \"history\"")
	}
	items, ok := v.([]any)
	if !ok {
		return nil, newValidationError(KindWrongType, "field \"history\" must be an array")
	}

	entries := make([]HistoryEntry, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, newValidationError(KindWrongType, fmt.Sprintf("history[%d] must be an object", i))
		}
		f := fields{obj: obj, prefix: fmt.Sprintf("history[%d].", i)}
		entry := HistoryEntry{
			Date:     f.requiredString("date", false),
			Action:   HistoryAction(f.requiredString("action", false)),
			Quantity: f.requiredInt("quantity"),
			Notes:    f.optionalString("notes"),
		}
		if f.err != nil {
			return nil, f.err
		}
		if !entry.Action.Valid() {
			return nil, newValidationError(KindInvalidEnum, fmt.Sprintf("history[%d].action has invalid value %q", i, entry.Action))
		}

		if rawPrice, ok := obj["price"]; ok {
			priceObj, ok := rawPrice.(map[string]any)
			if !ok {
				return nil, newValidationError(KindWrongType, fmt.Sprintf("history[%d].price must be an object", i))
			}
			pf := fields{obj: priceObj, prefix: fmt.Sprintf("history[%d].price.", i)}
			price := &Price{
				Amount:   pf.requiredNumber("amount"),
				Currency: pf.requiredString("currency", false),
			}
			if pf.err != nil {
				return nil, pf.err
			}
			entry.Price = price
		}

		entries = append(entries, entry)
	}
	return entries, nil
}

// fields reads typed values out of a decoded JSON object, keeping the first error.
type fields struct {
	obj    map[string]any
	prefix string
	err    *ValidationError
}

func (f *fields) has(key string) bool {
	_, ok := f.obj[key]
	return ok
}

func (f *fields) fail(kind ValidationErrorKind, format string, args ...any) {
	if f.err == nil {
		f.err = newValidationError(kind, fmt.Sprintf(format, args...))
	}
}

func (f *fields) lookup(key string) (any, bool) {
	v, ok := f.obj[key]
	if !ok {
		f.fail(KindMissingField, "missing required field %q", f.prefix+key)
	}
	return v, ok
}

func (f *fields) requiredString(key string, nonEmpty bool) string {
	v, ok := f.lookup(key)
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		f.fail(KindWrongType, "field %q must be a string", f.prefix+key)
		return ""
	}
	if nonEmpty && s == "" {
		f.fail(KindMissingField, "field %q must be a non-empty string", f.prefix+key)
	}
	return s
}

func (f *fields) optionalString(key string) *string {
	v, ok := f.obj[key]
	if !ok {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		f.fail(KindWrongType, "field %q must be a string", f.prefix+key)
		return nil
	}
	return &s
}

func (f *fields) number(key string, v any) (float64, bool) {
	n, ok := v.(json.Number)
	if !ok {
		f.fail(KindWrongType, "field %q must be a number", f.prefix+key)
		return 0, false
	}
	x, err := n.Float64()
	if err != nil {
		f.fail(KindWrongType, "field %q must be a number", f.prefix+key)
		return 0, false
	}
	return x, true
}

func (f *fields) requiredNumber(key string) float64 {
	v, ok := f.lookup(key)
	if !ok {
		return 0
	}
	x, _ := f.number(key, v)
	return x
}

func (f *fields) optionalNumber(key string) *float64 {
	v, ok := f.obj[key]
	if !ok {
		return nil
	}
	x, ok := f.number(key, v)
	if !ok {
		return nil
	}
	return &x
}

func (f *fields) requiredInt(key string) int {
	v, ok := f.lookup(key)
	if !ok {
		return 0
	}
	x, ok := f.number(key, v)
	if !ok {
		return 0
	}
	if x != math.Trunc(x) || math.IsInf(x, 0) || math.Abs(x) > math.MaxInt32 {
		f.fail(KindNotInteger, "field %q must be an integer", f.prefix+key)
		return 0
	}
	return int(x)
}

func (f *fields) stringArray(key string) []string {
	v, ok := f.lookup(key)
	if !ok {
		return nil
	}
	items, ok := v.([]any)
	if !ok {
		f.fail(KindWrongType, "field %q must be an array of strings", f.prefix+key)
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			f.fail(KindWrongType, "field %q must be an array of strings", f.prefix+key)
			return nil
		}
		out = append(out, s)
	}
	return out
}
