// Package collation maps collation ids stored in extract schemas to
// locale aware string ordering rules.
package collation

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// ID is the one byte collation tag persisted per column.
type ID uint8

const (
	// Default means "inherit the schema default collation".
	Default ID = iota
	Binary
	EnGB
	EnUS
	De
	Fr
	Es
	It
	Nl
	Sv
	PtBR
	Ja
	Zh
	Ko
	Ru
)

var ErrUnknownCollation = errors.New("collation: unknown collation")

var names = map[ID]string{
	Default: "DEFAULT",
	Binary:  "BINARY",
	EnGB:    "EN_GB",
	EnUS:    "EN_US",
	De:      "DE",
	Fr:      "FR",
	Es:      "ES",
	It:      "IT",
	Nl:      "NL",
	Sv:      "SV",
	PtBR:    "PT_BR",
	Ja:      "JA",
	Zh:      "ZH",
	Ko:      "KO",
	Ru:      "RU",
}

var tags = map[ID]language.Tag{
	EnGB: language.BritishEnglish,
	EnUS: language.AmericanEnglish,
	De:   language.German,
	Fr:   language.French,
	Es:   language.Spanish,
	It:   language.Italian,
	Nl:   language.Dutch,
	Sv:   language.Swedish,
	PtBR: language.BrazilianPortuguese,
	Ja:   language.Japanese,
	Zh:   language.Chinese,
	Ko:   language.Korean,
	Ru:   language.Russian,
}

func (id ID) String() string {
	if n, ok := names[id]; ok {
		return n
	}
	return fmt.Sprintf("COLLATION(%d)", uint8(id))
}

func (id ID) Valid() bool {
	_, ok := names[id]
	return ok
}

// Tag returns the locale of a named collation. Default and Binary have none.
func (id ID) Tag() (language.Tag, bool) {
	t, ok := tags[id]
	return t, ok
}

// Parse accepts "EN_GB", "en-GB" or "en_gb".
func Parse(name string) (ID, error) {
	n := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(name), "-", "_"))
	for id, s := range names {
		if s == n {
			return id, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCollation, name)
}

// collate.Collator keeps internal buffers, so every cached collator is
// guarded by the registry mutex.
var registry = struct {
	mu        sync.Mutex
	collators map[ID]*collate.Collator
}{collators: make(map[ID]*collate.Collator)}

// Compare orders a and b under the given collation and returns -1, 0 or 1.
// Default and Binary compare bytewise; unknown ids fall back to bytewise too.
func Compare(a, b string, id ID) int {
	tag, ok := tags[id]
	if !ok {
		return strings.Compare(a, b)
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()

	c, ok := registry.collators[id]
	if !ok {
		c = collate.New(tag)
		registry.collators[id] = c
	}
	return c.CompareString(a, b)
}
