package phrase

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Entry is one token with its translations.
type Entry struct {
	Key   string            `json:"key"`
	Emoji string            `json:"emoji,omitempty"`
	Texts map[string]string `json:"texts"` // language -> text
}

// Lexicon is an immutable in-memory translation table. It is safe for
// concurrent use.
type Lexicon struct {
	entries map[string]Entry
	reverse map[string]string // folded text -> key
}

// NewLexicon builds a Lexicon from entries. Later entries win on key clashes.
func NewLexicon(entries []Entry) *Lexicon {
	l := &Lexicon{
		entries: make(map[string]Entry, len(entries)),
		reverse: make(map[string]string),
	}
	for _, e := range entries {
		l.entries[e.Key] = e
	}
	for _, e := range entries {
		l.reverse[fold(e.Key)] = e.Key
		for _, text := range e.Texts {
			if f := fold(text); f != "" {
				if _, taken := l.reverse[f]; !taken {
					l.reverse[f] = e.Key
				}
			}
		}
	}
	return l
}

// Translate implements Translator.
func (l *Lexicon) Translate(key, lang string) (string, bool) {
	e, ok := l.entries[key]
	if !ok {
		return "", false
	}
	s, ok := e.Texts[lang]
	return s, ok
}

// Emoji implements Iconer.
func (l *Lexicon) Emoji(key string) (string, bool) {
	e, ok := l.entries[key]
	if !ok || e.Emoji == "" {
		return "", false
	}
	return e.Emoji, true
}

// Lookup finds the key whose key or translation matches text, ignoring
// case, accents and surrounding punctuation.
func (l *Lexicon) Lookup(text string) (string, bool) {
	key, ok := l.reverse[fold(text)]
	return key, ok
}

// Len returns the number of entries.
func (l *Lexicon) Len() int {
	return len(l.entries)
}

// Entries returns every entry in unspecified order.
func (l *Lexicon) Entries() []Entry {
	out := make([]Entry, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, e)
	}
	return out
}

// fold case-folds s, so "Straße" and "STRASSE" meet, and strips combining
// marks and edge punctuation. A Caser is stateful, hence one per call.
func fold(s string) string {
	s = norm.NFD.String(cases.Fold().String(strings.TrimSpace(s)))
	var b strings.Builder
	for _, r := range s {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimFunc(b.String(), func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r)
	})
}
