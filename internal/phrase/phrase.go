// Package phrase accumulates committed tokens into a renderable phrase.
package phrase

import (
	"strings"

	"github.com/ayusman/ishara/internal/gesture"
)

// Translator maps a token key to display text in a language.
type Translator interface {
	Translate(key, lang string) (string, bool)
}

// Iconer is implemented by translators that know an icon for a key.
type Iconer interface {
	Emoji(key string) (string, bool)
}

// Assembler is the ordered token list shown to the user. It is owned by
// the recognition loop and not safe for concurrent use.
type Assembler struct {
	tokens      []gesture.Token
	tr          Translator
	corrections map[string]string
}

// NewAssembler creates an empty Assembler. tr may be nil, in which case
// tokens render as their keys. corrections rewrites letter keys on append.
func NewAssembler(tr Translator, corrections map[string]string) *Assembler {
	return &Assembler{
		tr:          tr,
		corrections: corrections,
	}
}

// SetTranslator replaces the translator used by Render.
func (a *Assembler) SetTranslator(tr Translator) {
	a.tr = tr
}

// Append adds a committed token.
func (a *Assembler) Append(tok gesture.Token) {
	if tok.Source == gesture.SourceLetter {
		if fixed, ok := a.corrections[tok.Key]; ok {
			tok.Key = fixed
		}
	}
	a.tokens = append(a.tokens, tok)
}

// AddSpace appends an explicit word boundary.
func (a *Assembler) AddSpace() {
	a.tokens = append(a.tokens, gesture.Token{Key: " ", Source: gesture.SourceSpace})
}

// DeleteLast removes the newest token. It reports false when empty.
func (a *Assembler) DeleteLast() bool {
	if len(a.tokens) == 0 {
		return false
	}
	a.tokens = a.tokens[:len(a.tokens)-1]
	return true
}

// Clear removes every token.
func (a *Assembler) Clear() {
	a.tokens = a.tokens[:0]
}

// Len returns the number of tokens.
func (a *Assembler) Len() int {
	return len(a.tokens)
}

// Tokens returns a copy of the tokens, oldest first.
func (a *Assembler) Tokens() []gesture.Token {
	out := make([]gesture.Token, len(a.tokens))
	copy(out, a.tokens)
	return out
}

// Keys returns the token keys without spaces.
func (a *Assembler) Keys() []string {
	keys := make([]string, 0, len(a.tokens))
	for _, t := range a.tokens {
		if t.Source != gesture.SourceSpace {
			keys = append(keys, t.Key)
		}
	}
	return keys
}

// Render returns the phrase in lang.
//
// Consecutive letters are glued into a spelled word; any other neighbours
// are separated by one space. Space tokens force a boundary.
func (a *Assembler) Render(lang string) string {
	return a.render(lang, false)
}

// RenderWithEmoji is Render with each word prefixed by its icon when known.
func (a *Assembler) RenderWithEmoji(lang string) string {
	return a.render(lang, true)
}

func (a *Assembler) render(lang string, icons bool) string {
	var b strings.Builder
	boundary := false
	prev := gesture.SourceSpace

	for _, t := range a.tokens {
		if t.Source == gesture.SourceSpace {
			boundary = true
			prev = gesture.SourceSpace
			continue
		}

		glue := t.Source == gesture.SourceLetter && prev == gesture.SourceLetter && !boundary
		if b.Len() > 0 && !glue {
			b.WriteByte(' ')
		}

		if icons && t.Source == gesture.SourceWord {
			if ic, ok := a.tr.(Iconer); ok {
				if e, ok := ic.Emoji(t.Key); ok && e != "" {
					b.WriteString(e)
					b.WriteByte(' ')
				}
			}
		}

		b.WriteString(a.text(t.Key, lang))
		boundary = false
		prev = t.Source
	}

	return strings.TrimSpace(b.String())
}

func (a *Assembler) text(key, lang string) string {
	if a.tr == nil {
		return key
	}
	if s, ok := a.tr.Translate(key, lang); ok && s != "" {
		return s
	}
	return key
}
