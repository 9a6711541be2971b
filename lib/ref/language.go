// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import "fmt"

// Language is a negotiated dialog language, carried on every dialog
// request and response and recorded in the participant's session. Only
// the tags Atrium's translation layer understands are valid.
//
// Language is an immutable value type. The zero value is not valid;
// use IsZero to check.
type Language struct {
	tag string
}

// The set of supported languages. DefaultLanguage is what a session
// starts with before the client negotiates anything else.
var (
	AmericanEnglish = Language{tag: "en-US"}
	BritishEnglish  = Language{tag: "en-GB"}
	German          = Language{tag: "de-DE"}
	French          = Language{tag: "fr-FR"}
	Spanish         = Language{tag: "es-ES"}

	DefaultLanguage = AmericanEnglish
)

var languageNames = map[string]string{
	"en-US": "American English",
	"en-GB": "British English",
	"de-DE": "German",
	"fr-FR": "French",
	"es-ES": "Spanish",
}

// ParseLanguage validates and wraps a raw language tag.
func ParseLanguage(raw string) (Language, error) {
	if raw == "" {
		return Language{}, fmt.Errorf("empty language tag")
	}
	if _, ok := languageNames[raw]; !ok {
		return Language{}, fmt.Errorf("unsupported language tag: %q", raw)
	}
	return Language{tag: raw}, nil
}

// MustParseLanguage is like ParseLanguage but panics on error.
func MustParseLanguage(raw string) Language {
	l, err := ParseLanguage(raw)
	if err != nil {
		panic(fmt.Sprintf("ref.MustParseLanguage(%q): %v", raw, err))
	}
	return l
}

// String returns the language tag (e.g. "en-US").
func (l Language) String() string { return l.tag }

// DisplayName returns the human-readable language name.
func (l Language) DisplayName() string { return languageNames[l.tag] }

// IsZero reports whether the Language is the zero value.
func (l Language) IsZero() bool { return l.tag == "" }

// MarshalText implements encoding.TextMarshaler.
func (l Language) MarshalText() ([]byte, error) {
	if l.tag == "" {
		return nil, nil
	}
	return []byte(l.tag), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Language) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*l = Language{}
		return nil
	}
	parsed, err := ParseLanguage(string(data))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
