package formats

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	ErrCompressUnsupported = errors.New("format not supported for compression")
	ErrNoTargets           = errors.New("format not supported for conversion")
	ErrTargetNotOffered    = errors.New("target format not offered for this file")
)

// Advisor answers which actions and targets apply to a file extension.
// It is immutable after construction and safe for concurrent use.
type Advisor struct {
	lang     language.Tag
	hints    catalog
	rules    map[string]*Rule
	compress map[string]struct{}
}

type Option func(*Advisor)

// WithLanguage selects the hint catalog closest to tag.
func WithLanguage(tag language.Tag) Option {
	return func(a *Advisor) {
		a.lang = MatchLanguage(tag)
	}
}

func NewAdvisor(opts ...Option) *Advisor {
	a := &Advisor{
		lang:     language.English,
		rules:    make(map[string]*Rule),
		compress: make(map[string]struct{}, len(compressExtensions)),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.hints = catalogs[a.lang]

	for i := range defaultRules {
		rule := &defaultRules[i]
		for _, ext := range rule.Extensions {
			if _, taken := a.rules[ext]; !taken {
				a.rules[ext] = rule
			}
		}
	}
	for _, ext := range compressExtensions {
		a.compress[ext] = struct{}{}
	}
	return a
}

func (a *Advisor) Language() language.Tag {
	return a.lang
}

// ExtensionOf returns the lowercased text after the last dot of the file's
// base name, or the whole lowercased base name when it has no dot.
func ExtensionOf(filename string) string {
	base := filepath.Base(filename)
	if idx := strings.LastIndex(base, "."); idx >= 0 {
		base = base[idx+1:]
	}
	return strings.ToLower(base)
}

func normalize(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// CompressSupported reports whether ext is in the compression set, regardless
// of which conversion rule it matches.
func (a *Advisor) CompressSupported(ext string) bool {
	_, ok := a.compress[normalize(ext)]
	return ok
}

// Advise never fails: unknown extensions get the unsupported rule.
func (a *Advisor) Advise(ext string) Advice {
	ext = normalize(ext)

	rule, matched := a.rules[ext]
	if !matched {
		rule = &unsupportedRule
	}

	advice := Advice{
		Extension:         ext,
		Category:          rule.Category,
		Matched:           matched,
		Targets:           slices.Clone(rule.Targets),
		ConvertHint:       a.hints.hint(rule.ConvertHint),
		CompressSupported: a.CompressSupported(ext),
	}
	if advice.Targets == nil {
		advice.Targets = []string{}
	}

	switch {
	case rule.CompressHint != "":
		advice.CompressHint = a.hints.hint(rule.CompressHint)
	case advice.CompressSupported:
		advice.CompressHint = a.hints.hint(HintCompressAvailable)
	default:
		advice.CompressHint = a.hints.hint(HintCompressUnsupported)
	}
	return advice
}

// AdviseFile is Advise on the extension of filename.
func (a *Advisor) AdviseFile(filename string) Advice {
	return a.Advise(ExtensionOf(filename))
}

// Allows reports whether submission is enabled for action.
func (adv Advice) Allows(action Action) bool {
	switch action {
	case ActionCompress:
		return adv.CompressSupported
	case ActionConvert:
		return len(adv.Targets) > 0
	default:
		return false
	}
}

// Check validates a submission and resolves the target format. An empty
// toFormat selects the first offered target. Compression ignores toFormat.
func (adv Advice) Check(action Action, toFormat string) (string, error) {
	switch action {
	case ActionCompress:
		if !adv.CompressSupported {
			return "", fmt.Errorf("%w: .%s", ErrCompressUnsupported, adv.Extension)
		}
		return "", nil
	case ActionConvert:
		if len(adv.Targets) == 0 {
			return "", fmt.Errorf("%w: .%s", ErrNoTargets, adv.Extension)
		}
		toFormat = normalize(toFormat)
		if toFormat == "" {
			return adv.Targets[0], nil
		}
		if !slices.Contains(adv.Targets, toFormat) {
			return "", fmt.Errorf("%w: .%s -> %s (offered: %s)",
				ErrTargetNotOffered, adv.Extension, toFormat, strings.Join(adv.Targets, ", "))
		}
		return toFormat, nil
	default:
		return "", fmt.Errorf("unknown action %q", action)
	}
}

// Label renders a target tag the way it is shown in option lists.
func Label(target string) string {
	return cases.Upper(language.Und).String(target)
}

// Labels renders every offered target.
func (adv Advice) Labels() []string {
	ret := make([]string, 0, len(adv.Targets))
	for _, t := range adv.Targets {
		ret = append(ret, Label(t))
	}
	return ret
}
