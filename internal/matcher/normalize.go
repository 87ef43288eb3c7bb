package matcher

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ukcatalog/core/internal/config"
)

var upperCaser = cases.Upper(language.English)

// Normalize runs name through the ordered, configurable normalization
// pipeline and returns the result plus the list of steps that actually
// changed the string, for normalization_steps_json. When normalization is
// disabled the name passes through unchanged and no steps are recorded.
func Normalize(name string, cfg config.MatchingConfig) (string, []string) {
	if !cfg.NormalizationEnabled {
		return name, nil
	}

	var steps []string
	cur := name

	upper := upperCaser.String(cur)
	if upper != cur {
		steps = append(steps, "uppercase")
		cur = upper
	}

	trimmed := strings.TrimSpace(cur)
	if trimmed != cur {
		steps = append(steps, "trim")
		cur = trimmed
	}

	collapsed := collapseSpaces(cur)
	if collapsed != cur {
		steps = append(steps, "collapse_spaces")
		cur = collapsed
	}

	for _, prefix := range cfg.Prefixes {
		p := upperCaser.String(prefix)
		if strings.HasPrefix(cur, p) {
			cur = strings.TrimPrefix(cur, p)
			steps = append(steps, "strip_prefix:"+strings.TrimSpace(prefix))
			break
		}
	}

	for _, suffix := range cfg.Suffixes {
		sfx := upperCaser.String(suffix)
		if strings.HasSuffix(cur, sfx) {
			cur = strings.TrimSuffix(cur, sfx)
			steps = append(steps, "strip_suffix:"+strings.TrimSpace(suffix))
			break
		}
	}

	cur = strings.TrimSpace(cur)

	expanded, expandedAny := expandAbbreviations(cur, cfg.Abbreviations)
	if expandedAny {
		steps = append(steps, "expand_abbreviations")
		cur = expanded
	}

	return strings.TrimSpace(cur), steps
}

func collapseSpaces(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

// expandAbbreviations expands whole-word abbreviations only at word
// boundaries; it never touches substrings of a longer word.
func expandAbbreviations(s string, abbrevs map[string]string) (string, bool) {
	if len(abbrevs) == 0 {
		return s, false
	}
	words := strings.Fields(s)
	changed := false
	for i, w := range words {
		if full, ok := abbrevs[w]; ok {
			words[i] = full
			changed = true
		}
	}
	if !changed {
		return s, false
	}
	return strings.Join(words, " "), true
}
