package utils

import (
	"fmt"
	"strings"

	"github.com/dlclark/regexp2"
)

// Wildmat is a comma separated list of glob patterns, each optionally
// negated with a leading '!'. A name matches when it matches at least one
// plain pattern and none of the negated ones. A list made only of negated
// patterns matches everything they do not exclude.
type Wildmat struct {
	patterns []*WildmatPattern
	regex    *regexp2.Regexp
}

type WildmatPattern struct {
	negated bool
	pattern string
	regex   *regexp2.Regexp
}

func regexpEscape(str string) string {
	restrictedChars := []string{"\\", "+", "|", "{", "}", "[", "]", "(", ")", "^", "$", ".", "#"}
	for _, v := range restrictedChars {
		str = strings.ReplaceAll(str, v, "\\"+v)
	}
	return str
}

func convertWildmatToRegex(pat string) (*regexp2.Regexp, error) {
	var regex strings.Builder
	for _, v := range regexpEscape(pat) {
		switch v {
		case '?':
			regex.WriteString(".")
		case '*':
			regex.WriteString(".*")
		default:
			regex.WriteRune(v)
		}
	}
	return regexp2.Compile(regex.String(), regexp2.Singleline)
}

func ParseWildmat(wildmat string) (*Wildmat, error) {
	res := &Wildmat{}
	for _, v := range strings.Split(wildmat, ",") {
		if len(v) > 0 && v[0] == '!' {
			r, err := convertWildmatToRegex(v[1:])
			if err != nil {
				return nil, err
			}
			res.patterns = append(res.patterns, &WildmatPattern{pattern: v[1:], negated: true, regex: r})
		} else {
			r, err := convertWildmatToRegex(v)
			if err != nil {
				return nil, err
			}
			res.patterns = append(res.patterns, &WildmatPattern{pattern: v, negated: false, regex: r})
		}
	}
	r, err := res.ToRegex()
	if err != nil {
		return nil, err
	}
	res.regex = r
	return res, nil
}

// ToRegex folds the patterns into one anchored expression. Negated patterns
// become lookaheads in front of the alternation of the plain ones.
func (w *Wildmat) ToRegex() (*regexp2.Regexp, error) {
	var include []string
	exclude := ""
	for _, v := range w.patterns {
		if v.negated {
			exclude += fmt.Sprintf("(?!(?:%s)$)", v.regex.String())
		} else {
			include = append(include, fmt.Sprintf("(?:%s)", v.regex.String()))
		}
	}
	if len(include) == 0 {
		include = append(include, ".*")
	}
	res := fmt.Sprintf("^%s(?:%s)$", exclude, strings.Join(include, "|"))
	return regexp2.Compile(res, regexp2.Singleline)
}

func (w *Wildmat) Match(name string) bool {
	ok, err := w.regex.MatchString(name)
	return err == nil && ok
}
