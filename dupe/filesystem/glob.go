package filesystem

import (
	"fmt"
	"regexp"
	"strings"
)

// nameGlob matches file names with shell glob rules: '*' and '?' match any
// characters, "[...]" is a set, "[!...]" a negated set, and a '[' without a
// closing ']' is an ordinary character. Backslash has no escaping role.
type nameGlob struct {
	pattern string
	re      *regexp.Regexp
}

func compileGlobs(patterns []string) ([]nameGlob, error) {
	globs := make([]nameGlob, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(translateGlob(p))
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", p, err)
		}
		globs = append(globs, nameGlob{pattern: p, re: re})
	}
	return globs, nil
}

func (g nameGlob) match(name string) bool {
	return g.re.MatchString(name)
}

// translateGlob rewrites a glob as an anchored regular expression
func translateGlob(pattern string) string {
	runes := []rune(pattern)
	n := len(runes)

	var b strings.Builder
	b.WriteString(`(?s)^`)
	for i := 0; i < n; {
		c := runes[i]
		i++
		switch c {
		case '*':
			for i < n && runes[i] == '*' {
				i++
			}
			b.WriteString(`.*`)
		case '?':
			b.WriteString(`.`)
		case '[':
			j := i
			if j < n && runes[j] == '!' {
				j++
			}
			if j < n && runes[j] == ']' {
				j++
			}
			for j < n && runes[j] != ']' {
				j++
			}
			if j >= n {
				b.WriteString(`\[`)
				continue
			}
			b.WriteString(bracketClass(runes[i:j]))
			i = j + 1
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	b.WriteString(`$`)
	return b.String()
}

// bracketClass converts the body of a "[...]" set. Reversed ranges select
// nothing; a set left empty never matches, a negated empty set matches any
// single character.
func bracketClass(set []rune) string {
	negate := len(set) > 0 && set[0] == '!'
	if negate {
		set = set[1:]
	}

	var items strings.Builder
	for k := 0; k < len(set); k++ {
		lo := set[k]
		if k+2 < len(set) && set[k+1] == '-' {
			hi := set[k+2]
			k += 2
			if lo > hi {
				continue
			}
			items.WriteString(classRune(lo) + "-" + classRune(hi))
			continue
		}
		items.WriteString(classRune(lo))
	}

	switch {
	case items.Len() == 0 && negate:
		return `.`
	case items.Len() == 0:
		return `[^\x00-\x{10FFFF}]`
	case negate:
		return "[^" + items.String() + "]"
	}
	return "[" + items.String() + "]"
}

func classRune(r rune) string {
	switch r {
	case '\\', ']', '[', '^', '-':
		return `\` + string(r)
	}
	return string(r)
}
