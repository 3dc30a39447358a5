package extractor

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Strategy is one candidate lookup for a field. It reports false when it
// produced nothing usable.
type Strategy func(s *goquery.Selection) (string, bool)

// FirstMatch evaluates strategies in order and returns the first hit.
// List order defines precedence.
func FirstMatch(strategies ...Strategy) Strategy {
	return func(s *goquery.Selection) (string, bool) {
		for _, st := range strategies {
			if v, ok := st(s); ok {
				return v, true
			}
		}
		return "", false
	}
}

// Validated rejects values of st that fail pred
func Validated(st Strategy, pred func(string) bool) Strategy {
	return func(s *goquery.Selection) (string, bool) {
		v, ok := st(s)
		if !ok || !pred(v) {
			return "", false
		}
		return v, true
	}
}

// SelectorText returns the collapsed text of the first element matching sel
func SelectorText(sel string) Strategy {
	return func(s *goquery.Selection) (string, bool) {
		found := s.Find(sel).First()
		if found.Length() == 0 {
			return "", false
		}
		text := collapse(found.Text())
		return text, text != ""
	}
}

// SelectorAttr returns an attribute of the first element matching sel
func SelectorAttr(sel, attr string) Strategy {
	return func(s *goquery.Selection) (string, bool) {
		found := s.Find(sel).First()
		if found.Length() == 0 {
			return "", false
		}
		v, ok := found.Attr(attr)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
}

// SelectorHTML returns the inner markup of the first element matching sel
func SelectorHTML(sel string) Strategy {
	return func(s *goquery.Selection) (string, bool) {
		found := s.Find(sel).First()
		if found.Length() == 0 {
			return "", false
		}
		html, err := found.Html()
		if err != nil {
			return "", false
		}
		html = strings.TrimSpace(html)
		return html, html != ""
	}
}

// Each applies per to every selector in order and combines them with FirstMatch
func Each(selectors []string, per func(sel string) Strategy) Strategy {
	strategies := make([]Strategy, 0, len(selectors))
	for _, sel := range selectors {
		strategies = append(strategies, per(sel))
	}
	return FirstMatch(strategies...)
}

// RegexScan searches the visible text of the selection and returns the
// first match accepted by keep. A nil keep accepts everything.
func RegexScan(re *regexp.Regexp, keep func(string) bool) Strategy {
	return func(s *goquery.Selection) (string, bool) {
		for _, m := range re.FindAllString(visibleText(s), -1) {
			if keep == nil || keep(m) {
				return m, true
			}
		}
		return "", false
	}
}
