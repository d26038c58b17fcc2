package analyzer

import "strings"

// matchCount returns how many tags contain keyword. Matching is
// case-sensitive substring containment; each tag counts at most once.
func matchCount(tags []string, keyword string) int {
	n := 0
	for _, t := range tags {
		if strings.Contains(t, keyword) {
			n++
		}
	}
	return n
}

// keywordState returns the sub-state for keyword, creating it on first use.
func (s *StreamState) keywordState(keyword string) *windowState {
	ws, ok := s.keywords[keyword]
	if !ok {
		ws = newWindowState(keyword, s.keywordRetention)
		s.keywords[keyword] = ws
	}
	return ws
}

// advanceKeywords feeds each configured keyword's sub-pipeline with the
// number of tags that match it. Events without tags do no keyword work.
func (s *StreamState) advanceKeywords(keywords, tags []string, d detection, pos float64) []closeResult {
	if len(keywords) == 0 || len(tags) == 0 {
		return nil
	}
	var out []closeResult
	for _, kw := range keywords {
		ws := s.keywordState(kw)
		out = append(out, ws.advance(s.clock(), d, pos, matchCount(tags, kw))...)
	}
	return out
}
