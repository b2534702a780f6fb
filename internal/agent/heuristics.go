package agent

import (
	"regexp"
	"strings"
)

// Keyword weights for the heuristic classifier. The relative ordering
// (strong > medium > weak) matters; the exact values are tuning constants.
const (
	weightStrong = 3
	weightMedium = 2
	weightWeak   = 1

	// yearBonus is added to the web score when the query names an explicit
	// 4-digit year.
	yearBonus = 2

	// questionTemporalBonus is added to the web score when a question-form
	// query also carries a temporal word.
	questionTemporalBonus = 2

	// tieMargin is the maximum score difference still treated as a tie.
	tieMargin = 1
)

// Web-worthy signals: the query wants current, changing information.
var (
	webStrong = []string{"latest", "current", "today", "news", "breaking", "recent", "right now"}
	webMedium = []string{"price", "stock", "weather", "forecast", "release", "announcement", "trending", "this year", "this week"}
	webWeak   = []string{"new", "modern", "upcoming", "soon"}
)

// Local-worthy signals: the query targets stored or internal knowledge.
var (
	localStrong = []string{"internal", "documentation", "docs", "knowledge base", "our ", "company", "policy", "handbook"}
	localMedium = []string{"configure", "configuration", "setup", "install", "api", "guide", "architecture", "how do i", "procedure"}
	localWeak   = []string{"what is", "define", "explain", "overview", "describe"}
)

// yearPattern matches explicit 4-digit years (1900–2099).
var yearPattern = regexp.MustCompile(`\b(19|20)\d{2}\b`)

// questionPattern matches queries opening with a question form like
// "what is", "who were", "how are".
var questionPattern = regexp.MustCompile(`^(what|who|when|where|why|how)\s+(is|are|was|were)\b`)

// temporalWords trigger the question bonus when combined with questionPattern.
var temporalWords = []string{"latest", "current", "recent", "today", "now"}

// classifyHeuristic scores the query against weighted keyword sets when the
// model-based classifier is unavailable or unparseable.
//
// Both scores positive and within tieMargin of each other means the query
// plausibly needs both backends. Both zero defaults to Local: an unrecognized
// query is cheaper to answer from stored knowledge than from a live search.
func classifyHeuristic(query string) Decision {
	q := strings.ToLower(strings.TrimSpace(query))

	webScore := scoreKeywords(q, webStrong, webMedium, webWeak)
	localScore := scoreKeywords(q, localStrong, localMedium, localWeak)

	if yearPattern.MatchString(q) {
		webScore += yearBonus
	}
	if questionPattern.MatchString(q) && containsAny(q, temporalWords) {
		webScore += questionTemporalBonus
	}

	switch {
	case webScore == 0 && localScore == 0:
		return DecisionLocal
	case webScore > 0 && localScore > 0 && abs(webScore-localScore) <= tieMargin:
		return DecisionBoth
	case webScore > localScore:
		return DecisionWeb
	default:
		return DecisionLocal
	}
}

// scoreKeywords sums the weights of all matching keywords in q.
func scoreKeywords(q string, strong, medium, weak []string) int {
	score := 0
	for _, kw := range strong {
		if strings.Contains(q, kw) {
			score += weightStrong
		}
	}
	for _, kw := range medium {
		if strings.Contains(q, kw) {
			score += weightMedium
		}
	}
	for _, kw := range weak {
		if strings.Contains(q, kw) {
			score += weightWeak
		}
	}
	return score
}

// containsAny reports whether q contains any of the given words.
func containsAny(q string, words []string) bool {
	for _, w := range words {
		if strings.Contains(q, w) {
			return true
		}
	}
	return false
}

// abs returns the absolute value of n.
func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
