package emotion

import (
	"sort"
	"strings"
)

// Label 是客户端能以图标展示的情绪标签。
type Label string

const (
	Happy    Label = "happy"
	Love     Label = "love"
	ThumbsUp Label = "thumbsup"
)

// Decision 单个标签及其得分。
type Decision struct {
	Emotion Label
	Score   int
}

var keywordBuckets = map[Label][]string{
	Happy: {
		"happy", "glad", "great", "awesome", "amazing", "fun", "haha", "lol", "yay", "excited",
		"wonderful", "fantastic", "delighted", "cheers", "congrats", "congratulations", "😄", "😊",
	},
	Love: {
		"love", "lovely", "adore", "heart", "sweet", "dear", "beautiful", "care", "miss you",
		"thank you so much", "grateful", "❤️", "pyaar",
	},
	ThumbsUp: {
		"done", "sure", "ok", "okay", "yes", "agreed", "perfect", "nice", "good job", "well done",
		"sounds good", "got it", "works", "fixed", "solved", "correct", "👍",
	},
}

var punctuationBoost = map[Label]int{
	Happy: 1,
}

// minScore 低于此分数的标签不输出
const minScore = 3

// Tags 根据用户消息与回复推断情绪标签，按得分从高到低排列，最多 limit 个。
func Tags(userUtterance, reply string, limit int) []string {
	scores := scoreText(reply)
	// 用户情绪较弱地影响结果，回复本身占主导
	for label, score := range scoreText(userUtterance) {
		scores[label] += score / 3
	}

	decisions := make([]Decision, 0, len(scores))
	for label, score := range scores {
		if score >= minScore {
			decisions = append(decisions, Decision{Emotion: label, Score: score})
		}
	}
	sort.Slice(decisions, func(i, j int) bool {
		if decisions[i].Score == decisions[j].Score {
			return decisions[i].Emotion < decisions[j].Emotion
		}
		return decisions[i].Score > decisions[j].Score
	})

	if limit > 0 && len(decisions) > limit {
		decisions = decisions[:limit]
	}
	tags := make([]string, 0, len(decisions))
	for _, d := range decisions {
		tags = append(tags, string(d.Emotion))
	}
	return tags
}

// Analyze 返回得分最高的单个标签；没有明显情绪时 ok 为 false。
func Analyze(userUtterance, reply string) (Decision, bool) {
	scores := scoreText(reply)
	for label, score := range scoreText(userUtterance) {
		scores[label] += score / 3
	}

	var best Decision
	for label, score := range scores {
		if score > best.Score || (score == best.Score && label < best.Emotion) {
			best = Decision{Emotion: label, Score: score}
		}
	}
	return best, best.Score >= minScore
}

func scoreText(text string) map[Label]int {
	scores := make(map[Label]int)
	normalized := strings.TrimSpace(strings.ToLower(text))
	if normalized == "" {
		return scores
	}

	words := make(map[string]bool)
	for _, field := range strings.FieldsFunc(normalized, isSeparator) {
		words[field] = true
	}

	for label, keywords := range keywordBuckets {
		for _, kw := range keywords {
			// 多词短语与表情按子串匹配，单词按整词匹配
			if strings.ContainsAny(kw, " ") || !isWordy(kw) {
				if strings.Contains(normalized, kw) {
					scores[label] += 3
				}
				continue
			}
			if words[kw] {
				scores[label] += 3
			}
		}
	}

	exclamations := strings.Count(text, "!")
	if exclamations > 0 {
		for label, boost := range punctuationBoost {
			if scores[label] > 0 {
				scores[label] += boost * min(exclamations, 3)
			}
		}
	}
	return scores
}

func isSeparator(r rune) bool {
	switch r {
	case ' ', '\t', '\n', ',', '.', '!', '?', ';', ':', '(', ')', '"', '\'':
		return true
	}
	return false
}

func isWordy(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && r != '-' {
			return false
		}
	}
	return true
}
