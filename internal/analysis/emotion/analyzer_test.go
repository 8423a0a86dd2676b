package emotion

import "testing"

func TestTagsFromReply(t *testing.T) {
	tags := Tags("thanks", "Great news, I'm so happy for you!", 2)
	if len(tags) == 0 || tags[0] != string(Happy) {
		t.Fatalf("expected happy first, got %v", tags)
	}
}

func TestTagsNeutralReply(t *testing.T) {
	if tags := Tags("what is the capital of France", "The capital of France is Paris.", 2); len(tags) != 0 {
		t.Fatalf("expected no tags, got %v", tags)
	}
}

func TestTagsWholeWordMatching(t *testing.T) {
	// "funny" and "careful" must not count as "fun" or "care"
	if tags := Tags("", "Be careful, that is not funny.", 3); len(tags) != 0 {
		t.Fatalf("expected no tags, got %v", tags)
	}
}

func TestTagsLimitAndOrder(t *testing.T) {
	tags := Tags("", "Done! Perfect, works now. I love it, lovely and happy.", 1)
	if len(tags) != 1 {
		t.Fatalf("expected a single tag, got %v", tags)
	}
	if tags[0] != string(ThumbsUp) {
		t.Fatalf("expected thumbsup to score highest, got %v", tags)
	}
}

func TestAnalyzeUserMoodAloneIsWeak(t *testing.T) {
	if _, ok := Analyze("I love this", "Here is the file you asked for."); ok {
		t.Fatal("a single user keyword should not produce a tag on its own")
	}
	d, ok := Analyze("", "I love it, what a lovely idea")
	if !ok || d.Emotion != Love {
		t.Fatalf("expected love, got %+v ok=%v", d, ok)
	}
}
