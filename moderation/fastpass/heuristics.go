package fastpass

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/sentry-moderation/sentry/moderation"
	"github.com/sentry-moderation/sentry/moderation/keyword"
)

func (f *Filter) checkSpamHeuristics(content string, msg *moderation.Message) (Outcome, bool) {
	if len(content) > f.cfg.MaxMessageLength {
		return spamOutcome(fmt.Sprintf("message length %d exceeds %d", len(content), f.cfg.MaxMessageLength)), true
	}

	var letters, upper, emoji, combining int
	runes := []rune(content)
	for _, r := range runes {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
		if unicode.Is(unicode.Mn, r) {
			combining++
		}
		if r >= 0x1F300 && r <= 0x1FAFF {
			emoji++
		}
	}

	// capitalization ratio only meaningful on non-trivial messages
	if letters >= 10 {
		ratio := float64(upper) / float64(letters)
		if ratio > f.cfg.MaxCapsRatio {
			return spamOutcome(fmt.Sprintf("capitalization ratio %.2f exceeds %.2f", ratio, f.cfg.MaxCapsRatio)), true
		}
	}
	if emoji > f.cfg.MaxEmojiCount {
		return spamOutcome(fmt.Sprintf("emoji count %d exceeds %d", emoji, f.cfg.MaxEmojiCount)), true
	}
	if n := strings.Count(content, "<@"); n > f.cfg.MaxMentionCount {
		return spamOutcome(fmt.Sprintf("mention count %d exceeds %d", n, f.cfg.MaxMentionCount)), true
	}
	// dense combining characters indicate "zalgo" style obfuscated text
	if len(runes) >= 8 {
		ratio := float64(combining) / float64(len(runes))
		if ratio > f.cfg.MaxCombiningRatio {
			return spamOutcome(fmt.Sprintf("combining character ratio %.2f exceeds %.2f", ratio, f.cfg.MaxCombiningRatio)), true
		}
	}
	return Outcome{}, false
}

func (f *Filter) checkRepetition(content string) (Outcome, bool) {
	// character run-length
	var prev rune
	run := 1
	for _, r := range content {
		if r == prev {
			run++
			if run > f.cfg.MaxCharRun {
				return repetitionOutcome(fmt.Sprintf("character %q repeated more than %d times", prev, f.cfg.MaxCharRun)), true
			}
		} else {
			run = 1
			prev = r
		}
	}

	// repeated-word frequency, ignoring very short words
	counts := make(map[string]int)
	for _, w := range keyword.TokenizeText(content) {
		if len(w) < f.cfg.MinRepeatedWord {
			continue
		}
		counts[w]++
		if counts[w] > f.cfg.MaxWordRepeats {
			return repetitionOutcome(fmt.Sprintf("word %q repeated more than %d times", w, f.cfg.MaxWordRepeats)), true
		}
	}
	return Outcome{}, false
}

func spamOutcome(reason string) Outcome {
	return Outcome{
		Triggered:     true,
		RuleTriggered: "spam_heuristic",
		Action:        moderation.ActionMask,
		Reason:        reason,
		Confidence:    1.0,
	}
}

func repetitionOutcome(reason string) Outcome {
	return Outcome{
		Triggered:     true,
		RuleTriggered: "repetition_heuristic",
		Action:        moderation.ActionMask,
		Reason:        reason,
		Confidence:    1.0,
	}
}
