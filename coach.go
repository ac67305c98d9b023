package main

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"
)

const coachPromptTemplate = `Tu es un coach pragmatique.
Objectif utilisateur: %s
Contexte additionnel (optionnel): %s

Donne une liste de 5 à 8 conseils actionnables, concis (max 18 mots), classés naturellement.
Format strict:
1. Conseil...
2. Conseil...
3. ...`

var (
	adviceLineRe    = regexp.MustCompile(`^(?:\d+\.|[-*])\s*(.+)$`)
	sentenceSplitRe = regexp.MustCompile(`(?:[.!?])\s+`)
)

// BuildCoachPrompt renders the structured coaching prompt from the user's
// goal and optional context.
func BuildCoachPrompt(goal, contextText string) string {
	ctx := strings.TrimSpace(contextText)
	if ctx == "" {
		ctx = "(aucun)"
	}
	return fmt.Sprintf(coachPromptTemplate, strings.TrimSpace(goal), ctx)
}

// ParseAdvices extracts individual advice strings from a model reply.
// Lines matching a numbered or bulleted list pattern contribute their
// remainder in original order. If no line matches, the reply is split into
// sentences and the first 5 non-empty ones are used instead. Duplicates
// differing only in case collapse to the first occurrence.
func ParseAdvices(text string) []string {
	var results []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if m := adviceLineRe.FindStringSubmatch(line); m != nil {
			results = append(results, strings.TrimSpace(m[1]))
		}
	}

	if len(results) == 0 {
		for _, s := range splitSentences(text) {
			results = append(results, s)
			if len(results) == 5 {
				break
			}
		}
	}

	seen := make(map[string]bool, len(results))
	uniq := results[:0]
	for _, a := range results {
		key := strings.ToLower(a)
		if seen[key] {
			continue
		}
		seen[key] = true
		uniq = append(uniq, a)
	}
	return uniq
}

// splitSentences splits on terminal punctuation followed by whitespace,
// keeping the punctuation with the preceding sentence. A final sentence
// without trailing whitespace is kept too, so single-line input without
// list markers still yields one item.
func splitSentences(text string) []string {
	var sentences []string
	locs := sentenceSplitRe.FindAllStringIndex(text, -1)
	start := 0
	for _, loc := range locs {
		// loc[0] is the punctuation mark; keep it with the sentence.
		s := strings.TrimSpace(text[start : loc[0]+1])
		if s != "" {
			sentences = append(sentences, s)
		}
		start = loc[1]
	}
	if tail := strings.TrimSpace(text[start:]); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}

// ScoreAdvices attaches the deterministic placeholder ranking: brevity
// (inverse of character length, floored at 0) plus position weight, rounded
// to 4 decimals. Reproducible bit-for-bit for the same input list.
func ScoreAdvices(advices []string) []AdviceItem {
	items := make([]AdviceItem, 0, len(advices))
	for idx, text := range advices {
		// length is characters, not bytes
		score := math.Max(0, 1-float64(utf8.RuneCountInString(text))/160) + 0.05*float64(len(advices)-idx)
		items = append(items, AdviceItem{
			Text:  text,
			Score: math.Round(score*10000) / 10000,
		})
	}
	return items
}

// AdviceResult carries everything a caller needs from one coaching run:
// the scored items, the model that produced them, and the raw exchange for
// interaction persistence.
type AdviceResult struct {
	Advices []AdviceItem
	Model   string
	Raw     string
	Prompt  string
}

// GenerateAdvices runs the full coaching pipeline: prompt build, model
// call, parse, score.
func GenerateAdvices(ctx context.Context, completer Completer, goal, contextText, userID string) (*AdviceResult, error) {
	prompt := BuildCoachPrompt(goal, contextText)
	completion, model, err := completer.Complete(ctx, prompt, userID)
	if err != nil {
		return nil, err
	}
	return &AdviceResult{
		Advices: ScoreAdvices(ParseAdvices(completion)),
		Model:   model,
		Raw:     completion,
		Prompt:  prompt,
	}, nil
}
