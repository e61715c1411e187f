package service

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/moeJEE/llm-phone-feedback-agent/internal/model"
)

var numberPattern = regexp.MustCompile(`-?\d+\.?\d*`)

var yesWords = map[string]bool{
	"yes": true, "y": true, "si": true, "oui": true, "1": true, "true": true,
}

var noWords = map[string]bool{
	"no": true, "n": true, "non": true, "0": true, "false": true,
}

// Interpreter converts raw channel responses into structured answers. It is
// a pure function over (question, raw text); invalid input returns nil and
// never mutates anything.
type Interpreter struct{}

func NewInterpreter() *Interpreter {
	return &Interpreter{}
}

// Interpret parses a raw response against a question's type. A nil return
// means the response is invalid for this question and the caller should
// re-prompt with HelpText without advancing.
func (it *Interpreter) Interpret(q *model.SurveyQuestion, raw string) *model.StructuredAnswer {
	switch q.Type {
	case model.QuestionTypeMultipleChoice:
		return it.interpretChoice(q, raw)
	case model.QuestionTypeYesNo:
		return it.interpretYesNo(raw)
	case model.QuestionTypeNumeric:
		return it.interpretNumeric(q, raw)
	case model.QuestionTypeRating, model.QuestionTypeScale:
		return it.interpretScaled(q, raw)
	default:
		return it.interpretText(q, raw)
	}
}

func (it *Interpreter) interpretChoice(q *model.SurveyQuestion, raw string) *model.StructuredAnswer {
	trimmed := strings.TrimSpace(raw)

	// A bare number selects the 1-based option index.
	if n, err := strconv.Atoi(trimmed); err == nil {
		if n >= 1 && n <= len(q.Options) {
			return &model.StructuredAnswer{
				Kind:        model.AnswerKindChoice,
				ChoiceIndex: n - 1,
				ChoiceText:  q.Options[n-1],
				RawResponse: raw,
			}
		}
		return nil
	}

	// Otherwise match text against the options, substring in either
	// direction, first match wins.
	lower := strings.ToLower(trimmed)
	for i, option := range q.Options {
		optLower := strings.ToLower(option)
		if strings.Contains(optLower, lower) || strings.Contains(lower, optLower) {
			return &model.StructuredAnswer{
				Kind:        model.AnswerKindChoice,
				ChoiceIndex: i,
				ChoiceText:  option,
				RawResponse: raw,
			}
		}
	}
	return nil
}

func (it *Interpreter) interpretYesNo(raw string) *model.StructuredAnswer {
	lower := strings.ToLower(strings.TrimSpace(raw))
	if yesWords[lower] {
		return &model.StructuredAnswer{Kind: model.AnswerKindBool, BoolValue: true, RawResponse: raw}
	}
	if noWords[lower] {
		return &model.StructuredAnswer{Kind: model.AnswerKindBool, BoolValue: false, RawResponse: raw}
	}
	return nil
}

func (it *Interpreter) interpretNumeric(q *model.SurveyQuestion, raw string) *model.StructuredAnswer {
	value, ok := firstNumber(raw)
	if !ok {
		return nil
	}
	if q.MinValue != nil && value < *q.MinValue {
		return nil
	}
	if q.MaxValue != nil && value > *q.MaxValue {
		return nil
	}
	return &model.StructuredAnswer{Kind: model.AnswerKindNumber, NumberValue: value, RawResponse: raw}
}

func (it *Interpreter) interpretScaled(q *model.SurveyQuestion, raw string) *model.StructuredAnswer {
	value, ok := firstNumber(raw)
	if !ok {
		return nil
	}
	min, max := q.ScaleBounds()
	if value < min || value > max {
		return nil
	}
	return &model.StructuredAnswer{Kind: model.AnswerKindNumber, NumberValue: value, RawResponse: raw}
}

func (it *Interpreter) interpretText(q *model.SurveyQuestion, raw string) *model.StructuredAnswer {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	if q.MaxLength > 0 && utf8.RuneCountInString(trimmed) > q.MaxLength {
		return &model.StructuredAnswer{
			Kind:        model.AnswerKindText,
			Text:        truncateRunes(trimmed, q.MaxLength),
			Truncated:   true,
			RawResponse: raw,
		}
	}
	return &model.StructuredAnswer{Kind: model.AnswerKindText, Text: trimmed, RawResponse: raw}
}

// truncateRunes cuts on rune boundaries so truncated answers stay valid UTF-8.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func firstNumber(raw string) (float64, bool) {
	match := numberPattern.FindString(raw)
	if match == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// HelpText returns the type-specific re-prompt instructions used after an
// invalid response.
func HelpText(q *model.SurveyQuestion) string {
	switch q.Type {
	case model.QuestionTypeMultipleChoice:
		var sb strings.Builder
		sb.WriteString("Please reply with the NUMBER (1, 2, 3, etc.) or EXACT TEXT of your choice:\n")
		for i, option := range q.Options {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, option)
		}
		return strings.TrimRight(sb.String(), "\n")

	case model.QuestionTypeYesNo:
		return "Please reply with 'Yes' or 'No'."

	case model.QuestionTypeRating:
		min, max := q.ScaleBounds()
		return fmt.Sprintf("Please reply with a NUMBER between %s and %s.", formatNum(min), formatNum(max))

	case model.QuestionTypeScale:
		min, max := q.ScaleBounds()
		help := fmt.Sprintf("Please reply with a NUMBER between %s and %s", formatNum(min), formatNum(max))
		minLabel, okMin := q.ScaleLabels[formatNum(min)]
		maxLabel, okMax := q.ScaleLabels[formatNum(max)]
		if okMin && okMax {
			help += fmt.Sprintf(" (where %s = %s and %s = %s)", formatNum(min), minLabel, formatNum(max), maxLabel)
		}
		return help + "."

	case model.QuestionTypeNumeric:
		switch {
		case q.MinValue != nil && q.MaxValue != nil:
			return fmt.Sprintf("Please reply with a NUMBER between %s and %s.", formatNum(*q.MinValue), formatNum(*q.MaxValue))
		case q.MinValue != nil:
			return fmt.Sprintf("Please reply with a NUMBER (minimum: %s).", formatNum(*q.MinValue))
		case q.MaxValue != nil:
			return fmt.Sprintf("Please reply with a NUMBER (maximum: %s).", formatNum(*q.MaxValue))
		default:
			return "Please reply with a NUMBER."
		}

	default:
		if q.MaxLength > 0 {
			return fmt.Sprintf("Please provide your answer (maximum %d characters).", q.MaxLength)
		}
		return "Please provide your answer."
	}
}

// QuestionPrompt builds the full channel message for a question, numbered by
// position, with type-specific response instructions appended.
func QuestionPrompt(q *model.SurveyQuestion, position int) string {
	text := fmt.Sprintf("**Question %d:** %s", position+1, q.Text)

	switch q.Type {
	case model.QuestionTypeMultipleChoice:
		if len(q.Options) > 0 {
			var sb strings.Builder
			sb.WriteString(text)
			sb.WriteString("\n\n")
			for i, option := range q.Options {
				fmt.Fprintf(&sb, "%d. %s\n", i+1, option)
			}
			sb.WriteString("\nReply with the NUMBER (1, 2, 3, etc.) or the EXACT TEXT of your choice.")
			return sb.String()
		}
		return text

	case model.QuestionTypeRating:
		min, max := q.ScaleBounds()
		return text + fmt.Sprintf(
			"\n\nPlease rate on a scale of %s to %s (where %s is the highest).\n\nReply with a NUMBER between %s and %s.",
			formatNum(min), formatNum(max), formatNum(max), formatNum(min), formatNum(max))

	case model.QuestionTypeYesNo:
		return text + "\n\nPlease answer with \"Yes\" or \"No\"."

	case model.QuestionTypeScale:
		min, max := q.ScaleBounds()
		text += fmt.Sprintf("\n\nPlease rate on a scale of %s to %s", formatNum(min), formatNum(max))
		if len(q.ScaleLabels) > 0 {
			var parts []string
			if label, ok := q.ScaleLabels[formatNum(min)]; ok {
				parts = append(parts, fmt.Sprintf("where %s = %s", formatNum(min), label))
			}
			if label, ok := q.ScaleLabels[formatNum(max)]; ok {
				parts = append(parts, fmt.Sprintf("%s = %s", formatNum(max), label))
			}
			if len(parts) > 0 {
				text += " (" + strings.Join(parts, " and ") + ")"
			}
		}
		return text + fmt.Sprintf("\n\nReply with a NUMBER between %s and %s.", formatNum(min), formatNum(max))

	case model.QuestionTypeNumeric:
		switch {
		case q.MinValue != nil && q.MaxValue != nil:
			return text + fmt.Sprintf("\n\nPlease enter a NUMBER between %s and %s.", formatNum(*q.MinValue), formatNum(*q.MaxValue))
		case q.MinValue != nil:
			return text + fmt.Sprintf("\n\nPlease enter a NUMBER (minimum: %s).", formatNum(*q.MinValue))
		case q.MaxValue != nil:
			return text + fmt.Sprintf("\n\nPlease enter a NUMBER (maximum: %s).", formatNum(*q.MaxValue))
		default:
			return text + "\n\nPlease enter a NUMBER."
		}

	default:
		if q.MaxLength > 0 {
			return text + fmt.Sprintf("\n\nPlease reply with your answer (maximum %d characters).", q.MaxLength)
		}
		return text + "\n\nReply with your answer."
	}
}

// AnswerCondition derives the branching key for follow-up logic from a
// structured answer.
func AnswerCondition(answer *model.StructuredAnswer) string {
	switch answer.Kind {
	case model.AnswerKindBool:
		if answer.BoolValue {
			return "yes"
		}
		return "no"
	case model.AnswerKindChoice:
		return strings.ToLower(answer.ChoiceText)
	case model.AnswerKindNumber:
		return formatNum(answer.NumberValue)
	default:
		return strings.ToLower(strings.TrimSpace(answer.SentimentText()))
	}
}

// ResolveFollowUp matches an answer condition against a question's follow-up
// logic. Numeric conditions may be "3"-style exact values or "1-2"-style
// inclusive ranges; other kinds match case-insensitively on the derived key.
// Range entries are checked in sorted key order so resolution is stable.
func ResolveFollowUp(q *model.SurveyQuestion, answer *model.StructuredAnswer) (string, bool) {
	if len(q.FollowUpLogic) == 0 {
		return "", false
	}

	condition := AnswerCondition(answer)
	if next, ok := q.FollowUpLogic[condition]; ok {
		return next, true
	}

	if answer.Kind != model.AnswerKindNumber {
		return "", false
	}

	keys := make([]string, 0, len(q.FollowUpLogic))
	for k := range q.FollowUpLogic {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		lo, hi, ok := parseRange(key)
		if !ok {
			continue
		}
		if answer.NumberValue >= lo && answer.NumberValue <= hi {
			return q.FollowUpLogic[key], true
		}
	}
	return "", false
}

func parseRange(key string) (float64, float64, bool) {
	parts := strings.SplitN(key, "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	lo, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, false
	}
	hi, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, false
	}
	return lo, hi, true
}

// formatNum renders a float without a trailing ".0" for whole values, so
// prompts read "1 to 10" rather than "1.0 to 10.0".
func formatNum(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
