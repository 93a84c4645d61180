package scoring

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/SAP-F-2025/learning-path-service/internal/models"
)

type AnswerKind int

const (
	AnswerNone AnswerKind = iota
	AnswerIndex
	AnswerLetter
	AnswerText
)

func (k AnswerKind) String() string {
	switch k {
	case AnswerIndex:
		return "index"
	case AnswerLetter:
		return "letter"
	case AnswerText:
		return "text"
	default:
		return "none"
	}
}

// AnswerEncoding is one of Index(int), Letter(rune) or Text(string).
// The zero value encodes no answer.
type AnswerEncoding struct {
	kind   AnswerKind
	index  int
	letter rune
	text   string
	raw    string // original text of a string-sourced answer
}

func IndexAnswer(i int) AnswerEncoding {
	return AnswerEncoding{kind: AnswerIndex, index: i}
}

func LetterAnswer(r rune) AnswerEncoding {
	return AnswerEncoding{kind: AnswerLetter, letter: r}
}

func TextAnswer(s string) AnswerEncoding {
	return AnswerEncoding{kind: AnswerText, text: s, raw: s}
}

func (a AnswerEncoding) Kind() AnswerKind { return a.kind }

const maxLetterOptions = 6 // A-F

// ParseAnswer decodes a stored raw answer. Numbers and numeric strings become
// indexes, a single letter A-F becomes a letter code, other strings are text.
// String answers keep their text so ToAnswerIndex can match it literally.
func ParseAnswer(raw json.RawMessage) AnswerEncoding {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return AnswerEncoding{}
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return AnswerEncoding{}
		}
		return IndexAnswer(int(n))
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return parseAnswerString(s)
	}
	return AnswerEncoding{}
}

func parseAnswerString(s string) AnswerEncoding {
	s = strings.TrimSpace(s)
	if s == "" {
		return AnswerEncoding{}
	}
	if utf8.RuneCountInString(s) == 1 {
		r, _ := utf8.DecodeRuneInString(s)
		if letterIndex(r) >= 0 {
			a := LetterAnswer(r)
			a.raw = s
			return a
		}
	}
	if i, err := strconv.Atoi(s); err == nil {
		a := IndexAnswer(i)
		a.raw = s
		return a
	}
	return TextAnswer(s)
}

func letterIndex(r rune) int {
	switch {
	case r >= 'A' && r < 'A'+maxLetterOptions:
		return int(r - 'A')
	case r >= 'a' && r < 'a'+maxLetterOptions:
		return int(r - 'a')
	}
	return -1
}

// ToAnswerIndex resolves an encoding against the option list, or returns -1.
// A string answer that equals an option's text (case-insensitive) resolves to
// that option before any index or letter reading of it is tried.
func ToAnswerIndex(a AnswerEncoding, options []string) int {
	if a.raw != "" {
		if i := matchOptionText(a.raw, options); i >= 0 {
			return i
		}
	}
	switch a.kind {
	case AnswerIndex:
		if a.index >= 0 && a.index < len(options) {
			return a.index
		}
	case AnswerLetter:
		if i := letterIndex(a.letter); i >= 0 && i < len(options) {
			return i
		}
	case AnswerText:
		return matchOptionText(a.text, options)
	}
	return -1
}

func matchOptionText(text string, options []string) int {
	want := strings.TrimSpace(text)
	for i, opt := range options {
		if strings.EqualFold(strings.TrimSpace(opt), want) {
			return i
		}
	}
	return -1
}

// IsCorrect compares the user's answer to the canonical one by option index.
// A question whose canonical answer does not resolve is never satisfiable.
func IsCorrect(q *models.Question, userAnswer json.RawMessage) bool {
	options := []string(q.Options)
	want := ToAnswerIndex(ParseAnswer(q.CorrectAnswerRaw()), options)
	if want < 0 {
		return false
	}
	return ToAnswerIndex(ParseAnswer(userAnswer), options) == want
}
