package conversation

import (
	"strconv"
	"strings"
	"time"
)

// yesWords and noWords are the deterministic yes/no synonym tables. Matching
// against them never reaches a model.
var yesWords = map[string]bool{
	"yes": true, "y": true, "yeah": true, "yep": true, "yup": true,
	"sure": true, "ok": true, "okay": true, "confirm": true, "correct": true,
}

var noWords = map[string]bool{
	"no": true, "n": true, "nope": true, "nah": true,
	"cancel": true, "stop": true, "wrong": true,
}

// MatchYesNo reports whether the text is a recognized yes/no reply. The
// first return is the answer, the second whether anything matched.
func MatchYesNo(text string) (bool, bool) {
	w := strings.ToLower(strings.Trim(strings.TrimSpace(text), ".!"))
	if yesWords[w] {
		return true, true
	}
	if noWords[w] {
		return false, true
	}
	return false, false
}

var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"2 January 2006",
	"2 Jan 2006",
	"January 2 2006",
	"Jan 2 2006",
}

var timeLayouts = []string{
	"15:04",
	"15.04",
	"3:04pm",
	"3:04 pm",
	"3pm",
	"3 pm",
}

// ValidateSlot checks a raw text against the format validator for the named
// slot and returns the normalized value. Unknown slot names never match, so
// free-form slots always go through the extractor.
func ValidateSlot(slot, text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	switch slot {
	case "date":
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, trimmed); err == nil {
				return t.Format("2006-01-02"), true
			}
		}
	case "time":
		lower := strings.ToLower(trimmed)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, lower); err == nil {
				return t.Format("15:04"), true
			}
		}
	case "quantity":
		if n, err := strconv.Atoi(trimmed); err == nil && n >= 1 && n <= 999 {
			return strconv.Itoa(n), true
		}
	}
	return "", false
}
