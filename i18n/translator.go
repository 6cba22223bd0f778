// Package i18n holds the messages rule issues are reported with.
package i18n

import (
	"strings"
	"sync"
)

// Translator retrieves localized messages for Issue codes.
// data provides parameters referenced from the message as {name} (for
// example "min" or "max").
type Translator interface {
	Message(code string, data map[string]string) string
}

var catalog = map[string]map[string]string{
	"en": {
		"invalid_type":           "invalid value",
		"required":               "Required",
		"too_short":              "must be at least {min} characters",
		"too_long":               "must be at most {max} characters",
		"too_small":              "must be at least {min}",
		"too_big":                "must be at most {max}",
		"pattern":                "invalid format",
		"invalid_enum":           "must be one of {allowed}",
		"invalid_format":         "invalid format",
		"too_few_items":          "at least {min} item(s) required",
		"too_many_items":         "at most {max} item(s) allowed",
		"mismatch":               "must match {other}",
		"uniqueness":             "duplicate value",
		"business_rule":          "not allowed",
		"conflict":               "conflicts with another value",
		"dependency_unavailable": "could not be checked right now",
	},
	"ja": {
		"invalid_type":           "値が不正です",
		"required":               "必須項目です",
		"too_short":              "{min}文字以上で入力してください",
		"too_long":               "{max}文字以内で入力してください",
		"too_small":              "{min}以上で入力してください",
		"too_big":                "{max}以下で入力してください",
		"pattern":                "形式が正しくありません",
		"invalid_enum":           "{allowed} のいずれかを指定してください",
		"invalid_format":         "形式が正しくありません",
		"too_few_items":          "{min}件以上必要です",
		"too_many_items":         "{max}件以内にしてください",
		"mismatch":               "{other} と一致しません",
		"uniqueness":             "値が重複しています",
		"business_rule":          "許可されていません",
		"conflict":               "他の値と競合しています",
		"dependency_unavailable": "依存先サービスが利用できません",
	},
}

// dictTranslator is the built-in dictionary-based Translator.
type dictTranslator struct{ lang string }

func (t dictTranslator) Message(code string, data map[string]string) string {
	msg, ok := catalog[t.lang][code]
	if !ok {
		return code
	}
	return Interpolate(msg, data)
}

// Interpolate replaces {name} placeholders in msg with data[name]. Unknown
// placeholders are left as they are.
func Interpolate(msg string, data map[string]string) string {
	if len(data) == 0 || !strings.Contains(msg, "{") {
		return msg
	}
	pairs := make([]string, 0, len(data)*2)
	for k, v := range data {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(msg)
}

var (
	mu                           = sync.RWMutex{}
	currentTranslator Translator = dictTranslator{lang: "en"}
)

// SetLanguage switches the built-in Translator language ("en"/"ja").
func SetLanguage(lang string) {
	if lang != "ja" {
		lang = "en"
	}
	SetTranslator(dictTranslator{lang: lang})
}

// SetTranslator replaces the Translator implementation (not limited to the
// dictionary version).
func SetTranslator(tr Translator) {
	if tr == nil {
		tr = dictTranslator{lang: "en"}
	}
	mu.Lock()
	currentTranslator = tr
	mu.Unlock()
}

// T fetches a message for the given code using the current Translator.
func T(code string, data map[string]string) string {
	mu.RLock()
	tr := currentTranslator
	mu.RUnlock()
	return tr.Message(code, data)
}
