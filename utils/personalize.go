package utils

import "strings"

// Personalize substitutes {token} placeholders in text with subscriber
// fields. Tokens without a matching field are left as literal text so a
// typo in a template never breaks a dispatch.
func Personalize(text string, fields map[string]string) string {
	if len(fields) == 0 || !strings.ContainsRune(text, '{') {
		return text
	}
	pairs := make([]string, 0, len(fields)*2)
	for k, v := range fields {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}
