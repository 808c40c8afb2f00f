package utils

import (
	"strings"
	"unicode"

	"github.com/samber/lo"
)

// commonInitialisms 整体视为一个单词的缩略词
var commonInitialisms = []string{
	"API", "ASCII", "CPU", "CSS", "DNS", "EOF", "GUID", "HTML", "HTTP", "HTTPS",
	"ID", "IP", "JSON", "LHS", "QPS", "RAM", "RHS", "RPC", "SLA", "SMTP",
	"SSH", "TLS", "TTL", "UID", "UI", "UUID", "URI", "URL", "UTF8", "VM",
	"XML", "XSRF", "XSS",
}

// HTTP -> Http，UserIDs 才能切成 User Ids
var initialismReplacer = strings.NewReplacer(lo.FlatMap(commonInitialisms, func(s string, _ int) []string {
	return []string{s, s[:1] + strings.ToLower(s[1:])}
})...)

// SplitWords 按大小写和数字边界把标识符切成单词
//
//	HTTPServerForURLID -> Http Server For Url Id
//	SHA256HASH         -> SHA256 HASH
func SplitWords(name string) []string {
	runes := []rune(initialismReplacer.Replace(name))

	var words []string
	start := -1
	cut := func(end int) {
		if start >= 0 && end > start {
			words = append(words, string(runes[start:end]))
		}
		start = -1
	}

	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			cut(i)
			continue
		}
		if start < 0 {
			start = i
			continue
		}
		if !unicode.IsUpper(r) {
			continue
		}
		prev := runes[i-1]
		switch {
		case unicode.IsLower(prev), unicode.IsDigit(prev):
			// userName, SHA256Hash
			cut(i)
			start = i
		case i+1 < len(runes) && unicode.IsLower(runes[i+1]):
			// PFAnd 中的 A 开始新单词
			cut(i)
			start = i
		}
	}
	cut(len(runes))
	return words
}

// ToSnakeCase 驼峰命名转换为蛇形命名
func ToSnakeCase(name string) string {
	return strings.ToLower(strings.Join(SplitWords(name), "_"))
}
