package importer

import (
	"regexp"
	"strings"
)

// 常見的 Unicode 分數字元
var vulgarFractions = map[rune]string{
	'½': "1/2",
	'⅓': "1/3",
	'⅔': "2/3",
	'¼': "1/4",
	'¾': "3/4",
	'⅕': "1/5",
	'⅖': "2/5",
	'⅗': "3/5",
	'⅘': "4/5",
	'⅙': "1/6",
	'⅚': "5/6",
	'⅐': "1/7",
	'⅛': "1/8",
	'⅜': "3/8",
	'⅝': "5/8",
	'⅞': "7/8",
	'⅑': "1/9",
	'⅒': "1/10",
}

var (
	emojiPattern = regexp.MustCompile(`[\x{1F000}-\x{1FAFF}\x{2600}-\x{27BF}\x{2B00}-\x{2BFF}\x{FE0F}\x{200D}\x{1F1E6}-\x{1F1FF}]`)
	urlPattern   = regexp.MustCompile(`(?i)\b(?:https?://|www\.)\S+`)

	// 連續的 "#a#b"、"@chef@home" 一次整段移除
	tagPattern = regexp.MustCompile(`(^|[^\p{L}\p{N}_/])(?:[#@]\p{L}[\p{L}\p{N}_]*)+`)

	// 整數後緊接分數字元，例如 "1½"
	mixedFractionPattern = regexp.MustCompile(`(\d)([½⅓⅔¼¾⅕⅖⅗⅘⅙⅚⅐⅛⅜⅝⅞⅑⅒])`)
	fractionSpacing      = regexp.MustCompile(`(\d)[ \t]*[/⁄][ \t]*(\d)`)
	horizontalSpace      = regexp.MustCompile(`[ \t\x{00A0}\x{2009}\x{202F}]+`)
	blankLines           = regexp.MustCompile(`\n{3,}`)

	// 只黏合單獨成行的數量，例如 "2\ncups milk"、"1 1/2\ntsp salt"
	quantityUnitSplit = regexp.MustCompile(`(?im)^((?:\d+[ \t]+)?\d(?:[\d/.]*\d)?)[ \t]*\n[ \t]*(` + unitAlternation() + `)\b`)
)

// Normalize 清理證據文字：分數、雜訊、數量與單位黏合、空白。可重複套用。
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	s := strings.ReplaceAll(text, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	s = stripNoise(s)
	s = horizontalSpace.ReplaceAllString(s, " ")
	s = NormalizeFractions(s)

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	s = strings.Join(lines, "\n")
	s = quantityUnitSplit.ReplaceAllString(s, "$1 $2")
	s = blankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// NormalizeFractions 將 Unicode 分數轉為 ASCII "a/b"，並收合 "a / b" 的空白
func NormalizeFractions(s string) string {
	s = mixedFractionPattern.ReplaceAllString(s, "$1 $2")

	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		if ascii, ok := vulgarFractions[r]; ok {
			sb.WriteString(ascii)
			continue
		}
		sb.WriteRune(r)
	}
	s = sb.String()

	// 重疊的 "1/2/3" 需要跑兩次
	for i := 0; i < 2; i++ {
		s = fractionSpacing.ReplaceAllString(s, "$1/$2")
	}
	return s
}

func stripNoise(s string) string {
	s = emojiPattern.ReplaceAllString(s, "")
	s = urlPattern.ReplaceAllString(s, "")
	s = tagPattern.ReplaceAllString(s, "$1")
	return s
}

var (
	hashtagRunPattern = regexp.MustCompile(`(?:^|[^\p{L}\p{N}_/&])((?:#\p{L}[\p{L}\p{N}_]*)+)`)
	hashtagPattern    = regexp.MustCompile(`#(\p{L}[\p{L}\p{N}_]*)`)
)

const maxHashtagTags = 10

// ExtractHashtags 在 normalize 移除之前收集 caption 中的 #hashtag
func ExtractHashtags(text string) []string {
	tags := []string{}
	seen := make(map[string]struct{})
	for _, run := range hashtagRunPattern.FindAllStringSubmatch(text, -1) {
		for _, m := range hashtagPattern.FindAllStringSubmatch(run[1], -1) {
			tag := strings.ToLower(m[1])
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			tags = append(tags, tag)
			if len(tags) == maxHashtagTags {
				return tags
			}
		}
	}
	return tags
}
