// Package numeral decodes footnote marker text into ordinals and renders
// ordinals back into marker glyphs.
//
// Supported marker forms:
//
//	(3)  [12]  〔五〕  【一〇】   bracketed ASCII digits or CJK digit runs
//	①  ㉑  Ⓐ  ⓐ                circled glyphs, ordinals 1..100
//	㊀ … ㊉                      circled ideographs, ordinals 1..10
package numeral

import (
	"regexp"
	"strconv"
	"strings"
)

// glyphRange is a contiguous run of code points in the circled glyph table.
type glyphRange struct {
	first, last rune
}

// circledRanges lists the 100-glyph sequence in ordinal order.
var circledRanges = []glyphRange{
	{'①', '⑳'}, // ① .. ⑳
	{'㉑', '㉟'}, // ㉑ .. ㉟
	{'㊱', '㊿'}, // ㊱ .. ㊿
	{'Ⓐ', 'Ⓩ'}, // Ⓐ .. Ⓩ
	{'ⓐ', 'ⓧ'}, // ⓐ .. ⓧ
}

// ideographRange is the alternate 10-glyph sequence ㊀ .. ㊉.
var ideographRange = glyphRange{'㊀', '㊉'}

var (
	// circled is the Glyph table, index i holds ordinal i+1.
	circled []rune
	// ordinals maps every known glyph to its ordinal. Read-only after init.
	ordinals map[rune]int
)

func init() {
	for _, r := range circledRanges {
		for c := r.first; c <= r.last; c++ {
			circled = append(circled, c)
		}
	}
	ordinals = make(map[rune]int, len(circled)+10)
	for i, c := range circled {
		ordinals[c] = i + 1
	}
	for c := ideographRange.first; c <= ideographRange.last; c++ {
		ordinals[c] = int(c-ideographRange.first) + 1
	}
}

// bracketed matches one bracket pair around digits or CJK digit characters.
// Exactly one of the capture groups is non-empty on a match.
var bracketed = regexp.MustCompile(
	`^(?:\((\d+|[一二三四五六七八九〇]+)\)` +
		`|\[(\d+|[一二三四五六七八九〇]+)\]` +
		`|〔(\d+|[一二三四五六七八九〇]+)〕` +
		`|【(\d+|[一二三四五六七八九〇]+)】)$`)

var cjkDigits = strings.NewReplacer(
	"〇", "0", "一", "1", "二", "2", "三", "3", "四", "4",
	"五", "5", "六", "6", "七", "7", "八", "8", "九", "9",
)

// Decode converts marker text into a positive ordinal. It returns 0 when the
// text is not a recognised marker.
//
// CJK numerals are transliterated digit by digit, so "一二" is 12 while "十二"
// is not decodable.
func Decode(text string) int {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}

	if m := bracketed.FindStringSubmatch(text); m != nil {
		for _, inner := range m[1:] {
			if inner == "" {
				continue
			}
			n, err := strconv.Atoi(cjkDigits.Replace(inner))
			if err != nil || n <= 0 {
				return 0
			}
			return n
		}
	}

	for _, r := range text {
		return ordinals[r]
	}
	return 0
}

// Glyph renders a 1-based ordinal as marker text. Ordinals outside the glyph
// table fall back to "[n]".
func Glyph(n int) string {
	if n >= 1 && n <= len(circled) {
		return string(circled[n-1])
	}
	return "[" + strconv.Itoa(n) + "]"
}
