// Package nlp short-circuits greetings, small talk and gibberish before
// the retrieval pipeline runs.
package nlp

import (
	"regexp"
	"strings"
	"unicode"
)

// MeaninglessReply is returned for inputs that carry no askable content.
const MeaninglessReply = "Câu hỏi của bạn chưa rõ ràng. Vui lòng đặt câu hỏi cụ thể về nội dung tài liệu để tôi có thể hỗ trợ bạn tốt hơn."

const (
	greetingReply  = "Xin chào! Tôi là chatbot trợ lý hành chính Việt Nam. Tôi có thể giúp bạn tìm hiểu thông tin từ các tài liệu hành chính. Bạn cần hỗ trợ gì?"
	howAreYouReply = "Cảm ơn bạn đã hỏi! Tôi là một chatbot nên không có cảm xúc, nhưng tôi luôn sẵn sàng giúp bạn. Bạn có câu hỏi gì về tài liệu hành chính không?"
	whoAmIReply    = "Tôi là chatbot trợ lý hành chính Việt Nam, được xây dựng bằng công nghệ RAG (Retrieval-Augmented Generation). Tôi có thể giúp bạn tìm kiếm và trả lời các câu hỏi về nội dung trong các tài liệu hành chính mà bạn đã upload. Bạn muốn hỏi gì về tài liệu?"
	whatIDoReply   = "Tôi là chatbot trợ lý hành chính Việt Nam. Nhiệm vụ của tôi là giúp bạn tìm kiếm và trả lời các câu hỏi về nội dung trong các tài liệu hành chính. Bạn có thể upload file PDF và đặt câu hỏi, tôi sẽ tìm thông tin liên quan và trả lời cho bạn."
	thanksReply    = "Không có gì! Rất vui được giúp bạn. Nếu bạn có thêm câu hỏi nào khác về tài liệu, đừng ngần ngại hỏi nhé!"
	goodbyeReply   = "Tạm biệt! Chúc bạn một ngày tốt lành. Nếu có câu hỏi gì, hãy quay lại nhé!"
)

var naturalResponses = map[string]string{
	"chào":     greetingReply,
	"hello":    greetingReply,
	"hi":       greetingReply,
	"chào bạn": greetingReply,

	"bạn khỏe không":      howAreYouReply,
	"bạn thế nào":         howAreYouReply,
	"hôm nay bạn thế nào": howAreYouReply,
	"bạn có khỏe không":   howAreYouReply,

	"bạn là ai":         whoAmIReply,
	"giới thiệu về bạn": whoAmIReply,
	"bạn làm gì":        whatIDoReply,

	"cảm ơn":    thanksReply,
	"thanks":    thanksReply,
	"thank you": thanksReply,

	"tạm biệt": goodbyeReply,
	"bye":      goodbyeReply,
	"goodbye":  goodbyeReply,
}

// Prefix patterns checked against the normalized input, in order. The
// first match decides the reply bucket.
var greetingPrefixes = []struct {
	re    *regexp.Regexp
	reply string
}{
	{regexp.MustCompile(`^(chào|hello|hi)(\s|$)`), greetingReply},
	{regexp.MustCompile(`^bạn\s+(là|khỏe|thế nào|có khỏe)`), whoAmIReply},
	{regexp.MustCompile(`^hôm\s+nay\s+bạn`), howAreYouReply},
	{regexp.MustCompile(`^giới\s+thiệu`), whoAmIReply},
	{regexp.MustCompile(`^bạn\s+làm\s+gì`), whatIDoReply},
	{regexp.MustCompile(`^(cảm\s+ơn|thanks|thank\s+you)`), thanksReply},
	{regexp.MustCompile(`^(tạm\s+biệt|bye|goodbye)`), goodbyeReply},
}

// keyboardWalks are runs a bored hand produces on a qwerty layout.
var keyboardWalks = []string{
	"qwerty", "qwert", "werty", "asdf", "asdfgh", "sdfg", "zxcv", "zxcvbn", "xcvb",
	"hjkl", "jkl", "uiop", "yuiop",
}

// Short function words that count as recognizable even below four letters.
var stopwords = map[string]bool{
	"là": true, "và": true, "của": true, "có": true, "gì": true, "ai": true,
	"cho": true, "về": true, "khi": true, "nào": true, "bao": true, "the": true,
	"how": true, "who": true, "what": true, "why": true,
}

// Normalize lowercases, trims and strips punctuation so table lookups and
// prefix matches see a canonical form.
func Normalize(text string) string {
	text = strings.ToLower(strings.TrimSpace(text))
	var b strings.Builder
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Respond classifies the input. It returns (reply, true) when the caller
// should answer immediately without touching retrieval.
func Respond(query string) (string, bool) {
	normalized := Normalize(query)

	if reply, ok := naturalResponses[normalized]; ok {
		return reply, true
	}
	for _, p := range greetingPrefixes {
		if p.re.MatchString(normalized) {
			return p.reply, true
		}
	}

	if isMeaningless(normalized) {
		return MeaninglessReply, true
	}
	return "", false
}

// isMeaningless flags inputs that cannot be a document question: too
// short, all digits, heavy repetition, keyboard walks, or no recognizable
// token at all.
func isMeaningless(normalized string) bool {
	if len([]rune(normalized)) < 3 {
		return true
	}

	letters := make([]rune, 0, len(normalized))
	for _, r := range normalized {
		if unicode.IsLetter(r) {
			letters = append(letters, r)
		}
	}
	if len(letters) == 0 {
		// digits and punctuation only
		return true
	}

	if hasRepeatedRun(letters, 3) {
		return true
	}

	if ratio := repetitionRatio(letters); (len(letters) >= 6 && ratio > 0.4) || (len(letters) >= 4 && ratio >= 0.5) {
		return true
	}

	if hasRepeatingPeriod(letters) {
		return true
	}

	flat := string(letters)
	for _, walk := range keyboardWalks {
		if strings.Contains(flat, walk) {
			return true
		}
	}

	if !hasRecognizableToken(normalized) && uniqueRatio(letters) < 0.5 {
		return true
	}
	return false
}

func hasRepeatedRun(letters []rune, n int) bool {
	run := 1
	for i := 1; i < len(letters); i++ {
		if letters[i] == letters[i-1] {
			run++
			if run >= n {
				return true
			}
		} else {
			run = 1
		}
	}
	return false
}

// repetitionRatio is the share of characters that repeat their
// predecessor-but-one, catching patterns like "fdfdfd".
func repetitionRatio(letters []rune) float64 {
	if len(letters) < 3 {
		return 0
	}
	repeats := 0
	for i := 2; i < len(letters); i++ {
		if letters[i] == letters[i-2] {
			repeats++
		}
	}
	return float64(repeats) / float64(len(letters)-2)
}

// hasRepeatingPeriod detects strings built from one short substring
// repeated back to back, like "abcabcabc".
func hasRepeatingPeriod(letters []rune) bool {
	n := len(letters)
	for period := 1; period <= 3; period++ {
		if n < period*3 {
			continue
		}
		repeating := true
		for i := period; i < n; i++ {
			if letters[i] != letters[i-period] {
				repeating = false
				break
			}
		}
		if repeating {
			return true
		}
	}
	return false
}

func hasRecognizableToken(normalized string) bool {
	for _, word := range strings.Fields(normalized) {
		if len([]rune(word)) >= 4 || stopwords[word] {
			return true
		}
	}
	return false
}

func uniqueRatio(letters []rune) float64 {
	seen := make(map[rune]bool, len(letters))
	for _, r := range letters {
		seen[r] = true
	}
	return float64(len(seen)) / float64(len(letters))
}
