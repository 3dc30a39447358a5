package extractor

import (
	"regexp"
	"strings"
)

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

	dateLikePattern = regexp.MustCompile(`(?i)(Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec|\d{1,2}/\d{1,2}/\d{2,4}|\d{1,2}:\d{2}\s*(AM|PM)|Yesterday|Today|Mon|Tue|Wed|Thu|Fri|Sat|Sun)`)

	dateScanPattern = regexp.MustCompile(`(Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)\s+\d{1,2},?\s+\d{4}|(Mon|Tue|Wed|Thu|Fri|Sat|Sun),?\s+(Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)\s+\d{1,2},?\s+\d{1,2}:\d{2}\s*(AM|PM)`)

	sizePattern = regexp.MustCompile(`(?i)\d+.*[KMG]?B`)

	fileNamePattern = regexp.MustCompile(`(?i)([a-zA-Z0-9_\-.\s]+\.(pdf|doc|docx|xls|xlsx|ppt|pptx|txt|jpg|jpeg|png|gif|zip|rar|mp4|mp3|avi|mov))\s`)
)

// DefaultNoiseDomains are the provider's own domains, never a real sender
var DefaultNoiseDomains = []string{"mail.google.com", "google.com", "gmail.com"}

const maxScannedAddressLen = 50

func isNoReply(addr string) bool {
	lower := strings.ToLower(addr)
	return strings.Contains(lower, "noreply") || strings.Contains(lower, "no-reply")
}

// isSenderAddress accepts values that look like a person's address
func isSenderAddress(v string) bool {
	return strings.Contains(v, "@") && !isNoReply(v)
}

func isDateLike(v string) bool {
	return dateLikePattern.MatchString(v)
}

func isSizeLike(v string) bool {
	return sizePattern.MatchString(v)
}

// noiseFilter builds the predicate used for addresses found by scanning
// the whole page text
func noiseFilter(domains []string) func(string) bool {
	return func(addr string) bool {
		if isNoReply(addr) || len(addr) >= maxScannedAddressLen {
			return false
		}
		lower := strings.ToLower(addr)
		for _, d := range domains {
			if strings.Contains(lower, strings.ToLower(d)) {
				return false
			}
		}
		return true
	}
}
