package services

import (
	"strconv"
	"strings"
)

// formatUSD renders an amount as "$1,234.56"
func formatUSD(amount float64) string {
	s := strconv.FormatFloat(amount, 'f', 2, 64)

	negative := strings.HasPrefix(s, "-")
	if negative {
		s = s[1:]
	}

	dot := strings.Index(s, ".")
	intPart, fracPart := s[:dot], s[dot:]

	var b strings.Builder
	for i := 0; i < len(intPart); i++ {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteByte(intPart[i])
	}

	out := "$" + b.String() + fracPart
	if negative {
		out = "-" + out
	}
	return out
}

// shortWallet returns the leading characters of a wallet address for
// human-readable notification text
func shortWallet(walletAddress string) string {
	if len(walletAddress) <= 8 {
		return walletAddress
	}
	return walletAddress[:8]
}

// formatFileSize renders a byte count as "12.3 KB"
func formatFileSize(size int64) string {
	return strconv.FormatFloat(float64(size)/1024, 'f', 1, 64) + " KB"
}
