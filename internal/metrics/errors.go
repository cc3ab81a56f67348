package metrics

import (
	"strings"
	"unicode"

	"github.com/torosent/gn/internal/transport"
)

var friendlyAliases = map[transport.ErrorKind]string{
	transport.KindConnectionRefused:  "Connection refused",
	transport.KindConnectionReset:    "Connection reset by peer",
	transport.KindBrokenPipe:         "Broken pipe",
	transport.KindTimeout:            "Timed out",
	transport.KindHostUnreachable:    "Host unreachable",
	transport.KindNetworkUnreachable: "Network unreachable",
	transport.KindAddressInUse:       "Address in use",
	transport.KindCancelled:          "Cancelled",
	transport.KindShortWrite:         "Short write",
	transport.KindOther:              "Other error",
}

// FriendlyErrorName returns a human-friendly label for an error kind.
func FriendlyErrorName(kind string) string {
	cleaned := strings.TrimSpace(kind)
	if cleaned == "" {
		return "Unknown error"
	}
	if alias, ok := friendlyAliases[transport.ErrorKind(cleaned)]; ok {
		return alias
	}
	return capitalize(strings.ReplaceAll(cleaned, "_", " "))
}

func capitalize(s string) string {
	if s == "" {
		return ""
	}
	lower := strings.ToLower(s)
	runes := []rune(lower)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
