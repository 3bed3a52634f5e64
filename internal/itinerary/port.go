package itinerary

import "strings"

var (
	portPrefixes = []string{"Arriving in ", "Departing from "}
	portSuffixes = []string{" hotels"}
)

// CleanPort strips the booking-widget boilerplate the site wraps around
// port names ("Arriving in Miami hotels" -> "Miami").
func CleanPort(text string) string {
	s := strings.TrimSpace(text)
	for _, p := range portPrefixes {
		if strings.HasPrefix(s, p) {
			s = strings.TrimPrefix(s, p)
			break
		}
	}
	for _, suf := range portSuffixes {
		s = strings.TrimSuffix(s, suf)
	}
	return strings.TrimRightFunc(s, isSpace)
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == ' '
}
