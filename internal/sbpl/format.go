// internal/sbpl/format.go
package sbpl

import "strconv"

// Digits formats v as a zero-padded decimal of exactly width characters.
// Callers validate the range first; a wider value is returned unpadded.
func Digits(v, width int) string {
	s := strconv.Itoa(v)
	for len(s) < width {
		s = "0" + s
	}
	return s
}

// Signed formats v as a sign followed by width zero-padded digits: +000, -042.
func Signed(v, width int) string {
	if v < 0 {
		return "-" + Digits(-v, width)
	}
	return "+" + Digits(v, width)
}

// Op builds one ESC-prefixed operation from an ASCII mnemonic and parameters.
func Op(parts ...string) []byte {
	n := 1
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	out = append(out, ESC)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
