package utils

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

var windowsDeviceNames = map[string]struct{}{
	"CON": {}, "PRN": {}, "AUX": {}, "NUL": {},
	"COM1": {}, "COM2": {}, "COM3": {}, "COM4": {},
	"LPT1": {}, "LPT2": {}, "LPT3": {},
}

// SecureFilename reduces a client supplied file name to a flat ASCII name
// that is safe to join onto a local directory. It may return "".
//
//	SecureFilename("../../etc/passwd")    // "etc_passwd"
//	SecureFilename("My cool movie.mov")   // "My_cool_movie.mov"
//	SecureFilename("résumé.pdf")          // "resume.pdf"
func SecureFilename(name string) string {
	name = norm.NFKD.String(name)

	var b strings.Builder
	for _, r := range name {
		switch {
		case r == '/' || r == '\\':
			b.WriteByte(' ')
		case r < 0x80:
			b.WriteRune(r)
		}
	}

	name = strings.Join(strings.Fields(b.String()), "_")
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '_' || r == '.' || r == '-':
			return r
		}
		return -1
	}, name)
	name = strings.Trim(name, "._")

	if name != "" {
		base, _, _ := strings.Cut(name, ".")
		if _, ok := windowsDeviceNames[strings.ToUpper(base)]; ok {
			name = "_" + name
		}
	}
	return name
}
