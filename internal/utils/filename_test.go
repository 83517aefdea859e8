package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSecureFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "notes.txt", want: "notes.txt"},
		{in: "My cool movie.mov", want: "My_cool_movie.mov"},
		{in: "../../../etc/passwd", want: "etc_passwd"},
		{in: `C:\Users\me\report.pdf`, want: "C_Users_me_report.pdf"},
		{in: "résumé.pdf", want: "resume.pdf"},
		{in: "i contain cool \u00fcml\u00e4uts.txt", want: "i_contain_cool_umlauts.txt"},
		{in: "data (1).csv", want: "data_1.csv"},
		{in: ".hidden", want: "hidden"},
		{in: "__init__.py", want: "init__.py"},
		{in: "con.txt", want: "_con.txt"},
		{in: "日本語", want: ""},
		{in: "..", want: ""},
		{in: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SecureFilename(tt.in))
		})
	}
}
