package utils

const maskVisible = 4

// MaskSecret keeps the first few characters of a secret for log correlation.
func MaskSecret(s string) string {
	r := []rune(s)
	if len(r) <= maskVisible*2 {
		return "*****"
	}
	return string(r[:maskVisible]) + "*****"
}
