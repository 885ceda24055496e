package random

import (
	"crypto/rand"
)

// alphabet omits 0, O, 1 and I. Its 32 symbols divide 256, so a byte modulo is unbiased.
const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const referenceLength = 10

// Reference returns prefix followed by a short code that players can read out to support.
func Reference(prefix string) string {
	return prefix + Code(referenceLength)
}

func Code(length int) string {
	if length <= 0 {
		return ""
	}
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	for i, b := range buf {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(buf)
}
