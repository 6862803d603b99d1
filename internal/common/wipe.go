package common

// WipeByteArray overwrites b with zeros. Use it on passwords once they have
// been sent. A nil slice is ignored.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
