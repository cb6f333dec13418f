package httpapi

// previewMaxBytes bounds the hex preview of binary bodies in detail views.
var previewMaxBytes = 256

// formatBinaryPreview returns a short hexdump-like preview for binary data.
func formatBinaryPreview(b []byte, max int) string {
	if max <= 0 || max > len(b) {
		max = len(b)
	}
	const hexdigits = "0123456789ABCDEF"
	out := make([]byte, 0, max*3)
	for i := 0; i < max; i++ {
		v := b[i]
		out = append(out, hexdigits[v>>4], hexdigits[v&0x0F])
		if i+1 < max {
			out = append(out, ' ')
		}
	}
	if max < len(b) {
		out = append(out, " ..."...)
	}
	return string(out)
}
