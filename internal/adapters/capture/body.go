package capture

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"sync"
)

// readRequestBody returns up to max bytes of req's body and the request to send
// upstream. When GetBody is available the caller's request is left untouched;
// otherwise the peeked bytes are stitched back in front of the remaining stream
// on a shallow clone.
func readRequestBody(req *http.Request, max int) (out *http.Request, body []byte, truncated bool, err error) {
	if req.Body == nil || req.Body == http.NoBody {
		return req, nil, false, nil
	}
	if req.GetBody != nil {
		rc, gerr := req.GetBody()
		if gerr == nil {
			defer rc.Close()
			body, truncated, err = readLimited(rc, max)
			if truncated {
				body = body[:max]
			}
			return req, body, truncated, err
		}
	}
	body, truncated, err = readLimited(req.Body, max)
	clone := req.Clone(req.Context())
	clone.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(body), req.Body), req.Body}
	if truncated {
		body = body[:max]
	}
	return clone, body, truncated, err
}

// readLimited reads up to max+1 bytes so truncation can be detected. The
// returned slice may hold max+1 bytes; callers trim it after re-stitching.
func readLimited(r io.Reader, max int) ([]byte, bool, error) {
	if max <= 0 {
		b, err := io.ReadAll(r)
		return b, false, err
	}
	b, err := io.ReadAll(io.LimitReader(r, int64(max)+1))
	if len(b) > max {
		return b, true, err
	}
	return b, false, err
}

// bodyTap records what the caller reads from a response body. done runs once,
// on EOF, on a read error, or on Close, whichever comes first. Read and Close
// may run on different goroutines.
type bodyTap struct {
	rc     io.ReadCloser
	max    int
	length int64 // declared Content-Length, -1 if unknown

	mu        sync.Mutex
	buf       bytes.Buffer
	seen      int64
	truncated bool
	finished  bool
	done      func(body []byte, truncated bool, readErr error)
}

func newBodyTap(rc io.ReadCloser, max int, length int64, done func([]byte, bool, error)) *bodyTap {
	return &bodyTap{rc: rc, max: max, length: length, done: done}
}

func (b *bodyTap) Read(p []byte) (int, error) {
	n, err := b.rc.Read(p)
	if n > 0 {
		b.record(p[:n])
	}
	if err != nil {
		if errors.Is(err, io.EOF) {
			b.finish(nil, false)
		} else {
			b.finish(err, false)
		}
	}
	return n, err
}

func (b *bodyTap) Close() error {
	err := b.rc.Close()
	b.finish(nil, true)
	return err
}

func (b *bodyTap) record(p []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finished {
		return
	}
	b.seen += int64(len(p))
	if b.max <= 0 {
		b.buf.Write(p)
		return
	}
	room := b.max - b.buf.Len()
	if room <= 0 {
		b.truncated = true
		return
	}
	if len(p) > room {
		p = p[:room]
		b.truncated = true
	}
	b.buf.Write(p)
}

// finish snapshots the recorded body and hands it to done outside the lock.
// closed marks a Close that came before EOF: the body is partial unless the
// declared length was fully read.
func (b *bodyTap) finish(readErr error, closed bool) {
	b.mu.Lock()
	if b.finished {
		b.mu.Unlock()
		return
	}
	b.finished = true
	body := append([]byte(nil), b.buf.Bytes()...)
	truncated := b.truncated || (closed && (b.length < 0 || b.seen < b.length))
	b.mu.Unlock()

	b.done(body, truncated, readErr)
}
