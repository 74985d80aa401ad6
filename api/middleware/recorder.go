package middleware

import (
	"bytes"
	"net/http"
)

// recorder tracks the status written downstream and, when capture is set,
// keeps a copy of the body.
type recorder struct {
	http.ResponseWriter
	status  int
	bytes   int
	capture bool
	body    bytes.Buffer
}

func (r *recorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *recorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	if r.capture {
		r.body.Write(b)
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

func (r *recorder) Status() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

func (r *recorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
