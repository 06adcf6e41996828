package testutil

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"testing"
)

// MultipartBody builds a multipart/form-data body with one file part and
// returns it with its content type.
func MultipartBody(tb testing.TB, field, filename string, content []byte) (*bytes.Buffer, string) {
	tb.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile(field, filename)
	if err != nil {
		tb.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		tb.Fatalf("write form file: %v", err)
	}
	if err := w.Close(); err != nil {
		tb.Fatalf("close multipart writer: %v", err)
	}
	return &body, w.FormDataContentType()
}

// MultipartRequest builds a POST request uploading content as field.
func MultipartRequest(tb testing.TB, url, field, filename string, content []byte) *http.Request {
	tb.Helper()
	body, contentType := MultipartBody(tb, field, filename, content)
	req, err := http.NewRequest(http.MethodPost, url, body)
	if err != nil {
		tb.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", contentType)
	return req
}

// FileHeader parses a one-file multipart body and returns the file's header.
func FileHeader(tb testing.TB, field, filename string, content []byte) *multipart.FileHeader {
	tb.Helper()
	req := MultipartRequest(tb, "/", field, filename, content)
	if err := req.ParseMultipartForm(32 << 20); err != nil {
		tb.Fatalf("parse multipart form: %v", err)
	}
	files := req.MultipartForm.File[field]
	if len(files) != 1 {
		tb.Fatalf("expected one file for %q, got %d", field, len(files))
	}
	return files[0]
}
