package endpoint

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/gin-gonic/gin"
)

type requestSpec struct {
	method       string
	registerPath string
	requestPath  string
	handler      gin.HandlerFunc
	body         interface{}
	headers      map[string]string
	// middleware runs before handler, e.g. asUser.
	middleware []gin.HandlerFunc
}

// formFile is a multipart body with a single file field.
type formFile struct {
	field    string
	filename string
	content  []byte
}

func (f formFile) encode() (io.Reader, string) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	part, _ := w.CreateFormFile(f.field, f.filename)
	_, _ = part.Write(f.content)
	_ = w.Close()
	return buf, w.FormDataContentType()
}

func performRequest(r *gin.Engine, spec requestSpec) (*httptest.ResponseRecorder, map[string]interface{}, error) {
	var reader io.Reader
	contentType := ""
	switch v := spec.body.(type) {
	case nil:
		reader = strings.NewReader("")
	case string:
		reader = strings.NewReader(v)
		contentType = "application/json"
	case formFile:
		reader, contentType = v.encode()
	default:
		b, _ := json.Marshal(spec.body)
		reader = bytes.NewReader(b)
		contentType = "application/json"
	}

	req := httptest.NewRequest(spec.method, spec.requestPath, reader)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for key, value := range spec.headers {
		req.Header.Set(key, value)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var response map[string]interface{}
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
			return w, nil, err
		}
	}
	return w, response, nil
}

func doRequestWithHandler(r *gin.Engine, spec requestSpec) (*httptest.ResponseRecorder, map[string]interface{}, error) {
	handlers := append(append([]gin.HandlerFunc{}, spec.middleware...), spec.handler)
	switch spec.method {
	case http.MethodGet:
		r.GET(spec.registerPath, handlers...)
	case http.MethodPost:
		r.POST(spec.registerPath, handlers...)
	case http.MethodPatch:
		r.PATCH(spec.registerPath, handlers...)
	case http.MethodPut:
		r.PUT(spec.registerPath, handlers...)
	case http.MethodDelete:
		r.DELETE(spec.registerPath, handlers...)
	default:
		r.Handle(spec.method, spec.registerPath, handlers...)
	}
	return performRequest(r, spec)
}
