// Package client talks to the MediBot backend: the status, chat and
// ingestion endpoints. The request plumbing is generated from
// gen/openapi.json; Backend is the typed surface the CLI uses.
package client

//go:generate go tool github.com/oapi-codegen/oapi-codegen/v2/cmd/oapi-codegen --package=client --generate=types,client,models -o generated-client.go ./gen/openapi.json

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strings"

	openapi_types "github.com/oapi-codegen/runtime/types"
)

const (
	// multipart field repeated once per uploaded file
	filesField = "files"

	maxErrorBody = 4 << 10
)

// File is one part of an ingestion request.
type File = openapi_types.File

// APIError is returned when the backend answers with a non-2xx status.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

type Backend struct {
	Server string
	api    ClientWithResponsesInterface
	log    *slog.Logger
}

// NewBackend returns a client for the backend rooted at server. The base
// URL is resolved once here and never again per call.
func NewBackend(server string, opts ...ClientOption) (*Backend, error) {
	u, err := url.Parse(server)
	if err != nil {
		return nil, fmt.Errorf("invalid server url %q: %w", server, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server url %q: scheme must be http or https", server)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid server url %q: missing host", server)
	}

	b := &Backend{
		Server: u.String(),
		log:    slog.With("service", "client"),
	}
	opts = append([]ClientOption{WithRequestEditorFn(b.prepare)}, opts...)
	api, err := NewClientWithResponses(b.Server, opts...)
	if err != nil {
		return nil, err
	}
	b.api = api
	return b, nil
}

func (b *Backend) prepare(ctx context.Context, req *http.Request) error {
	req.Header.Set("Accept", "application/json")
	b.log.Debug("request", "method", req.Method, "url", req.URL.String())
	return nil
}

func (b *Backend) Status(ctx context.Context) (*StatusResponse, error) {
	resp, err := b.api.GetStatusWithResponse(ctx)
	if err != nil {
		return nil, err
	}
	return decode(resp.HTTPResponse, resp.Body, resp.JSON200)
}

func (b *Backend) Chat(ctx context.Context, question string) (*ChatResponse, error) {
	resp, err := b.api.PostChatWithResponse(ctx, PostChatJSONRequestBody{Question: question})
	if err != nil {
		return nil, err
	}
	return decode(resp.HTTPResponse, resp.Body, resp.JSON200)
}

// Ingest submits every file in a single multipart request.
func (b *Backend) Ingest(ctx context.Context, files []File) (*IngestResponse, error) {
	contentType, body, err := multipartBody(PostIngestDataMultipartRequestBody{Files: files})
	if err != nil {
		return nil, err
	}
	resp, err := b.api.PostIngestDataWithBodyWithResponse(ctx, contentType, body)
	if err != nil {
		return nil, err
	}
	return decode(resp.HTTPResponse, resp.Body, resp.JSON200)
}

func multipartBody(req IngestRequest) (string, *bytes.Buffer, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range req.Files {
		name := partName(f.Filename())
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, filesField, name))
		h.Set("Content-Type", contentType(name))
		part, err := mw.CreatePart(h)
		if err != nil {
			return "", nil, fmt.Errorf("failed to create part for %s: %w", name, err)
		}
		content, err := f.Bytes()
		if err != nil {
			return "", nil, fmt.Errorf("failed to read %s: %w", f.Filename(), err)
		}
		if _, err := part.Write(content); err != nil {
			return "", nil, fmt.Errorf("failed to write part for %s: %w", name, err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", nil, fmt.Errorf("failed to close multipart body: %w", err)
	}
	return mw.FormDataContentType(), &buf, nil
}

// decode turns a parsed response into its 2xx payload. The generated
// parser only fills typed when the server labels the body as JSON, so an
// unlabeled body is decoded here.
func decode[T any](rsp *http.Response, body []byte, typed *T) (*T, error) {
	path := rsp.Request.URL.Path
	if rsp.StatusCode < 200 || rsp.StatusCode > 299 {
		body = bytes.TrimSpace(body)
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, &APIError{
			Method:     rsp.Request.Method,
			Path:       path,
			StatusCode: rsp.StatusCode,
			Body:       string(body),
		}
	}
	if typed != nil {
		return typed, nil
	}
	var out T
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return &out, nil
}

// partName is the base name with its extension lowercased, since the
// backend picks a document loader by a case-sensitive suffix.
func partName(name string) string {
	base := filepath.Base(name)
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext) + strings.ToLower(ext)
}

func contentType(name string) string {
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}
