package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/imroc/req/v3"

	"github.com/openmined/stageup/internal/version"
)

const (
	DefaultResumableBaseURL    = "https://www.googleapis.com"
	DefaultResumableUploadPath = "/upload/drive/v3/files"

	statusResumeIncomplete = 308
	maxErrorMessageLen     = 256
)

// ResumableConfig configures a client for the resumable upload protocol used by
// Google Drive and compatible services.
type ResumableConfig struct {
	BaseURL    string
	UploadPath string
	Token      string
	Timeout    time.Duration
}

// ResumableClient creates upload sessions over the resumable HTTP protocol:
// a POST opens a session URI, chunks are PUT with Content-Range and the server
// answers 308 with the persisted Range until the final chunk returns 200/201.
type ResumableClient struct {
	client     *req.Client
	uploadPath string
}

func NewResumableClient(cfg *ResumableConfig) *ResumableClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultResumableBaseURL
	}
	uploadPath := cfg.UploadPath
	if uploadPath == "" {
		uploadPath = DefaultResumableUploadPath
	}

	client := req.C().
		SetBaseURL(baseURL).
		SetUserAgent(version.UserAgent()).
		// 308 answers carry the persisted range, not a redirect
		SetRedirectPolicy(req.NoRedirectPolicy()).
		SetJsonMarshal(json.Marshal).
		SetJsonUnmarshal(json.Unmarshal)
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	if cfg.Token != "" {
		client.SetCommonBearerAuthToken(cfg.Token)
	}

	return &ResumableClient{
		client:     client,
		uploadPath: uploadPath,
	}
}

func (c *ResumableClient) Begin(ctx context.Context, meta Metadata, src io.ReaderAt, chunkSize int64) (Session, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if meta.Size < 0 {
		return nil, fmt.Errorf("invalid object size %d", meta.Size)
	}
	if meta.ContentType == "" {
		meta.ContentType = "application/octet-stream"
	}
	return &resumableSession{
		client:     c.client,
		uploadPath: c.uploadPath,
		meta:       meta,
		src:        src,
		chunkSize:  chunkSize,
	}, nil
}

type resumableSession struct {
	client     *req.Client
	uploadPath string
	meta       Metadata
	src        io.ReaderAt
	chunkSize  int64

	location string
	offset   int64
	resync   bool
	done     bool
	remoteID string
}

func (s *resumableSession) NextChunk(ctx context.Context) (ChunkResult, error) {
	if s.done {
		return s.result(), nil
	}

	if s.location == "" {
		if err := s.initiate(ctx); err != nil {
			return ChunkResult{}, err
		}
	}

	// after a failed chunk the server may have persisted part of it
	if s.resync {
		res, err := s.queryStatus(ctx)
		if err != nil {
			return ChunkResult{}, err
		}
		s.resync = false
		if res.Done {
			return res, nil
		}
	}

	if s.meta.Size == 0 {
		return s.queryStatus(ctx)
	}

	end := min(s.offset+s.chunkSize, s.meta.Size) - 1
	chunk := &byteRange{Start: s.offset, End: end}
	buf := make([]byte, chunk.Length())
	if _, err := s.src.ReadAt(buf, chunk.Start); err != nil && !errors.Is(err, io.EOF) {
		return ChunkResult{}, &SourceError{Offset: chunk.Start, Err: err}
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Range", contentRange(chunk, s.meta.Size)).
		SetHeader("Content-Type", s.meta.ContentType).
		SetBodyBytes(buf).
		Put(s.location)
	if err != nil {
		s.resync = true
		return ChunkResult{}, NewTransferError(0, "upload chunk", err)
	}

	return s.handleResponse(resp)
}

func (s *resumableSession) Abort(ctx context.Context) error {
	if s.location == "" || s.done {
		return nil
	}
	resp, err := s.client.R().SetContext(ctx).Delete(s.location)
	if err != nil {
		return NewTransferError(0, "abort session", err)
	}
	// servers answer 499 (client closed) or 404 for cancelled sessions
	slog.Debug("resumable session aborted", "name", s.meta.Name, "status", resp.StatusCode)
	return nil
}

func (s *resumableSession) initiate(ctx context.Context) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("uploadType", "resumable").
		SetQueryParam("fields", "id").
		SetHeader("X-Upload-Content-Type", s.meta.ContentType).
		SetHeader("X-Upload-Content-Length", strconv.FormatInt(s.meta.Size, 10)).
		SetBody(&s.meta).
		Post(s.uploadPath)
	if err != nil {
		return NewTransferError(0, "open resumable session", err)
	}
	if resp.IsErrorState() {
		return NewTransferError(resp.StatusCode, errorMessage(resp), nil)
	}

	location := resp.Header.Get("Location")
	if location == "" {
		return NewTransferError(resp.StatusCode, "resumable session response without location", nil)
	}

	s.location = location
	s.offset = 0
	slog.Debug("resumable session opened", "name", s.meta.Name, "size", s.meta.Size)
	return nil
}

func (s *resumableSession) queryStatus(ctx context.Context) (ChunkResult, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Range", contentRange(nil, s.meta.Size)).
		Put(s.location)
	if err != nil {
		return ChunkResult{}, NewTransferError(0, "query upload status", err)
	}
	return s.handleResponse(resp)
}

func (s *resumableSession) handleResponse(resp *req.Response) (ChunkResult, error) {
	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		var created struct {
			ID string `json:"id"`
		}
		if err := resp.Unmarshal(&created); err == nil {
			s.remoteID = created.ID
		}
		s.offset = s.meta.Size
		s.done = true
		slog.Debug("resumable session complete", "name", s.meta.Name, "id", s.remoteID)
		return s.result(), nil

	case statusResumeIncomplete:
		persisted, err := parsePersistedRange(resp.Header.Get("Range"))
		if err != nil {
			return ChunkResult{}, NewTransferError(resp.StatusCode, "resume incomplete", err)
		}
		if persisted == nil {
			s.offset = 0
		} else {
			s.offset = min(persisted.End+1, s.meta.Size)
		}
		return s.result(), nil

	default:
		code := resp.StatusCode
		if code == http.StatusTooManyRequests || code >= http.StatusInternalServerError {
			s.resync = true
		}
		return ChunkResult{}, NewTransferError(code, errorMessage(resp), nil)
	}
}

func (s *resumableSession) result() ChunkResult {
	return ChunkResult{
		BytesSent:  s.offset,
		TotalBytes: s.meta.Size,
		Done:       s.done,
	}
}

// errorMessage extracts a readable message from an error response body.
func errorMessage(resp *req.Response) string {
	var apiErr struct {
		Error struct {
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}
	if err := resp.Unmarshal(&apiErr); err == nil && apiErr.Error.Message != "" {
		return apiErr.Error.Message
	}

	body := strings.TrimSpace(resp.String())
	if body == "" {
		return http.StatusText(resp.StatusCode)
	}
	if len(body) > maxErrorMessageLen {
		body = body[:maxErrorMessageLen]
	}
	return body
}

// SourceError reports a failure reading the local source of a transfer.
type SourceError struct {
	Offset int64
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("read source at offset %d: %v", e.Offset, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

var _ Client = (*ResumableClient)(nil)
