package client

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"

	"unimarket/internal/domain/entity"
	apperrors "unimarket/pkg/errors"
	"unimarket/pkg/response"
)

const maxUploadSize = 10 << 20 // matches the backend's limit

// UploadAttachment sends the binary as multipart form data and returns the
// reference a message can carry. Phase one of attachment sending: no message
// exists until this succeeds.
func (c *Client) UploadAttachment(ctx context.Context, filename string, content io.Reader) (*entity.FileRef, error) {
	if filename == "" {
		return nil, apperrors.BadRequest("filename is required", nil)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, apperrors.Internal("failed to build upload request", err)
	}

	written, err := io.Copy(part, io.LimitReader(content, maxUploadSize+1))
	if err != nil {
		return nil, apperrors.Internal("failed to read attachment", err)
	}
	if written > maxUploadSize {
		return nil, apperrors.BadRequest("attachment exceeds the 10MB limit", nil)
	}
	if err := writer.Close(); err != nil {
		return nil, apperrors.Internal("failed to build upload request", err)
	}

	resp, err := c.roundTrip(ctx, http.MethodPost, "/v1/files", nil, writer.FormDataContentType(), buf.Bytes(), true)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var ref entity.FileRef
	if err := response.Decode(resp.StatusCode, resp.Body, &ref); err != nil {
		return nil, err
	}
	if err := c.checkInbound(&ref); err != nil {
		return nil, err
	}
	return &ref, nil
}
