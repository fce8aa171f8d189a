package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/exam-room-allocator/pkg/errors"
)

const defaultMaxUpload = 10 << 20

// readUpload returns the content of a multipart file field, or nil when the field is absent.
func readUpload(c *gin.Context, field string, limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = defaultMaxUpload
	}
	header, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid multipart payload")
	}
	if header.Size > limit {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s exceeds the %d byte upload limit", field, limit))
	}
	file, err := header.Open()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unreadable upload")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unreadable upload")
	}
	if int64(len(data)) > limit {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s exceeds the %d byte upload limit", field, limit))
	}
	return data, nil
}

// formList collects a repeated or comma separated form field.
func formList(c *gin.Context, field string) []string {
	var out []string
	for _, raw := range c.PostFormArray(field) {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
