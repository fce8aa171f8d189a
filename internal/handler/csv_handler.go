package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/exam-room-allocator/internal/dto"
	appErrors "github.com/noah-isme/exam-room-allocator/pkg/errors"
	"github.com/noah-isme/exam-room-allocator/pkg/response"
)

type csvValidator interface {
	Validate(ctx context.Context, req dto.ValidateCSVRequest) (*dto.ValidateCSVResponse, error)
}

// CSVHandler checks uploads before an allocation is requested.
type CSVHandler struct {
	validator csvValidator
	maxUpload int64
}

// NewCSVHandler constructs handler.
func NewCSVHandler(validator csvValidator, maxUpload int64) *CSVHandler {
	return &CSVHandler{validator: validator, maxUpload: maxUpload}
}

// ValidateCSV godoc
// @Summary Validate CSV headers
// @Tags Allocation
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV file"
// @Param type formData string true "students, courses or rooms"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /validate-csv [post]
func (h *CSVHandler) ValidateCSV(c *gin.Context) {
	data, err := readUpload(c, "file", h.maxUpload)
	if err != nil {
		response.Error(c, err)
		return
	}
	if data == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "No file uploaded"))
		return
	}
	result, err := h.validator.Validate(c.Request.Context(), dto.ValidateCSVRequest{Type: c.PostForm("type"), Data: data})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}
