package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/exam-room-allocator/internal/dto"
	appErrors "github.com/noah-isme/exam-room-allocator/pkg/errors"
	"github.com/noah-isme/exam-room-allocator/pkg/response"
)

type noticeSender interface {
	Send(ctx context.Context, req dto.SendNoticeRequest, sentBy string) (*dto.SendNoticeResponse, error)
}

// NoticeHandler sends allocation files to departments.
type NoticeHandler struct {
	notices noticeSender
}

// NewNoticeHandler constructs handler.
func NewNoticeHandler(notices noticeSender) *NoticeHandler {
	return &NoticeHandler{notices: notices}
}

// SendEmail godoc
// @Summary Send an allocation file to a department
// @Tags Notices
// @Accept json
// @Produce json
// @Param payload body dto.SendNoticeRequest true "Notice"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /send-email [post]
func (h *NoticeHandler) SendEmail(c *gin.Context) {
	var req dto.SendNoticeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "Department and filePath required"))
		return
	}
	result, err := h.notices.Send(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}
