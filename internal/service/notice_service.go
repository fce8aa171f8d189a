package service

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/exam-room-allocator/internal/dto"
	appErrors "github.com/noah-isme/exam-room-allocator/pkg/errors"
)

// Notice is an allocation file addressed to a department.
type Notice struct {
	Department string
	FilePath   string
	FileName   string
	SentBy     string
}

// Notifier delivers notices, e.g. by mail.
type Notifier interface {
	Notify(ctx context.Context, notice Notice) error
}

// LogNotifier records notices in the service log instead of delivering them.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier constructs a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(_ context.Context, notice Notice) error {
	n.logger.Info("allocation notice",
		zap.String("department", notice.Department),
		zap.String("file", notice.FileName),
		zap.String("path", notice.FilePath),
		zap.String("sent_by", notice.SentBy),
	)
	return nil
}

// NoticeService sends allocation files to departments.
type NoticeService struct {
	notifier  Notifier
	validator *validator.Validate
	logger    *zap.Logger
}

// NewNoticeService constructs the service. A nil notifier logs notices.
func NewNoticeService(notifier Notifier, validate *validator.Validate, logger *zap.Logger) *NoticeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if notifier == nil {
		notifier = NewLogNotifier(logger)
	}
	return &NoticeService{notifier: notifier, validator: validate, logger: logger}
}

// Send hands the notice to the notifier.
func (s *NoticeService) Send(ctx context.Context, req dto.SendNoticeRequest, sentBy string) (*dto.SendNoticeResponse, error) {
	req.Department = strings.TrimSpace(req.Department)
	req.FilePath = strings.TrimSpace(req.FilePath)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "Department and filePath required")
	}
	notice := Notice{
		Department: req.Department,
		FilePath:   req.FilePath,
		FileName:   path.Base(req.FilePath),
		SentBy:     sentBy,
	}
	if err := s.notifier.Notify(ctx, notice); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to send notice")
	}
	return &dto.SendNoticeResponse{Success: true, Msg: fmt.Sprintf("Email sent to %s", req.Department)}, nil
}
