package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-room-allocator/internal/dto"
	appErrors "github.com/noah-isme/exam-room-allocator/pkg/errors"
)

type notifierStub struct {
	notices []Notice
	err     error
}

func (n *notifierStub) Notify(_ context.Context, notice Notice) error {
	n.notices = append(n.notices, notice)
	return n.err
}

func TestNoticeServiceSend(t *testing.T) {
	notifier := &notifierStub{}
	svc := NewNoticeService(notifier, nil, nil)

	resp, err := svc.Send(context.Background(), dto.SendNoticeRequest{Department: " CS ", FilePath: "runs/r1/allocation_CS_2_d_t.csv"}, "u-1")
	require.NoError(t, err)
	assert.Equal(t, &dto.SendNoticeResponse{Success: true, Msg: "Email sent to CS"}, resp)
	require.Len(t, notifier.notices, 1)
	assert.Equal(t, "allocation_CS_2_d_t.csv", notifier.notices[0].FileName)
	assert.Equal(t, "u-1", notifier.notices[0].SentBy)
}

func TestNoticeServiceRequiresFields(t *testing.T) {
	svc := NewNoticeService(nil, nil, nil)
	_, err := svc.Send(context.Background(), dto.SendNoticeRequest{Department: "CS", FilePath: "  "}, "")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Equal(t, "Department and filePath required", appErr.Message)
}

func TestNoticeServiceNotifierFailure(t *testing.T) {
	svc := NewNoticeService(&notifierStub{err: errors.New("smtp down")}, nil, nil)
	_, err := svc.Send(context.Background(), dto.SendNoticeRequest{Department: "CS", FilePath: "a.csv"}, "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnavailable.Code, appErrors.FromError(err).Code)
}
