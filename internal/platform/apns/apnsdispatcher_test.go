package apns

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/sideshow/apns2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-apns-gateway/pkg/notification"
)

type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(ctx context.Context, n Compiler, devices ...string) (*SendResult, error) {
	args := m.Called(ctx, n, devices)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*SendResult), args.Error(1)
}

func TestDispatch_Internal(t *testing.T) {
	logger := newTestLogger()
	ctx := context.Background()
	content := notification.Content{Title: "Hello iOS", Sound: "default"}
	data := map[string]string{"msg_id": "123"}

	t.Run("Happy Path - Success", func(t *testing.T) {
		mockSender := new(MockSender)
		dispatcher := newDispatcher(mockSender, "com.test.app", logger)

		mockSender.On("Send", ctx, mock.MatchedBy(func(n Compiler) bool {
			h := n.Headers()
			_, hasID := h["apns-id"]
				return h["apns-topic"] == "com.test.app" && h["apns-push-type"] == "alert" && !hasID
		}), []string{"token-1"}).Return(&SendResult{Sent: []string{"token-1"}}, nil)

		receipt, invalid, err := dispatcher.Dispatch(ctx, []string{"token-1"}, content, data)

		require.NoError(t, err)
		assert.Empty(t, invalid)
		assert.Contains(t, receipt, "success:1")
		mockSender.AssertExpectations(t)
	})

	t.Run("Self-Healing - Dead Device Tokens", func(t *testing.T) {
		mockSender := new(MockSender)
		dispatcher := newDispatcher(mockSender, "com.test.app", logger)

		mockSender.On("Send", ctx, mock.Anything, mock.Anything).Return(&SendResult{
			Sent: []string{"good"},
			Failed: []Failure{
				{Device: "bad", StatusCode: http.StatusBadRequest, Response: &apns2.Response{Reason: apns2.ReasonBadDeviceToken}},
				{Device: "gone", StatusCode: http.StatusGone, Response: &apns2.Response{Reason: apns2.ReasonUnregistered}},
				{Device: "config", StatusCode: http.StatusBadRequest, Response: &apns2.Response{Reason: apns2.ReasonTopicDisallowed}},
			},
		}, nil)

		receipt, invalid, err := dispatcher.Dispatch(ctx, []string{"good", "bad", "gone", "config"}, content, data)

		require.NoError(t, err)
		assert.Equal(t, []string{"bad", "gone"}, invalid)
		assert.Equal(t, "success:1 invalid:2 total_fail:3", receipt)
	})

	t.Run("Transport Failure - Retryable", func(t *testing.T) {
		mockSender := new(MockSender)
		dispatcher := newDispatcher(mockSender, "com.test.app", logger)

		mockSender.On("Send", ctx, mock.Anything, mock.Anything).Return(&SendResult{
			Failed: []Failure{{Device: "token-1", Err: errors.New("connection refused")}},
		}, nil)

		_, invalid, err := dispatcher.Dispatch(ctx, []string{"token-1"}, content, data)

		assert.Error(t, err)
		assert.Empty(t, invalid)
	})

	t.Run("Partial Transport Failure - Not Retried", func(t *testing.T) {
		mockSender := new(MockSender)
		dispatcher := newDispatcher(mockSender, "com.test.app", logger)

		mockSender.On("Send", ctx, mock.Anything, mock.Anything).Return(&SendResult{
			Sent:   []string{"token-2"},
			Failed: []Failure{{Device: "token-1", Err: errors.New("stream reset")}},
		}, nil)

		receipt, _, err := dispatcher.Dispatch(ctx, []string{"token-1", "token-2"}, content, data)

		require.NoError(t, err)
		assert.Contains(t, receipt, "total_fail:1")
	})

	t.Run("Send Error - Propagated", func(t *testing.T) {
		mockSender := new(MockSender)
		dispatcher := newDispatcher(mockSender, "com.test.app", logger)

		mockSender.On("Send", ctx, mock.Anything, mock.Anything).Return(nil, errors.New("bad key"))

		_, _, err := dispatcher.Dispatch(ctx, []string{"token-1"}, content, data)
		assert.Error(t, err)
	})

	t.Run("No Tokens - Skipped", func(t *testing.T) {
		mockSender := new(MockSender)
		dispatcher := newDispatcher(mockSender, "com.test.app", logger)

		receipt, invalid, err := dispatcher.Dispatch(ctx, nil, content, data)

		require.NoError(t, err)
		assert.Nil(t, invalid)
		assert.Equal(t, "skipped: no tokens", receipt)
		mockSender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
	})
}
