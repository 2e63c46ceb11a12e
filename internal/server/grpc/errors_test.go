package grpc

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/dmitrijs2005/notesync/internal/common"
	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestToStatus(t *testing.T) {
	tests := []struct {
		err  error
		want codes.Code
	}{
		{fmt.Errorf("%w: empty", common.ErrValidation), codes.InvalidArgument},
		{common.ErrorNotFound, codes.NotFound},
		{common.ErrorAlreadyExists, codes.AlreadyExists},
		{common.ErrTokenExpired, codes.Unauthenticated},
		{common.ErrInvalidToken, codes.Unauthenticated},
		{fmt.Errorf("%w: x", common.ErrorUnauthorized), codes.Unauthenticated},
		{common.ErrAckRegression, codes.FailedPrecondition},
		{common.ErrSessionClosed, codes.Aborted},
		{fmt.Errorf("%w: disk", common.ErrStorage), codes.Unavailable},
		{context.Canceled, codes.Canceled},
		{errors.New("boom"), codes.Internal},
		{status.Error(codes.ResourceExhausted, "busy"), codes.ResourceExhausted},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, status.Code(toStatus(tt.err)), tt.err.Error())
	}
	assert.NoError(t, toStatus(nil))
}

func TestToStatus_HidesInternalDetail(t *testing.T) {
	err := toStatus(errors.New("password=hunter2"))
	assert.NotContains(t, err.Error(), "hunter2")
}
