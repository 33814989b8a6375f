// Copyright 2021 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package moerr

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsConnectionRelatedError(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
		{
			name:     "ErrMemberLeft",
			err:      NewMemberLeft(ctx, "m1"),
			expected: true,
		},
		{
			name:     "ErrBackendClosed",
			err:      NewBackendClosed(ctx, "m2"),
			expected: true,
		},
		{
			name:     "non-connection error - ErrQueryStopped",
			err:      NewQueryStopped(ctx, "q1"),
			expected: false,
		},
		{
			name:     "non-connection error - standard error",
			err:      errors.New("some error"),
			expected: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsConnectionRelatedError(tt.err))
		})
	}
}

func TestStoppedIsNotFailure(t *testing.T) {
	ctx := context.Background()
	stopped := NewQueryStopped(ctx, "q1")
	require.True(t, IsStopped(stopped))
	require.Equal(t, "query q1 was stopped", stopped.Error())
	require.False(t, IsStopped(NewMemberLeft(ctx, "m1")))
	require.False(t, IsStopped(nil))
}

func TestErrorCodes(t *testing.T) {
	ctx := context.Background()
	err := NewUnsupportedAggregate(ctx, "AVG")
	require.Equal(t, ErrUnsupportedAggregate, err.ErrorCode())
	require.Equal(t, ER_NOT_SUPPORTED_YET, err.MySQLCode())
	require.Equal(t, "42000", err.SqlState())
	require.Equal(t, "unsupported aggregate call: AVG", err.Error())
	require.True(t, IsMoErrCode(err, ErrUnsupportedAggregate))
	require.False(t, IsMoErrCode(errors.New("x"), ErrUnsupportedAggregate))
	require.True(t, IsMoErrCode(nil, Ok))
}

func TestMarshalBinary(t *testing.T) {
	src := NewMemberLeft(context.Background(), "m3").WithDetail("origin m1")
	data, err := src.MarshalBinary()
	require.NoError(t, err)

	var dst Error
	require.NoError(t, dst.UnmarshalBinary(data))
	require.Equal(t, src.ErrorCode(), dst.ErrorCode())
	require.Equal(t, src.Error(), dst.Error())
	require.Equal(t, "member m3 left the cluster while the query was running: origin m1", dst.Display())

	require.Error(t, dst.UnmarshalBinary(data[:2]))
}

func TestConvertErrors(t *testing.T) {
	ctx := context.Background()
	require.Nil(t, ConvertGoError(ctx, nil))
	require.True(t, IsMoErrCode(ConvertGoError(ctx, io.EOF), ErrUnexpectedEOF))
	require.True(t, IsMoErrCode(ConvertGoError(ctx, errors.New("x")), ErrInternal))

	orig := NewDivByZero(ctx)
	require.Equal(t, orig, ConvertGoError(ctx, orig))
	require.Equal(t, orig, ConvertPanicError(ctx, orig))
	require.True(t, IsMoErrCode(ConvertPanicError(ctx, "boom"), ErrInternal))
	require.True(t, IsMoErrCode(DowncastError(errors.New("x")), ErrInternal))
}
