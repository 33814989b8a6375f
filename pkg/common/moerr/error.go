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
	"encoding"
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/gogo/protobuf/proto"
)

const MySQLDefaultSqlState = "HY000"

const (
	// 0 - 99 is OK.  They do not contain info, and are special handled
	// using a static instance, no alloc.
	Ok    uint16 = 0
	OkMax uint16 = 99

	// Group 1: Internal errors
	ErrStart        uint16 = 20100
	ErrInternal     uint16 = 20101
	ErrNotSupported uint16 = 20105

	// Group 2: numeric and functions
	ErrDivByZero        uint16 = 20200
	ErrOutOfRange       uint16 = 20201
	ErrInvalidArg       uint16 = 20203
	ErrEvalTypeMismatch uint16 = 20210

	// Group 3: invalid input
	ErrBadConfig        uint16 = 20300
	ErrInvalidInput     uint16 = 20301
	ErrArgumentNotFound uint16 = 20320

	// Group 4: unexpected state and io errors
	ErrInvalidState  uint16 = 20400
	ErrUnexpectedEOF uint16 = 20407
	ErrNoSuchMap     uint16 = 20460

	// Group 5: rpc and exchange
	ErrMemberLeft      uint16 = 20500
	ErrBackendClosed   uint16 = 20502
	ErrMailboxNotFound uint16 = 20510

	// Group 6: query execution
	ErrQueryStopped         uint16 = 20600
	ErrUnsupportedAggregate uint16 = 20601
	ErrPlanDefect           uint16 = 20602
	ErrSQLNotEnabled        uint16 = 20603
	ErrFragmentStateCorrupt uint16 = 20604

	// ErrEnd, the max value of MOErrorCode
	ErrEnd uint16 = 65535
)

type moErrorMsgItem struct {
	mysqlCode        uint16
	sqlStates        []string
	errorMsgOrFormat string
}

var errorMsgRefer = map[uint16]moErrorMsgItem{
	// Group 1: Internal errors
	ErrStart:        {ER_UNKNOWN_ERROR, []string{MySQLDefaultSqlState}, "internal error: error code start"},
	ErrInternal:     {ER_UNKNOWN_ERROR, []string{MySQLDefaultSqlState}, "internal error: %s"},
	ErrNotSupported: {ER_NOT_SUPPORTED_YET, []string{MySQLDefaultSqlState}, "not supported: %s"},

	// Group 2: numeric
	ErrDivByZero:        {ER_DIVISION_BY_ZERO, []string{"22012"}, "division by zero"},
	ErrOutOfRange:       {ER_DATA_OUT_OF_RANGE, []string{"22003"}, "data out of range: data type %s, %s"},
	ErrInvalidArg:       {ER_WRONG_ARGUMENTS, []string{MySQLDefaultSqlState}, "invalid argument %s, bad value %s"},
	ErrEvalTypeMismatch: {ER_TRUNCATED_WRONG_VALUE, []string{"22018"}, "type mismatch: %s"},

	// Group 3: invalid input
	ErrBadConfig:        {ER_UNKNOWN_ERROR, []string{MySQLDefaultSqlState}, "invalid configuration: %s"},
	ErrInvalidInput:     {ER_UNKNOWN_ERROR, []string{MySQLDefaultSqlState}, "invalid input: %s"},
	ErrArgumentNotFound: {ER_WRONG_VALUE_COUNT, []string{"07001"}, "argument not found: %d"},

	// Group 4: unexpected state and io errors
	ErrInvalidState:  {ER_UNKNOWN_ERROR, []string{MySQLDefaultSqlState}, "invalid state %s"},
	ErrUnexpectedEOF: {ER_UNKNOWN_ERROR, []string{MySQLDefaultSqlState}, "unexpected end of file %s"},
	ErrNoSuchMap:     {ER_NO_SUCH_TABLE, []string{"42S02"}, "map %s does not exist"},

	// Group 5: rpc and exchange
	ErrMemberLeft:      {ER_NET_ERROR_ON_WRITE, []string{"08S01"}, "member %s left the cluster while the query was running"},
	ErrBackendClosed:   {ER_NET_ERROR_ON_WRITE, []string{"08S01"}, "the connection to %s has been closed"},
	ErrMailboxNotFound: {ER_UNKNOWN_ERROR, []string{MySQLDefaultSqlState}, "mailbox not found: %s"},

	// Group 6: query execution
	ErrQueryStopped:         {ER_QUERY_INTERRUPTED, []string{"70100"}, "query %s was stopped"},
	ErrUnsupportedAggregate: {ER_NOT_SUPPORTED_YET, []string{"42000"}, "unsupported aggregate call: %s"},
	ErrPlanDefect:           {ER_UNKNOWN_ERROR, []string{MySQLDefaultSqlState}, "plan defect: %s"},
	ErrSQLNotEnabled:        {ER_OPTION_PREVENTS_STATEMENT, []string{MySQLDefaultSqlState}, "SQL is not enabled on this member: %s"},
	ErrFragmentStateCorrupt: {ER_UNKNOWN_ERROR, []string{MySQLDefaultSqlState}, "receiver of edge %d stripe %d: %s"},

	// Group End: max value of MOErrorCode
	ErrEnd: {ER_UNKNOWN_ERROR, []string{MySQLDefaultSqlState}, "internal error: end of errcode code"},
}

func newError(ctx context.Context, code uint16, args ...any) *Error {
	var err *Error
	item, has := errorMsgRefer[code]
	if !has {
		panic(NewInternalError(ctx, "not exist MOErrorCode: %d", code))
	}
	if len(args) == 0 {
		err = &Error{
			code:      code,
			mysqlCode: item.mysqlCode,
			message:   item.errorMsgOrFormat,
			sqlState:  item.sqlStates[0],
		}
	} else {
		err = &Error{
			code:      code,
			mysqlCode: item.mysqlCode,
			message:   fmt.Sprintf(item.errorMsgOrFormat, args...),
			sqlState:  item.sqlStates[0],
		}
	}
	return err
}

type Error struct {
	code      uint16
	mysqlCode uint16
	message   string
	sqlState  string
	detail    string
}

func (e *Error) Error() string {
	return e.message
}

func (e *Error) Detail() string {
	return e.detail
}

// WithDetail returns a copy of e carrying extra detail, typically the
// member the error originated on.
func (e *Error) WithDetail(detail string) *Error {
	ne := *e
	ne.detail = detail
	return &ne
}

func (e *Error) Display() string {
	if len(e.detail) == 0 {
		return e.message
	}
	return fmt.Sprintf("%s: %s", e.message, e.detail)
}

func (e *Error) ErrorCode() uint16 {
	return e.code
}

func (e *Error) MySQLCode() uint16 {
	return e.mysqlCode
}

func (e *Error) SqlState() string {
	return e.sqlState
}

func (e *Error) Succeeded() bool {
	return e.code < OkMax
}

var _ encoding.BinaryMarshaler = new(Error)

// MarshalBinary encodes the error so it can travel inside a cancel message.
func (e *Error) MarshalBinary() ([]byte, error) {
	buf := proto.NewBuffer(make([]byte, 0, 16+len(e.message)+len(e.detail)))
	_ = buf.EncodeVarint(uint64(e.code))
	_ = buf.EncodeVarint(uint64(e.mysqlCode))
	_ = buf.EncodeStringBytes(e.message)
	_ = buf.EncodeStringBytes(e.sqlState)
	_ = buf.EncodeStringBytes(e.detail)
	return buf.Bytes(), nil
}

var _ encoding.BinaryUnmarshaler = new(Error)

func (e *Error) UnmarshalBinary(data []byte) error {
	buf := proto.NewBuffer(data)
	code, err := buf.DecodeVarint()
	if err != nil {
		return ConvertGoError(context.Background(), err)
	}
	mysqlCode, err := buf.DecodeVarint()
	if err != nil {
		return ConvertGoError(context.Background(), err)
	}
	if e.message, err = buf.DecodeStringBytes(); err != nil {
		return ConvertGoError(context.Background(), err)
	}
	if e.sqlState, err = buf.DecodeStringBytes(); err != nil {
		return ConvertGoError(context.Background(), err)
	}
	if e.detail, err = buf.DecodeStringBytes(); err != nil {
		return ConvertGoError(context.Background(), err)
	}
	e.code = uint16(code)
	e.mysqlCode = uint16(mysqlCode)
	return nil
}

func IsMoErrCode(e error, rc uint16) bool {
	if e == nil {
		return rc == Ok
	}

	me, ok := e.(*Error)
	if !ok {
		// This is not a moerr
		return false
	}
	return me.code == rc
}

// IsStopped reports whether err is the cooperative cancellation condition
// rather than a failure.
func IsStopped(e error) bool {
	return IsMoErrCode(e, ErrQueryStopped)
}

func DowncastError(e error) *Error {
	if err, ok := e.(*Error); ok {
		return err
	}
	return newError(context.Background(), ErrInternal, fmt.Sprintf("downcast error failed: %v", e))
}

// ConvertPanicError converts a runtime panic to internal error.
func ConvertPanicError(ctx context.Context, v interface{}) *Error {
	if e, ok := v.(*Error); ok {
		return e
	}
	return newError(ctx, ErrInternal, fmt.Sprintf("panic %v: %s", v, callers(3)))
}

// ConvertGoError converts a go error into mo error.
// Note here we must return error, because nil error
// is the same as nil *Error -- Go strangeness.
func ConvertGoError(ctx context.Context, err error) error {
	// nil is nil
	if err == nil {
		return err
	}

	// already a moerr, return it as is
	if _, ok := err.(*Error); ok {
		return err
	}

	// Convert a few well known os/go error.
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		// if io.EOF reaches here, we believe it is not expected.
		return NewUnexpectedEOF(ctx, err.Error())
	}

	return NewInternalError(ctx, "convert go error to mo error %v", err)
}

func callers(skip int) string {
	pcs := make([]uintptr, 16)
	n := runtime.Callers(skip, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	var sb strings.Builder
	for {
		f, more := frames.Next()
		fmt.Fprintf(&sb, "\n%s\n\t%s:%d", f.Function, f.File, f.Line)
		if !more {
			break
		}
	}
	return sb.String()
}

func NewInternalError(ctx context.Context, msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ctx, ErrInternal, xmsg)
}

func NewNotSupported(ctx context.Context, msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ctx, ErrNotSupported, xmsg)
}

func NewDivByZero(ctx context.Context) *Error {
	return newError(ctx, ErrDivByZero)
}

func NewOutOfRange(ctx context.Context, typ string, msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ctx, ErrOutOfRange, typ, xmsg)
}

func NewInvalidArg(ctx context.Context, arg string, val any) *Error {
	return newError(ctx, ErrInvalidArg, arg, fmt.Sprintf("%v", val))
}

func NewEvalTypeMismatch(ctx context.Context, msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ctx, ErrEvalTypeMismatch, xmsg)
}

func NewBadConfig(ctx context.Context, msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ctx, ErrBadConfig, xmsg)
}

func NewInvalidInput(ctx context.Context, msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ctx, ErrInvalidInput, xmsg)
}

func NewArgumentNotFound(ctx context.Context, idx int) *Error {
	return newError(ctx, ErrArgumentNotFound, idx)
}

func NewInvalidState(ctx context.Context, msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ctx, ErrInvalidState, xmsg)
}

func NewUnexpectedEOF(ctx context.Context, f string) *Error {
	return newError(ctx, ErrUnexpectedEOF, f)
}

func NewNoSuchMap(ctx context.Context, name string) *Error {
	return newError(ctx, ErrNoSuchMap, name)
}

func NewMemberLeft(ctx context.Context, member string) *Error {
	return newError(ctx, ErrMemberLeft, member)
}

func NewBackendClosed(ctx context.Context, member string) *Error {
	return newError(ctx, ErrBackendClosed, member)
}

func NewMailboxNotFound(ctx context.Context, msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ctx, ErrMailboxNotFound, xmsg)
}

func NewQueryStopped(ctx context.Context, queryID string) *Error {
	return newError(ctx, ErrQueryStopped, queryID)
}

func NewUnsupportedAggregate(ctx context.Context, kind string) *Error {
	return newError(ctx, ErrUnsupportedAggregate, kind)
}

func NewPlanDefect(ctx context.Context, msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ctx, ErrPlanDefect, xmsg)
}

func NewSQLNotEnabled(ctx context.Context, member string) *Error {
	return newError(ctx, ErrSQLNotEnabled, member)
}

func NewFragmentStateCorrupt(ctx context.Context, edge int32, stripe int, msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ctx, ErrFragmentStateCorrupt, edge, stripe, xmsg)
}

// IsConnectionRelatedError reports whether err was caused by losing the
// connection to another member.
func IsConnectionRelatedError(err error) bool {
	return IsMoErrCode(err, ErrMemberLeft) || IsMoErrCode(err, ErrBackendClosed)
}
