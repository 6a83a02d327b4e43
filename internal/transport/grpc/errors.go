package grpc

import (
	"context"
	"errors"

	"warehouse-service/internal/service"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrorDomain кладётся в ErrorInfo, чтобы клиент отличал коды склада от чужих.
const ErrorDomain = "warehouse"

// ToStatusErr переводит ошибку ядра в gRPC-статус. Код ошибки склада уходит в ErrorInfo.Reason,
// текст неожиданных отказов наружу не попадает.
func ToStatusErr(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request canceled")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	}

	code := service.GetCode(err)
	if code == service.CodeUnknown {
		return status.Error(codes.Internal, "internal error")
	}
	st := status.New(code.GRPCCode(), err.Error())
	detailed, derr := st.WithDetails(&errdetails.ErrorInfo{
		Reason: string(code),
		Domain: ErrorDomain,
	})
	if derr != nil {
		return st.Err()
	}
	return detailed.Err()
}

// ReasonOf достаёт код склада из статуса; пустая строка, если деталей нет.
func ReasonOf(err error) string {
	st, ok := status.FromError(err)
	if !ok {
		return ""
	}
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok && info.GetDomain() == ErrorDomain {
			return info.GetReason()
		}
	}
	return ""
}

func invalidArg(field string, err error) error {
	return status.Errorf(codes.InvalidArgument, "invalid %s: %v", field, err)
}
