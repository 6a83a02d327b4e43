package grpc

import (
	"context"
	"time"

	"warehouse-service/internal/service"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

var quietMethods = map[string]struct{}{
	"/grpc.health.v1.Health/Check":                                   {},
	"/grpc.health.v1.Health/Watch":                                   {},
	"/grpc.health.v1.Health/List":                                    {},
	"/grpc.reflection.v1alpha.ServerReflection/ServerReflectionInfo": {},
	"/grpc.reflection.v1.ServerReflection/ServerReflectionInfo":      {},
}

// NewLoggingUnaryServerInterceptor логирует каждый вызов и переводит ошибки ядра в статусы.
// Ожидаемые отказы склада пишутся в Info, всё остальное в Error.
func NewLoggingUnaryServerInterceptor(log *zap.Logger) grpc.UnaryServerInterceptor {
	if log == nil {
		log = zap.NewNop()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if _, ok := quietMethods[info.FullMethod]; ok {
			return handler(ctx, req)
		}

		start := time.Now()
		resp, err := handler(ctx, req)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.Duration("took", time.Since(start)),
		}
		if err == nil {
			log.Debug("grpc ok", fields...)
			return resp, nil
		}

		switch st, isStatus := status.FromError(err); {
		case service.IsLedgerError(err):
			log.Info("Операция отклонена", append(fields,
				zap.String("code", string(service.GetCode(err))),
				zap.String("reason", err.Error()))...)
		case isStatus:
			log.Info("Некорректный запрос", append(fields,
				zap.String("code", st.Code().String()),
				zap.String("reason", st.Message()))...)
		default:
			log.Error("Ошибка обработки запроса", append(fields, zap.Error(err))...)
		}
		return nil, ToStatusErr(err)
	}
}
