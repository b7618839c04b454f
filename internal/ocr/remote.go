package ocr

import (
	"context"
	"image"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/wrapperspb"

	apperrors "github.com/cheminotify/agent/internal/errors"
	"github.com/cheminotify/agent/internal/resilience"
	"github.com/cheminotify/agent/internal/trace"
)

// MethodExtractText takes PNG bytes (BytesValue) and returns the recognized
// text (StringValue).
const MethodExtractText = "/cheminotify.OCR/ExtractText"

const (
	DefaultKeepaliveTime    = 10 * time.Second
	DefaultKeepaliveTimeout = 3 * time.Second
	DefaultCallTimeout      = 10 * time.Second
)

// Remote calls an OCR service over gRPC.
type Remote struct {
	conn    *grpc.ClientConn
	breaker *resilience.Breaker
	retry   resilience.RetryConfig
	timeout time.Duration
}

// Dial connects to addr. Extra options are appended to the defaults.
func Dial(addr string, opts ...grpc.DialOption) (*Remote, error) {
	base := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                DefaultKeepaliveTime,
			Timeout:             DefaultKeepaliveTimeout,
			PermitWithoutStream: true,
		}),
		grpc.WithUnaryInterceptor(trace.UnaryClientInterceptor()),
	}
	conn, err := grpc.NewClient(addr, append(base, opts...)...)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.OCRUnavailable, "dial OCR service %s", addr)
	}
	return &Remote{
		conn:    conn,
		breaker: resilience.New("ocr", resilience.OCRConfig()),
		retry:   resilience.OCRRetryConfig(),
		timeout: DefaultCallTimeout,
	}, nil
}

// Close closes the connection.
func (r *Remote) Close() error {
	return r.conn.Close()
}

// Breaker exposes the circuit state.
func (r *Remote) Breaker() *resilience.Breaker { return r.breaker }

func (r *Remote) Recognize(ctx context.Context, img image.Image) (string, error) {
	data, err := EncodePNG(img)
	if err != nil {
		return "", err
	}

	return resilience.ExecuteWithResult(r.breaker, func() (string, error) {
		return resilience.RetryWithResult(ctx, r.retry, func() (string, error) {
			callCtx, cancel := context.WithTimeout(ctx, r.timeout)
			defer cancel()

			out := new(wrapperspb.StringValue)
			if err := r.conn.Invoke(callCtx, MethodExtractText, wrapperspb.Bytes(data), out); err != nil {
				return "", apperrors.FromGRPCError(err)
			}
			return out.GetValue(), nil
		})
	})
}
