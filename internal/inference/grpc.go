package inference

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/example/eye-diagnosis/internal/logging"
	"github.com/example/eye-diagnosis/internal/preprocess"
	proto "github.com/example/eye-diagnosis/proto"
)

// Dial returns a Classifier backed by the model-serving sidecar. The
// connection is established lazily: a server that is down at boot leaves the
// service running in a degraded state, surfaced through Ready and /health.
func Dial(ctx context.Context, addr string, logger *zap.Logger) (*GRPCClassifier, *grpc.ClientConn, error) {
	conn, err := grpc.DialContext(
		ctx,
		addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		wrapped := logging.NewOperationError("inference.dial_model_server", "", err)
		logger.Error("failed to dial model server", zap.Error(wrapped), zap.String("addr", addr))
		return nil, nil, wrapped
	}
	return &GRPCClassifier{
		client: proto.NewDiagnosisClient(conn),
		conn:   conn,
		labels: Labels,
		logger: logger.Named("inference"),
	}, conn, nil
}

// GRPCClassifier calls the remote model over gRPC and ranks its output.
type GRPCClassifier struct {
	client proto.DiagnosisClient
	conn   *grpc.ClientConn
	labels []string
	logger *zap.Logger
}

// Classify runs one forward pass and maps the probability vector onto the
// label set. The tensor shape is forwarded as-is; a mismatch with the loaded
// model is a configuration error the server reports per call.
func (c *GRPCClassifier) Classify(ctx context.Context, t *preprocess.Tensor) (*Result, error) {
	resp, err := c.client.Classify(ctx, &proto.ClassifyRequest{
		Shape: t.Shape,
		Data:  t.Data,
	})
	if err != nil {
		wrapped := logging.NewOperationError("inference.classify", "", fmt.Errorf("%w: %v", ErrInference, err))
		c.logger.Error("model call failed", zap.Error(wrapped))
		return nil, wrapped
	}

	result, err := Rank(resp.GetProbabilities(), c.labels)
	if err != nil {
		return nil, err
	}
	result.ModelVersion = resp.GetModelVersion()
	return result, nil
}

// Ready reports whether the model server connection is usable, attempting to
// connect within the context deadline.
func (c *GRPCClassifier) Ready(ctx context.Context) error {
	c.conn.Connect()
	for {
		state := c.conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Shutdown:
			return fmt.Errorf("model server connection is shut down")
		}
		if !c.conn.WaitForStateChange(ctx, state) {
			return fmt.Errorf("model server not reachable (state %s)", state)
		}
	}
}
