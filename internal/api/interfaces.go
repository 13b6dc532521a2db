package api

import (
	"context"

	"github.com/pamaxie/Pamaxie.Scan-API/internal/media"
)

// Recognizer runs the job coordinator's full pipeline.
type Recognizer interface {
	Recognize(ctx context.Context, raw []byte) (string, error)
}

// ConnectionChecker reports upstream reachability for the status endpoint.
type ConnectionChecker interface {
	CheckConnection(ctx context.Context) error
}

// WorkQueue is the subset of the queue adapter the worker surface leases
// from.
type WorkQueue interface {
	ReceiveAndDelete(ctx context.Context) (string, error)
}

// ResultDeleter is the subset of the Database API adapter the worker
// surface uses to filter already-completed jobs and ingest new results.
type ResultDeleter interface {
	GetScanRaw(ctx context.Context, bearer, fingerprint string) ([]byte, bool, error)
	SetScan(ctx context.Context, bearer string, result media.RecognitionResult) error
}

// ObjectFetcher retrieves and reclaims staged payloads.
type ObjectFetcher interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// CredentialSource supplies this service's own outbound bearer token.
type CredentialSource interface {
	Token(ctx context.Context) (string, error)
}
