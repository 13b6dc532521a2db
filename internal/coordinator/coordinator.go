// Package coordinator implements the job lifecycle state machine: the
// path from a raw submitted payload to either a cache-hit result or a
// staged, enqueued, and bounded-polled-for recognition result.
package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/pamaxie/Pamaxie.Scan-API/internal/apperr"
	"github.com/pamaxie/Pamaxie.Scan-API/internal/logging"
	"github.com/pamaxie/Pamaxie.Scan-API/internal/media"
	"github.com/pamaxie/Pamaxie.Scan-API/internal/metrics"
)

// ResultStore is the subset of the Database API adapter the coordinator
// needs to look up and self-heal stored results.
type ResultStore interface {
	GetScanRaw(ctx context.Context, bearer, fingerprint string) (raw []byte, found bool, err error)
	DeleteScan(ctx context.Context, bearer, fingerprint string) error
}

// CredentialSource supplies the service's own current outbound bearer
// token, as held by the credential cache.
type CredentialSource interface {
	Token(ctx context.Context) (string, error)
}

// ObjectStager stages and reclaims canonical payloads.
type ObjectStager interface {
	Put(ctx context.Context, key string, b []byte, contentType string) error
	Delete(ctx context.Context, key string) error
}

// Enqueuer publishes job descriptors.
type Enqueuer interface {
	Send(ctx context.Context, body string) error
}

// DedupGuard collapses concurrent submissions of the same fingerprint
// landing on this process within a short window. It is optional: a nil
// guard simply means every cache-miss request stages and enqueues on its
// own.
type DedupGuard interface {
	ClaimOnce(fingerprint string) (bool, error)
}

// Config holds the coordinator's poll budget and the base URL workers use
// to fetch staged payloads.
type Config struct {
	PublicBaseURL string
	PollAttempts  int
	PollInterval  time.Duration
}

// Coordinator runs the canonicalize → fingerprint → cache-lookup →
// stage → enqueue → bounded-poll pipeline.
type Coordinator struct {
	results     ResultStore
	credentials CredentialSource
	objects     ObjectStager
	queue       Enqueuer
	dedup       DedupGuard
	cfg         Config
}

// New builds a Coordinator. dedup may be nil.
func New(results ResultStore, credentials CredentialSource, objects ObjectStager, queue Enqueuer, dedup DedupGuard, cfg Config) *Coordinator {
	return &Coordinator{results: results, credentials: credentials, objects: objects, queue: queue, dedup: dedup, cfg: cfg}
}

// Recognize runs the full pipeline over raw image bytes and returns the
// stored recognition result as the exact JSON text the result store holds
// for it — never re-marshaled, so a caller gets back precisely what was
// written.
func (c *Coordinator) Recognize(ctx context.Context, raw []byte) (string, error) {
	start := time.Now()
	bearer, err := c.credentials.Token(ctx)
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "could not obtain outbound credential", err)
	}

	canonical, err := media.Canonicalize(raw)
	if err != nil {
		return "", apperr.Wrap(apperr.KindBadInput, "could not decode submitted image", err)
	}

	fingerprint, err := media.Fingerprint(canonical)
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "could not compute fingerprint", err)
	}

	if result, ok := c.lookupValid(ctx, bearer, fingerprint); ok {
		return result, nil
	}

	skipStageAndEnqueue := false
	if c.dedup != nil {
		claimed, err := c.dedup.ClaimOnce(fingerprint)
		if err != nil {
			logging.Warn().Err(err).Str("fingerprint", fingerprint).Msg("coordinator: dedup guard failed, proceeding as if unclaimed")
		} else if !claimed {
			skipStageAndEnqueue = true
		}
	}

	if !skipStageAndEnqueue {
		ext := media.Extension(canonical)
		key := fmt.Sprintf("%s.%s", fingerprint, ext)

		if err := c.objects.Put(ctx, key, canonical, "image/"+ext); err != nil {
			return "", apperr.Wrap(apperr.KindInternal, "could not stage payload", err)
		}

		scanURL := fmt.Sprintf("%s/scan/v1/worker/get_image/%s", c.cfg.PublicBaseURL, key)
		descriptor := media.JobDescriptor{
			ImageHash:     fingerprint,
			ScanURL:       scanURL,
			DataType:      "image",
			DataExtension: ext,
		}
		body, err := json.Marshal(descriptor)
		if err != nil {
			return "", apperr.Wrap(apperr.KindInternal, "could not encode job descriptor", err)
		}

		if err := c.queue.Send(ctx, string(body)); err != nil {
			metrics.RecordQueueSendError("recognition")
			if delErr := c.objects.Delete(ctx, key); delErr != nil {
				logging.Warn().Err(delErr).Str("key", key).Msg("coordinator: rollback delete after failed enqueue also failed")
			}
			return "", apperr.Wrap(apperr.KindInternal, "could not enqueue job", err)
		}
		metrics.RecordJobEnqueued()
	}

	for attempt := 0; attempt < c.cfg.PollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return "", apperr.Wrap(apperr.KindInternal, "request cancelled while waiting for result", ctx.Err())
		case <-time.After(c.cfg.PollInterval):
		}

		if result, ok := c.lookupValid(ctx, bearer, fingerprint); ok {
			metrics.RecordRecognitionOutcome(time.Since(start), false)
			return result, nil
		}
	}

	metrics.RecordRecognitionOutcome(time.Since(start), true)
	return "", apperr.Timeout("recognition is still in progress")
}

// lookupValid performs one cache lookup and self-heals (deletes) a stored
// result that parses but fails validation; a non-JSON result is treated as
// a miss without being deleted. Adapter failure is treated as fail-open (a miss),
// per the propagation policy: availability wins over cache correctness.
func (c *Coordinator) lookupValid(ctx context.Context, bearer, fingerprint string) (string, bool) {
	raw, found, err := c.results.GetScanRaw(ctx, bearer, fingerprint)
	if err != nil {
		logging.Warn().Err(err).Str("fingerprint", fingerprint).Msg("coordinator: cache lookup failed, treating as miss")
		metrics.RecordCacheLookup(false)
		return "", false
	}
	if !found {
		metrics.RecordCacheLookup(false)
		return "", false
	}

	var result media.RecognitionResult
	if err := json.Unmarshal(raw, &result); err != nil {
		logging.Warn().Str("fingerprint", fingerprint).Msg("coordinator: stored result is not valid JSON, treating as corrupt")
		metrics.RecordCacheLookup(false)
		return "", false
	}

	if !result.Valid() {
		if err := c.results.DeleteScan(ctx, bearer, fingerprint); err != nil {
			logging.Warn().Err(err).Str("fingerprint", fingerprint).Msg("coordinator: delete of invalid stored result failed")
		}
		metrics.RecordSelfHeal()
		metrics.RecordCacheLookup(false)
		return "", false
	}

	metrics.RecordCacheLookup(true)
	return string(raw), true
}
