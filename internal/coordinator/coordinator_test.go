package coordinator

import (
	"context"
	"encoding/base64"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pamaxie/Pamaxie.Scan-API/internal/media"
)

func computeFingerprintForTest(raw []byte) (string, error) {
	canonical, err := media.Canonicalize(raw)
	if err != nil {
		return "", err
	}
	return media.Fingerprint(canonical)
}

const onePxRedPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNk+A8AAQUBAScY42YAAAAASUVORK5CYII="

func decodeFixture(t *testing.T) []byte {
	t.Helper()
	b, err := base64.StdEncoding.DecodeString(onePxRedPNG)
	require.NoError(t, err)
	return b
}

type fakeCredentialSource struct{}

func (fakeCredentialSource) Token(ctx context.Context) (string, error) {
	return "fake-bearer", nil
}

type fakeResultStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	getErr  error
}

func newFakeResultStore() *fakeResultStore {
	return &fakeResultStore{objects: make(map[string][]byte)}
}

func (f *fakeResultStore) GetScanRaw(ctx context.Context, bearer, fingerprint string) ([]byte, bool, error) {
	if f.getErr != nil {
		return nil, false, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.objects[fingerprint]
	return b, ok, nil
}

func (f *fakeResultStore) DeleteScan(ctx context.Context, bearer, fingerprint string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, fingerprint)
	return nil
}

func (f *fakeResultStore) set(fingerprint string, raw []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[fingerprint] = raw
}

type fakeObjectStager struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newFakeObjectStager() *fakeObjectStager {
	return &fakeObjectStager{objects: make(map[string][]byte)}
}

func (f *fakeObjectStager) Put(ctx context.Context, key string, b []byte, contentType string) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = b
	return nil
}

func (f *fakeObjectStager) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

type fakeEnqueuer struct {
	mu      sync.Mutex
	sent    []string
	sendErr error
}

func (f *fakeEnqueuer) Send(ctx context.Context, body string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, body)
	return nil
}

func (f *fakeEnqueuer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func testConfig() Config {
	return Config{
		PublicBaseURL: "https://scan.example.com",
		PollAttempts:  3,
		PollInterval:  5 * time.Millisecond,
	}
}

func TestRecognize_CacheMissStagesAndEnqueuesThenTimesOut(t *testing.T) {
	results := newFakeResultStore()
	objects := newFakeObjectStager()
	queue := &fakeEnqueuer{}
	c := New(results, fakeCredentialSource{}, objects, queue, nil, testConfig())

	_, err := c.Recognize(context.Background(), decodeFixture(t))
	require.Error(t, err)

	assert.Equal(t, 1, queue.count())
	assert.Len(t, objects.objects, 1)
}

func TestRecognize_CacheHitReturnsStoredJSONVerbatim(t *testing.T) {
	results := newFakeResultStore()
	objects := newFakeObjectStager()
	queue := &fakeEnqueuer{}
	c := New(results, fakeCredentialSource{}, objects, queue, nil, testConfig())

	raw := decodeFixture(t)
	fp, err := computeFingerprintForTest(raw)
	require.NoError(t, err)

	stored := `{"Key":"` + fp + `","ScanResult":"cat","DataType":"image","DataExtension":"png","ScanMachineGuid":"w1","IsUserScan":false}`
	results.set(fp, []byte(stored))

	got, err := c.Recognize(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, stored, got)
	assert.Equal(t, 0, queue.count())
}

func TestRecognize_InvalidStoredResultSelfHealsThenEnqueues(t *testing.T) {
	results := newFakeResultStore()
	objects := newFakeObjectStager()
	queue := &fakeEnqueuer{}
	c := New(results, fakeCredentialSource{}, objects, queue, nil, testConfig())

	raw := decodeFixture(t)
	fp, err := computeFingerprintForTest(raw)
	require.NoError(t, err)

	results.set(fp, []byte(`{"Key":"`+fp+`","ScanResult":""}`))

	_, err = c.Recognize(context.Background(), raw)
	require.Error(t, err)

	assert.Equal(t, 1, queue.count())
	_, stillThere, _ := results.GetScanRaw(context.Background(), "fake-bearer", fp)
	assert.False(t, stillThere)
}

func TestRecognize_ResultAppearsMidPoll(t *testing.T) {
	results := newFakeResultStore()
	objects := newFakeObjectStager()
	queue := &fakeEnqueuer{}
	c := New(results, fakeCredentialSource{}, objects, queue, nil, testConfig())

	raw := decodeFixture(t)
	fp, err := computeFingerprintForTest(raw)
	require.NoError(t, err)

	go func() {
		time.Sleep(8 * time.Millisecond)
		results.set(fp, []byte(`{"Key":"`+fp+`","ScanResult":"dog","DataType":"image","DataExtension":"png","ScanMachineGuid":"w2","IsUserScan":false}`))
	}()

	got, err := c.Recognize(context.Background(), raw)
	require.NoError(t, err)
	assert.Contains(t, got, `"ScanResult":"dog"`)
}

func TestRecognize_BadInputOnGarbageBytes(t *testing.T) {
	results := newFakeResultStore()
	objects := newFakeObjectStager()
	queue := &fakeEnqueuer{}
	c := New(results, fakeCredentialSource{}, objects, queue, nil, testConfig())

	_, err := c.Recognize(context.Background(), []byte("not an image at all"))
	require.Error(t, err)
}

func TestRecognize_StageFailureReturnsInternalError(t *testing.T) {
	results := newFakeResultStore()
	objects := newFakeObjectStager()
	objects.putErr = assertError{"put failed"}
	queue := &fakeEnqueuer{}
	c := New(results, fakeCredentialSource{}, objects, queue, nil, testConfig())

	_, err := c.Recognize(context.Background(), decodeFixture(t))
	require.Error(t, err)
	assert.Equal(t, 0, queue.count())
}

func TestRecognize_EnqueueFailureRollsBackStagedObject(t *testing.T) {
	results := newFakeResultStore()
	objects := newFakeObjectStager()
	queue := &fakeEnqueuer{sendErr: assertError{"send failed"}}
	c := New(results, fakeCredentialSource{}, objects, queue, nil, testConfig())

	_, err := c.Recognize(context.Background(), decodeFixture(t))
	require.Error(t, err)
	assert.Len(t, objects.objects, 0)
}

type fakeDedupGuard struct {
	claimed map[string]bool
}

func (f *fakeDedupGuard) ClaimOnce(fingerprint string) (bool, error) {
	if f.claimed[fingerprint] {
		return false, nil
	}
	f.claimed[fingerprint] = true
	return true, nil
}

func TestRecognize_DedupGuardSkipsSecondStageAndEnqueue(t *testing.T) {
	results := newFakeResultStore()
	objects := newFakeObjectStager()
	queue := &fakeEnqueuer{}
	guard := &fakeDedupGuard{claimed: make(map[string]bool)}
	c := New(results, fakeCredentialSource{}, objects, queue, guard, testConfig())

	raw := decodeFixture(t)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); _, _ = c.Recognize(context.Background(), raw) }()
	go func() { defer wg.Done(); _, _ = c.Recognize(context.Background(), raw) }()
	wg.Wait()

	assert.Equal(t, 1, queue.count())
}

type assertError struct{ msg string }

func (e assertError) Error() string { return e.msg }
