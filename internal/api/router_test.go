package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pamaxie/Pamaxie.Scan-API/internal/apperr"
	"github.com/pamaxie/Pamaxie.Scan-API/internal/media"
)

type fakeRecognizer struct {
	result string
	err    error
}

func (f *fakeRecognizer) Recognize(ctx context.Context, raw []byte) (string, error) {
	return f.result, f.err
}

type fakeConnectionChecker struct{ err error }

func (f *fakeConnectionChecker) CheckConnection(ctx context.Context) error { return f.err }

type fakeAuthChecker struct {
	authOK     bool
	internalOK bool
}

func (f *fakeAuthChecker) CheckAuth(ctx context.Context, bearer string) (bool, error) {
	return f.authOK, nil
}

func (f *fakeAuthChecker) IsInternalAuth(ctx context.Context, bearer string) (bool, error) {
	return f.internalOK, nil
}

type fakeWorkQueue struct {
	messages []string
}

func (f *fakeWorkQueue) ReceiveAndDelete(ctx context.Context) (string, error) {
	if len(f.messages) == 0 {
		return "", nil
	}
	m := f.messages[0]
	f.messages = f.messages[1:]
	return m, nil
}

type fakeResultDeleter struct {
	stored map[string][]byte
	setErr error
}

func (f *fakeResultDeleter) GetScanRaw(ctx context.Context, bearer, fingerprint string) ([]byte, bool, error) {
	b, ok := f.stored[fingerprint]
	return b, ok, nil
}

func (f *fakeResultDeleter) SetScan(ctx context.Context, bearer string, result media.RecognitionResult) error {
	return f.setErr
}

type fakeObjectFetcher struct {
	objects map[string][]byte
}

func (f *fakeObjectFetcher) Get(ctx context.Context, key string) ([]byte, error) {
	return f.objects[key], nil
}

func (f *fakeObjectFetcher) Delete(ctx context.Context, key string) error {
	delete(f.objects, key)
	return nil
}

type fakeCredentials struct{}

func (fakeCredentials) Token(ctx context.Context) (string, error) { return "svc-bearer", nil }

func baseDeps() Dependencies {
	return Dependencies{
		Recognizer:          &fakeRecognizer{},
		AuthChecker:         &fakeAuthChecker{authOK: true, internalOK: true},
		DBHealth:            &fakeConnectionChecker{},
		Queue:               &fakeWorkQueue{},
		Results:             &fakeResultDeleter{stored: map[string][]byte{}},
		Objects:             &fakeObjectFetcher{objects: map[string][]byte{}},
		Credentials:         fakeCredentials{},
		URLFetcher:          http.DefaultClient,
		WorkerLeaseAttempts: 2,
		WorkerLeaseInterval: time.Millisecond,
	}
}

func TestStatus_ReportsHealth(t *testing.T) {
	deps := baseDeps()
	srv := httptest.NewServer(NewRouter(deps))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/scan/v1/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDetectImage_RequiresAuth(t *testing.T) {
	deps := baseDeps()
	srv := httptest.NewServer(NewRouter(deps))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/scan/v1/detection/detectImage", "application/octet-stream", strings.NewReader("x"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestDetectImage_EmptyBodyIsBadRequest(t *testing.T) {
	deps := baseDeps()
	srv := httptest.NewServer(NewRouter(deps))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/scan/v1/detection/detectImage", strings.NewReader(""))
	req.Header.Set("Authorization", "Bearer whatever")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDetectImage_Success(t *testing.T) {
	deps := baseDeps()
	deps.Recognizer = &fakeRecognizer{result: `{"Key":"fp","ScanResult":"cat"}`}
	srv := httptest.NewServer(NewRouter(deps))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/scan/v1/detection/detectImage", strings.NewReader("fake bytes"))
	req.Header.Set("Authorization", "Bearer whatever")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDetectImage_TimeoutMapsToSoft200(t *testing.T) {
	deps := baseDeps()
	deps.Recognizer = &fakeRecognizer{err: apperr.Timeout("still working")}
	srv := httptest.NewServer(NewRouter(deps))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/scan/v1/detection/detectImage", strings.NewReader("fake bytes"))
	req.Header.Set("Authorization", "Bearer whatever")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "60", resp.Header.Get("Retry-After"))
}

func TestGetHash_NoAuthRequired(t *testing.T) {
	deps := baseDeps()
	srv := httptest.NewServer(NewRouter(deps))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/scan/v1/detection/getHash", "application/octet-stream", strings.NewReader("hello"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGetWork_NoWorkAfterExhaustingAttempts(t *testing.T) {
	deps := baseDeps()
	srv := httptest.NewServer(NewRouter(deps))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/scan/v1/worker/get_work", nil)
	req.Header.Set("Authorization", "Bearer worker-token")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetWork_RequiresInternal(t *testing.T) {
	deps := baseDeps()
	deps.AuthChecker = &fakeAuthChecker{authOK: true, internalOK: false}
	srv := httptest.NewServer(NewRouter(deps))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/scan/v1/worker/get_work", nil)
	req.Header.Set("Authorization", "Bearer end-user-token")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGetWork_ReturnsDescriptorAndSkipsCompletedOnes(t *testing.T) {
	deps := baseDeps()
	deps.Queue = &fakeWorkQueue{messages: []string{
		`{"ImageHash":"already-done","ScanUrl":"u","DataType":"image","DataExtension":"png"}`,
		`{"ImageHash":"fresh","ScanUrl":"u","DataType":"image","DataExtension":"png"}`,
	}}
	deps.Results = &fakeResultDeleter{stored: map[string][]byte{"already-done": []byte(`{}`)}}
	srv := httptest.NewServer(NewRouter(deps))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/scan/v1/worker/get_work", nil)
	req.Header.Set("Authorization", "Bearer worker-token")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGetImage_MissingIsNotFound(t *testing.T) {
	deps := baseDeps()
	srv := httptest.NewServer(NewRouter(deps))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/scan/v1/worker/get_image/nope.png")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetImage_Found(t *testing.T) {
	deps := baseDeps()
	deps.Objects = &fakeObjectFetcher{objects: map[string][]byte{"fp.png": []byte("bytes")}}
	srv := httptest.NewServer(NewRouter(deps))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/scan/v1/worker/get_image/fp.png")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPostResult_RequiresInternal(t *testing.T) {
	deps := baseDeps()
	deps.AuthChecker = &fakeAuthChecker{authOK: true, internalOK: false}
	srv := httptest.NewServer(NewRouter(deps))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/scan/v1/worker/post_result", strings.NewReader("{}"))
	req.Header.Set("Authorization", "Bearer end-user-token")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
