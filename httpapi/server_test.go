package httpapi

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelai/memoria/embedding"
	"github.com/kestrelai/memoria/llm"
	"github.com/kestrelai/memoria/memcore"
	"github.com/kestrelai/memoria/vectorstore/chromem"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store, err := chromem.New("")
	require.NoError(t, err)

	core, err := memcore.NewInProcessForTest(t.TempDir(),
		memcore.WithVectorStores(store),
		memcore.WithEmbedder("mock", embedding.NewMockProvider([]float32{1, 0, 0})),
		memcore.WithGenerator(llm.NewMockTextGenerator("green")),
	)
	require.NoError(t, err)

	s := New(core, nil, "", "", "")
	return httptest.NewServer(s.Handler())
}

func TestHandleRootAndHealth(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUploadStatusAskRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("index", "default"))
	require.NoError(t, mw.WriteField("documentId", "doc-1"))
	part, err := mw.CreateFormFile("file", "doc.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("green is a great color"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/upload", &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var uploadResp map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&uploadResp))
	assert.Equal(t, "doc-1", uploadResp["documentId"])

	statusResp, err := http.Get(srv.URL + "/upload-status?index=default&documentId=doc-1")
	require.NoError(t, err)
	defer statusResp.Body.Close()
	require.Equal(t, http.StatusOK, statusResp.StatusCode)

	askBody, err := json.Marshal(map[string]string{
		"question": "what color?",
		"index":    "default",
	})
	require.NoError(t, err)
	askResp, err := http.Post(srv.URL+"/ask", "application/json", bytes.NewReader(askBody))
	require.NoError(t, err)
	defer askResp.Body.Close()
	require.Equal(t, http.StatusOK, askResp.StatusCode)

	var answer map[string]interface{}
	require.NoError(t, json.NewDecoder(askResp.Body).Decode(&answer))
	assert.Contains(t, answer["text"], "green")
}

func TestUploadStatusMissingReturns404(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/upload-status?index=default&documentId=missing")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAuthRejectsMissingAndWrongKey(t *testing.T) {
	store, err := chromem.New("")
	require.NoError(t, err)
	core, err := memcore.NewInProcessForTest(t.TempDir(),
		memcore.WithVectorStores(store),
		memcore.WithEmbedder("mock", embedding.NewMockProvider([]float32{1, 0, 0})),
		memcore.WithGenerator(llm.NewMockTextGenerator("green")),
	)
	require.NoError(t, err)

	s := New(core, nil, "X-Access-Key", "key1", "key2")
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/indexes")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/indexes", nil)
	require.NoError(t, err)
	req.Header.Set("X-Access-Key", "wrong")
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp2.StatusCode)

	req2, err := http.NewRequest(http.MethodGet, srv.URL+"/indexes", nil)
	require.NoError(t, err)
	req2.Header.Set("X-Access-Key", "key2")
	resp3, err := http.DefaultClient.Do(req2)
	require.NoError(t, err)
	defer resp3.Body.Close()
	assert.Equal(t, http.StatusOK, resp3.StatusCode)
}
