package engine

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientExecute(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantCount int
		wantKind  string
	}{
		{name: "success", status: 200, body: `{"status":"success","count":12}`, wantCount: 12},
		{name: "salvaged from noise", status: 200, body: "Forking - python [index.py]\n{\"status\":\"success\",\"count\":7}\n2026/10/19 Duration: 1.2s", wantCount: 7},
		{name: "no json at all", status: 200, body: "Forking - python", wantKind: KindMalformed},
		{name: "broken json in braces", status: 200, body: "noise {count: 3}", wantKind: KindMalformed},
		{name: "missing count", status: 200, body: `{"status":"success"}`, wantKind: KindMalformed},
		{name: "function error", status: 200, body: `{"status":"error","message":"Invalid input data"}`, wantKind: KindFunction},
		{name: "server error", status: 500, body: "boom", wantKind: KindStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			resp, err := NewClient(srv.URL, 5*time.Second).Execute(context.Background(), []byte(`{}`))
			if tt.wantKind != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, ErrorKind(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCount, resp.Count)
			assert.Equal(t, "success", resp.Status)
			assert.Greater(t, resp.Elapsed, time.Duration(0))
		})
	}
}

func TestClientSendsPayload(t *testing.T) {
	var gotType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		_, _ = io.WriteString(w, `{"status":"success","count":1}`)
	}))
	defer srv.Close()

	payload, err := EncodePayload([]byte("jpeg-bytes"))
	require.NoError(t, err)

	_, err = NewClient(srv.URL, 0).Execute(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, "application/json", gotType)
	assert.JSONEq(t, `{"image_data":{"image":"anBlZy1ieXRlcw=="}}`, string(gotBody))
}

func TestClientStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "function not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).Execute(context.Background(), nil)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	assert.Contains(t, se.Body, "function not found")
}

func TestClientTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		_, _ = io.WriteString(w, `{"status":"success","count":1}`)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, 50*time.Millisecond).Execute(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, KindTimeout, ErrorKind(err))
}

func TestClientConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, time.Second).Execute(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnection)
	assert.Equal(t, KindConnection, ErrorKind(err))
}

func TestParseResponseTakesLastObject(t *testing.T) {
	body := []byte("{\"status\":\"success\",\"count\":1}\nnoise\n{\"status\":\"success\",\"count\":9} trailing")
	resp, err := parseResponse(body)
	require.NoError(t, err)
	assert.Equal(t, 9, resp.Count)
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "", ErrorKind(nil))
	assert.Equal(t, KindRequest, ErrorKind(errors.New("other")))
	assert.Equal(t, KindCancelled, ErrorKind(context.Canceled))
	assert.Equal(t, KindTimeout, ErrorKind(classifyTransport(context.DeadlineExceeded)))
	assert.Equal(t, KindRequest, ErrorKind(classifyTransport(errors.New("tls: bad certificate"))))
}

func TestFunctionURL(t *testing.T) {
	assert.Equal(t, "http://gw:8080/function/crowdcount", FunctionURL("http://gw:8080/", "crowdcount"))
	assert.Equal(t, "http://gw:8080/function/other", FunctionURL("http://gw:8080/function/other", "crowdcount"))
	assert.Equal(t, "http://host:5000", FunctionURL("http://host:5000", ""))
}
