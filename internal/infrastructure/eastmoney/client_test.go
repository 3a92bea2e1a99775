package eastmoney

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `{
  "success": true,
  "code": 0,
  "result": {
    "pages": 1,
    "count": 2,
    "data": [
      {"SECURITY_CODE": "600519", "SECURITY_NAME_ABBR": "贵州茅台", "NOTICE_DATE": "2025-07-10 00:00:00",
       "REPORT_DATE": "2025-06-30 00:00:00", "PREDICT_TYPE": "预增", "ADD_AMP_LOWER": 50, "ADD_AMP_UPPER": 80.5,
       "PREDICT_AMT_LOWER": null, "PREDICT_AMT_UPPER": "1200000"},
      {"SECURITY_CODE": "000001", "SECURITY_NAME_ABBR": "平安银行", "NOTICE_DATE": "2025-07-11 00:00:00",
       "REPORT_DATE": "2025-06-30 00:00:00", "PREDICT_TYPE": "扭亏"}
    ]
  }
}`

func TestClientFetchBuildsQueryAndDecodes(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "RPT_PUBLIC_OP_NEWPREDICT", q.Get("reportName"))
		assert.Equal(t, "500", q.Get("pageSize"))
		assert.Equal(t, "1", q.Get("pageNumber"))
		assert.Equal(t, "NOTICE_DATE,SECURITY_CODE", q.Get("sortColumns"))
		assert.Contains(t, q.Get("filter"), `PREDICT_FINANCE_CODE="004"`)
		assert.Equal(t, "http://data.eastmoney.com/", r.Header.Get("Referer"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(samplePage))
	}))
	defer server.Close()

	client := NewClient(server.Client(), Options{Endpoint: server.URL}, nil)
	records, err := client.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "600519", records[0].SecurityCode.String())
	assert.Equal(t, "80.5", records[0].ChangeUpper.String())
	assert.Empty(t, records[0].PredictAmtLower.String())
	assert.Equal(t, "扭亏", records[1].PredictType.String())
}

func TestClientFetchFollowsPages(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		page := r.URL.Query().Get("pageNumber")
		_, _ = w.Write([]byte(`{"success":true,"result":{"pages":2,"data":[{"SECURITY_CODE":"p` + page + `"}]}}`))
	}))
	defer server.Close()

	client := NewClient(server.Client(), Options{Endpoint: server.URL, MaxPages: 5}, nil)
	records, err := client.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "p1", records[0].SecurityCode.String())
	assert.Equal(t, "p2", records[1].SecurityCode.String())
	assert.Equal(t, int32(2), calls.Load())
}

func TestClientNullResultIsEmpty(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"message":"返回数据为空","code":9201,"result":null}`))
	}))
	defer server.Close()

	records, err := NewClient(server.Client(), Options{Endpoint: server.URL}, nil).Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestClientBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.Client(), Options{Endpoint: server.URL}, nil)
	for i := 0; i < 3; i++ {
		_, err := client.Fetch(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "502")
	}

	_, err := client.Fetch(context.Background())
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState), "got %v", err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFileSourceReadsResponseAndArray(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	wrapped := filepath.Join(dir, "page.json")
	bare := filepath.Join(dir, "rows.json")
	require.NoError(t, os.WriteFile(wrapped, []byte(samplePage), 0o600))
	require.NoError(t, os.WriteFile(bare, []byte(`[{"SECURITY_CODE":"300750","NOTICE_DATE":"2025-07-12"}]`), 0o600))

	records, err := NewFileSource(wrapped).Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 2)

	records, err = NewFileSource(bare).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "300750", records[0].SecurityCode.String())

	_, err = NewFileSource(filepath.Join(dir, "missing.json")).Fetch(context.Background())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "missing.json"))
}
