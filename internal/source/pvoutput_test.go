package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/dreadpi/internal/fault"
)

func pvoutputServer(t *testing.T, status int, headers map[string]string, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/service/r2/getstatus.jsp", r.URL.Path)
		assert.Equal(t, "1", r.Header.Get("X-Rate-Limit"))
		assert.Equal(t, testPVOutputKey, r.Header.Get("X-Pvoutput-Apikey"))
		assert.Equal(t, "1234", r.Header.Get("X-Pvoutput-SystemId"))
		for k, v := range headers {
			w.Header().Set(k, v)
		}
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestPVOutput(t *testing.T, baseURL string) (*PVOutputSource, *test.Hook) {
	t.Helper()
	log, hook := test.NewNullLogger()
	src, err := NewPVOutput(PVOutputConfig{Key: testPVOutputKey, SysID: "1234", BaseURL: baseURL}, http.DefaultClient, log)
	require.NoError(t, err)
	return src, hook
}

func TestPVOutputFetch(t *testing.T) {
	srv := pvoutputServer(t, http.StatusOK, map[string]string{
		"X-Rate-Limit-Remaining": "287",
		"X-Rate-Limit-Reset":     "1700003600",
	}, "20260101,13:45,12500,2650,7300,450,0.812,24.5,241.3\n")
	src, hook := newTestPVOutput(t, srv.URL)

	r, err := src.Fetch(context.Background(), token(t))
	require.NoError(t, err)
	assert.Equal(t, "2650", r.Watts)

	want := time.Date(2026, 1, 1, 13, 45, 0, 0, time.Local)
	require.NotNil(t, r.Timestamp)
	assert.Equal(t, float64(want.Unix()), *r.Timestamp)
	assert.Empty(t, warnings(hook))
}

func TestPVOutputRateLimitWarns(t *testing.T) {
	reset := time.Date(2026, 1, 1, 14, 0, 0, 0, time.Local)
	srv := pvoutputServer(t, http.StatusOK, map[string]string{
		"X-Rate-Limit-Remaining": "3",
		"X-Rate-Limit-Reset":     strconv.FormatInt(reset.Unix(), 10),
	}, "20260101,13:45,12500,2650,7300,450,0.812,24.5,241.3")
	src, hook := newTestPVOutput(t, srv.URL)

	r, err := src.Fetch(context.Background(), token(t))
	require.NoError(t, err)
	assert.Equal(t, "2650", r.Watts)
	assert.Equal(t, []string{"you are 3 requests from the pvoutput api limit; resets at 14:00"}, warnings(hook))
}

func TestPVOutputMissingRateLimitHeaders(t *testing.T) {
	srv := pvoutputServer(t, http.StatusOK, nil, "20260101,13:45,12500,2650,7300,450,0.812,24.5,241.3")
	src, hook := newTestPVOutput(t, srv.URL)

	_, err := src.Fetch(context.Background(), token(t))
	require.NoError(t, err)
	assert.Empty(t, warnings(hook))
}

func TestPVOutputBadTimestampWarns(t *testing.T) {
	srv := pvoutputServer(t, http.StatusOK, nil, "2026-01-01,1345,12500,2650,7300,450,0.812,24.5,241.3")
	src, hook := newTestPVOutput(t, srv.URL)

	r, err := src.Fetch(context.Background(), token(t))
	require.NoError(t, err)
	assert.Nil(t, r.Timestamp)
	assert.Len(t, warnings(hook), 1)
}

func TestPVOutputWrongFieldCount(t *testing.T) {
	srv := pvoutputServer(t, http.StatusOK, nil, "20260101,13:45,12500,2650")
	src, _ := newTestPVOutput(t, srv.URL)

	_, err := src.Fetch(context.Background(), token(t))
	assert.True(t, errors.Is(err, fault.ErrSourceUnavailable))
}

func TestPVOutputHTTPError(t *testing.T) {
	srv := pvoutputServer(t, http.StatusUnauthorized, nil, "Unauthorized 401: Invalid API Key")
	src, _ := newTestPVOutput(t, srv.URL)

	_, err := src.Fetch(context.Background(), token(t))
	require.True(t, errors.Is(err, fault.ErrSourceUnavailable))
	assert.Contains(t, err.Error(), "Invalid API Key")
}

func TestNewPVOutputValidation(t *testing.T) {
	log, _ := test.NewNullLogger()

	var tests = []struct {
		name string
		cfg  PVOutputConfig
	}{
		{"missing key", PVOutputConfig{SysID: "1234"}},
		{"missing sys_id", PVOutputConfig{Key: testPVOutputKey}},
		{"key too short", PVOutputConfig{Key: testPVOutputKey[:39], SysID: "1234"}},
		{"key not hex", PVOutputConfig{Key: "g123456789abcdef0123456789abcdef01234567", SysID: "1234"}},
		{"sys_id not numeric", PVOutputConfig{Key: testPVOutputKey, SysID: "12a4"}},
		{"sys_id too long", PVOutputConfig{Key: testPVOutputKey, SysID: "1234567890"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPVOutput(tt.cfg, http.DefaultClient, log)
			assert.True(t, errors.Is(err, fault.ErrConfiguration))
		})
	}
}

func TestParseStatus(t *testing.T) {
	st, err := parseStatus("20260101,13:45,12500,2650,7300,450,0.812,24.5,241.3")
	require.NoError(t, err)
	assert.Equal(t, pvStatus{
		Date:              "20260101",
		Time:              "13:45",
		EnergyGeneration:  "12500",
		PowerGeneration:   "2650",
		EnergyConsumption: "7300",
		PowerConsumption:  "450",
		Efficiency:        "0.812",
		Temperature:       "24.5",
		Voltage:           "241.3",
	}, st)
}
