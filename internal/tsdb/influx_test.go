package tsdb

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lox/iotdash/internal/models"
)

const dht22CSV = "#datatype,string,long,dateTime:RFC3339,string,double\r\n" +
	"#group,false,false,false,true,false\r\n" +
	"#default,_result,,,,\r\n" +
	",result,table,_time,_field,_value\r\n" +
	",,0,2025-03-01T10:00:00Z,temp_dht,22\r\n" +
	",,0,2025-03-01T10:01:00Z,temp_dht,23\r\n" +
	",,1,2025-03-01T10:00:00Z,hum_dht,55\r\n" +
	"\r\n"

func testRange() models.DateRange {
	return models.DateRange{
		Start: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func newTestClient(t *testing.T, h http.Handler, timeout time.Duration) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := NewClient(Config{URL: srv.URL, Token: "tok", Org: "org", Bucket: "sensors", Timeout: timeout})
	t.Cleanup(c.Close)
	return c
}

func TestClient_Query(t *testing.T) {
	var gotQuery, gotAuth string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/query" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		gotAuth = r.Header.Get("Authorization")
		var body struct {
			Query string `json:"query"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		gotQuery = body.Query

		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Write([]byte(dht22CSV))
	}), 5*time.Second)

	readings, err := c.Query(context.Background(), "DHT22", []string{"temp_dht", "hum_dht"}, testRange())
	if err != nil {
		t.Fatalf("Query: %v", err)
	}

	if gotAuth != "Token tok" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if !strings.Contains(gotQuery, `r["_field"] == "temp_dht" or r["_field"] == "hum_dht"`) {
		t.Errorf("query missing field filter:\n%s", gotQuery)
	}

	if len(readings) != 3 {
		t.Fatalf("len(readings) = %d, want 3", len(readings))
	}
	if readings[0].Field != "temp_dht" || readings[0].Value != 22 {
		t.Errorf("readings[0] = %+v", readings[0])
	}
	if readings[2].Field != "hum_dht" || readings[2].Value != 55 {
		t.Errorf("readings[2] = %+v", readings[2])
	}
	want := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	if !readings[0].Time.Equal(want) {
		t.Errorf("readings[0].Time = %v, want %v", readings[0].Time, want)
	}
}

func TestClient_QueryUnauthorized(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"code":"unauthorized","message":"unauthorized access"}`))
	}), 5*time.Second)

	_, err := c.Query(context.Background(), "DHT22", []string{"temp_dht"}, testRange())
	var dse *DataSourceError
	if !errors.As(err, &dse) {
		t.Fatalf("err = %v, want DataSourceError", err)
	}
	if dse.Measurement != "DHT22" || dse.Op != "query" {
		t.Errorf("DataSourceError = %+v", dse)
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("hits = %d, want 1 (auth failures are not retried)", n)
	}
}

func TestClient_QueryRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Write([]byte(dht22CSV))
	}), 5*time.Second)

	readings, err := c.Query(context.Background(), "DHT22", []string{"temp_dht", "hum_dht"}, testRange())
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(readings) != 3 {
		t.Errorf("len(readings) = %d, want 3", len(readings))
	}
	if n := hits.Load(); n != 2 {
		t.Errorf("hits = %d, want 2", n)
	}
}

func TestClient_QueryTimeout(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}), 200*time.Millisecond)

	start := time.Now()
	_, err := c.Query(context.Background(), "MPU6050", []string{"acc_x"}, testRange())
	var dse *DataSourceError
	if !errors.As(err, &dse) {
		t.Fatalf("err = %v, want DataSourceError", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("query took %v, want it bounded by the timeout", elapsed)
	}
}

func TestClient_InvertedRangeSkipsStore(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request to %s", r.URL.Path)
		w.WriteHeader(http.StatusBadRequest)
	}), 5*time.Second)

	rng := models.DateRange{
		Start: time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	readings, err := c.Query(context.Background(), "DHT22", []string{"temp_dht"}, rng)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if readings == nil || len(readings) != 0 {
		t.Errorf("readings = %v, want empty slice", readings)
	}
}

func TestClient_QueryNoFields(t *testing.T) {
	c := NewClient(Config{URL: "http://127.0.0.1:1", Token: "t", Org: "o", Bucket: "b"})
	defer c.Close()

	_, err := c.Query(context.Background(), "DHT22", nil, testRange())
	var dse *DataSourceError
	if !errors.As(err, &dse) {
		t.Fatalf("err = %v, want DataSourceError", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	if err := (Config{URL: "u", Token: "t", Org: "o"}).Validate(); err == nil {
		t.Error("expected error when bucket is missing")
	}
	if err := (Config{URL: "u", Token: "t", Org: "o", Bucket: "b"}).Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestClient_QueryHTMLErrorPage(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("<html><body><h1>403 Forbidden</h1><hr><center>nginx</center></body></html>"))
	}), 5*time.Second)

	_, err := c.Query(context.Background(), "DHT22", []string{"temp_dht"}, testRange())
	if err == nil {
		t.Fatal("expected error")
	}
	if msg := err.Error(); strings.Contains(msg, "<h1>") || strings.Contains(msg, "<center>") {
		t.Errorf("err = %q, want HTML markup stripped", msg)
	}
}
