package events

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/anacrolix/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEngine() *Engine {
	return NewEngine("uuid:12345678-1234-1234-1234-123456789abc", log.Default)
}

func TestSubscribeUnknownPath(t *testing.T) {
	e := testEngine()
	cb, _ := url.Parse("http://127.0.0.1:9/cb")
	_, err := e.Subscribe("/evt/Bogus", cb, 0)
	assert.Error(t, err)
}

func TestSubscribeAndRenew(t *testing.T) {
	e := testEngine()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
	}))
	defer srv.Close()

	cbURL, err := url.Parse(srv.URL + "/cb")
	require.NoError(t, err)

	sub, err := e.Subscribe("/evt/ContentDir", cbURL, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, sub.SID)
	assert.Equal(t, ContentDirectory, sub.Service)
	assert.WithinDuration(t, time.Now().Add(300*time.Second), sub.Expiry, 2*time.Second)

	require.NoError(t, e.Renew(sub.SID, 60))
	assert.WithinDuration(t, time.Now().Add(60*time.Second), sub.Expiry, 2*time.Second)

	assert.Error(t, e.Renew("uuid:does-not-exist", 60))
}

func TestUnsubscribeRemovesSubscription(t *testing.T) {
	e := testEngine()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
	}))
	defer srv.Close()
	cbURL, _ := url.Parse(srv.URL + "/cb")

	sub, err := e.Subscribe("/evt/ConnectionMgr", cbURL, 30)
	require.NoError(t, err)

	require.NoError(t, e.Unsubscribe(sub.SID))
	assert.Error(t, e.Unsubscribe(sub.SID))
}

func TestSweepRemovesExpired(t *testing.T) {
	e := testEngine()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
	}))
	defer srv.Close()
	cbURL, _ := url.Parse(srv.URL + "/cb")

	sub, err := e.Subscribe("/evt/ContentDir", cbURL, 1)
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	for i := 0; i < 20; i++ {
		sub.mu.Lock()
		_, inFlight := sub.notify.Get()
		sub.mu.Unlock()
		if !inFlight {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	sub.mu.Lock()
	sub.Expiry = time.Now().Add(-time.Second)
	sub.mu.Unlock()

	e.Sweep()
	assert.Error(t, e.Renew(sub.SID, 10))
}

func TestParseCallback(t *testing.T) {
	u, err := ParseCallback("<http://1.2.3.4:9999/cb>")
	require.NoError(t, err)
	assert.Equal(t, "1.2.3.4:9999", u.Host)
	assert.Equal(t, "/cb", u.Path)
}

func TestNotifyBodyContentDirectory(t *testing.T) {
	e := testEngine()
	body := e.notifyBody(ContentDirectory)
	assert.Contains(t, body, "<SystemUpdateID>0</SystemUpdateID>")
}

func TestNotifyBodyConnectionManager(t *testing.T) {
	e := testEngine()
	body := e.notifyBody(ConnectionManager)
	assert.Contains(t, body, "<CurrentConnectionIDs>0</CurrentConnectionIDs>")
	assert.Contains(t, body, "SourceProtocolInfo")
}

func TestFirstNotifyCarriesSeqZero(t *testing.T) {
	e := testEngine()
	seqs := make(chan string, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seqs <- r.Header.Get("SEQ")
		w.WriteHeader(200)
	}))
	defer srv.Close()

	cbURL, err := url.Parse(srv.URL + "/cb")
	require.NoError(t, err)

	sub, err := e.Subscribe("/evt/ContentDir", cbURL, 0)
	require.NoError(t, err)

	select {
	case seq := <-seqs:
		assert.Equal(t, "0", seq)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for initial NOTIFY")
	}

	e.startNotify(sub)

	select {
	case seq := <-seqs:
		assert.Equal(t, "1", seq)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for second NOTIFY")
	}
}
