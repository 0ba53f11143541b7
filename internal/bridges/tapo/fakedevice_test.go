package tapo

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
)

// fakeDevice is an in-process Tapo device speaking KLAP.
type fakeDevice struct {
	t    *testing.T
	auth []byte

	mu          sync.Mutex
	on          bool
	local       []byte
	remote      []byte
	sess        *session
	cookie      string
	handshakes  int
	requests    int
	lastSeq     int32
	errorCode   int
	rejectNext  int // HTTP status to return once for the next request
	wrongHash   bool
	timeoutSecs string
}

func newFakeDevice(t *testing.T, username, password string) (*fakeDevice, *httptest.Server) {
	t.Helper()
	d := &fakeDevice{t: t, auth: authHash(username, password), timeoutSecs: "86400"}
	srv := httptest.NewServer(d)
	t.Cleanup(srv.Close)
	return d, srv
}

func (d *fakeDevice) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body) //nolint:errcheck // Test server

	d.mu.Lock()
	defer d.mu.Unlock()

	switch r.URL.Path {
	case "/app/handshake1":
		d.handshake1(w, body)
	case "/app/handshake2":
		d.handshake2(w, r, body)
	case "/app/request":
		d.request(w, r, body)
	default:
		http.NotFound(w, r)
	}
}

func (d *fakeDevice) handshake1(w http.ResponseWriter, local []byte) {
	d.handshakes++
	if len(local) != seedSize {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	d.local = local
	d.remote = make([]byte, seedSize)
	_, _ = rand.Read(d.remote) //nolint:errcheck // Test server
	d.cookie = "sess-" + strconv.Itoa(d.handshakes)
	d.sess = nil

	hash := serverHash(d.local, d.remote, d.auth)
	if d.wrongHash {
		hash = serverHash(d.local, d.remote, authHash("someone", "else"))
	}

	// Real devices send both values in a single header.
	w.Header().Add("Set-Cookie", sessionCookie+"="+d.cookie+";"+timeoutCookie+"="+d.timeoutSecs)
	_, _ = w.Write(append(bytes.Clone(d.remote), hash...)) //nolint:errcheck // Test server
}

func (d *fakeDevice) handshake2(w http.ResponseWriter, r *http.Request, body []byte) {
	if !d.hasCookie(r) || !bytes.Equal(body, clientHash(d.local, d.remote, d.auth)) {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	sess, err := newSession(d.local, d.remote, d.auth)
	if err != nil {
		d.t.Errorf("fake device: newSession: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	d.sess = sess
	w.WriteHeader(http.StatusOK)
}

func (d *fakeDevice) request(w http.ResponseWriter, r *http.Request, body []byte) {
	d.requests++
	if d.rejectNext != 0 {
		w.WriteHeader(d.rejectNext)
		d.rejectNext = 0
		return
	}
	if d.sess == nil || !d.hasCookie(r) {
		w.WriteHeader(http.StatusForbidden)
		return
	}

	seq64, err := strconv.ParseInt(r.URL.Query().Get("seq"), 10, 32)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	seq := int32(seq64)
	d.lastSeq = seq

	plain, err := d.sess.open(seq, body)
	if err != nil || !bytes.Equal(d.sess.seal(seq, plain), body) {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var req struct {
		Method string         `json:"method"`
		Params map[string]any `json:"params"`
	}
	if err := json.Unmarshal(plain, &req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	reply := map[string]any{"error_code": d.errorCode}
	if d.errorCode == 0 {
		switch req.Method {
		case "get_device_info":
			reply["result"] = map[string]any{
				"device_id": "8022ABCDEF",
				"model":     "P110",
				"device_on": d.on,
				"nickname":  "U21hcnQgUGx1Zw==",
			}
		case "set_device_info":
			if on, ok := req.Params["device_on"].(bool); ok {
				d.on = on
			}
		default:
			reply["error_code"] = -1002
		}
	}

	out, _ := json.Marshal(reply) //nolint:errcheck // Static shape
	_, _ = w.Write(d.sess.seal(seq, out)) //nolint:errcheck // Test server
}

func (d *fakeDevice) hasCookie(r *http.Request) bool {
	ck, err := r.Cookie(sessionCookie)
	return err == nil && ck.Value == d.cookie
}

func (d *fakeDevice) set(fn func(d *fakeDevice)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(d)
}

// deviceStats is a copy of the counters a test inspects.
type deviceStats struct {
	on         bool
	handshakes int
	requests   int
	lastSeq    int32
}

func (d *fakeDevice) stats() deviceStats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return deviceStats{on: d.on, handshakes: d.handshakes, requests: d.requests, lastSeq: d.lastSeq}
}
