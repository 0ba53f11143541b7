package tapo

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestClient_HandshakeAndCall(t *testing.T) {
	dev, srv := newFakeDevice(t, "user@example.com", "hunter2")
	client := NewClient(srv.Client(), srv.URL, "user@example.com", "hunter2")
	ctx := context.Background()

	if err := client.Handshake(ctx); err != nil {
		t.Fatalf("Handshake() error = %v", err)
	}

	if err := client.SetDeviceOn(ctx, true); err != nil {
		t.Fatalf("SetDeviceOn(true) error = %v", err)
	}
	info, err := client.GetDeviceInfo(ctx)
	if err != nil {
		t.Fatalf("GetDeviceInfo() error = %v", err)
	}
	if !info.On || info.Model != "P110" {
		t.Errorf("GetDeviceInfo() = %+v, want on P110", info)
	}

	st := dev.stats()
	if st.handshakes != 1 {
		t.Errorf("handshakes = %d, want 1 (session reused)", st.handshakes)
	}
	if st.requests != 2 {
		t.Errorf("requests = %d, want 2", st.requests)
	}
}

func TestClient_SequenceAdvances(t *testing.T) {
	dev, srv := newFakeDevice(t, "u", "p")
	client := NewClient(srv.Client(), srv.URL, "u", "p")
	ctx := context.Background()

	if _, err := client.GetDeviceInfo(ctx); err != nil {
		t.Fatalf("first call error = %v", err)
	}
	first := dev.stats().lastSeq

	if _, err := client.GetDeviceInfo(ctx); err != nil {
		t.Fatalf("second call error = %v", err)
	}
	if second := dev.stats().lastSeq; second != first+1 {
		t.Errorf("seq went %d -> %d, want +1", first, second)
	}
}

func TestClient_WrongCredentials(t *testing.T) {
	_, srv := newFakeDevice(t, "user@example.com", "right")
	client := NewClient(srv.Client(), srv.URL, "user@example.com", "wrong")

	err := client.Handshake(context.Background())
	if !errors.Is(err, ErrAuthFailed) {
		t.Errorf("Handshake() error = %v, want ErrAuthFailed", err)
	}
}

func TestClient_ServerHashMismatch(t *testing.T) {
	dev, srv := newFakeDevice(t, "u", "p")
	dev.set(func(d *fakeDevice) { d.wrongHash = true })

	client := NewClient(srv.Client(), srv.URL, "u", "p")
	if err := client.Handshake(context.Background()); !errors.Is(err, ErrAuthFailed) {
		t.Errorf("Handshake() error = %v, want ErrAuthFailed", err)
	}
}

func TestClient_Unreachable(t *testing.T) {
	_, srv := newFakeDevice(t, "u", "p")
	url := srv.URL
	srv.Close()

	client := NewClient(srv.Client(), url, "u", "p")
	err := client.Handshake(context.Background())
	if !errors.Is(err, ErrHandshakeFailed) {
		t.Errorf("Handshake() error = %v, want ErrHandshakeFailed", err)
	}
}

func TestClient_DeviceErrorCode(t *testing.T) {
	dev, srv := newFakeDevice(t, "u", "p")
	client := NewClient(srv.Client(), srv.URL, "u", "p")
	dev.set(func(d *fakeDevice) { d.errorCode = -1501 })

	_, err := client.GetDeviceInfo(context.Background())
	if !errors.Is(err, ErrDeviceError) {
		t.Errorf("GetDeviceInfo() error = %v, want ErrDeviceError", err)
	}
}

func TestClient_RejectedSessionRenewsOnNextCall(t *testing.T) {
	dev, srv := newFakeDevice(t, "u", "p")
	client := NewClient(srv.Client(), srv.URL, "u", "p")
	ctx := context.Background()

	if _, err := client.GetDeviceInfo(ctx); err != nil {
		t.Fatalf("GetDeviceInfo() error = %v", err)
	}

	dev.set(func(d *fakeDevice) { d.rejectNext = http.StatusForbidden })

	if _, err := client.GetDeviceInfo(ctx); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("GetDeviceInfo() error = %v, want ErrSessionExpired", err)
	}
	if got := dev.stats().handshakes; got != 1 {
		t.Errorf("handshakes after rejection = %d, want 1 (no retry)", got)
	}

	if _, err := client.GetDeviceInfo(ctx); err != nil {
		t.Fatalf("GetDeviceInfo() after renewal error = %v", err)
	}
	if got := dev.stats().handshakes; got != 2 {
		t.Errorf("handshakes = %d, want 2", got)
	}
}

func TestClient_ExpiredSessionRenews(t *testing.T) {
	dev, srv := newFakeDevice(t, "u", "p")
	dev.set(func(d *fakeDevice) { d.timeoutSecs = "3600" })

	client := NewClient(srv.Client(), srv.URL, "u", "p")
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	client.now = func() time.Time { return now }
	ctx := context.Background()

	if _, err := client.GetDeviceInfo(ctx); err != nil {
		t.Fatalf("GetDeviceInfo() error = %v", err)
	}

	now = now.Add(30 * time.Minute)
	if _, err := client.GetDeviceInfo(ctx); err != nil {
		t.Fatalf("GetDeviceInfo() error = %v", err)
	}
	if got := dev.stats().handshakes; got != 1 {
		t.Errorf("handshakes within session = %d, want 1", got)
	}

	now = now.Add(time.Hour)
	if _, err := client.GetDeviceInfo(ctx); err != nil {
		t.Fatalf("GetDeviceInfo() after expiry error = %v", err)
	}
	if got := dev.stats().handshakes; got != 2 {
		t.Errorf("handshakes after expiry = %d, want 2", got)
	}
}

func TestNewClient_Address(t *testing.T) {
	tests := []struct {
		address string
		wantURL string
	}{
		{"192.168.1.20", "http://192.168.1.20"},
		{"192.168.1.20:8080", "http://192.168.1.20:8080"},
		{"http://plug.local/", "http://plug.local"},
	}
	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			c := NewClient(nil, tt.address, "u", "p")
			if c.baseURL != tt.wantURL {
				t.Errorf("baseURL = %q, want %q", c.baseURL, tt.wantURL)
			}
			if c.Address() != tt.address {
				t.Errorf("Address() = %q, want %q", c.Address(), tt.address)
			}
		})
	}
}

func TestSessionFromCookies(t *testing.T) {
	id, timeout := sessionFromCookies([]*http.Cookie{
		{Name: "TP_SESSIONID", Value: "abc"},
		{Name: "TIMEOUT", Value: "1440"},
	})
	if id != "abc" || timeout != 1440*time.Second {
		t.Errorf("sessionFromCookies() = (%q, %v)", id, timeout)
	}

	_, timeout = sessionFromCookies([]*http.Cookie{{Name: "TIMEOUT", Value: "nope"}})
	if timeout != defaultSessionTimeout {
		t.Errorf("timeout with bad cookie = %v, want default", timeout)
	}
}

func TestSessionFromCookies_SingleHeader(t *testing.T) {
	tests := []struct {
		name        string
		header      string
		wantID      string
		wantTimeout time.Duration
	}{
		{"device format", "TP_SESSIONID=ABC123;TIMEOUT=86400", "ABC123", 86400 * time.Second},
		{"spaced", "TP_SESSIONID=ABC123; TIMEOUT=1440", "ABC123", 1440 * time.Second},
		{"no timeout", "TP_SESSIONID=ABC123", "ABC123", defaultSessionTimeout},
		{"bad timeout", "TP_SESSIONID=ABC123;TIMEOUT=soon", "ABC123", defaultSessionTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &http.Response{Header: http.Header{"Set-Cookie": {tt.header}}}
			id, timeout := sessionFromCookies(resp.Cookies())
			if id != tt.wantID || timeout != tt.wantTimeout {
				t.Errorf("sessionFromCookies(%q) = (%q, %v), want (%q, %v)",
					tt.header, id, timeout, tt.wantID, tt.wantTimeout)
			}
		})
	}
}
