package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/nerrad567/homify-core/internal/device"
	"github.com/nerrad567/homify-core/internal/infrastructure/database"
)

const auditSchema = `
CREATE TABLE audit_logs (
    id          TEXT PRIMARY KEY,
    device_id   TEXT NOT NULL,
    device_name TEXT NOT NULL,
    protocol    TEXT NOT NULL,
    action      TEXT NOT NULL,
    requested   INTEGER NOT NULL,
    source      TEXT NOT NULL,
    success     INTEGER NOT NULL,
    error       TEXT NOT NULL DEFAULT '',
    created_at  TEXT NOT NULL
);`

func setupRepo(t *testing.T) *SQLiteRepository {
	t.Helper()

	origFS, origDir := database.MigrationsFS, database.MigrationsDir
	t.Cleanup(func() { database.MigrationsFS, database.MigrationsDir = origFS, origDir })
	database.MigrationsFS = fstest.MapFS{"0001_audit_logs.up.sql": {Data: []byte(auditSchema)}}
	database.MigrationsDir = "."

	db, err := database.Open(database.Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating: %v", err)
	}
	return NewSQLiteRepository(db.DB)
}

func TestSQLiteRepository_CreateAndList(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	entries := []*Entry{
		{DeviceID: "main_outlet", DeviceName: "Smart Plug (Tapo)", Protocol: "tapo", Requested: true, Source: "api", Success: true, CreatedAt: base},
		{DeviceID: "main_outlet", DeviceName: "Smart Plug (Tapo)", Protocol: "tapo", Requested: false, Source: "mqtt", Success: false, Error: "timeout", CreatedAt: base.Add(time.Minute)},
		{DeviceID: "kitchen_light", DeviceName: "Kitchen Light", Protocol: "mock", Requested: true, Source: "api", Success: true, CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, e := range entries {
		if err := repo.Create(ctx, e); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if e.ID == "" || e.Action != ActionSetPower {
			t.Errorf("Create() did not fill defaults: %+v", e)
		}
	}

	all, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if all.Total != 3 || len(all.Logs) != 3 {
		t.Fatalf("List() total=%d len=%d, want 3", all.Total, len(all.Logs))
	}
	if all.Logs[0].DeviceID != "kitchen_light" {
		t.Errorf("first entry = %s, want most recent (kitchen_light)", all.Logs[0].DeviceID)
	}
	if all.Limit != defaultLimit {
		t.Errorf("Limit = %d, want %d", all.Limit, defaultLimit)
	}

	failed := all.Logs[1]
	if failed.Success || failed.Error != "timeout" || failed.Requested || failed.Source != "mqtt" {
		t.Errorf("failed entry round trip = %+v", failed)
	}
	if !failed.CreatedAt.Equal(base.Add(time.Minute)) {
		t.Errorf("CreatedAt = %v, want %v", failed.CreatedAt, base.Add(time.Minute))
	}

	byDevice, err := repo.List(ctx, Filter{DeviceID: "main_outlet", Source: "api"})
	if err != nil {
		t.Fatalf("List(filter) error = %v", err)
	}
	if byDevice.Total != 1 || byDevice.Logs[0].Source != "api" {
		t.Errorf("List(filter) = %+v", byDevice)
	}
}

func TestSQLiteRepository_Pagination(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	for i := range 5 {
		if err := repo.Create(ctx, &Entry{
			DeviceID: fmt.Sprintf("d%d", i), DeviceName: "D", Protocol: "mock",
			Source: "api", Success: true, CreatedAt: base.Add(time.Duration(i) * time.Second),
		}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	page, err := repo.List(ctx, Filter{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if page.Total != 5 || len(page.Logs) != 2 {
		t.Fatalf("page total=%d len=%d", page.Total, len(page.Logs))
	}
	if page.Logs[0].DeviceID != "d2" || page.Logs[1].DeviceID != "d1" {
		t.Errorf("page = %s, %s; want d2, d1", page.Logs[0].DeviceID, page.Logs[1].DeviceID)
	}
}

func TestClampFilter(t *testing.T) {
	tests := []struct {
		in   Filter
		want Filter
	}{
		{Filter{}, Filter{Limit: 50}},
		{Filter{Limit: 1000, Offset: -3}, Filter{Limit: 200}},
		{Filter{Limit: 10, Offset: 5}, Filter{Limit: 10, Offset: 5}},
	}
	for _, tt := range tests {
		if got := clampFilter(tt.in); got != tt.want {
			t.Errorf("clampFilter(%+v) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

// memRepo records created entries.
type memRepo struct {
	mu      sync.Mutex
	entries []Entry
	err     error
}

func (m *memRepo) Create(_ context.Context, e *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, *e)
	return nil
}

func (m *memRepo) List(context.Context, Filter) (*ListResult, error) {
	return &ListResult{}, nil
}

func TestRecorder_WritesControlEvents(t *testing.T) {
	repo := &memRepo{}
	rec := NewRecorder(repo, nil)
	var _ device.Listener = rec

	ctx, cancel := context.WithCancel(context.Background())

	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	rec.OnStatus(ctx, "main_outlet", device.Entry{Name: "ignored"})
	rec.OnControl(ctx, device.ControlEvent{
		DeviceID: "main_outlet", Name: "Smart Plug (Tapo)", Protocol: device.ProtocolTapo,
		On: true, Source: device.SourceAPI, At: at,
	})
	rec.OnControl(ctx, device.ControlEvent{
		DeviceID: "main_outlet", Name: "Smart Plug (Tapo)", Protocol: device.ProtocolTapo,
		On: false, Source: device.SourceMQTT, At: at, Err: errors.New("device: communication failure"),
	})

	// Entries queued before Start are drained in order on shutdown.
	rec.Start(ctx)
	cancel()
	rec.Wait()

	repo.mu.Lock()
	defer repo.mu.Unlock()
	if len(repo.entries) != 2 {
		t.Fatalf("recorded %d entries, want 2", len(repo.entries))
	}
	ok, failed := repo.entries[0], repo.entries[1]
	if !ok.Success || !ok.Requested || ok.Source != "api" || ok.Protocol != "tapo" || !ok.CreatedAt.Equal(at) {
		t.Errorf("success entry = %+v", ok)
	}
	if failed.Success || failed.Error == "" || failed.Source != "mqtt" {
		t.Errorf("failure entry = %+v", failed)
	}
}

func TestRecorder_DropsWhenFull(t *testing.T) {
	repo := &memRepo{}
	rec := NewRecorder(repo, nil)

	for range recorderQueueSize + 10 {
		rec.OnControl(context.Background(), device.ControlEvent{DeviceID: "x"})
	}
	if got := len(rec.queue); got != recorderQueueSize {
		t.Errorf("queue length = %d, want %d", got, recorderQueueSize)
	}
}
