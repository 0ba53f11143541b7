package audit

import (
	"context"
	"sync"

	"github.com/nerrad567/homify-core/internal/device"
)

// recorderQueueSize is the buffer between request goroutines and the writer.
// Entries beyond it are dropped so a slow disk never delays a command.
const recorderQueueSize = 256

// Recorder is a device.Listener that writes one audit entry per control
// attempt. Writes happen on a single background goroutine started by Start.
type Recorder struct {
	repo   Repository
	logger device.Logger
	queue  chan *Entry

	wg sync.WaitGroup
}

// NewRecorder creates a Recorder writing to repo.
func NewRecorder(repo Repository, logger device.Logger) *Recorder {
	return &Recorder{
		repo:   repo,
		logger: logger,
		queue:  make(chan *Entry, recorderQueueSize),
	}
}

// OnStatus is a no-op; status reads are not audited.
func (r *Recorder) OnStatus(context.Context, string, device.Entry) {}

// OnControl enqueues an entry for ev. It never blocks.
func (r *Recorder) OnControl(_ context.Context, ev device.ControlEvent) {
	e := &Entry{
		DeviceID:   ev.DeviceID,
		DeviceName: ev.Name,
		Protocol:   string(ev.Protocol),
		Action:     ActionSetPower,
		Requested:  ev.On,
		Source:     ev.Source,
		Success:    ev.Err == nil,
		CreatedAt:  ev.At,
	}
	if ev.Err != nil {
		e.Error = ev.Err.Error()
	}

	select {
	case r.queue <- e:
	default:
		if r.logger != nil {
			r.logger.Warn("audit queue full, dropping entry", "device_id", ev.DeviceID)
		}
	}
}

// Start launches the writer. It runs until ctx is cancelled, then drains
// what is left in the queue; Wait blocks until that is done.
func (r *Recorder) Start(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.run(ctx)
	}()
}

func (r *Recorder) run(ctx context.Context) {
	for {
		select {
		case e := <-r.queue:
			r.write(e)
		case <-ctx.Done():
			for {
				select {
				case e := <-r.queue:
					r.write(e)
				default:
					return
				}
			}
		}
	}
}

// Wait blocks until the writer started by Start has drained and exited.
func (r *Recorder) Wait() {
	r.wg.Wait()
}

func (r *Recorder) write(e *Entry) {
	// Detached from the request context, which is usually gone by now.
	if err := r.repo.Create(context.Background(), e); err != nil && r.logger != nil {
		r.logger.Error("audit log write failed", "device_id", e.DeviceID, "error", err)
	}
}
