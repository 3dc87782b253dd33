package bridge

import (
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/golang/protobuf/proto"

	"github.com/robotalks/sercom.go/pkg/framework"
	"github.com/robotalks/sercom.go/pkg/telemetry"
)

// DefaultReportInterval is how often an unchanged status is published
// again.
const DefaultReportInterval = 5 * time.Second

// Reporter publishes the status of controllers when it changes, and at
// least every Interval.
type Reporter struct {
	Board     string
	Interval  time.Duration
	Publisher StatusPublisher

	lock    sync.Mutex
	sources []Snapshotter
	last    map[string]*telemetry.Status
	sent    map[string]time.Time
}

// NewReporter creates a Reporter.
func NewReporter(board string, pub StatusPublisher, sources ...Snapshotter) *Reporter {
	return &Reporter{
		Board:     board,
		Interval:  DefaultReportInterval,
		Publisher: pub,
		sources:   sources,
		last:      make(map[string]*telemetry.Status),
		sent:      make(map[string]time.Time),
	}
}

// Add adds sources.
func (r *Reporter) Add(sources ...Snapshotter) {
	r.lock.Lock()
	r.sources = append(r.sources, sources...)
	r.lock.Unlock()
}

// Control implements framework.Controller.
func (r *Reporter) Control(cc framework.ControlContext) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	var errs framework.AggregatedError
	now := cc.Time()
	for _, src := range r.sources {
		st := src.Snapshot()
		st.Board = r.Board
		name := src.Name()
		if prev := r.last[name]; prev != nil && proto.Equal(prev, st) &&
			now.Sub(r.sent[name]) < r.Interval {
			continue
		}
		r.last[name] = proto.Clone(st).(*telemetry.Status)
		st.Timestamp = now.UnixNano() / int64(time.Millisecond)
		if err := r.Publisher.PublishStatus(st); err != nil {
			glog.Warningf("report %s: %v", name, err)
			errs.Add(err)
			continue
		}
		r.sent[name] = now
	}
	return errs.Aggregate()
}

// AddToLoop implements framework.LoopAdder.
func (r *Reporter) AddToLoop(loop *framework.Loop) {
	loop.AddController(framework.PrLvReport, r)
}
