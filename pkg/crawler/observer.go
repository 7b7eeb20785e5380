package crawler

import (
	"sync"

	"github.com/Ruscigno/marketsum/model"
)

// Observer receives crawl notifications. Calls come from the crawl goroutine,
// in order, and must not block for long.
type Observer interface {
	Progress(percent int)
	Error(message string)
	Records(records []model.Record)
	Finished(count int, elapsedSeconds float64)
}

// NopObserver ignores every notification.
type NopObserver struct{}

func (NopObserver) Progress(int) {}
func (NopObserver) Error(string) {}
func (NopObserver) Records([]model.Record) {}
func (NopObserver) Finished(int, float64) {}

// Completion is the final notification of a crawl.
type Completion struct {
	Count          int
	ElapsedSeconds float64
}

// ChannelObserver forwards notifications to buffered channels. Each channel is
// sized so a crawl of pageCount pages never blocks on a slow consumer.
type ChannelObserver struct {
	ProgressC chan int
	ErrorC    chan string
	RecordsC  chan []model.Record
	FinishedC chan Completion

	closeOnce sync.Once
}

func NewChannelObserver(pageCount int) *ChannelObserver {
	if pageCount < 1 {
		pageCount = 1
	}
	return &ChannelObserver{
		ProgressC: make(chan int, pageCount),
		ErrorC:    make(chan string, pageCount),
		RecordsC:  make(chan []model.Record, 1),
		FinishedC: make(chan Completion, 1),
	}
}

func (o *ChannelObserver) Progress(percent int) { o.ProgressC <- percent }
func (o *ChannelObserver) Error(message string) { o.ErrorC <- message }

func (o *ChannelObserver) Records(records []model.Record) { o.RecordsC <- records }

// Finished delivers the completion and closes every channel.
func (o *ChannelObserver) Finished(count int, elapsedSeconds float64) {
	o.FinishedC <- Completion{Count: count, ElapsedSeconds: elapsedSeconds}
	o.closeOnce.Do(func() {
		close(o.ProgressC)
		close(o.ErrorC)
		close(o.RecordsC)
		close(o.FinishedC)
	})
}

// FuncObserver adapts plain functions. Nil fields are skipped.
type FuncObserver struct {
	OnProgress func(int)
	OnError    func(string)
	OnRecords  func([]model.Record)
	OnFinished func(int, float64)
}

func (f FuncObserver) Progress(p int) {
	if f.OnProgress != nil {
		f.OnProgress(p)
	}
}

func (f FuncObserver) Error(msg string) {
	if f.OnError != nil {
		f.OnError(msg)
	}
}

func (f FuncObserver) Records(r []model.Record) {
	if f.OnRecords != nil {
		f.OnRecords(r)
	}
}

func (f FuncObserver) Finished(count int, elapsed float64) {
	if f.OnFinished != nil {
		f.OnFinished(count, elapsed)
	}
}
