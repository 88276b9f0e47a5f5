package ui

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	broadcast "github.com/fd1az/spread-monitor/business/broadcast/domain"
	"github.com/fd1az/spread-monitor/business/pricing/domain"
)

// FeedID identifies the in-process dashboard subscriber.
const FeedID = "tui"

// Feed is an in-process subscriber that turns hub envelopes into
// SpreadsMsg values. Send never blocks; frames beyond the buffer are dropped.
type Feed struct {
	frames  chan []byte
	dropped atomic.Int64
	now     func() time.Time
}

// NewFeed creates a feed with room for size pending frames.
func NewFeed(size int) *Feed {
	if size <= 0 {
		size = 16
	}
	return &Feed{
		frames: make(chan []byte, size),
		now:    time.Now,
	}
}

// ID implements the subscriber interface.
func (f *Feed) ID() string { return FeedID }

// Send queues one frame.
func (f *Feed) Send(msg []byte) bool {
	select {
	case f.frames <- msg:
		return true
	default:
		f.dropped.Add(1)
		return false
	}
}

// Dropped returns how many frames were discarded.
func (f *Feed) Dropped() int64 {
	return f.dropped.Load()
}

// Run decodes queued frames and hands them to send until ctx is done.
func (f *Feed) Run(ctx context.Context, send func(tea.Msg)) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-f.frames:
			if msg, ok := f.decode(frame); ok {
				send(msg)
			}
		}
	}
}

func (f *Feed) decode(frame []byte) (SpreadsMsg, bool) {
	var env struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(frame, &env); err != nil {
		return SpreadsMsg{}, false
	}

	msg := SpreadsMsg{At: f.now()}
	switch env.Type {
	case broadcast.EnvelopeAll:
		if err := json.Unmarshal(env.Data, &msg.Records); err != nil {
			return SpreadsMsg{}, false
		}
	case broadcast.EnvelopeSingle:
		var rec domain.SpreadRecord
		if err := json.Unmarshal(env.Data, &rec); err != nil {
			return SpreadsMsg{}, false
		}
		msg.Records = []domain.SpreadRecord{rec}
	default:
		return SpreadsMsg{}, false
	}
	return msg, true
}
