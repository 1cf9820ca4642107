package domain

import (
	"context"
	"time"
)

// IngestJobCause описывает источник задачи на сбор.
type IngestJobCause string

const (
	// IngestCauseManual — сбор запрошен вручную.
	IngestCauseManual IngestJobCause = "manual"
	// IngestCauseScheduled — сбор поставлен планировщиком.
	IngestCauseScheduled IngestJobCause = "scheduled"
)

// IngestJob — задача на прогон одного хэштега.
type IngestJob struct {
	ID              string         `json:"job_id"`
	HashtagID       int64          `json:"hashtag_id"`
	Endpoint        EndpointClass  `json:"endpoint"`
	WindowStart     *time.Time     `json:"window_start,omitempty"`
	WindowEnd       *time.Time     `json:"window_end,omitempty"`
	ExpandReplies   bool           `json:"expand_replies,omitempty"`
	IncludeRetweets bool           `json:"include_retweets,omitempty"`
	Attempt         int            `json:"attempt,omitempty"`
	RequestedAt     time.Time      `json:"requested_at"`
	Cause           IngestJobCause `json:"cause"`
}

// Window возвращает окно времени задачи, если оно задано целиком.
func (j IngestJob) Window() *TimeWindow {
	if j.WindowStart == nil || j.WindowEnd == nil {
		return nil
	}
	return &TimeWindow{Start: *j.WindowStart, End: *j.WindowEnd}
}

// IngestAckFunc подтверждает обработку или возвращает задачу в очередь.
type IngestAckFunc func(success bool) error

// IngestQueue — очередь задач между планировщиком и воркером.
type IngestQueue interface {
	Enqueue(ctx context.Context, job IngestJob) error
	Receive(ctx context.Context) (IngestJob, IngestAckFunc, error)
}
