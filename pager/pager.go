// Copyright 2025 Sensortable

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package pager is the generic cursor / page walking engine shared by every
// multi-page data source. A single Collect call drives an endpoint-specific
// step function until the server closes the cursor or the accumulated count
// reaches the server-reported total, retrying transient failures with a
// tiered backoff under a bounded budget.
package pager

import (
	"context"
	"time"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"
)

// ErrTransient marks a failure eligible for retrying the same cursor.
// Endpoint step functions wrap network and server errors with it.
var ErrTransient = errors.Reason("transient failure")

// ErrExhausted is returned when the retry budget is consumed without a
// successful page. No partial result is returned along with it.
var ErrExhausted = errors.Reason("retry budget exhausted")

// Cursor is a pagination position. The two wire shapes are Range (the server
// returns the next time window) and Offset (the client advances the page
// number until the total is reached).
type Cursor interface {
	// Done reports that the cursor cannot produce further pages.
	Done() bool
}

// Range is a time-window cursor for range-walking endpoints. The zero value
// is done; a returned next window has Valid set.
type Range struct {
	Start int64 // epoch milliseconds
	End   int64
	Valid bool
}

func (r Range) Done() bool { return !r.Valid }

// Offset is a page-number cursor for offset-walking endpoints. It never
// terminates by itself; Collect stops it when the accumulated record count
// reaches the server-reported total.
type Offset struct {
	Page     int
	PageSize int
}

func (o Offset) Done() bool { return false }

// Next is the cursor of the following page.
func (o Offset) Next() Offset { return Offset{Page: o.Page + 1, PageSize: o.PageSize} }

// Page is the result of a single successful step.
type Page[R any] struct {
	Records []R
	Next    Cursor // nil when the server closed the cursor
	Total   int    // server-reported total count; < 0 when not reported
}

// Step fetches a single page at the given cursor.
type Step[R any] func(ctx context.Context, c Cursor) (*Page[R], error)

// Policy is the retry and backoff configuration of one endpoint family.
type Policy struct {
	MaxAttempts int           // retry budget for consecutive transient failures
	ShortTries  int           // attempts delayed by ShortDelay before LongDelay kicks in
	ShortDelay  time.Duration
	LongDelay   time.Duration
	// Sleep is the cooperative delay; nil uses a context-aware timer sleep.
	Sleep func(ctx context.Context, d time.Duration)
}

// RetryState tracks consecutive transient failures on one cursor. It is
// local to one Collect loop and reset on every successful page.
type RetryState struct {
	Attempt int
}

// Decision of the retry state machine for one failed attempt.
type Decision struct {
	Give  bool          // true: stop retrying, the budget is exhausted
	Delay time.Duration // how long to wait before retrying the same cursor
}

// Decide advances the retry state machine by one failed attempt. The first
// ShortTries failures wait ShortDelay, later ones LongDelay, and once
// Attempt reaches MaxAttempts the fetch gives up.
func (p Policy) Decide(s RetryState) Decision {
	if s.Attempt >= p.MaxAttempts {
		return Decision{Give: true}
	}
	d := p.ShortDelay
	if s.Attempt > p.ShortTries {
		d = p.LongDelay
	}
	return Decision{Delay: d}
}

func (p Policy) sleep(ctx context.Context, d time.Duration) {
	if p.Sleep != nil {
		p.Sleep(ctx, d)
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Collect walks the cursor chain from start and concatenates the records of
// all pages in page order. A step error wrapping ErrTransient is retried on
// the same cursor per the policy; exceeding the budget fails the entire
// fetch with ErrExhausted. Any other step error aborts immediately without
// consuming the retry budget.
func Collect[R any](ctx context.Context, start Cursor, step Step[R], p Policy) ([]R, error) {
	var out []R
	cursor := start
	total := -1
	var retry RetryState
	for pageNum := 1; ; pageNum++ {
		page, err := step(ctx, cursor)
		if err != nil {
			if !errors.Is(err, ErrTransient) {
				return nil, errors.Annotate(err, "fatal failure on page %d", pageNum)
			}
			retry.Attempt++
			d := p.Decide(retry)
			if d.Give {
				return nil, errors.Annotate(ErrExhausted,
					"page %d failed after %d attempts: %s", pageNum, retry.Attempt, err.Error())
			}
			logging.Debugf(ctx, "page %d attempt %d failed, retrying in %s: %s",
				pageNum, retry.Attempt, d.Delay, err.Error())
			p.sleep(ctx, d.Delay)
			pageNum--
			continue
		}
		retry = RetryState{}
		out = append(out, page.Records...)
		if page.Total >= 0 {
			total = page.Total
		}
		logging.Debugf(ctx, "fetched page %d with %d records", pageNum, len(page.Records))
		if total >= 0 && (len(out) >= total || len(page.Records) == 0) {
			return out, nil
		}
		if page.Next == nil || page.Next.Done() {
			return out, nil
		}
		cursor = page.Next
	}
}
