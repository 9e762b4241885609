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

package pager

import (
	"context"
	"testing"
	"time"

	"github.com/stockparfait/errors"

	. "github.com/smartystreets/goconvey/convey"
)

func TestPolicy(t *testing.T) {
	t.Parallel()

	Convey("Decide implements the tiered backoff", t, func() {
		p := Policy{MaxAttempts: 8, ShortTries: 5,
			ShortDelay: 2 * time.Second, LongDelay: 10 * time.Second}

		Convey("short delay for the first failures", func() {
			for a := 1; a <= 5; a++ {
				d := p.Decide(RetryState{Attempt: a})
				So(d.Give, ShouldBeFalse)
				So(d.Delay, ShouldEqual, 2*time.Second)
			}
		})

		Convey("long delay after the fifth failure", func() {
			d := p.Decide(RetryState{Attempt: 6})
			So(d.Give, ShouldBeFalse)
			So(d.Delay, ShouldEqual, 10*time.Second)
		})

		Convey("budget exhaustion", func() {
			So(p.Decide(RetryState{Attempt: 8}).Give, ShouldBeTrue)
		})
	})
}

func noSleep(p Policy) Policy {
	p.Sleep = func(context.Context, time.Duration) {}
	return p
}

func TestCollect(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	policy := noSleep(Policy{MaxAttempts: 8, ShortTries: 5,
		ShortDelay: 2 * time.Second, LongDelay: 4 * time.Second})

	Convey("Collect works", t, func() {
		Convey("range-walking stops on a closed cursor", func() {
			pages := [][]int{{1, 2}, {3, 4}, {5}}
			calls := 0
			step := func(ctx context.Context, c Cursor) (*Page[int], error) {
				calls++
				p := &Page[int]{Records: pages[calls-1], Total: -1}
				if calls < len(pages) {
					p.Next = Range{Start: int64(calls), End: 100, Valid: true}
				}
				return p, nil
			}
			recs, err := Collect(ctx, Range{End: 100, Valid: true}, step, policy)
			So(err, ShouldBeNil)
			So(recs, ShouldResemble, []int{1, 2, 3, 4, 5})
			So(calls, ShouldEqual, 3)
		})

		Convey("offset-walking stops at the reported total", func() {
			calls := 0
			step := func(ctx context.Context, c Cursor) (*Page[string], error) {
				calls++
				o := c.(Offset)
				So(o.Page, ShouldEqual, calls)
				return &Page[string]{
					Records: []string{"a", "b"},
					Next:    o.Next(),
					Total:   5,
				}, nil
			}
			recs, err := Collect(ctx, Offset{Page: 1, PageSize: 2}, step, policy)
			So(err, ShouldBeNil)
			So(recs, ShouldResemble, []string{"a", "b", "a", "b", "a", "b"})
			So(calls, ShouldEqual, 3)
		})

		Convey("offset-walking stops on an empty page", func() {
			calls := 0
			step := func(ctx context.Context, c Cursor) (*Page[string], error) {
				calls++
				return &Page[string]{Next: c.(Offset).Next(), Total: 10}, nil
			}
			recs, err := Collect(ctx, Offset{Page: 1, PageSize: 5}, step, policy)
			So(err, ShouldBeNil)
			So(len(recs), ShouldEqual, 0)
			So(calls, ShouldEqual, 1)
		})

		Convey("transient failures retry the same cursor", func() {
			var cursors []int64
			failures := 2
			step := func(ctx context.Context, c Cursor) (*Page[int], error) {
				r := c.(Range)
				cursors = append(cursors, r.Start)
				if failures > 0 {
					failures--
					return nil, errors.Annotate(ErrTransient, "flaky server")
				}
				return &Page[int]{Records: []int{7}, Total: -1}, nil
			}
			recs, err := Collect(ctx, Range{Start: 42, Valid: true}, step, policy)
			So(err, ShouldBeNil)
			So(recs, ShouldResemble, []int{7})
			So(cursors, ShouldResemble, []int64{42, 42, 42})
		})

		Convey("exhausted budget fails after exactly MaxAttempts", func() {
			delays := []time.Duration{}
			p := policy
			p.Sleep = func(_ context.Context, d time.Duration) { delays = append(delays, d) }
			calls := 0
			step := func(ctx context.Context, c Cursor) (*Page[int], error) {
				calls++
				return nil, errors.Annotate(ErrTransient, "still down")
			}
			_, err := Collect(ctx, Range{Valid: true}, step, p)
			So(errors.Is(err, ErrExhausted), ShouldBeTrue)
			So(calls, ShouldEqual, 8)
			// 7 sleeps: 5 short, then long.
			So(delays, ShouldResemble, []time.Duration{
				2 * time.Second, 2 * time.Second, 2 * time.Second,
				2 * time.Second, 2 * time.Second,
				4 * time.Second, 4 * time.Second,
			})
		})

		Convey("fatal failure aborts immediately", func() {
			fatal := errors.Reason("malformed response")
			calls := 0
			step := func(ctx context.Context, c Cursor) (*Page[int], error) {
				calls++
				return nil, fatal
			}
			_, err := Collect(ctx, Range{Valid: true}, step, policy)
			So(err, ShouldNotBeNil)
			So(errors.Is(err, fatal), ShouldBeTrue)
			So(errors.Is(err, ErrExhausted), ShouldBeFalse)
			So(calls, ShouldEqual, 1)
		})

		Convey("success resets the retry budget", func() {
			calls := 0
			step := func(ctx context.Context, c Cursor) (*Page[int], error) {
				calls++
				if calls%2 == 1 && calls < 40 { // fail every other call
					return nil, errors.Annotate(ErrTransient, "blip")
				}
				p := &Page[int]{Records: []int{calls}, Total: -1}
				if calls < 40 {
					p.Next = Range{Start: int64(calls), Valid: true}
				}
				return p, nil
			}
			p := noSleep(Policy{MaxAttempts: 2, ShortTries: 1,
				ShortDelay: time.Second, LongDelay: time.Second})
			recs, err := Collect(ctx, Range{Valid: true}, step, p)
			So(err, ShouldBeNil)
			So(len(recs), ShouldEqual, 20)
		})
	})
}
