// Copyright © 2016 Abcum Ltd
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package connection

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/abcum/qld/protoerr"
	"github.com/abcum/qld/resultbuilder"
)

func noopFactory() (Connection, error) {
	return &fakeConn{}, nil
}

func TestThrottlerPressureEscalation(t *testing.T) {

	Convey("Given a throttler with N=100 permits and M=1,000,000 bytes", t, func() {
		resultbuilder.ResetResponseSize()
		defer resultbuilder.ResetResponseSize()

		th := NewThrottler(100, 0, 1_000_000, noopFactory)

		Convey("At a gauge of 300,000 (medium pressure) unitsToTake is 4", func() {
			resultbuilder.AddResponseSize(300_000)
			So(th.unitsToTake(), ShouldEqual, 4)
		})

		Convey("At a gauge of 600,000 (high pressure) unitsToTake is 16", func() {
			resultbuilder.AddResponseSize(600_000)
			So(th.unitsToTake(), ShouldEqual, 16)
		})

		Convey("A Create call under medium pressure is admitted for 4 units", func() {
			resultbuilder.AddResponseSize(300_000)
			tracked, err := th.Create(context.Background())
			So(err, ShouldBeNil)
			So(tracked.units, ShouldEqual, 4)
		})

		Convey("A Create call under high pressure is admitted for 16 units", func() {
			resultbuilder.AddResponseSize(600_000)
			tracked, err := th.Create(context.Background())
			So(err, ShouldBeNil)
			So(tracked.units, ShouldEqual, 16)
		})
	})
}

func TestThrottlerWaiterCap(t *testing.T) {

	Convey("Given a throttler with exactly 1 permit and no timeout", t, func() {
		resultbuilder.ResetResponseSize()
		defer resultbuilder.ResetResponseSize()

		th := NewThrottler(1, 0, 0, noopFactory)

		held, err := th.Create(context.Background())
		So(err, ShouldBeNil)

		Convey("130 concurrent Create calls leave at most 128 waiting and reject the rest", func() {
			var tooMany atomic.Int64
			var pending atomic.Int64
			var wg sync.WaitGroup

			for i := 0; i < 130; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
					defer cancel()
					_, err := th.Create(ctx)
					switch err {
					case protoerr.ErrTooManyRequests:
						tooMany.Add(1)
					case protoerr.ErrDbCreateTimeout:
						pending.Add(1)
					}
				}()
			}

			wg.Wait()
			_ = held

			So(tooMany.Load(), ShouldBeGreaterThan, 0)
			So(tooMany.Load()+pending.Load(), ShouldEqual, 130)
		})
	})
}
