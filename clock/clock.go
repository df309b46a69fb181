// Copyright 2025 Google LLC
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

// Package clock supplies the time source used for conflict-record
// timestamps, so that tests can run against a deterministic clock instead
// of the wall clock. Inode attribute times come from the backing files.
package clock

import (
	"time"

	"github.com/jacobsa/timeutil"
)

// Clock is github.com/jacobsa/timeutil.Clock, the interface this module
// hands to the conflict log instead of calling time.Now() directly.
type Clock = timeutil.Clock

// RealClock reports the actual wall-clock time.
type RealClock struct{}

func (RealClock) Now() time.Time {
	return timeutil.RealClock().Now()
}

var _ Clock = RealClock{}
