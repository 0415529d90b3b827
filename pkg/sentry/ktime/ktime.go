// Copyright 2026 The gVisor Authors.
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

// Package ktime provides the kernel's millisecond time base and the one-shot
// timers that wake sleeping tasks.
package ktime

// Listener receives expirations from a timer.
type Listener interface {
	// NotifyTimer is called once when its timer's deadline is reached. now is
	// the clock's time in milliseconds at expiration.
	//
	// NotifyTimer is called without any Clock locks held. It may add new
	// timers.
	NotifyTimer(now int64)
}

// Clock is the kernel's time source.
type Clock interface {
	// NowMS returns the current time in milliseconds. It never decreases.
	NowMS() int64

	// AddTimer arranges for l to be notified once the clock reaches
	// deadline. A deadline that has already passed is notified before
	// AddTimer returns.
	AddTimer(deadline int64, l Listener)

	// Pending returns the number of timers that have not yet fired.
	Pending() int
}

// Advancer is implemented by clocks whose time is driven by the kernel rather
// than by the host.
type Advancer interface {
	// AdvanceToNext moves the clock to the earliest pending deadline and fires
	// every timer that expires there. It returns false if no timer is pending.
	AdvanceToNext() bool
}

// ChannelNotifier is a Listener that sends on a channel.
type ChannelNotifier chan struct{}

// NewChannelNotifier creates a new channel notifier.
//
// If the notifier is used with a timer, Timer.Destroy will not drain the
// channel.
func NewChannelNotifier() (Listener, <-chan struct{}) {
	tchan := make(chan struct{}, 1)
	return ChannelNotifier(tchan), tchan
}

// NotifyTimer implements Listener.NotifyTimer.
func (c ChannelNotifier) NotifyTimer(int64) {
	select {
	case c <- struct{}{}:
	default:
	}
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(now int64)

// NotifyTimer implements Listener.NotifyTimer.
func (f ListenerFunc) NotifyTimer(now int64) {
	f(now)
}
