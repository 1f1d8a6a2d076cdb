/*******************************************************************************
*
* Copyright 2020 SAP SE
*
* Licensed under the Apache License, Version 2.0 (the "License");
* you may not use this file except in compliance with the License.
* You should have received a copy of the License along with this
* program. If not, you may obtain a copy of the License at
*
*     http://www.apache.org/licenses/LICENSE-2.0
*
* Unless required by applicable law or agreed to in writing, software
* distributed under the License is distributed on an "AS IS" BASIS,
* WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
* See the License for the specific language governing permissions and
* limitations under the License.
*
*******************************************************************************/

package okapi

import "context"

// ChangeNotification is the gossip message broadcast whenever a node's
// writes advance the module or tenant logical clock. See spec.md §4.6.
type ChangeNotification struct {
	// Kind is either TimestampKeyModules or TimestampKeyTenants.
	Kind string
	// Timestamp is the new value of that logical clock after the write that
	// triggered this notification.
	Timestamp int64
	// OriginNodeID is the NodeID of the gateway instance that made the
	// write, so a node can cheaply skip reloading state it just wrote
	// itself.
	OriginNodeID string
}

// Bus is the cluster-wide gossip channel ClusterSync uses to tell every
// other node "something changed, go check the store". It is a hint, not a
// source of truth: a node that misses a message still catches up via
// ResyncJob's periodic poll. See spec.md §4.6.
type Bus interface {
	// Publish broadcasts a change notification to every subscriber,
	// including, potentially, the publisher itself.
	Publish(ctx context.Context, n ChangeNotification) error
	// Subscribe delivers every notification published on the bus to handle,
	// until ctx is canceled. It blocks, and is meant to be run in its own
	// goroutine.
	Subscribe(ctx context.Context, handle func(ChangeNotification)) error
}

// LocalBus is a Bus for a single standalone node: Publish is a no-op (there
// is no one else to tell) and Subscribe merely blocks until ctx is
// canceled. Used when no cluster Redis is configured.
type LocalBus struct{}

// NewLocalBus returns a Bus that never delivers a notification to anyone.
func NewLocalBus() *LocalBus {
	return &LocalBus{}
}

// Publish implements Bus.
func (LocalBus) Publish(ctx context.Context, n ChangeNotification) error {
	return nil
}

// Subscribe implements Bus.
func (LocalBus) Subscribe(ctx context.Context, handle func(ChangeNotification)) error {
	<-ctx.Done()
	return ctx.Err()
}
