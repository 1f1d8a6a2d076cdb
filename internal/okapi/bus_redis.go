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

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/sapcc/go-bits/logg"
)

// RedisBus is a Bus backed by Redis Pub/Sub, grounded on the same
// redis.Options plumbing as the federation driver
// (internal/drivers/redis/federation.go) in the registry this gateway was
// modeled on.
type RedisBus struct {
	rc      *redis.Client
	channel string
}

// NewRedisBus returns a Bus publishing on (and subscribing to) the given
// channel name, on the Redis server described by opts.
func NewRedisBus(opts RedisOptions, channel string) *RedisBus {
	rc := redis.NewClient(&redis.Options{
		Network:  "tcp",
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return &RedisBus{rc: rc, channel: channel}
}

// Publish implements Bus.
func (b *RedisBus) Publish(ctx context.Context, n ChangeNotification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return b.rc.Publish(ctx, b.channel, payload).Err()
}

// Subscribe implements Bus. It blocks until ctx is canceled or the
// subscription's channel closes.
func (b *RedisBus) Subscribe(ctx context.Context, handle func(ChangeNotification)) error {
	sub := b.rc.Subscribe(ctx, b.channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var n ChangeNotification
			if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
				logg.Error("while decoding cluster change notification: %s", err.Error())
				continue
			}
			handle(n)
		}
	}
}
