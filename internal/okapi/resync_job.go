/*******************************************************************************
*
* Copyright 2023 SAP SE
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
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sapcc/go-bits/jobloop"
)

// ResyncInterval is how often ResyncJob polls the store's logical clocks
// directly, as a safety net for missed bus notifications. See spec.md §4.6.
const ResyncInterval = 30 * time.Second

// ResyncJob periodically calls ClusterSync.CheckForUpdates, so that a node
// which missed a gossip notification (a restarted Redis, a dropped
// connection) still converges within ResyncInterval.
func ResyncJob(sync *ClusterSync, registerer prometheus.Registerer) jobloop.Job {
	return (&jobloop.CronJob{
		Metadata: jobloop.JobMetadata{
			ReadableName: "resync module catalog and tenant registry from store",
			CounterOpts: prometheus.CounterOpts{
				Name: "okapi_cluster_resync",
				Help: "Counter for cluster state resync attempts.",
			},
		},
		Interval: ResyncInterval,
		Task: func(ctx context.Context, _ prometheus.Labels) error {
			return sync.CheckForUpdates(ctx)
		},
	}).Setup(registerer)
}
