/*******************************************************************************
*
* Copyright 2018 SAP SE
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

// Package servercmd wires together the gateway's collaborators (catalog,
// tenant registry, discovery, store, cluster sync) and serves the HTTP API.
package servercmd

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/sapcc/go-bits/httpapi"
	"github.com/sapcc/go-bits/httpext"
	"github.com/sapcc/go-bits/logg"
	"github.com/sapcc/go-bits/must"
	"github.com/sapcc/go-bits/osext"
	"github.com/spf13/cobra"

	gatewayv1 "github.com/sapcc/okapi/internal/api/gateway"
	"github.com/sapcc/okapi/internal/okapi"
)

// maxRequestBodyBytes bounds how much of a client's request body the
// gateway buffers in memory per request.
const maxRequestBodyBytes = 64 << 20

// AddCommandTo mounts this command into the command hierarchy.
func AddCommandTo(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "gateway",
		Short: "Run the okapi gateway server component.",
		Long:  "Run the okapi gateway server component. Configuration is read from environment variables (OKAPI_URL, OKAPI_POSTGRES_*, OKAPI_CLUSTER_REDIS_*, OKAPI_NODE_ID, OKAPI_API_LISTEN_ADDRESS).",
		Args:  cobra.NoArgs,
		Run:   run,
	}
	parent.AddCommand(cmd)
}

func run(cmd *cobra.Command, args []string) {
	logg.Info("starting okapi-gateway %s", okapi.Version)

	cfg := okapi.ParseConfiguration()

	store, err := okapi.InitPostgresStore(cfg.DatabaseURL, cfg.DatabaseInit)
	must.Succeed(err)

	catalog := okapi.NewModuleCatalog()
	tenants := okapi.NewTenantRegistry()
	discovery := okapi.NewDiscoveryManager()

	bus := initBus(cfg)
	sync := okapi.NewClusterSync(store, bus, catalog, tenants, cfg.NodeID)

	ctx := httpext.ContextWithSIGINT(context.Background(), 10*time.Second)
	must.Succeed(sync.Start(ctx))

	resyncJob := okapi.ResyncJob(sync, nil)
	go resyncJob.Run(ctx)

	handler := httpapi.Compose(
		gatewayv1.NewAPI(catalog, tenants, discovery, maxRequestBodyBytes),
		httpapi.HealthCheckAPI{SkipRequestLog: true},
	)
	handler = cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"HEAD", "GET", "POST", "PUT", "DELETE", "PATCH"},
		AllowedHeaders: []string{"Content-Type", "Authorization", okapi.HeaderTenant, okapi.HeaderToken},
	}).Handler(handler)

	http.Handle("/", handler)
	http.Handle("/metrics", promhttp.Handler())

	listenAddress := osext.GetenvOrDefault("OKAPI_API_LISTEN_ADDRESS", ":8080")
	logg.Info("listening on " + listenAddress)
	must.Succeed(httpext.ListenAndServeContext(ctx, listenAddress, nil))
}

func initBus(cfg okapi.Configuration) okapi.Bus {
	if cfg.ClusterRedisOptions == nil {
		logg.Info("no cluster Redis configured, running as a single standalone node")
		return okapi.NewLocalBus()
	}
	return okapi.NewRedisBus(*cfg.ClusterRedisOptions, "okapi-cluster-sync")
}
