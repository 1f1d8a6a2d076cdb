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

package okapi

import (
	"fmt"
	"net"
	"net/url"
	"os"

	"github.com/sapcc/go-bits/logg"
	"github.com/sapcc/go-bits/osext"
)

// Configuration contains all configuration values that are not specific to a
// certain driver.
type Configuration struct {
	// NodeID identifies this gateway node within the cluster. ClusterSync
	// stamps it on the change notifications it publishes, so that a node can
	// skip its own.
	NodeID string
	// OkapiURL is the base URL this node advertises to modules via
	// X-Okapi-Url.
	OkapiURL url.URL
	// DatabaseURL is the Postgres connection URL for the module/tenant/
	// timestamp store.
	DatabaseURL url.URL
	// DatabaseInit controls whether the store applies its migrations at
	// startup (legacy flag replacing the old initdatabase/purgedatabase
	// commands, see spec.md §6).
	DatabaseInit bool
	// ClusterRedisOptions configures the cluster bus, or nil if clustering is
	// disabled (a single node still behaves correctly: it just never
	// receives reload signals from peers).
	ClusterRedisOptions *RedisOptions
}

// RedisOptions mirrors the shape go-redis expects, kept here to avoid a
// direct dependency of this file on the redis package.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// ParseConfiguration obtains an okapi.Configuration instance from the
// corresponding environment variables. Aborts on error.
func ParseConfiguration() Configuration {
	cfg := Configuration{
		NodeID:       osext.GetenvOrDefault("OKAPI_NODE_ID", mustHostname()),
		OkapiURL:     mustGetenvURL("OKAPI_URL"),
		DatabaseURL:  getDBURL(),
		DatabaseInit: ParseBool(osext.GetenvOrDefault("OKAPI_POSTGRES_DB_INIT", "true")),
	}

	if host := os.Getenv("OKAPI_CLUSTER_REDIS_HOSTNAME"); host != "" {
		port := osext.GetenvOrDefault("OKAPI_CLUSTER_REDIS_PORT", "6379")
		db, err := parseIntOrDefault(os.Getenv("OKAPI_CLUSTER_REDIS_DB_NUM"), 0)
		if err != nil {
			logg.Fatal("invalid OKAPI_CLUSTER_REDIS_DB_NUM: %s", err.Error())
		}
		cfg.ClusterRedisOptions = &RedisOptions{
			Addr:     net.JoinHostPort(host, port),
			Password: os.Getenv("OKAPI_CLUSTER_REDIS_PASSWORD"),
			DB:       db,
		}
	}

	return cfg
}

// ParseBool is like strconv.ParseBool() but doesn't return any error. An
// unparseable or empty string is treated as false.
func ParseBool(str string) bool {
	ok, _ := parseBool(str)
	return ok
}

func parseBool(str string) (bool, error) {
	switch str {
	case "1", "t", "T", "true", "TRUE", "True":
		return true, nil
	case "0", "f", "F", "false", "FALSE", "False", "":
		return false, nil
	default:
		return false, fmt.Errorf("not a boolean value: %q", str)
	}
}

func parseIntOrDefault(str string, def int) (int, error) {
	if str == "" {
		return def, nil
	}
	var n int
	_, err := fmt.Sscanf(str, "%d", &n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func mustHostname() string {
	name, err := os.Hostname()
	if err != nil {
		return "okapi-node"
	}
	return name
}

func mustGetenvURL(key string) url.URL {
	val := osext.MustGetenv(key)
	parsed, err := url.Parse(val)
	if err != nil {
		logg.Fatal("malformed %s: %s", key, err.Error())
	}
	return *parsed
}

func getDBURL() url.URL {
	dbName := osext.GetenvOrDefault("OKAPI_POSTGRES_DATABASE", "okapi")
	dbUsername := osext.GetenvOrDefault("OKAPI_POSTGRES_USERNAME", "postgres")
	dbPass := os.Getenv("OKAPI_POSTGRES_PASSWORD")
	dbHost := osext.GetenvOrDefault("OKAPI_POSTGRES_HOST", "localhost")
	dbPort := osext.GetenvOrDefault("OKAPI_POSTGRES_PORT", "5432")

	hostname, err := os.Hostname()
	query := url.Values{}
	if err == nil {
		query.Set("application_name", fmt.Sprintf("%s@%s", Component, hostname))
	} else {
		query.Set("application_name", Component)
	}

	return url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(dbUsername, dbPass),
		Host:     net.JoinHostPort(dbHost, dbPort),
		Path:     "/" + dbName,
		RawQuery: query.Encode(),
	}
}
