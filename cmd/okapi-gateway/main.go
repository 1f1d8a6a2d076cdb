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

package main

import (
	"os"

	"github.com/sapcc/go-bits/logg"
	"github.com/spf13/cobra"

	servercmd "github.com/sapcc/okapi/cmd/server"
	"github.com/sapcc/okapi/internal/okapi"
)

func main() {
	logg.ShowDebug = okapi.ParseBool(os.Getenv("OKAPI_DEBUG"))

	rootCmd := &cobra.Command{
		Use:     "okapi",
		Short:   "Multi-tenant API gateway",
		Long:    "Okapi is a multi-tenant API gateway that composes request pipelines out of independently deployed modules.",
		Version: okapi.Version,
		Args:    cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help() //nolint:errcheck
		},
	}
	servercmd.AddCommandTo(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		logg.Fatal(err.Error())
	}
}
