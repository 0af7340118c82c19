// Copyright 2026 The Maintly Authors
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

package authz

// System resource-type names used as ids of KindSystem references.
const (
	SystemClients          = "clientes"
	SystemTeams            = "equipes"
	SystemMaintenanceTypes = "tipos_manutencao"
	SystemCompanies        = "empresas_terceiras"
	SystemMaintenances     = "manutencoes"
	SystemVault            = "cofre_senhas"
)

// SystemResources lists every system resource type.
var SystemResources = []string{
	SystemClients,
	SystemTeams,
	SystemMaintenanceTypes,
	SystemCompanies,
	SystemMaintenances,
	SystemVault,
}

// IsSystemResource reports whether name is a known system resource type.
func IsSystemResource(name string) bool {
	for _, r := range SystemResources {
		if r == name {
			return true
		}
	}
	return false
}
