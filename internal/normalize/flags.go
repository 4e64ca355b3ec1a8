// Copyright (c) 2026 John Earle
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

package normalize

import "strings"

// deriveTypeFlags maps a document type onto the four category booleans via
// case-insensitive substring match. The flags are independent: a type that
// matches none of the categories leaves all four false, and consumers
// filter on each flag separately.
func deriveTypeFlags(docType string) (invoice, receipt, contract, bill bool) {
	t := strings.ToLower(docType)
	invoice = strings.Contains(t, "invoice")
	receipt = strings.Contains(t, "receipt")
	contract = strings.Contains(t, "contract")
	bill = strings.Contains(t, "bill")
	return invoice, receipt, contract, bill
}
