// Copyright 2025 Kadir Pekel
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

package catalog

import (
	"regexp"
	"strconv"
	"strings"
)

var numericTokenRe = regexp.MustCompile(`\d+(?:\.\d+)?`)

var currencyReplacer = strings.NewReplacer(
	"₹", " ",
	"$", " ",
	"€", " ",
	"£", " ",
	",", "",
)

// NormalizeCost converts a raw cost attribute to a non-negative float.
// Source records occasionally carry strings like "INR 2,500" or
// "Rs. 450.50"; currency words, symbols and thousands separators are
// stripped and the first numeric token is parsed. Anything unparseable
// yields 0. All downstream cost handling goes through this single
// helper.
func NormalizeCost(v any) float64 {
	switch t := v.(type) {
	case float64:
		if t < 0 {
			return 0
		}
		return t
	case int:
		if t < 0 {
			return 0
		}
		return float64(t)
	case string:
		cleaned := currencyReplacer.Replace(t)
		token := numericTokenRe.FindString(cleaned)
		if token == "" {
			return 0
		}
		cost, err := strconv.ParseFloat(token, 64)
		if err != nil || cost < 0 {
			return 0
		}
		return cost
	default:
		return 0
	}
}
