// Copyright 2026 The Busgate Authors
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

// Package scope implements the credential scope grammar: a space-delimited
// sequence of key:value tokens such as "bus:customer1.com channel:Tm5FUz".
// Payload authorizations use a dotted form, "payload.<path>".
package scope

import (
	"errors"
	"strings"
)

// Reserved scope keys.
const (
	KeyBus     = "bus"
	KeyChannel = "channel"
	KeyPayload = "payload"
)

// ErrMalformed is returned when a scope string does not conform to the
// grammar. A single bad token fails the whole parse.
var ErrMalformed = errors.New("malformed scope")

// Pair is a single parsed scope entry.
type Pair struct {
	Key   string
	Value string
}

// Parse splits a scope string into its ordered entries. The empty string
// parses to an empty sequence. Each token must contain exactly one ':'
// separator, except payload tokens which use the "payload.<path>" form.
func Parse(s string) ([]Pair, error) {
	if s == "" {
		return nil, nil
	}

	tokens := strings.Split(s, " ")
	pairs := make([]Pair, 0, len(tokens))
	for _, token := range tokens {
		pair, err := parseToken(token)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, pair)
	}
	return pairs, nil
}

func parseToken(token string) (Pair, error) {
	if rest, ok := strings.CutPrefix(token, KeyPayload+"."); ok {
		if rest == "" {
			return Pair{}, ErrMalformed
		}
		return Pair{Key: KeyPayload, Value: rest}, nil
	}

	key, value, found := strings.Cut(token, ":")
	if !found || key == "" || value == "" || strings.Contains(value, ":") {
		return Pair{}, ErrMalformed
	}
	return Pair{Key: key, Value: value}, nil
}

// Format renders entries back into a scope string. Format(Parse(s)) == s
// for any well-formed s.
func Format(pairs []Pair) string {
	if len(pairs) == 0 {
		return ""
	}

	var sb strings.Builder
	for i, pair := range pairs {
		if i > 0 {
			sb.WriteByte(' ')
		}
		if pair.Key == KeyPayload {
			sb.WriteString(KeyPayload + "." + pair.Value)
		} else {
			sb.WriteString(pair.Key + ":" + pair.Value)
		}
	}
	return sb.String()
}

// IsWellFormed reports whether s parses without error.
func IsWellFormed(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// Buses extracts the bus names from a scope string, insertion order
// preserved, duplicates removed.
func Buses(s string) ([]string, error) {
	pairs, err := Parse(s)
	if err != nil {
		return nil, err
	}

	var buses []string
	seen := make(map[string]bool)
	for _, pair := range pairs {
		if pair.Key == KeyBus && !seen[pair.Value] {
			seen[pair.Value] = true
			buses = append(buses, pair.Value)
		}
	}
	return buses, nil
}

// HasKey reports whether any entry of a well-formed scope string uses the
// given key. Malformed input reports false.
func HasKey(s, key string) bool {
	pairs, err := Parse(s)
	if err != nil {
		return false
	}
	for _, pair := range pairs {
		if pair.Key == key {
			return true
		}
	}
	return false
}

// FormatBuses encodes bus names as "bus:<n1> bus:<n2> ...", insertion
// order preserved, no trailing space.
func FormatBuses(buses []string) string {
	pairs := make([]Pair, 0, len(buses))
	for _, bus := range buses {
		pairs = append(pairs, Pair{Key: KeyBus, Value: bus})
	}
	return Format(pairs)
}
