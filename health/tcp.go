// Copyright 2023 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package health

import (
	"context"
	"net"
	"net/url"
	"time"
)

//nolint:gochecknoglobals
var (
	defaultDialer = &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: -1,
	}
)

// NewTCPInspector returns an inspector that considers a host healthy if
// a TCP connection to it can be established. The connection is closed
// right away. If dialer is nil, a default dialer with a 30 second
// timeout is used, bounded further by the inspection deadline.
func NewTCPInspector(dialer *net.Dialer) Inspector {
	if dialer == nil {
		dialer = defaultDialer
	}
	return InspectorFunc(func(ctx context.Context, rawURL string) bool {
		hostPort, err := hostPortOf(rawURL)
		if err != nil {
			return false
		}
		conn, err := dialer.DialContext(ctx, "tcp", hostPort)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	})
}

// hostPortOf extracts the host:port to dial from a host URL. A URL without
// a scheme is taken to be a bare host:port. Missing ports default to 443
// for https and 80 otherwise.
func hostPortOf(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		parsed, err = url.Parse("//" + rawURL)
		if err != nil {
			return "", err
		}
	}
	if parsed.Port() != "" {
		return parsed.Host, nil
	}
	switch parsed.Scheme {
	case "https":
		return net.JoinHostPort(parsed.Hostname(), "443"), nil
	default:
		return net.JoinHostPort(parsed.Hostname(), "80"), nil
	}
}
