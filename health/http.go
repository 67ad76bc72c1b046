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
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/http2"
)

const h2cScheme = "h2c"

// NewHTTPInspector returns an inspector that performs an HTTP GET request
// to the given path on each host. If the response has a successful status
// (200-299), the host is considered healthy. Otherwise, or if the request
// fails, it is considered unhealthy.
//
// If client is nil, a client with default transport settings is used.
// Hosts with an "h2c" URL scheme are always inspected with HTTP/2 over
// plaintext, regardless of the given client's transport.
func NewHTTPInspector(path string, client *http.Client) Inspector {
	if client == nil {
		client = &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()}
	}
	h2cClient := &http.Client{
		Transport: &http2.Transport{
			AllowHTTP: true,
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				return defaultDialer.DialContext(ctx, network, addr)
			},
		},
		CheckRedirect: client.CheckRedirect,
	}
	return &httpInspector{path: path, client: client, h2cClient: h2cClient}
}

type httpInspector struct {
	path      string
	client    *http.Client
	h2cClient *http.Client
}

func (h *httpInspector) Inspect(ctx context.Context, rawURL string) bool {
	target, err := url.Parse(strings.TrimSuffix(rawURL, "/") + h.path)
	if err != nil {
		return false
	}
	client := h.client
	if target.Scheme == h2cScheme {
		target.Scheme = "http"
		client = h.h2cClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), http.NoBody)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
