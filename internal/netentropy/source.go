// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

// Package netentropy implements the network entropy manager and the
// network source trait of spec.md §4.13/§4.14: timed HTTP fetchers
// producing 128-byte entropy blocks, a 64-slot cache with a
// freshness/usage refresh policy, and weighted random source selection
// feeding the Fortuna accumulator.
package netentropy

import (
	"bytes"
	"context"
	"crypto/sha512"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/simon-greatrix/sec-prng-sub001/internal/config"
	"github.com/simon-greatrix/sec-prng-sub001/internal/telemetry"
)

// hashBeacon implements DigestBeacon's algorithm: digest body prefixed
// with 0x00, digest body prefixed with 0xFF, concatenate the two 64-byte
// SHA-512 sums.
func hashBeacon(body []byte) []byte {
	h0 := sha512.New()
	h0.Write([]byte{0x00})
	h0.Write(body)

	hFF := sha512.New()
	hFF.Write([]byte{0xFF})
	hFF.Write(body)

	out := make([]byte, 0, sha512.Size*2)
	out = h0.Sum(out)
	out = hFF.Sum(out)
	return out
}

// BlockSize is the fixed entropy block size every network source must
// produce, per spec.md §4.14.
const BlockSize = 128

// NetworkError wraps a source fetch failure: unreachable service, wrong
// status, malformed payload, or wrong byte count.
type NetworkError struct {
	Source string
	Reason string
	Cause  error
}

func (e *NetworkError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("netentropy: %s: %s: %v", e.Source, e.Reason, e.Cause)
	}
	return fmt.Sprintf("netentropy: %s: %s", e.Source, e.Reason)
}

func (e *NetworkError) Unwrap() error { return e.Cause }

// Source is one network entropy provider: a fixed URL, a weight used for
// weighted random selection, and a method of coercing its HTTP response
// into exactly BlockSize bytes.
type Source interface {
	Name() string
	Weight() float64
	Fetch(ctx context.Context) ([]byte, error)
}

// httpClient is the narrow interface sources need of an *http.Client.
type httpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// jsonRPCResponse is the wire shape of a JSON-RPC random-integer-array
// response. advisoryDelay is parsed but intentionally unused — see
// DESIGN.md's Open Question decisions.
type jsonRPCResponse struct {
	Result struct {
		Random struct {
			Data          []int `json:"data"`
			AdvisoryDelay int   `json:"advisoryDelay"`
		} `json:"random"`
	} `json:"result"`
}

// JSONRPCSource POSTs a request asking for BlockSize integers in
// [0,255], then takes the low 8 bits of each returned value, per
// spec.md §4.14.
type JSONRPCSource struct {
	SourceName string
	URL        string
	WeightVal  float64
	Client     httpClient
	Body       []byte
}

func (s *JSONRPCSource) Name() string    { return s.SourceName }
func (s *JSONRPCSource) Weight() float64 { return s.WeightVal }

func (s *JSONRPCSource) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(s.Body))
	if err != nil {
		return nil, &NetworkError{Source: s.SourceName, Reason: "build request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, &NetworkError{Source: s.SourceName, Reason: "unreachable", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &NetworkError{Source: s.SourceName, Reason: fmt.Sprintf("status %d", resp.StatusCode)}
	}

	var parsed jsonRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &NetworkError{Source: s.SourceName, Reason: "malformed payload", Cause: err}
	}

	return DecodeJSONRPCInts(s.SourceName, parsed.Result.Random.Data)
}

// DecodeJSONRPCInts converts a parsed integer array into exactly
// BlockSize bytes, taking the low 8 bits of each value. It is split out
// from Fetch so spec.md §8 scenario 4's parser test can exercise it
// directly against a literal JSON body.
func DecodeJSONRPCInts(sourceName string, data []int) ([]byte, error) {
	if len(data) != BlockSize {
		return nil, &NetworkError{
			Source: sourceName,
			Reason: fmt.Sprintf("expected %d values, got %d", BlockSize, len(data)),
		}
	}

	out := make([]byte, BlockSize)
	for i, v := range data {
		out[i] = byte(v & 0xFF)
	}
	return out, nil
}

// ParseJSONRPCBody decodes a raw JSON-RPC response body and extracts its
// random data as exactly BlockSize bytes, per spec.md §8 scenario 4.
func ParseJSONRPCBody(sourceName string, body []byte) ([]byte, error) {
	var parsed jsonRPCResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &NetworkError{Source: sourceName, Reason: "malformed payload", Cause: err}
	}
	return DecodeJSONRPCInts(sourceName, parsed.Result.Random.Data)
}

// BinaryHTTPSource GETs a URL whose response body must be exactly
// BlockSize bytes, per spec.md §4.14.
type BinaryHTTPSource struct {
	SourceName string
	URL        string
	WeightVal  float64
	Client     httpClient
}

func (s *BinaryHTTPSource) Name() string    { return s.SourceName }
func (s *BinaryHTTPSource) Weight() float64 { return s.WeightVal }

func (s *BinaryHTTPSource) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, &NetworkError{Source: s.SourceName, Reason: "build request", Cause: err}
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, &NetworkError{Source: s.SourceName, Reason: "unreachable", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &NetworkError{Source: s.SourceName, Reason: fmt.Sprintf("status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, BlockSize+1))
	if err != nil {
		return nil, &NetworkError{Source: s.SourceName, Reason: "malformed payload", Cause: err}
	}
	if len(body) != BlockSize {
		return nil, &NetworkError{Source: s.SourceName, Reason: fmt.Sprintf("expected %d bytes, got %d", BlockSize, len(body))}
	}

	return body, nil
}

// BeaconDigestSource GETs a time-beacon pulse and hashes its body down to
// BlockSize bytes: two SHA-512 digests, one of the body prefixed with
// byte 0 and one prefixed with byte 255, concatenated, per spec.md §4.14.
type BeaconDigestSource struct {
	SourceName string
	URL        string
	WeightVal  float64
	Client     httpClient
}

func (s *BeaconDigestSource) Name() string    { return s.SourceName }
func (s *BeaconDigestSource) Weight() float64 { return s.WeightVal }

func (s *BeaconDigestSource) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, &NetworkError{Source: s.SourceName, Reason: "build request", Cause: err}
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, &NetworkError{Source: s.SourceName, Reason: "unreachable", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &NetworkError{Source: s.SourceName, Reason: fmt.Sprintf("status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Source: s.SourceName, Reason: "malformed payload", Cause: err}
	}

	return DigestBeacon(body), nil
}

// DigestBeacon implements the beacon source's hash-down-to-128-bytes
// step directly on a byte slice, so it can be unit-tested without a
// network round trip.
func DigestBeacon(body []byte) []byte {
	return hashBeacon(body)
}

// Load wraps a source's Fetch with spec.md §4.14's "wrapping load()"
// contract: any failure (including a context deadline) yields a
// zero-length result instead of propagating, and a successful fetch is
// always passed through scramble before being handed to the caller
// (normally the network entropy manager, C13).
func Load(ctx context.Context, src Source, scramble func([]byte) []byte) []byte {
	data, err := src.Fetch(ctx)
	if err != nil {
		telemetry.NetworkFailure(src.Name(), urlOf(src), err)
		return nil
	}
	if len(data) != BlockSize {
		telemetry.NetworkFailure(src.Name(), urlOf(src), fmt.Errorf("expected %d bytes, got %d", BlockSize, len(data)))
		return nil
	}
	return scramble(data)
}

// urlOf extracts the fetch URL from the known concrete Source
// implementations, for telemetry only; sources with no meaningful URL
// (test fakes, future implementations) just log an empty one.
func urlOf(src Source) string {
	switch s := src.(type) {
	case *JSONRPCSource:
		return s.URL
	case *BinaryHTTPSource:
		return s.URL
	case *BeaconDigestSource:
		return s.URL
	default:
		return ""
	}
}

// DefaultTimeout bounds every network source fetch, per spec.md §5's
// connection/read timeout defaults of 120 seconds each.
const DefaultTimeout = 120 * time.Second

// NewHTTPClient returns an *http.Client whose Timeout covers dial plus
// read, resolved from cfg's network.connectionTimeout and
// network.readTimeout keys (falling back to DefaultTimeout for either
// that is unset or unparseable). Source constructors below use it so
// every built-in source shares the same configured deadline.
func NewHTTPClient(cfg *config.Resolver) *http.Client {
	connect := DefaultTimeout
	read := DefaultTimeout
	if cfg != nil {
		if d := cfg.GetDuration("network.connectionTimeout"); d > 0 {
			connect = d
		}
		if d := cfg.GetDuration("network.readTimeout"); d > 0 {
			read = d
		}
	}
	return &http.Client{Timeout: connect + read}
}

// NewJSONRPCSource builds a JSONRPCSource with its Client defaulted from
// cfg via NewHTTPClient.
func NewJSONRPCSource(cfg *config.Resolver, name, url string, weight float64, body []byte) *JSONRPCSource {
	return &JSONRPCSource{SourceName: name, URL: url, WeightVal: weight, Client: NewHTTPClient(cfg), Body: body}
}

// NewBinaryHTTPSource builds a BinaryHTTPSource with its Client
// defaulted from cfg via NewHTTPClient.
func NewBinaryHTTPSource(cfg *config.Resolver, name, url string, weight float64) *BinaryHTTPSource {
	return &BinaryHTTPSource{SourceName: name, URL: url, WeightVal: weight, Client: NewHTTPClient(cfg)}
}

// NewBeaconDigestSource builds a BeaconDigestSource with its Client
// defaulted from cfg via NewHTTPClient.
func NewBeaconDigestSource(cfg *config.Resolver, name, url string, weight float64) *BeaconDigestSource {
	return &BeaconDigestSource{SourceName: name, URL: url, WeightVal: weight, Client: NewHTTPClient(cfg)}
}
