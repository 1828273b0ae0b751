// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package netentropy

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simon-greatrix/sec-prng-sub001/internal/config"
)

type fakeHTTPClient struct {
	resp *http.Response
	err  error
}

func (f *fakeHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return f.resp, f.err
}

// TestParseJSONRPCBody_ExactBlockMatches implements spec.md §8 scenario 4:
// a 128-element data array must decode to the exact same 128 bytes.
func TestParseJSONRPCBody_ExactBlockMatches(t *testing.T) {
	data := make([]int, BlockSize)
	for i := range data {
		data[i] = i
	}
	body, err := json.Marshal(map[string]any{
		"result": map[string]any{
			"random": map[string]any{"data": data},
		},
	})
	require.NoError(t, err)

	got, err := ParseJSONRPCBody("drand", body)
	require.NoError(t, err)

	want := make([]byte, BlockSize)
	for i := range want {
		want[i] = byte(i)
	}
	assert.Equal(t, want, got)
}

// TestParseJSONRPCBody_WrongCountFails implements spec.md §8 scenario 4's
// negative case: a 127-element array must fail with a size mismatch.
func TestParseJSONRPCBody_WrongCountFails(t *testing.T) {
	data := make([]int, BlockSize-1)
	body, err := json.Marshal(map[string]any{
		"result": map[string]any{
			"random": map[string]any{"data": data},
		},
	})
	require.NoError(t, err)

	_, err = ParseJSONRPCBody("drand", body)
	require.Error(t, err)

	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, "drand", netErr.Source)
}

func TestDecodeJSONRPCInts_TakesLowByte(t *testing.T) {
	data := make([]int, BlockSize)
	for i := range data {
		data[i] = 256 + i // high bits set; only the low 8 bits should survive
	}

	got, err := DecodeJSONRPCInts("x", data)
	require.NoError(t, err)

	for i, b := range got {
		assert.Equal(t, byte(i), b)
	}
}

func TestDigestBeacon_ProducesBlockSizeBytes(t *testing.T) {
	out := DigestBeacon([]byte("pulse-12345"))
	assert.Len(t, out, BlockSize)

	// deterministic: same input, same output
	again := DigestBeacon([]byte("pulse-12345"))
	assert.Equal(t, out, again)

	other := DigestBeacon([]byte("pulse-99999"))
	assert.NotEqual(t, out, other)
}

type erroringSource struct{}

func (erroringSource) Name() string                                   { return "erroring" }
func (erroringSource) Weight() float64                                { return 1 }
func (erroringSource) Fetch(ctx context.Context) ([]byte, error) {
	return nil, &NetworkError{Source: "erroring", Reason: "unreachable"}
}

type shortSource struct{}

func (shortSource) Name() string    { return "short" }
func (shortSource) Weight() float64 { return 1 }
func (shortSource) Fetch(ctx context.Context) ([]byte, error) {
	return []byte{1, 2, 3}, nil
}

type goodSource struct{ payload []byte }

func (g goodSource) Name() string    { return "good" }
func (g goodSource) Weight() float64 { return 1 }
func (g goodSource) Fetch(ctx context.Context) ([]byte, error) {
	return g.payload, nil
}

func TestLoad_ZeroLengthOnFetchError(t *testing.T) {
	got := Load(context.Background(), erroringSource{}, func(b []byte) []byte { return b })
	assert.Empty(t, got)
}

func TestLoad_ZeroLengthOnWrongSize(t *testing.T) {
	got := Load(context.Background(), shortSource{}, func(b []byte) []byte { return b })
	assert.Empty(t, got)
}

func TestLoad_ScramblesSuccessfulFetch(t *testing.T) {
	payload := make([]byte, BlockSize)
	src := goodSource{payload: payload}

	scrambleCalls := 0
	got := Load(context.Background(), src, func(b []byte) []byte {
		scrambleCalls++
		out := make([]byte, len(b))
		for i, v := range b {
			out[i] = v ^ 0xFF
		}
		return out
	})

	require.Len(t, got, BlockSize)
	assert.Equal(t, 1, scrambleCalls)
	for _, b := range got {
		assert.Equal(t, byte(0xFF), b)
	}
}

func TestNewHTTPClient_DefaultsTo120sEachWay(t *testing.T) {
	client := NewHTTPClient(nil)
	assert.Equal(t, 240*time.Second, client.Timeout)
}

func TestNewHTTPClient_HonoursConfiguredTimeouts(t *testing.T) {
	cfg, err := config.New(config.WithOverrideFile(writeOverrideFile(t, "network.connectionTimeout=1s\nnetwork.readTimeout=2s\n")))
	require.NoError(t, err)

	client := NewHTTPClient(cfg)
	assert.Equal(t, 3*time.Second, client.Timeout)
}

func TestSourceConstructors_WireClientFromConfig(t *testing.T) {
	cfg, err := config.New()
	require.NoError(t, err)

	j := NewJSONRPCSource(cfg, "drand", "https://example.invalid", 1, []byte("{}"))
	b := NewBinaryHTTPSource(cfg, "random-org", "https://example.invalid", 1)
	d := NewBeaconDigestSource(cfg, "nist-beacon", "https://example.invalid", 1)

	assert.Equal(t, DefaultTimeout*2, j.Client.(*http.Client).Timeout)
	assert.Equal(t, DefaultTimeout*2, b.Client.(*http.Client).Timeout)
	assert.Equal(t, DefaultTimeout*2, d.Client.(*http.Client).Timeout)
}

func writeOverrideFile(t *testing.T, contents string) string {
	t.Helper()
	path := t.TempDir() + "/override.env"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}
