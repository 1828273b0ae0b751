// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package prng

import (
	"context"
	"time"

	"github.com/simon-greatrix/sec-prng-sub001/internal/collectors"
	"github.com/simon-greatrix/sec-prng-sub001/internal/config"
	"github.com/simon-greatrix/sec-prng-sub001/internal/drbg"
	"github.com/simon-greatrix/sec-prng-sub001/internal/fortuna"
	"github.com/simon-greatrix/sec-prng-sub001/internal/instant"
	"github.com/simon-greatrix/sec-prng-sub001/internal/netentropy"
	"github.com/simon-greatrix/sec-prng-sub001/internal/nonce"
	"github.com/simon-greatrix/sec-prng-sub001/internal/seedstore"
	"github.com/simon-greatrix/sec-prng-sub001/internal/sysrand"
	"github.com/simon-greatrix/sec-prng-sub001/internal/telemetry"
)

// seedMaterialSize is the entropy length combine_materials draws when
// building a provider's initial seed; every DRBG construction in
// internal/drbg folds arbitrary-length material down to its own native
// seed length (hashDF, HMAC absorption, or SHA-384 compression), so one
// fixed size serves every provider.
const seedMaterialSize = 64

// fortunaStore adapts *seedstore.Store/*seedstore.Writer to fortuna.SeedStore:
// reads go straight to the store, but every checkpoint is handed to the
// write-back writer as a deferred seed, so it is only materialized (and
// scrambled) at the writer's own flush time, never while Fortuna's pool
// lock is held.
type fortunaStore struct {
	store  *seedstore.Store
	writer *seedstore.Writer
}

func (f fortunaStore) GetRaw(name string) ([]byte, bool) { return f.store.GetRaw(name) }

func (f fortunaStore) EnqueueSeed(name string, produce func() []byte) {
	f.writer.Enqueue(seedstore.Seed{Name: name, Produce: produce})
}

// System is the process-wide wiring of spec.md §2's data flow: the
// system-RNG multiplexer and instant-entropy bootstrap feed the Fortuna
// accumulator, which is checkpointed to persistent seed storage and fed by
// a scheduler of periodic collectors and, optionally, the network entropy
// manager. New resolves named providers (§6) against the resulting
// Fortuna singleton.
type System struct {
	Config *config.Resolver

	mux       *sysrand.Multiplexer
	bootstrap *instant.Bootstrap
	store     *seedstore.Store
	writer    *seedstore.Writer
	acc       *fortuna.Accumulator
	netMgr    *netentropy.Manager
	scheduler *collectors.Scheduler

	personalization []byte
}

// SystemOption configures NewSystem.
type SystemOption func(*systemOptions)

type systemOptions struct {
	configOpts     []config.Option
	seedStorePath  string
	networkSources []netentropy.Source
	collectorDelay time.Duration
}

// WithConfigOptions passes through internal/config.Option values (override
// file, preference file) to the System's configuration resolver.
func WithConfigOptions(opts ...config.Option) SystemOption {
	return func(o *systemOptions) { o.configOpts = append(o.configOpts, opts...) }
}

// WithSeedStore enables persistent seed storage at path; an empty path (the
// default) runs Fortuna without checkpointing, per spec.md §9's allowance
// that seed storage is optional infrastructure.
func WithSeedStore(path string) SystemOption {
	return func(o *systemOptions) { o.seedStorePath = path }
}

// WithNetworkSources enables the network entropy manager (C13/C14) over
// sources; omitting this option leaves network entropy disabled, matching
// §4.13's init() reporting false when no source is configured.
func WithNetworkSources(sources ...netentropy.Source) SystemOption {
	return func(o *systemOptions) { o.networkSources = sources }
}

// WithCollectorDelay overrides the default period between collector runs.
// The default is one second.
func WithCollectorDelay(d time.Duration) SystemOption {
	return func(o *systemOptions) { o.collectorDelay = d }
}

// NewSystem builds and starts a System: configuration resolution, the
// instant-entropy bootstrap, the system-RNG multiplexer, optional
// persistent seed storage, the Fortuna accumulator, the collector
// scheduler, and (if configured) the network entropy manager.
func NewSystem(opts ...SystemOption) (*System, error) {
	var o systemOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.collectorDelay <= 0 {
		o.collectorDelay = time.Second
	}

	cfg, err := config.New(o.configOpts...)
	if err != nil {
		return nil, err
	}

	bootstrap := instant.New()
	mux := sysrand.New(sysrand.DefaultSources(), bootstrap)

	s := &System{
		Config:          cfg,
		mux:             mux,
		bootstrap:       bootstrap,
		personalization: nonce.Personalization(),
	}

	var fs fortuna.SeedStore
	if o.seedStorePath != "" {
		store, err := seedstore.Open(o.seedStorePath)
		if err != nil {
			return nil, err
		}
		s.store = store
		s.writer = seedstore.NewWriter(store, mux, seedstore.DefaultWriteBackConfig())
		fs = fortunaStore{store: store, writer: s.writer}
	}

	s.acc = fortuna.New(mux, fs)

	s.scheduler = collectors.NewScheduler(s.acc)
	for _, c := range []collectors.Collector{
		collectors.NewJitterCollector(o.collectorDelay),
		collectors.NewHeapCollector(o.collectorDelay),
		collectors.NewFreeMemoryCollector(o.collectorDelay),
		collectors.NewOtherProviderCollector("sysrand", o.collectorDelay, 16, mux.Get),
		collectors.NewScreenCollector(o.collectorDelay),
		collectors.NewAudioCollector(o.collectorDelay),
	} {
		if !s.scheduler.Register(c) {
			telemetry.PermissionFailure(c.Name())
		}
	}

	if len(o.networkSources) > 0 {
		var netStore netentropy.Store
		if s.store != nil {
			netStore = s.store
		}
		cfg := netentropy.DefaultManagerConfig()
		cfg.Scramble = func(b []byte) []byte { return seedstore.Scramble(mux, b) }
		s.netMgr = netentropy.NewManager(o.networkSources, netStore, s.acc, cfg)
		s.netMgr.Init()
	}

	return s, nil
}

// New resolves name (e.g. "Nist/SHA-256", "Nist/AES") against the
// registry and returns a Reader wired to this System's Fortuna
// accumulator with resistance 0, so every provider reseeds from Fortuna
// on every NextBytes call.
func (s *System) New(name string) (*Reader, error) {
	build, ok := lookup(name)
	if !ok {
		return nil, ErrUnknownProvider(name)
	}

	seedMaterial := drbg.CombineMaterials(nil, nil, nil, seedMaterialSize, seedMaterialSize, s.acc, nonce.New256, s.personalization)
	inst := build(s.acc, 0, seedMaterial)
	return &Reader{name: name, inst: inst}, nil
}

// FetchNetworkEntropy performs one network entropy manager Fetch pass
// (§4.13), populating any empty cache slots. It is a no-op returning nil
// if no network sources were configured.
func (s *System) FetchNetworkEntropy(ctx context.Context) error {
	if s.netMgr == nil {
		return nil
	}
	return s.netMgr.Fetch(ctx)
}

// InjectNetworkEntropy runs one network entropy manager Inject pass,
// sampling cached slots into Fortuna. It is a no-op if no network sources
// were configured.
func (s *System) InjectNetworkEntropy(ctx context.Context) {
	if s.netMgr == nil {
		return
	}
	s.netMgr.Inject(ctx)
}

// FortunaStats returns the Fortuna accumulator's cumulative counters.
func (s *System) FortunaStats() fortuna.Stats { return s.acc.Stats() }

// MultiplexerStats returns the system-RNG multiplexer's cumulative
// counters.
func (s *System) MultiplexerStats() sysrand.Stats { return s.mux.Stats() }

// Shutdown stops the collector scheduler and, if seed storage is enabled,
// flushes and closes the write-back writer and store. Safe to call once.
func (s *System) Shutdown() error {
	s.scheduler.Shutdown()

	if s.writer != nil {
		s.writer.Shutdown()
	}
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}
