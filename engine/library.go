package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/nativecall"
	"github.com/wippyai/nativecall/engine/internal/wasm"
	"github.com/wippyai/nativecall/errors"
	"github.com/wippyai/nativecall/native"
)

const (
	pageSize = 65536
	// maxPages keeps linear memory below the function pointer range.
	maxPages = native.FuncPtrBase / pageSize
	// heapBase leaves the first bytes of memory unallocated.
	heapBase = 16
)

// Config holds configuration for library creation
type Config struct {
	// Name is the module name of the shim. The host functions live in a
	// module named Name + "_host".
	Name string

	// MemoryPages is the initial memory size in pages (64KB each).
	// 0 means 1 page.
	MemoryPages uint32

	// MemoryLimitPages sets the maximum memory in pages.
	// 0 means the largest size that stays below native.FuncPtrBase.
	// 256 = 16MB, 1024 = 64MB, 4096 = 256MB
	MemoryLimitPages uint32
}

// DefaultConfig returns the default library configuration.
func DefaultConfig() *Config {
	return &Config{Name: "native", MemoryPages: 1}
}

type definition struct {
	fn      nativecall.NativeFunc
	name    string
	params  []api.ValueType
	results []api.ValueType
}

// Library is a native address space hosted by wazero. Native functions are
// Go host functions re-exported by a synthesized shim module that owns the
// linear memory, so calls go through api.Function like any wasm export.
// Allocation bookkeeping stays on the Go side.
type Library struct {
	memory
	*native.FreeList
	*native.FuncTable

	runtime wazero.Runtime
	shim    api.Module
	names   map[string]struct{}
	log     *zap.Logger
	cfg     Config
	defs    []definition
	mu      sync.RWMutex
}

var _ nativecall.Space = (*Library)(nil)

// New creates a library with its own wazero runtime. A nil config uses
// DefaultConfig.
func New(ctx context.Context, cfg *Config) *Library {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	c := *cfg
	if c.Name == "" {
		c.Name = "native"
	}
	if c.MemoryPages == 0 {
		c.MemoryPages = 1
	}
	if c.MemoryLimitPages == 0 || c.MemoryLimitPages > maxPages {
		c.MemoryLimitPages = maxPages
	}
	if c.MemoryPages > c.MemoryLimitPages {
		c.MemoryPages = c.MemoryLimitPages
	}

	runtimeCfg := wazero.NewRuntimeConfig().WithMemoryLimitPages(c.MemoryLimitPages)
	l := &Library{
		FuncTable: native.NewFuncTable(),
		runtime:   wazero.NewRuntimeWithConfig(ctx, runtimeCfg),
		names:     make(map[string]struct{}),
		log:       Logger().With(zap.String("library", c.Name)),
		cfg:       c,
	}
	l.FreeList = native.NewFreeList(heapBase, 0, l.grow)
	return l
}

// Define declares a native function with its core wasm signature. All
// definitions must precede Instantiate.
func (l *Library) Define(name string, params, results []api.ValueType, fn nativecall.NativeFunc) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.shim != nil {
		return errors.Registration("native function", name, fmt.Errorf("library %q already instantiated", l.cfg.Name))
	}
	if fn == nil {
		return errors.Registration("native function", name, fmt.Errorf("nil function"))
	}
	if _, exists := l.names[name]; exists || name == "memory" {
		return errors.Registration("native function", name, nil)
	}
	l.names[name] = struct{}{}
	l.defs = append(l.defs, definition{name: name, params: params, results: results, fn: fn})
	return nil
}

// Instantiate builds the host and shim modules. After it returns the
// library is a usable address space.
func (l *Library) Instantiate(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.shim != nil {
		return nil
	}

	hostName := l.cfg.Name + "_host"
	hostBuilder := l.runtime.NewHostModuleBuilder(hostName)
	shim := wasm.NewShimBuilder(hostName)
	for _, d := range l.defs {
		hostBuilder = hostBuilder.NewFunctionBuilder().
			WithGoModuleFunction(l.hostFunc(d), d.params, d.results).
			Export(d.name)
		shim.AddFunc(d.name, d.params, d.results)
	}
	shim.SetMemory("memory", l.cfg.MemoryPages, l.cfg.MemoryLimitPages)

	if _, err := hostBuilder.Instantiate(ctx); err != nil {
		return fmt.Errorf("instantiate host module: %w", err)
	}
	compiled, err := l.runtime.CompileModule(ctx, shim.Build())
	if err != nil {
		return fmt.Errorf("compile shim module: %w", err)
	}
	mod, err := l.runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(l.cfg.Name))
	if err != nil {
		return fmt.Errorf("instantiate shim module: %w", err)
	}
	mem := mod.ExportedMemory("memory")
	if mem == nil {
		_ = mod.Close(ctx)
		return fmt.Errorf("shim module %q exports no memory", l.cfg.Name)
	}

	l.shim = mod
	l.memory.mem = mem
	l.log.Debug("library instantiated",
		zap.Int("functions", shim.FuncCount()),
		zap.Uint32("pages", l.cfg.MemoryPages),
		zap.Uint32("limit_pages", l.cfg.MemoryLimitPages))
	return nil
}

// hostFunc adapts a NativeFunc to the wazero stack convention. A native
// failure panics, which wazero turns into an error from Call.
func (l *Library) hostFunc(d definition) api.GoModuleFunc {
	nparams, nresults := len(d.params), len(d.results)
	return func(ctx context.Context, _ api.Module, stack []uint64) {
		args := make([]uint64, nparams)
		copy(args, stack)
		res, err := d.fn(ctx, l, args)
		if err != nil {
			panic(err)
		}
		if len(res) != nresults {
			panic(fmt.Errorf("native %s returned %d results, want %d", d.name, len(res), nresults))
		}
		copy(stack, res)
	}
}

// grow extends linear memory to cover need bytes.
func (l *Library) grow(need uint32) (uint32, bool) {
	mem := l.memory.mem
	if mem == nil {
		return 0, false
	}
	size := mem.Size()
	if need <= size {
		return size, true
	}
	delta := uint32((uint64(need-size) + pageSize - 1) / pageSize)
	if _, ok := mem.Grow(delta); !ok {
		l.log.Warn("memory growth refused", zap.Uint32("need", need), zap.Uint32("pages", delta))
		return 0, false
	}
	l.log.Debug("memory grown", zap.Uint32("pages", delta), zap.Uint32("size", mem.Size()))
	return mem.Size(), true
}

// Symbol resolves a native function exported by the shim.
func (l *Library) Symbol(name string) (nativecall.Function, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.shim == nil || name == "memory" {
		return nil, false
	}
	fn := l.shim.ExportedFunction(name)
	if fn == nil {
		return nil, false
	}
	return fn, true
}

// Close releases the wazero runtime and every module in it.
func (l *Library) Close(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.shim = nil
	l.memory.mem = nil
	return l.runtime.Close(ctx)
}
