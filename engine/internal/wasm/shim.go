package wasm

import (
	"github.com/tetratelabs/wazero/api"
)

const (
	sectionType   = 0x01
	sectionImport = 0x02
	sectionMemory = 0x05
	sectionExport = 0x07

	externFunc   = 0x00
	externMemory = 0x02
)

// ShimBuilder builds a module that owns the linear memory and re-exports
// host functions, so that natives and the marshaler share one memory.
type ShimBuilder struct {
	hostModuleName string
	memoryName     string
	funcs          []shimFunc
	minPages       uint32
	maxPages       uint32
}

type shimFunc struct {
	name        string
	paramTypes  []api.ValueType
	resultTypes []api.ValueType
}

// NewShimBuilder creates a builder importing functions from hostModuleName.
func NewShimBuilder(hostModuleName string) *ShimBuilder {
	return &ShimBuilder{
		hostModuleName: hostModuleName,
		memoryName:     "memory",
		minPages:       1,
	}
}

// AddFunc adds a function to import and re-export.
func (b *ShimBuilder) AddFunc(name string, params, results []api.ValueType) {
	b.funcs = append(b.funcs, shimFunc{
		name:        name,
		paramTypes:  params,
		resultTypes: results,
	})
}

// SetMemory configures the exported memory. A zero maxPages leaves the
// memory unbounded up to the runtime limit.
func (b *ShimBuilder) SetMemory(exportName string, minPages, maxPages uint32) {
	b.memoryName = exportName
	b.minPages = minPages
	b.maxPages = maxPages
}

// FuncCount returns the number of re-exported functions.
func (b *ShimBuilder) FuncCount() int {
	return len(b.funcs)
}

// Build generates the WASM module bytes.
func (b *ShimBuilder) Build() []byte {
	var wasm []byte
	wasm = append(wasm, 0x00, 0x61, 0x73, 0x6d)
	wasm = append(wasm, 0x01, 0x00, 0x00, 0x00)

	if len(b.funcs) > 0 {
		wasm = appendSection(wasm, sectionType, b.buildTypeSection())
		wasm = appendSection(wasm, sectionImport, b.buildImportSection())
	}
	wasm = appendSection(wasm, sectionMemory, b.buildMemorySection())
	wasm = appendSection(wasm, sectionExport, b.buildExportSection())
	return wasm
}

func (b *ShimBuilder) buildTypeSection() []byte {
	var section []byte
	section = appendULEB128(section, uint32(len(b.funcs)))
	for _, f := range b.funcs {
		section = append(section, 0x60)
		section = appendULEB128(section, uint32(len(f.paramTypes)))
		for _, t := range f.paramTypes {
			section = append(section, valType(t))
		}
		section = appendULEB128(section, uint32(len(f.resultTypes)))
		for _, t := range f.resultTypes {
			section = append(section, valType(t))
		}
	}
	return section
}

func (b *ShimBuilder) buildImportSection() []byte {
	var section []byte
	section = appendULEB128(section, uint32(len(b.funcs)))
	for i, f := range b.funcs {
		section = appendName(section, b.hostModuleName)
		section = appendName(section, f.name)
		section = append(section, externFunc)
		section = appendULEB128(section, uint32(i))
	}
	return section
}

func (b *ShimBuilder) buildMemorySection() []byte {
	section := []byte{0x01}
	if b.maxPages == 0 {
		section = append(section, 0x00)
		return appendULEB128(section, b.minPages)
	}
	section = append(section, 0x01)
	section = appendULEB128(section, b.minPages)
	return appendULEB128(section, b.maxPages)
}

// buildExportSection exports the memory and every imported function. An
// imported function can be re-exported directly by its index.
func (b *ShimBuilder) buildExportSection() []byte {
	var section []byte
	section = appendULEB128(section, uint32(len(b.funcs)+1))

	section = appendName(section, b.memoryName)
	section = append(section, externMemory, 0x00)

	for i, f := range b.funcs {
		section = appendName(section, f.name)
		section = append(section, externFunc)
		section = appendULEB128(section, uint32(i))
	}
	return section
}
