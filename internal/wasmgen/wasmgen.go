// Package wasmgen assembles minimal WebAssembly applications for the wasm
// CPU backend: one memory page, the full h7 import table and an
// entry_point export.
package wasmgen

// Function indices of the h7 imports, in import order. The entry point
// follows them.
const (
	FnAlloc = iota
	FnFree
	FnPanic
	FnGetc
	FnPutc
	FnPuts
	FnEntry
)

// Opcodes used by the helpers below.
const (
	OpUnreachable = 0x00
	OpEnd         = 0x0b
	OpCall        = 0x10
	OpDrop        = 0x1a
	OpLocalGet    = 0x20
	OpLocalSet    = 0x21
	OpI32Store    = 0x36
	OpI32Const    = 0x41
)

// ULEB encodes v as unsigned LEB128.
func ULEB(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			out = append(out, b|0x80)
			continue
		}
		return append(out, b)
	}
}

// SLEB encodes v as signed LEB128.
func SLEB(v int32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}

// I32Const pushes v.
func I32Const(v int32) []byte { return append([]byte{OpI32Const}, SLEB(v)...) }

// Call calls function fn.
func Call(fn uint32) []byte { return append([]byte{OpCall}, ULEB(fn)...) }

// Seq concatenates instructions.
func Seq(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func section(id byte, content []byte) []byte {
	return append(append([]byte{id}, ULEB(uint32(len(content)))...), content...)
}

func name(s string) []byte {
	return append(ULEB(uint32(len(s))), s...)
}

// Module assembles a module exporting "memory" and entry_point() -> i32
// with the given body (locals declaration included, final end excluded).
// data is placed at offset 0 of memory.
func Module(body, data []byte) []byte {
	types := []byte{5,
		0x60, 2, 0x7f, 0x7f, 1, 0x7f, // 0 (i32, i32) -> i32
		0x60, 1, 0x7f, 0, // 1 (i32)
		0x60, 2, 0x7f, 0x7f, 0, // 2 (i32, i32)
		0x60, 0, 1, 0x7f, // 3 () -> i32
		0x60, 1, 0x7f, 1, 0x7f, // 4 (i32) -> i32
	}
	imports := []byte{6}
	for _, imp := range []struct {
		name string
		typ  byte
	}{{"alloc", 0}, {"free", 1}, {"panic", 2}, {"getc", 3}, {"putc", 4}, {"puts", 0}} {
		imports = append(imports, name("h7")...)
		imports = append(imports, name(imp.name)...)
		imports = append(imports, 0x00, imp.typ)
	}
	exports := []byte{2}
	exports = append(append(exports, name("memory")...), 0x02, 0)
	exports = append(append(exports, name("entry_point")...), 0x00, FnEntry)

	fn := append(append([]byte(nil), body...), OpEnd)
	code := append([]byte{1}, append(ULEB(uint32(len(fn))), fn...)...)

	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	out = append(out, section(1, types)...)
	out = append(out, section(2, imports)...)
	out = append(out, section(3, []byte{1, 3})...)
	out = append(out, section(5, []byte{1, 0x00, 1})...)
	out = append(out, section(7, exports)...)
	out = append(out, section(10, code)...)
	if data != nil {
		seg := []byte{1, 0x00, OpI32Const, 0x00, OpEnd}
		seg = append(seg, ULEB(uint32(len(data)))...)
		seg = append(seg, data...)
		out = append(out, section(11, seg)...)
	}
	return out
}

// Hello returns a module that prints msg with puts and returns code.
func Hello(msg string, code int32) []byte {
	body := Seq(
		[]byte{0}, // no locals
		I32Const(0), I32Const(int32(len(msg))), Call(FnPuts), []byte{OpDrop},
		I32Const(code),
	)
	return Module(body, []byte(msg))
}
