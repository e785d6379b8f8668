// Package wazero provides a CPU backend that runs application images as
// WebAssembly on the wazero runtime.
//
// The code section of an image, from the entry offset up to the CRC trailer,
// is a wasm module. It must export:
//
//	memory                 linear memory
//	entry_point() -> i32   the application, returning its exit code
//
// and may import the host function table from module "h7":
//
//	alloc(size, align i32) i32
//	free(ptr i32)
//	panic(ptr, len i32)
//	getc() i32
//	putc(c i32) i32
//	puts(ptr, len i32) i32
//
// The host heap window is mapped into guest memory right after the pages the
// module declares, so addresses returned by alloc are usable by the guest.
// Pointers are translated at the boundary in both directions.
//
// # Basic Usage
//
//	cpu, err := wazero.New(ctx, buf, wazero.WithHeapWindow(heapStart, heapSize))
//	if err != nil {
//	    return err
//	}
//	defer cpu.Close(ctx)
//
//	engine, err := host.NewEngine(buf, cpu, table, tracker)
package wazero
