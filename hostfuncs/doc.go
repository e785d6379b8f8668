// Package hostfuncs provides the host ABI table: the fixed set of callbacks a
// running application uses for heap and terminal access.
//
// The table has no dependency on any CPU backend. Backends convert whatever
// pointer/length pairs the application hands them into bounds-checked Go
// slices at the boundary, then call the table methods here, which validate
// content (UTF-8, alignment) before touching host state.
package hostfuncs
