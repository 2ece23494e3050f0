package wrun

import (
	"fmt"
	"strings"

	"wrun/internal/wasm"
	"wrun/internal/wasmtext/disasm"
)

// CompiledModule is a parsed, resolved, and validated module ready for Runtime.InstantiateModule. The same
// CompiledModule may be instantiated more than once (under distinct ModuleConfig names) without repeating the
// parse/resolve/validate work.
type CompiledModule struct {
	module *wasm.Module
}

// Name returns the module's name as given by the text format's module id, or "" if it declared none. The
// binary decoder does not read the name section's module-name subsection, so a binary module's Name is "".
func (c *CompiledModule) Name() string { return c.module.Name }

// FunctionCount returns the number of module-defined functions (excluding imports).
func (c *CompiledModule) FunctionCount() int { return len(c.module.CodeSection) }

// BytecodeSize returns the total size, in bytes, of every function's emitted bytecode.
func (c *CompiledModule) BytecodeSize() int {
	n := 0
	for _, code := range c.module.CodeSection {
		n += len(code.Body)
	}
	return n
}

// Disassemble renders every module-defined function's emitted bytecode back to mnemonic text, one function
// per section headed by its index in the function index space.
func (c *CompiledModule) Disassemble() string {
	var b strings.Builder
	imported := c.module.ImportedFunctionCount()
	for i, code := range c.module.CodeSection {
		fmt.Fprintf(&b, "func[%d]:\n", imported+i)
		b.WriteString(disasm.Function(code))
	}
	return b.String()
}
