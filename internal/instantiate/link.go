package instantiate

import (
	"wrun/api"
	"wrun/internal/wasm"
	"wrun/internal/wasmerr"
)

// resolvedImports holds the Store addresses an import section resolved to, in declaration order within each
// index-space, ready to seed the low indices of the importing module's own address vectors (imports always
// occupy the low indices of an index-space, ahead of anything the module defines itself).
type resolvedImports struct {
	Functions []wasm.FunctionAddr
	Tables    []wasm.TableAddr
	Memories  []wasm.MemoryAddr
	Globals   []wasm.GlobalAddr
}

// limitsWorksAs reports whether actual is an acceptable instantiation of a declared import's limits: its
// floor must be at least the declared floor, and if the declared limit has a ceiling, actual must have one
// too and it must not exceed it.
func limitsWorksAs(actual, declared wasm.Limits) bool {
	if actual.Min < declared.Min {
		return false
	}
	if declared.Max == nil {
		return true
	}
	return actual.Max != nil && *actual.Max <= *declared.Max
}

// resolveImports looks up every entry of m's import section in registry, checking kind and signature
// compatibility before returning the Store addresses it resolved to. The first incompatible or missing import
// fails the whole instantiation with a KindLink error, per the standard's all-or-nothing linking rule.
func resolveImports(store *wasm.Store, registry *Registry, m *wasm.Module) (resolvedImports, error) {
	var out resolvedImports
	for _, imp := range m.ImportSection {
		srcMod, ok := registry.Lookup(imp.Module)
		if !ok {
			return out, wasmerr.Newf(wasmerr.KindLink, "module %q not found, importing %q.%q", imp.Module, imp.Module, imp.Name)
		}
		exp, ok := srcMod.Exports[imp.Name]
		if !ok {
			return out, wasmerr.Newf(wasmerr.KindLink, "%q.%q: export not found", imp.Module, imp.Name)
		}
		if exp.Type != imp.Type {
			return out, wasmerr.Newf(wasmerr.KindLink, "%q.%q: import kind mismatch: want %s, have %s",
				imp.Module, imp.Name, api.ExternTypeName(imp.Type), api.ExternTypeName(exp.Type))
		}
		switch imp.Type {
		case api.ExternTypeFunc:
			addr := srcMod.FunctionAddrs[exp.Index]
			fn := store.Function(addr)
			declType := m.TypeAt(imp.DescFunc)
			if !fn.Type.EqualsSignature(declType) {
				return out, wasmerr.Newf(wasmerr.KindLink, "%q.%q: function signature mismatch: want %s, have %s",
					imp.Module, imp.Name, declType, fn.Type)
			}
			out.Functions = append(out.Functions, addr)
		case api.ExternTypeTable:
			addr := srcMod.TableAddrs[exp.Index]
			tbl := store.Table(addr)
			if tbl.Type.RefType != imp.DescTable.RefType || !limitsWorksAs(tbl.Type.Limits, imp.DescTable.Limits) {
				return out, wasmerr.Newf(wasmerr.KindLink, "%q.%q: incompatible table import", imp.Module, imp.Name)
			}
			out.Tables = append(out.Tables, addr)
		case api.ExternTypeMemory:
			addr := srcMod.MemoryAddrs[exp.Index]
			mem := store.Memory(addr)
			if !limitsWorksAs(mem.Type.Limits, imp.DescMem.Limits) {
				return out, wasmerr.Newf(wasmerr.KindLink, "%q.%q: incompatible memory import", imp.Module, imp.Name)
			}
			out.Memories = append(out.Memories, addr)
		case api.ExternTypeGlobal:
			addr := srcMod.GlobalAddrs[exp.Index]
			g := store.Global(addr)
			if g.Type.ValType != imp.DescGlobal.ValType || g.Type.Mutable != imp.DescGlobal.Mutable {
				return out, wasmerr.Newf(wasmerr.KindLink, "%q.%q: incompatible global import", imp.Module, imp.Name)
			}
			out.Globals = append(out.Globals, addr)
		default:
			return out, wasmerr.Newf(wasmerr.KindLink, "%q.%q: unknown import kind %#x", imp.Module, imp.Name, imp.Type)
		}
	}
	return out, nil
}
