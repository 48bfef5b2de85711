package core

// publish.go – dependent-package extraction for MoveModulePublish
// (spec.md §4.2, §8 scenario S5). Parsing actual Move bytecode module
// handles is delegated to the external deterministic executor (spec.md §1);
// the gateway only needs the list of package ids a publish transitively
// depends on, so it treats each compiled module as a minimal self-describing
// header of declared dependencies rather than attempting real bytecode
// disassembly.
//
// Module wire format (a stand-in for "compiled module bytes" in a system
// that does not implement a Move bytecode reader): one leading byte giving
// the dependency count N, followed by N 20-byte ObjectIDs. A module whose
// bytes are shorter than the header claims is malformed and is silently
// skipped (spec.md §4.2 "modules that fail to parse are silently skipped —
// the transaction will fail deterministically at execution").

// moduleDependencies parses one compiled module's declared dependency list.
// Returns nil, false if the module is malformed.
func moduleDependencies(module []byte) ([]ObjectID, bool) {
	if len(module) < 1 {
		return nil, false
	}
	n := int(module[0])
	need := 1 + n*len(ObjectID{})
	if len(module) < need {
		return nil, false
	}
	out := make([]ObjectID, 0, n)
	for i := 0; i < n; i++ {
		var id ObjectID
		off := 1 + i*len(id)
		copy(id[:], module[off:off+len(id)])
		out = append(out, id)
	}
	return out, true
}

// dependentPackages returns the deduplicated, order-preserving transitive
// set of non-zero dependent package ids declared by modules. Modules that
// fail to parse contribute nothing and are otherwise ignored here (spec.md
// leaves it to execution to reject the publish deterministically).
func dependentPackages(modules [][]byte) []ObjectID {
	seen := make(map[ObjectID]struct{})
	var out []ObjectID
	for _, m := range modules {
		deps, ok := moduleDependencies(m)
		if !ok {
			continue
		}
		for _, id := range deps {
			if id == ObjectIDZero {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

// EncodeModuleForTest builds a synthetic module blob in the wire format
// above, for use by tests.
func EncodeModuleForTest(deps []ObjectID) []byte {
	out := make([]byte, 1, 1+len(deps)*20)
	out[0] = byte(len(deps))
	for _, id := range deps {
		out = append(out, id[:]...)
	}
	return out
}
