package cache

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"stacklua.dev/pkg/internal/vm"
)

// codeUnitRecord is a serializable mirror of [vm.CodeUnit], built only
// from vm's exported accessors: CodeUnit's own fields are unexported,
// so a cache living outside package vm can't gob-encode it directly.
// There is no ecosystem bytecode-serialization library in the example
// pack for a format this specific to one VM's instruction encoding (the
// teacher's own internal/luacode has a hand-rolled MarshalBinary for
// precisely this reason); gob is used here as the std-library fallback,
// justified in DESIGN.md.
type codeUnitRecord struct {
	Kind vm.UnitKind
	Op   vm.Op

	ValueKind vm.Kind
	Number    float64
	Str       string
	Address   int
	Index     int
}

// EncodeCode serializes code into a cache-storable byte slice.
func EncodeCode(code vm.Code) ([]byte, error) {
	records := make([]codeUnitRecord, len(code))
	for i, unit := range code {
		r := codeUnitRecord{Kind: unit.Kind}
		switch unit.Kind {
		case vm.UnitInstruction:
			r.Op = unit.Op
		case vm.UnitValue:
			v := unit.Value
			r.ValueKind = v.Kind()
			switch r.ValueKind {
			case vm.KindNil:
				// ValueKind alone reconstructs Nil.
			case vm.KindBoolean:
				b, _ := v.Boolean()
				if b {
					r.Number = 1
				}
			case vm.KindNumber:
				r.Number, _ = v.Number()
			case vm.KindString:
				r.Str, _ = v.String()
			case vm.KindAddress:
				r.Address, _ = v.Address()
			case vm.KindIndex:
				r.Index, _ = v.Index()
			case vm.KindTable:
				// A table literal's entries are populated by runtime
				// InsertIntoTable instructions, never baked in; an
				// empty table of the same kind reconstructs correctly.
			default:
				return nil, fmt.Errorf("luastack cache: encode code: unsupported inline value kind %v", r.ValueKind)
			}
		}
		records[i] = r
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(records); err != nil {
		return nil, fmt.Errorf("luastack cache: encode code: %v", err)
	}
	return buf.Bytes(), nil
}

// DecodeCode is the inverse of [EncodeCode].
func DecodeCode(data []byte) (vm.Code, error) {
	var records []codeUnitRecord
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&records); err != nil {
		return nil, fmt.Errorf("luastack cache: decode code: %v", err)
	}
	code := make(vm.Code, len(records))
	for i, r := range records {
		switch r.Kind {
		case vm.UnitInstruction:
			code[i] = vm.Instruction(r.Op)
		case vm.UnitEndClosureMarker:
			code[i] = vm.EndClosureMarkerUnit()
		case vm.UnitValue:
			var v vm.Value
			switch r.ValueKind {
			case vm.KindNil:
				v = vm.Nil
			case vm.KindBoolean:
				v = vm.BooleanValue(r.Number != 0)
			case vm.KindNumber:
				v = vm.NumberValue(r.Number)
			case vm.KindString:
				v = vm.StringValue(r.Str)
			case vm.KindAddress:
				v = vm.AddressValue(r.Address)
			case vm.KindIndex:
				v = vm.IndexValue(r.Index)
			case vm.KindTable:
				v = vm.TableValue(vm.NewTable(0))
			default:
				return nil, fmt.Errorf("luastack cache: decode code: unsupported inline value kind %v", r.ValueKind)
			}
			code[i] = vm.InlineValue(v)
		default:
			return nil, fmt.Errorf("luastack cache: decode code: unknown unit kind %v", r.Kind)
		}
	}
	return code, nil
}

// EncodeGlobals serializes a compiler global name table (ordered by
// slot index, see compiler.Compile) for storage alongside its Code.
func EncodeGlobals(names []string) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(names); err != nil {
		return nil, fmt.Errorf("luastack cache: encode globals: %v", err)
	}
	return buf.Bytes(), nil
}

// DecodeGlobals is the inverse of [EncodeGlobals].
func DecodeGlobals(data []byte) ([]string, error) {
	var names []string
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&names); err != nil {
		return nil, fmt.Errorf("luastack cache: decode globals: %v", err)
	}
	return names, nil
}
