package flake

import (
	"fmt"
	"math"
	"time"
)

// Datatype is the closed set of object value categories. Values compare
// first by datatype and then within the datatype, so flakes holding mixed
// datatypes under one predicate still have a stable index position.
type Datatype uint8

const (
	// datatypeMin and datatypeMax are reserved for scan bounds. They never
	// appear on stored flakes.
	datatypeMin Datatype = iota
	DatatypeBool
	DatatypeInt
	DatatypeFloat
	DatatypeString
	DatatypeRef
	DatatypeTime
	datatypeMax Datatype = math.MaxUint8
)

func (d Datatype) String() string {
	switch d {
	case DatatypeBool:
		return "boolean"
	case DatatypeInt:
		return "integer"
	case DatatypeFloat:
		return "float"
	case DatatypeString:
		return "string"
	case DatatypeRef:
		return "ref"
	case DatatypeTime:
		return "time"
	default:
		return "unknown"
	}
}

// Value is a tagged variant over the known datatypes. Exactly one payload
// field is meaningful for a given Kind.
type Value struct {
	Kind  Datatype
	Bool  bool
	Int   int64
	Float float64
	Str   string
	Ref   SubjectID
}

func Bool(b bool) Value { return Value{Kind: DatatypeBool, Bool: b} }
func Int(i int64) Value { return Value{Kind: DatatypeInt, Int: i} }
func Float(f float64) Value { return Value{Kind: DatatypeFloat, Float: f} }
func String(s string) Value { return Value{Kind: DatatypeString, Str: s} }
func Ref(s SubjectID) Value { return Value{Kind: DatatypeRef, Ref: s} }
func Time(t time.Time) Value { return Value{Kind: DatatypeTime, Int: t.UnixNano()} }

// MinValue sorts before every storable value. Used for scan lower bounds.
func MinValue() Value { return Value{Kind: datatypeMin} }

// MaxValue sorts after every storable value. Used for scan upper bounds.
func MaxValue() Value { return Value{Kind: datatypeMax} }

// Native decodes the value into the corresponding Go representation. The
// default arm covers the bound sentinels, which are never decoded in
// practice.
func (v Value) Native() any {
	switch v.Kind {
	case DatatypeBool:
		return v.Bool
	case DatatypeInt:
		return v.Int
	case DatatypeFloat:
		return v.Float
	case DatatypeString:
		return v.Str
	case DatatypeRef:
		return int64(v.Ref)
	case DatatypeTime:
		return time.Unix(0, v.Int).UTC()
	default:
		return nil
	}
}

func (v Value) String() string {
	return fmt.Sprintf("%v", v.Native())
}

// CompareValues orders two values: by datatype first, then by payload.
func CompareValues(a, b Value) int {
	if c := cmpInt64(int64(a.Kind), int64(b.Kind)); c != 0 {
		return c
	}
	switch a.Kind {
	case DatatypeBool:
		return cmpBool(a.Bool, b.Bool)
	case DatatypeInt, DatatypeTime:
		return cmpInt64(a.Int, b.Int)
	case DatatypeFloat:
		switch {
		case a.Float < b.Float:
			return -1
		case a.Float > b.Float:
			return 1
		default:
			return 0
		}
	case DatatypeString:
		switch {
		case a.Str < b.Str:
			return -1
		case a.Str > b.Str:
			return 1
		default:
			return 0
		}
	case DatatypeRef:
		return cmpInt64(int64(a.Ref), int64(b.Ref))
	default:
		return 0
	}
}

func cmpBool(a, b bool) int {
	switch {
	case !a && b:
		return -1
	case a && !b:
		return 1
	default:
		return 0
	}
}
