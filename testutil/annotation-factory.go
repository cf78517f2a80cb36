package testutil

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/cs-au-dk/goat-flow/analysis/lattice"
	loc "github.com/cs-au-dk/goat-flow/analysis/location"
	"github.com/cs-au-dk/goat-flow/analysis/valuecontent"

	"golang.org/x/tools/go/expect"
)

var (
	id_RETURNS        = "returns"
	id_NILDEREF       = "nilderef"
	id_PANICS         = "panics"
	id_FALSE_POSITIVE = "fp"
	id_FALSE_NEGATIVE = "fn"
)

type annFactory struct{}

// Factory for creating annotation strings. Interpolate
// results with Go source code. Wrap multiple factory calls
// in the At function to concatenate multiple annotations
// on the same line and prefix with "//@ "
var Ann = annFactory{}

// Create a return annotation. The function enclosing the annotation is
// expected to return exactly the given constants. Use "top" for an
// unknown value and "null" for the nil reference.
func (annFactory) Returns(vals ...interface{}) string {
	args := make([]string, 0, len(vals))
	for _, v := range vals {
		switch v := v.(type) {
		case string:
			if v == "top" || v == "null" {
				args = append(args, v)
			} else {
				args = append(args, strconv.Quote(v))
			}
		case nil:
			args = append(args, "null")
		default:
			args = append(args, fmt.Sprint(v))
		}
	}
	return id_RETURNS + "(" + strings.Join(args, ", ") + ")"
}

// Create a dereference annotation. The nullness analysis is expected to
// report a possibly null receiver on the annotated line.
func (annFactory) NilDeref() string {
	return id_NILDEREF
}

// Create a dereference annotation for a receiver that is definitely null.
func (annFactory) NullDeref() string {
	return id_NILDEREF + "(null)"
}

// Create a panic annotation. The enclosing function may exit by panicking.
func (annFactory) Panics() string {
	return id_PANICS
}

// False negative tag.
func (annFactory) FalseNegative() string {
	return id_FALSE_NEGATIVE
}

// False positive tag.
func (annFactory) FalsePositive() string {
	return id_FALSE_POSITIVE
}

// Prefixes a sequence of strings with "//@ "
func At(anns ...string) string {
	ann := "//@ " + strings.Join(anns, ", ")
	return ann
}

func (mgr NotesManager) CreateAnnotation(note *expect.Note) (Annotation, error) {
	basic := basicAnnotation{note, mgr}

	switch note.Name {
	case id_FALSE_NEGATIVE:
		return AnnFalseNegative{basic}, nil
	case id_FALSE_POSITIVE:
		return AnnFalsePositive{basic}, nil
	case id_PANICS:
		return AnnPanics{basic}, nil

	case id_RETURNS:
		c, err := parseContent(note.Args)
		if err != nil {
			return nil, errors.Wrap(err, mgr.describe(note))
		}
		return AnnReturns{basic, c}, nil

	case id_NILDEREF:
		ann := AnnNilDeref{basicAnnotation: basic}
		switch len(note.Args) {
		case 0:
		case 1:
			switch identifier(note.Args[0]) {
			case "null":
				ann.state = loc.IsNull
			case "maybe":
				ann.state = loc.MaybeNull
			default:
				return nil, errors.Errorf("%s: expected null or maybe", mgr.describe(note))
			}
		default:
			return nil, errors.Errorf("%s: too many arguments", mgr.describe(note))
		}
		return ann, nil
	}

	return nil, errors.Errorf("unknown annotation %s", mgr.describe(note))
}

// identifier converts expect.Identifier to string.
func identifier(x interface{}) string {
	if id, ok := x.(expect.Identifier); ok {
		return string(id)
	}
	return ""
}

// parseContent turns note arguments into value content, normalized the
// way the value content analysis represents constants.
func parseContent(args []interface{}) (valuecontent.Content, error) {
	vals := make([]any, 0, len(args))
	for _, arg := range args {
		switch arg := arg.(type) {
		case nil:
			vals = append(vals, valuecontent.Null)
		case int64, float64, string, bool:
			vals = append(vals, arg)
		case int:
			vals = append(vals, int64(arg))
		case expect.Identifier:
			switch arg {
			case "top":
				if len(args) != 1 {
					return valuecontent.Content{}, errors.New("top cannot be combined with constants")
				}
				return lattice.SetTop[any](), nil
			case "null", "nil":
				vals = append(vals, valuecontent.Null)
			case "true":
				vals = append(vals, true)
			case "false":
				vals = append(vals, false)
			default:
				return valuecontent.Content{}, errors.Errorf("unexpected identifier %s", arg)
			}
		default:
			return valuecontent.Content{}, errors.Errorf("unexpected argument %v : %T", arg, arg)
		}
	}
	return valuecontent.Of(vals...), nil
}
