package indenter

import (
	"fmt"
	"strings"
)

// indenter accumulates a nested, indented rendering of a structure.
// Unlike a global buffer it is safe to use from concurrent analyses.
type indenter struct {
	buf   *strings.Builder
	level int
}

func Indenter() indenter {
	return indenter{buf: new(strings.Builder)}
}

func (i indenter) indent() string {
	return strings.Repeat("  ", i.level)
}

func (i indenter) Start(str string) indenter {
	i.buf.WriteString(str)
	return i
}

type stringableString string

func (s stringableString) String() string {
	return string(s)
}

func (i indenter) NestStrings(strs ...string) indenter {
	return i.NestStringsSep("", strs...)
}

func (i indenter) NestStringsSep(sep string, strs ...string) indenter {
	stringers := make([]fmt.Stringer, len(strs))
	for i, v := range strs {
		stringers[i] = stringableString(v)
	}
	return i.NestSep(sep, stringers...)
}

func (i indenter) Nest(strs ...fmt.Stringer) indenter {
	return i.NestSep("", strs...)
}

func (i indenter) NestSep(sep string, strs ...fmt.Stringer) indenter {
	thunks := make([]func() string, len(strs))
	for j, s := range strs {
		thunks[j] = s.String
	}
	return i.NestThunkedSep(sep, thunks...)
}

func (i indenter) NestThunked(strs ...func() string) indenter {
	return i.NestThunkedSep("", strs...)
}

func (i indenter) NestThunkedSep(sep string, strs ...func() string) indenter {
	if len(strs) == 1 {
		i.buf.WriteString(strs[0]())
		return i
	}

	inner := i
	inner.level++
	for j, str := range strs {
		// Nested strings may span several lines; keep them aligned.
		s := strings.ReplaceAll(str(), "\n", "\n"+inner.indent())
		i.buf.WriteString("\n" + inner.indent() + s)
		if j < len(strs)-1 {
			i.buf.WriteString(sep)
		}
	}
	i.buf.WriteString("\n")
	return i
}

func (i indenter) End(str string) string {
	res := i.buf.String()
	if len(res) > 0 && res[len(res)-1] == '\n' {
		res += i.indent() + str
	} else {
		res += str
	}
	i.buf.Reset()
	return res
}
