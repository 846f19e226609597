package mailqueue

import (
	"fmt"
	"strings"
)

func qualifiedTypeName(v any) string {
	s := fmt.Sprintf("%T", v)
	s = strings.TrimLeft(s, "*")

	return s
}
