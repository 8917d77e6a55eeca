package deepsense

import (
	"bytes"
	"fmt"
	"strings"
)

type manyErr []error

func (err manyErr) Error() string {
	var buf bytes.Buffer
	for _, e := range err {
		fmt.Fprintln(&buf, e.Error())
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

func scoped(prefix string, i int) string { return fmt.Sprintf("%s_%d", prefix, i) }
