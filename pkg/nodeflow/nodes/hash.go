package nodes

import (
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// RoutingKey returns the canonical string form of a routed value.
// It reports false for nil, which is never routed.
//
// Strings and byte slices are used as-is, fmt.Stringer values through
// String, booleans and numbers through strconv, and anything else through
// fmt's %v verb (which prints map keys in sorted order). Integers and
// integral floats therefore share a key: 3 and 3.0 route the same way.
func RoutingKey(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, true
	case []byte:
		return string(x), true
	case fmt.Stringer:
		return x.String(), true
	case bool:
		return strconv.FormatBool(x), true
	case int:
		return strconv.FormatInt(int64(x), 10), true
	case int8:
		return strconv.FormatInt(int64(x), 10), true
	case int16:
		return strconv.FormatInt(int64(x), 10), true
	case int32:
		return strconv.FormatInt(int64(x), 10), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case uint:
		return strconv.FormatUint(uint64(x), 10), true
	case uint8:
		return strconv.FormatUint(uint64(x), 10), true
	case uint16:
		return strconv.FormatUint(uint64(x), 10), true
	case uint32:
		return strconv.FormatUint(uint64(x), 10), true
	case uint64:
		return strconv.FormatUint(x, 10), true
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32), true
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), true
	default:
		return fmt.Sprintf("%v", x), true
	}
}

// Bucket maps v onto one of n outputs using xxHash64 of its routing key.
// It reports false when v is nil or n is not positive.
func Bucket(v any, n int) (int, bool) {
	if n <= 0 {
		return 0, false
	}
	key, ok := RoutingKey(v)
	if !ok {
		return 0, false
	}
	return int(xxhash.Sum64String(key) % uint64(n)), true
}
