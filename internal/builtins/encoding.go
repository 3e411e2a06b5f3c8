package builtins

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

func base64urlEncodeNoPad(x string) (string, error) {
	return base64.RawURLEncoding.EncodeToString([]byte(x)), nil
}

func hexEncode(x string) (string, error) {
	return hex.EncodeToString([]byte(x)), nil
}

func hexDecode(x string) (string, error) {
	b, err := hex.DecodeString(x)
	if err != nil {
		return "", fmt.Errorf("hex.decode: %w", err)
	}
	return string(b), nil
}

func urlqueryEncode(x string) (string, error) {
	return url.QueryEscape(x), nil
}

func urlqueryDecode(x string) (string, error) {
	s, err := url.QueryUnescape(x)
	if err != nil {
		return "", fmt.Errorf("urlquery.decode: %w", err)
	}
	return s, nil
}

func urlqueryEncodeObject(x map[string]interface{}) (string, error) {
	parts := make([]string, 0, len(x))
	for key, raw := range x {
		switch v := raw.(type) {
		case []interface{}:
			for _, el := range v {
				parts = append(parts, key+"="+url.QueryEscape(fmt.Sprint(el)))
			}
		default:
			parts = append(parts, key+"="+url.QueryEscape(fmt.Sprint(v)))
		}
	}
	sort.Strings(parts)
	return strings.Join(parts, "&"), nil
}

func urlqueryDecodeObject(x string) (map[string][]string, error) {
	out := map[string][]string{}
	for _, pair := range strings.Split(x, "&") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			continue
		}
		out[kv[0]] = append(out[kv[0]], kv[1])
	}
	return out, nil
}

// sprintf implements a printf-style formatter over JSON-decoded arguments,
// mirroring Go's fmt.Sprintf but degrading to an ad-hoc diagnostic string
// -- rather than an error -- for the three failure modes the design notes
// call out as diverging from strict host behaviour: a wrong-typed verb, too
// many arguments, or not enough arguments.
func sprintf(format string, values []interface{}) (string, error) {
	args := make([]interface{}, len(values))
	copy(args, values)

	out := fmt.Sprintf(format, args...)
	if strings.Contains(out, "%!") {
		return diagnoseSprintf(format, values), nil
	}
	return out, nil
}

func diagnoseSprintf(format string, values []interface{}) string {
	return fmt.Sprintf("sprintf: format %s cannot be applied to %d argument(s)", strconv.Quote(format), len(values))
}
