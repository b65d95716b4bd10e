package policy

import (
	"strconv"

	simerrors "github.com/cachesim/cachesim/pkg/errors"
)

// Parameter parsing shared by the built-in policies. Out-of-range or
// non-numeric values are configuration errors raised at construction,
// never runtime corruption.

func floatParam(params map[string]string, key string, def, lo, hi float64) (float64, error) {
	raw, ok := params[key]
	if !ok || raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, simerrors.Newf(simerrors.ErrCodeInvalidParam,
			"parameter %q: %q is not a number", key, raw).WithComponent("policy")
	}
	if v < lo || v > hi {
		return 0, simerrors.Newf(simerrors.ErrCodeInvalidParam,
			"parameter %q: %v out of range [%v, %v]", key, v, lo, hi).WithComponent("policy")
	}
	return v, nil
}

func uintParam(params map[string]string, key string, def, lo, hi uint64) (uint64, error) {
	raw, ok := params[key]
	if !ok || raw == "" {
		return def, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, simerrors.Newf(simerrors.ErrCodeInvalidParam,
			"parameter %q: %q is not a non-negative integer", key, raw).WithComponent("policy")
	}
	if v < lo || v > hi {
		return 0, simerrors.Newf(simerrors.ErrCodeInvalidParam,
			"parameter %q: %d out of range [%d, %d]", key, v, lo, hi).WithComponent("policy")
	}
	return v, nil
}

func stringParam(params map[string]string, key, def string) string {
	if raw, ok := params[key]; ok && raw != "" {
		return raw
	}
	return def
}
