package api

import (
	"net/http"
	"strconv"
	"strings"

	"geoatlas/internal/domain"
)

// queryList gathers a repeated query parameter, additionally splitting each
// occurrence on commas. Empty entries are dropped.
func queryList(r *http.Request, name string) []string {
	var out []string
	for _, raw := range r.URL.Query()[name] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func queryString(r *http.Request, name, def string) string {
	if v := r.URL.Query().Get(name); v != "" {
		return v
	}
	return def
}

func queryFloat(r *http.Request, name string, def float64) (float64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, domain.ErrValidation("parameter %s: %q is not a number", name, v)
	}
	return f, nil
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, domain.ErrValidation("parameter %s: %q is not an integer", name, v)
	}
	return n, nil
}

// queryIntPtr distinguishes an absent integer parameter from a zero one.
func queryIntPtr(r *http.Request, name string) (*int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, domain.ErrValidation("parameter %s: %q is not an integer", name, v)
	}
	return &n, nil
}

func queryIntList(r *http.Request, name string) ([]int, error) {
	var out []int
	for _, v := range queryList(r, name) {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, domain.ErrValidation("parameter %s: %q is not an integer", name, v)
		}
		out = append(out, n)
	}
	return out, nil
}

func queryBool(r *http.Request, name string, def bool) (bool, error) {
	v := strings.ToLower(r.URL.Query().Get(name))
	switch v {
	case "":
		return def, nil
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, domain.ErrValidation("parameter %s: %q is not a boolean", name, v)
	}
}

func queryHas(r *http.Request, name string) bool {
	return r.URL.Query().Has(name)
}
