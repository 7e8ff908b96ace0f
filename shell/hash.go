package shell

import (
	"fmt"
	"net/url"
	"strings"
)

const appRouteSeparator = "&/"

// Hash is a parsed shell location of the form
//
//	Target?key=value&key2=value2&/app/specific/route
//
// Parameters belong to the shell; the app route is opaque and owned by the
// application the target launches.
type Hash struct {
	Target   string
	Params   url.Values
	AppRoute string
}

// Normalize strips the optional leading '#'.
func Normalize(location string) string {
	return strings.TrimPrefix(location, "#")
}

// ParseHash splits a location into target, parameters and app route.
func ParseHash(location string) (Hash, error) {
	location = Normalize(location)

	head, route, _ := strings.Cut(location, appRouteSeparator)
	target, query, _ := strings.Cut(head, "?")

	params, err := url.ParseQuery(query)
	if err != nil {
		return Hash{}, fmt.Errorf("parse shell hash %q: %w", location, err)
	}

	return Hash{
		Target:   target,
		Params:   params,
		AppRoute: route,
	}, nil
}

// String reassembles the location. Parameters are emitted sorted by key.
func (h Hash) String() string {
	var b strings.Builder
	b.WriteString(h.Target)
	if len(h.Params) > 0 {
		b.WriteByte('?')
		b.WriteString(h.Params.Encode())
	}
	if h.AppRoute != "" {
		b.WriteString(appRouteSeparator)
		b.WriteString(h.AppRoute)
	}
	return b.String()
}

// With returns a copy of the hash with the parameter set to value.
func (h Hash) With(key, value string) Hash {
	params := make(url.Values, len(h.Params)+1)
	for k, v := range h.Params {
		params[k] = append([]string(nil), v...)
	}
	params.Set(key, value)
	h.Params = params
	return h
}

// Has reports whether the parameter is present, with any value.
func (h Hash) Has(key string) bool {
	return h.Params.Has(key)
}
