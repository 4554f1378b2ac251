//go:build !linux

package tproxy

import "errors"

func newConntrackResolver() (Resolver, error) {
	return nil, errors.New("redirect mode requires Linux conntrack")
}
