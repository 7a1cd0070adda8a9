package hub

import (
	"net/url"
	"strings"
)

// topicRoot is the namespace shared with the hub and the dev tools.
const topicRoot = "envirosim"

func (s *Session) topic(parts ...string) string {
	return strings.Join(append([]string{topicRoot, s.cfg.DeviceID}, parts...), "/")
}

// propertyBag encodes event attributes as the final topic segment,
// url-encoded with sorted keys.
func propertyBag(attrs map[string]string) string {
	vals := url.Values{}
	for k, v := range attrs {
		vals.Set(k, v)
	}
	return vals.Encode()
}
