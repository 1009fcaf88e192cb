package config

import (
	"fmt"
	"sort"
	"strings"
)

// DefaultNetwork is used when no layer selects a network or endpoint.
const DefaultNetwork = "sepolia"

// networkEndpoints maps network names to verification service base URLs.
var networkEndpoints = map[string]string{
	"mainnet": "https://verify.quasarlabs.xyz/mainnet",
	"sepolia": "https://verify.quasarlabs.xyz/sepolia",
	"dev":     "http://localhost:8080",
}

// KnownNetworks lists the selectable network names.
func KnownNetworks() []string {
	names := make([]string, 0, len(networkEndpoints))
	for name := range networkEndpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Endpoint resolves the verification service base URL from the merged
// network/URL selection.
func (c *Config) Endpoint() (string, error) {
	if c.URL != "" {
		if c.Network != "" {
			return "", fmt.Errorf("--network and --url are mutually exclusive")
		}
		return c.URL, nil
	}

	network := c.Network
	if network == "" {
		network = DefaultNetwork
	}
	endpoint, ok := networkEndpoints[strings.ToLower(network)]
	if !ok {
		return "", fmt.Errorf("unknown network %q (expected %s, or use --url)",
			network, strings.Join(KnownNetworks(), ", "))
	}
	return endpoint, nil
}

// NetworkLabel is the value recorded in history for this endpoint
// selection: the network name, or the custom URL itself.
func (c *Config) NetworkLabel() string {
	if c.URL != "" {
		return c.URL
	}
	if c.Network == "" {
		return DefaultNetwork
	}
	return strings.ToLower(c.Network)
}
