// File: internal/config/routes.go
package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/viper"

	"github.com/rmvrefund/rmv-refund/api/schemas"
)

// legacyRoutePrefix marks route sections in the INI layout, e.g. [route:work].
const legacyRoutePrefix = "route:"

// legacyRoutes collects [route:<name>] sections so an INI file written for the
// older tool keeps working alongside the nested 'routes' map.
func legacyRoutes(v *viper.Viper) (map[string]RouteConfig, error) {
	routes := make(map[string]RouteConfig)
	for key, value := range v.AllSettings() {
		if !strings.HasPrefix(key, legacyRoutePrefix) {
			continue
		}
		name := strings.TrimPrefix(key, legacyRoutePrefix)
		if name == "" {
			return nil, fmt.Errorf("route section '%s' has no name", key)
		}
		section, ok := value.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("route section '%s' must contain start and end keys", key)
		}
		if section["start"] == nil || section["end"] == nil {
			return nil, fmt.Errorf("route '%s' needs both a start and an end station", name)
		}
		routes[name] = RouteConfig{
			Start: fmt.Sprint(section["start"]),
			End:   fmt.Sprint(section["end"]),
		}
	}
	return routes, nil
}

// RouteNames returns the configured route names in sorted order.
func (c *Config) RouteNames() []string {
	names := make([]string, 0, len(c.RoutesCfg))
	for name := range c.RoutesCfg {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Route looks up a route by name. Names are matched case-insensitively since
// viper lowercases map keys.
func (c *Config) Route(name string) (RouteConfig, error) {
	if r, ok := c.RoutesCfg[strings.ToLower(strings.TrimSpace(name))]; ok {
		return r, nil
	}
	if r, ok := c.RoutesCfg[name]; ok {
		return r, nil
	}
	return RouteConfig{}, schemas.NewClaimError(schemas.KindConfiguration, "resolve route", "",
		fmt.Errorf("route '%s' is not configured, known routes: %s", name, strings.Join(c.RouteNames(), ", ")))
}
