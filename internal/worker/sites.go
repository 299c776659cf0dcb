// Package worker runs predictions outside the request path: jobs received
// over Pub/Sub and a scheduled batch over configured sites.
package worker

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidSite is returned when a site definition cannot be parsed.
var ErrInvalidSite = errors.New("invalid site")

// Site is a named location predictions are run for.
type Site struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// SiteList is a list of sites. It decodes from "name:lat,lon" entries
// separated by semicolons, e.g. "Kochi:9.93,76.26;Pune:18.52,73.85".
type SiteList []Site

// Decode implements envconfig.Decoder.
func (l *SiteList) Decode(value string) error {
	sites, err := ParseSites(value)
	if err != nil {
		return err
	}
	*l = sites
	return nil
}

// ParseSites parses a semicolon separated site list. Empty entries are
// ignored.
func ParseSites(value string) (SiteList, error) {
	var sites SiteList
	for _, entry := range strings.Split(value, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		site, err := parseSite(entry)
		if err != nil {
			return nil, err
		}
		sites = append(sites, site)
	}
	return sites, nil
}

func parseSite(entry string) (Site, error) {
	name, coords, ok := strings.Cut(entry, ":")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return Site{}, fmt.Errorf("%w %q: expected name:lat,lon", ErrInvalidSite, entry)
	}

	latStr, lonStr, ok := strings.Cut(coords, ",")
	if !ok {
		return Site{}, fmt.Errorf("%w %q: expected name:lat,lon", ErrInvalidSite, entry)
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil || lat < -90 || lat > 90 {
		return Site{}, fmt.Errorf("%w %q: bad latitude", ErrInvalidSite, entry)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil || lon < -180 || lon > 180 {
		return Site{}, fmt.Errorf("%w %q: bad longitude", ErrInvalidSite, entry)
	}

	return Site{Name: name, Lat: lat, Lon: lon}, nil
}
