package saic

import "fmt"

const (
	baseURLEurope    = "https://gateway-mg-eu.soimt.com/api.app/v1/"
	baseURLChina     = "https://tap-cn.soimt.com/api.app/v1/"
	baseURLAustralia = "https://gateway-mg-au.soimt.com/api.app/v1/"
	baseURLIsrael    = "https://gateway-mg-il.soimt.com/api.app/v1/"
)

// DefaultRegion is used when no region is configured.
const DefaultRegion = "Europe"

var regionBaseURLs = map[string]string{
	"EU":            baseURLEurope,
	"Europe":        baseURLEurope,
	"Rest of World": baseURLEurope,
	"China":         baseURLChina,
	"Australia":     baseURLAustralia,
	"Israel":        baseURLIsrael,
}

// RegionBaseURL returns the gateway base URL for a region name.
func RegionBaseURL(region string) (string, error) {
	if region == "" {
		region = DefaultRegion
	}
	u, ok := regionBaseURLs[region]
	if !ok {
		return "", fmt.Errorf("base URL not defined for region: %s", region)
	}
	return u, nil
}
