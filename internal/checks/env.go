package checks

// Hosting environments as seen by the checks.
const (
	EnvDev  = "dev"
	EnvProd = "prod"
)

// Vendors with platform-specific expectations.
const (
	VendorDefault  = "default"
	VendorPantheon = "pantheon"
	VendorAcquia   = "acquia"
)

// DetectEnvironment classifies the hosting environment from the platform
// variables Acquia and Pantheon set. It returns "" off-platform.
//
// Acquia test/prod and Pantheon test/live are production-like; every other
// platform environment is development.
func DetectEnvironment(getenv func(string) string) string {
	if env := getenv("AH_SITE_ENVIRONMENT"); env != "" {
		if env == "test" || env == "prod" {
			return EnvProd
		}
		return EnvDev
	}
	if env := getenv("PANTHEON_ENVIRONMENT"); env != "" {
		if env == "test" || env == "live" {
			return EnvProd
		}
		return EnvDev
	}
	return ""
}
