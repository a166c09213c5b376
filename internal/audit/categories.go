package audit

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Category is a fixed report grouping.
type Category struct {
	ID    string
	Label string
}

// Categories is the fixed, ordered list of report categories.
var Categories = []Category{
	{ID: "best_practices", Label: "Best practices"},
	{ID: "block", Label: "Block"},
	{ID: "cache", Label: "Drupal's caching settings"},
	{ID: "cron", Label: "Cron"},
	{ID: "database", Label: "Database"},
	{ID: "extensions", Label: "Extensions"},
	{ID: "front_end", Label: "Front End"},
	{ID: "status", Label: "Status"},
	{ID: "security", Label: "Security"},
	{ID: "users", Label: "Users"},
	{ID: "views", Label: "Views"},
	{ID: "watchdog", Label: "Watchdog database logs"},
}

// Key prefixes consumers match on.
const (
	ReportKeyPrefix = "SiteAuditReport"
	CheckKeyPrefix  = "SiteAuditCheck"
)

// LookupCategory returns the category with the given id.
func LookupCategory(id string) (Category, bool) {
	for _, c := range Categories {
		if c.ID == id {
			return c, true
		}
	}
	return Category{}, false
}

// ReportKey returns the output key for a category: "SiteAuditReport" followed
// by the id in PascalCase (best_practices -> SiteAuditReportBestPractices).
func ReportKey(categoryID string) string {
	return ReportKeyPrefix + PascalCase(categoryID)
}

// CheckKey returns the output key for a roster entry: "SiteAuditCheck"
// followed by the short name, unchanged (CachePreprocessCSS ->
// SiteAuditCheckCachePreprocessCSS).
func CheckKey(shortName string) string {
	return CheckKeyPrefix + shortName
}

// PascalCase upper-cases the first letter of every underscore-separated
// word and joins them. Letters after the first are left untouched.
func PascalCase(id string) string {
	words := strings.Fields(strings.ReplaceAll(id, "_", " "))
	titler := cases.Title(language.Und, cases.NoLower)
	var b strings.Builder
	for _, w := range words {
		b.WriteString(titler.String(w))
	}
	return b.String()
}
