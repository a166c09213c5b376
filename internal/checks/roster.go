package checks

import "github.com/ppiankov/siteaudit/internal/audit"

// Roster returns every check, in report order, bound to site.
func Roster(site *Site) []audit.RosterEntry {
	simple := func(name, category string, fn func(*Site) audit.Check) audit.RosterEntry {
		return audit.RosterEntry{Name: name, Category: category, New: func(*audit.RunContext) audit.Check { return fn(site) }}
	}
	withRun := func(name, category string, fn func(*Site, *audit.RunContext) audit.Check) audit.RosterEntry {
		return audit.RosterEntry{Name: name, Category: category, New: func(run *audit.RunContext) audit.Check { return fn(site, run) }}
	}

	return []audit.RosterEntry{
		simple("BestPracticesFast404", categoryBestPractices, newFast404),
		simple("BestPracticesFolderStructure", categoryBestPractices, newFolderStructure),
		simple("BestPracticesServices", categoryBestPractices, newServices),
		simple("BestPracticesSites", categoryBestPractices, newSites),
		simple("BestPracticesSitesDefault", categoryBestPractices, newSitesDefault),
		withRun("BestPracticesSitesSuperfluous", categoryBestPractices, newSitesSuperfluous),

		simple("BlockEnabled", "block", newBlockEnabled),

		simple("CacheBinsAll", categoryCache, newCacheBinsAll),
		simple("CacheBinsDefault", categoryCache, newCacheBinsDefault),
		simple("CacheBinsUsed", categoryCache, newCacheBinsUsed),
		simple("CachePageExpire", categoryCache, newCachePageExpire),
		simple("CachePreprocessCSS", categoryCache, newCachePreprocessCSS),
		simple("CachePreprocessJS", categoryCache, newCachePreprocessJS),

		simple("CronEnabled", "cron", newCronEnabled),
		simple("CronLast", "cron", newCronLast),

		simple("DatabaseSize", categoryDatabase, newDatabaseSize),
		simple("DatabaseCollation", categoryDatabase, newDatabaseCollation),
		simple("DatabaseFragmentation", categoryDatabase, newDatabaseFragmentation),
		simple("DatabaseRowCount", categoryDatabase, newDatabaseRowCount),

		simple("ExtensionsCount", categoryExtensions, newExtensionsCount),
		withRun("ExtensionsDev", categoryExtensions, newExtensionsDev),
		simple("ExtensionsDuplicate", categoryExtensions, newExtensionsDuplicate),

		withRun("UsersBlockedNumberOne", categoryUsers, newUsersBlockedNumberOne),
		simple("UsersCountAll", categoryUsers, newUsersCountAll),
		simple("UsersCountBlocked", categoryUsers, newUsersCountBlocked),
		simple("UsersRolesList", categoryUsers, newUsersRolesList),
		simple("UsersWhoIsNumberOne", categoryUsers, newUsersWhoIsNumberOne),

		simple("ViewsEnabled", "views", newViewsEnabled),
		simple("ViewsCount", "views", newViewsCount),

		simple("WatchdogEnabled", categoryWatchdog, newWatchdogEnabled),
		simple("WatchdogCount", categoryWatchdog, newWatchdogCount),
		simple("Watchdog404", categoryWatchdog, newWatchdog404),
		simple("WatchdogAge", categoryWatchdog, newWatchdogAge),
		simple("WatchdogPhp", categoryWatchdog, newWatchdogPhp),
		withRun("WatchdogSyslog", categoryWatchdog, newWatchdogSyslog),
	}
}
