package checks

import (
	"context"
	"strconv"
	"strings"

	"github.com/ppiankov/siteaudit/internal/audit"
	"github.com/ppiankov/siteaudit/internal/drupal"
)

const categoryUsers = "users"

type usersBlockedNumberOne struct {
	base
	site   *Site
	vendor string
	active bool
}

func newUsersBlockedNumberOne(site *Site, run *audit.RunContext) audit.Check {
	return &usersBlockedNumberOne{
		base:   base{"users_blocked_number_one", "UID #1 access", "Determine if UID #1 is blocked.", categoryUsers},
		site:   site,
		vendor: run.Options.Vendor,
	}
}

func (c *usersBlockedNumberOne) CalculateScore(ctx context.Context, _ *audit.RunContext) (audit.Score, error) {
	u, err := c.site.DB.UserByID(ctx, 1)
	if err != nil {
		return audit.ScoreInfo, err
	}
	c.active = u != nil && u.Active
	// Pantheon requests come from inside the platform.
	if !c.active || c.vendor == VendorPantheon {
		return audit.ScorePass, nil
	}
	return audit.ScoreFail, nil
}

func (c *usersBlockedNumberOne) Result(score audit.Score) string {
	switch score {
	case audit.ScoreFail:
		return "UID #1 should be blocked, but is not."
	case audit.ScorePass:
		if c.active {
			return "UID #1 is not blocked. Blocking this user eliminates a potential security risk."
		}
		return "UID #1 is blocked, as recommended."
	}
	return ""
}

func (c *usersBlockedNumberOne) Action(score audit.Score) string {
	if score != audit.ScorePass {
		return "Block UID #1"
	}
	return ""
}

type usersCountAll struct {
	base
	site  *Site
	count int64
}

func newUsersCountAll(site *Site) audit.Check {
	return &usersCountAll{
		base: base{"users_count_all", "Count All", "Total number of Drupal users.", categoryUsers},
		site: site,
	}
}

func (c *usersCountAll) CalculateScore(ctx context.Context, _ *audit.RunContext) (audit.Score, error) {
	n, err := c.site.DB.CountUsers(ctx)
	if err != nil {
		return audit.ScoreInfo, err
	}
	c.count = n
	return audit.ScoreInfo, nil
}

func (c *usersCountAll) Result(score audit.Score) string {
	if score != audit.ScoreInfo {
		return ""
	}
	if c.count == 0 {
		return "There are no users."
	}
	return plural(c.count, "There is one user.", "There are @count users.")
}

func (c *usersCountAll) Action(audit.Score) string { return "" }

type usersCountBlocked struct {
	base
	site  *Site
	count int64
}

func newUsersCountBlocked(site *Site) audit.Check {
	return &usersCountBlocked{
		base: base{"users_count_blocked", "Count Blocked", "Total number of blocked Drupal users.", categoryUsers},
		site: site,
	}
}

func (c *usersCountBlocked) CalculateScore(ctx context.Context, _ *audit.RunContext) (audit.Score, error) {
	n, err := c.site.DB.CountBlockedUsers(ctx)
	if err != nil {
		return audit.ScoreInfo, err
	}
	c.count = n
	return audit.ScoreInfo, nil
}

func (c *usersCountBlocked) Result(score audit.Score) string {
	if score != audit.ScoreInfo {
		return ""
	}
	if c.count == 0 {
		return "There are no blocked users."
	}
	return plural(c.count, "There is one blocked user.", "There are @count blocked users.")
}

func (c *usersCountBlocked) Action(audit.Score) string { return "" }

type usersRolesList struct {
	base
	site  *Site
	roles []drupal.RoleCount
}

func newUsersRolesList(site *Site) audit.Check {
	return &usersRolesList{
		base: base{"users_roles_list", "List Roles", "Show all available roles and user counts.", categoryUsers},
		site: site,
	}
}

func (c *usersRolesList) CalculateScore(ctx context.Context, _ *audit.RunContext) (audit.Score, error) {
	roles, err := c.site.DB.RoleCounts(ctx)
	if err != nil {
		return audit.ScoreInfo, err
	}
	c.roles = roles
	return audit.ScoreInfo, nil
}

func (c *usersRolesList) Result(score audit.Score) string {
	if score != audit.ScoreInfo {
		return ""
	}
	lines := make([]string, 0, len(c.roles))
	for _, r := range c.roles {
		lines = append(lines, r.Role+": "+strconv.FormatInt(r.Users, 10))
	}
	return strings.Join(lines, "\n")
}

func (c *usersRolesList) Action(audit.Score) string { return "" }

type usersWhoIsNumberOne struct {
	base
	aborts
	site *Site
	user *drupal.User
}

func newUsersWhoIsNumberOne(site *Site) audit.Check {
	return &usersWhoIsNumberOne{
		base: base{"users_who_is_number_one", "Identify UID #1", "Show username and email of UID #1.", categoryUsers},
		site: site,
	}
}

func (c *usersWhoIsNumberOne) CalculateScore(ctx context.Context, _ *audit.RunContext) (audit.Score, error) {
	u, err := c.site.DB.UserByID(ctx, 1)
	if err != nil {
		return audit.ScoreInfo, err
	}
	if u == nil {
		c.abort = true
		return audit.ScoreFail, nil
	}
	c.user = u
	return audit.ScoreInfo, nil
}

func (c *usersWhoIsNumberOne) Result(score audit.Score) string {
	switch score {
	case audit.ScoreFail:
		return "UID #1 does not exist! This is a serious problem."
	case audit.ScoreInfo:
		if c.user == nil {
			return ""
		}
		return "UID #1: " + c.user.Name + ", email: " + c.user.Mail
	}
	return ""
}

func (c *usersWhoIsNumberOne) Action(audit.Score) string { return "" }
