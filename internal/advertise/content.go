package advertise

import (
	"regexp"
	"strings"

	"promobot/internal/reddit"
	"promobot/internal/state"
)

// Validation rule names, reported in the "invalid" outcome.
const (
	RuleTitleRequired         = "title_required"
	RuleBodyRequired          = "body_required"
	RuleURLRequired           = "url_required"
	RulePermanentLinkRequired = "permanent_link_required"
	RuleUnknownKind           = "unknown_kind"
)

// inviteRe recognizes permanent Discord invite URLs.
var inviteRe = regexp.MustCompile(`(?i)\b(?:discord\.gg|discord(?:app)?\.com/invite)/[A-Za-z0-9-]+`)

// HasPermanentInvite reports whether s contains a recognizable permanent
// invite link.
func HasPermanentInvite(s string) bool {
	return inviteRe.MatchString(s)
}

// MergeContent folds the tenant defaults into a target's content template and
// returns the post that would be submitted. For self posts the tenant's
// permanent link is appended when the body doesn't already carry it; for link
// posts the permanent link serves as the fallback URL.
func MergeContent(target state.Target, defaults state.TenantDefaults) reddit.Post {
	c := target.Content
	post := reddit.Post{
		Subreddit: target.Key,
		Kind:      c.Kind,
		FlairID:   c.FlairID,
		FlairText: c.FlairText,
	}

	post.Title = strings.TrimSpace(c.Title)
	if post.Title == "" {
		post.Title = strings.TrimSpace(defaults.Title)
	}

	switch c.Kind {
	case state.KindSelf:
		body := c.Body
		if strings.TrimSpace(body) == "" {
			body = defaults.Body
		}
		link := strings.TrimSpace(defaults.PermanentLink)
		if link != "" && !strings.Contains(body, link) {
			if strings.TrimSpace(body) == "" {
				body = link
			} else {
				body = strings.TrimRight(body, "\n") + "\n\n" + link
			}
		}
		post.Body = body
	case state.KindLink:
		u := strings.TrimSpace(c.URL)
		if u == "" {
			u = strings.TrimSpace(defaults.PermanentLink)
		}
		post.URL = u
	}
	return post
}

// ValidatePost checks a merged post against the target's rules and returns the
// violated rule names. An empty result means the post may be submitted.
func ValidatePost(post reddit.Post, rules state.TargetRules) []string {
	var violations []string
	if strings.TrimSpace(post.Title) == "" {
		violations = append(violations, RuleTitleRequired)
	}
	switch post.Kind {
	case state.KindSelf:
		if strings.TrimSpace(post.Body) == "" {
			violations = append(violations, RuleBodyRequired)
		} else if rules.RequirePermanentLink && !HasPermanentInvite(post.Body) {
			violations = append(violations, RulePermanentLinkRequired)
		}
	case state.KindLink:
		if strings.TrimSpace(post.URL) == "" {
			violations = append(violations, RuleURLRequired)
		} else if rules.RequirePermanentLink && !HasPermanentInvite(post.URL) {
			violations = append(violations, RulePermanentLinkRequired)
		}
	default:
		violations = append(violations, RuleUnknownKind)
	}
	return violations
}
