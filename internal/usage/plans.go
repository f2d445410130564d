package usage

// Plan identifies a subscription tier.
type Plan string

const (
	PlanFree      Plan = "free"
	PlanPlus      Plan = "plus"
	PlanUnlimited Plan = "unlimited"
)

// Unlimited is the sentinel limit value: the bound check is skipped but
// usage is still recorded for observability.
const Unlimited = -1

// Limits holds a plan's daily quota.
type Limits struct {
	MessagesPerDay int
	TokensPerDay   int
}

// UnlimitedMessages reports whether the message bound is disabled.
func (l Limits) UnlimitedMessages() bool { return l.MessagesPerDay == Unlimited }

// UnlimitedTokens reports whether the token bound is disabled.
func (l Limits) UnlimitedTokens() bool { return l.TokensPerDay == Unlimited }

// Enforced reports whether any bound applies to this plan.
func (l Limits) Enforced() bool {
	return !l.UnlimitedMessages() || !l.UnlimitedTokens()
}

// planTable is the static plan -> limits mapping. Never mutated at runtime.
var planTable = map[Plan]Limits{
	PlanFree:      {MessagesPerDay: 50, TokensPerDay: 100_000},
	PlanPlus:      {MessagesPerDay: 500, TokensPerDay: 1_000_000},
	PlanUnlimited: {MessagesPerDay: Unlimited, TokensPerDay: Unlimited},
}

// LimitsFor returns the limits for a plan. Unknown plans get the free tier.
func LimitsFor(plan Plan) Limits {
	if l, ok := planTable[plan]; ok {
		return l
	}
	return planTable[PlanFree]
}
