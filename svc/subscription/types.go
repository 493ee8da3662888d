package subscription

import "github.com/trialbase/trialbase/svc/account"

// Status represents the current state of a subscription.
type Status string

const (
	StatusTrialing  Status = "trialing"
	StatusActive    Status = "active"
	StatusPastDue   Status = "past_due"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// Unlimited indicates no limit for a plan quota (-1 chosen for SQL compatibility).
const Unlimited = -1

// ExportOption is an output format a plan allows.
type ExportOption string

const (
	ExportPDF ExportOption = "pdf"
	ExportPNG ExportOption = "png"
	ExportSVG ExportOption = "svg"
)

// Features is the capability set attached to a subscription. It is derived
// from the plan type unless explicitly overridden.
type Features struct {
	ItemsPerMonth   int            `json:"items_per_month"` // Unlimited means no cap
	ExportOptions   []ExportOption `json:"export_options"`
	PrioritySupport bool           `json:"priority_support"`
}

// DefaultFeatures returns the feature set for a plan type.
func DefaultFeatures(plan account.PlanType) Features {
	switch plan {
	case account.PlanPro:
		return Features{
			ItemsPerMonth:   50,
			ExportOptions:   []ExportOption{ExportPDF, ExportPNG, ExportSVG},
			PrioritySupport: true,
		}
	case account.PlanEnterprise:
		return Features{
			ItemsPerMonth:   Unlimited,
			ExportOptions:   []ExportOption{ExportPDF, ExportPNG, ExportSVG},
			PrioritySupport: true,
		}
	default:
		return Features{
			ItemsPerMonth:   5,
			ExportOptions:   []ExportOption{ExportPDF},
			PrioritySupport: false,
		}
	}
}
