// Package stripe implements stripe_checkout_session_create and
// stripe_portal_session_create over stripe-go/v82. Both tools are
// owner-only since they mint billing URLs scoped to the organization's
// Stripe customer; like user.user_remove, the owner check relies on the
// registration-level approval gate because toolregistry.ToolContext
// carries no caller identity a handler could check directly.
package stripe

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v82"

	"github.com/infrabay/opscore/internal/domain"
	"github.com/infrabay/opscore/internal/toolregistry"
	"github.com/infrabay/opscore/internal/tools"
)

// CustomerLookup resolves the organization's Stripe customer id.
type CustomerLookup interface {
	StripeCustomerID(ctx context.Context, orgID string) (string, error)
}

// Deps holds the dependencies Register closes over. CreateCheckoutSession
// and CreatePortalSession are narrowed to the package-level functions
// stripe-go's checkout/session and billingportal/session packages expose,
// so callers wire the real SDK functions or a stub in tests without this
// package importing either subpackage directly.
type Deps struct {
	Customers             CustomerLookup
	CreateCheckoutSession func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	CreatePortalSession   func(*stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error)
	ReturnURL             string
}

// Register adds stripe_checkout_session_create and
// stripe_portal_session_create to r.
func Register(r *toolregistry.Registry, deps Deps) error {
	checkoutSpec := domain.Spec("stripe.stripe_checkout_session_create", "stripe.stripe", "Create a Stripe Checkout session for the organization's subscription",
		`{"type":"object","required":["priceId"],"properties":{"priceId":{"type":"string"}}}`,
		domain.RequiresApproval(tools.RiskMedium))
	if err := r.Register(checkoutSpec, deps.createCheckout); err != nil {
		return err
	}

	portalSpec := domain.Spec("stripe.stripe_portal_session_create", "stripe.stripe", "Create a Stripe billing portal session for the organization",
		`{"type":"object","properties":{}}`, domain.RequiresApproval(tools.RiskMedium))
	return r.Register(portalSpec, deps.createPortal)
}

type checkoutPayload struct {
	PriceID string `json:"priceId"`
}

func (d Deps) createCheckout(ctx context.Context, tc toolregistry.ToolContext, payload json.RawMessage) (json.RawMessage, []*toolregistry.ServerDataItem, error) {
	var p checkoutPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, nil, err
	}
	customerID, err := d.Customers.StripeCustomerID(ctx, string(tc.OrgID))
	if err != nil {
		return nil, nil, err
	}

	sess, err := d.CreateCheckoutSession(&stripe.CheckoutSessionParams{
		Customer: stripe.String(customerID),
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(p.PriceID), Quantity: stripe.Int64(1)},
		},
		SuccessURL: stripe.String(d.ReturnURL),
		CancelURL:  stripe.String(d.ReturnURL),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create checkout session: %w", err)
	}

	b, err := json.Marshal(struct {
		URL string `json:"url"`
	}{URL: sess.URL})
	return b, nil, err
}

func (d Deps) createPortal(ctx context.Context, tc toolregistry.ToolContext, _ json.RawMessage) (json.RawMessage, []*toolregistry.ServerDataItem, error) {
	customerID, err := d.Customers.StripeCustomerID(ctx, string(tc.OrgID))
	if err != nil {
		return nil, nil, err
	}

	sess, err := d.CreatePortalSession(&stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(d.ReturnURL),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create portal session: %w", err)
	}

	b, err := json.Marshal(struct {
		URL string `json:"url"`
	}{URL: sess.URL})
	return b, nil, err
}
