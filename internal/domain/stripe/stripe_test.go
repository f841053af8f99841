package stripe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stripego "github.com/stripe/stripe-go/v82"

	"github.com/infrabay/opscore/internal/ids"
	"github.com/infrabay/opscore/internal/toolregistry"
)

type fakeCustomers struct {
	customerID string
}

func (f fakeCustomers) StripeCustomerID(ctx context.Context, orgID string) (string, error) {
	return f.customerID, nil
}

func newRegistry(t *testing.T, deps Deps) *toolregistry.Registry {
	t.Helper()
	r := toolregistry.NewRegistry()
	require.NoError(t, Register(r, deps))
	return r
}

func TestCheckoutSessionCreateUsesResolvedCustomer(t *testing.T) {
	var gotCustomer string
	deps := Deps{
		Customers: fakeCustomers{customerID: "cus_123"},
		CreateCheckoutSession: func(params *stripego.CheckoutSessionParams) (*stripego.CheckoutSession, error) {
			gotCustomer = stripego.StringValue(params.Customer)
			return &stripego.CheckoutSession{URL: "https://checkout.stripe.com/session-1"}, nil
		},
		ReturnURL: "https://app.example.com/billing",
	}
	r := newRegistry(t, deps)

	msg := r.Execute(context.Background(), toolregistry.ToolContext{OrgID: ids.OrgID("org-1")}, "stripe.stripe_checkout_session_create",
		[]byte(`{"priceId":"price_123"}`), "tu-1")
	require.Nil(t, msg.Error)
	assert.Equal(t, "cus_123", gotCustomer)
	assert.Contains(t, string(msg.Result), "checkout.stripe.com")
}

func TestPortalSessionCreateUsesResolvedCustomer(t *testing.T) {
	var gotCustomer string
	deps := Deps{
		Customers: fakeCustomers{customerID: "cus_456"},
		CreatePortalSession: func(params *stripego.BillingPortalSessionParams) (*stripego.BillingPortalSession, error) {
			gotCustomer = stripego.StringValue(params.Customer)
			return &stripego.BillingPortalSession{URL: "https://billing.stripe.com/session-2"}, nil
		},
		ReturnURL: "https://app.example.com/billing",
	}
	r := newRegistry(t, deps)

	msg := r.Execute(context.Background(), toolregistry.ToolContext{OrgID: ids.OrgID("org-1")}, "stripe.stripe_portal_session_create", []byte(`{}`), "tu-1")
	require.Nil(t, msg.Error)
	assert.Equal(t, "cus_456", gotCustomer)
	assert.Contains(t, string(msg.Result), "billing.stripe.com")
}
