package pretix

import "context"

// ResolveEntitlement exchanges an authorization code for a user access token, resolves
// the user's identity, and checks whether any of their orders contain the live-access
// product. Each step must succeed before the next one runs; a user with no matching
// orders is not an error, just an entitlement with HasTicket set to false.
func ResolveEntitlement(ctx context.Context, c Client, code string, liveTicketItemId int) (*Identity, *Entitlement, error) {
	accessToken, err := c.ExchangeCode(ctx, code)
	if err != nil {
		return nil, nil, err
	}

	identity, err := c.GetIdentity(ctx, accessToken)
	if err != nil {
		return nil, nil, err
	}

	// Orders are queried with our own API token, not the user's access token
	orders, err := c.ListOrders(ctx, identity.Email)
	if err != nil {
		return nil, nil, err
	}

	return identity, &Entitlement{
		Email:     identity.Email,
		HasTicket: HasTicket(orders, liveTicketItemId),
	}, nil
}

// HasTicket reports whether any position in any of the given orders is for the product
// with the given item ID
func HasTicket(orders []Order, itemId int) bool {
	for _, order := range orders {
		for _, position := range order.Positions {
			if position.Item == itemId {
				return true
			}
		}
	}
	return false
}
