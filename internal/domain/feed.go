package domain

import "context"

// PriceFeed is the external price provider. FetchPrices must tolerate
// partial responses: a missing key means that asset's refresh failed while
// the others succeeded.
type PriceFeed interface {
	FetchPrices(ctx context.Context, feedKeys []string) (map[string]Quote, error)
}
