package pull

import "microsegment/internal/shopify"

// Resource describes one pullable collection. The three workflows are the
// same algorithm parameterized by this descriptor.
type Resource struct {
	Name  string
	Query string
}

const (
	ResourceCustomers = "customers"
	ResourceProducts  = "products"
	ResourceOrders    = "orders"
)

var resources = []Resource{
	{Name: ResourceCustomers, Query: shopify.CustomersBulkQuery},
	{Name: ResourceProducts, Query: shopify.ProductsBulkQuery},
	{Name: ResourceOrders, Query: shopify.OrdersBulkQuery},
}

func Resources() []Resource {
	return resources
}

func ResourceByName(name string) (Resource, bool) {
	for _, r := range resources {
		if r.Name == name {
			return r, true
		}
	}
	return Resource{}, false
}
