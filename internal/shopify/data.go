package shopify

import (
	"context"
	"encoding/json"
	"fmt"
)

// Paged query documents for the direct data endpoints. Unlike the bulk
// documents these walk one connection page at a time.

const customersPageQuery = `
query Customers($first: Int!, $after: String, $query: String) {
  customers(first: $first, after: $after, query: $query) {
    edges {
      node {
        id
        firstName
        lastName
        email
        createdAt
        tags
        note
        state
        amountSpent {
          amount
          currencyCode
        }
      }
      cursor
    }
    pageInfo {
      hasNextPage
      endCursor
    }
  }
}`

const productsPageQuery = `
query Products($first: Int!, $after: String, $query: String) {
  products(first: $first, after: $after, query: $query) {
    edges {
      node {
        id
        title
        handle
        description
        descriptionHtml
        productType
        vendor
        tags
        status
        createdAt
        priceRangeV2 {
          maxVariantPrice { amount }
          minVariantPrice { amount }
        }
        variants(first: 10) {
          edges {
            node {
              id
              title
              price
              inventoryQuantity
            }
          }
        }
      }
      cursor
    }
    pageInfo {
      hasNextPage
      endCursor
    }
  }
}`

const ordersPageQuery = `
query Orders($first: Int!, $after: String, $query: String) {
  orders(first: $first, after: $after, query: $query) {
    edges {
      node {
        id
        name
        email
        createdAt
        displayFinancialStatus
        totalDiscountsSet { shopMoney { amount currencyCode } }
        totalPriceSet { shopMoney { amount currencyCode } }
        lineItems(first: 5) {
          edges {
            node {
              title
              quantity
              discountedTotalSet { shopMoney { amount currencyCode } }
              originalTotalSet { shopMoney { amount currencyCode } }
            }
          }
        }
        customer {
          firstName
          lastName
          email
        }
      }
      cursor
    }
    pageInfo {
      hasNextPage
      endCursor
    }
  }
}`

// The transactions field on Order is a plain list, not a connection.
const orderTransactionsQuery = `
query OrderTransactions($orderId: ID!, $first: Int!) {
  node(id: $orderId) {
    ... on Order {
      id
      name
      transactions(first: $first) {
        id
        kind
        status
        amountSet { shopMoney { amount currencyCode } }
        createdAt
      }
    }
  }
}`

const (
	defaultPageSize = 10
	maxPageSize     = 250
)

// PageOptions controls one page of a direct fetch. Query is an admin search
// filter passed through verbatim.
type PageOptions struct {
	First  int
	Cursor string
	Query  string
}

// Connection is one page of a collection as the admin API returned it, plus
// any top-level GraphQL errors for the caller to inspect.
type Connection struct {
	Data   json.RawMessage
	Errors []GraphQLError
}

func (c *Client) FetchCustomers(ctx context.Context, shop, accessToken string, opts PageOptions) (*Connection, error) {
	return c.fetchPage(ctx, shop, accessToken, customersPageQuery, "customers", opts)
}

func (c *Client) FetchProducts(ctx context.Context, shop, accessToken string, opts PageOptions) (*Connection, error) {
	return c.fetchPage(ctx, shop, accessToken, productsPageQuery, "products", opts)
}

func (c *Client) FetchOrders(ctx context.Context, shop, accessToken string, opts PageOptions) (*Connection, error) {
	return c.fetchPage(ctx, shop, accessToken, ordersPageQuery, "orders", opts)
}

// FetchOrderTransactions returns the order node (or null when the order id
// does not resolve) with its transaction list.
func (c *Client) FetchOrderTransactions(ctx context.Context, shop, accessToken, orderID string, first int) (*Connection, error) {
	if orderID == "" {
		return nil, fmt.Errorf("order id is required")
	}

	resp, err := Post[map[string]json.RawMessage](ctx, c, shop, accessToken, orderTransactionsQuery, map[string]any{
		"orderId": orderID,
		"first":   clampPageSize(first),
	})
	if err != nil {
		return nil, err
	}
	return &Connection{Data: resp.Data["node"], Errors: resp.Errors}, nil
}

func (c *Client) fetchPage(ctx context.Context, shop, accessToken, doc, root string, opts PageOptions) (*Connection, error) {
	vars := map[string]any{"first": clampPageSize(opts.First)}
	if opts.Cursor != "" {
		vars["after"] = opts.Cursor
	}
	if opts.Query != "" {
		vars["query"] = opts.Query
	}

	resp, err := Post[map[string]json.RawMessage](ctx, c, shop, accessToken, doc, vars)
	if err != nil {
		return nil, err
	}
	return &Connection{Data: resp.Data[root], Errors: resp.Errors}, nil
}

func clampPageSize(first int) int {
	switch {
	case first <= 0:
		return defaultPageSize
	case first > maxPageSize:
		return maxPageSize
	default:
		return first
	}
}
