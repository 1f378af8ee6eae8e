package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	log "github.com/sirupsen/logrus"

	"microsegment/internal/appconfig"
	"microsegment/internal/db"
	"microsegment/internal/shopify"
)

// requireShopToken resolves a connected shop and its decrypted access token.
// A non-zero status means the caller should return that error response.
func requireShopToken(ctx context.Context, rawShop string) (string, string, int, string) {
	shop, err := shopify.NormalizeShopDomain(rawShop)
	if err != nil {
		return "", "", 400, "invalid shop (expected like your-store.myshopify.com)"
	}

	ddb, err := db.NewDynamoClient(ctx)
	if err != nil {
		return "", "", 500, "failed to init dynamodb"
	}
	creds := &shopify.CredentialStore{DDB: ddb}
	token, _, err := creds.AccessToken(ctx, shop)
	if err != nil {
		if errors.Is(err, shopify.ErrShopNotFound) {
			return "", "", 404, "shop is not connected"
		}
		return "", "", 500, "credential lookup failed"
	}
	return shop, token, 0, ""
}

func pageOptions(req events.APIGatewayV2HTTPRequest) shopify.PageOptions {
	first, _ := strconv.Atoi(req.QueryStringParameters["first"])
	return shopify.PageOptions{
		First:  first,
		Cursor: strings.TrimSpace(req.QueryStringParameters["cursor"]),
		Query:  strings.TrimSpace(req.QueryStringParameters["query"]),
	}
}

// syncDataFetch serves one page of a collection straight off the admin API,
// bypassing the bulk pipeline.
func syncDataFetch(ctx context.Context, req events.APIGatewayV2HTTPRequest, resource string) (events.APIGatewayV2HTTPResponse, error) {
	switch resource {
	case "customers", "products", "orders":
	default:
		return errResp(404, "unknown resource")
	}

	shop, token, status, msg := requireShopToken(ctx, req.QueryStringParameters["shop"])
	if status != 0 {
		return errResp(status, msg)
	}

	client := shopify.NewClient(appconfig.ShopifyAPIVersion())
	opts := pageOptions(req)

	var conn *shopify.Connection
	var err error
	switch resource {
	case "customers":
		conn, err = client.FetchCustomers(ctx, shop, token, opts)
	case "products":
		conn, err = client.FetchProducts(ctx, shop, token, opts)
	case "orders":
		conn, err = client.FetchOrders(ctx, shop, token, opts)
	}
	if err != nil {
		return shopifyFetchError(shop, resource, err)
	}
	if len(conn.Errors) > 0 {
		return jsonResp(200, map[string]any{
			"success": false,
			"message": "GraphQL error: " + conn.Errors[0].Message,
		})
	}

	return jsonResp(200, map[string]any{
		"success": true,
		"message": resource + " fetched successfully",
		resource:  conn.Data,
	})
}

func orderTransactions(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	orderID := strings.TrimSpace(req.QueryStringParameters["order_id"])
	if orderID == "" {
		return errResp(400, "order_id is required")
	}

	shop, token, status, msg := requireShopToken(ctx, req.QueryStringParameters["shop"])
	if status != 0 {
		return errResp(status, msg)
	}

	first, _ := strconv.Atoi(req.QueryStringParameters["first"])
	conn, err := shopify.NewClient(appconfig.ShopifyAPIVersion()).
		FetchOrderTransactions(ctx, shop, token, orderID, first)
	if err != nil {
		return shopifyFetchError(shop, "transactions", err)
	}
	if len(conn.Errors) > 0 {
		return jsonResp(200, map[string]any{
			"success": false,
			"message": "GraphQL error: " + conn.Errors[0].Message,
		})
	}
	if len(conn.Data) == 0 || string(conn.Data) == "null" {
		return jsonResp(200, map[string]any{
			"success": false,
			"message": "order not found or has no transactions",
		})
	}

	return jsonResp(200, map[string]any{
		"success":      true,
		"message":      "transactions fetched successfully",
		"transactions": conn.Data,
	})
}

func shopifyFetchError(shop, resource string, err error) (events.APIGatewayV2HTTPResponse, error) {
	log.WithError(err).WithFields(log.Fields{"shop": shop, "resource": resource}).
		Error("shopify data fetch failed")

	var se *shopify.StatusError
	if errors.As(err, &se) {
		return errResp(se.Code, "shopify api error")
	}
	return errResp(502, "failed to fetch data from shopify")
}
