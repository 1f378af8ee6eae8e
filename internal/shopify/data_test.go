package shopify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedQuery struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

func dataServer(t *testing.T, response string, captured *capturedQuery) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, captured))
		w.Write([]byte(response))
	}))
}

func TestFetchProductsReturnsConnection(t *testing.T) {
	var got capturedQuery
	srv := dataServer(t, `{"data":{"products":{"edges":[{"node":{"id":"gid://shopify/Product/1","title":"Mug"},"cursor":"c1"}],"pageInfo":{"hasNextPage":false,"endCursor":"c1"}}}}`, &got)
	defer srv.Close()

	conn, err := testClient(srv.URL).FetchProducts(context.Background(), "demo.myshopify.com", "tok", PageOptions{First: 25})
	require.NoError(t, err)
	require.Empty(t, conn.Errors)

	assert.Equal(t, float64(25), got.Variables["first"])
	assert.NotContains(t, got.Variables, "after")
	assert.NotContains(t, got.Variables, "query")

	var page struct {
		Edges []struct {
			Node struct {
				Title string `json:"title"`
			} `json:"node"`
		} `json:"edges"`
		PageInfo struct {
			HasNextPage bool   `json:"hasNextPage"`
			EndCursor   string `json:"endCursor"`
		} `json:"pageInfo"`
	}
	require.NoError(t, json.Unmarshal(conn.Data, &page))
	require.Len(t, page.Edges, 1)
	assert.Equal(t, "Mug", page.Edges[0].Node.Title)
	assert.Equal(t, "c1", page.PageInfo.EndCursor)
}

func TestFetchCustomersPassesCursorAndFilter(t *testing.T) {
	var got capturedQuery
	srv := dataServer(t, `{"data":{"customers":{"edges":[],"pageInfo":{"hasNextPage":false}}}}`, &got)
	defer srv.Close()

	_, err := testClient(srv.URL).FetchCustomers(context.Background(), "demo", "tok", PageOptions{
		First:  5,
		Cursor: "abc",
		Query:  "state:ENABLED",
	})
	require.NoError(t, err)

	assert.Equal(t, "abc", got.Variables["after"])
	assert.Equal(t, "state:ENABLED", got.Variables["query"])
	assert.Contains(t, got.Query, "customers(first: $first")
}

func TestFetchOrdersSurfacesGraphQLErrors(t *testing.T) {
	var got capturedQuery
	srv := dataServer(t, `{"errors":[{"message":"access denied","extensions":{"code":"ACCESS_DENIED"}}]}`, &got)
	defer srv.Close()

	conn, err := testClient(srv.URL).FetchOrders(context.Background(), "demo", "tok", PageOptions{})
	require.NoError(t, err, "GraphQL errors are data, not transport failures")
	require.Len(t, conn.Errors, 1)
	assert.Equal(t, "access denied", conn.Errors[0].Message)
	assert.Equal(t, float64(defaultPageSize), got.Variables["first"], "zero First falls back to the default page size")
}

func TestFetchOrderTransactions(t *testing.T) {
	var got capturedQuery
	srv := dataServer(t, `{"data":{"node":{"id":"gid://shopify/Order/7","name":"#1001","transactions":[{"id":"t1","kind":"SALE","status":"SUCCESS"}]}}}`, &got)
	defer srv.Close()

	conn, err := testClient(srv.URL).FetchOrderTransactions(context.Background(), "demo", "tok", "gid://shopify/Order/7", 10)
	require.NoError(t, err)

	assert.Equal(t, "gid://shopify/Order/7", got.Variables["orderId"])

	var node struct {
		Transactions []struct {
			Kind string `json:"kind"`
		} `json:"transactions"`
	}
	require.NoError(t, json.Unmarshal(conn.Data, &node))
	require.Len(t, node.Transactions, 1)
	assert.Equal(t, "SALE", node.Transactions[0].Kind)
}

func TestFetchOrderTransactionsRequiresOrderID(t *testing.T) {
	_, err := testClient("http://unused").FetchOrderTransactions(context.Background(), "demo", "tok", "", 10)
	require.Error(t, err)
}

func TestClampPageSize(t *testing.T) {
	assert.Equal(t, defaultPageSize, clampPageSize(0))
	assert.Equal(t, defaultPageSize, clampPageSize(-3))
	assert.Equal(t, 50, clampPageSize(50))
	assert.Equal(t, maxPageSize, clampPageSize(10000))
}
