package handlers

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	log "github.com/sirupsen/logrus"

	"microsegment/internal/appconfig"
	"microsegment/internal/db"
	"microsegment/internal/shopify"
	"microsegment/internal/webhook"
)

// OAuthHandler routes the Shopify install flow.
func OAuthHandler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	switch req.RawPath {
	case "/integrations/shopify/connect":
		return shopifyConnect(ctx, req)
	case "/integrations/shopify/callback":
		return shopifyCallback(ctx, req)
	case "/integrations/shopify/shops":
		if req.RequestContext.HTTP.Method == "GET" {
			return shopifyShopStatus(ctx, req)
		}
		if req.RequestContext.HTTP.Method == "DELETE" {
			return shopifyDisconnect(ctx, req)
		}
		return errResp(405, "method not allowed")
	default:
		return errResp(404, "not found")
	}
}

func shopifyConnect(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	shop, err := shopify.NormalizeShopDomain(req.QueryStringParameters["shop"])
	if err != nil {
		return errResp(400, "invalid shop (expected like your-store.myshopify.com)")
	}

	state, err := randomState(24)
	if err != nil {
		return errResp(500, "failed to generate state")
	}

	ddb, err := db.NewDynamoClient(ctx)
	if err != nil {
		return errResp(500, "failed to init dynamodb")
	}

	stateTable := db.OAuthStateTableName()
	if strings.TrimSpace(stateTable) == "" {
		return errResp(500, "OAUTH_STATE_TABLE not set")
	}

	exp := time.Now().UTC().Add(10 * time.Minute).Unix()

	_, err = ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(stateTable),
		Item: map[string]types.AttributeValue{
			"State":          &types.AttributeValueMemberS{Value: state},
			"Shop":           &types.AttributeValueMemberS{Value: shop},
			"ExpiresAtEpoch": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", exp)},
		},
	})
	if err != nil {
		return errResp(500, "failed to store oauth state")
	}

	apiKey := appconfig.ShopifyAPIKey()
	scopes := appconfig.ShopifyScopes()
	redirectBase := appconfig.RedirectBase()
	if apiKey == "" || redirectBase == "" {
		return errResp(500, "missing SHOPIFY_* env vars")
	}

	redirectURI := redirectBase + "/integrations/shopify/callback"

	authorize := fmt.Sprintf("https://%s/admin/oauth/authorize", shop)
	u, _ := url.Parse(authorize)
	q := u.Query()
	q.Set("client_id", apiKey)
	q.Set("scope", scopes)
	q.Set("redirect_uri", redirectURI)
	q.Set("state", state)
	u.RawQuery = q.Encode()

	return jsonResp(200, map[string]any{
		"authorizeUrl": u.String(),
	})
}

func shopifyCallback(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	params := req.QueryStringParameters

	shop := strings.ToLower(strings.TrimSpace(params["shop"]))
	code := strings.TrimSpace(params["code"])
	state := strings.TrimSpace(params["state"])
	hmacParam := strings.TrimSpace(params["hmac"])

	if !shopify.IsValidShopDomain(shop) || code == "" || state == "" || hmacParam == "" {
		return errResp(400, "missing required oauth params")
	}

	secret, err := appconfig.ShopifyAPISecret(ctx)
	if err != nil {
		return errResp(500, "shopify api secret unavailable")
	}
	if !webhook.VerifyOAuthHMAC(params, secret, hmacParam) {
		return errResp(400, "invalid hmac")
	}

	ddb, err := db.NewDynamoClient(ctx)
	if err != nil {
		return errResp(500, "failed to init dynamodb")
	}

	// Validate state
	stateTable := db.OAuthStateTableName()
	out, err := ddb.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(stateTable),
		Key: map[string]types.AttributeValue{
			"State": &types.AttributeValueMemberS{Value: state},
		},
	})
	if err != nil || out.Item == nil {
		return errResp(400, "invalid or expired state")
	}

	shopFromState := attrS(out.Item["Shop"])
	if shopFromState == "" || shopFromState != shop {
		return errResp(400, "state mismatch")
	}
	if expAttr, ok := out.Item["ExpiresAtEpoch"].(*types.AttributeValueMemberN); ok {
		exp, _ := strconv.ParseInt(expAttr.Value, 10, 64)
		if exp > 0 && time.Now().UTC().Unix() > exp {
			return errResp(400, "invalid or expired state")
		}
	}

	// Exchange code for an access token
	apiKey := appconfig.ShopifyAPIKey()
	tokenURL := fmt.Sprintf("https://%s/admin/oauth/access_token", shop)

	body := map[string]string{
		"client_id":     apiKey,
		"client_secret": secret,
		"code":          code,
	}
	b, _ := json.Marshal(body)

	httpReq, _ := http.NewRequestWithContext(ctx, "POST", tokenURL, strings.NewReader(string(b)))
	httpReq.Header.Set("content-type", "application/json")

	httpRes, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return errResp(502, "token exchange failed")
	}
	defer httpRes.Body.Close()

	raw, _ := io.ReadAll(httpRes.Body)
	if httpRes.StatusCode < 200 || httpRes.StatusCode >= 300 {
		return errResp(502, fmt.Sprintf("token exchange failed: %s", string(raw)))
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		Scope       string `json:"scope"`
	}
	if err := json.Unmarshal(raw, &tok); err != nil || tok.AccessToken == "" {
		return errResp(502, "invalid token response")
	}

	creds := &shopify.CredentialStore{DDB: ddb}
	if err := creds.Save(ctx, shop, tok.AccessToken, tok.Scope); err != nil {
		return errResp(500, "failed to store credential")
	}

	// Subscribe this shop to the compliance and uninstall webhooks.
	webhookBase := appconfig.WebhookBase()
	if webhookBase != "" {
		client := shopify.NewClient(appconfig.ShopifyAPIVersion())
		created, failed := client.RegisterRequiredWebhooks(ctx, shop, tok.AccessToken, webhookBase+"/webhooks")
		log.WithFields(log.Fields{
			"shop":    shop,
			"created": created,
			"failed":  failed,
		}).Info("webhook registration finished")
	}

	// one-time state cleanup
	_, _ = ddb.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(stateTable),
		Key: map[string]types.AttributeValue{
			"State": &types.AttributeValueMemberS{Value: state},
		},
	})

	fe := appconfig.FrontendBase()
	if fe == "" {
		fe = "/"
	}
	return events.APIGatewayV2HTTPResponse{
		StatusCode: 302,
		Headers: map[string]string{
			"location": fe + "/shopify?connected=1&shop=" + url.QueryEscape(shop),
		},
	}, nil
}

func shopifyShopStatus(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	shop, err := shopify.NormalizeShopDomain(req.QueryStringParameters["shop"])
	if err != nil {
		return errResp(400, "invalid shop")
	}

	ddb, err := db.NewDynamoClient(ctx)
	if err != nil {
		return errResp(500, "failed to init dynamodb")
	}

	creds := &shopify.CredentialStore{DDB: ddb}
	cred, err := creds.Get(ctx, shop)
	if err != nil {
		if errors.Is(err, shopify.ErrShopNotFound) {
			return jsonResp(200, map[string]any{"shop": shop, "installed": false})
		}
		return errResp(500, "lookup failed")
	}

	return jsonResp(200, map[string]any{
		"shop":      cred.Shop,
		"installed": cred.Installed,
		"scope":     cred.Scope,
		"createdAt": cred.CreatedAt,
	})
}

func shopifyDisconnect(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	shop, err := shopify.NormalizeShopDomain(req.QueryStringParameters["shop"])
	if err != nil {
		return errResp(400, "invalid shop")
	}

	ddb, err := db.NewDynamoClient(ctx)
	if err != nil {
		return errResp(500, "failed to init dynamodb")
	}

	creds := &shopify.CredentialStore{DDB: ddb}
	if err := creds.Delete(ctx, shop); err != nil {
		return errResp(500, "disconnect failed")
	}
	return jsonResp(200, map[string]any{"shop": shop, "disconnected": true})
}

func attrS(av types.AttributeValue) string {
	if s, ok := av.(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func randomState(nBytes int) (string, error) {
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
