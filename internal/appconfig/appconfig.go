package appconfig

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

func ShopifyAPIKey() string {
	return strings.TrimSpace(os.Getenv("SHOPIFY_API_KEY"))
}

func ShopifyScopes() string {
	s := strings.TrimSpace(os.Getenv("SHOPIFY_SCOPES"))
	if s == "" {
		s = "read_products,read_orders,read_customers"
	}
	return s
}

func ShopifyAPIVersion() string {
	v := strings.TrimSpace(os.Getenv("SHOPIFY_API_VERSION"))
	if v == "" {
		v = "2025-04"
	}
	return v
}

func RedirectBase() string {
	return strings.TrimRight(os.Getenv("SHOPIFY_REDIRECT_BASE"), "/")
}

func WebhookBase() string {
	return strings.TrimRight(os.Getenv("SHOPIFY_WEBHOOK_BASE"), "/")
}

func FrontendBase() string {
	fe := strings.TrimRight(os.Getenv("FRONTEND_BASE_URL"), "/")
	if fe == "" {
		fe = "/"
	}
	return fe
}

func PullResultTTLSeconds() int64 {
	v := strings.TrimSpace(os.Getenv("PULL_RESULT_TTL_SECONDS"))
	if v == "" {
		return 3600
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return 3600
	}
	return n
}

type SSMClient interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

var (
	secretOnce sync.Once
	secretVal  string
	secretErr  error
)

// ShopifyAPISecret returns the app's shared secret. SHOPIFY_API_SECRET wins
// when set; otherwise the value is fetched once per process from the SSM
// parameter named by SHOPIFY_API_SECRET_PARAM.
func ShopifyAPISecret(ctx context.Context) (string, error) {
	if s := strings.TrimSpace(os.Getenv("SHOPIFY_API_SECRET")); s != "" {
		return s, nil
	}
	secretOnce.Do(func() {
		param := strings.TrimSpace(os.Getenv("SHOPIFY_API_SECRET_PARAM"))
		if param == "" {
			secretErr = fmt.Errorf("neither SHOPIFY_API_SECRET nor SHOPIFY_API_SECRET_PARAM is set")
			return
		}
		cfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			secretErr = err
			return
		}
		secretVal, secretErr = fetchSecret(ctx, ssm.NewFromConfig(cfg), param)
	})
	return secretVal, secretErr
}

func fetchSecret(ctx context.Context, c SSMClient, name string) (string, error) {
	out, err := c.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("ssm GetParameter %s: %w", name, err)
	}
	if out.Parameter == nil || aws.ToString(out.Parameter.Value) == "" {
		return "", fmt.Errorf("ssm parameter %s is empty", name)
	}
	return aws.ToString(out.Parameter.Value), nil
}
