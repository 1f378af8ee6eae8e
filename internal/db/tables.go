package db

import "os"

func ShopsTableName() string {
	return os.Getenv("SHOPIFY_SHOPS_TABLE")
}

func PullJobsTableName() string {
	return os.Getenv("PULL_JOBS_TABLE")
}

func PullResultsTableName() string {
	return os.Getenv("PULL_RESULTS_TABLE")
}

func OAuthStateTableName() string {
	return os.Getenv("OAUTH_STATE_TABLE")
}

func WebhookDedupeTableName() string {
	return os.Getenv("WEBHOOK_DEDUPE_TABLE")
}

func RateLimitTableName() string {
	return os.Getenv("RATE_LIMIT_TABLE")
}
