package preview

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const storePage = `<!DOCTYPE html>
<html lang="en">
<head>
  <title>Acme Outfitters</title>
  <meta name="description" content="Sustainable outdoor clothing and gear.">
  <meta name="keywords" content="outdoor, clothing , gear,">
  <meta property="product:price:currency" content="USD">
  <link rel="shortcut icon" href="/assets/favicon.ico">
</head>
<body>
  <img class="site-logo" src="/assets/logo.png">
  <a class="nav-link" href="/collections/jackets">Jackets</a>
  <a class="nav-link" href="/collections/boots">Boots</a>
  <a href="https://www.instagram.com/acmeoutfitters">Instagram</a>
  <a href="https://facebook.com/acmeoutfitters">Facebook</a>
  <a href="mailto:hello@acme.example">Email us</a>
  <a href="tel:+15550100">Call</a>
</body>
</html>`

func TestVerifyAcceptsAccessiblePage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := NewFetcher()
	assert.True(t, f.Verify(context.Background(), srv.URL))
}

func TestVerifyRejectsErrorsAndUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := NewFetcher()
	assert.False(t, f.Verify(context.Background(), srv.URL))
	assert.False(t, f.Verify(context.Background(), "http://127.0.0.1:1/nothing"))
	assert.False(t, f.Verify(context.Background(), "::not a url"))
}

func TestFetchExtractsStoreInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(storePage))
	}))
	defer srv.Close()

	info, err := NewFetcher().Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, "Acme Outfitters", info.Name)
	assert.Equal(t, "Sustainable outdoor clothing and gear.", info.Description)
	assert.Equal(t, "en", info.Language)
	assert.Equal(t, "USD", info.Currency)
	assert.Equal(t, []string{"outdoor", "clothing", "gear"}, info.Keywords, "keywords are trimmed, empties dropped")

	assert.Equal(t, srv.URL+"/assets/favicon.ico", info.Favicon, "relative favicon resolves against the page URL")
	assert.Equal(t, srv.URL+"/assets/logo.png", info.Logo)

	assert.Equal(t, "https://www.instagram.com/acmeoutfitters", info.SocialMedia["instagram"])
	assert.Equal(t, "https://facebook.com/acmeoutfitters", info.SocialMedia["facebook"])
	assert.Equal(t, "hello@acme.example", info.ContactEmail)
	assert.Equal(t, "+15550100", info.ContactPhone)
	assert.Equal(t, []string{"Jackets", "Boots"}, info.MainMenu)
}

func TestFetchToleratesSparsePage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body><p>hello</p></body></html>"))
	}))
	defer srv.Close()

	info, err := NewFetcher().Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Empty(t, info.Name)
	assert.Empty(t, info.SocialMedia)
	assert.Equal(t, srv.URL, info.URL)
}

func TestFetchReportsHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	info, err := NewFetcher().Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, srv.URL, info.URL, "a failed fetch still identifies the store by URL")
}
