package github

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v66/github"
	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/otel"

	"github.com/testsmith/testsmith/internal/logger"
)

const name = "github.com/testsmith/testsmith/cmd/server/internal/github"

var tracer = otel.Tracer(name)

type Config struct {
	// REST API root. Empty uses https://api.github.com/.
	APIBaseURL string
	RetryMax   int
	Timeout    time.Duration
	// GitHub App used for principals that authorize through an installation.
	AppID      *int64
	AppKeyPath *string
}

// Credential authenticates a principal at the repository host. A token takes
// precedence over an installation.
type Credential struct {
	Token          string
	InstallationID int64
}

// Factory builds a Client per principal credential.
type Factory struct {
	baseURL       *url.URL
	appsTransport *ghinstallation.AppsTransport
	cfg           Config
}

func NewFactory(cfg Config) (*Factory, error) {
	f := &Factory{cfg: cfg}

	if cfg.APIBaseURL != "" {
		u, err := url.Parse(strings.TrimRight(cfg.APIBaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("failed to parse github api base url: %w", err)
		}
		f.baseURL = u
	}

	if cfg.AppID != nil && cfg.AppKeyPath != nil {
		githubAppKey, err := readPKCS1PrivateKey(*cfg.AppKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read github app private key: %w", err)
		}

		f.appsTransport = ghinstallation.NewAppsTransportFromPrivateKey(
			retryablehttp.NewClient().HTTPClient.Transport,
			*cfg.AppID,
			githubAppKey,
		)
		if f.baseURL != nil {
			f.appsTransport.BaseURL = strings.TrimRight(f.baseURL.String(), "/")
		}
	}

	return f, nil
}

// ForPrincipal returns a Client acting as the holder of cred.
//
//nolint:ireturn // callers depend on the Client interface so it can be mocked
func (f *Factory) ForPrincipal(cred Credential) (Client, error) {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = f.cfg.RetryMax
	retryClient.Logger = logger.Logger
	// hand the final response back to go-github so status codes survive retries
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if f.cfg.Timeout > 0 {
		retryClient.HTTPClient.Timeout = f.cfg.Timeout
	}

	var gh *github.Client
	switch {
	case cred.Token != "":
		gh = github.NewClient(retryClient.StandardClient()).WithAuthToken(cred.Token)
	case cred.InstallationID != 0 && f.appsTransport != nil:
		retryClient.HTTPClient.Transport = ghinstallation.NewFromAppsTransport(
			f.appsTransport,
			cred.InstallationID,
		)
		gh = github.NewClient(retryClient.StandardClient())
	default:
		return nil, ErrNoCredential
	}

	if f.baseURL != nil {
		gh.BaseURL = f.baseURL
	}

	return &RESTClient{gh: gh}, nil
}

func readPKCS1PrivateKey(keyFilePath string) (*rsa.PrivateKey, error) {
	l := logger.Logger.With("keyFilePath", keyFilePath)
	l.Info("Reading Github application private key file")
	keyData, err := os.ReadFile(keyFilePath)
	if err != nil {
		return nil, err
	}

	l.Info("Decoding private key content")
	block, _ := pem.Decode(keyData)
	if block == nil {
		return nil, errors.New("error decoding PEM for GithubAppKey")
	}

	return x509.ParsePKCS1PrivateKey(block.Bytes)
}
