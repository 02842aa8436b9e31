// Package outlook implements the migration destination on Microsoft Graph.
package outlook

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/microsoft/kiota-abstractions-go/serialization"
	azure "github.com/microsoft/kiota-authentication-azure-go"
	khttp "github.com/microsoft/kiota-http-go"
	msgraphsdk "github.com/microsoftgraph/msgraph-sdk-go"
	msgraphcore "github.com/microsoftgraph/msgraph-sdk-go-core"
	"github.com/microsoftgraph/msgraph-sdk-go/users"

	"github.com/Martian-dev/pst-migrate/internal/odata"
	"github.com/Martian-dev/pst-migrate/internal/retry"
	"github.com/Martian-dev/pst-migrate/internal/sync"
)

// GraphScopes is the scope requested for app-only access.
var GraphScopes = []string{"https://graph.microsoft.com/.default"}

// DefaultMessageIDDomain is the domain of generated internetMessageId values.
const DefaultMessageIDDomain = "pst-migrate.local"

// Options configure the adapter.
type Options struct {
	// Mailbox is the user id or principal name of the target mailbox.
	Mailbox string
	// MessageIDDomain is used for messages archived without an internetMessageId.
	MessageIDDomain string
	// PageSize is the $top of list requests. Zero leaves it to the service.
	PageSize int32
	Retry    retry.BackoffConfig
}

// Adapter implements sync.Destination for Outlook/Microsoft Graph
type Adapter struct {
	client *msgraphsdk.GraphServiceClient
	opts   Options
	now    func() time.Time
}

var _ sync.Destination = (*Adapter)(nil)

// New creates an adapter authenticating with cred.
func New(cred azcore.TokenCredential, opts Options) (*Adapter, error) {
	authProvider, err := azure.NewAzureIdentityAuthenticationProviderWithScopes(cred, GraphScopes)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth provider: %w", err)
	}
	requestAdapter, err := msgraphsdk.NewGraphRequestAdapter(authProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to create Graph request adapter: %w", err)
	}
	return NewWithClient(msgraphsdk.NewGraphServiceClient(requestAdapter), opts), nil
}

// NewWithClient creates an adapter on an existing Graph client.
func NewWithClient(client *msgraphsdk.GraphServiceClient, opts Options) *Adapter {
	if opts.MessageIDDomain == "" {
		opts.MessageIDDomain = DefaultMessageIDDomain
	}
	return &Adapter{client: client, opts: opts, now: time.Now}
}

func (a *Adapter) user() *users.UserItemRequestBuilder {
	return a.client.Users().ByUserId(a.opts.Mailbox)
}

// call runs fn with the configured retry policy. Graph errors are converted
// to *APIError before they are classified.
func (a *Adapter) call(ctx context.Context, op string, fn func() error) error {
	err := retry.Do(ctx, a.opts.Retry, IsTransient, func() error {
		return convertError(fn())
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// create runs a POST that adds an item or container. It is retried only when
// the service refused it outright, since a retried create that had already
// been committed would leave a duplicate behind.
func (a *Adapter) create(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx = context.WithValue(ctx, noTransportRetry.GetKey(), noTransportRetry)
	err := retry.Do(ctx, a.opts.Retry, IsRejected, func() error {
		return convertError(fn(ctx))
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// noTransportRetry turns off the Graph client's own retry handler, which
// would otherwise resend a create after a 504.
var noTransportRetry = &khttp.RetryHandlerOptions{
	ShouldRetry: func(time.Duration, int, *http.Request, *http.Response) bool {
		return false
	},
}

func (a *Adapter) top() *int32 {
	if a.opts.PageSize <= 0 {
		return nil
	}
	return Int32Ptr(a.opts.PageSize)
}

// collect follows @odata.nextLink until every page of resp has been read.
func collect[T any](ctx context.Context, a *Adapter, resp any, factory serialization.ParsableFactory) ([]T, error) {
	iter, err := msgraphcore.NewPageIterator[T](resp, a.client.GetAdapter(), factory)
	if err != nil {
		return nil, fmt.Errorf("failed to create page iterator: %w", err)
	}
	var out []T
	err = iter.Iterate(ctx, func(item T) bool {
		out = append(out, item)
		return true
	})
	return out, err
}

func filterParam(e odata.Expr) *string {
	if e == nil {
		return nil
	}
	s := e.String()
	return &s
}

// Int32Ptr returns a pointer to an int32
func Int32Ptr(i int32) *int32 {
	return &i
}

func ptr[T any](v T) *T {
	return &v
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
