package endpoint

import (
	"context"

	"github.com/Ruscigno/marketsum/pkg/errors"
	"github.com/Ruscigno/marketsum/pkg/service"
	"github.com/go-kit/kit/endpoint"
)

// Endpoints holds all Go-Kit endpoints.
type Endpoints struct {
	StartCrawl  endpoint.Endpoint
	GetCrawl    endpoint.Endpoint
	CancelCrawl endpoint.Endpoint
	ListCrawls  endpoint.Endpoint
	ExportCrawl endpoint.Endpoint
	CheckHealth endpoint.Endpoint
}

// CrawlIDRequest addresses a single crawl.
type CrawlIDRequest struct {
	ID string
}

var errInvalidRequest = errors.NewInputError("invalid request")

// MakeEndpoints creates endpoints for the service.
func MakeEndpoints(s service.Service) Endpoints {
	return Endpoints{
		StartCrawl:  makeStartCrawlEndpoint(s),
		GetCrawl:    makeGetCrawlEndpoint(s),
		CancelCrawl: makeCancelCrawlEndpoint(s),
		ListCrawls:  makeListCrawlsEndpoint(s),
		ExportCrawl: makeExportCrawlEndpoint(s),
		CheckHealth: makeCheckHealthEndpoint(s),
	}
}

func makeStartCrawlEndpoint(s service.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(service.CrawlRequest)
		if !ok {
			return nil, errInvalidRequest
		}
		return s.StartCrawl(ctx, req)
	}
}

func makeGetCrawlEndpoint(s service.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(CrawlIDRequest)
		if !ok {
			return nil, errInvalidRequest
		}
		return s.GetCrawl(ctx, req.ID)
	}
}

func makeCancelCrawlEndpoint(s service.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(CrawlIDRequest)
		if !ok {
			return nil, errInvalidRequest
		}
		return s.CancelCrawl(ctx, req.ID)
	}
}

func makeListCrawlsEndpoint(s service.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(service.ListCrawlsRequest)
		if !ok {
			return nil, errInvalidRequest
		}
		return s.ListCrawls(ctx, req)
	}
}

func makeExportCrawlEndpoint(s service.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(CrawlIDRequest)
		if !ok {
			return nil, errInvalidRequest
		}
		return s.ExportCrawl(ctx, req.ID)
	}
}

func makeCheckHealthEndpoint(s service.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		return s.CheckHealth(ctx)
	}
}
