// Package search keeps published businesses in Elasticsearch and serves the
// public listing from it when configured to.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"business-directory/internal/common/errors"
	"business-directory/internal/common/logger"
	"business-directory/internal/models"
	"business-directory/internal/store"

	"github.com/elastic/go-elasticsearch/v8"
)

// Indexer publishes a business to the search index.
type Indexer interface {
	IndexBusiness(ctx context.Context, b *models.Business) error
}

// Lister serves the public business listing.
type Lister interface {
	List(ctx context.Context, f store.BusinessFilter) (store.BusinessPage, error)
}

const indexMapping = `{
	"mappings": {
		"properties": {
			"businessId":       {"type": "keyword"},
			"businessName":     {"type": "text", "fields": {"raw": {"type": "keyword"}}},
			"shortDescription": {"type": "text"},
			"categories":       {"type": "keyword"},
			"cities":           {"type": "keyword"},
			"businessType":     {"type": "keyword"},
			"mobile":           {"type": "keyword"},
			"email":            {"type": "keyword"},
			"verified":         {"type": "boolean"},
			"createdAt":        {"type": "date"},
			"updatedAt":        {"type": "date"}
		}
	}
}`

type ESIndex struct {
	es     *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewESIndex(es *elasticsearch.Client, index string, log logger.Logger) *ESIndex {
	return &ESIndex{es: es, index: index, logger: log.WithFields(map[string]interface{}{"index": index})}
}

// EnsureIndex creates the index with its mapping when missing.
func (x *ESIndex) EnsureIndex(ctx context.Context) error {
	res, err := x.es.Indices.Exists([]string{x.index}, x.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	res, err = x.es.Indices.Create(x.index,
		x.es.Indices.Create.WithBody(strings.NewReader(indexMapping)),
		x.es.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("create index: %s", res.String())
	}
	x.logger.Info("search index created", nil)
	return nil
}

// IndexBusiness upserts b under its public id.
func (x *ESIndex) IndexBusiness(ctx context.Context, b *models.Business) error {
	body, err := json.Marshal(b)
	if err != nil {
		return errors.NewIndexingFailedError(b.BusinessID, err)
	}

	res, err := x.es.Index(x.index, bytes.NewReader(body),
		x.es.Index.WithDocumentID(b.BusinessID),
		x.es.Index.WithContext(ctx),
		x.es.Index.WithRefresh("wait_for"),
	)
	if err != nil {
		return errors.NewIndexingFailedError(b.BusinessID, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return errors.NewIndexingFailedError(b.BusinessID, fmt.Errorf("index response: %s", res.Status()))
	}

	x.logger.Debug("business indexed", map[string]interface{}{"businessId": b.BusinessID})
	return nil
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			Source models.Business `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// List runs the listing query: verified first, then newest.
func (x *ESIndex) List(ctx context.Context, f store.BusinessFilter) (store.BusinessPage, error) {
	page, limit := store.NormalizePage(f.Page, f.Limit)

	body, err := json.Marshal(buildListQuery(f, page, limit))
	if err != nil {
		return store.BusinessPage{}, errors.NewSearchQueryFailedError(err)
	}

	res, err := x.es.Search(
		x.es.Search.WithContext(ctx),
		x.es.Search.WithIndex(x.index),
		x.es.Search.WithBody(bytes.NewReader(body)),
		x.es.Search.WithTrackTotalHits(true),
	)
	if err != nil {
		return store.BusinessPage{}, errors.NewSearchQueryFailedError(err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return store.BusinessPage{}, errors.NewSearchQueryFailedError(fmt.Errorf("search response: %s", res.Status()))
	}

	var r searchResponse
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return store.BusinessPage{}, errors.NewSearchQueryFailedError(err)
	}

	items := make([]models.Business, 0, len(r.Hits.Hits))
	for _, h := range r.Hits.Hits {
		items = append(items, h.Source)
	}
	return store.BusinessPage{Items: items, Total: r.Hits.Total.Value, Page: page, Limit: limit}, nil
}

func buildListQuery(f store.BusinessFilter, page, limit int) map[string]interface{} {
	filters := []map[string]interface{}{}
	if len(f.Categories) > 0 {
		filters = append(filters, terms("categories", f.Categories))
	}
	if len(f.Cities) > 0 {
		filters = append(filters, terms("cities", append(append([]string{}, f.Cities...), models.AllGeorgia)))
	}
	if len(f.BusinessTypes) > 0 {
		filters = append(filters, terms("businessType", f.BusinessTypes))
	}
	if f.Verified != nil {
		filters = append(filters, map[string]interface{}{"term": map[string]interface{}{"verified": *f.Verified}})
	}

	boolQuery := map[string]interface{}{"filter": filters}
	if f.Search != "" {
		boolQuery["must"] = []map[string]interface{}{{
			"multi_match": map[string]interface{}{
				"query":     f.Search,
				"fields":    []string{"businessName^2", "shortDescription"},
				"fuzziness": "AUTO",
			},
		}}
	}

	return map[string]interface{}{
		"from":  (page - 1) * limit,
		"size":  limit,
		"query": map[string]interface{}{"bool": boolQuery},
		"sort": []map[string]interface{}{
			{"verified": map[string]interface{}{"order": "desc"}},
			{"createdAt": map[string]interface{}{"order": "desc"}},
		},
	}
}

func terms(field string, values []string) map[string]interface{} {
	return map[string]interface{}{"terms": map[string]interface{}{field: values}}
}
